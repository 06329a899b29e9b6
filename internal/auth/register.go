package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/internal/invitations"
	"github.com/stockbookhq/stockbook-backend/internal/users"
	"github.com/stockbookhq/stockbook-backend/pkg/config"
	"github.com/stockbookhq/stockbook-backend/pkg/db"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
	"github.com/stockbookhq/stockbook-backend/pkg/security"
)

// RegisterRequest contains the payload required to provision an invited account.
type RegisterRequest struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	InviteCode string `json:"invite_code" validate:"required"`
	ClientIP   string `json:"-"`
}

// RegisterService handles the invite-gated provisioning transaction.
type RegisterService interface {
	Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error)
}

// RegisterServiceParams packages the dependencies for the registration flow.
type RegisterServiceParams struct {
	DB             *db.Client
	Outbox         *outbox.Service
	PasswordConfig config.PasswordConfig
	InvitesConfig  config.InvitesConfig
}

type registerService struct {
	db          *db.Client
	outbox      *outbox.Service
	passwordCfg config.PasswordConfig
	invitesCfg  config.InvitesConfig
}

// NewRegisterService builds a registration service with the provided dependencies.
func NewRegisterService(params RegisterServiceParams) (RegisterService, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	return &registerService{
		db:          params.DB,
		outbox:      params.Outbox,
		passwordCfg: params.PasswordConfig,
		invitesCfg:  params.InvitesConfig,
	}, nil
}

// Register creates the account and accepts the matching invitation in one
// transaction. The invitation's usage window opens on first registration.
func (s *registerService) Register(ctx context.Context, req RegisterRequest) (*users.UserDTO, error) {
	email := invitations.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	code := strings.TrimSpace(req.InviteCode)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invite code is required")
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var created *models.User
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		userRepo := users.NewRepository(tx)
		invitationRepo := invitations.NewRepository(tx)

		invitation, err := invitationRepo.FindByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "an invitation is required to register")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load invitation")
		}
		if invitation.Code != code {
			return pkgerrors.New(pkgerrors.CodeForbidden, "invite code does not match")
		}

		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check user email")
		}

		user := &models.User{
			Email:        email,
			PasswordHash: passwordHash,
			FirstName:    strings.TrimSpace(req.FirstName),
			LastName:     strings.TrimSpace(req.LastName),
			IsActive:     true,
		}
		if err := userRepo.Create(ctx, user); err != nil {
			if db.IsUniqueViolation(err, "users_email_key") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		created = user

		if !invitation.IsAccepted {
			now := time.Now().UTC()
			invitation.IsAccepted = true
			invitation.TestSessionStartAt = &now
			if s.invitesCfg.SessionDuration > 0 {
				expireAt := now.Add(s.invitesCfg.SessionDuration)
				invitation.TestSessionExpireAt = &expireAt
			}
			if ip := strings.TrimSpace(req.ClientIP); ip != "" {
				invitation.ClientIP = &ip
			}
			if err := invitationRepo.Update(ctx, invitation); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accept invitation")
			}
			if s.outbox != nil {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventInvitationAccepted,
					AggregateType: enums.AggregateInvitation,
					AggregateID:   invitation.ID,
					Actor:         &outbox.ActorRef{UserID: user.ID, Email: email},
					Data:          invitations.FromModel(invitation),
				}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue invitation event")
				}
			}
		}

		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register account")
	}

	dto := users.FromModel(created)
	return &dto, nil
}
