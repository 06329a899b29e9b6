package invitations

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/pkg/config"
	dbpkg "github.com/stockbookhq/stockbook-backend/pkg/db"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/logger"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
	"github.com/stockbookhq/stockbook-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the invitations service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
	Config config.InvitesConfig
}

// Service exposes business rules for invitation issuance and acceptance.
type Service interface {
	Issue(ctx context.Context, input IssueInvitationInput) (InvitationDTO, error)
	Accept(ctx context.Context, input AcceptInvitationInput) (InvitationDTO, error)
	GetByEmail(ctx context.Context, email string) (*models.Invitation, error)
	SessionActive(invitation *models.Invitation, now time.Time) bool
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	cfg    config.InvitesConfig
}

// NewService builds an invitations service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invitations repo is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner is required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logg:   params.Logger,
		cfg:    params.Config,
	}, nil
}

// Issue creates an invitation with a freshly generated code. The unique email
// constraint turns a duplicate into a conflict.
func (s *service) Issue(ctx context.Context, input IssueInvitationInput) (InvitationDTO, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return InvitationDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}

	codeLength := s.cfg.CodeLength
	if codeLength <= 0 {
		codeLength = 24
	}
	code, err := security.GenerateInviteCode(codeLength)
	if err != nil {
		return InvitationDTO{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate invite code")
	}

	invitation := &models.Invitation{
		Email: email,
		Code:  code,
	}
	if ip := strings.TrimSpace(input.ClientIP); ip != "" {
		invitation.ClientIP = &ip
	}

	if err := s.repo.Create(ctx, invitation); err != nil {
		if dbpkg.IsUniqueViolation(err, "invitations_email_key") {
			return InvitationDTO{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "email already invited")
		}
		return InvitationDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create invitation")
	}

	return FromModel(invitation), nil
}

// Accept marks the invitation as accepted and opens its usage window.
// Accepting an already-accepted invitation is a no-op and returns the
// current state.
func (s *service) Accept(ctx context.Context, input AcceptInvitationInput) (InvitationDTO, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return InvitationDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if strings.TrimSpace(input.Code) == "" {
		return InvitationDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "invite code is required")
	}

	invitation, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return InvitationDTO{}, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "invitation not found")
		}
		return InvitationDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
	}

	if invitation.Code != strings.TrimSpace(input.Code) {
		return InvitationDTO{}, pkgerrors.New(pkgerrors.CodeForbidden, "invite code does not match")
	}

	if invitation.IsAccepted {
		return FromModel(invitation), nil
	}

	now := time.Now().UTC()
	invitation.IsAccepted = true
	invitation.TestSessionStartAt = &now
	if s.cfg.SessionDuration > 0 {
		expireAt := now.Add(s.cfg.SessionDuration)
		invitation.TestSessionExpireAt = &expireAt
	} else {
		invitation.TestSessionExpireAt = nil
	}
	if ip := strings.TrimSpace(input.ClientIP); ip != "" {
		invitation.ClientIP = &ip
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Update(ctx, invitation); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventInvitationAccepted,
				AggregateType: enums.AggregateInvitation,
				AggregateID:   invitation.ID,
				Data:          FromModel(invitation),
			})
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return InvitationDTO{}, typed
		}
		return InvitationDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept invitation")
	}

	if s.logg != nil {
		logCtx := s.logg.WithField(ctx, "invitation_id", invitation.ID.String())
		s.logg.Info(logCtx, "invitation accepted")
	}

	return FromModel(invitation), nil
}

// GetByEmail loads the raw invitation row for the normalized email.
func (s *service) GetByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	invitation, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "invitation not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invitation")
	}
	return invitation, nil
}

// SessionActive reports whether the invitation grants access at the given
// instant. A nil expiry means the session never ends.
func (s *service) SessionActive(invitation *models.Invitation, now time.Time) bool {
	if invitation == nil || !invitation.IsAccepted {
		return false
	}
	if invitation.TestSessionExpireAt == nil {
		return true
	}
	return now.Before(*invitation.TestSessionExpireAt)
}

// NormalizeEmail lowercases and trims an address so lookups and the unique
// index agree on identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
