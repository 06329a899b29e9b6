package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/internal/users"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/logger"
)

// SessionExpiryJobParams configure the test session expiry sweep.
type SessionExpiryJobParams struct {
	Logger          *logger.Logger
	DB              txRunner
	Invitations     expiredInvitationReader
	UserRepoFactory userRepoFactory
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type expiredInvitationReader interface {
	FindExpiredAccepted(ctx context.Context, cutoff time.Time) ([]models.Invitation, error)
}

type userAccountRepo interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Deactivate(tx *gorm.DB, id uuid.UUID) error
}

type userRepoFactory func(tx *gorm.DB) userAccountRepo

func defaultUserRepo(tx *gorm.DB) userAccountRepo {
	return users.NewRepository(tx)
}

// NewSessionExpiryJob builds the job that deactivates accounts whose
// invitation usage window has closed.
func NewSessionExpiryJob(params SessionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Invitations == nil {
		return nil, fmt.Errorf("invitations reader required")
	}
	repoFactory := params.UserRepoFactory
	if repoFactory == nil {
		repoFactory = defaultUserRepo
	}
	return &sessionExpiryJob{
		logg:        params.Logger,
		db:          params.DB,
		invitations: params.Invitations,
		repoFactory: repoFactory,
		now:         time.Now,
	}, nil
}

type sessionExpiryJob struct {
	logg        *logger.Logger
	db          txRunner
	invitations expiredInvitationReader
	repoFactory userRepoFactory
	now         func() time.Time
}

func (j *sessionExpiryJob) Name() string { return "session-expiry" }

func (j *sessionExpiryJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.invitations.FindExpiredAccepted(ctx, now)
	if err != nil {
		return fmt.Errorf("query expired invitations: %w", err)
	}

	deactivated := 0
	var errs []error
	for _, invitation := range expired {
		done, err := j.deactivateAccount(ctx, invitation)
		if err != nil {
			errs = append(errs, fmt.Errorf("deactivate %s: %w", invitation.Email, err))
			continue
		}
		if done {
			deactivated++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"expired_windows": len(expired),
		"deactivated":     deactivated,
	})
	j.logg.Info(logCtx, "session expiry sweep complete")
	return multierr.Combine(errs...)
}

// deactivateAccount flips is_active off for the invited user. Invitations
// without a matching account and accounts already deactivated are skipped.
func (j *sessionExpiryJob) deactivateAccount(ctx context.Context, invitation models.Invitation) (bool, error) {
	deactivated := false
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		user, err := repo.FindByEmail(ctx, invitation.Email)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if !user.IsActive {
			return nil
		}
		if err := repo.Deactivate(tx, user.ID); err != nil {
			return err
		}
		deactivated = true
		return nil
	})
	return deactivated, err
}
