package invitations

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
)

// Repository manages persistence for invitations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, invitation *models.Invitation) error
	FindByEmail(ctx context.Context, email string) (*models.Invitation, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	FindExpiredAccepted(ctx context.Context, cutoff time.Time) ([]models.Invitation, error)
	Update(ctx context.Context, invitation *models.Invitation) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an invitations repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).Create(invitation).Error
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&invitation).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	var invitation models.Invitation
	if err := r.db.WithContext(ctx).First(&invitation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invitation, nil
}

// FindExpiredAccepted returns accepted invitations whose usage window closed
// at or before the cutoff. Unbounded invitations never match.
func (r *repository) FindExpiredAccepted(ctx context.Context, cutoff time.Time) ([]models.Invitation, error) {
	var rows []models.Invitation
	err := r.db.WithContext(ctx).
		Where("is_accepted = ?", true).
		Where("test_session_expire_at IS NOT NULL").
		Where("test_session_expire_at <= ?", cutoff).
		Order("test_session_expire_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Update(ctx context.Context, invitation *models.Invitation) error {
	return r.db.WithContext(ctx).
		Model(&models.Invitation{}).
		Where("id = ?", invitation.ID).
		Updates(map[string]any{
			"is_accepted":            invitation.IsAccepted,
			"client_ip":              invitation.ClientIP,
			"test_session_start_at":  invitation.TestSessionStartAt,
			"test_session_expire_at": invitation.TestSessionExpireAt,
		}).Error
}
