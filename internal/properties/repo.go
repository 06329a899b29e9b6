package properties

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/pagination"
)

// Repository manages persistence for properties.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, property *models.Property) error
	FindOwned(ctx context.Context, userID, propertyID uuid.UUID) (*models.Property, error)
	ListPage(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Property, int64, error)
	SoftDelete(ctx context.Context, propertyID uuid.UUID) error
	AdjustAmount(ctx context.Context, propertyID uuid.UUID, delta decimal.Decimal) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a properties repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, property *models.Property) error {
	return r.db.WithContext(ctx).Create(property).Error
}

// FindOwned loads a live property scoped to its owner. Soft-deleted rows are
// treated as missing.
func (r *repository) FindOwned(ctx context.Context, userID, propertyID uuid.UUID) (*models.Property, error) {
	var property models.Property
	if err := r.db.WithContext(ctx).
		Where("id = ?", propertyID).
		Where("user_id = ?", userID).
		Where("is_deleted = ?", false).
		First(&property).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

// ListPage returns one page of the owner's live properties plus the total
// count, newest first with id as tie-break.
func (r *repository) ListPage(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Property, int64, error) {
	base := r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("user_id = ?", userID).
		Where("is_deleted = ?", false)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Property
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Order("id DESC").
		Offset(params.Skip).
		Limit(params.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) SoftDelete(ctx context.Context, propertyID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("id = ?", propertyID).
		UpdateColumn("is_deleted", true).Error
}

// AdjustAmount applies a signed delta to the running amount.
func (r *repository) AdjustAmount(ctx context.Context, propertyID uuid.UUID, delta decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("id = ?", propertyID).
		UpdateColumn("amount", gorm.Expr("amount + ?", delta)).Error
}
