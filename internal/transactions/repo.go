package transactions

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	"github.com/stockbookhq/stockbook-backend/pkg/pagination"
)

// ListFilter narrows a transaction listing.
type ListFilter struct {
	PropertyID *uuid.UUID
}

// Repository manages persistence for transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, txn *models.Transaction) error
	ListPage(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) ([]TransactionDTO, int64, error)
	SoftDeleteByProperty(tx *gorm.DB, propertyID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transactions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

// ListPage returns one page of the owner's live transactions joined with the
// owning property's name, newest first with id as tie-break.
func (r *repository) ListPage(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) ([]TransactionDTO, int64, error) {
	selectColumns := []string{
		"t.id",
		"t.property_id",
		"p.name AS property_name",
		"t.kind",
		"t.amount_change",
		"t.note",
		"t.created_at",
	}

	base := r.db.WithContext(ctx).
		Table("transactions t").
		Joins("JOIN properties p ON p.id = t.property_id").
		Where("t.user_id = ?", userID).
		Where("t.is_deleted = ?", false)
	if filter.PropertyID != nil {
		base = base.Where("t.property_id = ?", *filter.PropertyID)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []transactionRecord
	if err := base.Session(&gorm.Session{}).
		Select(strings.Join(selectColumns, ", ")).
		Order("t.created_at DESC").
		Order("t.id DESC").
		Offset(params.Skip).
		Limit(params.Limit).
		Scan(&records).Error; err != nil {
		return nil, 0, err
	}

	items := make([]TransactionDTO, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDTO())
	}
	return items, total, nil
}

// SoftDeleteByProperty marks every transaction on the property as deleted
// inside the caller's transaction and reports how many rows were touched.
func (r *repository) SoftDeleteByProperty(tx *gorm.DB, propertyID uuid.UUID) (int64, error) {
	handle := r.db
	if tx != nil {
		handle = tx
	}
	res := handle.Model(&models.Transaction{}).
		Where("property_id = ?", propertyID).
		Where("is_deleted = ?", false).
		UpdateColumn("is_deleted", true)
	return res.RowsAffected, res.Error
}

type transactionRecord struct {
	ID           uuid.UUID             `gorm:"column:id"`
	PropertyID   uuid.UUID             `gorm:"column:property_id"`
	PropertyName string                `gorm:"column:property_name"`
	Kind         enums.TransactionKind `gorm:"column:kind"`
	AmountChange decimal.Decimal       `gorm:"column:amount_change"`
	Note         sql.NullString        `gorm:"column:note"`
	CreatedAt    time.Time             `gorm:"column:created_at"`
}

func (r transactionRecord) toDTO() TransactionDTO {
	dto := TransactionDTO{
		ID:           r.ID,
		PropertyID:   r.PropertyID,
		PropertyName: r.PropertyName,
		Kind:         r.Kind,
		AmountChange: r.AmountChange,
		CreatedAt:    r.CreatedAt,
	}
	if r.Note.Valid {
		note := r.Note.String
		dto.Note = &note
	}
	return dto
}
