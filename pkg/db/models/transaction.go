package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockbookhq/stockbook-backend/pkg/enums"
)

// Transaction records one quantity-affecting event against a property.
// UserID is carried redundantly so ownership checks never require a join
// through the property reference.
type Transaction struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index:transactions_user_id_idx"`
	PropertyID   uuid.UUID             `gorm:"column:property_id;type:uuid;not null;index:transactions_property_id_idx"`
	Kind         enums.TransactionKind `gorm:"column:kind;type:transaction_kind;not null"`
	AmountChange decimal.Decimal       `gorm:"column:amount_change;type:numeric(14,3);not null"`
	Note         *string               `gorm:"column:note"`
	IsDeleted    bool                  `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
