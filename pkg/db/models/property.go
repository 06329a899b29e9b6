package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Property is a named inventory resource owned by one user. Names are
// unique per owner among non-deleted rows; the partial unique index
// properties_user_id_name_active_key backs the application-level check.
type Property struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID        `gorm:"column:user_id;type:uuid;not null;index:properties_user_id_idx"`
	Name          string           `gorm:"column:name;not null"`
	Description   *string          `gorm:"column:description"`
	Amount        decimal.Decimal  `gorm:"column:amount;type:numeric(14,3);not null;default:0"`
	AmountInStock *decimal.Decimal `gorm:"column:amount_in_stock;type:numeric(14,3)"`
	IsDeleted     bool             `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
