package transactions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
)

// RecordTransactionInput captures the fields accepted when recording a
// quantity change.
type RecordTransactionInput struct {
	PropertyID   uuid.UUID             `json:"property_id" validate:"required"`
	Kind         enums.TransactionKind `json:"kind" validate:"required"`
	AmountChange decimal.Decimal       `json:"amount_change" validate:"required"`
	Note         *string               `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// TransactionDTO is the public projection of a transaction. The owning
// property's name is denormalized in so listings don't force a second fetch.
type TransactionDTO struct {
	ID           uuid.UUID             `json:"id"`
	PropertyID   uuid.UUID             `json:"property_id"`
	PropertyName string                `json:"property_name"`
	Kind         enums.TransactionKind `json:"kind"`
	AmountChange decimal.Decimal       `json:"amount_change"`
	Note         *string               `json:"note,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`
}

// TransactionPageDTO is one page of transactions plus offset pagination metadata.
type TransactionPageDTO struct {
	Items []TransactionDTO `json:"items"`
	Total int64            `json:"total"`
	Skip  int              `json:"skip"`
	Limit int              `json:"limit"`
}

// FromModel converts a persisted transaction into its API projection. The
// property name is resolved separately by the repository's listing join.
func FromModel(txn *models.Transaction, propertyName string) TransactionDTO {
	if txn == nil {
		return TransactionDTO{}
	}
	return TransactionDTO{
		ID:           txn.ID,
		PropertyID:   txn.PropertyID,
		PropertyName: propertyName,
		Kind:         txn.Kind,
		AmountChange: txn.AmountChange,
		Note:         txn.Note,
		CreatedAt:    txn.CreatedAt,
	}
}
