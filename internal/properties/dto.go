package properties

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
)

// CreatePropertyInput captures the fields accepted when registering a
// property. The on-hand amount is not accepted from clients; it always
// starts at zero and only the ledger moves it.
type CreatePropertyInput struct {
	Name          string           `json:"name" validate:"required,min=1,max=50"`
	Description   *string          `json:"description,omitempty" validate:"omitempty,min=2,max=100"`
	AmountInStock *decimal.Decimal `json:"amount_in_stock,omitempty"`
}

// PropertyDTO is the public projection of a property.
type PropertyDTO struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Description   *string          `json:"description,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	AmountInStock *decimal.Decimal `json:"amount_in_stock,omitempty"`
	IsDeleted     bool             `json:"is_deleted"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// PropertyPageDTO is one page of properties plus offset pagination metadata.
type PropertyPageDTO struct {
	Items []PropertyDTO `json:"items"`
	Total int64         `json:"total"`
	Skip  int           `json:"skip"`
	Limit int           `json:"limit"`
}

// FromModel converts a persisted property into its API projection.
func FromModel(property *models.Property) PropertyDTO {
	if property == nil {
		return PropertyDTO{}
	}
	return PropertyDTO{
		ID:            property.ID,
		Name:          property.Name,
		Description:   property.Description,
		Amount:        property.Amount,
		AmountInStock: property.AmountInStock,
		IsDeleted:     property.IsDeleted,
		CreatedAt:     property.CreatedAt,
		UpdatedAt:     property.UpdatedAt,
	}
}
