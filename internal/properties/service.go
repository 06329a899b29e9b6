package properties

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbpkg "github.com/stockbookhq/stockbook-backend/pkg/db"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/logger"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
	"github.com/stockbookhq/stockbook-backend/pkg/pagination"
)

// activeNameConstraint is the partial unique index guarding one live
// property name per owner.
const activeNameConstraint = "properties_user_id_name_active_key"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ledgerSweeper soft-deletes the transactions attached to a property inside
// the caller's transaction.
type ledgerSweeper interface {
	SoftDeleteByProperty(tx *gorm.DB, propertyID uuid.UUID) (int64, error)
}

// ServiceParams groups dependencies for the properties service.
type ServiceParams struct {
	Repo        Repository
	Tx          txRunner
	Ledger      ledgerSweeper
	Outbox      outboxPublisher
	Logger      *logger.Logger
	MaxPageSize int
}

// Service exposes business rules for property management.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreatePropertyInput) (PropertyDTO, error)
	Get(ctx context.Context, userID, propertyID uuid.UUID) (PropertyDTO, error)
	List(ctx context.Context, userID uuid.UUID, params pagination.Params) (PropertyPageDTO, error)
	Remove(ctx context.Context, userID, propertyID uuid.UUID) (PropertyDTO, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	ledger      ledgerSweeper
	outbox      outboxPublisher
	logg        *logger.Logger
	maxPageSize int
}

// NewService builds a properties service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "properties repo is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner is required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "ledger sweeper is required")
	}
	maxPageSize := params.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = pagination.DefaultMaxPageSize
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		ledger:      params.Ledger,
		outbox:      params.Outbox,
		logg:        params.Logger,
		maxPageSize: maxPageSize,
	}, nil
}

// Create registers a property for the owner. The partial unique index is the
// arbiter for duplicate live names, so a racing insert surfaces as a conflict
// rather than a duplicate row.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreatePropertyInput) (PropertyDTO, error) {
	if userID == uuid.Nil {
		return PropertyDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return PropertyDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "property name is required")
	}

	property := &models.Property{
		UserID: userID,
		Name:   name,
	}
	if input.Description != nil {
		if desc := strings.TrimSpace(*input.Description); desc != "" {
			property.Description = &desc
		}
	}
	// the on-hand amount always opens at zero; only recorded transactions move it
	property.Amount = decimal.Zero
	property.AmountInStock = input.AmountInStock

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, property); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPropertyCreated,
				AggregateType: enums.AggregateProperty,
				AggregateID:   property.ID,
				Actor:         &outbox.ActorRef{UserID: userID},
				Data:          FromModel(property),
			})
		}
		return nil
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, activeNameConstraint) {
			return PropertyDTO{}, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "property name already in use").
				WithDetails(map[string]string{"name": name})
		}
		return PropertyDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create property")
	}

	if s.logg != nil {
		logCtx := s.logg.WithPropertyID(ctx, property.ID.String())
		s.logg.Info(logCtx, "property created")
	}
	return FromModel(property), nil
}

// Get returns a single live property owned by the user.
func (s *service) Get(ctx context.Context, userID, propertyID uuid.UUID) (PropertyDTO, error) {
	property, err := s.findOwned(ctx, userID, propertyID)
	if err != nil {
		return PropertyDTO{}, err
	}
	return FromModel(property), nil
}

// List returns one quota-bounded page of the owner's live properties.
func (s *service) List(ctx context.Context, userID uuid.UUID, params pagination.Params) (PropertyPageDTO, error) {
	if userID == uuid.Nil {
		return PropertyPageDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	normalized := pagination.Normalize(params, s.maxPageSize)

	rows, total, err := s.repo.ListPage(ctx, userID, normalized)
	if err != nil {
		return PropertyPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list properties")
	}

	items := make([]PropertyDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i]))
	}
	return PropertyPageDTO{
		Items: items,
		Total: total,
		Skip:  normalized.Skip,
		Limit: normalized.Limit,
	}, nil
}

// Remove soft-deletes the property and every transaction recorded against it
// in one transaction. Either all marks land or none do. The soft-deleted
// projection is returned so the caller can echo it back.
func (s *service) Remove(ctx context.Context, userID, propertyID uuid.UUID) (PropertyDTO, error) {
	property, err := s.findOwned(ctx, userID, propertyID)
	if err != nil {
		return PropertyDTO{}, err
	}

	property.IsDeleted = true
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).SoftDelete(ctx, property.ID); err != nil {
			return err
		}
		if _, err := s.ledger.SoftDeleteByProperty(tx, property.ID); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventPropertyRemoved,
				AggregateType: enums.AggregateProperty,
				AggregateID:   property.ID,
				Actor:         &outbox.ActorRef{UserID: userID},
				Data:          FromModel(property),
			})
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return PropertyDTO{}, typed
		}
		return PropertyDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove property")
	}

	if s.logg != nil {
		logCtx := s.logg.WithPropertyID(ctx, property.ID.String())
		s.logg.Info(logCtx, "property removed")
	}
	return FromModel(property), nil
}

func (s *service) findOwned(ctx context.Context, userID, propertyID uuid.UUID) (*models.Property, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if propertyID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "property id is required")
	}
	property, err := s.repo.FindOwned(ctx, userID, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "property not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
	}
	return property, nil
}
