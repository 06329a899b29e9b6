package transactions

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/internal/properties"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/logger"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
	"github.com/stockbookhq/stockbook-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the transactions service.
type ServiceParams struct {
	Repo         Repository
	PropertyRepo properties.Repository
	Tx           txRunner
	Outbox       outboxPublisher
	Logger       *logger.Logger
	MaxPageSize  int
}

// Service exposes business rules for the transaction ledger.
type Service interface {
	Record(ctx context.Context, userID uuid.UUID, input RecordTransactionInput) (TransactionDTO, error)
	List(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) (TransactionPageDTO, error)
}

type service struct {
	repo         Repository
	propertyRepo properties.Repository
	tx           txRunner
	outbox       outboxPublisher
	logg         *logger.Logger
	maxPageSize  int
}

// NewService builds a transactions service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transactions repo is required")
	}
	if params.PropertyRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "properties repo is required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tx runner is required")
	}
	maxPageSize := params.MaxPageSize
	if maxPageSize <= 0 {
		maxPageSize = pagination.DefaultMaxPageSize
	}
	return &service{
		repo:         params.Repo,
		propertyRepo: params.PropertyRepo,
		tx:           params.Tx,
		outbox:       params.Outbox,
		logg:         params.Logger,
		maxPageSize:  maxPageSize,
	}, nil
}

// Record inserts the transaction and folds its delta into the property's
// running amount in one transaction.
func (s *service) Record(ctx context.Context, userID uuid.UUID, input RecordTransactionInput) (TransactionDTO, error) {
	if userID == uuid.Nil {
		return TransactionDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.PropertyID == uuid.Nil {
		return TransactionDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "property id is required")
	}
	if !input.Kind.IsValid() {
		return TransactionDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid transaction kind").
			WithDetails(map[string]string{"kind": string(input.Kind)})
	}
	if input.AmountChange.IsZero() {
		return TransactionDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "amount change must be non-zero")
	}

	property, err := s.findOwnedProperty(ctx, userID, input.PropertyID)
	if err != nil {
		return TransactionDTO{}, err
	}

	txn := &models.Transaction{
		UserID:       userID,
		PropertyID:   property.ID,
		Kind:         input.Kind,
		AmountChange: input.AmountChange,
	}
	if input.Note != nil {
		if note := strings.TrimSpace(*input.Note); note != "" {
			txn.Note = &note
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Insert(ctx, txn); err != nil {
			return err
		}
		if err := s.propertyRepo.WithTx(tx).AdjustAmount(ctx, property.ID, input.AmountChange); err != nil {
			return err
		}
		if s.outbox != nil {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventTransactionRecorded,
				AggregateType: enums.AggregateTransaction,
				AggregateID:   txn.ID,
				Actor:         &outbox.ActorRef{UserID: userID},
				Data:          FromModel(txn, property.Name),
			})
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return TransactionDTO{}, typed
		}
		return TransactionDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transaction")
	}

	if s.logg != nil {
		logCtx := s.logg.WithPropertyID(ctx, property.ID.String())
		logCtx = s.logg.WithField(logCtx, "transaction_id", txn.ID.String())
		s.logg.Info(logCtx, "transaction recorded")
	}
	return FromModel(txn, property.Name), nil
}

// List returns one quota-bounded page of the owner's live transactions. A
// property filter that does not resolve to an owned live property is a
// not-found, never an empty page.
func (s *service) List(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) (TransactionPageDTO, error) {
	if userID == uuid.Nil {
		return TransactionPageDTO{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if filter.PropertyID != nil {
		if _, err := s.findOwnedProperty(ctx, userID, *filter.PropertyID); err != nil {
			return TransactionPageDTO{}, err
		}
	}
	normalized := pagination.Normalize(params, s.maxPageSize)

	items, total, err := s.repo.ListPage(ctx, userID, filter, normalized)
	if err != nil {
		return TransactionPageDTO{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}
	return TransactionPageDTO{
		Items: items,
		Total: total,
		Skip:  normalized.Skip,
		Limit: normalized.Limit,
	}, nil
}

func (s *service) findOwnedProperty(ctx context.Context, userID, propertyID uuid.UUID) (*models.Property, error) {
	property, err := s.propertyRepo.FindOwned(ctx, userID, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "property not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load property")
	}
	return property, nil
}
