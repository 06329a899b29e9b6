package transactions

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/internal/properties"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
	"github.com/stockbookhq/stockbook-backend/pkg/pagination"
)

type fakeRepository struct {
	insertFn   func(ctx context.Context, txn *models.Transaction) error
	listPageFn func(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) ([]TransactionDTO, int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Insert(ctx context.Context, txn *models.Transaction) error {
	if f.insertFn != nil {
		return f.insertFn(ctx, txn)
	}
	return nil
}

func (f *fakeRepository) ListPage(ctx context.Context, userID uuid.UUID, filter ListFilter, params pagination.Params) ([]TransactionDTO, int64, error) {
	if f.listPageFn != nil {
		return f.listPageFn(ctx, userID, filter, params)
	}
	return nil, 0, nil
}

func (f *fakeRepository) SoftDeleteByProperty(tx *gorm.DB, propertyID uuid.UUID) (int64, error) {
	return 0, nil
}

type fakePropertyRepo struct {
	owned     map[uuid.UUID]*models.Property
	ownerID   uuid.UUID
	adjusted  map[uuid.UUID]decimal.Decimal
	adjustErr error
}

func newFakePropertyRepo(ownerID uuid.UUID) *fakePropertyRepo {
	return &fakePropertyRepo{
		owned:    map[uuid.UUID]*models.Property{},
		ownerID:  ownerID,
		adjusted: map[uuid.UUID]decimal.Decimal{},
	}
}

func (f *fakePropertyRepo) WithTx(tx *gorm.DB) properties.Repository { return f }

func (f *fakePropertyRepo) Create(ctx context.Context, property *models.Property) error { return nil }

func (f *fakePropertyRepo) FindOwned(ctx context.Context, userID, propertyID uuid.UUID) (*models.Property, error) {
	if userID != f.ownerID {
		return nil, gorm.ErrRecordNotFound
	}
	property, ok := f.owned[propertyID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return property, nil
}

func (f *fakePropertyRepo) ListPage(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Property, int64, error) {
	return nil, 0, nil
}

func (f *fakePropertyRepo) SoftDelete(ctx context.Context, propertyID uuid.UUID) error { return nil }

func (f *fakePropertyRepo) AdjustAmount(ctx context.Context, propertyID uuid.UUID, delta decimal.Decimal) error {
	if f.adjustErr != nil {
		return f.adjustErr
	}
	f.adjusted[propertyID] = f.adjusted[propertyID].Add(delta)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type capturingOutbox struct {
	events []outbox.DomainEvent
}

func (c *capturingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func newTestService(t *testing.T, repo Repository, propertyRepo properties.Repository, sink *capturingOutbox) Service {
	t.Helper()
	var publisher outboxPublisher
	if sink != nil {
		publisher = sink
	}
	svc, err := NewService(ServiceParams{
		Repo:         repo,
		PropertyRepo: propertyRepo,
		Tx:           stubTxRunner{},
		Outbox:       publisher,
		MaxPageSize:  25,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestRecordAppliesDeltaToProperty(t *testing.T) {
	userID := uuid.New()
	propertyID := uuid.New()
	propertyRepo := newFakePropertyRepo(userID)
	propertyRepo.owned[propertyID] = &models.Property{ID: propertyID, UserID: userID, Name: "Widgets"}

	var inserted *models.Transaction
	repo := &fakeRepository{
		insertFn: func(ctx context.Context, txn *models.Transaction) error {
			txn.ID = uuid.New()
			inserted = txn
			return nil
		},
	}
	sink := &capturingOutbox{}
	svc := newTestService(t, repo, propertyRepo, sink)

	note := " restock from supplier "
	dto, err := svc.Record(context.Background(), userID, RecordTransactionInput{
		PropertyID:   propertyID,
		Kind:         enums.TransactionKindStockIn,
		AmountChange: decimal.RequireFromString("12.5"),
		Note:         &note,
	})
	if err != nil {
		t.Fatalf("Record error: %v", err)
	}
	if inserted == nil {
		t.Fatal("expected transaction to be inserted")
	}
	if inserted.UserID != userID || inserted.PropertyID != propertyID {
		t.Fatalf("unexpected ownership on %+v", inserted)
	}
	if inserted.Note == nil || *inserted.Note != "restock from supplier" {
		t.Fatal("expected trimmed note")
	}
	if got := propertyRepo.adjusted[propertyID]; !got.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("expected property amount delta 12.5, got %s", got)
	}
	if dto.PropertyName != "Widgets" {
		t.Fatalf("expected property name projection, got %q", dto.PropertyName)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventTransactionRecorded {
		t.Fatalf("expected transaction_recorded event, got %+v", sink.events)
	}
}

func TestRecordValidation(t *testing.T) {
	userID := uuid.New()
	propertyRepo := newFakePropertyRepo(userID)
	svc := newTestService(t, &fakeRepository{}, propertyRepo, nil)

	tests := []struct {
		name  string
		input RecordTransactionInput
	}{
		{
			name: "missing property",
			input: RecordTransactionInput{
				Kind:         enums.TransactionKindStockIn,
				AmountChange: decimal.NewFromInt(1),
			},
		},
		{
			name: "invalid kind",
			input: RecordTransactionInput{
				PropertyID:   uuid.New(),
				Kind:         enums.TransactionKind("not_real"),
				AmountChange: decimal.NewFromInt(1),
			},
		},
		{
			name: "zero amount",
			input: RecordTransactionInput{
				PropertyID: uuid.New(),
				Kind:       enums.TransactionKindAdjustment,
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Record(context.Background(), userID, tc.input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRecordAgainstForeignPropertyIsNotFound(t *testing.T) {
	ownerID := uuid.New()
	propertyID := uuid.New()
	propertyRepo := newFakePropertyRepo(ownerID)
	propertyRepo.owned[propertyID] = &models.Property{ID: propertyID, UserID: ownerID, Name: "Widgets"}
	svc := newTestService(t, &fakeRepository{}, propertyRepo, nil)

	_, err := svc.Record(context.Background(), uuid.New(), RecordTransactionInput{
		PropertyID:   propertyID,
		Kind:         enums.TransactionKindStockOut,
		AmountChange: decimal.NewFromInt(-2),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestListFiltersByOwnedProperty(t *testing.T) {
	userID := uuid.New()
	propertyID := uuid.New()
	propertyRepo := newFakePropertyRepo(userID)
	propertyRepo.owned[propertyID] = &models.Property{ID: propertyID, UserID: userID, Name: "Widgets"}

	var gotFilter ListFilter
	var gotParams pagination.Params
	repo := &fakeRepository{
		listPageFn: func(ctx context.Context, uid uuid.UUID, filter ListFilter, params pagination.Params) ([]TransactionDTO, int64, error) {
			gotFilter = filter
			gotParams = params
			return []TransactionDTO{{ID: uuid.New(), PropertyID: propertyID, PropertyName: "Widgets"}}, 7, nil
		},
	}
	svc := newTestService(t, repo, propertyRepo, nil)

	page, err := svc.List(context.Background(), userID, ListFilter{PropertyID: &propertyID}, pagination.Params{Skip: 10, Limit: 0})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if gotFilter.PropertyID == nil || *gotFilter.PropertyID != propertyID {
		t.Fatal("expected filter to be forwarded")
	}
	if gotParams.Limit != 25 {
		t.Fatalf("expected zero limit to default to quota 25, got %d", gotParams.Limit)
	}
	if page.Total != 7 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestListUnresolvedFilterIsNotFound(t *testing.T) {
	userID := uuid.New()
	propertyRepo := newFakePropertyRepo(userID)
	svc := newTestService(t, &fakeRepository{}, propertyRepo, nil)

	ghost := uuid.New()
	_, err := svc.List(context.Background(), userID, ListFilter{PropertyID: &ghost}, pagination.Params{})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}
