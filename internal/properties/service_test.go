package properties

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
	"github.com/stockbookhq/stockbook-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn     func(ctx context.Context, property *models.Property) error
	findOwnedFn  func(ctx context.Context, userID, propertyID uuid.UUID) (*models.Property, error)
	listPageFn   func(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Property, int64, error)
	softDeleteFn func(ctx context.Context, propertyID uuid.UUID) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, property *models.Property) error {
	if f.createFn != nil {
		return f.createFn(ctx, property)
	}
	return nil
}

func (f *fakeRepository) FindOwned(ctx context.Context, userID, propertyID uuid.UUID) (*models.Property, error) {
	if f.findOwnedFn != nil {
		return f.findOwnedFn(ctx, userID, propertyID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListPage(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Property, int64, error) {
	if f.listPageFn != nil {
		return f.listPageFn(ctx, userID, params)
	}
	return nil, 0, nil
}

func (f *fakeRepository) SoftDelete(ctx context.Context, propertyID uuid.UUID) error {
	if f.softDeleteFn != nil {
		return f.softDeleteFn(ctx, propertyID)
	}
	return nil
}

func (f *fakeRepository) AdjustAmount(ctx context.Context, propertyID uuid.UUID, delta decimal.Decimal) error {
	return nil
}

type stubTxRunner struct {
	err error
}

func (s stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if err := fn(&gorm.DB{}); err != nil {
		return err
	}
	return s.err
}

type fakeSweeper struct {
	swept []uuid.UUID
	err   error
	rows  int64
}

func (f *fakeSweeper) SoftDeleteByProperty(tx *gorm.DB, propertyID uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.swept = append(f.swept, propertyID)
	return f.rows, nil
}

type capturingOutbox struct {
	events []outbox.DomainEvent
}

func (c *capturingOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	c.events = append(c.events, event)
	return nil
}

func newTestService(t *testing.T, repo Repository, tx txRunner, sweeper ledgerSweeper, sink *capturingOutbox) Service {
	t.Helper()
	if tx == nil {
		tx = stubTxRunner{}
	}
	if sweeper == nil {
		sweeper = &fakeSweeper{}
	}
	var publisher outboxPublisher
	if sink != nil {
		publisher = sink
	}
	svc, err := NewService(ServiceParams{
		Repo:        repo,
		Tx:          tx,
		Ledger:      sweeper,
		Outbox:      publisher,
		MaxPageSize: 50,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestCreateProperty(t *testing.T) {
	userID := uuid.New()
	var created *models.Property
	repo := &fakeRepository{
		createFn: func(ctx context.Context, property *models.Property) error {
			property.ID = uuid.New()
			created = property
			return nil
		},
	}
	sink := &capturingOutbox{}
	svc := newTestService(t, repo, nil, nil, sink)

	desc := "  main warehouse shelf  "
	dto, err := svc.Create(context.Background(), userID, CreatePropertyInput{
		Name:        "  Widgets  ",
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created == nil {
		t.Fatal("expected property to be created")
	}
	if created.Name != "Widgets" {
		t.Fatalf("expected trimmed name, got %q", created.Name)
	}
	if created.Description == nil || *created.Description != "main warehouse shelf" {
		t.Fatal("expected trimmed description")
	}
	if created.UserID != userID {
		t.Fatal("property must be bound to its owner")
	}
	if dto.Name != "Widgets" {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventPropertyCreated {
		t.Fatalf("expected property_created event, got %+v", sink.events)
	}
}

func TestCreatePropertyAmountStartsAtZero(t *testing.T) {
	var created *models.Property
	repo := &fakeRepository{
		createFn: func(ctx context.Context, property *models.Property) error {
			property.ID = uuid.New()
			created = property
			return nil
		},
	}
	svc := newTestService(t, repo, nil, nil, nil)

	stock := decimal.NewFromInt(25)
	dto, err := svc.Create(context.Background(), uuid.New(), CreatePropertyInput{
		Name:          "Widgets",
		AmountInStock: &stock,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created == nil || !created.Amount.IsZero() {
		t.Fatalf("expected persisted amount to start at zero, got %+v", created)
	}
	if !dto.Amount.IsZero() {
		t.Fatalf("expected dto amount zero, got %s", dto.Amount)
	}
	if dto.AmountInStock == nil || !dto.AmountInStock.Equal(stock) {
		t.Fatalf("expected amount_in_stock %s carried through, got %+v", stock, dto.AmountInStock)
	}
}

func TestCreatePropertyDuplicateNameIsConflict(t *testing.T) {
	repo := &fakeRepository{
		createFn: func(ctx context.Context, property *models.Property) error {
			return &pgconn.PgError{Code: "23505", ConstraintName: activeNameConstraint}
		},
	}
	svc := newTestService(t, repo, nil, nil, nil)

	_, err := svc.Create(context.Background(), uuid.New(), CreatePropertyInput{Name: "Widgets"})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestCreatePropertyValidation(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, nil, nil)

	if _, err := svc.Create(context.Background(), uuid.Nil, CreatePropertyInput{Name: "x"}); err == nil {
		t.Fatal("expected error for missing user")
	}
	if _, err := svc.Create(context.Background(), uuid.New(), CreatePropertyInput{Name: "   "}); err == nil {
		t.Fatal("expected error for blank name")
	}
}

func TestListClampsPagination(t *testing.T) {
	userID := uuid.New()
	var gotParams pagination.Params
	repo := &fakeRepository{
		listPageFn: func(ctx context.Context, uid uuid.UUID, params pagination.Params) ([]models.Property, int64, error) {
			gotParams = params
			return []models.Property{{ID: uuid.New(), UserID: uid, Name: "a"}}, 120, nil
		},
	}
	svc := newTestService(t, repo, nil, nil, nil)

	page, err := svc.List(context.Background(), userID, pagination.Params{Skip: -5, Limit: 500})
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if gotParams.Skip != 0 {
		t.Fatalf("expected skip clamped to 0, got %d", gotParams.Skip)
	}
	if gotParams.Limit != 50 {
		t.Fatalf("expected limit clamped to quota 50, got %d", gotParams.Limit)
	}
	if page.Total != 120 || len(page.Items) != 1 {
		t.Fatalf("unexpected page %+v", page)
	}
}

func TestRemoveCascadesAtomically(t *testing.T) {
	userID := uuid.New()
	propertyID := uuid.New()
	property := &models.Property{ID: propertyID, UserID: userID, Name: "Widgets"}

	softDeleted := false
	repo := &fakeRepository{
		findOwnedFn: func(ctx context.Context, uid, pid uuid.UUID) (*models.Property, error) {
			if uid == userID && pid == propertyID {
				return property, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
		softDeleteFn: func(ctx context.Context, pid uuid.UUID) error {
			softDeleted = true
			return nil
		},
	}
	sweeper := &fakeSweeper{rows: 3}
	sink := &capturingOutbox{}
	svc := newTestService(t, repo, nil, sweeper, sink)

	removed, err := svc.Remove(context.Background(), userID, propertyID)
	if err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if !softDeleted {
		t.Fatal("expected property to be soft-deleted")
	}
	if len(sweeper.swept) != 1 || sweeper.swept[0] != propertyID {
		t.Fatal("expected attached transactions to be swept")
	}
	if len(sink.events) != 1 || sink.events[0].EventType != enums.EventPropertyRemoved {
		t.Fatalf("expected property_removed event, got %+v", sink.events)
	}
	if removed.ID != propertyID || !removed.IsDeleted {
		t.Fatalf("expected the soft-deleted projection back, got %+v", removed)
	}
	event, ok := sink.events[0].Data.(PropertyDTO)
	if !ok || !event.IsDeleted {
		t.Fatalf("expected event payload to carry the deleted state, got %+v", sink.events[0].Data)
	}
}

func TestRemoveUnknownPropertyIsNotFound(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, nil, nil)
	_, err := svc.Remove(context.Background(), uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestRemoveOtherOwnersPropertyIsNotFound(t *testing.T) {
	ownerID := uuid.New()
	propertyID := uuid.New()
	repo := &fakeRepository{
		findOwnedFn: func(ctx context.Context, uid, pid uuid.UUID) (*models.Property, error) {
			if uid == ownerID {
				return &models.Property{ID: pid, UserID: ownerID}, nil
			}
			return nil, gorm.ErrRecordNotFound
		},
	}
	svc := newTestService(t, repo, nil, nil, nil)

	_, err := svc.Remove(context.Background(), uuid.New(), propertyID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign owner, got %v", err)
	}
}

func TestRemoveCommitFailureIsDependency(t *testing.T) {
	userID := uuid.New()
	propertyID := uuid.New()
	repo := &fakeRepository{
		findOwnedFn: func(ctx context.Context, uid, pid uuid.UUID) (*models.Property, error) {
			return &models.Property{ID: pid, UserID: uid}, nil
		},
	}
	svc := newTestService(t, repo, stubTxRunner{err: errors.New("commit failed")}, nil, nil)

	_, err := svc.Remove(context.Background(), userID, propertyID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestRemoveSweepFailureRollsUp(t *testing.T) {
	userID := uuid.New()
	propertyID := uuid.New()
	repo := &fakeRepository{
		findOwnedFn: func(ctx context.Context, uid, pid uuid.UUID) (*models.Property, error) {
			return &models.Property{ID: pid, UserID: uid}, nil
		},
	}
	sweeper := &fakeSweeper{err: errors.New("sweep failed")}
	svc := newTestService(t, repo, nil, sweeper, nil)

	_, err := svc.Remove(context.Background(), userID, propertyID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}
