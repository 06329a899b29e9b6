package invitations

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/stockbookhq/stockbook-backend/pkg/config"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	"github.com/stockbookhq/stockbook-backend/pkg/enums"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/outbox"
)

type fakeRepository struct {
	createFn      func(ctx context.Context, invitation *models.Invitation) error
	findByEmailFn func(ctx context.Context, email string) (*models.Invitation, error)
	updateFn      func(ctx context.Context, invitation *models.Invitation) error
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, invitation *models.Invitation) error {
	if f.createFn != nil {
		return f.createFn(ctx, invitation)
	}
	return nil
}

func (f *fakeRepository) FindByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	if f.findByEmailFn != nil {
		return f.findByEmailFn(ctx, email)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindExpiredAccepted(ctx context.Context, cutoff time.Time) ([]models.Invitation, error) {
	return nil, nil
}

func (f *fakeRepository) Update(ctx context.Context, invitation *models.Invitation) error {
	if f.updateFn != nil {
		return f.updateFn(ctx, invitation)
	}
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

func newTestService(t *testing.T, repo Repository, sink *capturingOutbox, cfg config.InvitesConfig) Service {
	t.Helper()
	var publisher outboxPublisher
	if sink != nil {
		publisher = sink
	}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     stubTxRunner{},
		Outbox: publisher,
		Config: cfg,
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestIssueGeneratesCode(t *testing.T) {
	var created *models.Invitation
	repo := &fakeRepository{
		createFn: func(ctx context.Context, invitation *models.Invitation) error {
			invitation.ID = uuid.New()
			created = invitation
			return nil
		},
	}
	svc := newTestService(t, repo, nil, config.InvitesConfig{CodeLength: 24})

	dto, err := svc.Issue(context.Background(), IssueInvitationInput{
		Email:    "  Invitee@Example.COM ",
		ClientIP: "203.0.113.9",
	})
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if created == nil {
		t.Fatal("expected invitation to be created")
	}
	if created.Email != "invitee@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if len(created.Code) != 24 {
		t.Fatalf("expected 24-char code, got %d chars", len(created.Code))
	}
	if created.ClientIP == nil || *created.ClientIP != "203.0.113.9" {
		t.Fatalf("expected client ip to be recorded")
	}
	if dto.Email != "invitee@example.com" || dto.IsAccepted {
		t.Fatalf("unexpected dto %+v", dto)
	}
}

func TestIssueRequiresEmail(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, config.InvitesConfig{})
	_, err := svc.Issue(context.Background(), IssueInvitationInput{Email: "   "})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAcceptOpensSessionWindow(t *testing.T) {
	invitation := &models.Invitation{
		ID:    uuid.New(),
		Email: "invitee@example.com",
		Code:  "secret-code",
	}
	var updated *models.Invitation
	repo := &fakeRepository{
		findByEmailFn: func(ctx context.Context, email string) (*models.Invitation, error) {
			return invitation, nil
		},
		updateFn: func(ctx context.Context, inv *models.Invitation) error {
			updated = inv
			return nil
		},
	}
	sink := &capturingOutbox{}
	svc := newTestService(t, repo, sink, config.InvitesConfig{SessionDuration: 48 * time.Hour})

	dto, err := svc.Accept(context.Background(), AcceptInvitationInput{
		Email: "invitee@example.com",
		Code:  "secret-code",
	})
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if updated == nil || !updated.IsAccepted {
		t.Fatal("expected invitation to be marked accepted")
	}
	if updated.TestSessionStartAt == nil {
		t.Fatal("expected session start to be set")
	}
	if updated.TestSessionExpireAt == nil {
		t.Fatal("expected bounded session expiry")
	}
	gotWindow := updated.TestSessionExpireAt.Sub(*updated.TestSessionStartAt)
	if gotWindow != 48*time.Hour {
		t.Fatalf("expected 48h window, got %s", gotWindow)
	}
	if !dto.IsAccepted {
		t.Fatalf("unexpected dto %+v", dto)
	}
	if len(sink.events) != 1 {
		t.Fatalf("expected one outbox event, got %d", len(sink.events))
	}
	if sink.events[0].EventType != enums.EventInvitationAccepted {
		t.Fatalf("unexpected event type %q", sink.events[0].EventType)
	}
	if sink.events[0].AggregateID != invitation.ID {
		t.Fatal("outbox event should reference the invitation")
	}
}

func TestAcceptUnboundedSessionNeverExpires(t *testing.T) {
	invitation := &models.Invitation{
		ID:    uuid.New(),
		Email: "invitee@example.com",
		Code:  "secret-code",
	}
	repo := &fakeRepository{
		findByEmailFn: func(ctx context.Context, email string) (*models.Invitation, error) {
			return invitation, nil
		},
	}
	svc := newTestService(t, repo, nil, config.InvitesConfig{SessionDuration: 0})

	dto, err := svc.Accept(context.Background(), AcceptInvitationInput{
		Email: "invitee@example.com",
		Code:  "secret-code",
	})
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if dto.TestSessionExpireAt != nil {
		t.Fatal("expected nil expiry for unbounded session")
	}
}

func TestAcceptIsIdempotent(t *testing.T) {
	start := time.Now().Add(-time.Hour)
	invitation := &models.Invitation{
		ID:                 uuid.New(),
		Email:              "invitee@example.com",
		Code:               "secret-code",
		IsAccepted:         true,
		TestSessionStartAt: &start,
	}
	updateCalled := false
	repo := &fakeRepository{
		findByEmailFn: func(ctx context.Context, email string) (*models.Invitation, error) {
			return invitation, nil
		},
		updateFn: func(ctx context.Context, inv *models.Invitation) error {
			updateCalled = true
			return nil
		},
	}
	sink := &capturingOutbox{}
	svc := newTestService(t, repo, sink, config.InvitesConfig{SessionDuration: time.Hour})

	dto, err := svc.Accept(context.Background(), AcceptInvitationInput{
		Email: "invitee@example.com",
		Code:  "secret-code",
	})
	if err != nil {
		t.Fatalf("Accept error: %v", err)
	}
	if updateCalled {
		t.Fatal("re-acceptance must not rewrite the invitation")
	}
	if len(sink.events) != 0 {
		t.Fatal("re-acceptance must not emit events")
	}
	if dto.TestSessionStartAt == nil || !dto.TestSessionStartAt.Equal(start) {
		t.Fatal("existing session window should be preserved")
	}
}

func TestAcceptRejectsWrongCode(t *testing.T) {
	repo := &fakeRepository{
		findByEmailFn: func(ctx context.Context, email string) (*models.Invitation, error) {
			return &models.Invitation{Email: email, Code: "right-code"}, nil
		},
	}
	svc := newTestService(t, repo, nil, config.InvitesConfig{})

	_, err := svc.Accept(context.Background(), AcceptInvitationInput{
		Email: "invitee@example.com",
		Code:  "wrong-code",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden error, got %v", err)
	}
}

func TestAcceptUnknownEmailIsNotFound(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, config.InvitesConfig{})
	_, err := svc.Accept(context.Background(), AcceptInvitationInput{
		Email: "ghost@example.com",
		Code:  "whatever",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestSessionActive(t *testing.T) {
	svc := newTestService(t, &fakeRepository{}, nil, config.InvitesConfig{})
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name       string
		invitation *models.Invitation
		want       bool
	}{
		{"nil invitation", nil, false},
		{"not accepted", &models.Invitation{}, false},
		{"accepted unbounded", &models.Invitation{IsAccepted: true}, true},
		{"accepted live window", &models.Invitation{IsAccepted: true, TestSessionExpireAt: &future}, true},
		{"accepted expired window", &models.Invitation{IsAccepted: true, TestSessionExpireAt: &past}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := svc.SessionActive(tc.invitation, now); got != tc.want {
				t.Fatalf("SessionActive = %v, want %v", got, tc.want)
			}
		})
	}
}
