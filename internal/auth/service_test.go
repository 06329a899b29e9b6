package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgAuth "github.com/stockbookhq/stockbook-backend/pkg/auth"
	"github.com/stockbookhq/stockbook-backend/pkg/auth/session"
	"github.com/stockbookhq/stockbook-backend/pkg/config"
	"github.com/stockbookhq/stockbook-backend/pkg/db/models"
	pkgerrors "github.com/stockbookhq/stockbook-backend/pkg/errors"
	"github.com/stockbookhq/stockbook-backend/pkg/security"
)

type fakeUserRepo struct {
	users     map[string]*models.User
	lastLogin map[uuid.UUID]time.Time
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:     map[string]*models.User{},
		lastLogin: map[uuid.UUID]time.Time{},
	}
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.lastLogin[id] = at
	return nil
}

type fakeInvitationGate struct {
	invitations map[string]*models.Invitation
}

func (f *fakeInvitationGate) GetByEmail(ctx context.Context, email string) (*models.Invitation, error) {
	invitation, ok := f.invitations[email]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "invitation not found")
	}
	return invitation, nil
}

func (f *fakeInvitationGate) SessionActive(invitation *models.Invitation, now time.Time) bool {
	if invitation == nil || !invitation.IsAccepted {
		return false
	}
	if invitation.TestSessionExpireAt == nil {
		return true
	}
	return now.Before(*invitation.TestSessionExpireAt)
}

type fakeSessionManager struct {
	sessions map[string]string
	rotated  int
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: map[string]string{}}
}

func (f *fakeSessionManager) Generate(ctx context.Context, accessID string) (string, error) {
	token := "refresh-" + accessID
	f.sessions[accessID] = token
	return token, nil
}

func (f *fakeSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := f.sessions[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(f.sessions, oldAccessID)
	f.rotated++
	newAccessID := session.NewAccessID()
	token := "refresh-" + newAccessID
	f.sessions[newAccessID] = token
	return newAccessID, token, nil
}

func (f *fakeSessionManager) Revoke(ctx context.Context, accessID string) error {
	delete(f.sessions, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "stockbook-test",
		ExpirationMinutes: 15,
	}
}

func seedUser(t *testing.T, repo *fakeUserRepo, email, password string) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, config.PasswordConfig{})
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
	}
	repo.users[email] = user
	return user
}

func acceptedInvitation(expireAt *time.Time) *models.Invitation {
	start := time.Now().Add(-time.Hour)
	return &models.Invitation{
		ID:                  uuid.New(),
		IsAccepted:          true,
		TestSessionStartAt:  &start,
		TestSessionExpireAt: expireAt,
	}
}

func newTestService(t *testing.T, userRepo *fakeUserRepo, gate *fakeInvitationGate, sessions *fakeSessionManager) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		UserRepo:       userRepo,
		Invitations:    gate,
		SessionManager: sessions,
		JWTConfig:      testJWTConfig(),
	})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestLoginIssuesTokenPair(t *testing.T) {
	userRepo := newFakeUserRepo()
	user := seedUser(t, userRepo, "invitee@example.com", "correct horse")
	gate := &fakeInvitationGate{invitations: map[string]*models.Invitation{
		"invitee@example.com": acceptedInvitation(nil),
	}}
	sessions := newFakeSessionManager()
	svc := newTestService(t, userRepo, gate, sessions)

	resp, err := svc.Login(context.Background(), LoginRequest{
		Email:    " Invitee@Example.com ",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Fatal("expected token pair")
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.UserID != user.ID {
		t.Fatal("token should carry the user id")
	}
	if _, ok := sessions.sessions[claims.ID]; !ok {
		t.Fatal("refresh session should be stored under the token jti")
	}
	if _, ok := userRepo.lastLogin[user.ID]; !ok {
		t.Fatal("last login should be recorded")
	}
	if resp.User.Email != "invitee@example.com" {
		t.Fatalf("unexpected user projection %+v", resp.User)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	userRepo := newFakeUserRepo()
	seedUser(t, userRepo, "invitee@example.com", "correct horse")
	gate := &fakeInvitationGate{invitations: map[string]*models.Invitation{
		"invitee@example.com": acceptedInvitation(nil),
	}}
	svc := newTestService(t, userRepo, gate, newFakeSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "invitee@example.com",
		Password: "battery staple",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLoginRejectsExpiredSessionWindow(t *testing.T) {
	userRepo := newFakeUserRepo()
	seedUser(t, userRepo, "invitee@example.com", "correct horse")
	expired := time.Now().Add(-time.Minute)
	gate := &fakeInvitationGate{invitations: map[string]*models.Invitation{
		"invitee@example.com": acceptedInvitation(&expired),
	}}
	svc := newTestService(t, userRepo, gate, newFakeSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "invitee@example.com",
		Password: "correct horse",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestLoginRejectsUninvitedUser(t *testing.T) {
	userRepo := newFakeUserRepo()
	seedUser(t, userRepo, "stray@example.com", "correct horse")
	gate := &fakeInvitationGate{invitations: map[string]*models.Invitation{}}
	svc := newTestService(t, userRepo, gate, newFakeSessionManager())

	_, err := svc.Login(context.Background(), LoginRequest{
		Email:    "stray@example.com",
		Password: "correct horse",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestRefreshRotatesSession(t *testing.T) {
	userRepo := newFakeUserRepo()
	seedUser(t, userRepo, "invitee@example.com", "correct horse")
	gate := &fakeInvitationGate{invitations: map[string]*models.Invitation{
		"invitee@example.com": acceptedInvitation(nil),
	}}
	sessions := newFakeSessionManager()
	svc := newTestService(t, userRepo, gate, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "invitee@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	resp, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	})
	if err != nil {
		t.Fatalf("Refresh error: %v", err)
	}
	if sessions.rotated != 1 {
		t.Fatal("expected one rotation")
	}
	if resp.AccessToken == login.AccessToken || resp.RefreshToken == login.RefreshToken {
		t.Fatal("expected fresh token pair")
	}

	// The old pair is dead after rotation.
	if _, err := svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: login.RefreshToken,
	}); err == nil {
		t.Fatal("expected replayed refresh to fail")
	}
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	userRepo := newFakeUserRepo()
	seedUser(t, userRepo, "invitee@example.com", "correct horse")
	gate := &fakeInvitationGate{invitations: map[string]*models.Invitation{
		"invitee@example.com": acceptedInvitation(nil),
	}}
	sessions := newFakeSessionManager()
	svc := newTestService(t, userRepo, gate, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "invitee@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{
		AccessToken:  login.AccessToken,
		RefreshToken: "forged",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	userRepo := newFakeUserRepo()
	seedUser(t, userRepo, "invitee@example.com", "correct horse")
	gate := &fakeInvitationGate{invitations: map[string]*models.Invitation{
		"invitee@example.com": acceptedInvitation(nil),
	}}
	sessions := newFakeSessionManager()
	svc := newTestService(t, userRepo, gate, sessions)

	login, err := svc.Login(context.Background(), LoginRequest{
		Email:    "invitee@example.com",
		Password: "correct horse",
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWTConfig(), login.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("Logout error: %v", err)
	}
	if _, ok := sessions.sessions[claims.ID]; ok {
		t.Fatal("session should be revoked")
	}
}
