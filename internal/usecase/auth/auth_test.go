package auth

import (
	"context"
	"errors"
	"testing"

	errs "ular_tangga/internal/errors"
)

type mapSessionStorage struct {
	sessions map[string]string
}

func newMapSessionStorage() *mapSessionStorage {
	return &mapSessionStorage{sessions: make(map[string]string)}
}

func (m *mapSessionStorage) GetNameBySession(ctx context.Context, sessionID string) (string, bool) {
	name, ok := m.sessions[sessionID]
	return name, ok
}

func (m *mapSessionStorage) StoreSession(ctx context.Context, sessionID, displayName string) {
	m.sessions[sessionID] = displayName
}

func (m *mapSessionStorage) DeleteSession(ctx context.Context, sessionID string) bool {
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	delete(m.sessions, sessionID)
	return true
}

func TestLoginGuestRoundTrip(t *testing.T) {
	uc := NewAuthUsecaseHandler(newMapSessionStorage())
	ctx := context.Background()

	sessionID, err := uc.LoginGuest(ctx, "  Ani  ")
	if err != nil {
		t.Fatalf("LoginGuest: %v", err)
	}
	if sessionID == "" {
		t.Fatal("empty session id")
	}

	name, ok := uc.WhoAmI(ctx, sessionID)
	if !ok || name != "Ani" {
		t.Fatalf("WhoAmI = (%q, %v), want (Ani, true)", name, ok)
	}
}

func TestLoginGuestRequiresName(t *testing.T) {
	uc := NewAuthUsecaseHandler(newMapSessionStorage())
	if _, err := uc.LoginGuest(context.Background(), "   "); !errors.Is(err, errs.ErrNameRequired) {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
}

func TestLogout(t *testing.T) {
	uc := NewAuthUsecaseHandler(newMapSessionStorage())
	ctx := context.Background()

	sessionID, err := uc.LoginGuest(ctx, "Budi")
	if err != nil {
		t.Fatalf("LoginGuest: %v", err)
	}
	if err := uc.LogoutUser(ctx, sessionID); err != nil {
		t.Fatalf("LogoutUser: %v", err)
	}
	if _, ok := uc.WhoAmI(ctx, sessionID); ok {
		t.Fatal("session survived logout")
	}
	if err := uc.LogoutUser(ctx, sessionID); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Fatalf("second logout err = %v, want ErrSessionNotFound", err)
	}
}
