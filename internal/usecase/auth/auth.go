package auth

import (
	"context"
	"strings"

	"ular_tangga/internal/errors"
	"ular_tangga/internal/random"
)

// SessionStorage keeps the session-id to display-name mapping; the Redis
// repository implements it.
type SessionStorage interface {
	GetNameBySession(ctx context.Context, sessionID string) (string, bool)
	StoreSession(ctx context.Context, sessionID, displayName string)
	DeleteSession(ctx context.Context, sessionID string) bool
}

// AuthUsecaseHandler is a guest identity provider: players pick a display
// name and get a session cookie, no password involved.
type AuthUsecaseHandler struct {
	sessionStorage SessionStorage
}

func NewAuthUsecaseHandler(s SessionStorage) *AuthUsecaseHandler {
	return &AuthUsecaseHandler{sessionStorage: s}
}

func (a *AuthUsecaseHandler) LoginGuest(ctx context.Context, displayName string) (sessionID string, err error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return "", errors.ErrNameRequired
	}
	sessionID = random.RandString(64)
	a.sessionStorage.StoreSession(ctx, sessionID, displayName)
	return sessionID, nil
}

func (a *AuthUsecaseHandler) WhoAmI(ctx context.Context, sessionID string) (string, bool) {
	return a.sessionStorage.GetNameBySession(ctx, sessionID)
}

// LogoutUser returns ErrSessionNotFound when there is nothing to log out.
func (a *AuthUsecaseHandler) LogoutUser(ctx context.Context, sessionID string) error {
	if _, ok := a.sessionStorage.GetNameBySession(ctx, sessionID); !ok {
		return errors.ErrSessionNotFound
	}
	if ok := a.sessionStorage.DeleteSession(ctx, sessionID); !ok {
		return errors.ErrSessionNotFound
	}
	return nil
}
