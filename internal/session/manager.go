package session

import (
	"context"

	"github.com/defensoria-civil/divorcios/internal/auth"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
)

// AuthService is the backend's session provider.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*LoginResult, error)
	Logout(ctx context.Context) error
}

// LoginResult mirrors the backend login response.
type LoginResult struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        Identity `json:"user"`
}

// Manager drives the session lifecycle against the backend. All writes
// to the store happen through Login and Logout.
type Manager struct {
	store *Store
	svc   AuthService
}

func NewManager(store *Store, svc AuthService) *Manager {
	return &Manager{store: store, svc: svc}
}

// Login exchanges credentials with the backend and establishes the
// session. On any failure the store returns to unauthenticated.
func (m *Manager) Login(ctx context.Context, username, password string) (*Identity, error) {
	m.store.BeginLogin()

	res, err := m.svc.Login(ctx, username, password)
	if err != nil {
		m.store.Clear()
		return nil, err
	}
	if !auth.ValidRole(res.User.Role) {
		m.store.Clear()
		return nil, errors.AuthFailure("el backend devolvió un rol desconocido: " + string(res.User.Role))
	}

	m.store.Establish(res.User, res.AccessToken)
	id := res.User
	return &id, nil
}

// Logout notifies the backend and tears the session down. The local
// teardown happens even when the backend call fails.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.svc.Logout(ctx)
	m.store.Clear()
	return err
}

// HandleAuthFailure clears the session in response to a 401 observed
// anywhere in the console.
func (m *Manager) HandleAuthFailure() {
	m.store.Clear()
}
