package session

import (
	"context"
	"errors"
	"testing"

	"github.com/defensoria-civil/divorcios/internal/auth"
	apperrors "github.com/defensoria-civil/divorcios/internal/shared/errors"
)

type fakeAuthService struct {
	result     *LoginResult
	loginErr   error
	logoutErr  error
	loginCalls int
}

func (f *fakeAuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.result, nil
}

func (f *fakeAuthService) Logout(ctx context.Context) error {
	return f.logoutErr
}

func testIdentity() Identity {
	return Identity{ID: 7, Username: "mgarcia", Email: "mgarcia@defensoria.gob.ar", FullName: "María García", Role: auth.RoleOperador}
}

func TestLoginEstablishesSession(t *testing.T) {
	store := NewStore()
	svc := &fakeAuthService{result: &LoginResult{AccessToken: "tok-abc", TokenType: "bearer", User: testIdentity()}}
	mgr := NewManager(store, svc)

	id, err := mgr.Login(context.Background(), "mgarcia", "secreto")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if id.Username != "mgarcia" {
		t.Errorf("identity username = %q", id.Username)
	}

	snap := store.Snapshot()
	if snap.Status != StatusAuthenticated {
		t.Errorf("status = %s, want %s", snap.Status, StatusAuthenticated)
	}
	if snap.Identity == nil || snap.Identity.Role != auth.RoleOperador {
		t.Errorf("identity not installed: %+v", snap.Identity)
	}
	if store.Token() != "tok-abc" {
		t.Errorf("token = %q", store.Token())
	}

	role, ok := store.CurrentRole()
	if !ok || role != auth.RoleOperador {
		t.Errorf("CurrentRole = %s, %v", role, ok)
	}
}

func TestLoginFailureClearsSession(t *testing.T) {
	store := NewStore()
	svc := &fakeAuthService{loginErr: apperrors.AuthFailure("")}
	mgr := NewManager(store, svc)

	if _, err := mgr.Login(context.Background(), "mgarcia", "mal"); err == nil {
		t.Fatal("expected error")
	}
	if snap := store.Snapshot(); snap.Status != StatusUnauthenticated || snap.Identity != nil {
		t.Errorf("session not cleared after failed login: %+v", snap)
	}
	if store.Token() != "" {
		t.Error("token retained after failed login")
	}
}

func TestLoginRejectsUnknownRole(t *testing.T) {
	store := NewStore()
	user := testIdentity()
	user.Role = auth.Role("pasante")
	svc := &fakeAuthService{result: &LoginResult{AccessToken: "tok", User: user}}
	mgr := NewManager(store, svc)

	_, err := mgr.Login(context.Background(), "mgarcia", "secreto")
	if !errors.Is(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if store.Snapshot().Status != StatusUnauthenticated {
		t.Error("session should remain unauthenticated")
	}
}

func TestLogoutClearsEvenOnBackendError(t *testing.T) {
	store := NewStore()
	svc := &fakeAuthService{result: &LoginResult{AccessToken: "tok", User: testIdentity()}, logoutErr: apperrors.NetworkFailure(errors.New("conexión rechazada"))}
	mgr := NewManager(store, svc)

	if _, err := mgr.Login(context.Background(), "mgarcia", "secreto"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := mgr.Logout(context.Background()); err == nil {
		t.Fatal("expected logout error to propagate")
	}
	if store.Snapshot().Status != StatusUnauthenticated {
		t.Error("session not cleared on logout")
	}
}

func TestHandleAuthFailureTearsDown(t *testing.T) {
	store := NewStore()
	store.Establish(testIdentity(), "tok")
	mgr := NewManager(store, &fakeAuthService{})

	mgr.HandleAuthFailure()
	if store.Authenticated() {
		t.Error("expected unauthenticated after auth failure")
	}
}

func TestAuthenticatedWithOpaqueToken(t *testing.T) {
	store := NewStore()
	if store.Authenticated() {
		t.Error("empty store should not be authenticated")
	}

	// Opaque tokens cannot be inspected for expiry and are trusted
	// until the backend rejects them.
	store.Establish(testIdentity(), "opaque-token")
	if !store.Authenticated() {
		t.Error("opaque token should count as authenticated")
	}
}

func TestExpiredJWTNotAuthenticated(t *testing.T) {
	// header {"alg":"none"} . claims {"exp": 1000000000} . empty sig
	expired := "eyJhbGciOiJub25lIn0.eyJleHAiOjEwMDAwMDAwMDB9."
	store := NewStore()
	store.Establish(testIdentity(), expired)
	if store.Authenticated() {
		t.Error("expired token should not count as authenticated")
	}
}
