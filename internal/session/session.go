// Package session holds the console's authenticated identity and
// bearer credential. The store is the only shared mutable state in the
// console; it is written exclusively by the login and logout
// transitions and read everywhere else.
package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/defensoria-civil/divorcios/internal/auth"
)

// Status is the authentication lifecycle state.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusLoading         Status = "loading"
	StatusAuthenticated   Status = "authenticated"
)

// Identity is the backend-issued view of the current user.
type Identity struct {
	ID       int       `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	Role     auth.Role `json:"role"`
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	Status   Status    `json:"status"`
	Identity *Identity `json:"identity,omitempty"`
}

// Store holds the current session. Zero value is an unauthenticated
// store ready for use.
type Store struct {
	mu       sync.RWMutex
	status   Status
	identity *Identity
	token    string
}

func NewStore() *Store {
	return &Store{status: StatusUnauthenticated}
}

// BeginLogin marks the session as loading while credentials are being
// exchanged with the backend.
func (s *Store) BeginLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusLoading
}

// Establish installs the identity and bearer token after a successful
// login.
func (s *Store) Establish(identity Identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := identity
	s.identity = &id
	s.token = token
	s.status = StatusAuthenticated
}

// Clear tears the session down. Used by logout and by any component
// that observes an auth failure.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.token = ""
	s.status = StatusUnauthenticated
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Status: s.status}
	if s.identity != nil {
		id := *s.identity
		snap.Identity = &id
	}
	return snap
}

// Token returns the bearer credential, or "" when unauthenticated.
// Implements the backend client's TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// CurrentRole returns the authenticated role, if any.
func (s *Store) CurrentRole() (auth.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusAuthenticated || s.identity == nil {
		return "", false
	}
	return s.identity.Role, true
}

// Authenticated reports whether a usable session exists. A token whose
// exp claim has passed counts as expired even before the backend
// rejects it.
func (s *Store) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusAuthenticated || s.token == "" {
		return false
	}
	return !tokenExpired(s.token)
}

// tokenExpired inspects the JWT exp claim without verifying the
// signature. The backend is the verifier; the console only wants to
// stop sending requests it knows will 401.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		// Opaque (non-JWT) tokens cannot be inspected; let the
		// backend decide.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
