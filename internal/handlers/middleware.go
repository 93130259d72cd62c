package handlers

import (
	"net/http"

	"github.com/defensoria-civil/divorcios/internal/auth"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
)

// DefaultPage is where unauthorized navigation is redirected instead
// of rendering a restricted view.
const DefaultPage = "/dashboard"

// RequireAuth rejects requests without a usable session.
func RequireAuth(store *session.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.Authenticated() {
				writeError(w, errors.AuthFailure(""))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCapability guards a route behind a capability of the current
// role. Denials carry the default-page redirect hint so the frontend
// navigates away rather than rendering the restricted view.
func RequireCapability(store *session.Store, cap auth.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := store.CurrentRole()
			if !ok {
				writeError(w, errors.AuthFailure(""))
				return
			}
			if !auth.HasCapability(role, cap) {
				appErr := errors.Forbidden("el rol " + string(role) + " no permite esta acción")
				appErr.Details = map[string]string{"redirect": DefaultPage}
				writeError(w, appErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
