package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/defensoria-civil/divorcios/internal/audit"
	"github.com/defensoria-civil/divorcios/internal/auth"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
	"github.com/defensoria-civil/divorcios/internal/shared/metrics"
)

// SessionHandler exposes the console session lifecycle.
type SessionHandler struct {
	store *session.Store
	mgr   *session.Manager
	rec   audit.Recorder
}

func NewSessionHandler(store *session.Store, mgr *session.Manager, rec audit.Recorder) *SessionHandler {
	return &SessionHandler{store: store, mgr: mgr, rec: rec}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Login)
	r.Get("/", h.Current)
	r.Delete("/", h.Logout)
	return r
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials with the backend and reports the
// identity plus its resolved capability set.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, errors.BadRequest("usuario y contraseña son obligatorios"))
		return
	}

	identity, err := h.mgr.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		metrics.RecordLogin("failed")
		h.rec.Record(r.Context(), audit.NewEntry(req.Username, "", audit.ActionLoginFailed, audit.ResourceSession, "", nil))
		writeError(w, err)
		return
	}

	metrics.RecordLogin("ok")
	h.rec.Record(r.Context(), audit.NewEntry(identity.Username, identity.Role, audit.ActionLogin, audit.ResourceSession, "", nil))

	writeJSON(w, http.StatusOK, map[string]any{
		"identity":    identity,
		"permissions": auth.Resolve(identity.Role),
	})
}

// Current reports the session snapshot and capability set.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	if snap.Status != session.StatusAuthenticated || snap.Identity == nil {
		writeError(w, errors.AuthFailure(""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":    snap.Identity,
		"permissions": auth.Resolve(snap.Identity.Role),
	})
}

// Logout tears the session down locally regardless of the backend
// call's outcome.
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	err := h.mgr.Logout(r.Context())
	if snap.Identity != nil {
		h.rec.Record(r.Context(), audit.NewEntry(snap.Identity.Username, snap.Identity.Role, audit.ActionLogout, audit.ResourceSession, "", nil))
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "sesión cerrada"})
}
