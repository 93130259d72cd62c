package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/defensoria-civil/divorcios/internal/audit"
	"github.com/defensoria-civil/divorcios/internal/auth"
	"github.com/defensoria-civil/divorcios/internal/backend"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
)

// UserHandler proxies user administration to the backend. Each
// operation carries its own capability gate since admins hold the
// full set while supervisors hold none of these.
type UserHandler struct {
	client *backend.Client
	store  *session.Store
	rec    audit.Recorder
}

func NewUserHandler(client *backend.Client, store *session.Store, rec audit.Recorder) *UserHandler {
	return &UserHandler{client: client, store: store, rec: rec}
}

func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(RequireCapability(h.store, auth.CapViewUsers)).Get("/", h.List)
	r.With(RequireCapability(h.store, auth.CapCreateUsers)).Post("/", h.Create)
	r.With(RequireCapability(h.store, auth.CapEditUsers)).Patch("/{id}", h.Update)
	r.With(RequireCapability(h.store, auth.CapDeleteUsers)).Delete("/{id}", h.Delete)
	return r
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.client.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req backend.CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.client.CreateUser(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, audit.ActionUserCreated, strconv.Itoa(user.ID), map[string]any{"username": user.Username})
	writeJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("identificador de usuario inválido"))
		return
	}
	var req backend.UpdateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.client.UpdateUser(r.Context(), id, req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, audit.ActionUserUpdated, strconv.Itoa(id), nil)
	writeJSON(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("identificador de usuario inválido"))
		return
	}
	if err := h.client.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	h.audit(r, audit.ActionUserDeleted, strconv.Itoa(id), nil)
	writeJSON(w, http.StatusOK, map[string]string{"message": "usuario eliminado"})
}

func (h *UserHandler) audit(r *http.Request, action, resourceID string, details map[string]any) {
	snap := h.store.Snapshot()
	if snap.Identity == nil {
		return
	}
	h.rec.Record(r.Context(), audit.NewEntry(snap.Identity.Username, snap.Identity.Role, action, audit.ResourceUser, resourceID, details))
}
