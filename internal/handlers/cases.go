package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/defensoria-civil/divorcios/internal/backend"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
)

// CaseHandler exposes the backend case listing for the console.
type CaseHandler struct {
	client *backend.Client
	store  *session.Store
}

func NewCaseHandler(client *backend.Client, store *session.Store) *CaseHandler {
	return &CaseHandler{client: client, store: store}
}

func (h *CaseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	return r
}

func (h *CaseHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.client.ListCases(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *CaseHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		writeError(w, errors.BadRequest("identificador de caso inválido"))
		return
	}
	c, err := h.client.GetCase(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
