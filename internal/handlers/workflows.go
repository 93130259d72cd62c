package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/defensoria-civil/divorcios/internal/audit"
	"github.com/defensoria-civil/divorcios/internal/backend"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
	"github.com/defensoria-civil/divorcios/internal/shared/metrics"
	"github.com/defensoria-civil/divorcios/internal/workflow"
)

// Registry tracks the live workflow controllers of this console
// instance, keyed by workflow id.
type Registry struct {
	mu    sync.Mutex
	items map[uuid.UUID]*workflow.Controller
}

func NewRegistry() *Registry {
	return &Registry{items: make(map[uuid.UUID]*workflow.Controller)}
}

func (r *Registry) Put(c *workflow.Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[c.ID()] = c
}

func (r *Registry) Get(id uuid.UUID) (*workflow.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	return c, ok
}

func (r *Registry) Remove(id uuid.UUID) (*workflow.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.items[id]
	if ok {
		delete(r.items, id)
	}
	return c, ok
}

// CloseAll disposes every live controller. Used on session teardown
// and shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.items {
		c.Close()
		delete(r.items, id)
	}
}

// WorkflowHandler drives the petition generation workflow over HTTP.
type WorkflowHandler struct {
	registry *Registry
	client   *backend.Client
	store    *session.Store
	mgr      *session.Manager
	rec      audit.Recorder
}

func NewWorkflowHandler(registry *Registry, client *backend.Client, store *session.Store, mgr *session.Manager, rec audit.Recorder) *WorkflowHandler {
	return &WorkflowHandler{registry: registry, client: client, store: store, mgr: mgr, rec: rec}
}

func (h *WorkflowHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}/fields/{key}", h.SetField)
	r.Post("/{id}/generate", h.Generate)
	r.Get("/{id}/document", h.Document)
	r.Post("/{id}/download", h.Download)
	r.Post("/{id}/edit", h.Edit)
	r.Delete("/{id}", h.Delete)
	return r
}

type createWorkflowRequest struct {
	CaseID int `json:"case_id"`
}

// Create opens a workflow for a case and runs the initial validation.
func (h *WorkflowHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWorkflowRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctrl, err := workflow.New(req.CaseID, h.client)
	if err != nil {
		writeError(w, err)
		return
	}
	h.registry.Put(ctrl)
	metrics.RecordWorkflowStarted()
	h.audit(r, audit.ActionWorkflowStarted, audit.ResourceCase, strconv.Itoa(req.CaseID), nil)

	if err := ctrl.Start(r.Context()); err != nil {
		h.handleWorkflowError(r, ctrl, err)
	}
	writeJSON(w, http.StatusCreated, ctrl.Snapshot())
}

// Get returns the current workflow snapshot.
func (h *WorkflowHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

type setFieldRequest struct {
	Value string `json:"value"`
}

// SetField stores one typed field value in the input buffer.
func (h *WorkflowHandler) SetField(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req setFieldRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := ctrl.SetFieldValue(chi.URLParam(r, "key"), req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// Generate persists the typed values and requests the petition.
func (h *WorkflowHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := ctrl.ConfirmAndGenerate(r.Context()); err != nil {
		h.handleWorkflowError(r, ctrl, err)
		writeError(w, err)
		return
	}
	snap := ctrl.Snapshot()
	if snap.State == workflow.StatePreview {
		metrics.RecordPetitionGenerated()
		h.audit(r, audit.ActionPetitionGenerated, audit.ResourceDocument, strconv.Itoa(ctrl.CaseID()), nil)
	}
	writeJSON(w, http.StatusOK, snap)
}

// Document streams the generated PDF for in-console preview.
func (h *WorkflowHandler) Document(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	data, err := ctrl.Preview()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Download serves the PDF as an attachment and marks the workflow
// as completed.
func (h *WorkflowHandler) Download(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	data, filename, err := ctrl.ConfirmDownload()
	if err != nil {
		writeError(w, err)
		return
	}
	metrics.RecordPetitionDownloaded()
	h.audit(r, audit.ActionPetitionDownload, audit.ResourceDocument, strconv.Itoa(ctrl.CaseID()), map[string]any{"filename": filename})

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Edit discards the preview and reopens the input form.
func (h *WorkflowHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := ctrl.EditAgain(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ctrl.Snapshot())
}

// Delete closes the workflow and releases its document.
func (h *WorkflowHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("identificador de flujo inválido"))
		return
	}
	ctrl, ok := h.registry.Remove(id)
	if !ok {
		writeError(w, errors.NotFound("flujo de trabajo", id.String()))
		return
	}
	ctrl.Close()
	writeJSON(w, http.StatusOK, map[string]string{"message": "flujo cerrado"})
}

func (h *WorkflowHandler) lookup(w http.ResponseWriter, r *http.Request) (*workflow.Controller, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.BadRequest("identificador de flujo inválido"))
		return nil, false
	}
	ctrl, ok := h.registry.Get(id)
	if !ok {
		writeError(w, errors.NotFound("flujo de trabajo", id.String()))
		return nil, false
	}
	return ctrl, true
}

// handleWorkflowError records failure metrics and, on an auth
// failure, tears the whole session down.
func (h *WorkflowHandler) handleWorkflowError(r *http.Request, ctrl *workflow.Controller, err error) {
	snap := ctrl.Snapshot()
	if snap.Error != nil {
		metrics.RecordWorkflowFailure(string(snap.Error.Stage))
		h.audit(r, audit.ActionWorkflowFailed, audit.ResourceCase, strconv.Itoa(ctrl.CaseID()), map[string]any{"stage": string(snap.Error.Stage)})
	}
	if stderrors.Is(err, errors.ErrAuth) || ctrl.AuthFailed() {
		h.registry.CloseAll()
		h.mgr.HandleAuthFailure()
	}
}

func (h *WorkflowHandler) audit(r *http.Request, action, resource, resourceID string, details map[string]any) {
	snap := h.store.Snapshot()
	if snap.Identity == nil {
		return
	}
	h.rec.Record(r.Context(), audit.NewEntry(snap.Identity.Username, snap.Identity.Role, action, resource, resourceID, details))
}
