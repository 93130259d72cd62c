// Package workflow drives the petition generation sequence for one
// case: completeness validation, collection of missing fields, a single
// combined persist, document generation, preview and download. One
// Controller exists per generation attempt; nothing here is shared
// across cases.
package workflow

import (
	"context"
	goerrors "errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/defensoria-civil/divorcios/internal/cases"
	"github.com/defensoria-civil/divorcios/internal/document"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
)

// State is the current stage of the workflow.
type State string

const (
	StateValidating    State = "validating"
	StateAwaitingInput State = "awaiting_input"
	StateSavingInput   State = "saving_input"
	StateGenerating    State = "generating"
	StatePreview       State = "preview"
	StateDownloaded    State = "downloaded"
	StateFailed        State = "failed"
)

// Stage labels which backend interaction produced a failure.
type Stage string

const (
	StageValidation Stage = "validation"
	StagePersist    Stage = "persist"
	StageGeneration Stage = "generation"
	StageAuth       Stage = "auth"
)

// CaseService is the slice of the backend the workflow needs.
type CaseService interface {
	ValidateCase(ctx context.Context, caseID int) (*cases.ValidationReport, error)
	UpdateCase(ctx context.Context, caseID int, fields map[string]string) (*cases.UpdateResult, error)
	DownloadPetition(ctx context.Context, caseID int) ([]byte, error)
}

// ErrorInfo is the failure surfaced to the presentation layer.
type ErrorInfo struct {
	Stage   Stage  `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Snapshot is a point-in-time copy of the workflow for rendering.
type Snapshot struct {
	ID          uuid.UUID               `json:"id"`
	CaseID      int                     `json:"case_id"`
	State       State                   `json:"state"`
	Report      *cases.ValidationReport `json:"report,omitempty"`
	FieldValues map[string]string       `json:"field_values"`
	Completion  int                     `json:"completion_percentage"`
	HasDocument bool                    `json:"has_document"`
	Filename    string                  `json:"filename,omitempty"`
	Error       *ErrorInfo              `json:"error,omitempty"`
	Disposed    bool                    `json:"disposed"`
}

// Controller is the workflow state machine. Methods are safe for
// concurrent use; the lock is never held across a backend call, and a
// response that lands after Close is discarded instead of being applied
// to a disposed instance.
type Controller struct {
	id     uuid.UUID
	caseID int
	svc    CaseService

	mu       sync.Mutex
	state    State
	report   *cases.ValidationReport
	fields   map[string]string
	doc      *document.Handle
	lastErr  *ErrorInfo
	inflight bool
	started  bool
	disposed bool
}

// New creates a workflow for a case. The workflow starts in the
// validating state; Start performs the actual fetch.
func New(caseID int, svc CaseService) (*Controller, error) {
	if caseID <= 0 {
		return nil, errors.BadRequest("el identificador de caso debe ser positivo")
	}
	if svc == nil {
		return nil, errors.Internal(goerrors.New("workflow: nil case service"))
	}
	return &Controller{
		id:     uuid.New(),
		caseID: caseID,
		svc:    svc,
		state:  StateValidating,
		fields: make(map[string]string),
	}, nil
}

// ID returns the workflow instance identifier.
func (c *Controller) ID() uuid.UUID { return c.id }

// CaseID returns the case this workflow belongs to.
func (c *Controller) CaseID() int { return c.caseID }

// Start fetches the completeness report. When the case is already
// complete the workflow generates immediately without awaiting input;
// otherwise it parks in awaiting_input with the missing fields as the
// edit set. Calling Start more than once is a no-op.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed || c.started || c.inflight {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.inflight = true
	c.mu.Unlock()

	report, err := c.svc.ValidateCase(ctx, c.caseID)

	c.mu.Lock()
	c.inflight = false
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		appErr := c.failLocked(StageValidation, err)
		c.mu.Unlock()
		return appErr
	}

	c.report = report
	if report.IsValid {
		return c.generateLocked(ctx)
	}
	// is_valid is authoritative. A report claiming invalid with zero
	// missing fields (a backend invariant violation) still lands here:
	// the empty edit set is trivially complete, so the operator can
	// proceed straight to generation, and no fabricated update call is
	// ever issued.
	c.state = StateAwaitingInput
	c.mu.Unlock()
	return nil
}

// SetFieldValue records the operator's value for one missing field.
// Values are kept verbatim so nothing the operator typed is ever lost;
// emptiness is only judged (after trimming) at confirmation time.
func (c *Controller) SetFieldValue(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return errors.BadRequest("el flujo fue cerrado")
	}
	if c.state != StateAwaitingInput {
		return errors.BadRequest("el flujo no está esperando datos")
	}
	if !c.report.HasMissingField(key) {
		return errors.BadRequest("el campo " + key + " no está pendiente")
	}
	c.fields[key] = value
	return nil
}

// ConfirmAndGenerate persists every collected field in one combined
// update, then requests generation. While a save or generation is in
// flight a second call is dropped without issuing another request. A
// persist failure returns the workflow to awaiting_input with the
// typed values intact.
func (c *Controller) ConfirmAndGenerate(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return errors.BadRequest("el flujo fue cerrado")
	}
	if c.inflight || c.state == StateSavingInput || c.state == StateGenerating {
		c.mu.Unlock()
		return nil
	}
	if c.state != StateAwaitingInput {
		c.mu.Unlock()
		return errors.BadRequest("el flujo no está esperando confirmación")
	}

	updates := make(map[string]string, len(c.report.MissingFields))
	for _, f := range c.report.MissingFields {
		v := strings.TrimSpace(c.fields[f.Field])
		if v == "" {
			c.mu.Unlock()
			return errors.BadRequest("falta completar el campo " + f.Label)
		}
		updates[f.Field] = v
	}

	if len(updates) == 0 {
		// Nothing to persist (the inconsistent-report edge case).
		return c.generateLocked(ctx)
	}

	c.state = StateSavingInput
	c.inflight = true
	c.mu.Unlock()

	_, err := c.svc.UpdateCase(ctx, c.caseID, updates)

	c.mu.Lock()
	c.inflight = false
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	if err != nil {
		appErr := toAppError(err)
		c.state = StateAwaitingInput
		c.lastErr = errorInfo(StagePersist, appErr)
		if goerrors.Is(appErr, errors.ErrAuth) {
			c.lastErr.Stage = StageAuth
		} else if !goerrors.Is(appErr, errors.ErrPersist) {
			appErr = errors.PersistFailure(appErr)
			c.lastErr = errorInfo(StagePersist, appErr)
		}
		c.mu.Unlock()
		return appErr
	}

	c.lastErr = nil
	return c.generateLocked(ctx)
}

// generateLocked requests the document. Callers must hold mu; the lock
// is released before the backend call and the method returns unlocked.
func (c *Controller) generateLocked(ctx context.Context) error {
	c.state = StateGenerating
	c.inflight = true
	c.mu.Unlock()

	data, err := c.svc.DownloadPetition(ctx, c.caseID)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = false
	if c.disposed {
		return nil
	}
	if err != nil {
		return c.failLocked(StageGeneration, err)
	}

	handle, err := document.NewHandle(c.caseID, data)
	if err != nil {
		return c.failLocked(StageGeneration, err)
	}

	// Exactly one live handle per workflow: drop the previous one
	// before installing the replacement.
	if c.doc != nil {
		c.doc.Release()
	}
	c.doc = handle
	c.lastErr = nil
	c.state = StatePreview
	return nil
}

// ConfirmDownload exposes the already-fetched document for saving.
// Purely local: no backend call is made. The handle stays live until
// the workflow is closed so the preview remains usable.
func (c *Controller) ConfirmDownload() ([]byte, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return nil, "", errors.BadRequest("el flujo fue cerrado")
	}
	if c.state != StatePreview {
		return nil, "", errors.BadRequest("no hay documento para descargar")
	}

	data, err := c.doc.Bytes()
	if err != nil {
		return nil, "", errors.Internal(err)
	}
	c.state = StateDownloaded
	return data, c.doc.Filename(), nil
}

// Preview returns the held document bytes without changing state.
func (c *Controller) Preview() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed || c.doc == nil {
		return nil, errors.NotFound("documento", "")
	}
	data, err := c.doc.Bytes()
	if err != nil {
		return nil, errors.Internal(err)
	}
	return data, nil
}

// EditAgain discards the generated document and returns to the
// last-known missing-fields set without re-validating; the values
// saved on the way to preview are assumed persisted.
func (c *Controller) EditAgain() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return errors.BadRequest("el flujo fue cerrado")
	}
	if c.state != StatePreview {
		return errors.BadRequest("solo se puede volver a editar desde la previsualización")
	}

	c.doc.Release()
	c.doc = nil
	c.lastErr = nil
	c.state = StateAwaitingInput
	return nil
}

// Close disposes the workflow: the document handle is released and any
// response still in flight will be discarded on arrival. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	if c.doc != nil {
		c.doc.Release()
		c.doc = nil
	}
}

// Snapshot copies the current state for rendering.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ID:          c.id,
		CaseID:      c.caseID,
		State:       c.state,
		Report:      copyReport(c.report),
		FieldValues: make(map[string]string, len(c.fields)),
		HasDocument: c.doc != nil && !c.doc.Released(),
		Disposed:    c.disposed,
	}
	for k, v := range c.fields {
		snap.FieldValues[k] = v
	}
	if c.lastErr != nil {
		e := *c.lastErr
		snap.Error = &e
	}
	if snap.HasDocument {
		snap.Filename = c.doc.Filename()
	}
	if c.report != nil {
		filled := 0
		for _, f := range c.report.MissingFields {
			if strings.TrimSpace(c.fields[f.Field]) != "" {
				filled++
			}
		}
		snap.Completion = c.report.Completion(filled)
	}
	return snap
}

// AuthFailed reports whether the last failure was an auth failure, so
// the caller can tear the session down.
func (c *Controller) AuthFailed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr != nil && c.lastErr.Stage == StageAuth
}

// failLocked records a terminal failure. Caller holds mu.
func (c *Controller) failLocked(stage Stage, err error) *errors.AppError {
	appErr := toAppError(err)
	if goerrors.Is(appErr, errors.ErrAuth) {
		stage = StageAuth
	} else if stage == StageGeneration && !goerrors.Is(appErr, errors.ErrGeneration) {
		appErr = errors.GenerationFailure(appErr)
	}
	c.state = StateFailed
	c.lastErr = errorInfo(stage, appErr)
	return appErr
}

func errorInfo(stage Stage, appErr *errors.AppError) *ErrorInfo {
	return &ErrorInfo{Stage: stage, Code: appErr.Code, Message: appErr.Message}
}

// copyReport detaches the snapshot from the controller's report so a
// caller can hold it across later transitions.
func copyReport(r *cases.ValidationReport) *cases.ValidationReport {
	if r == nil {
		return nil
	}
	cp := *r
	cp.CompleteFields = append([]cases.FieldInfo(nil), r.CompleteFields...)
	cp.MissingFields = append([]cases.FieldInfo(nil), r.MissingFields...)
	cp.OptionalFields = append([]cases.FieldInfo(nil), r.OptionalFields...)
	return &cp
}

func toAppError(err error) *errors.AppError {
	var appErr *errors.AppError
	if goerrors.As(err, &appErr) {
		return appErr
	}
	return errors.Internal(err)
}
