package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/defensoria-civil/divorcios/internal/audit"
	"github.com/defensoria-civil/divorcios/internal/auth"
	"github.com/defensoria-civil/divorcios/internal/backend"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/config"
)

const pdfBytes = "%PDF-1.7 demanda"

// newBackendMux builds a fake intake backend. The login role decides
// the capability set the console resolves.
func newBackendMux(role string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"token_type":   "bearer",
			"user": map[string]any{
				"id": 1, "username": "mgarcia", "email": "m@defensoria.gob.ar",
				"full_name": "María García", "role": role,
			},
		})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"message": "ok"})
	})
	mux.HandleFunc("GET /api/cases/7/validate", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"case_id":  7,
			"is_valid": false,
			"complete_fields": []map[string]any{
				{"field": "dni", "label": "DNI", "value": "30111222"},
				{"field": "domicilio", "label": "Domicilio", "value": "Av. Rivadavia 100"},
			},
			"missing_fields": []map[string]any{
				{"field": "nombre", "label": "Nombre completo", "value": nil},
			},
			"optional_fields":       []map[string]any{},
			"completion_percentage": 66,
		})
	})
	mux.HandleFunc("PATCH /api/cases/7", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"message": "ok", "updated_fields": []string{"nombre"}, "case_id": 7,
		})
	})
	mux.HandleFunc("GET /api/cases/7/petition.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte(pdfBytes))
	})
	mux.HandleFunc("GET /api/cases/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{{"id": 7, "status": "en_tramite"}})
	})
	mux.HandleFunc("POST /api/users/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 9, "username": "nuevo", "role": "operador"})
	})
	return mux
}

// newConsole wires the handler layer the way cmd/console does.
func newConsole(t *testing.T, backendHandler http.Handler) (*chi.Mux, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(backendHandler)
	t.Cleanup(srv.Close)

	store := session.NewStore()
	client := backend.NewClient(config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, store)
	mgr := session.NewManager(store, client)
	registry := NewRegistry()
	t.Cleanup(registry.CloseAll)
	recorder := audit.NopRecorder{}

	r := chi.NewRouter()
	r.Mount("/session", NewSessionHandler(store, mgr, recorder).Routes())
	r.Route("/api", func(r chi.Router) {
		r.Use(RequireAuth(store))
		r.With(RequireCapability(store, auth.CapEditCases)).
			Mount("/workflows", NewWorkflowHandler(registry, client, store, mgr, recorder).Routes())
		r.Mount("/cases", NewCaseHandler(client, store).Routes())
		r.Mount("/users", NewUserHandler(client, store, recorder).Routes())
	})
	return r, store
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler) {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/session", map[string]string{
		"username": "mgarcia", "password": "secreto",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestLoginReturnsIdentityAndPermissions(t *testing.T) {
	h, store := newConsole(t, newBackendMux("operador"))

	rec := doRequest(t, h, http.MethodPost, "/session", map[string]string{
		"username": "mgarcia", "password": "secreto",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Identity    session.Identity   `json:"identity"`
		Permissions auth.PermissionSet `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Identity.Username != "mgarcia" || resp.Identity.Role != auth.RoleOperador {
		t.Errorf("identity = %+v", resp.Identity)
	}
	if !resp.Permissions.CanEditCases || resp.Permissions.CanViewUsers {
		t.Errorf("operador permissions = %+v", resp.Permissions)
	}
	if !store.Authenticated() {
		t.Error("store not authenticated after login")
	}
}

func TestLoginRequiresCredentials(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("operador"))
	rec := doRequest(t, h, http.MethodPost, "/session", map[string]string{"username": "mgarcia"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAPIRequiresSession(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("operador"))
	rec := doRequest(t, h, http.MethodGet, "/api/cases/", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestOperadorSeesCaseList(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("operador"))
	login(t, h)

	// the backend scopes case visibility per role; the console does
	// not gate the list itself
	rec := doRequest(t, h, http.MethodGet, "/api/cases/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var list []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("cases = %v", list)
	}
}

func TestCapabilityGateDeniesWithRedirect(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("operador"))
	login(t, h)

	// operador holds no user administration capabilities
	rec := doRequest(t, h, http.MethodGet, "/api/users/", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Details["redirect"] != DefaultPage {
		t.Errorf("redirect = %q, want %q", resp.Details["redirect"], DefaultPage)
	}
}

func TestSupervisorCannotCreateUsers(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("supervisor"))
	login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/users/", map[string]string{"username": "nuevo"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestAdminCreatesUser(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("admin"))
	login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/users/", map[string]string{
		"username": "nuevo", "password": "clave", "role": "operador",
	})
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestWorkflowLifecycleOverHTTP(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("operador"))
	login(t, h)

	// open the workflow; case 7 has nombre missing
	rec := doRequest(t, h, http.MethodPost, "/api/workflows/", map[string]int{"case_id": 7})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var snap struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != "awaiting_input" {
		t.Fatalf("state = %q, want awaiting_input", snap.State)
	}
	base := "/api/workflows/" + snap.ID

	// generating before filling the form must fail
	rec = doRequest(t, h, http.MethodPost, base+"/generate", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("premature generate status = %d", rec.Code)
	}

	rec = doRequest(t, h, http.MethodPut, base+"/fields/nombre", map[string]string{"value": "Juan Pérez"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set field status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, base+"/generate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != "preview" {
		t.Fatalf("state = %q, want preview", snap.State)
	}

	rec = doRequest(t, h, http.MethodGet, base+"/document", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != pdfBytes {
		t.Errorf("document status = %d, body %q", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodPost, base+"/download", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "demanda-divorcio-caso-7.pdf") {
		t.Errorf("disposition = %q", disposition)
	}
	if rec.Body.String() != pdfBytes {
		t.Errorf("download body = %q", rec.Body.String())
	}

	rec = doRequest(t, h, http.MethodDelete, base, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, h, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status after delete = %d", rec.Code)
	}
}

func TestWorkflowEditAgainOverHTTP(t *testing.T) {
	h, _ := newConsole(t, newBackendMux("operador"))
	login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/workflows/", map[string]int{"case_id": 7})
	var snap struct {
		ID    string `json:"id"`
		State string `json:"state"`
	}
	json.Unmarshal(rec.Body.Bytes(), &snap)
	base := "/api/workflows/" + snap.ID

	doRequest(t, h, http.MethodPut, base+"/fields/nombre", map[string]string{"value": "Juan Pérez"})
	doRequest(t, h, http.MethodPost, base+"/generate", nil)

	rec = doRequest(t, h, http.MethodPost, base+"/edit", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("edit status = %d, body %s", rec.Code, rec.Body.String())
	}
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.State != "awaiting_input" {
		t.Errorf("state after edit = %q", snap.State)
	}

	// the preview handle is gone until regeneration
	rec = doRequest(t, h, http.MethodGet, base+"/document", nil)
	if rec.Code == http.StatusOK {
		t.Error("document still served after edit")
	}
}

func TestBackendSessionExpiryTearsDownConsoleSession(t *testing.T) {
	mux := newBackendMux("operador")
	// override validation to simulate an expired backend token
	expired := http.NewServeMux()
	expired.HandleFunc("GET /api/cases/7/validate", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Token expirado"}`, http.StatusUnauthorized)
	})
	expired.Handle("/", mux)

	h, store := newConsole(t, expired)
	login(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/workflows/", map[string]int{"case_id": 7})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	var snap struct {
		State string `json:"state"`
	}
	json.Unmarshal(rec.Body.Bytes(), &snap)
	if snap.State != "failed" {
		t.Errorf("state = %q, want failed", snap.State)
	}
	if store.Authenticated() {
		t.Error("session survived a backend 401")
	}
}

func TestLogoutClearsSession(t *testing.T) {
	h, store := newConsole(t, newBackendMux("operador"))
	login(t, h)

	rec := doRequest(t, h, http.MethodDelete, "/session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if store.Authenticated() {
		t.Error("store still authenticated after logout")
	}
}
