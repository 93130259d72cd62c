package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/defensoria-civil/divorcios/internal/shared/config"
	apperrors "github.com/defensoria-civil/divorcios/internal/shared/errors"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func newTestClient(t *testing.T, handler http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second}, staticToken(token))
}

func TestLogin(t *testing.T) {
	var gotBody map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"token_type":   "bearer",
			"user": map[string]any{
				"id": 1, "username": "mgarcia", "email": "m@defensoria.gob.ar",
				"full_name": "María García", "role": "operador",
			},
		})
	}), "")

	res, err := client.Login(context.Background(), "mgarcia", "secreto")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if gotBody["username"] != "mgarcia" || gotBody["password"] != "secreto" {
		t.Errorf("login body = %v", gotBody)
	}
	if res.AccessToken != "tok-123" || res.User.Username != "mgarcia" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestLoginRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Credenciales inválidas"}`, http.StatusUnauthorized)
	}), "")

	_, err := client.Login(context.Background(), "mgarcia", "mal")
	if !errors.Is(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestValidateCaseAttachesBearer(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/api/cases/42/validate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"case_id":  42,
			"is_valid": false,
			"complete_fields": []map[string]any{
				{"field": "dni", "label": "DNI", "value": "28456789"},
			},
			"missing_fields": []map[string]any{
				{"field": "nombre", "label": "Nombre", "value": nil},
			},
			"optional_fields":       []map[string]any{},
			"completion_percentage": 50,
		})
	}), "tok-123")

	report, err := client.ValidateCase(context.Background(), 42)
	if err != nil {
		t.Fatalf("ValidateCase: %v", err)
	}
	if report.CaseID != 42 || report.IsValid {
		t.Errorf("report = %+v", report)
	}
	if len(report.MissingFields) != 1 || report.MissingFields[0].Field != "nombre" {
		t.Errorf("missing fields = %+v", report.MissingFields)
	}
	if err := report.CheckInvariants(); err != nil {
		t.Errorf("report invariants: %v", err)
	}
}

func TestUpdateCaseSendsCombinedMap(t *testing.T) {
	var got map[string]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{
			"message": "ok", "updated_fields": []string{"nombre", "domicilio"}, "case_id": 42,
		})
	}), "tok-123")

	res, err := client.UpdateCase(context.Background(), 42, map[string]string{
		"nombre": "Juan Pérez", "domicilio": "Av. Mitre 1200",
	})
	if err != nil {
		t.Fatalf("UpdateCase: %v", err)
	}
	if got["nombre"] != "Juan Pérez" || got["domicilio"] != "Av. Mitre 1200" {
		t.Errorf("patch body = %v", got)
	}
	if res.CaseID != 42 || len(res.UpdatedFields) != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestDownloadPetition(t *testing.T) {
	pdf := []byte("%PDF-1.4 demanda de divorcio")
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/cases/42/petition.pdf" {
			t.Errorf("path = %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Write(pdf)
	}), "tok-123")

	data, err := client.DownloadPetition(context.Background(), 42)
	if err != nil {
		t.Fatalf("DownloadPetition: %v", err)
	}
	if string(data) != string(pdf) {
		t.Error("pdf bytes mismatch")
	}
}

func TestAuthedCallWithoutToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the backend")
	}), "")

	_, err := client.ValidateCase(context.Background(), 42)
	if !errors.Is(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestExpiredTokenMapsToAuthFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Token expirado"}`, http.StatusUnauthorized)
	}), "tok-viejo")

	_, err := client.DownloadPetition(context.Background(), 42)
	if !errors.Is(err, apperrors.ErrAuth) {
		t.Fatalf("expected auth failure, got %v", err)
	}
}

func TestNetworkFailure(t *testing.T) {
	client := NewClient(config.BackendConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, staticToken("tok"))

	_, err := client.ValidateCase(context.Background(), 42)
	if !errors.Is(err, apperrors.ErrNetwork) {
		t.Fatalf("expected network failure, got %v", err)
	}
}

func TestUserAdministration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "username": "admin", "email": "a@defensoria.gob.ar", "role": "admin", "is_active": true},
		})
	})
	mux.HandleFunc("POST /api/users/", func(w http.ResponseWriter, r *http.Request) {
		var req CreateUserRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(map[string]any{
			"id": 2, "username": req.Username, "email": req.Email, "role": string(req.Role), "is_active": true,
		})
	})
	mux.HandleFunc("DELETE /api/users/2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client := newTestClient(t, mux, "tok-123")

	users, err := client.ListUsers(context.Background())
	if err != nil || len(users) != 1 {
		t.Fatalf("ListUsers = %v, %v", users, err)
	}

	created, err := client.CreateUser(context.Background(), CreateUserRequest{
		Username: "jlopez", Email: "j@defensoria.gob.ar", Password: "secreto", Role: "operador",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if created.ID != 2 || created.Username != "jlopez" {
		t.Errorf("created = %+v", created)
	}

	if err := client.DeleteUser(context.Background(), 2); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
}
