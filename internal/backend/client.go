// Package backend is the REST client for the divorce intake service.
// Every call attaches the session bearer token; a 401 from any endpoint
// is reported as an auth failure so the caller can tear the session
// down.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/defensoria-civil/divorcios/internal/cases"
	"github.com/defensoria-civil/divorcios/internal/session"
	"github.com/defensoria-civil/divorcios/internal/shared/config"
	"github.com/defensoria-civil/divorcios/internal/shared/errors"
)

// TokenSource supplies the current bearer credential. The session
// store implements it.
type TokenSource interface {
	Token() string
}

// Client talks to the intake backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

// NewClient creates a backend client. The timeout covers the whole
// request including the PDF body read.
func NewClient(cfg config.BackendConfig, tokens TokenSource) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Login exchanges credentials for a token and identity.
func (c *Client) Login(ctx context.Context, username, password string) (*session.LoginResult, error) {
	body := map[string]string{"username": username, "password": password}

	var result session.LoginResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, false, &result); err != nil {
		return nil, err
	}
	if result.AccessToken == "" {
		return nil, errors.AuthFailure("el backend no devolvió un token")
	}
	return &result, nil
}

// Logout invalidates the session backend-side.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/logout", nil, true, nil)
}

// ValidateCase fetches the completeness report for a case.
func (c *Client) ValidateCase(ctx context.Context, caseID int) (*cases.ValidationReport, error) {
	var report cases.ValidationReport
	path := fmt.Sprintf("/api/cases/%d/validate", caseID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// UpdateCase persists a partial field map in one combined call.
func (c *Client) UpdateCase(ctx context.Context, caseID int, fields map[string]string) (*cases.UpdateResult, error) {
	var result cases.UpdateResult
	path := fmt.Sprintf("/api/cases/%d", caseID)
	if err := c.doJSON(ctx, http.MethodPatch, path, fields, true, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DownloadPetition fetches the generated petition PDF as raw bytes.
func (c *Client) DownloadPetition(ctx context.Context, caseID int) ([]byte, error) {
	path := fmt.Sprintf("/api/cases/%d/petition.pdf", caseID)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NetworkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.AuthFailure("")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NetworkFailure(err)
	}
	return data, nil
}

// ListCases fetches the case list (backend caps it server-side).
func (c *Client) ListCases(ctx context.Context) ([]cases.Case, error) {
	var list []cases.Case
	if err := c.doJSON(ctx, http.MethodGet, "/api/cases/", nil, true, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GetCase fetches the detail view of one case.
func (c *Client) GetCase(ctx context.Context, caseID int) (*cases.Case, error) {
	var detail cases.Case
	path := fmt.Sprintf("/api/cases/%d", caseID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, authed bool) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Internal(err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		token := c.tokens.Token()
		if token == "" {
			return nil, errors.AuthFailure("no hay sesión activa")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// doJSON performs a request and decodes a JSON response into out (nil
// to discard the body).
func (c *Client) doJSON(ctx context.Context, method, path string, body any, authed bool, out any) error {
	req, err := c.newRequest(ctx, method, path, body, authed)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.NetworkFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return errors.AuthFailure("")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "respuesta inválida del backend")
	}
	return nil
}

// statusError maps a non-2xx backend response to an AppError, keeping
// the backend's detail message when it sends one.
func statusError(resp *http.Response) *errors.AppError {
	detail := readDetail(resp.Body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errors.NotFound("caso", "")
	case http.StatusForbidden:
		return errors.Forbidden(detail)
	case http.StatusUnprocessableEntity:
		return errors.ValidationRejected(detail)
	case http.StatusBadRequest:
		if detail == "" {
			detail = "solicitud rechazada por el backend"
		}
		return errors.BadRequest(detail)
	default:
		return errors.NetworkFailure(fmt.Errorf("backend respondió %d: %s", resp.StatusCode, detail))
	}
}

// readDetail extracts FastAPI's {"detail": "..."} error body.
func readDetail(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(data, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
