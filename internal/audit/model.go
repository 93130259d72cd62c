// Package audit records who did what in the console. Legal-aid work is
// audit-sensitive: every login, petition generation and user-admin
// action leaves an append-only, hash-chained row.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/defensoria-civil/divorcios/internal/auth"
)

// Console actions
const (
	ActionLogin             = "session.login"
	ActionLoginFailed       = "session.login_failed"
	ActionLogout            = "session.logout"
	ActionWorkflowStarted   = "petition.workflow_started"
	ActionPetitionGenerated = "petition.generated"
	ActionPetitionDownload  = "petition.downloaded"
	ActionWorkflowFailed    = "petition.workflow_failed"
	ActionUserCreated       = "user.created"
	ActionUserUpdated       = "user.updated"
	ActionUserDeleted       = "user.deleted"
)

// Resource types
const (
	ResourceSession  = "session"
	ResourceCase     = "case"
	ResourceDocument = "document"
	ResourceUser     = "user"
)

// Entry is one audit row. Hash covers the entry content plus the
// previous entry's hash, forming a tamper-evident chain.
type Entry struct {
	Sequence   int64          `json:"sequence"`
	ID         uuid.UUID      `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Hash       string         `json:"hash"`
	PrevHash   string         `json:"prev_hash"`
	Actor      string         `json:"actor"`
	ActorRole  auth.Role      `json:"actor_role"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	ResourceID string         `json:"resource_id"`
	Details    map[string]any `json:"details,omitempty"`
}

// NewEntry creates an audit entry; the hash is computed on append once
// the previous hash is known.
func NewEntry(actor string, role auth.Role, action, resource, resourceID string, details map[string]any) *Entry {
	return &Entry{
		ID:         uuid.New(),
		Timestamp:  time.Now().UTC(),
		Actor:      actor,
		ActorRole:  role,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Details:    details,
	}
}

func (e *Entry) calculateHash() string {
	payload := map[string]any{
		"id":          e.ID.String(),
		"timestamp":   e.Timestamp.Format(time.RFC3339Nano),
		"prev_hash":   e.PrevHash,
		"actor":       e.Actor,
		"actor_role":  string(e.ActorRole),
		"action":      e.Action,
		"resource":    e.Resource,
		"resource_id": e.ResourceID,
		"details":     e.Details,
	}
	data, err := canonicalJSON(payload)
	if err != nil {
		data = []byte(e.ID.String())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalJSON produces deterministic JSON with sorted map keys. Go
// maps iterate in random order and JSONB may reorder keys, so hashing
// requires a canonical form.
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}
