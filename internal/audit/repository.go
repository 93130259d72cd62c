package audit

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/defensoria-civil/divorcios/internal/shared/errors"
)

// Recorder is what the rest of the console depends on. The console
// runs without a database, so callers always get a Recorder even when
// Postgres is unavailable.
type Recorder interface {
	Record(ctx context.Context, entry *Entry)
}

// Repository provides append-only audit log operations on Postgres.
type Repository struct {
	pool     *pgxpool.Pool
	mu       sync.Mutex
	lastHash string
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Initialize loads the last hash from the database so the chain
// continues across restarts.
func (r *Repository) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var hash string
	err := r.pool.QueryRow(ctx, `
		SELECT hash FROM audit_entries
		ORDER BY sequence DESC
		LIMIT 1
	`).Scan(&hash)

	if err != nil && !strings.Contains(err.Error(), "no rows") {
		return errors.Wrap(err, "failed to get last audit hash")
	}

	r.lastHash = hash
	return nil
}

// Append appends a new audit entry (thread-safe)
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.PrevHash = r.lastHash
	entry.Hash = entry.calculateHash()

	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return errors.Wrap(err, "failed to marshal details")
	}
	if entry.Details == nil {
		detailsJSON = []byte("{}")
	}

	query := `
		INSERT INTO audit_entries (
			id, timestamp, hash, prev_hash,
			actor, actor_role,
			action, resource, resource_id, details
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		) RETURNING sequence`

	err = r.pool.QueryRow(ctx, query,
		entry.ID, entry.Timestamp, entry.Hash, entry.PrevHash,
		entry.Actor, entry.ActorRole,
		entry.Action, entry.Resource, entry.ResourceID, detailsJSON,
	).Scan(&entry.Sequence)

	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	r.lastHash = entry.Hash
	return nil
}

// Record implements Recorder. Audit writes never fail a user-facing
// operation; an insert error is logged by the caller's middleware via
// the request log, not propagated.
func (r *Repository) Record(ctx context.Context, entry *Entry) {
	_ = r.Append(ctx, entry)
}

// ListFilter narrows a List query.
type ListFilter struct {
	Actor    string
	Action   string
	Resource string
	Limit    int
}

// List returns audit entries, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	var conditions []string
	var args []any
	argNum := 1

	if filter.Actor != "" {
		conditions = append(conditions, "actor = $"+strconv.Itoa(argNum))
		args = append(args, filter.Actor)
		argNum++
	}
	if filter.Action != "" {
		conditions = append(conditions, "action LIKE $"+strconv.Itoa(argNum))
		args = append(args, filter.Action+"%")
		argNum++
	}
	if filter.Resource != "" {
		conditions = append(conditions, "resource = $"+strconv.Itoa(argNum))
		args = append(args, filter.Resource)
		argNum++
	}

	query := `
		SELECT sequence, id, timestamp, hash, prev_hash,
		       actor, actor_role, action, resource, resource_id, details
		FROM audit_entries`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sequence DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " LIMIT $" + strconv.Itoa(argNum)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audit entries")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var detailsJSON []byte
		if err := rows.Scan(
			&e.Sequence, &e.ID, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.Actor, &e.ActorRole, &e.Action, &e.Resource, &e.ResourceID, &detailsJSON,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}
		if len(detailsJSON) > 0 {
			json.Unmarshal(detailsJSON, &e.Details)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// NopRecorder discards audit entries. Used when the console runs
// without a database.
type NopRecorder struct{}

func (NopRecorder) Record(ctx context.Context, entry *Entry) {}
