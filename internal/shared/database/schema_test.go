package database

import (
	"strings"
	"testing"
)

// The schema runs unversioned on every startup, so each statement must
// be safe to re-apply.
func TestSchemaStatementsAreIdempotent(t *testing.T) {
	if len(schemaStatements) == 0 {
		t.Fatal("no schema statements defined")
	}
	for i, stmt := range schemaStatements {
		s := strings.Join(strings.Fields(stmt), " ")
		if !strings.HasPrefix(s, "CREATE TABLE IF NOT EXISTS") &&
			!strings.HasPrefix(s, "CREATE INDEX IF NOT EXISTS") {
			t.Errorf("statement %d is not idempotent: %.60s...", i, s)
		}
	}
}

func TestSchemaCoversAuditColumns(t *testing.T) {
	table := schemaStatements[0]
	for _, col := range []string{"sequence", "hash", "prev_hash", "actor", "actor_role", "action", "resource", "resource_id", "details"} {
		if !strings.Contains(table, col) {
			t.Errorf("audit_entries missing column %q", col)
		}
	}
}
