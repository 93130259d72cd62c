// Package cases defines the value objects exchanged with the intake
// backend's case service.
package cases

import "fmt"

// DivorceType is the intake classification of a case.
type DivorceType string

const (
	DivorceUnilateral DivorceType = "unilateral"
	DivorceConjunta   DivorceType = "conjunta"
)

// FieldInfo describes one schema field in a completeness report: the
// machine key, the label shown to the operator, and the stored value
// (nil when the backend has none; optional fields may carry booleans).
type FieldInfo struct {
	Field string `json:"field"`
	Label string `json:"label"`
	Value any    `json:"value"`
}

// ValidationReport is the backend's assessment of which fields a case
// still needs before a petition can be generated. The three field
// lists partition the required-field schema for the case's divorce
// type; IsValid holds exactly when MissingFields is empty.
type ValidationReport struct {
	CaseID               int         `json:"case_id"`
	IsValid              bool        `json:"is_valid"`
	CompleteFields       []FieldInfo `json:"complete_fields"`
	MissingFields        []FieldInfo `json:"missing_fields"`
	OptionalFields       []FieldInfo `json:"optional_fields"`
	CompletionPercentage int         `json:"completion_percentage"`
}

// SchemaSize is the number of schema fields covered by the report.
func (r *ValidationReport) SchemaSize() int {
	return len(r.CompleteFields) + len(r.MissingFields) + len(r.OptionalFields)
}

// CheckInvariants verifies the report's structural guarantees:
// pairwise-disjoint field lists, a sane completion percentage, and the
// IsValid/MissingFields correspondence. A violation means the backend
// is misbehaving; callers decide the policy (the workflow treats
// IsValid as authoritative).
func (r *ValidationReport) CheckInvariants() error {
	seen := make(map[string]string, r.SchemaSize())
	lists := []struct {
		name   string
		fields []FieldInfo
	}{
		{"complete_fields", r.CompleteFields},
		{"missing_fields", r.MissingFields},
		{"optional_fields", r.OptionalFields},
	}
	for _, l := range lists {
		for _, f := range l.fields {
			if f.Field == "" {
				return fmt.Errorf("%s contains an entry without a field key", l.name)
			}
			if prev, ok := seen[f.Field]; ok {
				return fmt.Errorf("field %q appears in both %s and %s", f.Field, prev, l.name)
			}
			seen[f.Field] = l.name
		}
	}

	if valid := len(r.MissingFields) == 0; r.IsValid != valid {
		return fmt.Errorf("is_valid=%v inconsistent with %d missing fields", r.IsValid, len(r.MissingFields))
	}

	if r.CompletionPercentage < 0 || r.CompletionPercentage > 100 {
		return fmt.Errorf("completion_percentage %d out of range", r.CompletionPercentage)
	}

	return nil
}

// Completion recomputes the completion percentage assuming filled
// additional missing fields beyond the backend-reported complete set.
// Optional fields do not count toward completion, matching the
// backend's percentage. Used to advance the progress indicator while
// the operator types, before anything is persisted.
func (r *ValidationReport) Completion(filled int) int {
	required := len(r.CompleteFields) + len(r.MissingFields)
	if required == 0 {
		return 100
	}
	if filled > len(r.MissingFields) {
		filled = len(r.MissingFields)
	}
	return (len(r.CompleteFields) + filled) * 100 / required
}

// MissingFieldKeys returns the keys of the fields that still need a
// value, in report order.
func (r *ValidationReport) MissingFieldKeys() []string {
	keys := make([]string, 0, len(r.MissingFields))
	for _, f := range r.MissingFields {
		keys = append(keys, f.Field)
	}
	return keys
}

// HasMissingField reports whether key is one of the missing fields.
func (r *ValidationReport) HasMissingField(key string) bool {
	for _, f := range r.MissingFields {
		if f.Field == key {
			return true
		}
	}
	return false
}

// UpdateResult is the backend acknowledgement of a partial case update.
type UpdateResult struct {
	Message       string   `json:"message"`
	UpdatedFields []string `json:"updated_fields"`
	CaseID        int      `json:"case_id"`
}

// Case is the list/detail projection of an intake record. The console
// renders it as-is; all editing goes through the validation workflow
// or the backend directly.
type Case struct {
	ID        int         `json:"id"`
	Phone     string      `json:"phone"`
	Status    string      `json:"status"`
	Type      DivorceType `json:"type"`
	Phase     string      `json:"phase"`
	Nombre    string      `json:"nombre"`
	DNI       string      `json:"dni"`
	Domicilio string      `json:"domicilio"`
	CreatedAt string      `json:"created_at"`
}
