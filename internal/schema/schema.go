// Package schema is the single source of truth for how a raw field value
// becomes a validated, displayable value.
package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskdeck/internal/model"
)

// ValidationError reports a rejected field value with enough context to be
// shown inline (query filter value or cell edit).
type ValidationError struct {
	Domain model.Domain
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: invalid value %q: %s", e.Domain, e.Field, e.Value, e.Reason)
}

// FieldSchema describes one (domain, field) pair.
//
// Normalize must be idempotent: normalizing an already-normalized value
// returns it unchanged. Inline editing depends on this for round-trips.
type FieldSchema struct {
	Name         string
	Editable     bool
	Sensitive    bool
	Hint         string
	DefaultWidth int // 0 = flexible
	MinWidth     int

	Normalize func(raw string) (string, error)
	Validate  func(normalized string) error
	Format    func(value string) string
}

// Registry holds the per-domain field schemas. Built once at startup and
// immutable afterwards (Register is for startup wiring and tests).
type Registry struct {
	fields map[model.Domain]map[string]*FieldSchema
	order  map[model.Domain][]string

	// Now feeds relative date normalization ("today", "+7", "eow").
	Now func() time.Time
}

func NewRegistry() *Registry {
	r := &Registry{
		fields: map[model.Domain]map[string]*FieldSchema{},
		order:  map[model.Domain][]string{},
		Now:    time.Now,
	}
	r.registerTaskFields()
	r.registerProjectFields()
	r.registerTimeLogFields()
	return r
}

func (r *Registry) Register(d model.Domain, fs *FieldSchema) {
	if r.fields[d] == nil {
		r.fields[d] = map[string]*FieldSchema{}
	}
	if _, exists := r.fields[d][fs.Name]; !exists {
		r.order[d] = append(r.order[d], fs.Name)
	}
	r.fields[d][fs.Name] = fs
}

// GetSchema returns nil for unknown fields; callers treat those as
// free-form, non-validated values.
func (r *Registry) GetSchema(d model.Domain, field string) *FieldSchema {
	return r.fields[d][field]
}

// FieldNames returns the known fields for a domain in registration order.
func (r *Registry) FieldNames(d model.Domain) []string {
	return append([]string(nil), r.order[d]...)
}

// Normalize runs the field's normalizer. Unknown fields pass through
// unchanged (free-form).
func (r *Registry) Normalize(d model.Domain, field, raw string) (string, error) {
	fs := r.GetSchema(d, field)
	if fs == nil || fs.Normalize == nil {
		return raw, nil
	}
	out, err := fs.Normalize(raw)
	if err != nil {
		return "", r.invalid(d, field, raw, err)
	}
	return out, nil
}

// Validate checks an already-normalized value.
func (r *Registry) Validate(d model.Domain, field, normalized string) error {
	fs := r.GetSchema(d, field)
	if fs == nil || fs.Validate == nil {
		return nil
	}
	if err := fs.Validate(normalized); err != nil {
		return r.invalid(d, field, normalized, err)
	}
	return nil
}

// Format renders a stored value for display. Never used as the stored value.
func (r *Registry) Format(d model.Domain, field, value string) string {
	fs := r.GetSchema(d, field)
	if fs == nil || fs.Format == nil {
		return value
	}
	return fs.Format(value)
}

func (r *Registry) invalid(d model.Domain, field, value string, err error) error {
	if ve, ok := err.(*ValidationError); ok {
		return ve
	}
	return &ValidationError{Domain: d, Field: field, Value: value, Reason: err.Error()}
}

const (
	// PriorityMin..PriorityMax is the accepted priority band.
	PriorityMin = 1
	PriorityMax = 3
)

// NormalizePriority accepts "p1"/"P1"/"1" forms and canonicalizes to "1".
// Values outside 1..3 are rejected, not clamped.
func NormalizePriority(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	if len(s) > 1 && (s[0] == 'p' || s[0] == 'P') {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return "", fmt.Errorf("expected a priority like p1, P2 or 3")
	}
	if n < PriorityMin || n > PriorityMax {
		return "", fmt.Errorf("priority %d out of range %d..%d", n, PriorityMin, PriorityMax)
	}
	return strconv.Itoa(n), nil
}

func normalizeTags(raw string) (string, error) {
	return strings.Join(model.SplitTags(raw), ","), nil
}

func trimNormalize(raw string) (string, error) {
	return strings.TrimSpace(raw), nil
}

func (r *Registry) registerTaskFields() {
	d := model.DomainTask
	r.Register(d, &FieldSchema{Name: "id", DefaultWidth: 5, MinWidth: 3, Hint: "task id"})
	r.Register(d, &FieldSchema{Name: "text", Editable: true, MinWidth: 12, Hint: "task text",
		Normalize: trimNormalize,
		Validate: func(v string) error {
			if v == "" {
				return fmt.Errorf("text must not be empty")
			}
			return nil
		}})
	r.Register(d, &FieldSchema{Name: "project", Editable: true, DefaultWidth: 14, MinWidth: 6, Hint: "project name",
		Normalize: trimNormalize})
	r.Register(d, &FieldSchema{Name: "priority", Editable: true, DefaultWidth: 4, MinWidth: 3, Hint: "p1..p3",
		Normalize: NormalizePriority,
		Format: func(v string) string {
			if v == "" {
				return ""
			}
			return "p" + v
		}})
	r.Register(d, &FieldSchema{Name: "due", Editable: true, DefaultWidth: 10, MinWidth: 8, Hint: "due date",
		Normalize: func(raw string) (string, error) { return NormalizeDate(raw, r.Now()) },
		Format:    func(v string) string { return r.formatRelativeDate(v) }})
	r.Register(d, &FieldSchema{Name: "tags", Editable: true, DefaultWidth: 14, MinWidth: 6, Hint: "comma-separated tags",
		Normalize: normalizeTags})
	r.Register(d, &FieldSchema{Name: "status", Editable: true, DefaultWidth: 8, MinWidth: 4, Hint: "workflow status",
		Normalize: func(raw string) (string, error) { return strings.ToLower(strings.TrimSpace(raw)), nil }})
	r.Register(d, &FieldSchema{Name: "description", Editable: true, MinWidth: 10, Hint: "free text",
		Normalize: trimNormalize})
	r.Register(d, &FieldSchema{Name: "created", DefaultWidth: 10, MinWidth: 8})
	r.Register(d, &FieldSchema{Name: "done", DefaultWidth: 10, MinWidth: 4})
}

func (r *Registry) registerProjectFields() {
	d := model.DomainProject
	r.Register(d, &FieldSchema{Name: "name", DefaultWidth: 16, MinWidth: 6, Hint: "project key"})
	r.Register(d, &FieldSchema{Name: "description", Editable: true, MinWidth: 10,
		Normalize: trimNormalize})
	r.Register(d, &FieldSchema{Name: "status", Editable: true, DefaultWidth: 8, MinWidth: 4,
		Normalize: func(raw string) (string, error) { return strings.ToLower(strings.TrimSpace(raw)), nil }})
	r.Register(d, &FieldSchema{Name: "created", DefaultWidth: 10, MinWidth: 8})
}

func (r *Registry) registerTimeLogFields() {
	d := model.DomainTimeLog
	r.Register(d, &FieldSchema{Name: "id", DefaultWidth: 5, MinWidth: 3})
	r.Register(d, &FieldSchema{Name: "task", DefaultWidth: 5, MinWidth: 3})
	r.Register(d, &FieldSchema{Name: "project", Editable: true, DefaultWidth: 14, MinWidth: 6,
		Normalize: trimNormalize})
	r.Register(d, &FieldSchema{Name: "note", Editable: true, MinWidth: 10,
		Normalize: trimNormalize})
	r.Register(d, &FieldSchema{Name: "start", DefaultWidth: 16, MinWidth: 10})
	r.Register(d, &FieldSchema{Name: "end", DefaultWidth: 16, MinWidth: 10})
	r.Register(d, &FieldSchema{Name: "duration", DefaultWidth: 8, MinWidth: 5})
}

// formatRelativeDate keeps stored dates ISO but displays near dates as words.
func (r *Registry) formatRelativeDate(v string) string {
	if v == "" {
		return ""
	}
	t, err := time.ParseInLocation(model.DateOnly, v, time.Local)
	if err != nil {
		return v
	}
	today := Midnight(r.Now())
	switch int(t.Sub(today).Hours() / 24) {
	case 0:
		return "today"
	case 1:
		return "tomorrow"
	case -1:
		return "yesterday"
	}
	return v
}
