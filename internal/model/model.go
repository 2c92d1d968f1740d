package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Domain names the three entity collections.
type Domain string

const (
	DomainTask    Domain = "task"
	DomainProject Domain = "project"
	DomainTimeLog Domain = "timelog"
)

// Entity is the common surface the query layer works against.
//
// The stored types are plain structs; Field gives the dynamic by-name access
// the query/grid layers need without falling back to reflection or maps.
// Values are returned in their canonical string form (the same form the
// schema registry normalizes into), so filter comparison and cell editing
// round-trip through the same representation.
type Entity interface {
	EntityDomain() Domain
	// Key is the stable identity within the collection: the integer id for
	// tasks and timelogs, the unique name for projects.
	Key() string
	Field(name string) (string, bool)
	FieldNames() []string
}

// Mutable is implemented by entities that accept by-name field writes.
// The value must already be normalized by the schema registry.
type Mutable interface {
	Entity
	SetField(name, value string) error
}

const DateOnly = "2006-01-02"

type Task struct {
	ID          int        `json:"id"`
	Text        string     `json:"text"`
	Project     string     `json:"project,omitempty"`
	Priority    string     `json:"priority,omitempty"` // "1".."3", "" = none
	Due         string     `json:"due,omitempty"`      // YYYY-MM-DD
	Tags        []string   `json:"tags,omitempty"`
	Status      string     `json:"status,omitempty"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	DoneAt      *time.Time `json:"doneAt,omitempty"`
}

func (t Task) EntityDomain() Domain { return DomainTask }
func (t Task) Key() string          { return strconv.Itoa(t.ID) }

func (t Task) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.Itoa(t.ID), true
	case "text":
		return t.Text, true
	case "project":
		return t.Project, true
	case "priority":
		return t.Priority, true
	case "due":
		return t.Due, true
	case "tags":
		return strings.Join(t.Tags, ","), true
	case "status":
		return t.Status, true
	case "description":
		return t.Description, true
	case "created":
		return t.CreatedAt.Format(DateOnly), true
	case "done":
		if t.DoneAt == nil {
			return "", true
		}
		return t.DoneAt.Format(DateOnly), true
	}
	return "", false
}

func (t Task) FieldNames() []string {
	return []string{"id", "text", "project", "priority", "due", "tags", "status", "description", "created", "done"}
}

func (t *Task) SetField(name, value string) error {
	switch name {
	case "text":
		t.Text = value
	case "project":
		t.Project = value
	case "priority":
		t.Priority = value
	case "due":
		t.Due = value
	case "tags":
		t.Tags = SplitTags(value)
	case "status":
		t.Status = value
	case "description":
		t.Description = value
	default:
		return fmt.Errorf("task field %q is not writable", name)
	}
	return nil
}

// HasTag reports list membership, case-insensitive.
func (t Task) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if strings.EqualFold(have, tag) {
			return true
		}
	}
	return false
}

type Project struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (p Project) EntityDomain() Domain { return DomainProject }
func (p Project) Key() string          { return p.Name }

func (p Project) Field(name string) (string, bool) {
	switch name {
	case "name":
		return p.Name, true
	case "description":
		return p.Description, true
	case "status":
		return p.Status, true
	case "created":
		return p.CreatedAt.Format(DateOnly), true
	}
	return "", false
}

func (p Project) FieldNames() []string {
	return []string{"name", "description", "status", "created"}
}

func (p *Project) SetField(name, value string) error {
	switch name {
	case "description":
		p.Description = value
	case "status":
		p.Status = value
	default:
		return fmt.Errorf("project field %q is not writable", name)
	}
	return nil
}

type TimeLog struct {
	ID      int        `json:"id"`
	TaskID  int        `json:"taskId,omitempty"`
	Project string     `json:"project,omitempty"`
	Note    string     `json:"note,omitempty"`
	Start   time.Time  `json:"start"`
	End     *time.Time `json:"end,omitempty"`
}

func (l TimeLog) EntityDomain() Domain { return DomainTimeLog }
func (l TimeLog) Key() string          { return strconv.Itoa(l.ID) }

func (l TimeLog) Field(name string) (string, bool) {
	switch name {
	case "id":
		return strconv.Itoa(l.ID), true
	case "task":
		if l.TaskID == 0 {
			return "", true
		}
		return strconv.Itoa(l.TaskID), true
	case "project":
		return l.Project, true
	case "note":
		return l.Note, true
	case "start":
		return l.Start.Format(time.RFC3339), true
	case "end":
		if l.End == nil {
			return "", true
		}
		return l.End.Format(time.RFC3339), true
	case "duration":
		return FormatDuration(l.Duration()), true
	}
	return "", false
}

func (l TimeLog) FieldNames() []string {
	return []string{"id", "task", "project", "note", "start", "end", "duration"}
}

func (l *TimeLog) SetField(name, value string) error {
	switch name {
	case "note":
		l.Note = value
	case "project":
		l.Project = value
	default:
		return fmt.Errorf("timelog field %q is not writable", name)
	}
	return nil
}

// Duration is the elapsed time of the entry; open entries run until now.
func (l TimeLog) Duration() time.Duration {
	end := time.Now()
	if l.End != nil {
		end = *l.End
	}
	if end.Before(l.Start) {
		return 0
	}
	return end.Sub(l.Start)
}

// SplitTags parses the canonical comma-joined tag form back into a list.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[strings.ToLower(p)] {
			continue
		}
		seen[strings.ToLower(p)] = true
		out = append(out, p)
	}
	return out
}

// FormatDuration renders a duration as compact "1h05m" / "42m" text.
func FormatDuration(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02dm", h, m)
}

// SortedProjectNames is a small helper for parser project matching.
func SortedProjectNames(projects []Project) []string {
	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}
