package store

import (
	"fmt"
	"strconv"
	"time"

	"taskdeck/internal/model"
	"taskdeck/internal/schema"
)

// EditConflictError reports a staged edit whose target row changed or
// disappeared between staging and commit. It is surfaced inline on the
// affected field; other staged edits are unaffected.
type EditConflictError struct {
	Domain model.Domain
	Key    string
	Field  string
	Reason string
}

func (e *EditConflictError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s %s conflicts: %s", e.Domain, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s %s: %s conflicts: %s", e.Domain, e.Key, e.Field, e.Reason)
}

// Conn is a loaded database plus the schema registry, implementing the
// provider and mutation contracts the query and grid layers consume.
// All mutations validate through the registry and persist immediately.
type Conn struct {
	store Store
	reg   *schema.Registry
	db    *DB
}

func OpenConn(s Store, reg *schema.Registry) (*Conn, error) {
	db, err := s.Load()
	if err != nil {
		return nil, err
	}
	return &Conn{store: s, reg: reg, db: db}, nil
}

// NewConn wraps an already-loaded database; tests use this with an
// in-memory DB and a throwaway directory.
func NewConn(s Store, reg *schema.Registry, db *DB) *Conn {
	return &Conn{store: s, reg: reg, db: db}
}

func (c *Conn) DB() *DB { return c.db }

// GetEntities returns a snapshot of one collection. The returned entities
// are copies; callers may hold them across edits without seeing partial
// writes.
func (c *Conn) GetEntities(domain model.Domain) ([]model.Entity, error) {
	switch domain {
	case model.DomainTask:
		out := make([]model.Entity, len(c.db.Tasks))
		for i := range c.db.Tasks {
			out[i] = c.db.Tasks[i]
		}
		return out, nil
	case model.DomainProject:
		out := make([]model.Entity, len(c.db.Projects))
		for i := range c.db.Projects {
			out[i] = c.db.Projects[i]
		}
		return out, nil
	case model.DomainTimeLog:
		out := make([]model.Entity, len(c.db.TimeLogs))
		for i := range c.db.TimeLogs {
			out[i] = c.db.TimeLogs[i]
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown domain %q", domain)
	}
}

// CurrentValue reads one field of the live row, for staleness checks
// before committing staged edits.
func (c *Conn) CurrentValue(domain model.Domain, key, field string) (string, bool) {
	ent := c.find(domain, key)
	if ent == nil {
		return "", false
	}
	v, ok := ent.Field(field)
	return v, ok
}

// ApplyEdit validates, normalizes, and persists a single-field update.
// A missing target row comes back as an EditConflictError.
func (c *Conn) ApplyEdit(domain model.Domain, key, field, newValue string) error {
	normalized, err := c.reg.Normalize(domain, field, newValue)
	if err != nil {
		return err
	}
	if err := c.reg.Validate(domain, field, normalized); err != nil {
		return err
	}
	ent := c.find(domain, key)
	if ent == nil {
		return &EditConflictError{Domain: domain, Key: key, Field: field, Reason: "row no longer exists"}
	}
	if err := ent.SetField(field, normalized); err != nil {
		return err
	}
	return c.store.Save(c.db)
}

// ApplyEdits is the staged-edit commit: every field validates and applies
// in memory before the single save, so a write failure never leaves a
// partially persisted set.
func (c *Conn) ApplyEdits(domain model.Domain, key string, fields map[string]string) error {
	ent := c.find(domain, key)
	if ent == nil {
		return &EditConflictError{Domain: domain, Key: key, Reason: "row no longer exists"}
	}
	normalized := make(map[string]string, len(fields))
	for field, raw := range fields {
		v, err := c.reg.Normalize(domain, field, raw)
		if err != nil {
			return err
		}
		if err := c.reg.Validate(domain, field, v); err != nil {
			return err
		}
		normalized[field] = v
	}
	for field, v := range normalized {
		if err := ent.SetField(field, v); err != nil {
			return err
		}
	}
	return c.store.Save(c.db)
}

// DeleteEntities removes rows by key. Unknown keys are ignored so a
// multi-select delete is not defeated by one row vanishing first.
func (c *Conn) DeleteEntities(domain model.Domain, keys []string) error {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	switch domain {
	case model.DomainTask:
		c.db.Tasks = filterSlice(c.db.Tasks, func(t model.Task) bool { return !drop[t.Key()] })
	case model.DomainProject:
		c.db.Projects = filterSlice(c.db.Projects, func(p model.Project) bool { return !drop[p.Key()] })
	case model.DomainTimeLog:
		c.db.TimeLogs = filterSlice(c.db.TimeLogs, func(l model.TimeLog) bool { return !drop[l.Key()] })
	default:
		return fmt.Errorf("unknown domain %q", domain)
	}
	return c.store.Save(c.db)
}

// MoveGroupField is the kanban drop: same contract as ApplyEdit, kept
// separate so the caller's intent is visible in the store API.
func (c *Conn) MoveGroupField(domain model.Domain, key, field, newValue string) error {
	return c.ApplyEdit(domain, key, field, newValue)
}

// AddTask creates a task with normalized fields and persists it.
func (c *Conn) AddTask(text string, fields map[string]string, now time.Time) (model.Task, error) {
	t := model.Task{
		ID:        c.store.NextID(c.db, model.DomainTask),
		Text:      text,
		Status:    "open",
		CreatedAt: now,
	}
	for name, raw := range fields {
		normalized, err := c.reg.Normalize(model.DomainTask, name, raw)
		if err != nil {
			return model.Task{}, err
		}
		if err := c.reg.Validate(model.DomainTask, name, normalized); err != nil {
			return model.Task{}, err
		}
		if err := t.SetField(name, normalized); err != nil {
			return model.Task{}, err
		}
	}
	c.ensureProject(t.Project, now)
	c.db.Tasks = append(c.db.Tasks, t)
	return t, c.store.Save(c.db)
}

// CompleteTask marks a task done and stamps the completion time.
func (c *Conn) CompleteTask(id int, now time.Time) error {
	for i := range c.db.Tasks {
		if c.db.Tasks[i].ID == id {
			c.db.Tasks[i].Status = "done"
			c.db.Tasks[i].DoneAt = &now
			return c.store.Save(c.db)
		}
	}
	return fmt.Errorf("task %d not found", id)
}

// StartClock opens a time log entry on a task. An already-running clock is
// stopped first so at most one entry is open.
func (c *Conn) StartClock(taskID int, note string, now time.Time) (model.TimeLog, error) {
	task := c.find(model.DomainTask, strconv.Itoa(taskID))
	if task == nil {
		return model.TimeLog{}, fmt.Errorf("task %d not found", taskID)
	}
	c.stopOpenClocks(now)
	project, _ := task.Field("project")
	entry := model.TimeLog{
		ID:      c.store.NextID(c.db, model.DomainTimeLog),
		TaskID:  taskID,
		Project: project,
		Note:    note,
		Start:   now,
	}
	c.db.TimeLogs = append(c.db.TimeLogs, entry)
	return entry, c.store.Save(c.db)
}

// StopClock closes the open time log entry, if any.
func (c *Conn) StopClock(now time.Time) (model.TimeLog, bool, error) {
	entry, stopped := c.stopOpenClocks(now)
	if !stopped {
		return model.TimeLog{}, false, nil
	}
	if err := c.store.Save(c.db); err != nil {
		return model.TimeLog{}, false, err
	}
	return entry, true, nil
}

// stopOpenClocks closes every entry without an end time and returns the
// last one it closed. More than one open entry only happens on a
// hand-edited file; the invariant elsewhere is at most one.
func (c *Conn) stopOpenClocks(now time.Time) (model.TimeLog, bool) {
	var entry model.TimeLog
	stopped := false
	for i := range c.db.TimeLogs {
		if c.db.TimeLogs[i].End == nil {
			end := now
			c.db.TimeLogs[i].End = &end
			entry = c.db.TimeLogs[i]
			stopped = true
		}
	}
	return entry, stopped
}

// ensureProject creates a project row the first time a task references it.
func (c *Conn) ensureProject(name string, now time.Time) {
	if name == "" {
		return
	}
	for i := range c.db.Projects {
		if c.db.Projects[i].Name == name {
			return
		}
	}
	c.db.Projects = append(c.db.Projects, model.Project{Name: name, Status: "active", CreatedAt: now})
}

// ProjectNames lists known project names for the parser's multi-word
// project matching.
func (c *Conn) ProjectNames() []string {
	names := make([]string, 0, len(c.db.Projects))
	for _, p := range c.db.Projects {
		names = append(names, p.Name)
	}
	return names
}

func (c *Conn) find(domain model.Domain, key string) model.Mutable {
	switch domain {
	case model.DomainTask:
		for i := range c.db.Tasks {
			if c.db.Tasks[i].Key() == key {
				return &c.db.Tasks[i]
			}
		}
	case model.DomainProject:
		for i := range c.db.Projects {
			if c.db.Projects[i].Key() == key {
				return &c.db.Projects[i]
			}
		}
	case model.DomainTimeLog:
		for i := range c.db.TimeLogs {
			if c.db.TimeLogs[i].Key() == key {
				return &c.db.TimeLogs[i]
			}
		}
	}
	return nil
}

func filterSlice[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
