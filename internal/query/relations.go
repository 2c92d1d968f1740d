package query

import (
	"taskdeck/internal/model"
)

// relationFunc attaches derived fields from a related collection onto each
// row. Relations are additive: they only ever add computed properties.
type relationFunc func(rows []Row)

// registerRelations wires the per-domain relation resolvers. An
// unresolvable relation name for a domain is a deliberate no-op.
func (e *Evaluator) registerRelations() {
	e.relations = map[model.Domain]map[string]relationFunc{
		model.DomainTask: {
			"project": e.relateTaskProject,
			"time":    e.relateTaskTime,
		},
		model.DomainTimeLog: {
			"task":    e.relateTimeLogTask,
			"project": e.relateTimeLogProject,
		},
		model.DomainProject: {},
	}
}

func (e *Evaluator) applyRelations(spec *Spec, rows []Row) {
	if len(spec.Directives.Relations) == 0 {
		return
	}
	byDomain := e.relations[spec.Domain]
	for _, name := range spec.Directives.Relations {
		fn, ok := byDomain[name]
		if !ok {
			// Permissive by design: relations are additive.
			e.log.Debug().Str("relation", name).Str("domain", string(spec.Domain)).Msg("query: relation not defined, skipping")
			continue
		}
		fn(rows)
	}
}

func (e *Evaluator) projectsByName() map[string]model.Project {
	ents, err := e.provider.GetEntities(model.DomainProject)
	if err != nil {
		e.log.Warn().Err(err).Msg("query: relation lookup failed")
		return nil
	}
	out := make(map[string]model.Project, len(ents))
	for _, ent := range ents {
		if p, ok := ent.(model.Project); ok {
			out[p.Name] = p
		}
	}
	return out
}

func (e *Evaluator) tasksByID() map[int]model.Task {
	ents, err := e.provider.GetEntities(model.DomainTask)
	if err != nil {
		e.log.Warn().Err(err).Msg("query: relation lookup failed")
		return nil
	}
	out := make(map[int]model.Task, len(ents))
	for _, ent := range ents {
		if t, ok := ent.(model.Task); ok {
			out[t.ID] = t
		}
	}
	return out
}

// relateTaskProject attaches project_status / project_description to tasks.
func (e *Evaluator) relateTaskProject(rows []Row) {
	projects := e.projectsByName()
	for i := range rows {
		t, ok := rows[i].Entity.(model.Task)
		if !ok {
			continue
		}
		if p, ok := projects[t.Project]; ok {
			rows[i].attach("project_status", p.Status)
			rows[i].attach("project_description", p.Description)
		}
	}
}

// relateTaskTime attaches time_total from the task's timelog entries.
func (e *Evaluator) relateTaskTime(rows []Row) {
	totals := e.timelogTotalsByTask(nil)
	for i := range rows {
		t, ok := rows[i].Entity.(model.Task)
		if !ok {
			continue
		}
		rows[i].attach("time_total", model.FormatDuration(totals[t.ID]))
	}
}

// relateTimeLogTask attaches task_text to timelog rows.
func (e *Evaluator) relateTimeLogTask(rows []Row) {
	tasks := e.tasksByID()
	for i := range rows {
		l, ok := rows[i].Entity.(model.TimeLog)
		if !ok {
			continue
		}
		if t, ok := tasks[l.TaskID]; ok {
			rows[i].attach("task_text", t.Text)
		}
	}
}

// relateTimeLogProject attaches project_name, falling back through the
// entry's task when the entry itself has no project.
func (e *Evaluator) relateTimeLogProject(rows []Row) {
	tasks := e.tasksByID()
	projects := e.projectsByName()
	for i := range rows {
		l, ok := rows[i].Entity.(model.TimeLog)
		if !ok {
			continue
		}
		name := l.Project
		if name == "" {
			if t, ok := tasks[l.TaskID]; ok {
				name = t.Project
			}
		}
		rows[i].attach("project_name", name)
		if p, ok := projects[name]; ok {
			rows[i].attach("project_status", p.Status)
		}
	}
}
