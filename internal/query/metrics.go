package query

import (
	"fmt"
	"time"

	"taskdeck/internal/model"
	"taskdeck/internal/schema"
)

// metricFunc computes a derived per-row value and attaches it under the
// metric's name.
type metricFunc func(rows []Row)

func (e *Evaluator) registerMetrics() {
	e.metrics = map[model.Domain]map[string]metricFunc{
		model.DomainTask: {
			"time_total": e.metricTaskTimeTotal,
			"time_week":  e.metricTaskTimeWeek,
			"age":        e.metricTaskAge,
		},
		model.DomainProject: {
			"time_total": e.metricProjectTimeTotal,
			"time_week":  e.metricProjectTimeWeek,
			"open_tasks": e.metricProjectOpenTasks,
		},
		model.DomainTimeLog: {},
	}
}

// applyMetrics attaches each requested metric. An unknown metric for the
// domain is a logged warning; the metric is simply not attached.
func (e *Evaluator) applyMetrics(spec *Spec, rows []Row, res *Result) {
	if len(spec.Directives.Metrics) == 0 {
		return
	}
	byDomain := e.metrics[spec.Domain]
	for _, name := range spec.Directives.Metrics {
		fn, ok := byDomain[name]
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown metric %q", name))
			e.log.Warn().Str("metric", name).Str("domain", string(spec.Domain)).Msg("query: unknown metric, not attached")
			continue
		}
		fn(rows)
	}
}

// startOfWeek is the most recent Monday at midnight.
func startOfWeek(now time.Time) time.Time {
	t := schema.Midnight(now)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// timelogTotalsByTask sums entry durations per task id; a nil filter sums
// everything.
func (e *Evaluator) timelogTotalsByTask(filter func(model.TimeLog) bool) map[int]time.Duration {
	ents, err := e.provider.GetEntities(model.DomainTimeLog)
	if err != nil {
		e.log.Warn().Err(err).Msg("query: metric lookup failed")
		return nil
	}
	totals := map[int]time.Duration{}
	for _, ent := range ents {
		l, ok := ent.(model.TimeLog)
		if !ok {
			continue
		}
		if filter != nil && !filter(l) {
			continue
		}
		totals[l.TaskID] += l.Duration()
	}
	return totals
}

func (e *Evaluator) timelogTotalsByProject(filter func(model.TimeLog) bool) map[string]time.Duration {
	ents, err := e.provider.GetEntities(model.DomainTimeLog)
	if err != nil {
		e.log.Warn().Err(err).Msg("query: metric lookup failed")
		return nil
	}
	tasks := e.tasksByID()
	totals := map[string]time.Duration{}
	for _, ent := range ents {
		l, ok := ent.(model.TimeLog)
		if !ok {
			continue
		}
		if filter != nil && !filter(l) {
			continue
		}
		name := l.Project
		if name == "" {
			if t, ok := tasks[l.TaskID]; ok {
				name = t.Project
			}
		}
		if name != "" {
			totals[name] += l.Duration()
		}
	}
	return totals
}

func (e *Evaluator) metricTaskTimeTotal(rows []Row) {
	totals := e.timelogTotalsByTask(nil)
	for i := range rows {
		if t, ok := rows[i].Entity.(model.Task); ok {
			rows[i].attach("time_total", model.FormatDuration(totals[t.ID]))
		}
	}
}

func (e *Evaluator) metricTaskTimeWeek(rows []Row) {
	week := startOfWeek(e.Now())
	totals := e.timelogTotalsByTask(func(l model.TimeLog) bool { return !l.Start.Before(week) })
	for i := range rows {
		if t, ok := rows[i].Entity.(model.Task); ok {
			rows[i].attach("time_week", model.FormatDuration(totals[t.ID]))
		}
	}
}

func (e *Evaluator) metricTaskAge(rows []Row) {
	today := schema.Midnight(e.Now())
	for i := range rows {
		t, ok := rows[i].Entity.(model.Task)
		if !ok {
			continue
		}
		days := int(today.Sub(schema.Midnight(t.CreatedAt)).Hours() / 24)
		if days < 0 {
			days = 0
		}
		rows[i].attach("age", fmt.Sprintf("%dd", days))
	}
}

func (e *Evaluator) metricProjectTimeTotal(rows []Row) {
	totals := e.timelogTotalsByProject(nil)
	for i := range rows {
		if p, ok := rows[i].Entity.(model.Project); ok {
			rows[i].attach("time_total", model.FormatDuration(totals[p.Name]))
		}
	}
}

func (e *Evaluator) metricProjectTimeWeek(rows []Row) {
	week := startOfWeek(e.Now())
	totals := e.timelogTotalsByProject(func(l model.TimeLog) bool { return !l.Start.Before(week) })
	for i := range rows {
		if p, ok := rows[i].Entity.(model.Project); ok {
			rows[i].attach("time_week", model.FormatDuration(totals[p.Name]))
		}
	}
}

func (e *Evaluator) metricProjectOpenTasks(rows []Row) {
	ents, err := e.provider.GetEntities(model.DomainTask)
	if err != nil {
		e.log.Warn().Err(err).Msg("query: metric lookup failed")
		return
	}
	open := map[string]int{}
	for _, ent := range ents {
		if t, ok := ent.(model.Task); ok && t.DoneAt == nil {
			open[t.Project]++
		}
	}
	for i := range rows {
		if p, ok := rows[i].Entity.(model.Project); ok {
			rows[i].attach("open_tasks", fmt.Sprintf("%d", open[p.Name]))
		}
	}
}
