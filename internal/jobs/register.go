package jobs

import (
	"time"

	"github.com/quizmasterhq/quizmaster/internal/port/database"
)

// TaskLimits overrides the lane and execution bounds of a single task.
// Zero fields keep the task's defaults.
type TaskLimits struct {
	Lane         string
	Soft         time.Duration
	Hard         time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Limits bound task execution: the global defaults plus the per-task
// routing table keyed by task name.
type Limits struct {
	Soft         time.Duration
	Hard         time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	Tasks        map[string]TaskLimits
}

// optionsFor applies the task's routing-table entry on top of its
// default options.
func (l Limits) optionsFor(task string, defaults Options) Options {
	opts := defaults
	t, ok := l.Tasks[task]
	if !ok {
		return opts
	}
	if t.Lane != "" {
		opts.Lane = t.Lane
	}
	if t.Soft > 0 {
		opts.SoftLimit = t.Soft
	}
	if t.Hard > 0 {
		opts.HardLimit = t.Hard
	}
	if t.MaxRetries > 0 {
		opts.MaxRetries = t.MaxRetries
	}
	if t.RetryBackoff > 0 {
		opts.RetryBackoff = t.RetryBackoff
	}
	return opts
}

// RegisterAll wires the built-in tasks into a registry. The export task
// opts into retries by default; the scheduled tasks do not, since the
// scheduler re-fires them on their next window anyway.
func RegisterAll(r *Registry, store database.Store, notify Notifications, limits Limits) {
	r.Register(TaskExportUserCSV, ExportHandler(store, notify), limits.optionsFor(TaskExportUserCSV, Options{
		Lane:         LaneExports,
		SoftLimit:    limits.Soft,
		HardLimit:    limits.Hard,
		MaxRetries:   limits.MaxRetries,
		RetryBackoff: limits.RetryBackoff,
	}))
	r.Register(TaskSendReminders, RemindersHandler(store, notify), limits.optionsFor(TaskSendReminders, Options{
		Lane:      LaneReminders,
		SoftLimit: limits.Soft,
		HardLimit: limits.Hard,
	}))
	r.Register(TaskGenerateReports, ReportsHandler(store, notify), limits.optionsFor(TaskGenerateReports, Options{
		Lane:      LaneReports,
		SoftLimit: limits.Soft,
		HardLimit: limits.Hard,
	}))
}
