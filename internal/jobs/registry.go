// Package jobs implements the asynchronous job subsystem: the task
// registry, the worker that executes dequeued envelopes, the scheduler
// that enqueues recurring tasks, and the task handlers themselves.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Task names. These appear in envelopes, schedule entries and API
// payloads; changing one is a wire-format change.
const (
	TaskExportUserCSV   = "export_user_csv"
	TaskSendReminders   = "send_daily_reminders"
	TaskGenerateReports = "generate_monthly_reports"
)

// Lane names. Each lane maps to one queue subject and one worker pool.
const (
	LaneExports   = "exports"
	LaneReminders = "reminders"
	LaneReports   = "reports"
)

// HandlerFunc executes one task. The context carries the soft time
// limit as its deadline; a cooperative handler returns once the
// deadline passes. The returned string is the human-readable result
// recorded for pollers.
type HandlerFunc func(ctx context.Context, args map[string]string) (string, error)

// Options bound a task's execution.
type Options struct {
	// Lane the task is published on.
	Lane string

	// SoftLimit is the context deadline handed to the handler.
	SoftLimit time.Duration

	// HardLimit is the point at which the worker abandons the handler and
	// records a timeout failure. Must exceed SoftLimit.
	HardLimit time.Duration

	// MaxRetries is the number of additional attempts after the first
	// failure. Zero means the task runs exactly once.
	MaxRetries int

	// RetryBackoff is the pause between attempts.
	RetryBackoff time.Duration
}

type registration struct {
	handler HandlerFunc
	opts    Options
}

// Registry maps task names to handlers and their execution options.
// It is populated at startup and read-only afterwards.
type Registry struct {
	tasks map[string]registration
}

// NewRegistry creates an empty task registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]registration)}
}

// Register adds a task. Duplicate names and inverted limits are
// programming errors.
func (r *Registry) Register(name string, handler HandlerFunc, opts Options) {
	if _, exists := r.tasks[name]; exists {
		panic("jobs: duplicate task " + name)
	}
	if opts.HardLimit > 0 && opts.HardLimit <= opts.SoftLimit {
		panic("jobs: hard limit must exceed soft limit for " + name)
	}
	r.tasks[name] = registration{handler: handler, opts: opts}
}

// Lookup returns the handler and options for a task name.
func (r *Registry) Lookup(name string) (HandlerFunc, Options, error) {
	reg, ok := r.tasks[name]
	if !ok {
		return nil, Options{}, fmt.Errorf("unknown task %q", name)
	}
	return reg.handler, reg.opts, nil
}

// Lanes returns the distinct lanes of all registered tasks, sorted.
func (r *Registry) Lanes() []string {
	seen := make(map[string]bool)
	for _, reg := range r.tasks {
		seen[reg.opts.Lane] = true
	}
	lanes := make([]string, 0, len(seen))
	for lane := range seen {
		lanes = append(lanes, lane)
	}
	sort.Strings(lanes)
	return lanes
}

// Names returns all registered task names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
