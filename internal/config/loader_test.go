package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Server.Port)
	}
	if cfg.Jobs.ResultTTL != time.Hour {
		t.Fatalf("expected default result ttl, got %s", cfg.Jobs.ResultTTL)
	}
	if len(cfg.Scheduler.Entries) != 2 {
		t.Fatalf("expected default schedule entries, got %d", len(cfg.Scheduler.Entries))
	}
}

func TestLoadFrom_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizmaster.yaml")
	yaml := `
server:
  port: "9090"
cache:
  ttl: 10m
scheduler:
  entries:
    - task: send_daily_reminders
      cron: "daily:08:30"
      lane: reminders
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected yaml port, got %q", cfg.Server.Port)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Fatalf("expected yaml cache ttl, got %s", cfg.Cache.TTL)
	}
	if len(cfg.Scheduler.Entries) != 1 || cfg.Scheduler.Entries[0].Cron != "daily:08:30" {
		t.Fatalf("expected yaml schedule, got %+v", cfg.Scheduler.Entries)
	}
	// Untouched sections keep their defaults.
	if cfg.Postgres.MaxConns != 15 {
		t.Fatalf("expected default max_conns, got %d", cfg.Postgres.MaxConns)
	}
}

func TestLoadFrom_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizmaster.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9090\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QUIZMASTER_PORT", "7070")
	t.Setenv("QUIZMASTER_JOBS_SOFT_LIMIT", "10m")
	t.Setenv("QUIZMASTER_JOBS_HARD_LIMIT", "12m")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != "7070" {
		t.Fatalf("expected env port, got %q", cfg.Server.Port)
	}
	if cfg.Jobs.SoftLimit != 10*time.Minute || cfg.Jobs.HardLimit != 12*time.Minute {
		t.Fatalf("expected env limits, got %s/%s", cfg.Jobs.SoftLimit, cfg.Jobs.HardLimit)
	}
}

func TestLoadFrom_TaskRoutingTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizmaster.yaml")
	yaml := `
jobs:
  tasks:
    export_user_csv:
      lane: bulk
      soft_limit: 5m
      hard_limit: 10m
      max_retries: 3
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	task, ok := cfg.Jobs.Tasks["export_user_csv"]
	if !ok {
		t.Fatal("expected routing table entry for export_user_csv")
	}
	if task.Lane != "bulk" || task.SoftLimit != 5*time.Minute || task.HardLimit != 10*time.Minute || task.MaxRetries != 3 {
		t.Fatalf("unexpected task entry %+v", task)
	}
	// Global limits stay at their defaults.
	if cfg.Jobs.SoftLimit != 50*time.Minute {
		t.Fatalf("global soft limit changed: %s", cfg.Jobs.SoftLimit)
	}
}

func TestLoadFrom_RejectsInvertedTaskLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizmaster.yaml")
	yaml := "jobs:\n  tasks:\n    export_user_csv:\n      soft_limit: 2h\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	// soft 2h against the global 1h hard limit is inverted.
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected validation error for task soft_limit above the effective hard_limit")
	}
}

func TestLoadFrom_RejectsInvertedLimits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quizmaster.yaml")
	yaml := "jobs:\n  soft_limit: 2h\n  hard_limit: 1h\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected validation error for hard_limit <= soft_limit")
	}
}
