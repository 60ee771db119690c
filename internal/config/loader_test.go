package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "full" {
		t.Errorf("Mode = %q, want full", cfg.Mode)
	}
	if cfg.Scheduler.ResultBatchLimit != 50 {
		t.Errorf("ResultBatchLimit = %d, want 50", cfg.Scheduler.ResultBatchLimit)
	}
	if got := cfg.Ingest.MatchDuration.Duration; got != 2*time.Hour {
		t.Errorf("MatchDuration = %v, want 2h", got)
	}
	if len(cfg.Oracle.Sources) != 4 {
		t.Errorf("Sources = %v, want all four adapters", cfg.Oracle.Sources)
	}
}

func TestLoadMergesTOMLOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
mode = "resolve"
log_level = "debug"

[oracle]
sources = ["flashscore", "bbcsport"]
source_timeout = "5s"
tie_break = "abstain"

[scheduler]
result_interval = "1m"

[ingest]
sports = ["football", "basketball"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "resolve" {
		t.Errorf("Mode = %q, want resolve", cfg.Mode)
	}
	if cfg.Oracle.TieBreak != "abstain" {
		t.Errorf("TieBreak = %q, want abstain", cfg.Oracle.TieBreak)
	}
	if got := cfg.Oracle.SourceTimeout.Duration; got != 5*time.Second {
		t.Errorf("SourceTimeout = %v, want 5s", got)
	}
	if got := cfg.Scheduler.ResultInterval.Duration; got != time.Minute {
		t.Errorf("ResultInterval = %v, want 1m", got)
	}
	// Sections absent from the file keep their defaults.
	if got := cfg.Scheduler.LockInterval.Duration; got != 10*time.Second {
		t.Errorf("LockInterval = %v, want default 10s", got)
	}
	if len(cfg.Ingest.Sports) != 2 {
		t.Errorf("Sports = %v, want two entries", cfg.Ingest.Sports)
	}
}

func TestLoadEnvOverridesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"serve\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("POOLBET_MODE", "ingest")
	t.Setenv("POOLBET_POSTGRES_DSN", "postgres://env/poolbet")
	t.Setenv("POOLBET_ORACLE_SOURCES", "sofascore, livescore")
	t.Setenv("POOLBET_REDIS_ENABLED", "false")
	t.Setenv("POOLBET_JUDGE_TIMEOUT", "90s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "ingest" {
		t.Errorf("Mode = %q, want env override ingest", cfg.Mode)
	}
	if cfg.Postgres.DSN != "postgres://env/poolbet" {
		t.Errorf("DSN = %q", cfg.Postgres.DSN)
	}
	want := []string{"sofascore", "livescore"}
	if len(cfg.Oracle.Sources) != len(want) || cfg.Oracle.Sources[0] != want[0] || cfg.Oracle.Sources[1] != want[1] {
		t.Errorf("Sources = %v, want %v", cfg.Oracle.Sources, want)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis.Enabled = true, want env override false")
	}
	if got := cfg.Judge.Timeout.Duration; got != 90*time.Second {
		t.Errorf("Judge.Timeout = %v, want 90s", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(c *Config) {}, false},
		{"unknown mode", func(c *Config) { c.Mode = "replay" }, true},
		{"bad tie break", func(c *Config) { c.Oracle.TieBreak = "random" }, true},
		{"no sources", func(c *Config) { c.Oracle.Sources = nil }, true},
		{"zero lock interval", func(c *Config) { c.Scheduler.LockInterval = duration{} }, true},
		{"no sports while ingesting", func(c *Config) { c.Ingest.Sports = nil }, true},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
