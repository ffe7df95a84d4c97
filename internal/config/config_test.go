package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Daemon.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.Daemon.LogLevel)
	}
	if cfg.Trigger.ConfidenceMin != 0.60 || cfg.Trigger.ConfidenceMax != 0.75 {
		t.Errorf("confidence band = [%v, %v], want [0.60, 0.75]",
			cfg.Trigger.ConfidenceMin, cfg.Trigger.ConfidenceMax)
	}
	if cfg.Trigger.MinDwellMins != 2 {
		t.Errorf("MinDwellMins = %d, want 2", cfg.Trigger.MinDwellMins)
	}
	if cfg.Trigger.CooldownMins != 60 {
		t.Errorf("CooldownMins = %d, want 60", cfg.Trigger.CooldownMins)
	}
	if cfg.Timeline.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.Timeline.RetentionDays)
	}
	if cfg.Feedback.WeightMin != 0.2 || cfg.Feedback.WeightMax != 2.0 {
		t.Errorf("weight bounds = [%v, %v], want [0.2, 2.0]",
			cfg.Feedback.WeightMin, cfg.Feedback.WeightMax)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Trigger.ConfidenceMin != 0.60 {
		t.Errorf("missing file should yield defaults, got ConfidenceMin = %v", cfg.Trigger.ConfidenceMin)
	}
}

func TestLoadFromFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
daemon:
  log_level: debug
trigger:
  confidence_min: 0.5
  confidence_max: 0.9
  cooldown_mins: 30
timeline:
  retention_days: 14
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Daemon.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Daemon.LogLevel)
	}
	if cfg.Trigger.ConfidenceMin != 0.5 || cfg.Trigger.ConfidenceMax != 0.9 {
		t.Errorf("confidence band = [%v, %v], want [0.5, 0.9]",
			cfg.Trigger.ConfidenceMin, cfg.Trigger.ConfidenceMax)
	}
	if cfg.Trigger.CooldownMins != 30 {
		t.Errorf("CooldownMins = %d, want 30", cfg.Trigger.CooldownMins)
	}
	if cfg.Timeline.RetentionDays != 14 {
		t.Errorf("RetentionDays = %d, want 14", cfg.Timeline.RetentionDays)
	}
	// Untouched sections keep defaults.
	if cfg.Trigger.MinDwellMins != 2 {
		t.Errorf("MinDwellMins = %d, want default 2", cfg.Trigger.MinDwellMins)
	}
	if cfg.Feedback.MaxRecords != 1000 {
		t.Errorf("MaxRecords = %d, want default 1000", cfg.Feedback.MaxRecords)
	}
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("trigger: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("LoadFromFile() with malformed YAML should error")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.Daemon.LogLevel = "verbose" }, "log_level"},
		{"inverted band", func(c *Config) { c.Trigger.ConfidenceMin = 0.8; c.Trigger.ConfidenceMax = 0.7 }, "confidence_min"},
		{"confidence above one", func(c *Config) { c.Trigger.ConfidenceMax = 1.5 }, "confidence_max"},
		{"negative cooldown", func(c *Config) { c.Trigger.CooldownMins = -1 }, "cooldown_mins"},
		{"zero retention", func(c *Config) { c.Timeline.RetentionDays = 0 }, "retention_days"},
		{"weight bounds", func(c *Config) { c.Feedback.WeightMax = 0.1 }, "weight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Trigger.CooldownMins = 90

	if err := cfg.SaveToFile(path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if got.Trigger.CooldownMins != 90 {
		t.Errorf("CooldownMins = %d, want 90", got.Trigger.CooldownMins)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("NUDGE_LOG_LEVEL", "warn")
	t.Setenv("NUDGE_DB_PATH", "/tmp/custom.db")

	cfg := DefaultConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Daemon.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.Daemon.LogLevel)
	}
	if cfg.Daemon.DatabasePath != "/tmp/custom.db" {
		t.Errorf("DatabasePath = %q, want /tmp/custom.db", cfg.Daemon.DatabasePath)
	}
}

func TestEngineConfigMapping(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trigger.MinDwellMins = 5
	cfg.Trigger.CooldownMins = 120
	cfg.Timeline.AnalyzeIntervalHours = 12

	gc := cfg.TriggerGateConfig()
	if gc.MinDwellMs != 5*60*1000 {
		t.Errorf("MinDwellMs = %d, want %d", gc.MinDwellMs, 5*60*1000)
	}
	if gc.CooldownMs != 120*60*1000 {
		t.Errorf("CooldownMs = %d, want %d", gc.CooldownMs, 120*60*1000)
	}

	mc := cfg.TimelineMinerConfig()
	if mc.MinAnalyzeIntervalMs != 12*60*60*1000 {
		t.Errorf("MinAnalyzeIntervalMs = %d, want %d", mc.MinAnalyzeIntervalMs, 12*60*60*1000)
	}

	ec := cfg.EscalateConfig()
	if ec.AcceptThreshold != 5 {
		t.Errorf("AcceptThreshold = %d, want 5", ec.AcceptThreshold)
	}
}

func TestDefaultPaths(t *testing.T) {
	p := DefaultPaths()
	if p.ConfigDir == "" || p.DataDir == "" {
		t.Fatal("DefaultPaths() returned empty directories")
	}
	if filepath.Base(p.ConfigFile()) != "config.yaml" {
		t.Errorf("ConfigFile() = %q, want config.yaml basename", p.ConfigFile())
	}
	if filepath.Base(p.DatabaseFile()) != "state.db" {
		t.Errorf("DatabaseFile() = %q, want state.db basename", p.DatabaseFile())
	}
}
