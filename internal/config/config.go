// Package config provides configuration management for nudge.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/runger/nudge/internal/engine/escalate"
	"github.com/runger/nudge/internal/engine/feedback"
	"github.com/runger/nudge/internal/engine/timeline"
	"github.com/runger/nudge/internal/engine/trigger"
)

// Config represents the nudge configuration.
type Config struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Timeline TimelineConfig `yaml:"timeline"`
	Feedback FeedbackConfig `yaml:"feedback"`
}

// DaemonConfig holds daemon-related settings.
type DaemonConfig struct {
	LogLevel     string `yaml:"log_level"`     // debug, info, warn, error
	LogFile      string `yaml:"log_file"`      // Log file path (overrides default)
	DatabasePath string `yaml:"database_path"` // SQLite path (overrides default)
}

// TriggerConfig holds suggestion admission settings.
type TriggerConfig struct {
	ConfidenceMin         float64 `yaml:"confidence_min"`          // Lower bound of the confidence band
	ConfidenceMax         float64 `yaml:"confidence_max"`          // Upper bound of the confidence band
	MinDwellMins          int     `yaml:"min_dwell_mins"`          // Dwell required before triggering
	CooldownMins          int     `yaml:"cooldown_mins"`           // Gap between triggers per scene
	MaxConsecutiveIgnores int     `yaml:"max_consecutive_ignores"` // Ignore streak that mutes a scene
	HighIgnoreRate        float64 `yaml:"high_ignore_rate"`        // Ignore share that mutes a scene
	MinFeedbackSamples    int     `yaml:"min_feedback_samples"`    // Samples before rate guards apply
	EscalateAcceptCount   int     `yaml:"escalate_accept_count"`   // Clean accepts before auto-mode offer
}

// TimelineConfig holds scene history and pattern mining settings.
type TimelineConfig struct {
	RetentionDays        int     `yaml:"retention_days"`         // Scene history retention
	AnalyzeIntervalHours int     `yaml:"analyze_interval_hours"` // Min hours between re-analysis
	MinPatternSamples    int     `yaml:"min_pattern_samples"`    // Samples per daily pattern bucket
	ConfidenceThreshold  float64 `yaml:"confidence_threshold"`   // Min confidence to emit a pattern
	PredictionWindowMins int     `yaml:"prediction_window_mins"` // Look-ahead for predictions
	AnomalyToleranceMins int     `yaml:"anomaly_tolerance_mins"` // Window around a pattern's time
	AnomalyMinConfidence float64 `yaml:"anomaly_min_confidence"` // Min confidence to report anomaly
}

// FeedbackConfig holds feedback ledger and weight settings.
type FeedbackConfig struct {
	MaxRecords        int     `yaml:"max_records"`         // Ledger cap (oldest dropped)
	AdjustRate        float64 `yaml:"adjust_rate"`         // Per-event weight step scale
	WeightMin         float64 `yaml:"weight_min"`          // Weight floor
	WeightMax         float64 `yaml:"weight_max"`          // Weight ceiling
	InsightWindowDays int     `yaml:"insight_window_days"` // Insight lookback window
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Daemon: DaemonConfig{
			LogLevel:     "info",
			LogFile:      "", // Use default from paths
			DatabasePath: "", // Use default from paths
		},
		Trigger: TriggerConfig{
			ConfidenceMin:         0.60,
			ConfidenceMax:         0.75,
			MinDwellMins:          2,
			CooldownMins:          60,
			MaxConsecutiveIgnores: 3,
			HighIgnoreRate:        0.7,
			MinFeedbackSamples:    3,
			EscalateAcceptCount:   5,
		},
		Timeline: TimelineConfig{
			RetentionDays:        30,
			AnalyzeIntervalHours: 6,
			MinPatternSamples:    3,
			ConfidenceThreshold:  0.6,
			PredictionWindowMins: 180,
			AnomalyToleranceMins: 30,
			AnomalyMinConfidence: 0.7,
		},
		Feedback: FeedbackConfig{
			MaxRecords:        1000,
			AdjustRate:        0.1,
			WeightMin:         0.2,
			WeightMax:         2.0,
			InsightWindowDays: 7,
		},
	}
}

// Load loads configuration from the default path.
func Load() (*Config, error) {
	paths := DefaultPaths()
	return LoadFromFile(paths.ConfigFile())
}

// LoadFromFile loads configuration from the specified file.
// If the file doesn't exist, returns default configuration.
// Environment variable overrides are applied after file loading.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to the default path.
func (c *Config) Save() error {
	paths := DefaultPaths()
	return c.SaveToFile(paths.ConfigFile())
}

// SaveToFile saves the configuration to the specified file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !isValidLogLevel(c.Daemon.LogLevel) {
		return fmt.Errorf("daemon.log_level must be debug, info, warn, or error (got: %s)", c.Daemon.LogLevel)
	}

	t := c.Trigger
	if t.ConfidenceMin < 0 || t.ConfidenceMin > 1 {
		return errors.New("trigger.confidence_min must be in [0, 1]")
	}
	if t.ConfidenceMax < 0 || t.ConfidenceMax > 1 {
		return errors.New("trigger.confidence_max must be in [0, 1]")
	}
	if t.ConfidenceMin >= t.ConfidenceMax {
		return errors.New("trigger.confidence_min must be below trigger.confidence_max")
	}
	if t.MinDwellMins < 0 {
		return errors.New("trigger.min_dwell_mins must be >= 0")
	}
	if t.CooldownMins < 0 {
		return errors.New("trigger.cooldown_mins must be >= 0")
	}
	if t.HighIgnoreRate <= 0 || t.HighIgnoreRate > 1 {
		return errors.New("trigger.high_ignore_rate must be in (0, 1]")
	}

	if c.Timeline.RetentionDays < 1 {
		return errors.New("timeline.retention_days must be >= 1")
	}
	if c.Timeline.ConfidenceThreshold <= 0 || c.Timeline.ConfidenceThreshold > 1 {
		return errors.New("timeline.confidence_threshold must be in (0, 1]")
	}

	f := c.Feedback
	if f.MaxRecords < 1 {
		return errors.New("feedback.max_records must be >= 1")
	}
	if f.WeightMin <= 0 || f.WeightMax <= f.WeightMin {
		return errors.New("feedback weight bounds must satisfy 0 < weight_min < weight_max")
	}

	return nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// ApplyEnvOverrides applies environment variable overrides to the config.
// Environment variables override config file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("NUDGE_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			c.Daemon.LogLevel = "debug"
		}
	}
	if v := os.Getenv("NUDGE_LOG_LEVEL"); v != "" {
		if isValidLogLevel(v) {
			c.Daemon.LogLevel = v
		}
	}
	if v := os.Getenv("NUDGE_DB_PATH"); v != "" {
		c.Daemon.DatabasePath = v
	}
}

// TriggerGateConfig maps the file representation onto the gate config.
func (c *Config) TriggerGateConfig() trigger.Config {
	return trigger.Config{
		ConfidenceMin:         c.Trigger.ConfidenceMin,
		ConfidenceMax:         c.Trigger.ConfidenceMax,
		MinDwellMs:            int64(c.Trigger.MinDwellMins) * 60 * 1000,
		CooldownMs:            int64(c.Trigger.CooldownMins) * 60 * 1000,
		MaxConsecutiveIgnores: c.Trigger.MaxConsecutiveIgnores,
		HighIgnoreRate:        c.Trigger.HighIgnoreRate,
		MinFeedbackSamples:    c.Trigger.MinFeedbackSamples,
	}
}

// EscalateConfig maps the file representation onto the coordinator config.
func (c *Config) EscalateConfig() escalate.Config {
	return escalate.Config{AcceptThreshold: c.Trigger.EscalateAcceptCount}
}

// TimelineMinerConfig maps the file representation onto the miner config.
func (c *Config) TimelineMinerConfig() timeline.Config {
	return timeline.Config{
		RetentionDays:           c.Timeline.RetentionDays,
		MinAnalyzeIntervalMs:    int64(c.Timeline.AnalyzeIntervalHours) * 60 * 60 * 1000,
		MinPatternSamples:       c.Timeline.MinPatternSamples,
		ConfidenceThreshold:     c.Timeline.ConfidenceThreshold,
		PredictionWindowMinutes: c.Timeline.PredictionWindowMins,
		AnomalyToleranceMinutes: c.Timeline.AnomalyToleranceMins,
		AnomalyMinConfidence:    c.Timeline.AnomalyMinConfidence,
	}
}

// FeedbackAdjusterConfig maps the file representation onto the adjuster
// config. Insight and recommendation thresholds keep their defaults.
func (c *Config) FeedbackAdjusterConfig() feedback.Config {
	return feedback.Config{
		MaxRecords:        c.Feedback.MaxRecords,
		AdjustRate:        c.Feedback.AdjustRate,
		WeightMin:         c.Feedback.WeightMin,
		WeightMax:         c.Feedback.WeightMax,
		InsightWindowDays: c.Feedback.InsightWindowDays,
	}
}
