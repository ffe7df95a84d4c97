// Package timeline learns daily and weekly occurrence patterns from a
// retained scene-transition timeline.
//
// The miner owns two collections: the append-only scene history (capped
// at a retention window) and the derived pattern set. Patterns are
// re-derived wholesale on each analysis pass and replaced atomically, so
// stale patterns never linger. Re-analysis is debounced by a minimum
// interval so bursts of transitions do not trigger redundant full scans.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/nudge/internal/engine/scene"
)

// Period distinguishes daily from weekly patterns.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// Record is one entry in the scene-transition timeline. The open record
// (EndMs nil) is the scene currently in progress.
type Record struct {
	Category        scene.Category `json:"category"`
	StartMs         int64          `json:"start_ms"`
	EndMs           *int64         `json:"end_ms,omitempty"`
	DurationMinutes *float64       `json:"duration_minutes,omitempty"`

	// DayOfWeek is the ISO weekday of StartMs: Monday=1 .. Sunday=7.
	DayOfWeek int `json:"day_of_week"`

	// Hour is the local hour of StartMs, 0..23.
	Hour int `json:"hour"`
}

// Pattern is a derived temporal occurrence pattern. The full pattern set
// is replaced on every analysis pass; IDs are deterministic so
// replacement is idempotent.
type Pattern struct {
	ID          string         `json:"id"`
	Period      Period         `json:"period"`
	TriggerTime string         `json:"trigger_time"` // "HH:MM"
	TriggerDays []int          `json:"trigger_days,omitempty"`
	Category    scene.Category `json:"category"`
	Confidence  float64        `json:"confidence"`
	SampleCount int            `json:"sample_count"`

	AvgDurationMinutes *float64 `json:"avg_duration_minutes,omitempty"`
	LastOccurrenceMs   int64    `json:"last_occurrence_ms"`
}

// Config holds miner thresholds.
type Config struct {
	// RetentionDays caps the timeline. Default: 30.
	RetentionDays int

	// MinAnalyzeIntervalMs debounces full re-analysis. Default: 6 hours.
	MinAnalyzeIntervalMs int64

	// MinPatternSamples is the minimum history records per category, and
	// per daily hour bucket. Default: 3.
	MinPatternSamples int

	// WeeklyMinSamples is the looser per-bucket requirement for weekly
	// (day, hour) buckets. Default: 2.
	WeeklyMinSamples int

	// ConfidenceThreshold is the minimum derived confidence for a
	// pattern to be emitted. Default: 0.6.
	ConfidenceThreshold float64

	// PredictionWindowMinutes bounds how far ahead predictions look.
	// Default: 180.
	PredictionWindowMinutes int

	// AnomalyToleranceMinutes is the window around a pattern's trigger
	// time considered "now" for anomaly detection. Default: 30.
	AnomalyToleranceMinutes int

	// AnomalyMinConfidence is the minimum pattern confidence for an
	// anomaly to be reported. Default: 0.7.
	AnomalyMinConfidence float64
}

// DefaultConfig returns the default miner configuration.
func DefaultConfig() Config {
	return Config{
		RetentionDays:           30,
		MinAnalyzeIntervalMs:    6 * 60 * 60 * 1000,
		MinPatternSamples:       3,
		WeeklyMinSamples:        2,
		ConfidenceThreshold:     0.6,
		PredictionWindowMinutes: 180,
		AnomalyToleranceMinutes: 30,
		AnomalyMinConfidence:    0.7,
	}
}

func (c Config) applyDefaults() Config {
	d := DefaultConfig()
	if c.RetentionDays <= 0 {
		c.RetentionDays = d.RetentionDays
	}
	if c.MinAnalyzeIntervalMs <= 0 {
		c.MinAnalyzeIntervalMs = d.MinAnalyzeIntervalMs
	}
	if c.MinPatternSamples <= 0 {
		c.MinPatternSamples = d.MinPatternSamples
	}
	if c.WeeklyMinSamples <= 0 {
		c.WeeklyMinSamples = d.WeeklyMinSamples
	}
	if c.ConfidenceThreshold <= 0 {
		c.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if c.PredictionWindowMinutes <= 0 {
		c.PredictionWindowMinutes = d.PredictionWindowMinutes
	}
	if c.AnomalyToleranceMinutes <= 0 {
		c.AnomalyToleranceMinutes = d.AnomalyToleranceMinutes
	}
	if c.AnomalyMinConfidence <= 0 {
		c.AnomalyMinConfidence = d.AnomalyMinConfidence
	}
	return c
}

// isoWeekday returns the ISO weekday for t: Monday=1 .. Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

// Store abstracts the persisted timeline collections.
type Store interface {
	LoadRecords(ctx context.Context) ([]Record, error)
	SaveRecords(ctx context.Context, records []Record) error
	LoadPatterns(ctx context.Context) ([]Pattern, error)
	SavePatterns(ctx context.Context, patterns []Pattern) error
}

// Miner owns the scene timeline and the derived pattern set.
type Miner struct {
	mu             sync.Mutex
	cfg            Config
	records        []Record
	patterns       []Pattern
	lastAnalyzedMs int64
	store          Store
	logger         *slog.Logger
}

// NewMiner creates a miner persisting through store. store may be nil
// for a purely in-memory miner.
func NewMiner(cfg Config, store Store, logger *slog.Logger) *Miner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Miner{
		cfg:    cfg.applyDefaults(),
		store:  store,
		logger: logger,
	}
}

// Load restores the timeline and pattern collections. Corrupt or absent
// data leaves the affected collection empty.
func (m *Miner) Load(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	records, err := m.store.LoadRecords(ctx)
	if err != nil {
		return err
	}
	patterns, err := m.store.LoadPatterns(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.records = records
	m.patterns = patterns
	m.mu.Unlock()
	return nil
}

// RecordTransition closes out the in-progress timeline record and opens
// a new one for newScene at now. Records older than the retention window
// are pruned, and a full re-analysis runs if the debounce interval has
// elapsed. confidence is the classification confidence of the new scene.
func (m *Miner) RecordTransition(ctx context.Context, newScene scene.Category, confidence float64, now time.Time) {
	nowMs := now.UnixMilli()

	m.mu.Lock()
	if n := len(m.records); n > 0 && m.records[n-1].EndMs == nil {
		open := &m.records[n-1]
		end := nowMs
		dur := float64(nowMs-open.StartMs) / 60000.0
		open.EndMs = &end
		open.DurationMinutes = &dur
	}

	m.records = append(m.records, Record{
		Category:  newScene,
		StartMs:   nowMs,
		DayOfWeek: isoWeekday(now),
		Hour:      now.Hour(),
	})

	cutoff := nowMs - int64(m.cfg.RetentionDays)*24*60*60*1000
	m.records = pruneBefore(m.records, cutoff)

	due := m.lastAnalyzedMs == 0 || nowMs-m.lastAnalyzedMs >= m.cfg.MinAnalyzeIntervalMs
	m.mu.Unlock()

	m.logger.Debug("scene transition recorded",
		"scene", newScene,
		"confidence", confidence,
	)
	m.saveRecords(ctx)

	if due {
		m.Analyze(ctx, now)
	}
}

func pruneBefore(records []Record, cutoffMs int64) []Record {
	kept := records[:0]
	for _, r := range records {
		if r.StartMs >= cutoffMs {
			kept = append(kept, r)
		}
	}
	return kept
}

// Reset clears the timeline and the derived pattern set, in memory and
// in the store, and re-arms the analysis debounce.
func (m *Miner) Reset(ctx context.Context) {
	m.mu.Lock()
	m.records = nil
	m.patterns = nil
	m.lastAnalyzedMs = 0
	m.mu.Unlock()

	m.saveRecords(ctx)
	m.savePatterns(ctx)
}

// Records returns a copy of the current timeline.
func (m *Miner) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Patterns returns a copy of the current pattern set.
func (m *Miner) Patterns() []Pattern {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Pattern, len(m.patterns))
	copy(out, m.patterns)
	return out
}

func (m *Miner) saveRecords(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	records := make([]Record, len(m.records))
	copy(records, m.records)
	m.mu.Unlock()

	if err := m.store.SaveRecords(ctx, records); err != nil {
		m.logger.Warn("failed to persist scene timeline, continuing in memory", "error", err)
	}
}

func (m *Miner) savePatterns(ctx context.Context) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	patterns := make([]Pattern, len(m.patterns))
	copy(patterns, m.patterns)
	m.mu.Unlock()

	if err := m.store.SavePatterns(ctx, patterns); err != nil {
		m.logger.Warn("failed to persist time patterns, continuing in memory", "error", err)
	}
}

// Analyze re-derives the full pattern set from the timeline and replaces
// it atomically. Partial sets are never committed: the new set is built
// completely before the swap.
func (m *Miner) Analyze(ctx context.Context, now time.Time) {
	m.mu.Lock()
	records := make([]Record, len(m.records))
	copy(records, m.records)
	m.mu.Unlock()

	next := m.derivePatterns(records)

	m.mu.Lock()
	m.patterns = next
	m.lastAnalyzedMs = now.UnixMilli()
	m.mu.Unlock()

	m.logger.Debug("pattern analysis complete",
		"records", len(records),
		"patterns", len(next),
	)
	m.savePatterns(ctx)
}

func (m *Miner) derivePatterns(records []Record) []Pattern {
	byCategory := make(map[scene.Category][]Record)
	for _, r := range records {
		byCategory[r.Category] = append(byCategory[r.Category], r)
	}

	var out []Pattern
	for category, recs := range byCategory {
		if len(recs) < m.cfg.MinPatternSamples {
			continue
		}
		out = append(out, m.dailyPatterns(category, recs)...)
		out = append(out, m.weeklyPatterns(category, recs)...)
	}
	return out
}

// dailyPatterns buckets records by hour of day. A bucket with enough
// samples yields a pattern at the mean minute offset within that hour,
// with confidence scaled by sample count.
func (m *Miner) dailyPatterns(category scene.Category, recs []Record) []Pattern {
	buckets := make(map[int][]Record)
	for _, r := range recs {
		buckets[r.Hour] = append(buckets[r.Hour], r)
	}

	var out []Pattern
	for hour, bucket := range buckets {
		if len(bucket) < m.cfg.MinPatternSamples {
			continue
		}
		confidence := float64(len(bucket)) / 10.0
		if confidence > 1 {
			confidence = 1
		}
		if confidence < m.cfg.ConfidenceThreshold {
			continue
		}
		out = append(out, Pattern{
			ID:                 fmt.Sprintf("daily-%s-%02d", category, hour),
			Period:             PeriodDaily,
			TriggerTime:        fmt.Sprintf("%02d:%02d", hour, meanMinute(bucket)),
			Category:           category,
			Confidence:         confidence,
			SampleCount:        len(bucket),
			AvgDurationMinutes: avgDuration(bucket),
			LastOccurrenceMs:   lastStart(bucket),
		})
	}
	return out
}

// weeklyPatterns buckets records by (day-of-week, hour). The sample
// requirement is looser than the daily pass, reflecting the weekly
// granularity.
func (m *Miner) weeklyPatterns(category scene.Category, recs []Record) []Pattern {
	type dayHour struct{ day, hour int }
	buckets := make(map[dayHour][]Record)
	for _, r := range recs {
		key := dayHour{r.DayOfWeek, r.Hour}
		buckets[key] = append(buckets[key], r)
	}

	var out []Pattern
	for key, bucket := range buckets {
		if len(bucket) < m.cfg.WeeklyMinSamples {
			continue
		}
		confidence := float64(len(bucket)) / 4.0
		if confidence > 1 {
			confidence = 1
		}
		if confidence < m.cfg.ConfidenceThreshold {
			continue
		}
		out = append(out, Pattern{
			ID:                 fmt.Sprintf("weekly-%s-%d-%02d", category, key.day, key.hour),
			Period:             PeriodWeekly,
			TriggerTime:        fmt.Sprintf("%02d:%02d", key.hour, meanMinute(bucket)),
			TriggerDays:        []int{key.day},
			Category:           category,
			Confidence:         confidence,
			SampleCount:        len(bucket),
			AvgDurationMinutes: avgDuration(bucket),
			LastOccurrenceMs:   lastStart(bucket),
		})
	}
	return out
}

// meanMinute returns the mean minute-of-hour of the bucket's records.
func meanMinute(bucket []Record) int {
	sum := 0
	for _, r := range bucket {
		sum += time.UnixMilli(r.StartMs).Minute()
	}
	return sum / len(bucket)
}

func avgDuration(bucket []Record) *float64 {
	sum := 0.0
	n := 0
	for _, r := range bucket {
		if r.DurationMinutes != nil {
			sum += *r.DurationMinutes
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func lastStart(bucket []Record) int64 {
	var last int64
	for _, r := range bucket {
		if r.StartMs > last {
			last = r.StartMs
		}
	}
	return last
}
