// Package feedback owns the suggestion feedback ledger and the weights
// derived from it.
//
// The ledger is an append-only, capacity-bounded log of individual
// feedback events. The adjuster folds those events into bounded
// multiplicative weights per (suggestion category, scene) pair and
// derives human-readable insights and reports from the trailing window.
package feedback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/runger/nudge/internal/engine/kv"
	"github.com/runger/nudge/internal/engine/scene"
)

// kv keys for the adjuster's collections.
const (
	recordsKey = "feedback_records"
	weightsKey = "suggestion_weights"
)

// Snapshot captures the context a feedback event occurred in.
type Snapshot struct {
	Hour      int            `json:"hour"`
	DayOfWeek int            `json:"day_of_week"`
	Scene     scene.Category `json:"scene"`
}

// Record is a single stored feedback event.
type Record struct {
	ID string `json:"id"`

	// Category is the suggestion category the feedback applies to
	// (e.g., "APP_LAUNCH", "DO_NOT_DISTURB").
	Category string `json:"category"`

	// Scene is the scene the suggestion was surfaced in.
	Scene scene.Category `json:"scene"`

	Action scene.Action `json:"action"`
	TsMs   int64        `json:"ts"`

	// ResponseTimeMs is how long the user took to respond, if known.
	ResponseTimeMs *int64 `json:"response_time_ms,omitempty"`

	Snapshot Snapshot `json:"snapshot"`
}

// Weight is the bounded multiplier for one (category, scene) pair.
type Weight struct {
	Category      string         `json:"category"`
	Scene         scene.Category `json:"scene"`
	Value         float64        `json:"value"`
	SampleCount   int            `json:"sample_count"`
	LastUpdatedMs int64          `json:"last_updated_ms"`
}

type weightKey struct {
	category string
	scene    scene.Category
}

// Config holds the adjuster's tuning parameters.
type Config struct {
	// MaxRecords caps the ledger; the oldest records are dropped first.
	// Default: 1000.
	MaxRecords int

	// AdjustRate scales the per-event weight step. Default: 0.1.
	AdjustRate float64

	// WeightMin and WeightMax bound every weight. Defaults: 0.2, 2.0.
	WeightMin float64
	WeightMax float64

	// InsightWindowDays restricts insight generation to recent records.
	// Default: 7.
	InsightWindowDays int

	// MinSamplesForInsight is the window sample count required before
	// insights are generated. Default: 5.
	MinSamplesForInsight int

	// PositiveRate and NegativeRate are the accept-rate cutoffs for
	// positive and negative insights. Defaults: 0.7, 0.3.
	PositiveRate float64
	NegativeRate float64

	// MinSamplesForRecommend is the recent sample count a pair needs
	// before a weight change is recommended. Default: 5.
	MinSamplesForRecommend int

	// RecommendHigh and RecommendLow are the accept-rate cutoffs for
	// recommending a weight increase or decrease. Defaults: 0.8, 0.2.
	RecommendHigh float64
	RecommendLow  float64

	// RecommendStep is the proposed weight delta, clamped to the weight
	// bounds. Default: 0.3.
	RecommendStep float64
}

// DefaultConfig returns the default adjuster configuration.
func DefaultConfig() Config {
	return Config{
		MaxRecords:             1000,
		AdjustRate:             0.1,
		WeightMin:              0.2,
		WeightMax:              2.0,
		InsightWindowDays:      7,
		MinSamplesForInsight:   5,
		PositiveRate:           0.7,
		NegativeRate:           0.3,
		MinSamplesForRecommend: 5,
		RecommendHigh:          0.8,
		RecommendLow:           0.2,
		RecommendStep:          0.3,
	}
}

func (c Config) applyDefaults() Config {
	d := DefaultConfig()
	if c.MaxRecords <= 0 {
		c.MaxRecords = d.MaxRecords
	}
	if c.AdjustRate <= 0 {
		c.AdjustRate = d.AdjustRate
	}
	if c.WeightMin <= 0 {
		c.WeightMin = d.WeightMin
	}
	if c.WeightMax <= 0 {
		c.WeightMax = d.WeightMax
	}
	if c.InsightWindowDays <= 0 {
		c.InsightWindowDays = d.InsightWindowDays
	}
	if c.MinSamplesForInsight <= 0 {
		c.MinSamplesForInsight = d.MinSamplesForInsight
	}
	if c.PositiveRate <= 0 {
		c.PositiveRate = d.PositiveRate
	}
	if c.NegativeRate <= 0 {
		c.NegativeRate = d.NegativeRate
	}
	if c.MinSamplesForRecommend <= 0 {
		c.MinSamplesForRecommend = d.MinSamplesForRecommend
	}
	if c.RecommendHigh <= 0 {
		c.RecommendHigh = d.RecommendHigh
	}
	if c.RecommendLow <= 0 {
		c.RecommendLow = d.RecommendLow
	}
	if c.RecommendStep <= 0 {
		c.RecommendStep = d.RecommendStep
	}
	return c
}

// Adjuster owns the feedback ledger and the suggestion weights.
type Adjuster struct {
	mu      sync.Mutex
	cfg     Config
	records []Record
	weights map[weightKey]*Weight

	recColl *kv.Collection[[]Record]
	wColl   *kv.Collection[[]Weight]
	logger  *slog.Logger
}

// NewAdjuster creates an adjuster persisting through store.
func NewAdjuster(cfg Config, store kv.Store, logger *slog.Logger) *Adjuster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adjuster{
		cfg:     cfg.applyDefaults(),
		weights: make(map[weightKey]*Weight),
		recColl: kv.NewCollection[[]Record](store, recordsKey, nil, logger),
		wColl:   kv.NewCollection[[]Weight](store, weightsKey, nil, logger),
		logger:  logger,
	}
}

// Load restores the ledger and weights. Corrupt or absent data leaves
// the affected collection empty.
func (a *Adjuster) Load(ctx context.Context) error {
	records, err := a.recColl.Load(ctx)
	if err != nil {
		return err
	}
	weights, err := a.wColl.Load(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.records = records
	a.weights = make(map[weightKey]*Weight, len(weights))
	for i := range weights {
		w := weights[i]
		a.weights[weightKey{w.Category, w.Scene}] = &w
	}
	a.mu.Unlock()
	return nil
}

// Record appends a feedback event to the ledger and folds it into the
// matching weight. responseTimeMs may be nil when unknown.
func (a *Adjuster) Record(ctx context.Context, category string, sc scene.Category, action scene.Action, responseTimeMs *int64, now time.Time) Record {
	rec := Record{
		ID:             uuid.NewString(),
		Category:       category,
		Scene:          sc,
		Action:         action,
		TsMs:           now.UnixMilli(),
		ResponseTimeMs: responseTimeMs,
		Snapshot: Snapshot{
			Hour:      now.Hour(),
			DayOfWeek: isoWeekday(now),
			Scene:     sc,
		},
	}

	a.mu.Lock()
	a.records = append(a.records, rec)
	if overflow := len(a.records) - a.cfg.MaxRecords; overflow > 0 {
		a.records = a.records[overflow:]
	}
	a.adjustLocked(category, sc, action, now.UnixMilli())
	a.mu.Unlock()

	a.save(ctx)
	return rec
}

// Records returns a copy of the ledger.
func (a *Adjuster) Records() []Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Record, len(a.records))
	copy(out, a.records)
	return out
}

// GetWeight returns the weight for (category, scene). Pairs with no
// feedback yet report the neutral weight 1.0.
func (a *Adjuster) GetWeight(category string, sc scene.Category) Weight {
	a.mu.Lock()
	defer a.mu.Unlock()

	if w, ok := a.weights[weightKey{category, sc}]; ok {
		return *w
	}
	return Weight{Category: category, Scene: sc, Value: 1.0}
}

// Weights returns a copy of every tracked weight.
func (a *Adjuster) Weights() []Weight {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Weight, 0, len(a.weights))
	for _, w := range a.weights {
		out = append(out, *w)
	}
	return out
}

// Reset clears the ledger and weights, in memory and in the store.
func (a *Adjuster) Reset(ctx context.Context) {
	a.mu.Lock()
	a.records = nil
	a.weights = make(map[weightKey]*Weight)
	a.mu.Unlock()
	a.save(ctx)
}

// step returns the directional weight step multiplier for action.
func step(action scene.Action) float64 {
	switch action {
	case scene.ActionAccept, scene.ActionHelpful:
		return 1.0
	case scene.ActionModify:
		return 0.5
	case scene.ActionIgnore:
		return -0.3
	case scene.ActionDismiss, scene.ActionNotHelpful, scene.ActionCancel:
		return -1.0
	case scene.ActionUndo:
		return -1.5
	default:
		return 0
	}
}

// adjustLocked applies one feedback event to the pair's weight. The
// weight starts at 1.0, moves by step*rate, and is always clamped to
// [WeightMin, WeightMax]. SampleCount only ever grows.
func (a *Adjuster) adjustLocked(category string, sc scene.Category, action scene.Action, nowMs int64) {
	key := weightKey{category, sc}
	w, ok := a.weights[key]
	if !ok {
		w = &Weight{Category: category, Scene: sc, Value: 1.0}
		a.weights[key] = w
	}

	w.Value += step(action) * a.cfg.AdjustRate
	if w.Value < a.cfg.WeightMin {
		w.Value = a.cfg.WeightMin
	}
	if w.Value > a.cfg.WeightMax {
		w.Value = a.cfg.WeightMax
	}
	w.SampleCount++
	w.LastUpdatedMs = nowMs
}

func (a *Adjuster) save(ctx context.Context) {
	a.mu.Lock()
	records := make([]Record, len(a.records))
	copy(records, a.records)
	weights := make([]Weight, 0, len(a.weights))
	for _, w := range a.weights {
		weights = append(weights, *w)
	}
	a.mu.Unlock()

	if err := a.recColl.Save(ctx, records); err != nil {
		a.logger.Warn("failed to persist feedback ledger, continuing in memory", "error", err)
	}
	if err := a.wColl.Save(ctx, weights); err != nil {
		a.logger.Warn("failed to persist suggestion weights, continuing in memory", "error", err)
	}
}

// isAccept reports whether action counts toward acceptance rates.
func isAccept(action scene.Action) bool {
	return action == scene.ActionAccept || action == scene.ActionHelpful
}

// isDismiss reports whether action counts toward dismissal rates.
func isDismiss(action scene.Action) bool {
	return action == scene.ActionDismiss || action == scene.ActionNotHelpful
}

// isoWeekday returns the ISO weekday for t: Monday=1 .. Sunday=7.
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
