// Package predict wires the nudge engine together: the trigger gate,
// the escalation coordinator, the time pattern miner, and the feedback
// adjuster, behind one Predictor API.
//
// All collaborators are injected through the constructor; the predictor
// depends on the store and surface interfaces, never the reverse. The
// evaluate/feedback write path is serialized by the predictor so the
// per-scene read-modify-write sequences underneath cannot lose updates.
package predict

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/runger/nudge/internal/engine/dwell"
	"github.com/runger/nudge/internal/engine/escalate"
	"github.com/runger/nudge/internal/engine/feedback"
	"github.com/runger/nudge/internal/engine/kv"
	"github.com/runger/nudge/internal/engine/metrics"
	"github.com/runger/nudge/internal/engine/scene"
	"github.com/runger/nudge/internal/engine/timeline"
	"github.com/runger/nudge/internal/engine/trigger"
)

// Options configures a Predictor. Store is required; the other
// collaborators are optional.
type Options struct {
	// Store is the key-value persistence boundary.
	Store kv.Store

	// Notifier receives escalation offers. Optional.
	Notifier escalate.Notifier

	// Registrar enables auto mode for escalated scenes. Optional.
	Registrar escalate.AutoModeRegistrar

	// Clock supplies the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger is used by every subsystem. Defaults to slog.Default.
	Logger *slog.Logger

	Trigger  trigger.Config
	Escalate escalate.Config
	Timeline timeline.Config
	Feedback feedback.Config
}

// Predictor is the orchestrating facade over the nudge engine.
type Predictor struct {
	mu        sync.Mutex
	store     kv.Store
	dwell     *dwell.Tracker
	histories *trigger.HistoryStore
	gate      *trigger.Gate
	coord     *escalate.Coordinator
	miner     *timeline.Miner
	adjuster  *feedback.Adjuster
	counters  *metrics.Counters
	clock     func() time.Time
	logger    *slog.Logger

	lastScene scene.Category
}

// New creates a predictor from opts.
func New(opts Options) (*Predictor, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("kv store is required")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	counters := &metrics.Counters{}

	// Every subsystem writes through the counting wrapper so degraded
	// persistence shows up in the metrics even though the save paths
	// swallow the error.
	store := &countingStore{Store: opts.Store, failures: &counters.PersistenceFailures}

	tracker := dwell.NewTracker()
	histories := trigger.NewHistoryStore(store, opts.Logger)

	return &Predictor{
		store:     store,
		dwell:     tracker,
		histories: histories,
		gate:      trigger.NewGate(opts.Trigger, tracker, histories, opts.Logger),
		coord:     escalate.NewCoordinator(opts.Escalate, histories, opts.Notifier, opts.Registrar, opts.Logger),
		miner:     timeline.NewMiner(opts.Timeline, timeline.NewKVStore(store, opts.Logger), opts.Logger),
		adjuster:  feedback.NewAdjuster(opts.Feedback, store, opts.Logger),
		counters:  counters,
		clock:     opts.Clock,
		logger:    opts.Logger,
	}, nil
}

// countingStore bumps a failure counter whenever a write to the
// underlying store errors.
type countingStore struct {
	kv.Store
	failures *atomic.Int64
}

func (s *countingStore) Set(ctx context.Context, key, value string) error {
	err := s.Store.Set(ctx, key, value)
	if err != nil {
		s.failures.Add(1)
	}
	return err
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	err := s.Store.Delete(ctx, key)
	if err != nil {
		s.failures.Add(1)
	}
	return err
}

func (s *countingStore) ClearAll(ctx context.Context) error {
	err := s.Store.ClearAll(ctx)
	if err != nil {
		s.failures.Add(1)
	}
	return err
}

// Load restores every persisted collection. Corrupt or absent data
// resets the affected collection to empty.
func (p *Predictor) Load(ctx context.Context) error {
	if err := p.histories.Load(ctx); err != nil {
		return fmt.Errorf("failed to load trigger histories: %w", err)
	}
	if err := p.miner.Load(ctx); err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}
	if err := p.adjuster.Load(ctx); err != nil {
		return fmt.Errorf("failed to load feedback ledger: %w", err)
	}
	return nil
}

// Evaluate validates the classification, feeds the dwell tracker and
// the scene timeline, and runs the trigger gate. Invalid input is
// rejected with an error before it reaches the gate.
//
// Every valid classification counts as a dwell observation, whatever
// its confidence: dwell measures how long the signal provider has
// reported the same scene, so an out-of-band reading still extends the
// current run or, on a different scene, restarts it.
func (p *Predictor) Evaluate(ctx context.Context, c scene.Context) (trigger.Decision, error) {
	if err := c.Validate(); err != nil {
		return trigger.Decision{}, fmt.Errorf("invalid classification: %w", err)
	}

	now := p.clock()
	nowMs := now.UnixMilli()

	p.mu.Lock()
	if c.Category != p.lastScene {
		p.lastScene = c.Category
		p.counters.SceneTransitions.Add(1)
		p.miner.RecordTransition(ctx, c.Category, c.Confidence, now)
	}
	p.dwell.Observe(c.Category, nowMs)
	d := p.gate.Evaluate(c, nowMs)
	p.mu.Unlock()

	p.counters.Evaluations.Add(1)
	switch d.Reason {
	case trigger.ReasonNone:
		p.counters.Admitted.Add(1)
	case trigger.ReasonConfidenceOutOfRange:
		p.counters.RejectedConfidence.Add(1)
	case trigger.ReasonInsufficientDwell:
		p.counters.RejectedDwell.Add(1)
	case trigger.ReasonInCooldown:
		p.counters.RejectedCooldown.Add(1)
	case trigger.ReasonHighIgnoreRate:
		p.counters.RejectedIgnoreRate.Add(1)
	}
	return d, nil
}

// RecordFeedback is the single write path for user responses. It
// updates the trigger history, appends to the feedback ledger, adjusts
// the pair weight, and runs the escalation check. Returns the
// escalation offer when one was emitted.
func (p *Predictor) RecordFeedback(ctx context.Context, suggestionCategory string, sc scene.Category, action scene.Action, responseTimeMs *int64) (*escalate.Offer, error) {
	if suggestionCategory == "" {
		return nil, fmt.Errorf("suggestion category is required")
	}
	if !scene.ValidCategory(string(sc)) {
		return nil, fmt.Errorf("unknown scene category: %q", sc)
	}
	if !action.IsValid() {
		return nil, fmt.Errorf("invalid feedback action: %q", action)
	}

	now := p.clock()

	p.mu.Lock()
	p.histories.RecordFeedback(ctx, sc, action, now.UnixMilli())
	p.adjuster.Record(ctx, suggestionCategory, sc, action, responseTimeMs, now)
	offer := p.coord.Check(ctx, sc)
	p.mu.Unlock()

	switch {
	case action == scene.ActionAccept || action == scene.ActionHelpful:
		p.counters.FeedbackAccepted.Add(1)
	case action == scene.ActionIgnore:
		p.counters.FeedbackIgnored.Add(1)
	case action == scene.ActionDismiss || action == scene.ActionNotHelpful:
		p.counters.FeedbackDismissed.Add(1)
	}
	if offer != nil {
		p.counters.EscalationOffers.Add(1)
	}
	return offer, nil
}

// HandleEscalationResponse applies the user's answer to an escalation
// offer for sc.
func (p *Predictor) HandleEscalationResponse(ctx context.Context, sc scene.Category, accepted bool) error {
	return p.coord.HandleResponse(ctx, sc, accepted, p.clock().UnixMilli())
}

// PredictNext returns the best upcoming scene prediction, or nil.
func (p *Predictor) PredictNext() *timeline.Prediction {
	return p.miner.PredictNext(p.clock())
}

// DetectAnomaly checks the current scene against the strongest pattern
// near now.
func (p *Predictor) DetectAnomaly(current scene.Category) *timeline.Anomaly {
	return p.miner.DetectAnomaly(current, p.clock())
}

// FrequencyFactor returns the soft relevance multiplier for sc.
func (p *Predictor) FrequencyFactor(sc scene.Category) float64 {
	return p.gate.FrequencyFactor(sc)
}

// GenerateInsights derives insights from the recent feedback window.
func (p *Predictor) GenerateInsights() []feedback.Insight {
	return p.adjuster.GenerateInsights(p.clock())
}

// GenerateReport summarizes the trailing days of feedback.
func (p *Predictor) GenerateReport(days int) feedback.Report {
	return p.adjuster.GenerateReport(days, p.clock())
}

// Patterns returns the current derived pattern set.
func (p *Predictor) Patterns() []timeline.Pattern {
	return p.miner.Patterns()
}

// Weights returns every tracked suggestion weight.
func (p *Predictor) Weights() []feedback.Weight {
	return p.adjuster.Weights()
}

// Histories returns every tracked trigger history.
func (p *Predictor) Histories() []trigger.History {
	return p.histories.All()
}

// Metrics returns the engine's observability counters.
func (p *Predictor) Metrics() *metrics.Counters {
	return p.counters
}

// Reset clears all engine state, in memory and in the store.
func (p *Predictor) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.histories.Reset(ctx)
	p.adjuster.Reset(ctx)
	p.miner.Reset(ctx)
	p.dwell.Reset()
	p.lastScene = ""
	p.counters.Reset()
	if err := p.store.ClearAll(ctx); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	return nil
}
