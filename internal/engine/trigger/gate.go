// Package trigger implements the admission gate that decides when a
// context-derived suggestion may be surfaced to the user.
//
// The gate runs a fixed sequence of guards; the first failing guard
// short-circuits the evaluation with a machine-readable reason:
//
//  1. confidence band: classifications outside [0.60, 0.75] are either
//     too uncertain or obvious enough not to need a nudge
//  2. dwell time: the scene must have persisted for the minimum dwell
//  3. cooldown: a minimum gap is enforced after the previous trigger
//  4. ignore rate: scenes the user keeps ignoring are muted
//
// Guard order is a contract: callers rely on the reported reason being
// the earliest failing guard.
package trigger

import (
	"log/slog"

	"github.com/runger/nudge/internal/engine/dwell"
	"github.com/runger/nudge/internal/engine/scene"
)

// Reason is a closed enumeration of gate rejection reasons.
type Reason string

const (
	// ReasonNone means the evaluation was accepted.
	ReasonNone Reason = ""
	// ReasonConfidenceOutOfRange means the classification confidence
	// fell outside the suggestion band.
	ReasonConfidenceOutOfRange Reason = "confidence_out_of_range"
	// ReasonInsufficientDwell means the scene has not persisted long
	// enough.
	ReasonInsufficientDwell Reason = "insufficient_dwell_time"
	// ReasonInCooldown means a suggestion was triggered too recently
	// for this scene.
	ReasonInCooldown Reason = "in_cooldown"
	// ReasonHighIgnoreRate means the user has been ignoring suggestions
	// for this scene.
	ReasonHighIgnoreRate Reason = "high_ignore_rate"
)

// IsValid returns true if r is a recognized reason.
func (r Reason) IsValid() bool {
	switch r {
	case ReasonNone, ReasonConfidenceOutOfRange, ReasonInsufficientDwell,
		ReasonInCooldown, ReasonHighIgnoreRate:
		return true
	}
	return false
}

// Decision is the outcome of one gate evaluation. Rejections carry a
// Reason; they are values, never errors.
type Decision struct {
	Suggest    bool           `json:"suggest"`
	Reason     Reason         `json:"reason,omitempty"`
	Category   scene.Category `json:"scene_category,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
}

// Config holds the gate guard thresholds.
type Config struct {
	// ConfidenceMin is the lower bound of the suggestion confidence
	// band. Default: 0.60.
	ConfidenceMin float64

	// ConfidenceMax is the upper bound of the suggestion confidence
	// band. Classifications above it are treated as already obvious.
	// Default: 0.75.
	ConfidenceMax float64

	// MinDwellMs is the continuous dwell required in a scene before a
	// suggestion may trigger. Default: 2 minutes.
	MinDwellMs int64

	// CooldownMs is the minimum gap after a trigger before the same
	// scene may trigger again. Default: 1 hour.
	CooldownMs int64

	// MaxConsecutiveIgnores mutes a scene once this many back-to-back
	// ignores are recorded. Default: 3.
	MaxConsecutiveIgnores int

	// HighIgnoreRate mutes a scene whose overall ignore share exceeds
	// this fraction. Default: 0.7.
	HighIgnoreRate float64

	// MinFeedbackSamples is the feedback count required before the
	// ignore-rate guard (and frequency-factor rate scaling) applies.
	// Default: 3.
	MinFeedbackSamples int
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		ConfidenceMin:         0.60,
		ConfidenceMax:         0.75,
		MinDwellMs:            2 * 60 * 1000,
		CooldownMs:            60 * 60 * 1000,
		MaxConsecutiveIgnores: 3,
		HighIgnoreRate:        0.7,
		MinFeedbackSamples:    3,
	}
}

// applyDefaults fills zero-valued fields with defaults.
func (c Config) applyDefaults() Config {
	d := DefaultConfig()
	if c.ConfidenceMin <= 0 {
		c.ConfidenceMin = d.ConfidenceMin
	}
	if c.ConfidenceMax <= 0 {
		c.ConfidenceMax = d.ConfidenceMax
	}
	if c.MinDwellMs <= 0 {
		c.MinDwellMs = d.MinDwellMs
	}
	if c.CooldownMs <= 0 {
		c.CooldownMs = d.CooldownMs
	}
	if c.MaxConsecutiveIgnores <= 0 {
		c.MaxConsecutiveIgnores = d.MaxConsecutiveIgnores
	}
	if c.HighIgnoreRate <= 0 {
		c.HighIgnoreRate = d.HighIgnoreRate
	}
	if c.MinFeedbackSamples <= 0 {
		c.MinFeedbackSamples = d.MinFeedbackSamples
	}
	return c
}

// Gate evaluates scene classifications against the admission guards.
type Gate struct {
	cfg       Config
	dwell     *dwell.Tracker
	histories *HistoryStore
	logger    *slog.Logger
}

// NewGate creates a gate over the given dwell tracker and history store.
func NewGate(cfg Config, tracker *dwell.Tracker, histories *HistoryStore, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		cfg:       cfg.applyDefaults(),
		dwell:     tracker,
		histories: histories,
		logger:    logger,
	}
}

// Evaluate answers whether a suggestion should be surfaced for the given
// classification at nowMs. The gate only reads the dwell tracker: the
// caller observes every classification into it, including ones the
// confidence guard rejects, so dwell accrues and resets on what the
// signal provider reports rather than on what the gate admits.
func (g *Gate) Evaluate(c scene.Context, nowMs int64) Decision {
	if c.Confidence < g.cfg.ConfidenceMin || c.Confidence > g.cfg.ConfidenceMax {
		return g.reject(c, ReasonConfidenceOutOfRange)
	}

	dwellMs := g.dwell.DwellMs(c.Category, nowMs)
	if dwellMs < g.cfg.MinDwellMs {
		return g.reject(c, ReasonInsufficientDwell)
	}

	h := g.histories.Get(c.Category)
	if h.LastTriggerMs > 0 && nowMs-h.LastTriggerMs < g.cfg.CooldownMs {
		return g.reject(c, ReasonInCooldown)
	}

	if g.ignoredTooOften(h) {
		return g.reject(c, ReasonHighIgnoreRate)
	}

	g.logger.Debug("suggestion admitted",
		"scene", c.Category,
		"confidence", c.Confidence,
		"dwell_ms", dwellMs,
	)
	return Decision{Suggest: true, Category: c.Category, Confidence: c.Confidence}
}

func (g *Gate) reject(c scene.Context, reason Reason) Decision {
	g.logger.Debug("suggestion rejected",
		"scene", c.Category,
		"confidence", c.Confidence,
		"reason", string(reason),
	)
	return Decision{Suggest: false, Reason: reason}
}

func (g *Gate) ignoredTooOften(h History) bool {
	if h.ConsecutiveIgnores >= g.cfg.MaxConsecutiveIgnores {
		return true
	}
	total := h.TotalFeedback()
	if total >= g.cfg.MinFeedbackSamples {
		if float64(h.IgnoreCount)/float64(total) > g.cfg.HighIgnoreRate {
			return true
		}
	}
	return false
}

// Frequency factor bounds.
const (
	minFrequencyFactor = 0.1
	maxFrequencyFactor = 2.0
)

// FrequencyFactor returns a soft relevance multiplier in [0.1, 2.0] for
// category, derived from its feedback history. Unlike the guards it
// never blocks: callers scale relevance scores with it.
func (g *Gate) FrequencyFactor(category scene.Category) float64 {
	h := g.histories.Get(category)

	factor := 1.0 - float64(h.ConsecutiveIgnores)*0.2
	if factor < minFrequencyFactor {
		factor = minFrequencyFactor
	}

	total := h.TotalFeedback()
	if total >= g.cfg.MinFeedbackSamples {
		acceptRate := float64(h.AcceptCount) / float64(total)
		ignoreRate := float64(h.IgnoreCount) / float64(total)
		switch {
		case acceptRate > 0.8:
			factor *= 1.5
		case ignoreRate > g.cfg.HighIgnoreRate:
			factor *= 0.5
		}
	}

	if factor < minFrequencyFactor {
		factor = minFrequencyFactor
	}
	if factor > maxFrequencyFactor {
		factor = maxFrequencyFactor
	}
	return factor
}
