// Package metrics provides atomic counters for nudge engine
// observability. Counters are lock-free (sync/atomic) and safe for
// concurrent use.
package metrics

import "sync/atomic"

// Counters holds atomic observability counters for the engine.
type Counters struct {
	Evaluations         atomic.Int64 // total gate evaluations
	Admitted            atomic.Int64 // evaluations that admitted a suggestion
	RejectedConfidence  atomic.Int64 // rejections: confidence out of range
	RejectedDwell       atomic.Int64 // rejections: insufficient dwell
	RejectedCooldown    atomic.Int64 // rejections: cooldown active
	RejectedIgnoreRate  atomic.Int64 // rejections: high ignore rate
	FeedbackAccepted    atomic.Int64 // accept/helpful feedback events
	FeedbackIgnored     atomic.Int64 // ignore feedback events
	FeedbackDismissed   atomic.Int64 // dismiss/not-helpful feedback events
	SceneTransitions    atomic.Int64 // scene transitions recorded
	EscalationOffers    atomic.Int64 // auto-mode offers emitted
	PersistenceFailures atomic.Int64 // kv writes that degraded to memory
}

// Snapshot returns a point-in-time copy of all counters as a
// string-keyed map. Per-field consistent, not transactional across
// fields (acceptable for observability).
func (c *Counters) Snapshot() map[string]int64 {
	return map[string]int64{
		"evaluations":          c.Evaluations.Load(),
		"admitted":             c.Admitted.Load(),
		"rejected_confidence":  c.RejectedConfidence.Load(),
		"rejected_dwell":       c.RejectedDwell.Load(),
		"rejected_cooldown":    c.RejectedCooldown.Load(),
		"rejected_ignore_rate": c.RejectedIgnoreRate.Load(),
		"feedback_accepted":    c.FeedbackAccepted.Load(),
		"feedback_ignored":     c.FeedbackIgnored.Load(),
		"feedback_dismissed":   c.FeedbackDismissed.Load(),
		"scene_transitions":    c.SceneTransitions.Load(),
		"escalation_offers":    c.EscalationOffers.Load(),
		"persistence_failures": c.PersistenceFailures.Load(),
	}
}

// Reset zeroes all counters. Useful for test isolation.
func (c *Counters) Reset() {
	c.Evaluations.Store(0)
	c.Admitted.Store(0)
	c.RejectedConfidence.Store(0)
	c.RejectedDwell.Store(0)
	c.RejectedCooldown.Store(0)
	c.RejectedIgnoreRate.Store(0)
	c.FeedbackAccepted.Store(0)
	c.FeedbackIgnored.Store(0)
	c.FeedbackDismissed.Store(0)
	c.SceneTransitions.Store(0)
	c.EscalationOffers.Store(0)
	c.PersistenceFailures.Store(0)
}

// AdmitRate returns the fraction of evaluations that admitted a
// suggestion, or 0 when nothing has been evaluated.
func (c *Counters) AdmitRate() float64 {
	evals := c.Evaluations.Load()
	if evals == 0 {
		return 0
	}
	return float64(c.Admitted.Load()) / float64(evals)
}
