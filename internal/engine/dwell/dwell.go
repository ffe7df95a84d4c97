// Package dwell tracks how long the current scene classification has
// persisted uninterrupted.
//
// The tracker holds process-lifetime state only: it resets whenever the
// classified scene category changes between observations, so dwell time
// always measures a single continuous run of the same category.
package dwell

import (
	"sync"

	"github.com/runger/nudge/internal/engine/scene"
)

// State is a snapshot of the current dwell run.
type State struct {
	// Category is the scene category being tracked.
	Category scene.Category

	// StartMs is when the current run began, in Unix milliseconds.
	StartMs int64

	// LastUpdateMs is the most recent observation, in Unix milliseconds.
	LastUpdateMs int64
}

// Tracker measures continuous dwell in a scene category. It is safe for
// concurrent use.
type Tracker struct {
	mu           sync.Mutex
	category     scene.Category
	startMs      int64
	lastUpdateMs int64
}

// NewTracker creates an empty tracker with no scene observed yet.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records a scene observation at nowMs and returns the dwell
// duration in milliseconds for the observed category.
//
// If the category differs from the tracked one (or nothing has been
// tracked yet), the run restarts at nowMs and the returned dwell is 0.
func (t *Tracker) Observe(category scene.Category, nowMs int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.category != category || t.startMs == 0 {
		t.category = category
		t.startMs = nowMs
		t.lastUpdateMs = nowMs
		return 0
	}

	t.lastUpdateMs = nowMs
	return nowMs - t.startMs
}

// DwellMs returns the dwell duration in milliseconds for category as of
// nowMs, without updating the tracked run. Returns 0 if category is not
// the tracked one.
func (t *Tracker) DwellMs(category scene.Category, nowMs int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.category != category || t.startMs == 0 {
		return 0
	}
	return nowMs - t.startMs
}

// Snapshot returns the current dwell state. The zero State (empty
// category) means nothing has been observed yet.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	return State{
		Category:     t.category,
		StartMs:      t.startMs,
		LastUpdateMs: t.lastUpdateMs,
	}
}

// Reset clears the tracked run.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.category = ""
	t.startMs = 0
	t.lastUpdateMs = 0
}
