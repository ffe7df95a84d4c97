package trigger

import (
	"context"
	"log/slog"
	"sync"

	"github.com/runger/nudge/internal/engine/kv"
	"github.com/runger/nudge/internal/engine/scene"
)

// historyKey is the kv key for the trigger history collection.
const historyKey = "trigger_history"

// History is the rolled-up feedback record for one scene category.
// The gate is the sole owner and mutator of this collection.
type History struct {
	Category      scene.Category `json:"category"`
	LastTriggerMs int64          `json:"last_trigger_ms"`
	AcceptCount   int            `json:"accept_count"`
	IgnoreCount   int            `json:"ignore_count"`
	CancelCount   int            `json:"cancel_count"`

	// ConsecutiveIgnores counts back-to-back ignore feedback. Any
	// non-ignore feedback resets it to 0.
	ConsecutiveIgnores int `json:"consecutive_ignores"`

	// LastFeedback is the most recent feedback action for this scene.
	LastFeedback scene.Action `json:"last_feedback,omitempty"`

	// AutoUpgradeOffered is set once an escalation offer has been
	// emitted, so the offer is not duplicated.
	AutoUpgradeOffered bool `json:"auto_upgrade_offered,omitempty"`

	// AutoUpgradeRejectedMs is set when the user rejects an escalation
	// offer; a rejected scene is never offered again.
	AutoUpgradeRejectedMs *int64 `json:"auto_upgrade_rejected_ms,omitempty"`
}

// TotalFeedback returns the total counted feedback for this scene.
func (h *History) TotalFeedback() int {
	return h.AcceptCount + h.IgnoreCount + h.CancelCount
}

// HistoryStore holds per-scene trigger histories in memory and writes
// them through the kv boundary after every mutation. Write failures
// degrade to in-memory operation.
type HistoryStore struct {
	mu        sync.Mutex
	histories map[scene.Category]*History
	coll      *kv.Collection[[]History]
	logger    *slog.Logger
}

// NewHistoryStore creates a history store backed by store.
func NewHistoryStore(store kv.Store, logger *slog.Logger) *HistoryStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryStore{
		histories: make(map[scene.Category]*History),
		coll:      kv.NewCollection[[]History](store, historyKey, nil, logger),
		logger:    logger,
	}
}

// Load replaces the in-memory histories with the persisted collection.
// Absent or corrupt data leaves the store empty.
func (s *HistoryStore) Load(ctx context.Context) error {
	records, err := s.coll.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories = make(map[scene.Category]*History, len(records))
	for i := range records {
		rec := records[i]
		s.histories[rec.Category] = &rec
	}
	return nil
}

// Get returns a copy of the history for category. A scene with no
// feedback yet returns a zero-valued history.
func (s *HistoryStore) Get(category scene.Category) History {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.histories[category]; ok {
		return *h
	}
	return History{Category: category}
}

// All returns a copy of every tracked history.
func (s *HistoryStore) All() []History {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]History, 0, len(s.histories))
	for _, h := range s.histories {
		out = append(out, *h)
	}
	return out
}

// RecordFeedback updates the history for category per the feedback
// action and returns the updated record.
//
// Counter rules:
//   - accept and helpful increment AcceptCount
//   - ignore increments IgnoreCount
//   - cancel and dismiss increment CancelCount
//   - modify, undo, and not_helpful update only LastFeedback
//
// The ignore streak increments only when the previous feedback was also
// an ignore; a first ignore after anything else sets it to 1; any
// non-ignore feedback resets it to 0. LastTriggerMs is always set to
// nowMs, starting the cooldown window.
func (s *HistoryStore) RecordFeedback(ctx context.Context, category scene.Category, action scene.Action, nowMs int64) History {
	s.mu.Lock()

	h, ok := s.histories[category]
	if !ok {
		h = &History{Category: category}
		s.histories[category] = h
	}

	switch action {
	case scene.ActionAccept, scene.ActionHelpful:
		h.AcceptCount++
	case scene.ActionIgnore:
		h.IgnoreCount++
	case scene.ActionCancel, scene.ActionDismiss:
		h.CancelCount++
	}

	if action == scene.ActionIgnore {
		if h.LastFeedback == scene.ActionIgnore {
			h.ConsecutiveIgnores++
		} else {
			h.ConsecutiveIgnores = 1
		}
	} else {
		h.ConsecutiveIgnores = 0
	}

	h.LastFeedback = action
	h.LastTriggerMs = nowMs

	updated := *h
	s.mu.Unlock()

	s.save(ctx)
	return updated
}

// MarkUpgradeOffered records that an escalation offer was emitted for
// category.
func (s *HistoryStore) MarkUpgradeOffered(ctx context.Context, category scene.Category) {
	s.mu.Lock()
	if h, ok := s.histories[category]; ok {
		h.AutoUpgradeOffered = true
	}
	s.mu.Unlock()
	s.save(ctx)
}

// MarkUpgradeRejected records a rejected escalation offer for category.
// The offer is never repeated for a rejected scene.
func (s *HistoryStore) MarkUpgradeRejected(ctx context.Context, category scene.Category, nowMs int64) {
	s.mu.Lock()
	h, ok := s.histories[category]
	if !ok {
		h = &History{Category: category}
		s.histories[category] = h
	}
	h.AutoUpgradeRejectedMs = &nowMs
	s.mu.Unlock()
	s.save(ctx)
}

// Reset clears all histories, in memory and in the store.
func (s *HistoryStore) Reset(ctx context.Context) {
	s.mu.Lock()
	s.histories = make(map[scene.Category]*History)
	s.mu.Unlock()
	s.save(ctx)
}

// save writes the current histories through the kv boundary. Failures
// are logged and swallowed: the engine continues in memory.
func (s *HistoryStore) save(ctx context.Context) {
	s.mu.Lock()
	records := make([]History, 0, len(s.histories))
	for _, h := range s.histories {
		records = append(records, *h)
	}
	s.mu.Unlock()

	if err := s.coll.Save(ctx, records); err != nil {
		s.logger.Warn("failed to persist trigger histories, continuing in memory", "error", err)
	}
}
