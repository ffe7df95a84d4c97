package timeline

import (
	"context"
	"log/slog"

	"github.com/runger/nudge/internal/engine/kv"
)

// kv keys for the miner's collections.
const (
	recordsKey  = "scene_history"
	patternsKey = "time_patterns"
)

// KVStore persists the miner's collections through the key-value
// boundary as versioned JSON envelopes.
type KVStore struct {
	records  *kv.Collection[[]Record]
	patterns *kv.Collection[[]Pattern]
}

// NewKVStore creates a miner store over the given kv backend.
func NewKVStore(store kv.Store, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{
		records:  kv.NewCollection[[]Record](store, recordsKey, nil, logger),
		patterns: kv.NewCollection[[]Pattern](store, patternsKey, nil, logger),
	}
}

// LoadRecords implements Store.
func (s *KVStore) LoadRecords(ctx context.Context) ([]Record, error) {
	return s.records.Load(ctx)
}

// SaveRecords implements Store.
func (s *KVStore) SaveRecords(ctx context.Context, records []Record) error {
	return s.records.Save(ctx, records)
}

// LoadPatterns implements Store.
func (s *KVStore) LoadPatterns(ctx context.Context) ([]Pattern, error) {
	return s.patterns.Load(ctx)
}

// SavePatterns implements Store.
func (s *KVStore) SavePatterns(ctx context.Context, patterns []Pattern) error {
	return s.patterns.Save(ctx, patterns)
}
