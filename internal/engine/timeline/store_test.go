package timeline

import (
	"context"
	"testing"

	"github.com/runger/nudge/internal/engine/kv"
)

func newMemoryMinerStore(t *testing.T) *KVStore {
	t.Helper()
	return NewKVStore(kv.NewMemoryStore(), nil)
}

func TestKVStore_CorruptPatternsLoadEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := kv.NewMemoryStore()
	_ = backend.Set(ctx, "time_patterns", "%%%")

	s := NewKVStore(backend, nil)
	patterns, err := s.LoadPatterns(ctx)
	if err != nil {
		t.Fatalf("LoadPatterns() of corrupt data must not fail, got %v", err)
	}
	if patterns != nil {
		t.Errorf("LoadPatterns() = %v, want nil after corrupt load", patterns)
	}
}

func TestKVStore_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newMemoryMinerStore(t)

	want := []Pattern{{ID: "daily-HOME-21", Period: PeriodDaily, TriggerTime: "21:15", Category: "HOME", Confidence: 0.7, SampleCount: 7}}
	if err := s.SavePatterns(ctx, want); err != nil {
		t.Fatalf("SavePatterns() error = %v", err)
	}

	got, err := s.LoadPatterns(ctx)
	if err != nil {
		t.Fatalf("LoadPatterns() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "daily-HOME-21" || got[0].Confidence != 0.7 {
		t.Errorf("LoadPatterns() = %+v, want %+v", got, want)
	}
}
