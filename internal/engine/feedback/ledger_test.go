package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/runger/nudge/internal/engine/kv"
	"github.com/runger/nudge/internal/engine/scene"
)

var base = time.Date(2026, time.January, 5, 9, 0, 0, 0, time.Local) // Monday

func newAdjuster(t *testing.T, cfg Config) *Adjuster {
	t.Helper()
	return NewAdjuster(cfg, kv.NewMemoryStore(), nil)
}

func TestRecord_AppendsWithSnapshot(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newAdjuster(t, DefaultConfig())

	rt := int64(1200)
	rec := a.Record(ctx, "APP_LAUNCH", scene.CategoryOffice, scene.ActionAccept, &rt, base)

	require.NotEmpty(t, rec.ID)
	assert.Equal(t, "APP_LAUNCH", rec.Category)
	assert.Equal(t, scene.CategoryOffice, rec.Scene)
	assert.Equal(t, 9, rec.Snapshot.Hour)
	assert.Equal(t, 1, rec.Snapshot.DayOfWeek)
	assert.Equal(t, scene.CategoryOffice, rec.Snapshot.Scene)

	require.Len(t, a.Records(), 1)
}

func TestRecord_RingBufferCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newAdjuster(t, Config{MaxRecords: 10})

	for i := 0; i < 25; i++ {
		a.Record(ctx, "APP_LAUNCH", scene.CategoryHome, scene.ActionAccept, nil, base.Add(time.Duration(i)*time.Minute))
	}

	records := a.Records()
	require.Len(t, records, 10)
	// Oldest records are dropped first.
	assert.Equal(t, base.Add(15*time.Minute).UnixMilli(), records[0].TsMs)
}

func TestWeightSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action scene.Action
		want   float64
	}{
		{scene.ActionAccept, 1.1},
		{scene.ActionHelpful, 1.1},
		{scene.ActionModify, 1.05},
		{scene.ActionIgnore, 0.97},
		{scene.ActionDismiss, 0.9},
		{scene.ActionNotHelpful, 0.9},
		{scene.ActionUndo, 0.85},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.action), func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			a := newAdjuster(t, DefaultConfig())

			a.Record(ctx, "DND", scene.CategoryOffice, tt.action, nil, base)
			w := a.GetWeight("DND", scene.CategoryOffice)
			assert.InDelta(t, tt.want, w.Value, 1e-9)
			assert.Equal(t, 1, w.SampleCount)
		})
	}
}

func TestWeight_StaysClampedUnderAnySequence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newAdjuster(t, DefaultConfig())

	// Hammer the weight downward far past the floor.
	for i := 0; i < 50; i++ {
		a.Record(ctx, "DND", scene.CategoryHome, scene.ActionUndo, nil, base.Add(time.Duration(i)*time.Minute))
	}
	w := a.GetWeight("DND", scene.CategoryHome)
	assert.InDelta(t, 0.2, w.Value, 1e-9, "weight must floor at WeightMin")

	// And upward far past the cap.
	for i := 0; i < 100; i++ {
		a.Record(ctx, "DND", scene.CategoryHome, scene.ActionAccept, nil, base.Add(time.Duration(i)*time.Minute))
	}
	w = a.GetWeight("DND", scene.CategoryHome)
	assert.InDelta(t, 2.0, w.Value, 1e-9, "weight must cap at WeightMax")

	assert.Equal(t, 150, w.SampleCount, "sample count is monotonically non-decreasing")
}

func TestGetWeight_UnknownPairIsNeutral(t *testing.T) {
	t.Parallel()

	a := newAdjuster(t, DefaultConfig())
	w := a.GetWeight("NOBODY", scene.CategoryGym)
	assert.Equal(t, 1.0, w.Value)
	assert.Equal(t, 0, w.SampleCount)
}

func TestAdjuster_PersistsAndLoads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := kv.NewMemoryStore()

	a := NewAdjuster(DefaultConfig(), store, nil)
	a.Record(ctx, "APP_LAUNCH", scene.CategoryOffice, scene.ActionAccept, nil, base)
	a.Record(ctx, "APP_LAUNCH", scene.CategoryOffice, scene.ActionIgnore, nil, base.Add(time.Minute))

	a2 := NewAdjuster(DefaultConfig(), store, nil)
	require.NoError(t, a2.Load(ctx))

	assert.Len(t, a2.Records(), 2)
	w := a2.GetWeight("APP_LAUNCH", scene.CategoryOffice)
	assert.InDelta(t, 1.07, w.Value, 1e-9)
	assert.Equal(t, 2, w.SampleCount)
}

func TestAdjuster_CorruptWeightsLoadEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := kv.NewMemoryStore()
	_ = store.Set(ctx, "suggestion_weights", "{{{")

	a := NewAdjuster(DefaultConfig(), store, nil)
	require.NoError(t, a.Load(ctx), "corrupt stored data must degrade, not fail")
	assert.Empty(t, a.Weights())
}

func TestAdjuster_Reset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	a := newAdjuster(t, DefaultConfig())
	a.Record(ctx, "DND", scene.CategoryHome, scene.ActionAccept, nil, base)

	a.Reset(ctx)
	assert.Empty(t, a.Records())
	assert.Empty(t, a.Weights())
}
