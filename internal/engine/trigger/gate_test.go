package trigger

import (
	"context"
	"testing"

	"github.com/runger/nudge/internal/engine/dwell"
	"github.com/runger/nudge/internal/engine/kv"
	"github.com/runger/nudge/internal/engine/scene"
)

const minuteMs = 60 * 1000

func newTestGate(t *testing.T) (*Gate, *dwell.Tracker, *HistoryStore) {
	t.Helper()
	tracker := dwell.NewTracker()
	histories := NewHistoryStore(kv.NewMemoryStore(), nil)
	return NewGate(DefaultConfig(), tracker, histories, nil), tracker, histories
}

// warmDwell observes category long enough ago that the dwell guard passes
// at nowMs.
func warmDwell(tracker *dwell.Tracker, category scene.Category, nowMs int64) {
	tracker.Observe(category, nowMs-3*minuteMs)
}

func TestEvaluate_ConfidenceBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		confidence float64
		want       bool
	}{
		{"below band", 0.4, false},
		{"just below", 0.59, false},
		{"lower bound", 0.60, true},
		{"mid band", 0.70, true},
		{"upper bound", 0.75, true},
		{"already obvious", 0.90, false},
		{"certain", 1.0, false},
		{"zero", 0.0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g, tracker, _ := newTestGate(t)
			now := int64(10 * minuteMs)
			warmDwell(tracker, scene.CategoryCommute, now)

			d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryCommute, Confidence: tt.confidence}, now)
			if d.Suggest != tt.want {
				t.Fatalf("Evaluate(conf=%v).Suggest = %v, want %v", tt.confidence, d.Suggest, tt.want)
			}
			if !tt.want && d.Reason != ReasonConfidenceOutOfRange {
				t.Errorf("Reason = %q, want %q", d.Reason, ReasonConfidenceOutOfRange)
			}
		})
	}
}

func TestEvaluate_ConfidenceGuardWinsRegardlessOfOtherState(t *testing.T) {
	t.Parallel()

	g, _, histories := newTestGate(t)
	ctx := context.Background()

	// Scene is deep in cooldown with a hostile ignore streak; the
	// confidence guard must still report first.
	for i := 0; i < 5; i++ {
		histories.RecordFeedback(ctx, scene.CategoryCommute, scene.ActionIgnore, int64(i))
	}

	d := g.Evaluate(scene.Context{TsMs: 1000, Category: scene.CategoryCommute, Confidence: 0.4}, 1000)
	if d.Suggest || d.Reason != ReasonConfidenceOutOfRange {
		t.Errorf("Decision = %+v, want confidence_out_of_range rejection", d)
	}
}

func TestEvaluate_InsufficientDwell(t *testing.T) {
	t.Parallel()

	g, tracker, _ := newTestGate(t)
	now := int64(10 * minuteMs)

	// First observation of the scene: dwell is zero.
	tracker.Observe(scene.CategoryOffice, now)
	d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryOffice, Confidence: 0.7}, now)
	if d.Suggest || d.Reason != ReasonInsufficientDwell {
		t.Errorf("Decision = %+v, want insufficient_dwell_time rejection", d)
	}

	// One minute later: still short of the two-minute minimum.
	tracker.Observe(scene.CategoryOffice, now+minuteMs)
	d = g.Evaluate(scene.Context{TsMs: now + minuteMs, Category: scene.CategoryOffice, Confidence: 0.7}, now+minuteMs)
	if d.Suggest || d.Reason != ReasonInsufficientDwell {
		t.Errorf("Decision after 1m = %+v, want insufficient_dwell_time rejection", d)
	}

	// Two minutes in: dwell satisfied.
	tracker.Observe(scene.CategoryOffice, now+2*minuteMs)
	d = g.Evaluate(scene.Context{TsMs: now + 2*minuteMs, Category: scene.CategoryOffice, Confidence: 0.7}, now+2*minuteMs)
	if !d.Suggest {
		t.Errorf("Decision after 2m = %+v, want acceptance", d)
	}
}

func TestEvaluate_DwellResetsOnSceneChange(t *testing.T) {
	t.Parallel()

	g, tracker, _ := newTestGate(t)
	now := int64(30 * minuteMs)
	warmDwell(tracker, scene.CategoryCommute, now)

	// Switching scenes restarts dwell, so the new scene is rejected.
	tracker.Observe(scene.CategoryOffice, now)
	d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryOffice, Confidence: 0.7}, now)
	if d.Suggest || d.Reason != ReasonInsufficientDwell {
		t.Errorf("Decision = %+v, want insufficient_dwell_time after scene change", d)
	}
}

func TestEvaluate_DwellIsReadOnly(t *testing.T) {
	t.Parallel()

	// Evaluating never starts a dwell run: a scene the tracker has not
	// observed stays at zero dwell across repeated evaluations.
	g, tracker, _ := newTestGate(t)
	now := int64(10 * minuteMs)

	g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryGym, Confidence: 0.7}, now)
	d := g.Evaluate(scene.Context{TsMs: now + 5*minuteMs, Category: scene.CategoryGym, Confidence: 0.7}, now+5*minuteMs)
	if d.Reason != ReasonInsufficientDwell {
		t.Errorf("Reason = %q, want insufficient_dwell_time without observations", d.Reason)
	}
	if got := tracker.Snapshot().Category; got != "" {
		t.Errorf("tracker category = %q, want untouched", got)
	}
}

func TestEvaluate_FreshSceneWithDwellSuggests(t *testing.T) {
	t.Parallel()

	g, tracker, _ := newTestGate(t)
	now := int64(60 * minuteMs)
	warmDwell(tracker, scene.CategoryCommute, now)

	d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryCommute, Confidence: 0.7}, now)
	if !d.Suggest {
		t.Fatalf("Decision = %+v, want acceptance", d)
	}
	if d.Category != scene.CategoryCommute || d.Confidence != 0.7 {
		t.Errorf("Decision = %+v, want category COMMUTE confidence 0.7", d)
	}
	if d.Reason != ReasonNone {
		t.Errorf("Reason = %q, want empty on acceptance", d.Reason)
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	t.Parallel()

	g, tracker, histories := newTestGate(t)
	ctx := context.Background()
	now := int64(120 * minuteMs)
	warmDwell(tracker, scene.CategoryGym, now)

	// Feedback 30 minutes ago starts the cooldown window.
	histories.RecordFeedback(ctx, scene.CategoryGym, scene.ActionAccept, now-30*minuteMs)

	d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryGym, Confidence: 0.7}, now)
	if d.Suggest || d.Reason != ReasonInCooldown {
		t.Errorf("Decision = %+v, want in_cooldown rejection", d)
	}

	// 61 minutes after the trigger, the cooldown has elapsed.
	later := now + 31*minuteMs
	d = g.Evaluate(scene.Context{TsMs: later, Category: scene.CategoryGym, Confidence: 0.7}, later)
	if !d.Suggest {
		t.Errorf("Decision after cooldown = %+v, want acceptance", d)
	}
}

func TestEvaluate_HighIgnoreRate_ConsecutiveIgnores(t *testing.T) {
	t.Parallel()

	g, tracker, histories := newTestGate(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		histories.RecordFeedback(ctx, scene.CategoryCommute, scene.ActionIgnore, int64(i))
	}
	if got := histories.Get(scene.CategoryCommute).ConsecutiveIgnores; got != 3 {
		t.Fatalf("ConsecutiveIgnores = %d, want 3", got)
	}

	// Well past cooldown and dwell, so the ignore guard decides.
	now := int64(500 * minuteMs)
	warmDwell(tracker, scene.CategoryCommute, now)

	d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryCommute, Confidence: 0.7}, now)
	if d.Suggest || d.Reason != ReasonHighIgnoreRate {
		t.Errorf("Decision = %+v, want high_ignore_rate rejection", d)
	}
}

func TestEvaluate_HighIgnoreRate_Ratio(t *testing.T) {
	t.Parallel()

	g, tracker, histories := newTestGate(t)
	ctx := context.Background()

	// 3 ignores out of 4 events (75% > 70%), but the accept in between
	// keeps the consecutive streak below the limit.
	histories.RecordFeedback(ctx, scene.CategoryDining, scene.ActionIgnore, 1)
	histories.RecordFeedback(ctx, scene.CategoryDining, scene.ActionIgnore, 2)
	histories.RecordFeedback(ctx, scene.CategoryDining, scene.ActionAccept, 3)
	histories.RecordFeedback(ctx, scene.CategoryDining, scene.ActionIgnore, 4)

	h := histories.Get(scene.CategoryDining)
	if h.ConsecutiveIgnores != 1 {
		t.Fatalf("ConsecutiveIgnores = %d, want 1", h.ConsecutiveIgnores)
	}

	now := int64(500 * minuteMs)
	warmDwell(tracker, scene.CategoryDining, now)

	d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategoryDining, Confidence: 0.7}, now)
	if d.Suggest || d.Reason != ReasonHighIgnoreRate {
		t.Errorf("Decision = %+v, want high_ignore_rate rejection", d)
	}
}

func TestEvaluate_GuardOrder(t *testing.T) {
	t.Parallel()

	// One scene failing several guards at once must report the earliest.
	g, tracker, histories := newTestGate(t)
	ctx := context.Background()
	now := int64(500 * minuteMs)

	for i := 0; i < 4; i++ {
		histories.RecordFeedback(ctx, scene.CategorySleep, scene.ActionIgnore, now-minuteMs)
	}

	// Fails dwell + cooldown + ignore rate: dwell reports first.
	tracker.Observe(scene.CategorySleep, now)
	d := g.Evaluate(scene.Context{TsMs: now, Category: scene.CategorySleep, Confidence: 0.7}, now)
	if d.Reason != ReasonInsufficientDwell {
		t.Errorf("Reason = %q, want insufficient_dwell_time first", d.Reason)
	}

	// Dwell satisfied: cooldown reports before ignore rate.
	later := now + 3*minuteMs
	d = g.Evaluate(scene.Context{TsMs: later, Category: scene.CategorySleep, Confidence: 0.7}, later)
	if d.Reason != ReasonInCooldown {
		t.Errorf("Reason = %q, want in_cooldown before high_ignore_rate", d.Reason)
	}

	// Cooldown elapsed: ignore rate is finally reported.
	afterCooldown := now + 70*minuteMs
	warmDwell(tracker, scene.CategorySleep, afterCooldown)
	d = g.Evaluate(scene.Context{TsMs: afterCooldown, Category: scene.CategorySleep, Confidence: 0.7}, afterCooldown)
	if d.Reason != ReasonHighIgnoreRate {
		t.Errorf("Reason = %q, want high_ignore_rate last", d.Reason)
	}
}

func TestFrequencyFactor_Bounds(t *testing.T) {
	t.Parallel()

	g, _, histories := newTestGate(t)
	ctx := context.Background()

	// No history: neutral.
	if got := g.FrequencyFactor(scene.CategoryHome); got != 1.0 {
		t.Errorf("FrequencyFactor(no history) = %v, want 1.0", got)
	}

	// Heavy ignore streak drives the factor to its floor, never below.
	for i := 0; i < 10; i++ {
		histories.RecordFeedback(ctx, scene.CategoryHome, scene.ActionIgnore, int64(i))
	}
	got := g.FrequencyFactor(scene.CategoryHome)
	if got < 0.1 || got > 0.1+1e-9 {
		t.Errorf("FrequencyFactor(ignored) = %v, want floor 0.1", got)
	}
}

func TestFrequencyFactor_AcceptBonus(t *testing.T) {
	t.Parallel()

	g, _, histories := newTestGate(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		histories.RecordFeedback(ctx, scene.CategoryGym, scene.ActionAccept, int64(i))
	}

	// Accept rate 1.0 > 0.8: x1.5 bonus on a clean streak.
	if got := g.FrequencyFactor(scene.CategoryGym); got != 1.5 {
		t.Errorf("FrequencyFactor(all accepts) = %v, want 1.5", got)
	}
}

func TestFrequencyFactor_IgnorePenalty(t *testing.T) {
	t.Parallel()

	g, _, histories := newTestGate(t)
	ctx := context.Background()

	// 3 ignores, 1 accept, then a final ignore: ignore rate 0.8 > 0.7
	// with a short streak, so the rate penalty applies.
	histories.RecordFeedback(ctx, scene.CategoryTravel, scene.ActionIgnore, 1)
	histories.RecordFeedback(ctx, scene.CategoryTravel, scene.ActionIgnore, 2)
	histories.RecordFeedback(ctx, scene.CategoryTravel, scene.ActionAccept, 3)
	histories.RecordFeedback(ctx, scene.CategoryTravel, scene.ActionIgnore, 4)
	histories.RecordFeedback(ctx, scene.CategoryTravel, scene.ActionIgnore, 5)

	h := histories.Get(scene.CategoryTravel)
	if h.ConsecutiveIgnores != 2 {
		t.Fatalf("ConsecutiveIgnores = %d, want 2", h.ConsecutiveIgnores)
	}

	// Streak penalty 1 - 2*0.2 = 0.6, rate penalty x0.5 = 0.3.
	got := g.FrequencyFactor(scene.CategoryTravel)
	if got < 0.3-1e-9 || got > 0.3+1e-9 {
		t.Errorf("FrequencyFactor = %v, want 0.3", got)
	}
}

func TestReason_IsValid(t *testing.T) {
	t.Parallel()

	for _, r := range []Reason{ReasonNone, ReasonConfidenceOutOfRange, ReasonInsufficientDwell, ReasonInCooldown, ReasonHighIgnoreRate} {
		if !r.IsValid() {
			t.Errorf("Reason(%q).IsValid() = false, want true", r)
		}
	}
	if Reason("not_a_reason").IsValid() {
		t.Error("unknown reason reported valid")
	}
}
