package timeline

import (
	"fmt"
	"time"

	"github.com/runger/nudge/internal/engine/scene"
)

// Prediction names the scene expected next and when.
type Prediction struct {
	Category     scene.Category `json:"scene_category"`
	PatternID    string         `json:"pattern_id"`
	Confidence   float64        `json:"confidence"`
	MinutesUntil float64        `json:"minutes_until"`
	PredictedMs  int64          `json:"predicted_ms"`
	Score        float64        `json:"score"`
}

// Anomaly reports a mismatch between the scene a strong pattern expects
// around now and the scene actually observed.
type Anomaly struct {
	Expected   scene.Category `json:"expected"`
	Observed   scene.Category `json:"observed"`
	PatternID  string         `json:"pattern_id"`
	Confidence float64        `json:"confidence"`
}

// Description returns a human-readable summary of the anomaly.
func (a *Anomaly) Description() string {
	return fmt.Sprintf("expected %s around now (pattern %s, confidence %.2f) but observed %s",
		a.Expected, a.PatternID, a.Confidence, a.Observed)
}

// triggerMinuteOfDay parses a pattern's "HH:MM" trigger time into
// minutes since midnight. Malformed times report ok=false.
func triggerMinuteOfDay(p Pattern) (int, bool) {
	var hour, minute int
	if _, err := fmt.Sscanf(p.TriggerTime, "%d:%d", &hour, &minute); err != nil {
		return 0, false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}
	return hour*60 + minute, true
}

// matchesDay reports whether p applies on the given ISO weekday. Daily
// patterns apply every day; weekly patterns must list the day.
func (p Pattern) matchesDay(day int) bool {
	if p.Period != PeriodWeekly {
		return true
	}
	for _, d := range p.TriggerDays {
		if d == day {
			return true
		}
	}
	return false
}

// PredictNext returns the best-scoring upcoming scene among patterns
// compatible with now's weekday whose trigger time falls strictly within
// the prediction window (now, now+180min]. Returns nil if none qualify.
//
// The window never wraps past midnight: trigger times are minutes
// within now's own day, so a late-evening call does not see next
// morning's patterns. They become predictable once the day rolls over,
// which also keeps weekday matching unambiguous.
//
// Score favors both strong patterns and imminent ones:
// confidence * (1 - minutesUntil/window).
func (m *Miner) PredictNext(now time.Time) *Prediction {
	m.mu.Lock()
	patterns := make([]Pattern, len(m.patterns))
	copy(patterns, m.patterns)
	m.mu.Unlock()

	window := float64(m.cfg.PredictionWindowMinutes)
	nowMinute := float64(now.Hour()*60+now.Minute()) + float64(now.Second())/60.0
	today := isoWeekday(now)

	var best *Prediction
	for _, p := range patterns {
		if !p.matchesDay(today) {
			continue
		}
		trigger, ok := triggerMinuteOfDay(p)
		if !ok {
			continue
		}

		minutesUntil := float64(trigger) - nowMinute
		if minutesUntil <= 0 || minutesUntil > window {
			continue
		}

		score := p.Confidence * (1 - minutesUntil/window)
		if best != nil && score <= best.Score {
			continue
		}
		best = &Prediction{
			Category:     p.Category,
			PatternID:    p.ID,
			Confidence:   p.Confidence,
			MinutesUntil: minutesUntil,
			PredictedMs:  now.UnixMilli() + int64(minutesUntil*60000),
			Score:        score,
		}
	}
	return best
}

// DetectAnomaly compares currentScene against the strongest pattern
// whose trigger time is within the tolerance window of now (weekly
// patterns must also match today). An anomaly is reported only when that
// pattern expects a different scene with high confidence. Like
// PredictNext, the tolerance window stays within now's own day.
func (m *Miner) DetectAnomaly(currentScene scene.Category, now time.Time) *Anomaly {
	m.mu.Lock()
	patterns := make([]Pattern, len(m.patterns))
	copy(patterns, m.patterns)
	m.mu.Unlock()

	tolerance := float64(m.cfg.AnomalyToleranceMinutes)
	nowMinute := float64(now.Hour()*60 + now.Minute())
	today := isoWeekday(now)

	var best *Pattern
	for i, p := range patterns {
		if !p.matchesDay(today) {
			continue
		}
		trigger, ok := triggerMinuteOfDay(p)
		if !ok {
			continue
		}
		diff := float64(trigger) - nowMinute
		if diff < -tolerance || diff > tolerance {
			continue
		}
		if best == nil || p.Confidence > best.Confidence {
			best = &patterns[i]
		}
	}

	if best == nil || best.Category == currentScene || best.Confidence < m.cfg.AnomalyMinConfidence {
		return nil
	}
	return &Anomaly{
		Expected:   best.Category,
		Observed:   currentScene,
		PatternID:  best.ID,
		Confidence: best.Confidence,
	}
}
