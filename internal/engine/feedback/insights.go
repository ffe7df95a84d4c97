package feedback

import (
	"fmt"
	"time"
)

// InsightKind classifies a derived insight.
type InsightKind string

const (
	InsightPositive   InsightKind = "positive"
	InsightNegative   InsightKind = "negative"
	InsightPattern    InsightKind = "pattern"
	InsightSuggestion InsightKind = "suggestion"
)

// Action is an actionable recommendation attached to an insight.
type Action struct {
	// Action names the recommended operation (e.g., "decrease_weight").
	Action string `json:"action"`

	// Target identifies what to apply it to ("category/scene").
	Target string `json:"target"`
}

// Insight is a derived, human-readable observation about suggestion
// performance. Insights are regenerated per analysis pass, never
// mutated in place.
type Insight struct {
	Kind        InsightKind    `json:"kind"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"`
	Actionable  *Action        `json:"actionable,omitempty"`
}

// pairStats accumulates accept/total counts for one grouping key.
type pairStats struct {
	total   int
	accepts int
}

func (s pairStats) rate() float64 {
	if s.total == 0 {
		return 0
	}
	return float64(s.accepts) / float64(s.total)
}

// GenerateInsights derives insights from the trailing insight window.
// Returns nil when the window holds fewer than the minimum sample count.
func (a *Adjuster) GenerateInsights(now time.Time) []Insight {
	windowStart := now.AddDate(0, 0, -a.cfg.InsightWindowDays).UnixMilli()

	a.mu.Lock()
	var recent []Record
	for _, r := range a.records {
		if r.TsMs >= windowStart {
			recent = append(recent, r)
		}
	}
	a.mu.Unlock()

	if len(recent) < a.cfg.MinSamplesForInsight {
		return nil
	}

	type pair struct {
		category string
		scene    string
	}
	byPair := make(map[pair]pairStats)
	byScene := make(map[string]pairStats)
	byHour := make(map[int]pairStats)

	for _, r := range recent {
		pk := pair{r.Category, string(r.Scene)}
		ps := byPair[pk]
		ss := byScene[string(r.Scene)]
		hs := byHour[r.Snapshot.Hour]

		ps.total++
		ss.total++
		hs.total++
		if isAccept(r.Action) {
			ps.accepts++
			ss.accepts++
			hs.accepts++
		}

		byPair[pk] = ps
		byScene[string(r.Scene)] = ss
		byHour[r.Snapshot.Hour] = hs
	}

	var insights []Insight

	for pk, stats := range byPair {
		if stats.total < a.cfg.MinSamplesForInsight {
			continue
		}
		rate := stats.rate()
		switch {
		case rate >= a.cfg.PositiveRate:
			insights = append(insights, Insight{
				Kind: InsightPositive,
				Description: fmt.Sprintf("%s suggestions in %s are accepted %.0f%% of the time",
					pk.category, pk.scene, rate*100),
				Data: map[string]any{
					"category": pk.category,
					"scene":    pk.scene,
					"rate":     rate,
					"samples":  stats.total,
				},
			})
		case rate <= a.cfg.NegativeRate:
			insights = append(insights, Insight{
				Kind: InsightNegative,
				Description: fmt.Sprintf("%s suggestions in %s are accepted only %.0f%% of the time",
					pk.category, pk.scene, rate*100),
				Data: map[string]any{
					"category": pk.category,
					"scene":    pk.scene,
					"rate":     rate,
					"samples":  stats.total,
				},
				Actionable: &Action{
					Action: "decrease_weight",
					Target: pk.category + "/" + pk.scene,
				},
			})
		}
	}

	for sc, stats := range byScene {
		if stats.total < a.cfg.MinSamplesForInsight {
			continue
		}
		if rate := stats.rate(); rate >= a.cfg.PositiveRate {
			insights = append(insights, Insight{
				Kind: InsightPattern,
				Description: fmt.Sprintf("suggestions in %s perform well (%.0f%% accepted)",
					sc, rate*100),
				Data: map[string]any{
					"scene":   sc,
					"rate":    rate,
					"samples": stats.total,
				},
			})
		}
	}

	for hour, stats := range byHour {
		if stats.total < a.cfg.MinSamplesForInsight {
			continue
		}
		if rate := stats.rate(); rate >= a.cfg.PositiveRate {
			insights = append(insights, Insight{
				Kind: InsightPattern,
				Description: fmt.Sprintf("suggestions around %02d:00 perform well (%.0f%% accepted)",
					hour, rate*100),
				Data: map[string]any{
					"hour":    hour,
					"rate":    rate,
					"samples": stats.total,
				},
			})
		}
	}

	return insights
}
