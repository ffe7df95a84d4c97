package feedback

import (
	"fmt"
	"sort"
	"time"
)

// Breakdown summarizes feedback for one category or scene.
type Breakdown struct {
	Name       string  `json:"name"`
	Total      int     `json:"total"`
	Accepts    int     `json:"accepts"`
	Dismissals int     `json:"dismissals"`
	AcceptRate float64 `json:"accept_rate"`
}

// WeightChange is a recommended weight adjustment.
type WeightChange struct {
	Category string  `json:"category"`
	Scene    string  `json:"scene"`
	Current  float64 `json:"current"`
	Proposed float64 `json:"proposed"`
	Reason   string  `json:"reason"`
}

// Report summarizes suggestion performance over a trailing period.
type Report struct {
	Days            int            `json:"days"`
	Total           int            `json:"total"`
	AcceptRate      float64        `json:"accept_rate"`
	DismissRate     float64        `json:"dismiss_rate"`
	AvgResponseMs   float64        `json:"avg_response_ms"`
	ByCategory      []Breakdown    `json:"by_category"`
	ByScene         []Breakdown    `json:"by_scene"`
	TopAccepted     string         `json:"top_accepted,omitempty"`
	TopDismissed    string         `json:"top_dismissed,omitempty"`
	PeakAcceptHour  int            `json:"peak_accept_hour"`
	PeakDismissHour int            `json:"peak_dismiss_hour"`
	Recommendations []WeightChange `json:"recommendations,omitempty"`
}

// GenerateReport summarizes the trailing days of the ledger and proposes
// weight changes for pairs with strong or weak recent performance.
func (a *Adjuster) GenerateReport(days int, now time.Time) Report {
	if days <= 0 {
		days = a.cfg.InsightWindowDays
	}
	windowStart := now.AddDate(0, 0, -days).UnixMilli()

	a.mu.Lock()
	var recent []Record
	for _, r := range a.records {
		if r.TsMs >= windowStart {
			recent = append(recent, r)
		}
	}
	a.mu.Unlock()

	report := Report{Days: days, Total: len(recent)}
	if len(recent) == 0 {
		return report
	}

	type pair struct {
		category string
		scene    string
	}
	byCategory := make(map[string]*Breakdown)
	byScene := make(map[string]*Breakdown)
	byPair := make(map[pair]pairStats)
	acceptHours := make(map[int]int)
	dismissHours := make(map[int]int)

	accepts, dismissals := 0, 0
	var responseSum, responseCount int64

	for _, r := range recent {
		cb := byCategory[r.Category]
		if cb == nil {
			cb = &Breakdown{Name: r.Category}
			byCategory[r.Category] = cb
		}
		sb := byScene[string(r.Scene)]
		if sb == nil {
			sb = &Breakdown{Name: string(r.Scene)}
			byScene[string(r.Scene)] = sb
		}
		ps := byPair[pair{r.Category, string(r.Scene)}]

		cb.Total++
		sb.Total++
		ps.total++

		switch {
		case isAccept(r.Action):
			accepts++
			cb.Accepts++
			sb.Accepts++
			ps.accepts++
			acceptHours[r.Snapshot.Hour]++
		case isDismiss(r.Action):
			dismissals++
			cb.Dismissals++
			sb.Dismissals++
			dismissHours[r.Snapshot.Hour]++
		}
		byPair[pair{r.Category, string(r.Scene)}] = ps

		if r.ResponseTimeMs != nil {
			responseSum += *r.ResponseTimeMs
			responseCount++
		}
	}

	report.AcceptRate = float64(accepts) / float64(len(recent))
	report.DismissRate = float64(dismissals) / float64(len(recent))
	if responseCount > 0 {
		report.AvgResponseMs = float64(responseSum) / float64(responseCount)
	}
	report.ByCategory = sortedBreakdowns(byCategory)
	report.ByScene = sortedBreakdowns(byScene)
	report.PeakAcceptHour = peakHour(acceptHours)
	report.PeakDismissHour = peakHour(dismissHours)

	if len(report.ByCategory) > 0 {
		topAccepted, topDismissed := report.ByCategory[0], report.ByCategory[0]
		for _, b := range report.ByCategory {
			if b.Accepts > topAccepted.Accepts {
				topAccepted = b
			}
			if b.Dismissals > topDismissed.Dismissals {
				topDismissed = b
			}
		}
		if topAccepted.Accepts > 0 {
			report.TopAccepted = topAccepted.Name
		}
		if topDismissed.Dismissals > 0 {
			report.TopDismissed = topDismissed.Name
		}
	}

	for pk, stats := range byPair {
		if stats.total < a.cfg.MinSamplesForRecommend {
			continue
		}
		rate := stats.rate()
		current := 1.0
		if w, ok := a.lookupWeight(pk.category, pk.scene); ok {
			current = w
		}
		switch {
		case rate > a.cfg.RecommendHigh:
			proposed := current + a.cfg.RecommendStep
			if proposed > a.cfg.WeightMax {
				proposed = a.cfg.WeightMax
			}
			report.Recommendations = append(report.Recommendations, WeightChange{
				Category: pk.category,
				Scene:    pk.scene,
				Current:  current,
				Proposed: proposed,
				Reason:   fmt.Sprintf("accept rate %.0f%% over %d samples", rate*100, stats.total),
			})
		case rate < a.cfg.RecommendLow:
			proposed := current - a.cfg.RecommendStep
			if proposed < a.cfg.WeightMin {
				proposed = a.cfg.WeightMin
			}
			report.Recommendations = append(report.Recommendations, WeightChange{
				Category: pk.category,
				Scene:    pk.scene,
				Current:  current,
				Proposed: proposed,
				Reason:   fmt.Sprintf("accept rate %.0f%% over %d samples", rate*100, stats.total),
			})
		}
	}
	sort.Slice(report.Recommendations, func(i, j int) bool {
		if report.Recommendations[i].Category != report.Recommendations[j].Category {
			return report.Recommendations[i].Category < report.Recommendations[j].Category
		}
		return report.Recommendations[i].Scene < report.Recommendations[j].Scene
	})

	return report
}

// lookupWeight returns the stored weight value for the pair, if any.
func (a *Adjuster) lookupWeight(category, sc string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	// Scene is stored typed; the report works with plain strings.
	for key, w := range a.weights {
		if key.category == category && string(key.scene) == sc {
			return w.Value, true
		}
	}
	return 0, false
}

func sortedBreakdowns(m map[string]*Breakdown) []Breakdown {
	out := make([]Breakdown, 0, len(m))
	for _, b := range m {
		if b.Total > 0 {
			b.AcceptRate = float64(b.Accepts) / float64(b.Total)
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

func peakHour(hours map[int]int) int {
	best, bestCount := -1, 0
	for hour, count := range hours {
		if count > bestCount || (count == bestCount && best >= 0 && hour < best) {
			best, bestCount = hour, count
		}
	}
	return best
}
