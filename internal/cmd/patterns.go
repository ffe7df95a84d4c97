package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/runger/nudge/internal/engine/timeline"
)

var patternsJSON bool

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show mined time patterns and the next predicted scene",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, store, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		patterns := p.Patterns()
		next := p.PredictNext()

		if patternsJSON {
			return printJSON(os.Stdout, map[string]any{
				"patterns":   patterns,
				"prediction": next,
			})
		}

		if len(patterns) == 0 {
			fmt.Println("No patterns mined yet.")
		}
		for _, pat := range patterns {
			days := ""
			if pat.Period == timeline.PeriodWeekly && len(pat.TriggerDays) > 0 {
				names := make([]string, len(pat.TriggerDays))
				for i, d := range pat.TriggerDays {
					names[i] = dayName(d)
				}
				days = " on " + strings.Join(names, ",")
			}
			fmt.Printf("  %-10s %s at %s%s (confidence %.2f, %d samples)\n",
				pat.Period, pat.Category, pat.TriggerTime, days, pat.Confidence, pat.SampleCount)
		}

		if next != nil {
			fmt.Printf("\nNext: %s in %.0f minutes (confidence %.2f)\n",
				next.Category, next.MinutesUntil, next.Confidence)
		}
		return nil
	},
}

func init() {
	patternsCmd.Flags().BoolVar(&patternsJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(patternsCmd)
}

// dayName maps an ISO weekday (Mon=1..Sun=7) to its short name.
func dayName(d int) string {
	names := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	if d < 1 || d > 7 {
		return fmt.Sprintf("day%d", d)
	}
	return names[d-1]
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
