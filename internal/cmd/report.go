package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	reportDays int
	reportJSON bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize suggestion performance over the trailing days",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, store, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		r := p.GenerateReport(reportDays)
		if reportJSON {
			return printJSON(os.Stdout, r)
		}

		fmt.Printf("Suggestion report (last %d days)\n", r.Days)
		fmt.Printf("  total feedback:   %d\n", r.Total)
		if r.Total == 0 {
			return nil
		}
		fmt.Printf("  accept rate:      %.0f%%\n", r.AcceptRate*100)
		fmt.Printf("  dismiss rate:     %.0f%%\n", r.DismissRate*100)
		if r.AvgResponseMs > 0 {
			fmt.Printf("  avg response:     %.0fms\n", r.AvgResponseMs)
		}
		if r.TopAccepted != "" {
			fmt.Printf("  most accepted:    %s\n", r.TopAccepted)
		}
		if r.TopDismissed != "" {
			fmt.Printf("  most dismissed:   %s\n", r.TopDismissed)
		}
		fmt.Printf("  peak accept hour: %02d:00\n", r.PeakAcceptHour)

		if len(r.ByCategory) > 0 {
			fmt.Println("\nBy suggestion category:")
			for _, b := range r.ByCategory {
				fmt.Printf("  %-16s %3d events, %.0f%% accepted\n", b.Name, b.Total, b.AcceptRate*100)
			}
		}
		if len(r.ByScene) > 0 {
			fmt.Println("\nBy scene:")
			for _, b := range r.ByScene {
				fmt.Printf("  %-16s %3d events, %.0f%% accepted\n", b.Name, b.Total, b.AcceptRate*100)
			}
		}
		if len(r.Recommendations) > 0 {
			fmt.Println("\nRecommended weight changes:")
			for _, w := range r.Recommendations {
				fmt.Printf("  %s/%s: %.2f -> %.2f (%s)\n", w.Category, w.Scene, w.Current, w.Proposed, w.Reason)
			}
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "trailing window in days")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(reportCmd)
}
