package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var insightsJSON bool

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Show insights derived from recent feedback",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, store, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		insights := p.GenerateInsights()
		if insightsJSON {
			return printJSON(os.Stdout, insights)
		}

		if len(insights) == 0 {
			fmt.Println("Not enough recent feedback for insights.")
			return nil
		}
		for _, in := range insights {
			fmt.Printf("  [%s] %s\n", in.Kind, in.Description)
			if in.Actionable != nil {
				fmt.Printf("           suggested: %s %s\n", in.Actionable.Action, in.Actionable.Target)
			}
		}
		return nil
	},
}

func init() {
	insightsCmd.Flags().BoolVar(&insightsJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(insightsCmd)
}
