package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear all learned state",
	Long: `Clear all learned state: trigger histories, feedback records,
suggestion weights, scene history and mined patterns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return fmt.Errorf("refusing to clear state without --yes")
		}

		p, store, err := openEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := p.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("All learned state cleared.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
	rootCmd.AddCommand(resetCmd)
}
