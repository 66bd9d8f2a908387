package cmd

import (
	"github.com/spf13/cobra"

	"github.com/meigma/rex/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Browse the registry interactively",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return tui.Run(cmd.Context(), explorer, appConfig.Registry)
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
