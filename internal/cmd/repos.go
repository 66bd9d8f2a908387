package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List repositories in the registry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		items, failures, err := explorer.FetchRepositories(cmd.Context(), appConfig.Registry)
		if err != nil {
			return err
		}

		if jsonOutput() {
			if err := writeJSON(cmd.OutOrStdout(), items); err != nil {
				return err
			}
			return reportFailures(cmd.ErrOrStderr(), failures)
		}

		if len(items) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No repositories found")
			return reportFailures(cmd.ErrOrStderr(), failures)
		}

		rows := make([][]string, 0, len(items))
		for _, it := range items {
			rows = append(rows, []string{it.Name, strconv.Itoa(it.TagCount)})
		}
		if err := writeTable(cmd.OutOrStdout(), []string{"REPOSITORY", "TAGS"}, rows); err != nil {
			return err
		}
		return reportFailures(cmd.ErrOrStderr(), failures)
	},
}

func init() {
	rootCmd.AddCommand(reposCmd)
}
