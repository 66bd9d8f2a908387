package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/meigma/rex/search"
)

var searchRepository string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search repositories or tags",
	Long: `Search performs a fuzzy match against repository names in the registry,
or against tag names when --repository is set. Results are ordered by
match quality.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		ctx := cmd.Context()

		var (
			matches []search.Match
			err     error
		)
		if searchRepository != "" {
			matches, err = explorer.SearchTags(ctx, appConfig.Registry, searchRepository, query)
		} else {
			matches, err = explorer.SearchRepositories(ctx, appConfig.Registry, query)
		}
		if err != nil {
			return err
		}

		if jsonOutput() {
			return writeJSON(cmd.OutOrStdout(), matches)
		}

		if len(matches) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No matches found")
			return nil
		}
		rows := make([][]string, 0, len(matches))
		for _, m := range matches {
			rows = append(rows, []string{m.Value, strconv.Itoa(m.Score)})
		}
		return writeTable(cmd.OutOrStdout(), []string{"NAME", "SCORE"}, rows)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchRepository, "repository", "", "search tags within this repository instead of repository names")
	rootCmd.AddCommand(searchCmd)
}
