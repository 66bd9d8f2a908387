package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/rex/internal/format"
)

var tagsCmd = &cobra.Command{
	Use:   "tags <repository>",
	Short: "List tags in a repository with resolved metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repository := args[0]
		infos, failures, err := explorer.FetchAllTags(cmd.Context(), appConfig.Registry, repository)
		if err != nil {
			return err
		}

		if jsonOutput() {
			if err := writeJSON(cmd.OutOrStdout(), infos); err != nil {
				return err
			}
			return reportFailures(cmd.ErrOrStderr(), failures)
		}

		if len(infos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No tags found")
			return reportFailures(cmd.ErrOrStderr(), failures)
		}

		rows := make([][]string, 0, len(infos))
		for _, info := range infos {
			rows = append(rows, []string{
				info.Tag,
				format.ShortDigest(info.Digest),
				format.Bytes(info.Size),
				format.Platforms(info.Platforms),
				format.Age(info.Created),
			})
		}
		headers := []string{"TAG", "DIGEST", "SIZE", "PLATFORMS", "CREATED"}
		if err := writeTable(cmd.OutOrStdout(), headers, rows); err != nil {
			return err
		}
		return reportFailures(cmd.ErrOrStderr(), failures)
	},
}

func init() {
	rootCmd.AddCommand(tagsCmd)
}
