package cmd

import (
	"fmt"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/cobra"

	"github.com/meigma/rex/digest"
	"github.com/meigma/rex/internal/format"
)

var inspectPlatform string

// inspectReport is the JSON payload for `rex inspect`.
type inspectReport struct {
	Reference string            `json:"reference"`
	Digest    digest.Digest     `json:"digest"`
	MediaType string            `json:"mediaType"`
	Size      int64             `json:"size"`
	Platforms []string          `json:"platforms,omitempty"`
	Index     *ocispec.Index    `json:"index,omitempty"`
	Manifest  *ocispec.Manifest `json:"manifest,omitempty"`
	Config    *ocispec.Image    `json:"config,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <reference>",
	Short: "Show manifest and config details for a reference",
	Long: `Inspect fetches the manifest for a reference (repository, repository:tag,
or repository@digest) and prints its metadata. For multi-platform
images, --platform selects which child manifest's config to show.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		refStr := qualifyReference(args[0])
		ctx := cmd.Context()

		result, err := explorer.Manifest(ctx, refStr)
		if err != nil {
			return err
		}

		report := inspectReport{
			Reference: refStr,
			Digest:    result.Digest,
			MediaType: result.MediaType,
			Size:      result.Document.Size(),
			Platforms: result.Document.Platforms(),
			Index:     result.Document.Index,
			Manifest:  result.Document.Manifest,
		}

		cfg, err := explorer.Config(ctx, refStr, inspectPlatform)
		if err != nil {
			logger.Debug("config fetch failed", "reference", refStr, "error", err)
		} else {
			report.Config = &cfg
		}

		if jsonOutput() {
			return writeJSON(cmd.OutOrStdout(), report)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Reference:  %s\n", report.Reference)
		fmt.Fprintf(out, "Digest:     %s\n", report.Digest)
		fmt.Fprintf(out, "Media type: %s\n", report.MediaType)
		fmt.Fprintf(out, "Size:       %s\n", format.Bytes(report.Size))
		if len(report.Platforms) > 0 {
			fmt.Fprintf(out, "Platforms:  %s\n", format.Platforms(report.Platforms))
		}
		if report.Config != nil {
			if report.Config.Created != nil {
				created := report.Config.Created.UTC().Format(time.RFC3339)
				fmt.Fprintf(out, "Created:    %s\n", created)
			}
			if report.Config.Author != "" {
				fmt.Fprintf(out, "Author:     %s\n", report.Config.Author)
			}
			if len(report.Config.Config.Entrypoint) > 0 {
				fmt.Fprintf(out, "Entrypoint: %v\n", report.Config.Config.Entrypoint)
			}
			if len(report.Config.Config.Cmd) > 0 {
				fmt.Fprintf(out, "Cmd:        %v\n", report.Config.Config.Cmd)
			}
			if len(report.Config.Config.ExposedPorts) > 0 {
				ports := make([]string, 0, len(report.Config.Config.ExposedPorts))
				for p := range report.Config.Config.ExposedPorts {
					ports = append(ports, p)
				}
				fmt.Fprintf(out, "Ports:      %v\n", ports)
			}
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVar(&inspectPlatform, "platform", "", "platform selector for multi-arch images (os/arch)")
	rootCmd.AddCommand(inspectCmd)
}
