// Package cmd implements the rex CLI commands using Cobra.
// It provides commands for exploring OCI registries: repository and
// tag listings, reference inspection, fuzzy search, cache
// maintenance, and an interactive terminal UI.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/meigma/rex"
	"github.com/meigma/rex/cache"
	"github.com/meigma/rex/internal/config"
	"github.com/meigma/rex/internal/credstore"
	"github.com/meigma/rex/internal/slogger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	flagRegistry    string
	flagOutput      string
	flagConcurrency int
	flagNoCache     bool
	flagPlainHTTP   bool
	flagVerbosity   int
)

// Initialized in PersistentPreRunE for all subcommands.
var (
	appConfig *config.Config
	explorer  *rex.Explorer
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rex",
	Short: "Explore OCI container registries",
	Long: `rex browses container registries without pulling images: repository
catalogs, tag listings, manifests, and image configs, fetched
concurrently and cached on disk.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initExplorer(cmd)
	},
}

// Execute runs the root command under ctx. Context cancellation
// aborts in-flight registry requests.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagRegistry, "registry", "r", "", "registry host (defaults to config)")
	pf.StringVarP(&flagOutput, "output", "o", "", "output format: table or json")
	pf.IntVar(&flagConcurrency, "concurrency", 0, "max concurrent registry requests")
	pf.BoolVar(&flagNoCache, "no-cache", false, "bypass the metadata cache")
	pf.BoolVar(&flagPlainHTTP, "plain-http", false, "use plain HTTP (local registries)")
	pf.CountVarP(&flagVerbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
}

// initExplorer loads configuration, applies flag overrides, and
// builds the shared Explorer.
func initExplorer(cmd *cobra.Command) error {
	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	if flagRegistry != "" {
		cfg.Registry = flagRegistry
	}
	if flagOutput != "" {
		if flagOutput != "table" && flagOutput != "json" {
			return fmt.Errorf("invalid output format %q (want table or json)", flagOutput)
		}
		cfg.Output = flagOutput
	}
	if flagConcurrency > 0 {
		cfg.Fetch.Concurrency = flagConcurrency
	}
	if flagPlainHTTP {
		cfg.Fetch.PlainHTTP = true
	}

	logger = slogger.New(slogger.Config{Verbosity: flagVerbosity})

	opts := []rex.Option{
		rex.WithLogger(logger),
		rex.WithUserAgent("rex/" + version),
		rex.WithConcurrency(cfg.Fetch.Concurrency),
		rex.WithTimeout(cfg.Fetch.Timeout),
		rex.WithMaxRetries(cfg.Fetch.MaxRetries),
		rex.WithPlainHTTP(cfg.Fetch.PlainHTTP),
		rex.WithCredentialFunc(credstore.New(cfg.Auth).CredentialFunc()),
		rex.WithStaleness(cache.TTL{
			Catalog: cfg.Cache.CatalogTTL,
			TagList: cfg.Cache.TagListTTL,
			Resolve: cfg.Cache.ResolveTTL,
		}),
	}
	if !flagNoCache {
		opts = append(opts, rex.WithCacheDir(cfg.Cache.Dir))
	}

	ex, err := rex.New(opts...)
	if err != nil {
		return fmt.Errorf("initialize explorer: %w", err)
	}

	appConfig = cfg
	explorer = ex
	cmd.SetContext(slogger.WithLogger(cmd.Context(), logger))
	return nil
}
