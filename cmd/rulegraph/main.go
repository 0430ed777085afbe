package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"rulegraph/internal/config"
	"rulegraph/internal/extractor"
	"rulegraph/internal/index"

	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "rulegraph",
		Short: "Explore the dependency graphs of tax-benefit rule variables",
	}
	configPath string
	country    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&country, "country", "", "Dataset id (default: us, or the first configured)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(impactCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

// setup loads the configuration and builds the logger and the dataset
// registry shared by every command.
func setup() (*config.Config, *slog.Logger, *index.Registry) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	reg := index.NewRegistry(cfg.Datasets, index.NewLoader(extractorOptions(cfg), logger), logger)
	return cfg, logger, reg
}

func extractorOptions(cfg *config.Config) extractor.Options {
	opts := extractor.DefaultOptions()
	if len(cfg.Extractor.ParameterPrefixes) > 0 {
		opts.ParameterPrefixes = cfg.Extractor.ParameterPrefixes
	}
	if len(cfg.Extractor.EntityNames) > 0 {
		opts.EntityNames = cfg.Extractor.EntityNames
	}
	return opts
}
