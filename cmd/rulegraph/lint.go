package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"rulegraph/internal/resolver"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(lintCmd)
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check parameter files against the parameter schema",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, _, reg := setup()

		countries := reg.Countries()
		if country != "" {
			countries = []string{country}
		}

		total := 0
		for _, c := range countries {
			dsCfg, ok := cfg.Datasets[c]
			if !ok {
				log.Fatalf("Unknown dataset %q", c)
			}
			for _, dir := range dsCfg.ParametersDirs {
				files, err := resolver.LoadDir(dir)
				if errors.Is(err, os.ErrNotExist) {
					fmt.Printf("⚠️  %s: %s does not exist\n", c, dir)
					continue
				}
				if err != nil {
					log.Fatalf("Failed to read %s: %v", dir, err)
				}
				problems, err := resolver.Lint(files)
				if err != nil {
					log.Fatalf("Lint failed: %v", err)
				}
				fmt.Printf("🔎 %s: %d files in %s, %d problems\n", c, len(files), dir, len(problems))
				for _, p := range problems {
					fmt.Printf("   %s\n", p)
				}
				total += len(problems)
			}
		}
		if total > 0 {
			os.Exit(1)
		}
	},
}
