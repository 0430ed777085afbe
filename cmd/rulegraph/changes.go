package main

import (
	"context"
	"fmt"
	"log"

	"rulegraph/internal/git"
	"rulegraph/internal/server"

	"github.com/spf13/cobra"
)

var changesSince string

func init() {
	changesCmd.Flags().StringVar(&changesSince, "since", "HEAD", "Git revision to diff the variables directory against")
	changesCmd.Flags().IntVar(&impactHops, "hops", 0, "Maximum reverse distance (0 for unbounded)")
	rootCmd.AddCommand(changesCmd)
}

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Report variables changed since a git revision and what they affect",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, logger, reg := setup()
		svc := server.NewService(reg, cfg, logger)

		id := country
		if id == "" {
			id = svc.DefaultCountry()
		}
		ds, err := reg.Get(ctx, id)
		if err != nil {
			log.Fatalf("Failed to load dataset: %v", err)
		}
		dsCfg, _ := reg.Config(ds.Country)
		if dsCfg.VariablesDir == "" {
			log.Fatalf("Dataset %s has no variables directory to diff", ds.Country)
		}

		files, err := git.ChangedFiles(ctx, dsCfg.VariablesDir, changesSince)
		if err != nil {
			log.Fatalf("Failed to get git changes: %v", err)
		}
		if len(files) == 0 {
			fmt.Println("✅ No changes detected.")
			return
		}
		fmt.Printf("📝 Detected %d changed files.\n", len(files))

		changed := ds.Repo.Changed(files)
		if len(changed) == 0 {
			fmt.Println("✅ No variable definitions changed.")
			return
		}

		fmt.Println("🔍 Analyzing impact...")
		affected := map[string]bool{}
		for _, name := range changed {
			_, report, err := svc.Impact(ctx, ds.Country, name, impactHops)
			if err != nil {
				log.Printf("⚠️ Impact of %s: %v", name, err)
				continue
			}
			fmt.Printf("  %s -> %d direct, %d indirect\n", name, len(report.DirectlyAffected), len(report.IndirectlyAffected))
			for _, u := range report.DirectlyAffected {
				affected[u.Variable] = true
			}
			for _, v := range report.IndirectlyAffected {
				affected[v] = true
			}
		}
		fmt.Printf("📊 %d variables changed, %d variables affected.\n", len(changed), len(affected))
	},
}
