package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"rulegraph/internal/index"
	"rulegraph/internal/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	dbPath   string
	jsonPath string
)

func init() {
	indexCmd.Flags().StringVarP(&dbPath, "db", "d", "rulegraph.db", "Path to the snapshot database (SQLite)")
	indexCmd.Flags().StringVar(&jsonPath, "json", "", "Also write the definitions of each dataset to <dir>/<country>.json")
	snapshotsCmd.Flags().StringVarP(&dbPath, "db", "d", "rulegraph.db", "Path to the snapshot database (SQLite)")
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan dataset sources and store snapshots for fast startup",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		cfg, logger, reg := setup()

		countries := reg.Countries()
		if country != "" {
			countries = []string{country}
		}

		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()

		for _, c := range countries {
			dsCfg, ok := cfg.Datasets[c]
			if !ok {
				log.Fatalf("Unknown dataset %q", c)
			}
			// Always index the sources, even when the dataset is configured
			// to start from a snapshot.
			dsCfg.Snapshot = ""

			fmt.Printf("📂 Scanning %s: %s\n", c, dsCfg.VariablesDir)
			start := time.Now()
			ds, err := index.NewLoader(extractorOptions(cfg), logger).Load(ctx, c, dsCfg)
			if err != nil {
				log.Fatalf("Failed to load %s: %v", c, err)
			}
			fmt.Printf("✅ %s variables indexed in %v (version %s)\n",
				humanize.Comma(int64(ds.Repo.Len())), time.Since(start).Round(time.Millisecond), ds.Repo.Version())

			if err := store.SaveSnapshot(ctx, ds.Snapshot()); err != nil {
				log.Fatalf("Failed to save snapshot: %v", err)
			}
			if jsonPath != "" {
				out := filepath.Join(jsonPath, c+".json")
				if err := index.SaveRepository(ds.Repo, out); err != nil {
					log.Fatalf("Failed to write %s: %v", out, err)
				}
				fmt.Printf("📝 Definitions written to %s\n", out)
			}
		}
		fmt.Printf("🎉 Index complete! Database: %s\n", dbPath)
	},
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List the snapshots stored in a database",
	Run: func(cmd *cobra.Command, args []string) {
		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer store.Close()

		infos, err := store.ListSnapshots(context.Background())
		if err != nil {
			log.Fatalf("Failed to list snapshots: %v", err)
		}
		if len(infos) == 0 {
			fmt.Println("No snapshots.")
			return
		}
		for _, info := range infos {
			fmt.Printf("%-6s %-18s %8s variables  %s\n",
				info.Country, info.Version, humanize.Comma(int64(info.Variables)), humanize.Time(info.CreatedAt))
		}
	},
}
