package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ncboe-donors/internal/config"
	"github.com/ncboe-donors/internal/db"
	"github.com/ncboe-donors/internal/engine"
	"github.com/ncboe-donors/internal/household"
	"github.com/ncboe-donors/internal/identity"
	"github.com/ncboe-donors/internal/ingest"
	"github.com/ncboe-donors/internal/match"
	"github.com/ncboe-donors/internal/store"
	"github.com/ncboe-donors/internal/web"
)

var (
	logger    zerolog.Logger
	vocabPath string
)

func main() {
	_ = config.LoadEnv()

	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	if config.GetEnv("LOG_LEVEL", "info") == "debug" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	rootCmd := &cobra.Command{
		Use:   "donor-id",
		Short: "NC BOE donor identity resolution",
		Long:  `Deduplicates donor records from NC Board of Elections contribution files into stable master identities`,
	}
	rootCmd.PersistentFlags().StringVar(&vocabPath, "vocab", "", "YAML vocabulary override file")

	rootCmd.AddCommand(createPingCmd())
	rootCmd.AddCommand(createImportCmd())
	rootCmd.AddCommand(createMergeCmd())
	rootCmd.AddCommand(createRelateCmd())
	rootCmd.AddCommand(createReviewCmd())
	rootCmd.AddCommand(createServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// openStore returns the Postgres store, or the in-memory store for dry runs.
func openStore(memory bool) (store.Store, func(), error) {
	if memory {
		return store.NewMemoryStore(), func() {}, nil
	}
	conn, err := db.NewConnection()
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return store.NewPostgresStore(conn.DB), func() { conn.Close() }, nil
}

// buildPipeline wires the full resolution stack from the environment config.
func buildPipeline(st store.Store, eng config.Engine, createMissing bool) (*engine.Pipeline, error) {
	vocab, err := config.LoadVocab(vocabPath)
	if err != nil {
		return nil, err
	}
	idgen, err := identity.NewIDGenerator(eng.IDStrategy)
	if err != nil {
		return nil, err
	}

	keys := match.KeyGenerator{LastNameWidth: eng.LastNameWidth, ZipWidth: eng.ZipWidth}
	matcher := match.NewMatcher(st, keys, match.Config{
		FuzzyThreshold: eng.FuzzyThreshold,
		RequireCounty:  eng.RequireCounty,
	})
	resolver := identity.NewResolver(st, matcher, keys, idgen, logger)
	inferencer := household.NewInferencer(st, household.Config{SpouseConfidence: eng.SpouseConfidence}, logger)

	opts := engine.Options{Workers: eng.Workers, CreateMissing: createMissing}
	return engine.NewPipeline(st, vocab.NameParser(), vocab.AddressParser(), keys, resolver, inferencer, opts, logger), nil
}

// createPingCmd creates a command to test database connectivity
func createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection()
			if err != nil {
				return err
			}
			defer conn.Close()
			fmt.Println("Database connection successful!")

			var count int
			if err := conn.DB.QueryRow("SELECT COUNT(*) FROM master_identity").Scan(&count); err == nil {
				fmt.Printf("Master identities: %d\n", count)
			}
			if err := conn.DB.QueryRow("SELECT COUNT(*) FROM person_alias").Scan(&count); err == nil {
				fmt.Printf("Known aliases: %d\n", count)
			}
			return nil
		},
	}
}

// createImportCmd creates the import subcommand
func createImportCmd() *cobra.Command {
	var matchOnly bool
	var memory bool
	var workers int

	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Resolve donation CSV files against master identities",
		Long:  `Reads contribution CSV files, resolves each donor to a master identity, links donations and recomputes households`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(memory)
			if err != nil {
				return err
			}
			defer closeStore()

			eng := config.LoadEngine()
			if workers > 0 {
				eng.Workers = workers
			}
			pipeline, err := buildPipeline(st, eng, !matchOnly)
			if err != nil {
				return err
			}

			reader := ingest.NewCSVReader()
			var records []engine.RawRecord
			for _, filename := range args {
				result, err := reader.ReadFile(filename)
				if err != nil {
					return err
				}
				for _, skip := range result.Skipped {
					logger.Warn().Str("file", filename).Int("line", skip.Line).Str("reason", skip.Reason).Msg("skipped row")
				}
				records = append(records, result.Records...)
			}

			summary, err := pipeline.Run(context.Background(), records)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Resolution Results ===\n")
			fmt.Printf("Run ID: %s\n", summary.RunID)
			fmt.Printf("Processed: %d\n", summary.Processed)
			fmt.Printf("Resolved: %d\n", summary.Resolved)
			fmt.Printf("New Identities: %d\n", summary.Created)
			fmt.Printf("Unresolved: %d\n", summary.Unresolved)
			fmt.Printf("Flagged for Review: %d\n", len(summary.Flags))
			fmt.Printf("Failed: %d\n", len(summary.Failures))
			for _, f := range summary.Flags {
				fmt.Printf("  REVIEW %s -> %s (score %.3f, runners %v)\n", f.RawName, f.ChosenID, f.Score, f.Runners)
			}
			for _, f := range summary.Failures {
				fmt.Printf("  FAILED %s (%s): %s\n", f.SourceRef, f.RawName, f.Reason)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&matchOnly, "match-only", false, "Match against existing identities without creating new ones")
	cmd.Flags().BoolVar(&memory, "memory", false, "Run against an in-memory store (dry run)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Parallel block workers (overrides RESOLVE_WORKERS)")

	return cmd
}

// createMergeCmd creates the merge subcommand
func createMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge [old-id] [new-id]",
		Short: "Merge a duplicate identity into another",
		Long:  `Records that old-id and new-id are the same person and repoints aliases, donations, spouse pairs and households. The superseded row is retained`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(false)
			if err != nil {
				return err
			}
			defer closeStore()

			merger := identity.NewMerger(st, logger)
			if err := merger.Merge(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			current, err := merger.CurrentID(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Merged %s into %s (current id: %s)\n", args[0], args[1], current)
			return nil
		},
	}
}

// createRelateCmd creates the relate subcommand
func createRelateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relate",
		Short: "Recompute spouse pairs and household clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(false)
			if err != nil {
				return err
			}
			defer closeStore()

			eng := config.LoadEngine()
			inferencer := household.NewInferencer(st, household.Config{SpouseConfidence: eng.SpouseConfidence}, logger)

			pairs, err := inferencer.InferSpouses(context.Background())
			if err != nil {
				return err
			}
			clusters, err := inferencer.BuildClusters(context.Background())
			if err != nil {
				return err
			}
			fmt.Printf("Spouse pairs: %d\n", pairs)
			fmt.Printf("Household clusters: %d\n", clusters)
			return nil
		},
	}
}

// createReviewCmd creates the review subcommand
func createReviewCmd() *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "review",
		Short: "List likely fragmented identities for manual merge review",
		Long:  `Scans identities sharing a residence for name pairs scoring above the review threshold. Candidates are printed, never merged automatically`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeStore, err := openStore(false)
			if err != nil {
				return err
			}
			defer closeStore()

			eng := config.LoadEngine()
			if threshold > 0 {
				eng.ReviewThreshold = threshold
			}
			pipeline, err := buildPipeline(st, eng, false)
			if err != nil {
				return err
			}

			candidates, err := pipeline.FindMergeCandidates(context.Background(), eng.ReviewThreshold)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				fmt.Println("No merge candidates found.")
				return nil
			}

			fmt.Println("Score | Identity A    | Identity B    | Residence")
			fmt.Println("------|---------------|---------------|----------")
			for _, c := range candidates {
				fmt.Printf("%.3f | %-13s | %-13s | %s %s\n", c.Score, c.IDA, c.IDB, c.HouseNumber, c.Zip)
			}
			fmt.Printf("\n%d candidates. Apply with: donor-id merge <old-id> <new-id>\n", len(candidates))
			return nil
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Similarity threshold (overrides REVIEW_THRESHOLD)")

	return cmd
}

// createServeCmd creates the serve subcommand
func createServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := web.DefaultConfig()
			if configPath != "" {
				loaded, err := web.LoadConfig(configPath)
				if err != nil {
					return fmt.Errorf("load config %s: %w", configPath, err)
				}
				cfg = loaded
			}

			st, closeStore, err := openStore(false)
			if err != nil {
				return err
			}
			defer closeStore()

			return web.NewServer(cfg, st, logger).Start()
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "JSON server configuration file")

	return cmd
}
