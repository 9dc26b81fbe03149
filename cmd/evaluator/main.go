// Command evaluator runs the dataset quality and risk evaluation pipeline
// from the command line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cuidar-analytics/evaluator/pkg/anonymizer"
	"github.com/cuidar-analytics/evaluator/pkg/config"
	"github.com/cuidar-analytics/evaluator/pkg/engine"
	"github.com/cuidar-analytics/evaluator/pkg/source"
	"github.com/cuidar-analytics/evaluator/pkg/store"
)

var (
	// Analyze flags
	autoAnonymize bool
	strategy      string
	outPath       string
	anonymizedOut string
	postgresQuery string
	snowQuery     string
	saveRun       bool
	verbose       bool

	// List flags
	listLimit int

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "evaluator",
	Short: "Dataset quality and privacy-risk evaluation engine",
	Long: `evaluator runs six analyzers (completeness, typology, semantics,
geospatial readiness, PII risk, ML readiness) against a tabular dataset and
emits a consolidated JSON report. With --auto-anonymize, detected PII columns
are transformed before the anonymized copy is written out.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		logger, err = buildLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file.csv]",
	Short: "Run the full analysis pipeline against a dataset",
	Long: `Loads a dataset from a CSV file (positional argument), a PostgreSQL
query (--postgres-query) or a Snowflake query (--snowflake-query), runs all
six analyzers concurrently, and writes the consolidated analysis as JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect persisted evaluation runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent evaluation runs",
	RunE:  runRunsList,
}

var runsGetCmd = &cobra.Command{
	Use:   "get [run-id]",
	Short: "Fetch one persisted run by ID",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsGet,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	analyzeCmd.Flags().BoolVar(&autoAnonymize, "auto-anonymize", false, "anonymize PII columns when detected")
	analyzeCmd.Flags().StringVar(&strategy, "strategy", "hash", "anonymization strategy: hash, mask or remove")
	analyzeCmd.Flags().StringVarP(&outPath, "out", "o", "", "write consolidated JSON to file (default stdout)")
	analyzeCmd.Flags().StringVar(&anonymizedOut, "anonymized-out", "", "write the anonymized table as CSV")
	analyzeCmd.Flags().StringVar(&postgresQuery, "postgres-query", "", "load the dataset from a PostgreSQL query")
	analyzeCmd.Flags().StringVar(&snowQuery, "snowflake-query", "", "load the dataset from a Snowflake query")
	analyzeCmd.Flags().BoolVar(&saveRun, "save", false, "persist the run to the PostgreSQL run store")

	runsListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of runs to list")

	runsCmd.AddCommand(runsListCmd, runsGetCmd)
	rootCmd.AddCommand(analyzeCmd, runsCmd)
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	}
	if verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zapCfg.Build()
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	factory, err := source.NewFactory(cfg, logger)
	if err != nil {
		return err
	}

	var src source.DatasetSource
	switch {
	case postgresQuery != "":
		src, err = factory.CreatePostgresSource(ctx, postgresQuery)
	case snowQuery != "":
		src, err = factory.CreateSnowflakeSource(ctx, snowQuery)
	case len(args) == 1:
		src, err = factory.CreateCSVSource(args[0])
	default:
		return fmt.Errorf("provide a CSV file, --postgres-query or --snowflake-query")
	}
	if err != nil {
		return fmt.Errorf("failed to create dataset source: %w", err)
	}
	defer src.Close()

	table, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	eng.WithAnonymizationStrategy(anonymizer.Strategy(strategy))

	run, err := eng.Run(ctx, table, src.Label(), autoAnonymize)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if err := writeConsolidated(run); err != nil {
		return err
	}

	if anonymizedOut != "" && run.AnonymizedTable != nil {
		if err := writeAnonymized(run); err != nil {
			return err
		}
	}

	if saveRun {
		if err := persistRun(ctx, run); err != nil {
			return err
		}
	}

	summary := engine.Summarize(run.Consolidated)
	logger.Info("Analysis finished",
		zap.String("runID", run.RunID.String()),
		zap.Float64("overallScore", summary.OverallScore),
		zap.Bool("piiDetected", summary.PIIDetected),
		zap.Int("analyzersFailed", summary.AnalyzersFailed))
	return nil
}

func writeConsolidated(run *engine.RunResult) error {
	payload, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if outPath == "" {
		fmt.Println(string(payload))
		return nil
	}
	if err := os.WriteFile(outPath, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	logger.Info("Wrote consolidated analysis", zap.String("path", outPath))
	return nil
}

func writeAnonymized(run *engine.RunResult) error {
	f, err := os.Create(anonymizedOut)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", anonymizedOut, err)
	}
	defer f.Close()

	if err := run.AnonymizedTable.WriteCSV(f); err != nil {
		return fmt.Errorf("failed to write anonymized table: %w", err)
	}
	logger.Info("Wrote anonymized table", zap.String("path", anonymizedOut))
	return nil
}

func openRunStore() (*store.RunStore, *sqlx.DB, error) {
	if cfg.Postgres == nil {
		return nil, nil, fmt.Errorf("run store requires PostgreSQL configuration (POSTGRES_* env)")
	}
	db, err := sqlx.Open("postgres", cfg.Postgres.ConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open run store connection: %w", err)
	}
	runStore, err := store.NewRunStore(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return runStore, db, nil
}

func persistRun(ctx context.Context, run *engine.RunResult) error {
	runStore, db, err := openRunStore()
	if err != nil {
		return err
	}
	defer db.Close()
	return runStore.SaveRun(ctx, run)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	runStore, db, err := openRunStore()
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := runStore.ListRuns(context.Background(), listLimit)
	if err != nil {
		return err
	}
	for _, r := range records {
		fmt.Printf("%s  %s  %dx%d  anonymized=%t  %s\n",
			r.RunID, r.Filename, r.TotalRows, r.TotalColumns,
			r.Anonymized, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRunsGet(cmd *cobra.Command, args []string) error {
	runID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid run ID %q: %w", args[0], err)
	}

	runStore, db, err := openRunStore()
	if err != nil {
		return err
	}
	defer db.Close()

	record, err := runStore.GetRun(context.Background(), runID)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	fmt.Println(string(payload))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
