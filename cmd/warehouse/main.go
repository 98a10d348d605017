package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/ff-inspection-warehouse/internal/adapter"
	"github.com/feral-file/ff-inspection-warehouse/internal/config"
	"github.com/feral-file/ff-inspection-warehouse/internal/domain"
	"github.com/feral-file/ff-inspection-warehouse/internal/logger"
	"github.com/feral-file/ff-inspection-warehouse/internal/pipeline"
	"github.com/feral-file/ff-inspection-warehouse/internal/sink"
	"github.com/feral-file/ff-inspection-warehouse/internal/source"
	"github.com/feral-file/ff-inspection-warehouse/internal/store"
	"github.com/feral-file/ff-inspection-warehouse/internal/validate"
)

var (
	configFile string
	envPath    string
	inputDir   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "warehouse",
		Short: "Build the restaurant inspection warehouse from raw city batches",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.ChdirRepoRoot()
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", "config/", "Path to environment files")
	rootCmd.PersistentFlags().StringVar(&inputDir, "input", "", "Directory of raw batch files (overrides input_dir)")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createValidateCmd())
	rootCmd.AddCommand(createReportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration and initializes the logger
func setup(service string) (*config.WarehouseConfig, error) {
	cfg, err := config.LoadWarehouseConfig(configFile, envPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if inputDir != "" {
		cfg.InputDir = inputDir
	}

	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": service,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore(ctx context.Context, cfg *config.WarehouseConfig) (store.Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		return nil, fmt.Errorf("failed to configure connection pool: %w", err)
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	return store.NewRetryingStore(store.NewPGStore(db), cfg.Retry), nil
}

func newPool(cfg *config.WarehouseConfig) pond.Pool {
	return pond.NewPool(
		cfg.Worker.WorkerPoolSize,
		pond.WithQueueSize(cfg.Worker.WorkerQueueSize),
	)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// summary is the printed outcome of a run
type summary struct {
	RunID    string            `json:"run_id"`
	Status   string            `json:"status"`
	Digest   string            `json:"digest"`
	Counters pipeline.Counters `json:"counters"`
	Report   *validate.Report  `json:"report"`
	Rejected int               `json:"rejected"`
	Reviews  int               `json:"reviews"`
}

func summarize(result *pipeline.Result) summary {
	return summary{
		RunID:    result.RunID,
		Status:   result.Status,
		Digest:   result.Digest,
		Counters: result.Counters,
		Report:   result.Report,
		Rejected: len(result.Rejected),
		Reviews:  len(result.Reviews),
	}
}

func checkReport(result *pipeline.Result) error {
	if result.Report != nil && !result.Report.Passed() {
		return fmt.Errorf("integrity checks failed: %v", result.Report.Failed())
	}
	return nil
}

// createRunCmd runs the pipeline against the persistent store
func createRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline and publish the warehouse",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup("warehouse")
			if err != nil {
				return err
			}
			defer logger.Flush(2 * time.Second)

			ctx, stop := signalContext()
			defer stop()
			logger.InfoCtx(ctx, "Starting warehouse run", zap.String("input_dir", cfg.InputDir))

			dataStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}

			var out sink.Sink
			if cfg.ClickHouse.Enabled {
				out, err = sink.NewClickHouseSink(ctx, cfg.ClickHouse)
				if err != nil {
					return err
				}
				defer func() { _ = out.Close() }()
			}

			batches, err := source.NewFileLoader(cfg.InputDir, adapter.NewFileSystem(), adapter.NewJSON()).Load(ctx)
			if err != nil {
				return err
			}

			pool := newPool(cfg)
			defer pool.StopAndWait()

			result, err := pipeline.Build(pool, dataStore, cfg, adapter.NewClock(), out).Run(ctx, batches)
			if err != nil {
				logger.ErrorCtx(ctx, err)
				return err
			}
			if err := printJSON(summarize(result)); err != nil {
				return err
			}
			return checkReport(result)
		},
	}
}

// createValidateCmd runs the pipeline on an in-memory store without publishing anything
func createValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Dry-run the pipeline over the input and print the integrity report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup("warehouse-validate")
			if err != nil {
				return err
			}
			defer logger.Flush(2 * time.Second)

			ctx, stop := signalContext()
			defer stop()

			batches, err := source.NewFileLoader(cfg.InputDir, adapter.NewFileSystem(), adapter.NewJSON()).Load(ctx)
			if err != nil {
				return err
			}

			pool := newPool(cfg)
			defer pool.StopAndWait()

			result, err := pipeline.Build(pool, store.NewMemoryStore(), cfg, adapter.NewClock(), nil).Run(ctx, batches)
			if err != nil {
				return err
			}
			if err := printJSON(summarize(result)); err != nil {
				return err
			}
			return checkReport(result)
		},
	}
}

// loggedRecord is one row of the rejected-records log
type loggedRecord struct {
	Stage      string `json:"stage"`
	ErrorKind  string `json:"error_kind"`
	NaturalKey string `json:"natural_key"`
	Message    string `json:"message"`
}

// runReport is the printed view of a recorded run
type runReport struct {
	RunID            string          `json:"run_id"`
	Status           string          `json:"status"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at"`
	RecordsIn        int             `json:"records_in"`
	RecordsRejected  int             `json:"records_rejected"`
	Inspections      int             `json:"inspections"`
	Versions         int             `json:"versions"`
	ReviewFlags      int             `json:"review_flags"`
	Digest           string          `json:"digest"`
	ValidationPassed bool            `json:"validation_passed"`
	Report           json.RawMessage `json:"report"`
	Rejected         []loggedRecord  `json:"rejected"`
	Reviews          []loggedRecord  `json:"reviews"`
}

// loadRunReport reads a run and splits its log into rejected records and review flags
func loadRunReport(ctx context.Context, st store.Store, runID string) (*runReport, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	records, err := st.GetRejections(ctx, run.RunID)
	if err != nil {
		return nil, err
	}

	view := &runReport{
		RunID:            run.RunID,
		Status:           run.Status,
		StartedAt:        run.StartedAt,
		FinishedAt:       run.FinishedAt,
		RecordsIn:        run.RecordsIn,
		RecordsRejected:  run.RecordsRejected,
		Inspections:      run.Inspections,
		Versions:         run.Versions,
		ReviewFlags:      run.ReviewFlags,
		Digest:           run.Digest,
		ValidationPassed: run.ValidationPassed,
		Report:           json.RawMessage(run.Report),
		Rejected:         []loggedRecord{},
		Reviews:          []loggedRecord{},
	}
	for _, r := range records {
		row := loggedRecord{Stage: r.Stage, ErrorKind: r.ErrorKind, NaturalKey: r.NaturalKey, Message: r.Message}
		if r.ErrorKind == domain.ErrorKindReview {
			view.Reviews = append(view.Reviews, row)
			continue
		}
		view.Rejected = append(view.Rejected, row)
	}
	return view, nil
}

// createReportCmd prints a recorded run, its rejected records and review flags
func createReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <run-id>",
		Short: "Print a recorded run with its rejected records and review flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup("warehouse-report")
			if err != nil {
				return err
			}
			defer logger.Flush(2 * time.Second)

			ctx, stop := signalContext()
			defer stop()

			dataStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}

			view, err := loadRunReport(ctx, dataStore, args[0])
			if err != nil {
				return err
			}
			return printJSON(view)
		},
	}
}
