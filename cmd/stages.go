package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tenkay/filing-pipeline/internal/ci"
	"github.com/tenkay/filing-pipeline/internal/config"
	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/pipeline"
	"github.com/tenkay/filing-pipeline/internal/stages"
)

// progressEvery is how often a batch prints a progress line.
const progressEvery = 10

// batchFlags are the flags shared by every single-stage command. Zero
// limit and workers fall back to the stage's config section.
type batchFlags struct {
	limit       int
	workers     int
	maxWorkers  int
	dryRun      bool
	summaryFile string
}

func (f *batchFlags) register(cmd *cobra.Command, maxWorkers int) {
	f.maxWorkers = maxWorkers
	cmd.Flags().IntVar(&f.limit, "limit", 0, "max candidates to process (default from config, 0 = unbounded)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "concurrent workers, 1-"+strconv.Itoa(maxWorkers)+" (default from config)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "validate candidates without calling external services or writing")
	cmd.Flags().StringVar(&f.summaryFile, "summary-file", "", "write a markdown summary to this path")
}

// resolve merges flags over sc and checks the worker bound.
func (f *batchFlags) resolve(sc config.StageConfig) (limit, workers int, err error) {
	limit, workers = sc.Limit, sc.Workers
	if f.limit > 0 {
		limit = f.limit
	}
	if f.workers != 0 {
		workers = f.workers
	}
	if workers == 0 {
		workers = 1
	}
	if err := checkWorkers(workers, f.maxWorkers); err != nil {
		return 0, 0, err
	}
	return limit, workers, nil
}

func checkWorkers(n, max int) error {
	if n < 1 || n > max {
		return eris.Errorf("--workers must be between 1 and %d, got %d", max, n)
	}
	return nil
}

// runBatch drives stage through one bounded batch and writes the optional
// CI summary. Unit failures are reported, not returned.
func runBatch[U pipeline.Unit, R any](ctx context.Context, stage pipeline.Stage[U, R], f *batchFlags, limit, workers int) (*pipeline.BatchResult, error) {
	runner := pipeline.NewBatchRunner(stage, pipeline.BatchOptions{
		Concurrency:   workers,
		DryRun:        f.dryRun,
		ProgressEvery: progressEvery,
		Out:           os.Stdout,
	})
	res, err := runner.Run(ctx, limit)
	if err != nil {
		return nil, err
	}
	if f.summaryFile != "" {
		if err := ci.WriteSummary(f.summaryFile, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

var (
	fetchFlags      batchFlags
	fetchTickers    []string
	fetchPerCompany int
	fetchRefetch    bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Discover new filings on EDGAR and store their documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, workers, err := fetchFlags.resolve(cfg.Fetch.StageConfig)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "fetch")
		if err != nil {
			return err
		}
		defer env.Close()

		stage, err := env.fetchStage(fetchOptions())
		if err != nil {
			return err
		}
		_, err = runBatch(ctx, stage, &fetchFlags, limit, workers)
		return err
	},
}

func fetchOptions() stages.FetchOptions {
	perCompany := cfg.Fetch.PerCompany
	if fetchPerCompany > 0 {
		perCompany = fetchPerCompany
	}
	tickers := make([]string, 0, len(fetchTickers))
	for _, t := range fetchTickers {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, strings.ToUpper(t))
		}
	}
	return stages.FetchOptions{
		Tickers:    tickers,
		Forms:      cfg.Fetch.FilingTypes(),
		PerCompany: perCompany,
		Refetch:    fetchRefetch,
	}
}

var (
	analyzeFlags batchFlags
	analyzeType  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze pending filings with Claude",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, workers, err := analyzeFlags.resolve(cfg.Analyze)
		if err != nil {
			return err
		}
		typ, err := resolveAnalysisType(analyzeType)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "analyze")
		if err != nil {
			return err
		}
		defer env.Close()

		stage, err := env.analyzeStage(typ)
		if err != nil {
			return err
		}
		_, err = runBatch(ctx, stage, &analyzeFlags, limit, workers)
		return err
	},
}

func resolveAnalysisType(flag string) (model.AnalysisType, error) {
	v := flag
	if v == "" {
		v = cfg.Analyze.Type
	}
	switch t := model.AnalysisType(strings.ToLower(v)); t {
	case model.AnalysisQuick, model.AnalysisDeep:
		return t, nil
	}
	return "", eris.Errorf("--type must be quick or deep, got %q", v)
}

var generateFlags batchFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Render blog and email content for analyzed filings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, workers, err := generateFlags.resolve(cfg.Generate)
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "generate")
		if err != nil {
			return err
		}
		defer env.Close()

		stage, err := env.generateStage()
		if err != nil {
			return err
		}
		_, err = runBatch(ctx, stage, &generateFlags, limit, workers)
		return err
	},
}

var (
	publishFlags batchFlags
	publishTier  string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Email rendered content to subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		limit, workers, err := publishFlags.resolve(cfg.Publish.StageConfig)
		if err != nil {
			return err
		}
		if publishTier != "" {
			cfg.Publish.Tier = publishTier
		}
		tier, ok := model.ParseTier(cfg.Publish.Tier)
		if !ok {
			return eris.Errorf("--tier must be free, paid or all, got %q", cfg.Publish.Tier)
		}

		env, err := initPipeline(ctx, "publish")
		if err != nil {
			return err
		}
		defer env.Close()

		_, err = runBatch(ctx, env.publishStage(tier), &publishFlags, limit, workers)
		return err
	},
}

func init() {
	fetchFlags.register(fetchCmd, 10)
	fetchCmd.Flags().StringSliceVar(&fetchTickers, "tickers", nil, "comma-separated tickers (default all enabled companies)")
	fetchCmd.Flags().IntVar(&fetchPerCompany, "per-company", 0, "max filings listed per company and form (default from config)")
	fetchCmd.Flags().BoolVar(&fetchRefetch, "refetch", false, "download filings even if already stored")

	analyzeFlags.register(analyzeCmd, 10)
	analyzeCmd.Flags().StringVar(&analyzeType, "type", "", "analysis depth: quick or deep (default from config)")

	generateFlags.register(generateCmd, 15)

	publishFlags.register(publishCmd, 10)
	publishCmd.Flags().StringVar(&publishTier, "tier", "", "subscriber tier: free, paid or all (default from config)")

	rootCmd.AddCommand(fetchCmd, analyzeCmd, generateCmd, publishCmd)
}
