package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/ci"
	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/pipeline"
)

var (
	orchFetch           bool
	orchPublish         bool
	orchAnalyzeOnly     bool
	orchGenerateOnly    bool
	orchAnalyzeLimit    int
	orchGenerateLimit   int
	orchAnalyzeWorkers  int
	orchGenerateWorkers int
	orchThreshold       float64
	orchDryRun          bool
	orchReportFile      string
)

var orchestrateCmd = &cobra.Command{
	Use:   "orchestrate",
	Short: "Run stages with overlap, starting each once its predecessor crosses a threshold",
	Long: "Runs analyze then generate, optionally preceded by fetch and followed by publish. " +
		"Each downstream phase launches as soon as the upstream phase's progress reaches --threshold, " +
		"or when the upstream phase finishes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyOrchestrateFlags(cmd)
		if err := checkOrchestrateFlags(); err != nil {
			return err
		}
		for _, mode := range orchestrateModes() {
			if err := cfg.Validate(mode); err != nil {
				return err
			}
		}

		env, err := initPipeline(ctx, "orchestrate")
		if err != nil {
			return err
		}
		defer env.Close()

		phases, err := buildPhases(env)
		if err != nil {
			return err
		}

		orch := pipeline.NewOrchestrator(phases, pipeline.OrchestratorOptions{
			PollInterval:   cfg.Orchestrate.PollInterval,
			StatusInterval: cfg.Orchestrate.StatusInterval,
			Out:            os.Stdout,
			OnStateChange: func(phase string, state pipeline.PhaseState) {
				zap.L().Debug("phase state", zap.String("phase", phase), zap.String("state", string(state)))
			},
		})
		report, runErr := orch.Run(ctx)

		if cfg.Orchestrate.ReportFile != "" && report != nil {
			if err := ci.WriteReport(cfg.Orchestrate.ReportFile, report); err != nil {
				zap.L().Error("write orchestration report", zap.Error(err))
			}
		}
		return runErr
	},
}

// applyOrchestrateFlags copies explicitly set flags over the config.
func applyOrchestrateFlags(cmd *cobra.Command) {
	o := &cfg.Orchestrate
	f := cmd.Flags()
	if f.Changed("analyze-limit") {
		o.AnalyzeLimit = orchAnalyzeLimit
	}
	if f.Changed("generate-limit") {
		o.GenerateLimit = orchGenerateLimit
	}
	if f.Changed("analyze-workers") {
		o.AnalyzeWorkers = orchAnalyzeWorkers
	}
	if f.Changed("generate-workers") {
		o.GenerateWorkers = orchGenerateWorkers
	}
	if f.Changed("threshold") {
		o.Threshold = orchThreshold
	}
	if f.Changed("report-file") {
		o.ReportFile = orchReportFile
	}
}

func checkOrchestrateFlags() error {
	if orchAnalyzeOnly && orchGenerateOnly {
		return eris.New("--analyze-only and --generate-only are mutually exclusive")
	}
	if (orchAnalyzeOnly || orchGenerateOnly) && (orchFetch || orchPublish) {
		return eris.New("--analyze-only and --generate-only cannot be combined with --fetch or --publish")
	}
	if err := checkWorkers(cfg.Orchestrate.AnalyzeWorkers, 10); err != nil {
		return eris.Wrap(err, "analyze")
	}
	if err := checkWorkers(cfg.Orchestrate.GenerateWorkers, 15); err != nil {
		return eris.Wrap(err, "generate")
	}
	if t := cfg.Orchestrate.Threshold; t < 0 || t > 1 {
		return eris.Errorf("--threshold must be between 0 and 1, got %v", t)
	}
	return nil
}

// orchestrateModes lists the extra config sections the selected phases need.
func orchestrateModes() []string {
	var modes []string
	if orchFetch {
		modes = append(modes, "fetch")
	}
	if orchPublish {
		modes = append(modes, "publish")
	}
	return modes
}

// buildPhases assembles the selected phases in pipeline order. Every phase
// but the last triggers its successor at the configured threshold.
func buildPhases(env *pipelineEnv) ([]pipeline.Phase, error) {
	o := cfg.Orchestrate
	var phases []pipeline.Phase

	if orchFetch {
		stage, err := env.fetchStage(fetchOptions())
		if err != nil {
			return nil, err
		}
		runner := pipeline.NewBatchRunner(stage, batchOptions(cfg.Fetch.Workers))
		phases = append(phases, pipeline.Phase{
			Name: stage.Name(),
			Run:  func(ctx context.Context) (*pipeline.BatchResult, error) { return runner.Run(ctx, cfg.Fetch.Limit) },
			Progress: func(context.Context) (model.Progress, error) {
				return runner.Progress(), nil
			},
		})
	}

	if !orchGenerateOnly {
		typ, err := resolveAnalysisType("")
		if err != nil {
			return nil, err
		}
		stage, err := env.analyzeStage(typ)
		if err != nil {
			return nil, err
		}
		runner := pipeline.NewBatchRunner(stage, batchOptions(o.AnalyzeWorkers))
		phases = append(phases, pipeline.Phase{
			Name:     stage.Name(),
			Run:      func(ctx context.Context) (*pipeline.BatchResult, error) { return runner.Run(ctx, o.AnalyzeLimit) },
			Progress: env.Store.AnalyzeProgress,
		})
	}

	if !orchAnalyzeOnly {
		stage, err := env.generateStage()
		if err != nil {
			return nil, err
		}
		runner := pipeline.NewBatchRunner(stage, batchOptions(o.GenerateWorkers))
		phases = append(phases, pipeline.Phase{
			Name:     stage.Name(),
			Run:      func(ctx context.Context) (*pipeline.BatchResult, error) { return runner.Run(ctx, o.GenerateLimit) },
			Progress: env.Store.GenerateProgress,
		})
	}

	if orchPublish {
		tier, ok := model.ParseTier(cfg.Publish.Tier)
		if !ok {
			return nil, eris.Errorf("publish.tier must be free, paid or all, got %q", cfg.Publish.Tier)
		}
		stage := env.publishStage(tier)
		runner := pipeline.NewBatchRunner(stage, batchOptions(cfg.Publish.Workers))
		phases = append(phases, pipeline.Phase{
			Name:     stage.Name(),
			Run:      func(ctx context.Context) (*pipeline.BatchResult, error) { return runner.Run(ctx, cfg.Publish.Limit) },
			Progress: env.Store.PublishProgress,
		})
	}

	for i := 0; i < len(phases)-1; i++ {
		phases[i].TriggerAt = o.Threshold
	}
	return phases, nil
}

func batchOptions(workers int) pipeline.BatchOptions {
	if workers < 1 {
		workers = 1
	}
	return pipeline.BatchOptions{
		Concurrency:   workers,
		DryRun:        orchDryRun,
		ProgressEvery: progressEvery,
		Out:           os.Stdout,
	}
}

func init() {
	f := orchestrateCmd.Flags()
	f.BoolVar(&orchFetch, "fetch", false, "run fetch before analyze")
	f.BoolVar(&orchPublish, "publish", false, "run publish after generate")
	f.BoolVar(&orchAnalyzeOnly, "analyze-only", false, "run only the analyze phase")
	f.BoolVar(&orchGenerateOnly, "generate-only", false, "run only the generate phase")
	f.IntVar(&orchAnalyzeLimit, "analyze-limit", 200, "max filings to analyze")
	f.IntVar(&orchGenerateLimit, "generate-limit", 200, "max content records to generate")
	f.IntVar(&orchAnalyzeWorkers, "analyze-workers", 5, "analyze workers, 1-10")
	f.IntVar(&orchGenerateWorkers, "generate-workers", 3, "generate workers, 1-15")
	f.Float64Var(&orchThreshold, "threshold", 0.10, "progress fraction that launches the next phase")
	f.BoolVar(&orchDryRun, "dry-run", false, "validate candidates without calling external services or writing")
	f.StringVar(&orchReportFile, "report-file", "", "write a markdown report to this path")

	rootCmd.AddCommand(orchestrateCmd)
}
