package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// BatchOptions configures a BatchRunner.
type BatchOptions struct {
	Concurrency int
	DryRun      bool
	// ProgressEvery prints a progress line after every N completed units.
	// Zero disables periodic lines; failures are always printed.
	ProgressEvery int
	// Out receives human-readable progress. Nil discards it.
	Out io.Writer
}

// BatchRunner drives one stage over a bounded candidate set.
type BatchRunner[U Unit, R any] struct {
	stage Stage[U, R]
	opts  BatchOptions

	total atomic.Int64
	done  atomic.Int64
}

// NewBatchRunner creates a runner for stage.
func NewBatchRunner[U Unit, R any](stage Stage[U, R], opts BatchOptions) *BatchRunner[U, R] {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &BatchRunner[U, R]{stage: stage, opts: opts}
}

// Progress reports how many of the current batch's units have completed.
// Safe to call while Run is in flight.
func (b *BatchRunner[U, R]) Progress() model.Progress {
	return model.Progress{Done: int(b.done.Load()), Total: int(b.total.Load())}
}

// Run fetches up to limit candidates and processes them. Only a candidate
// enumeration failure is returned as an error; unit failures are reported
// in the result.
func (b *BatchRunner[U, R]) Run(ctx context.Context, limit int) (*BatchResult, error) {
	name := b.stage.Name()
	log := zap.L().With(zap.String("stage", name))

	candidates, err := b.stage.FetchCandidates(ctx, limit)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: fetch candidates", name)
	}

	b.done.Store(0)
	b.total.Store(int64(len(candidates)))

	log.Info("batch starting",
		zap.Int("candidates", len(candidates)),
		zap.Int("limit", limit),
		zap.Int("concurrency", b.opts.Concurrency),
		zap.Bool("dry_run", b.opts.DryRun),
	)
	fmt.Fprintf(b.opts.Out, "%s: %d candidate(s), %d worker(s)%s\n",
		name, len(candidates), b.opts.Concurrency, dryRunSuffix(b.opts.DryRun))

	var ok, failed, skipped int
	onResult := func(done, total int, r ItemResult) {
		b.done.Store(int64(done))
		switch r.Outcome {
		case Succeeded:
			ok++
		case Skipped:
			skipped++
		default:
			failed++
			fmt.Fprintf(b.opts.Out, "[%d/%d] FAIL %s: %s\n", done, total, r.UnitID, r.Message)
		}
		if b.opts.ProgressEvery > 0 && (done%b.opts.ProgressEvery == 0 || done == total) {
			fmt.Fprintf(b.opts.Out, "[%d/%d] %s: %d ok, %d failed, %d skipped\n",
				done, total, name, ok, failed, skipped)
		}
	}

	result := RunAll(ctx, candidates, b.opts.Concurrency, func(ctx context.Context, u U) ItemResult {
		return Run(ctx, b.stage, u, b.opts.DryRun)
	}, WithOnResult(onResult))
	result.Stage = name
	result.DryRun = b.opts.DryRun

	log.Info("batch complete",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("elapsed", result.Elapsed().Round(time.Millisecond)),
	)
	PrintSummary(b.opts.Out, result)
	return result, nil
}

// PrintSummary writes the final human-readable counts for a batch.
func PrintSummary(w io.Writer, r *BatchResult) {
	fmt.Fprintf(w, "\n%s summary%s\n", r.Stage, dryRunSuffix(r.DryRun))
	fmt.Fprintf(w, "  total:        %d\n", r.Total)
	fmt.Fprintf(w, "  succeeded:    %d\n", r.Succeeded)
	fmt.Fprintf(w, "  failed:       %d\n", r.Failed)
	fmt.Fprintf(w, "  skipped:      %d\n", r.Skipped)
	fmt.Fprintf(w, "  success rate: %s\n", r.RateString())
	fmt.Fprintf(w, "  elapsed:      %s\n", r.Elapsed().Round(time.Millisecond))
}

func dryRunSuffix(dry bool) string {
	if dry {
		return " (dry run)"
	}
	return ""
}
