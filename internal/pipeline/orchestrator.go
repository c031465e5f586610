package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
)

// PhaseState is the orchestrator's view of one phase.
type PhaseState string

const (
	PhaseNotStarted    PhaseState = "not_started"
	PhaseRunning       PhaseState = "running"
	PhaseTriggeredNext PhaseState = "triggered_next"
	PhaseCompleted     PhaseState = "completed"
	PhaseFailed        PhaseState = "failed"
)

// ProgressFunc reports how far a phase has advanced its eligible units.
type ProgressFunc func(ctx context.Context) (model.Progress, error)

// Phase is one stage batch under orchestration.
type Phase struct {
	Name string
	Run  func(ctx context.Context) (*BatchResult, error)
	// Progress is polled while the phase runs. Optional.
	Progress ProgressFunc
	// TriggerAt launches the next phase once Progress reaches this
	// fraction. Zero means the next phase waits for this one to finish.
	TriggerAt float64
}

// OrchestratorOptions configures polling and status output.
type OrchestratorOptions struct {
	PollInterval   time.Duration
	StatusInterval time.Duration
	Out            io.Writer
	// OnStateChange observes every phase state transition. Optional.
	OnStateChange func(phase string, state PhaseState)
}

// PhaseReport is the final record of one phase.
type PhaseReport struct {
	Name       string       `json:"name"`
	State      PhaseState   `json:"state"`
	Result     *BatchResult `json:"result,omitempty"`
	Err        error        `json:"-"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Report aggregates all phases of an orchestrated run.
type Report struct {
	Phases  []PhaseReport `json:"phases"`
	Elapsed time.Duration `json:"elapsed"`
}

// Err joins the fatal errors of every failed phase.
func (r *Report) Err() error {
	var errs []error
	for _, p := range r.Phases {
		if p.Err != nil {
			errs = append(errs, eris.Wrapf(p.Err, "phase %s", p.Name))
		}
	}
	return errors.Join(errs...)
}

// Orchestrator runs phases in order on goroutines, starting each phase
// either when its predecessor crosses a progress threshold or when the
// predecessor finishes, whichever comes first. Phases share nothing but
// the store.
type Orchestrator struct {
	phases []Phase
	opts   OrchestratorOptions
}

// NewOrchestrator creates an orchestrator over phases.
func NewOrchestrator(phases []Phase, opts OrchestratorOptions) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 100 * time.Millisecond
	}
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = 30 * time.Second
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Orchestrator{phases: phases, opts: opts}
}

type phaseDone struct {
	idx    int
	result *BatchResult
	err    error
}

// Run blocks until every launched phase has returned. Phases not yet
// launched when ctx ends stay not_started. The returned error is
// Report.Err.
func (o *Orchestrator) Run(ctx context.Context) (*Report, error) {
	n := len(o.phases)
	report := &Report{Phases: make([]PhaseReport, n)}
	for i, p := range o.phases {
		report.Phases[i] = PhaseReport{Name: p.Name, State: PhaseNotStarted}
	}
	if n == 0 {
		return report, nil
	}

	log := zap.L().With(zap.String("component", "orchestrator"))
	start := time.Now()
	done := make(chan phaseDone, n)

	triggers := make([]*ThresholdTrigger, n)
	for i, p := range o.phases {
		if p.TriggerAt > 0 && p.Progress != nil {
			triggers[i] = NewThresholdTrigger(p.TriggerAt)
		}
	}

	next, running := 0, 0
	launch := func() {
		i := next
		next++
		running++
		p := o.phases[i]
		report.Phases[i].StartedAt = time.Now()
		o.setState(report, i, PhaseRunning)
		log.Info("phase starting", zap.String("phase", p.Name))
		fmt.Fprintf(o.opts.Out, "==> %s started\n", p.Name)
		go func() {
			res, err := p.Run(ctx)
			done <- phaseDone{idx: i, result: res, err: err}
		}()
	}
	launch()

	poll := time.NewTicker(o.opts.PollInterval)
	defer poll.Stop()
	status := time.NewTicker(o.opts.StatusInterval)
	defer status.Stop()
	ctxDone := ctx.Done()

	for running > 0 {
		select {
		case d := <-done:
			running--
			pr := &report.Phases[d.idx]
			pr.Result, pr.Err, pr.FinishedAt = d.result, d.err, time.Now()
			if d.err != nil {
				o.setState(report, d.idx, PhaseFailed)
				log.Error("phase failed", zap.String("phase", pr.Name), zap.Error(d.err))
				fmt.Fprintf(o.opts.Out, "==> %s failed: %v\n", pr.Name, d.err)
			} else {
				o.setState(report, d.idx, PhaseCompleted)
				log.Info("phase complete", zap.String("phase", pr.Name))
				fmt.Fprintf(o.opts.Out, "==> %s completed\n", pr.Name)
			}
			// The newest phase finished before its trigger fired.
			if d.idx == next-1 && next < n && ctx.Err() == nil {
				launch()
			}

		case <-poll.C:
			i := next - 1
			if next >= n || triggers[i] == nil || report.Phases[i].State != PhaseRunning {
				continue
			}
			p, err := o.phases[i].Progress(ctx)
			if err != nil {
				log.Warn("progress poll failed", zap.String("phase", o.phases[i].Name), zap.Error(err))
				continue
			}
			if triggers[i].Observe(p.Fraction()) && ctx.Err() == nil {
				log.Info("threshold crossed",
					zap.String("phase", o.phases[i].Name),
					zap.Float64("percent", p.Percent()),
					zap.Float64("threshold", o.phases[i].TriggerAt*100),
				)
				o.setState(report, i, PhaseTriggeredNext)
				launch()
			}

		case <-status.C:
			o.printStatus(ctx, report, time.Since(start))

		case <-ctxDone:
			ctxDone = nil
			log.Warn("orchestrator canceled, waiting for running phases", zap.Int("running", running))
		}
	}

	report.Elapsed = time.Since(start)
	o.printFinal(report)
	return report, report.Err()
}

func (o *Orchestrator) setState(r *Report, i int, s PhaseState) {
	r.Phases[i].State = s
	if o.opts.OnStateChange != nil {
		o.opts.OnStateChange(r.Phases[i].Name, s)
	}
}

func (o *Orchestrator) printStatus(ctx context.Context, r *Report, elapsed time.Duration) {
	parts := make([]string, 0, len(r.Phases))
	for i, pr := range r.Phases {
		part := fmt.Sprintf("%s: %s", pr.Name, pr.State)
		active := pr.State == PhaseRunning || pr.State == PhaseTriggeredNext
		if active && o.phases[i].Progress != nil {
			if p, err := o.phases[i].Progress(ctx); err == nil {
				part += fmt.Sprintf(" %.1f%% (%d/%d)", p.Percent(), p.Done, p.Total)
			}
		}
		parts = append(parts, part)
	}
	line := strings.Join(parts, " | ")
	zap.L().Info("orchestrator status", zap.String("status", line), zap.Duration("elapsed", elapsed))
	fmt.Fprintf(o.opts.Out, "[%s] %s\n", elapsed.Round(time.Second), line)
}

func (o *Orchestrator) printFinal(r *Report) {
	fmt.Fprintf(o.opts.Out, "\norchestration finished in %s\n", r.Elapsed.Round(time.Millisecond))
	for _, pr := range r.Phases {
		if pr.Result == nil {
			fmt.Fprintf(o.opts.Out, "  %-9s %s\n", pr.Name, pr.State)
			continue
		}
		res := pr.Result
		fmt.Fprintf(o.opts.Out, "  %-9s %s: %d total, %d succeeded, %d failed, %d skipped (%s)\n",
			pr.Name, pr.State, res.Total, res.Succeeded, res.Failed, res.Skipped, res.RateString())
	}
}
