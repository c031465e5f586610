// Package analyzer turns raw filing documents into structured analyses
// with Claude.
package analyzer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/ratelimit"
	"github.com/tenkay/filing-pipeline/internal/resilience"
	"github.com/tenkay/filing-pipeline/pkg/anthropic"
)

// ErrNoText is returned for documents with too little extractable text.
var ErrNoText = eris.New("analyzer: document has no extractable text")

const minTextChars = 500

// Input is one filing to analyze.
type Input struct {
	Filing   model.Filing
	Document []byte
	Type     model.AnalysisType
}

// Result is a completed analysis with its accounting.
type Result struct {
	Analysis model.Analysis
	Model    string
	Usage    anthropic.TokenUsage
	Duration time.Duration
}

// Analyzer produces an Analysis for a filing document.
type Analyzer interface {
	Analyze(ctx context.Context, in Input) (*Result, error)
}

// Options configures the Claude analyzer.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
	Retry       resilience.RetryConfig
}

// Claude is the production Analyzer.
type Claude struct {
	client  anthropic.Client
	limiter ratelimit.Limiter
	opts    Options
}

// NewClaude creates an analyzer. limiter is shared with every other
// caller of the LLM in this process.
func NewClaude(client anthropic.Client, limiter ratelimit.Limiter, opts Options) *Claude {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 4096
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.7
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	opts.Retry.ShouldRetry = func(err error) bool {
		return anthropic.IsRetryable(err) || resilience.IsTransient(err)
	}
	return &Claude{client: client, limiter: limiter, opts: opts}
}

// Analyze implements Analyzer. Throttling and server faults surface as
// *resilience.TransientError once retries are spent.
func (c *Claude) Analyze(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	log := zap.L().With(zap.String("accession", in.Filing.AccessionNumber), zap.String("type", string(in.Type)))

	text := PlainText(in.Document)
	if len(text) < minTextChars {
		return nil, eris.Wrapf(ErrNoText, "%d chars", len(text))
	}
	sections := ExtractSections(text)
	log.Debug("sections extracted", zap.Int("sections", len(sections)), zap.Int("text_chars", len(text)))

	temp := c.opts.Temperature
	req := anthropic.MessageRequest{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		System:      anthropic.CachedSystem(systemPrompt),
		Messages:    []anthropic.Message{{Role: "user", Content: BuildPrompt(in.Filing, sections, in.Type)}},
		Temperature: &temp,
	}

	retry := c.opts.Retry
	retry.OnRetry = resilience.RetryLogger("claude", "create_message")
	resp, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
		return c.client.CreateMessage(ctx, req)
	})
	if err != nil {
		if anthropic.IsRetryable(err) {
			return nil, resilience.NewTransientError(eris.Wrap(err, "analyzer: claude"), 0)
		}
		return nil, eris.Wrap(err, "analyzer: claude")
	}
	resp.Usage.LogCost(resp.Model, in.Filing.AccessionNumber)

	analysis, err := ParseResponse(resp.Text(), in.Type)
	if err != nil {
		if resp.StopReason == "max_tokens" {
			return nil, eris.Wrap(err, "analyzer: reply truncated at max_tokens")
		}
		return nil, err
	}

	log.Info("analysis complete",
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{Analysis: analysis, Model: resp.Model, Usage: resp.Usage, Duration: time.Since(start)}, nil
}
