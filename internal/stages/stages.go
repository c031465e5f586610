// Package stages implements the four pipeline stages over the store and
// the external services: fetch pulls filings from EDGAR, analyze runs them
// through the LLM, generate renders content, publish emails subscribers.
package stages

import (
	"context"
	"errors"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/tenkay/filing-pipeline/internal/model"
	"github.com/tenkay/filing-pipeline/internal/resilience"
	"github.com/tenkay/filing-pipeline/internal/store"
)

// Stage names as they appear in logs and summaries.
const (
	NameFetch    = "fetch"
	NameAnalyze  = "analyze"
	NameGenerate = "generate"
	NamePublish  = "publish"
)

// errMsgLen bounds the error message stored on a failed filing.
const errMsgLen = 500

// markFailed moves a filing to failed unless cause may clear on its own.
// Transient causes leave the filing where it is so the next run retries it.
func markFailed(ctx context.Context, st store.Store, stage, filingID string, cause error) error {
	if resilience.IsTransient(cause) || errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		zap.L().Debug("transient failure, filing left for retry",
			zap.String("stage", stage), zap.String("filing_id", filingID), zap.Error(cause))
		return nil
	}
	return st.AdvanceFiling(ctx, filingID, model.FilingFailed, failureMessage(stage, cause))
}

// failureMessage prefixes cause with the stage and cuts it to at most
// errMsgLen bytes without splitting a rune. Postgres rejects invalid UTF-8.
func failureMessage(stage string, cause error) string {
	msg := stage + ": " + cause.Error()
	if len(msg) <= errMsgLen {
		return msg
	}
	n := errMsgLen
	for n > 0 && !utf8.RuneStart(msg[n]) {
		n--
	}
	return msg[:n]
}
