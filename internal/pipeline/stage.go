// Package pipeline drives work units through stages with bounded
// concurrency, idempotent skips, per-unit failure isolation, and
// threshold-triggered phase overlap.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrAlreadyDone may be returned from Persist when a uniqueness constraint
// shows another worker finished the unit first. Run counts it as skipped.
var ErrAlreadyDone = eris.New("pipeline: unit already done")

// Unit is anything that moves through a stage. Key must be stable and
// unique within the stage.
type Unit interface {
	Key() string
}

// Stage is the per-stage processing contract. Process may call external
// services and rate limiters; Persist writes the result and advances the
// unit's status.
type Stage[U Unit, R any] interface {
	Name() string
	// FetchCandidates selects work not yet done, newest first. A
	// non-positive limit means no cap.
	FetchCandidates(ctx context.Context, limit int) ([]U, error)
	SkipIfDone(ctx context.Context, unit U) (bool, error)
	Process(ctx context.Context, unit U) (R, error)
	Persist(ctx context.Context, unit U, result R) error
}

// Validator is implemented by stages that can check a unit without side
// effects. Dry runs call it instead of Process and Persist.
type Validator[U Unit] interface {
	Validate(ctx context.Context, unit U) error
}

// FailureRecorder is implemented by stages that mark units as failed in
// the store. It is called after Process or Persist fails.
type FailureRecorder[U Unit] interface {
	RecordFailure(ctx context.Context, unit U, cause error) error
}

// Run executes one unit through stage. It never returns an error and
// never panics: every failure is logged and reported in the ItemResult.
func Run[U Unit, R any](ctx context.Context, stage Stage[U, R], unit U, dryRun bool) (res ItemResult) {
	start := time.Now()
	res = ItemResult{UnitID: unit.Key()}
	log := zap.L().With(zap.String("stage", stage.Name()), zap.String("unit", unit.Key()))

	fail := func(err error) {
		res.Outcome = Failed
		res.Message = truncate(err.Error(), maxMessageLen)
		log.Warn("unit failed", zap.Error(err))
		if rec, ok := stage.(FailureRecorder[U]); ok && !dryRun {
			if rErr := rec.RecordFailure(ctx, unit, err); rErr != nil {
				log.Warn("record failure", zap.Error(rErr))
			}
		}
	}

	defer func() {
		if p := recover(); p != nil {
			fail(fmt.Errorf("panic: %v", p))
		}
		res.Duration = time.Since(start)
	}()

	done, err := stage.SkipIfDone(ctx, unit)
	if err != nil {
		fail(eris.Wrap(err, "idempotency check"))
		return res
	}
	if done {
		res.Outcome = Skipped
		res.Message = "already done"
		log.Debug("unit skipped")
		return res
	}

	if dryRun {
		if v, ok := stage.(Validator[U]); ok {
			if err := v.Validate(ctx, unit); err != nil {
				fail(eris.Wrap(err, "validate"))
				return res
			}
		}
		res.Outcome = Succeeded
		res.Message = "dry run"
		return res
	}

	result, err := stage.Process(ctx, unit)
	if err != nil {
		fail(err)
		return res
	}

	if err := stage.Persist(ctx, unit, result); err != nil {
		if errors.Is(err, ErrAlreadyDone) {
			res.Outcome = Skipped
			res.Message = "already done"
			log.Info("unit completed concurrently elsewhere")
			return res
		}
		fail(eris.Wrap(err, "persist"))
		return res
	}

	res.Outcome = Succeeded
	log.Debug("unit succeeded", zap.Duration("elapsed", time.Since(start)))
	return res
}
