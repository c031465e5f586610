package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunAll_FailureIsolation(t *testing.T) {
	var ids []string
	for i := range 10 {
		ids = append(ids, fmt.Sprintf("u%02d", i))
	}
	s := &fakeStage{processErr: map[string]error{
		"u03": errors.New("parse error"),
		"u07": errors.New("timeout"),
	}}

	res := RunAll(context.Background(), testUnits(ids...), 3, func(ctx context.Context, u testUnit) ItemResult {
		return Run[testUnit, string](ctx, s, u, false)
	})

	assert.Equal(t, 10, res.Total)
	assert.Equal(t, 8, res.Succeeded)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 0, res.Skipped)
	assert.Len(t, res.Items, 10)
	assert.Equal(t, 8, s.persistedCount())
	assert.InDelta(t, 80.0, res.SuccessRate(), 0.001)

	var failed []string
	for _, it := range res.Failures() {
		failed = append(failed, it.UnitID)
	}
	assert.ElementsMatch(t, []string{"u03", "u07"}, failed)
}

func TestRunAll_BoundsConcurrency(t *testing.T) {
	var ids []string
	for i := range 12 {
		ids = append(ids, fmt.Sprintf("u%d", i))
	}
	s := &fakeStage{delay: 20 * time.Millisecond}

	res := RunAll(context.Background(), testUnits(ids...), 3, func(ctx context.Context, u testUnit) ItemResult {
		return Run[testUnit, string](ctx, s, u, false)
	})

	assert.Equal(t, 12, res.Succeeded)
	assert.LessOrEqual(t, s.maxFlight.Load(), int32(3))
	assert.GreaterOrEqual(t, s.maxFlight.Load(), int32(2))
}

func TestRunAll_ClampsConcurrency(t *testing.T) {
	s := &fakeStage{delay: 5 * time.Millisecond}
	res := RunAll(context.Background(), testUnits("a", "b", "c"), 0, func(ctx context.Context, u testUnit) ItemResult {
		return Run[testUnit, string](ctx, s, u, false)
	})

	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, int32(1), s.maxFlight.Load())
}

func TestRunAll_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeStage{}

	res := RunAll(ctx, testUnits("a", "b"), 2, func(ctx context.Context, u testUnit) ItemResult {
		return Run[testUnit, string](ctx, s, u, false)
	})

	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, int32(0), s.processed.Load())
	for _, it := range res.Items {
		assert.Equal(t, "canceled", it.Message)
	}
}

func TestRunAll_OnResultCountsUp(t *testing.T) {
	var seen []int
	RunAll(context.Background(), testUnits("a", "b", "c"), 2, func(_ context.Context, u testUnit) ItemResult {
		return ItemResult{UnitID: u.Key(), Outcome: Succeeded}
	}, WithOnResult(func(done, total int, _ ItemResult) {
		assert.Equal(t, 3, total)
		seen = append(seen, done)
	}))

	assert.Equal(t, []int{1, 2, 3}, seen)
}

func TestRunAll_Empty(t *testing.T) {
	res := RunAll(context.Background(), []testUnit{}, 4, func(context.Context, testUnit) ItemResult {
		t.Fatal("fn must not be called")
		return ItemResult{}
	})
	assert.Equal(t, 0, res.Total)
	assert.Zero(t, res.SuccessRate())
}
