package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchRunner_DryRunPersistsNothing(t *testing.T) {
	f := &fakeStage{candidates: testUnits("a", "b", "c", "d", "e")}
	s := newRecordingStage(f)
	var out bytes.Buffer

	r := NewBatchRunner[testUnit, string](s, BatchOptions{Concurrency: 2, DryRun: true, Out: &out})
	res, err := r.Run(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 5, res.Succeeded)
	assert.True(t, res.DryRun)
	assert.Equal(t, int32(0), f.processed.Load())
	assert.Zero(t, f.persistedCount())
	assert.Contains(t, out.String(), "(dry run)")
}

func TestBatchRunner_FetchErrorIsFatal(t *testing.T) {
	s := &fakeStage{fetchErr: errors.New("connection refused")}
	r := NewBatchRunner[testUnit, string](s, BatchOptions{Concurrency: 1})

	res, err := r.Run(context.Background(), 10)

	assert.Nil(t, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch candidates")
}

func TestBatchRunner_ReportsFailuresInline(t *testing.T) {
	s := &fakeStage{
		candidates: testUnits("a", "b", "c", "d"),
		done:       map[string]bool{"b": true},
		processErr: map[string]error{"c": errors.New("bad json")},
	}
	var out bytes.Buffer

	r := NewBatchRunner[testUnit, string](s, BatchOptions{Concurrency: 1, ProgressEvery: 2, Out: &out})
	res, err := r.Run(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, "fake", res.Stage)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)
	assert.Contains(t, out.String(), "FAIL c: bad json")
	assert.Contains(t, out.String(), "[4/4] fake")
	assert.Contains(t, out.String(), "success rate: 66.7%")
	assert.Equal(t, 4, r.Progress().Done)
	assert.Equal(t, 4, r.Progress().Total)
}

func TestBatchRunner_PassesLimit(t *testing.T) {
	s := &fakeStage{candidates: testUnits("a", "b", "c")}
	r := NewBatchRunner[testUnit, string](s, BatchOptions{Concurrency: 2})

	res, err := r.Run(context.Background(), 2)

	require.NoError(t, err)
	assert.Equal(t, 2, s.gotLimit)
	assert.Equal(t, 2, res.Total)
}

func TestBatchResult_SuccessRate(t *testing.T) {
	tests := []struct {
		name string
		r    BatchResult
		rate float64
		str  string
	}{
		{"empty", BatchResult{}, 0, "n/a"},
		{"all skipped", BatchResult{Total: 3, Skipped: 3}, 0, "n/a"},
		{"skips excluded", BatchResult{Total: 5, Succeeded: 3, Failed: 1, Skipped: 1}, 75, "75.0%"},
		{"all succeeded", BatchResult{Total: 2, Succeeded: 2}, 100, "100.0%"},
		{"all failed", BatchResult{Total: 2, Failed: 2}, 0, "0.0%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.rate, tt.r.SuccessRate(), 0.001)
			assert.Equal(t, tt.str, tt.r.RateString())
		})
	}
}

func TestBatchRunner_RerunOfDoneUnitsReportsNoRate(t *testing.T) {
	s := &fakeStage{
		candidates: testUnits("a", "b", "c"),
		done:       map[string]bool{"a": true, "b": true, "c": true},
	}
	var out bytes.Buffer

	res, err := NewBatchRunner[testUnit, string](s, BatchOptions{Concurrency: 2, Out: &out}).Run(context.Background(), 0)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Skipped)
	assert.Contains(t, out.String(), "success rate: n/a")
	assert.NotContains(t, out.String(), "0.0%")
}
