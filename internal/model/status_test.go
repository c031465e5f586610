package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to FilingStatus
		want     bool
	}{
		{FilingPending, FilingAnalyzed, true},
		{FilingPending, FilingPublished, true},
		{FilingAnalyzed, FilingGenerated, true},
		{FilingGenerated, FilingPublished, true},
		{FilingAnalyzed, FilingAnalyzed, true},
		{FilingAnalyzed, FilingPending, false},
		{FilingPublished, FilingGenerated, false},
		{FilingPublished, FilingFailed, true},
		{FilingPending, FilingFailed, true},
		{FilingFailed, FilingFailed, true},
		{FilingFailed, FilingPending, false},
		{FilingFailed, FilingAnalyzed, false},
		{FilingStatus("bogus"), FilingAnalyzed, false},
		{FilingPending, FilingStatus("bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPredecessors(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []FilingStatus{FilingPending}, Predecessors(FilingPending))
	assert.Equal(t, []FilingStatus{FilingPending, FilingAnalyzed}, Predecessors(FilingAnalyzed))
	assert.Equal(t,
		[]FilingStatus{FilingPending, FilingAnalyzed, FilingGenerated, FilingPublished},
		Predecessors(FilingPublished))
	assert.Len(t, Predecessors(FilingFailed), 5)
}

// A walk that only applies allowed transitions never observes a rank
// decrease outside of failed.
func TestStatusMonotonicity(t *testing.T) {
	t.Parallel()

	attempts := []FilingStatus{
		FilingAnalyzed, FilingPending, FilingGenerated, FilingAnalyzed,
		FilingPublished, FilingPending, FilingFailed, FilingPending, FilingPublished,
	}

	current := FilingPending
	observed := []FilingStatus{current}
	for _, next := range attempts {
		if CanTransition(current, next) {
			current = next
			observed = append(observed, current)
		}
	}

	last := 0
	for _, s := range observed {
		if s == FilingFailed {
			continue
		}
		assert.GreaterOrEqual(t, s.Rank(), last, "status regressed to %s", s)
		last = s.Rank()
	}
	assert.Equal(t, FilingFailed, current)
}

func TestStatusStrings(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"pending", "failed"}, StatusStrings([]FilingStatus{FilingPending, FilingFailed}))
}
