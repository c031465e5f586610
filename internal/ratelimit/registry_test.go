package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_SharesInstances(t *testing.T) {
	t.Parallel()

	r := NewRegistry(map[string]Spec{
		SEC: {MinInterval: 100 * time.Millisecond},
		LLM: {PerSecond: 2, Burst: 4},
	})

	a := r.For(SEC)
	b := r.For(SEC)
	assert.Same(t, a, b)

	iv, ok := a.(*Interval)
	assert.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, iv.MinInterval())

	_, ok = r.For(LLM).(*Bucket)
	assert.True(t, ok)

	assert.IsType(t, Unlimited{}, r.For("market_data"))
}

func TestSpecBuild_IntervalWins(t *testing.T) {
	t.Parallel()

	l := Spec{MinInterval: time.Second, PerSecond: 50}.Build()
	assert.IsType(t, &Interval{}, l)
}
