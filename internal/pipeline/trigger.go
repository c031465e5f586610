package pipeline

import "sync"

// ThresholdTrigger fires exactly once, on the first observation at or
// above its threshold.
type ThresholdTrigger struct {
	mu        sync.Mutex
	threshold float64
	fired     bool
}

// NewThresholdTrigger creates a trigger for a fraction in [0,1].
func NewThresholdTrigger(threshold float64) *ThresholdTrigger {
	return &ThresholdTrigger{threshold: threshold}
}

// Observe records a progress fraction and reports whether this call fired.
func (t *ThresholdTrigger) Observe(fraction float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || fraction < t.threshold {
		return false
	}
	t.fired = true
	return true
}

// Fired reports whether the trigger has fired.
func (t *ThresholdTrigger) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
