package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Dependency names used across the pipeline.
const (
	SEC   = "sec"
	LLM   = "llm"
	Email = "email"
)

// Spec describes how one dependency is paced. MinInterval wins over
// PerSecond when both are set.
type Spec struct {
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
	PerSecond   float64       `yaml:"per_second" mapstructure:"per_second"`
	Burst       int           `yaml:"burst" mapstructure:"burst"`
}

// Build returns the limiter described by s.
func (s Spec) Build() Limiter {
	switch {
	case s.MinInterval > 0:
		return NewInterval(s.MinInterval)
	case s.PerSecond > 0:
		return NewBucket(s.PerSecond, s.Burst)
	default:
		return Unlimited{}
	}
}

// Registry hands out one shared limiter per dependency name. Limiters are
// created lazily from the configured specs; unknown names are unlimited.
type Registry struct {
	mu       sync.Mutex
	specs    map[string]Spec
	limiters map[string]Limiter
}

// NewRegistry creates a registry from per-dependency specs.
func NewRegistry(specs map[string]Spec) *Registry {
	cp := make(map[string]Spec, len(specs))
	for k, v := range specs {
		cp[k] = v
	}
	return &Registry{specs: cp, limiters: make(map[string]Limiter)}
}

// For returns the limiter for the named dependency, creating it on first
// use. Every caller receives the same instance.
func (r *Registry) For(name string) Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.limiters[name]; ok {
		return l
	}
	spec, ok := r.specs[name]
	if !ok {
		zap.L().Debug("ratelimit: no spec for dependency, unlimited", zap.String("dependency", name))
	}
	l := spec.Build()
	r.limiters[name] = l
	return l
}
