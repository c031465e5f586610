package pipeline

import "context"

// Guard reports whether a unit already has a terminal result. It is a
// point lookup used before expensive work, not a lock: two workers may
// both pass it, and the store's uniqueness constraints decide which write
// wins.
type Guard interface {
	AlreadyDone(ctx context.Context, key string) (bool, error)
}

// GuardFunc adapts a lookup function to Guard.
type GuardFunc func(ctx context.Context, key string) (bool, error)

// AlreadyDone implements Guard.
func (f GuardFunc) AlreadyDone(ctx context.Context, key string) (bool, error) {
	return f(ctx, key)
}
