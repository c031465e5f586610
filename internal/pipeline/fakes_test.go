package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type testUnit struct{ id string }

func (u testUnit) Key() string { return u.id }

func testUnits(ids ...string) []testUnit {
	out := make([]testUnit, len(ids))
	for i, id := range ids {
		out[i] = testUnit{id: id}
	}
	return out
}

// fakeStage is an in-memory Stage with switchable behavior per unit.
type fakeStage struct {
	candidates []testUnit
	fetchErr   error
	done       map[string]bool
	processErr map[string]error
	persistErr map[string]error
	panicOn    string
	delay      time.Duration

	gotLimit  int
	processed atomic.Int32
	inFlight  atomic.Int32
	maxFlight atomic.Int32

	mu        sync.Mutex
	persisted []string
}

func (s *fakeStage) Name() string { return "fake" }

func (s *fakeStage) FetchCandidates(_ context.Context, limit int) ([]testUnit, error) {
	s.gotLimit = limit
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	if limit > 0 && limit < len(s.candidates) {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

func (s *fakeStage) SkipIfDone(_ context.Context, u testUnit) (bool, error) {
	return s.done[u.id], nil
}

func (s *fakeStage) Process(_ context.Context, u testUnit) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxFlight.Load()
		if n <= m || s.maxFlight.CompareAndSwap(m, n) {
			break
		}
	}
	s.processed.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if u.id == s.panicOn {
		panic("boom")
	}
	if err := s.processErr[u.id]; err != nil {
		return "", err
	}
	return "result-" + u.id, nil
}

func (s *fakeStage) Persist(_ context.Context, u testUnit, _ string) error {
	if err := s.persistErr[u.id]; err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = append(s.persisted, u.id)
	return nil
}

func (s *fakeStage) persistedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.persisted)
}

// recordingStage adds FailureRecorder and Validator to fakeStage.
type recordingStage struct {
	*fakeStage
	invalid map[string]bool

	mu       sync.Mutex
	failures map[string]error
}

func newRecordingStage(f *fakeStage) *recordingStage {
	return &recordingStage{fakeStage: f, failures: map[string]error{}}
}

func (s *recordingStage) RecordFailure(_ context.Context, u testUnit, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[u.id] = cause
	return nil
}

func (s *recordingStage) Validate(_ context.Context, u testUnit) error {
	if s.invalid[u.id] {
		return errors.New("missing document url")
	}
	return nil
}

func (s *recordingStage) failureCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.failures)
}
