package pipeline

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Outcome classifies how one unit finished.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
	// Skipped means the unit was already done. It is neither a success
	// nor a failure.
	Skipped Outcome = "skipped"
)

// maxMessageLen bounds per-unit messages printed inline and kept in results.
const maxMessageLen = 100

// ItemResult is the outcome of running one unit through a stage.
type ItemResult struct {
	UnitID   string        `json:"unit_id"`
	Outcome  Outcome       `json:"outcome"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// BatchResult aggregates one stage invocation. Items are in completion
// order, not submission order. It is never persisted.
type BatchResult struct {
	Stage      string       `json:"stage"`
	DryRun     bool         `json:"dry_run"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Items      []ItemResult `json:"items,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

func (r *BatchResult) add(item ItemResult) {
	r.Items = append(r.Items, item)
	switch item.Outcome {
	case Succeeded:
		r.Succeeded++
	case Skipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// Attempted counts units that were actually processed. Skipped units are
// excluded.
func (r *BatchResult) Attempted() int { return r.Succeeded + r.Failed }

// SuccessRate returns succeeded/(succeeded+failed) as a percentage. It is 0
// when nothing was attempted.
func (r *BatchResult) SuccessRate() float64 {
	if r.Attempted() == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Attempted()) * 100
}

// RateString formats SuccessRate for summaries, or "n/a" when nothing was
// attempted.
func (r *BatchResult) RateString() string {
	if r.Attempted() == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", r.SuccessRate())
}

// Failures returns the failed items.
func (r *BatchResult) Failures() []ItemResult {
	var out []ItemResult
	for _, it := range r.Items {
		if it.Outcome == Failed {
			out = append(out, it)
		}
	}
	return out
}

// Elapsed returns the wall-clock duration of the batch.
func (r *BatchResult) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
