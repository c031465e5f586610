package model

// FilingStatus is the lifecycle state of a filing. Forward transitions are
// monotonic; failed is reachable from any state and only an explicit reset
// leaves it.
type FilingStatus string

const (
	FilingPending   FilingStatus = "pending"
	FilingAnalyzed  FilingStatus = "analyzed"
	FilingGenerated FilingStatus = "generated"
	FilingPublished FilingStatus = "published"
	FilingFailed    FilingStatus = "failed"
)

// forward ordering; failed is deliberately absent.
var filingRank = map[FilingStatus]int{
	FilingPending:   1,
	FilingAnalyzed:  2,
	FilingGenerated: 3,
	FilingPublished: 4,
}

// Valid reports whether s is a known status.
func (s FilingStatus) Valid() bool {
	_, ok := filingRank[s]
	return ok || s == FilingFailed
}

// Rank returns the position of s in the forward ordering, or 0 for failed
// and unknown values.
func (s FilingStatus) Rank() int {
	return filingRank[s]
}

// CanTransition reports whether a filing in state from may move to state to.
// Re-applying the current state is allowed so a retried persist is harmless.
func CanTransition(from, to FilingStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if to == FilingFailed {
		return true
	}
	if from == FilingFailed {
		return false
	}
	return filingRank[to] >= filingRank[from]
}

// Predecessors lists every status from which to is reachable, including to
// itself. Stores use it to express a transition as a conditional update.
func Predecessors(to FilingStatus) []FilingStatus {
	all := []FilingStatus{FilingPending, FilingAnalyzed, FilingGenerated, FilingPublished, FilingFailed}
	var out []FilingStatus
	for _, from := range all {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// StatusStrings converts statuses to plain strings for query arguments.
func StatusStrings(ss []FilingStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}
