package domain

import "time"

// Run identifies one invocation of the map stage. The ID travels with every
// published record and report.
type Run struct {
	ID        string
	Pair      YearPair
	StartedAt time.Time
}

// NewRun stamps a run with the current clock time.
func NewRun(id string, pair YearPair) Run {
	return Run{ID: id, Pair: pair, StartedAt: clock.Now().UTC()}
}
