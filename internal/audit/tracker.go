// Package audit collects per-record outcomes of a resolution run: review
// flags for ambiguous matches, per-record failures, and run counters. One
// record's failure never aborts the batch; everything lands here instead.
package audit

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReviewFlag marks a record whose fuzzy decision tied at the top score and
// was tie-broken deterministically. Flagged for manual review, not dropped.
type ReviewFlag struct {
	SourceRef string
	RawName   string
	ChosenID  string
	Runners   []string
	Score     float64
	FlaggedAt time.Time
}

// RecordFailure is a per-record error collected during a run.
type RecordFailure struct {
	SourceRef string
	RawName   string
	Reason    string
	FailedAt  time.Time
}

// Summary is the final accounting of one run.
type Summary struct {
	RunID      string
	Processed  int
	Resolved   int
	Created    int
	Unresolved int
	Flags      []ReviewFlag
	Failures   []RecordFailure
	StartedAt  time.Time
	FinishedAt time.Time
}

// Tracker accumulates run state. Safe for concurrent use by the parallel
// block workers.
type Tracker struct {
	mu         sync.Mutex
	runID      string
	processed  int
	resolved   int
	created    int
	unresolved int
	flags      []ReviewFlag
	failures   []RecordFailure
	startedAt  time.Time
}

// NewTracker starts tracking a run under a fresh run id.
func NewTracker() *Tracker {
	return &Tracker{
		runID:     uuid.NewString(),
		startedAt: time.Now().UTC(),
	}
}

// RunID returns the run identifier.
func (t *Tracker) RunID() string { return t.runID }

// Resolved counts a record that landed on a master identity. created marks
// step-3 creations.
func (t *Tracker) Resolved(created bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	t.resolved++
	if created {
		t.created++
	}
}

// Unresolved counts a record with no alias or fuzzy hit. A normal terminal
// state, not an error.
func (t *Tracker) Unresolved() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	t.unresolved++
}

// Flag records an ambiguous-match review flag.
func (t *Tracker) Flag(flag ReviewFlag) {
	t.mu.Lock()
	defer t.mu.Unlock()
	flag.FlaggedAt = time.Now().UTC()
	t.flags = append(t.flags, flag)
}

// Fail records a per-record failure.
func (t *Tracker) Fail(sourceRef, rawName, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	t.failures = append(t.failures, RecordFailure{
		SourceRef: sourceRef,
		RawName:   rawName,
		Reason:    reason,
		FailedAt:  time.Now().UTC(),
	})
}

// Summary closes out the run and returns the accumulated counts.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Summary{
		RunID:      t.runID,
		Processed:  t.processed,
		Resolved:   t.resolved,
		Created:    t.created,
		Unresolved: t.unresolved,
		Flags:      append([]ReviewFlag(nil), t.flags...),
		Failures:   append([]RecordFailure(nil), t.failures...),
		StartedAt:  t.startedAt,
		FinishedAt: time.Now().UTC(),
	}
}
