package aggregate

import (
	"fmt"
	"maps"
	"slices"
)

type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	default:
		return "pending"
	}
}

// EntryID identifies one manifest entry within a run. Index keeps entries
// with identical paths distinct.
type EntryID struct {
	Index int
	Path  string
}

func (id EntryID) String() string {
	return fmt.Sprintf("#%d %s", id.Index, id.Path)
}

// Outcome is the terminal state of a single entry.
type Outcome struct {
	ID          EntryID
	Status      Status
	Destination string
	Reasons     []error
}

// Result holds the succeeded entries (mapped to the file they were written
// to) and the failed entries (mapped to one reason per mirror tried).
// A Result is never modified after construction.
type Result struct {
	Succeeded map[EntryID]string
	Failed    map[EntryID][]error
}

func Empty() Result {
	return Result{
		Succeeded: map[EntryID]string{},
		Failed:    map[EntryID][]error{},
	}
}

func FromOutcome(o Outcome) Result {
	r := Empty()
	switch o.Status {
	case StatusSuccess:
		r.Succeeded[o.ID] = o.Destination
	default:
		r.Failed[o.ID] = slices.Clone(o.Reasons)
	}
	return r
}

// Combine returns the union of a and b. Entry IDs are unique per run, so the
// operation is associative and commutative, with Empty as identity.
func Combine(a, b Result) Result {
	out := Result{
		Succeeded: make(map[EntryID]string, len(a.Succeeded)+len(b.Succeeded)),
		Failed:    make(map[EntryID][]error, len(a.Failed)+len(b.Failed)),
	}
	maps.Copy(out.Succeeded, a.Succeeded)
	maps.Copy(out.Succeeded, b.Succeeded)
	maps.Copy(out.Failed, a.Failed)
	maps.Copy(out.Failed, b.Failed)
	return out
}

// Reduce folds partial results pairwise, level by level.
func Reduce(parts []Result) Result {
	if len(parts) == 0 {
		return Empty()
	}
	level := parts
	for len(level) > 1 {
		next := make([]Result, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, Combine(level[i], level[i+1]))
		}
		level = next
	}
	return Combine(Empty(), level[0])
}

// ReduceOutcomes lifts each outcome and reduces them.
func ReduceOutcomes(outcomes []Outcome) Result {
	parts := make([]Result, len(outcomes))
	for i, o := range outcomes {
		parts[i] = FromOutcome(o)
	}
	return Reduce(parts)
}

func (r Result) Len() int {
	return len(r.Succeeded) + len(r.Failed)
}

func (r Result) HasFailures() bool {
	return len(r.Failed) > 0
}

// SucceededIDs returns the succeeded entries in manifest order.
func (r Result) SucceededIDs() []EntryID {
	return sortedIDs(slices.Collect(maps.Keys(r.Succeeded)))
}

// FailedIDs returns the failed entries in manifest order.
func (r Result) FailedIDs() []EntryID {
	return sortedIDs(slices.Collect(maps.Keys(r.Failed)))
}

func sortedIDs(ids []EntryID) []EntryID {
	slices.SortFunc(ids, func(a, b EntryID) int {
		return a.Index - b.Index
	})
	return ids
}
