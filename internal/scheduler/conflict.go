package scheduler

import "time"

// Window is a half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the window has positive length.
func (w Window) Valid() bool {
	return w.End.After(w.Start)
}

// Truncate returns the window with both ends rounded down to a multiple of d,
// in UTC. Stores that keep whole seconds see the same window the caller
// validated.
func (w Window) Truncate(d time.Duration) Window {
	return Window{Start: w.Start.UTC().Truncate(d), End: w.End.UTC().Truncate(d)}
}

// Overlaps reports whether two windows share any instant. Windows that only
// touch at an endpoint do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start.Before(other.End) && other.Start.Before(w.End)
}

// Commitment is an activity a person already holds a booking for.
type Commitment struct {
	ActivityID string
	Title      string
	Window     Window
}

// FirstConflict returns the first overlapping commitment in the order
// supplied, if any. A commitment for the candidate activity itself is ignored.
func FirstConflict(existing []Commitment, candidate Commitment) (Commitment, bool) {
	for _, c := range existing {
		if c.ActivityID == candidate.ActivityID {
			continue
		}
		if c.Window.Overlaps(candidate.Window) {
			return c, true
		}
	}
	return Commitment{}, false
}
