package scheduler

import (
	"testing"
	"time"
)

func window(startHour, startMin, endHour, endMin int) Window {
	day := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	return Window{
		Start: day.Add(time.Duration(startHour)*time.Hour + time.Duration(startMin)*time.Minute),
		End:   day.Add(time.Duration(endHour)*time.Hour + time.Duration(endMin)*time.Minute),
	}
}

func TestWindow_Overlaps(t *testing.T) {
	cases := []struct {
		name string
		a, b Window
		want bool
	}{
		{"partial overlap", window(10, 0, 11, 0), window(10, 30, 11, 30), true},
		{"containment", window(10, 0, 12, 0), window(10, 30, 11, 0), true},
		{"identical", window(10, 0, 11, 0), window(10, 0, 11, 0), true},
		{"touching end to start", window(10, 0, 11, 0), window(11, 0, 12, 0), false},
		{"touching start to end", window(11, 0, 12, 0), window(10, 0, 11, 0), false},
		{"disjoint", window(8, 0, 9, 0), window(10, 0, 11, 0), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("a.Overlaps(b) = %v, want %v", got, tc.want)
			}
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("overlap must be symmetric: b.Overlaps(a) = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWindow_Valid(t *testing.T) {
	if !window(10, 0, 11, 0).Valid() {
		t.Fatalf("expected a one hour window to be valid")
	}
	if window(10, 0, 10, 0).Valid() {
		t.Fatalf("expected an empty window to be invalid")
	}
	if window(11, 0, 10, 0).Valid() {
		t.Fatalf("expected a reversed window to be invalid")
	}
}

func TestWindow_Truncate(t *testing.T) {
	w := window(10, 0, 10, 0)
	w.End = w.End.Add(500 * time.Millisecond)
	if !w.Valid() {
		t.Fatalf("sub-second window should be valid before truncation")
	}
	if w.Truncate(time.Second).Valid() {
		t.Fatalf("sub-second window should collapse once truncated to seconds")
	}

	local := time.FixedZone("SGT", 8*3600)
	w = Window{
		Start: time.Date(2024, time.March, 1, 18, 0, 0, 700_000_000, local),
		End:   time.Date(2024, time.March, 1, 19, 0, 0, 300_000_000, local),
	}
	got := w.Truncate(time.Second)
	if got.Start.Location() != time.UTC || got.Start.Nanosecond() != 0 || got.End.Nanosecond() != 0 {
		t.Fatalf("expected whole UTC seconds, got %v-%v", got.Start, got.End)
	}
	if got.Start.Hour() != 10 {
		t.Fatalf("expected 10:00 UTC, got %v", got.Start)
	}
}

func TestFirstConflict(t *testing.T) {
	existing := []Commitment{
		{ActivityID: "a-1", Title: "Art Jam", Window: window(10, 0, 11, 0)},
		{ActivityID: "a-2", Title: "Physio Session", Window: window(10, 45, 12, 0)},
	}

	got, ok := FirstConflict(existing, Commitment{ActivityID: "b", Window: window(10, 30, 11, 30)})
	if !ok {
		t.Fatalf("expected a conflict")
	}
	if got.Title != "Art Jam" {
		t.Fatalf("expected first conflict to be Art Jam, got %q", got.Title)
	}

	if _, ok := FirstConflict(existing, Commitment{ActivityID: "c", Window: window(12, 0, 12, 30)}); ok {
		t.Fatalf("expected no conflict at shared boundary")
	}

	if _, ok := FirstConflict(existing, Commitment{ActivityID: "a-1", Window: window(9, 30, 10, 30)}); ok {
		t.Fatalf("expected the candidate activity itself to be ignored")
	}
}
