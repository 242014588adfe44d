// Package timecodec converts between absolute instants and the wall-clock
// text shown to chat users in a single civil calendar.
package timecodec

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the wall-clock format accepted and produced by the codec.
const Layout = "2006-01-02 15:04"

const clockLayout = "15:04"

// ErrUnparseable indicates text that does not match Layout.
var ErrUnparseable = errors.New("timecodec: unparseable time")

// Codec renders and parses instants in a fixed location.
type Codec struct {
	location *time.Location
}

// New constructs a Codec for the provided location. If loc is nil, UTC is used.
func New(loc *time.Location) *Codec {
	if loc == nil {
		loc = time.UTC
	}
	return &Codec{location: loc}
}

// Load resolves an IANA zone name into a Codec.
func Load(name string) (*Codec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return New(time.UTC), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("timecodec: load location %q: %w", name, err)
	}
	return New(loc), nil
}

// Location reports the civil calendar used by the codec.
func (c *Codec) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}

// Format renders t as "YYYY-MM-DD HH:MM".
func (c *Codec) Format(t time.Time) string {
	return t.In(c.Location()).Format(Layout)
}

// FormatWindow renders a window as "YYYY-MM-DD HH:MM-HH:MM". The end is shown
// as clock time only, even when it falls on a later day.
func (c *Codec) FormatWindow(start, end time.Time) string {
	return c.Format(start) + "-" + end.In(c.Location()).Format(clockLayout)
}

// Parse reads "YYYY-MM-DD HH:MM" in the codec's location.
func (c *Codec) Parse(text string) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, strings.TrimSpace(text), c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, text)
	}
	return t, nil
}

// ToEpoch returns the instant as whole epoch seconds.
func ToEpoch(t time.Time) int64 {
	return t.Unix()
}

// FromEpoch returns the UTC instant for epoch seconds.
func FromEpoch(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
