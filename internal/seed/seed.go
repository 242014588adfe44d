// Package seed loads catalog activities for an empty database, either from a
// YAML file or from the built-in demo set.
package seed

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/carebook/internal/application"
	"github.com/example/carebook/internal/timecodec"
)

// File is the on-disk seed layout.
//
//	activities:
//	  - title: Music Therapy
//	    description: Group session
//	    start: "2025-06-02 10:00"
//	    end: "2025-06-02 11:00"
//	    capacity: 10
type File struct {
	Activities []Entry `yaml:"activities"`
}

// Entry is one activity in a seed file. Times are wall-clock in the codec's
// time zone.
type Entry struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	Capacity    int    `yaml:"capacity"`
}

// LoadFile reads and parses a seed file.
func LoadFile(path string, codec *timecodec.Codec) ([]application.ActivityInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data, codec)
}

// Parse decodes seed YAML into activity inputs. Window and capacity rules are
// left to the catalog.
func Parse(data []byte, codec *timecodec.Codec) ([]application.ActivityInput, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	inputs := make([]application.ActivityInput, 0, len(file.Activities))
	for i, entry := range file.Activities {
		start, err := codec.Parse(entry.Start)
		if err != nil {
			return nil, fmt.Errorf("activity %d (%q): start: %w", i, entry.Title, err)
		}
		end, err := codec.Parse(entry.End)
		if err != nil {
			return nil, fmt.Errorf("activity %d (%q): end: %w", i, entry.Title, err)
		}
		inputs = append(inputs, application.ActivityInput{
			Title:       entry.Title,
			Description: entry.Description,
			Start:       start,
			End:         end,
			Capacity:    entry.Capacity,
		})
	}
	return inputs, nil
}

// Demo returns the three demo activities anchored one hour after now. Physio
// Session overlaps Music Therapy; Art Jam overlaps neither.
func Demo(now time.Time) []application.ActivityInput {
	base := now.UTC().Truncate(time.Second).Add(time.Hour)
	return []application.ActivityInput{
		{Title: "Music Therapy", Start: base, End: base.Add(time.Hour), Capacity: 10},
		{Title: "Art Jam", Start: base.Add(90 * time.Minute), End: base.Add(2 * time.Hour), Capacity: 8},
		{Title: "Physio Session", Start: base.Add(30 * time.Minute), End: base.Add(90 * time.Minute), Capacity: 5},
	}
}
