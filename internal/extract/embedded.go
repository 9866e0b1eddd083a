// Package extract turns a recording's annotation representation, embedded or
// companion-spreadsheet, into categorized event sets.
package extract

import (
	"time"

	"github.com/hyeongsuk/RBDtector/internal/annot"
	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/edf"
)

// Result is the common output of both extractors.
type Result struct {
	HeaderStart time.Time
	Effective   time.Time // anchor for all output rows
	Sets        annot.Sets
	Warnings    []string
}

// Embedded reads the annotation list out of a recording whose variant embeds
// it and categorizes the events. anchor selects the effective start policy.
func Embedded(path string, anchor config.Anchor) (*Result, error) {
	r, err := edf.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	anns, err := r.Annotations()
	if err != nil {
		return nil, err
	}

	events := make([]annot.Event, 0, len(anns))
	for _, a := range anns {
		events = append(events, annot.Event{
			Onset:    seconds(a.Onset),
			Duration: seconds(a.Duration),
			Label:    a.Label,
		})
	}

	start := r.StartTime()
	sets := annot.Categorize(events, start)

	return &Result{
		HeaderStart: start,
		Effective:   effective(anchor, sets, start),
		Sets:        sets,
	}, nil
}

// effective applies the configured anchor policy.
func effective(anchor config.Anchor, sets annot.Sets, headerStart time.Time) time.Time {
	if anchor == config.AnchorFirstSleepStage {
		return annot.EffectiveStart(sets.SleepStages, headerStart)
	}
	return headerStart.Truncate(time.Second)
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
