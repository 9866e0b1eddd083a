// Package annot holds the canonical annotation-event model and the writer
// for the three text files the downstream scoring engine consumes.
package annot

import (
	"strings"
	"time"
)

// Kind is the canonical event category.
type Kind int

const (
	KindSleepStage Kind = iota
	KindArousal
	KindFlowEvent
)

func (k Kind) String() string {
	switch k {
	case KindSleepStage:
		return "sleep-stage"
	case KindArousal:
		return "arousal"
	default:
		return "flow-event"
	}
}

// Event is one annotation relative to the recording start: onset offset,
// duration (may be zero), free-text label. Never mutated after creation.
type Event struct {
	Onset    time.Duration
	Duration time.Duration
	Label    string
}

// Categorized is an Event resolved against the header start time. Both the
// second-rounded and full-precision onset/end are retained: the scoring
// engine aligns periods on whole seconds while the output rows keep
// sub-second precision.
type Categorized struct {
	Kind      Kind
	Label     string
	OnsetFull time.Time
	EndFull   time.Time
	Onset     time.Time // OnsetFull truncated to seconds
	End       time.Time // EndFull truncated to seconds
}

// DurationSeconds returns the event length in seconds.
func (c Categorized) DurationSeconds() float64 {
	return c.EndFull.Sub(c.OnsetFull).Seconds()
}

// Sets holds the three categorized event lists in recording order.
type Sets struct {
	SleepStages []Categorized
	Arousals    []Categorized
	FlowEvents  []Categorized
}

// flowKeywords route an event to the flow category when none of the earlier
// rules matched.
var flowKeywords = []string{"Apnea", "Hyp", "Desat"}

// Categorize resolves events against the header start time and partitions
// them by label content. The rules are ordered and mutually exclusive:
// "Sleep stage" wins, then case-insensitive "arousal", then the respiratory
// keywords; anything else is discarded.
func Categorize(events []Event, headerStart time.Time) Sets {
	var sets Sets
	for _, ev := range events {
		onsetFull := headerStart.Add(ev.Onset)
		endFull := onsetFull.Add(ev.Duration)
		c := Categorized{
			Label:     ev.Label,
			OnsetFull: onsetFull,
			EndFull:   endFull,
			Onset:     onsetFull.Truncate(time.Second),
			End:       endFull.Truncate(time.Second),
		}

		switch {
		case strings.Contains(ev.Label, "Sleep stage"):
			c.Kind = KindSleepStage
			sets.SleepStages = append(sets.SleepStages, c)
		case strings.Contains(strings.ToLower(ev.Label), "arousal"):
			c.Kind = KindArousal
			sets.Arousals = append(sets.Arousals, c)
		case containsAny(ev.Label, flowKeywords):
			c.Kind = KindFlowEvent
			sets.FlowEvents = append(sets.FlowEvents, c)
		}
	}
	return sets
}

// EffectiveStart returns the anchor timestamp all output rows are relative
// to: the first sleep stage truncated to whole seconds, else the header start
// time. Sub-second residue in the anchor causes alignment gaps downstream
// that get mis-classified as artifact, so the truncation is load-bearing.
func EffectiveStart(stages []Categorized, headerStart time.Time) time.Time {
	if len(stages) > 0 {
		return stages[0].OnsetFull.Truncate(time.Second)
	}
	return headerStart.Truncate(time.Second)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
