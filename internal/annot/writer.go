package annot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyeongsuk/RBDtector/internal/config"
)

// Output file suffixes, fixed by the scoring engine.
const (
	SleepProfileSuffix = " Sleep profile.txt"
	ArousalsSuffix     = " Classification Arousals.txt"
	FlowEventsSuffix   = " Flow Events.txt"
)

// Style controls the per-extractor output conventions. The two historical
// paths disagree on duration formatting and the flow-file signal ID; the
// scoring engine's tolerance for either is unverified, so both are kept.
type Style struct {
	Durations    config.DurationStyle
	FlowSignalID string
}

// EmbeddedStyle is the convention of the embedded-annotation path.
func EmbeddedStyle() Style {
	return Style{Durations: config.DurationWholeSeconds, FlowSignalID: "FlowEvents"}
}

// SpreadsheetStyle is the convention of the companion-spreadsheet path.
func SpreadsheetStyle() Style {
	return Style{Durations: config.DurationTwoDecimals, FlowSignalID: "Flow Events"}
}

// WriteAll writes the three event files next to the recording, overwriting
// any existing file of the same name. start is the EffectiveStartTime anchor
// printed in every header block. Returns the three paths in the order sleep
// profile, arousals, flow events.
func WriteAll(dir, base string, start time.Time, sets Sets, style Style) ([]string, error) {
	profile := filepath.Join(dir, base+SleepProfileSuffix)
	if err := writeSleepProfile(profile, start, sets.SleepStages); err != nil {
		return nil, err
	}

	arousals := filepath.Join(dir, base+ArousalsSuffix)
	if err := writeImpulseFile(arousals, "Arousals", start, sets.Arousals, style); err != nil {
		return nil, err
	}

	flow := filepath.Join(dir, base+FlowEventsSuffix)
	if err := writeImpulseFile(flow, style.FlowSignalID, start, sets.FlowEvents, style); err != nil {
		return nil, err
	}

	return []string{profile, arousals, flow}, nil
}

func writeSleepProfile(path string, start time.Time, stages []Categorized) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Start Time: %s\n", start.Format("02.01.2006 15:04:05"))
	sb.WriteString("Version: 1.0\n\n")

	for _, st := range stages {
		stage := normalizeStage(st.Label)
		if stage == "" {
			continue
		}
		fmt.Fprintf(&sb, "%s; %s\n", clockMicros(st.OnsetFull), stage)
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

func writeImpulseFile(path, signalID string, start time.Time, events []Categorized, style Style) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Signal ID: %s\n", signalID)
	fmt.Fprintf(&sb, "Start Time: %s\n", start.Format("02.01.2006 15:04:05"))
	sb.WriteString("Unit: s\n")
	sb.WriteString("Signal Type: Impuls\n\n")

	for _, ev := range events {
		onset := clockMicros(ev.OnsetFull)
		end := clockMicros(ev.EndFull)
		switch style.Durations {
		case config.DurationTwoDecimals:
			fmt.Fprintf(&sb, "%s-%s; %.2f; %s\n", onset, end, ev.DurationSeconds(), ev.Label)
		default:
			fmt.Fprintf(&sb, "%s-%s; %d;%s\n", onset, end, int(ev.DurationSeconds()), ev.Label)
		}
	}

	return os.WriteFile(path, []byte(sb.String()), 0644)
}

// normalizeStage maps an event label to the stage code the scoring engine
// expects. Accepts both embedded labels ("Sleep stage W") and bare stage
// names from spreadsheet rows.
func normalizeStage(label string) string {
	stage := strings.TrimSpace(strings.ReplaceAll(label, "Sleep stage ", ""))
	switch stage {
	case "R", "REM":
		return "REM"
	case "No Stage", "NoStage":
		return ""
	}
	return stage
}

// clockMicros renders a wall-clock time as HH:MM:SS,ffffff, the comma form
// the scoring engine parses.
func clockMicros(t time.Time) string {
	return fmt.Sprintf("%s,%06d", t.Format("15:04:05"), t.Nanosecond()/1000)
}
