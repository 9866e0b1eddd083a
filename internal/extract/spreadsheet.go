package extract

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyeongsuk/RBDtector/internal/annot"
	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/edf"
)

// Column layout of the scoring-software export: the sheet has no header row.
const (
	colTimestamp   = 2 // wall-clock HH:MM:SS.cc, centisecond precision
	colDescription = 3
)

// Spreadsheet reads annotation events from a companion spreadsheet. The
// recording's start time is read directly from the fixed-offset header
// fields, never through the structured reader: this path exists for
// recordings the structured reader rejects.
func Spreadsheet(edfPath, xlsxPath string, anchor config.Anchor) (*Result, error) {
	headerStart, err := edf.ReadRawStartTime(edfPath)
	if err != nil {
		return nil, fmt.Errorf("reading recording start time: %w", err)
	}

	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return nil, fmt.Errorf("opening spreadsheet: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("reading spreadsheet rows: %w", err)
	}

	res := &Result{HeaderStart: headerStart}
	for _, row := range rows {
		if len(row) <= colDescription {
			continue
		}
		desc := row[colDescription]
		lower := strings.ToLower(desc)

		onset, warn := parseClock(row[colTimestamp], headerStart)
		if warn != "" {
			res.Warnings = append(res.Warnings, warn)
		}

		switch {
		case strings.Contains(lower, "stage -"):
			stage := textAfter(desc, "stage -")
			if stage == "No Stage" || stage == "NoStage" {
				continue
			}
			res.Sets.SleepStages = append(res.Sets.SleepStages, categorized(annot.KindSleepStage, stage, onset, 0))

		case strings.Contains(lower, "arousal -"):
			dur := parseDurField(desc)
			res.Sets.Arousals = append(res.Sets.Arousals, categorized(annot.KindArousal, arousalSubtype(desc), onset, dur))

		case strings.Contains(lower, "respiratory event"), strings.Contains(lower, "desaturation"):
			dur := parseDurField(desc)
			res.Sets.FlowEvents = append(res.Sets.FlowEvents, categorized(annot.KindFlowEvent, flowSubtype(desc), onset, dur))
		}
	}

	res.Effective = effective(anchor, res.Sets, headerStart)
	return res, nil
}

func categorized(kind annot.Kind, label string, onset time.Time, durationSec float64) annot.Categorized {
	end := onset.Add(seconds(durationSec))
	return annot.Categorized{
		Kind:      kind,
		Label:     label,
		OnsetFull: onset,
		EndFull:   end,
		Onset:     onset.Truncate(time.Second),
		End:       end.Truncate(time.Second),
	}
}

// parseClock parses a wall-clock timestamp of the form HH:MM:SS.cc and
// combines it with the header's calendar date (the spreadsheet's own date
// column may be absent). An unparsable timestamp falls back to the header
// start time with a warning rather than dropping the row.
func parseClock(s string, headerStart time.Time) (time.Time, string) {
	fallback := func() (time.Time, string) {
		return headerStart, fmt.Sprintf("unparsable timestamp %q, using recording start", s)
	}

	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return fallback()
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return fallback()
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return fallback()
	}

	secParts := strings.SplitN(parts[2], ".", 2)
	second, err := strconv.Atoi(secParts[0])
	if err != nil {
		return fallback()
	}
	micro := 0
	if len(secParts) == 2 {
		cs := secParts[1]
		if len(cs) > 2 {
			cs = cs[:2] // centisecond precision; further digits are noise
		}
		v, err := strconv.Atoi(cs)
		if err != nil {
			return fallback()
		}
		micro = v * 10000
	}

	if hour > 23 || minute > 59 || second > 59 {
		return fallback()
	}

	return time.Date(headerStart.Year(), headerStart.Month(), headerStart.Day(),
		hour, minute, second, micro*1000, headerStart.Location()), ""
}

// parseDurField extracts a duration from a "Dur: <number> sec." substring;
// absent or unparsable means 0.
func parseDurField(desc string) float64 {
	_, after, found := strings.Cut(desc, "Dur:")
	if !found {
		return 0
	}
	numText, _, found := strings.Cut(after, "sec.")
	if !found {
		return 0
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(numText), 64)
	if err != nil {
		return 0
	}
	return v
}

// arousalSubtype takes the text after the final " - " separator when the
// description has at least three dash-separated segments, e.g.
// "Arousal - Dur: 19.6 sec. - RERA" yields "RERA".
func arousalSubtype(desc string) string {
	parts := strings.Split(desc, " - ")
	if len(parts) >= 3 {
		return strings.TrimSpace(parts[len(parts)-1])
	}
	return "Arousal"
}

// flowSubtype classifies a respiratory event by keyword precedence.
func flowSubtype(desc string) string {
	switch {
	case strings.Contains(desc, "Hyp"):
		return "Hypopnea"
	case strings.Contains(desc, "Apnea"):
		return "Apnea"
	case strings.Contains(desc, "Desaturation"), strings.Contains(desc, "Desat"):
		return "Desaturation"
	}
	return "Flow Event"
}

// textAfter returns the trimmed text following the first case-insensitive
// occurrence of marker.
func textAfter(s, marker string) string {
	idx := strings.Index(strings.ToLower(s), strings.ToLower(marker))
	if idx < 0 {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(s[idx+len(marker):])
}
