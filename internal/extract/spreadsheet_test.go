package extract

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hyeongsuk/RBDtector/internal/config"
)

func writeScoringSheet(t *testing.T, path string, rows [][]string) {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		for j, cell := range row {
			name, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetCellStr(sheet, name, cell); err != nil {
				t.Fatalf("setting cell: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("saving spreadsheet: %v", err)
	}
}

func TestSpreadsheet_CategorizesRows(t *testing.T) {
	dir := t.TempDir()
	edfPath := filepath.Join(dir, "rec.edf")
	start := writeEmbeddedFixture(t, edfPath, nil)

	xlsxPath := filepath.Join(dir, "rec.xlsx")
	writeScoringSheet(t, xlsxPath, [][]string{
		{"1", "A", "22:00:00.00", "Stage - W"},
		{"2", "A", "22:00:30.00", "Stage - REM"},
		{"3", "A", "22:01:35.25", "Arousal - Dur: 19.6 sec. - RERA"},
		{"4", "A", "22:02:10.00", "Respiratory event - Dur: 25 sec. - Hypopnea"},
		{"5", "A", "22:03:00.00", "Desaturation - Dur: 14.2 sec."},
		{"6", "A", "22:04:00.00", "Stage - No Stage"},
		{"7", "A", "22:05:00.00", "Body position - Left"},
	})

	res, err := Spreadsheet(edfPath, xlsxPath, config.AnchorHeaderStart)
	if err != nil {
		t.Fatalf("Spreadsheet failed: %v", err)
	}

	if len(res.Sets.SleepStages) != 2 {
		t.Fatalf("stages = %d, want 2 (No Stage rows drop)", len(res.Sets.SleepStages))
	}
	if got := res.Sets.SleepStages[1].Label; got != "REM" {
		t.Errorf("stage label = %q, want REM", got)
	}

	if len(res.Sets.Arousals) != 1 {
		t.Fatalf("arousals = %d, want 1", len(res.Sets.Arousals))
	}
	a := res.Sets.Arousals[0]
	if a.Label != "RERA" {
		t.Errorf("arousal label = %q, want RERA", a.Label)
	}
	if got := a.DurationSeconds(); got < 19.59 || got > 19.61 {
		t.Errorf("arousal duration = %v, want 19.6", got)
	}
	wantOnset := time.Date(start.Year(), start.Month(), start.Day(), 22, 1, 35, 250*1e6, time.UTC)
	if !a.OnsetFull.Equal(wantOnset) {
		t.Errorf("arousal onset = %v, want %v", a.OnsetFull, wantOnset)
	}

	if len(res.Sets.FlowEvents) != 2 {
		t.Fatalf("flow events = %d, want 2", len(res.Sets.FlowEvents))
	}
	if got := res.Sets.FlowEvents[0].Label; got != "Hypopnea" {
		t.Errorf("flow label = %q, want Hypopnea", got)
	}
	if got := res.Sets.FlowEvents[1].Label; got != "Desaturation" {
		t.Errorf("flow label = %q, want Desaturation", got)
	}

	// Anchor policy for this path defaults to the header start.
	if !res.Effective.Equal(start) {
		t.Errorf("Effective = %v, want header start %v", res.Effective, start)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}
}

func TestSpreadsheet_UnparsableTimestampWarns(t *testing.T) {
	dir := t.TempDir()
	edfPath := filepath.Join(dir, "rec.edf")
	start := writeEmbeddedFixture(t, edfPath, nil)

	xlsxPath := filepath.Join(dir, "rec.xlsx")
	writeScoringSheet(t, xlsxPath, [][]string{
		{"1", "A", "not-a-time", "Stage - W"},
	})

	res, err := Spreadsheet(edfPath, xlsxPath, config.AnchorHeaderStart)
	if err != nil {
		t.Fatalf("Spreadsheet failed: %v", err)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(res.Warnings))
	}
	if len(res.Sets.SleepStages) != 1 {
		t.Fatalf("row with bad timestamp must still be kept")
	}
	if !res.Sets.SleepStages[0].OnsetFull.Equal(start) {
		t.Errorf("fallback onset = %v, want header start %v", res.Sets.SleepStages[0].OnsetFull, start)
	}
}

func TestParseDurField(t *testing.T) {
	cases := []struct {
		desc string
		want float64
	}{
		{"Arousal - Dur: 19.6 sec. - RERA", 19.6},
		{"Respiratory event - Dur: 25 sec. - Apnea", 25},
		{"Arousal - spontaneous", 0},
		{"Arousal - Dur: oops sec.", 0},
	}
	for _, tc := range cases {
		if got := parseDurField(tc.desc); got != tc.want {
			t.Errorf("parseDurField(%q) = %v, want %v", tc.desc, got, tc.want)
		}
	}
}

func TestArousalSubtype(t *testing.T) {
	if got := arousalSubtype("Arousal - Dur: 19.6 sec. - RERA"); got != "RERA" {
		t.Errorf("subtype = %q, want RERA", got)
	}
	if got := arousalSubtype("Arousal - Dur: 5 sec."); got != "Arousal" {
		t.Errorf("subtype = %q, want generic Arousal", got)
	}
}

func TestFlowSubtypePrecedence(t *testing.T) {
	// Hypopnea wins even though "Apnea" appears as a substring elsewhere.
	if got := flowSubtype("Respiratory event - Hypopnea with Apnea features"); got != "Hypopnea" {
		t.Errorf("subtype = %q, want Hypopnea", got)
	}
	if got := flowSubtype("Respiratory event - Obstructive Apnea"); got != "Apnea" {
		t.Errorf("subtype = %q, want Apnea", got)
	}
	if got := flowSubtype("Respiratory event - unknown"); got != "Flow Event" {
		t.Errorf("subtype = %q, want Flow Event", got)
	}
}
