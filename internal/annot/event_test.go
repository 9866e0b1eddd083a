package annot

import (
	"testing"
	"time"
)

var headerStart = time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)

func sec(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

func TestCategorize_Partition(t *testing.T) {
	events := []Event{
		{Onset: 0, Label: "Sleep stage W"},
		{Onset: sec(30), Label: "Sleep stage R"},
		{Onset: sec(35), Duration: sec(12), Label: "EEG arousal"},
		{Onset: sec(40), Duration: sec(20), Label: "Obstructive Apnea"},
		{Onset: sec(50), Duration: sec(15), Label: "Hypopnea"},
		{Onset: sec(60), Label: "Desat 4%"},
		{Onset: sec(70), Label: "Body position: left"}, // discarded
	}

	sets := Categorize(events, headerStart)
	if len(sets.SleepStages) != 2 {
		t.Errorf("SleepStages = %d, want 2", len(sets.SleepStages))
	}
	if len(sets.Arousals) != 1 {
		t.Errorf("Arousals = %d, want 1", len(sets.Arousals))
	}
	if len(sets.FlowEvents) != 3 {
		t.Errorf("FlowEvents = %d, want 3", len(sets.FlowEvents))
	}

	total := len(sets.SleepStages) + len(sets.Arousals) + len(sets.FlowEvents)
	if total != len(events)-1 {
		t.Errorf("partition counted %d of %d events; exactly one should be discarded", total, len(events))
	}
}

func TestCategorize_ArousalBeatsFlowKeywords(t *testing.T) {
	// "RERA arousal" contains no flow keyword, but "Arousal (Hyp)" carries
	// one; the arousal rule must win because the rules are ordered.
	sets := Categorize([]Event{{Onset: 0, Label: "Arousal (Hyp)"}}, headerStart)
	if len(sets.Arousals) != 1 || len(sets.FlowEvents) != 0 {
		t.Errorf("ordered rules violated: %+v", sets)
	}
}

func TestCategorize_EndInvariant(t *testing.T) {
	sets := Categorize([]Event{
		{Onset: sec(35.25), Duration: sec(12.5), Label: "EEG arousal"},
	}, headerStart)

	a := sets.Arousals[0]
	wantOnset := headerStart.Add(sec(35.25))
	wantEnd := wantOnset.Add(sec(12.5))
	if !a.OnsetFull.Equal(wantOnset) {
		t.Errorf("OnsetFull = %v, want %v", a.OnsetFull, wantOnset)
	}
	if !a.EndFull.Equal(wantEnd) {
		t.Errorf("EndFull = %v, want %v", a.EndFull, wantEnd)
	}
	if !a.Onset.Equal(wantOnset.Truncate(time.Second)) {
		t.Errorf("Onset = %v, want second-truncated %v", a.Onset, wantOnset.Truncate(time.Second))
	}
	if a.DurationSeconds() != 12.5 {
		t.Errorf("DurationSeconds = %v, want 12.5", a.DurationSeconds())
	}
}

func TestEffectiveStart_FirstSleepStage(t *testing.T) {
	sets := Categorize([]Event{
		{Onset: sec(100), Duration: sec(10), Label: "EEG arousal"},
		{Onset: sec(90.75), Label: "Sleep stage N1"},
		{Onset: sec(120), Label: "Sleep stage N2"},
	}, headerStart)

	got := EffectiveStart(sets.SleepStages, headerStart)
	want := headerStart.Add(90 * time.Second) // 90.75 truncated
	if !got.Equal(want) {
		t.Errorf("EffectiveStart = %v, want %v", got, want)
	}
}

func TestEffectiveStart_FallsBackToHeader(t *testing.T) {
	got := EffectiveStart(nil, headerStart)
	if !got.Equal(headerStart) {
		t.Errorf("EffectiveStart = %v, want header start %v", got, headerStart)
	}
}

func TestNormalizeStage(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Sleep stage W", "W"},
		{"Sleep stage R", "REM"},
		{"REM", "REM"},
		{"N2", "N2"},
		{"No Stage", ""},
		{"NoStage", ""},
	}
	for _, tc := range cases {
		if got := normalizeStage(tc.in); got != tc.want {
			t.Errorf("normalizeStage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
