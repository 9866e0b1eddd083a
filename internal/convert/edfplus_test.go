package convert

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/edf"
)

func writeSource(t *testing.T, path string, signals []edf.WriterSignal, data [][]float64, anns []edf.Annotation) time.Time {
	t.Helper()
	start := time.Date(2024, 3, 5, 23, 15, 0, 0, time.UTC)
	if err := edf.WriteContinuous(path, start, 1, "", signals, data, anns); err != nil {
		t.Fatalf("writing source: %v", err)
	}
	return start
}

func sine(n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(float64(i)/7)
	}
	return out
}

func TestToEDFPlus_RescalesBiosignals(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "night.edf")

	// Volt-scale EMG trace alongside an ordinary channel.
	signals := []edf.WriterSignal{
		{Label: "EMG Chin", Dimension: "V", SamplesPerRecord: 4, PhysicalMin: -0.001, PhysicalMax: 0.001, DigitalMin: -32768, DigitalMax: 32767},
		{Label: "Snore", Dimension: "mV", SamplesPerRecord: 4, PhysicalMin: -100, PhysicalMax: 100, DigitalMin: -32768, DigitalMax: 32767},
	}
	data := [][]float64{sine(40, 0.0002), sine(40, 50)}
	start := writeSource(t, src, signals, data, nil)

	res, err := ToEDFPlus(src, "", config.DefaultConfig())
	if err != nil {
		t.Fatalf("ToEDFPlus failed: %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "night_edfplus.edf") {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}
	if len(res.Rescaled) != 1 || res.Rescaled[0] != "EMG Chin" {
		t.Errorf("Rescaled = %v, want [EMG Chin]", res.Rescaled)
	}

	out, err := edf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("strict reader rejects converted file: %v", err)
	}
	defer out.Close()

	if !out.StartTime().Equal(start) {
		t.Errorf("StartTime = %v, want %v", out.StartTime(), start)
	}
	hs := out.SignalHeaders()
	if hs[0].Dimension != "uV" {
		t.Errorf("dimension = %q, want uV", hs[0].Dimension)
	}
	// 200 microvolt peaks double to 400, still under the configured minimum.
	if hs[0].PhysicalMax != 500 || hs[0].PhysicalMin != -500 {
		t.Errorf("range = [%v, %v], want [-500, 500]", hs[0].PhysicalMin, hs[0].PhysicalMax)
	}
	// The ordinary channel keeps its unit but gets a fresh range at twice
	// its 50 mV extreme.
	if hs[1].Dimension != "mV" {
		t.Errorf("dimension = %q, want mV", hs[1].Dimension)
	}
	if got := hs[1].PhysicalMax; got < 99.9 || got > 100.1 {
		t.Errorf("ordinary PhysicalMax = %v, want about 100", got)
	}
	if hs[1].PhysicalMin != -hs[1].PhysicalMax {
		t.Errorf("ordinary range not symmetric: [%v, %v]", hs[1].PhysicalMin, hs[1].PhysicalMax)
	}

	emg, err := out.ReadSignal(0)
	if err != nil {
		t.Fatalf("reading rescaled channel: %v", err)
	}
	// First peak of the 0.2 mV sine lands around sample 11.
	var peak float64
	for _, v := range emg[:40] {
		if v > peak {
			peak = v
		}
	}
	if peak < 195 || peak > 205 {
		t.Errorf("rescaled peak = %v uV, want about 200", peak)
	}
}

func TestToEDFPlus_DoublesObservedExtreme(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "loud.edf")
	signals := []edf.WriterSignal{
		{Label: "EMG Lat", Dimension: "V", SamplesPerRecord: 2, PhysicalMin: -0.01, PhysicalMax: 0.01, DigitalMin: -32768, DigitalMax: 32767},
	}
	writeSource(t, src, signals, [][]float64{sine(20, 0.001)}, nil)

	res, err := ToEDFPlus(src, "", config.DefaultConfig())
	if err != nil {
		t.Fatalf("ToEDFPlus failed: %v", err)
	}
	out, err := edf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("re-open: %v", err)
	}
	defer out.Close()

	// 1000 uV peaks exceed half the minimum, so the range is twice the
	// observed extreme rather than the 500 uV floor.
	max := out.SignalHeaders()[0].PhysicalMax
	if max < 1990 || max > 2010 {
		t.Errorf("PhysicalMax = %v, want about 2000", max)
	}
}

func TestToEDFPlus_OrdinaryChannelRangeRecomputed(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "ecg.edf")
	signals := []edf.WriterSignal{
		{Label: "ECG", Dimension: "mV", SamplesPerRecord: 4, PhysicalMin: -5, PhysicalMax: 5, DigitalMin: -32768, DigitalMax: 32767},
	}
	writeSource(t, src, signals, [][]float64{sine(40, 1)}, nil)

	res, err := ToEDFPlus(src, "", config.DefaultConfig())
	if err != nil {
		t.Fatalf("ToEDFPlus failed: %v", err)
	}
	if len(res.Rescaled) != 0 {
		t.Errorf("Rescaled = %v, want none", res.Rescaled)
	}
	out, err := edf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("re-open: %v", err)
	}
	defer out.Close()

	// The stored +-5 range is not trusted; the channel gets twice its
	// observed extreme of 1.
	hs := out.SignalHeaders()[0]
	if hs.PhysicalMax < 1.99 || hs.PhysicalMax > 2.01 {
		t.Errorf("PhysicalMax = %v, want about 2", hs.PhysicalMax)
	}
	if hs.PhysicalMin != -hs.PhysicalMax {
		t.Errorf("range not symmetric: [%v, %v]", hs.PhysicalMin, hs.PhysicalMax)
	}
}

func TestToEDFPlus_MissingFile(t *testing.T) {
	_, err := ToEDFPlus(filepath.Join(t.TempDir(), "absent.edf"), "", config.DefaultConfig())
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFixRanges_RecomputesRangesAndKeepsEvents(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.edf")
	signals := []edf.WriterSignal{
		{Label: "EMG Chin", Dimension: "uV", SamplesPerRecord: 4, PhysicalMin: -1000, PhysicalMax: 1000, DigitalMin: -32768, DigitalMax: 32767},
		{Label: "Position", Dimension: "", SamplesPerRecord: 1, PhysicalMin: 0, PhysicalMax: 4, DigitalMin: 0, DigitalMax: 4},
	}
	data := [][]float64{sine(40, 100), {1, 1, 2, 2, 3, 3, 1, 1, 2, 2}}
	writeSource(t, src, signals, data, []edf.Annotation{
		{Onset: 3, Duration: 2, Label: "EEG arousal"},
	})

	res, err := FixRanges(src, "", config.DefaultConfig())
	if err != nil {
		t.Fatalf("FixRanges failed: %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "clip_ranged.edf") {
		t.Errorf("OutputPath = %q", res.OutputPath)
	}

	out, err := edf.Open(res.OutputPath)
	if err != nil {
		t.Fatalf("strict reader rejects fixed file: %v", err)
	}
	defer out.Close()

	hs := out.SignalHeaders()
	// 100 uV extremes widen to 120 with the margin, symmetric.
	if got := hs[0].PhysicalMax; got < 119 || got > 121 {
		t.Errorf("EMG PhysicalMax = %v, want about 120", got)
	}
	if hs[0].PhysicalMin != -hs[0].PhysicalMax {
		t.Errorf("EMG range not symmetric: [%v, %v]", hs[0].PhysicalMin, hs[0].PhysicalMax)
	}
	// The position channel spans 1..3, so the margined range is 0.6..3.4,
	// not symmetric.
	if got := hs[1].PhysicalMin; got < 0.59 || got > 0.61 {
		t.Errorf("position PhysicalMin = %v, want about 0.6", got)
	}
	if got := hs[1].PhysicalMax; got < 3.39 || got > 3.41 {
		t.Errorf("position PhysicalMax = %v, want about 3.4", got)
	}

	anns, err := out.Annotations()
	if err != nil {
		t.Fatalf("annotations: %v", err)
	}
	if len(anns) != 1 || anns[0].Label != "EEG arousal" || anns[0].Onset != 3 {
		t.Errorf("annotations = %+v, want the arousal carried through", anns)
	}
}

func TestFixRanges_ExplicitOutputPath(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.edf")
	signals := []edf.WriterSignal{
		{Label: "EMG Chin", Dimension: "uV", SamplesPerRecord: 2, PhysicalMin: -500, PhysicalMax: 500, DigitalMin: -32768, DigitalMax: 32767},
	}
	writeSource(t, src, signals, [][]float64{sine(20, 50)}, nil)

	dst := filepath.Join(dir, "sub", "b.edf")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := FixRanges(src, dst, config.DefaultConfig())
	if err != nil {
		t.Fatalf("FixRanges failed: %v", err)
	}
	if res.OutputPath != dst {
		t.Errorf("OutputPath = %q, want %q", res.OutputPath, dst)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Errorf("output not written: %v", err)
	}
}
