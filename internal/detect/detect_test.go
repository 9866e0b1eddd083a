package detect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/edf"
)

var emgKeywords = config.DefaultConfig().EMGKeywords

func writeFixture(t *testing.T, path string, anns []edf.Annotation) {
	t.Helper()
	signals := []edf.WriterSignal{
		{Label: "EMG Chin", Dimension: "uV", SamplesPerRecord: 2, PhysicalMin: -500, PhysicalMax: 500, DigitalMin: -32768, DigitalMax: 32767},
		{Label: "ECG", Dimension: "mV", SamplesPerRecord: 2, PhysicalMin: -5, PhysicalMax: 5, DigitalMin: -32768, DigitalMax: 32767},
	}
	data := [][]float64{make([]float64, 120), make([]float64, 120)}
	start := time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC)
	if err := edf.WriteContinuous(path, start, 1, "", signals, data, anns); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

func TestClassify_MissingFile(t *testing.T) {
	v := Classify(filepath.Join(t.TempDir(), "nope.edf"), emgKeywords)
	if v.Kind != Invalid {
		t.Errorf("Kind = %v, want Invalid", v.Kind)
	}
	if v.Err == "" {
		t.Error("Invalid verdict should carry an explanatory message")
	}
}

func TestClassify_EmbeddedContinuous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.edf")
	writeFixture(t, path, []edf.Annotation{
		{Onset: 0, Label: "Sleep stage W"},
		{Onset: 30, Duration: 12, Label: "EEG arousal"},
	})

	v := Classify(path, emgKeywords)
	if v.Kind != EmbeddedContinuous {
		t.Errorf("Kind = %v, want EmbeddedContinuous", v.Kind)
	}
	if !v.ReaderCompatible {
		t.Error("ReaderCompatible should be true")
	}
	if v.AnnotationCount != 2 {
		t.Errorf("AnnotationCount = %d, want 2", v.AnnotationCount)
	}
	if v.SignalCount != 2 {
		t.Errorf("SignalCount = %d, want 2", v.SignalCount)
	}
	if len(v.EMGChannels) != 1 || v.EMGChannels[0].Label != "EMG Chin" {
		t.Errorf("EMGChannels = %+v, want the chin channel only", v.EMGChannels)
	}
}

func TestClassify_CompliantWithoutAnnotations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.edf")
	writeFixture(t, path, nil)

	v := Classify(path, emgKeywords)
	if v.Kind != StandardWithoutAnnotations {
		t.Errorf("Kind = %v, want StandardWithoutAnnotations", v.Kind)
	}
}

func TestClassify_SpreadsheetProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.edf")
	writeFixture(t, path, nil)
	if err := os.WriteFile(filepath.Join(dir, "rec.xlsx"), []byte("stub"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	v := Classify(path, emgKeywords)
	if v.Kind != StandardWithSpreadsheet {
		t.Errorf("Kind = %v, want StandardWithSpreadsheet", v.Kind)
	}
	if filepath.Base(v.SpreadsheetPath) != "rec.xlsx" {
		t.Errorf("SpreadsheetPath = %q", v.SpreadsheetPath)
	}
}

func TestClassify_UppercaseSpreadsheetProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.edf")
	writeFixture(t, path, nil)
	if err := os.WriteFile(filepath.Join(dir, "rec.XLSX"), []byte("stub"), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	v := Classify(path, emgKeywords)
	if v.Kind != StandardWithSpreadsheet {
		t.Errorf("Kind = %v, want StandardWithSpreadsheet", v.Kind)
	}
}

func TestClassify_FallbackOnBrokenHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.edf")
	writeFixture(t, path, nil)

	// Garble the record-duration field; the strict reader rejects it but the
	// raw fallback still recovers signal count and labels.
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteAt([]byte("junk    "), 244); err != nil {
		t.Fatalf("corrupt: %v", err)
	}
	f.Close()

	v := Classify(path, emgKeywords)
	if v.ReaderCompatible {
		t.Error("ReaderCompatible should be false for a garbled header")
	}
	if v.Kind != StandardWithoutAnnotations {
		t.Errorf("Kind = %v, want StandardWithoutAnnotations", v.Kind)
	}
	// Annotation channel is part of the raw count; fallback sees 3 signals.
	if v.SignalCount != 3 {
		t.Errorf("SignalCount = %d, want 3 from raw header", v.SignalCount)
	}
	if len(v.EMGChannels) != 1 || v.EMGChannels[0].Label != "EMG Chin" {
		t.Errorf("EMGChannels = %+v", v.EMGChannels)
	}
}

func TestClassify_Discontinuous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disc.edf")
	writeFixture(t, path, []edf.Annotation{{Onset: 0, Label: "Sleep stage W"}})

	// Flip the reserved flag to EDF+D.
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteAt([]byte("EDF+D"), 192); err != nil {
		t.Fatalf("flag: %v", err)
	}
	f.Close()

	v := Classify(path, emgKeywords)
	if v.Kind != EmbeddedDiscontinuous {
		t.Errorf("Kind = %v, want EmbeddedDiscontinuous", v.Kind)
	}
}
