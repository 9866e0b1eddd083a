// Package ops implements the operations behind both the CLI and MCP
// surfaces: classify, convert, inspect, range repair, batch runs, and run
// history.
package ops

import (
	"context"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/detect"
	"github.com/hyeongsuk/RBDtector/internal/errors"
)

// DetectInput contains parameters for the Detect operation.
type DetectInput struct {
	Path string // required
}

// DetectOutput contains the classification of one recording.
type DetectOutput struct {
	Path             string   `json:"path"`
	Kind             string   `json:"kind"`
	ReaderCompatible bool     `json:"reader_compatible"`
	AnnotationCount  int      `json:"annotation_count"`
	SignalCount      int      `json:"signal_count"`
	SpreadsheetPath  string   `json:"spreadsheet_path,omitempty"`
	EMGChannels      []string `json:"emg_channels,omitempty"`
	Detail           string   `json:"detail,omitempty"`
}

// Detect classifies a recording without converting it.
func Detect(ctx context.Context, cfg *config.Config, input DetectInput) (*DetectOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	v := detect.Classify(input.Path, cfg.EMGKeywords)
	out := &DetectOutput{
		Path:             input.Path,
		Kind:             v.Kind.String(),
		ReaderCompatible: v.ReaderCompatible,
		AnnotationCount:  v.AnnotationCount,
		SignalCount:      v.SignalCount,
		SpreadsheetPath:  v.SpreadsheetPath,
		Detail:           v.Err,
	}
	for _, ch := range v.EMGChannels {
		out.EMGChannels = append(out.EMGChannels, ch.Label)
	}
	return out, nil
}
