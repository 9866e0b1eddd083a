package ops

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hyeongsuk/RBDtector/internal/annot"
	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/convert"
	"github.com/hyeongsuk/RBDtector/internal/detect"
	"github.com/hyeongsuk/RBDtector/internal/errors"
	"github.com/hyeongsuk/RBDtector/internal/extract"
)

// ConvertInput contains parameters for the Convert operation.
type ConvertInput struct {
	Path      string // required
	OutputDir string // default: the recording's own directory
}

// ConvertOutput contains the result of converting one recording.
type ConvertOutput struct {
	Path           string   `json:"path"`
	Verdict        string   `json:"verdict"`
	NormalizedPath string   `json:"normalized_path,omitempty"`
	Outputs        []string `json:"outputs"`
	SleepStages    int      `json:"sleep_stages"`
	Arousals       int      `json:"arousals"`
	FlowEvents     int      `json:"flow_events"`
	Warnings       []string `json:"warnings,omitempty"`
}

// Convert classifies a recording and runs the conversion strategy its
// variant requires, producing the three scoring-engine text files. Variants
// whose headers the structured reader rejects are first rewritten as
// compliant EDF+C; that rewrite is kept next to the recording. Once
// classification has run, the returned output is non-nil even on failure,
// so batch callers get the verdict without probing the file again.
func Convert(ctx context.Context, cfg *config.Config, input ConvertInput) (*ConvertOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	v := detect.Classify(input.Path, cfg.EMGKeywords)
	out := &ConvertOutput{Path: input.Path, Verdict: VerdictSlug(v.Kind)}

	outDir := input.OutputDir
	if outDir == "" {
		outDir = filepath.Dir(input.Path)
	}
	base := strings.TrimSuffix(filepath.Base(input.Path), filepath.Ext(input.Path))

	var (
		res   *extract.Result
		style annot.Style
		err   error
	)
	switch v.Kind {
	case detect.EmbeddedContinuous:
		res, err = extract.Embedded(input.Path, cfg.EmbeddedAnchor)
		if err != nil {
			return out, errors.NewExtraction(input.Path, err)
		}
		style = annot.Style{Durations: cfg.EmbeddedDurations, FlowSignalID: "FlowEvents"}

	case detect.EmbeddedDiscontinuous:
		// Rewrite as continuous for downstream signal analysis; the
		// annotations themselves carry absolute onsets and are read from
		// the original.
		norm, convErr := convert.ToEDFPlus(input.Path, "", cfg)
		if convErr != nil {
			return out, convErr
		}
		out.NormalizedPath = norm.OutputPath
		res, err = extract.Embedded(input.Path, cfg.EmbeddedAnchor)
		if err != nil {
			return out, errors.NewExtraction(input.Path, err)
		}
		style = annot.Style{Durations: cfg.EmbeddedDurations, FlowSignalID: "FlowEvents"}

	case detect.StandardWithSpreadsheet:
		norm, convErr := convert.ToEDFPlus(input.Path, "", cfg)
		if convErr != nil {
			return out, convErr
		}
		out.NormalizedPath = norm.OutputPath
		res, err = extract.Spreadsheet(input.Path, v.SpreadsheetPath, cfg.SpreadsheetAnchor)
		if err != nil {
			return out, errors.NewExtraction(input.Path, err)
		}
		style = annot.Style{Durations: cfg.SpreadsheetDurations, FlowSignalID: "Flow Events"}

	case detect.StandardWithoutAnnotations:
		return out, errors.NewUnsupportedFormat(input.Path,
			"no embedded annotations and no companion spreadsheet")

	case detect.Invalid:
		return out, errors.NewNotFound(input.Path)

	default:
		return out, errors.NewInternal(fmt.Errorf("unhandled variant %v", v.Kind))
	}

	outputs, err := annot.WriteAll(outDir, base, res.Effective, res.Sets, style)
	if err != nil {
		return out, errors.NewInternal(err)
	}
	if out.NormalizedPath != "" {
		out.Outputs = append(out.Outputs, out.NormalizedPath)
	}
	out.Outputs = append(out.Outputs, outputs...)
	out.SleepStages = len(res.Sets.SleepStages)
	out.Arousals = len(res.Sets.Arousals)
	out.FlowEvents = len(res.Sets.FlowEvents)
	out.Warnings = res.Warnings
	return out, nil
}

// VerdictSlug is the stable machine name of a variant, used in history rows
// and tool results. Kind.String is for humans.
func VerdictSlug(k detect.Kind) string {
	switch k {
	case detect.EmbeddedContinuous:
		return "embedded-continuous"
	case detect.EmbeddedDiscontinuous:
		return "embedded-discontinuous"
	case detect.StandardWithSpreadsheet:
		return "standard-with-spreadsheet"
	case detect.StandardWithoutAnnotations:
		return "standard-without-annotations"
	default:
		return "invalid"
	}
}
