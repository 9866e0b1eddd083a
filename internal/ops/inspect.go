package ops

import (
	"context"
	"time"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/edf"
	"github.com/hyeongsuk/RBDtector/internal/errors"
)

// InspectInput contains parameters for the Inspect operation.
type InspectInput struct {
	Path string // required
}

// InspectSignal summarizes one channel.
type InspectSignal struct {
	Label       string  `json:"label"`
	Dimension   string  `json:"dimension,omitempty"`
	SampleRate  float64 `json:"sample_rate"`
	PhysicalMin float64 `json:"physical_min"`
	PhysicalMax float64 `json:"physical_max"`
}

// InspectOutput summarizes a recording's header.
type InspectOutput struct {
	Path            string          `json:"path"`
	Compliant       bool            `json:"compliant"` // strict reader accepted the header
	FileType        string          `json:"file_type,omitempty"`
	StartTime       time.Time       `json:"start_time"`
	DurationSeconds float64         `json:"duration_seconds"`
	AnnotationCount int             `json:"annotation_count"`
	Signals         []InspectSignal `json:"signals"`
}

// Inspect summarizes a recording's header without converting it. Recordings
// the strict reader rejects are summarized from a permissive decode instead,
// with Compliant false.
func Inspect(ctx context.Context, cfg *config.Config, input InspectInput) (*InspectOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	if r, err := edf.Open(input.Path); err == nil {
		defer r.Close()
		out := &InspectOutput{
			Path:            input.Path,
			Compliant:       true,
			FileType:        r.FileType().String(),
			StartTime:       r.StartTime(),
			DurationSeconds: r.Duration().Seconds(),
		}
		if n, err := r.AnnotationCount(); err == nil {
			out.AnnotationCount = n
		}
		for i, sh := range r.SignalHeaders() {
			out.Signals = append(out.Signals, InspectSignal{
				Label:       sh.Label,
				Dimension:   sh.Dimension,
				SampleRate:  r.SampleRate(i),
				PhysicalMin: sh.PhysicalMin,
				PhysicalMax: sh.PhysicalMax,
			})
		}
		return out, nil
	}

	p, err := edf.OpenPermissive(input.Path)
	if err != nil {
		return nil, errors.NewExtraction(input.Path, err)
	}
	out := &InspectOutput{
		Path:      input.Path,
		StartTime: p.StartTime,
	}
	for i, sh := range p.Signals {
		if len(p.Data[i]) > 0 && sh.SamplesPerRecord > 0 {
			seconds := float64(len(p.Data[i])) / p.SampleRate(i)
			if seconds > out.DurationSeconds {
				out.DurationSeconds = seconds
			}
		}
		out.Signals = append(out.Signals, InspectSignal{
			Label:       sh.Label,
			Dimension:   sh.Dimension,
			SampleRate:  p.SampleRate(i),
			PhysicalMin: sh.PhysicalMin,
			PhysicalMax: sh.PhysicalMax,
		})
	}
	return out, nil
}
