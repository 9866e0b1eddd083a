package ops

import (
	"context"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/convert"
	"github.com/hyeongsuk/RBDtector/internal/errors"
)

// FixRangesInput contains parameters for the FixRanges operation.
type FixRangesInput struct {
	Path       string // required
	OutputPath string // default: input stem with a "_ranged" suffix
}

// FixRangesOutput contains the result of a range repair.
type FixRangesOutput struct {
	Path       string   `json:"path"`
	OutputPath string   `json:"output_path"`
	Rescaled   []string `json:"rescaled,omitempty"`
}

// FixRanges widens the physical ranges of a compliant recording's biosignal
// channels so clipped amplitudes fit, writing a repaired copy.
func FixRanges(ctx context.Context, cfg *config.Config, input FixRangesInput) (*FixRangesOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}

	res, err := convert.FixRanges(input.Path, input.OutputPath, cfg)
	if err != nil {
		return nil, err
	}
	return &FixRangesOutput{
		Path:       input.Path,
		OutputPath: res.OutputPath,
		Rescaled:   res.Rescaled,
	}, nil
}
