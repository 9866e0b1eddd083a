package ops

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/db"
	"github.com/hyeongsuk/RBDtector/internal/detect"
	"github.com/hyeongsuk/RBDtector/internal/errors"
)

// BatchInput contains parameters for the Batch operation.
type BatchInput struct {
	Root      string // required: directory walked recursively
	OutputDir string // default: next to each recording
}

// BatchOutcome is the per-file result within a batch.
type BatchOutcome struct {
	Path    string   `json:"path"`
	Verdict string   `json:"verdict"`
	OK      bool     `json:"ok"`
	Error   string   `json:"error,omitempty"`
	Outputs []string `json:"outputs,omitempty"`
}

// BatchOutput contains the result of a batch run.
type BatchOutput struct {
	RunID     string         `json:"run_id,omitempty"`
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Outcomes  []BatchOutcome `json:"outcomes"`
}

// Progress receives one call per file as a batch proceeds. May be nil.
type Progress func(outcome BatchOutcome)

// Batch converts every recording under Root, sequentially, continuing past
// per-file failures. When database is non-nil the run and its per-file
// outcomes are recorded in history.
func Batch(ctx context.Context, database *sql.DB, cfg *config.Config, input BatchInput, progress Progress) (*BatchOutput, error) {
	if input.Root == "" {
		return nil, errors.NewInvalidRequest("root is required")
	}

	paths, err := FindRecordings(input.Root)
	if err != nil {
		return nil, err
	}

	out := &BatchOutput{}
	if database != nil {
		runID, err := db.InsertRun(database, input.Root)
		if err != nil {
			return nil, err
		}
		out.RunID = runID
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, errors.NewInternal(err)
		}

		oc := BatchOutcome{Path: path}
		res, err := Convert(ctx, cfg, ConvertInput{Path: path, OutputDir: input.OutputDir})
		if err != nil {
			// Convert classified the file before failing; keep its verdict.
			oc.Verdict = VerdictSlug(detect.Invalid)
			if res != nil {
				oc.Verdict = res.Verdict
			}
			oc.Error = err.Error()
			out.Failed++
		} else {
			oc.Verdict = res.Verdict
			oc.OK = true
			oc.Outputs = res.Outputs
			out.Succeeded++
		}
		out.Total++
		out.Outcomes = append(out.Outcomes, oc)

		if database != nil {
			record := &db.Outcome{
				RunID:     out.RunID,
				InputPath: path,
				Verdict:   oc.Verdict,
				OK:        oc.OK,
				ErrorText: oc.Error,
				Outputs:   oc.Outputs,
			}
			if convErr, ok := errors.AsConvError(err); ok {
				record.ErrorCode = string(convErr.Code)
			}
			if insErr := db.InsertOutcome(database, record); insErr != nil {
				return nil, insErr
			}
		}
		if progress != nil {
			progress(oc)
		}
	}

	if database != nil {
		if err := db.FinishRun(database, out.RunID, out.Total, out.Succeeded, out.Failed); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FindRecordings walks root and returns every EDF recording, sorted,
// matching the extension case-insensitively. Files produced by earlier
// normalization passes are skipped so reruns do not convert their own
// output.
func FindRecordings(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".edf") {
			return nil
		}
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if strings.HasSuffix(stem, "_edfplus") || strings.HasSuffix(stem, "_ranged") {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, errors.NewNotFound(root)
	}
	return paths, nil
}
