package ops

import (
	"context"
	"database/sql"
	"time"

	"github.com/hyeongsuk/RBDtector/internal/config"
	"github.com/hyeongsuk/RBDtector/internal/db"
	"github.com/hyeongsuk/RBDtector/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	RunID string // when set, include that run's per-file outcomes
	Limit int    // max runs to list; default 20
}

// HistoryRun is one listed batch run.
type HistoryRun struct {
	ID         string     `json:"id"`
	Root       string     `json:"root"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
}

// HistoryOutput contains recent runs, plus one run's outcomes when requested.
type HistoryOutput struct {
	Runs     []HistoryRun   `json:"runs"`
	Outcomes []BatchOutcome `json:"outcomes,omitempty"`
}

// History lists recorded batch runs, newest first.
func History(ctx context.Context, database *sql.DB, cfg *config.Config, input HistoryInput) (*HistoryOutput, error) {
	if database == nil {
		return nil, errors.NewInvalidRequest("history requires the run database")
	}

	out := &HistoryOutput{}
	if input.RunID != "" {
		run, err := db.GetRun(database, input.RunID)
		if err != nil {
			return nil, err
		}
		out.Runs = append(out.Runs, historyRun(run))

		recorded, err := db.RunOutcomes(database, input.RunID)
		if err != nil {
			return nil, err
		}
		for _, o := range recorded {
			text := o.ErrorText
			if text == "" && o.ErrorCode != "" {
				text = o.ErrorCode
			}
			out.Outcomes = append(out.Outcomes, BatchOutcome{
				Path:    o.InputPath,
				Verdict: o.Verdict,
				OK:      o.OK,
				Error:   text,
				Outputs: o.Outputs,
			})
		}
		return out, nil
	}

	runs, err := db.ListRuns(database, input.Limit)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		out.Runs = append(out.Runs, historyRun(r))
	}
	return out, nil
}

func historyRun(r *db.Run) HistoryRun {
	h := HistoryRun{
		ID:        r.ID,
		Root:      r.Root,
		StartedAt: r.StartedAt,
		Total:     r.Total,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
	}
	if !r.FinishedAt.IsZero() {
		finished := r.FinishedAt
		h.FinishedAt = &finished
	}
	return h
}
