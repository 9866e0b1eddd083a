package db

import (
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	apperrors "github.com/hyeongsuk/RBDtector/internal/errors"
)

// Run is one recorded batch invocation.
type Run struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time // zero until FinishRun
	Total      int
	Succeeded  int
	Failed     int
}

// Outcome is the recorded result of converting one recording within a run.
type Outcome struct {
	ID        string
	RunID     string
	InputPath string
	Verdict   string
	OK        bool
	ErrorCode string
	ErrorText string
	Outputs   []string
	CreatedAt time.Time
}

// NewID generates a ULID for run and outcome rows.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// InsertRun records the start of a batch over root and returns its ID.
func InsertRun(db *sql.DB, root string) (string, error) {
	id := NewID()
	_, err := db.Exec(
		`INSERT INTO runs (id, root, started_at) VALUES (?, ?, ?)`,
		id, root, time.Now().Unix(),
	)
	if err != nil {
		return "", apperrors.NewInternal(err)
	}
	return id, nil
}

// FinishRun closes out a run with its final tallies.
func FinishRun(db *sql.DB, id string, total, succeeded, failed int) error {
	_, err := db.Exec(
		`UPDATE runs SET finished_at = ?, total = ?, succeeded = ?, failed = ? WHERE id = ?`,
		time.Now().Unix(), total, succeeded, failed, id,
	)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

// InsertOutcome records one per-file result under a run.
func InsertOutcome(db *sql.DB, o *Outcome) error {
	if o.ID == "" {
		o.ID = NewID()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}

	var outputsJSON sql.NullString
	if len(o.Outputs) > 0 {
		data, err := json.Marshal(o.Outputs)
		if err != nil {
			return apperrors.NewInternal(err)
		}
		outputsJSON = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.Exec(
		`INSERT INTO outcomes (id, run_id, input_path, verdict, ok, error_code, error_text, outputs_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.RunID, o.InputPath, o.Verdict, boolToInt(o.OK),
		toNullString(o.ErrorCode), toNullString(o.ErrorText),
		outputsJSON, o.CreatedAt.Unix(),
	)
	if err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves one run by ID.
func GetRun(db *sql.DB, id string) (*Run, error) {
	row := db.QueryRow(
		`SELECT id, root, started_at, finished_at, total, succeeded, failed FROM runs WHERE id = ?`,
		id,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFound(id)
	}
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func ListRuns(db *sql.DB, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT id, root, started_at, finished_at, total, succeeded, failed
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, apperrors.NewInternal(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return out, nil
}

// RunOutcomes returns every per-file outcome of a run in insertion order.
func RunOutcomes(db *sql.DB, runID string) ([]*Outcome, error) {
	rows, err := db.Query(
		`SELECT id, run_id, input_path, verdict, ok, error_code, error_text, outputs_json, created_at
		 FROM outcomes WHERE run_id = ? ORDER BY created_at, id`,
		runID,
	)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	defer rows.Close()

	var out []*Outcome
	for rows.Next() {
		var (
			o           Outcome
			ok          int
			errCode     sql.NullString
			errText     sql.NullString
			outputsJSON sql.NullString
			created     int64
		)
		if err := rows.Scan(&o.ID, &o.RunID, &o.InputPath, &o.Verdict, &ok,
			&errCode, &errText, &outputsJSON, &created); err != nil {
			return nil, apperrors.NewInternal(err)
		}
		o.OK = ok != 0
		o.ErrorCode = errCode.String
		o.ErrorText = errText.String
		o.CreatedAt = time.Unix(created, 0)
		if outputsJSON.Valid {
			if err := json.Unmarshal([]byte(outputsJSON.String), &o.Outputs); err != nil {
				return nil, apperrors.NewInternal(err)
			}
		}
		out = append(out, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Root, &started, &finished, &r.Total, &r.Succeeded, &r.Failed); err != nil {
		return nil, err
	}
	r.StartedAt = time.Unix(started, 0)
	if finished.Valid {
		r.FinishedAt = time.Unix(finished.Int64, 0)
	}
	return &r, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
