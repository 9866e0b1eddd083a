package db

import (
	"testing"

	apperrors "github.com/hyeongsuk/RBDtector/internal/errors"
)

func TestInit_CreatesSchemaAndWAL(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	version, err := GetUserVersion(database)
	if err != nil {
		t.Fatalf("GetUserVersion failed: %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}

	var mode string
	if err := database.QueryRow("PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestInit_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	first, err := Init(dir)
	if err != nil {
		t.Fatalf("first Init failed: %v", err)
	}
	first.Close()

	second, err := Init(dir)
	if err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	second.Close()
}

func TestRunLifecycle(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	runID, err := InsertRun(database, "/data/psg")
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	outcomes := []*Outcome{
		{RunID: runID, InputPath: "/data/psg/a.edf", Verdict: "embedded-continuous", OK: true,
			Outputs: []string{"/data/psg/a Sleep profile.txt"}},
		{RunID: runID, InputPath: "/data/psg/b.edf", Verdict: "standard-with-spreadsheet", OK: true},
		{RunID: runID, InputPath: "/data/psg/c.edf", Verdict: "standard-without-annotations", OK: false,
			ErrorCode: "UNSUPPORTED_FORMAT", ErrorText: "no annotation source"},
	}
	for _, o := range outcomes {
		if err := InsertOutcome(database, o); err != nil {
			t.Fatalf("InsertOutcome failed: %v", err)
		}
	}

	if err := FinishRun(database, runID, 3, 2, 1); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err := GetRun(database, runID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Total != 3 || run.Succeeded != 2 || run.Failed != 1 {
		t.Errorf("tallies = %d/%d/%d, want 3/2/1", run.Total, run.Succeeded, run.Failed)
	}
	if run.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}

	got, err := RunOutcomes(database, runID)
	if err != nil {
		t.Fatalf("RunOutcomes failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(got))
	}
	if got[0].InputPath != "/data/psg/a.edf" || len(got[0].Outputs) != 1 {
		t.Errorf("first outcome = %+v", got[0])
	}
	if got[2].OK || got[2].ErrorCode != "UNSUPPORTED_FORMAT" {
		t.Errorf("failed outcome = %+v", got[2])
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	first, err := InsertRun(database, "/a")
	if err != nil {
		t.Fatal(err)
	}
	second, err := InsertRun(database, "/b")
	if err != nil {
		t.Fatal(err)
	}

	runs, err := ListRuns(database, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(runs))
	}
	// Same-second starts fall back to ID order; ULIDs sort by creation time.
	if runs[0].ID != second || runs[1].ID != first {
		t.Errorf("order = [%s, %s], want newest first", runs[0].ID, runs[1].ID)
	}
}

func TestGetRun_Missing(t *testing.T) {
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer database.Close()

	_, err = GetRun(database, "01J00000000000000000000000")
	if !apperrors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}
