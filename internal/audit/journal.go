// Package audit records sweep runs and applied actions in SQLite.
// The journal is append-only observability: classification never reads it.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Journal writes run and action rows. A nil *Journal is a valid no-op,
// so callers don't have to branch on whether auditing is enabled.
type Journal struct {
	db *sql.DB
}

func New(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Run is the recorded summary row for one sweep pass.
type Run struct {
	ID                    string
	StartedAt             time.Time
	FinishedAt            *time.Time
	DryRun                bool
	ConfigFingerprint     string
	ExceptionsFingerprint string
	Workspaces            int
	WorkspacesFailed      int
}

// Action is one recorded stop/delete attempt.
type Action struct {
	ID         string
	RunID      string
	Workspace  string
	AppName    string
	AppURL     string
	Decision   string
	AgeDays    int
	Applied    bool
	Error      string
	RecordedAt time.Time
}

// BeginRun inserts the run row and returns its id.
func (j *Journal) BeginRun(ctx context.Context, dryRun bool, configFP, exceptionsFP string) (string, error) {
	if j == nil {
		return uuid.NewString(), nil
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := j.db.ExecContext(ctx, `
INSERT INTO sweep_run(id, started_at, dry_run, config_fingerprint, exceptions_fingerprint)
VALUES(?, ?, ?, ?, ?);
`, id, now, boolInt(dryRun), configFP, exceptionsFP)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// FinishRun stamps the run row with its end time and workspace tallies.
func (j *Journal) FinishRun(ctx context.Context, runID string, workspaces, workspacesFailed int) error {
	if j == nil {
		return nil
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := j.db.ExecContext(ctx, `
UPDATE sweep_run SET finished_at = ?, workspaces = ?, workspaces_failed = ? WHERE id = ?;
`, now, workspaces, workspacesFailed, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordAction inserts one action row. applied is false in dry-run mode or
// when the remote call failed (in which case actionErr carries the cause).
func (j *Journal) RecordAction(ctx context.Context, runID, workspaceName string, appName, appURL, decision string, ageDays int, applied bool, actionErr error) error {
	if j == nil {
		return nil
	}

	errText := ""
	if actionErr != nil {
		errText = actionErr.Error()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := j.db.ExecContext(ctx, `
INSERT INTO sweep_action(id, run_id, workspace, app_name, app_url, decision, age_days, applied, error, recorded_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, uuid.NewString(), runID, workspaceName, appName, appURL, decision, ageDays, boolInt(applied), nullable(errText), now)
	if err != nil {
		return fmt.Errorf("record action: %w", err)
	}
	return nil
}

// Actions returns the recorded actions for a run, oldest first.
func (j *Journal) Actions(ctx context.Context, runID string) ([]Action, error) {
	if j == nil {
		return nil, nil
	}

	rows, err := j.db.QueryContext(ctx, `
SELECT id, run_id, workspace, app_name, app_url, decision, age_days, applied, error, recorded_at
FROM sweep_action WHERE run_id = ? ORDER BY recorded_at ASC, rowid ASC;
`, runID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var (
			a          Action
			applied    int
			errText    sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.Workspace, &a.AppName, &a.AppURL,
			&a.Decision, &a.AgeDays, &applied, &errText, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.Applied = applied != 0
		if errText.Valid {
			a.Error = errText.String
		}
		if ts, err := time.Parse(time.RFC3339Nano, recordedAt); err == nil {
			a.RecordedAt = ts
		}
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
