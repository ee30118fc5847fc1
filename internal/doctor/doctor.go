// Package doctor validates appsweep inputs before a sweep touches anything:
// workspace config, exception file, and secret resolution.
package doctor

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quietops/appsweep/internal/config"
	"github.com/quietops/appsweep/internal/exception"
	"github.com/quietops/appsweep/internal/workspace"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a sweep's input files and credential setup.
type Doctor struct {
	workspacesPath string
	exceptionsPath string
	secretScope    string
	secrets        workspace.Secrets
	now            func() time.Time
}

// New creates a Doctor. secrets may be nil to skip credential checks.
func New(workspacesPath, exceptionsPath, secretScope string, secrets workspace.Secrets) *Doctor {
	return &Doctor{
		workspacesPath: workspacesPath,
		exceptionsPath: exceptionsPath,
		secretScope:    secretScope,
		secrets:        secrets,
		now:            time.Now,
	}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	workspaces := d.checkWorkspaces(r)
	d.checkExceptions(r)
	d.checkSecrets(r, workspaces)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// checkWorkspaces loads the workspace config and surfaces load errors.
func (d *Doctor) checkWorkspaces(r *Result) []config.Workspace {
	workspaces, err := config.LoadWorkspaces(d.workspacesPath)
	if err != nil {
		d.addError(r, "workspaces", d.workspacesPath, err.Error())
		return nil
	}
	return workspaces
}

// checkExceptions parses the exception file and flags malformed or already
// lapsed entries. Both are warnings: the sweep tolerates them at run time.
func (d *Doctor) checkExceptions(r *Result) {
	entries, err := exception.LoadFile(d.exceptionsPath)
	if err != nil {
		d.addError(r, "exceptions", d.exceptionsPath, err.Error())
		return
	}
	if len(entries) == 0 {
		d.addWarning(r, "exceptions", d.exceptionsPath, "no exception entries found")
		return
	}

	today := d.now().UTC().Truncate(24 * time.Hour)
	for i, e := range entries {
		field := fmt.Sprintf("entries[%d]", i)
		if e.AppURL == "" {
			d.addError(r, "exceptions", field, "entry has no app_url")
			continue
		}
		if e.Expiry == "" {
			continue
		}
		expiry, err := time.ParseInLocation("2006-01-02", e.Expiry, time.UTC)
		if err != nil {
			d.addWarning(r, "exceptions", field,
				fmt.Sprintf("expiry %q is not YYYY-MM-DD; the sweep will treat it as expired", e.Expiry))
			continue
		}
		if expiry.Before(today) {
			d.addWarning(r, "exceptions", field,
				fmt.Sprintf("exception for %s expired on %s", e.AppURL, e.Expiry))
		}
	}
}

// checkSecrets verifies every workspace's credential resolves.
func (d *Doctor) checkSecrets(r *Result, workspaces []config.Workspace) {
	if d.secrets == nil || len(workspaces) == 0 {
		return
	}
	if d.secretScope == "" {
		d.addError(r, "secrets", "secret-scope", "secret scope is required for credential checks")
		return
	}

	for _, ws := range workspaces {
		if _, err := d.secrets.Get(d.secretScope, ws.ApplicationID); err != nil {
			d.addError(r, "secrets", fmt.Sprintf("workspace %q", ws.Name), err.Error())
		}
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
