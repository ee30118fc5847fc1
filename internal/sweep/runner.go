// Package sweep drives the cleanup pass: per workspace, list apps, build the
// exception index, classify every app, and apply or log each decision.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quietops/appsweep/internal/audit"
	"github.com/quietops/appsweep/internal/config"
	"github.com/quietops/appsweep/internal/events"
	"github.com/quietops/appsweep/internal/exception"
	"github.com/quietops/appsweep/internal/lifecycle"
	"github.com/quietops/appsweep/internal/workspace"
)

// Event types published on the hub during a pass.
const (
	EventStarted         = "sweep.started"
	EventWorkspaceStart  = "sweep.workspace_started"
	EventDecision        = "sweep.decision"
	EventActionFailed    = "sweep.action_failed"
	EventWorkspaceFailed = "sweep.workspace_failed"
	EventWorkspaceDone   = "sweep.workspace_done"
	EventDone            = "sweep.done"
)

// ServiceFactory builds the apps API client for one workspace once its
// credential has been resolved.
type ServiceFactory func(ws config.Workspace, secret string) workspace.Service

// Options configures a single pass.
type Options struct {
	Workspaces     []config.Workspace
	ExceptionsPath string
	SecretScope    string
	Thresholds     lifecycle.Thresholds
	DryRun         bool
	Verbose        bool

	// Fingerprints of the input files, recorded in the audit journal.
	ConfigFingerprint     string
	ExceptionsFingerprint string
}

// Runner executes sweep passes. Workspaces are processed strictly
// sequentially; a failure in one never aborts the rest.
type Runner struct {
	secrets workspace.Secrets
	factory ServiceFactory
	hub     *events.Hub
	journal *audit.Journal
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Runner. journal may be nil (auditing disabled); hub may be
// nil when no event consumers exist.
func New(secrets workspace.Secrets, factory ServiceFactory, hub *events.Hub, journal *audit.Journal, logger *slog.Logger) *Runner {
	if hub == nil {
		hub = events.NewHub(256)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		secrets: secrets,
		factory: factory,
		hub:     hub,
		journal: journal,
		logger:  logger.With("component", "sweep"),
		now:     time.Now,
	}
}

// Run executes one pass over all configured workspaces.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	entries, err := exception.LoadFile(opts.ExceptionsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	runID, err := r.journal.BeginRun(ctx, opts.DryRun, opts.ConfigFingerprint, opts.ExceptionsFingerprint)
	if err != nil {
		return nil, err
	}
	logger := r.logger.With("run_id", runID)

	summary := &Summary{RunID: runID, DryRun: opts.DryRun}
	r.hub.Publish(EventStarted, map[string]any{
		"run_id":     runID,
		"dry_run":    opts.DryRun,
		"workspaces": len(opts.Workspaces),
	})
	logger.Info("sweep started",
		"workspaces", len(opts.Workspaces),
		"dry_run", opts.DryRun,
		"max_age_before_stop", opts.Thresholds.MaxAgeBeforeStop,
		"max_app_age", opts.Thresholds.MaxAppAge,
		"exception_entries", len(entries))

	for _, ws := range opts.Workspaces {
		wsSummary := r.sweepWorkspace(ctx, runID, ws, entries, opts, logger.With("workspace", ws.Name))
		summary.Workspaces = append(summary.Workspaces, wsSummary)
	}

	if err := r.journal.FinishRun(ctx, runID, len(summary.Workspaces), summary.FailedWorkspaces()); err != nil {
		logger.Error("failed to finalize audit record", "error", err)
	}

	totals := summary.Totals()
	r.hub.Publish(EventDone, map[string]any{
		"run_id": runID,
		"totals": totals,
	})
	logger.Info("sweep finished",
		"seen", totals.Seen,
		"stopped", totals.Stopped,
		"deleted", totals.Deleted,
		"skipped_excepted", totals.SkippedExcepted,
		"skipped_error", totals.SkippedError,
		"noop", totals.Noop,
		"workspaces_failed", summary.FailedWorkspaces())

	return summary, nil
}

func (r *Runner) sweepWorkspace(ctx context.Context, runID string, ws config.Workspace, entries []exception.Entry, opts Options, logger *slog.Logger) WorkspaceSummary {
	wsSummary := WorkspaceSummary{Name: ws.Name}
	r.hub.Publish(EventWorkspaceStart, map[string]any{
		"run_id":    runID,
		"workspace": ws.Name,
		"endpoint":  ws.Endpoint,
	})
	logger.Info("sweeping workspace", "endpoint", ws.Endpoint)

	fail := func(stage string, err error) WorkspaceSummary {
		wsSummary.Failed = true
		wsSummary.Error = fmt.Sprintf("%s: %v", stage, err)
		r.hub.Publish(EventWorkspaceFailed, map[string]any{
			"run_id":    runID,
			"workspace": ws.Name,
			"stage":     stage,
			"error":     err.Error(),
		})
		logger.Error("workspace failed, continuing with remaining workspaces",
			"stage", stage, "error", err)
		return wsSummary
	}

	secret, err := r.secrets.Get(opts.SecretScope, ws.ApplicationID)
	if err != nil {
		return fail("auth", err)
	}

	svc := r.factory(ws, secret)
	apps, err := svc.ListApps(ctx)
	if err != nil {
		return fail("list apps", err)
	}
	logger.Info("listed apps", "count", len(apps))

	now := r.now().UTC()
	index := exception.Build(entries, now, logger)
	for _, url := range index.Expired() {
		logger.Info("exception has expired", "app_url", url)
	}

	for _, app := range apps {
		wsSummary.Counts.Seen++
		r.applyDecision(ctx, runID, ws, svc, app, index, opts, &wsSummary.Counts, now, logger)
	}

	r.hub.Publish(EventWorkspaceDone, map[string]any{
		"run_id":    runID,
		"workspace": ws.Name,
		"counts":    wsSummary.Counts,
	})
	return wsSummary
}

func (r *Runner) applyDecision(ctx context.Context, runID string, ws config.Workspace, svc workspace.Service, app lifecycle.App, index *exception.Index, opts Options, counts *Counts, now time.Time, logger *slog.Logger) {
	result := lifecycle.Classify(app, index, opts.Thresholds, now)

	r.hub.Publish(EventDecision, map[string]any{
		"run_id":    runID,
		"workspace": ws.Name,
		"app":       app.Name,
		"app_url":   app.URL,
		"state":     app.State,
		"decision":  result.Decision,
		"age_days":  result.AgeDays,
		"reason":    result.Reason,
		"dry_run":   opts.DryRun,
	})

	decisionLog := logger.With(
		"app", app.Name,
		"app_url", app.URL,
		"state", app.State,
		"age_days", result.AgeDays,
		"decision", result.Decision,
		"reason", result.Reason,
		"dry_run", opts.DryRun,
	)

	switch result.Decision {
	case lifecycle.DecisionSkip:
		counts.SkippedExcepted++
		decisionLog.Info("skipping excepted app")
		return
	case lifecycle.DecisionNone:
		counts.Noop++
		if opts.Verbose {
			decisionLog.Info("no action for app")
		} else {
			decisionLog.Debug("no action for app")
		}
		return
	}

	var (
		action     func(context.Context, string) error
		counter    *int
		verb, done string
	)
	switch result.Decision {
	case lifecycle.DecisionStop:
		action, counter, verb, done = svc.StopApp, &counts.Stopped, "stop", "stopped app"
	case lifecycle.DecisionDelete:
		action, counter, verb, done = svc.DeleteApp, &counts.Deleted, "delete", "deleted app"
	}

	if opts.DryRun {
		*counter++
		decisionLog.Info("would " + verb + " app")
		if err := r.journal.RecordAction(ctx, runID, ws.Name, app.Name, app.URL, string(result.Decision), result.AgeDays, false, nil); err != nil {
			decisionLog.Error("failed to record audit action", "error", err)
		}
		return
	}

	actionErr := action(ctx, app.Name)
	if actionErr != nil {
		counts.SkippedError++
		r.hub.Publish(EventActionFailed, map[string]any{
			"run_id":    runID,
			"workspace": ws.Name,
			"app_url":   app.URL,
			"decision":  result.Decision,
			"error":     actionErr.Error(),
		})
		decisionLog.Error("failed to "+verb+" app, continuing", "error", actionErr)
	} else {
		*counter++
		decisionLog.Info(done)
	}

	if err := r.journal.RecordAction(ctx, runID, ws.Name, app.Name, app.URL, string(result.Decision), result.AgeDays, actionErr == nil, actionErr); err != nil {
		decisionLog.Error("failed to record audit action", "error", err)
	}
}
