package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quietops/appsweep/internal/audit"
	"github.com/quietops/appsweep/internal/config"
	"github.com/quietops/appsweep/internal/doctor"
	"github.com/quietops/appsweep/internal/events"
	"github.com/quietops/appsweep/internal/exception"
	"github.com/quietops/appsweep/internal/lifecycle"
	"github.com/quietops/appsweep/internal/lock"
	"github.com/quietops/appsweep/internal/log"
	"github.com/quietops/appsweep/internal/storage"
	"github.com/quietops/appsweep/internal/sweep"
	"github.com/quietops/appsweep/internal/workspace"
)

const version = "0.2.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "sweep":
		os.Exit(runSweepNoun(args))
	case "config":
		os.Exit(runConfigNoun(args))
	case "exceptions":
		os.Exit(runExceptionsNoun(args))

	case "run": // Root alias for sweep run
		os.Exit(runSweepOnce(args))
	case "version":
		fmt.Printf("appsweep version %s\n", version)
		os.Exit(0)
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`appsweep - Scheduled lifecycle cleanup for workspace apps

Usage:
  appsweep <noun> <action> [flags]

Sweep Commands:
  sweep run         Run one cleanup pass over all workspaces
  sweep start       Run passes on an interval in the foreground

Config Commands:
  config check      Validate workspace config, exceptions, and secrets

Exception Commands:
  exceptions list   Show active and expired exception entries

General:
  version           Show version information
  help              Show this help message

Use 'appsweep <noun> help' for resource-specific flags.
`)
}

// --- NOUN DISPATCHERS ---

func runSweepNoun(args []string) int {
	if len(args) < 1 {
		printSweepNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printSweepNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "run":
		if hasHelpFlag(actionArgs) {
			printSweepRunHelp()
			return 0
		}
		return runSweepOnce(actionArgs)
	case "start":
		if hasHelpFlag(actionArgs) {
			printSweepStartHelp()
			return 0
		}
		return runSweepInterval(actionArgs)
	case "help":
		printSweepNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown sweep action: %s\n", action)
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printConfigNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "check":
		if hasHelpFlag(actionArgs) {
			printConfigCheckHelp()
			return 0
		}
		return runConfigCheck(actionArgs)
	case "help":
		printConfigNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown config action: %s\n", action)
		return 1
	}
}

func runExceptionsNoun(args []string) int {
	if len(args) < 1 {
		printExceptionsNounHelp(os.Stderr)
		return 1
	}
	if isHelpToken(args[0]) {
		printExceptionsNounHelp(os.Stdout)
		return 0
	}

	action := args[0]
	actionArgs := args[1:]

	switch action {
	case "list":
		if hasHelpFlag(actionArgs) {
			printExceptionsListHelp()
			return 0
		}
		return runExceptionsList(actionArgs)
	case "help":
		printExceptionsNounHelp(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown exceptions action: %s\n", action)
		return 1
	}
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return true
		}
	}
	return false
}

// --- FLAGS ---

// sweepFlags are the shared flags for sweep run/start.
type sweepFlags struct {
	workspacesPath string
	exceptionsPath string
	secretScope    string
	secretsFile    string
	auditDB        string
	maxAppAge      int
	maxStopAge     int
	dryRun         bool
	verbose        bool
	jsonOut        bool
	logLevel       string
}

func registerSweepFlags(fs *flag.FlagSet, f *sweepFlags) {
	fs.StringVar(&f.workspacesPath, "workspaces", "", "JSON/YAML file with workspace configurations")
	fs.StringVar(&f.workspacesPath, "c", "", "Shorthand for --workspaces")
	fs.StringVar(&f.exceptionsPath, "exceptions", "apps_exception.json", "JSON file with app exceptions")
	fs.StringVar(&f.exceptionsPath, "e", "apps_exception.json", "Shorthand for --exceptions")
	fs.StringVar(&f.secretScope, "secret-scope", "", "Secret scope name for workspace credentials")
	fs.StringVar(&f.secretsFile, "secrets-file", "", "Optional YAML secrets file (scope -> key -> value)")
	fs.StringVar(&f.auditDB, "audit-db", "", "Optional SQLite file recording runs and actions")
	fs.IntVar(&f.maxAppAge, "max-app-age", 7, "Maximum age in days before a stopped app is deleted")
	fs.IntVar(&f.maxAppAge, "a", 7, "Shorthand for --max-app-age")
	fs.IntVar(&f.maxStopAge, "max-age-before-stop", 3, "Maximum age in days before an active app is stopped")
	fs.IntVar(&f.maxStopAge, "s", 3, "Shorthand for --max-age-before-stop")
	fs.BoolVar(&f.dryRun, "dry-run", false, "Compute and log decisions without stopping or deleting")
	fs.BoolVar(&f.dryRun, "d", false, "Shorthand for --dry-run")
	fs.BoolVar(&f.verbose, "verbose", false, "Log no-op decisions at info level")
	fs.BoolVar(&f.verbose, "v", false, "Shorthand for --verbose")
	fs.BoolVar(&f.jsonOut, "json", false, "Print the run summary as JSON")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// buildRun resolves flags into a runner and options. Returns a non-nil
// cleanup func that must run after the sweep.
func buildRun(f *sweepFlags) (*sweep.Runner, sweep.Options, func(), error) {
	noop := func() {}
	if f.workspacesPath == "" {
		return nil, sweep.Options{}, noop, fmt.Errorf("--workspaces is required")
	}
	if f.secretScope == "" {
		return nil, sweep.Options{}, noop, fmt.Errorf("--secret-scope is required")
	}

	workspaces, err := config.LoadWorkspaces(f.workspacesPath)
	if err != nil {
		return nil, sweep.Options{}, noop, err
	}

	configFP, err := config.Fingerprint(f.workspacesPath)
	if err != nil {
		return nil, sweep.Options{}, noop, err
	}
	exceptionsFP, err := config.FingerprintOrEmpty(f.exceptionsPath)
	if err != nil {
		return nil, sweep.Options{}, noop, err
	}

	secrets := workspace.ChainSecrets{workspace.EnvSecrets{}}
	if f.secretsFile != "" {
		fileSecrets, err := workspace.LoadFileSecrets(f.secretsFile)
		if err != nil {
			return nil, sweep.Options{}, noop, err
		}
		secrets = append(secrets, fileSecrets)
	}

	var journal *audit.Journal
	cleanup := noop
	if f.auditDB != "" {
		db, err := storage.OpenSQLite(context.Background(), f.auditDB)
		if err != nil {
			return nil, sweep.Options{}, noop, err
		}
		journal = audit.New(db)
		cleanup = func() { _ = db.Close() }
	}

	factory := func(ws config.Workspace, secret string) workspace.Service {
		return workspace.NewClient(ws.Endpoint, ws.ApplicationID, secret, log.WithWorkspace(ws.Name))
	}

	runner := sweep.New(secrets, factory, events.NewHub(256), journal, log.Get())
	opts := sweep.Options{
		Workspaces:            workspaces,
		ExceptionsPath:        f.exceptionsPath,
		SecretScope:           f.secretScope,
		Thresholds:            lifecycle.Thresholds{MaxAgeBeforeStop: f.maxStopAge, MaxAppAge: f.maxAppAge},
		DryRun:                f.dryRun,
		Verbose:               f.verbose,
		ConfigFingerprint:     configFP,
		ExceptionsFingerprint: exceptionsFP,
	}
	return runner, opts, cleanup, nil
}

// --- ACTION IMPLEMENTATIONS ---

func runSweepOnce(args []string) int {
	var f sweepFlags
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	registerSweepFlags(fs, &f)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	log.Setup(f.logLevel)
	logger := log.WithComponent("main")
	logger.Info("appsweep starting", "version", version, "workspaces", f.workspacesPath, "dry_run", f.dryRun)

	runner, opts, cleanup, err := buildRun(&f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := runner.Run(ctx, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sweep failed: %v\n", err)
		return 1
	}

	if f.jsonOut {
		out, err := sweep.FormatJSON(summary)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Summary format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	} else {
		fmt.Print(sweep.FormatHuman(summary))
	}

	// A completed run exits zero even when some workspaces failed.
	return 0
}

func runSweepInterval(args []string) int {
	var f sweepFlags
	var every time.Duration
	var pidFile string

	fs := flag.NewFlagSet("start", flag.ExitOnError)
	registerSweepFlags(fs, &f)
	fs.DurationVar(&every, "every", 24*time.Hour, "Interval between sweep passes")
	fs.StringVar(&pidFile, "pid-file", "appsweep.pid", "PID lock file preventing overlapping instances")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	log.Setup(f.logLevel)
	logger := log.WithComponent("main")
	logger.Info("appsweep starting", "version", version, "every", every.String())

	pidLock, err := lock.Acquire(pidFile)
	if err != nil {
		logger.Error("failed to acquire PID lock (another instance may be running)", "path", pidFile, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	runner, opts, cleanup, err := buildRun(&f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Setup failed: %v\n", err)
		return 1
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := runner.StartInterval(ctx, every, opts); err != nil && err != context.Canceled {
		logger.Error("interval sweep failed", "error", err)
		return 1
	}

	logger.Info("appsweep stopped")
	return 0
}

func runConfigCheck(args []string) int {
	var f sweepFlags
	var format string
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	registerSweepFlags(fs, &f)
	fs.StringVar(&format, "format", "human", "Output format (human, json)")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}
	if f.jsonOut {
		format = "json"
	}
	if f.workspacesPath == "" {
		fmt.Fprintf(os.Stderr, "--workspaces is required\n")
		return 1
	}

	secrets := workspace.ChainSecrets{workspace.EnvSecrets{}}
	if f.secretsFile != "" {
		fileSecrets, err := workspace.LoadFileSecrets(f.secretsFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Secrets file error: %v\n", err)
			return 1
		}
		secrets = append(secrets, fileSecrets)
	}

	doc := doctor.New(f.workspacesPath, f.exceptionsPath, f.secretScope, secrets)
	result := doc.Validate()

	switch format {
	case "json":
		out, err := doctor.FormatJSON(result)
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(out)
	default:
		fmt.Print(doctor.FormatHuman(result))
	}

	if !result.Valid {
		return 1
	}
	return 0
}

func runExceptionsList(args []string) int {
	var exceptionsPath string
	var jsonOut bool
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	fs.StringVar(&exceptionsPath, "exceptions", "apps_exception.json", "JSON file with app exceptions")
	fs.StringVar(&exceptionsPath, "e", "apps_exception.json", "Shorthand for --exceptions")
	fs.BoolVar(&jsonOut, "json", false, "Output in structured JSON format")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	entries, err := exception.LoadFile(exceptionsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Load error: %v\n", err)
		return 1
	}

	idx := exception.Build(entries, time.Now().UTC(), log.WithComponent("exceptions"))

	if jsonOut {
		out := map[string]any{
			"entries": entries,
			"active":  idx.ActiveCount(),
			"expired": idx.Expired(),
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "JSON format error: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("%d exception entries (%d active)\n", len(entries), idx.ActiveCount())
	for _, e := range entries {
		expiry := e.Expiry
		if expiry == "" {
			expiry = "never"
		}
		fmt.Printf("  %s (expires: %s)\n", e.AppURL, expiry)
	}
	if expired := idx.Expired(); len(expired) > 0 {
		fmt.Printf("Expired:\n")
		for _, url := range expired {
			fmt.Printf("  %s\n", url)
		}
	}
	return 0
}

// --- HELP TEXT ---

func printSweepNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: appsweep sweep <action> [flags]")
	fmt.Fprintln(w, "Actions: run, start")
}

func printConfigNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: appsweep config <action> [flags]")
	fmt.Fprintln(w, "Actions: check")
}

func printExceptionsNounHelp(w *os.File) {
	fmt.Fprintln(w, "Usage: appsweep exceptions <action> [flags]")
	fmt.Fprintln(w, "Actions: list")
}

func printSweepRunHelp() {
	fmt.Println("Usage: appsweep sweep run -c PATH --secret-scope NAME [-e PATH] [-d] [-a DAYS] [-s DAYS] [--audit-db PATH] [--json]")
	fmt.Println("Run one cleanup pass over all configured workspaces.")
}

func printSweepStartHelp() {
	fmt.Println("Usage: appsweep sweep start -c PATH --secret-scope NAME [--every 24h] [--pid-file PATH] [sweep run flags]")
	fmt.Println("Run cleanup passes on an interval in the foreground.")
}

func printConfigCheckHelp() {
	fmt.Println("Usage: appsweep config check -c PATH [-e PATH] [--secret-scope NAME] [--format human|json]")
	fmt.Println("Validate workspace config, exception file, and secret resolution.")
}

func printExceptionsListHelp() {
	fmt.Println("Usage: appsweep exceptions list [-e PATH] [--json]")
	fmt.Println("Show exception entries with their expiry status.")
}
