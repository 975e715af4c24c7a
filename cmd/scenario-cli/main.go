// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// scenario-cli is the command-line front-end for the scenario engine:
// it loads a scenario document, applies --set overrides to required
// variables, and either prints an introspection view or executes the
// scenario, printing each engine event as it arrives.
//
// Exit codes: 0 success, 1 configuration error, 2 variable resolution
// error, 3 execution failure, 130 cancelled — per SPEC_FULL.md §6.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
	"github.com/scenario-rs/scenario-rs-go/lib/transport"
)

const (
	exitSuccess       = 0
	exitConfigError   = 1
	exitVariableError = 2
	exitExecutionFail = 3
	exitCancelled     = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		scenarioPath string
		setFlags     []string
		showResolved bool
		showTasks    bool
		showSteps    bool
		timeoutFlag  string
		logFormat    string
	)

	flagSet := pflag.NewFlagSet("scenario-cli", pflag.ContinueOnError)
	flagSet.StringVar(&scenarioPath, "scenario", "", "path to the scenario document (required)")
	flagSet.StringArrayVar(&setFlags, "set", nil, "set a required variable: name=value (repeatable)")
	flagSet.BoolVar(&showResolved, "show-resolved", false, "print resolved variables and exit")
	flagSet.BoolVar(&showTasks, "show-tasks", false, "print the task catalog and exit")
	flagSet.BoolVar(&showSteps, "show-steps", false, "print the step list and exit")
	flagSet.StringVar(&timeoutFlag, "timeout", "", "per-command timeout, e.g. 30s (default unbounded)")
	flagSet.StringVar(&logFormat, "log-format", "text", "log format: text or json")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return exitSuccess
		}
		fmt.Fprintf(os.Stderr, "[scenario] fatal: %v\n", err)
		return exitConfigError
	}

	logger := newLogger(logFormat)

	if scenarioPath == "" {
		fmt.Fprintln(os.Stderr, "[scenario] fatal: --scenario is required")
		return exitConfigError
	}

	timeout, err := parseTimeout(timeoutFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[scenario] fatal: %v\n", err)
		return exitConfigError
	}

	overrides, err := parseSetFlags(setFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[scenario] fatal: %v\n", err)
		return exitConfigError
	}

	app, err := load(scenarioPath, overrides, logger, timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[scenario] fatal: %v\n", err)
		return exitCodeFor(err)
	}

	if showTasks {
		app.printTasks(os.Stdout)
		return exitSuccess
	}
	if showSteps {
		app.printSteps(os.Stdout)
		return exitSuccess
	}
	if showResolved {
		if err := app.printResolved(os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "[scenario] fatal: %v\n", err)
			return exitCodeFor(err)
		}
		return exitSuccess
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	knownHostsPath := filepath.Join(defaultStateDir(), "known_hosts")
	opts := transport.Options{
		KnownHostsPath: knownHostsPath,
		ConnectTimeout: 10 * time.Second,
	}

	succeeded, err := app.execute(ctx, opts, os.Stdout)
	if ctx.Err() != nil {
		return exitCancelled
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "[scenario] fatal: %v\n", err)
		return exitCodeFor(err)
	}
	if !succeeded {
		return exitExecutionFail
	}
	return exitSuccess
}

func newLogger(format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseTimeout(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid --timeout %q: %w", raw, err)
	}
	return duration, nil
}

func parseSetFlags(raw []string) (map[string]string, error) {
	overrides := make(map[string]string, len(raw))
	for _, entry := range raw {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", entry)
		}
		overrides[name] = value
	}
	return overrides, nil
}

func exitCodeFor(err error) int {
	scenErr, ok := err.(*scenarioerrors.Error)
	if !ok {
		return exitConfigError
	}
	switch scenErr.Kind {
	case scenarioerrors.ConfigRead, scenarioerrors.ConfigParse, scenarioerrors.ConfigCycle, scenarioerrors.ConfigSchema:
		return exitConfigError
	case scenarioerrors.VariableUnresolved, scenarioerrors.VariableCycle, scenarioerrors.PathInvalid:
		return exitVariableError
	case scenarioerrors.Cancelled:
		return exitCancelled
	default:
		return exitExecutionFail
	}
}

func defaultStateDir() string {
	if dir := os.Getenv("SCENARIO_STATE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scenario-rs"
	}
	return filepath.Join(home, ".scenario-rs")
}
