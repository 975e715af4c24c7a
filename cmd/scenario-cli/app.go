// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/scenario-rs/scenario-rs-go/lib/clock"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario/engine"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario/schema"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario/variables"
	"github.com/scenario-rs/scenario-rs-go/lib/scenariodoc"
	"github.com/scenario-rs/scenario-rs-go/lib/transport"
)

// app wires load_config, set_required, the *_view operations, and
// execute onto the core's scenario.Scenario/variables.Store/
// engine.Engine, implementing SPEC_FULL.md §6's command-line surface.
type app struct {
	model   *schema.Scenario
	store   *variables.Store
	logger  *slog.Logger
	timeout time.Duration
}

// load implements load_config followed by a batch of set_required
// calls.
func load(path string, overrides map[string]string, logger *slog.Logger, timeout time.Duration) (*app, error) {
	tree, err := scenariodoc.Resolve(path)
	if err != nil {
		return nil, err
	}

	model, err := scenario.Build(tree)
	if err != nil {
		return nil, err
	}

	store := variables.NewStore(model.Credentials.Username, model.Required, model.Defined, clock.Real())
	for name, value := range overrides {
		if err := store.SetRequired(name, value); err != nil {
			return nil, err
		}
	}

	return &app{model: model, store: store, logger: logger, timeout: timeout}, nil
}

// printTasks implements tasks_view.
func (a *app) printTasks(w io.Writer) {
	names := make([]string, 0, len(a.model.Tasks))
	for name := range a.model.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		task := a.model.Tasks[name]
		fmt.Fprintf(w, "%s (%s): %s\n", name, task.Kind, task.Description)
	}
}

// printSteps implements steps_view.
func (a *app) printSteps(w io.Writer) {
	for index, step := range a.model.Steps {
		if len(step.OnFail) == 0 {
			fmt.Fprintf(w, "%d: %s\n", index, step.TaskRef)
			continue
		}
		fmt.Fprintf(w, "%d: %s (on-fail: %v)\n", index, step.TaskRef, step.OnFail)
	}
}

// printResolved implements resolved_view. It never prints the
// password: ResolvedVariables never contains it (invariant 6), so
// there is nothing to filter here — the guarantee lives in the
// variable store, not in this printer.
func (a *app) printResolved(w io.Writer) error {
	resolved, err := a.store.Resolve()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(resolved))
	for name := range resolved {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%s=%s\n", name, resolved[name])
	}
	return nil
}

// execute implements execute(cancellation_token), printing each event
// as it arrives on the bus. Returns (true, nil) on Done(Success),
// (false, nil) on Done(Failure), and (false, err) only for a
// before-Running failure.
func (a *app) execute(ctx context.Context, opts transport.Options, w io.Writer) (bool, error) {
	eng := engine.New(a.model, a.store, a.logger, a.timeout)

	opts.Username = a.model.Credentials.Username
	opts.Password = a.model.Credentials.Password
	opts.Host = a.model.Server.Host
	opts.Port = a.model.Server.Port

	opener := func() (engine.Session, error) {
		return transport.Open(opts)
	}

	done := make(chan error, 1)
	go func() { done <- eng.Execute(ctx, opener) }()

	for event := range eng.Events() {
		printEvent(w, event)
	}

	if err := <-done; err != nil {
		return false, err
	}
	return eng.Status() == engine.StatusDoneSuccess, nil
}

func printEvent(w io.Writer, event engine.Event) {
	switch typed := event.(type) {
	case engine.StepStateEvent:
		fmt.Fprintf(w, "[step %d/%d] %s\n", typed.StepIndex+1, typed.StepsTotal, describeState(typed.State))
	case engine.OnFailStepStateEvent:
		fmt.Fprintf(w, "[step %d/%d on-fail %d/%d] %s\n",
			typed.StepIndex+1, typed.StepsTotal, typed.OnFailStepIndex+1, typed.OnFailStepsTotal, describeState(typed.State))
	case engine.ExecutionStatusEvent:
		if typed.Running {
			fmt.Fprintln(w, "[scenario] running")
		} else {
			fmt.Fprintln(w, "[scenario] stopped")
		}
	case engine.LogMessageEvent:
		fmt.Fprintln(w, typed.Text)
	}
}

func describeState(state engine.StepState) string {
	switch typed := state.(type) {
	case engine.StepStarted:
		return "started"
	case engine.SftpCopyProgress:
		return fmt.Sprintf("progress %d/%d (%s -> %s)", typed.Current, typed.Total, typed.Source, typed.Destination)
	case engine.RemoteSudoOutput:
		return fmt.Sprintf("output: %s", typed.Output)
	case engine.StepCompleted:
		return "completed"
	case engine.StepFailed:
		return fmt.Sprintf("failed: %s", typed.Message)
	default:
		return "unknown"
	}
}
