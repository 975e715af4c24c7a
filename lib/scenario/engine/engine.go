// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario/schema"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario/variables"
	"github.com/scenario-rs/scenario-rs-go/lib/transport"
)

// eventBufferSize bounds the event channel. Sized generously above the
// largest anticipated single-chunk burst (a handful of progress events
// between consumer polls) per spec.md §4.H.
const eventBufferSize = 256

// Status is the engine's global state, per spec.md §4.G:
// Idle → Preparing → Running ⇄ Compensating → Done(Success|Failure).
type Status int

const (
	StatusIdle Status = iota
	StatusPreparing
	StatusRunning
	StatusCompensating
	StatusDoneSuccess
	StatusDoneFailure
)

// Session is the transport capability Execute needs: running a
// privileged remote command with streaming output, uploading a file
// with chunked progress, and closing the connection.
// *transport.Session satisfies this interface; tests substitute a fake
// to exercise Execute without a live SSH server.
type Session interface {
	ExecSudo(ctx context.Context, password, command string, onChunk func(transport.OutputChunk)) error
	SftpPut(ctx context.Context, localPath, remotePath string, onProgress func(transport.Progress)) error
	Close() error
}

// Engine drives one scenario execution. It is single-use: construct a
// new Engine per Execute call.
type Engine struct {
	scenario *schema.Scenario
	store    *variables.Store
	logger   *slog.Logger
	timeout  time.Duration // per-command timeout; zero means unbounded

	status Status
	events chan Event
}

// New constructs an Engine for scenario, backed by store for variable
// resolution. timeout bounds each exec_sudo call (zero means
// unbounded, per spec.md §5). logger must never be passed the
// credentials password — the engine never logs it regardless.
func New(scenarioModel *schema.Scenario, store *variables.Store, logger *slog.Logger, timeout time.Duration) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		scenario: scenarioModel,
		store:    store,
		logger:   logger,
		timeout:  timeout,
		status:   StatusIdle,
		events:   make(chan Event, eventBufferSize),
	}
}

// Events returns the event channel. The engine is the sole producer;
// it closes the channel when Execute returns.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Status returns the engine's current global state.
func (e *Engine) Status() Status {
	return e.status
}

// Execute drives the scenario to completion: Preparing (resolve
// variables, validate paths, open transport via opener), then Running
// (iterate steps in order), emitting events throughout. ctx is checked
// between chunks and between steps for cancellation, per spec.md §5.
//
// Execute returns an error only for failures before Running (config,
// variable resolution, transport); per-step failures are reported as
// StepFailed events on the bus, never as a returned error, per spec.md
// §7's propagation policy.
func (e *Engine) Execute(ctx context.Context, opener func() (Session, error)) error {
	defer close(e.events)

	e.status = StatusPreparing
	e.publish(ExecutionStatusEvent{Running: true})

	resolved, err := e.store.Resolve()
	if err != nil {
		e.status = StatusDoneFailure
		e.publish(ExecutionStatusEvent{Running: false})
		return err
	}
	if err := e.store.ValidatePaths(); err != nil {
		e.status = StatusDoneFailure
		e.publish(ExecutionStatusEvent{Running: false})
		return err
	}

	session, err := opener()
	if err != nil {
		e.status = StatusDoneFailure
		e.publish(ExecutionStatusEvent{Running: false})
		return err
	}
	defer session.Close()

	e.status = StatusRunning
	total := len(e.scenario.Steps)

	for index, step := range e.scenario.Steps {
		if ctx.Err() != nil {
			e.publish(StepStateEvent{StepIndex: index, StepsTotal: total, State: StepStarted{}})
			e.publish(StepStateEvent{StepIndex: index, StepsTotal: total, State: StepFailed{Message: "cancelled"}})
			e.runCompensation(ctx, session, resolved, index, total, step.OnFail)
			e.status = StatusDoneFailure
			e.publish(ExecutionStatusEvent{Running: false})
			return nil
		}

		e.publish(StepStateEvent{StepIndex: index, StepsTotal: total, State: StepStarted{}})
		started := time.Now()

		task, ok := e.scenario.Tasks[step.TaskRef]
		if !ok {
			// Invariant 1 guarantees this cannot happen for a scenario
			// that built successfully; defensive only.
			e.publish(StepStateEvent{StepIndex: index, StepsTotal: total, State: StepFailed{Message: fmt.Sprintf("unknown task %q", step.TaskRef)}})
			e.status = StatusDoneFailure
			e.publish(ExecutionStatusEvent{Running: false})
			return nil
		}

		runErr := e.runTask(ctx, session, resolved, task, func(state StepState) {
			e.publish(StepStateEvent{StepIndex: index, StepsTotal: total, State: state})
		})

		if runErr != nil {
			e.status = StatusCompensating
			e.publish(StepStateEvent{StepIndex: index, StepsTotal: total, State: StepFailed{Message: taskErrorMessage(task, resolved, runErr)}})
			e.publish(LogMessageEvent{Text: fmt.Sprintf("step %d/%d failed after %s", index+1, total, formatStepDuration(time.Since(started)))})
			e.runCompensation(ctx, session, resolved, index, total, step.OnFail)
			e.status = StatusDoneFailure
			e.publish(ExecutionStatusEvent{Running: false})
			return nil
		}

		e.publish(StepStateEvent{StepIndex: index, StepsTotal: total, State: StepCompleted{}})
		e.publish(LogMessageEvent{Text: fmt.Sprintf("step %d/%d completed in %s", index+1, total, formatStepDuration(time.Since(started)))})
	}

	e.status = StatusDoneSuccess
	e.publish(ExecutionStatusEvent{Running: false})
	return nil
}

// runCompensation runs stepIndex's on-fail task list in order. A
// compensation failure is reported on the on-fail stream but does not
// trigger further compensation, per spec.md §4.G/§7.
func (e *Engine) runCompensation(ctx context.Context, session Session, resolved variables.Resolved, stepIndex, stepsTotal int, onFail []string) {
	onFailTotal := len(onFail)
	for onFailIndex, taskName := range onFail {
		e.publish(OnFailStepStateEvent{StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, State: StepStarted{}})
		started := time.Now()

		task, ok := e.scenario.Tasks[taskName]
		if !ok {
			e.publish(OnFailStepStateEvent{StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, State: StepFailed{Message: fmt.Sprintf("unknown task %q", taskName)}})
			continue
		}

		runErr := e.runTask(ctx, session, resolved, task, func(state StepState) {
			e.publish(OnFailStepStateEvent{StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, State: state})
		})

		if runErr != nil {
			e.publish(OnFailStepStateEvent{StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, State: StepFailed{Message: taskErrorMessage(task, resolved, runErr)}})
			e.publish(LogMessageEvent{Text: fmt.Sprintf("on-fail step %d/%d failed after %s", onFailIndex+1, onFailTotal, formatStepDuration(time.Since(started)))})
			continue
		}
		e.publish(OnFailStepStateEvent{StepIndex: stepIndex, StepsTotal: stepsTotal, OnFailStepIndex: onFailIndex, OnFailStepsTotal: onFailTotal, State: StepCompleted{}})
		e.publish(LogMessageEvent{Text: fmt.Sprintf("on-fail step %d/%d completed in %s", onFailIndex+1, onFailTotal, formatStepDuration(time.Since(started)))})
	}
}

// runTask dispatches task to the right transport primitive, forwarding
// progress via emit. Returns a non-nil error (never a panic, per
// spec.md §7) on any failure.
func (e *Engine) runTask(ctx context.Context, session Session, resolved variables.Resolved, task schema.Task, emit func(StepState)) error {
	taskCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	switch task.Kind {
	case schema.TaskRemoteSudo:
		command, err := variables.Expand(task.Command, resolved)
		if err != nil {
			return err
		}

		var output string
		err = session.ExecSudo(taskCtx, e.scenario.Credentials.Password, command, func(chunk transport.OutputChunk) {
			output += chunk.Data
			emit(RemoteSudoOutput{Command: command, Output: output})
		})
		if err != nil {
			return e.withTimeoutKind(taskCtx, err)
		}
		return nil

	case schema.TaskSftpCopy:
		source, err := variables.Expand(task.SourcePath, resolved)
		if err != nil {
			return err
		}
		destination, err := variables.Expand(task.DestinationPath, resolved)
		if err != nil {
			return err
		}

		err = session.SftpPut(taskCtx, source, destination, func(progress transport.Progress) {
			emit(SftpCopyProgress{Current: progress.Current, Total: progress.Total, Source: source, Destination: destination})
		})
		if err != nil {
			return e.withTimeoutKind(taskCtx, err)
		}
		return nil

	default:
		return scenarioerrors.Newf(scenarioerrors.ConfigSchema, "unknown task kind %q", task.Kind)
	}
}

// withTimeoutKind reclassifies err as Timeout when taskCtx's deadline,
// not the caller's cancellation, is what ended the operation.
func (e *Engine) withTimeoutKind(taskCtx context.Context, err error) error {
	if taskCtx.Err() == context.DeadlineExceeded {
		return scenarioerrors.New(scenarioerrors.Timeout, err)
	}
	return err
}

// taskErrorMessage expands task.ErrorMessage against resolved when
// set, falling back to the unexpanded template (or err's own message
// if ErrorMessage is empty) if expansion itself fails. A cancellation
// always reports "cancelled", matching the between-steps check in
// Execute, regardless of whether the task defines its own error_message.
// Per spec.md §4.G, cancellation is reported uniformly however it is
// observed.
func taskErrorMessage(task schema.Task, resolved variables.Resolved, err error) string {
	if scenErr, ok := err.(*scenarioerrors.Error); ok && scenErr.Kind == scenarioerrors.Cancelled {
		return "cancelled"
	}
	if task.ErrorMessage == "" {
		return err.Error()
	}
	expanded, expandErr := variables.Expand(task.ErrorMessage, resolved)
	if expandErr != nil {
		return task.ErrorMessage
	}
	return expanded
}

// formatStepDuration formats a duration for the LogMessageEvent text
// the CLI prints alongside each step's typed event, matching the
// teacher's %.1fs human-readable style.
func formatStepDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func (e *Engine) publish(event Event) {
	e.events <- event
	e.logger.Debug("scenario event", "event", fmt.Sprintf("%T", event))
}
