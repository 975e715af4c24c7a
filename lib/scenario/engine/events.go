// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the execution engine (component G) and
// event bus (component H): iterating steps, dispatching each task kind
// to lib/transport, running on-fail compensation, and emitting a
// typed, totally-ordered event stream, per SPEC_FULL.md §4.G/§4.H.
package engine

// Event is the sealed interface implemented by every event type on the
// bus, per spec.md §6's taxonomy: StepStateEvent, OnFailStepStateEvent,
// ExecutionStatusEvent, LogMessageEvent. The unexported method closes
// the set, following the tagged-union-via-closed-interface idiom used
// implicitly across lib/schema's event types in the teacher repo.
type Event interface {
	isEvent()
}

// StepState discriminates the state carried by a StepStateEvent or
// OnFailStepStateEvent.
type StepState interface {
	isStepState()
}

// StepStarted marks the beginning of a step's (or on-fail step's)
// execution.
type StepStarted struct{}

func (StepStarted) isStepState() {}

// SftpCopyProgress reports byte-level upload progress for a running
// SftpCopy task.
type SftpCopyProgress struct {
	Current     int64
	Total       int64
	Source      string
	Destination string
}

func (SftpCopyProgress) isStepState() {}

// RemoteSudoOutput reports one output chunk from a running RemoteSudo
// task. Output accumulates the running capture, per spec.md §4.G.
type RemoteSudoOutput struct {
	Command string
	Output  string
}

func (RemoteSudoOutput) isStepState() {}

// StepCompleted marks successful completion of a step (or on-fail
// step).
type StepCompleted struct{}

func (StepCompleted) isStepState() {}

// StepFailed marks failure of a step (or on-fail step).
type StepFailed struct {
	Message string
}

func (StepFailed) isStepState() {}

// StepStateEvent reports the state of a primary step, per spec.md §6.
type StepStateEvent struct {
	StepIndex  int
	StepsTotal int
	State      StepState
}

func (StepStateEvent) isEvent() {}

// OnFailStepStateEvent reports the state of a compensation (on-fail)
// step, carrying both the owning step's index and the on-fail step's
// own index within that step's compensation list.
type OnFailStepStateEvent struct {
	StepIndex        int
	StepsTotal       int
	OnFailStepIndex  int
	OnFailStepsTotal int
	State            StepState
}

func (OnFailStepStateEvent) isEvent() {}

// ExecutionStatusEvent reports the overall engine running/stopped
// state.
type ExecutionStatusEvent struct {
	Running bool
}

func (ExecutionStatusEvent) isEvent() {}

// LogMessageEvent carries a free-text log line (e.g. per-step timing,
// the CLI's own progress narration) riding on the same bus as the
// typed state events, per spec.md §6.
type LogMessageEvent struct {
	Text string
}

func (LogMessageEvent) isEvent() {}
