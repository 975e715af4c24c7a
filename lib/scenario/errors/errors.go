// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors defines the error kind taxonomy used throughout the
// scenario engine: config loading, variable resolution, transport, and
// execution errors all carry one of the Kind values below so callers
// (CLI exit codes, event payloads) can switch on category without
// string matching.
package errors

import "fmt"

// Kind categorizes a scenario error. The taxonomy is fixed by the
// design: adding a new error condition means picking the existing kind
// it belongs to, not minting a new one, unless a genuinely new failure
// class is introduced.
type Kind string

const (
	// ConfigRead covers I/O failures while loading a scenario document
	// or one of its ancestors.
	ConfigRead Kind = "config_read"
	// ConfigParse covers syntax errors in the document format.
	ConfigParse Kind = "config_parse"
	// ConfigCycle covers a parent-reference cycle.
	ConfigCycle Kind = "config_cycle"
	// ConfigSchema covers structural validation failures building the
	// typed model from a merged document tree.
	ConfigSchema Kind = "config_schema"

	// VariableUnresolved covers a template referencing a name absent
	// from ResolvedVariables.
	VariableUnresolved Kind = "variable_unresolved"
	// VariableCycle covers a defined-variable dependency cycle.
	VariableCycle Kind = "variable_cycle"
	// PathInvalid covers a Path-typed required variable whose value
	// does not refer to an existing regular file.
	PathInvalid Kind = "path_invalid"

	// TransportConnect covers failure to establish the TCP/SSH
	// connection.
	TransportConnect Kind = "transport_connect"
	// TransportAuth covers SSH authentication failure.
	TransportAuth Kind = "transport_auth"

	// RemoteExitNonZero covers a RemoteSudo task whose remote command
	// exited with a non-zero status.
	RemoteExitNonZero Kind = "remote_exit_nonzero"
	// SftpFailed covers an SftpCopy task failing mid-transfer.
	SftpFailed Kind = "sftp_failed"
	// Timeout covers a per-command timeout being reached.
	Timeout Kind = "timeout"
	// Cancelled covers a step aborted by the caller's cancellation
	// token.
	Cancelled Kind = "cancelled"

	// CompensationFailed covers an on-fail (compensation) step itself
	// failing. It never recurses into further compensation.
	CompensationFailed Kind = "compensation_failed"
)

// Error is the single error type produced by the scenario engine. Kind
// identifies the taxonomy category; the wrapped error carries the
// specific detail. Use errors.Is/As against the standard Go errors
// package to inspect Cause; use Kind for coarse dispatch (e.g. picking
// a CLI exit code).
type Error struct {
	Kind  Kind
	Cause error
}

// New constructs an Error wrapping cause under the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf constructs an Error from a formatted message under the given
// kind.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same Kind. This lets
// callers write errors.Is(err, &errors.Error{Kind: errors.ConfigSchema})
// without constructing the full wrapped chain.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}
