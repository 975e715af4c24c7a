// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the typed scenario model: Credentials, Server,
// variable declarations, tasks, and steps. These types are the output
// of the scenario model builder (lib/scenario) and the input to the
// variable store and execution engine.
package schema

// Credentials holds the SSH username (published into resolved
// variables as "username") and an optional password. The password is
// never placed into ResolvedVariables and must never be logged.
type Credentials struct {
	Username string
	Password string // empty means authenticate via the local SSH agent
}

// Server identifies the remote host.
type Server struct {
	Host string
	Port uint16 // 1..65535; callers default to 22 when unset in the document
}

// VariableKind discriminates a VariableDeclaration.
type VariableKind string

const (
	VariableString    VariableKind = "String"
	VariablePath      VariableKind = "Path"
	VariableTimestamp VariableKind = "Timestamp"
)

// Timezone selects the clock basis for a Timestamp declaration.
type Timezone string

const (
	TimezoneLocal Timezone = "local"
	TimezoneUTC   Timezone = "utc"
)

// VariableDeclaration is a required-variable entry: a tagged variant
// keyed by Kind. String and Path declarations carry only a label and a
// mutable Value; Timestamp declarations additionally carry the format
// string used to compute Value at resolution time and the Timezone
// basis.
type VariableDeclaration struct {
	Name     string
	Kind     VariableKind
	Label    string
	ReadOnly bool

	// Format is the time-layout string for Timestamp declarations
	// (e.g. "2006-01-02T15:04:05"), ignored otherwise.
	Format string
	// Timezone selects local or UTC time for Timestamp declarations.
	// Defaults to TimezoneLocal, matching the original implementation's
	// behavior. Ignored for String and Path.
	Timezone Timezone

	// Value is the current user-supplied (or document-persisted) value.
	// Mutated only through variables.Store.SetRequired. An empty
	// Timestamp value is computed by each Store.Resolve call into the
	// resolved map; it is not written back here.
	Value string
}

// DefaultReadOnly reports the read_only default for a given kind, used
// when the document omits the field: false for String/Path, true for
// Timestamp.
func DefaultReadOnly(kind VariableKind) bool {
	return kind == VariableTimestamp
}

// DefinedVariables maps a defined-variable name to its template
// string, which may reference other variables (including required
// ones and "username").
type DefinedVariables map[string]string

// TaskKind discriminates a Task.
type TaskKind string

const (
	TaskRemoteSudo TaskKind = "RemoteSudo"
	TaskSftpCopy   TaskKind = "SftpCopy"
)

// Task is a tagged variant keyed by Kind. Fields irrelevant to the
// kind are left zero.
type Task struct {
	Name         string
	Kind         TaskKind
	Description  string
	ErrorMessage string // template

	// RemoteSudo fields.
	Command string // template

	// SftpCopy fields.
	SourcePath      string // template
	DestinationPath string // template
}

// TaskCatalog maps a task name to its definition.
type TaskCatalog map[string]Task

// Step references one primary task plus an ordered on-fail
// (compensation) task list. OnFail may be empty.
type Step struct {
	TaskRef string
	OnFail  []string
}

// StepList is the ordered sequence of steps executed by the engine.
type StepList []Step

// Scenario is the root, immutable-once-built model: Credentials,
// Server, Variables, TaskCatalog, and StepList.
type Scenario struct {
	Credentials Credentials
	Server      Server
	Required    []VariableDeclaration
	Defined     DefinedVariables
	Tasks       TaskCatalog
	Steps       StepList
}
