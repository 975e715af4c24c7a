// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"testing"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario/schema"
	"github.com/scenario-rs/scenario-rs-go/lib/scenariodoc"
)

func minimalTree() scenariodoc.Tree {
	return scenariodoc.Tree{
		"credentials": scenariodoc.Tree{"username": "u"},
		"server":      scenariodoc.Tree{"host": "h", "port": int64(22)},
		"tasks": scenariodoc.Tree{
			"a": scenariodoc.Tree{"type": "RemoteSudo", "command": "echo hi"},
		},
		"execute": scenariodoc.Tree{
			"steps": []map[string]any{
				{"task": "a"},
			},
		},
	}
}

func requireSchemaErr(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error")
	}
	scenErr, ok := err.(*scenarioerrors.Error)
	if !ok || scenErr.Kind != scenarioerrors.ConfigSchema {
		t.Fatalf("got %v, want ConfigSchema", err)
	}
}

func TestBuildAcceptsMinimalScenario(t *testing.T) {
	scn, err := Build(minimalTree())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scn.Credentials.Username != "u" {
		t.Fatalf("username = %q, want u", scn.Credentials.Username)
	}
	if scn.Server.Port != 22 {
		t.Fatalf("port = %d, want 22", scn.Server.Port)
	}
	if len(scn.Steps) != 1 || scn.Steps[0].TaskRef != "a" {
		t.Fatalf("steps = %+v", scn.Steps)
	}
}

func TestBuildDefaultsPortTo22WhenOmitted(t *testing.T) {
	tree := minimalTree()
	tree["server"] = scenariodoc.Tree{"host": "h"}

	scn, err := Build(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scn.Server.Port != 22 {
		t.Fatalf("port = %d, want default 22", scn.Server.Port)
	}
}

func TestBuildRejectsPortZero(t *testing.T) {
	tree := minimalTree()
	tree["server"] = scenariodoc.Tree{"host": "h", "port": int64(0)}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsPortAbove65535(t *testing.T) {
	tree := minimalTree()
	tree["server"] = scenariodoc.Tree{"host": "h", "port": int64(65536)}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsMissingCredentials(t *testing.T) {
	tree := minimalTree()
	delete(tree, "credentials")

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsMissingServer(t *testing.T) {
	tree := minimalTree()
	delete(tree, "server")

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsMissingServerHost(t *testing.T) {
	tree := minimalTree()
	tree["server"] = scenariodoc.Tree{"port": int64(22)}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsEmptyServerHost(t *testing.T) {
	tree := minimalTree()
	tree["server"] = scenariodoc.Tree{"host": "", "port": int64(22)}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsUnknownTaskType(t *testing.T) {
	tree := minimalTree()
	tree["tasks"] = scenariodoc.Tree{
		"a": scenariodoc.Tree{"type": "DoSomethingWeird"},
	}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsRemoteSudoMissingCommand(t *testing.T) {
	tree := minimalTree()
	tree["tasks"] = scenariodoc.Tree{
		"a": scenariodoc.Tree{"type": "RemoteSudo"},
	}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildAcceptsSftpCopyTask(t *testing.T) {
	tree := minimalTree()
	tree["tasks"] = scenariodoc.Tree{
		"a": scenariodoc.Tree{
			"type":             "SftpCopy",
			"source_path":      "/local/app.jar",
			"destination_path": "/remote/app.jar",
		},
	}

	scn, err := Build(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	task := scn.Tasks["a"]
	if task.Kind != schema.TaskSftpCopy {
		t.Fatalf("kind = %v, want SftpCopy", task.Kind)
	}
	if task.SourcePath != "/local/app.jar" || task.DestinationPath != "/remote/app.jar" {
		t.Fatalf("task = %+v", task)
	}
}

func TestBuildRejectsSftpCopyMissingDestination(t *testing.T) {
	tree := minimalTree()
	tree["tasks"] = scenariodoc.Tree{
		"a": scenariodoc.Tree{
			"type":        "SftpCopy",
			"source_path": "/local/app.jar",
		},
	}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsStepReferencingUnknownTask(t *testing.T) {
	tree := minimalTree()
	tree["execute"] = scenariodoc.Tree{
		"steps": []map[string]any{
			{"task": "does-not-exist"},
		},
	}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildRejectsOnFailReferencingUnknownTask(t *testing.T) {
	tree := minimalTree()
	tree["execute"] = scenariodoc.Tree{
		"steps": []map[string]any{
			{"task": "a", "on-fail": []any{"does-not-exist"}},
		},
	}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildAcceptsOnFailReferencingKnownTask(t *testing.T) {
	tree := minimalTree()
	tree["tasks"] = scenariodoc.Tree{
		"a": scenariodoc.Tree{"type": "RemoteSudo", "command": "do-a"},
		"x": scenariodoc.Tree{"type": "RemoteSudo", "command": "undo-a"},
	}
	tree["execute"] = scenariodoc.Tree{
		"steps": []map[string]any{
			{"task": "a", "on-fail": []any{"x"}},
		},
	}

	scn, err := Build(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scn.Steps[0].OnFail) != 1 || scn.Steps[0].OnFail[0] != "x" {
		t.Fatalf("on-fail = %+v", scn.Steps[0].OnFail)
	}
}

func TestBuildAcceptsEmptyExecuteSteps(t *testing.T) {
	tree := minimalTree()
	tree["execute"] = scenariodoc.Tree{}

	scn, err := Build(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scn.Steps) != 0 {
		t.Fatalf("steps = %+v, want empty", scn.Steps)
	}
}

func TestBuildRejectsRequiredAndDefinedVariableCollision(t *testing.T) {
	tree := minimalTree()
	tree["variables"] = scenariodoc.Tree{
		"required": scenariodoc.Tree{
			"app_name": scenariodoc.Tree{"type": "String"},
		},
		"defined": scenariodoc.Tree{
			"app_name": "collides",
		},
	}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}

func TestBuildAcceptsTimestampVariableWithFormatAndTimezone(t *testing.T) {
	tree := minimalTree()
	tree["variables"] = scenariodoc.Tree{
		"required": scenariodoc.Tree{
			"deployed_at": scenariodoc.Tree{
				"type":   "Timestamp",
				"format": "2006-01-02",
				"tz":     "utc",
			},
		},
	}

	scn, err := Build(tree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scn.Required) != 1 {
		t.Fatalf("required = %+v", scn.Required)
	}
	decl := scn.Required[0]
	if decl.Kind != schema.VariableTimestamp || decl.Format != "2006-01-02" || decl.Timezone != schema.TimezoneUTC {
		t.Fatalf("decl = %+v", decl)
	}
	if !decl.ReadOnly {
		t.Fatal("timestamp declarations default to read_only=true")
	}
}

func TestBuildRejectsTimestampVariableMissingFormat(t *testing.T) {
	tree := minimalTree()
	tree["variables"] = scenariodoc.Tree{
		"required": scenariodoc.Tree{
			"deployed_at": scenariodoc.Tree{"type": "Timestamp"},
		},
	}

	_, err := Build(tree)
	requireSchemaErr(t, err)
}
