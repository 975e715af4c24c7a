// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenariodoc

import "testing"

func TestMergeTableUnionChildOverrides(t *testing.T) {
	parent := Tree{"server": Tree{"host": "parent-host", "port": int64(22)}}
	child := Tree{"server": Tree{"host": "child-host"}}

	merged := Merge(parent, child)

	server := merged["server"].(Tree)
	if server["host"] != "child-host" {
		t.Fatalf("host = %v, want child-host", server["host"])
	}
	if server["port"] != int64(22) {
		t.Fatalf("port = %v, want 22 (inherited from parent)", server["port"])
	}
}

func TestMergeExecuteStepsWhollyReplaced(t *testing.T) {
	parent := Tree{"execute": Tree{"steps": []map[string]any{
		{"task": "parent-step-1"},
		{"task": "parent-step-2"},
	}}}
	child := Tree{"execute": Tree{"steps": []map[string]any{
		{"task": "child-step-1"},
	}}}

	merged := Merge(parent, child)

	steps := merged["execute"].(Tree)["steps"].([]map[string]any)
	if len(steps) != 1 {
		t.Fatalf("got %d steps, want 1 (child wholly replaces parent)", len(steps))
	}
	if steps[0]["task"] != "child-step-1" {
		t.Fatalf("step task = %v, want child-step-1", steps[0]["task"])
	}
}

func TestMergeTasksPerNameOverride(t *testing.T) {
	parent := Tree{"tasks": Tree{
		"a": Tree{"type": "RemoteSudo", "command": "parent-a"},
		"b": Tree{"type": "RemoteSudo", "command": "parent-b"},
	}}
	child := Tree{"tasks": Tree{
		"a": Tree{"type": "RemoteSudo", "command": "child-a"},
		"c": Tree{"type": "RemoteSudo", "command": "child-c"},
	}}

	merged := Merge(parent, child)
	tasks := merged["tasks"].(Tree)

	if len(tasks) != 3 {
		t.Fatalf("got %d tasks, want 3 (a overridden, b kept, c added)", len(tasks))
	}
	if tasks["a"].(Tree)["command"] != "child-a" {
		t.Fatalf("task a command = %v, want child-a (entire subtree replaced)", tasks["a"].(Tree)["command"])
	}
	if tasks["b"].(Tree)["command"] != "parent-b" {
		t.Fatalf("task b command = %v, want parent-b (survives from parent)", tasks["b"].(Tree)["command"])
	}
}

func TestMergeVariablesRequiredAndDefinedPerNameOverride(t *testing.T) {
	parent := Tree{"variables": Tree{
		"required": Tree{"app_path": Tree{"type": "Path", "label": "parent label"}},
		"defined":  Tree{"app_name": "p", "env": "parent-env"},
	}}
	child := Tree{"variables": Tree{
		"required": Tree{"app_path": Tree{"type": "String"}},
		"defined":  Tree{"app_version": "1", "env": "child-env"},
	}}

	merged := Merge(parent, child)
	required := merged["variables"].(Tree)["required"].(Tree)
	defined := merged["variables"].(Tree)["defined"].(Tree)

	appPath := required["app_path"].(Tree)
	if appPath["type"] != "String" {
		t.Fatalf("app_path type = %v, want String (child entry wins)", appPath["type"])
	}
	if _, ok := appPath["label"]; ok {
		t.Fatal("app_path label should be gone: the child's entry replaces the parent's entirely")
	}
	if defined["env"] != "child-env" {
		t.Fatalf("env = %v, want child-env", defined["env"])
	}
	if defined["app_name"] != "p" {
		t.Fatalf("app_name = %v, want p", defined["app_name"])
	}
	if defined["app_version"] != "1" {
		t.Fatalf("app_version = %v, want 1", defined["app_version"])
	}
}

func TestMergeParentInheritanceScenarioFromSpec(t *testing.T) {
	// Literal scenario 5 from spec.md §8: parent defines username and
	// app_name, child overrides username and adds app_version.
	parent := Tree{
		"credentials": Tree{"username": "parent"},
		"variables":   Tree{"defined": Tree{"app_name": "p"}},
	}
	child := Tree{
		"credentials": Tree{"username": "child"},
		"variables":   Tree{"defined": Tree{"app_version": "1"}},
	}

	merged := Merge(parent, child)

	if merged["credentials"].(Tree)["username"] != "child" {
		t.Fatalf("username = %v, want child", merged["credentials"].(Tree)["username"])
	}
	defined := merged["variables"].(Tree)["defined"].(Tree)
	if defined["app_name"] != "p" || defined["app_version"] != "1" {
		t.Fatalf("defined = %v, want app_name=p app_version=1", defined)
	}
}
