// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenariodoc

import (
	"os"
	"path/filepath"
	"testing"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestLoadParsesScalarTablesAndArrays(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scenario.toml", `
[credentials]
username = "u"

[server]
host = "h"
port = 22

[[execute.steps]]
task = "a"
`)

	tree, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tree["credentials"]; !ok {
		t.Fatal("missing credentials table")
	}
}

func TestLoadReportsConfigReadForMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/scenario.toml")
	if err == nil {
		t.Fatal("expected an error")
	}
	scenErr, ok := err.(*scenarioerrors.Error)
	if !ok || scenErr.Kind != scenarioerrors.ConfigRead {
		t.Fatalf("got %v, want ConfigRead", err)
	}
}

func TestLoadReportsConfigParseForBadSyntax(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "bad.toml", `this is not = = toml`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error")
	}
	scenErr, ok := err.(*scenarioerrors.Error)
	if !ok || scenErr.Kind != scenarioerrors.ConfigParse {
		t.Fatalf("got %v, want ConfigParse", err)
	}
}

func TestResolveFollowsParentChainAndStripsParentKey(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.toml", `
[credentials]
username = "parent"

[variables.defined]
app_name = "p"
`)
	childPath := writeFile(t, dir, "child.toml", `
parent = "base.toml"

[credentials]
username = "child"

[variables.defined]
app_version = "1"
`)

	merged, err := Resolve(childPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := merged[parentKey]; ok {
		t.Fatal("parent key should be stripped from the merged tree")
	}
	if merged["credentials"].(Tree)["username"] != "child" {
		t.Fatalf("username = %v, want child", merged["credentials"].(Tree)["username"])
	}
	defined := merged["variables"].(Tree)["defined"].(Tree)
	if defined["app_name"] != "p" || defined["app_version"] != "1" {
		t.Fatalf("defined = %v", defined)
	}
}

func TestResolveDetectsParentCycle(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.toml")
	bPath := filepath.Join(dir, "b.toml")
	writeFile(t, dir, "a.toml", `parent = "b.toml"`)
	writeFile(t, dir, "b.toml", `parent = "a.toml"`)
	_ = aPath
	_ = bPath

	_, err := Resolve(filepath.Join(dir, "a.toml"))
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	scenErr, ok := err.(*scenarioerrors.Error)
	if !ok || scenErr.Kind != scenarioerrors.ConfigCycle {
		t.Fatalf("got %v, want ConfigCycle", err)
	}
}

func TestResolveReportsMissingParentFile(t *testing.T) {
	dir := t.TempDir()
	childPath := writeFile(t, dir, "child.toml", `parent = "does-not-exist.toml"`)

	_, err := Resolve(childPath)
	if err == nil {
		t.Fatal("expected an error")
	}
	scenErr, ok := err.(*scenarioerrors.Error)
	if !ok || scenErr.Kind != scenarioerrors.ConfigRead {
		t.Fatalf("got %v, want ConfigRead", err)
	}
}
