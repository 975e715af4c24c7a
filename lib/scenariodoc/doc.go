// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scenariodoc implements the document loader (component A) and
// inheritance merger (component B): reading a scenario document from
// disk, parsing it into an untyped tree, following an optional parent
// chain, and producing a single merged tree ready for the scenario
// model builder (lib/scenario).
package scenariodoc

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
)

// Tree is the untyped document produced by parsing: tables become
// map[string]any, arrays of tables become []map[string]any (via
// []any of map[string]any), and scalars are string, int64, or bool, as
// produced by BurntSushi/toml decoding into `any`.
type Tree map[string]any

// parentKey is the top-level scalar naming an ancestor document,
// resolved relative to the child document's directory and stripped
// from the final merged tree.
const parentKey = "parent"

// Load reads the document at path and parses it into a Tree. It does
// not follow parent references; use Resolve for the full A+B pipeline.
func Load(path string) (Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scenarioerrors.New(scenarioerrors.ConfigRead, fmt.Errorf("reading %s: %w", path, err))
	}

	var tree Tree
	if _, err := toml.Decode(string(data), &tree); err != nil {
		return nil, scenarioerrors.New(scenarioerrors.ConfigParse, fmt.Errorf("parsing %s: %w", path, err))
	}
	return tree, nil
}

// Resolve loads the document at path, follows its parent chain (if
// any), deep-merges ancestors into the child per the rules described
// on Merge and in SPEC_FULL.md §4.B, and returns the single
// merged tree with the "parent" key stripped.
//
// Cycle detection tracks the set of normalized absolute paths visited
// so far; revisiting one returns ConfigCycle.
func Resolve(path string) (Tree, error) {
	return resolve(path, map[string]bool{})
}

func resolve(path string, visited map[string]bool) (Tree, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, scenarioerrors.New(scenarioerrors.ConfigRead, fmt.Errorf("resolving path %s: %w", path, err))
	}
	if visited[absPath] {
		return nil, scenarioerrors.Newf(scenarioerrors.ConfigCycle, "parent cycle detected at %s", absPath)
	}
	visited[absPath] = true

	tree, err := Load(absPath)
	if err != nil {
		return nil, err
	}

	parentValue, hasParent := tree[parentKey]
	delete(tree, parentKey)
	if !hasParent {
		return tree, nil
	}

	parentRelPath, ok := parentValue.(string)
	if !ok || parentRelPath == "" {
		return nil, scenarioerrors.Newf(scenarioerrors.ConfigSchema, "%q must be a non-empty string path", parentKey)
	}

	parentPath := parentRelPath
	if !filepath.IsAbs(parentPath) {
		parentPath = filepath.Join(filepath.Dir(absPath), parentRelPath)
	}
	if _, err := os.Stat(parentPath); err != nil {
		return nil, scenarioerrors.New(scenarioerrors.ConfigRead, fmt.Errorf("parent config %s: %w", parentPath, err))
	}

	parentTree, err := resolve(parentPath, visited)
	if err != nil {
		return nil, err
	}

	return Merge(parentTree, tree), nil
}
