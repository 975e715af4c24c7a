// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	goerrors "errors"
	"fmt"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
	"github.com/scenario-rs/scenario-rs-go/lib/scenariodoc"
)

// scenarioDoc is a local alias kept short for readability in this
// package's many small table-walking helpers.
type scenarioDoc = scenariodoc.Tree

func asTable(value any) (scenarioDoc, bool) {
	switch typed := value.(type) {
	case scenariodoc.Tree:
		return typed, true
	case map[string]any:
		return scenarioDoc(typed), true
	default:
		return nil, false
	}
}

func requiredTable(tree scenarioDoc, key string) (scenarioDoc, error) {
	raw, ok := tree[key]
	if !ok {
		return nil, schemaErr(fmt.Sprintf("missing required section [%s]", key))
	}
	table, ok := asTable(raw)
	if !ok {
		return nil, schemaErr(fmt.Sprintf("[%s] must be a table", key))
	}
	return table, nil
}

func requiredString(table scenarioDoc, context, key string) (string, error) {
	raw, ok := table[key]
	if !ok {
		return "", schemaErr(fmt.Sprintf("%s.%s is required", context, key))
	}
	value, ok := raw.(string)
	if !ok {
		return "", schemaErr(fmt.Sprintf("%s.%s must be a string", context, key))
	}
	return value, nil
}

func optionalString(table scenarioDoc, key string) (string, bool) {
	raw, ok := table[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

func toInt64(raw any) (int64, bool) {
	switch typed := raw.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	default:
		return 0, false
	}
}

func schemaErr(message string) error {
	return scenarioerrors.New(scenarioerrors.ConfigSchema, goerrors.New(message))
}
