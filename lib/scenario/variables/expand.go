// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package variables implements the variable store (component D) and
// interpolator (component E): required/defined variable bookkeeping,
// basename derivation, iterative resolution to a flat ResolvedVariables
// mapping, and single-pass placeholder expansion against that mapping.
package variables

import (
	"regexp"
	"sort"
	"strings"

	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
)

// placeholderPattern matches a {name} reference. The identifier
// charset is alphanumeric plus "_" and ":" (the latter for the
// "basename:" prefix), per SPEC_FULL.md §4.D. Adapted from
// lib/pipeline/variables.go's variablePattern, which uses ${NAME} —
// this engine's template syntax is the bare-brace {name} form spec.md
// specifies.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_:]+)\}`)

// Resolved is the flat, fully interpolated name → value mapping
// produced by Store.Resolve.
type Resolved map[string]string

// Expand is the pure interpolator (component E): a single
// left-to-right scan replacing every {name} in template with its value
// from resolved. An unresolved name is reported in the returned error;
// expansion still proceeds across the rest of the template so that all
// unresolved names in one template are collected together.
func Expand(template string, resolved Resolved) (string, error) {
	var unresolved []string
	result := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := resolved[name]; ok {
			return value
		}
		unresolved = append(unresolved, name)
		return match
	})
	if len(unresolved) > 0 {
		return "", scenarioerrors.Newf(scenarioerrors.VariableUnresolved,
			"unresolved variables in %q: %s", template, strings.Join(unresolved, ", "))
	}
	return result, nil
}

// hasPlaceholder reports whether s contains at least one {name}
// reference.
func hasPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}

// placeholderNames returns the sorted, de-duplicated set of names
// referenced by {…} in s.
func placeholderNames(s string) []string {
	matches := placeholderPattern.FindAllStringSubmatch(s, -1)
	seen := map[string]bool{}
	var names []string
	for _, match := range matches {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
