// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package variables

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/scenario-rs/scenario-rs-go/lib/clock"
	scenarioerrors "github.com/scenario-rs/scenario-rs-go/lib/scenario/errors"
	"github.com/scenario-rs/scenario-rs-go/lib/scenario/schema"
)

// basenamePrefix is prepended to a Path required variable's name to
// form its derived entry: basename:<name>.
const basenamePrefix = "basename:"

// Store holds required (user-supplied, typed) and defined
// (scenario-declared) variables and produces the flat Resolved mapping
// consumed by the interpolator and execution engine. All mutation goes
// through SetRequired, serialized by a single lock, per SPEC_FULL.md
// §5's shared-resource policy.
type Store struct {
	mu       sync.Mutex
	username string
	required map[string]schema.VariableDeclaration
	order    []string // insertion order, for deterministic RequiredView
	defined  schema.DefinedVariables
	clock    clock.Clock
}

// NewStore builds a Store from a built Scenario's Credentials.Username,
// required variable declarations, and defined variables. clk supplies
// the current time for Timestamp declarations; pass clock.Real() in
// production and clock.Fake(...) in tests.
func NewStore(username string, required []schema.VariableDeclaration, defined schema.DefinedVariables, clk clock.Clock) *Store {
	store := &Store{
		username: username,
		required: make(map[string]schema.VariableDeclaration, len(required)),
		defined:  defined,
		clock:    clk,
	}
	for _, decl := range required {
		store.required[decl.Name] = decl
		store.order = append(store.order, decl.Name)
	}
	return store
}

// SetRequired records value for the named required variable. A name
// that is not declared is rejected with a ConfigSchema error and
// nothing is recorded. Repeated calls with the same (name, value) have no observable effect
// beyond the first, per the round-trip testable property.
func (s *Store) SetRequired(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	decl, ok := s.required[name]
	if !ok {
		return scenarioerrors.Newf(scenarioerrors.ConfigSchema, "unknown required variable %q", name)
	}
	decl.Value = value
	s.required[name] = decl
	return nil
}

// RequiredView returns the full declaration map (label, kind, value,
// read_only) suitable for UI display, in declaration order.
func (s *Store) RequiredView() []schema.VariableDeclaration {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := make([]schema.VariableDeclaration, 0, len(s.order))
	for _, name := range s.order {
		view = append(view, s.required[name])
	}
	return view
}

// Resolve produces ResolvedVariables in the three phases of
// SPEC_FULL.md §4.D: seed, expand defined variables by repeated
// substitution, freeze.
func (s *Store) Resolve() (Resolved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	working := make(Resolved, len(s.required)+len(s.defined)+1)
	working["username"] = s.username

	for _, name := range s.order {
		decl := s.required[name]
		value := decl.Value

		if decl.Kind == schema.VariableTimestamp && value == "" {
			value = formatTimestamp(s.clock, decl)
		}
		working[name] = value

		if decl.Kind == schema.VariablePath && value != "" {
			if basename, ok := pathBasename(value); ok {
				working[basenamePrefix+name] = basename
			}
		}
	}

	for name, template := range s.defined {
		working[name] = template
	}

	if err := expandDefinedToFixedPoint(working, s.defined); err != nil {
		return nil, err
	}

	return working, nil
}

// ValidatePaths stats every Path-kind required variable's current
// value and returns PathInvalid for the first one that does not refer
// to an existing regular file, per SPEC_FULL.md §4.D's post-resolution
// validation step.
func (s *Store) ValidatePaths() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range s.order {
		decl := s.required[name]
		if decl.Kind != schema.VariablePath {
			continue
		}
		info, err := os.Stat(decl.Value)
		if err != nil || !info.Mode().IsRegular() {
			return scenarioerrors.Newf(scenarioerrors.PathInvalid, "path %q (variable %q) is not an existing regular file", decl.Value, name)
		}
	}
	return nil
}

// expandDefinedToFixedPoint repeatedly substitutes {name} references
// in every defined variable's current value against working, stopping
// when a full pass performs no substitution at all. The pass count is
// bounded by 1 + len(defined); exceeding it without a substitution-free
// pass means a dependency cycle, reported as VariableCycle.
//
// "Changed" here means at least one placeholder was actually replaced
// during the pass, not that the resulting string differs from the
// previous one: a genuine 2-cycle (a = "{b}", b = "{a}") stabilizes
// after one pass into each variable referencing itself (a = "{a}"),
// and from then on every pass substitutes "{a}" with working["a"]'s
// own value "{a}" again, a real substitution whose output happens to
// equal its input. Treating that as "no change" would make the cycle
// indistinguishable from a plain unresolved reference and report
// VariableUnresolved instead of VariableCycle.
func expandDefinedToFixedPoint(working Resolved, defined schema.DefinedVariables) error {
	maxPasses := 1 + len(defined)

	for pass := 0; pass < maxPasses; pass++ {
		changed := false
		for name := range defined {
			current := working[name]
			if !hasPlaceholder(current) {
				continue
			}
			next, substituted := substituteOnce(current, working)
			working[name] = next
			if substituted {
				changed = true
			}
		}
		if !changed {
			return checkFullyResolved(working, defined)
		}
	}

	var cyclic []string
	for name := range defined {
		if hasPlaceholder(working[name]) {
			cyclic = append(cyclic, name)
		}
	}
	return scenarioerrors.Newf(scenarioerrors.VariableCycle,
		"variable dependency cycle (did not converge in %d passes): %s", maxPasses, strings.Join(cyclic, ", "))
}

// substituteOnce replaces every {name} in template with working's
// current value for name, even when that value itself still contains
// a placeholder; unknown names are left as-is for a later pass (or
// eventual VariableUnresolved reporting). It reports whether any
// placeholder was actually replaced, which is the signal
// expandDefinedToFixedPoint uses to detect a cycle versus a genuinely
// unresolved reference; see that function's comment.
func substituteOnce(template string, working Resolved) (string, bool) {
	substituted := false
	result := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := match[1 : len(match)-1]
		if value, ok := working[name]; ok {
			substituted = true
			return value
		}
		return match
	})
	return result, substituted
}

// checkFullyResolved reports VariableUnresolved if any defined
// variable still contains a placeholder after the substitution loop
// reached fixed point (a reference to a name absent from the model,
// not a cycle).
func checkFullyResolved(working Resolved, defined schema.DefinedVariables) error {
	var unresolved []string
	for name := range defined {
		if hasPlaceholder(working[name]) {
			unresolved = append(unresolved, placeholderNames(working[name])...)
		}
	}
	if len(unresolved) == 0 {
		return nil
	}
	sortUnique(&unresolved)
	return scenarioerrors.Newf(scenarioerrors.VariableUnresolved,
		"unresolved variables: %s", strings.Join(unresolved, ", "))
}

func sortUnique(names *[]string) {
	sort.Strings(*names)
	seen := map[string]bool{}
	unique := (*names)[:0]
	for _, name := range *names {
		if !seen[name] {
			seen[name] = true
			unique = append(unique, name)
		}
	}
	*names = unique
}

// formatTimestamp computes the current time formatted per decl.Format,
// using decl.Timezone to pick the local or UTC clock basis. The clock
// is injected (clock.Clock) rather than calling time.Now directly so
// tests can freeze it; this is also what lets two Resolve calls with
// no intervening SetRequired return identical maps.
func formatTimestamp(clk clock.Clock, decl schema.VariableDeclaration) string {
	now := clk.Now()
	if decl.Timezone == schema.TimezoneUTC {
		now = now.UTC()
	} else {
		now = now.Local()
	}
	return now.Format(decl.Format)
}

// pathBasename returns the final non-empty path segment of value: the
// filename portion for a file path ("/a/b.jar" gives "b.jar") and the
// last non-empty segment for a path ending in a separator ("/a/b/"
// gives "b"). It returns false if value is empty, consists only of
// separators, or is ".".
func pathBasename(value string) (string, bool) {
	trimmed := strings.TrimRight(value, "/"+string(os.PathSeparator))
	if trimmed == "" {
		return "", false
	}
	base := filepath.Base(trimmed)
	if base == "." || base == string(os.PathSeparator) {
		return "", false
	}
	return base, true
}
