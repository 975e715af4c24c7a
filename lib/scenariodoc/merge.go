// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package scenariodoc

// Merge deep-merges child onto parent per the four rules of
// SPEC_FULL.md §4.B / spec.md §4.B:
//
//   - tables: union of keys; on conflict the child's subtree overrides.
//   - execute.steps: the child's array replaces the parent's wholly.
//   - tasks.<name>: per-task override; the child's declaration
//     replaces the parent's entirely when names match.
//   - variables.required.<name> and variables.defined.<name>: per-name
//     override in the same way.
//
// Neither argument is mutated; Merge returns a new Tree.
func Merge(parent, child Tree) Tree {
	return mergeTable(parent, child).(Tree)
}

// perKeyOverridePaths names the table paths (dot-joined) that
// use per-key override semantics instead of the generic deep-merge
// recursion. execute.steps is listed separately below since it is an
// array, not a table.
var perKeyOverridePaths = map[string]bool{
	"tasks":              true,
	"variables.required": true,
	"variables.defined":  true,
}

// mergeTable merges the root values of the parent and child trees.
func mergeTable(parentValue, childValue any) any {
	return mergeAt("", parentValue, childValue)
}

// mergeAt recursively merges two values found at the same path in
// parent and child trees. path is the dot-joined key path from the
// root, used to decide which merge rule applies at this level.
func mergeAt(path string, parentValue, childValue any) any {
	parentTable, parentIsTable := asTable(parentValue)
	childTable, childIsTable := asTable(childValue)

	if !parentIsTable || !childIsTable {
		// Scalars, arrays, or a type mismatch: child wins outright.
		if childValue != nil {
			return childValue
		}
		return parentValue
	}

	if perKeyOverridePaths[path] {
		return mergePerKey(parentTable, childTable)
	}

	merged := make(Tree, len(parentTable)+len(childTable))
	for key, value := range parentTable {
		merged[key] = value
	}
	for key, childEntry := range childTable {
		childPath := key
		if path != "" {
			childPath = path + "." + key
		}

		if childPath == "execute.steps" {
			// Child's array replaces the parent's wholly; sequencing
			// cannot be partially inherited.
			merged[key] = childEntry
			continue
		}

		parentEntry, existedInParent := parentTable[key]
		if !existedInParent {
			merged[key] = childEntry
			continue
		}
		merged[key] = mergeAt(childPath, parentEntry, childEntry)
	}
	return merged
}

// mergePerKey implements the per-name override rule used by tasks.*,
// variables.required.*, and variables.defined.*: within the table,
// each name's entire subtree is replaced by the child's when present,
// not deep-merged field by field.
func mergePerKey(parentTable, childTable Tree) Tree {
	merged := make(Tree, len(parentTable)+len(childTable))
	for name, value := range parentTable {
		merged[name] = value
	}
	for name, value := range childTable {
		merged[name] = value
	}
	return merged
}

// asTable reports whether value is a table (map[string]any / Tree)
// and returns it as a Tree.
func asTable(value any) (Tree, bool) {
	switch typed := value.(type) {
	case Tree:
		return typed, true
	case map[string]any:
		return Tree(typed), true
	default:
		return nil, false
	}
}
