// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package scenario implements the scenario model builder (component
// C): validating a merged document tree (lib/scenariodoc.Tree) against
// the typed schema (lib/scenario/schema) and constructing the
// immutable Scenario model.
package scenario

import (
	"fmt"

	"github.com/scenario-rs/scenario-rs-go/lib/scenario/schema"
	"github.com/scenario-rs/scenario-rs-go/lib/scenariodoc"
)

// Build validates tree and constructs a schema.Scenario. It does not
// resolve variables or touch the filesystem beyond what the caller has
// already done to produce tree; it only ensures structural
// correctness, per SPEC_FULL.md §4.C.
func Build(tree scenariodoc.Tree) (*schema.Scenario, error) {
	credentials, err := buildCredentials(tree)
	if err != nil {
		return nil, err
	}
	server, err := buildServer(tree)
	if err != nil {
		return nil, err
	}
	required, defined, err := buildVariables(tree)
	if err != nil {
		return nil, err
	}
	tasks, err := buildTasks(tree)
	if err != nil {
		return nil, err
	}
	steps, err := buildSteps(tree, tasks)
	if err != nil {
		return nil, err
	}

	return &schema.Scenario{
		Credentials: credentials,
		Server:      server,
		Required:    required,
		Defined:     defined,
		Tasks:       tasks,
		Steps:       steps,
	}, nil
}

func buildCredentials(tree scenarioDoc) (schema.Credentials, error) {
	table, err := requiredTable(tree, "credentials")
	if err != nil {
		return schema.Credentials{}, err
	}
	username, err := requiredString(table, "credentials", "username")
	if err != nil {
		return schema.Credentials{}, err
	}
	password, _ := optionalString(table, "password")
	return schema.Credentials{Username: username, Password: password}, nil
}

func buildServer(tree scenarioDoc) (schema.Server, error) {
	table, err := requiredTable(tree, "server")
	if err != nil {
		return schema.Server{}, err
	}
	host, err := requiredString(table, "server", "host")
	if err != nil {
		return schema.Server{}, err
	}
	if host == "" {
		return schema.Server{}, schemaErr("server.host must be non-empty")
	}

	port := int64(22)
	if raw, ok := table["port"]; ok {
		asInt, ok := toInt64(raw)
		if !ok {
			return schema.Server{}, schemaErr("server.port must be an integer")
		}
		port = asInt
	}
	if port < 1 || port > 65535 {
		return schema.Server{}, schemaErr(fmt.Sprintf("server.port %d out of range 1..65535", port))
	}

	return schema.Server{Host: host, Port: uint16(port)}, nil
}

func buildVariables(tree scenarioDoc) ([]schema.VariableDeclaration, schema.DefinedVariables, error) {
	variablesTable, _ := asTable(tree["variables"])

	requiredVarsTable, _ := asTable(variablesTable["required"])
	definedTable, _ := asTable(variablesTable["defined"])

	var required []schema.VariableDeclaration
	for name, raw := range requiredVarsTable {
		entry, ok := asTable(raw)
		if !ok {
			return nil, nil, schemaErr(fmt.Sprintf("variables.required.%s must be a table", name))
		}
		decl, err := buildVariableDeclaration(name, entry)
		if err != nil {
			return nil, nil, err
		}
		required = append(required, decl)
	}

	defined := schema.DefinedVariables{}
	for name, raw := range definedTable {
		value, ok := raw.(string)
		if !ok {
			return nil, nil, schemaErr(fmt.Sprintf("variables.defined.%s must be a string", name))
		}
		defined[name] = value
	}

	// Invariant 7: defined variables never shadow required variables;
	// a conflict is an error at model-build time. This is a deliberate
	// departure from original_source's silent defined-wins override —
	// see DESIGN.md.
	for _, decl := range required {
		if _, conflict := defined[decl.Name]; conflict {
			return nil, nil, schemaErr(fmt.Sprintf("variable %q declared as both required and defined", decl.Name))
		}
	}

	return required, defined, nil
}

func buildVariableDeclaration(name string, entry scenariodoc.Tree) (schema.VariableDeclaration, error) {
	kindRaw, err := requiredString(entry, fmt.Sprintf("variables.required.%s", name), "type")
	if err != nil {
		return schema.VariableDeclaration{}, err
	}
	kind := schema.VariableKind(kindRaw)
	switch kind {
	case schema.VariableString, schema.VariablePath, schema.VariableTimestamp:
	default:
		return schema.VariableDeclaration{}, schemaErr(fmt.Sprintf("variables.required.%s.type %q is not String, Path, or Timestamp", name, kindRaw))
	}

	label, _ := optionalString(entry, "label")

	readOnly := schema.DefaultReadOnly(kind)
	if raw, ok := entry["read_only"]; ok {
		asBool, ok := raw.(bool)
		if !ok {
			return schema.VariableDeclaration{}, schemaErr(fmt.Sprintf("variables.required.%s.read_only must be a boolean", name))
		}
		readOnly = asBool
	}

	decl := schema.VariableDeclaration{
		Name:     name,
		Kind:     kind,
		Label:    label,
		ReadOnly: readOnly,
	}

	if value, ok := optionalString(entry, "value"); ok {
		decl.Value = value
	}

	if kind == schema.VariableTimestamp {
		format, err := requiredString(entry, fmt.Sprintf("variables.required.%s", name), "format")
		if err != nil {
			return schema.VariableDeclaration{}, err
		}
		decl.Format = format

		decl.Timezone = schema.TimezoneLocal
		if tz, ok := optionalString(entry, "tz"); ok && tz != "" {
			switch schema.Timezone(tz) {
			case schema.TimezoneLocal, schema.TimezoneUTC:
				decl.Timezone = schema.Timezone(tz)
			default:
				return schema.VariableDeclaration{}, schemaErr(fmt.Sprintf("variables.required.%s.tz %q is not local or utc", name, tz))
			}
		}
	}

	return decl, nil
}

func buildTasks(tree scenarioDoc) (schema.TaskCatalog, error) {
	tasksTable, _ := asTable(tree["tasks"])
	catalog := schema.TaskCatalog{}

	for name, raw := range tasksTable {
		entry, ok := asTable(raw)
		if !ok {
			return nil, schemaErr(fmt.Sprintf("tasks.%s must be a table", name))
		}

		kindRaw, err := requiredString(entry, fmt.Sprintf("tasks.%s", name), "type")
		if err != nil {
			return nil, err
		}
		kind := schema.TaskKind(kindRaw)

		task := schema.Task{Name: name, Kind: kind}
		task.Description, _ = optionalString(entry, "description")
		task.ErrorMessage, _ = optionalString(entry, "error_message")

		switch kind {
		case schema.TaskRemoteSudo:
			command, err := requiredString(entry, fmt.Sprintf("tasks.%s", name), "command")
			if err != nil {
				return nil, err
			}
			task.Command = command
		case schema.TaskSftpCopy:
			source, err := requiredString(entry, fmt.Sprintf("tasks.%s", name), "source_path")
			if err != nil {
				return nil, err
			}
			destination, err := requiredString(entry, fmt.Sprintf("tasks.%s", name), "destination_path")
			if err != nil {
				return nil, err
			}
			task.SourcePath = source
			task.DestinationPath = destination
		default:
			return nil, schemaErr(fmt.Sprintf("tasks.%s.type %q is not RemoteSudo or SftpCopy", name, kindRaw))
		}

		catalog[name] = task
	}

	return catalog, nil
}

func buildSteps(tree scenarioDoc, tasks schema.TaskCatalog) (schema.StepList, error) {
	executeTable, _ := asTable(tree["execute"])

	var rawSteps []scenarioDoc
	switch typed := executeTable["steps"].(type) {
	case []map[string]any:
		// The common case: BurntSushi/toml decodes a TOML
		// array-of-tables ([[steps]]) into this shape.
		for _, entry := range typed {
			rawSteps = append(rawSteps, scenarioDoc(entry))
		}
	case []any:
		for _, raw := range typed {
			entry, ok := asTable(raw)
			if !ok {
				return nil, schemaErr("execute.steps entries must be tables")
			}
			rawSteps = append(rawSteps, entry)
		}
	case nil:
		// No steps configured; an empty scenario.
	default:
		return nil, schemaErr("execute.steps must be an array of tables")
	}

	steps := make(schema.StepList, 0, len(rawSteps))
	for index, entry := range rawSteps {
		taskRef, err := requiredString(entry, fmt.Sprintf("execute.steps[%d]", index), "task")
		if err != nil {
			return nil, err
		}
		if _, exists := tasks[taskRef]; !exists {
			return nil, schemaErr(fmt.Sprintf("execute.steps[%d] references unknown task %q", index, taskRef))
		}

		var onFail []string
		if raw, ok := entry["on-fail"]; ok {
			list, ok := raw.([]any)
			if !ok {
				return nil, schemaErr(fmt.Sprintf("execute.steps[%d].on-fail must be an array", index))
			}
			for _, rawName := range list {
				name, ok := rawName.(string)
				if !ok {
					return nil, schemaErr(fmt.Sprintf("execute.steps[%d].on-fail entries must be strings", index))
				}
				if _, exists := tasks[name]; !exists {
					return nil, schemaErr(fmt.Sprintf("execute.steps[%d].on-fail references unknown task %q", index, name))
				}
				onFail = append(onFail, name)
			}
		}

		steps = append(steps, schema.Step{TaskRef: taskRef, OnFail: onFail})
	}

	return steps, nil
}
