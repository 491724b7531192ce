// Copyright 2026 © The Loom Authors
// SPDX-License-Identifier: Apache-2.0

// Package script implements the orchestration language: a small JSON
// expression grammar evaluated against an environment. Programs are plain
// JSON values; their shape selects the form. An object is a reserved form
// only when it carries exactly one tag key ($, call, let or define); every
// other document is a literal evaluating to itself.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	lerrors "github.com/loomkit/loom/pkg/errors"
	"github.com/loomkit/loom/pkg/value"
)

// Reserved tag keys that mark an object as a program form.
const (
	TagVariable = "$"
	TagCall     = "call"
	TagLet      = "let"
	TagDefine   = "define"
)

type formKind int

const (
	formLiteral formKind = iota
	formVariable
	formCall
	formSequence
	formLet
	formDefine
)

// form is the classified shape of one program node.
type form struct {
	kind    formKind
	name    string
	input   any
	value   any
	in      any
	script  any
	params  []string
	items   []any
	literal any
}

// classify decides which form a program value takes. It never descends into
// sub-programs; nested shapes are classified when evaluation reaches them.
func classify(program any) (form, error) {
	switch p := program.(type) {
	case []any:
		return form{kind: formSequence, items: p}, nil
	case map[string]any:
		return classifyObject(p)
	default:
		return form{kind: formLiteral, literal: program}, nil
	}
}

func classifyObject(obj map[string]any) (form, error) {
	var tags []string
	for _, tag := range []string{TagVariable, TagCall, TagLet, TagDefine} {
		if _, ok := obj[tag]; ok {
			tags = append(tags, tag)
		}
	}
	switch len(tags) {
	case 0:
		return form{kind: formLiteral, literal: obj}, nil
	case 1:
	default:
		return form{}, invalidProgram(fmt.Sprintf("ambiguous program form: tags %s", strings.Join(tags, ", ")), obj)
	}

	switch tags[0] {
	case TagVariable:
		return classifyVariable(obj)
	case TagCall:
		return classifyCall(obj)
	case TagLet:
		return classifyLet(obj)
	default:
		return classifyDefine(obj)
	}
}

func classifyVariable(obj map[string]any) (form, error) {
	if err := allowKeys(obj, TagVariable); err != nil {
		return form{}, err
	}
	name, ok := obj[TagVariable].(string)
	if !ok || name == "" {
		return form{}, invalidProgram("variable reference name must be a non-empty string", obj)
	}
	return form{kind: formVariable, name: name}, nil
}

func classifyCall(obj map[string]any) (form, error) {
	if err := allowKeys(obj, TagCall, "input"); err != nil {
		return form{}, err
	}
	name, ok := obj[TagCall].(string)
	if !ok || name == "" {
		return form{}, invalidProgram("call tool name must be a non-empty string", obj)
	}
	return form{kind: formCall, name: name, input: obj["input"]}, nil
}

func classifyLet(obj map[string]any) (form, error) {
	if err := allowKeys(obj, TagLet, "value", "in"); err != nil {
		return form{}, err
	}
	name, ok := obj[TagLet].(string)
	if !ok || name == "" {
		return form{}, invalidProgram("let binding name must be a non-empty string", obj)
	}
	if _, ok := obj["value"]; !ok {
		return form{}, invalidProgram(`let requires a "value" member`, obj)
	}
	if _, ok := obj["in"]; !ok {
		return form{}, invalidProgram(`let requires an "in" member`, obj)
	}
	return form{kind: formLet, name: name, value: obj["value"], in: obj["in"]}, nil
}

func classifyDefine(obj map[string]any) (form, error) {
	if err := allowKeys(obj, TagDefine, "script", "parameter", "parameters"); err != nil {
		return form{}, err
	}
	name, ok := obj[TagDefine].(string)
	if !ok || name == "" {
		return form{}, invalidProgram("define name must be a non-empty string", obj)
	}
	if _, ok := obj["script"]; !ok {
		return form{}, invalidProgram(`define requires a "script" member`, obj)
	}
	params, err := parameterNames(obj)
	if err != nil {
		return form{}, err
	}
	return form{kind: formDefine, name: name, script: obj["script"], params: params}, nil
}

func parameterNames(obj map[string]any) ([]string, error) {
	single, hasSingle := obj["parameter"]
	list, hasList := obj["parameters"]
	if hasSingle && hasList {
		return nil, invalidProgram(`use "parameter" or "parameters", not both`, obj)
	}
	if hasSingle {
		name, ok := single.(string)
		if !ok || name == "" {
			return nil, invalidProgram("parameter name must be a non-empty string", obj)
		}
		return []string{name}, nil
	}
	if hasList {
		items, ok := list.([]any)
		if !ok {
			return nil, invalidProgram("parameters must be a list of names", obj)
		}
		names := make([]string, 0, len(items))
		for _, item := range items {
			name, ok := item.(string)
			if !ok || name == "" {
				return nil, invalidProgram("parameters must be non-empty strings", obj)
			}
			names = append(names, name)
		}
		return names, nil
	}
	return nil, nil
}

func allowKeys(obj map[string]any, allowed ...string) error {
	for key := range obj {
		ok := false
		for _, a := range allowed {
			if key == a {
				ok = true
				break
			}
		}
		if !ok {
			return invalidProgram(fmt.Sprintf("unexpected member %q in %s form", key, allowed[0]), obj)
		}
	}
	return nil
}

func invalidProgram(msg string, program any) error {
	return lerrors.New(lerrors.KindInvalidInput, msg, nil).
		WithPayload("program", value.Normalize(program))
}

// Parse decodes JSON program text and checks its structure.
func Parse(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	program, err := value.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parse json program: %w", err)
	}
	if err := Check(program); err != nil {
		return nil, err
	}
	return program, nil
}

// ParseYAML decodes a program written as YAML into the same value grammar.
func ParseYAML(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml program: %w", err)
	}
	program := value.Normalize(raw)
	if err := Check(program); err != nil {
		return nil, err
	}
	return program, nil
}

// Load reads a program from a YAML or JSON file.
func Load(path string) (any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("program path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return Parse(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseAuto(data)
	}
}

func parseAuto(data []byte) (any, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if program, err := Parse(data); err == nil {
			return program, nil
		}
	}
	if program, err := ParseYAML(data); err == nil {
		return program, nil
	}
	if program, err := Parse(data); err == nil {
		return program, nil
	}
	return nil, fmt.Errorf("unsupported program format")
}

// Check validates the structure of every reachable form without evaluating
// anything: tag members are well formed, names are strings, required
// members are present. Literals are accepted as-is.
func Check(program any) error {
	f, err := classify(program)
	if err != nil {
		return err
	}
	switch f.kind {
	case formSequence:
		for _, item := range f.items {
			if err := Check(item); err != nil {
				return err
			}
		}
	case formCall:
		// Arrays in input position are argument lists; each element is a
		// program of its own.
		if items, ok := f.input.([]any); ok {
			for _, item := range items {
				if err := Check(item); err != nil {
					return err
				}
			}
			return nil
		}
		return Check(f.input)
	case formLet:
		if err := Check(f.value); err != nil {
			return err
		}
		return Check(f.in)
	case formDefine:
		return Check(f.script)
	}
	return nil
}
