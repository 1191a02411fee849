package main

import (
	"encoding/json"
	"strings"
)

const multiFileOutputName = "main"

// ToRequestOptions builds the options object of the primary compile call.
// The filter set is copied and execution is always off on this call.
func ToRequestOptions(inst *Instance) *CompileOptions {
	options := &CompileOptions{
		UserArguments: inst.Options,
		Filters:       inst.Filters.Copy(),
		Tools:         []json.RawMessage{},
		Libraries:     []json.RawMessage{},
	}
	options.Filters.Execute = false
	options.CompilerOptions.SkipAsm = inst.Filters.SkipAsm

	if inst.Compiler.SupportsExecute {
		options.ExecuteParameters = &ExecuteParameters{
			Args:  SplitCommandArgs(inst.Exec),
			Stdin: inst.Stdin,
		}
	}

	if inst.Kind == MultiFile {
		options.CompilerOptions.CMakeArgs = inst.CMakeArgs
		options.CompilerOptions.CustomOutputFilename = multiFileOutputName
	}

	return options
}

// FitExecute returns the executor-only variant of the options: execution on,
// assembly skipped.
func (o *CompileOptions) FitExecute() *CompileOptions {
	fitted := *o
	fitted.Filters.Execute = true
	fitted.CompilerOptions.SkipAsm = true
	fitted.CompilerOptions.ExecutorRequest = true
	if o.ExecuteParameters != nil {
		params := *o.ExecuteParameters
		params.Args = append([]string(nil), o.ExecuteParameters.Args...)
		fitted.ExecuteParameters = &params
	}
	return &fitted
}

// WantsExecute reports whether a successful compile should be followed by
// an executor-only call
func WantsExecute(inst *Instance) bool {
	return inst.Compiler.SupportsExecute && inst.Filters.Execute
}

// BuildCompileRequest reads the instance sources and shapes a fresh request
func BuildCompileRequest(ws Workspace, inst *Instance, defaultLang string) (*CompileRequest, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	if inst.Compiler.ID == "" {
		return nil, configurationErrorf("instance %s has no compiler selected", inst.ID)
	}

	request := &CompileRequest{
		Lang:                firstNonEmpty(inst.Compiler.Lang, defaultLang),
		Compiler:            inst.Compiler.ID,
		AllowStoreCodeDebug: true,
	}

	switch inst.Kind {
	case SingleFile:
		source, err := ws.ReadSource(inst.Input)
		if err != nil {
			return nil, err
		}
		request.Source = source
	case MultiFile:
		cmake, files, err := ws.ReadProject(inst.Src)
		if err != nil {
			return nil, err
		}
		request.Source = cmake
		request.Files = files
	}

	request.Options = ToRequestOptions(inst)
	return request, nil
}

// endpointSuffix selects /compile or /cmake
func endpointSuffix(inst *Instance) string {
	if inst.Kind == MultiFile {
		return "cmake"
	}
	return "compile"
}

// SplitCommandArgs splits a command line on spaces, keeping double-quoted
// parts together. The quotes themselves are dropped; "" is an empty
// argument. A backslash escapes a following quote or backslash.
func SplitCommandArgs(commandLine string) []string {
	var args []string
	var current strings.Builder
	insideQuotes := false
	started := false
	runes := []rune(commandLine)

	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		switch {
		case ch == '\\' && i+1 < len(runes) && (runes[i+1] == '"' || runes[i+1] == '\\'):
			i++
			current.WriteRune(runes[i])
			started = true
		case ch == ' ' && !insideQuotes:
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		case ch == '"':
			insideQuotes = !insideQuotes
			started = true
		default:
			current.WriteRune(ch)
			started = true
		}
	}

	if started {
		args = append(args, current.String())
	}

	return args
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
