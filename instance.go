package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

const (
	// InputActive selects the editor that currently has focus
	InputActive = "active"
	// OutputWebview renders results in the view instead of writing a file
	OutputWebview = "webview"
)

// InstanceKind discriminates single-file and CMake project instances
type InstanceKind int

const (
	SingleFile InstanceKind = iota
	MultiFile
)

func (k InstanceKind) String() string {
	switch k {
	case SingleFile:
		return "single"
	case MultiFile:
		return "multi"
	default:
		return fmt.Sprintf("InstanceKind(%d)", int(k))
	}
}

func (k InstanceKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *InstanceKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "single", "":
		*k = SingleFile
	case "multi":
		*k = MultiFile
	default:
		return fmt.Errorf("unknown instance kind %q", s)
	}
	return nil
}

// Filters are the output toggles understood by the remote service.
// SkipAsm travels in CompilerOptions, not in the filters object.
type Filters struct {
	BinaryObject bool `json:"binaryObject"`
	Binary       bool `json:"binary"`
	Execute      bool `json:"execute"`
	Intel        bool `json:"intel"`
	Demangle     bool `json:"demangle"`
	Labels       bool `json:"labels"`
	LibraryCode  bool `json:"libraryCode"`
	Directives   bool `json:"directives"`
	CommentOnly  bool `json:"commentOnly"`
	Trim         bool `json:"trim"`
	DebugCalls   bool `json:"debugCalls"`
	SkipAsm      bool `json:"-"`
}

// DefaultFilters seeds a filter set from configuration
func DefaultFilters(cfg FilterConfig) Filters {
	return Filters{
		BinaryObject: cfg.BinaryObject,
		Binary:       cfg.Binary,
		Execute:      cfg.Execute,
		Intel:        cfg.Intel,
		Demangle:     cfg.Demangle,
		Labels:       cfg.Labels,
		LibraryCode:  cfg.LibraryCode,
		Directives:   cfg.Directives,
		CommentOnly:  cfg.CommentOnly,
		Trim:         cfg.Trim,
		DebugCalls:   cfg.DebugCalls,
		SkipAsm:      cfg.SkipAsm,
	}
}

// Copy returns an independent filter set
func (f Filters) Copy() Filters {
	return f
}

func (f *Filters) field(name string) (*bool, error) {
	switch name {
	case "binaryObject":
		return &f.BinaryObject, nil
	case "binary":
		return &f.Binary, nil
	case "execute":
		return &f.Execute, nil
	case "intel":
		return &f.Intel, nil
	case "demangle":
		return &f.Demangle, nil
	case "labels":
		return &f.Labels, nil
	case "libraryCode":
		return &f.LibraryCode, nil
	case "directives":
		return &f.Directives, nil
	case "commentOnly":
		return &f.CommentOnly, nil
	case "trim":
		return &f.Trim, nil
	case "debugCalls":
		return &f.DebugCalls, nil
	case "skipAsm":
		return &f.SkipAsm, nil
	}
	return nil, configurationErrorf("unknown filter %q", name)
}

// Toggle flips the named filter and returns its new value
func (f *Filters) Toggle(name string) (bool, error) {
	p, err := f.field(name)
	if err != nil {
		return false, err
	}
	*p = !*p
	return *p, nil
}

// FilterToggle is a filter the view offers for a given compiler
type FilterToggle struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Value bool   `json:"value"`
}

// FilterToggles lists the filters available for the compiler, in display order
func FilterToggles(info CompilerInfo, f Filters) []FilterToggle {
	type entry struct {
		name, label string
		enabled     bool
	}
	entries := []entry{
		{"binaryObject", "Compile to binary object", info.SupportsBinaryObject},
		{"binary", "Compile to binary", info.SupportsBinary},
		{"execute", "Execute the code", info.SupportsExecute},
		{"intel", "Use Intel assembly syntax", info.SupportsIntel},
		{"demangle", "Demangle the symbols", info.SupportsDemangle},
		{"labels", "Hide unused labels", true},
		{"libraryCode", "Hide library code", info.SupportsLibraryCodeFilter},
		{"directives", "Hide directives", true},
		{"commentOnly", "Hide comment only lines", true},
		{"trim", "Horizontal whitespace", true},
		{"debugCalls", "Debug calls", true},
	}

	toggles := make([]FilterToggle, 0, len(entries))
	for _, e := range entries {
		if !e.enabled {
			continue
		}
		p, _ := f.field(e.name)
		toggles = append(toggles, FilterToggle{Name: e.name, Label: e.label, Value: *p})
	}
	return toggles
}

// Instance is one configured compilation unit. Single-file instances use
// Input; multi-file instances use Src and CMakeArgs.
type Instance struct {
	ID        string       `json:"id"`
	Kind      InstanceKind `json:"kind"`
	Input     string       `json:"input,omitempty"`
	Src       string       `json:"src,omitempty"`
	CMakeArgs string       `json:"cmakeArgs,omitempty"`
	Compiler  CompilerInfo `json:"compiler"`
	Options   string       `json:"options"`
	Exec      string       `json:"exec"`
	Stdin     string       `json:"stdin"`
	Output    string       `json:"output"`
	Filters   Filters      `json:"filters"`

	// Extra keeps compiler config fields of a loaded link that are not
	// modelled here (libs, tools, ...) so sharing again does not drop them.
	Extra map[string]json.RawMessage `json:"-"`
}

// NewInstance creates an instance seeded from the configured defaults
func NewInstance(kind InstanceKind, config *Config, info CompilerInfo) *Instance {
	inst := &Instance{
		ID:       uuid.NewString(),
		Kind:     kind,
		Compiler: info,
		Options:  config.OptionsFor(info.Name),
		Exec:     config.Defaults.Exec,
		Stdin:    config.Defaults.Stdin,
		Output:   config.Defaults.Output,
		Filters:  DefaultFilters(config.Defaults.Filters),
	}
	switch kind {
	case SingleFile:
		inst.Input = config.Defaults.Input
		if inst.Input == "" {
			inst.Input = InputActive
		}
	case MultiFile:
		inst.Src = config.Defaults.Src
		inst.CMakeArgs = config.Defaults.CMakeArgs
	}
	return inst
}

// Copy deep-copies the instance under a fresh id
func (inst *Instance) Copy() *Instance {
	dup := &Instance{
		ID:        uuid.NewString(),
		Kind:      inst.Kind,
		Input:     inst.Input,
		Src:       inst.Src,
		CMakeArgs: inst.CMakeArgs,
		Compiler:  inst.Compiler,
		Options:   inst.Options,
		Exec:      inst.Exec,
		Stdin:     inst.Stdin,
		Output:    inst.Output,
		Filters:   inst.Filters.Copy(),
	}
	if inst.Extra != nil {
		dup.Extra = make(map[string]json.RawMessage, len(inst.Extra))
		for k, v := range inst.Extra {
			dup.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return dup
}

// Source returns the key identifying where the instance reads its code
func (inst *Instance) Source() string {
	switch inst.Kind {
	case MultiFile:
		return filepath.Clean(inst.Src)
	default:
		return inst.Input
	}
}

// DescribeOutput tells where results of this instance go
func (inst *Instance) DescribeOutput() string {
	if inst.RendersInline() {
		return "render inline"
	}
	return "write to " + inst.Output
}

// RendersInline reports whether results go to the view
func (inst *Instance) RendersInline() bool {
	return inst.Output == "" || inst.Output == OutputWebview
}

// ExecutorOnly reports whether the instance only asks for program output
func (inst *Instance) ExecutorOnly() bool {
	return inst.Filters.Execute && inst.Filters.SkipAsm
}

// Validate enforces that exactly one source representation is in use
func (inst *Instance) Validate() error {
	switch inst.Kind {
	case SingleFile:
		if inst.Input == "" {
			return configurationErrorf("instance %s has no input", inst.ID)
		}
		if inst.Src != "" || inst.CMakeArgs != "" {
			return inconsistentErrorf("single-file instance %s carries project fields", inst.ID)
		}
	case MultiFile:
		if inst.Src == "" {
			return configurationErrorf("instance %s has no source directory", inst.ID)
		}
		if inst.Input != "" {
			return inconsistentErrorf("multi-file instance %s carries an editor input", inst.ID)
		}
	default:
		return inconsistentErrorf("instance %s has unknown kind %v", inst.ID, inst.Kind)
	}
	return nil
}
