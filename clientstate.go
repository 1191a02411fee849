package main

import (
	"context"
	"encoding/json"
	"reflect"
	"strings"
)

// ClientState is the document behind a short link. It is shared with the
// hosted web client, so every record keeps the fields it does not model in
// Extra and writes them back unchanged.
type ClientState struct {
	Sessions []*Session `json:"sessions"`
	Trees    []*Tree    `json:"trees,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Session groups the compiler and executor configs that share one source
type Session struct {
	ID        int               `json:"id"`
	Language  string            `json:"language"`
	Source    string            `json:"source"`
	Compilers []*CompilerConfig `json:"compilers"`
	Executors []*ExecutorConfig `json:"executors"`

	Extra map[string]json.RawMessage `json:"-"`
}

// CompilerConfig is one compiler pane. Libraries, tools and special outputs
// travel untouched in Extra.
type CompilerConfig struct {
	InternalID *int     `json:"_internalid,omitempty"`
	ID         string   `json:"id"`
	Options    string   `json:"options"`
	Filters    *Filters `json:"filters,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ExecutorConfig is one executor pane; Compiler points back to the compiler
// config it runs
type ExecutorConfig struct {
	CompilerVisible       bool            `json:"compilerVisible"`
	CompilerOutputVisible bool            `json:"compilerOutputVisible"`
	Arguments             ExecArgs        `json:"arguments"`
	ArgumentsVisible      bool            `json:"argumentsVisible"`
	Stdin                 string          `json:"stdin"`
	StdinVisible          bool            `json:"stdinVisible"`
	Compiler              *CompilerConfig `json:"compiler"`
	Wrap                  *bool           `json:"wrap,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

// Tree is a CMake project with its own compiler and executor configs
type Tree struct {
	ID                   int               `json:"id"`
	CMakeArgs            string            `json:"cmakeArgs"`
	CustomOutputFilename string            `json:"customOutputFilename"`
	IsCMakeProject       bool              `json:"isCMakeProject"`
	CompilerLanguageID   string            `json:"compilerLanguageId"`
	Files                []*TreeFile       `json:"files"`
	NewFileID            int               `json:"newFileId"`
	Compilers            []*CompilerConfig `json:"compilers"`
	Executors            []*ExecutorConfig `json:"executors"`

	Extra map[string]json.RawMessage `json:"-"`
}

// TreeFile is one file of a Tree
type TreeFile struct {
	ID           int    `json:"id"`
	FileID       int    `json:"fileId"`
	IsIncluded   bool   `json:"isIncluded"`
	IsOpen       bool   `json:"isOpen"`
	IsMainSource bool   `json:"isMainSource"`
	Filename     string `json:"filename"`
	Content      string `json:"content"`
	EditorID     int    `json:"editorId"`
	LangID       string `json:"langId"`

	Extra map[string]json.RawMessage `json:"-"`
}

// ExecArgs are program arguments. They are written as an array; older links
// carry a single space separated string, which is accepted too.
type ExecArgs []string

func (a *ExecArgs) UnmarshalJSON(data []byte) error {
	var line string
	if err := json.Unmarshal(data, &line); err == nil {
		*a = SplitCommandArgs(line)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = ExecArgs(list)
	return nil
}

func (a ExecArgs) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(a))
}

var argEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// String joins the arguments back into a command line SplitCommandArgs accepts
func (a ExecArgs) String() string {
	parts := make([]string, len(a))
	for i, arg := range a {
		quote := arg == "" || strings.Contains(arg, " ")
		arg = argEscaper.Replace(arg)
		if quote {
			arg = `"` + arg + `"`
		}
		parts[i] = arg
	}
	return strings.Join(parts, " ")
}

// BuildClientState folds instances into a client state document. Instances
// reading the same source share a session and the source is read once;
// multi-file instances all go to a single tree.
func BuildClientState(ws Workspace, instances []*Instance, language string) (*ClientState, error) {
	state := &ClientState{Sessions: []*Session{}}
	sessionIndex := make(map[string]int)
	nextInternalID := 1

	var tree *Tree
	var treeSrc string

	for _, inst := range instances {
		if err := inst.Validate(); err != nil {
			return nil, err
		}
		lang := firstNonEmpty(inst.Compiler.Lang, language)

		if inst.Kind == MultiFile {
			if tree == nil {
				cmake, files, err := ws.ReadProject(inst.Src)
				if err != nil {
					return nil, err
				}
				tree = newTree(cmake, files, inst.CMakeArgs, lang)
				treeSrc = inst.Source()
			} else if inst.Source() != treeSrc {
				return nil, inconsistentErrorf("multi-file instances use different sources: %q (instance %s) and %q", inst.Src, inst.ID, treeSrc)
			} else if inst.CMakeArgs != tree.CMakeArgs {
				LogDebugf("Instance %s has cmake args %q, the shared tree keeps %q", inst.ID, inst.CMakeArgs, tree.CMakeArgs)
			}
			addConfigs(&tree.Compilers, &tree.Executors, inst, &nextInternalID)
			continue
		}

		key := inst.Source()
		index, seen := sessionIndex[key]
		if !seen {
			source, err := ws.ReadSource(inst.Input)
			if err != nil {
				return nil, err
			}
			index = len(state.Sessions)
			sessionIndex[key] = index
			state.Sessions = append(state.Sessions, &Session{
				ID:        index + 1,
				Language:  lang,
				Source:    source,
				Compilers: []*CompilerConfig{},
				Executors: []*ExecutorConfig{},
			})
		}
		session := state.Sessions[index]
		addConfigs(&session.Compilers, &session.Executors, inst, &nextInternalID)
	}

	if tree != nil {
		state.Trees = []*Tree{tree}
	}
	return state, nil
}

func newTree(cmake string, files []SourceFile, cmakeArgs, lang string) *Tree {
	tree := &Tree{
		ID:                   1,
		CMakeArgs:            cmakeArgs,
		CustomOutputFilename: multiFileOutputName,
		IsCMakeProject:       true,
		CompilerLanguageID:   lang,
		Compilers:            []*CompilerConfig{},
		Executors:            []*ExecutorConfig{},
	}
	tree.Files = append(tree.Files, &TreeFile{
		ID:           1,
		FileID:       1,
		IsIncluded:   true,
		IsOpen:       true,
		IsMainSource: true,
		Filename:     cmakeEntry,
		Content:      cmake,
		EditorID:     -1,
		LangID:       "cmake",
	})
	for i, file := range files {
		tree.Files = append(tree.Files, &TreeFile{
			ID:         i + 2,
			FileID:     i + 2,
			IsIncluded: true,
			Filename:   file.Filename,
			Content:    file.Contents,
			EditorID:   -1,
			LangID:     lang,
		})
	}
	tree.NewFileID = len(tree.Files) + 1
	return tree
}

// addConfigs appends the compiler config of inst and, when it has something
// to run with, its executor. Executor-only instances produce an executor alone.
func addConfigs(compilers *[]*CompilerConfig, executors *[]*ExecutorConfig, inst *Instance, nextInternalID *int) {
	id := *nextInternalID
	*nextInternalID++

	filters := inst.Filters.Copy()
	compiler := &CompilerConfig{
		InternalID: &id,
		ID:         inst.Compiler.ID,
		Options:    inst.Options,
		Filters:    &filters,
		Extra:      cloneExtra(inst.Extra),
	}

	executorOnly := inst.ExecutorOnly()
	if !executorOnly {
		*compilers = append(*compilers, compiler)
	}

	if executorOnly || (inst.Compiler.SupportsExecute && (inst.Exec != "" || inst.Stdin != "")) {
		*executors = append(*executors, &ExecutorConfig{
			CompilerVisible:       !executorOnly,
			CompilerOutputVisible: !executorOnly,
			Arguments:             ExecArgs(SplitCommandArgs(inst.Exec)),
			ArgumentsVisible:      true,
			Stdin:                 inst.Stdin,
			StdinVisible:          true,
			Compiler:              compiler.clone(),
		})
	}
}

// ToInstances materializes the document back into instances. Sources are
// staged through ws. Each compiler config becomes an instance and takes over
// the executor that points back at it; executors nobody claimed become
// executor-only instances afterwards.
func (s *ClientState) ToInstances(ctx context.Context, ws Workspace, resolver CompilerResolver, config *Config) ([]*Instance, error) {
	var instances []*Instance

	for _, session := range s.Sessions {
		lang := firstNonEmpty(session.Language, config.Service.Language)
		path, err := ws.StageSource(session.Source, lang)
		if err != nil {
			return nil, err
		}

		converted, err := convertConfigs(ctx, resolver, config, lang, session.Compilers, session.Executors, func(inst *Instance) {
			inst.Kind = SingleFile
			inst.Input = path
			inst.Src = ""
			inst.CMakeArgs = ""
		})
		if err != nil {
			return nil, err
		}
		instances = append(instances, converted...)
	}

	for _, tree := range s.Trees {
		files := make([]SourceFile, 0, len(tree.Files))
		for _, file := range tree.Files {
			if !file.IsIncluded && !file.IsMainSource {
				continue
			}
			files = append(files, SourceFile{Filename: file.Filename, Contents: file.Content})
		}
		src, err := ws.StageTree(files)
		if err != nil {
			return nil, err
		}

		lang := firstNonEmpty(tree.CompilerLanguageID, config.Service.Language)
		converted, err := convertConfigs(ctx, resolver, config, lang, tree.Compilers, tree.Executors, func(inst *Instance) {
			inst.Kind = MultiFile
			inst.Input = ""
			inst.Src = src
			inst.CMakeArgs = tree.CMakeArgs
		})
		if err != nil {
			return nil, err
		}
		instances = append(instances, converted...)
	}

	return instances, nil
}

func convertConfigs(ctx context.Context, resolver CompilerResolver, config *Config, lang string,
	compilers []*CompilerConfig, executors []*ExecutorConfig, place func(*Instance)) ([]*Instance, error) {

	pending := append([]*ExecutorConfig(nil), executors...)
	var instances []*Instance

	for _, compiler := range compilers {
		inst, err := instanceFromConfig(ctx, resolver, config, lang, compiler)
		if err != nil {
			return nil, err
		}
		place(inst)

		inst.Filters.Execute = false
		for i, executor := range pending {
			if !sameCompiler(executor.Compiler, compiler) {
				continue
			}
			inst.Exec = executor.Arguments.String()
			inst.Stdin = executor.Stdin
			inst.Filters.Execute = true
			pending = append(pending[:i], pending[i+1:]...)
			break
		}
		instances = append(instances, inst)
	}

	for _, executor := range pending {
		inst, err := instanceFromConfig(ctx, resolver, config, lang, executor.Compiler)
		if err != nil {
			return nil, err
		}
		place(inst)
		inst.Exec = executor.Arguments.String()
		inst.Stdin = executor.Stdin
		inst.Filters.Execute = true
		inst.Filters.SkipAsm = true
		instances = append(instances, inst)
	}

	return instances, nil
}

func instanceFromConfig(ctx context.Context, resolver CompilerResolver, config *Config, lang string, compiler *CompilerConfig) (*Instance, error) {
	info, err := resolver.Lookup(ctx, lang, compiler.ID)
	if err != nil {
		return nil, err
	}

	inst := NewInstance(SingleFile, config, info)
	inst.Options = compiler.Options
	inst.Exec = ""
	inst.Stdin = ""
	if compiler.Filters != nil {
		inst.Filters = compiler.Filters.Copy()
	}
	inst.Extra = cloneExtra(compiler.Extra)
	return inst, nil
}

// sameCompiler matches an executor back-reference by internal id. Links
// written without internal ids fall back to compiler id and options.
func sameCompiler(ref, compiler *CompilerConfig) bool {
	if ref == nil {
		return false
	}
	if ref.InternalID != nil && compiler.InternalID != nil {
		return *ref.InternalID == *compiler.InternalID
	}
	return ref.ID == compiler.ID && ref.Options == compiler.Options
}

// DecodeClientState parses a short link document and checks the fields the
// conversion depends on
func DecodeClientState(raw []byte) (*ClientState, error) {
	var state ClientState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, malformedLinkf("%v", err)
	}
	if len(state.Sessions) == 0 && len(state.Trees) == 0 {
		return nil, malformedLinkf("link holds neither sessions nor trees")
	}

	for i, session := range state.Sessions {
		if session == nil {
			return nil, malformedLinkf("session %d is null", i)
		}
		if err := checkConfigs(session.Compilers, session.Executors); err != nil {
			return nil, err
		}
	}
	for i, tree := range state.Trees {
		if tree == nil {
			return nil, malformedLinkf("tree %d is null", i)
		}
		if err := checkConfigs(tree.Compilers, tree.Executors); err != nil {
			return nil, err
		}
		for _, file := range tree.Files {
			if file == nil || file.Filename == "" {
				return nil, malformedLinkf("tree %d has a file without a name", tree.ID)
			}
		}
	}
	return &state, nil
}

func checkConfigs(compilers []*CompilerConfig, executors []*ExecutorConfig) error {
	for i, compiler := range compilers {
		if compiler == nil || compiler.ID == "" {
			return malformedLinkf("compiler %d has no id", i)
		}
	}
	for i, executor := range executors {
		if executor == nil || executor.Compiler == nil || executor.Compiler.ID == "" {
			return malformedLinkf("executor %d does not name a compiler", i)
		}
	}
	return nil
}

func (c *CompilerConfig) clone() *CompilerConfig {
	dup := *c
	if c.InternalID != nil {
		id := *c.InternalID
		dup.InternalID = &id
	}
	if c.Filters != nil {
		filters := c.Filters.Copy()
		dup.Filters = &filters
	}
	dup.Extra = cloneExtra(c.Extra)
	return &dup
}

func cloneExtra(extra map[string]json.RawMessage) map[string]json.RawMessage {
	if extra == nil {
		return nil
	}
	dup := make(map[string]json.RawMessage, len(extra))
	for k, v := range extra {
		dup[k] = append(json.RawMessage(nil), v...)
	}
	return dup
}

// Open record plumbing: every record decodes its modelled fields through a
// plain alias type and keeps the remaining keys.

func (s *ClientState) UnmarshalJSON(data []byte) error {
	type plain ClientState
	return decodeOpen(data, (*plain)(s), &s.Extra)
}

func (s ClientState) MarshalJSON() ([]byte, error) {
	type plain ClientState
	return encodeOpen(plain(s), s.Extra, nil)
}

func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	return decodeOpen(data, (*plain)(s), &s.Extra)
}

func (s Session) MarshalJSON() ([]byte, error) {
	type plain Session
	return encodeOpen(plain(s), s.Extra, nil)
}

func (c *CompilerConfig) UnmarshalJSON(data []byte) error {
	type plain CompilerConfig
	return decodeOpen(data, (*plain)(c), &c.Extra)
}

// emptyCompilerLists are written when a compiler config has none of its own
var emptyCompilerLists = []string{"libs", "specialoutputs", "tools"}

func (c CompilerConfig) MarshalJSON() ([]byte, error) {
	type plain CompilerConfig
	return encodeOpen(plain(c), c.Extra, emptyCompilerLists)
}

func (e *ExecutorConfig) UnmarshalJSON(data []byte) error {
	type plain ExecutorConfig
	return decodeOpen(data, (*plain)(e), &e.Extra)
}

func (e ExecutorConfig) MarshalJSON() ([]byte, error) {
	type plain ExecutorConfig
	return encodeOpen(plain(e), e.Extra, nil)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	type plain Tree
	return decodeOpen(data, (*plain)(t), &t.Extra)
}

func (t Tree) MarshalJSON() ([]byte, error) {
	type plain Tree
	return encodeOpen(plain(t), t.Extra, nil)
}

func (f *TreeFile) UnmarshalJSON(data []byte) error {
	type plain TreeFile
	return decodeOpen(data, (*plain)(f), &f.Extra)
}

func (f TreeFile) MarshalJSON() ([]byte, error) {
	type plain TreeFile
	return encodeOpen(plain(f), f.Extra, nil)
}

func decodeOpen(data []byte, known interface{}, extra *map[string]json.RawMessage) error {
	if err := json.Unmarshal(data, known); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key := range jsonKeys(known) {
		delete(fields, key)
	}
	if len(fields) == 0 {
		*extra = nil
		return nil
	}
	*extra = fields
	return nil
}

func encodeOpen(known interface{}, extra map[string]json.RawMessage, emptyLists []string) ([]byte, error) {
	data, err := json.Marshal(known)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 && len(emptyLists) == 0 {
		return data, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, modelled := fields[key]; !modelled {
			fields[key] = value
		}
	}
	for _, key := range emptyLists {
		if _, ok := fields[key]; !ok {
			fields[key] = json.RawMessage("[]")
		}
	}
	return json.Marshal(fields)
}

// jsonKeys returns the json names of the fields of a struct or struct pointer
func jsonKeys(v interface{}) map[string]bool {
	t := reflect.TypeOf(v)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}
