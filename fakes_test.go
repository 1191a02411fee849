package main

import (
	"context"
	"fmt"
	"sync"
)

// memWorkspace keeps sources and projects in memory
type memWorkspace struct {
	mu       sync.Mutex
	sources  map[string]string
	projects map[string][]SourceFile
	reads    map[string]int
	staged   []string
	trees    []string
	written  map[string]string
}

func newMemWorkspace() *memWorkspace {
	return &memWorkspace{
		sources:  make(map[string]string),
		projects: make(map[string][]SourceFile),
		reads:    make(map[string]int),
		written:  make(map[string]string),
	}
}

func (w *memWorkspace) ReadSource(origin string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reads[origin]++
	source, ok := w.sources[origin]
	if !ok {
		return "", configurationErrorf("file not found: %s", origin)
	}
	return source, nil
}

func (w *memWorkspace) ReadProject(dir string) (string, []SourceFile, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reads[dir]++
	files, ok := w.projects[dir]
	if !ok {
		return "", nil, configurationErrorf("%s not found in %s", cmakeEntry, dir)
	}
	var cmake string
	var rest []SourceFile
	for _, file := range files {
		if file.Filename == cmakeEntry {
			cmake = file.Contents
			continue
		}
		rest = append(rest, file)
	}
	return cmake, rest, nil
}

func (w *memWorkspace) StageSource(content, language string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	path := fmt.Sprintf("/staged/source%d%s", len(w.staged)+1, sourceExtension(language))
	w.sources[path] = content
	w.staged = append(w.staged, path)
	return path, nil
}

func (w *memWorkspace) StageTree(files []SourceFile) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	path := fmt.Sprintf("/staged/cmake%d", len(w.trees)+1)
	w.projects[path] = append([]SourceFile(nil), files...)
	w.trees = append(w.trees, path)
	return path, nil
}

func (w *memWorkspace) WriteFile(path, contents string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.written[path] = contents
	return nil
}

// staticCompilers resolves from a fixed list
type staticCompilers []CompilerInfo

func (c staticCompilers) Lookup(_ context.Context, lang, nameOrID string) (CompilerInfo, error) {
	for _, info := range c {
		if info.Name == nameOrID || info.ID == nameOrID {
			return info, nil
		}
	}
	return CompilerInfo{}, inconsistentErrorf("compiler %q not found among %s compilers", nameOrID, lang)
}

func (c staticCompilers) FetchCompilers(_ context.Context, lang string) ([]CompilerInfo, error) {
	return append([]CompilerInfo(nil), c...), nil
}

var (
	gccInfo = CompilerInfo{
		ID:              "g132",
		Name:            "x86-64 gcc 13.2",
		Lang:            "c++",
		SupportsExecute: true,
		SupportsBinary:  true,
		SupportsIntel:   true,
	}
	clangInfo = CompilerInfo{
		ID:              "clang1701",
		Name:            "x86-64 clang 17.0.1",
		Lang:            "c++",
		SupportsExecute: true,
	}
	crossInfo = CompilerInfo{
		ID:   "armg1320",
		Name: "ARM gcc 13.2",
		Lang: "c++",
	}

	testCompilers = staticCompilers{gccInfo, clangInfo, crossInfo}
)

func testConfig() *Config {
	return DefaultConfig()
}

func singleInstance(input string, info CompilerInfo) *Instance {
	inst := NewInstance(SingleFile, testConfig(), info)
	inst.Input = input
	return inst
}

func multiInstance(src string, info CompilerInfo) *Instance {
	inst := NewInstance(MultiFile, testConfig(), info)
	inst.Src = src
	return inst
}

func intPtr(n int) *int {
	return &n
}
