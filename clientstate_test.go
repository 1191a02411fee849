package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, state *ClientState) *ClientState {
	t.Helper()
	data, err := json.Marshal(state)
	require.NoError(t, err)
	decoded, err := DecodeClientState(data)
	require.NoError(t, err)
	return decoded
}

func TestClientStateRoundTrip(t *testing.T) {
	ws := newMemWorkspace()
	ws.sources["/src/a.cpp"] = "int a;"
	ws.sources["/src/b.cpp"] = "int b;"

	a := singleInstance("/src/a.cpp", gccInfo)
	a.Exec = "1 2"
	a.Stdin = "in"
	a.Filters.Execute = true
	a.Options = "-O1"
	b := singleInstance("/src/b.cpp", clangInfo)
	c := singleInstance("/src/a.cpp", clangInfo)
	c.Stdin = "x"

	state, err := BuildClientState(ws, []*Instance{a, b, c}, "c++")
	require.NoError(t, err)
	require.Len(t, state.Sessions, 2)
	assert.Equal(t, 1, state.Sessions[0].ID)
	assert.Equal(t, 2, state.Sessions[1].ID)
	assert.Len(t, state.Sessions[0].Compilers, 2)
	assert.Len(t, state.Sessions[0].Executors, 2)
	assert.Len(t, state.Sessions[1].Compilers, 1)
	assert.Empty(t, state.Sessions[1].Executors)
	assert.Equal(t, 1, ws.reads["/src/a.cpp"])

	loaded, err := roundTrip(t, state).ToInstances(context.Background(), ws, testCompilers, testConfig())
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, "g132", loaded[0].Compiler.ID)
	assert.Equal(t, "-O1", loaded[0].Options)
	assert.Equal(t, "1 2", loaded[0].Exec)
	assert.Equal(t, "in", loaded[0].Stdin)
	assert.True(t, loaded[0].Filters.Execute)

	assert.Equal(t, "clang1701", loaded[1].Compiler.ID)
	assert.Equal(t, "x", loaded[1].Stdin)
	assert.Equal(t, loaded[0].Input, loaded[1].Input)

	assert.Equal(t, "clang1701", loaded[2].Compiler.ID)
	assert.Empty(t, loaded[2].Stdin)
	assert.False(t, loaded[2].Filters.Execute)
	assert.NotEqual(t, loaded[0].Input, loaded[2].Input)

	assert.Equal(t, "int a;", ws.sources[loaded[0].Input])
	assert.Equal(t, "int b;", ws.sources[loaded[2].Input])
	for _, inst := range loaded {
		assert.Equal(t, SingleFile, inst.Kind)
		require.NoError(t, inst.Validate())
	}
}

func TestClientStateFoldsSharedSource(t *testing.T) {
	ws := newMemWorkspace()
	ws.sources["/src/a.cpp"] = "int a;"
	ws.sources["/src/b.cpp"] = "int b;"

	instances := []*Instance{
		singleInstance("/src/a.cpp", gccInfo),
		singleInstance("/src/a.cpp", clangInfo),
		singleInstance("/src/a.cpp", crossInfo),
		singleInstance("/src/b.cpp", gccInfo),
	}
	state, err := BuildClientState(ws, instances, "c++")
	require.NoError(t, err)
	require.Len(t, state.Sessions, 2)
	assert.Len(t, state.Sessions[0].Compilers, 3)
	assert.Len(t, state.Sessions[1].Compilers, 1)
	assert.Equal(t, 1, ws.reads["/src/a.cpp"])
	assert.Equal(t, 1, ws.reads["/src/b.cpp"])
}

func TestClientStateMultiFile(t *testing.T) {
	ws := newMemWorkspace()
	ws.projects["/proj"] = []SourceFile{
		{Filename: cmakeEntry, Contents: "project(p)"},
		{Filename: "main.cpp", Contents: "int main() {}"},
		{Filename: "lib/util.h", Contents: "#pragma once"},
	}

	first := multiInstance("/proj", gccInfo)
	first.CMakeArgs = "-DA=1"
	second := multiInstance("/proj/", clangInfo)
	second.CMakeArgs = "-DB=1"

	state, err := BuildClientState(ws, []*Instance{first, second}, "c++")
	require.NoError(t, err)
	assert.Empty(t, state.Sessions)
	require.Len(t, state.Trees, 1)

	tree := state.Trees[0]
	assert.Equal(t, "-DA=1", tree.CMakeArgs)
	assert.True(t, tree.IsCMakeProject)
	assert.Len(t, tree.Compilers, 2)
	require.Len(t, tree.Files, 3)
	assert.Equal(t, cmakeEntry, tree.Files[0].Filename)
	assert.True(t, tree.Files[0].IsMainSource)
	assert.Equal(t, 4, tree.NewFileID)

	loaded, err := roundTrip(t, state).ToInstances(context.Background(), ws, testCompilers, testConfig())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for _, inst := range loaded {
		assert.Equal(t, MultiFile, inst.Kind)
		assert.Equal(t, "/staged/cmake1", inst.Src)
		assert.Equal(t, "-DA=1", inst.CMakeArgs)
	}
	assert.Len(t, ws.projects["/staged/cmake1"], 3)
}

func TestClientStateMixedSourcesFail(t *testing.T) {
	ws := newMemWorkspace()
	ws.projects["/one"] = []SourceFile{{Filename: cmakeEntry, Contents: "a"}}
	ws.projects["/two"] = []SourceFile{{Filename: cmakeEntry, Contents: "b"}}

	_, err := BuildClientState(ws, []*Instance{multiInstance("/one", gccInfo), multiInstance("/two", gccInfo)}, "c++")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistent))
}

func TestClientStateMissingSource(t *testing.T) {
	_, err := BuildClientState(newMemWorkspace(), []*Instance{singleInstance("/gone.cpp", gccInfo)}, "c++")
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestExecutorPairingByInternalID(t *testing.T) {
	doc := `{
		"sessions": [{
			"id": 1,
			"language": "c++",
			"source": "int main() {}",
			"compilers": [
				{"_internalid": 1, "id": "g132", "options": "-O1"},
				{"_internalid": 2, "id": "g132", "options": "-O2"}
			],
			"executors": [
				{"arguments": ["second"], "stdin": "two", "compiler": {"_internalid": 2, "id": "g132", "options": "-O2"}},
				{"arguments": ["first"], "stdin": "one", "compiler": {"_internalid": 1, "id": "g132", "options": "-O1"}},
				{"arguments": [], "stdin": "three", "compiler": {"_internalid": 7, "id": "clang1701", "options": "-O3"}}
			]
		}]
	}`
	state, err := DecodeClientState([]byte(doc))
	require.NoError(t, err)

	loaded, err := state.ToInstances(context.Background(), newMemWorkspace(), testCompilers, testConfig())
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, "-O1", loaded[0].Options)
	assert.Equal(t, "first", loaded[0].Exec)
	assert.Equal(t, "one", loaded[0].Stdin)
	assert.False(t, loaded[0].ExecutorOnly())

	assert.Equal(t, "-O2", loaded[1].Options)
	assert.Equal(t, "second", loaded[1].Exec)
	assert.Equal(t, "two", loaded[1].Stdin)

	leftover := loaded[2]
	assert.Equal(t, "clang1701", leftover.Compiler.ID)
	assert.Equal(t, "three", leftover.Stdin)
	assert.True(t, leftover.ExecutorOnly())
}

func TestExecutorPairingWithoutInternalIDs(t *testing.T) {
	doc := `{"sessions": [{
		"id": 1, "language": "c++", "source": "x",
		"compilers": [{"id": "g132", "options": "-O1"}, {"id": "clang1701", "options": "-O1"}],
		"executors": [{"arguments": "a \"b c\"", "stdin": "", "compiler": {"id": "clang1701", "options": "-O1"}}]
	}]}`
	state, err := DecodeClientState([]byte(doc))
	require.NoError(t, err)

	loaded, err := state.ToInstances(context.Background(), newMemWorkspace(), testCompilers, testConfig())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.False(t, loaded[0].Filters.Execute)
	assert.True(t, loaded[1].Filters.Execute)
	assert.Equal(t, `a "b c"`, loaded[1].Exec)
	assert.Equal(t, []string{"a", "b c"}, SplitCommandArgs(loaded[1].Exec))
}

func TestExecutorOnlyInstanceRoundTrip(t *testing.T) {
	ws := newMemWorkspace()
	ws.sources["/src/a.cpp"] = "int main() {}"

	inst := singleInstance("/src/a.cpp", gccInfo)
	inst.Filters.Execute = true
	inst.Filters.SkipAsm = true
	inst.Stdin = "data"

	state, err := BuildClientState(ws, []*Instance{inst}, "c++")
	require.NoError(t, err)
	require.Len(t, state.Sessions, 1)
	assert.Empty(t, state.Sessions[0].Compilers)
	require.Len(t, state.Sessions[0].Executors, 1)
	assert.False(t, state.Sessions[0].Executors[0].CompilerVisible)

	loaded, err := roundTrip(t, state).ToInstances(context.Background(), ws, testCompilers, testConfig())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.True(t, loaded[0].ExecutorOnly())
	assert.Equal(t, "data", loaded[0].Stdin)
}

func TestClientStateKeepsUnknownFields(t *testing.T) {
	doc := `{
		"sessions": [{
			"id": 1, "language": "c++", "source": "x", "filename": "a.cpp",
			"compilers": [{
				"_internalid": 1, "id": "g132", "options": "",
				"libs": [{"name": "boost", "ver": "181"}],
				"compilerName": "custom"
			}],
			"executors": []
		}],
		"trees": []
	}`
	state, err := DecodeClientState([]byte(doc))
	require.NoError(t, err)
	assert.JSONEq(t, `"a.cpp"`, string(state.Sessions[0].Extra["filename"]))
	assert.Contains(t, state.Sessions[0].Compilers[0].Extra, "libs")
	assert.NotContains(t, state.Sessions[0].Compilers[0].Extra, "options")

	ws := newMemWorkspace()
	loaded, err := state.ToInstances(context.Background(), ws, testCompilers, testConfig())
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	shared, err := BuildClientState(ws, loaded, "c++")
	require.NoError(t, err)
	data, err := json.Marshal(shared)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"boost"`)
	assert.Contains(t, string(data), `"compilerName":"custom"`)
	assert.Contains(t, string(data), `"tools":[]`)
}

func TestDecodeClientStateMalformed(t *testing.T) {
	docs := []string{
		`not json`,
		`{}`,
		`{"sessions": "nope"}`,
		`{"sessions": [null]}`,
		`{"sessions": [{"compilers": [{"options": "-O2"}]}]}`,
		`{"sessions": [{"compilers": [], "executors": [{"stdin": ""}]}]}`,
		`{"trees": [{"files": [{"content": "x"}]}]}`,
	}
	for _, doc := range docs {
		_, err := DecodeClientState([]byte(doc))
		assert.True(t, errors.Is(err, ErrMalformedLink), doc)
	}
}

func TestToInstancesUnknownCompiler(t *testing.T) {
	doc := `{"sessions": [{"id": 1, "source": "x", "compilers": [{"id": "nope", "options": ""}], "executors": []}]}`
	state, err := DecodeClientState([]byte(doc))
	require.NoError(t, err)

	_, err = state.ToInstances(context.Background(), newMemWorkspace(), testCompilers, testConfig())
	assert.True(t, errors.Is(err, ErrInconsistent))
}

func TestExecArgsStringRoundTrip(t *testing.T) {
	cases := []ExecArgs{
		{"plain"},
		{"a", "", "b"},
		{`say "hi"`, `x"y`},
		{`C:\dir\`, `ends\`},
		{"two words", ""},
	}
	for _, args := range cases {
		assert.Equal(t, []string(args), SplitCommandArgs(args.String()), args.String())
	}
}

func TestExecArgs(t *testing.T) {
	var args ExecArgs
	require.NoError(t, json.Unmarshal([]byte(`"one \"two three\""`), &args))
	assert.Equal(t, ExecArgs{"one", "two three"}, args)
	assert.Equal(t, `one "two three"`, args.String())

	require.NoError(t, json.Unmarshal([]byte(`["a", "", "b"]`), &args))
	assert.Equal(t, ExecArgs{"a", "", "b"}, args)
	assert.Equal(t, `a "" b`, args.String())

	data, err := json.Marshal(ExecArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	assert.Error(t, json.Unmarshal([]byte(`42`), &args))
}
