package main

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstanceUsesDefaults(t *testing.T) {
	config := testConfig()
	config.Defaults.Presets = []OptionPreset{
		{Pattern: "gcc", Options: "-O1"},
		{Pattern: "13\\.2", Options: "-O3"},
	}

	inst := NewInstance(SingleFile, config, gccInfo)
	assert.NotEmpty(t, inst.ID)
	assert.Equal(t, InputActive, inst.Input)
	assert.Empty(t, inst.Src)
	assert.Equal(t, "-O3", inst.Options)
	assert.True(t, inst.Filters.Intel)
	assert.True(t, inst.RendersInline())
	assert.Equal(t, "render inline", inst.DescribeOutput())

	multi := NewInstance(MultiFile, config, clangInfo)
	assert.Empty(t, multi.Input)
	assert.Equal(t, ".", multi.Src)
	assert.Equal(t, config.Defaults.Options, multi.Options)
}

func TestInstanceCopyIsIndependent(t *testing.T) {
	inst := singleInstance("/src/a.cpp", gccInfo)
	inst.Extra = map[string]json.RawMessage{"libs": json.RawMessage(`[{"name":"fmt"}]`)}

	dup := inst.Copy()
	require.NotEqual(t, inst.ID, dup.ID)

	_, err := dup.Filters.Toggle("intel")
	require.NoError(t, err)
	dup.Extra["libs"][2] = 'X'
	dup.Options = "-O0"

	assert.True(t, inst.Filters.Intel)
	assert.False(t, dup.Filters.Intel)
	assert.Equal(t, `[{"name":"fmt"}]`, string(inst.Extra["libs"]))
	assert.NotEqual(t, inst.Options, dup.Options)
}

func TestFilterToggle(t *testing.T) {
	var f Filters
	value, err := f.Toggle("execute")
	require.NoError(t, err)
	assert.True(t, value)
	assert.True(t, f.Execute)

	value, err = f.Toggle("execute")
	require.NoError(t, err)
	assert.False(t, value)

	_, err = f.Toggle("bogus")
	assert.Error(t, err)
}

func TestFilterTogglesFollowCapabilities(t *testing.T) {
	f := Filters{Intel: true, Labels: true}

	names := func(toggles []FilterToggle) []string {
		var out []string
		for _, toggle := range toggles {
			out = append(out, toggle.Name)
		}
		return out
	}

	gcc := FilterToggles(gccInfo, f)
	assert.Contains(t, names(gcc), "execute")
	assert.Contains(t, names(gcc), "intel")
	assert.NotContains(t, names(gcc), "demangle")

	cross := FilterToggles(crossInfo, f)
	assert.NotContains(t, names(cross), "execute")
	assert.NotContains(t, names(cross), "intel")
	assert.Contains(t, names(cross), "labels")

	for _, toggle := range gcc {
		if toggle.Name == "intel" {
			assert.True(t, toggle.Value)
		}
	}
}

func TestInstanceValidate(t *testing.T) {
	single := singleInstance("/src/a.cpp", gccInfo)
	require.NoError(t, single.Validate())

	single.Src = "/src"
	assert.True(t, errors.Is(single.Validate(), ErrInconsistent))

	single = singleInstance("", gccInfo)
	assert.True(t, errors.Is(single.Validate(), ErrConfiguration))

	multi := multiInstance("/proj", gccInfo)
	require.NoError(t, multi.Validate())
	multi.Input = InputActive
	assert.True(t, errors.Is(multi.Validate(), ErrInconsistent))

	multi = multiInstance("", gccInfo)
	assert.True(t, errors.Is(multi.Validate(), ErrConfiguration))
}

func TestInstanceOutput(t *testing.T) {
	inst := singleInstance("/src/a.cpp", gccInfo)
	inst.Output = "/tmp/a.s"
	assert.False(t, inst.RendersInline())
	assert.Equal(t, "write to /tmp/a.s", inst.DescribeOutput())

	inst.Output = ""
	assert.True(t, inst.RendersInline())
}

func TestInstanceKindJSON(t *testing.T) {
	data, err := json.Marshal(MultiFile)
	require.NoError(t, err)
	assert.Equal(t, `"multi"`, string(data))

	var kind InstanceKind
	require.NoError(t, json.Unmarshal([]byte(`"single"`), &kind))
	assert.Equal(t, SingleFile, kind)
	assert.Error(t, json.Unmarshal([]byte(`"triple"`), &kind))
}
