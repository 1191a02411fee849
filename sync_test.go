package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messageLog struct {
	mu       sync.Mutex
	messages []ViewMessage
}

func (l *messageLog) send(msg ViewMessage) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *messageLog) all() []ViewMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ViewMessage(nil), l.messages...)
}

func asmResponse(sourceLines ...int) *Response {
	result := &CompileResult{}
	for _, n := range sourceLines {
		line := ResultLine{Text: "  nop"}
		if n > 0 {
			line.Source = &ResultLineSource{Line: intPtr(n)}
		}
		result.Asm = append(result.Asm, line)
	}
	return &Response{CompileResult: result}
}

func TestRevealLineBoundaries(t *testing.T) {
	var revealed []int
	editor := NewDocumentEditor("/src/a.cpp", 10, func(_ string, line int) {
		revealed = append(revealed, line)
	})
	editor.SetSelection(5)

	for _, line := range []int{-1, 5, 10, 11} {
		assert.False(t, RevealLine(editor, line), "line %d", line)
	}
	assert.Empty(t, revealed)

	assert.True(t, RevealLine(editor, 3))
	assert.Equal(t, []int{3}, revealed)
	assert.Equal(t, 3, editor.ActiveLine())

	assert.True(t, RevealLine(editor, 0))
	assert.True(t, RevealLine(editor, 9))
	assert.Equal(t, []int{3, 0, 9}, revealed)
}

func TestPanelHoldsResultsUntilReady(t *testing.T) {
	var log messageLog
	panel := NewPanel("p1", "i1", NewDocumentEditor("/src/a.cpp", 10, nil), log.send)
	defer panel.Close()

	panel.SetResults(asmResponse(1, 1, 2))
	assert.Empty(t, log.all())
	assert.False(t, panel.Ready())

	require.NoError(t, panel.HandleMessage(ViewMessage{Command: "ready"}))
	assert.True(t, panel.Ready())

	messages := log.all()
	require.Len(t, messages, 1)
	assert.Equal(t, "setResults", messages[0].Command)
	require.NotNil(t, messages[0].Results)
	assert.Equal(t, "i1", messages[0].Results.InstanceID)
	require.Len(t, messages[0].Results.Tabs, 3)
	assert.Len(t, messages[0].Results.Tabs[0].Blocks, 2)

	panel.SetResults(asmResponse(3))
	assert.Len(t, log.all(), 2)
}

func TestPanelGotoLine(t *testing.T) {
	var log messageLog
	panel := NewPanel("p1", "i1", NewDocumentEditor("/src/a.cpp", 10, nil), log.send)
	defer panel.Close()
	panel.MarkReady()

	assert.False(t, panel.GotoLine(0), "no results yet")

	panel.SetResults(asmResponse(0, 1, 1, 2))
	require.True(t, panel.GotoLine(1))

	messages := log.all()
	last := messages[len(messages)-1]
	assert.Equal(t, "gotoLine", last.Command)
	assert.Equal(t, TabAsm, last.Tab)
	require.NotNil(t, last.Block)
	assert.Equal(t, 2, *last.Block)
	require.NotNil(t, last.LineNo)
	assert.Equal(t, 1, *last.LineNo)

	count := len(messages)
	assert.False(t, panel.GotoLine(7))
	assert.Len(t, log.all(), count)
}

func TestPanelActiveTabRoutesSelections(t *testing.T) {
	var log messageLog
	panel := NewPanel("p1", "i1", NewDocumentEditor("/src/a.cpp", 10, nil), log.send)
	defer panel.Close()
	panel.MarkReady()
	panel.SetResults(asmResponse(1))

	require.NoError(t, panel.HandleMessage(ViewMessage{Command: "activeTab", Tab: TabStderr}))
	assert.Equal(t, TabStderr, panel.ActiveTab())
	assert.False(t, panel.GotoLine(0))

	assert.Error(t, panel.SetActiveTab("bogus"))
	assert.Equal(t, TabStderr, panel.ActiveTab())
}

type revealLog struct {
	mu    sync.Mutex
	lines []int
}

func (l *revealLog) reveal(_ string, line int) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

func (l *revealLog) all() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.lines...)
}

func TestPanelClickMovesEditor(t *testing.T) {
	revealed := &revealLog{}
	editor := NewDocumentEditor("/src/a.cpp", 10, revealed.reveal)
	panel := NewPanel("p1", "i1", editor, func(ViewMessage) {})
	defer panel.Close()
	panel.MarkReady()
	panel.SetResults(asmResponse(5))

	lineNo := 4
	require.NoError(t, panel.HandleMessage(ViewMessage{Command: "gotoLine", LineNo: &lineNo, Tab: TabAsm}))
	assert.Equal(t, []int{4}, revealed.all())

	require.NoError(t, panel.HandleMessage(ViewMessage{Command: "gotoLine", LineNo: &lineNo}))
	time.Sleep(2 * selectionThrottle)
	assert.Equal(t, []int{4}, revealed.all(), "same line is a no-op")

	assert.Error(t, panel.HandleMessage(ViewMessage{Command: "gotoLine"}))
	assert.Error(t, panel.HandleMessage(ViewMessage{Command: "dance"}))
}

func TestPanelClicksAreThrottled(t *testing.T) {
	revealed := &revealLog{}
	panel := NewPanel("p1", "i1", NewDocumentEditor("/src/a.cpp", 30, revealed.reveal), func(ViewMessage) {})
	defer panel.Close()
	panel.MarkReady()

	for line := 1; line <= 20; line++ {
		lineNo := line
		require.NoError(t, panel.HandleMessage(ViewMessage{Command: "gotoLine", LineNo: &lineNo}))
	}

	assert.Eventually(t, func() bool { return len(revealed.all()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * selectionThrottle)
	assert.Equal(t, []int{1, 20}, revealed.all())
}

func TestPanelsRouteToActivePanel(t *testing.T) {
	panels := NewPanels()
	editor := NewDocumentEditor("/src/a.cpp", 1, nil)
	first := NewPanel("first", "i1", editor, func(ViewMessage) {})
	second := NewPanel("second", "i2", editor, func(ViewMessage) {})

	panels.Add(first)
	panels.Add(second)
	active, ok := panels.Active("/src/a.cpp")
	require.True(t, ok)
	assert.Same(t, second, active)

	panels.Activate("first")
	active, _ = panels.Active("/src/a.cpp")
	assert.Same(t, first, active)

	panels.Remove("first")
	active, ok = panels.Active("/src/a.cpp")
	require.True(t, ok)
	assert.Same(t, second, active)

	panels.Remove("second")
	_, ok = panels.Active("/src/a.cpp")
	assert.False(t, ok)
}

func TestPanelsRegistry(t *testing.T) {
	panels := NewPanels()
	a := NewPanel("a", "i1", NewDocumentEditor("/src/a.cpp", 1, nil), func(ViewMessage) {})
	b := NewPanel("b", "i2", NewDocumentEditor("/src/b.cpp", 1, nil), func(ViewMessage) {})
	panels.Add(a)
	panels.Add(b)

	got, ok := panels.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Len(t, panels.ForInstance("i2"), 1)
	active, ok := panels.Active("/src/b.cpp")
	require.True(t, ok)
	assert.Same(t, b, active)

	panels.Remove("a")
	_, ok = panels.Get("a")
	assert.False(t, ok)

	panels.Clear()
	assert.Empty(t, panels.ForInstance("i2"))
}
