package main

import (
	"fmt"
	"sync"
	"time"
)

const selectionThrottle = 100 * time.Millisecond

// Editor is the text editor a panel follows
type Editor interface {
	Path() string
	ActiveLine() int
	LineCount() int
	// Reveal moves the caret to the start of line and scrolls it into view
	Reveal(line int)
}

// RevealLine moves editor to a 0-based line. Negative lines, lines past the
// end of the document and the current line leave the editor untouched.
func RevealLine(editor Editor, line int) bool {
	if line < 0 || line == editor.ActiveLine() || line >= editor.LineCount() {
		return false
	}
	editor.Reveal(line)
	return true
}

// DocumentEditor mirrors an editor of the editor host. The host reports
// selections and line counts; reveals are sent back through onReveal.
type DocumentEditor struct {
	path     string
	onReveal func(path string, line int)

	mu         sync.RWMutex
	activeLine int
	lineCount  int
}

// NewDocumentEditor creates a mirror for the editor showing path
func NewDocumentEditor(path string, lineCount int, onReveal func(path string, line int)) *DocumentEditor {
	return &DocumentEditor{path: path, lineCount: lineCount, onReveal: onReveal}
}

func (e *DocumentEditor) Path() string {
	return e.path
}

func (e *DocumentEditor) ActiveLine() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.activeLine
}

func (e *DocumentEditor) LineCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lineCount
}

func (e *DocumentEditor) Reveal(line int) {
	e.mu.Lock()
	e.activeLine = line
	e.mu.Unlock()
	if e.onReveal != nil {
		e.onReveal(e.path, line)
	}
}

// SetSelection records a caret move reported by the host
func (e *DocumentEditor) SetSelection(line int) {
	e.mu.Lock()
	e.activeLine = line
	e.mu.Unlock()
}

// SetLineCount records the document length reported by the host
func (e *DocumentEditor) SetLineCount(n int) {
	e.mu.Lock()
	e.lineCount = n
	e.mu.Unlock()
}

// ViewMessage is exchanged with the rendered view
type ViewMessage struct {
	Command string       `json:"command"`
	Results *ViewResults `json:"results,omitempty"`
	LineNo  *int         `json:"lineNo,omitempty"`
	Tab     string       `json:"tab,omitempty"`
	Block   *int         `json:"block,omitempty"`
}

// ViewResults is the payload of a setResults message
type ViewResults struct {
	InstanceID string       `json:"instanceId"`
	Tabs       []TabContent `json:"tabs"`
}

// Panel is one result view bound to an editor. It keeps the grouped blocks
// of every tab so both directions of the line sync resolve here.
type Panel struct {
	ID         string
	InstanceID string
	editor     Editor
	send       func(ViewMessage)

	mu        sync.Mutex
	ready     bool
	activeTab string
	viewers   map[string]*ResultViewer
	pending   *ViewResults

	selection *Throttler[int]
	clicks    *Throttler[blockClick]
}

type blockClick struct {
	tab  string
	line int
}

// NewPanel creates a panel showing the results of one instance. View
// messages go out through send.
func NewPanel(id, instanceID string, editor Editor, send func(ViewMessage)) *Panel {
	p := &Panel{
		ID:         id,
		InstanceID: instanceID,
		editor:     editor,
		send:       send,
		activeTab:  TabAsm,
		viewers:    make(map[string]*ResultViewer),
	}
	p.selection = NewThrottler(selectionThrottle, func(line int) { p.GotoLine(line) })
	p.clicks = NewThrottler(selectionThrottle, func(c blockClick) { p.ClickBlock(c.tab, c.line) })
	return p
}

// SetResults replaces the panel content. Results posted before the view
// reported ready are held back until it does.
func (p *Panel) SetResults(response *Response) {
	instanceID := p.InstanceID
	tabs := response.Tabs()
	viewers := map[string]*ResultViewer{
		TabAsm:    NewResultViewer(response.AsmLines()),
		TabExeOut: NewResultViewer(response.ExecLines()),
		TabStderr: NewResultViewer(response.StderrLines()),
	}
	results := &ViewResults{InstanceID: instanceID, Tabs: tabs}

	p.mu.Lock()
	p.viewers = viewers
	if !p.ready {
		p.pending = results
		p.mu.Unlock()
		LogDebugf("Panel %s is not ready, holding results of %s", p.ID, instanceID)
		return
	}
	p.mu.Unlock()

	p.send(ViewMessage{Command: "setResults", Results: results})
}

// MarkReady is called when the view reports its first paint
func (p *Panel) MarkReady() {
	p.mu.Lock()
	p.ready = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if pending != nil {
		p.send(ViewMessage{Command: "setResults", Results: pending})
	}
}

// Ready reports whether the view has painted
func (p *Panel) Ready() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

// SetActiveTab routes later selections to tab
func (p *Panel) SetActiveTab(tab string) error {
	switch tab {
	case TabAsm, TabExeOut, TabStderr:
	default:
		return fmt.Errorf("unknown tab %q", tab)
	}
	p.mu.Lock()
	p.activeTab = tab
	p.mu.Unlock()
	return nil
}

// ActiveTab returns the tab selections are routed to
func (p *Panel) ActiveTab() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activeTab
}

// EditorSelectionChanged is fed every caret move of the editor; moves are
// throttled before they reach GotoLine
func (p *Panel) EditorSelectionChanged(line int) {
	p.selection.Trigger(line)
}

// GotoLine selects the block of a 0-based editor line in the active tab and
// asks the view to scroll to it. Lines without a block are ignored.
func (p *Panel) GotoLine(line int) bool {
	p.mu.Lock()
	tab := p.activeTab
	viewer := p.viewers[tab]
	p.mu.Unlock()

	if viewer == nil {
		return false
	}
	block, ok := viewer.Select(line)
	if !ok {
		return false
	}

	index := block.Index
	p.send(ViewMessage{Command: "gotoLine", LineNo: &line, Tab: tab, Block: &index})
	return true
}

// ClickBlock handles a click on a block of tab: the block becomes selected
// and the editor moves to its line
func (p *Panel) ClickBlock(tab string, line int) bool {
	p.mu.Lock()
	if tab == "" {
		tab = p.activeTab
	}
	viewer := p.viewers[tab]
	p.mu.Unlock()

	if viewer != nil {
		viewer.Select(line)
	}
	return RevealLine(p.editor, line)
}

// HandleMessage dispatches a message sent by the view
func (p *Panel) HandleMessage(msg ViewMessage) error {
	switch msg.Command {
	case "ready":
		p.MarkReady()
	case "gotoLine":
		if msg.LineNo == nil {
			return fmt.Errorf("gotoLine without lineNo")
		}
		p.clicks.Trigger(blockClick{tab: msg.Tab, line: *msg.LineNo})
	case "activeTab":
		return p.SetActiveTab(msg.Tab)
	default:
		return fmt.Errorf("unknown view command %q", msg.Command)
	}
	return nil
}

// Close stops pending selection updates and clicks
func (p *Panel) Close() {
	p.selection.Stop()
	p.clicks.Stop()
}

// Panels tracks the open result views. Each editor routes its selections
// to one active panel: the one opened or used last.
type Panels struct {
	mu     sync.RWMutex
	panels map[string]*Panel
	active map[string]string
}

// NewPanels creates an empty registry
func NewPanels() *Panels {
	return &Panels{panels: make(map[string]*Panel), active: make(map[string]string)}
}

// Add registers p and makes it the active panel of its editor
func (ps *Panels) Add(p *Panel) {
	ps.mu.Lock()
	ps.panels[p.ID] = p
	ps.active[p.editor.Path()] = p.ID
	ps.mu.Unlock()
}

// Activate makes the panel id the one its editor routes to
func (ps *Panels) Activate(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if p, ok := ps.panels[id]; ok {
		ps.active[p.editor.Path()] = id
	}
}

// Active returns the panel the editor of path routes to
func (ps *Panels) Active(path string) (*Panel, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.panels[ps.active[path]]
	return p, ok
}

func (ps *Panels) Get(id string) (*Panel, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	p, ok := ps.panels[id]
	return p, ok
}

func (ps *Panels) Remove(id string) {
	ps.mu.Lock()
	p, ok := ps.panels[id]
	delete(ps.panels, id)
	if ok {
		path := p.editor.Path()
		if ps.active[path] == id {
			delete(ps.active, path)
			for otherID, other := range ps.panels {
				if other.editor.Path() == path {
					ps.active[path] = otherID
					break
				}
			}
		}
	}
	ps.mu.Unlock()
	if ok {
		p.Close()
	}
}

// ForInstance returns the panels showing an instance
func (ps *Panels) ForInstance(instanceID string) []*Panel {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	var found []*Panel
	for _, p := range ps.panels {
		if p.InstanceID == instanceID {
			found = append(found, p)
		}
	}
	return found
}

// Clear closes every panel
func (ps *Panels) Clear() {
	ps.mu.Lock()
	panels := ps.panels
	ps.panels = make(map[string]*Panel)
	ps.active = make(map[string]string)
	ps.mu.Unlock()
	for _, p := range panels {
		p.Close()
	}
}
