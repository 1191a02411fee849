package main

import (
	"encoding/json"
	"sync"
)

// ViewerLine is one rendered output line. LineNo is the service's 1-based
// source line, nil when the line maps to no source.
type ViewerLine struct {
	HTML   string `json:"html"`
	LineNo *int   `json:"lineNo,omitempty"`
}

// Block is a run of output lines for one 0-based source line, or a singleton
// line without a source line
type Block struct {
	Index  int      `json:"index"`
	LineNo *int     `json:"lineNo,omitempty"`
	HTML   []string `json:"html"`
}

// Clickable reports whether the block maps to a source line
func (b Block) Clickable() bool {
	return b.LineNo != nil
}

// Collapsible reports whether the block holds more than one physical line
func (b Block) Collapsible() bool {
	return b.Clickable() && len(b.HTML) > 1
}

// MarshalJSON adds the derived flags the view renders from
func (b Block) MarshalJSON() ([]byte, error) {
	type plain Block
	return json.Marshal(struct {
		plain
		Clickable   bool `json:"clickable"`
		Collapsible bool `json:"collapsible"`
	}{plain(b), b.Clickable(), b.Collapsible()})
}

// GroupLines groups consecutive lines sharing a source line into blocks, in
// input order. Line numbers are shifted to 0-based here, once.
func GroupLines(lines []ViewerLine) []Block {
	blocks := make([]Block, 0, len(lines))
	var lastLineNo *int
	start := 0

	flush := func(end int) {
		if lastLineNo == nil || start >= end {
			return
		}
		html := make([]string, 0, end-start)
		for _, line := range lines[start:end] {
			html = append(html, line.HTML)
		}
		lineNo := *lastLineNo
		blocks = append(blocks, Block{Index: len(blocks), LineNo: &lineNo, HTML: html})
	}

	for i, line := range lines {
		if line.LineNo == nil {
			flush(i)
			blocks = append(blocks, Block{Index: len(blocks), HTML: []string{line.HTML}})
			lastLineNo = nil
			start = i + 1
			continue
		}

		zeroBased := *line.LineNo - 1
		if lastLineNo != nil && zeroBased == *lastLineNo {
			continue
		}
		flush(i)
		start = i
		lastLineNo = &zeroBased
	}
	flush(len(lines))

	return blocks
}

// FlattenBlocks turns blocks back into lines with 1-based line numbers
func FlattenBlocks(blocks []Block) []ViewerLine {
	var lines []ViewerLine
	for _, block := range blocks {
		for _, html := range block.HTML {
			line := ViewerLine{HTML: html}
			if block.LineNo != nil {
				n := *block.LineNo + 1
				line.LineNo = &n
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// ResultViewer holds the blocks of one tab and which one is selected
type ResultViewer struct {
	mu       sync.Mutex
	blocks   []Block
	index    map[int]int
	selected int
}

// NewResultViewer groups lines and indexes the first block of every line
func NewResultViewer(lines []ViewerLine) *ResultViewer {
	v := &ResultViewer{
		blocks:   GroupLines(lines),
		index:    make(map[int]int),
		selected: -1,
	}
	for i, block := range v.blocks {
		if block.LineNo == nil {
			continue
		}
		if _, exists := v.index[*block.LineNo]; !exists {
			v.index[*block.LineNo] = i
		}
	}
	return v
}

// Blocks returns the grouped blocks
func (v *ResultViewer) Blocks() []Block {
	return v.blocks
}

// Lookup returns the canonical block of a 0-based source line
func (v *ResultViewer) Lookup(lineNo int) (Block, bool) {
	i, ok := v.index[lineNo]
	if !ok {
		return Block{}, false
	}
	return v.blocks[i], true
}

// Select marks the block of lineNo selected and deselects the previous one.
// It returns the block to scroll into view; nothing changes when no block is
// indexed for the line.
func (v *ResultViewer) Select(lineNo int) (Block, bool) {
	block, ok := v.Lookup(lineNo)
	if !ok {
		return Block{}, false
	}
	v.mu.Lock()
	v.selected = block.Index
	v.mu.Unlock()
	return block, true
}

// Selected returns the index of the selected block, or -1
func (v *ResultViewer) Selected() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.selected
}
