package main

// Tab ids of the result view
const (
	TabAsm    = "asm"
	TabExeOut = "exeout"
	TabStderr = "stderr"
)

// TabContent is one tab of a rendered response
type TabContent struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	Badge  int     `json:"badge,omitempty"`
	Blocks []Block `json:"blocks"`
}

// AsmText joins the assembly lines with newlines
func (r *CompileResult) AsmText() string {
	var text []byte
	for i, line := range r.asmLines() {
		if i > 0 {
			text = append(text, '\n')
		}
		text = append(text, line.Text...)
	}
	return string(text)
}

// asmLines returns the assembly; CMake builds keep it under Result
func (r *CompileResult) asmLines() []ResultLine {
	if len(r.Asm) == 0 && r.Result != nil {
		return r.Result.Asm
	}
	return r.Asm
}

// diagnostics returns the compiler output, build log first
func (r *CompileResult) diagnostics() []ResultLine {
	var lines []ResultLine
	if r.BuildResult != nil {
		lines = append(lines, r.BuildResult.Stderr...)
	}
	lines = append(lines, r.Stderr...)
	if r.Result != nil {
		lines = append(lines, r.Result.Stderr...)
	}
	return lines
}

// AsmLines renders assembly lines, keyed by their source line
func (r *Response) AsmLines() []ViewerLine {
	if r.CompileResult == nil {
		return nil
	}
	var lines []ViewerLine
	for _, line := range r.CompileResult.asmLines() {
		viewerLine := ViewerLine{HTML: Highlight(line.Text)}
		if line.Source != nil && line.Source.Line != nil {
			n := *line.Source.Line
			viewerLine.LineNo = &n
		}
		lines = append(lines, viewerLine)
	}
	return lines
}

// StderrLines renders diagnostics, keyed by the line of their tag
func (r *Response) StderrLines() []ViewerLine {
	if r.CompileResult == nil {
		return nil
	}
	var lines []ViewerLine
	for _, line := range r.CompileResult.diagnostics() {
		viewerLine := ViewerLine{HTML: ConsoleHTML(line.Text)}
		if line.Tag != nil && line.Tag.Line != nil {
			n := *line.Tag.Line
			viewerLine.LineNo = &n
		}
		lines = append(lines, viewerLine)
	}
	return lines
}

// ExecLines renders program output. It never maps to source lines.
func (r *Response) ExecLines() []ViewerLine {
	var stdout, stderr []ResultLine
	switch {
	case r.ExecuteResult != nil:
		stdout, stderr = r.ExecuteResult.Stdout, r.ExecuteResult.Stderr
	case r.CompileResult != nil && r.CompileResult.ExecResult != nil:
		stdout, stderr = r.CompileResult.ExecResult.Stdout, r.CompileResult.ExecResult.Stderr
	}

	var lines []ViewerLine
	for _, line := range stdout {
		lines = append(lines, ViewerLine{HTML: ConsoleHTML(line.Text)})
	}
	for _, line := range stderr {
		lines = append(lines, ViewerLine{HTML: ConsoleHTML(line.Text)})
	}
	return lines
}

// StderrCount counts the diagnostics that point at a source line
func (r *Response) StderrCount() int {
	count := 0
	for _, line := range r.StderrLines() {
		if line.LineNo != nil {
			count++
		}
	}
	return count
}

// Tabs renders the response into the three result tabs, in display order
func (r *Response) Tabs() []TabContent {
	return []TabContent{
		{ID: TabAsm, Title: "ASM result", Blocks: GroupLines(r.AsmLines())},
		{ID: TabExeOut, Title: "Execution Output", Blocks: GroupLines(r.ExecLines())},
		{ID: TabStderr, Title: "Compiler Output", Badge: r.StderrCount(), Blocks: GroupLines(r.StderrLines())},
	}
}
