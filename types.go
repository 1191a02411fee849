package main

import "encoding/json"

// CompileRequest is the body POSTed to /api/compiler/{id}/compile or /cmake
type CompileRequest struct {
	Lang                string          `json:"lang"`
	Source              string          `json:"source"`
	Compiler            string          `json:"compiler"`
	Options             *CompileOptions `json:"options"`
	Files               []SourceFile    `json:"files,omitempty"` // multi-file projects only
	BypassCache         int             `json:"bypassCache"`
	AllowStoreCodeDebug bool            `json:"allowStoreCodeDebug"`
}

// SourceFile is one non-entry file of a multi-file request
type SourceFile struct {
	Filename string `json:"filename"`
	Contents string `json:"contents"`
}

// CompileOptions is the nested options object of a compile request
type CompileOptions struct {
	UserArguments     string             `json:"userArguments"`
	Filters           Filters            `json:"filters"`
	ExecuteParameters *ExecuteParameters `json:"executeParameters,omitempty"`
	CompilerOptions   CompilerOptions    `json:"compilerOptions"`
	Tools             []json.RawMessage  `json:"tools"`
	Libraries         []json.RawMessage  `json:"libraries"`
}

// ExecuteParameters are only sent for compilers that can execute
type ExecuteParameters struct {
	Args  []string `json:"args,omitempty"`
	Stdin string   `json:"stdin"`
}

// CompilerOptions carries compiler specific switches
type CompilerOptions struct {
	SkipAsm              bool   `json:"skipAsm,omitempty"`
	ExecutorRequest      bool   `json:"executorRequest,omitempty"`
	CMakeArgs            string `json:"cmakeArgs,omitempty"`
	CustomOutputFilename string `json:"customOutputFilename,omitempty"`
}

// Link is a documentation link attached to a diagnostic
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// MessageWithLocation is a message optionally pinned to a source position
type MessageWithLocation struct {
	Line      *int   `json:"line,omitempty"`
	Column    *int   `json:"column,omitempty"`
	File      string `json:"file,omitempty"`
	Text      string `json:"text"`
	EndLine   *int   `json:"endline,omitempty"`
	EndColumn *int   `json:"endcolumn,omitempty"`
}

// Fix is a suggested edit for a diagnostic
type Fix struct {
	Title string                `json:"title"`
	Edits []MessageWithLocation `json:"edits"`
}

// ResultLineTag is the parsed location and severity of a diagnostic line
type ResultLineTag struct {
	MessageWithLocation
	Severity int                   `json:"severity"`
	Link     *Link                 `json:"link,omitempty"`
	Flow     []MessageWithLocation `json:"flow,omitempty"`
	Fixes    []Fix                 `json:"fixes,omitempty"`
}

// ResultLineSource is the provenance of an assembly line
type ResultLineSource struct {
	File       *string `json:"file"`
	Line       *int    `json:"line"`
	MainSource bool    `json:"mainsource,omitempty"`
}

// ResultLine is one line of assembly, compiler output or program output
type ResultLine struct {
	Text   string            `json:"text"`
	Tag    *ResultLineTag    `json:"tag,omitempty"`
	Source *ResultLineSource `json:"source,omitempty"`
}

// ExecResult is the execution part embedded in a compile result
type ExecResult struct {
	Stdout      []ResultLine    `json:"stdout,omitempty"`
	Stderr      []ResultLine    `json:"stderr,omitempty"`
	Code        int             `json:"code"`
	DidExecute  bool            `json:"didExecute"`
	BuildResult *CompileResult  `json:"buildResult,omitempty"`
	ExecTime    json.RawMessage `json:"execTime,omitempty"`
}

// CompileResult is the response of a compile call. CMake builds nest the
// compiler output under Result and the build log under BuildResult.
type CompileResult struct {
	Code               int             `json:"code"`
	TimedOut           bool            `json:"timedOut"`
	OkToCache          bool            `json:"okToCache,omitempty"`
	Truncated          bool            `json:"truncated,omitempty"`
	InputFilename      string          `json:"inputFilename,omitempty"`
	Asm                []ResultLine    `json:"asm,omitempty"`
	Stdout             []ResultLine    `json:"stdout"`
	Stderr             []ResultLine    `json:"stderr"`
	DidExecute         bool            `json:"didExecute,omitempty"`
	ExecResult         *ExecResult     `json:"execResult,omitempty"`
	BuildResult        *CompileResult  `json:"buildResult,omitempty"`
	Result             *CompileResult  `json:"result,omitempty"`
	CompilationOptions []string        `json:"compilationOptions,omitempty"`
	ExecTime           json.RawMessage `json:"execTime,omitempty"`
}

// ExecuteResult is the response of an executor-only call
type ExecuteResult struct {
	Code        int             `json:"code"`
	OkToCache   bool            `json:"okToCache"`
	TimedOut    bool            `json:"timedOut"`
	Truncated   bool            `json:"truncated,omitempty"`
	DidExecute  bool            `json:"didExecute"`
	Stdout      []ResultLine    `json:"stdout"`
	Stderr      []ResultLine    `json:"stderr"`
	BuildResult *CompileResult  `json:"buildResult,omitempty"`
	ExecTime    json.RawMessage `json:"execTime,omitempty"`
}

// Response pairs the compile result with the optional execution result
type Response struct {
	CompileResult *CompileResult `json:"compileResult"`
	ExecuteResult *ExecuteResult `json:"executeResult,omitempty"`
}

// shortenResponse is returned by /api/shortener
type shortenResponse struct {
	URL string `json:"url"`
}
