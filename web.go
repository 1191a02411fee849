package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
	wsOutbox    = 32
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// editorMessage is pushed to the editor host
type editorMessage struct {
	Command string `json:"command"`
	Path    string `json:"path"`
	Line    int    `json:"line"`
}

// WebServer serves the result view, its message channels and the JSON API
// the editor host drives
type WebServer struct {
	config    *Config
	bench     *Workbench
	compilers *CompilerTable
	workspace *DiskWorkspace
	panels    *Panels

	mu       sync.Mutex
	editors  map[string]*DocumentEditor
	outboxes map[string]chan ViewMessage
	hosts    map[chan editorMessage]struct{}
}

// NewWebServer creates a web server and routes inline results to panels
func NewWebServer(config *Config, bench *Workbench, compilers *CompilerTable, workspace *DiskWorkspace) *WebServer {
	s := &WebServer{
		config:    config,
		bench:     bench,
		compilers: compilers,
		workspace: workspace,
		panels:    NewPanels(),
		editors:   make(map[string]*DocumentEditor),
		outboxes:  make(map[string]chan ViewMessage),
		hosts:     make(map[chan editorMessage]struct{}),
	}
	bench.OnResult(s.publishResult)
	return s
}

// Router builds the routes
func (s *WebServer) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/", s.handleView).Methods("GET")
	r.HandleFunc("/ws/view/{panel}", s.handleViewWS).Methods("GET")
	r.HandleFunc("/ws/editor", s.handleEditorWS).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/instances", s.handleListInstances).Methods("GET")
	api.HandleFunc("/instances", s.handleCreateInstance).Methods("POST")
	api.HandleFunc("/instances/{id}", s.handleGetInstance).Methods("GET")
	api.HandleFunc("/instances/{id}", s.handleUpdateInstance).Methods("PUT")
	api.HandleFunc("/instances/{id}", s.handleRemoveInstance).Methods("DELETE")
	api.HandleFunc("/instances/{id}/clone", s.handleCloneInstance).Methods("POST")
	api.HandleFunc("/instances/{id}/compiler", s.handleSetCompiler).Methods("PUT")
	api.HandleFunc("/instances/{id}/filters", s.handleFilters).Methods("GET")
	api.HandleFunc("/instances/{id}/filters/{name}", s.handleToggleFilter).Methods("POST")
	api.HandleFunc("/instances/{id}/compile", s.handleCompile).Methods("POST")
	api.HandleFunc("/instances/{id}/result", s.handleResult).Methods("GET")
	api.HandleFunc("/compile", s.handleCompileAll).Methods("POST")
	api.HandleFunc("/link", s.handleShare).Methods("POST")
	api.HandleFunc("/link/load", s.handleLoadLink).Methods("POST")
	api.HandleFunc("/compilers/{lang}", s.handleCompilers).Methods("GET")
	api.HandleFunc("/panels", s.handleOpenPanel).Methods("POST")
	api.HandleFunc("/panels", s.handleClearPanels).Methods("DELETE")
	api.HandleFunc("/editor/documents", s.handleOpenDocument).Methods("POST")
	api.HandleFunc("/editor/documents", s.handleCloseDocument).Methods("DELETE")
	api.HandleFunc("/editor/active", s.handleActiveEditor).Methods("POST")
	api.HandleFunc("/editor/selection", s.handleSelection).Methods("POST")

	return r
}

// Start serves until ctx is done
func (s *WebServer) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + strconv.Itoa(s.config.Web.Port),
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.clearPanels()
		_ = server.Shutdown(shutdownCtx)
	}()

	LogInfof("Web server starting on port %d", s.config.Web.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError maps the error classes to status codes
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, ErrMalformedLink):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrInconsistent):
		status = http.StatusConflict
	case errors.Is(err, ErrTransport):
		status = http.StatusBadGateway
	}
	LogErrorf("%v", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return configurationErrorf("invalid request body: %v", err)
	}
	return nil
}

type instanceView struct {
	*Instance
	Description string         `json:"description"`
	Toggles     []FilterToggle `json:"toggles"`
}

func viewOf(inst *Instance) instanceView {
	return instanceView{
		Instance:    inst,
		Description: inst.DescribeOutput(),
		Toggles:     FilterToggles(inst.Compiler, inst.Filters),
	}
}

func (s *WebServer) handleListInstances(w http.ResponseWriter, r *http.Request) {
	list := s.bench.List()
	views := make([]instanceView, len(list))
	for i, inst := range list {
		views[i] = viewOf(inst)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *WebServer) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind InstanceKind `json:"kind"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	inst, err := s.bench.NewDefault(r.Context(), req.Kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(inst))
}

func (s *WebServer) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := s.bench.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(inst))
}

// instanceUpdate lists the fields a client may edit; nil means unchanged
type instanceUpdate struct {
	Input     *string `json:"input"`
	Src       *string `json:"src"`
	CMakeArgs *string `json:"cmakeArgs"`
	Options   *string `json:"options"`
	Exec      *string `json:"exec"`
	Stdin     *string `json:"stdin"`
	Output    *string `json:"output"`
}

func (u instanceUpdate) apply(inst *Instance) error {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&inst.Input, u.Input)
	set(&inst.Src, u.Src)
	set(&inst.CMakeArgs, u.CMakeArgs)
	set(&inst.Options, u.Options)
	set(&inst.Exec, u.Exec)
	set(&inst.Stdin, u.Stdin)
	set(&inst.Output, u.Output)
	if inst.Kind == MultiFile && u.Src != nil {
		abs, err := filepath.Abs(inst.Src)
		if err != nil {
			return configurationErrorf("invalid source directory %q: %v", inst.Src, err)
		}
		inst.Src = abs
	}
	return nil
}

func (s *WebServer) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	var update instanceUpdate
	if err := decodeBody(r, &update); err != nil {
		writeError(w, err)
		return
	}
	inst, err := s.bench.Update(mux.Vars(r)["id"], update.apply)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(inst))
}

func (s *WebServer) handleRemoveInstance(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.bench.Remove(id); err != nil {
		writeError(w, err)
		return
	}
	for _, panel := range s.panels.ForInstance(id) {
		s.closePanel(panel.ID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebServer) handleCloneInstance(w http.ResponseWriter, r *http.Request) {
	inst, err := s.bench.Clone(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(inst))
}

func (s *WebServer) handleSetCompiler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Compiler string `json:"compiler"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	inst, err := s.bench.SetCompiler(r.Context(), mux.Vars(r)["id"], req.Compiler)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(inst))
}

func (s *WebServer) handleFilters(w http.ResponseWriter, r *http.Request) {
	inst, err := s.bench.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FilterToggles(inst.Compiler, inst.Filters))
}

func (s *WebServer) handleToggleFilter(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	value, err := s.bench.ToggleFilter(vars["id"], vars["name"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"name": vars["name"], "value": value})
}

func (s *WebServer) handleCompile(w http.ResponseWriter, r *http.Request) {
	response, err := s.bench.Compile(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *WebServer) handleResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	response, ok := s.bench.Result(id)
	if !ok {
		writeError(w, fmt.Errorf("result of %s: %w", id, ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, ViewResults{InstanceID: id, Tabs: response.Tabs()})
}

func (s *WebServer) handleCompileAll(w http.ResponseWriter, r *http.Request) {
	err := s.bench.CompileAll(r.Context())

	var failures []string
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			failures = append(failures, e.Error())
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"failures": failures})
}

func (s *WebServer) handleShare(w http.ResponseWriter, r *http.Request) {
	link, err := s.bench.Share(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": link})
}

func (s *WebServer) handleLoadLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Link string `json:"link"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	instances, err := s.bench.LoadLink(r.Context(), req.Link)
	if err != nil {
		writeError(w, err)
		return
	}
	s.clearPanels()
	views := make([]instanceView, len(instances))
	for i, inst := range instances {
		views[i] = viewOf(inst)
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *WebServer) handleCompilers(w http.ResponseWriter, r *http.Request) {
	lang := mux.Vars(r)["lang"]
	if r.URL.Query().Get("refresh") != "" {
		s.compilers.Invalidate(lang)
	}
	infos, err := s.compilers.List(r.Context(), lang)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// editor returns the mirror of the editor showing path, creating it on demand
func (s *WebServer) editor(path string) *DocumentEditor {
	path = filepath.Clean(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.editors[path]; ok {
		return e
	}
	e := NewDocumentEditor(path, 0, s.revealInHosts)
	s.editors[path] = e
	return e
}

func (s *WebServer) revealInHosts(path string, line int) {
	msg := editorMessage{Command: "reveal", Path: path, Line: line}
	s.mu.Lock()
	defer s.mu.Unlock()
	for host := range s.hosts {
		select {
		case host <- msg:
		default:
			LogDebugf("Editor host is slow, dropping reveal of %s:%d", path, line)
		}
	}
}

func (s *WebServer) handleOpenDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.workspace.OpenDocument(req.Path, req.Content)
	s.editor(req.Path).SetLineCount(strings.Count(req.Content, "\n") + 1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebServer) handleCloseDocument(w http.ResponseWriter, r *http.Request) {
	s.workspace.CloseDocument(r.URL.Query().Get("path"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebServer) handleActiveEditor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path      string `json:"path"`
		LineCount int    `json:"lineCount"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	s.workspace.SetActive(req.Path)
	if req.Path != "" && req.LineCount > 0 {
		s.editor(req.Path).SetLineCount(req.LineCount)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebServer) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
		Line int    `json:"line"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	editor := s.editor(req.Path)
	editor.SetSelection(req.Line)
	if panel, ok := s.panels.Active(editor.Path()); ok {
		panel.EditorSelectionChanged(req.Line)
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleOpenPanel opens a result view for an instance, following the editor
// of path (the active editor when empty)
func (s *WebServer) handleOpenPanel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InstanceID string `json:"instanceId"`
		Path       string `json:"path"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.bench.Get(req.InstanceID); err != nil {
		writeError(w, err)
		return
	}
	path := req.Path
	if path == "" {
		path = s.workspace.Active()
	}
	if path == "" {
		writeError(w, configurationErrorf("no active editor found"))
		return
	}

	id := uuid.NewString()
	outbox := make(chan ViewMessage, wsOutbox)
	panel := NewPanel(id, req.InstanceID, s.editor(path), func(msg ViewMessage) {
		select {
		case outbox <- msg:
		default:
			LogDebugf("View %s is slow, dropping %s", id, msg.Command)
		}
	})

	s.mu.Lock()
	s.outboxes[id] = outbox
	s.mu.Unlock()
	s.panels.Add(panel)

	if response, ok := s.bench.Result(req.InstanceID); ok {
		panel.SetResults(response)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "url": "/?panel=" + id})
}

func (s *WebServer) handleClearPanels(w http.ResponseWriter, r *http.Request) {
	s.clearPanels()
	w.WriteHeader(http.StatusNoContent)
}

func (s *WebServer) clearPanels() {
	s.panels.Clear()
	s.mu.Lock()
	s.outboxes = make(map[string]chan ViewMessage)
	s.mu.Unlock()
}

func (s *WebServer) closePanel(id string) {
	s.panels.Remove(id)
	s.mu.Lock()
	delete(s.outboxes, id)
	s.mu.Unlock()
}

func (s *WebServer) publishResult(inst *Instance, response *Response) {
	for _, panel := range s.panels.ForInstance(inst.ID) {
		panel.SetResults(response)
	}
}

// handleViewWS carries the messages of one panel. The panel's outbox is
// drained by a writer goroutine that also keeps the connection alive.
func (s *WebServer) handleViewWS(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["panel"]
	panel, ok := s.panels.Get(id)
	s.mu.Lock()
	outbox := s.outboxes[id]
	s.mu.Unlock()
	if !ok || outbox == nil {
		http.Error(w, "unknown panel", http.StatusNotFound)
		return
	}

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	writerDone := startWriter[ViewMessage](ctx, conn, outbox)

	for {
		var msg ViewMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		s.panels.Activate(id)
		if err := panel.HandleMessage(msg); err != nil {
			LogDebugf("View %s: %v", id, err)
		}
	}
	cancel()
	<-writerDone
}

// handleEditorWS pushes reveal requests to the editor host
func (s *WebServer) handleEditorWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	outbox := make(chan editorMessage, wsOutbox)
	s.mu.Lock()
	s.hosts[outbox] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.hosts, outbox)
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	writerDone := startWriter[editorMessage](ctx, conn, outbox)

	// the host only reads; reading drives pong handling and close detection
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	cancel()
	<-writerDone
}

func startWriter[T any](ctx context.Context, conn *websocket.Conn, outbox <-chan T) <-chan struct{} {
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-outbox:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	return done
}

// handleView serves the result view page
func (s *WebServer) handleView(w http.ResponseWriter, r *http.Request) {
	c := s.config.Colors
	colors := map[string]string{
		TokenSymbol:      c.Symbol,
		TokenString:      c.String,
		TokenNumber:      c.Number,
		TokenRegister:    c.Register,
		TokenInstruction: c.Instruction,
		TokenComment:     c.Comment,
		TokenOperator:    c.Operator,
	}
	var colorStyle strings.Builder
	for class, color := range colors {
		fmt.Fprintf(&colorStyle, "        .%s%s { color: %s; }\n", tokenClassPrefix, class, color)
	}

	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(strings.Replace(viewPage, "/*COLORS*/", colorStyle.String(), 1)))
}

const viewPage = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Compiler Explorer</title>
    <style>
        body {
            font-family: Menlo, Consolas, monospace;
            font-size: 13px;
            background: #1E1E1E;
            color: #D4D4D4;
            margin: 0;
        }

        .tabs {
            display: flex;
            gap: 16px;
            padding: 8px 12px;
            border-bottom: 1px solid #333;
        }

        .tab {
            cursor: pointer;
            opacity: 0.7;
        }

        .tab.active {
            opacity: 1;
            border-bottom: 1px solid #D4D4D4;
        }

        .badge {
            background: #4D4D4D;
            border-radius: 8px;
            padding: 0 6px;
            margin-left: 4px;
        }

        .result-block {
            position: relative;
            padding-left: 16px;
        }

        .result-block.clickable {
            cursor: pointer;
        }

        .result-block.selected {
            background: rgba(255, 255, 255, 0.08);
        }

        .result-block.collapsed pre.inner-line {
            display: none;
        }

        .toggle-button {
            position: absolute;
            left: 0;
            cursor: pointer;
        }

        pre {
            margin: 0;
            white-space: pre;
        }

        .loading {
            display: flex;
            justify-content: center;
            align-items: center;
            height: 100vh;
        }

/*COLORS*/
    </style>
</head>
<body>
    <div id="root" class="loading">Waiting for results...</div>
    <script>
        const panel = new URLSearchParams(location.search).get('panel');
        const socket = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws/view/' + panel);
        let tabs = [];
        let active = 'asm';

        function send(msg) {
            socket.send(JSON.stringify(msg));
        }

        function render() {
            const root = document.getElementById('root');
            root.className = '';
            root.innerHTML = '';

            const bar = document.createElement('div');
            bar.className = 'tabs';
            for (const tab of tabs) {
                const el = document.createElement('div');
                el.className = 'tab' + (tab.id === active ? ' active' : '');
                el.textContent = tab.title;
                if (tab.badge) {
                    const badge = document.createElement('span');
                    badge.className = 'badge';
                    badge.textContent = tab.badge;
                    el.appendChild(badge);
                }
                el.onclick = () => {
                    active = tab.id;
                    send({ command: 'activeTab', tab: tab.id });
                    render();
                };
                bar.appendChild(el);
            }
            root.appendChild(bar);

            const tab = tabs.find(t => t.id === active);
            if (!tab) {
                return;
            }
            for (const block of tab.blocks) {
                const el = document.createElement('div');
                el.className = 'result-block';
                el.id = 'block-' + tab.id + '-' + block.index;
                if (block.clickable) {
                    el.classList.add('clickable');
                    el.onclick = () => {
                        select(tab.id, block.index);
                        send({ command: 'gotoLine', lineNo: block.lineNo, tab: tab.id });
                    };
                }
                if (block.collapsible) {
                    const toggle = document.createElement('div');
                    toggle.className = 'toggle-button';
                    toggle.textContent = '-';
                    toggle.onclick = (e) => {
                        e.stopPropagation();
                        const collapsed = el.classList.toggle('collapsed');
                        toggle.textContent = collapsed ? '+' : '-';
                    };
                    el.appendChild(toggle);
                }
                block.html.forEach((html, idx) => {
                    const pre = document.createElement('pre');
                    if (idx > 0) {
                        pre.className = 'inner-line';
                    }
                    pre.innerHTML = html;
                    el.appendChild(pre);
                });
                root.appendChild(el);
            }
        }

        function select(tabId, index) {
            document.querySelectorAll('.result-block.selected').forEach(el => el.classList.remove('selected'));
            const el = document.getElementById('block-' + tabId + '-' + index);
            if (el) {
                el.classList.add('selected');
            }
            return el;
        }

        socket.onopen = () => send({ command: 'ready' });
        socket.onmessage = (event) => {
            const msg = JSON.parse(event.data);
            switch (msg.command) {
                case 'setResults':
                    tabs = msg.results.tabs;
                    render();
                    break;
                case 'gotoLine':
                    if (msg.tab === active) {
                        const el = select(msg.tab, msg.block);
                        if (el) {
                            el.scrollIntoView();
                        }
                    }
                    break;
            }
        };
    </script>
</body>
</html>`
