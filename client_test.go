package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records requests against a minimal router
type fakeService struct {
	mu       sync.Mutex
	requests []CompileRequest
	paths    []string
	code     int
	failures int32
	state    string
	shared   []byte
}

func (f *fakeService) router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/compiler/{id}/{kind}", func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&f.failures, -1) >= 0 {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var req CompileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()

		if req.Options.CompilerOptions.ExecutorRequest {
			writeJSON(w, http.StatusOK, ExecuteResult{
				DidExecute: true,
				Stdout:     []ResultLine{{Text: "hello"}},
			})
			return
		}
		writeJSON(w, http.StatusOK, CompileResult{
			Code: f.code,
			Asm: []ResultLine{
				{Text: "main:"},
				{Text: "  ret", Source: &ResultLineSource{Line: intPtr(1)}},
			},
		})
	}).Methods("POST")
	r.HandleFunc("/api/shortener", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.shared = body
		f.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"url": "https://godbolt.org/z/abc123"})
	}).Methods("POST")
	r.HandleFunc("/api/shortlinkinfo/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(f.state))
	}).Methods("GET")
	r.HandleFunc("/api/compilers/{lang}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fields") != compilerInfoFields {
			http.Error(w, "missing fields", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, []CompilerInfo{
			{ID: "g132", Name: "x86-64 gcc 13.2", SupportsExecute: true},
		})
	}).Methods("GET")
	return r
}

func newTestClient(t *testing.T, f *fakeService) *Client {
	t.Helper()
	server := httptest.NewServer(f.router())
	t.Cleanup(server.Close)
	return NewClient(ServiceConfig{
		URL:            server.URL,
		Language:       "c++",
		Retries:        2,
		AttemptTimeout: 5 * time.Second,
	})
}

func TestClientCompileAndExecute(t *testing.T) {
	f := &fakeService{}
	client := newTestClient(t, f)

	ws := newMemWorkspace()
	ws.sources["/src/a.cpp"] = "int main() {}"
	inst := singleInstance("/src/a.cpp", gccInfo)
	inst.Filters.Execute = true
	inst.Exec = "x y"

	response, err := client.Compile(context.Background(), ws, inst)
	require.NoError(t, err)
	require.NotNil(t, response.CompileResult)
	assert.Equal(t, "main:\n  ret", response.CompileResult.AsmText())
	require.NotNil(t, response.ExecuteResult)
	assert.Equal(t, "hello", response.ExecuteResult.Stdout[0].Text)

	require.Len(t, f.requests, 2)
	first, second := f.requests[0], f.requests[1]
	assert.Equal(t, "/api/compiler/g132/compile", f.paths[0])
	assert.False(t, first.Options.Filters.Execute)
	assert.False(t, first.Options.CompilerOptions.ExecutorRequest)
	assert.Equal(t, []string{"x", "y"}, first.Options.ExecuteParameters.Args)
	assert.True(t, second.Options.Filters.Execute)
	assert.True(t, second.Options.CompilerOptions.SkipAsm)
	assert.True(t, second.Options.CompilerOptions.ExecutorRequest)
	assert.Equal(t, first.Source, second.Source)
}

func TestClientSkipsExecuteAfterFailedCompile(t *testing.T) {
	f := &fakeService{code: 1}
	client := newTestClient(t, f)

	ws := newMemWorkspace()
	ws.sources["/src/a.cpp"] = "int main( {}"
	inst := singleInstance("/src/a.cpp", gccInfo)
	inst.Filters.Execute = true

	response, err := client.Compile(context.Background(), ws, inst)
	require.NoError(t, err)
	assert.Equal(t, 1, response.CompileResult.Code)
	assert.Nil(t, response.ExecuteResult)
	assert.Len(t, f.requests, 1)
}

func TestClientCompileMultiFile(t *testing.T) {
	f := &fakeService{}
	client := newTestClient(t, f)

	ws := newMemWorkspace()
	ws.projects["/proj"] = []SourceFile{
		{Filename: cmakeEntry, Contents: "project(p)"},
		{Filename: "main.cpp", Contents: "int main() {}"},
	}
	_, err := client.Compile(context.Background(), ws, multiInstance("/proj", gccInfo))
	require.NoError(t, err)
	require.Len(t, f.requests, 1)
	assert.Equal(t, "/api/compiler/g132/cmake", f.paths[0])
	assert.Equal(t, "project(p)", f.requests[0].Source)
	assert.Len(t, f.requests[0].Files, 1)
	assert.Equal(t, "main", f.requests[0].Options.CompilerOptions.CustomOutputFilename)
}

func TestClientRetriesStatusErrors(t *testing.T) {
	f := &fakeService{failures: 2}
	client := newTestClient(t, f)

	ws := newMemWorkspace()
	ws.sources["/src/a.cpp"] = "int main() {}"
	response, err := client.Compile(context.Background(), ws, singleInstance("/src/a.cpp", gccInfo))
	require.NoError(t, err)
	assert.NotNil(t, response.CompileResult)
}

func TestClientGivesUp(t *testing.T) {
	f := &fakeService{failures: 100}
	client := newTestClient(t, f)

	ws := newMemWorkspace()
	ws.sources["/src/a.cpp"] = "int main() {}"
	_, err := client.Compile(context.Background(), ws, singleInstance("/src/a.cpp", gccInfo))
	require.Error(t, err)

	var retryErr *RetryError
	require.True(t, errors.As(err, &retryErr))
	assert.Equal(t, 3, retryErr.Attempts)
	assert.Equal(t, "Compiling", retryErr.Label)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.Equal(t, int32(100-3), atomic.LoadInt32(&f.failures))
}

func TestClientConfigurationErrorsAreNotSent(t *testing.T) {
	f := &fakeService{}
	client := newTestClient(t, f)

	_, err := client.Compile(context.Background(), newMemWorkspace(), singleInstance("/missing.cpp", gccInfo))
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.Empty(t, f.requests)
}

func TestClientShortLinks(t *testing.T) {
	f := &fakeService{state: `{"sessions":[{"id":1,"language":"c++","source":"x","compilers":[{"id":"g132","options":""}],"executors":[]}]}`}
	client := newTestClient(t, f)

	link, err := client.GetShortLink(context.Background(), &ClientState{Sessions: []*Session{{ID: 1, Source: "x"}}})
	require.NoError(t, err)
	assert.Equal(t, "https://godbolt.org/z/abc123", link)
	assert.Contains(t, string(f.shared), `"source":"x"`)

	state, err := client.LoadShortLink(context.Background(), link)
	require.NoError(t, err)
	require.Len(t, state.Sessions, 1)
	assert.Equal(t, "g132", state.Sessions[0].Compilers[0].ID)
	assert.Equal(t, "/api/shortlinkinfo/abc123", f.paths[len(f.paths)-1])
}

func TestClientMalformedLinkIsNotRetried(t *testing.T) {
	f := &fakeService{state: `{"sessions":"nope"}`}
	client := newTestClient(t, f)

	_, err := client.LoadShortLink(context.Background(), "abc123")
	assert.True(t, errors.Is(err, ErrMalformedLink))
	assert.Len(t, f.paths, 1)
}

func TestClientFetchCompilers(t *testing.T) {
	client := newTestClient(t, &fakeService{})

	infos, err := client.FetchCompilers(context.Background(), "c++")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "g132", infos[0].ID)
	assert.True(t, infos[0].SupportsExecute)
}

func TestShortLinkID(t *testing.T) {
	tests := map[string]string{
		"https://godbolt.org/z/abc123":  "abc123",
		"https://godbolt.org/z/abc123/": "abc123",
		"abc123":                        "abc123",
		"  z/xyz ":                      "xyz",
	}
	for link, want := range tests {
		id, err := shortLinkID(link)
		require.NoError(t, err, link)
		assert.Equal(t, want, id, link)
	}

	for _, link := range []string{"", "   ", "https://godbolt.org/"} {
		_, err := shortLinkID(link)
		assert.True(t, errors.Is(err, ErrMalformedLink), link)
	}
}
