package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"golang.org/x/net/http/httpproxy"
)

// Client talks to the remote compilation service
type Client struct {
	baseURL    string
	language   string
	proxy      string
	policy     RetryPolicy
	httpClient *http.Client

	proxyMu   sync.RWMutex
	proxyFunc func(*url.URL) (*url.URL, error)
}

// NewClient creates a client for the service described by config
func NewClient(config ServiceConfig) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(config.URL, "/"),
		language: config.Language,
		proxy:    config.Proxy,
	}
	c.policy = RetryPolicy{
		MaxTries:       config.Retries,
		AttemptTimeout: config.AttemptTimeout,
		Refresh:        c.SetProxy,
	}
	c.httpClient = &http.Client{
		Transport: &http.Transport{
			Proxy:             c.proxyForRequest,
			ForceAttemptHTTP2: true,
		},
	}
	c.SetProxy()
	return c
}

// SetProxy resolves the proxy again, from the configured URL or else from
// the HTTP_PROXY family of environment variables
func (c *Client) SetProxy() {
	proxyConfig := httpproxy.FromEnvironment()
	if c.proxy != "" {
		proxyConfig.HTTPProxy = c.proxy
		proxyConfig.HTTPSProxy = c.proxy
	}

	c.proxyMu.Lock()
	c.proxyFunc = proxyConfig.ProxyFunc()
	c.proxyMu.Unlock()

	if proxyConfig.HTTPSProxy != "" || proxyConfig.HTTPProxy != "" {
		LogDebugf("Using proxy http=%q https=%q", proxyConfig.HTTPProxy, proxyConfig.HTTPSProxy)
	}
}

func (c *Client) proxyForRequest(req *http.Request) (*url.URL, error) {
	c.proxyMu.RLock()
	fn := c.proxyFunc
	c.proxyMu.RUnlock()
	return fn(req.URL)
}

// Compile sends the primary compile call and, when the instance asks for it
// and the compile succeeded, the executor-only call
func (c *Client) Compile(ctx context.Context, ws Workspace, inst *Instance) (*Response, error) {
	request, err := BuildCompileRequest(ws, inst, c.language)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("/api/compiler/%s/%s", url.PathEscape(inst.Compiler.ID), endpointSuffix(inst))

	compileResult, err := Retry(ctx, "Compiling", c.policy, func(ctx context.Context) (*CompileResult, error) {
		LogInfof("Request for Compile from %q", c.baseURL+endpoint)
		var result CompileResult
		if err := c.doJSON(ctx, http.MethodPost, endpoint, request, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, err
	}

	response := &Response{CompileResult: compileResult}
	if compileResult.Code != 0 || !WantsExecute(inst) {
		return response, nil
	}

	request.Options = request.Options.FitExecute()
	response.ExecuteResult, err = Retry(ctx, "Executing", c.policy, func(ctx context.Context) (*ExecuteResult, error) {
		LogInfof("Request for Execute from %q", c.baseURL+endpoint)
		var result ExecuteResult
		if err := c.doJSON(ctx, http.MethodPost, endpoint, request, &result); err != nil {
			return nil, err
		}
		return &result, nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// GetShortLink stores a client state document and returns its URL
func (c *Client) GetShortLink(ctx context.Context, state *ClientState) (string, error) {
	return Retry(ctx, "Get Short Link", c.policy, func(ctx context.Context) (string, error) {
		LogInfof("Request for short link from %q", c.baseURL+"/api/shortener")
		var response shortenResponse
		if err := c.doJSON(ctx, http.MethodPost, "/api/shortener", state, &response); err != nil {
			return "", err
		}
		if response.URL == "" {
			return "", fmt.Errorf("%w: shortener returned no url", ErrTransport)
		}
		return response.URL, nil
	})
}

// LoadShortLink fetches the client state behind a short link. Only the last
// path segment of link is used, so both full URLs and bare ids work.
func (c *Client) LoadShortLink(ctx context.Context, link string) (*ClientState, error) {
	id, err := shortLinkID(link)
	if err != nil {
		return nil, err
	}
	endpoint := "/api/shortlinkinfo/" + url.PathEscape(id)

	raw, err := Retry(ctx, "Loading ShortLink", c.policy, func(ctx context.Context) (json.RawMessage, error) {
		LogInfof("Request for short link info from %q", c.baseURL+endpoint)
		var raw json.RawMessage
		if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
			return nil, err
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return DecodeClientState(raw)
}

// FetchCompilers lists the compilers of a language with their capabilities
func (c *Client) FetchCompilers(ctx context.Context, lang string) ([]CompilerInfo, error) {
	endpoint := fmt.Sprintf("/api/compilers/%s?fields=%s", url.PathEscape(lang), compilerInfoFields)
	return Retry(ctx, "Fetching Compilers", c.policy, func(ctx context.Context) ([]CompilerInfo, error) {
		LogDebugf("Request for compilers from %q", c.baseURL+endpoint)
		var infos []CompilerInfo
		if err := c.doJSON(ctx, http.MethodGet, endpoint, nil, &infos); err != nil {
			return nil, err
		}
		return infos, nil
	})
}

func (c *Client) doJSON(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode, Body: string(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to decode response from %s: %w", ErrTransport, req.URL, err)
	}
	return nil
}

func shortLinkID(link string) (string, error) {
	trimmed := strings.TrimSpace(link)
	if u, err := url.Parse(trimmed); err == nil && u.Path != "" {
		trimmed = u.Path
	}
	id := path.Base(strings.TrimRight(trimmed, "/"))
	if id == "" || id == "." || id == "/" {
		return "", malformedLinkf("no short link id in %q", link)
	}
	return id, nil
}
