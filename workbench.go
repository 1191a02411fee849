package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// CompileService is the part of the remote service the workbench drives
type CompileService interface {
	Compile(ctx context.Context, ws Workspace, inst *Instance) (*Response, error)
	GetShortLink(ctx context.Context, state *ClientState) (string, error)
	LoadShortLink(ctx context.Context, link string) (*ClientState, error)
}

// Workbench owns the instance list. Every mutation goes through its lock.
type Workbench struct {
	config   *Config
	service  CompileService
	ws       Workspace
	resolver CompilerResolver

	mu        sync.RWMutex
	instances []*Instance
	results   map[string]*Response
	onResult  func(inst *Instance, response *Response)
}

// NewWorkbench creates an empty workbench
func NewWorkbench(config *Config, service CompileService, ws Workspace, resolver CompilerResolver) *Workbench {
	return &Workbench{
		config:   config,
		service:  service,
		ws:       ws,
		resolver: resolver,
		results:  make(map[string]*Response),
	}
}

// OnResult registers a callback run for every result rendered inline
func (w *Workbench) OnResult(fn func(inst *Instance, response *Response)) {
	w.mu.Lock()
	w.onResult = fn
	w.mu.Unlock()
}

// snapshot copies an instance keeping its id so callers never alias the list
func snapshot(inst *Instance) *Instance {
	dup := inst.Copy()
	dup.ID = inst.ID
	return dup
}

// List returns copies of all instances in order
func (w *Workbench) List() []*Instance {
	w.mu.RLock()
	defer w.mu.RUnlock()
	list := make([]*Instance, len(w.instances))
	for i, inst := range w.instances {
		list[i] = snapshot(inst)
	}
	return list
}

// Get returns a copy of one instance
func (w *Workbench) Get(id string) (*Instance, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i := w.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	return snapshot(w.instances[i]), nil
}

func (w *Workbench) indexOf(id string) int {
	for i, inst := range w.instances {
		if inst.ID == id {
			return i
		}
	}
	return -1
}

// NewDefault adds an instance seeded from configuration
func (w *Workbench) NewDefault(ctx context.Context, kind InstanceKind) (*Instance, error) {
	info, err := w.resolver.Lookup(ctx, w.config.Service.Language, w.config.Defaults.Compiler)
	if err != nil {
		return nil, err
	}
	inst := NewInstance(kind, w.config, info)
	if err := w.Add(inst); err != nil {
		return nil, err
	}
	return snapshot(inst), nil
}

// Add appends an instance
func (w *Workbench) Add(inst *Instance) error {
	if err := inst.Validate(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.indexOf(inst.ID) >= 0 {
		return inconsistentErrorf("instance %s already exists", inst.ID)
	}
	w.instances = append(w.instances, inst)
	LogDebugf("Added %s instance %s", inst.Kind, inst.ID)
	return nil
}

// Remove discards an instance and its last result
func (w *Workbench) Remove(id string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexOf(id)
	if i < 0 {
		return fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	w.instances = append(w.instances[:i], w.instances[i+1:]...)
	delete(w.results, id)
	return nil
}

// Clone inserts a deep copy right after the original
func (w *Workbench) Clone(id string) (*Instance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	dup := w.instances[i].Copy()
	w.instances = append(w.instances[:i+1], append([]*Instance{dup}, w.instances[i+1:]...)...)
	return snapshot(dup), nil
}

// Update edits a copy of an instance and stores it if it still validates
func (w *Workbench) Update(id string, fn func(inst *Instance) error) (*Instance, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.indexOf(id)
	if i < 0 {
		return nil, fmt.Errorf("instance %s: %w", id, ErrNotFound)
	}
	edited := snapshot(w.instances[i])
	if err := fn(edited); err != nil {
		return nil, err
	}
	if err := edited.Validate(); err != nil {
		return nil, err
	}
	w.instances[i] = edited
	return snapshot(edited), nil
}

// ToggleFilter flips one filter of an instance
func (w *Workbench) ToggleFilter(id, name string) (bool, error) {
	var value bool
	_, err := w.Update(id, func(inst *Instance) error {
		var err error
		value, err = inst.Filters.Toggle(name)
		return err
	})
	return value, err
}

// SetCompiler switches an instance to another compiler of its language
func (w *Workbench) SetCompiler(ctx context.Context, id, nameOrID string) (*Instance, error) {
	current, err := w.Get(id)
	if err != nil {
		return nil, err
	}
	lang := firstNonEmpty(current.Compiler.Lang, w.config.Service.Language)
	info, err := w.resolver.Lookup(ctx, lang, nameOrID)
	if err != nil {
		return nil, err
	}
	return w.Update(id, func(inst *Instance) error {
		inst.Compiler = info
		return nil
	})
}

// Replace swaps the whole list
func (w *Workbench) Replace(instances []*Instance) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.instances = instances
	w.results = make(map[string]*Response)
}

// Result returns the last inline result of an instance
func (w *Workbench) Result(id string) (*Response, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	response, ok := w.results[id]
	return response, ok
}

// Compile compiles one instance and applies the result
func (w *Workbench) Compile(ctx context.Context, id string) (*Response, error) {
	inst, err := w.Get(id)
	if err != nil {
		return nil, err
	}
	return w.compile(ctx, inst)
}

func (w *Workbench) compile(ctx context.Context, inst *Instance) (*Response, error) {
	response, err := w.service.Compile(ctx, w.ws, inst)
	if err != nil {
		return nil, fmt.Errorf("instance %s: %w", inst.ID, err)
	}

	if !inst.RendersInline() {
		if err := w.ws.WriteFile(inst.Output, response.CompileResult.AsmText()); err != nil {
			return nil, fmt.Errorf("instance %s: %w", inst.ID, err)
		}
		LogInfof("Wrote assembly of %s to %s", inst.ID, inst.Output)
		return response, nil
	}

	w.mu.Lock()
	if w.indexOf(inst.ID) >= 0 {
		w.results[inst.ID] = response
	}
	onResult := w.onResult
	w.mu.Unlock()

	if onResult != nil {
		onResult(inst, response)
	}
	return response, nil
}

// CompileAll compiles every instance concurrently. Each result is applied as
// soon as it arrives; a failing instance is logged and does not stop the
// others. The returned error joins all failures.
func (w *Workbench) CompileAll(ctx context.Context) error {
	instances := w.List()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	g.SetLimit(w.config.Service.MaxConcurrent)

	for _, inst := range instances {
		inst := inst // per-iteration copy (pre-Go 1.22 loop semantics)
		g.Go(func() error {
			if _, err := w.compile(ctx, inst); err != nil {
				LogErrorf("Compile failed: %v", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		LogInfof("Compiled %d instances, %d failed", len(instances), len(errs))
	}
	return errors.Join(errs...)
}

// Share stores all instances behind a short link
func (w *Workbench) Share(ctx context.Context) (string, error) {
	state, err := BuildClientState(w.ws, w.List(), w.config.Service.Language)
	if err != nil {
		return "", err
	}
	return w.service.GetShortLink(ctx, state)
}

// LoadLink replaces the instances with the ones behind a short link. The
// list is left unchanged unless the whole link converted.
func (w *Workbench) LoadLink(ctx context.Context, link string) ([]*Instance, error) {
	state, err := w.service.LoadShortLink(ctx, link)
	if err != nil {
		return nil, err
	}
	instances, err := state.ToInstances(ctx, w.ws, w.resolver, w.config)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", link, err)
	}
	w.Replace(instances)
	LogInfof("Loaded %d instances from %s", len(instances), link)
	return w.List(), nil
}
