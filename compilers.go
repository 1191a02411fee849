package main

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CompilerInfo describes one remote compiler and what it can do
type CompilerInfo struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	Lang                      string `json:"lang,omitempty"`
	SupportsDemangle          bool   `json:"supportsDemangle,omitempty"`
	SupportsBinary            bool   `json:"supportsBinary,omitempty"`
	SupportsBinaryObject      bool   `json:"supportsBinaryObject,omitempty"`
	SupportsIntel             bool   `json:"supportsIntel,omitempty"`
	SupportsExecute           bool   `json:"supportsExecute,omitempty"`
	SupportsLibraryCodeFilter bool   `json:"supportsLibraryCodeFilter,omitempty"`
}

// compilerInfoFields is the fields= query sent to /api/compilers/{lang}
const compilerInfoFields = "id,name,lang,supportsDemangle,supportsBinary,supportsBinaryObject,supportsIntel,supportsExecute,supportsLibraryCodeFilter"

// CompilerResolver finds a compiler by display name or id
type CompilerResolver interface {
	Lookup(ctx context.Context, lang, nameOrID string) (CompilerInfo, error)
}

// CompilerFetcher loads the compiler list of a language from the service
type CompilerFetcher interface {
	FetchCompilers(ctx context.Context, lang string) ([]CompilerInfo, error)
}

// CompilerTable caches compiler lists per language
type CompilerTable struct {
	fetcher CompilerFetcher
	cache   *lru.Cache[string, []CompilerInfo]
	fetchMu sync.Mutex
}

// NewCompilerTable creates a table holding at most size languages
func NewCompilerTable(fetcher CompilerFetcher, size int) (*CompilerTable, error) {
	cache, err := lru.New[string, []CompilerInfo](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create compiler cache: %w", err)
	}
	return &CompilerTable{fetcher: fetcher, cache: cache}, nil
}

// List returns all compilers of a language, fetching them once
func (t *CompilerTable) List(ctx context.Context, lang string) ([]CompilerInfo, error) {
	if infos, ok := t.cache.Get(lang); ok {
		return infos, nil
	}

	t.fetchMu.Lock()
	defer t.fetchMu.Unlock()

	// another caller may have filled the cache while we waited
	if infos, ok := t.cache.Get(lang); ok {
		return infos, nil
	}

	infos, err := t.fetcher.FetchCompilers(ctx, lang)
	if err != nil {
		return nil, err
	}
	for i := range infos {
		if infos[i].Lang == "" {
			infos[i].Lang = lang
		}
	}
	t.cache.Add(lang, infos)
	LogDebugf("Cached %d compilers for %s", len(infos), lang)
	return infos, nil
}

// Lookup matches the display name first and the id second
func (t *CompilerTable) Lookup(ctx context.Context, lang, nameOrID string) (CompilerInfo, error) {
	infos, err := t.List(ctx, lang)
	if err != nil {
		return CompilerInfo{}, err
	}
	for _, info := range infos {
		if info.Name == nameOrID {
			return info, nil
		}
	}
	for _, info := range infos {
		if info.ID == nameOrID {
			return info, nil
		}
	}
	return CompilerInfo{}, inconsistentErrorf("compiler %q not found among %d %s compilers", nameOrID, len(infos), lang)
}

// Invalidate drops the cached list of a language
func (t *CompilerTable) Invalidate(lang string) {
	t.cache.Remove(lang)
}
