package parser

import (
	lru "github.com/hashicorp/golang-lru/v2"

	coreerrors "scriptlib/internal/core/errors"
)

const DefaultCacheSize = 1024

type cachedParse struct {
	refs []ModuleReference
	err  error
}

// Parser is the subset of PythonExtractor a CachedExtractor memoises.
type Parser interface {
	Parse(directive string) ([]ModuleReference, error)
}

// CachedExtractor memoises parse results by directive text. The same
// directives recur across most files of a project.
type CachedExtractor struct {
	inner Parser
	cache *lru.Cache[string, cachedParse]
}

func NewCachedExtractor(inner Parser, size int) (*CachedExtractor, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, cachedParse](size)
	if err != nil {
		return nil, err
	}
	return &CachedExtractor{inner: inner, cache: cache}, nil
}

func (c *CachedExtractor) Extract(path string, line int, directive string) ([]ModuleReference, error) {
	entry, ok := c.cache.Get(directive)
	if !ok {
		refs, err := c.inner.Parse(directive)
		entry = cachedParse{refs: refs, err: err}
		c.cache.Add(directive, entry)
	}
	if entry.err != nil {
		return nil, &coreerrors.MalformedReferenceError{Path: path, Line: line, Directive: directive, Err: entry.err}
	}
	return cloneReferences(entry.refs), nil
}

// Len reports the number of cached directives.
func (c *CachedExtractor) Len() int {
	return c.cache.Len()
}

// NewDefaultExtractor returns the cached tree-sitter extractor used by the
// transforms.
func NewDefaultExtractor() Extractor {
	cached, err := NewCachedExtractor(NewPythonExtractor(), DefaultCacheSize)
	if err != nil {
		return NewPythonExtractor()
	}
	return cached
}
