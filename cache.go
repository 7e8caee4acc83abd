// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// DefaultParseCacheSize is the number of templates a CachingParser keeps
// when no size is configured.
const DefaultParseCacheSize = 256

// CachingParser wraps a SQLParser and remembers the result of the most
// recently used templates. Failed parses are not cached. A CachingParser is
// safe for concurrent use.
type CachingParser struct {
	parser SQLParser
	cache  *lru.Cache[string, *ParsedSQL]
}

// NewCachingParser returns a parser caching up to size results of parser.
func NewCachingParser(parser SQLParser, size int) (*CachingParser, error) {
	if size <= 0 {
		return nil, errors.Errorf("cannot create parse cache: invalid size %d", size)
	}
	cache, err := lru.New[string, *ParsedSQL](size)
	if err != nil {
		return nil, errors.Wrap(err, "cannot create parse cache")
	}
	return &CachingParser{parser: parser, cache: cache}, nil
}

// Parse implements SQLParser. Callers get their own copy of the result.
func (p *CachingParser) Parse(template string) (*ParsedSQL, error) {
	if parsed, ok := p.cache.Get(template); ok {
		return parsed.clone(), nil
	}

	parsed, err := p.parser.Parse(template)
	if err != nil {
		return nil, err
	}

	// Another caller may have parsed the same template since we last
	// checked. Keep the first result.
	if prev, ok, _ := p.cache.PeekOrAdd(template, parsed); ok {
		parsed = prev
	}
	return parsed.clone(), nil
}

// Parser returns the wrapped parser.
func (p *CachingParser) Parser() SQLParser {
	return p.parser
}

// Len returns the number of cached templates.
func (p *CachingParser) Len() int {
	return p.cache.Len()
}
