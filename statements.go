// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"log/slog"
	"maps"
	"sync"
)

// SQLStatements holds the settings applied to every statement prepared from
// a ConfigRegistry.
type SQLStatements struct {
	mu                  sync.RWMutex
	parser              SQLParser
	logger              *slog.Logger
	allowUnusedBindings bool
	attributes          map[string]any
}

func newSQLStatements() *SQLStatements {
	return &SQLStatements{
		parser:     NewColonPrefixParser(),
		attributes: make(map[string]any),
	}
}

// CreateCopy implements Config. The parser and logger are shared with the
// copy.
func (s *SQLStatements) CreateCopy() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return &SQLStatements{
		parser:              s.parser,
		logger:              s.logger,
		allowUnusedBindings: s.allowUnusedBindings,
		attributes:          maps.Clone(s.attributes),
	}
}

// Parser returns the parser used to prepare statements.
func (s *SQLStatements) Parser() SQLParser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.parser
}

// SetParser sets the parser used to prepare statements.
func (s *SQLStatements) SetParser(p SQLParser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parser = p
}

// Logger returns the logger of statement contexts, slog.Default() unless
// one was set.
func (s *SQLStatements) Logger() *slog.Logger {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// SetLogger sets the logger of statement contexts.
func (s *SQLStatements) SetLogger(logger *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
}

// AllowUnusedBindings reports whether values may be bound to names the
// template does not use.
func (s *SQLStatements) AllowUnusedBindings() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.allowUnusedBindings
}

// SetAllowUnusedBindings sets whether values may be bound to names the
// template does not use.
func (s *SQLStatements) SetAllowUnusedBindings(allow bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.allowUnusedBindings = allow
}

// Define sets an attribute inherited by every statement context created
// afterwards.
func (s *SQLStatements) Define(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attributes[key] = value
}

// Attribute returns the value of an attribute.
func (s *SQLStatements) Attribute(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.attributes[key]
	return v, ok
}

func (s *SQLStatements) snapshotAttributes() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.attributes)
}
