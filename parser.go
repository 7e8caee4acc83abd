// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"slices"
	"strconv"

	"github.com/canonical/sqlstmt/internal/expr"
)

// SQLParser turns a template into driver SQL and the parameters behind each
// "?" marker of that SQL. Parsing is deterministic: the same template always
// gives the same result.
type SQLParser interface {
	Parse(template string) (*ParsedSQL, error)
}

// ParamRef is the parameter behind one "?" marker of the driver SQL.
type ParamRef struct {
	// Name is set for named placeholders and empty for positional ones.
	Name string `json:"name,omitempty"`
	// Position is the index of the marker in the driver SQL. For positional
	// placeholders it is also the ordinal used by BindPosition.
	Position int `json:"position"`
}

// IsNamed reports whether the reference comes from a named placeholder.
func (r ParamRef) IsNamed() bool {
	return r.Name != ""
}

func (r ParamRef) String() string {
	if r.IsNamed() {
		return r.Name
	}
	return "?" + strconv.Itoa(r.Position)
}

// ParsedSQL is the result of parsing a template.
type ParsedSQL struct {
	// SQL is the driver SQL with every placeholder replaced by "?".
	SQL    string     `json:"sql"`
	Params []ParamRef `json:"params"`
}

// Positional reports whether the template used "?" placeholders.
func (p *ParsedSQL) Positional() bool {
	return len(p.Params) > 0 && !p.Params[0].IsNamed()
}

// Names returns the distinct parameter names in order of first appearance.
func (p *ParsedSQL) Names() []string {
	var names []string
	for _, ref := range p.Params {
		if ref.IsNamed() && !slices.Contains(names, ref.Name) {
			names = append(names, ref.Name)
		}
	}
	return names
}

func (p *ParsedSQL) clone() *ParsedSQL {
	return &ParsedSQL{SQL: p.SQL, Params: slices.Clone(p.Params)}
}

// ColonPrefixParser parses templates with ":name" and "?" placeholders.
type ColonPrefixParser struct{}

// NewColonPrefixParser returns a parser for ":name" placeholders.
func NewColonPrefixParser() *ColonPrefixParser {
	return &ColonPrefixParser{}
}

// Parse implements SQLParser.
func (*ColonPrefixParser) Parse(template string) (*ParsedSQL, error) {
	return parseWith(':', template)
}

// HashPrefixParser parses templates with "#name" and "?" placeholders.
type HashPrefixParser struct{}

// NewHashPrefixParser returns a parser for "#name" placeholders.
func NewHashPrefixParser() *HashPrefixParser {
	return &HashPrefixParser{}
}

// Parse implements SQLParser.
func (*HashPrefixParser) Parse(template string) (*ParsedSQL, error) {
	return parseWith('#', template)
}

func parseWith(sigil rune, template string) (*ParsedSQL, error) {
	pe, err := expr.NewParser(sigil).Parse(template)
	if err != nil {
		return nil, err
	}
	var refs []ParamRef
	for _, p := range pe.Params() {
		refs = append(refs, ParamRef{Name: p.Name, Position: p.Position})
	}
	return &ParsedSQL{SQL: pe.SQL(), Params: refs}, nil
}
