// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"
	"strings"
)

// A queryPart represents a section of a parsed SQL template. The parsed
// template is represented as a list of queryParts.
type queryPart interface {
	// String returns a string representation of the part for debugging and
	// testing purposes.
	String() string

	// sql returns the text this part contributes to the driver SQL.
	sql() string
}

// namedParamPart represents a named placeholder such as ":name".
type namedParamPart struct {
	name string
}

func (p *namedParamPart) String() string {
	return "Named[" + p.name + "]"
}

func (p *namedParamPart) sql() string {
	return "?"
}

// positionalParamPart represents a "?" placeholder.
type positionalParamPart struct {
	ordinal int
}

func (p *positionalParamPart) String() string {
	return fmt.Sprintf("Positional[%d]", p.ordinal)
}

func (p *positionalParamPart) sql() string {
	return "?"
}

// bypassPart represents a part of the template that is passed to the
// database verbatim.
type bypassPart struct {
	chunk string
}

func (p *bypassPart) String() string {
	return "Bypass[" + p.chunk + "]"
}

func (p *bypassPart) sql() string {
	return p.chunk
}

// Param describes the parameter behind one "?" marker of the generated SQL.
type Param struct {
	// Name is set for named placeholders and empty for positional ones.
	Name string
	// Position is the index of the marker in the generated SQL.
	Position int
}

// ParsedExpr is the lexed form of a SQL template.
type ParsedExpr struct {
	parts []queryPart
}

// String returns a textual representation of the parts for testing.
func (pe *ParsedExpr) String() string {
	var out strings.Builder
	out.WriteString("[")
	for i, p := range pe.parts {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(p.String())
	}
	out.WriteString("]")
	return out.String()
}

// SQL returns the driver SQL with every placeholder replaced by "?".
func (pe *ParsedExpr) SQL() string {
	var out strings.Builder
	for _, p := range pe.parts {
		out.WriteString(p.sql())
	}
	return out.String()
}

// Params returns one Param per "?" marker in the driver SQL, in order.
func (pe *ParsedExpr) Params() []Param {
	var params []Param
	for _, p := range pe.parts {
		switch p := p.(type) {
		case *namedParamPart:
			params = append(params, Param{Name: p.name, Position: len(params)})
		case *positionalParamPart:
			params = append(params, Param{Position: p.ordinal})
		}
	}
	return params
}
