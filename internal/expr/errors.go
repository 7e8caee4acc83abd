// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnterminatedString is the cause of a ParseError for a string
	// literal without its closing quote.
	ErrUnterminatedString = errors.New("missing closing quote in string literal")

	// ErrUnterminatedComment is the cause of a ParseError for a block
	// comment without its closing "*/".
	ErrUnterminatedComment = errors.New("missing end of block comment")

	// ErrMixedParameters is the cause of a ParseError for a template that
	// uses both named and positional placeholders.
	ErrMixedParameters = errors.New("cannot mix named and positional parameters")
)

// ParseError locates a lexing failure in a template.
type ParseError struct {
	// Template is the full text that failed to parse.
	Template string
	Line     int
	Column   int
	Err      error
}

func (e *ParseError) Error() string {
	if strings.ContainsRune(e.Template, '\n') {
		return fmt.Sprintf("cannot parse template: line %d, column %d: %s", e.Line, e.Column, e.Err)
	}
	return fmt.Sprintf("cannot parse template: column %d: %s", e.Column, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// errorAt wraps an error with line and column information.
func errorAt(err error, line int, column int, input string) error {
	return &ParseError{Template: input, Line: line, Column: column, Err: err}
}
