// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"github.com/pkg/errors"

	"github.com/canonical/sqlstmt/internal/expr"
)

// ParseError locates a malformed template. Its Err field is one of
// ErrUnterminatedString, ErrUnterminatedComment or ErrMixedParameters.
type ParseError = expr.ParseError

var (
	ErrUnterminatedString  = expr.ErrUnterminatedString
	ErrUnterminatedComment = expr.ErrUnterminatedComment
	ErrMixedParameters     = expr.ErrMixedParameters
)

var (
	// ErrFlagConflict is returned when a statement is asked to both return
	// generated keys and be concurrently updatable.
	ErrFlagConflict = errors.New("cannot both return generated keys and be concurrent updatable")

	// ErrNotPrepared is returned by operations that need a parsed template.
	ErrNotPrepared = errors.New("statement has not been prepared")

	// ErrAlreadyPrepared is returned when a context is prepared twice.
	ErrAlreadyPrepared = errors.New("statement has already been prepared")

	// ErrFinalized is returned when a finalized context is modified.
	ErrFinalized = errors.New("statement has been finalized")

	// ErrMissingBinding is returned when a parameter of the template has no
	// bound value.
	ErrMissingBinding = errors.New("missing binding")

	// ErrUnusedBinding is returned when a bound value is not referenced by
	// the template and unused bindings are not allowed.
	ErrUnusedBinding = errors.New("unused binding")

	// ErrUnsupportedType is returned when no argument can be resolved for a
	// bound value.
	ErrUnsupportedType = errors.New("unsupported type")
)
