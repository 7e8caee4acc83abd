// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"reflect"
	"slices"
	"strings"
)

// Qualifier is a tag that selects a conversion strategy for a type, for
// example binding a string as a national character set parameter.
type Qualifier string

const (
	// NVarchar marks strings bound or read as national character set values.
	NVarchar Qualifier = "NVarchar"

	// JSON marks values stored as JSON documents.
	JSON Qualifier = "JSON"

	// EnumByName marks enumerations bound by their String method.
	EnumByName Qualifier = "EnumByName"

	// EnumByOrdinal marks enumerations bound by their integer value.
	EnumByOrdinal Qualifier = "EnumByOrdinal"
)

// qualifierSep cannot appear in a sensible qualifier name.
const qualifierSep = "\x00"

// QualifiedType pairs a Go type with a set of qualifiers. It is the lookup
// key of every converter registry. QualifiedType values are immutable and
// comparable: two values are equal when their types and qualifier sets are
// equal, regardless of the order the qualifiers were added in.
type QualifiedType struct {
	typ reflect.Type
	// quals holds the sorted, deduplicated qualifiers joined by qualifierSep.
	quals string
}

// TypeOf returns the unqualified QualifiedType of t.
func TypeOf(t reflect.Type) QualifiedType {
	return QualifiedType{typ: t}
}

// QualifiedTypeOf returns the unqualified QualifiedType of T.
func QualifiedTypeOf[T any]() QualifiedType {
	return QualifiedType{typ: reflect.TypeFor[T]()}
}

// With returns a QualifiedType with the union of qt's qualifiers and quals.
// Adding a qualifier that is already present has no effect.
func (qt QualifiedType) With(quals ...Qualifier) QualifiedType {
	if len(quals) == 0 {
		return qt
	}
	all := append(qt.Qualifiers(), quals...)
	slices.Sort(all)
	all = slices.Compact(all)
	names := make([]string, len(all))
	for i, q := range all {
		names[i] = string(q)
	}
	return QualifiedType{typ: qt.typ, quals: strings.Join(names, qualifierSep)}
}

// Type returns the raw Go type.
func (qt QualifiedType) Type() reflect.Type {
	return qt.typ
}

// Qualifiers returns the qualifiers in sorted order.
func (qt QualifiedType) Qualifiers() []Qualifier {
	if qt.quals == "" {
		return nil
	}
	names := strings.Split(qt.quals, qualifierSep)
	quals := make([]Qualifier, len(names))
	for i, name := range names {
		quals[i] = Qualifier(name)
	}
	return quals
}

// HasQualifier reports whether q is one of qt's qualifiers.
func (qt QualifiedType) HasQualifier(q Qualifier) bool {
	return slices.Contains(qt.Qualifiers(), q)
}

// IsQualified reports whether qt carries any qualifier.
func (qt QualifiedType) IsQualified() bool {
	return qt.quals != ""
}

// WithType returns a QualifiedType for t carrying qt's qualifiers.
func (qt QualifiedType) WithType(t reflect.Type) QualifiedType {
	return QualifiedType{typ: t, quals: qt.quals}
}

func (qt QualifiedType) String() string {
	name := "<nil>"
	if qt.typ != nil {
		name = qt.typ.String()
	}
	if qt.quals == "" {
		return name
	}
	quals := qt.Qualifiers()
	names := make([]string, len(quals))
	for i, q := range quals {
		names[i] = "@" + string(q)
	}
	return strings.Join(names, " ") + " " + name
}
