// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"database/sql"
	"encoding"
	"encoding/json"
	"reflect"
	"time"

	"github.com/pkg/errors"

	"github.com/canonical/sqlstmt/internal/convert"
)

// ColumnMapper converts a value read from a result column, as returned by
// the driver, into a Go value.
type ColumnMapper interface {
	MapColumn(src any, ctx *StatementContext) (any, error)
}

// ColumnMapperFunc is a function implementing ColumnMapper.
type ColumnMapperFunc func(src any, ctx *StatementContext) (any, error)

func (f ColumnMapperFunc) MapColumn(src any, ctx *StatementContext) (any, error) {
	return f(src, ctx)
}

// TypedColumnMapper is a ColumnMapper producing values of type T.
type TypedColumnMapper[T any] func(src any, ctx *StatementContext) (T, error)

func (f TypedColumnMapper[T]) MapColumn(src any, ctx *StatementContext) (any, error) {
	v, err := f(src, ctx)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ColumnMapperFactory builds the mapper for a qualified type, or reports
// false if it does not handle the type. config is the registry holding the
// factory, so the factory can resolve mappers for other types.
type ColumnMapperFactory func(qt QualifiedType, config *ConfigRegistry) (ColumnMapper, bool)

// ColumnMappers is the registry of column mappers of a ConfigRegistry.
type ColumnMappers struct {
	registry *ConfigRegistry
	mappers  *converters[ColumnMapper]
}

func newColumnMappers() *ColumnMappers {
	return &ColumnMappers{mappers: newConverters(columnMapperBuiltins)}
}

// CreateCopy implements Config.
func (m *ColumnMappers) CreateCopy() Config {
	return &ColumnMappers{mappers: m.mappers.copy()}
}

func (m *ColumnMappers) setRegistry(r *ConfigRegistry) {
	m.registry = r
}

// Register sets the mapper used for exactly qt.
func (m *ColumnMappers) Register(qt QualifiedType, mapper ColumnMapper) {
	m.mappers.register(qt, mapper)
}

// RegisterType sets the mapper used for the unqualified type t.
func (m *ColumnMappers) RegisterType(t reflect.Type, mapper ColumnMapper) {
	m.mappers.register(TypeOf(t), mapper)
}

// RegisterFactory adds a factory. Factories are consulted after exact
// registrations, the most recently registered first.
func (m *ColumnMappers) RegisterFactory(f ColumnMapperFactory) {
	m.mappers.registerFactory(factory[ColumnMapper](f))
}

// FindFor returns the mapper for qt. It reports false if no mapper handles
// qt; that is not an error.
func (m *ColumnMappers) FindFor(qt QualifiedType) (ColumnMapper, bool) {
	return m.mappers.find(qt, m.registry)
}

// FindForType returns the mapper for the unqualified type t.
func (m *ColumnMappers) FindForType(t reflect.Type) (ColumnMapper, bool) {
	return m.FindFor(TypeOf(t))
}

// RegisterColumnMapper sets the mapper for T with the given qualifiers.
func RegisterColumnMapper[T any](m *ColumnMappers, mapper func(src any, ctx *StatementContext) (T, error), quals ...Qualifier) {
	m.Register(QualifiedTypeOf[T]().With(quals...), TypedColumnMapper[T](mapper))
}

var columnMapperBuiltins = []builtin[ColumnMapper]{
	{build: jsonColumnMapper, qualified: true},
	{build: scannerColumnMapper, qualified: true},
	{build: pointerColumnMapper, qualified: true},
	{build: enumByOrdinalColumnMapper, qualified: true},
	{build: enumByNameColumnMapper, qualified: true},
	{build: typeColumnMapper},
	{build: kindColumnMapper},
}

func mapWith[T any](f func(any) (T, error)) ColumnMapper {
	return ColumnMapperFunc(func(src any, _ *StatementContext) (any, error) {
		v, err := f(src)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

var columnMappersByType = map[reflect.Type]ColumnMapper{
	reflect.TypeFor[any]():       ColumnMapperFunc(func(src any, _ *StatementContext) (any, error) { return src, nil }),
	reflect.TypeFor[string]():    mapWith(convert.String),
	reflect.TypeFor[[]byte]():    mapWith(convert.Bytes),
	reflect.TypeFor[bool]():      mapWith(convert.Bool),
	reflect.TypeFor[int]():       mapWith(convert.Int[int]),
	reflect.TypeFor[int8]():      mapWith(convert.Int[int8]),
	reflect.TypeFor[int16]():     mapWith(convert.Int[int16]),
	reflect.TypeFor[int32]():     mapWith(convert.Int[int32]),
	reflect.TypeFor[int64]():     mapWith(convert.Int[int64]),
	reflect.TypeFor[uint]():      mapWith(convert.Uint[uint]),
	reflect.TypeFor[uint8]():     mapWith(convert.Uint[uint8]),
	reflect.TypeFor[uint16]():    mapWith(convert.Uint[uint16]),
	reflect.TypeFor[uint32]():    mapWith(convert.Uint[uint32]),
	reflect.TypeFor[uint64]():    mapWith(convert.Uint[uint64]),
	reflect.TypeFor[float32]():   mapWith(convert.FloatOf[float32]),
	reflect.TypeFor[float64]():   mapWith(convert.FloatOf[float64]),
	reflect.TypeFor[time.Time](): mapWith(convert.Time),
}

func typeColumnMapper(qt QualifiedType, _ *ConfigRegistry) (ColumnMapper, bool) {
	mapper, ok := columnMappersByType[qt.Type()]
	return mapper, ok
}

// kindColumnMapper handles named types with a basic underlying type, such as
// "type Status string".
func kindColumnMapper(qt QualifiedType, _ *ConfigRegistry) (ColumnMapper, bool) {
	t := qt.Type()
	if !isBasicKind(t) {
		return nil, false
	}
	return ColumnMapperFunc(func(src any, _ *StatementContext) (any, error) {
		return mapKind(t, src)
	}), true
}

func isBasicKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}
	return false
}

func isIntKind(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// mapKind converts src into a value of type t using the conversion of t's
// underlying type.
func mapKind(t reflect.Type, src any) (any, error) {
	rv := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		s, err := convert.String(src)
		if err != nil {
			return nil, err
		}
		rv.SetString(s)
	case reflect.Bool:
		b, err := convert.Bool(src)
		if err != nil {
			return nil, err
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := convert.Int[int64](src)
		if err != nil {
			return nil, err
		}
		if rv.OverflowInt(i) {
			return nil, errors.Errorf("value %d overflows %s", i, t)
		}
		rv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := convert.Uint[uint64](src)
		if err != nil {
			return nil, err
		}
		if rv.OverflowUint(u) {
			return nil, errors.Errorf("value %d overflows %s", u, t)
		}
		rv.SetUint(u)
	case reflect.Float32, reflect.Float64:
		f, err := convert.FloatOf[float64](src)
		if err != nil {
			return nil, err
		}
		rv.SetFloat(f)
	case reflect.Slice:
		b, err := convert.Bytes(src)
		if err != nil {
			return nil, err
		}
		rv.SetBytes(b)
	default:
		return nil, errors.Errorf("cannot convert %T into %s", src, t)
	}
	return rv.Interface(), nil
}

var (
	scannerType         = reflect.TypeFor[sql.Scanner]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// scannerColumnMapper handles types whose pointer implements sql.Scanner,
// such as sql.NullString. Qualifiers are ignored.
func scannerColumnMapper(qt QualifiedType, _ *ConfigRegistry) (ColumnMapper, bool) {
	t := qt.Type()
	if t.Kind() == reflect.Pointer || !reflect.PointerTo(t).Implements(scannerType) {
		return nil, false
	}
	return ColumnMapperFunc(func(src any, _ *StatementContext) (any, error) {
		ptr := reflect.New(t)
		if err := ptr.Interface().(sql.Scanner).Scan(src); err != nil {
			return nil, errors.Wrapf(err, "cannot scan into %s", t)
		}
		return ptr.Elem().Interface(), nil
	}), true
}

// jsonColumnMapper decodes JSON documents for types qualified with JSON. A
// NULL column gives the zero value.
func jsonColumnMapper(qt QualifiedType, _ *ConfigRegistry) (ColumnMapper, bool) {
	if !qt.HasQualifier(JSON) {
		return nil, false
	}
	t := qt.Type()
	return ColumnMapperFunc(func(src any, _ *StatementContext) (any, error) {
		if src == nil {
			return reflect.Zero(t).Interface(), nil
		}
		data, err := convert.Bytes(src)
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(t)
		if err := json.Unmarshal(data, ptr.Interface()); err != nil {
			return nil, errors.Wrapf(err, "cannot decode JSON into %s", t)
		}
		return ptr.Elem().Interface(), nil
	}), true
}

// pointerColumnMapper handles *T using the mapper of T with the same
// qualifiers. A NULL column gives a nil pointer.
func pointerColumnMapper(qt QualifiedType, config *ConfigRegistry) (ColumnMapper, bool) {
	t := qt.Type()
	if t.Kind() != reflect.Pointer {
		return nil, false
	}
	mappers, ok := lookup[*ColumnMappers](config)
	if !ok {
		return nil, false
	}
	elem, ok := mappers.FindFor(qt.WithType(t.Elem()))
	if !ok {
		return nil, false
	}
	return ColumnMapperFunc(func(src any, ctx *StatementContext) (any, error) {
		if src == nil {
			return reflect.Zero(t).Interface(), nil
		}
		v, err := elem.MapColumn(src, ctx)
		if err != nil {
			return nil, err
		}
		ptr := reflect.New(t.Elem())
		if v != nil {
			rv := reflect.ValueOf(v)
			if !rv.Type().AssignableTo(t.Elem()) {
				return nil, errors.Errorf("mapper for %s returned %s", t.Elem(), rv.Type())
			}
			ptr.Elem().Set(rv)
		}
		return ptr.Interface(), nil
	}), true
}

// enumByOrdinalColumnMapper reads integer enumerations qualified with
// EnumByOrdinal.
func enumByOrdinalColumnMapper(qt QualifiedType, _ *ConfigRegistry) (ColumnMapper, bool) {
	t := qt.Type()
	if !qt.HasQualifier(EnumByOrdinal) || !isIntKind(t) {
		return nil, false
	}
	return ColumnMapperFunc(func(src any, _ *StatementContext) (any, error) {
		return mapKind(t, src)
	}), true
}

// enumByNameColumnMapper reads enumerations qualified with EnumByName whose
// pointer implements encoding.TextUnmarshaler.
func enumByNameColumnMapper(qt QualifiedType, _ *ConfigRegistry) (ColumnMapper, bool) {
	t := qt.Type()
	if !qt.HasQualifier(EnumByName) || !reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return nil, false
	}
	return ColumnMapperFunc(func(src any, _ *StatementContext) (any, error) {
		name, err := convert.Bytes(src)
		if err != nil {
			return nil, err
		}
		if name == nil {
			return nil, errors.Wrapf(convert.ErrNull, "into %s", t)
		}
		ptr := reflect.New(t)
		if err := ptr.Interface().(encoding.TextUnmarshaler).UnmarshalText(name); err != nil {
			return nil, errors.Wrapf(err, "cannot read %s by name", t)
		}
		return ptr.Elem().Interface(), nil
	}), true
}
