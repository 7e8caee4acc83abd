// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt

import (
	"database/sql/driver"
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/mitranim/refut"
	"github.com/pkg/errors"
)

// Argument converts a bound Go value into a value the driver accepts: nil,
// int64, float64, bool, []byte, string or time.Time.
type Argument interface {
	BindArgument(value any, ctx *StatementContext) (any, error)
}

// ArgumentFunc is a function implementing Argument.
type ArgumentFunc func(value any, ctx *StatementContext) (any, error)

func (f ArgumentFunc) BindArgument(value any, ctx *StatementContext) (any, error) {
	return f(value, ctx)
}

// ArgumentFactory builds the argument for a qualified type, or reports false
// if it does not handle the type.
type ArgumentFactory func(qt QualifiedType, config *ConfigRegistry) (Argument, bool)

// Arguments is the registry of argument factories of a ConfigRegistry.
type Arguments struct {
	registry  *ConfigRegistry
	arguments *converters[Argument]
}

func newArguments() *Arguments {
	return &Arguments{arguments: newConverters(argumentBuiltins)}
}

// CreateCopy implements Config.
func (a *Arguments) CreateCopy() Config {
	return &Arguments{arguments: a.arguments.copy()}
}

func (a *Arguments) setRegistry(r *ConfigRegistry) {
	a.registry = r
}

// Register sets the argument used for exactly qt.
func (a *Arguments) Register(qt QualifiedType, arg Argument) {
	a.arguments.register(qt, arg)
}

// RegisterType sets the argument used for the unqualified type t.
func (a *Arguments) RegisterType(t reflect.Type, arg Argument) {
	a.arguments.register(TypeOf(t), arg)
}

// RegisterFactory adds a factory. Factories are consulted after exact
// registrations, the most recently registered first.
func (a *Arguments) RegisterFactory(f ArgumentFactory) {
	a.arguments.registerFactory(factory[Argument](f))
}

// FindFor returns the argument for qt. It reports false if nothing handles
// qt; that is not an error.
func (a *Arguments) FindFor(qt QualifiedType) (Argument, bool) {
	return a.arguments.find(qt, a.registry)
}

// RegisterArgument sets the argument for T with the given qualifiers.
func RegisterArgument[T any](a *Arguments, arg func(value T, ctx *StatementContext) (any, error), quals ...Qualifier) {
	a.Register(QualifiedTypeOf[T]().With(quals...), ArgumentFunc(func(value any, ctx *StatementContext) (any, error) {
		v, ok := value.(T)
		if !ok {
			return nil, errors.Errorf("argument for %s got %T", reflect.TypeFor[T](), value)
		}
		return arg(v, ctx)
	}))
}

var argumentBuiltins = []builtin[Argument]{
	{build: jsonArgument, qualified: true},
	{build: valuerArgument, qualified: true},
	{build: pointerArgument, qualified: true},
	{build: enumByOrdinalArgument, qualified: true},
	{build: enumByNameArgument, qualified: true},
	{build: typeArgument},
	{build: kindArgument},
}

var (
	valuerType        = reflect.TypeFor[driver.Valuer]()
	stringerType      = reflect.TypeFor[fmt.Stringer]()
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
)

func passThrough(value any, _ *StatementContext) (any, error) {
	return value, nil
}

var argumentsByType = map[reflect.Type]Argument{
	reflect.TypeFor[string]():    ArgumentFunc(passThrough),
	reflect.TypeFor[[]byte]():    ArgumentFunc(passThrough),
	reflect.TypeFor[bool]():      ArgumentFunc(passThrough),
	reflect.TypeFor[int64]():     ArgumentFunc(passThrough),
	reflect.TypeFor[float64]():   ArgumentFunc(passThrough),
	reflect.TypeFor[time.Time](): ArgumentFunc(passThrough),
}

func typeArgument(qt QualifiedType, _ *ConfigRegistry) (Argument, bool) {
	arg, ok := argumentsByType[qt.Type()]
	return arg, ok
}

// kindArgument handles the remaining basic types and named types with a
// basic underlying type by converting them to the driver type of their kind.
func kindArgument(qt QualifiedType, _ *ConfigRegistry) (Argument, bool) {
	if !isBasicKind(qt.Type()) {
		return nil, false
	}
	return ArgumentFunc(func(value any, _ *StatementContext) (any, error) {
		return bindKind(reflect.ValueOf(value))
	}), true
}

func bindKind(rv reflect.Value) (any, error) {
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return rv.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, errors.Errorf("value %d of %s overflows int64", u, rv.Type())
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Bytes(), nil
		}
	}
	return nil, errors.Errorf("cannot bind %s", rv.Type())
}

// valuerArgument handles driver.Valuer implementations. Qualifiers are
// ignored. A nil pointer binds NULL.
func valuerArgument(qt QualifiedType, _ *ConfigRegistry) (Argument, bool) {
	if !qt.Type().Implements(valuerType) {
		return nil, false
	}
	return ArgumentFunc(func(value any, _ *StatementContext) (any, error) {
		if refut.IsNil(value) {
			return nil, nil
		}
		v, err := value.(driver.Valuer).Value()
		if err != nil {
			return nil, errors.Wrapf(err, "cannot get value of %T", value)
		}
		return v, nil
	}), true
}

// jsonArgument encodes values qualified with JSON as JSON text. A nil value
// binds NULL.
func jsonArgument(qt QualifiedType, _ *ConfigRegistry) (Argument, bool) {
	if !qt.HasQualifier(JSON) {
		return nil, false
	}
	return ArgumentFunc(func(value any, _ *StatementContext) (any, error) {
		if refut.IsNil(value) {
			return nil, nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot encode %T as JSON", value)
		}
		return string(data), nil
	}), true
}

// pointerArgument handles *T by binding the pointed to value with the
// argument of T and the same qualifiers. A nil pointer binds NULL.
func pointerArgument(qt QualifiedType, config *ConfigRegistry) (Argument, bool) {
	t := qt.Type()
	if t.Kind() != reflect.Pointer {
		return nil, false
	}
	args, ok := lookup[*Arguments](config)
	if !ok {
		return nil, false
	}
	elem, ok := args.FindFor(qt.WithType(t.Elem()))
	if !ok {
		return nil, false
	}
	return ArgumentFunc(func(value any, ctx *StatementContext) (any, error) {
		rv := reflect.ValueOf(value)
		if rv.IsNil() {
			return nil, nil
		}
		return elem.BindArgument(rv.Elem().Interface(), ctx)
	}), true
}

// enumByOrdinalArgument binds integer enumerations qualified with
// EnumByOrdinal as their integer value.
func enumByOrdinalArgument(qt QualifiedType, _ *ConfigRegistry) (Argument, bool) {
	if !qt.HasQualifier(EnumByOrdinal) || !isIntKind(qt.Type()) {
		return nil, false
	}
	return ArgumentFunc(func(value any, _ *StatementContext) (any, error) {
		return bindKind(reflect.ValueOf(value))
	}), true
}

// enumByNameArgument binds enumerations qualified with EnumByName as their
// name, taken from MarshalText or else String.
func enumByNameArgument(qt QualifiedType, _ *ConfigRegistry) (Argument, bool) {
	t := qt.Type()
	if !qt.HasQualifier(EnumByName) {
		return nil, false
	}
	switch {
	case t.Implements(textMarshalerType):
		return ArgumentFunc(func(value any, _ *StatementContext) (any, error) {
			name, err := value.(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return nil, errors.Wrapf(err, "cannot bind %T by name", value)
			}
			return string(name), nil
		}), true
	case t.Implements(stringerType):
		return ArgumentFunc(func(value any, _ *StatementContext) (any, error) {
			return value.(fmt.Stringer).String(), nil
		}), true
	}
	return nil, false
}
