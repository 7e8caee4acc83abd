// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt_test

import (
	"database/sql"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"time"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlstmt"
)

type RegistrySuite struct{}

var _ = Suite(&RegistrySuite{})

type Status string

type Level int8

type Color int

func (col Color) String() string {
	switch col {
	case 0:
		return "red"
	case 1:
		return "green"
	}
	return "color(" + strconv.Itoa(int(col)) + ")"
}

func (col *Color) UnmarshalText(text []byte) error {
	switch string(text) {
	case "red":
		*col = 0
	case "green":
		*col = 1
	default:
		return fmt.Errorf("unknown color %q", text)
	}
	return nil
}

type unsupported struct {
	ch chan int
}

// constMapper returns a mapper that always maps to v.
func constMapper(v any) sqlstmt.ColumnMapper {
	return sqlstmt.ColumnMapperFunc(func(any, *sqlstmt.StatementContext) (any, error) {
		return v, nil
	})
}

// mapWith resolves the mapper for qt in reg and maps src.
func mapWith(c *C, reg *sqlstmt.ConfigRegistry, qt sqlstmt.QualifiedType, src any) any {
	mapper, ok := reg.ColumnMappers().FindFor(qt)
	c.Assert(ok, Equals, true, Commentf("no mapper for %s", qt))
	v, err := mapper.MapColumn(src, nil)
	c.Assert(err, IsNil)
	return v
}

// bindWith resolves the argument for the type of v in reg and binds v.
func bindWith(c *C, reg *sqlstmt.ConfigRegistry, v any, quals ...sqlstmt.Qualifier) any {
	qt := sqlstmt.TypeOf(reflect.TypeOf(v)).With(quals...)
	arg, ok := reg.Arguments().FindFor(qt)
	c.Assert(ok, Equals, true, Commentf("no argument for %s", qt))
	out, err := arg.BindArgument(v, nil)
	c.Assert(err, IsNil)
	return out
}

func (s *RegistrySuite) TestUnsupportedTypeIsAbsent(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	for _, qt := range []sqlstmt.QualifiedType{
		sqlstmt.QualifiedTypeOf[unsupported](),
		sqlstmt.QualifiedTypeOf[*unsupported](),
		sqlstmt.QualifiedTypeOf[map[string]int](),
		sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.NVarchar),
		{},
		sqlstmt.TypeOf(nil).With(sqlstmt.JSON),
	} {
		mapper, ok := reg.ColumnMappers().FindFor(qt)
		c.Check(ok, Equals, false, Commentf("%s", qt))
		c.Check(mapper, IsNil)
		arg, ok := reg.Arguments().FindFor(qt)
		c.Check(ok, Equals, false, Commentf("%s", qt))
		c.Check(arg, IsNil)
	}
}

func (s *RegistrySuite) TestExactBeatsFactory(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	mappers := reg.ColumnMappers()
	mappers.RegisterType(reflect.TypeOf(""), constMapper("exact"))
	mappers.RegisterFactory(func(qt sqlstmt.QualifiedType, _ *sqlstmt.ConfigRegistry) (sqlstmt.ColumnMapper, bool) {
		return constMapper("factory"), qt.Type().Kind() == reflect.String
	})

	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[string](), "x"), Equals, "exact")
	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[Status](), "x"), Equals, "factory")
}

func (s *RegistrySuite) TestFactoriesNewestFirst(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	mappers := reg.ColumnMappers()
	mappers.RegisterFactory(func(sqlstmt.QualifiedType, *sqlstmt.ConfigRegistry) (sqlstmt.ColumnMapper, bool) {
		return constMapper("first"), true
	})
	mappers.RegisterFactory(func(qt sqlstmt.QualifiedType, _ *sqlstmt.ConfigRegistry) (sqlstmt.ColumnMapper, bool) {
		return constMapper("second"), qt.HasQualifier(sqlstmt.NVarchar)
	})

	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.NVarchar), "x"), Equals, "second")
	// The newest factory declines, the older one matches.
	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[string](), "x"), Equals, "first")
}

func (s *RegistrySuite) TestFactoryReceivesRegistry(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	var got *sqlstmt.ConfigRegistry
	reg.Arguments().RegisterFactory(func(qt sqlstmt.QualifiedType, config *sqlstmt.ConfigRegistry) (sqlstmt.Argument, bool) {
		got = config
		return nil, false
	})
	_, ok := reg.Arguments().FindFor(sqlstmt.QualifiedTypeOf[unsupported]())
	c.Check(ok, Equals, false)
	c.Check(got, Equals, reg)
}

func (s *RegistrySuite) TestQualifiersMatchExactly(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	reg.ColumnMappers().Register(sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.NVarchar), constMapper("nvarchar"))

	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.NVarchar), []byte("x")), Equals, "nvarchar")
	// The unqualified type still uses the built-in mapper.
	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[string](), []byte("x")), Equals, "x")
	// A superset of the qualifiers is a different type.
	_, ok := reg.ColumnMappers().FindFor(sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.NVarchar, sqlstmt.EnumByName))
	c.Check(ok, Equals, false)
}

func (s *RegistrySuite) TestReregisterReplaces(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	reg.ColumnMappers().RegisterType(reflect.TypeOf(0), constMapper(1))
	reg.ColumnMappers().RegisterType(reflect.TypeOf(0), constMapper(2))
	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[int](), nil), Equals, 2)
}

func (s *RegistrySuite) TestChildRegistrationIsolated(c *C) {
	parent := sqlstmt.NewConfigRegistry()
	_, ok := parent.ColumnMappers().FindFor(sqlstmt.QualifiedTypeOf[unsupported]())
	c.Assert(ok, Equals, false)

	child := parent.CreateChild()
	child.ColumnMappers().Register(sqlstmt.QualifiedTypeOf[unsupported](), constMapper("child"))
	sqlstmt.RegisterArgument(child.Arguments(), func(v string, _ *sqlstmt.StatementContext) (any, error) {
		return "child:" + v, nil
	})

	c.Check(mapWith(c, child, sqlstmt.QualifiedTypeOf[unsupported](), nil), Equals, "child")
	_, ok = parent.ColumnMappers().FindFor(sqlstmt.QualifiedTypeOf[unsupported]())
	c.Check(ok, Equals, false)

	c.Check(bindWith(c, child, "v"), Equals, "child:v")
	c.Check(bindWith(c, parent, "v"), Equals, "v")
}

func (s *RegistrySuite) TestBuiltinColumnMappers(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	when := time.Date(2023, time.March, 14, 15, 9, 26, 0, time.UTC)

	var tests = []struct {
		qt   sqlstmt.QualifiedType
		src  any
		want any
	}{
		{sqlstmt.QualifiedTypeOf[string](), []byte("abc"), "abc"},
		{sqlstmt.QualifiedTypeOf[string](), int64(12), "12"},
		{sqlstmt.QualifiedTypeOf[[]byte](), "abc", []byte("abc")},
		{sqlstmt.QualifiedTypeOf[bool](), int64(1), true},
		{sqlstmt.QualifiedTypeOf[int](), int64(-3), -3},
		{sqlstmt.QualifiedTypeOf[int8](), "12", int8(12)},
		{sqlstmt.QualifiedTypeOf[uint16](), int64(65535), uint16(65535)},
		{sqlstmt.QualifiedTypeOf[float32](), float64(1.5), float32(1.5)},
		{sqlstmt.QualifiedTypeOf[float64](), int64(2), float64(2)},
		{sqlstmt.QualifiedTypeOf[time.Time](), "2023-03-14 15:09:26", when},
		{sqlstmt.QualifiedTypeOf[any](), int64(7), int64(7)},
		{sqlstmt.QualifiedTypeOf[Status](), "active", Status("active")},
		{sqlstmt.QualifiedTypeOf[Level](), int64(3), Level(3)},
		{sqlstmt.QualifiedTypeOf[sql.NullString](), "x", sql.NullString{String: "x", Valid: true}},
		{sqlstmt.QualifiedTypeOf[sql.NullString](), nil, sql.NullString{}},
		{sqlstmt.QualifiedTypeOf[sql.NullInt64]().With(sqlstmt.NVarchar), int64(4), sql.NullInt64{Int64: 4, Valid: true}},
		{sqlstmt.QualifiedTypeOf[*int](), nil, (*int)(nil)},
		{sqlstmt.QualifiedTypeOf[Color]().With(sqlstmt.EnumByName), "green", Color(1)},
		{sqlstmt.QualifiedTypeOf[Color]().With(sqlstmt.EnumByOrdinal), int64(1), Color(1)},
		{sqlstmt.QualifiedTypeOf[map[string]int]().With(sqlstmt.JSON), `{"a":1}`, map[string]int{"a": 1}},
		{sqlstmt.QualifiedTypeOf[[]string]().With(sqlstmt.JSON), nil, []string(nil)},
	}
	for i, test := range tests {
		c.Check(mapWith(c, reg, test.qt, test.src), DeepEquals, test.want, Commentf("test %d (%s)", i, test.qt))
	}

	five := 5
	c.Check(mapWith(c, reg, sqlstmt.QualifiedTypeOf[*int](), int64(5)), DeepEquals, &five)
}

func (s *RegistrySuite) TestBuiltinColumnMapperErrors(c *C) {
	reg := sqlstmt.NewConfigRegistry()

	var tests = []struct {
		qt  sqlstmt.QualifiedType
		src any
		err string
	}{
		{sqlstmt.QualifiedTypeOf[int](), nil, "into int: cannot convert NULL"},
		{sqlstmt.QualifiedTypeOf[string](), nil, "into string: cannot convert NULL"},
		{sqlstmt.QualifiedTypeOf[int8](), int64(300), "value 300 overflows int8"},
		{sqlstmt.QualifiedTypeOf[uint](), int64(-1), "cannot convert negative value -1 into uint"},
		{sqlstmt.QualifiedTypeOf[Level](), int64(300), "value 300 overflows sqlstmt_test.Level"},
		{sqlstmt.QualifiedTypeOf[bool](), "maybe", `cannot convert "maybe" into bool`},
		{sqlstmt.QualifiedTypeOf[Color]().With(sqlstmt.EnumByName), "blue", `cannot read sqlstmt_test.Color by name: unknown color "blue"`},
	}
	for i, test := range tests {
		mapper, ok := reg.ColumnMappers().FindFor(test.qt)
		c.Assert(ok, Equals, true)
		_, err := mapper.MapColumn(test.src, nil)
		c.Check(err, ErrorMatches, regexp.QuoteMeta(test.err), Commentf("test %d (%s)", i, test.qt))
	}
}

func (s *RegistrySuite) TestBuiltinArguments(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	when := time.Date(2023, time.March, 14, 15, 9, 26, 0, time.UTC)
	name := "fred"
	var nilName *string

	var tests = []struct {
		value any
		quals []sqlstmt.Qualifier
		want  any
	}{
		{"abc", nil, "abc"},
		{[]byte("abc"), nil, []byte("abc")},
		{true, nil, true},
		{42, nil, int64(42)},
		{int16(-2), nil, int64(-2)},
		{uint32(7), nil, int64(7)},
		{float32(0.5), nil, float64(0.5)},
		{when, nil, when},
		{Status("active"), nil, "active"},
		{Level(3), nil, int64(3)},
		{&name, nil, "fred"},
		{nilName, nil, nil},
		{sql.NullString{String: "x", Valid: true}, nil, "x"},
		{sql.NullString{}, []sqlstmt.Qualifier{sqlstmt.NVarchar}, nil},
		{Color(1), []sqlstmt.Qualifier{sqlstmt.EnumByName}, "green"},
		{Color(1), []sqlstmt.Qualifier{sqlstmt.EnumByOrdinal}, int64(1)},
		{map[string]int{"a": 1}, []sqlstmt.Qualifier{sqlstmt.JSON}, `{"a":1}`},
		{&name, []sqlstmt.Qualifier{sqlstmt.JSON}, `"fred"`},
	}
	for i, test := range tests {
		c.Check(bindWith(c, reg, test.value, test.quals...), DeepEquals, test.want, Commentf("test %d (%T)", i, test.value))
	}

	arg, ok := reg.Arguments().FindFor(sqlstmt.QualifiedTypeOf[uint64]())
	c.Assert(ok, Equals, true)
	_, err := arg.BindArgument(uint64(1<<63), nil)
	c.Check(err, ErrorMatches, "value 9223372036854775808 of uint64 overflows int64")
}

func (s *RegistrySuite) TestRegisterArgumentTypeMismatch(c *C) {
	reg := sqlstmt.NewConfigRegistry()
	sqlstmt.RegisterArgument(reg.Arguments(), func(v Status, _ *sqlstmt.StatementContext) (any, error) {
		return string(v), nil
	})
	arg, ok := reg.Arguments().FindFor(sqlstmt.QualifiedTypeOf[Status]())
	c.Assert(ok, Equals, true)
	_, err := arg.BindArgument(3, nil)
	c.Check(err, ErrorMatches, "argument for sqlstmt_test.Status got int")
}
