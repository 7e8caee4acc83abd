// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlstmt_test

import (
	"reflect"

	. "gopkg.in/check.v1"

	"github.com/canonical/sqlstmt"
)

type QualifiedSuite struct{}

var _ = Suite(&QualifiedSuite{})

func (s *QualifiedSuite) TestEquality(c *C) {
	stringType := reflect.TypeOf("")

	plain := sqlstmt.TypeOf(stringType)
	c.Check(plain, Equals, sqlstmt.QualifiedTypeOf[string]())
	c.Check(plain.IsQualified(), Equals, false)
	c.Check(plain.Qualifiers(), HasLen, 0)

	ab := plain.With(sqlstmt.NVarchar, sqlstmt.JSON)
	ba := plain.With(sqlstmt.JSON).With(sqlstmt.NVarchar)
	c.Check(ab, Equals, ba)
	c.Check(ab, Not(Equals), plain)
	c.Check(ab.Qualifiers(), DeepEquals, []sqlstmt.Qualifier{sqlstmt.JSON, sqlstmt.NVarchar})

	// Adding a qualifier twice has no effect.
	c.Check(ab.With(sqlstmt.JSON), Equals, ab)
	c.Check(plain.With(sqlstmt.NVarchar, sqlstmt.NVarchar), Equals, plain.With(sqlstmt.NVarchar))

	// The qualifiers are not shared with the original value.
	c.Check(plain.IsQualified(), Equals, false)

	c.Check(sqlstmt.QualifiedTypeOf[int](), Not(Equals), plain)
}

func (s *QualifiedSuite) TestMapKey(c *C) {
	m := map[sqlstmt.QualifiedType]int{
		sqlstmt.QualifiedTypeOf[string]():                         1,
		sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.NVarchar): 2,
	}
	c.Check(m[sqlstmt.TypeOf(reflect.TypeOf(""))], Equals, 1)
	c.Check(m[sqlstmt.TypeOf(reflect.TypeOf("")).With(sqlstmt.NVarchar)], Equals, 2)
	c.Check(m[sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.JSON)], Equals, 0)
}

func (s *QualifiedSuite) TestAccessors(c *C) {
	qt := sqlstmt.QualifiedTypeOf[[]byte]().With(sqlstmt.JSON)
	c.Check(qt.Type(), Equals, reflect.TypeOf([]byte(nil)))
	c.Check(qt.HasQualifier(sqlstmt.JSON), Equals, true)
	c.Check(qt.HasQualifier(sqlstmt.NVarchar), Equals, false)
	c.Check(qt.WithType(reflect.TypeOf("")), Equals, sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.JSON))
}

func (s *QualifiedSuite) TestString(c *C) {
	c.Check(sqlstmt.QualifiedTypeOf[string]().String(), Equals, "string")
	c.Check(sqlstmt.QualifiedTypeOf[string]().With(sqlstmt.NVarchar, sqlstmt.JSON).String(), Equals, "@JSON @NVarchar string")
	c.Check(sqlstmt.QualifiedType{}.String(), Equals, "<nil>")
}
