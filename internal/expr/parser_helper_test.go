// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	. "gopkg.in/check.v1"
)

type ExprInternalSuite struct{}

var _ = Suite(&ExprInternalSuite{})

type parseHelperTest struct {
	charf   func(rune) bool
	boolf0  func() bool
	runef0  func() rune
	result  []bool
	runes   []rune
	input   string
	data    []string
	advance int
}

func (s *ExprInternalSuite) TestRunTable(c *C) {
	var p = NewParser(':')
	var parseTests = []parseHelperTest{
		{charf: p.peekChar, result: []bool{false}, input: "", data: []string{"a"}},
		{charf: p.peekChar, result: []bool{false}, input: "b", data: []string{"a"}},
		{charf: p.peekChar, result: []bool{true}, input: "a", data: []string{"a"}},

		{charf: p.skipChar, result: []bool{false}, input: "", data: []string{"a"}},
		{charf: p.skipChar, result: []bool{false}, input: "abc", data: []string{"b"}},
		{charf: p.skipChar, result: []bool{true, true}, input: "abc", data: []string{"a", "b"}},

		{charf: p.skipCharFind, result: []bool{false}, input: "", data: []string{"a"}},
		{charf: p.skipCharFind, result: []bool{false, true, true}, input: "abcde", data: []string{"x", "b", "c"}},
		{charf: p.skipCharFind, result: []bool{true, false}, input: "abcde ", data: []string{" ", " "}},

		{boolf0: p.skipEscape, result: []bool{false}, input: "", data: []string{}},
		{boolf0: p.skipEscape, result: []bool{false}, input: `\n`, data: []string{}},
		{boolf0: p.skipEscape, result: []bool{true}, input: `\:a`, data: []string{}},
		{boolf0: p.skipEscape, result: []bool{true}, input: `\?`, data: []string{}},
		{boolf0: p.skipEscape, result: []bool{false}, input: `\#`, data: []string{}},
		{boolf0: p.skipEscape, result: []bool{false}, input: `:a`, data: []string{}},
	}
	for _, v := range parseTests {
		// Reset the input.
		p.init(v.input)
		for i := range v.result {
			var result bool
			if v.charf != nil {
				result = v.charf(rune(v.data[i][0]))
			}
			if v.boolf0 != nil {
				result = v.boolf0()
			}
			if v.result[i] != result {
				c.Errorf("Test %#v failed. Expected: '%t', got '%t'\n", v, v.result[i], result)
			}
		}
	}
}

func (s *ExprInternalSuite) TestPeekNextChar(c *C) {
	var p = NewParser(':')
	var peekTests = []parseHelperTest{
		{runef0: p.peekNextChar, runes: []rune{0}, input: ""},
		{runef0: p.peekNextChar, runes: []rune{0}, input: "a"},
		{runef0: p.peekNextChar, runes: []rune{'b'}, input: "ab"},
		{runef0: p.peekNextChar, runes: []rune{'é'}, input: "aé"},
		{runef0: p.peekNextChar, runes: []rune{0}, input: "ab", advance: 1},
	}
	for _, v := range peekTests {
		p.init(v.input)
		for i := 0; i < v.advance; i++ {
			p.advanceChar()
		}
		if got := v.runef0(); got != v.runes[0] {
			c.Errorf("input %q: expected %q, got %q", v.input, v.runes[0], got)
		}
	}
}

func (s *ExprInternalSuite) TestValidQuotes(c *C) {
	var p = NewParser(':')

	validQuotes := []string{
		`'stringy string'`,
		`'O''Flan'`,
		`"J ""Quickfingers"" Johnson"`,
		`''`,
		`''' '''`,
		`""`,
		`" "" "`,
		`'"""'`,
		`' "''" '`,
		`':name'`,
	}

	for _, q := range validQuotes {
		p.init(q)
		ok, err := p.skipStringLiteral()
		if !ok || err != nil {
			c.Errorf("test failed. %s is a valid quoted string", q)
		}
		if p.pos != len(q) {
			c.Errorf("test failed. %s was not fully consumed", q)
		}
	}
}

func (s *ExprInternalSuite) TestInvalidQuote(c *C) {
	var p = NewParser(':')

	invalidQuote := []string{
		"`name`",
		"unquoted string",
	}

	for _, q := range invalidQuote {
		p.init(q)
		ok, _ := p.skipStringLiteral()
		if ok {
			c.Errorf("test failed. %s is not a valid quoted string but is recognised as one", q)
		}
	}
}

func (s *ExprInternalSuite) TestUnfinishedQuote(c *C) {
	var p = NewParser(':')

	unfinishedQuotes := []string{
		`'`,
		`"`,
		`' ''`,
		`'"" ''`,
		`'string`,
		`'string"`,
		`"string`,
	}

	for _, q := range unfinishedQuotes {
		p.init(q)
		_, err := p.skipStringLiteral()
		if err == nil {
			c.Errorf("test failed. the string %s was parsed but is not valid", q)
		}
		// A failed skip leaves the parser where it started.
		c.Assert(p.pos, Equals, 0)
	}
}

func (s *ExprInternalSuite) TestSkipComments(c *C) {
	validComments := []string{
		`-- Single line comment`,
		`-- Single line comment with line break
		`,
		`/* multi
		 line */`,
		`/* -- */`,
		`-- */`,
		`--`,
		`/**/`,
	}
	invalidComments := []string{
		`- not comment`,
		`- - not comment`,
		`/ * not comment */`,
		`*/ not comment`,
		`/- not comment "`,
		`-* not comment`,
		`/ not comment */`,
	}
	unfinishedComments := []string{
		`/* unfinished multiline`,
		`/*`,
		`/*/`,
	}

	var p = NewParser(':')
	for _, s := range validComments {
		p.init(s)
		if ok, err := p.skipComment(); !ok || err != nil {
			c.Errorf("comment %s not parsed as comment", s)
		}
	}
	for _, s := range invalidComments {
		p.init(s)
		if ok, err := p.skipComment(); ok || err != nil {
			c.Errorf("comment %s parsed as comment when it should not be", s)
		}
	}
	for _, s := range unfinishedComments {
		p.init(s)
		if _, err := p.skipComment(); err == nil {
			c.Errorf("comment %s accepted but it is not terminated", s)
		}
	}
}

func (s *ExprInternalSuite) TestLineComment(c *C) {
	var p = NewParser(':')
	p.init("-- :a\n:b")
	ok, err := p.skipComment()
	c.Assert(err, IsNil)
	c.Assert(ok, Equals, true)
	// The newline is left for the caller.
	c.Assert(p.char, Equals, '\n')
}
