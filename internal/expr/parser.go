// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package expr

import (
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// NewParser returns a parser for templates whose named placeholders start
// with sigil.
func NewParser(sigil rune) *Parser {
	return &Parser{sigil: sigil}
}

// Parser lexes templates. A Parser holds the state of a single parse and
// must not be used concurrently.
type Parser struct {
	// sigil starts a named placeholder.
	sigil rune
	input string
	pos   int
	// nextPos is start of the next char.
	nextPos int
	// char is the rune starting at pos. char is set to 0 when pos reaches the
	// end of input.
	char rune
	// prevPartEnd is the value of pos when we last finished parsing a
	// placeholder.
	prevPartEnd int
	// currentPartStart is the value of pos just before we started parsing
	// the placeholder under pos. We maintain currentPartStart >= prevPartEnd.
	currentPartStart int
	// parts are the output of the parser. Parts are added as they are
	// parsed.
	parts []queryPart
	// named and positional count the placeholders of each kind seen so far.
	named      int
	positional int
	// lineNum is the number of the current line of the input.
	lineNum int
	// lineStart is the position of the first char of the current line in the
	// input.
	lineStart int
}

// Parse takes a SQL template and returns its ParsedExpr.
func (p *Parser) Parse(input string) (*ParsedExpr, error) {
	p.init(input)

	for {
		if err := p.advanceToNextParam(); err != nil {
			return nil, err
		}

		p.currentPartStart = p.pos

		if p.pos == len(p.input) {
			break
		}

		if p.skipEscape() {
			p.add(&bypassPart{chunk: p.input[p.currentPartStart+1 : p.pos]})
			continue
		}

		line, col := p.lineNum, p.colNum()
		if named, ok := p.parseNamedParam(); ok {
			if p.positional > 0 {
				return nil, errorAt(ErrMixedParameters, line, col, p.input)
			}
			p.add(named)
			continue
		}

		if positional, ok := p.parsePositionalParam(); ok {
			if p.named > 0 {
				return nil, errorAt(ErrMixedParameters, line, col, p.input)
			}
			p.add(positional)
			continue
		}

		// No placeholder found, advance the parser. This prevents
		// advanceToNextParam finding the same char again.
		p.advanceChar()
	}

	// Add any remaining unparsed string input to the parser.
	p.add(nil)
	return &ParsedExpr{parts: p.parts}, nil
}

// init resets the state of the parser and sets the input string.
func (p *Parser) init(input string) {
	p.input = input
	p.pos = 0
	p.nextPos = 0
	p.char = 0
	p.prevPartEnd = 0
	p.currentPartStart = 0
	p.parts = []queryPart{}
	p.named = 0
	p.positional = 0
	p.lineNum = 1
	p.lineStart = 0
	p.advanceChar()
}

// colNum calculates the current column number taking into account line breaks.
func (p *Parser) colNum() int {
	return p.pos - p.lineStart + 1
}

// advanceChar moves the parser to the next character in the input. It also
// takes care of updating the line and column numbers if it encounters line
// breaks.
func (p *Parser) advanceChar() bool {
	if p.nextPos >= len(p.input) {
		p.char = 0
		p.pos = p.nextPos
		return false
	}
	if p.char == '\n' {
		p.lineStart = p.nextPos
		p.lineNum++
	}
	var size int
	p.char, size = utf8.DecodeRuneInString(p.input[p.nextPos:])
	p.pos = p.nextPos
	p.nextPos += size
	return true
}

// peekNextChar returns the rune following the current one, or 0 at the end
// of input.
func (p *Parser) peekNextChar() rune {
	if p.nextPos >= len(p.input) {
		return 0
	}
	c, _ := utf8.DecodeRuneInString(p.input[p.nextPos:])
	return c
}

// A checkpoint struct for saving parser state to restore later.
type checkpoint struct {
	parser           *Parser
	pos              int
	nextPos          int
	char             rune
	prevPartEnd      int
	currentPartStart int
	parts            []queryPart
	lineNum          int
	lineStart        int
}

// save takes a snapshot of the state of the parser and returns a pointer to a
// checkpoint that represents it.
func (p *Parser) save() *checkpoint {
	return &checkpoint{
		parser:           p,
		pos:              p.pos,
		nextPos:          p.nextPos,
		char:             p.char,
		prevPartEnd:      p.prevPartEnd,
		currentPartStart: p.currentPartStart,
		parts:            p.parts,
		lineNum:          p.lineNum,
		lineStart:        p.lineStart,
	}
}

// restore sets the internal state of the parser to the values stored in the
// checkpoint.
func (cp *checkpoint) restore() {
	cp.parser.pos = cp.pos
	cp.parser.nextPos = cp.nextPos
	cp.parser.char = cp.char
	cp.parser.prevPartEnd = cp.prevPartEnd
	cp.parser.currentPartStart = cp.currentPartStart
	cp.parser.parts = cp.parts
	cp.parser.lineNum = cp.lineNum
	cp.parser.lineStart = cp.lineStart
}

// colNum calculates the current column number taking into account line breaks.
func (cp *checkpoint) colNum() int {
	return cp.pos - cp.lineStart + 1
}

// add pushes the parsed part to the list of parts along with the bypass
// chunk that stretches from the end of the previous part to the beginning of
// this part.
func (p *Parser) add(part queryPart) {
	if p.prevPartEnd != p.currentPartStart {
		p.parts = append(p.parts,
			&bypassPart{p.input[p.prevPartEnd:p.currentPartStart]})
	}

	if part != nil {
		p.parts = append(p.parts, part)
	}

	// Save this position at the end of the part.
	p.prevPartEnd = p.pos
	// Ensure that currentPartStart >= prevPartEnd.
	p.currentPartStart = p.pos
}

// advanceToNextParam advances the parser until it finds a character that
// could be the start of a placeholder or of an escape.
func (p *Parser) advanceToNextParam() error {
	for p.pos < len(p.input) {
		if ok, err := p.skipStringLiteral(); err != nil {
			return err
		} else if ok {
			continue
		}
		if ok, err := p.skipComment(); err != nil {
			return err
		} else if ok {
			continue
		}

		switch p.char {
		case '\\', '?':
			return nil
		case p.sigil:
			// A doubled sigil is plain SQL, e.g. a PostgreSQL cast.
			if p.peekNextChar() == p.sigil {
				p.advanceChar()
				p.advanceChar()
				continue
			}
			return nil
		}
		p.advanceChar()
	}
	return nil
}

// skipEscape jumps over a backslash followed by the sigil or a question
// mark. The caller emits the escaped char on its own.
func (p *Parser) skipEscape() bool {
	if p.char != '\\' {
		return false
	}
	next := p.peekNextChar()
	if next != p.sigil && next != '?' {
		return false
	}
	p.advanceChar()
	p.advanceChar()
	return true
}

// skipComment jumps over "--" and "/* */" comments. If no comment is found
// the parser state is left unchanged. A line comment may run to the end of
// input, a block comment may not.
func (p *Parser) skipComment() (bool, error) {
	switch {
	case p.char == '-' && p.peekNextChar() == '-':
		// Do not consume the newline.
		for p.pos < len(p.input) && p.char != '\n' {
			p.advanceChar()
		}
		return true, nil
	case p.char == '/' && p.peekNextChar() == '*':
		cp := p.save()
		p.advanceChar()
		p.advanceChar()
		for p.pos < len(p.input) {
			if p.char == '*' && p.peekNextChar() == '/' {
				p.advanceChar()
				p.advanceChar()
				return true, nil
			}
			p.advanceChar()
		}
		cp.restore()
		return false, errorAt(ErrUnterminatedComment, cp.lineNum, cp.colNum(), p.input)
	}
	return false, nil
}

// skipStringLiteral jumps over single and double quoted sections of input.
// Doubled up quotes are escaped.
func (p *Parser) skipStringLiteral() (bool, error) {
	cp := p.save()

	c := p.char
	if p.skipChar('"') || p.skipChar('\'') {
		// We keep track of whether the next quote has been previously
		// escaped. If not, it might be a closing quote.
		maybeCloser := true
		for p.skipCharFind(c) {
			// If this looks like a closing quote, check if it might be an
			// escape for a following quote. If not, we're done.
			if maybeCloser && !p.peekChar(c) {
				return true, nil
			}
			maybeCloser = !maybeCloser
		}

		// Reached end of string and didn't find the closing quote.
		cp.restore()
		return false, errorAt(ErrUnterminatedString, cp.lineNum, cp.colNum(), p.input)
	}
	return false, nil
}

// peekChar returns true if the current char equals the one passed as parameter.
func (p *Parser) peekChar(c rune) bool {
	return p.pos < len(p.input) && p.char == c
}

// skipChar jumps over the current char if it matches the char passed as a
// parameter. Returns true in that case, false otherwise.
func (p *Parser) skipChar(c rune) bool {
	if p.pos < len(p.input) && p.char == c {
		p.advanceChar()
		return true
	}
	return false
}

// skipCharFind looks for a char that matches the one passed as parameter and
// then advances the parser to jump over it. In that case returns true. If the
// end of the string is reached and no matching char was found, it returns
// false and it does not change the parser.
func (p *Parser) skipCharFind(c rune) bool {
	cp := p.save()
	for p.pos < len(p.input) {
		if p.char == c {
			p.advanceChar()
			return true
		}
		p.advanceChar()
	}
	cp.restore()
	return false
}

// isNameChar returns true if the given char can be part of a parameter name.
func isNameChar(c rune) bool {
	return unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_'
}

// skipNameChars advances the parser past a run of name chars.
func (p *Parser) skipNameChars() {
	for p.pos < len(p.input) && isNameChar(p.char) {
		p.advanceChar()
	}
}

// parseNamedParam parses the sigil followed by a name. Dots joining two runs
// of name chars are part of the name, e.g. ":p.name".
func (p *Parser) parseNamedParam() (*namedParamPart, bool) {
	if p.char != p.sigil || !isNameChar(p.peekNextChar()) {
		return nil, false
	}
	p.advanceChar()
	mark := p.pos
	p.skipNameChars()
	for p.char == '.' && isNameChar(p.peekNextChar()) {
		p.advanceChar()
		p.skipNameChars()
	}
	p.named++
	return &namedParamPart{name: norm.NFC.String(p.input[mark:p.pos])}, true
}

// parsePositionalParam parses a "?".
func (p *Parser) parsePositionalParam() (*positionalParamPart, bool) {
	if !p.skipChar('?') {
		return nil, false
	}
	part := &positionalParamPart{ordinal: p.positional}
	p.positional++
	return part, true
}
