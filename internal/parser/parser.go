// Package parser parses type expressions into unresolved syntax:
//
//	type  := tag* ( '(' [type {',' type}] ')' '->' type | '(' type ')' | name [args] ) ['?']
//	args  := '<' arg {',' arg} '>'
//	arg   := '*' | ['in' | 'out'] type
//	tag   := '@' name
package parser

import (
	"fmt"

	"github.com/funvibe/given/internal/lexer"
)

// Error is a syntax error at a byte offset of the input.
type Error struct {
	Input  string
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("type %q at %d: %s", e.Input, e.Offset, e.Msg)
}

type Parser struct {
	l     *lexer.Lexer
	input string

	curToken  lexer.Token
	peekToken lexer.Token

	errors []*Error
}

func New(input string) *Parser {
	p := &Parser{l: lexer.New(input), input: input}
	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()
	return p
}

// ParseType parses input as a single type expression.
func ParseType(input string) (*TypeExpr, error) {
	p := New(input)
	t := p.parseType()
	if t != nil && !p.peekTokenIs(lexer.EOF) {
		p.peekError("end of type")
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return t, nil
}

// Errors returns every syntax error seen so far.
func (p *Parser) Errors() []*Error {
	return p.errors
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) peekTokenIs(t lexer.TokenType) bool {
	return p.peekToken.Type == t
}

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t.String())
	return false
}

func (p *Parser) peekError(want string) {
	p.errorAt(p.peekToken.Offset, "expected %s, got %s", want, p.peekToken)
}

func (p *Parser) errorAt(offset int, format string, args ...interface{}) {
	p.errors = append(p.errors, &Error{Input: p.input, Offset: offset, Msg: fmt.Sprintf(format, args...)})
}
