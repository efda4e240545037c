package lexer

import "fmt"

// TokenType classifies a token of a type expression.
type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	IDENT // Foo, lib.Foo, T

	LT       // <
	GT       // >
	LPAREN   // (
	RPAREN   // )
	COMMA    // ,
	QUESTION // ?
	STAR     // *
	AT       // @
	ARROW    // ->

	IN  // in
	OUT // out
)

var tokenNames = map[TokenType]string{
	ILLEGAL:  "ILLEGAL",
	EOF:      "EOF",
	IDENT:    "IDENT",
	LT:       "<",
	GT:       ">",
	LPAREN:   "(",
	RPAREN:   ")",
	COMMA:    ",",
	QUESTION: "?",
	STAR:     "*",
	AT:       "@",
	ARROW:    "->",
	IN:       "in",
	OUT:      "out",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var keywords = map[string]TokenType{
	"in":  IN,
	"out": OUT,
}

// Token is one lexeme with its byte offset in the input.
type Token struct {
	Type   TokenType
	Lexeme string
	Offset int
}

func (t Token) String() string {
	if t.Type == EOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Lexeme)
}
