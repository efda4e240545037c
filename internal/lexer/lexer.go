// Package lexer splits type expressions such as "@Port Map<String, out T>?"
// or "(Int) -> Service" into tokens.
package lexer

import (
	"unicode"
	"unicode/utf8"
)

type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
}

func New(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	l.position = l.readPosition
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.readPosition = len(l.input) + 1
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.readPosition += w
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespace()

	start := l.position
	var tok Token
	switch l.ch {
	case 0:
		return Token{Type: EOF, Offset: len(l.input)}
	case '<':
		tok = newToken(LT, l.ch, start)
	case '>':
		tok = newToken(GT, l.ch, start)
	case '(':
		tok = newToken(LPAREN, l.ch, start)
	case ')':
		tok = newToken(RPAREN, l.ch, start)
	case ',':
		tok = newToken(COMMA, l.ch, start)
	case '?':
		tok = newToken(QUESTION, l.ch, start)
	case '*':
		tok = newToken(STAR, l.ch, start)
	case '@':
		tok = newToken(AT, l.ch, start)
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: ARROW, Lexeme: "->", Offset: start}
		} else {
			tok = newToken(ILLEGAL, l.ch, start)
		}
	default:
		if isLetter(l.ch) {
			ident := l.readIdentifier()
			typ := IDENT
			if kw, ok := keywords[ident]; ok {
				typ = kw
			}
			return Token{Type: typ, Lexeme: ident, Offset: start}
		}
		tok = newToken(ILLEGAL, l.ch, start)
	}
	l.readChar()
	return tok
}

// Tokens returns every token of the input up to and including EOF.
func (l *Lexer) Tokens() []Token {
	var out []Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == EOF {
			return out
		}
	}
}

// readIdentifier reads a possibly qualified name: lib.Foo
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetter(l.ch) || isDigit(l.ch) || (l.ch == '.' && isLetter(l.peekChar())) {
		l.readChar()
	}
	return l.input[position:l.position]
}

func isLetter(ch rune) bool {
	return unicode.IsLetter(ch) || ch == '_'
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func newToken(tokenType TokenType, ch rune, offset int) Token {
	return Token{Type: tokenType, Lexeme: string(ch), Offset: offset}
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.readChar()
	}
}
