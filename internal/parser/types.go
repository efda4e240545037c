package parser

import (
	"github.com/funvibe/given/internal/lexer"
)

// parseType parses a type starting at curToken and leaves curToken on its
// last token.
func (p *Parser) parseType() *TypeExpr {
	start := p.curToken.Offset

	var tags []string
	for p.curTokenIs(lexer.AT) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		tags = append(tags, p.curToken.Lexeme)
		p.nextToken()
	}

	var t *TypeExpr
	switch p.curToken.Type {
	case lexer.LPAREN:
		t = p.parseParenType()
	case lexer.IDENT:
		t = p.parseNamedType()
	default:
		p.errorAt(p.curToken.Offset, "expected type, got %s", p.curToken)
		return nil
	}
	if t == nil {
		return nil
	}
	t.Offset = start
	t.Tags = append(tags, t.Tags...)

	if p.peekTokenIs(lexer.QUESTION) {
		p.nextToken() // consume '?'
		t.Nullable = true
	}
	return t
}

func (p *Parser) parseNamedType() *TypeExpr {
	t := &TypeExpr{Name: p.curToken.Lexeme}
	if !p.peekTokenIs(lexer.LT) {
		return t
	}
	p.nextToken() // consume '<'
	for {
		p.nextToken()
		arg := p.parseTypeArgument()
		if arg == nil {
			return nil
		}
		t.Args = append(t.Args, arg)
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
			continue
		}
		if !p.expectPeek(lexer.GT) {
			return nil
		}
		return t
	}
}

func (p *Parser) parseTypeArgument() *TypeExpr {
	if p.curTokenIs(lexer.STAR) {
		return &TypeExpr{Star: true, Offset: p.curToken.Offset}
	}
	variance := ""
	if p.curTokenIs(lexer.IN) || p.curTokenIs(lexer.OUT) {
		variance = p.curToken.Lexeme
		p.nextToken()
	}
	arg := p.parseType()
	if arg == nil {
		return nil
	}
	arg.Variance = variance
	return arg
}

// parseParenType parses "(A, B) -> R" or a parenthesized "(T)".
func (p *Parser) parseParenType() *TypeExpr {
	open := p.curToken.Offset
	var params []*TypeExpr
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
	} else {
		for {
			p.nextToken()
			param := p.parseType()
			if param == nil {
				return nil
			}
			params = append(params, param)
			if p.peekTokenIs(lexer.COMMA) {
				p.nextToken()
				continue
			}
			if !p.expectPeek(lexer.RPAREN) {
				return nil
			}
			break
		}
	}

	if !p.peekTokenIs(lexer.ARROW) {
		if len(params) != 1 {
			p.errorAt(open, "parameter list must be followed by ->")
			return nil
		}
		return params[0]
	}
	p.nextToken() // consume '->'
	p.nextToken()
	result := p.parseType()
	if result == nil {
		return nil
	}
	return &TypeExpr{Function: true, Params: params, Args: []*TypeExpr{result}}
}
