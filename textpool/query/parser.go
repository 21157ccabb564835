package query

import (
	"fmt"
)

// Parse parses a query string into an expression AST. Adjacent clauses
// without an operator are joined with AND.
func Parse(input string) (Expr, error) {
	tokens, err := Lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.match(TokEOF) {
		return nil, fmt.Errorf("unexpected %v", p.current())
	}
	return expr, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match(TokOr) {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.match(TokAnd):
			p.advance()
		case p.startsClause():
		default:
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
}

// startsClause reports whether the current token can begin an implicitly
// AND-ed clause.
func (p *parser) startsClause() bool {
	switch p.current().Kind {
	case TokTerm, TokPhrase, TokLParen, TokNot:
		return true
	}
	return false
}

func (p *parser) parseNot() (Expr, error) {
	if p.match(TokNot) {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return Not{Inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	switch tok := p.current(); tok.Kind {
	case TokLParen:
		return p.parseGroup()
	case TokPhrase:
		p.advance()
		return Pred{Predicate: Phrase{Text: tok.Value}}, nil
	case TokTerm:
		p.advance()
		if p.match(TokColon) {
			p.advance()
			return p.parseFieldValue(tok.Value)
		}
		return termExpr("", tok), nil
	case TokEOF:
		return nil, fmt.Errorf("unexpected end of query")
	default:
		return nil, fmt.Errorf("expected term, got %v", tok)
	}
}

func (p *parser) parseGroup() (Expr, error) {
	p.advance()
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.match(TokRParen) {
		return nil, fmt.Errorf("expected ')', got %v", p.current())
	}
	p.advance()
	return expr, nil
}

// parseFieldValue handles the right side of field:value, field:"phrase" and
// field:(group).
func (p *parser) parseFieldValue(field string) (Expr, error) {
	switch tok := p.current(); tok.Kind {
	case TokTerm:
		p.advance()
		return termExpr(field, tok), nil
	case TokPhrase:
		p.advance()
		return Pred{Predicate: Phrase{Field: field, Text: tok.Value}}, nil
	case TokLParen:
		expr, err := p.parseGroup()
		if err != nil {
			return nil, err
		}
		return withField(expr, field), nil
	default:
		return nil, fmt.Errorf("expected value after '%s:'", field)
	}
}

func termExpr(field string, tok Token) Expr {
	if tok.Wild {
		return Pred{Predicate: Wildcard{Field: field, Pattern: tok.Value}}
	}
	return Pred{Predicate: Term{Field: field, Text: tok.Value}}
}

func (p *parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Kind: TokEOF}
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *parser) match(kind TokenKind) bool {
	return p.current().Kind == kind
}
