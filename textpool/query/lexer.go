package query

import (
	"fmt"
	"strings"
	"unicode"
)

// Token represents a lexical token
type Token struct {
	Kind  TokenKind
	Value string
	// Wild is set on terms containing an unescaped * or ?.
	Wild bool
}

// TokenKind is the type of token
type TokenKind int

const (
	TokTerm TokenKind = iota
	TokPhrase
	TokColon
	TokAnd
	TokOr
	TokNot
	TokLParen
	TokRParen
	TokEOF
)

func (k TokenKind) String() string {
	switch k {
	case TokTerm:
		return "Term"
	case TokPhrase:
		return "Phrase"
	case TokColon:
		return "Colon"
	case TokAnd:
		return "And"
	case TokOr:
		return "Or"
	case TokNot:
		return "Not"
	case TokLParen:
		return "LParen"
	case TokRParen:
		return "RParen"
	case TokEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

func (t Token) String() string {
	if t.Value == "" {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s(%q)", t.Kind, t.Value)
}

// Lexer tokenizes a query string
type Lexer struct {
	input []rune
	pos   int
}

func NewLexer(input string) *Lexer {
	return &Lexer{input: []rune(input)}
}

// Lex tokenizes the entire input
func Lex(input string) ([]Token, error) {
	lexer := NewLexer(input)
	var tokens []Token
	for {
		tok, err := lexer.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			return tokens, nil
		}
	}
}

// Next returns the next token
func (l *Lexer) Next() (Token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF}, nil
	}

	switch ch := l.input[l.pos]; ch {
	case ':':
		l.pos++
		return Token{Kind: TokColon}, nil
	case '(':
		l.pos++
		return Token{Kind: TokLParen}, nil
	case ')':
		l.pos++
		return Token{Kind: TokRParen}, nil
	case '"':
		return l.scanPhrase()
	case '&', '|':
		if l.peek(1) == ch {
			l.pos += 2
			if ch == '&' {
				return Token{Kind: TokAnd}, nil
			}
			return Token{Kind: TokOr}, nil
		}
	case '!':
		l.pos++
		return Token{Kind: TokNot}, nil
	}
	return l.scanTerm()
}

func (l *Lexer) peek(offset int) rune {
	if pos := l.pos + offset; pos < len(l.input) {
		return l.input[pos]
	}
	return 0
}

func (l *Lexer) scanPhrase() (Token, error) {
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '"' {
			l.pos++
			return Token{Kind: TokPhrase, Value: sb.String()}, nil
		}
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			ch = l.input[l.pos]
		}
		sb.WriteRune(ch)
		l.pos++
	}
	return Token{}, fmt.Errorf("unterminated phrase")
}

func isTermBreak(ch rune) bool {
	return unicode.IsSpace(ch) || ch == ':' || ch == '(' || ch == ')' || ch == '"'
}

// scanTerm reads a bare word. A backslash makes the next rune literal, so
// \* is not a wildcard and \: does not start a field value.
func (l *Lexer) scanTerm() (Token, error) {
	var sb strings.Builder
	wild := false
	raw := true
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' && l.pos+1 < len(l.input) {
			l.pos++
			sb.WriteRune(l.input[l.pos])
			l.pos++
			raw = false
			continue
		}
		if isTermBreak(ch) {
			break
		}
		if ch == '*' || ch == '?' {
			wild = true
		}
		sb.WriteRune(ch)
		l.pos++
	}

	value := sb.String()
	if value == "" {
		return Token{}, fmt.Errorf("unexpected character: %c", l.input[l.pos])
	}
	if raw {
		switch strings.ToUpper(value) {
		case "AND":
			return Token{Kind: TokAnd}, nil
		case "OR":
			return Token{Kind: TokOr}, nil
		case "NOT":
			return Token{Kind: TokNot}, nil
		}
	}
	return Token{Kind: TokTerm, Value: value, Wild: wild}, nil
}
