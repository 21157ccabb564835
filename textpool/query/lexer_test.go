package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestLexFieldAndPhrase(t *testing.T) {
	toks, err := Lex(`author:"Mark Twain" river`)
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{TokTerm, TokColon, TokPhrase, TokTerm, TokEOF}, kinds(toks))
	assert.Equal(t, "Mark Twain", toks[2].Value)
}

func TestLexOperatorsCaseInsensitive(t *testing.T) {
	toks, err := Lex("a and b Or c not d && e || f")
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{
		TokTerm, TokAnd, TokTerm, TokOr, TokTerm, TokNot, TokTerm,
		TokAnd, TokTerm, TokOr, TokTerm, TokEOF,
	}, kinds(toks))
}

func TestLexEscapedOperatorIsTerm(t *testing.T) {
	toks, err := Lex(`\AND`)
	require.NoError(t, err)
	assert.Equal(t, TokTerm, toks[0].Kind)
	assert.Equal(t, "AND", toks[0].Value)
}

func TestLexWildcardFlag(t *testing.T) {
	toks, err := Lex(`jo*n j\*n`)
	require.NoError(t, err)
	assert.True(t, toks[0].Wild)
	assert.False(t, toks[1].Wild)
	assert.Equal(t, "j*n", toks[1].Value)
}

func TestLexParens(t *testing.T) {
	toks, err := Lex("(a)")
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{TokLParen, TokTerm, TokRParen, TokEOF}, kinds(toks))
}

func TestLexUnterminatedPhrase(t *testing.T) {
	_, err := Lex(`"abc`)
	assert.Error(t, err)
}
