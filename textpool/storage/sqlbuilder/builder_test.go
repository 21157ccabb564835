package sqlbuilder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuestionPlaceholders(t *testing.T) {
	b := New(PlaceholderQuestion)
	assert.Equal(t, "?", b.Arg(1))
	assert.Equal(t, "?, ?", b.List([]any{"a", "b"}))
	assert.Equal(t, []any{1, "a", "b"}, b.Args())
	assert.Equal(t, 3, b.Len())
}

func TestDollarPlaceholders(t *testing.T) {
	b := New(PlaceholderDollar)
	assert.Equal(t, "$1", b.Arg("x"))
	assert.Equal(t, "$2, $3, $4", b.List([]any{1, 2, 3}))
	assert.Equal(t, "$5", b.Arg(nil))
}

func TestIdent(t *testing.T) {
	assert.Equal(t, `"Books"`, Ident("Books"))
	assert.Equal(t, `"a""b"`, Ident(`a"b`))
}
