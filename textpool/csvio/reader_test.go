package csvio

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, input string, opts ...Option) ([]Record, *Reader) {
	t.Helper()
	r := NewReader(strings.NewReader(input), opts...)
	var out []Record
	err := r.ReadBatches(func(batch []Record) error {
		out = append(out, batch...)
		return nil
	})
	require.NoError(t, err)
	return out, r
}

func TestReadSimple(t *testing.T) {
	recs, r := readAll(t, "id,first name,text\n1,Ann,hello\n2,Bob,world\n")
	require.Len(t, recs, 2)
	assert.Equal(t, Record{"id": "1", "first_name": "Ann", "text": "hello"}, recs[0])
	assert.Equal(t, []string{"id", "first_name", "text"}, r.Header())
	assert.Equal(t, 2, r.Parsed())
	assert.Equal(t, 0, r.Errors())
}

func TestQuotedDelimiterAndEscapes(t *testing.T) {
	recs, _ := readAll(t, "a,b\n\"x, y\",\"say \"\"hi\"\"\"\n")
	require.Len(t, recs, 1)
	assert.Equal(t, "x, y", recs[0]["a"])
	assert.Equal(t, `say "hi"`, recs[0]["b"])
}

func TestEmbeddedNewlineIsOneRecord(t *testing.T) {
	input := "id,text,author\n1,\"first line\n   second line\",Twain\n2,plain,Poe\n"
	recs, r := readAll(t, input)
	require.Len(t, recs, 2)
	assert.Equal(t, "first line\nsecond line", recs[0]["text"])
	assert.Equal(t, "Twain", recs[0]["author"])
	assert.Equal(t, "2", recs[1]["id"])
	assert.Equal(t, 0, r.Errors())
}

func TestMalformedLinesCounted(t *testing.T) {
	recs, r := readAll(t, "a,b\n1,2\n1,2,3\n4,5\n")
	assert.Len(t, recs, 2)
	assert.Equal(t, 1, r.Errors())
	assert.Equal(t, 2, r.Parsed())
}

func TestUnterminatedQuoteStopsAtEOF(t *testing.T) {
	recs, r := readAll(t, "a,b\n1,2\n3,\"never closed\nmore")
	require.Len(t, recs, 1)
	assert.Equal(t, 1, r.Errors())
}

func TestEmptyFieldsPreserved(t *testing.T) {
	recs, _ := readAll(t, "a,b,c\n,,\n1,,3\n")
	require.Len(t, recs, 2)
	assert.Equal(t, Record{"a": "", "b": "", "c": ""}, recs[0])
	assert.Equal(t, "", recs[1]["b"])
}

func TestCustomDelimiterAndQuotes(t *testing.T) {
	recs, _ := readAll(t, "a;b\n'x;y';z\n", WithDelimiter(';'), WithQuotes('\'', '"'))
	require.Len(t, recs, 1)
	assert.Equal(t, "x;y", recs[0]["a"])
	assert.Equal(t, "z", recs[0]["b"])
}

func TestLeadingBlankLinesAndCRLF(t *testing.T) {
	recs, _ := readAll(t, "\n\r\nx,y\r\n1,2\r\n\r\n3,4")
	require.Len(t, recs, 2)
	assert.Equal(t, "4", recs[1]["y"])
}

func TestBatching(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 250; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	r := NewReader(strings.NewReader(sb.String()))
	var sizes []int
	require.NoError(t, r.ReadBatches(func(b []Record) error {
		sizes = append(sizes, len(b))
		return nil
	}))
	assert.Equal(t, []int{100, 100, 50}, sizes)

	r = NewReader(strings.NewReader(sb.String()), WithBatchSize(125))
	sizes = nil
	require.NoError(t, r.ReadBatches(func(b []Record) error {
		sizes = append(sizes, len(b))
		return nil
	}))
	assert.Equal(t, []int{125, 125}, sizes)
}

func TestCallbackErrorStops(t *testing.T) {
	stop := errors.New("stop")
	var sb strings.Builder
	sb.WriteString("n\n")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "%d\n", i)
	}
	calls := 0
	err := NewReader(strings.NewReader(sb.String())).ReadBatches(func([]Record) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMissingHeader(t *testing.T) {
	err := NewReader(strings.NewReader("\n\n")).ReadBatches(func([]Record) error { return nil })
	assert.Error(t, err)
}
