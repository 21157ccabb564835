// Package csvio streams delimited text into batches of records.
//
// The format is deliberately looser than RFC 4180: any of several quote
// characters may toggle quoting, and a logical record spanning several
// physical lines is reassembled by counting delimiters against the header.
package csvio

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"

	tperrors "github.com/textpool/textpool/textpool/errors"
)

// DefaultBatchSize is the number of records handed to the callback at once.
const DefaultBatchSize = 100

// Record maps a normalized header name to the raw column value.
type Record map[string]string

type Option func(*Reader)

func WithDelimiter(d rune) Option {
	return func(r *Reader) { r.delimiter = d }
}

// WithQuotes replaces the set of quote characters. Each occurrence of any of
// them toggles the quoted state.
func WithQuotes(quotes ...rune) Option {
	return func(r *Reader) {
		if len(quotes) > 0 {
			r.quotes = quotes
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) {
		if l != nil {
			r.log = l
		}
	}
}

type Reader struct {
	src       *bufio.Reader
	delimiter rune
	quotes    []rune
	batchSize int
	log       *slog.Logger

	header  []string
	eof     bool
	line    int
	parsed  int
	errored int
}

func NewReader(r io.Reader, opts ...Option) *Reader {
	rd := &Reader{
		src:       bufio.NewReaderSize(r, 64*1024),
		delimiter: ',',
		quotes:    []rune{'"'},
		batchSize: DefaultBatchSize,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(rd)
	}
	return rd
}

// Parsed returns the number of records delivered so far.
func (r *Reader) Parsed() int { return r.parsed }

// Errors returns the number of logical lines dropped as malformed.
func (r *Reader) Errors() int { return r.errored }

// Header returns the normalized header, or nil before the first read.
func (r *Reader) Header() []string { return r.header }

// ReadBatches reads the whole stream, invoking fn with every full batch and
// once more with the final partial batch. The slice passed to fn is reused
// between calls. An error from fn stops reading and is returned unchanged.
func (r *Reader) ReadBatches(fn func([]Record) error) error {
	if err := r.readHeader(); err != nil {
		return err
	}

	batch := make([]Record, 0, r.batchSize)
	for {
		line, ok, err := r.nextLogical()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		cols := r.split(line)
		if len(cols) != len(r.header) {
			r.errored++
			r.log.Debug("dropping malformed line", "line", r.line, "columns", len(cols), "expected", len(r.header))
			continue
		}
		rec := make(Record, len(cols))
		for i, v := range cols {
			rec[r.header[i]] = v
		}
		batch = append(batch, rec)
		r.parsed++

		if len(batch) == r.batchSize {
			if err := fn(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}

func (r *Reader) readHeader() error {
	for {
		line, err := r.physical()
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) != "" {
			cols := r.split(strings.TrimSpace(line))
			r.header = make([]string, len(cols))
			for i, c := range cols {
				r.header[i] = strings.ReplaceAll(strings.TrimSpace(c), " ", "_")
			}
			return nil
		}
		if r.eof {
			return tperrors.New(tperrors.ErrIngest, "missing header line")
		}
	}
}

// nextLogical returns the next non-empty logical line, appending physical
// lines while the delimiter count is short of the header.
func (r *Reader) nextLogical() (string, bool, error) {
	var line string
	for {
		if r.eof {
			return "", false, nil
		}
		l, err := r.physical()
		if err != nil {
			return "", false, err
		}
		if strings.TrimSpace(l) != "" {
			line = l
			break
		}
	}

	if r.countFields(line) >= len(r.header) {
		return line, true, nil
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(line))
	for !r.eof && r.countFields(sb.String()) < len(r.header) {
		next, err := r.physical()
		if err != nil {
			return "", false, err
		}
		if r.eof && next == "" {
			break
		}
		sb.WriteByte('\n')
		sb.WriteString(strings.TrimSpace(next))
	}
	return sb.String(), true, nil
}

// physical reads one line without its terminator. At end of stream it sets
// r.eof and returns whatever was pending.
func (r *Reader) physical() (string, error) {
	s, err := r.src.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", tperrors.Wrap(tperrors.ErrIO, "read line", err)
		}
		r.eof = true
	}
	r.line++
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r"), nil
}

func (r *Reader) isQuote(c rune) bool {
	for _, q := range r.quotes {
		if c == q {
			return true
		}
	}
	return false
}

// countFields is the number of delimiters outside quotes plus one.
func (r *Reader) countFields(s string) int {
	n := 1
	inside := false
	for _, c := range s {
		if r.isQuote(c) {
			inside = !inside
		}
		if c == r.delimiter && !inside {
			n++
		}
	}
	return n
}

// split cuts s at unquoted delimiters. Empty fields, including a trailing
// one, are preserved.
func (r *Reader) split(s string) []string {
	out := make([]string, 0, len(r.header))
	start := 0
	inside := false
	for i, c := range s {
		if r.isQuote(c) {
			inside = !inside
		}
		if c == r.delimiter && !inside {
			out = append(out, r.unquote(s[start:i]))
			start = i + len(string(c))
		}
	}
	return append(out, r.unquote(s[start:]))
}

// unquote strips one pair of surrounding quotes and collapses doubled
// quote characters inside them.
func (r *Reader) unquote(field string) string {
	runes := []rune(field)
	if len(runes) < 2 {
		return field
	}
	first, last := runes[0], runes[len(runes)-1]
	if first != last || !r.isQuote(first) {
		return field
	}
	inner := string(runes[1 : len(runes)-1])
	q := string(first)
	return strings.ReplaceAll(inner, q+q, q)
}
