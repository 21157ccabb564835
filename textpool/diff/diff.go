// Package diff marks where two variants of a text differ. A change is a
// single merged line: removed runs are wrapped in ~~ and inserted runs in
// **, so "A sen~~tence~~." turns "A sentence." into "A sen.".
package diff

import (
	"cmp"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	OldTag = "~~"
	NewTag = "**"
)

// Token is one marked run of a Change. Start and End are byte offsets into
// Change.Str, End exclusive, and include the tags.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

type Change struct {
	Str    string  `json:"str"`
	Tokens []Token `json:"tokens"`
}

// Diff compares revised against original character by character. ok is
// false when both are equal.
func Diff(original, revised string) (c Change, ok bool) {
	if original == revised {
		return Change{}, false
	}
	a, b := chars(original), chars(revised)
	m := difflib.NewMatcherWithJunk(a, b, false, nil)

	var sb strings.Builder
	var tokens []Token
	mark := func(tag string, run []string) {
		if len(run) == 0 {
			return
		}
		start := sb.Len()
		sb.WriteString(tag)
		for _, s := range run {
			sb.WriteString(s)
		}
		sb.WriteString(tag)
		tokens = append(tokens, Token{Start: start, End: sb.Len()})
	}
	for _, op := range m.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, s := range a[op.I1:op.I2] {
				sb.WriteString(s)
			}
		case 'd':
			mark(OldTag, a[op.I1:op.I2])
		case 'i':
			mark(NewTag, b[op.J1:op.J2])
		case 'r':
			mark(OldTag, a[op.I1:op.I2])
			mark(NewTag, b[op.J1:op.J2])
		}
	}
	str := sb.String()
	for i := range tokens {
		tokens[i].Text = str[tokens[i].Start:tokens[i].End]
	}
	return Change{Str: str, Tokens: tokens}, true
}

// DiffAll compares every value against the first one and returns the
// distinct changes in order. Values equal to the first are skipped.
func DiffAll(values []string) []Change {
	if len(values) < 2 {
		return nil
	}
	var out []Change
	seen := make(map[string]bool)
	for _, v := range values[1:] {
		c, ok := Diff(values[0], v)
		if !ok || seen[c.Str] {
			continue
		}
		seen[c.Str] = true
		out = append(out, c)
	}
	return out
}

// OldValue rebuilds the original text of a change.
func OldValue(c Change) string { return rebuild(c, OldTag) }

// NewValue rebuilds the revised text of a change.
func NewValue(c Change) string { return rebuild(c, NewTag) }

// rebuild unwraps tokens tagged with keep and drops the others.
func rebuild(c Change, keep string) string {
	tokens := slices.Clone(c.Tokens)
	slices.SortFunc(tokens, func(x, y Token) int { return cmp.Compare(x.Start, y.Start) })

	var sb strings.Builder
	pos := 0
	for _, t := range tokens {
		if t.Start < pos || t.End > len(c.Str) || t.Start > t.End {
			continue
		}
		sb.WriteString(c.Str[pos:t.Start])
		run := c.Str[t.Start:t.End]
		if len(run) >= 2*len(keep) && strings.HasPrefix(run, keep) && strings.HasSuffix(run, keep) {
			sb.WriteString(run[len(keep) : len(run)-len(keep)])
		}
		pos = t.End
	}
	sb.WriteString(c.Str[pos:])
	return sb.String()
}

func chars(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
