// Package sqlbuilder allocates bind placeholders for the two SQL dialects.
package sqlbuilder

import (
	"strconv"
	"strings"
)

type PlaceholderStyle int

const (
	PlaceholderQuestion PlaceholderStyle = iota
	PlaceholderDollar
)

// Builder collects arguments and hands out the matching placeholder for each.
type Builder struct {
	Style PlaceholderStyle
	args  []any
}

func New(style PlaceholderStyle) *Builder {
	return &Builder{Style: style}
}

func (b *Builder) Arg(v any) string {
	b.args = append(b.args, v)
	if b.Style == PlaceholderDollar {
		return "$" + strconv.Itoa(len(b.args))
	}
	return "?"
}

// List binds every value and returns the comma-separated placeholders.
func (b *Builder) List(vs []any) string {
	ph := make([]string, len(vs))
	for i, v := range vs {
		ph[i] = b.Arg(v)
	}
	return strings.Join(ph, ", ")
}

func (b *Builder) Args() []any { return b.args }
func (b *Builder) Len() int    { return len(b.args) }

// Ident double-quotes an identifier; embedded quotes are doubled.
func Ident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
