// Package analysis turns field text into index terms.
//
// Every language gets unicode word tokenization and lowercasing. Languages
// with a snowball stemmer are stemmed, English additionally drops stop
// words and possessive 's, and Han/Kana/Hangul/Thai text is split into
// single-rune terms.
package analysis

import (
	"strings"
	"unicode"

	"github.com/kljensen/snowball"

	"github.com/textpool/textpool/textpool/schema"
)

// Token is a term and its position within the analyzed text. Positions
// advance over removed stop words.
type Token struct {
	Term string
	Pos  int
}

type Analyzer struct {
	lang    schema.Language
	stemmer string
	stop    map[string]bool
}

var snowballLanguages = map[schema.Language]string{
	schema.English:   "english",
	schema.French:    "french",
	schema.Hungarian: "hungarian",
	schema.Norwegian: "norwegian",
	schema.Russian:   "russian",
	schema.Spanish:   "spanish",
	schema.Swedish:   "swedish",
}

var englishStopWords = toSet(
	"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "if", "in",
	"into", "is", "it", "no", "not", "of", "on", "or", "such", "that", "the",
	"their", "then", "there", "these", "they", "this", "to", "was", "will",
	"with",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

// For returns the analyzer of a language. Unknown languages analyze like
// English without stemming.
func For(lang schema.Language) *Analyzer {
	a := &Analyzer{lang: lang, stemmer: snowballLanguages[lang]}
	if lang == schema.English {
		a.stop = englishStopWords
	}
	return a
}

func (a *Analyzer) Language() schema.Language { return a.lang }

// Stems reports whether terms of this analyzer are stemmed.
func (a *Analyzer) Stems() bool { return a.stemmer != "" }

// Analyze tokenizes, lowercases, filters and stems text.
func (a *Analyzer) Analyze(text string) []Token {
	words := Words(text)
	out := make([]Token, 0, len(words))
	for pos, w := range words {
		w = strings.ToLower(w)
		if a.lang == schema.English {
			w = strings.TrimSuffix(strings.TrimSuffix(w, "'s"), "’s")
		}
		if w == "" || a.stop[w] {
			continue
		}
		out = append(out, Token{Term: a.stem(w), Pos: pos})
	}
	return out
}

// Terms is Analyze without positions.
func (a *Analyzer) Terms(text string) []string {
	toks := a.Analyze(text)
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Term
	}
	return out
}

func (a *Analyzer) stem(w string) string {
	if a.stemmer == "" {
		return w
	}
	stemmed, err := snowball.Stem(w, a.stemmer, true)
	if err != nil || stemmed == "" {
		return w
	}
	return stemmed
}

// Exact is the analyzer of the unstemmed field variant used by phrases and
// wildcards: whitespace separated words, lowercased, with surrounding
// punctuation trimmed and no stop words removed.
func Exact(text string) []Token {
	fields := strings.Fields(text)
	out := make([]Token, 0, len(fields))
	for pos, f := range fields {
		f = strings.ToLower(strings.TrimFunc(f, unicode.IsPunct))
		if f == "" {
			continue
		}
		out = append(out, Token{Term: f, Pos: pos})
	}
	return out
}

func isSingleRuneScript(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul, unicode.Thai)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}

// Words splits text into word runs. An apostrophe between two letters stays
// inside the word, and runes of scripts without word spacing become words
// of their own.
func Words(text string) []string {
	runes := []rune(text)
	var out []string
	start := -1
	flush := func(end int) {
		if start >= 0 {
			out = append(out, string(runes[start:end]))
			start = -1
		}
	}
	for i, r := range runes {
		switch {
		case isSingleRuneScript(r):
			flush(i)
			out = append(out, string(r))
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		case (r == '\'' || r == '’') && start >= 0 && i+1 < len(runes) && unicode.IsLetter(runes[i+1]) && !isSingleRuneScript(runes[i+1]):
		default:
			flush(i)
		}
	}
	flush(len(runes))
	return out
}
