package query

import (
	"testing"
)

func TestParseSingleTerm(t *testing.T) {
	expr, err := Parse("river")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pred, ok := expr.(Pred)
	if !ok {
		t.Fatalf("expected Pred, got %T", expr)
	}
	term, ok := pred.Predicate.(Term)
	if !ok {
		t.Fatalf("expected Term, got %T", pred.Predicate)
	}
	if term.Field != "" || term.Text != "river" {
		t.Errorf("expected default-field term river, got %+v", term)
	}
}

func TestParseImplicitAnd(t *testing.T) {
	expr, err := Parse("huck finn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := expr.(And)
	if !ok {
		t.Fatalf("expected And, got %T", expr)
	}
	if l := and.Left.(Pred).Predicate.(Term); l.Text != "huck" {
		t.Errorf("left = %+v", l)
	}
	if r := and.Right.(Pred).Predicate.(Term); r.Text != "finn" {
		t.Errorf("right = %+v", r)
	}
}

func TestParsePrecedence(t *testing.T) {
	// OR binds looser than AND, including implicit AND.
	expr, err := Parse("a OR b c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	or, ok := expr.(Or)
	if !ok {
		t.Fatalf("expected Or, got %T", expr)
	}
	if _, ok := or.Right.(And); !ok {
		t.Fatalf("expected And on the right, got %T", or.Right)
	}
}

func TestParseNot(t *testing.T) {
	expr, err := Parse("river NOT mississippi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	and, ok := expr.(And)
	if !ok {
		t.Fatalf("expected And, got %T", expr)
	}
	if _, ok := and.Right.(Not); !ok {
		t.Fatalf("expected Not, got %T", and.Right)
	}

	expr, err = Parse("!river")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := expr.(Not); !ok {
		t.Fatalf("expected Not, got %T", expr)
	}
}

func TestParseFieldForms(t *testing.T) {
	expr, err := Parse(`author:"Mark Twain"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ph, ok := expr.(Pred).Predicate.(Phrase)
	if !ok || ph.Field != "author" || ph.Text != "Mark Twain" {
		t.Fatalf("unexpected %+v", expr)
	}

	expr, err = Parse("Books.title:tom*")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wc, ok := expr.(Pred).Predicate.(Wildcard)
	if !ok || wc.Field != "Books.title" || wc.Pattern != "tom*" {
		t.Fatalf("unexpected %+v", expr)
	}

	expr, err = Parse("title:(tom OR huck)")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, p := range Predicates(expr) {
		if p.FieldName() != "title" {
			t.Errorf("group member %+v did not inherit field", p)
		}
	}
}

func TestParseLeadingWildcard(t *testing.T) {
	expr, err := Parse("*ssipp?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := expr.(Pred).Predicate.(Wildcard); !ok {
		t.Fatalf("expected Wildcard, got %+v", expr)
	}

	expr, err = Parse(`what\?`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	term, ok := expr.(Pred).Predicate.(Term)
	if !ok || term.Text != "what?" {
		t.Fatalf("escaped wildcard should be literal, got %+v", expr)
	}
}

func TestParseErrors(t *testing.T) {
	for _, q := range []string{"", "(a OR b", "a AND", "title:", `"open`, "a )"} {
		if _, err := Parse(q); err == nil {
			t.Errorf("expected error for %q", q)
		}
	}
}

func TestPredicatesOrder(t *testing.T) {
	expr, err := Parse(`a OR (b NOT "c d")`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	preds := Predicates(expr)
	if len(preds) != 3 {
		t.Fatalf("expected 3 predicates, got %d", len(preds))
	}
	if ph, ok := preds[2].(Phrase); !ok || ph.Text != "c d" {
		t.Errorf("unexpected last predicate %+v", preds[2])
	}
}
