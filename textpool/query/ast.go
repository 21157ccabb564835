package query

// Expr represents a query expression
type Expr interface {
	isExpr()
}

// And represents a boolean AND of two expressions
type And struct {
	Left  Expr
	Right Expr
}

func (And) isExpr() {}

// Or represents a boolean OR of two expressions
type Or struct {
	Left  Expr
	Right Expr
}

func (Or) isExpr() {}

// Not represents a boolean NOT of an expression
type Not struct {
	Inner Expr
}

func (Not) isExpr() {}

// Pred wraps a predicate as an expression
type Pred struct {
	Predicate Predicate
}

func (Pred) isExpr() {}

// Predicate is one of Term, Wildcard or Phrase. Field is empty when the
// predicate targets the default field of the search.
type Predicate interface {
	FieldName() string
	isPredicate()
}

// Term matches a single analyzed word.
type Term struct {
	Field string
	Text  string
}

// Wildcard matches unanalyzed words against a pattern; * is any run and ?
// one rune.
type Wildcard struct {
	Field   string
	Pattern string
}

// Phrase matches consecutive unanalyzed words.
type Phrase struct {
	Field string
	Text  string
}

func (p Term) FieldName() string     { return p.Field }
func (p Wildcard) FieldName() string { return p.Field }
func (p Phrase) FieldName() string   { return p.Field }
func (Term) isPredicate()            {}
func (Wildcard) isPredicate()        {}
func (Phrase) isPredicate()          {}

// withField assigns field to every predicate below e that has none.
func withField(e Expr, field string) Expr {
	switch v := e.(type) {
	case And:
		return And{Left: withField(v.Left, field), Right: withField(v.Right, field)}
	case Or:
		return Or{Left: withField(v.Left, field), Right: withField(v.Right, field)}
	case Not:
		return Not{Inner: withField(v.Inner, field)}
	case Pred:
		switch p := v.Predicate.(type) {
		case Term:
			if p.Field == "" {
				p.Field = field
			}
			return Pred{Predicate: p}
		case Wildcard:
			if p.Field == "" {
				p.Field = field
			}
			return Pred{Predicate: p}
		case Phrase:
			if p.Field == "" {
				p.Field = field
			}
			return Pred{Predicate: p}
		}
	}
	return e
}

// Predicates returns the leaves of e in left-to-right order.
func Predicates(e Expr) []Predicate {
	var out []Predicate
	var walk func(Expr)
	walk = func(e Expr) {
		switch v := e.(type) {
		case And:
			walk(v.Left)
			walk(v.Right)
		case Or:
			walk(v.Left)
			walk(v.Right)
		case Not:
			walk(v.Inner)
		case Pred:
			out = append(out, v.Predicate)
		}
	}
	walk(e)
	return out
}
