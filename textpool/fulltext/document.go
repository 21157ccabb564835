package fulltext

// Document is one indexed record as returned by a search.
type Document struct {
	// Fields holds the indexed text keyed by qualified field name.
	Fields map[string]string
	// IDs holds identifier values keyed by identifier field: "<source>.<field>"
	// for declared identifiers, "<source>_ag_id" for synthetic ones.
	IDs map[string]int64
}

// ID returns the value of an identifier field.
func (d Document) ID(field string) (int64, bool) {
	v, ok := d.IDs[field]
	return v, ok
}

// Get returns the stored text of a field.
func (d Document) Get(field string) string {
	return d.Fields[field]
}
