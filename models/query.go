package models

// FilterOp names a predicate operator. The values double as the operator
// keys of the Mongo-style wire encoding.
type FilterOp string

const (
	OpEq     FilterOp = "$eq"
	OpNe     FilterOp = "$ne"
	OpGt     FilterOp = "$gt"
	OpGte    FilterOp = "$gte"
	OpLt     FilterOp = "$lt"
	OpLte    FilterOp = "$lte"
	OpIn     FilterOp = "$in"
	OpNin    FilterOp = "$nin"
	OpExists FilterOp = "$exists"
	OpRegex  FilterOp = "$regex"
	OpAnd    FilterOp = "$and"
	OpOr     FilterOp = "$or"
	OpNot    FilterOp = "$not"
)

// Filter is a node of a predicate tree. Leaf nodes compare Field against
// Value (or Values for $in/$nin); $and/$or/$not combine Children.
type Filter struct {
	Op       FilterOp
	Field    string
	Value    Value
	Values   []Value
	Children []Filter
}

func Eq(field string, v Value) Filter  { return Filter{Op: OpEq, Field: field, Value: v} }
func Ne(field string, v Value) Filter  { return Filter{Op: OpNe, Field: field, Value: v} }
func Gt(field string, v Value) Filter  { return Filter{Op: OpGt, Field: field, Value: v} }
func Gte(field string, v Value) Filter { return Filter{Op: OpGte, Field: field, Value: v} }
func Lt(field string, v Value) Filter  { return Filter{Op: OpLt, Field: field, Value: v} }
func Lte(field string, v Value) Filter { return Filter{Op: OpLte, Field: field, Value: v} }

func In(field string, vs ...Value) Filter  { return Filter{Op: OpIn, Field: field, Values: vs} }
func Nin(field string, vs ...Value) Filter { return Filter{Op: OpNin, Field: field, Values: vs} }

// Exists matches entities where field is present (want=true) or absent.
func Exists(field string, want bool) Filter {
	return Filter{Op: OpExists, Field: field, Value: Bool(want)}
}

// Regex matches string fields against an RE2 pattern.
func Regex(field, pattern string) Filter {
	return Filter{Op: OpRegex, Field: field, Value: String(pattern)}
}

func And(fs ...Filter) Filter { return Filter{Op: OpAnd, Children: fs} }
func Or(fs ...Filter) Filter  { return Filter{Op: OpOr, Children: fs} }
func Not(f Filter) Filter     { return Filter{Op: OpNot, Children: []Filter{f}} }

// SortKey orders results by one field.
type SortKey struct {
	Field      string
	Descending bool
}

// Query selects, orders and pages entities of a collection. The zero Query
// matches everything, unordered, unpaged.
type Query struct {
	// Filter is nil to match every entity.
	Filter *Filter
	// Sort keys are applied in order; ties keep their prior relative order.
	Sort []SortKey
	// Skip drops that many leading results.
	Skip int
	// Limit caps the number of results; 0 means unlimited.
	Limit int
}

// NewQuery returns a query matching every entity.
func NewQuery() Query { return Query{} }

// Where returns a copy of q filtered by f. An existing filter is AND-ed.
func (q Query) Where(f Filter) Query {
	if q.Filter != nil {
		combined := And(*q.Filter, f)
		q.Filter = &combined
		return q
	}
	q.Filter = &f
	return q
}

// Ascending returns a copy of q with an extra ascending sort key.
func (q Query) Ascending(field string) Query {
	q.Sort = append(append([]SortKey(nil), q.Sort...), SortKey{Field: field})
	return q
}

// Descending returns a copy of q with an extra descending sort key.
func (q Query) Descending(field string) Query {
	q.Sort = append(append([]SortKey(nil), q.Sort...), SortKey{Field: field, Descending: true})
	return q
}

// WithSkip returns a copy of q skipping n results.
func (q Query) WithSkip(n int) Query {
	q.Skip = n
	return q
}

// WithLimit returns a copy of q limited to n results.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

// Paged reports whether q restricts the result window.
func (q Query) Paged() bool {
	return q.Skip > 0 || q.Limit > 0
}

// Unpaged returns q without its skip and limit.
func (q Query) Unpaged() Query {
	q.Skip = 0
	q.Limit = 0
	return q
}
