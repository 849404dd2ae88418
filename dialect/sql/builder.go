package sql

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/molajo"
	"github.com/syssam/molajo/dialect"
	"github.com/syssam/molajo/fieldhandler"
)

// defaultLimit is applied when an offset is set without a limit.
const defaultLimit = 15

// Escaper escapes literal text before it is quoted.
type Escaper interface {
	Escape(string) string
}

// EscaperFunc type is an adapter to allow the use of ordinary functions as Escaper.
type EscaperFunc func(string) string

// Escape returns f(s).
func (f EscaperFunc) Escape(s string) string { return f(s) }

// query is the statement model accumulated by a Builder.
type query struct {
	typ          string
	distinct     bool
	columns      []Item
	columnIndex  map[string]int
	from         []Item
	where        []Predicate
	whereGroups  groups
	having       []Predicate
	havingGroups groups
	groupBy      []Item
	orderBy      []Order
	offset       int
	limit        int
}

func newQuery() query {
	return query{typ: SelectQuery, columnIndex: make(map[string]int)}
}

// Builder accumulates a dialect-neutral statement and renders it through a
// dialect.Policy. A Builder is owned by one caller; it is not safe for
// concurrent use.
//
// Mutators return the Builder for chaining. A call that violates its
// preconditions has no effect and records an error. The first recorded
// error is returned by Err and GetSQL until ClearQuery.
//
//	sql, err := sql.NewBuilder(sql.WithTablePrefix("molajo_")).
//		Select("a.id", "").
//		From("#__catalog_types", "a").
//		Where("column", "a.enabled", "=", "integer", 1).
//		GetSQL("")
type Builder struct {
	policy    dialect.Policy
	sanitizer fieldhandler.Sanitizer
	escaper   Escaper
	prefix    string
	q         query
	err       error
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithDialect sets the quoting policy by dialect name. Unknown names keep the current policy.
func WithDialect(name string) BuilderOption {
	return func(b *Builder) {
		if p, ok := dialect.PolicyFor(name); ok {
			b.policy = p
		}
	}
}

// WithPolicy sets a custom quoting policy.
func WithPolicy(p dialect.Policy) BuilderOption {
	return func(b *Builder) {
		b.policy = p
	}
}

// WithTablePrefix sets the text substituted for "#__" in table names and explicit SQL.
func WithTablePrefix(prefix string) BuilderOption {
	return func(b *Builder) {
		b.prefix = prefix
	}
}

// WithSanitizer sets the value filter literals pass through.
func WithSanitizer(s fieldhandler.Sanitizer) BuilderOption {
	return func(b *Builder) {
		b.sanitizer = s
	}
}

// WithEscaper sets the escaper applied to literal text before quoting.
// By default the policy escaping rules apply.
func WithEscaper(e Escaper) BuilderOption {
	return func(b *Builder) {
		b.escaper = e
	}
}

// NewBuilder returns an empty select Builder. The default policy is SQLite.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		policy:    dialect.Default(),
		sanitizer: fieldhandler.New(),
		q:         newQuery(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Err returns the first error recorded since the last ClearQuery.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) addError(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// SetType sets the statement kind. Unknown kinds select.
func (b *Builder) SetType(kind string) *Builder {
	switch k := strings.ToLower(strings.TrimSpace(kind)); k {
	case InsertQuery, UpdateQuery, DeleteQuery, ExecQuery:
		b.q.typ = k
	default:
		b.q.typ = SelectQuery
	}
	return b
}

// SetDistinct sets the DISTINCT flag of a select.
func (b *Builder) SetDistinct(distinct bool) *Builder {
	b.q.distinct = distinct
	return b
}

// Select adds a column reference to the column list.
func (b *Builder) Select(column, alias string) *Builder {
	return b.SelectValue(column, alias, nil, "")
}

// SelectValue adds a column with a value. For select statements a literal
// renders as "value AS alias"; for insert and update statements the entry is
// a column = value pair. An empty or "column" data type stores a plain
// column reference and "special" stores value verbatim.
//
// Selecting the same column again replaces the earlier entry in place.
func (b *Builder) SelectValue(column, alias string, value any, dataType string) *Builder {
	key := strings.TrimSpace(column)
	if key == "" {
		return b.addError(molajo.NewRequiredValueError("select", "column_name"))
	}
	prefix, name := splitColumn(key)
	it := Item{Name: name, Prefix: prefix, Alias: strings.TrimSpace(alias)}
	switch dt := normalizeType(dataType); dt {
	case "", fieldhandler.TypeColumn:
		it.DataType = fieldhandler.TypeColumn
	case fieldhandler.TypeSpecial:
		it.DataType = dt
		it.Value = verbatim(value, key)
	default:
		v, err := b.filter(key, value, dt)
		if err != nil {
			return b.addError(err)
		}
		it.DataType = dt
		it.Value = v
	}
	if i, ok := b.q.columnIndex[key]; ok {
		b.q.columns[i] = it
		return b
	}
	b.q.columnIndex[key] = len(b.q.columns)
	b.q.columns = append(b.q.columns, it)
	return b
}

// From adds a table. The first table is the primary one.
func (b *Builder) From(table, alias string) *Builder {
	table = strings.TrimSpace(table)
	if table == "" {
		return b.addError(molajo.NewRequiredValueError("from", "table_name"))
	}
	b.q.from = append(b.q.from, Item{
		Name:     table,
		DataType: fieldhandler.TypeColumn,
		Alias:    strings.TrimSpace(alias),
	})
	return b
}

// WhereGroup registers a WHERE group, or overwrites the connector of a registered one.
func (b *Builder) WhereGroup(label, connector string) *Builder {
	if label == "" {
		return b.addError(molajo.NewRequiredValueError("where_group", "group"))
	}
	b.q.whereGroups = b.q.whereGroups.set(label, normalizeConnector(connector))
	return b
}

// HavingGroup registers a HAVING group, or overwrites the connector of a registered one.
func (b *Builder) HavingGroup(label, connector string) *Builder {
	if label == "" {
		return b.addError(molajo.NewRequiredValueError("having_group", "group"))
	}
	b.q.havingGroups = b.q.havingGroups.set(label, normalizeConnector(connector))
	return b
}

// Where adds a WHERE predicate. A side typed "column" (or left empty) is a
// column reference; any other type filters the side as a literal.
//
//	b.Where("column", "a.id", "IN", "integer", "1,2,3")
//	b.Where("column", "a.title", "LIKE", "string", "%news%", sql.Or(), sql.InGroup("search"))
func (b *Builder) Where(leftType, left, condition, rightType string, right any, opts ...PredicateOption) *Builder {
	p, err := b.predicate("where", leftType, left, condition, rightType, right, opts)
	if err != nil {
		return b.addError(err)
	}
	b.q.where = append(b.q.where, p)
	return b
}

// Having adds a HAVING predicate. See Where.
func (b *Builder) Having(leftType, left, condition, rightType string, right any, opts ...PredicateOption) *Builder {
	p, err := b.predicate("having", leftType, left, condition, rightType, right, opts)
	if err != nil {
		return b.addError(err)
	}
	b.q.having = append(b.q.having, p)
	return b
}

// GroupBy adds a GROUP BY column.
func (b *Builder) GroupBy(column string) *Builder {
	column = strings.TrimSpace(column)
	if column == "" {
		return b.addError(molajo.NewRequiredValueError("group_by", "column_name"))
	}
	prefix, name := splitColumn(column)
	b.q.groupBy = append(b.q.groupBy, Item{Name: name, Prefix: prefix, DataType: fieldhandler.TypeColumn})
	return b
}

// OrderBy adds an ORDER BY column. An empty direction sorts ascending;
// a direction other than ASC or DESC sorts descending.
func (b *Builder) OrderBy(column, direction string) *Builder {
	column = strings.TrimSpace(column)
	if column == "" {
		return b.addError(molajo.NewRequiredValueError("order_by", "column_name"))
	}
	prefix, name := splitColumn(column)
	dir := OrderDesc
	switch strings.ToUpper(strings.TrimSpace(direction)) {
	case "", OrderAsc:
		dir = OrderAsc
	}
	b.q.orderBy = append(b.q.orderBy, Order{
		Item:      Item{Name: name, Prefix: prefix, DataType: fieldhandler.TypeColumn},
		Direction: dir,
	})
	return b
}

// SetOffsetAndLimit sets pagination. Negative values become zero and an
// offset without a limit pages by 15 rows.
func (b *Builder) SetOffsetAndLimit(offset, limit int) *Builder {
	b.q.offset = max(offset, 0)
	b.q.limit = max(limit, 0)
	if b.q.limit == 0 && b.q.offset > 0 {
		b.q.limit = defaultLimit
	}
	return b
}

// GetSQL renders the statement. When explicit is not empty it is returned
// with the table prefix substituted and the model is ignored.
// GetSQL does not clear the model.
func (b *Builder) GetSQL(explicit string) (string, error) {
	if strings.TrimSpace(explicit) != "" {
		return strings.ReplaceAll(explicit, tablePrefixToken, b.prefix), nil
	}
	if b.err != nil {
		return "", b.err
	}
	return b.renderer().render(&b.q)
}

// ClearQuery resets the model and any recorded error. Options are kept.
func (b *Builder) ClearQuery() *Builder {
	b.q = newQuery()
	b.err = nil
	return b
}

// Get returns a model property by name, or def for an unknown name.
func (b *Builder) Get(key string, def any) any {
	switch strings.ToLower(key) {
	case "query_type":
		return b.q.typ
	case "distinct":
		return b.q.distinct
	case "columns":
		return b.Columns()
	case "from":
		return b.Tables()
	case "where":
		return b.Predicates()
	case "where_groups":
		return b.WhereGroups()
	case "having":
		return b.HavingPredicates()
	case "having_groups":
		return b.HavingGroups()
	case "group_by":
		return b.GroupByItems()
	case "order_by":
		return b.OrderByItems()
	case "offset":
		return b.q.offset
	case "limit":
		return b.q.limit
	case "table_prefix":
		return b.prefix
	case "dialect":
		return b.policy.Name
	default:
		return def
	}
}

// Type returns the statement kind.
func (b *Builder) Type() string { return b.q.typ }

// IsDistinct reports whether the select is DISTINCT.
func (b *Builder) IsDistinct() bool { return b.q.distinct }

// Columns returns the column list in insertion order.
func (b *Builder) Columns() []Item { return append([]Item(nil), b.q.columns...) }

// Tables returns the FROM entries.
func (b *Builder) Tables() []Item { return append([]Item(nil), b.q.from...) }

// Predicates returns the WHERE predicates.
func (b *Builder) Predicates() []Predicate { return append([]Predicate(nil), b.q.where...) }

// HavingPredicates returns the HAVING predicates.
func (b *Builder) HavingPredicates() []Predicate { return append([]Predicate(nil), b.q.having...) }

// WhereGroups returns the registered WHERE groups.
func (b *Builder) WhereGroups() []Group { return append([]Group(nil), b.q.whereGroups...) }

// HavingGroups returns the registered HAVING groups.
func (b *Builder) HavingGroups() []Group { return append([]Group(nil), b.q.havingGroups...) }

// GroupByItems returns the GROUP BY columns.
func (b *Builder) GroupByItems() []Item { return append([]Item(nil), b.q.groupBy...) }

// OrderByItems returns the ORDER BY entries.
func (b *Builder) OrderByItems() []Order { return append([]Order(nil), b.q.orderBy...) }

// Offset returns the pagination offset.
func (b *Builder) Offset() int { return b.q.offset }

// Limit returns the pagination limit, 0 when unbounded.
func (b *Builder) Limit() int { return b.q.limit }

// HasColumns reports whether any column was selected.
func (b *Builder) HasColumns() bool { return len(b.q.columns) > 0 }

// HasFrom reports whether any table was added.
func (b *Builder) HasFrom() bool { return len(b.q.from) > 0 }

// HasWhere reports whether any WHERE predicate was added.
func (b *Builder) HasWhere() bool { return len(b.q.where) > 0 }

// Dialect returns the name of the quoting policy.
func (b *Builder) Dialect() string { return b.policy.Name }

// Policy returns the quoting policy.
func (b *Builder) Policy() dialect.Policy { return b.policy }

// TablePrefix returns the "#__" substitution.
func (b *Builder) TablePrefix() string { return b.prefix }

func (b *Builder) predicate(op, leftType, left, condition, rightType string, right any, opts []PredicateOption) (Predicate, error) {
	left = strings.TrimSpace(left)
	if left == "" {
		return Predicate{}, molajo.NewRequiredValueError(op, "left")
	}
	cond := normalizeCondition(condition)
	if cond == "" {
		return Predicate{}, molajo.NewRequiredValueError(op, "condition")
	}
	if isEmpty(right) {
		return Predicate{}, molajo.NewRequiredValueError(op, "right")
	}
	if !conditions[cond] {
		return Predicate{}, molajo.NewUnsupportedConditionError(condition)
	}
	p := Predicate{Condition: cond, Connector: AND}
	for _, opt := range opts {
		opt(&p)
	}
	var err error
	if p.Left, err = b.operand(leftType, left, left); err != nil {
		return Predicate{}, err
	}
	if isList(cond) {
		elems := splitList(right)
		if len(elems) == 0 {
			return Predicate{}, molajo.NewRequiredValueError(op, "right")
		}
		p.List = make([]Item, 0, len(elems))
		for _, e := range elems {
			it, err := b.operand(rightType, e, left)
			if err != nil {
				return Predicate{}, err
			}
			p.List = append(p.List, it)
		}
		return p, nil
	}
	if p.Right, err = b.operand(rightType, right, left); err != nil {
		return Predicate{}, err
	}
	return p, nil
}

// operand builds one predicate side. Literals are filtered under key.
func (b *Builder) operand(dataType string, raw any, key string) (Item, error) {
	switch dt := normalizeType(dataType); dt {
	case "", fieldhandler.TypeColumn:
		prefix, name := splitColumn(fmt.Sprint(raw))
		return Item{Name: name, Prefix: prefix, DataType: fieldhandler.TypeColumn}, nil
	case fieldhandler.TypeSpecial:
		return Item{DataType: dt, Value: verbatim(raw, "")}, nil
	default:
		v, err := b.filter(key, raw, dt)
		if err != nil {
			return Item{}, err
		}
		return Item{DataType: dt, Value: v}, nil
	}
}

// filter passes a raw value through the sanitizer.
func (b *Builder) filter(key string, value any, dataType string) (fieldhandler.Value, error) {
	v, err := b.sanitizer.Sanitize(key, value, dataType)
	if err != nil {
		return fieldhandler.Value{}, molajo.NewFilterError(key, dataType, value, err)
	}
	return v, nil
}

func (b *Builder) renderer() renderer {
	return renderer{policy: b.policy, escaper: b.escaper, prefix: b.prefix}
}

func verbatim(value any, fallback string) fieldhandler.Value {
	if value == nil {
		return fieldhandler.Value{V: fallback}
	}
	return fieldhandler.Value{V: fmt.Sprint(value)}
}

// isEmpty reports whether a predicate side is absent: nil, blank text or an empty list.
func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer:
		return rv.IsNil()
	}
	return false
}

// splitList expands the right side of IN: a comma-separated string or a slice.
func splitList(v any) []any {
	if s, ok := v.(string); ok {
		var out []any
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if _, ok := v.([]byte); ok {
			return []any{v}
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, rv.Index(i).Interface())
		}
		return out
	}
	return []any{v}
}
