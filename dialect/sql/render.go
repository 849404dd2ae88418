package sql

import (
	"strings"

	"github.com/syssam/molajo"
	"github.com/syssam/molajo/dialect"
	"github.com/syssam/molajo/fieldhandler"
)

// tablePrefixToken is replaced with the configured table prefix.
const tablePrefixToken = "#__"

// renderer turns a query model into SQL text. It holds no state of its own.
type renderer struct {
	policy  dialect.Policy
	escaper Escaper
	prefix  string
}

func (r renderer) render(q *query) (string, error) {
	switch q.typ {
	case InsertQuery:
		return r.insert(q)
	case UpdateQuery:
		return r.update(q)
	case DeleteQuery:
		return r.delete(q)
	case ExecQuery:
		return "", molajo.NewRequiredValueError("get_sql", "sql")
	default:
		return r.selectStmt(q)
	}
}

func (r renderer) selectStmt(q *query) (string, error) {
	if len(q.columns) == 0 {
		return "", molajo.NewMissingColumnsError(SelectQuery)
	}
	if len(q.from) == 0 {
		return "", molajo.NewMissingFromError(SelectQuery)
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	if q.distinct {
		b.WriteString("DISTINCT ")
	}
	for i, it := range q.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.selectItem(it))
	}
	b.WriteString("\nFROM ")
	for i, it := range q.from {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(r.table(it, true))
	}
	b.WriteByte('\n')
	if where := r.predicates(q.where, q.whereGroups); where != "" {
		b.WriteString("WHERE " + where + "\n")
	}
	if len(q.groupBy) > 0 {
		b.WriteString("GROUP BY ")
		for i, it := range q.groupBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.column(it))
		}
		b.WriteByte('\n')
	}
	if having := r.predicates(q.having, q.havingGroups); having != "" {
		b.WriteString("HAVING " + having + "\n")
	}
	if len(q.orderBy) > 0 {
		b.WriteString("ORDER BY ")
		for i, o := range q.orderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.column(o.Item) + " " + o.Direction)
		}
		b.WriteByte('\n')
	}
	if page := r.policy.Paginate(q.offset, q.limit); page != "" {
		// OFFSET ... FETCH is only valid after an ORDER BY.
		if r.policy.Limit == dialect.OffsetFetch && len(q.orderBy) == 0 {
			b.WriteString("ORDER BY (SELECT NULL)\n")
		}
		b.WriteString(page + "\n")
	}
	return b.String(), nil
}

func (r renderer) insert(q *query) (string, error) {
	if len(q.from) == 0 {
		return "", molajo.NewMissingFromError(InsertQuery)
	}
	if len(q.columns) == 0 {
		return "", molajo.NewMissingColumnsError(InsertQuery)
	}
	names := make([]string, len(q.columns))
	values := make([]string, len(q.columns))
	for i, it := range q.columns {
		if it.IsColumn() {
			return "", molajo.NewMissingTypeError(it.QualifiedName())
		}
		names[i] = r.policy.QuoteIdent(it.Name)
		values[i] = r.operand(it)
	}
	var b strings.Builder
	b.WriteString("INSERT INTO " + r.table(q.from[0], false))
	b.WriteString(" (" + strings.Join(names, ", ") + ")\n")
	b.WriteString("VALUES (" + strings.Join(values, ", ") + ")\n")
	return b.String(), nil
}

func (r renderer) update(q *query) (string, error) {
	if len(q.from) == 0 {
		return "", molajo.NewMissingFromError(UpdateQuery)
	}
	if len(q.columns) == 0 {
		return "", molajo.NewMissingColumnsError(UpdateQuery)
	}
	sets := make([]string, len(q.columns))
	for i, it := range q.columns {
		if it.IsColumn() {
			return "", molajo.NewMissingTypeError(it.QualifiedName())
		}
		sets[i] = r.policy.QuoteIdent(it.Name) + " = " + r.operand(it)
	}
	var b strings.Builder
	b.WriteString("UPDATE " + r.table(q.from[0], true) + "\n")
	b.WriteString("SET " + strings.Join(sets, ", ") + "\n")
	if where := r.predicates(q.where, q.whereGroups); where != "" {
		b.WriteString("WHERE " + where + "\n")
	}
	return b.String(), nil
}

func (r renderer) delete(q *query) (string, error) {
	if len(q.from) == 0 {
		return "", molajo.NewMissingFromError(DeleteQuery)
	}
	var b strings.Builder
	b.WriteString("DELETE FROM " + r.table(q.from[0], true) + "\n")
	if where := r.predicates(q.where, q.whereGroups); where != "" {
		b.WriteString("WHERE " + where + "\n")
	}
	return b.String(), nil
}

// predicates renders WHERE or HAVING text without the keyword.
// Groups follow registration order; groups used but never registered
// follow in first-use order with AND. A group is parenthesized only when
// more than one group has predicates.
func (r renderer) predicates(preds []Predicate, registered groups) string {
	if len(preds) == 0 {
		return ""
	}
	order := append(groups(nil), registered...)
	known := make(map[string]bool, len(order))
	for _, g := range order {
		known[g.Label] = true
	}
	for _, p := range preds {
		if !known[p.Group] {
			known[p.Group] = true
			order = append(order, Group{Label: p.Group, Connector: AND})
		}
	}
	type block struct {
		connector string
		text      string
	}
	blocks := make([]block, 0, len(order))
	for _, g := range order {
		var b strings.Builder
		for _, p := range preds {
			if p.Group != g.Label {
				continue
			}
			if b.Len() > 0 {
				b.WriteString(" " + p.Connector + " ")
			}
			b.WriteString(r.predicate(p))
		}
		if b.Len() > 0 {
			blocks = append(blocks, block{connector: g.Connector, text: b.String()})
		}
	}
	if len(blocks) == 1 {
		return blocks[0].text
	}
	var b strings.Builder
	for i, blk := range blocks {
		if i > 0 {
			b.WriteString(" " + blk.connector + " ")
		}
		b.WriteString("(" + blk.text + ")")
	}
	return b.String()
}

func (r renderer) predicate(p Predicate) string {
	left := r.operand(p.Left)
	if p.List != nil {
		values := make([]string, len(p.List))
		for i, it := range p.List {
			values[i] = r.operand(it)
		}
		return left + " " + p.Condition + " (" + strings.Join(values, ", ") + ")"
	}
	if rt := p.Right; !rt.IsColumn() && !rt.IsSpecial() && rt.Value.Null && !isDateType(rt.DataType) {
		switch p.Condition {
		case "=", "IS":
			return left + " IS NULL"
		case "<>", "!=", "IS NOT":
			return left + " IS NOT NULL"
		}
	}
	return left + " " + p.Condition + " " + r.operand(p.Right)
}

// selectItem renders a select-list entry. Literals without an alias are
// aliased by their column name.
func (r renderer) selectItem(it Item) string {
	s := r.operand(it)
	alias := it.Alias
	if alias == "" && !it.IsColumn() && !it.IsSpecial() {
		alias = it.Name
	}
	if alias != "" {
		s += " AS " + r.policy.QuoteIdent(alias)
	}
	return s
}

func (r renderer) operand(it Item) string {
	if it.IsColumn() {
		return r.column(it)
	}
	return r.literal(it)
}

func (r renderer) column(it Item) string {
	return r.policy.QuoteColumn(it.Prefix, it.Name)
}

func (r renderer) table(it Item, withAlias bool) string {
	s := r.policy.QuoteIdent(strings.ReplaceAll(it.Name, tablePrefixToken, r.prefix))
	if withAlias && it.Alias != "" {
		s += " AS " + r.policy.QuoteIdent(it.Alias)
	}
	return s
}

func (r renderer) literal(it Item) string {
	if it.IsSpecial() {
		return it.Value.String(r.policy.DateFormat)
	}
	if it.Value.Null {
		if isDateType(it.DataType) {
			return r.quote(r.policy.NullDate)
		}
		return "NULL"
	}
	s := it.Value.String(r.policy.DateFormat)
	if r.policy.BareNumerics && it.Value.IsNumeric() {
		return s
	}
	return r.quote(s)
}

func (r renderer) quote(s string) string {
	if r.escaper != nil {
		return r.policy.ValueQuote + r.escaper.Escape(s) + r.policy.ValueQuote
	}
	return r.policy.QuoteValue(s)
}

func isDateType(t string) bool {
	return t == fieldhandler.TypeDate || t == fieldhandler.TypeDatetime
}
