package registry

import (
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/syssam/molajo/dialect/sql"
	"github.com/syssam/molajo/fieldhandler"
)

// Join tokens resolved against the request context or the document.
const (
	TokenApplicationID = "APPLICATION_ID"
	TokenSiteID        = "SITE_ID"
	TokenMenuID        = "MENU_ID"
	TokenCatalogTypeID = "CATALOG_TYPE_ID"
)

// Context is the request state join tokens resolve against.
type Context struct {
	ApplicationID int64
	SiteID        int64
}

// Resolver populates a Builder from a Document. It never fails: malformed
// document values fall back to safe defaults and unusable entries are
// skipped and logged at debug level.
type Resolver struct {
	ctx    Context
	logger *slog.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// NewResolver returns a Resolver bound to the request context.
func NewResolver(c Context, opts ...ResolverOption) *Resolver {
	r := &Resolver{ctx: c, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Context returns the request context of the resolver.
func (r *Resolver) Context() Context { return r.ctx }

// Resolve applies doc to b. Columns, the primary table and the key
// predicate are only added when b has none yet; special joins, scalar
// criteria, the criteria list and pagination are always applied.
func (r *Resolver) Resolve(doc *Document, b *sql.Builder) *sql.Builder {
	d := doc.Clone()
	ApplyDefaults(d)
	rs := resolution{Resolver: r, doc: d, b: b, prefix: d.PrimaryPrefix}
	rs.columns()
	rs.from()
	rs.keyPredicate()
	rs.specialJoins()
	rs.scalarCriteria()
	rs.criteria()
	if d.UsesPagination() {
		b.SetOffsetAndLimit(d.Offset(), d.Count())
	}
	return b
}

// resolution is the state of a single Resolve call.
type resolution struct {
	*Resolver
	doc    *Document
	b      *sql.Builder
	prefix string
}

func (rs *resolution) qualify(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return rs.prefix + "." + name
}

func (rs *resolution) skip(msg string, args ...any) {
	rs.logger.Debug("registry: "+msg, append([]any{"registry", rs.doc.Name}, args...)...)
}

func (rs *resolution) columns() {
	if rs.b.HasColumns() {
		return
	}
	switch rs.doc.QueryObject {
	case QueryResult:
		col := rs.doc.PrimaryKey
		if rs.doc.HasPrimaryKeyValue() {
			col = rs.doc.NameKey
		}
		rs.b.Select(rs.qualify(col), "")
		return
	case QueryDistinct:
		rs.b.SetDistinct(true)
	}
	n := 0
	for _, f := range rs.doc.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			rs.skip("field without name")
			continue
		}
		if !f.Selected() {
			continue
		}
		rs.b.Select(rs.qualify(name), "")
		n++
	}
	if n == 0 {
		rs.b.Select(rs.prefix+".*", "")
	}
}

func (rs *resolution) from() {
	if rs.b.HasFrom() {
		return
	}
	if strings.TrimSpace(rs.doc.TableName) == "" {
		rs.skip("document without table_name")
		return
	}
	rs.b.From(rs.doc.TableName, rs.prefix)
}

func (rs *resolution) keyPredicate() {
	if rs.b.HasWhere() {
		return
	}
	switch {
	case rs.doc.HasPrimaryKeyValue():
		v := rs.doc.PrimaryKeyValue
		rs.b.Where("column", rs.qualify(rs.doc.PrimaryKey), "=", rs.keyType(rs.doc.PrimaryKey, v), v)
	case rs.doc.HasNameKeyValue():
		v := rs.doc.NameKeyValue
		rs.b.Where("column", rs.qualify(rs.doc.NameKey), "=", rs.keyType(rs.doc.NameKey, v), v)
	}
}

// keyType is the declared field type, or integer for numeric values and string otherwise.
func (rs *resolution) keyType(field string, v any) string {
	if f, ok := rs.doc.Field(field); ok && fieldhandler.Known(strings.ToLower(f.Type)) {
		return f.Type
	}
	return literalType(v)
}

func (rs *resolution) specialJoins() {
	if !rs.doc.UsesSpecialJoins() || len(rs.doc.Joins) == 0 {
		return
	}
	for _, j := range rs.doc.Joins {
		table, alias := strings.TrimSpace(j.TableName), strings.TrimSpace(j.Alias)
		if table == "" || alias == "" {
			rs.skip("join without table_name or alias", "table", table, "alias", alias)
			continue
		}
		if rs.doc.QueryObject != QueryResult {
			for _, col := range splitList(j.Select) {
				rs.b.Select(alias+"."+col, alias+"_"+col)
			}
		}
		to, with := splitList(j.JoinTo), splitList(j.JoinWith)
		if len(to) != len(with) {
			rs.skip("unpaired join keys", "alias", alias, "jointo", len(to), "joinwith", len(with))
		}
		for i := 0; i < len(to) && i < len(with); i++ {
			op, token := splitOperator(with[i])
			rightType, right, ok := rs.token(token)
			if !ok {
				rs.skip("join token without value", "alias", alias, "token", token)
				continue
			}
			rs.b.Where("column", alias+"."+to[i], op, rightType, right)
		}
		rs.b.From(table, alias)
	}
}

// token resolves the right side of a join pair.
func (rs *resolution) token(token string) (dataType string, value any, ok bool) {
	switch strings.ToUpper(token) {
	case TokenApplicationID:
		return fieldhandler.TypeInteger, rs.ctx.ApplicationID, true
	case TokenSiteID:
		return fieldhandler.TypeInteger, rs.ctx.SiteID, true
	case TokenMenuID:
		n := intValue(rs.doc.CriteriaMenuID)
		return fieldhandler.TypeInteger, n, n != 0
	case TokenCatalogTypeID:
		n := intValue(rs.doc.CriteriaCatalogTypeID)
		if n == 0 {
			n = intValue(rs.doc.CatalogTypeID)
		}
		return fieldhandler.TypeInteger, n, n != 0
	}
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return fieldhandler.TypeInteger, n, true
	}
	if token == "" {
		return "", nil, false
	}
	return fieldhandler.TypeColumn, rs.qualify(token), true
}

func (rs *resolution) scalarCriteria() {
	if ids := intList(rs.doc.CriteriaStatus); len(ids) > 1 || (len(ids) == 1 && ids[0] != 0) {
		rs.b.Where("column", rs.qualify("status"), "IN", fieldhandler.TypeInteger, ids)
	}
	for _, c := range []struct {
		column string
		value  any
	}{
		{"catalog_type_id", rs.doc.CriteriaCatalogTypeID},
		{"extension_instance_id", rs.doc.CriteriaExtensionInstanceID},
		{"menu_id", rs.doc.CriteriaMenuID},
	} {
		if n := intValue(c.value); n != 0 {
			rs.b.Where("column", rs.qualify(c.column), "=", fieldhandler.TypeInteger, n)
		}
	}
}

func (rs *resolution) criteria() {
	joins := rs.doc.UsesSpecialJoins()
	for _, c := range rs.doc.Criteria {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			rs.skip("criteria without name")
			continue
		}
		if prefix, _, ok := strings.Cut(name, "."); ok && !joins && prefix != rs.prefix {
			rs.skip("criteria on joined table without special joins", "name", name)
			continue
		}
		cond := c.Connector
		if strings.TrimSpace(cond) == "" {
			cond = "="
		}
		if !sql.ValidCondition(cond) {
			rs.skip("criteria with unsupported condition", "name", name, "condition", cond)
			continue
		}
		if name2 := strings.TrimSpace(c.Name2); name2 != "" {
			rs.b.Where("column", rs.qualify(name), cond, "column", rs.qualify(name2))
			continue
		}
		if empty(c.Value) {
			rs.skip("criteria without value", "name", name)
			continue
		}
		dataType := strings.ToLower(strings.TrimSpace(c.Type))
		switch {
		case dataType == "":
			dataType = literalType(c.Value)
		case dataType != fieldhandler.TypeSpecial && !fieldhandler.Known(dataType):
			rs.skip("criteria with unknown type", "name", name, "type", c.Type)
			continue
		}
		rs.b.Where("column", rs.qualify(name), cond, dataType, c.Value)
	}
}

// literalType is integer when every element of v is an integer, else string.
func literalType(v any) string {
	vals := []any{v}
	if l, ok := v.([]any); ok {
		vals = l
	} else if s, ok := v.(string); ok && strings.Contains(s, ",") {
		vals = nil
		for _, p := range splitList(s) {
			vals = append(vals, p)
		}
	}
	if len(vals) == 0 {
		return fieldhandler.TypeString
	}
	for _, x := range vals {
		if !isNumeric(x) {
			return fieldhandler.TypeString
		}
	}
	return fieldhandler.TypeInteger
}

// splitOperator extracts a leading comparison operator from a join token.
func splitOperator(token string) (op, rest string) {
	token = strings.TrimSpace(token)
	for _, op := range []string{">=", "<=", ">", "<"} {
		if strings.HasPrefix(token, op) {
			return op, strings.TrimSpace(token[len(op):])
		}
	}
	return "=", token
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// intList reads a comma list, a list or a scalar of integers.
// Non-numeric entries are dropped.
func intList(v any) []int64 {
	var raw []any
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		for _, p := range splitList(x) {
			raw = append(raw, p)
		}
	case []any:
		raw = x
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			for i := 0; i < rv.Len(); i++ {
				raw = append(raw, rv.Index(i).Interface())
			}
		} else {
			raw = []any{v}
		}
	}
	var out []int64
	for _, x := range raw {
		if isNumeric(x) {
			out = append(out, intValue(x))
		}
	}
	return out
}

// empty reports whether a criteria value is missing.
func empty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	}
	return false
}
