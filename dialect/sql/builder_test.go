package sql

import (
	"errors"
	"strings"
	"testing"

	"github.com/syssam/molajo"
	"github.com/syssam/molajo/dialect"
	"github.com/syssam/molajo/fieldhandler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderSelectReplacesColumn(t *testing.T) {
	b := NewBuilder().
		Select("a.id", "x").
		Select("a.title", "").
		Select("a.id", "y")

	cols := b.Columns()
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "a", cols[0].Prefix)
	assert.Equal(t, "y", cols[0].Alias)
	assert.Equal(t, "title", cols[1].Name)
	assert.True(t, cols[0].IsColumn())
	assert.Equal(t, "a.id", cols[0].QualifiedName())
}

func TestBuilderSelectValue(t *testing.T) {
	b := NewBuilder().
		SelectValue("a.status", "", "1", fieldhandler.TypeInteger).
		SelectValue("total", "", "COUNT(*)", fieldhandler.TypeSpecial).
		SelectValue("a.ref", "", nil, "COLUMN")
	require.NoError(t, b.Err())

	cols := b.Columns()
	require.Len(t, cols, 3)
	assert.Equal(t, fieldhandler.TypeInteger, cols[0].DataType)
	assert.Equal(t, int64(1), cols[0].Value.V)
	assert.True(t, cols[1].IsSpecial())
	assert.Equal(t, "COUNT(*)", cols[1].Value.V)
	assert.True(t, cols[2].IsColumn())
	assert.Nil(t, cols[2].Value.V)
}

func TestBuilderSetType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"select", SelectQuery},
		{"INSERT", InsertQuery},
		{" Update ", UpdateQuery},
		{"delete", DeleteQuery},
		{"exec", ExecQuery},
		{"merge", SelectQuery},
		{"", SelectQuery},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NewBuilder().SetType(tt.in).Type())
		})
	}
}

func TestBuilderPredicates(t *testing.T) {
	b := NewBuilder().
		Where("column", "a.id", "in", "integer", "1, 2,3").
		Where("column", "a.catalog_id", "=", "column", "b.id", Or()).
		Where("column", "a.title", "not   like", "string", "%x%", Connector("bogus"), InGroup("search"))
	require.NoError(t, b.Err())
	assert.True(t, b.HasWhere())

	preds := b.Predicates()
	require.Len(t, preds, 3)

	assert.Equal(t, "IN", preds[0].Condition)
	require.Len(t, preds[0].List, 3)
	for i, want := range []int64{1, 2, 3} {
		assert.Equal(t, want, preds[0].List[i].Value.V)
	}

	assert.Equal(t, OR, preds[1].Connector)
	assert.True(t, preds[1].Right.IsColumn())
	assert.Equal(t, "b", preds[1].Right.Prefix)
	assert.Equal(t, "id", preds[1].Right.Name)

	assert.Equal(t, "NOT LIKE", preds[2].Condition)
	assert.Equal(t, AND, preds[2].Connector)
	assert.Equal(t, "search", preds[2].Group)
}

func TestBuilderGroups(t *testing.T) {
	b := NewBuilder().
		WhereGroup("a", "or").
		WhereGroup("b", "xor").
		WhereGroup("a", "AND").
		HavingGroup("h", "OR")

	assert.Equal(t, []Group{{Label: "a", Connector: AND}, {Label: "b", Connector: AND}}, b.WhereGroups())
	assert.Equal(t, []Group{{Label: "h", Connector: OR}}, b.HavingGroups())
}

func TestBuilderOrderBy(t *testing.T) {
	b := NewBuilder().
		OrderBy("a.title", "").
		OrderBy("a.id", "asc").
		OrderBy("a.created", "desc").
		OrderBy("a.ordering", "sideways")

	var dirs []string
	for _, o := range b.OrderByItems() {
		dirs = append(dirs, o.Direction)
	}
	assert.Equal(t, []string{OrderAsc, OrderAsc, OrderDesc, OrderDesc}, dirs)

	b.GroupBy("a.catalog_id")
	require.Len(t, b.GroupByItems(), 1)
	assert.Equal(t, "catalog_id", b.GroupByItems()[0].Name)
}

func TestBuilderSetOffsetAndLimit(t *testing.T) {
	tests := []struct {
		name          string
		offset, limit int
		wantOffset    int
		wantLimit     int
	}{
		{"Unbounded", 0, 0, 0, 0},
		{"OffsetOnly", 10, 0, 10, 15},
		{"LimitOnly", 0, 5, 0, 5},
		{"Both", 20, 10, 20, 10},
		{"Negative", -5, -1, 0, 0},
		{"NegativeLimit", 3, -1, 3, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder().SetOffsetAndLimit(tt.offset, tt.limit)
			assert.Equal(t, tt.wantOffset, b.Offset())
			assert.Equal(t, tt.wantLimit, b.Limit())
		})
	}
}

func TestBuilderRequiredValues(t *testing.T) {
	tests := []struct {
		name  string
		build func(*Builder)
	}{
		{"SelectColumn", func(b *Builder) { b.Select(" ", "x") }},
		{"FromTable", func(b *Builder) { b.From("", "a") }},
		{"WhereGroupLabel", func(b *Builder) { b.WhereGroup("", "AND") }},
		{"HavingGroupLabel", func(b *Builder) { b.HavingGroup("", "OR") }},
		{"WhereLeft", func(b *Builder) { b.Where("column", "", "=", "integer", 1) }},
		{"WhereCondition", func(b *Builder) { b.Where("column", "a.id", " ", "integer", 1) }},
		{"WhereRightNil", func(b *Builder) { b.Where("column", "a.id", "=", "integer", nil) }},
		{"WhereRightBlank", func(b *Builder) { b.Where("column", "a.id", "=", "string", "  ") }},
		{"WhereRightEmptySlice", func(b *Builder) { b.Where("column", "a.id", "IN", "integer", []int{}) }},
		{"WhereEmptyList", func(b *Builder) { b.Where("column", "a.id", "IN", "integer", " , ,") }},
		{"HavingLeft", func(b *Builder) { b.Having("column", "", "=", "integer", 1) }},
		{"GroupBy", func(b *Builder) { b.GroupBy("") }},
		{"OrderBy", func(b *Builder) { b.OrderBy("", "ASC") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tt.build(b)
			err := b.Err()
			require.Error(t, err)
			assert.True(t, molajo.IsRequiredValue(err), err)
			assert.True(t, errors.Is(err, molajo.ErrRequiredValue))
		})
	}
}

func TestBuilderUnsupportedCondition(t *testing.T) {
	b := NewBuilder().Where("column", "a.id", "BETWEEN", "integer", 1)
	require.Error(t, b.Err())
	assert.True(t, molajo.IsUnsupportedCondition(b.Err()))
	assert.Empty(t, b.Predicates())
}

func TestBuilderFilterError(t *testing.T) {
	b := NewBuilder().
		Select("a.id", "").
		From("content", "a").
		Where("column", "a.id", "=", "integer", "abc")

	err := b.Err()
	require.Error(t, err)
	assert.True(t, molajo.IsFilterError(err))
	assert.True(t, errors.Is(err, fieldhandler.ErrInvalidValue))

	var fe *molajo.FilterError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "a.id", fe.Key)
	assert.Equal(t, "integer", fe.DataType)
	assert.Equal(t, "abc", fe.Value)

	_, err = b.GetSQL("")
	assert.True(t, molajo.IsFilterError(err))

	err = NewBuilder().SelectValue("a.x", "", "y", "blob").Err()
	assert.True(t, errors.Is(err, fieldhandler.ErrUnknownType))
	err = NewBuilder().Where("column", "a.id", "IN", "integer", "1,x").Err()
	assert.True(t, molajo.IsFilterError(err))
}

func TestBuilderFirstErrorWins(t *testing.T) {
	b := NewBuilder().
		Select("", "").
		From("", "").
		Select("a.id", "").
		From("content", "a")

	var re *molajo.RequiredValueError
	require.True(t, errors.As(b.Err(), &re))
	assert.Equal(t, "select", re.Op)
	assert.Equal(t, "column_name", re.Name)
	assert.True(t, b.HasColumns())
	assert.True(t, b.HasFrom())

	b.ClearQuery()
	assert.NoError(t, b.Err())
	assert.False(t, b.HasColumns())
	assert.False(t, b.HasFrom())
}

func TestBuilderClearQueryKeepsOptions(t *testing.T) {
	b := NewBuilder(WithDialect(dialect.MySQL), WithTablePrefix("molajo_")).
		SetType(UpdateQuery).
		SetDistinct(true).
		Select("a.id", "").
		From("#__content", "a").
		Where("column", "a.id", "=", "integer", 1).
		Having("column", "a.id", ">", "integer", 1).
		WhereGroup("g", "OR").
		GroupBy("a.id").
		OrderBy("a.id", "").
		SetOffsetAndLimit(5, 5)

	b.ClearQuery()
	assert.Equal(t, SelectQuery, b.Type())
	assert.False(t, b.IsDistinct())
	assert.Empty(t, b.Columns())
	assert.Empty(t, b.Tables())
	assert.Empty(t, b.Predicates())
	assert.Empty(t, b.HavingPredicates())
	assert.Empty(t, b.WhereGroups())
	assert.Empty(t, b.GroupByItems())
	assert.Empty(t, b.OrderByItems())
	assert.Zero(t, b.Offset())
	assert.Zero(t, b.Limit())
	assert.Equal(t, dialect.MySQL, b.Dialect())
	assert.Equal(t, "molajo_", b.TablePrefix())
}

func TestBuilderGet(t *testing.T) {
	b := NewBuilder(WithDialect(dialect.Postgres), WithTablePrefix("m_")).
		Select("a.id", "").
		From("content", "a").
		SetOffsetAndLimit(10, 0)

	assert.Equal(t, SelectQuery, b.Get("query_type", nil))
	assert.Equal(t, false, b.Get("distinct", nil))
	assert.Len(t, b.Get("columns", nil), 1)
	assert.Len(t, b.Get("from", nil), 1)
	assert.Empty(t, b.Get("where", nil))
	assert.Equal(t, 10, b.Get("offset", nil))
	assert.Equal(t, 15, b.Get("limit", nil))
	assert.Equal(t, "m_", b.Get("table_prefix", nil))
	assert.Equal(t, dialect.Postgres, b.Get("dialect", nil))
	assert.Equal(t, "fallback", b.Get("nope", "fallback"))
}

func TestBuilderWithDialectUnknown(t *testing.T) {
	b := NewBuilder(WithDialect("oracle"))
	assert.Equal(t, dialect.SQLite, b.Dialect())
	assert.Equal(t, dialect.SQLite, b.Policy().Name)
}

func TestBuilderCustomSanitizer(t *testing.T) {
	var keys []string
	s := fieldhandler.SanitizerFunc(func(key string, value any, dataType string) (fieldhandler.Value, error) {
		keys = append(keys, key+":"+dataType)
		return fieldhandler.Value{V: strings.ToUpper(value.(string))}, nil
	})
	query, err := NewBuilder(WithSanitizer(s)).
		Select("a.id", "").
		From("content", "a").
		Where("column", "a.title", "=", "string", "abc").
		GetSQL("")
	require.NoError(t, err)
	assert.Contains(t, query, `"a"."title" = 'ABC'`)
	assert.Equal(t, []string{"a.title:string"}, keys)
}
