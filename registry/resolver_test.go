package registry

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/molajo/dialect"
	"github.com/syssam/molajo/dialect/sql"
)

func resolve(t *testing.T, r *Resolver, doc *Document, opts ...sql.BuilderOption) (*sql.Builder, string) {
	t.Helper()
	b := r.Resolve(doc, sql.NewBuilder(opts...))
	query, err := b.GetSQL("")
	require.NoError(t, err)
	return b, query
}

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestResolveItem(t *testing.T) {
	r := NewResolver(Context{})
	doc := &Document{TableName: "#__content", QueryObject: QueryItem, PrimaryKeyValue: 5}

	b, query := resolve(t, r, doc)
	require.Len(t, b.Predicates(), 1)
	assert.Equal(t, "SELECT \"a\".*\nFROM \"content\" AS \"a\"\nWHERE \"a\".\"id\" = '5'\n", query)

	_, query = resolve(t, r, doc, sql.WithTablePrefix("molajo_"))
	assert.Contains(t, query, `FROM "molajo_content" AS "a"`)

	assert.Equal(t, QueryItem, doc.QueryObject)
	assert.Empty(t, doc.Name, "Resolve must not modify the document")
}

func TestResolveNameKey(t *testing.T) {
	doc := &Document{
		TableName:    "#__extensions",
		NameKey:      "name",
		NameKeyValue: "home",
		Fields:       []FieldDef{{Name: "id", Type: "integer"}, {Name: "name"}},
	}
	b, query := resolve(t, NewResolver(Context{}), doc)
	require.Len(t, b.Predicates(), 1)
	assert.Equal(t, "SELECT \"a\".\"id\", \"a\".\"name\"\nFROM \"extensions\" AS \"a\"\nWHERE \"a\".\"name\" = 'home'\n", query)
}

func TestResolveDeclaredKeyType(t *testing.T) {
	doc := &Document{
		TableName:       "#__sessions",
		PrimaryKey:      "session_id",
		PrimaryKeyValue: "6f1c1a5e-34b1-4f5e-9b0a-0c6a1c2b7d11",
		Fields:          []FieldDef{{Name: "session_id", Type: "uuid"}},
	}
	_, query := resolve(t, NewResolver(Context{}), doc)
	assert.Contains(t, query, `WHERE "a"."session_id" = '6f1c1a5e-34b1-4f5e-9b0a-0c6a1c2b7d11'`)
}

func TestResolveCriteriaWithoutJoins(t *testing.T) {
	var buf bytes.Buffer
	r := NewResolver(Context{}, WithLogger(debugLogger(&buf)))
	doc := &Document{
		TableName:       "#__content",
		UseSpecialJoins: 0,
		Criteria: []CriteriaDef{
			{Name: "b.title", Connector: "=", Value: "x"},
			{Name: "a.status", Value: 1},
		},
	}
	b, query := resolve(t, r, doc)
	preds := b.Predicates()
	require.Len(t, preds, 1)
	assert.Equal(t, "status", preds[0].Left.Name)
	assert.NotContains(t, query, `"b"`)
	assert.Contains(t, buf.String(), "criteria on joined table without special joins")

	doc.UseSpecialJoins = "1"
	_, query = resolve(t, r, doc)
	assert.Contains(t, query, `WHERE "b"."title" = 'x' AND "a"."status" = '1'`)
}

func TestResolveColumns(t *testing.T) {
	fields := []FieldDef{
		{Name: "id", Type: "integer"},
		{Name: "title"},
		{Name: "body", Type: "text", Select: "no"},
	}
	tests := []struct {
		name string
		doc  *Document
		want string
	}{
		{
			name: "List",
			doc:  &Document{TableName: "#__content", Fields: fields},
			want: `SELECT "a"."id", "a"."title"`,
		},
		{
			name: "Distinct",
			doc:  &Document{TableName: "#__content", QueryObject: QueryDistinct, Fields: fields},
			want: `SELECT DISTINCT "a"."id", "a"."title"`,
		},
		{
			name: "Result",
			doc:  &Document{TableName: "#__content", QueryObject: QueryResult, Fields: fields},
			want: `SELECT "a"."id"` + "\n",
		},
		{
			name: "ResultByKey",
			doc:  &Document{TableName: "#__content", QueryObject: QueryResult, PrimaryKeyValue: "7", Fields: fields},
			want: `SELECT "a"."title"` + "\n",
		},
		{
			name: "Wildcard",
			doc:  &Document{TableName: "#__content", PrimaryPrefix: "c"},
			want: `SELECT "c".*` + "\n" + `FROM "content" AS "c"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, query := resolve(t, NewResolver(Context{}), tt.doc)
			assert.Contains(t, query, tt.want)
		})
	}
}

func TestResolveKeepsBuilderState(t *testing.T) {
	b := sql.NewBuilder().
		Select("a.title", "").
		Where("column", "a.id", ">", "integer", 10)
	doc := &Document{TableName: "#__content", QueryObject: QueryItem, PrimaryKeyValue: 5}
	NewResolver(Context{}).Resolve(doc, b)

	query, err := b.GetSQL("")
	require.NoError(t, err)
	assert.Equal(t, "SELECT \"a\".\"title\"\nFROM \"content\" AS \"a\"\nWHERE \"a\".\"id\" > '10'\n", query)
}

func TestResolveSpecialJoins(t *testing.T) {
	doc := &Document{
		TableName:       "#__content",
		UseSpecialJoins: true,
		CatalogTypeID:   10,
		Joins: []JoinDef{{
			TableName: "#__catalog",
			Alias:     "b",
			Select:    "sef_request, redirect_to_id",
			JoinTo:    "source_id,application_id,catalog_type_id",
			JoinWith:  "id,APPLICATION_ID,CATALOG_TYPE_ID",
		}},
	}
	r := NewResolver(Context{ApplicationID: 2, SiteID: 1})
	_, query := resolve(t, r, doc)
	want := `SELECT "a".*, "b"."sef_request" AS "b_sef_request", "b"."redirect_to_id" AS "b_redirect_to_id"` + "\n" +
		`FROM "content" AS "a", "catalog" AS "b"` + "\n" +
		`WHERE "b"."source_id" = "a"."id" AND "b"."application_id" = '2' AND "b"."catalog_type_id" = '10'` + "\n"
	assert.Equal(t, want, query)

	t.Run("Result", func(t *testing.T) {
		d := doc.Clone()
		d.QueryObject = QueryResult
		_, query := resolve(t, r, d)
		assert.NotContains(t, query, "b_sef_request")
		assert.Contains(t, query, `"catalog" AS "b"`)
	})
	t.Run("Operators", func(t *testing.T) {
		d := doc.Clone()
		d.Joins = []JoinDef{{TableName: "#__sites", Alias: "s", JoinTo: "id,level", JoinWith: ">= SITE_ID,<3"}}
		_, query := resolve(t, r, d)
		assert.Contains(t, query, `WHERE "s"."id" >= '1' AND "s"."level" < '3'`)
	})
	t.Run("Skipped", func(t *testing.T) {
		var buf bytes.Buffer
		d := doc.Clone()
		d.CatalogTypeID = nil
		d.Joins = []JoinDef{
			{TableName: "#__menus", JoinTo: "id", JoinWith: "menu_id"},
			{TableName: "#__catalog", Alias: "b", JoinTo: "catalog_type_id,menu_id,extra", JoinWith: "CATALOG_TYPE_ID,MENU_ID"},
		}
		b, query := resolve(t, NewResolver(Context{}, WithLogger(debugLogger(&buf))), d)
		assert.Empty(t, b.Predicates())
		assert.NotContains(t, query, "menus")
		assert.Contains(t, query, `"catalog" AS "b"`)
		assert.Contains(t, buf.String(), "join without table_name or alias")
		assert.Contains(t, buf.String(), "unpaired join keys")
		assert.Contains(t, buf.String(), "join token without value")
	})
}

func TestResolveScalarCriteria(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want string
	}{
		{
			name: "StatusList",
			doc:  &Document{CriteriaStatus: "1,2"},
			want: `WHERE "a"."status" IN ('1', '2')`,
		},
		{
			name: "StatusSingle",
			doc:  &Document{CriteriaStatus: 1},
			want: `WHERE "a"."status" IN ('1')`,
		},
		{
			name: "StatusYAMLList",
			doc:  &Document{CriteriaStatus: []any{0, 1, "x"}},
			want: `WHERE "a"."status" IN ('0', '1')`,
		},
		{
			name: "Scalars",
			doc:  &Document{CriteriaCatalogTypeID: "10", CriteriaExtensionInstanceID: 3, CriteriaMenuID: "abc"},
			want: `WHERE "a"."catalog_type_id" = '10' AND "a"."extension_instance_id" = '3'` + "\n",
		},
		{
			name: "MenuID",
			doc:  &Document{CriteriaMenuID: 4},
			want: `WHERE "a"."menu_id" = '4'`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.doc.TableName = "#__content"
			_, query := resolve(t, NewResolver(Context{}), tt.doc)
			assert.Contains(t, query, tt.want)
		})
	}

	b, _ := resolve(t, NewResolver(Context{}), &Document{TableName: "#__content", CriteriaStatus: "0", CriteriaCatalogTypeID: 0})
	assert.Empty(t, b.Predicates())
}

func TestResolveCriteria(t *testing.T) {
	doc := &Document{
		TableName: "#__content",
		Criteria: []CriteriaDef{
			{Name: "modified", Connector: ">", Name2: "created"},
			{Name: "created", Connector: ">=", Value: "2024-01-02", Type: "date"},
			{Name: "catalog_type_id", Connector: "in", Value: "1,2"},
			{Name: "title", Connector: "like", Value: "%news%"},
		},
	}
	_, query := resolve(t, NewResolver(Context{}), doc)
	want := `WHERE "a"."modified" > "a"."created"` +
		` AND "a"."created" >= '2024-01-02 00:00:00'` +
		` AND "a"."catalog_type_id" IN ('1', '2')` +
		` AND "a"."title" LIKE '%news%'` + "\n"
	assert.Contains(t, query, want)
}

func TestResolveMalformed(t *testing.T) {
	var buf bytes.Buffer
	doc := &Document{
		TableName:   "#__content",
		QueryObject: "bogus",
		ModelOffset: "ten",
		Fields:      []FieldDef{{Name: " "}},
		Criteria: []CriteriaDef{
			{Connector: "=", Value: 1},
			{Name: "a.status", Connector: "~~", Value: 1},
			{Name: "a.status", Connector: "=", Value: ""},
			{Name: "a.status", Connector: "=", Value: 1, Type: "weird"},
			{Name: "a.status", Connector: "IN", Value: []any{}},
		},
	}
	b, query := resolve(t, NewResolver(Context{}, WithLogger(debugLogger(&buf))), doc)
	require.NoError(t, b.Err())
	assert.Empty(t, b.Predicates())
	assert.Equal(t, "SELECT \"a\".*\nFROM \"content\" AS \"a\"\n", query)
	for _, msg := range []string{
		"field without name",
		"criteria without name",
		"criteria with unsupported condition",
		"criteria without value",
		"criteria with unknown type",
	} {
		assert.Contains(t, buf.String(), msg)
	}

	b = NewResolver(Context{}).Resolve(&Document{}, sql.NewBuilder())
	_, err := b.GetSQL("")
	assert.Error(t, err, "a document without table renders no FROM")
}

func TestResolvePagination(t *testing.T) {
	doc := &Document{TableName: "#__content", UsePagination: "1", ModelOffset: "10", ModelCount: 5}
	tests := []struct {
		dialect string
		want    string
	}{
		{dialect.SQLite, "LIMIT 10, 5\n"},
		{dialect.MySQL, "LIMIT 10, 5\n"},
		{dialect.Postgres, "LIMIT 5 OFFSET 10\n"},
		{dialect.SQLServer, "ORDER BY (SELECT NULL)\nOFFSET 10 ROWS FETCH NEXT 5 ROWS ONLY\n"},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			b, query := resolve(t, NewResolver(Context{}), doc, sql.WithDialect(tt.dialect))
			assert.Equal(t, 10, b.Offset())
			assert.Equal(t, 5, b.Limit())
			assert.Contains(t, query, tt.want)
		})
	}

	doc.UsePagination = "no"
	b, query := resolve(t, NewResolver(Context{}), doc)
	assert.Zero(t, b.Limit())
	assert.NotContains(t, query, "LIMIT")
}

func TestLiteralType(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{5, "integer"},
		{"5", "integer"},
		{"1, 2,3", "integer"},
		{[]any{1, "2"}, "integer"},
		{"1,x", "string"},
		{"x", "string"},
		{1.5, "string"},
		{[]any{}, "string"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, literalType(tt.in), "%#v", tt.in)
	}
}

func TestSplitOperator(t *testing.T) {
	tests := []struct {
		in, op, rest string
	}{
		{"id", "=", "id"},
		{">=SITE_ID", ">=", "SITE_ID"},
		{"<= 3", "<=", "3"},
		{" > level", ">", "level"},
		{"<0", "<", "0"},
	}
	for _, tt := range tests {
		op, rest := splitOperator(tt.in)
		assert.Equal(t, tt.op, op, tt.in)
		assert.Equal(t, tt.rest, rest, tt.in)
	}
}
