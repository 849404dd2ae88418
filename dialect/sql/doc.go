// Package sql builds dialect-neutral SQL statements and hands them to a
// database/sql backed driver.
//
// # Builder
//
// A Builder accumulates a statement model (columns, tables, grouped
// predicates, ordering and pagination) and renders it through a
// dialect.Policy. Literal values pass through a fieldhandler.Sanitizer
// before they are embedded:
//
//	b := sql.NewBuilder(sql.WithDialect(dialect.Postgres), sql.WithTablePrefix("molajo_"))
//	b.Select("a.id", "").
//		Select("a.title", "").
//		From("#__content", "a").
//		Where("column", "a.catalog_type_id", "IN", "integer", "1,2,3").
//		Where("column", "a.status", ">", "integer", 0).
//		OrderBy("a.title", "ASC").
//		SetOffsetAndLimit(0, 10)
//	query, err := b.GetSQL("")
//
// Each clause renders on its own line:
//
//	SELECT "a"."id", "a"."title"
//	FROM "molajo_content" AS "a"
//	WHERE "a"."catalog_type_id" IN ('1', '2', '3') AND "a"."status" > '0'
//	ORDER BY "a"."title" ASC
//	LIMIT 10 OFFSET 0
//
// # Predicate groups
//
// Predicates are collected in labelled groups. Inside a group each
// predicate is joined to the previous one by its own connector; groups are
// joined by the connector registered with WhereGroup or HavingGroup and are
// parenthesized when there is more than one:
//
//	b.WhereGroup("status", "AND").WhereGroup("search", "OR")
//	b.Where("column", "a.status", "=", "integer", 1, sql.InGroup("status"))
//	b.Where("column", "a.title", "LIKE", "string", "%go%", sql.InGroup("search"))
//	b.Where("column", "a.body", "LIKE", "string", "%go%", sql.InGroup("search"), sql.Or())
//	// WHERE ("a"."status" = '1') OR ("a"."title" LIKE '%go%' OR "a"."body" LIKE '%go%')
//
// # Errors
//
// Mutators never panic. A call with a missing argument or a rejected value
// records the first error, which GetSQL returns. See the molajo package for
// the error types.
//
// # Execution
//
// Driver wraps a *sql.DB. QueryBuilder and ExecBuilder render a Builder and
// run the statement; DebugDriver logs every statement with log/slog.
package sql
