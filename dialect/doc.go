// Package dialect describes how the supported databases differ.
//
// The query builder is a single implementation for every database. The only
// variance point is a Policy value: identifier quotes, the value quote, the
// date format, the null-date literal and the pagination syntax.
//
// # Supported Dialects
//
//   - MySQL: MySQL/MariaDB (backtick identifiers, backslash escaping)
//   - Postgres: PostgreSQL
//   - SQLServer: Microsoft SQL Server (bracket identifiers)
//   - SQLite: SQLite
//
// # Policies
//
//	p, ok := dialect.PolicyFor(dialect.Postgres)
//	p.QuoteIdent("title")   // "title"
//	p.QuoteValue("O'Hara")  // 'O''Hara'
//
// # Drivers
//
// Driver, Tx and ExecQuerier describe the execution collaborator the rendered
// SQL is handed to. The dialect/sql package wraps database/sql behind them.
package dialect
