package dialect

import (
	"strconv"
	"strings"
)

// LimitStyle selects the pagination syntax of a dialect.
type LimitStyle int

const (
	// LimitComma renders "LIMIT offset, limit".
	LimitComma LimitStyle = iota
	// LimitOffset renders "LIMIT limit OFFSET offset".
	LimitOffset
	// OffsetFetch renders "OFFSET offset ROWS FETCH NEXT limit ROWS ONLY".
	OffsetFetch
)

// Policy is the quoting policy of a dialect.
type Policy struct {
	Name       string
	QuoteStart string // Identifier quote opening character.
	QuoteEnd   string // Identifier quote closing character.
	ValueQuote string // Quote wrapped around literal values.
	DateFormat string // Go time layout for date and datetime values.
	NullDate   string // Literal rendered for a null date.
	Limit      LimitStyle

	// EscapeBackslash doubles backslashes in literal values (MySQL).
	EscapeBackslash bool

	// BareNumerics embeds numeric literals without value quotes.
	BareNumerics bool
}

var policies = map[string]Policy{
	MySQL: {
		Name:            MySQL,
		QuoteStart:      "`",
		QuoteEnd:        "`",
		ValueQuote:      "'",
		DateFormat:      "2006-01-02 15:04:05",
		NullDate:        "0000-00-00 00:00:00",
		Limit:           LimitComma,
		EscapeBackslash: true,
	},
	Postgres: {
		Name:       Postgres,
		QuoteStart: `"`,
		QuoteEnd:   `"`,
		ValueQuote: "'",
		DateFormat: "2006-01-02 15:04:05",
		NullDate:   "0001-01-01 00:00:00",
		Limit:      LimitOffset,
	},
	SQLServer: {
		Name:       SQLServer,
		QuoteStart: "[",
		QuoteEnd:   "]",
		ValueQuote: "'",
		DateFormat: "2006-01-02T15:04:05",
		NullDate:   "1900-01-01T00:00:00",
		Limit:      OffsetFetch,
	},
	SQLite: {
		Name:       SQLite,
		QuoteStart: `"`,
		QuoteEnd:   `"`,
		ValueQuote: "'",
		DateFormat: "2006-01-02 15:04:05",
		NullDate:   "0000-00-00 00:00:00",
		Limit:      LimitComma,
	},
}

// PolicyFor returns the built-in policy of the named dialect.
// Names are matched by prefix so wrapped driver names ("sqlite3", "mysql-debug") resolve.
func PolicyFor(name string) (Policy, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if p, ok := policies[name]; ok {
		return p, true
	}
	for _, n := range []string{MySQL, SQLite, Postgres, SQLServer} {
		if strings.HasPrefix(name, n) {
			return policies[n], true
		}
	}
	if name == "mssql" {
		return policies[SQLServer], true
	}
	return Policy{}, false
}

// Default returns the policy used when none is configured.
func Default() Policy {
	return policies[SQLite]
}

// Names returns the built-in dialect names.
func Names() []string {
	return []string{MySQL, Postgres, SQLServer, SQLite}
}

// QuoteIdent quotes a single identifier. The "*" wildcard is never quoted.
func (p Policy) QuoteIdent(name string) string {
	if name == "*" {
		return name
	}
	if p.QuoteEnd != "" {
		name = strings.ReplaceAll(name, p.QuoteEnd, p.QuoteEnd+p.QuoteEnd)
	}
	return p.QuoteStart + name + p.QuoteEnd
}

// QuoteColumn quotes an optionally prefixed column reference.
func (p Policy) QuoteColumn(prefix, name string) string {
	if prefix == "" {
		return p.QuoteIdent(name)
	}
	return p.QuoteIdent(prefix) + "." + p.QuoteIdent(name)
}

// Escape escapes a literal value for use between value quotes.
func (p Policy) Escape(s string) string {
	if !strings.Contains(s, p.ValueQuote) && (!p.EscapeBackslash || !strings.Contains(s, `\`)) {
		return s
	}
	if p.EscapeBackslash {
		s = strings.ReplaceAll(s, `\`, `\\`)
	}
	if p.ValueQuote != "" {
		s = strings.ReplaceAll(s, p.ValueQuote, p.ValueQuote+p.ValueQuote)
	}
	return s
}

// QuoteValue escapes and quotes a literal value.
func (p Policy) QuoteValue(s string) string {
	return p.ValueQuote + p.Escape(s) + p.ValueQuote
}

// Paginate renders the pagination clause, or "" when limit is zero.
func (p Policy) Paginate(offset, limit int) string {
	if limit <= 0 {
		return ""
	}
	off, lim := strconv.Itoa(offset), strconv.Itoa(limit)
	switch p.Limit {
	case LimitOffset:
		return "LIMIT " + lim + " OFFSET " + off
	case OffsetFetch:
		return "OFFSET " + off + " ROWS FETCH NEXT " + lim + " ROWS ONLY"
	default:
		return "LIMIT " + off + ", " + lim
	}
}
