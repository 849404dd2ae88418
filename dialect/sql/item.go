package sql

import (
	"strings"

	"github.com/syssam/molajo/fieldhandler"
)

// Statement kinds.
const (
	SelectQuery = "select"
	InsertQuery = "insert"
	UpdateQuery = "update"
	DeleteQuery = "delete"
	ExecQuery   = "exec"
)

// Predicate connectors.
const (
	AND = "AND"
	OR  = "OR"
)

// Sort directions.
const (
	OrderAsc  = "ASC"
	OrderDesc = "DESC"
)

// Item is one operand: a select column, a table, a predicate side or an
// ORDER/GROUP BY entry.
type Item struct {
	Name     string             // Bare column, table or literal name.
	Prefix   string             // Table alias parsed from "alias.column".
	DataType string             // fieldhandler data type; "column" for references.
	Value    fieldhandler.Value // Sanitized literal, or the verbatim fragment of a special item.
	Alias    string             // Column alias for select lists, table alias for FROM entries.
}

// IsColumn reports whether the item references a column rather than a literal.
func (it Item) IsColumn() bool {
	return it.DataType == "" || it.DataType == fieldhandler.TypeColumn
}

// IsSpecial reports whether the item is a verbatim SQL fragment.
func (it Item) IsSpecial() bool {
	return it.DataType == fieldhandler.TypeSpecial
}

// QualifiedName returns "prefix.name", or the bare name without a prefix.
func (it Item) QualifiedName() string {
	if it.Prefix == "" {
		return it.Name
	}
	return it.Prefix + "." + it.Name
}

// Predicate is one WHERE or HAVING comparison.
type Predicate struct {
	Left      Item
	Condition string // Upper-cased operator.
	Right     Item
	List      []Item // Right-hand list of IN and NOT IN.
	Connector string // AND or OR; joins the predicate to the previous one in its group.
	Group     string // Group label; "" is the default group.
}

// Group is a registered predicate group.
type Group struct {
	Label     string
	Connector string // Joins the group to the previous group.
}

// Order is an ORDER BY entry.
type Order struct {
	Item
	Direction string
}

// PredicateOption configures a predicate added by Where or Having.
type PredicateOption func(*Predicate)

// Or joins the predicate to the previous one with OR.
func Or() PredicateOption {
	return Connector(OR)
}

// Connector sets the connector to the previous predicate.
func Connector(c string) PredicateOption {
	return func(p *Predicate) {
		p.Connector = normalizeConnector(c)
	}
}

// InGroup places the predicate in the labelled group.
func InGroup(label string) PredicateOption {
	return func(p *Predicate) {
		p.Group = label
	}
}

// splitColumn parses "alias.column" into its prefix and name.
func splitColumn(s string) (prefix, name string) {
	s = strings.TrimSpace(s)
	if p, n, ok := strings.Cut(s, "."); ok && p != "" && n != "" {
		return p, n
	}
	return "", s
}

func normalizeConnector(c string) string {
	if strings.EqualFold(strings.TrimSpace(c), OR) {
		return OR
	}
	return AND
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// conditions is the operator allow-list.
var conditions = map[string]bool{
	"=": true, "<>": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true,
	"IN": true, "NOT IN": true, "LIKE": true, "NOT LIKE": true, "IS": true, "IS NOT": true,
}

// normalizeCondition upper-cases the operator and collapses inner whitespace.
func normalizeCondition(c string) string {
	return strings.Join(strings.Fields(strings.ToUpper(c)), " ")
}

// ValidCondition reports whether a comparison operator is accepted by Where and Having.
func ValidCondition(c string) bool {
	return conditions[normalizeCondition(c)]
}

func isList(condition string) bool {
	return condition == "IN" || condition == "NOT IN"
}

// groups is an ordered label -> connector map.
type groups []Group

func (g groups) set(label, connector string) groups {
	for i := range g {
		if g[i].Label == label {
			g[i].Connector = connector
			return g
		}
	}
	return append(g, Group{Label: label, Connector: connector})
}
