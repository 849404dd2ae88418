// Package registry describes tables as declarative documents and resolves
// them into query builder calls.
//
// A Document names a table, its keys, fields, special joins and criteria.
// Documents are configuration: scalars may be written loosely ("1", 1,
// true) and are coerced on read. A Resolver applies a Document to a
// sql.Builder; a Store loads and watches document files; a Service renders
// and caches statements per request.
package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-openapi/inflect"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/syssam/molajo/fieldhandler"
)

// Query objects.
const (
	QueryList     = "list"
	QueryItem     = "item"
	QueryResult   = "result"
	QueryDistinct = "distinct"
)

// Document is a model registry document.
type Document struct {
	Name            string        `yaml:"name"`
	TableName       string        `yaml:"table_name"`
	PrimaryKey      string        `yaml:"primary_key"`
	PrimaryKeyValue any           `yaml:"primary_key_value"`
	NameKey         string        `yaml:"name_key"`
	NameKeyValue    any           `yaml:"name_key_value"`
	PrimaryPrefix   string        `yaml:"primary_prefix"`
	Fields          []FieldDef    `yaml:"fields"`
	Joins           []JoinDef     `yaml:"joins"`
	Criteria        []CriteriaDef `yaml:"criteria"`

	CriteriaStatus              any `yaml:"criteria_status"`
	CriteriaCatalogTypeID       any `yaml:"criteria_catalog_type_id"`
	CriteriaExtensionInstanceID any `yaml:"criteria_extension_instance_id"`
	CriteriaMenuID              any `yaml:"criteria_menu_id"`
	CatalogTypeID               any `yaml:"catalog_type_id"`

	UseSpecialJoins any    `yaml:"use_special_joins"`
	UsePagination   any    `yaml:"use_pagination"`
	ModelOffset     any    `yaml:"model_offset"`
	ModelCount      any    `yaml:"model_count"`
	QueryObject     string `yaml:"query_object"`
}

// FieldDef describes one column of the table.
type FieldDef struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Null    any    `yaml:"null"`
	Default any    `yaml:"default"`
	Display any    `yaml:"display"`
	Hidden  any    `yaml:"hidden"`
	// Select false leaves the field out of the default column list.
	Select any `yaml:"select"`
}

// JoinDef describes a special join.
type JoinDef struct {
	TableName string `yaml:"table_name"`
	Alias     string `yaml:"alias"`
	Select    string `yaml:"select"`   // Comma list of join columns to select.
	JoinTo    string `yaml:"jointo"`   // Comma list of join table keys.
	JoinWith  string `yaml:"joinwith"` // Comma list of primary table keys or tokens.
}

// CriteriaDef is an always-applied predicate.
type CriteriaDef struct {
	Name      string `yaml:"name"`
	Connector string `yaml:"connector"` // Comparison operator, "=" when empty.
	Value     any    `yaml:"value"`
	Name2     string `yaml:"name2"`
	Type      string `yaml:"type"`
}

// Decode reads every document in r. Input may be YAML, a stream of YAML
// documents separated by "---", or JSON.
func Decode(r io.Reader) ([]*Document, error) {
	dec := yaml.NewDecoder(r)
	var docs []*Document
	for {
		d := &Document{}
		err := dec.Decode(d)
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("registry: decode document %d: %w", len(docs)+1, err)
		}
		docs = append(docs, d)
	}
}

// Parse decodes a single document.
func Parse(data []byte) (*Document, error) {
	docs, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(docs) != 1 {
		return nil, fmt.Errorf("registry: expected one document, got %d", len(docs))
	}
	return docs[0], nil
}

// ApplyDefaults fills the keys a resolver relies on: primary_key "id",
// name_key "title", primary_prefix "a", query_object "list", field type
// "string" and a name derived from the table name.
func ApplyDefaults(d *Document) {
	if d.PrimaryKey == "" {
		d.PrimaryKey = "id"
	}
	if d.NameKey == "" {
		d.NameKey = "title"
	}
	if d.PrimaryPrefix == "" {
		d.PrimaryPrefix = "a"
	}
	switch q := strings.ToLower(strings.TrimSpace(d.QueryObject)); q {
	case QueryItem, QueryResult, QueryDistinct:
		d.QueryObject = q
	default:
		d.QueryObject = QueryList
	}
	if d.Name == "" {
		d.Name = NameFromTable(d.TableName)
	}
	for i := range d.Fields {
		if d.Fields[i].Type == "" {
			d.Fields[i].Type = fieldhandler.TypeString
		}
	}
}

// NameFromTable derives a document name from a table name:
// "#__catalog_types" becomes "CatalogType".
func NameFromTable(table string) string {
	t := strings.TrimPrefix(strings.TrimSpace(table), "#__")
	if t == "" {
		return ""
	}
	return inflect.Camelize(inflect.Singularize(t))
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.PrimaryKeyValue = cloneValue(d.PrimaryKeyValue)
	c.NameKeyValue = cloneValue(d.NameKeyValue)
	c.CriteriaStatus = cloneValue(d.CriteriaStatus)
	c.Fields = append([]FieldDef(nil), d.Fields...)
	for i := range c.Fields {
		c.Fields[i].Default = cloneValue(c.Fields[i].Default)
	}
	c.Joins = append([]JoinDef(nil), d.Joins...)
	c.Criteria = append([]CriteriaDef(nil), d.Criteria...)
	for i := range c.Criteria {
		c.Criteria[i].Value = cloneValue(c.Criteria[i].Value)
	}
	return &c
}

func cloneValue(v any) any {
	if l, ok := v.([]any); ok {
		return append([]any(nil), l...)
	}
	return v
}

// UsesSpecialJoins reports whether use_special_joins is set.
func (d *Document) UsesSpecialJoins() bool { return boolValue(d.UseSpecialJoins) }

// UsesPagination reports whether use_pagination is set.
func (d *Document) UsesPagination() bool { return boolValue(d.UsePagination) }

// Offset returns model_offset, or 0 when it is not a number.
func (d *Document) Offset() int { return int(intValue(d.ModelOffset)) }

// Count returns model_count, or 0 when it is not a number.
func (d *Document) Count() int { return int(intValue(d.ModelCount)) }

// HasPrimaryKeyValue reports whether primary_key_value is set and not zero.
func (d *Document) HasPrimaryKeyValue() bool { return present(d.PrimaryKeyValue) }

// HasNameKeyValue reports whether name_key_value is set.
func (d *Document) HasNameKeyValue() bool { return present(d.NameKeyValue) }

// Field returns the definition of the named field.
func (d *Document) Field(name string) (FieldDef, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// Selected reports whether the field belongs to the default column list.
func (f FieldDef) Selected() bool {
	return f.Select == nil || boolValue(f.Select)
}

// IsHidden reports whether the field is flagged hidden.
func (f FieldDef) IsHidden() bool { return boolValue(f.Hidden) }

// IsNullable reports whether the field accepts null.
func (f FieldDef) IsNullable() bool { return boolValue(f.Null) }

func boolValue(v any) bool {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "yes", "on":
			return true
		case "", "no", "off":
			return false
		}
	}
	b, err := cast.ToBoolE(v)
	return err == nil && b
}

// intValue reads an integer in base 10, or returns 0.
func intValue(v any) int64 {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return int64(f)
		}
		return 0
	}
	n, err := cast.ToInt64E(v)
	if err != nil {
		return 0
	}
	return n
}

func stringValue(v any) string {
	switch v.(type) {
	case nil, []any, map[string]any:
		return ""
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func isNumeric(v any) bool {
	s := stringValue(v)
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// present reports whether a scalar is neither empty nor zero.
func present(v any) bool {
	s := stringValue(v)
	return s != "" && s != "0"
}
