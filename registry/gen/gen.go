// Package gen generates Go constants from registry documents.
//
// Each document becomes one file holding its registry name, table, prefix,
// keys and qualified column names, so application code can refer to
// registry columns without string literals:
//
//	g := gen.New("model", "internal/model")
//	paths, err := g.Generate(ctx, store.Documents())
//
// For a document named Content with fields id and title the file declares
// ContentRegistry, ContentTable, ContentPrefix, ContentPrimaryKey,
// ContentNameKey, ContentFieldID, ContentFieldTitle and ContentColumns.
package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"

	"github.com/syssam/molajo/registry"
)

// DefaultHeader is the header comment of generated files.
const DefaultHeader = "Code generated by molajo-sql gen. DO NOT EDIT."

// Generator writes one Go file per registry document.
type Generator struct {
	pkg     string
	dir     string
	header  string
	workers int
}

// Option configures a Generator.
type Option func(*Generator)

// WithHeader sets the header comment of generated files.
func WithHeader(h string) Option {
	return func(g *Generator) {
		g.header = h
	}
}

// WithWorkers sets the number of files written in parallel.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// New returns a Generator writing package pkg into dir.
func New(pkg, dir string, opts ...Option) *Generator {
	g := &Generator{pkg: pkg, dir: dir, header: DefaultHeader, workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FileName returns the name of the file generated for doc.
func FileName(doc *registry.Document) string {
	return inflect.Underscore(docName(doc)) + ".go"
}

// File builds the jennifer file of doc.
func (g *Generator) File(doc *registry.Document) *jen.File {
	d := doc.Clone()
	registry.ApplyDefaults(d)
	name := pascal(d.Name)
	qualify := func(col string) string {
		if strings.Contains(col, ".") {
			return col
		}
		return d.PrimaryPrefix + "." + col
	}

	f := jen.NewFile(g.pkg)
	if g.header != "" {
		f.HeaderComment(g.header)
	}

	var columns []jen.Code
	seen := make(map[string]bool)
	f.Const().DefsFunc(func(defs *jen.Group) {
		defs.Commentf("%sRegistry is the registry name of %s.", name, d.Name)
		defs.Id(name + "Registry").Op("=").Lit(d.Name)
		defs.Commentf("%sTable holds the table name of %s.", name, d.Name)
		defs.Id(name + "Table").Op("=").Lit(d.TableName)
		defs.Commentf("%sPrefix is the alias of the %s table.", name, d.Name)
		defs.Id(name + "Prefix").Op("=").Lit(d.PrimaryPrefix)
		defs.Id(name + "PrimaryKey").Op("=").Lit(qualify(d.PrimaryKey))
		defs.Id(name + "NameKey").Op("=").Lit(qualify(d.NameKey))

		for _, fd := range d.Fields {
			field := strings.TrimSpace(fd.Name)
			if field == "" {
				continue
			}
			id := name + "Field" + pascal(field)
			if seen[id] {
				continue
			}
			seen[id] = true
			defs.Commentf("%s holds the %s column (%s).", id, field, fd.Type)
			defs.Id(id).Op("=").Lit(qualify(field))
			if fd.Selected() {
				columns = append(columns, jen.Id(id))
			}
		}

		for _, j := range d.Joins {
			alias := strings.TrimSpace(j.Alias)
			if alias == "" || strings.TrimSpace(j.TableName) == "" {
				continue
			}
			id := name + "Join" + pascal(alias)
			if seen[id] {
				continue
			}
			seen[id] = true
			defs.Commentf("%s holds the table joined as %s.", id, alias)
			defs.Id(id).Op("=").Lit(j.TableName)
		}
	})

	f.Commentf("%sColumns lists the columns %s selects by default.", name, d.Name)
	f.Var().Id(name + "Columns").Op("=").Index().String().Values(columns...)
	return f
}

// Render returns the formatted source of the file generated for doc.
func (g *Generator) Render(doc *registry.Document) ([]byte, error) {
	if docName(doc) == "" {
		return nil, fmt.Errorf("gen: document has neither name nor table_name")
	}
	var buf bytes.Buffer
	if err := g.File(doc).Render(&buf); err != nil {
		return nil, fmt.Errorf("gen: render %s: %w", docName(doc), err)
	}
	src, err := imports.Process(FileName(doc), buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("gen: format %s: %w", docName(doc), err)
	}
	return src, nil
}

// Generate writes the file of every document and returns the written paths
// in document order.
func (g *Generator) Generate(ctx context.Context, docs []*registry.Document) ([]string, error) {
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return nil, fmt.Errorf("gen: create output directory: %w", err)
	}
	paths := make([]string, len(docs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, doc := range docs {
		i, doc := i, doc
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := g.Render(doc)
			if err != nil {
				return err
			}
			path := filepath.Join(g.dir, FileName(doc))
			if err := os.WriteFile(path, src, 0o644); err != nil {
				return fmt.Errorf("gen: write %s: %w", path, err)
			}
			paths[i] = path
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

func docName(doc *registry.Document) string {
	if doc.Name != "" {
		return doc.Name
	}
	return registry.NameFromTable(doc.TableName)
}

var initialisms = map[string]bool{
	"api": true, "html": true, "http": true, "id": true, "ip": true, "json": true,
	"sql": true, "uid": true, "url": true, "uuid": true, "xml": true,
}

// pascal converts snake or kebab case to an exported Go identifier:
// "catalog_type_id" becomes "CatalogTypeID".
func pascal(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	var b strings.Builder
	for _, w := range words {
		if initialisms[strings.ToLower(w)] {
			b.WriteString(strings.ToUpper(w))
			continue
		}
		b.WriteString(inflect.Capitalize(w))
	}
	return b.String()
}
