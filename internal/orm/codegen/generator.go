package codegen

import (
	"bytes"
	"context"
	"fmt"
	"go/format"
	"os"
	"path/filepath"
	"sort"
	"text/template"
)

const (
	schemaImport   = "github.com/conduit-lang/entitydao/pkg/orm/schema"
	trackingImport = "github.com/conduit-lang/entitydao/pkg/orm/tracking"
)

var entityTemplate = template.Must(template.New("entity").Parse(`// Code generated by daoctl from table {{.Table}}. DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)

// {{.Type}} maps {{if .View}}view{{else}}table{{end}} {{.Table}}.
type {{.Type}} struct {
	tracking.Tracker

{{- range .Fields}}
	{{.Name}} {{.GoType}} ` + "`json:\"{{.Column}}\"`" + `
{{- end}}
}

// Descriptor implements schema.Mapped.
func (*{{.Type}}) Descriptor() *schema.Descriptor[{{.Type}}] {
	return &schema.Descriptor[{{.Type}}]{
		Table: "{{.Table}}",
		Columns: []schema.Column[{{.Type}}]{
{{- range .Fields}}
			schema.Field("{{.Column}}", func(e *{{$.Type}}) *{{.GoType}} { return &e.{{.Name}} }{{if .PrimaryKey}}, schema.PrimaryKey(){{end}}{{if .AutoIncrement}}, schema.AutoIncrement(){{end}}),
{{- end}}
		},
	}
}
{{range .Fields}}
// Set{{.Name}} assigns {{.Column}} and marks it dirty.
func (e *{{$.Type}}) Set{{.Name}}(v {{.GoType}}) {
	tracking.Set(&e.Tracker, "{{.Column}}", &e.{{.Name}}, v)
}
{{end}}`))

// reserved names collide with the embedded tracker or the Descriptor method
var reserved = map[string]bool{
	"Tracker":      true,
	"Descriptor":   true,
	"DirtyColumns": true,
	"ChangeInfo":   true,
}

type entityData struct {
	Package string
	Imports []string
	Type    string
	Table   string
	View    bool
	Fields  []fieldData
}

type fieldData struct {
	Name          string
	Column        string
	GoType        string
	PrimaryKey    bool
	AutoIncrement bool
}

// EntityGenerator renders mapped entity types for introspected tables
type EntityGenerator struct {
	pkg    string
	mapper *TypeMapper
}

// NewEntityGenerator creates a generator emitting package pkg
func NewEntityGenerator(pkg string) *EntityGenerator {
	return &EntityGenerator{pkg: pkg, mapper: NewTypeMapper()}
}

// Generate renders one gofmt'ed Go file for table.
func (g *EntityGenerator) Generate(table *TableInfo) ([]byte, error) {
	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table.Name)
	}

	data := entityData{
		Package: g.pkg,
		Type:    typeName(table.Name),
		Table:   table.Name,
		View:    table.View,
	}

	imports := map[string]bool{schemaImport: true, trackingImport: true}
	seen := make(map[string]bool)
	for _, col := range table.Columns {
		goType, err := g.mapper.MapType(col)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", table.Name, err)
		}
		if goType.Import != "" {
			imports[goType.Import] = true
		}

		name := toPascalCase(col.Name)
		if reserved[name] || seen[name] {
			name += "Col"
		}
		seen[name] = true

		data.Fields = append(data.Fields, fieldData{
			Name:          name,
			Column:        col.Name,
			GoType:        goType.Name,
			PrimaryKey:    col.PrimaryKey,
			AutoIncrement: col.AutoIncrement,
		})
	}
	for imp := range imports {
		data.Imports = append(data.Imports, imp)
	}
	sort.Strings(data.Imports)

	var buf bytes.Buffer
	if err := entityTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", table.Name, err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to format %s: %w", table.Name, err)
	}
	return src, nil
}

// WriteTables introspects each table and writes its entity file into dir,
// returning the written paths.
func (g *EntityGenerator) WriteTables(ctx context.Context, in *Introspector, dir string, tables []string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var written []string
	for _, name := range tables {
		info, err := in.Describe(ctx, name)
		if err != nil {
			return written, err
		}
		src, err := g.Generate(info)
		if err != nil {
			return written, err
		}

		path := filepath.Join(dir, fileName(name))
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
