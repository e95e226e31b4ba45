// Package codegen reads table definitions from a live database and
// generates mapped entity types for them.
package codegen

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/conduit-lang/entitydao/pkg/orm/dialect"
)

// ColumnInfo describes one column of an introspected table
type ColumnInfo struct {
	Name          string
	DataType      string
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
}

// TableInfo describes an introspected table or view
type TableInfo struct {
	Name    string
	View    bool
	Columns []ColumnInfo
}

// PrimaryKeys returns the primary key columns in column order
func (t *TableInfo) PrimaryKeys() []ColumnInfo {
	var pks []ColumnInfo
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pks = append(pks, c)
		}
	}
	return pks
}

// Introspector reads table metadata. SQLite, PostgreSQL and MySQL are
// supported.
type Introspector struct {
	db      *sql.DB
	dialect dialect.Dialect
	schema  string
}

// NewIntrospector creates an introspector for db. schemaName selects the
// PostgreSQL schema (default "public") or MySQL database (default the
// connection's current database); SQLite ignores it.
func NewIntrospector(db *sql.DB, d dialect.Dialect, schemaName string) (*Introspector, error) {
	switch d.Name() {
	case dialect.NameSQLite, dialect.NamePostgres, dialect.NameMySQL:
	default:
		return nil, fmt.Errorf("introspection is not supported for dialect %q", d.Name())
	}
	if schemaName == "" && d.Name() == dialect.NamePostgres {
		schemaName = "public"
	}
	return &Introspector{db: db, dialect: d, schema: schemaName}, nil
}

// Tables lists tables and views without their columns, ordered by name.
// When only is non-empty the result is restricted to those names.
func (in *Introspector) Tables(ctx context.Context, only ...string) ([]TableInfo, error) {
	var (
		query string
		args  []any
	)
	switch in.dialect.Name() {
	case dialect.NameSQLite:
		query = `select name, type from sqlite_master
			where type in ('table', 'view') and name not like 'sqlite_%'
			order by name`
	case dialect.NamePostgres:
		query = `select table_name, table_type from information_schema.tables
			where table_schema = ? order by table_name`
		args = append(args, in.schema)
	case dialect.NameMySQL:
		query = `select table_name, table_type from information_schema.tables
			where table_schema = ` + in.mysqlSchema() + ` order by table_name`
		if in.schema != "" {
			args = append(args, in.schema)
		}
	}

	rows, err := in.db.QueryContext(ctx, in.dialect.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[strings.ToLower(name)] = true
	}

	var tables []TableInfo
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		if len(wanted) > 0 && !wanted[strings.ToLower(name)] {
			continue
		}
		tables = append(tables, TableInfo{
			Name: name,
			View: strings.Contains(strings.ToLower(kind), "view"),
		})
	}
	return tables, rows.Err()
}

// Describe loads the columns of one table.
func (in *Introspector) Describe(ctx context.Context, table string) (*TableInfo, error) {
	var (
		cols []ColumnInfo
		err  error
	)
	switch in.dialect.Name() {
	case dialect.NameSQLite:
		cols, err = in.sqliteColumns(ctx, table)
	case dialect.NamePostgres:
		cols, err = in.postgresColumns(ctx, table)
	case dialect.NameMySQL:
		cols, err = in.mysqlColumns(ctx, table)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found", table)
	}
	return &TableInfo{Name: table, Columns: cols}, nil
}

func (in *Introspector) sqliteColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	// pragma arguments cannot be bound
	quoted := `"` + strings.ReplaceAll(table, `"`, `""`) + `"`
	rows, err := in.db.QueryContext(ctx, "pragma table_info("+quoted+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	pkCount := 0
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull bool
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		if pk > 0 {
			pkCount++
		}
		cols = append(cols, ColumnInfo{
			Name:       name,
			DataType:   strings.ToLower(typ),
			Nullable:   !notNull && pk == 0,
			PrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A single INTEGER PRIMARY KEY column aliases the rowid
	if pkCount == 1 {
		for i := range cols {
			if cols[i].PrimaryKey && cols[i].DataType == "integer" {
				cols[i].AutoIncrement = true
			}
		}
	}
	return cols, nil
}

func (in *Introspector) postgresColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	pks, err := in.postgresPrimaryKeys(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := in.db.QueryContext(ctx, in.dialect.Rebind(`
		select column_name, data_type, is_nullable, coalesce(column_default, ''), is_identity
		from information_schema.columns
		where table_schema = ? and table_name = ?
		order by ordinal_position`), in.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, typ, nullable, dflt, identity string
		if err := rows.Scan(&name, &typ, &nullable, &dflt, &identity); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:          name,
			DataType:      strings.ToLower(typ),
			Nullable:      nullable == "YES",
			PrimaryKey:    pks[name],
			AutoIncrement: identity == "YES" || strings.HasPrefix(dflt, "nextval("),
		})
	}
	return cols, rows.Err()
}

func (in *Introspector) postgresPrimaryKeys(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := in.db.QueryContext(ctx, in.dialect.Rebind(`
		select kcu.column_name
		from information_schema.table_constraints tc
		join information_schema.key_column_usage kcu
			on tc.constraint_name = kcu.constraint_name and tc.table_schema = kcu.table_schema
		where tc.constraint_type = 'PRIMARY KEY' and tc.table_schema = ? and tc.table_name = ?`),
		in.schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pks := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pks[name] = true
	}
	return pks, rows.Err()
}

func (in *Introspector) mysqlColumns(ctx context.Context, table string) ([]ColumnInfo, error) {
	args := []any{}
	if in.schema != "" {
		args = append(args, in.schema)
	}
	args = append(args, table)

	rows, err := in.db.QueryContext(ctx, `
		select column_name, data_type, is_nullable, column_key, extra
		from information_schema.columns
		where table_schema = `+in.mysqlSchema()+` and table_name = ?
		order by ordinal_position`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var name, typ, nullable, key, extra string
		if err := rows.Scan(&name, &typ, &nullable, &key, &extra); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name:          name,
			DataType:      strings.ToLower(typ),
			Nullable:      nullable == "YES",
			PrimaryKey:    key == "PRI",
			AutoIncrement: strings.Contains(strings.ToLower(extra), "auto_increment"),
		})
	}
	return cols, rows.Err()
}

func (in *Introspector) mysqlSchema() string {
	if in.schema == "" {
		return "database()"
	}
	return "?"
}
