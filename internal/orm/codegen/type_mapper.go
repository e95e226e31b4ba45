package codegen

import (
	"fmt"
	"strings"
)

// GoType is the Go rendering of a column type
type GoType struct {
	Name string
	// Import is the package the type needs, or "".
	Import string
}

// TypeMapper maps SQL column types to Go field types
type TypeMapper struct{}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// MapType converts a column to its Go field type. Nullable columns map to
// the database/sql Null wrappers.
func (tm *TypeMapper) MapType(col ColumnInfo) (GoType, error) {
	base, err := tm.mapBaseType(col.DataType)
	if err != nil {
		return GoType{}, fmt.Errorf("column %s: %w", col.Name, err)
	}
	if !col.Nullable || col.PrimaryKey {
		return base, nil
	}
	return tm.MapNullability(base), nil
}

// MapNullability returns the nullable form of a base type
func (tm *TypeMapper) MapNullability(base GoType) GoType {
	switch base.Name {
	case "string":
		return GoType{Name: "sql.NullString", Import: "database/sql"}
	case "int64":
		return GoType{Name: "sql.NullInt64", Import: "database/sql"}
	case "int32":
		return GoType{Name: "sql.NullInt32", Import: "database/sql"}
	case "int16":
		return GoType{Name: "sql.NullInt16", Import: "database/sql"}
	case "float64":
		return GoType{Name: "sql.NullFloat64", Import: "database/sql"}
	case "bool":
		return GoType{Name: "sql.NullBool", Import: "database/sql"}
	case "time.Time":
		return GoType{Name: "sql.NullTime", Import: "database/sql"}
	default:
		// []byte already has a nil state
		return base
	}
}

// mapBaseType maps a lower-cased SQL type, ignoring any length or
// precision suffix.
func (tm *TypeMapper) mapBaseType(dataType string) (GoType, error) {
	t := strings.ToLower(strings.TrimSpace(dataType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimSuffix(t, " unsigned")

	switch t {
	case "bigint", "int8", "bigserial", "serial8", "integer", "int", "int4", "serial", "serial4", "mediumint":
		return GoType{Name: "int64"}, nil

	case "smallint", "int2", "smallserial", "tinyint", "year":
		return GoType{Name: "int32"}, nil

	case "real", "float", "float4", "float8", "double", "double precision", "numeric", "decimal", "number", "money":
		return GoType{Name: "float64"}, nil

	case "boolean", "bool", "bit":
		return GoType{Name: "bool"}, nil

	case "date", "datetime", "timestamp", "time",
		"timestamp without time zone", "timestamp with time zone", "timestamptz",
		"time without time zone", "time with time zone":
		return GoType{Name: "time.Time", Import: "time"}, nil

	case "blob", "bytea", "binary", "varbinary", "tinyblob", "mediumblob", "longblob":
		return GoType{Name: "[]byte"}, nil

	case "text", "varchar", "char", "character", "character varying", "nvarchar", "nchar",
		"clob", "tinytext", "mediumtext", "longtext", "uuid", "json", "jsonb", "enum", "set",
		"citext", "inet", "xml", "interval", "":
		// SQLite columns without a declared type have text affinity
		return GoType{Name: "string"}, nil

	default:
		return GoType{}, fmt.Errorf("unsupported type: %s", dataType)
	}
}
