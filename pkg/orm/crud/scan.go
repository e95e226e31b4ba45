package crud

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/conduit-lang/entitydao/pkg/orm/schema"
)

// materialize builds one fresh entity per row. Result labels are matched
// case-insensitively against the mapped columns; unmatched columns are
// scanned into a throwaway value. limit <= 0 reads every row.
func materialize[T any](meta *schema.EntityMetadata[T], rows *sql.Rows, limit int) ([]*T, error) {
	labels, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	fields := make([]*schema.FieldDescriptor[T], len(labels))
	for i, label := range labels {
		if fd, ok := meta.Column(label); ok && fd.Scannable() {
			fields[i] = fd
		}
	}

	var out []*T
	for rows.Next() {
		entity := new(T)
		dest := make([]any, len(labels))
		for i, fd := range fields {
			if fd == nil {
				dest[i] = new(any)
				continue
			}
			dest[i] = fd.Target(entity)
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMapping, err)
		}
		out = append(out, entity)
		if limit > 0 && len(out) >= limit {
			break
		}
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// bind reads the values for columns from entity, in order
func bind[T any](meta *schema.EntityMetadata[T], entity *T, columns []string, args []any) ([]any, error) {
	for _, col := range columns {
		fd, ok := meta.Column(col)
		if !ok || !fd.Bindable() {
			return nil, &ConfigError{
				Entity: meta.TypeName(),
				Err:    fmt.Errorf("%w: %s", ErrUnboundColumn, col),
			}
		}
		args = append(args, fd.Value(entity))
	}
	return args, nil
}

func columnNames[T any](fields []*schema.FieldDescriptor[T]) []string {
	names := make([]string, len(fields))
	for i, fd := range fields {
		names[i] = fd.Column()
	}
	return names
}

// whereKeys renders "a=? and b=? " over the primary keys
func whereKeys[T any](pks []*schema.FieldDescriptor[T]) string {
	var sb strings.Builder
	for i, pk := range pks {
		if i > 0 {
			sb.WriteString("and ")
		}
		sb.WriteString(pk.Column())
		sb.WriteString("=? ")
	}
	return sb.String()
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}

// snapshot describes the bindable columns of entity for telemetry
func snapshot[T any](fields []*schema.FieldDescriptor[T], entity *T) string {
	var sb strings.Builder
	sb.WriteByte('{')
	n := 0
	for _, fd := range fields {
		if !fd.Bindable() {
			continue
		}
		if n > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s=%v", fd.Column(), fd.Value(entity))
		n++
	}
	sb.WriteByte('}')
	return sb.String()
}

// describeParams renders a raw parameter list for telemetry
func describeParams(params []any) string {
	return fmt.Sprint(params)
}

// generatedKey returns the single auto-increment primary key of entity
// while it still holds its zero value, so the database assigns it.
func generatedKey[T any](meta *schema.EntityMetadata[T], entity *T) *schema.FieldDescriptor[T] {
	var auto *schema.FieldDescriptor[T]
	for _, pk := range meta.PrimaryKeys() {
		if !pk.AutoIncrement() {
			continue
		}
		if auto != nil {
			// composite generated keys are bound as is
			return nil
		}
		auto = pk
	}
	if auto == nil || !auto.Bindable() || !auto.Scannable() {
		return nil
	}

	v := auto.Value(entity)
	if v != nil && !reflect.ValueOf(v).IsZero() {
		return nil
	}
	return auto
}

// assignGenerated writes the driver's last insert id into key. Drivers
// that report no id leave the entity untouched.
func assignGenerated[T any](key *schema.FieldDescriptor[T], entity *T, res sql.Result) {
	id, err := res.LastInsertId()
	if err != nil || id <= 0 {
		return
	}

	switch p := key.Target(entity).(type) {
	case *int64:
		*p = id
	case *int:
		*p = int(id)
	case *int32:
		*p = int32(id)
	case *uint64:
		*p = uint64(id)
	case *sql.NullInt64:
		*p = sql.NullInt64{Int64: id, Valid: true}
	}
}
