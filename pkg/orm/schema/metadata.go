package schema

import (
	"strings"
)

// FieldDescriptor describes one persisted property of T.
type FieldDescriptor[T any] struct {
	property      string
	column        string
	primaryKey    bool
	autoIncrement bool
	value         func(*T) any
	target        func(*T) any
}

// Property returns the property name.
func (f *FieldDescriptor[T]) Property() string { return f.property }

// Column returns the lower-cased column name.
func (f *FieldDescriptor[T]) Column() string { return f.column }

// PrimaryKey reports whether the column is part of the primary key.
func (f *FieldDescriptor[T]) PrimaryKey() bool { return f.primaryKey }

// AutoIncrement reports whether the database generates the value.
func (f *FieldDescriptor[T]) AutoIncrement() bool { return f.autoIncrement }

// Bindable reports whether the descriptor can read the property for binding.
func (f *FieldDescriptor[T]) Bindable() bool { return f.value != nil }

// Scannable reports whether the descriptor can write the property.
func (f *FieldDescriptor[T]) Scannable() bool { return f.target != nil }

// Value reads the property from e.
func (f *FieldDescriptor[T]) Value(e *T) any { return f.value(e) }

// Target returns a scan destination into e.
func (f *FieldDescriptor[T]) Target(e *T) any { return f.target(e) }

// EntityMetadata is the resolved, immutable mapping of T. It is never
// modified after construction and is safe for concurrent readers.
type EntityMetadata[T any] struct {
	typeName    string
	table       string
	columns     []*FieldDescriptor[T]
	byColumn    map[string]*FieldDescriptor[T]
	primaryKeys []*FieldDescriptor[T]
}

// TypeName returns the Go type name the metadata was built for.
func (m *EntityMetadata[T]) TypeName() string { return m.typeName }

// Table returns the declared table name, possibly empty.
func (m *EntityMetadata[T]) Table() string { return m.table }

// Columns returns the descriptors in registration order. The slice must
// not be modified.
func (m *EntityMetadata[T]) Columns() []*FieldDescriptor[T] { return m.columns }

// ColumnNames returns the column names in registration order.
func (m *EntityMetadata[T]) ColumnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.column
	}
	return names
}

// Column looks up a descriptor by column name, ignoring case.
func (m *EntityMetadata[T]) Column(name string) (*FieldDescriptor[T], bool) {
	fd, ok := m.byColumn[strings.ToLower(name)]
	return fd, ok
}

// PrimaryKeys returns the primary key descriptors in declaration order.
// The slice must not be modified.
func (m *EntityMetadata[T]) PrimaryKeys() []*FieldDescriptor[T] { return m.primaryKeys }

// newMetadata builds metadata from a descriptor. A nil descriptor yields
// metadata with no table and no columns.
func newMetadata[T any](typeName string, d *Descriptor[T]) *EntityMetadata[T] {
	m := &EntityMetadata[T]{
		typeName: typeName,
		byColumn: make(map[string]*FieldDescriptor[T]),
	}
	if d == nil {
		return m
	}

	m.table = d.Table
	for _, c := range d.Columns {
		fd := &FieldDescriptor[T]{
			property:      c.Property,
			column:        strings.ToLower(c.Name),
			primaryKey:    c.PrimaryKey,
			autoIncrement: c.AutoIncrement,
			value:         c.Value,
			target:        c.Target,
		}
		if fd.property == "" {
			fd.property = c.Name
		}

		// A redeclared column replaces the earlier descriptor in place.
		if prev, exists := m.byColumn[fd.column]; exists {
			for i, existing := range m.columns {
				if existing == prev {
					m.columns[i] = fd
				}
			}
			m.primaryKeys = without(m.primaryKeys, prev)
			if fd.primaryKey {
				m.primaryKeys = append(m.primaryKeys, fd)
			}
			m.byColumn[fd.column] = fd
			continue
		}

		m.columns = append(m.columns, fd)
		m.byColumn[fd.column] = fd
		if fd.primaryKey {
			m.primaryKeys = append(m.primaryKeys, fd)
		}
	}

	return m
}

func without[T any](list []*FieldDescriptor[T], drop *FieldDescriptor[T]) []*FieldDescriptor[T] {
	out := list[:0]
	for _, fd := range list {
		if fd != drop {
			out = append(out, fd)
		}
	}
	return out
}
