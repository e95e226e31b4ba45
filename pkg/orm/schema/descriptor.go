// Package schema maps Go entity types to table metadata.
//
// Mapped types declare their table and columns statically through a
// Descriptor; the Registry turns that declaration into immutable
// EntityMetadata the first time the type is used and keeps it for the
// lifetime of the registry.
package schema

// Mapped is implemented by every persistable entity type. Descriptor is
// called on a zero value, so it must not depend on instance state.
type Mapped[T any] interface {
	Descriptor() *Descriptor[T]
}

// Model is the constraint used by generic operations that need both the
// entity type and its pointer form.
type Model[T any] interface {
	*T
	Mapped[T]
}

// Descriptor is the static declaration of a mapped type.
type Descriptor[T any] struct {
	// Table may be empty; callers then have to supply a table per call.
	Table string
	// Columns are registered in declaration order. That order drives
	// INSERT column lists.
	Columns []Column[T]
}

// Column declares one persisted property.
type Column[T any] struct {
	Name          string
	Property      string
	PrimaryKey    bool
	AutoIncrement bool

	// Value reads the property for statement binding.
	Value func(*T) any
	// Target returns a scan destination pointing into the entity.
	Target func(*T) any
}

// ColumnOption adjusts a column declared with Field.
type ColumnOption func(*columnFlags)

type columnFlags struct {
	property      string
	primaryKey    bool
	autoIncrement bool
}

// PrimaryKey marks the column as part of the primary key. Primary keys
// keep their declaration order.
func PrimaryKey() ColumnOption {
	return func(f *columnFlags) { f.primaryKey = true }
}

// AutoIncrement marks the column as generated by the database.
func AutoIncrement() ColumnOption {
	return func(f *columnFlags) { f.autoIncrement = true }
}

// Property overrides the property name reported in metadata. It defaults
// to the column name.
func Property(name string) ColumnOption {
	return func(f *columnFlags) { f.property = name }
}

// Field declares a column backed by the struct field returned by ptr.
// The accessor pair is derived from ptr, so the value type is checked at
// compile time:
//
//	schema.Field("id", func(u *User) *int64 { return &u.ID }, schema.PrimaryKey())
func Field[T, V any](name string, ptr func(*T) *V, opts ...ColumnOption) Column[T] {
	flags := columnFlags{property: name}
	for _, opt := range opts {
		opt(&flags)
	}

	return Column[T]{
		Name:          name,
		Property:      flags.property,
		PrimaryKey:    flags.primaryKey,
		AutoIncrement: flags.autoIncrement,
		Value:         func(e *T) any { return *ptr(e) },
		Target:        func(e *T) any { return ptr(e) },
	}
}

// Embed lifts the columns of an embedded struct into the outer type, so a
// base entity can share its columns with the types that embed it.
func Embed[T, E any](get func(*T) *E, d *Descriptor[E]) []Column[T] {
	if d == nil {
		return nil
	}

	cols := make([]Column[T], 0, len(d.Columns))
	for _, c := range d.Columns {
		c := c
		lifted := Column[T]{
			Name:          c.Name,
			Property:      c.Property,
			PrimaryKey:    c.PrimaryKey,
			AutoIncrement: c.AutoIncrement,
		}
		if c.Value != nil {
			lifted.Value = func(e *T) any { return c.Value(get(e)) }
		}
		if c.Target != nil {
			lifted.Target = func(e *T) any { return c.Target(get(e)) }
		}
		cols = append(cols, lifted)
	}
	return cols
}
