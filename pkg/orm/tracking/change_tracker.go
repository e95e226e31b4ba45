// Package tracking provides dirty-column tracking for entities.
// It records which columns were written since an entity was loaded or
// constructed so that UPDATE statements only touch those columns.
package tracking

import (
	"fmt"
	"reflect"
	"strings"
)

// Trackable is the capability update and save operations rely on.
type Trackable interface {
	// DirtyColumns returns the modified columns in first-write order, or
	// nil when nothing changed.
	DirtyColumns() []string
	// ChangeInfo describes the modified values for telemetry.
	ChangeInfo() string
}

// FieldChange represents a change to a single column
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// Tracker records column writes on an entity. Embed it by value in entity
// structs; the zero value is ready to use. A Tracker is not safe for
// concurrent use, just like the entity that embeds it.
type Tracker struct {
	order   []string
	changes map[string]*FieldChange
}

// Set assigns value to field and records the write under column.
//
//	func (u *User) SetName(v string) { tracking.Set(&u.Tracker, "name", &u.Name, v) }
func Set[V any](t *Tracker, column string, field *V, value V) {
	old := *field
	*field = value
	t.Track(column, old, value)
}

// Track records that column changed from oldValue to newValue. Writing a
// column back to the value it had before its first tracked write removes
// it from the dirty set.
func (t *Tracker) Track(column string, oldValue, newValue interface{}) {
	column = strings.ToLower(column)
	if t.changes == nil {
		t.changes = make(map[string]*FieldChange)
	}

	if change, ok := t.changes[column]; ok {
		if deepEqual(change.OldValue, newValue) {
			t.remove(column)
			return
		}
		change.NewValue = newValue
		return
	}

	if deepEqual(oldValue, newValue) {
		return
	}

	t.changes[column] = &FieldChange{
		Field:    column,
		OldValue: oldValue,
		NewValue: newValue,
	}
	t.order = append(t.order, column)
}

// Mark flags column as dirty without value bookkeeping.
func (t *Tracker) Mark(column string) {
	column = strings.ToLower(column)
	if t.changes == nil {
		t.changes = make(map[string]*FieldChange)
	}
	if _, ok := t.changes[column]; ok {
		return
	}
	t.changes[column] = &FieldChange{Field: column}
	t.order = append(t.order, column)
}

func (t *Tracker) remove(column string) {
	delete(t.changes, column)
	for i, c := range t.order {
		if c == column {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// deepEqual compares two values for equality, handling nil and different types
func deepEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// Changed returns true if the specified column has changed
func (t *Tracker) Changed(column string) bool {
	_, ok := t.changes[strings.ToLower(column)]
	return ok
}

// ChangedFields returns the changed columns in first-write order.
func (t *Tracker) ChangedFields() []string {
	fields := make([]string, len(t.order))
	copy(fields, t.order)
	return fields
}

// DirtyColumns implements Trackable.
func (t *Tracker) DirtyColumns() []string {
	if len(t.order) == 0 {
		return nil
	}
	return t.ChangedFields()
}

// PreviousValue returns the value a column had before its first tracked write
func (t *Tracker) PreviousValue(column string) interface{} {
	if change, ok := t.changes[strings.ToLower(column)]; ok {
		return change.OldValue
	}
	return nil
}

// GetChange returns the FieldChange for a specific column, or nil if unchanged
func (t *Tracker) GetChange(column string) *FieldChange {
	return t.changes[strings.ToLower(column)]
}

// HasChanges returns true if any column has changed
func (t *Tracker) HasChanges() bool {
	return len(t.order) > 0
}

// ChangedTo returns true if the column changed to the specified value
func (t *Tracker) ChangedTo(column string, value interface{}) bool {
	change, ok := t.changes[strings.ToLower(column)]
	if !ok {
		return false
	}
	return deepEqual(change.NewValue, value)
}

// ChangedFrom returns true if the column changed from the specified value
func (t *Tracker) ChangedFrom(column string, value interface{}) bool {
	change, ok := t.changes[strings.ToLower(column)]
	if !ok {
		return false
	}
	return deepEqual(change.OldValue, value)
}

// Reset clears all tracked changes.
// Callers invoke it after a successful write-back.
func (t *Tracker) Reset() {
	t.order = nil
	t.changes = nil
}

// GetChangedData returns the changed columns with their new values
func (t *Tracker) GetChangedData() map[string]interface{} {
	result := make(map[string]interface{}, len(t.changes))
	for column, change := range t.changes {
		result[column] = change.NewValue
	}
	return result
}

// ChangeInfo implements Trackable.
func (t *Tracker) ChangeInfo() string {
	if len(t.order) == 0 {
		return ""
	}

	var b strings.Builder
	for i, column := range t.order {
		if i > 0 {
			b.WriteString(", ")
		}
		change := t.changes[column]
		fmt.Fprintf(&b, "%s: %s => %s", column, describe(change.OldValue), describe(change.NewValue))
	}
	return b.String()
}

func describe(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "nil"
	case string:
		return fmt.Sprintf("%q", val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
