package crud

import (
	"context"
	"strings"

	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/schema"
)

// Update writes the entity's dirty columns and returns the number of rows
// affected. An entity without dirty columns is not sent to the database
// and yields NoChanges.
//
// Dirty column values bind before the primary key values:
//
//	update t set name=?,age=? where id=?
//
// The dirty set is left as is; callers reset it after a successful write.
func Update[T any, PT Entity[T]](ctx context.Context, ex *Executor, entity PT, opts ...CallOption) (_ int64, err error) {
	dirty := entity.DirtyColumns()
	if len(dirty) == 0 {
		return NoChanges, nil
	}

	meta := schema.Resolve[T, PT](ex.registry)
	o := collect(opts)

	table, err := tableFor(meta, entity, o)
	if err != nil {
		return 0, err
	}
	pks := meta.PrimaryKeys()
	if len(pks) == 0 {
		return 0, &ConfigError{Entity: meta.TypeName(), Err: ErrNoPrimaryKey}
	}
	connName, err := ex.connForTable(meta.TypeName(), o, table, route.Write)
	if err != nil {
		return 0, err
	}

	set := make([]string, len(dirty))
	for i, col := range dirty {
		set[i] = col + "=?"
	}
	query := "update " + table + " set " + strings.Join(set, ",") + " where " + whereKeys(pks)

	c := ex.begin(ctx, connName, query, entity.ChangeInfo())
	defer c.finish(&err)

	if err := c.acquire(); err != nil {
		return 0, err
	}
	if err := c.prepare(true); err != nil {
		return 0, err
	}
	args, err := bind(meta, (*T)(entity), dirty, make([]any, 0, len(dirty)+len(pks)))
	if err != nil {
		return 0, err
	}
	args, err = bind(meta, (*T)(entity), columnNames(pks), args)
	if err != nil {
		return 0, err
	}
	if _, err := c.exec(args); err != nil {
		return 0, err
	}
	return c.rows, nil
}
