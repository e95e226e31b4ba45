package crud

import (
	"context"

	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/schema"
)

// Delete removes the row matching every primary key of entity and returns
// the number of rows affected.
//
//	delete from t where id=? and k=?
func Delete[T any, PT Entity[T]](ctx context.Context, ex *Executor, entity PT, opts ...CallOption) (_ int64, err error) {
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

	query := "delete from " + table + " where " + whereKeys(pks)
	c := ex.begin(ctx, connName, query, "")
	defer c.finish(&err)

	if err := c.acquire(); err != nil {
		return 0, err
	}
	if err := c.prepare(true); err != nil {
		return 0, err
	}
	args, err := bind(meta, (*T)(entity), columnNames(pks), make([]any, 0, len(pks)))
	if err != nil {
		return 0, err
	}
	if _, err := c.exec(args); err != nil {
		return 0, err
	}
	return c.rows, nil
}
