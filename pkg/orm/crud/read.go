package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/schema"
)

// Load fetches the entity whose first primary key column equals id. A
// missing row yields (nil, nil).
//
// Only the first primary key column is used, even for composite keys:
//
//	select * from t where id=?
func Load[T any, PT schema.Model[T]](ctx context.Context, ex *Executor, id any, opts ...CallOption) (_ PT, err error) {
	meta := schema.Resolve[T, PT](ex.registry)
	o := collect(opts)

	table, err := tableFor(meta, PT(new(T)), o)
	if err != nil {
		return nil, err
	}
	pks := meta.PrimaryKeys()
	if len(pks) == 0 {
		return nil, &ConfigError{Entity: meta.TypeName(), Err: ErrNoPrimaryKey}
	}
	// Routed like a write so a load right after a save sees the row.
	connName, err := ex.connForTable(meta.TypeName(), o, table, route.Write)
	if err != nil {
		return nil, err
	}

	query := "select * from " + table + " where " + pks[0].Column() + "=? "
	c := ex.begin(ctx, connName, query, fmt.Sprint(id))
	defer c.finish(&err)

	entity, err := single(c, meta, []any{id})
	if err != nil {
		return nil, err
	}
	return PT(entity), nil
}

// ListSingle runs caller SQL and maps the first row onto a fresh entity.
// No rows yields (nil, nil).
func ListSingle[T any, PT schema.Model[T]](ctx context.Context, ex *Executor, query string, params []any, opts ...CallOption) (_ PT, err error) {
	meta := schema.Resolve[T, PT](ex.registry)
	o := collect(opts)

	connName, err := ex.connForSQL(meta.TypeName(), o, query, route.Read)
	if err != nil {
		return nil, err
	}

	c := ex.begin(ctx, connName, query, describeParams(params))
	defer c.finish(&err)

	entity, err := single(c, meta, params)
	if err != nil {
		return nil, err
	}
	return PT(entity), nil
}

func single[T any](c *call, meta *schema.EntityMetadata[T], args []any) (*T, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	if err := c.prepare(false); err != nil {
		return nil, err
	}
	rows, err := c.query(args)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := materialize(meta, rows, 1)
	if err != nil {
		return nil, c.fail(err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	c.rows = 1
	return items[0], nil
}
