package crud

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/conduit-lang/entitydao/pkg/orm/route"
)

// Exec runs a raw statement and returns the number of rows affected.
// Statements go through the shared preparation path, so inside a batch
// transaction repeated statements reuse one prepared statement.
func Exec(ctx context.Context, ex *Executor, query string, params []any, opts ...CallOption) (_ int64, err error) {
	o := collect(opts)
	connName, err := ex.connForSQL("", o, query, route.Write)
	if err != nil {
		return 0, err
	}

	c := ex.begin(ctx, connName, query, describeParams(params))
	defer c.finish(&err)

	if err := c.acquire(); err != nil {
		return 0, err
	}
	if err := c.prepare(true); err != nil {
		return 0, err
	}
	if _, err := c.exec(params); err != nil {
		return 0, err
	}
	return c.rows, nil
}

// QueryValue runs a query and scans the first column of the first row
// into V. The bool is false when the query returned no rows.
func QueryValue[V any](ctx context.Context, ex *Executor, query string, params []any, opts ...CallOption) (_ V, _ bool, err error) {
	var zero V
	o := collect(opts)
	connName, err := ex.connForSQL("", o, query, route.Read)
	if err != nil {
		return zero, false, err
	}

	c := ex.begin(ctx, connName, query, describeParams(params))
	defer c.finish(&err)

	if err := c.acquire(); err != nil {
		return zero, false, err
	}
	if err := c.prepare(false); err != nil {
		return zero, false, err
	}
	rows, err := c.query(params)
	if err != nil {
		return zero, false, err
	}
	defer rows.Close()

	v, ok, err := scanValue[V](rows)
	if err != nil {
		return zero, false, c.fail(err)
	}
	if ok {
		c.rows = 1
	}
	return v, ok, nil
}

func scanValue[V any](rows *sql.Rows) (V, bool, error) {
	var v V
	if !rows.Next() {
		return v, false, rows.Err()
	}
	cols, err := rows.Columns()
	if err != nil {
		return v, false, err
	}
	dest := make([]any, len(cols))
	dest[0] = &v
	for i := 1; i < len(dest); i++ {
		dest[i] = new(any)
	}
	if err := rows.Scan(dest...); err != nil {
		return v, false, fmt.Errorf("%w: %w", ErrMapping, err)
	}
	return v, true, rows.Err()
}

// Array wraps a slice so it binds as a single PostgreSQL array parameter,
// for queries like "where id = any(?)".
func Array(a any) any {
	return pq.Array(a)
}
