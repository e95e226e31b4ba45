package crud

import (
	"context"
	"strings"

	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/schema"
)

// DataList is one page of entities.
type DataList[T any] struct {
	Items  []*T  `json:"items"`
	Offset int   `json:"offset"`
	Limit  int   `json:"limit"`
	Total  int64 `json:"total"`
}

// Page describes the window a List call fetches.
type Page struct {
	Offset int
	Limit  int
	// Count runs a separate count(1) over the unpaged query. Total stays
	// zero otherwise.
	Count bool
}

// Paged reports whether the page triggers pagination rewriting
func (p Page) Paged() bool {
	return p.Offset >= 0 && p.Limit > 0
}

// Unpaged fetches every row without counting.
var Unpaged = Page{Offset: -1}

// List runs caller SQL and maps every row onto a fresh entity. When page
// is paged the SQL is rewritten for the connection's dialect and the
// offset and limit bind after params. Unmapped result columns are
// ignored.
func List[T any, PT schema.Model[T]](ctx context.Context, ex *Executor, query string, params []any, page Page, opts ...CallOption) (_ *DataList[T], err error) {
	meta := schema.Resolve[T, PT](ex.registry)
	o := collect(opts)

	connName, err := ex.connForSQL(meta.TypeName(), o, query, route.Read)
	if err != nil {
		return nil, err
	}

	out := &DataList[T]{Offset: page.Offset, Limit: page.Limit}
	if page.Count {
		total, _, err := QueryValue[int64](ctx, ex, countSQL(query), params, Conn(connName))
		if err != nil {
			return nil, err
		}
		out.Total = total
	}

	args := params
	if page.Paged() {
		paged := ex.dialect(connName).Paginate(query, page.Offset, page.Limit)
		query = paged.SQL
		args = paged.Args(params)
	}

	c := ex.begin(ctx, connName, query, describeParams(args))
	defer c.finish(&err)

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

	items, err := materialize(meta, rows, 0)
	if err != nil {
		return nil, c.fail(err)
	}
	c.rows = int64(len(items))
	out.Items = items
	return out, nil
}

func countSQL(query string) string {
	query = strings.TrimRight(strings.TrimSpace(query), ";")
	return "select count(1) from (" + query + ") as subquery"
}
