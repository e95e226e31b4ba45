package crud

import (
	"context"
	"strings"

	"github.com/conduit-lang/entitydao/pkg/orm/dialect"
	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/schema"
)

// Save inserts every mapped column of entity, in declaration order, and
// returns the entity.
//
//	insert into t (name,id) values (?,?)
//
// A single auto-increment primary key that is still zero is left to the
// database, the way the connection's dialect allows:
//
//	mysql, sqlite:  insert into t (id,name) values (NULL,?)  then LastInsertId
//	postgres:       insert into t (id,name) values (default,?) returning id
//	sqlserver:      insert into t (name) output inserted.id values (?)
//
// The assigned value is written back into the entity.
func Save[T any, PT Entity[T]](ctx context.Context, ex *Executor, entity PT, opts ...CallOption) (_ PT, err error) {
	meta := schema.Resolve[T, PT](ex.registry)
	o := collect(opts)

	table, err := tableFor(meta, entity, o)
	if err != nil {
		return nil, err
	}
	fields := meta.Columns()
	if len(fields) == 0 {
		return nil, &ConfigError{Entity: meta.TypeName(), Err: ErrNoColumns}
	}
	connName, err := ex.connForTable(meta.TypeName(), o, table, route.Write)
	if err != nil {
		return nil, err
	}

	key := generatedKey(meta, (*T)(entity))
	strategy := ex.dialect(connName).GeneratedKeys()
	ins := buildInsert(table, columnNames(fields), key, strategy)

	c := ex.begin(ctx, connName, ins.sql, snapshot(fields, (*T)(entity)))
	defer c.finish(&err)

	if err := c.acquire(); err != nil {
		return nil, err
	}
	if err := c.prepare(false); err != nil {
		return nil, err
	}
	args, err := bind(meta, (*T)(entity), ins.bound, make([]any, 0, len(ins.bound)))
	if err != nil {
		return nil, err
	}

	if key == nil {
		if _, err := c.exec(args); err != nil {
			return nil, err
		}
		return entity, nil
	}

	switch strategy {
	case dialect.KeyReturning, dialect.KeyOutput:
		if err := c.queryRow(args, key.Target((*T)(entity))); err != nil {
			return nil, err
		}
	default:
		for i, col := range ins.bound {
			if col == key.Column() {
				args[i] = nil
			}
		}
		res, err := c.exec(args)
		if err != nil {
			return nil, err
		}
		assignGenerated(key, (*T)(entity), res)
	}
	return entity, nil
}

// insert is a rendered insert statement and the columns it binds, in
// placeholder order.
type insert struct {
	sql   string
	bound []string
}

func buildInsert[T any](table string, cols []string, key *schema.FieldDescriptor[T], strategy dialect.KeyStrategy) insert {
	if key == nil || strategy == dialect.KeyLastInsertID {
		return insert{
			sql:   "insert into " + table + " (" + strings.Join(cols, ",") + ") values (" + placeholders(len(cols)) + ")",
			bound: cols,
		}
	}

	bound := make([]string, 0, len(cols)-1)
	values := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == key.Column() {
			values = append(values, "default")
			continue
		}
		bound = append(bound, col)
		values = append(values, "?")
	}

	if strategy == dialect.KeyOutput {
		return insert{
			sql: "insert into " + table + " (" + strings.Join(bound, ",") + ") output inserted." + key.Column() +
				" values (" + placeholders(len(bound)) + ")",
			bound: bound,
		}
	}
	return insert{
		sql: "insert into " + table + " (" + strings.Join(cols, ",") + ") values (" + strings.Join(values, ",") +
			") returning " + key.Column(),
		bound: bound,
	}
}
