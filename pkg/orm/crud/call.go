package crud

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/entitydao/pkg/orm/stats"
	"github.com/conduit-lang/entitydao/pkg/orm/transaction"
)

// call carries the state of one statement execution from connection
// acquisition to telemetry.
type call struct {
	ex       *Executor
	ctx      context.Context
	connName string
	sql      string
	params   string

	start    time.Time
	acquired time.Duration
	ready    time.Duration
	execTime time.Duration
	rows     int64

	conn   *transaction.Conn
	stmt   *sql.Stmt
	shared bool
}

// begin starts the clock. Errors detected before begin produce no
// telemetry; everything after it is reported by finish.
func (ex *Executor) begin(ctx context.Context, connName, query, params string) *call {
	return &call{
		ex:       ex,
		ctx:      ctx,
		connName: connName,
		sql:      query,
		params:   params,
		start:    time.Now(),
	}
}

func (c *call) acquire() error {
	conn, err := c.ex.conns.Conn(c.ctx, c.connName)
	c.acquired = time.Since(c.start)
	if err != nil {
		return c.fail(err)
	}
	c.conn = conn
	return nil
}

// prepare rebinds the statement for the connection's dialect and
// prepares it. Shared statements go through the batch controller.
func (c *call) prepare(shared bool) error {
	c.sql = c.ex.dialect(c.connName).Rebind(c.sql)

	var (
		stmt *sql.Stmt
		err  error
	)
	if shared && c.ex.batch != nil {
		stmt, err = c.ex.batch.PrepareShared(c.ctx, c.conn, c.sql)
		c.shared = c.ex.batch.SharedStatements(c.ctx)
	} else {
		stmt, err = c.conn.PrepareContext(c.ctx, c.sql)
	}
	if err != nil {
		return c.fail(err)
	}
	c.stmt = stmt
	return nil
}

func (c *call) exec(args []any) (sql.Result, error) {
	c.ready = time.Since(c.start)
	started := time.Now()
	res, err := c.stmt.ExecContext(c.ctx, args...)
	c.execTime = time.Since(started)
	if err != nil {
		return nil, c.fail(err)
	}
	if n, err := res.RowsAffected(); err == nil {
		c.rows = n
	}
	return res, nil
}

func (c *call) query(args []any) (*sql.Rows, error) {
	c.ready = time.Since(c.start)
	started := time.Now()
	rows, err := c.stmt.QueryContext(c.ctx, args...)
	c.execTime = time.Since(started)
	if err != nil {
		return nil, c.fail(err)
	}
	return rows, nil
}

// queryRow runs a statement returning one row and scans its single
// column into dest.
func (c *call) queryRow(args []any, dest any) error {
	c.ready = time.Since(c.start)
	started := time.Now()
	err := c.stmt.QueryRowContext(c.ctx, args...).Scan(dest)
	c.execTime = time.Since(started)
	if err != nil {
		return c.fail(err)
	}
	c.rows = 1
	return nil
}

// fail wraps a driver error with the logical connection name
func (c *call) fail(err error) error {
	return &ExecError{Conn: c.connName, Err: ConvertDBError(err)}
}

// finish releases the statement and connection and reports the record.
// Release failures are logged and never replace the call's outcome.
func (c *call) finish(errp *error) {
	if c.stmt != nil && !c.shared {
		if err := c.stmt.Close(); err != nil {
			c.logRelease("close statement", err)
		}
	}
	if c.conn != nil && c.ex.conns.AutoCommit(c.ctx) {
		if err := c.conn.Close(); err != nil {
			c.logRelease("release connection", err)
		}
	}

	rec := stats.Record{
		ConnName:  c.connName,
		SQL:       c.sql,
		Params:    c.params,
		Rows:      c.rows,
		StartedAt: c.start,
		Acquire:   c.acquired,
		Connect:   c.ready,
		Exec:      c.execTime,
		Total:     time.Since(c.start),
	}
	if c.conn != nil {
		rec.ConnID = c.conn.ID()
	}
	if errp != nil && *errp != nil {
		rec.Err = (*errp).Error()
	}
	c.ex.sink.Record(c.ctx, rec)
}

func (c *call) logRelease(msg string, err error) {
	fields := []zap.Field{
		zap.String("conn", c.connName),
		zap.String("sql", c.sql),
		zap.Error(err),
	}
	if c.conn != nil {
		fields = append(fields, zap.String("conn_id", c.conn.ID()))
	}
	c.ex.logger.Error(msg, fields...)
}
