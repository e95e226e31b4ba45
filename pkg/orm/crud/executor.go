// Package crud executes entity INSERT, SELECT, UPDATE and DELETE
// statements and raw SQL projected onto entity types.
//
// Every operation is one unit of work: resolve metadata, acquire a
// connection, prepare, bind, execute, materialize, release and report a
// stats.Record. Operations are generic functions taking the Executor, since
// Go methods cannot carry type parameters.
package crud

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/conduit-lang/entitydao/pkg/orm/dialect"
	"github.com/conduit-lang/entitydao/pkg/orm/route"
	"github.com/conduit-lang/entitydao/pkg/orm/schema"
	"github.com/conduit-lang/entitydao/pkg/orm/stats"
	"github.com/conduit-lang/entitydao/pkg/orm/tracking"
	"github.com/conduit-lang/entitydao/pkg/orm/transaction"
)

// NoChanges is returned by Update when the entity has no dirty columns.
// It is distinct from an update that matched zero rows.
const NoChanges int64 = -1

// ConnProvider hands out connections and owns commit boundaries
type ConnProvider interface {
	Conn(ctx context.Context, name string) (*transaction.Conn, error)
	// AutoCommit reports whether the caller releases connections it
	// obtained for ctx.
	AutoCommit(ctx context.Context) bool
}

// BatchController prepares statements that may be shared across calls
type BatchController interface {
	PrepareShared(ctx context.Context, conn *transaction.Conn, query string) (*sql.Stmt, error)
	// SharedStatements reports whether statements from PrepareShared are
	// owned by the controller and must not be closed by the caller.
	SharedStatements(ctx context.Context) bool
}

// DialectProvider resolves the dialect of a logical connection
type DialectProvider interface {
	Dialect(name string) dialect.Dialect
}

// Router resolves a logical connection when a call names none
type Router interface {
	Route(table string, access route.Access) string
	RouteSQL(query string, access route.Access) string
}

// Entity is the constraint for operations that write an entity back:
// a mapped pointer type that tracks its dirty columns.
type Entity[T any] interface {
	schema.Model[T]
	tracking.Trackable
}

// TableNamer is implemented by entities that choose their table per
// instance, for example sharded tables. An empty name falls back to the
// declared table.
type TableNamer interface {
	EntityTableName() string
}

// Executor runs entity operations. It holds no per-call state and is safe
// for concurrent use.
type Executor struct {
	registry *schema.Registry
	conns    ConnProvider
	batch    BatchController
	dialects DialectProvider
	router   Router
	sink     stats.Sink
	logger   *zap.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithRegistry shares a metadata registry between executors
func WithRegistry(r *schema.Registry) Option {
	return func(ex *Executor) { ex.registry = r }
}

// WithBatch sets the shared statement controller
func WithBatch(b BatchController) Option {
	return func(ex *Executor) { ex.batch = b }
}

// WithDialects sets the dialect provider
func WithDialects(d DialectProvider) Option {
	return func(ex *Executor) { ex.dialects = d }
}

// WithRouter sets the connection router
func WithRouter(r Router) Option {
	return func(ex *Executor) { ex.router = r }
}

// WithSink sets the telemetry sink
func WithSink(s stats.Sink) Option {
	return func(ex *Executor) { ex.sink = s }
}

// WithLogger sets the logger for release failures
func WithLogger(l *zap.Logger) Option {
	return func(ex *Executor) { ex.logger = l }
}

// NewExecutor creates an executor over conns. When conns also implements
// BatchController or DialectProvider, as *transaction.Manager does, it is
// used for those roles unless an option overrides it.
func NewExecutor(conns ConnProvider, opts ...Option) *Executor {
	ex := &Executor{conns: conns}
	if b, ok := conns.(BatchController); ok {
		ex.batch = b
	}
	if d, ok := conns.(DialectProvider); ok {
		ex.dialects = d
	}
	for _, opt := range opts {
		opt(ex)
	}

	if ex.registry == nil {
		ex.registry = schema.NewRegistry()
	}
	if ex.sink == nil {
		ex.sink = stats.Nop{}
	}
	if ex.logger == nil {
		ex.logger = zap.NewNop()
	}
	return ex
}

// Registry returns the metadata registry
func (ex *Executor) Registry() *schema.Registry {
	return ex.registry
}

func (ex *Executor) dialect(conn string) dialect.Dialect {
	if ex.dialects == nil {
		return dialect.New("")
	}
	return ex.dialects.Dialect(conn)
}

// CallOption adjusts a single operation
type CallOption func(*callOptions)

type callOptions struct {
	table string
	conn  string
}

// Table overrides the table name for one call
func Table(name string) CallOption {
	return func(o *callOptions) { o.table = name }
}

// Conn forces the logical connection for one call, bypassing routing
func Conn(name string) CallOption {
	return func(o *callOptions) { o.conn = name }
}

func collect(opts []CallOption) callOptions {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// tableFor applies the precedence call option, entity override, declared
// table.
func tableFor[T any](meta *schema.EntityMetadata[T], entity any, o callOptions) (string, error) {
	if o.table != "" {
		return o.table, nil
	}
	if n, ok := entity.(TableNamer); ok {
		if name := n.EntityTableName(); name != "" {
			return name, nil
		}
	}
	if meta.Table() != "" {
		return meta.Table(), nil
	}
	return "", &ConfigError{Entity: meta.TypeName(), Err: ErrNoTable}
}

func (ex *Executor) connForTable(entity string, o callOptions, table string, access route.Access) (string, error) {
	name := o.conn
	if name == "" && ex.router != nil {
		name = ex.router.Route(table, access)
	}
	if name == "" {
		return "", &ConfigError{Entity: entity, Err: ErrNoConnection}
	}
	return name, nil
}

func (ex *Executor) connForSQL(entity string, o callOptions, query string, access route.Access) (string, error) {
	name := o.conn
	if name == "" && ex.router != nil {
		name = ex.router.RouteSQL(query, access)
	}
	if name == "" {
		return "", &ConfigError{Entity: entity, Err: ErrNoConnection}
	}
	return name, nil
}
