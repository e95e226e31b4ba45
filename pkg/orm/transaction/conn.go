package transaction

import (
	"context"
	"database/sql"
)

// Preparer prepares statements. *sql.DB, *sql.Conn and *sql.Tx all
// satisfy it.
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Conn is one checkout of a logical connection. Outside a transaction it
// wraps a dedicated *sql.Conn that Close returns to the pool; inside a
// transaction it wraps the transaction's *sql.Tx and Close does nothing.
type Conn struct {
	id       string
	name     string
	preparer Preparer
	release  func() error
}

// NewConn assembles a Conn. release may be nil.
func NewConn(id, name string, preparer Preparer, release func() error) *Conn {
	return &Conn{id: id, name: name, preparer: preparer, release: release}
}

// ID identifies the physical checkout.
func (c *Conn) ID() string {
	return c.id
}

// Name returns the logical connection name.
func (c *Conn) Name() string {
	return c.name
}

// PrepareContext prepares query on the underlying connection.
func (c *Conn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return c.preparer.PrepareContext(ctx, query)
}

// Close releases the checkout.
func (c *Conn) Close() error {
	if c.release == nil {
		return nil
	}
	release := c.release
	c.release = nil
	return release()
}
