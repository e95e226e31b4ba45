package transaction

import (
	"context"
)

type contextKey string

const contextKeyTransaction contextKey = "entitydao:transaction"

// FromContext returns the transaction carried by ctx, finished or not.
func FromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(contextKeyTransaction).(*Transaction)
	return tx, ok
}

// WithContext returns a copy of ctx carrying tx. Connections requested
// with the returned context join tx.
func WithContext(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, contextKeyTransaction, tx)
}

// InTransaction reports whether ctx carries a transaction that has not
// been committed or rolled back yet.
func InTransaction(ctx context.Context) bool {
	tx, ok := FromContext(ctx)
	return ok && tx.active()
}
