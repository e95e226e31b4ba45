package transaction

import (
	"context"
	"testing"
)

func TestFromContext(t *testing.T) {
	mgr, _ := setupManager(t)
	ctx := context.Background()

	t.Run("NoTransaction", func(t *testing.T) {
		tx, ok := FromContext(ctx)
		if ok || tx != nil {
			t.Error("expected no transaction")
		}
		if InTransaction(ctx) {
			t.Error("expected InTransaction to be false")
		}
	})

	t.Run("WithContext", func(t *testing.T) {
		tx, err := mgr.Begin(ctx)
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
		defer tx.Rollback()

		txCtx := WithContext(ctx, tx)
		retrieved, ok := FromContext(txCtx)
		if !ok || retrieved != tx {
			t.Error("retrieved transaction is not the same as original")
		}
		if !InTransaction(txCtx) {
			t.Error("expected InTransaction to be true")
		}
	})

	t.Run("finished transaction", func(t *testing.T) {
		tx, _ := mgr.Begin(ctx)
		txCtx := tx.Context()
		tx.Commit()

		if _, ok := FromContext(txCtx); !ok {
			t.Error("expected finished transaction to stay in the context")
		}
		if InTransaction(txCtx) {
			t.Error("expected InTransaction to be false after commit")
		}
	})
}
