package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
)

type txContextKey struct{}

// WithTx stores the active transaction in the context so repositories invoked
// inside a unit of work participate in it.
func WithTx(ctx context.Context, tx *firestore.Transaction) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFrom returns the active transaction, or nil outside a unit of work.
func TxFrom(ctx context.Context) *firestore.Transaction {
	tx, _ := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx
}
