package tracing

import "context"

type contextKey struct{}

// NewContext returns a context carrying txn.
func NewContext(ctx context.Context, txn *Transaction) context.Context {
	return context.WithValue(ctx, contextKey{}, txn)
}

// FromContext returns the transaction in ctx, or nil. Transaction and
// segment methods, accessors included, accept a nil receiver.
func FromContext(ctx context.Context) *Transaction {
	if ctx == nil {
		return nil
	}
	txn, _ := ctx.Value(contextKey{}).(*Transaction)
	return txn
}
