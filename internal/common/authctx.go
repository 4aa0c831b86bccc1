package common

import "context"

type ctxKey string

const accountIDKey ctxKey = "auth/account-id"

// WithAccountID stores the authenticated account identifier on the context.
func WithAccountID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}

// AccountID extracts the authenticated account identifier from the context.
func AccountID(ctx context.Context) (string, bool) {
	v := ctx.Value(accountIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
