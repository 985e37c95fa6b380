// Package httpx holds the request-context plumbing shared between the auth
// guard and the handlers behind it.
package httpx

import "context"

type contextKey string

const userIDKey contextKey = "auth.userID"

func ContextWithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFromContext returns the id the auth guard attached, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}
