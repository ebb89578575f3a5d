package shared

import "context"

type userContextKey struct{}

// ContextWithUser stores the authenticated user id in context.
func ContextWithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userContextKey{}, userID)
}

// UserFromContext extracts the authenticated user id from context.
func UserFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userContextKey{}).(string)
	return id, ok && id != ""
}
