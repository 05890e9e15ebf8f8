package middleware

import "context"

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

// WithUserID injects the authenticated user's identifier into the context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return setValue(ctx, ctxUserID, userID)
}

// WithRole injects the actor role into the context.
func WithRole(ctx context.Context, role string) context.Context {
	return setValue(ctx, ctxRole, role)
}

// UserIDFromContext returns the authenticated user id, or "" when the
// request never passed through Auth.
func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

// RoleFromContext returns the actor role seeded by Auth, or "".
func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

func setValue(ctx context.Context, key contextKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
