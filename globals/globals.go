package globals

import "context"

// Context keys
type ContextKey string

const (
	RoleKey   ContextKey = "role"
	UserIDKey ContextKey = "userId"
	TokenKey  ContextKey = "token"
)

// WithToken stores the caller's bearer token so outbound collaborator calls can forward it.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}

// TokenFromContext returns the bearer token stored by WithToken, or "".
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(TokenKey).(string)
	return t
}

// JwtSecret signs and verifies bearer tokens; main sets it from config.
var JwtSecret = []byte("change-me")
