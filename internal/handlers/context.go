package handlers

import (
	"context"

	"github.com/jmallard/penpal/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// SetUserInContext attaches the authenticated user to the request context.
func SetUserInContext(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext returns the authenticated user, or nil when the
// request did not pass authentication.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
