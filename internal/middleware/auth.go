package middleware

import (
	"net/http"
	"strings"

	"github.com/jmallard/penpal/internal/handlers"
	"github.com/jmallard/penpal/internal/services"
)

type AuthMiddleware struct {
	tokens services.TokenServiceInterface
	users  services.UserServiceInterface
}

func NewAuthMiddleware(tokens services.TokenServiceInterface, users services.UserServiceInterface) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// RequireUser verifies the bearer token and loads the account into the
// request context. Requests without a valid token for a live account get a
// 401 and never reach the handler.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		claims, err := m.tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		// Tokens outlive accounts; the directory read keeps deleted users
		// out.
		user, err := m.users.GetByID(r.Context(), claims.Subject)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		next.ServeHTTP(w, r.WithContext(handlers.SetUserInContext(r.Context(), user)))
	})
}
