package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmallard/penpal/internal/handlers"
	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/services"
	"github.com/jmallard/penpal/internal/store"
)

func newAuthFixture(t *testing.T) (*AuthMiddleware, string, string) {
	t.Helper()

	st := store.NewMemoryStore()
	logger := logging.New().SetOutput(io.Discard)
	users := services.NewUserService(st)
	index := services.NewIdentityIndex(st, logger)
	tokens := services.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour)
	auth := services.NewAuthService(users, index, tokens, logger)

	user, token, err := auth.Register(t.Context(), services.RegisterParams{
		Email:    "alice@example.com",
		Username: "alice",
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	return NewAuthMiddleware(tokens, users), token, user.ID
}

func TestRequireUser(t *testing.T) {
	mw, token, userID := newAuthFixture(t)

	var gotUserID string
	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := handlers.GetUserFromContext(r.Context()); user != nil {
			gotUserID = user.ID
		}
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + token, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"empty token", "Bearer   ", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && gotUserID != userID {
				t.Errorf("context user = %q, want %q", gotUserID, userID)
			}
		})
	}
}
