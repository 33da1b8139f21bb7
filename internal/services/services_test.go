package services

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/models"
	"github.com/jmallard/penpal/internal/store"
)

type testEnv struct {
	store   *store.MemoryStore
	users   *UserService
	index   *IdentityIndex
	tokens  *TokenService
	auth    *AuthService
	friends *FriendService
	chat    *ChatService
}

func newTestEnv() *testEnv {
	st := store.NewMemoryStore()
	logger := logging.New().SetOutput(io.Discard)
	users := NewUserService(st)
	index := NewIdentityIndex(st, logger)
	tokens := NewTokenService("0123456789abcdef0123456789abcdef", time.Hour)
	return &testEnv{
		store:   st,
		users:   users,
		index:   index,
		tokens:  tokens,
		auth:    NewAuthService(users, index, tokens, logger),
		friends: NewFriendService(st, users, logger),
		chat:    NewChatService(st, users, logger),
	}
}

func (env *testEnv) register(t *testing.T, email, username string) *models.User {
	t.Helper()
	user, token, err := env.auth.Register(context.Background(), RegisterParams{
		Email:    email,
		Username: username,
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	if token == "" {
		t.Fatalf("Register(%s) returned empty token", email)
	}
	return user
}

// befriend registers both users and completes a request between them.
func (env *testEnv) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	ctx := context.Background()
	outcome, err := env.friends.SendRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if _, err := env.friends.Accept(ctx, outcome.RequestID, b.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
}
