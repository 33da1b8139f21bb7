package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/models"
	"github.com/jmallard/penpal/internal/services"
	"github.com/jmallard/penpal/internal/store"
)

// testApp wires the handlers against an in-memory store.
type testApp struct {
	auth    *AuthHandler
	friends *FriendHandler
	chats   *ChatHandler

	authService   *services.AuthService
	friendService *services.FriendService
	chatService   *services.ChatService
}

func newTestApp() *testApp {
	st := store.NewMemoryStore()
	logger := logging.New().SetOutput(io.Discard)
	users := services.NewUserService(st)
	index := services.NewIdentityIndex(st, logger)
	tokens := services.NewTokenService("0123456789abcdef0123456789abcdef", time.Hour)
	authService := services.NewAuthService(users, index, tokens, logger)
	friendService := services.NewFriendService(st, users, logger)
	chatService := services.NewChatService(st, users, logger)

	return &testApp{
		auth:          NewAuthHandler(authService),
		friends:       NewFriendHandler(friendService),
		chats:         NewChatHandler(chatService, friendService),
		authService:   authService,
		friendService: friendService,
		chatService:   chatService,
	}
}

func (app *testApp) register(t *testing.T, email, username string) *models.User {
	t.Helper()
	user, _, err := app.authService.Register(context.Background(), services.RegisterParams{
		Email:    email,
		Username: username,
		Password: "correct horse battery",
	})
	if err != nil {
		t.Fatalf("Register(%s) failed: %v", email, err)
	}
	return user
}

func (app *testApp) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	ctx := context.Background()
	outcome, err := app.friendService.SendRequest(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("SendRequest failed: %v", err)
	}
	if _, err := app.friendService.Accept(ctx, outcome.RequestID, b.ID); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(SetUserInContext(req.Context(), user))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to parse response %q: %v", rr.Body.String(), err)
	}
}
