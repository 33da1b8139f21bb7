package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jmallard/penpal/internal/models"
)

func TestFriendHandler_Search_Unauthenticated(t *testing.T) {
	handler := NewFriendHandler(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/social/users/search?q=test", nil)
	rr := httptest.NewRecorder()
	handler.Search(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rr.Code)
	}
}

func TestFriendHandler_Search(t *testing.T) {
	app := newTestApp()
	self := app.register(t, "self@example.com", "selfuser")
	friend := app.register(t, "friend@example.com", "frienduser")
	app.befriend(t, self, friend)

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/social/users/search?q=friend", nil), self)
	rr := httptest.NewRecorder()
	app.friends.Search(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SearchResponse
	decodeBody(t, rr, &resp)
	if len(resp.Users) != 1 || resp.Users[0].Relationship != models.RelationshipFriend {
		t.Errorf("unexpected search payload: %+v", resp.Users)
	}
}

func TestFriendHandler_Search_ShortQuery(t *testing.T) {
	app := newTestApp()
	self := app.register(t, "self@example.com", "selfuser")

	req := asUser(httptest.NewRequest(http.MethodGet, "/api/social/users/search?q=a", nil), self)
	rr := httptest.NewRecorder()
	app.friends.Search(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var resp SearchResponse
	decodeBody(t, rr, &resp)
	if len(resp.Users) != 0 {
		t.Errorf("expected empty users list for short query, got %d users", len(resp.Users))
	}
}

func TestFriendHandler_SendRequest(t *testing.T) {
	app := newTestApp()
	alice := app.register(t, "alice@example.com", "alice")
	bob := app.register(t, "bob@example.com", "bob")

	req := asUser(jsonRequest(t, http.MethodPost, "/api/social/friends/request", SendFriendRequestBody{UserID: bob.ID}), alice)
	rr := httptest.NewRecorder()
	app.friends.SendRequest(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp SendFriendRequestResponse
	decodeBody(t, rr, &resp)
	if resp.RequestID == "" {
		t.Error("expected a request id")
	}

	// The duplicate is a success with a flag, not an error.
	req = asUser(jsonRequest(t, http.MethodPost, "/api/social/friends/request", SendFriendRequestBody{UserID: bob.ID}), alice)
	rr = httptest.NewRecorder()
	app.friends.SendRequest(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200 for duplicate, got %d", rr.Code)
	}
	decodeBody(t, rr, &resp)
	if !resp.AlreadyPending {
		t.Errorf("expected already_pending, got %+v", resp)
	}
}

func TestFriendHandler_SendRequest_Self(t *testing.T) {
	app := newTestApp()
	alice := app.register(t, "alice@example.com", "alice")

	req := asUser(jsonRequest(t, http.MethodPost, "/api/social/friends/request", SendFriendRequestBody{UserID: alice.ID}), alice)
	rr := httptest.NewRecorder()
	app.friends.SendRequest(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestFriendHandler_AcceptFlow(t *testing.T) {
	app := newTestApp()
	alice := app.register(t, "alice@example.com", "alice")
	bob := app.register(t, "bob@example.com", "bob")

	req := asUser(jsonRequest(t, http.MethodPost, "/api/social/friends/request", SendFriendRequestBody{UserID: bob.ID}), alice)
	rr := httptest.NewRecorder()
	app.friends.SendRequest(rr, req)
	var sent SendFriendRequestResponse
	decodeBody(t, rr, &sent)

	// Bob sees it.
	req = asUser(httptest.NewRequest(http.MethodGet, "/api/social/friends/requests", nil), bob)
	rr = httptest.NewRecorder()
	app.friends.ListRequests(rr, req)
	var lists FriendRequestsResponse
	decodeBody(t, rr, &lists)
	if len(lists.Incoming) != 1 || lists.Incoming[0].ID != sent.RequestID {
		t.Fatalf("incoming = %+v, want the sent request", lists.Incoming)
	}

	// Alice cannot accept her own request.
	req = asUser(jsonRequest(t, http.MethodPost, "/api/social/friends/requests/"+sent.RequestID+"/accept", nil), alice)
	req.SetPathValue("id", sent.RequestID)
	rr = httptest.NewRecorder()
	app.friends.Accept(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("sender accepting: expected status 403, got %d", rr.Code)
	}

	// Bob accepts.
	req = asUser(jsonRequest(t, http.MethodPost, "/api/social/friends/requests/"+sent.RequestID+"/accept", nil), bob)
	req.SetPathValue("id", sent.RequestID)
	rr = httptest.NewRecorder()
	app.friends.Accept(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp RespondResponse
	decodeBody(t, rr, &resp)
	if resp.Status != "accepted" {
		t.Errorf("status = %q, want accepted", resp.Status)
	}

	// Both friends lists agree.
	for _, u := range []*models.User{alice, bob} {
		req = asUser(httptest.NewRequest(http.MethodGet, "/api/social/friends", nil), u)
		rr = httptest.NewRecorder()
		app.friends.ListFriends(rr, req)
		var friends FriendsResponse
		decodeBody(t, rr, &friends)
		if len(friends.Friends) != 1 {
			t.Errorf("friends of %s = %d, want 1", u.Username, len(friends.Friends))
		}
	}
}

func TestFriendHandler_Decline_UnknownRequest(t *testing.T) {
	app := newTestApp()
	bob := app.register(t, "bob@example.com", "bob")

	req := asUser(jsonRequest(t, http.MethodPost, "/api/social/friends/requests/missing/decline", nil), bob)
	req.SetPathValue("id", "missing")
	rr := httptest.NewRecorder()
	app.friends.Decline(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}
