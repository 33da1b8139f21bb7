package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/jmallard/penpal/internal/models"
	"github.com/jmallard/penpal/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

type SendFriendRequestBody struct {
	UserID string `json:"user_id"`
}

type SendFriendRequestResponse struct {
	RequestID      string `json:"request_id,omitempty"`
	AlreadyFriends bool   `json:"already_friends,omitempty"`
	AlreadyPending bool   `json:"already_pending,omitempty"`
	AutoAccepted   bool   `json:"auto_accepted,omitempty"`
}

type FriendRequestEntry struct {
	ID        string       `json:"id"`
	User      UserResponse `json:"user"`
	CreatedAt string       `json:"created_at"`
}

type FriendRequestsResponse struct {
	Incoming []FriendRequestEntry `json:"incoming"`
	Outgoing []FriendRequestEntry `json:"outgoing"`
}

type RespondResponse struct {
	Status           string `json:"status"`
	AlreadyProcessed bool   `json:"already_processed,omitempty"`
}

type FriendsResponse struct {
	Friends []UserResponse `json:"friends"`
}

type SearchResponse struct {
	Users []models.UserSearchResult `json:"users"`
}

func (h *FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	results, err := h.friendService.SearchUsers(r.Context(), user.ID, r.URL.Query().Get("q"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Users: results})
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SendFriendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	outcome, err := h.friendService.SendRequest(r.Context(), user.ID, req.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	status := http.StatusCreated
	if outcome.AlreadyFriends || outcome.AlreadyPending || outcome.AutoAccepted {
		status = http.StatusOK
	}
	writeJSON(w, status, SendFriendRequestResponse{
		RequestID:      outcome.RequestID,
		AlreadyFriends: outcome.AlreadyFriends,
		AlreadyPending: outcome.AlreadyPending,
		AutoAccepted:   outcome.AutoAccepted,
	})
}

func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	incoming, err := h.friendService.ListIncoming(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	outgoing, err := h.friendService.ListOutgoing(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FriendRequestsResponse{
		Incoming: toRequestEntries(incoming),
		Outgoing: toRequestEntries(outgoing),
	})
}

func toRequestEntries(requests []services.PendingRequest) []FriendRequestEntry {
	entries := make([]FriendRequestEntry, 0, len(requests))
	for _, pr := range requests {
		entries = append(entries, FriendRequestEntry{
			ID:        pr.Request.ID,
			User:      toUserResponse(pr.User),
			CreatedAt: pr.Request.CreatedAt,
		})
	}
	return entries
}

func (h *FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.friendService.Accept)
}

func (h *FriendHandler) Decline(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.friendService.Decline)
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, requestID, actingUserID string) (*services.RespondOutcome, error)) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	requestID := r.PathValue("id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	outcome, err := action(r.Context(), requestID, user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RespondResponse{
		Status:           string(outcome.Status),
		AlreadyProcessed: outcome.AlreadyProcessed,
	})
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.friendService.Friends(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	out := make([]UserResponse, 0, len(friends))
	for i := range friends {
		out = append(out, toUserResponse(&friends[i]))
	}
	writeJSON(w, http.StatusOK, FriendsResponse{Friends: out})
}
