package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jmallard/penpal/internal/errs"
	"github.com/jmallard/penpal/internal/models"
	"github.com/jmallard/penpal/internal/services"
)

type ChatHandler struct {
	chatService   services.ChatServiceInterface
	friendService services.FriendServiceInterface
}

func NewChatHandler(chatService services.ChatServiceInterface, friendService services.FriendServiceInterface) *ChatHandler {
	return &ChatHandler{chatService: chatService, friendService: friendService}
}

type OpenChatRequest struct {
	UserID string `json:"user_id"`
}

type OpenChatResponse struct {
	ConversationID string `json:"conversation_id"`
}

type ConversationEntry struct {
	ID                 string        `json:"id"`
	UpdatedAt          string        `json:"updated_at"`
	LastMessagePreview string        `json:"last_message_preview,omitempty"`
	LastMessageSender  string        `json:"last_message_sender,omitempty"`
	LastMessageAt      string        `json:"last_message_at,omitempty"`
	OtherUser          *UserResponse `json:"other_user,omitempty"`
}

type ConversationsResponse struct {
	Conversations []ConversationEntry `json:"conversations"`
}

type SendMessageRequest struct {
	Type          string `json:"type,omitempty"`
	Body          string `json:"body,omitempty"`
	ImageData     string `json:"image_data,omitempty"`
	ImageMimeType string `json:"image_mime_type,omitempty"`
}

type MessageResponse struct {
	ID            string `json:"id"`
	SenderID      string `json:"sender_id"`
	Type          string `json:"type"`
	Body          string `json:"body,omitempty"`
	ImageData     string `json:"image_data,omitempty"`
	ImageMimeType string `json:"image_mime_type,omitempty"`
	ImageSize     int    `json:"image_size,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type MessagesResponse struct {
	Messages []MessageResponse `json:"messages"`
}

func toMessageResponse(msg *models.Message) MessageResponse {
	return MessageResponse{
		ID:            msg.ID,
		SenderID:      msg.SenderID,
		Type:          string(msg.Type),
		Body:          msg.Body,
		ImageData:     msg.ImageData,
		ImageMimeType: msg.ImageMimeType,
		ImageSize:     msg.ImageSize,
		CreatedAt:     msg.CreatedAt,
	}
}

// Open starts (or finds) the conversation with another user. Both users
// must be friends; the check runs before anything is written.
func (h *ChatHandler) Open(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req OpenChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.UserID == user.ID {
		writeError(w, http.StatusBadRequest, "user_id must name another user")
		return
	}

	friends, err := h.friendService.AreFriends(r.Context(), user.ID, req.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if !friends {
		writeAppError(w, errs.ErrNotFriends)
		return
	}

	conversationID, err := h.chatService.EnsureConversation(r.Context(), user.ID, req.UserID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, OpenChatResponse{ConversationID: conversationID})
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	summaries, err := h.chatService.ListConversations(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}

	entries := make([]ConversationEntry, 0, len(summaries))
	for _, s := range summaries {
		entry := ConversationEntry{
			ID:                 s.ID,
			UpdatedAt:          s.UpdatedAt,
			LastMessagePreview: s.LastMessagePreview,
			LastMessageSender:  s.LastMessageSender,
			LastMessageAt:      s.LastMessageAt,
		}
		if s.OtherUser != nil {
			u := toUserResponse(s.OtherUser)
			entry.OtherUser = &u
		}
		entries = append(entries, entry)
	}
	writeJSON(w, http.StatusOK, ConversationsResponse{Conversations: entries})
}

func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID := r.PathValue("id")
	if _, err := h.chatService.EnsureParticipant(r.Context(), conversationID, user.ID); err != nil {
		writeAppError(w, err)
		return
	}

	messages, err := h.chatService.FetchMessages(r.Context(), conversationID, r.URL.Query().Get("since"))
	if err != nil {
		writeAppError(w, err)
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, toMessageResponse(&messages[i]))
	}
	writeJSON(w, http.StatusOK, MessagesResponse{Messages: out})
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	conversationID := r.PathValue("id")
	if _, err := h.chatService.EnsureParticipant(r.Context(), conversationID, user.ID); err != nil {
		writeAppError(w, err)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.chatService.AppendMessage(r.Context(), conversationID, user.ID, services.AppendMessageParams{
		Type:          req.Type,
		Body:          req.Body,
		ImageData:     req.ImageData,
		ImageMimeType: req.ImageMimeType,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}
