package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jmallard/penpal/internal/errs"
	"github.com/jmallard/penpal/internal/logging"
	"github.com/jmallard/penpal/internal/models"
	"github.com/jmallard/penpal/internal/store"
)

const (
	conversationsPath     = "conversations"
	userConversationsPath = "userConversations"

	// messageWindow is how many trailing messages a fetch returns.
	messageWindow = 100
)

// ConversationSummary is one row of a user's conversation list: the
// conversation plus the peer's directory entry.
type ConversationSummary struct {
	ID                 string       `json:"id"`
	UpdatedAt          string       `json:"updatedAt"`
	LastMessagePreview string       `json:"lastMessagePreview,omitempty"`
	LastMessageSender  string       `json:"lastMessageSender,omitempty"`
	LastMessageAt      string       `json:"lastMessageAt,omitempty"`
	OtherUser          *models.User `json:"-"`
}

type AppendMessageParams struct {
	Type          string
	Body          string
	ImageData     string
	ImageMimeType string
}

// ChatServiceInterface is the conversation surface consumed by handlers
// and the poller.
type ChatServiceInterface interface {
	EnsureConversation(ctx context.Context, userA, userB string) (string, error)
	EnsureParticipant(ctx context.Context, conversationID, userID string) (*models.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error)
	FetchMessages(ctx context.Context, conversationID, since string) ([]models.Message, error)
	AppendMessage(ctx context.Context, conversationID, senderID string, params AppendMessageParams) (*models.Message, error)
}

type ChatService struct {
	store  store.Store
	users  *UserService
	logger *logging.Logger
}

func NewChatService(st store.Store, users *UserService, logger *logging.Logger) *ChatService {
	if logger == nil {
		logger = logging.Default
	}
	return &ChatService{store: st, users: users, logger: logger}
}

// EnsureConversation creates the conversation between two users if it does
// not exist and returns its id. The id is deterministic in the pair, so
// concurrent calls converge on the same document; the second writer's
// overwrite is identical in content.
func (s *ChatService) EnsureConversation(ctx context.Context, userA, userB string) (string, error) {
	id := models.ConversationID(userA, userB)

	_, found, err := s.store.Read(ctx, store.Join(conversationsPath, id))
	if err != nil {
		return "", errs.Internal(fmt.Errorf("reading conversation %s: %w", id, err))
	}
	if found {
		return id, nil
	}

	now := models.Timestamp(time.Now())
	conv := models.Conversation{
		Participants: map[string]bool{userA: true, userB: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Write(ctx, store.Join(conversationsPath, id), conv); err != nil {
		return "", errs.Internal(fmt.Errorf("writing conversation %s: %w", id, err))
	}
	for _, userID := range []string{userA, userB} {
		if err := s.store.Update(ctx, store.Join(userConversationsPath, userID), map[string]any{id: true}); err != nil {
			return "", errs.Internal(fmt.Errorf("registering conversation for %s: %w", userID, err))
		}
	}

	s.logger.Info("conversation created", map[string]interface{}{"conversation_id": id})
	return id, nil
}

// EnsureParticipant loads a conversation and verifies userID belongs to it.
// A conversation the user is not part of is indistinguishable from one that
// does not exist.
func (s *ChatService) EnsureParticipant(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	raw, found, err := s.store.Read(ctx, store.Join(conversationsPath, conversationID))
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("reading conversation %s: %w", conversationID, err))
	}
	if !found {
		return nil, errs.ErrConversationNotFound
	}
	var conv models.Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, errs.Internal(fmt.Errorf("decoding conversation %s: %w", conversationID, err))
	}
	conv.ID = conversationID
	if !conv.HasParticipant(userID) {
		return nil, errs.ErrConversationNotFound
	}
	return &conv, nil
}

// ListConversations returns the user's conversations, most recently
// updated first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	raw, found, err := s.store.Read(ctx, store.Join(userConversationsPath, userID))
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("reading conversations of %s: %w", userID, err))
	}
	if !found {
		return []ConversationSummary{}, nil
	}
	var memberships map[string]bool
	if err := json.Unmarshal(raw, &memberships); err != nil {
		return nil, errs.Internal(fmt.Errorf("decoding conversations of %s: %w", userID, err))
	}

	out := make([]ConversationSummary, 0, len(memberships))
	for convID, member := range memberships {
		if !member {
			continue
		}
		conv, err := s.EnsureParticipant(ctx, convID, userID)
		if err != nil {
			s.logger.Warn("skipping unreadable conversation", map[string]interface{}{"conversation_id": convID})
			continue
		}
		summary := ConversationSummary{
			ID:                 conv.ID,
			UpdatedAt:          conv.UpdatedAt,
			LastMessagePreview: conv.LastMessagePreview,
			LastMessageSender:  conv.LastMessageSender,
			LastMessageAt:      conv.LastMessageAt,
		}
		if otherID := conv.OtherParticipant(userID); otherID != "" {
			if other, err := s.users.GetByID(ctx, otherID); err == nil {
				summary.OtherUser = other
			}
		}
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out, nil
}

// FetchMessages returns up to the last hundred messages of a conversation
// in ascending timestamp order. A non-empty since bounds the range from
// below, inclusively: the boundary message comes back and the caller drops
// it if already seen.
func (s *ChatService) FetchMessages(ctx context.Context, conversationID, since string) ([]models.Message, error) {
	opts := store.RangeOptions{Limit: messageWindow, FromEnd: true}
	if since != "" {
		opts.Start = &since
	}

	docs, err := s.store.RangeQuery(ctx, store.Join(conversationsPath, conversationID, "messages"), "createdAt", opts)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("fetching messages of %s: %w", conversationID, err))
	}

	out := make([]models.Message, 0, len(docs))
	for _, doc := range docs {
		var msg models.Message
		if err := json.Unmarshal(doc.Value, &msg); err != nil {
			return nil, errs.Internal(fmt.Errorf("decoding message %s: %w", doc.Key, err))
		}
		msg.ID = doc.Key
		out = append(out, msg)
	}
	return out, nil
}

// AppendMessage validates and writes a message, then refreshes the
// conversation's preview fields. Validation happens before any write: a
// rejected message leaves the log untouched.
func (s *ChatService) AppendMessage(ctx context.Context, conversationID, senderID string, params AppendMessageParams) (*models.Message, error) {
	msg := models.Message{
		SenderID:  senderID,
		CreatedAt: models.Timestamp(time.Now()),
	}

	msgType := models.MessageType(strings.ToLower(strings.TrimSpace(params.Type)))
	if params.Type == "" {
		msgType = models.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, errs.ErrUnsupportedMessageType
	}
	msg.Type = msgType

	body := strings.TrimSpace(params.Body)
	switch msgType {
	case models.MessageTypeText:
		if body == "" {
			return nil, errs.ErrMessageBodyRequired
		}
		msg.Body = body
		msg.Encoding = models.TextEncoding
	case models.MessageTypeImage:
		decoded, mime, err := decodeImagePayload(params.ImageData, params.ImageMimeType)
		if err != nil {
			return nil, err
		}
		msg.ImageData = base64.StdEncoding.EncodeToString(decoded)
		msg.ImageMimeType = mime
		msg.ImageSize = len(decoded)
		if body != "" {
			msg.Body = body
			msg.Encoding = models.TextEncoding
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("generating message id: %w", err))
	}
	msg.ID = id.String()

	if err := s.store.Write(ctx, store.Join(conversationsPath, conversationID, "messages", msg.ID), msg); err != nil {
		return nil, errs.Internal(fmt.Errorf("writing message: %w", err))
	}

	err = s.store.Update(ctx, store.Join(conversationsPath, conversationID), map[string]any{
		"updatedAt":          msg.CreatedAt,
		"lastMessagePreview": previewOf(&msg),
		"lastMessageSender":  senderID,
		"lastMessageAt":      msg.CreatedAt,
	})
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("updating conversation preview: %w", err))
	}

	return &msg, nil
}

// previewOf derives the conversation-list preview for a message. Images
// show a placeholder; text is truncated.
func previewOf(msg *models.Message) string {
	if msg.Type == models.MessageTypeImage {
		return models.ImagePreviewPlaceholder
	}
	runes := []rune(msg.Body)
	if len(runes) > models.PreviewMaxChars {
		return string(runes[:models.PreviewMaxChars])
	}
	return msg.Body
}
