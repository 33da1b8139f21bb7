package models

import (
	"sort"
	"strings"
)

type Conversation struct {
	ID                 string          `json:"-"`
	Participants       map[string]bool `json:"participants"`
	CreatedAt          string          `json:"createdAt"`
	UpdatedAt          string          `json:"updatedAt"`
	LastMessagePreview string          `json:"lastMessagePreview,omitempty"`
	LastMessageSender  string          `json:"lastMessageSender,omitempty"`
	LastMessageAt      string          `json:"lastMessageAt,omitempty"`
}

// ConversationID derives the deterministic identity for a pair of
// participants. Both sides of a race compute the same id, which is what
// makes lazy creation idempotent.
func ConversationID(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, "__")
}

func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participants[userID]
}

// OtherParticipant returns the peer of userID, or "" when userID is not a
// participant.
func (c *Conversation) OtherParticipant(userID string) string {
	if !c.Participants[userID] {
		return ""
	}
	for id := range c.Participants {
		if id != userID {
			return id
		}
	}
	return ""
}
