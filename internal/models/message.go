package models

import "time"

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
)

func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeImage
}

const (
	// MaxImageBytes caps decoded attachment payloads at 2 MiB.
	MaxImageBytes = 2 << 20

	// PreviewMaxChars bounds the conversation preview text.
	PreviewMaxChars = 120

	// ImagePreviewPlaceholder stands in for attachment data in previews.
	ImagePreviewPlaceholder = "[image]"

	// TextEncoding tags stored message bodies.
	TextEncoding = "utf-8"
)

// Message is immutable once written; the log is append-only per
// conversation. IDs are time-ordered so they double as the insertion-order
// tiebreak when two messages share a timestamp.
type Message struct {
	ID            string      `json:"-"`
	SenderID      string      `json:"senderId"`
	Type          MessageType `json:"type"`
	Body          string      `json:"body,omitempty"`
	ImageData     string      `json:"imageData,omitempty"` // bare base64
	ImageMimeType string      `json:"imageMimeType,omitempty"`
	ImageSize     int         `json:"imageSize,omitempty"`
	Encoding      string      `json:"encoding,omitempty"`
	CreatedAt     string      `json:"createdAt"`
}

// timestampLayout is millisecond-fixed so stored stamps sort
// lexicographically; RFC3339Nano's variable fraction width does not.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t for storage and range ordering.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// ParseTimestamp is the inverse of Timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}
