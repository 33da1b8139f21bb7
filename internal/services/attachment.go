package services

import (
	"encoding/base64"
	"strings"

	"github.com/jmallard/penpal/internal/errs"
	"github.com/jmallard/penpal/internal/models"
)

const dataURIMarker = ";base64,"

// decodeImagePayload validates an image attachment. The payload may be bare
// base64 (the declared MIME type travels separately) or a full data URI
// carrying its own. The returned bytes are the decoded image; callers store
// them re-encoded so both input forms normalize to the same document shape.
func decodeImagePayload(data, declaredMime string) ([]byte, string, error) {
	payload := strings.TrimSpace(data)
	if payload == "" {
		return nil, "", errs.ErrInvalidImage
	}

	mime := strings.TrimSpace(declaredMime)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, dataURIMarker)
		if idx < 0 {
			return nil, "", errs.ErrInvalidImage
		}
		mime = payload[len("data:"):idx]
		payload = payload[idx+len(dataURIMarker):]
	}

	if !strings.HasPrefix(strings.ToLower(mime), "image/") {
		return nil, "", errs.ErrInvalidImage
	}

	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", errs.ErrInvalidImage
	}
	if len(decoded) == 0 {
		return nil, "", errs.ErrInvalidImage
	}
	if len(decoded) > models.MaxImageBytes {
		return nil, "", errs.ErrImageTooLarge
	}
	return decoded, mime, nil
}
