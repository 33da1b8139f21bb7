package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jmallard/penpal/internal/errs"
	"github.com/jmallard/penpal/internal/logging"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Error("failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// statusForCode maps symbolic error kinds to HTTP statuses.
var statusForCode = map[errs.Code]int{
	errs.CodeValidation:             http.StatusBadRequest,
	errs.CodeSelfRequest:            http.StatusBadRequest,
	errs.CodeMessageBodyRequired:    http.StatusBadRequest,
	errs.CodeInvalidImage:           http.StatusBadRequest,
	errs.CodeImageTooLarge:          http.StatusBadRequest,
	errs.CodeUnsupportedMessageType: http.StatusBadRequest,
	errs.CodeUnauthenticated:        http.StatusUnauthorized,
	errs.CodeNotRecipient:           http.StatusForbidden,
	errs.CodeNotFriends:             http.StatusForbidden,
	errs.CodeUserNotFound:           http.StatusNotFound,
	errs.CodeRequestNotFound:        http.StatusNotFound,
	errs.CodeConversationNotFound:   http.StatusNotFound,
	errs.CodeEmailTaken:             http.StatusConflict,
	errs.CodeUsernameTaken:          http.StatusConflict,
}

// writeAppError translates a service error into its client response.
// Internal failures are logged with their cause and answered generically.
func writeAppError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	status, ok := statusForCode[code]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status == http.StatusInternalServerError {
		logging.Error("request failed", map[string]interface{}{"error": err.Error()})
	}
	writeJSON(w, status, ErrorResponse{Error: errs.MessageOf(err), Code: string(code)})
}
