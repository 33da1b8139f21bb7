// Package errs carries the symbolic error kinds the API boundary maps to
// client-facing statuses. Internal failure detail stays in Cause and is
// never serialized.
package errs

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInternal        Code = "INTERNAL"
	CodeValidation      Code = "VALIDATION"
	CodeUnauthenticated Code = "UNAUTHENTICATED"

	CodeEmailTaken    Code = "EMAIL_TAKEN"
	CodeUsernameTaken Code = "USERNAME_TAKEN"
	CodeUserNotFound  Code = "USER_NOT_FOUND"

	CodeSelfRequest     Code = "SELF_REQUEST"
	CodeRequestNotFound Code = "REQUEST_NOT_FOUND"
	CodeNotRecipient    Code = "NOT_REQUEST_RECIPIENT"
	CodeNotFriends      Code = "NOT_FRIENDS"

	CodeConversationNotFound   Code = "CONVERSATION_NOT_FOUND"
	CodeMessageBodyRequired    Code = "MESSAGE_BODY_REQUIRED"
	CodeInvalidImage           Code = "INVALID_IMAGE"
	CodeImageTooLarge          Code = "IMAGE_TOO_LARGE"
	CodeUnsupportedMessageType Code = "UNSUPPORTED_MESSAGE_TYPE"
)

type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Internal wraps an external-dependency failure. The message is generic on
// purpose; the cause is for logs only.
func Internal(cause error) error {
	return &AppError{Code: CodeInternal, Message: "internal error", Cause: cause}
}

func Validation(message string) error {
	return New(CodeValidation, message)
}

// CodeOf classifies any error into a symbolic kind. Errors that did not come
// through this package count as internal failures.
func CodeOf(err error) Code {
	var app *AppError
	if errors.As(err, &app) {
		return app.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for an error.
func MessageOf(err error) string {
	var app *AppError
	if errors.As(err, &app) {
		return app.Message
	}
	return "internal error"
}
