package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrAccessDenied          = errors.New("access denied")
	ErrLimitReached          = errors.New("plan limit reached")
	ErrSessionNotLinked      = errors.New("session has no call id yet")
	ErrTranscriptUnavailable = errors.New("no transcript available")
	ErrCallIDConflict        = errors.New("session is already linked to a different call")
	ErrNoReadableText        = errors.New("no readable text found in PDF, it is likely image-based or encrypted")
)

// ValidationError là lỗi đầu vào, trả về 400 kèm thông điệp đọc được
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ProviderError bọc lỗi từ dịch vụ bên ngoài (Vapi, Gemini)
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Message
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("status %d: %s", e.StatusCode, msg)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s - %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, msg)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NotFoundError giữ tên tài nguyên để thông báo lỗi rõ hơn, vẫn khớp errors.Is(err, ErrNotFound)
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(resource string) error {
	return &NotFoundError{Resource: resource}
}
