package common

import (
	"errors"
	"fmt"
)

// Error codes for the extraction pipeline and startup validation.
const (
	CodeDocumentUnreadable   = "DOCUMENT_UNREADABLE"
	CodeEncodingFailed       = "ENCODING_FAILED"
	CodeTransportError       = "TRANSPORT_ERROR"
	CodeEnvelopeDecodeError  = "ENVELOPE_DECODE_ERROR"
	CodePayloadDecodeError   = "PAYLOAD_DECODE_ERROR"
	CodeConfigurationMissing = "CONFIGURATION_MISSING"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrDocumentUnreadable   = errors.New("document unreadable")
	ErrEncodingFailed       = errors.New("image encoding failed")
	ErrTransport            = errors.New("transport error")
	ErrEnvelopeDecode       = errors.New("envelope decode error")
	ErrPayloadDecode        = errors.New("payload decode error")
	ErrConfigurationMissing = errors.New("configuration missing")
)

// NewAppError builds an AppError with the given code, message, and cause.
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the AppError code of err, or "" when err carries none.
func CodeOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
