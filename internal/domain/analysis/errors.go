package analysis

import (
	"errors"
	"fmt"
)

// Code is a stable machine-readable error code returned to clients.
type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeRateLimit       Code = "RATE_LIMIT_EXCEEDED"
	CodeBudgetExceeded  Code = "BUDGET_EXCEEDED"
	CodeInvalidDocument Code = "INVALID_DOCUMENT_TYPE"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeNotFound        Code = "NOT_FOUND"
	CodeExpired         Code = "EXPIRED"
	CodeAnalysisFailed  Code = "ANALYSIS_FAILED"
	CodeInternal        Code = "INTERNAL"
)

// ErrRecordNotFound is returned by repositories when no row matches.
var ErrRecordNotFound = errors.New("analysis not found")

// Error carries a code plus a user-presentable message. INVALID_DOCUMENT_TYPE
// additionally carries what the validator detected.
type Error struct {
	Code         Code   `json:"code"`
	Message      string `json:"message"`
	DocumentType string `json:"document_type,omitempty"`
	Confidence   int    `json:"confidence,omitempty"`
	cause        error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// E builds a coded error.
func E(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Ef builds a coded error with a formatted message.
func Ef(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches an underlying cause to a coded error.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, cause: cause}
}

// InvalidDocument builds the domain rejection for non-legal input.
func InvalidDocument(docType string, confidence int, reason string) *Error {
	msg := "the submitted text does not appear to be a legal document"
	if reason != "" {
		msg = reason
	}
	return &Error{
		Code:         CodeInvalidDocument,
		Message:      msg,
		DocumentType: docType,
		Confidence:   confidence,
	}
}

// CodeOf extracts the code from err, defaulting to INTERNAL.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, ErrRecordNotFound) {
		return CodeNotFound
	}
	return CodeInternal
}
