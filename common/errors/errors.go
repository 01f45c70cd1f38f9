package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Authentication errors (1xxx)
	ErrCodeInvalidToken ErrorCode = "E1004"
	ErrCodeAccessDenied ErrorCode = "E1005"

	// Validation errors (2xxx)
	ErrCodeValidation   ErrorCode = "E2001"
	ErrCodeInvalidInput ErrorCode = "E2002"
	ErrCodeMissingField ErrorCode = "E2003"

	// Resource errors (3xxx)
	ErrCodeNotFound    ErrorCode = "E3001"
	ErrCodeConflict    ErrorCode = "E3003"
	ErrCodeRateLimited ErrorCode = "E3004"

	// Seat inventory errors (4xxx)
	ErrCodeSeatNotAvailable ErrorCode = "E4005"
	ErrCodeNotHolder        ErrorCode = "E4010"

	// Internal errors (9xxx)
	ErrCodeInternal ErrorCode = "E9001"
	ErrCodeStorage  ErrorCode = "E9002"
)

// AppError represents an application error with context
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code, so that
// errors.Is(err, errors.SeatUnavailable("")) style checks work on wrapped chains.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField adds a field to the error
func (e *AppError) WithField(key string, value interface{}) *AppError {
	if e.Fields == nil {
		e.Fields = make(map[string]interface{})
	}
	e.Fields[key] = value
	return e
}

// ToJSON converts error to JSON response format
func (e *AppError) ToJSON() map[string]interface{} {
	result := map[string]interface{}{
		"status":  "error",
		"code":    e.Code,
		"message": e.Message,
	}
	if e.Details != "" {
		result["details"] = e.Details
	}
	if len(e.Fields) > 0 {
		result["fields"] = e.Fields
	}
	return result
}

// WriteJSON writes error as JSON response
func (e *AppError) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatus)
	json.NewEncoder(w).Encode(e.ToJSON())
}

// ============================================================
// Error constructors
// ============================================================

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(code),
	}
}

// Wrap wraps an existing error with AppError
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: getHTTPStatus(code),
		Cause:      err,
	}
}

// ============================================================
// Predefined error constructors
// ============================================================

// Authentication errors
func InvalidToken() *AppError {
	return New(ErrCodeInvalidToken, "invalid or expired token")
}

func AccessDenied() *AppError {
	return New(ErrCodeAccessDenied, "ADMIN role required")
}

// Validation errors
func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field, message string) *AppError {
	return New(ErrCodeInvalidInput, message).WithField("field", field)
}

func MissingField(field string) *AppError {
	return New(ErrCodeMissingField, fmt.Sprintf("%s is required", field)).WithField("field", field)
}

// Resource errors
func NotFound(resource, id string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s %q not found", resource, id)).
		WithField("resource", resource).
		WithField("id", id)
}

func Conflict(message string) *AppError {
	return New(ErrCodeConflict, message)
}

func RateLimited() *AppError {
	return New(ErrCodeRateLimited, "rate limit exceeded")
}

// Seat inventory errors
func SeatUnavailable(seatID string) *AppError {
	return New(ErrCodeSeatNotAvailable, fmt.Sprintf("seat %q is not available", seatID)).WithField("seat_id", seatID)
}

func NotHolder(seatID, holderID string) *AppError {
	return New(ErrCodeNotHolder, fmt.Sprintf("holder %q does not hold seat %q", holderID, seatID)).
		WithField("seat_id", seatID).
		WithField("holder_id", holderID)
}

// Internal errors
func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func StorageError(err error) *AppError {
	return Wrap(err, ErrCodeStorage, "storage failure")
}

// ============================================================
// Helper functions
// ============================================================

func getHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidToken:
		return http.StatusUnauthorized
	case ErrCodeAccessDenied, ErrCodeNotHolder:
		return http.StatusForbidden
	case ErrCodeValidation, ErrCodeInvalidInput, ErrCodeMissingField:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict, ErrCodeSeatNotAvailable:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsAppError checks if an error is or wraps an AppError
func IsAppError(err error) bool {
	_, ok := AsAppError(err)
	return ok
}

// AsAppError converts an error to AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

// ToAppError converts any error to AppError
func ToAppError(err error) *AppError {
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return Wrap(err, ErrCodeInternal, err.Error())
}
