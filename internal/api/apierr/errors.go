package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/gamelobby/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeUnauthenticated       = "UNAUTHENTICATED"
	CodeInvalidCredential     = "INVALID_CREDENTIAL"
	CodeForbidden             = "FORBIDDEN"
	CodeAccountNotFound       = "ACCOUNT_NOT_FOUND"
	CodeRoomNotFound          = "ROOM_NOT_FOUND"
	CodePlayerNotFound        = "PLAYER_NOT_FOUND"
	CodeRoomNotOpen           = "ROOM_NOT_OPEN"
	CodeDisplayNameTaken      = "DISPLAY_NAME_TAKEN"
	CodeUsernameTaken         = "USERNAME_TAKEN"
	CodePlayersNotReady       = "PLAYERS_NOT_READY"
	CodeAllocationExhausted   = "ALLOCATION_EXHAUSTED"
	CodeRepositoryUnavailable = "REPOSITORY_UNAVAILABLE"
	CodeRateLimited           = "RATE_LIMITED"
	CodeNotFound              = "NOT_FOUND"
	CodeMethodNotAllowed      = "METHOD_NOT_ALLOWED"
	CodeInternalError         = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error is reported with
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	// Identity errors
	case errors.Is(err, model.ErrUnauthenticated):
		return &httpError{http.StatusUnauthorized, APIError{CodeUnauthenticated, "Authentication required"}}
	case errors.Is(err, model.ErrInvalidCredential):
		return &httpError{http.StatusUnauthorized, APIError{CodeInvalidCredential, "Invalid or expired credential"}}
	case errors.Is(err, model.ErrUsernameTaken):
		return &httpError{http.StatusConflict, APIError{CodeUsernameTaken, "Username already exists"}}
	case errors.Is(err, model.ErrInvalidAccount):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Username must be 1-32 characters and password 8-72 bytes"}}
	case errors.Is(err, model.ErrAccountNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeAccountNotFound, "Account not found"}}

	// Room errors
	case errors.Is(err, model.ErrRoomNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRoomNotFound, "Room not found"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotFound, "Player not found in this room"}}
	case errors.Is(err, model.ErrRoomNotOpen):
		return &httpError{http.StatusConflict, APIError{CodeRoomNotOpen, "Room has already started"}}
	case errors.Is(err, model.ErrDisplayNameTaken):
		return &httpError{http.StatusConflict, APIError{CodeDisplayNameTaken, "Display name already taken in this room"}}
	case errors.Is(err, model.ErrPlayersNotReady):
		return &httpError{http.StatusConflict, APIError{CodePlayersNotReady, "Not all players are ready"}}
	case errors.Is(err, model.ErrForbidden):
		return &httpError{http.StatusForbidden, APIError{CodeForbidden, "Only the host can perform this action"}}
	case errors.Is(err, model.ErrInvalidDisplayName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Display name must be 1-32 characters"}}

	// Capacity and dependency errors
	case errors.Is(err, model.ErrAllocationExhausted):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeAllocationExhausted, "No room codes available, try again later"}}
	case errors.Is(err, model.ErrRepositoryUnavailable):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeRepositoryUnavailable, "Storage temporarily unavailable, try again"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewUnauthenticatedError creates an authentication required error
func NewUnauthenticatedError() error {
	return &httpError{http.StatusUnauthorized, APIError{CodeUnauthenticated, "Authentication required"}}
}

// NewRateLimitedError creates a rate limited error
func NewRateLimitedError() error {
	return &httpError{http.StatusTooManyRequests, APIError{CodeRateLimited, "Too many requests"}}
}

// NewNotFoundError creates a route not found error
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{CodeNotFound, "Not found"}}
}

// NewMethodNotAllowedError creates a method not allowed error
func NewMethodNotAllowedError() error {
	return &httpError{http.StatusMethodNotAllowed, APIError{CodeMethodNotAllowed, "Method not allowed"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
