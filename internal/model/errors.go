package model

import "errors"

// Common errors used across the application
var (
	// Identity errors
	ErrUnauthenticated   = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrAccountNotFound   = errors.New("account not found")
	ErrUsernameTaken     = errors.New("username already exists")
	ErrInvalidAccount    = errors.New("invalid username or password format")

	// Room errors
	ErrRoomNotFound        = errors.New("room not found")
	ErrPlayerNotFound      = errors.New("player not found")
	ErrRoomNotOpen         = errors.New("room is not open")
	ErrForbidden           = errors.New("only the host can perform this action")
	ErrDisplayNameTaken    = errors.New("display name already taken in this room")
	ErrInvalidDisplayName  = errors.New("invalid display name")
	ErrPlayersNotReady     = errors.New("not all players are ready")
	ErrAllocationExhausted = errors.New("room code space exhausted")

	// Dependency errors
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)
