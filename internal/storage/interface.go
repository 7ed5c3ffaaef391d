package storage

import (
	"context"
	"errors"

	"github.com/mcoot/gamelobby/internal/model"
)

// Errors returned by every Storage implementation in addition to the model errors
var (
	// ErrRoomCodeTaken is returned by CreateRoom when the code belongs to a live room
	ErrRoomCodeTaken = errors.New("room code already in use")
	// ErrVersionConflict is returned by SaveRoom when the stored version has moved on
	ErrVersionConflict = errors.New("room version conflict")
)

// RoomRepository persists Room aggregates (the room plus its players)
type RoomRepository interface {
	// CreateRoom atomically reserves room.Code. It fails with ErrRoomCodeTaken
	// if a live room already holds the code.
	CreateRoom(ctx context.Context, room *model.Room) error
	// GetRoom returns a copy of the room, or model.ErrRoomNotFound
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	// SaveRoom writes the room if the stored Version equals room.Version and
	// then increments room.Version. Otherwise it fails with ErrVersionConflict
	// and nothing is written.
	SaveRoom(ctx context.Context, room *model.Room) error
	// DeleteRoom removes the room, freeing its code
	DeleteRoom(ctx context.Context, code model.RoomCode) error
}

// AccountRepository persists registered accounts
type AccountRepository interface {
	// CreateAccount fails with model.ErrUsernameTaken if the username exists
	CreateAccount(ctx context.Context, account *model.Account) error
	GetAccount(ctx context.Context, id model.UserID) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
}

// Storage defines the interface for data persistence
type Storage interface {
	RoomRepository
	AccountRepository

	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
	// Close releases backend resources
	Close() error
}
