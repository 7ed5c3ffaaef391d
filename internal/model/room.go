package model

import "time"

// RoomID is the internal primary key of a room
type RoomID string

// RoomCode is a short human-shareable identifier for joining rooms
type RoomCode string

// UserID identifies an authenticated account
type UserID string

// RoomState represents the current lifecycle state of a room
type RoomState string

const (
	RoomStateOpen    RoomState = "open"    // Accepting joins and readiness toggles
	RoomStateStarted RoomState = "started" // Terminal: session handed off to the game
)

// MaxDisplayNameLength bounds the length of a player's display name
const MaxDisplayNameLength = 32

// Player is a per-room membership record, distinct from the Account that created it
type Player struct {
	DisplayName string
	Ready       bool
	JoinedAt    time.Time
}

// Room is a single lobby owned by its host account
type Room struct {
	ID         RoomID
	Code       RoomCode
	HostUserID UserID
	State      RoomState
	Players    []Player // Join order

	// Version is bumped on every successful save and used for optimistic concurrency
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOpen returns true if the room still accepts joins and toggles
func (r *Room) IsOpen() bool {
	return r.State == RoomStateOpen
}

// IsHost returns true if the given user created this room
func (r *Room) IsHost(userID UserID) bool {
	return r.HostUserID == userID
}

// GetPlayer returns the player with the given display name, or nil if not found
func (r *Room) GetPlayer(displayName string) *Player {
	for i := range r.Players {
		if r.Players[i].DisplayName == displayName {
			return &r.Players[i]
		}
	}
	return nil
}

// Clone returns a deep copy of the room
func (r *Room) Clone() *Room {
	c := *r
	c.Players = make([]Player, len(r.Players))
	copy(c.Players, r.Players)
	return &c
}
