package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventRoomCreated  EventType = "room_created"
	EventPlayerJoined EventType = "player_joined"
	EventReadyToggled EventType = "ready_toggled"
	EventRoomStarted  EventType = "room_started"
	EventRoomClosed   EventType = "room_closed"
)

// Event is the base structure for all lobby events
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RoomID    RoomID    `json:"room_id"`
	RoomCode  RoomCode  `json:"room_code"`
	Actor     UserID    `json:"actor,omitempty"` // Empty when the action carries no account
	Payload   any       `json:"payload,omitempty"`
}

// PlayerJoinedPayload contains data for player joined events
type PlayerJoinedPayload struct {
	DisplayName string `json:"display_name"`
}

// ReadyToggledPayload contains data for ready toggled events
type ReadyToggledPayload struct {
	DisplayName string `json:"display_name"`
	Ready       bool   `json:"ready"`
	AllReady    bool   `json:"all_ready"`
}

// RoomStartedPayload contains data for room started events
type RoomStartedPayload struct {
	Players  []string `json:"players"`
	AllReady bool     `json:"all_ready"`
}
