package response

import (
	"time"

	"github.com/mcoot/gamelobby/internal/model"
)

// Account represents an account in API responses. The password hash is never exposed.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountFromModel converts a model.Account to a response Account
func AccountFromModel(a *model.Account) Account {
	return Account{
		ID:        string(a.ID),
		Username:  a.Username,
		CreatedAt: a.CreatedAt,
	}
}

// AuthResponse is the response for the login endpoint
type AuthResponse struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}

// Me is the response for the current user endpoint
type Me struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Player represents a room member
type Player struct {
	DisplayName string    `json:"display_name"`
	Ready       bool      `json:"ready"`
	JoinedAt    time.Time `json:"joined_at"`
}

// PlayersFromModel converts model players, keeping join order
func PlayersFromModel(players []model.Player) []Player {
	result := make([]Player, len(players))
	for i, p := range players {
		result[i] = Player{
			DisplayName: p.DisplayName,
			Ready:       p.Ready,
			JoinedAt:    p.JoinedAt,
		}
	}
	return result
}

// Room represents a room in API responses
type Room struct {
	ID         string    `json:"id"`
	Code       string    `json:"code"`
	HostUserID string    `json:"host_user_id"`
	State      string    `json:"state"`
	Players    []Player  `json:"players"`
	AllReady   bool      `json:"all_ready"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RoomFromModel converts a model.Room; allReady is computed by the caller
func RoomFromModel(r *model.Room, allReady bool) Room {
	return Room{
		ID:         string(r.ID),
		Code:       string(r.Code),
		HostUserID: string(r.HostUserID),
		State:      string(r.State),
		Players:    PlayersFromModel(r.Players),
		AllReady:   allReady,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// PlayerList is the response for listing a room's players
type PlayerList struct {
	Code     string   `json:"code"`
	Players  []Player `json:"players"`
	AllReady bool     `json:"all_ready"`
}

// ReadyState is the response for toggling readiness
type ReadyState struct {
	Code        string `json:"code"`
	DisplayName string `json:"display_name"`
	AllReady    bool   `json:"all_ready"`
}

// Health is the response for the health endpoint
type Health struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
