package handler

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/mcoot/gamelobby/internal/api/middleware"
	"github.com/mcoot/gamelobby/internal/api/request"
	"github.com/mcoot/gamelobby/internal/api/response"
	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/services/lobby"
)

// RoomHandler handles room endpoints
type RoomHandler struct {
	coordinator lobby.CoordinatorInterface
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(coordinator lobby.CoordinatorInterface) *RoomHandler {
	return &RoomHandler{
		coordinator: coordinator,
	}
}

func roomCode(r *http.Request) model.RoomCode {
	return lobby.NormalizeCode(mux.Vars(r)["code"])
}

// Host handles POST /api/v1/rooms
func (h *RoomHandler) Host(w http.ResponseWriter, r *http.Request) {
	userID := middleware.MustGetUserID(r.Context())

	room, err := h.coordinator.HostGame(r.Context(), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RoomFromModel(room, false))
}

// Get handles GET /api/v1/rooms/{code}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.coordinator.GetRoom(r.Context(), roomCode(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomFromModel(room, lobby.AllReady(room.Players)))
}

// Close handles DELETE /api/v1/rooms/{code}
func (h *RoomHandler) Close(w http.ResponseWriter, r *http.Request) {
	userID := middleware.MustGetUserID(r.Context())

	if err := h.coordinator.CloseRoom(r.Context(), roomCode(r), userID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Join handles POST /api/v1/rooms/{code}/players
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req request.JoinRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	room, err := h.coordinator.JoinGame(r.Context(), roomCode(r), req.DisplayName)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.RoomFromModel(room, lobby.AllReady(room.Players)))
}

// ListPlayers handles GET /api/v1/rooms/{code}/players
func (h *RoomHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)

	players, allReady, err := h.coordinator.ListPlayers(r.Context(), code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerList{
		Code:     string(code),
		Players:  response.PlayersFromModel(players),
		AllReady: allReady,
	})
}

// ToggleReady handles POST /api/v1/rooms/{code}/players/{name}/ready
func (h *RoomHandler) ToggleReady(w http.ResponseWriter, r *http.Request) {
	code := roomCode(r)
	name := mux.Vars(r)["name"]

	allReady, err := h.coordinator.ToggleReady(r.Context(), code, name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.ReadyState{
		Code:        string(code),
		DisplayName: strings.TrimSpace(name),
		AllReady:    allReady,
	})
}

// Start handles POST /api/v1/rooms/{code}/start
func (h *RoomHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.MustGetUserID(r.Context())

	room, err := h.coordinator.StartGame(r.Context(), roomCode(r), userID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomFromModel(room, lobby.AllReady(room.Players)))
}
