package lobby

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"github.com/mcoot/gamelobby/internal/dependencies/mocks"
	"github.com/mcoot/gamelobby/internal/dependencies/random"
	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/storage/memory"
	"github.com/mcoot/gamelobby/internal/testutil"
)

const hostID = model.UserID("host-1")

type CoordinatorSuite struct {
	suite.Suite
	storage     *memory.Storage
	rooms       *faultyRooms
	clock       *mocks.MockClock
	random      *mocks.MockRandom
	publisher   *mocks.RecordingPublisher
	coordinator *Coordinator
	ctx         context.Context
}

func TestCoordinatorSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorSuite))
}

func (s *CoordinatorSuite) SetupTest() {
	s.storage = memory.New()
	s.rooms = &faultyRooms{RoomRepository: s.storage}
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.random.Fallback = random.New()
	s.publisher = mocks.NewRecordingPublisher()
	s.ctx = context.Background()
	s.coordinator = s.newCoordinator(DefaultConfig(), DefaultRegistryConfig())
}

func (s *CoordinatorSuite) newCoordinator(cfg Config, registryCfg RegistryConfig) *Coordinator {
	logger := testutil.NopLogger()
	registry := NewRegistry(s.rooms, s.clock, s.random, registryCfg, logger)
	return NewCoordinator(s.rooms, registry, s.publisher, s.clock, logger, cfg)
}

func (s *CoordinatorSuite) hostRoom() *model.Room {
	s.random.QueueString("ABC123")
	room, err := s.coordinator.HostGame(s.ctx, hostID)
	s.Require().NoError(err)
	return room
}

func (s *CoordinatorSuite) join(code model.RoomCode, names ...string) {
	for _, name := range names {
		_, err := s.coordinator.JoinGame(s.ctx, code, name)
		s.Require().NoError(err)
	}
}

func (s *CoordinatorSuite) names(players []model.Player) []string {
	result := make([]string, len(players))
	for i, p := range players {
		result[i] = p.DisplayName
	}
	return result
}

// HostGame tests

func (s *CoordinatorSuite) TestHostGameCreatesOpenRoom() {
	room := s.hostRoom()

	s.Equal(model.RoomCode("ABC123"), room.Code)
	s.Equal(hostID, room.HostUserID)
	s.Equal(model.RoomStateOpen, room.State)
	s.Empty(room.Players)
	s.Equal([]model.EventType{model.EventRoomCreated}, s.publisher.Types())
}

func (s *CoordinatorSuite) TestHostGameAllocationExhausted() {
	coordinator := s.newCoordinator(DefaultConfig(), RegistryConfig{CodeLength: 1, Alphabet: "A", MaxAttempts: 1})
	s.random.Fallback = nil
	s.random.QueueString("A")
	_, err := coordinator.HostGame(s.ctx, hostID)
	s.Require().NoError(err)

	s.random.QueueString("A")
	_, err = coordinator.HostGame(s.ctx, "host-2")
	s.ErrorIs(err, model.ErrAllocationExhausted)
}

func (s *CoordinatorSuite) TestHostGameRepositoryUnavailable() {
	s.rooms.set(func(f *faultyRooms) { f.createFailure = errBackendDown })

	_, err := s.coordinator.HostGame(s.ctx, hostID)
	s.ErrorIs(err, model.ErrRepositoryUnavailable)
	s.Empty(s.publisher.Events())
}

// JoinGame tests

func (s *CoordinatorSuite) TestJoinGameAppendsUnreadyPlayer() {
	room := s.hostRoom()

	updated, err := s.coordinator.JoinGame(s.ctx, room.Code, "Alice")
	s.Require().NoError(err)
	s.Require().Len(updated.Players, 1)
	s.Equal("Alice", updated.Players[0].DisplayName)
	s.False(updated.Players[0].Ready)
	s.Equal(s.clock.Now(), updated.Players[0].JoinedAt)

	events := s.publisher.Events()
	s.Require().Len(events, 2)
	s.Equal(model.EventPlayerJoined, events[1].Type)
	s.Equal(model.PlayerJoinedPayload{DisplayName: "Alice"}, events[1].Payload)
}

func (s *CoordinatorSuite) TestJoinGameRoomNotFound() {
	_, err := s.coordinator.JoinGame(s.ctx, "NOPE99", "Alice")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *CoordinatorSuite) TestJoinGameNormalizesCode() {
	room := s.hostRoom()

	_, err := s.coordinator.JoinGame(s.ctx, model.RoomCode(strings.ToLower(string(room.Code))), "Alice")
	s.Require().NoError(err)

	players, _, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.Len(players, 1)
}

func (s *CoordinatorSuite) TestJoinGameDuplicateName() {
	room := s.hostRoom()
	s.join(room.Code, "Alice")

	_, err := s.coordinator.JoinGame(s.ctx, room.Code, "Alice")
	s.ErrorIs(err, model.ErrDisplayNameTaken)

	_, err = s.coordinator.JoinGame(s.ctx, room.Code, "  Alice ")
	s.ErrorIs(err, model.ErrDisplayNameTaken)

	players, _, _ := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Len(players, 1)
}

func (s *CoordinatorSuite) TestJoinGameInvalidDisplayName() {
	room := s.hostRoom()

	invalid := []string{"", "   ", strings.Repeat("x", model.MaxDisplayNameLength+1), "a/b", "/", ".", " .. "}
	for _, name := range invalid {
		_, err := s.coordinator.JoinGame(s.ctx, room.Code, name)
		s.ErrorIs(err, model.ErrInvalidDisplayName, "name %q", name)
	}

	_, err := s.coordinator.JoinGame(s.ctx, room.Code, strings.Repeat("é", model.MaxDisplayNameLength))
	s.NoError(err)

	for _, name := range []string{"Alice Smith", "...", "a.b", "50%"} {
		_, err := s.coordinator.JoinGame(s.ctx, room.Code, name)
		s.NoError(err, "name %q", name)
	}
}

func (s *CoordinatorSuite) TestJoinGameAfterStartFails() {
	room := s.hostRoom()
	s.join(room.Code, "Alice")
	_, err := s.coordinator.StartGame(s.ctx, room.Code, hostID)
	s.Require().NoError(err)

	_, err = s.coordinator.JoinGame(s.ctx, room.Code, "Carol")
	s.ErrorIs(err, model.ErrRoomNotOpen)
}

// ListPlayers tests

func (s *CoordinatorSuite) TestListPlayersEmptyLobbyNotReady() {
	room := s.hostRoom()

	players, allReady, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.Empty(players)
	s.False(allReady)
}

func (s *CoordinatorSuite) TestListPlayersJoinOrder() {
	room := s.hostRoom()
	s.join(room.Code, "Zed", "Alice", "Mia")

	players, _, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.Equal([]string{"Zed", "Alice", "Mia"}, s.names(players))
}

func (s *CoordinatorSuite) TestListPlayersRoomNotFound() {
	_, _, err := s.coordinator.ListPlayers(s.ctx, "NOPE99")
	s.ErrorIs(err, model.ErrRoomNotFound)

	gets, _ := s.rooms.calls()
	s.Equal(1, gets, "not found is not retried")
}

func (s *CoordinatorSuite) TestListPlayersRetriesTransientFailures() {
	room := s.hostRoom()
	s.join(room.Code, "Alice")
	s.rooms.set(func(f *faultyRooms) { f.getFailures = 2 })

	players, _, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.Len(players, 1)
}

func (s *CoordinatorSuite) TestListPlayersGivesUpAfterRetries() {
	room := s.hostRoom()
	s.rooms.set(func(f *faultyRooms) { f.getFailures = 100 })

	_, _, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.ErrorIs(err, model.ErrRepositoryUnavailable)
}

// ToggleReady tests

func (s *CoordinatorSuite) TestToggleReadyIsItsOwnInverse() {
	room := s.hostRoom()
	s.join(room.Code, "Alice")

	allReady, err := s.coordinator.ToggleReady(s.ctx, room.Code, "Alice")
	s.Require().NoError(err)
	s.True(allReady)

	allReady, err = s.coordinator.ToggleReady(s.ctx, room.Code, "Alice")
	s.Require().NoError(err)
	s.False(allReady)

	players, _, _ := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.False(players[0].Ready)
}

func (s *CoordinatorSuite) TestToggleReadyPlayerNotFound() {
	room := s.hostRoom()

	_, err := s.coordinator.ToggleReady(s.ctx, room.Code, "Ghost")
	s.ErrorIs(err, model.ErrPlayerNotFound)
}

func (s *CoordinatorSuite) TestToggleReadyRoomNotFound() {
	_, err := s.coordinator.ToggleReady(s.ctx, "NOPE99", "Alice")
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *CoordinatorSuite) TestToggleReadyAfterStartFails() {
	room := s.hostRoom()
	s.join(room.Code, "Alice")
	_, _ = s.coordinator.StartGame(s.ctx, room.Code, hostID)

	_, err := s.coordinator.ToggleReady(s.ctx, room.Code, "Alice")
	s.ErrorIs(err, model.ErrRoomNotOpen)

	_, err = s.coordinator.ToggleReady(s.ctx, room.Code, "Ghost")
	s.ErrorIs(err, model.ErrRoomNotOpen)
}

func (s *CoordinatorSuite) TestToggleReadyPublishesEvent() {
	room := s.hostRoom()
	s.join(room.Code, "Alice", "Bob")

	_, _ = s.coordinator.ToggleReady(s.ctx, room.Code, "Bob")

	events := s.publisher.Events()
	last := events[len(events)-1]
	s.Equal(model.EventReadyToggled, last.Type)
	s.Equal(model.ReadyToggledPayload{DisplayName: "Bob", Ready: true, AllReady: false}, last.Payload)
}

// StartGame tests

func (s *CoordinatorSuite) TestStartGameByHost() {
	room := s.hostRoom()
	s.join(room.Code, "Alice")

	started, err := s.coordinator.StartGame(s.ctx, room.Code, hostID)
	s.Require().NoError(err)
	s.Equal(model.RoomStateStarted, started.State)

	stored, _ := s.coordinator.GetRoom(s.ctx, room.Code)
	s.Equal(model.RoomStateStarted, stored.State)

	events := s.publisher.Events()
	last := events[len(events)-1]
	s.Equal(model.EventRoomStarted, last.Type)
	s.Equal(hostID, last.Actor)
	s.Equal(model.RoomStartedPayload{Players: []string{"Alice"}, AllReady: false}, last.Payload)
}

func (s *CoordinatorSuite) TestStartGameNonHostForbidden() {
	room := s.hostRoom()

	_, err := s.coordinator.StartGame(s.ctx, room.Code, "someone-else")
	s.ErrorIs(err, model.ErrForbidden)

	stored, _ := s.coordinator.GetRoom(s.ctx, room.Code)
	s.Equal(model.RoomStateOpen, stored.State)
}

func (s *CoordinatorSuite) TestStartGameTwice() {
	room := s.hostRoom()
	_, err := s.coordinator.StartGame(s.ctx, room.Code, hostID)
	s.Require().NoError(err)

	_, err = s.coordinator.StartGame(s.ctx, room.Code, hostID)
	s.ErrorIs(err, model.ErrRoomNotOpen)
}

func (s *CoordinatorSuite) TestStartGameRoomNotFound() {
	_, err := s.coordinator.StartGame(s.ctx, "NOPE99", hostID)
	s.ErrorIs(err, model.ErrRoomNotFound)
}

func (s *CoordinatorSuite) TestStartGameEmptyRoomAllowedByDefault() {
	room := s.hostRoom()

	_, err := s.coordinator.StartGame(s.ctx, room.Code, hostID)
	s.NoError(err)
}

func (s *CoordinatorSuite) TestStartGameRequireAllReady() {
	cfg := DefaultConfig()
	cfg.RequireAllReady = true
	s.coordinator = s.newCoordinator(cfg, DefaultRegistryConfig())
	room := s.hostRoom()
	s.join(room.Code, "Alice", "Bob")
	_, _ = s.coordinator.ToggleReady(s.ctx, room.Code, "Alice")

	_, err := s.coordinator.StartGame(s.ctx, room.Code, hostID)
	s.ErrorIs(err, model.ErrPlayersNotReady)

	_, _ = s.coordinator.ToggleReady(s.ctx, room.Code, "Bob")
	_, err = s.coordinator.StartGame(s.ctx, room.Code, hostID)
	s.NoError(err)
}

// CloseRoom / ResolveRoom tests

func (s *CoordinatorSuite) TestCloseRoom() {
	room := s.hostRoom()

	err := s.coordinator.CloseRoom(s.ctx, room.Code, "someone-else")
	s.ErrorIs(err, model.ErrForbidden)

	err = s.coordinator.CloseRoom(s.ctx, room.Code, hostID)
	s.Require().NoError(err)

	_, err = s.coordinator.ResolveRoom(s.ctx, room.Code)
	s.ErrorIs(err, model.ErrRoomNotFound)

	err = s.coordinator.CloseRoom(s.ctx, room.Code, hostID)
	s.ErrorIs(err, model.ErrRoomNotFound)

	s.Equal(model.EventRoomClosed, s.publisher.Types()[1])
}

func (s *CoordinatorSuite) TestResolveRoom() {
	room := s.hostRoom()

	id, err := s.coordinator.ResolveRoom(s.ctx, "abc123")
	s.Require().NoError(err)
	s.Equal(room.ID, id)
}

// Failure handling

func (s *CoordinatorSuite) TestFailedSaveLeavesRoomUnchanged() {
	room := s.hostRoom()
	s.join(room.Code, "Alice")
	s.rooms.set(func(f *faultyRooms) { f.saveFailures = 1 })

	_, err := s.coordinator.ToggleReady(s.ctx, room.Code, "Alice")
	s.ErrorIs(err, model.ErrRepositoryUnavailable)

	players, allReady, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.False(players[0].Ready)
	s.False(allReady)
}

func (s *CoordinatorSuite) TestVersionConflictRerunsSection() {
	room := s.hostRoom()
	s.rooms.set(func(f *faultyRooms) { f.conflicts = 2 })

	_, err := s.coordinator.JoinGame(s.ctx, room.Code, "Alice")
	s.Require().NoError(err)

	_, saves := s.rooms.calls()
	s.Equal(3, saves)
}

func (s *CoordinatorSuite) TestPersistentConflictIsUnavailable() {
	room := s.hostRoom()
	s.rooms.set(func(f *faultyRooms) { f.conflicts = 100 })

	_, err := s.coordinator.JoinGame(s.ctx, room.Code, "Alice")
	s.ErrorIs(err, model.ErrRepositoryUnavailable)
}

func (s *CoordinatorSuite) TestStalledRepositoryTimesOut() {
	cfg := DefaultConfig()
	cfg.OperationTimeout = 20 * time.Millisecond
	s.coordinator = s.newCoordinator(cfg, DefaultRegistryConfig())
	room := s.hostRoom()
	s.rooms.set(func(f *faultyRooms) { f.stall = true })

	_, err := s.coordinator.JoinGame(s.ctx, room.Code, "Alice")
	s.ErrorIs(err, model.ErrRepositoryUnavailable)

	_, _, err = s.coordinator.ListPlayers(s.ctx, room.Code)
	s.ErrorIs(err, model.ErrRepositoryUnavailable)
}

func (s *CoordinatorSuite) TestPublishFailureDoesNotFailOperation() {
	s.publisher.Err = errors.New("broker down")

	room := s.hostRoom()
	_, err := s.coordinator.JoinGame(s.ctx, room.Code, "Alice")
	s.NoError(err)
}

// Concurrency

func (s *CoordinatorSuite) TestConcurrentJoinsAreAllRecorded() {
	room := s.hostRoom()
	const n = 50

	g, ctx := errgroup.WithContext(s.ctx)
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("player-%02d", i)
		g.Go(func() error {
			_, err := s.coordinator.JoinGame(ctx, room.Code, name)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	players, _, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.Len(players, n)

	seen := make(map[string]bool)
	for _, p := range players {
		s.False(seen[p.DisplayName], "duplicate %s", p.DisplayName)
		seen[p.DisplayName] = true
	}
}

func (s *CoordinatorSuite) TestConcurrentSameNameJoinSingleWinner() {
	room := s.hostRoom()
	const n = 20

	var wins, taken int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			_, err := s.coordinator.JoinGame(s.ctx, room.Code, "Alice")
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case errors.Is(err, model.ErrDisplayNameTaken):
				atomic.AddInt32(&taken, 1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int32(1), wins)
	s.Equal(int32(n-1), taken)
}

func (s *CoordinatorSuite) TestConcurrentTogglesAllReady() {
	room := s.hostRoom()
	const n = 30
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("player-%02d", i)
	}
	s.join(room.Code, names...)

	var sawAllReady int32
	var g errgroup.Group
	for _, name := range names {
		name := name
		g.Go(func() error {
			allReady, err := s.coordinator.ToggleReady(s.ctx, room.Code, name)
			if allReady {
				atomic.AddInt32(&sawAllReady, 1)
			}
			return err
		})
	}
	s.Require().NoError(g.Wait())

	// Only the toggle that committed last observes a fully ready room
	s.Equal(int32(1), sawAllReady)

	players, allReady, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.True(allReady)
	for _, p := range players {
		s.True(p.Ready, p.DisplayName)
	}
}

func (s *CoordinatorSuite) TestStartRacingJoins() {
	room := s.hostRoom()
	const n = 40

	var accepted []string
	results := make([]error, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			_, results[i] = s.coordinator.JoinGame(s.ctx, room.Code, fmt.Sprintf("player-%02d", i))
			return nil
		})
		if i == n/2 {
			g.Go(func() error {
				_, err := s.coordinator.StartGame(s.ctx, room.Code, hostID)
				return err
			})
		}
	}
	s.Require().NoError(g.Wait())

	for i, err := range results {
		if err == nil {
			accepted = append(accepted, fmt.Sprintf("player-%02d", i))
			continue
		}
		s.ErrorIs(err, model.ErrRoomNotOpen)
	}

	players, _, err := s.coordinator.ListPlayers(s.ctx, room.Code)
	s.Require().NoError(err)
	s.ElementsMatch(accepted, s.names(players))

	stored, _ := s.coordinator.GetRoom(s.ctx, room.Code)
	s.Equal(model.RoomStateStarted, stored.State)
}

// End-to-end lobby flow

func (s *CoordinatorSuite) TestLobbyScenario() {
	s.coordinator = s.newCoordinator(DefaultConfig(), RegistryConfig{CodeLength: 4})
	s.random.QueueString("AB12")

	room, err := s.coordinator.HostGame(s.ctx, "42")
	s.Require().NoError(err)
	s.Equal(model.RoomCode("AB12"), room.Code)

	s.join("AB12", "Alice", "Bob")

	players, allReady, err := s.coordinator.ListPlayers(s.ctx, "AB12")
	s.Require().NoError(err)
	s.Equal([]string{"Alice", "Bob"}, s.names(players))
	s.False(players[0].Ready)
	s.False(players[1].Ready)
	s.False(allReady)

	allReady, err = s.coordinator.ToggleReady(s.ctx, "AB12", "Alice")
	s.Require().NoError(err)
	s.False(allReady)

	allReady, err = s.coordinator.ToggleReady(s.ctx, "AB12", "Bob")
	s.Require().NoError(err)
	s.True(allReady)

	_, err = s.coordinator.StartGame(s.ctx, "AB12", "42")
	s.Require().NoError(err)

	_, err = s.coordinator.JoinGame(s.ctx, "AB12", "Carol")
	s.ErrorIs(err, model.ErrRoomNotOpen)

	s.Equal([]model.EventType{
		model.EventRoomCreated,
		model.EventPlayerJoined,
		model.EventPlayerJoined,
		model.EventReadyToggled,
		model.EventReadyToggled,
		model.EventRoomStarted,
	}, s.publisher.Types())
	s.Zero(s.coordinator.locks.size())
}
