package lobby

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcoot/gamelobby/internal/dependencies/clock"
	"github.com/mcoot/gamelobby/internal/events"
	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/storage"
)

// Config controls coordinator behaviour
type Config struct {
	// OperationTimeout bounds every operation, including time spent waiting for the room lock
	OperationTimeout time.Duration
	// ReadRetries is how many times an idempotent read is retried after a repository failure
	ReadRetries int
	// ConflictRetries is how many times a mutation is re-run after a version conflict
	ConflictRetries int
	// RequireAllReady makes StartGame fail with ErrPlayersNotReady unless everyone is ready
	RequireAllReady bool
}

// DefaultConfig returns default coordinator configuration
func DefaultConfig() Config {
	return Config{
		OperationTimeout: 5 * time.Second,
		ReadRetries:      3,
		ConflictRetries:  5,
	}
}

// CoordinatorInterface defines the operations the transport layer needs
type CoordinatorInterface interface {
	HostGame(ctx context.Context, host model.UserID) (*model.Room, error)
	JoinGame(ctx context.Context, code model.RoomCode, displayName string) (*model.Room, error)
	ListPlayers(ctx context.Context, code model.RoomCode) ([]model.Player, bool, error)
	ToggleReady(ctx context.Context, code model.RoomCode, displayName string) (bool, error)
	StartGame(ctx context.Context, code model.RoomCode, requester model.UserID) (*model.Room, error)
	GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error)
	CloseRoom(ctx context.Context, code model.RoomCode, requester model.UserID) error
	ResolveRoom(ctx context.Context, code model.RoomCode) (model.RoomID, error)
}

// Ensure Coordinator implements CoordinatorInterface
var _ CoordinatorInterface = (*Coordinator)(nil)

// Coordinator runs the room state machine. Every mutation of a room happens
// inside that room's critical section and is committed with a versioned save.
type Coordinator struct {
	rooms     storage.RoomRepository
	registry  *Registry
	publisher events.Publisher
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
	locks     *roomLocks
}

// NewCoordinator creates a new Coordinator
func NewCoordinator(
	rooms storage.RoomRepository,
	registry *Registry,
	publisher events.Publisher,
	clock clock.Clock,
	logger *slog.Logger,
	cfg Config,
) *Coordinator {
	defaults := DefaultConfig()
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = defaults.OperationTimeout
	}
	if cfg.ReadRetries < 0 {
		cfg.ReadRetries = 0
	}
	if cfg.ConflictRetries <= 0 {
		cfg.ConflictRetries = defaults.ConflictRetries
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Coordinator{
		rooms:     rooms,
		registry:  registry,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		cfg:       cfg,
		locks:     newRoomLocks(),
	}
}

// HostGame creates a new open room owned by host
func (c *Coordinator) HostGame(ctx context.Context, host model.UserID) (*model.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	room, err := c.registry.CreateRoom(ctx, host)
	if err != nil {
		return nil, classify(err)
	}

	c.logger.Info("room created",
		slog.String("room_id", string(room.ID)),
		slog.String("code", string(room.Code)),
		slog.String("host", string(host)),
	)
	c.publish(ctx, room, model.EventRoomCreated, host, nil)
	return room, nil
}

// JoinGame adds a player with the given display name to an open room
func (c *Coordinator) JoinGame(ctx context.Context, code model.RoomCode, displayName string) (*model.Room, error) {
	name, err := validateDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	room, err := c.mutate(ctx, code, func(room *model.Room) error {
		if !room.IsOpen() {
			return model.ErrRoomNotOpen
		}
		if room.GetPlayer(name) != nil {
			return model.ErrDisplayNameTaken
		}
		room.Players = append(room.Players, model.Player{
			DisplayName: name,
			Ready:       false,
			JoinedAt:    c.clock.Now(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Debug("player joined",
		slog.String("code", string(room.Code)),
		slog.String("display_name", name),
		slog.Int("players", len(room.Players)),
	)
	c.publish(ctx, room, model.EventPlayerJoined, "", model.PlayerJoinedPayload{DisplayName: name})
	return room, nil
}

// ListPlayers returns the room's players in join order and whether all are ready
func (c *Coordinator) ListPlayers(ctx context.Context, code model.RoomCode) ([]model.Player, bool, error) {
	room, err := c.read(ctx, code)
	if err != nil {
		return nil, false, err
	}
	return room.Players, AllReady(room.Players), nil
}

// ToggleReady flips a player's readiness and returns the room's aggregate
// readiness as of that write
func (c *Coordinator) ToggleReady(ctx context.Context, code model.RoomCode, displayName string) (bool, error) {
	var ready, allReady bool
	room, err := c.mutate(ctx, code, func(room *model.Room) error {
		if !room.IsOpen() {
			return model.ErrRoomNotOpen
		}
		player := room.GetPlayer(strings.TrimSpace(displayName))
		if player == nil {
			return model.ErrPlayerNotFound
		}
		player.Ready = !player.Ready
		ready = player.Ready
		allReady = AllReady(room.Players)
		return nil
	})
	if err != nil {
		return false, err
	}

	c.logger.Debug("ready toggled",
		slog.String("code", string(room.Code)),
		slog.String("display_name", displayName),
		slog.Bool("ready", ready),
		slog.Bool("all_ready", allReady),
	)
	c.publish(ctx, room, model.EventReadyToggled, "", model.ReadyToggledPayload{
		DisplayName: strings.TrimSpace(displayName),
		Ready:       ready,
		AllReady:    allReady,
	})
	return allReady, nil
}

// StartGame transitions an open room to started. Only the host may start it.
func (c *Coordinator) StartGame(ctx context.Context, code model.RoomCode, requester model.UserID) (*model.Room, error) {
	room, err := c.mutate(ctx, code, func(room *model.Room) error {
		if !room.IsHost(requester) {
			return model.ErrForbidden
		}
		if !room.IsOpen() {
			return model.ErrRoomNotOpen
		}
		if c.cfg.RequireAllReady && !AllReady(room.Players) {
			return model.ErrPlayersNotReady
		}
		room.State = model.RoomStateStarted
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, len(room.Players))
	for i, p := range room.Players {
		names[i] = p.DisplayName
	}

	c.logger.Info("room started",
		slog.String("room_id", string(room.ID)),
		slog.String("code", string(room.Code)),
		slog.Int("players", len(room.Players)),
		slog.Int("ready", ReadyCount(room.Players)),
	)
	c.publish(ctx, room, model.EventRoomStarted, requester, model.RoomStartedPayload{
		Players:  names,
		AllReady: AllReady(room.Players),
	})
	return room, nil
}

// GetRoom returns a snapshot of the room
func (c *Coordinator) GetRoom(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	return c.read(ctx, code)
}

// CloseRoom deletes a room and frees its code. Only the host may close it.
func (c *Coordinator) CloseRoom(ctx context.Context, code model.RoomCode, requester model.UserID) error {
	code = NormalizeCode(string(code))
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	release, err := c.locks.acquire(ctx, code)
	if err != nil {
		return classify(err)
	}
	defer release()

	room, err := c.rooms.GetRoom(ctx, code)
	if err != nil {
		return classify(err)
	}
	if !room.IsHost(requester) {
		return model.ErrForbidden
	}
	if err := c.rooms.DeleteRoom(ctx, code); err != nil {
		return classify(err)
	}

	c.logger.Info("room closed",
		slog.String("room_id", string(room.ID)),
		slog.String("code", string(room.Code)),
	)
	c.publish(ctx, room, model.EventRoomClosed, requester, nil)
	return nil
}

// ResolveRoom maps a room code to its room ID
func (c *Coordinator) ResolveRoom(ctx context.Context, code model.RoomCode) (model.RoomID, error) {
	var id model.RoomID
	err := c.withReadRetry(ctx, func(ctx context.Context) error {
		var err error
		id, err = c.registry.ResolveRoom(ctx, code)
		return err
	})
	return id, err
}

// mutate runs fn against a fresh copy of the room inside the room's critical
// section and commits the result. If fn returns an error nothing is written.
// A version conflict (another process wrote first) re-runs the whole section.
func (c *Coordinator) mutate(ctx context.Context, code model.RoomCode, fn func(room *model.Room) error) (*model.Room, error) {
	code = NormalizeCode(string(code))
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	release, err := c.locks.acquire(ctx, code)
	if err != nil {
		return nil, classify(err)
	}
	defer release()

	for attempt := 1; ; attempt++ {
		room, err := c.rooms.GetRoom(ctx, code)
		if err != nil {
			return nil, classify(err)
		}

		if err := fn(room); err != nil {
			return nil, err
		}
		room.UpdatedAt = c.clock.Now()

		err = c.rooms.SaveRoom(ctx, room)
		if err == nil {
			return room, nil
		}
		if errors.Is(err, storage.ErrVersionConflict) && attempt <= c.cfg.ConflictRetries {
			c.logger.Debug("version conflict, retrying",
				slog.String("code", string(code)),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return nil, classify(err)
	}
}

// read loads a room snapshot without taking the room lock
func (c *Coordinator) read(ctx context.Context, code model.RoomCode) (*model.Room, error) {
	code = NormalizeCode(string(code))
	var room *model.Room
	err := c.withReadRetry(ctx, func(ctx context.Context) error {
		var err error
		room, err = c.rooms.GetRoom(ctx, code)
		return err
	})
	return room, err
}

// withReadRetry runs an idempotent read with bounded exponential backoff.
// Domain errors are returned immediately.
func (c *Coordinator) withReadRetry(ctx context.Context, op func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.OperationTimeout)
	defer cancel()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 250 * time.Millisecond
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.ReadRetries)), ctx)

	err := backoff.Retry(func() error {
		err := op(ctx)
		if err != nil && isDomainError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
	return classify(err)
}

func (c *Coordinator) publish(ctx context.Context, room *model.Room, eventType model.EventType, actor model.UserID, payload any) {
	event := model.Event{
		Type:      eventType,
		Timestamp: c.clock.Now(),
		RoomID:    room.ID,
		RoomCode:  room.Code,
		Actor:     actor,
		Payload:   payload,
	}
	// The operation has already committed; a cancelled request must not drop the event
	if err := c.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		c.logger.Warn("failed to publish event",
			slog.String("type", string(eventType)),
			slog.String("code", string(room.Code)),
			slog.String("error", err.Error()),
		)
	}
}

// validateDisplayName trims the name and rejects names that cannot be
// addressed as a single URL path segment
func validateDisplayName(displayName string) (string, error) {
	name := strings.TrimSpace(displayName)
	if name == "" || utf8.RuneCountInString(name) > model.MaxDisplayNameLength {
		return "", model.ErrInvalidDisplayName
	}
	if name == "." || name == ".." || strings.Contains(name, "/") {
		return "", model.ErrInvalidDisplayName
	}
	return name, nil
}

var domainErrors = []error{
	model.ErrRoomNotFound,
	model.ErrPlayerNotFound,
	model.ErrRoomNotOpen,
	model.ErrForbidden,
	model.ErrDisplayNameTaken,
	model.ErrInvalidDisplayName,
	model.ErrPlayersNotReady,
	model.ErrAllocationExhausted,
	model.ErrRepositoryUnavailable,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify passes domain errors through and reports everything else,
// including timeouts, as the repository being unavailable
func classify(err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrRepositoryUnavailable, err)
}
