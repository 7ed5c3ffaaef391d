package lobby

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/mcoot/gamelobby/internal/dependencies/clock"
	"github.com/mcoot/gamelobby/internal/dependencies/random"
	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/storage"
)

const (
	// DefaultCodeLength is the length of generated room codes
	DefaultCodeLength = 6
	// CodeAlphabet is the characters used in room codes (avoids confusable chars)
	CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// DefaultMaxAttempts is how many random codes are tried before probing
	DefaultMaxAttempts = 16
	// DefaultProbeLimit bounds the sequential probe after random attempts fail
	DefaultProbeLimit = 4096
)

// RegistryConfig controls room code generation
type RegistryConfig struct {
	CodeLength  int
	Alphabet    string
	MaxAttempts int
	ProbeLimit  int
}

// DefaultRegistryConfig returns the default code generation settings
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		CodeLength:  DefaultCodeLength,
		Alphabet:    CodeAlphabet,
		MaxAttempts: DefaultMaxAttempts,
		ProbeLimit:  DefaultProbeLimit,
	}
}

// Registry allocates room codes and resolves them back to rooms
type Registry struct {
	rooms  storage.RoomRepository
	clock  clock.Clock
	random random.Random
	cfg    RegistryConfig
	logger *slog.Logger
}

// NewRegistry creates a new Registry
func NewRegistry(
	rooms storage.RoomRepository,
	clock clock.Clock,
	random random.Random,
	cfg RegistryConfig,
	logger *slog.Logger,
) *Registry {
	defaults := DefaultRegistryConfig()
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = defaults.CodeLength
	}
	if cfg.Alphabet == "" {
		cfg.Alphabet = defaults.Alphabet
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.ProbeLimit <= 0 {
		cfg.ProbeLimit = defaults.ProbeLimit
	}
	return &Registry{
		rooms:  rooms,
		clock:  clock,
		random: random,
		cfg:    cfg,
		logger: logger,
	}
}

// NormalizeCode trims and upper-cases a user supplied room code
func NormalizeCode(code string) model.RoomCode {
	return model.RoomCode(strings.ToUpper(strings.TrimSpace(code)))
}

// CreateRoom reserves a fresh code and persists an open, empty room owned by host.
// Returns model.ErrAllocationExhausted when no free code could be found.
func (r *Registry) CreateRoom(ctx context.Context, host model.UserID) (*model.Room, error) {
	now := r.clock.Now()
	room := &model.Room{
		ID:         model.RoomID(uuid.NewString()),
		HostUserID: host,
		State:      model.RoomStateOpen,
		Players:    []model.Player{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for i := 0; i < r.cfg.MaxAttempts; i++ {
		code := model.RoomCode(r.random.String(r.cfg.CodeLength, r.cfg.Alphabet))
		ok, err := r.reserve(ctx, room, code)
		if err != nil {
			return nil, err
		}
		if ok {
			return room, nil
		}
	}

	// Random attempts keep colliding: walk the code space from a random start.
	// When the whole space fits in the probe limit this visits every code.
	space := r.codeSpace()
	probes := min(space, r.cfg.ProbeLimit)
	start := r.random.Intn(space)
	for i := 0; i < probes; i++ {
		code := r.codeAt((start + i) % space)
		ok, err := r.reserve(ctx, room, code)
		if err != nil {
			return nil, err
		}
		if ok {
			return room, nil
		}
	}

	r.logger.Warn("room code allocation exhausted",
		slog.Int("attempts", r.cfg.MaxAttempts),
		slog.Int("probes", probes),
		slog.Int("space", space),
	)
	return nil, model.ErrAllocationExhausted
}

// ResolveRoom maps a room code to the live room's ID
func (r *Registry) ResolveRoom(ctx context.Context, code model.RoomCode) (model.RoomID, error) {
	room, err := r.rooms.GetRoom(ctx, NormalizeCode(string(code)))
	if err != nil {
		return "", err
	}
	return room.ID, nil
}

func (r *Registry) reserve(ctx context.Context, room *model.Room, code model.RoomCode) (bool, error) {
	if len(code) != r.cfg.CodeLength {
		return false, nil
	}
	room.Code = code
	err := r.rooms.CreateRoom(ctx, room)
	if errors.Is(err, storage.ErrRoomCodeTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// codeSpace is the number of distinct codes, capped at MaxInt32
func (r *Registry) codeSpace() int {
	n := len(r.cfg.Alphabet)
	space := 1
	for i := 0; i < r.cfg.CodeLength; i++ {
		if space > math.MaxInt32/n {
			return math.MaxInt32
		}
		space *= n
	}
	return space
}

// codeAt returns the code with the given index in the code space
func (r *Registry) codeAt(index int) model.RoomCode {
	n := len(r.cfg.Alphabet)
	b := make([]byte, r.cfg.CodeLength)
	for i := r.cfg.CodeLength - 1; i >= 0; i-- {
		b[i] = r.cfg.Alphabet[index%n]
		index /= n
	}
	return model.RoomCode(b)
}
