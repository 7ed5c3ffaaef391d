package factory

import (
	"io"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamelobby/internal/dependencies/mocks"
	"github.com/mcoot/gamelobby/internal/dependencies/random"
	"github.com/mcoot/gamelobby/internal/services/auth"
	"github.com/mcoot/gamelobby/internal/services/lobby"
	"github.com/mcoot/gamelobby/internal/storage/memory"
)

// TestSecret signs tokens issued by a TestApp
var TestSecret = []byte("test-secret-not-for-production")

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock     *mocks.MockClock
	MockRandom    *mocks.MockRandom
	MockPublisher *mocks.RecordingPublisher
	MemoryStorage *memory.Storage
}

// NewTestApp creates an App configured for testing with mocked dependencies.
// Unqueued random calls fall through to a real generator.
func NewTestApp() *TestApp {
	return NewTestAppWithConfig(lobby.DefaultConfig())
}

// NewTestAppWithConfig is NewTestApp with custom coordinator settings
func NewTestAppWithConfig(lobbyCfg lobby.Config) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockRandom.Fallback = random.New()
	publisher := mocks.NewRecordingPublisher()

	authCfg := auth.DefaultConfig()
	authCfg.Secret = TestSecret
	authCfg.BcryptCost = bcrypt.MinCost

	cfg := Config{
		AuthConfig:     authCfg,
		LobbyConfig:    lobbyCfg,
		RegistryConfig: lobby.DefaultRegistryConfig(),
	}

	app, err := newWithDependencies(store, mockClock, mockRandom, publisher, cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		panic(err)
	}

	return &TestApp{
		App:           app,
		MockClock:     mockClock,
		MockRandom:    mockRandom,
		MockPublisher: publisher,
		MemoryStorage: store,
	}
}

// AuthConfigForTest returns the auth configuration TestApps are built with
func (t *TestApp) AuthConfigForTest() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.Secret = TestSecret
	cfg.BcryptCost = bcrypt.MinCost
	return cfg
}
