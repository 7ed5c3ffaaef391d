// Package config loads server configuration from the environment.
package config

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Config is the complete server configuration
type Config struct {
	Host string
	Port int

	StorageType string
	RedisURL    string
	DatabaseURL string

	JWTSecret []byte
	TokenTTL  time.Duration
	DevMode   bool

	RoomCodeLength   int
	OperationTimeout time.Duration
	ReadRetries      int
	RequireAllReady  bool

	NATSURL string

	CORSOrigins        []string
	RateLimitPerMinute int
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads the given .env files (default ".env", missing files are ignored)
// and then parses the process environment
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, path := range envFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return Parse(os.Getenv)
}

// Parse builds a Config from an environment lookup function
func Parse(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Host:               p.str("LOBBY_HOST", ""),
		Port:               p.integer("LOBBY_PORT", 8080),
		StorageType:        strings.ToLower(p.str("STORAGE_TYPE", StorageMemory)),
		RedisURL:           p.str("REDIS_URL", ""),
		DatabaseURL:        p.str("DATABASE_URL", ""),
		TokenTTL:           p.duration("TOKEN_TTL", time.Hour),
		DevMode:            p.boolean("LOBBY_DEV_MODE", false),
		RoomCodeLength:     p.integer("ROOM_CODE_LENGTH", 6),
		OperationTimeout:   p.duration("OPERATION_TIMEOUT", 5*time.Second),
		ReadRetries:        p.integer("READ_RETRIES", 3),
		RequireAllReady:    p.boolean("REQUIRE_ALL_READY", false),
		NATSURL:            p.str("NATS_URL", ""),
		CORSOrigins:        p.list("CORS_ORIGINS", []string{"*"}),
		RateLimitPerMinute: p.integer("RATE_LIMIT_PER_MINUTE", 600),
	}
	cfg.JWTSecret = []byte(p.str("JWT_SECRET", ""))

	if len(p.errs) > 0 {
		return nil, errors.Join(p.errs...)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("LOBBY_PORT: %d out of range", c.Port))
	}

	switch c.StorageType {
	case StorageMemory:
	case StorageRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when STORAGE_TYPE=redis"))
		}
	case StoragePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORAGE_TYPE=postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_TYPE: unknown backend %q", c.StorageType))
	}

	if len(c.JWTSecret) == 0 {
		if !c.DevMode {
			errs = append(errs, errors.New("JWT_SECRET is required unless LOBBY_DEV_MODE=true"))
		} else {
			secret := make([]byte, 32)
			_, _ = rand.Read(secret)
			c.JWTSecret = secret
		}
	}

	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.RoomCodeLength < 3 || c.RoomCodeLength > 12 {
		errs = append(errs, fmt.Errorf("ROOM_CODE_LENGTH: %d not in [3, 12]", c.RoomCodeLength))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("OPERATION_TIMEOUT must be positive"))
	}
	if c.ReadRetries < 0 {
		errs = append(errs, errors.New("READ_RETRIES must not be negative"))
	}
	if c.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must not be negative"))
	}

	return errors.Join(errs...)
}

// parser collects every malformed value instead of stopping at the first
type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return def
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	v := strings.TrimSpace(p.getenv(key))
	if v == "" {
		return def
	}
	var result []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimRight(strings.TrimSpace(item), "/"); item != "" {
			result = append(result, item)
		}
	}
	if len(result) == 0 {
		return def
	}
	return result
}
