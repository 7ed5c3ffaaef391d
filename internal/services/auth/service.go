package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamelobby/internal/dependencies/clock"
	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/storage"
)

const (
	// MaxUsernameLength bounds registered usernames
	MaxUsernameLength = 32
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 8
	// MaxPasswordLength is bcrypt's input limit
	MaxPasswordLength = 72
)

// Claims carried by an access token. Subject holds the account's UserID.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Config holds configuration for the auth service
type Config struct {
	// Secret signs and verifies HS256 tokens
	Secret []byte
	// TokenTTL is how long an issued token stays valid
	TokenTTL time.Duration
	// Issuer is written to and required in the iss claim
	Issuer string
	// BcryptCost is the password hashing cost
	BcryptCost int
}

// DefaultConfig returns default auth configuration. Secret must still be set.
func DefaultConfig() Config {
	return Config{
		TokenTTL:   time.Hour,
		Issuer:     "gamelobby",
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Service registers accounts, checks passwords and issues/verifies tokens
type Service struct {
	accounts storage.AccountRepository
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger
}

// New creates a new auth Service. The secret is copied and never changes afterwards.
func New(accounts storage.AccountRepository, clock clock.Clock, cfg Config, logger *slog.Logger) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: signing secret is required")
	}
	defaults := DefaultConfig()
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaults.TokenTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaults.Issuer
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = defaults.BcryptCost
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	cfg.Secret = secret

	return &Service{
		accounts: accounts,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Register creates a new account with a bcrypt-hashed password
func (s *Service) Register(ctx context.Context, username, password string) (*model.Account, error) {
	username = strings.TrimSpace(username)
	if err := validateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &model.Account{
		ID:           model.UserID(uuid.NewString()),
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now(),
	}
	if err := s.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrRepositoryUnavailable, err)
	}

	s.logger.Info("account registered",
		slog.String("user_id", string(account.ID)),
		slog.String("username", username),
	)
	return account, nil
}

// Login checks a username and password and returns a signed access token
func (s *Service) Login(ctx context.Context, username, password string) (string, *model.Account, error) {
	account, err := s.accounts.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return "", nil, model.ErrInvalidCredential
		}
		return "", nil, fmt.Errorf("%w: %v", model.ErrRepositoryUnavailable, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return "", nil, model.ErrInvalidCredential
	}

	token, err := s.IssueToken(account)
	if err != nil {
		return "", nil, err
	}
	return token, account, nil
}

// IssueToken signs an access token for the account
func (s *Service) IssueToken(account *model.Account) (string, error) {
	now := s.clock.Now()
	claims := &Claims{
		Username: account.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(account.ID),
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate verifies a token and returns the account it was issued to
func (s *Service) Authenticate(token string) (model.UserID, error) {
	if token == "" {
		return "", model.ErrUnauthenticated
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil || !parsed.Valid {
		return "", model.ErrInvalidCredential
	}
	if claims.Subject == "" {
		return "", model.ErrInvalidCredential
	}
	return model.UserID(claims.Subject), nil
}

// GetAccount returns the account for a user ID
func (s *Service) GetAccount(ctx context.Context, id model.UserID) (*model.Account, error) {
	account, err := s.accounts.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", model.ErrRepositoryUnavailable, err)
	}
	return account, nil
}

func validateCredentials(username, password string) error {
	if username == "" || utf8.RuneCountInString(username) > MaxUsernameLength {
		return model.ErrInvalidAccount
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return model.ErrInvalidAccount
	}
	return nil
}
