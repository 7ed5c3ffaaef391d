package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/gamelobby/internal/dependencies/mocks"
	"github.com/mcoot/gamelobby/internal/model"
	"github.com/mcoot/gamelobby/internal/storage/memory"
	"github.com/mcoot/gamelobby/internal/testutil"
)

var testSecret = []byte("test-secret-test-secret-test-secret")

type ServiceSuite struct {
	suite.Suite
	storage *memory.Storage
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.storage = memory.New()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))

	cfg := DefaultConfig()
	cfg.Secret = testSecret
	cfg.BcryptCost = bcrypt.MinCost

	service, err := New(s.storage, s.clock, cfg, testutil.NopLogger())
	s.Require().NoError(err)
	s.service = service
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestNewRequiresSecret() {
	_, err := New(s.storage, s.clock, DefaultConfig(), testutil.NopLogger())
	s.Error(err)
}

// Register tests

func (s *ServiceSuite) TestRegisterHashesPassword() {
	account, err := s.service.Register(s.ctx, "alice", "password123")
	s.Require().NoError(err)
	s.NotEmpty(account.ID)
	s.Equal("alice", account.Username)

	stored, err := s.storage.GetAccountByUsername(s.ctx, "alice")
	s.Require().NoError(err)
	s.NotEqual("password123", stored.PasswordHash)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))
}

func (s *ServiceSuite) TestRegisterDuplicateUsername() {
	_, err := s.service.Register(s.ctx, "alice", "password123")
	s.Require().NoError(err)

	_, err = s.service.Register(s.ctx, "alice", "different456")
	s.ErrorIs(err, model.ErrUsernameTaken)
}

func (s *ServiceSuite) TestRegisterValidatesInput() {
	cases := []struct {
		username string
		password string
	}{
		{"", "password123"},
		{"   ", "password123"},
		{strings.Repeat("a", MaxUsernameLength+1), "password123"},
		{"alice", "short"},
		{"alice", strings.Repeat("p", MaxPasswordLength+1)},
	}
	for _, tc := range cases {
		_, err := s.service.Register(s.ctx, tc.username, tc.password)
		s.ErrorIs(err, model.ErrInvalidAccount, "username=%q", tc.username)
	}
}

// Login tests

func (s *ServiceSuite) TestLoginReturnsToken() {
	registered, _ := s.service.Register(s.ctx, "alice", "password123")

	token, account, err := s.service.Login(s.ctx, "alice", "password123")
	s.Require().NoError(err)
	s.NotEmpty(token)
	s.Equal(registered.ID, account.ID)

	userID, err := s.service.Authenticate(token)
	s.Require().NoError(err)
	s.Equal(registered.ID, userID)
}

func (s *ServiceSuite) TestLoginWrongPassword() {
	_, _ = s.service.Register(s.ctx, "alice", "password123")

	_, _, err := s.service.Login(s.ctx, "alice", "wrongpassword")
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestLoginUnknownUser() {
	_, _, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestTokenClaims() {
	account, _ := s.service.Register(s.ctx, "alice", "password123")
	token, _, _ := s.service.Login(s.ctx, "alice", "password123")

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return testSecret, nil },
		jwt.WithTimeFunc(s.clock.Now))
	s.Require().NoError(err)
	s.Equal(string(account.ID), claims.Subject)
	s.Equal("alice", claims.Username)
	s.Equal(s.clock.Now(), claims.IssuedAt.Time.UTC())
	s.Equal(s.clock.Now().Add(time.Hour), claims.ExpiresAt.Time.UTC())
}

// Authenticate tests

func (s *ServiceSuite) TestAuthenticateEmptyToken() {
	_, err := s.service.Authenticate("")
	s.ErrorIs(err, model.ErrUnauthenticated)
}

func (s *ServiceSuite) TestAuthenticateGarbage() {
	_, err := s.service.Authenticate("not-a-token")
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestAuthenticateExpiredToken() {
	account, _ := s.service.Register(s.ctx, "alice", "password123")
	token, err := s.service.IssueToken(account)
	s.Require().NoError(err)

	s.clock.Advance(time.Hour + time.Second)

	_, err = s.service.Authenticate(token)
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestAuthenticateWrongSecret() {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    DefaultConfig().Issuer,
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
	}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("some-other-secret"))
	s.Require().NoError(err)

	_, err = s.service.Authenticate(forged)
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestAuthenticateTamperedPayload() {
	account, _ := s.service.Register(s.ctx, "alice", "password123")
	token, _ := s.service.IssueToken(account)

	other, _ := s.service.IssueToken(&model.Account{ID: "someone-else", Username: "mallory"})

	// Splice mallory's claims onto alice's signature
	parts := strings.Split(token, ".")
	otherParts := strings.Split(other, ".")
	s.Require().Len(parts, 3)
	tampered := parts[0] + "." + otherParts[1] + "." + parts[2]

	_, err := s.service.Authenticate(tampered)
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestAuthenticateRejectsNoneAlgorithm() {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    DefaultConfig().Issuer,
			ExpiresAt: jwt.NewNumericDate(s.clock.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	_, err = s.service.Authenticate(unsigned)
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestAuthenticateRequiresExpiry() {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "user-1",
			Issuer:  DefaultConfig().Issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	s.Require().NoError(err)

	_, err = s.service.Authenticate(token)
	s.ErrorIs(err, model.ErrInvalidCredential)
}

func (s *ServiceSuite) TestGetAccount() {
	account, _ := s.service.Register(s.ctx, "alice", "password123")

	fetched, err := s.service.GetAccount(s.ctx, account.ID)
	s.Require().NoError(err)
	s.Equal("alice", fetched.Username)

	_, err = s.service.GetAccount(s.ctx, "missing")
	s.ErrorIs(err, model.ErrAccountNotFound)
}
