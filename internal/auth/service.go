// Package auth implements the demo login flow: seeded accounts, bcrypt
// password checks and HMAC-signed JWTs for the API.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/obiboss/ckd/internal/domain"
)

// ErrInvalidCredentials is returned for unknown users or wrong passwords.
// The two cases are deliberately indistinguishable to callers.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Claims extends the registered JWT claims with account data.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Service issues and verifies API tokens.
type Service struct {
	logger *logrus.Logger
	cfg    domain.AuthConfig
	users  domain.UserRepository
}

// NewService creates an auth service backed by the given user repository.
func NewService(logger *logrus.Logger, cfg domain.AuthConfig, users domain.UserRepository) *Service {
	return &Service{
		logger: logger,
		cfg:    cfg,
		users:  users,
	}
}

// Login checks the credentials and returns a signed token with the user.
func (s *Service) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		// Burn a bcrypt comparison anyway so response timing does not
		// reveal whether the account exists.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WithField("username", username).Warn("Failed login attempt")
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return "", nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"username": username,
		"role":     user.Role,
	}).Info("User logged in")

	return token, user, nil
}

// IssueToken signs a token for the user.
func (s *Service) IssueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
			ID:        uuid.New().String(),
		},
		Username: user.Username,
		Role:     user.Role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token and returns its claims.
func (s *Service) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parsing token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// dummyHash is a valid bcrypt hash of an unused password, compared
// against when the account does not exist.
var dummyHash = func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("ckd-timing-pad"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
}()
