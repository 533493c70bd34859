package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/obiboss/ckd/internal/domain"
)

// UserRepository handles login account persistence
type UserRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool, logger *logrus.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: logger,
	}
}

// GetUserByUsername retrieves a user by username. Returns nil when not found.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	query := `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = $1`

	user := &domain.User{}
	err := r.db.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}

// demoAccounts are the seeded demo logins.
var demoAccounts = []struct {
	username string
	password string
	role     string
}{
	{"doctor", "doctor123", "clinician"},
	{"admin", "admin123", "admin"},
}

// SeedDemoUsers inserts the demo accounts if they are missing.
func (r *UserRepository) SeedDemoUsers(ctx context.Context) error {
	for _, account := range demoAccounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(account.password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing demo password: %w", err)
		}

		query := `
			INSERT INTO users (id, username, password_hash, role, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (username) DO NOTHING`

		_, err = r.db.Exec(ctx, query,
			uuid.New().String(),
			account.username,
			string(hash),
			account.role,
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("seeding user %s: %w", account.username, err)
		}
	}

	r.log.WithField("count", len(demoAccounts)).Info("Demo users seeded")
	return nil
}
