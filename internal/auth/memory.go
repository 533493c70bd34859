package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/obiboss/ckd/internal/domain"
)

// MemoryUsers is an in-process user repository for standalone deployments
// that run without Postgres. Accounts live for the lifetime of the process.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryUsers creates an empty in-memory user repository.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*domain.User)}
}

// GetUserByUsername returns the user or nil if it does not exist.
func (m *MemoryUsers) GetUserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[username]
	if !ok {
		return nil, nil
	}
	clone := *user
	return &clone, nil
}

// SeedDemoUsers creates the demo accounts if they are not present yet.
func (m *MemoryUsers) SeedDemoUsers(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, account := range DemoAccounts() {
		if _, exists := m.users[account.Username]; exists {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(account.Password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		m.users[account.Username] = &domain.User{
			ID:           uuid.New().String(),
			Username:     account.Username,
			PasswordHash: string(hash),
			Role:         account.Role,
			CreatedAt:    time.Now(),
		}
	}
	return nil
}

// DemoAccount is a well-known credential pair seeded for the demo UI.
type DemoAccount struct {
	Username string
	Password string
	Role     string
}

// DemoAccounts returns the accounts seeded on startup.
func DemoAccounts() []DemoAccount {
	return []DemoAccount{
		{Username: "doctor", Password: "doctor123", Role: "clinician"},
		{Username: "admin", Password: "admin123", Role: "admin"},
	}
}
