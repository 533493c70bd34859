package domain

import (
	"context"
)

// RiskScorer computes a risk classification from patient input.
// Implementations must be pure: identical input yields identical output.
type RiskScorer interface {
	Score(input *PatientInput) *RiskResult
}

// PatientRepository defines patient data persistence
type PatientRepository interface {
	CreatePatient(ctx context.Context, patient *Patient) error
	GetPatient(ctx context.Context, id string) (*Patient, error)
	ListPatients(ctx context.Context, limit, offset int) ([]*Patient, error)
}

// UserRepository defines login account persistence
type UserRepository interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	SeedDemoUsers(ctx context.Context) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *DatabaseConfig
	Validate() error
	DatabaseEnabled() bool
	GetDatabaseURL() string
}
