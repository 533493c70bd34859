package domain

import (
	"time"
)

// Core Enums and Types

// RiskLevel represents the coarse three-way risk classification
type RiskLevel string

const (
	LOW_RISK      RiskLevel = "Low Risk"
	MODERATE_RISK RiskLevel = "Moderate Risk"
	HIGH_RISK     RiskLevel = "High Risk"
)

// String returns the string representation of the risk level
func (r RiskLevel) String() string {
	return string(r)
}

// Gender represents patient gender
type Gender string

const (
	MALE   Gender = "Male"
	FEMALE Gender = "Female"
	OTHER  Gender = "Other"
)

// IsValid reports whether the gender is one of the known values
func (g Gender) IsValid() bool {
	switch g {
	case MALE, FEMALE, OTHER:
		return true
	}
	return false
}

// Request/Response Models

// Demographics represents patient demographic data
type Demographics struct {
	Age    int    `json:"age"`
	Gender Gender `json:"gender"`
}

// Comorbidities represents the pre-existing condition flags used as risk contributors
type Comorbidities struct {
	DiabetesMellitus bool `json:"diabetes_mellitus"`
	Hypertension     bool `json:"hypertension"`
	Anemia           bool `json:"anemia"`
}

// Reading represents one time-stamped bundle of lab/vital measurements.
// Nil fields mean "not measured" and must never be conflated with zero.
type Reading struct {
	Timestamp       string   `json:"timestamp"`
	Creatinine      *float64 `json:"creatinine,omitempty"`
	Albumin         *float64 `json:"albumin,omitempty"`
	SystolicBP      *float64 `json:"systolic_bp,omitempty"`
	DiastolicBP     *float64 `json:"diastolic_bp,omitempty"`
	HeartRate       *float64 `json:"heart_rate,omitempty"`
	UrineProteinPct *float64 `json:"urine_protein_pct,omitempty"`
	UrineBacteriaPct *float64 `json:"urine_bacteria_pct,omitempty"`
	Urea            *float64 `json:"urea,omitempty"`
	Sodium          *float64 `json:"sodium,omitempty"`
	Potassium       *float64 `json:"potassium,omitempty"`
	Bicarbonate     *float64 `json:"bicarbonate,omitempty"`
}

// PatientInput represents a complete risk-scoring request payload
type PatientInput struct {
	Demographics  Demographics  `json:"demographics"`
	Comorbidities Comorbidities `json:"comorbidities"`
	Readings      []Reading     `json:"lab_vitals"`
}

// RiskResult represents the output of the risk scorer
type RiskResult struct {
	RiskLevel       RiskLevel `json:"risk_level"`
	Probability     float64   `json:"probability"`
	TopFeatures     []string  `json:"top_features"`
	Recommendations []string  `json:"recommendations"`
}

// Database Models

// Patient represents a stored patient record
type Patient struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Gender    Gender    `json:"gender"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// User represents a demo login account
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Configuration Models

// Config represents the main application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Model    ModelConfig    `mapstructure:"model"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	RateLimit    float64       `mapstructure:"rate_limit"`
	RateBurst    int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents PostgreSQL connection configuration.
// An empty host disables Postgres and the service runs on the
// embedded SQLite store only.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StoreConfig represents the prediction log store configuration
type StoreConfig struct {
	Driver     string `mapstructure:"driver"` // sqlite, postgres
	SQLitePath string `mapstructure:"sqlite_path"`
}

// CacheConfig represents the prediction result cache configuration
type CacheConfig struct {
	MaxItems int           `mapstructure:"max_items"`
	RedisURL string        `mapstructure:"redis_url"` // empty disables the Redis tier
	TTL      time.Duration `mapstructure:"ttl"`
}

// AuthConfig represents demo authentication configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	Issuer    string        `mapstructure:"issuer"`
}

// CORSConfig represents allowed browser origins
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ModelConfig carries risk model tunables that override the built-in
// defaults when set. Zero values mean "use the default".
type ModelConfig struct {
	LowCutoff  float64 `mapstructure:"low_cutoff"`
	HighCutoff float64 `mapstructure:"high_cutoff"`
	Baseline   float64 `mapstructure:"baseline"`
}
