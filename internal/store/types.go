// Package store provides the prediction audit log: every scored request
// is appended here so clinicians can review prior results.
package store

import (
	"context"
	"io"
	"time"

	"github.com/obiboss/ckd/internal/domain"
)

// Prediction represents one stored scoring result.
type Prediction struct {
	ID              int64            `json:"id,omitempty"`
	PatientID       string           `json:"patient_id,omitempty"` // empty for anonymous requests
	RiskLevel       domain.RiskLevel `json:"risk_level"`
	Probability     float64          `json:"probability"`
	TopFeatures     []string         `json:"top_features"`
	Recommendations []string         `json:"recommendations"`
	InputDigest     string           `json:"input_digest,omitempty"` // digest of the scored input
	CreatedAt       time.Time        `json:"created_at"`
}

// Store defines the interface for prediction log storage.
type Store interface {
	// SavePrediction appends a prediction to the log and assigns its ID.
	SavePrediction(ctx context.Context, p *Prediction) error

	// ListPredictions returns predictions, newest first, with pagination.
	// An empty patientID returns predictions for all patients.
	ListPredictions(ctx context.Context, patientID string, limit, offset int) ([]*Prediction, error)

	// Count returns the total number of stored predictions.
	Count(ctx context.Context) (int64, error)

	// Delete removes a prediction by ID.
	Delete(ctx context.Context, id int64) error

	// ExportJSON exports the whole log to a JSON writer.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON imports predictions from a JSON reader. Entries whose
	// input digest is already present are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	// Ping verifies the backing storage is reachable.
	Ping(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// Export represents the JSON export format.
type Export struct {
	Version     string        `json:"version"`
	ExportedAt  time.Time     `json:"exported_at"`
	Count       int           `json:"count"`
	Predictions []*Prediction `json:"predictions"`
}
