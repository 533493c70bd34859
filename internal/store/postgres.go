package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL prediction store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL prediction store from a
// connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// SavePrediction appends a prediction to the log and assigns its ID.
func (s *PostgresStore) SavePrediction(ctx context.Context, p *Prediction) error {
	features, err := encodeList(p.TopFeatures)
	if err != nil {
		return fmt.Errorf("failed to encode top features: %w", err)
	}
	recommendations, err := encodeList(p.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to encode recommendations: %w", err)
	}

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	var patientID interface{}
	if p.PatientID != "" {
		patientID = p.PatientID
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO predictions (
			patient_id, risk_level, probability,
			top_features, recommendations, input_digest, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		patientID,
		string(p.RiskLevel),
		p.Probability,
		features,
		recommendations,
		p.InputDigest,
		p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	return nil
}

// ListPredictions returns predictions, newest first, with pagination.
func (s *PostgresStore) ListPredictions(ctx context.Context, patientID string, limit, offset int) ([]*Prediction, error) {
	query := `
		SELECT id, COALESCE(patient_id::text, ''), risk_level, probability,
			top_features, recommendations, input_digest, created_at
		FROM predictions`
	args := []interface{}{}
	if patientID != "" {
		query += " WHERE patient_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3"
		args = append(args, patientID, limit, offset)
	} else {
		query += " ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2"
		args = append(args, limit, offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// Count returns the total number of stored predictions.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&count)
	return count, err
}

// Delete removes a prediction by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM predictions WHERE id = $1", id)
	return err
}

// ExportJSON exports the whole log to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	all, err := s.ListPredictions(ctx, "", maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list predictions: %w", err)
	}

	export := &Export{
		Version:     "1.0",
		ExportedAt:  time.Now().UTC(),
		Count:       len(all),
		Predictions: all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

// ImportJSON imports predictions from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, p := range export.Predictions {
		if p.InputDigest != "" {
			var existing int64
			err := s.db.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM predictions WHERE input_digest = $1", p.InputDigest,
			).Scan(&existing)
			if err != nil {
				return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
			}
			if existing > 0 {
				skipped++
				continue
			}
		}

		p.ID = 0
		if err := s.SavePrediction(ctx, p); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}

// Ping verifies the backing storage is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
