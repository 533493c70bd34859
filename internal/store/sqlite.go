package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite prediction store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the database tables and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS predictions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT DEFAULT '',
		risk_level TEXT NOT NULL,
		probability REAL NOT NULL,
		top_features TEXT NOT NULL DEFAULT '[]',
		recommendations TEXT NOT NULL DEFAULT '[]',
		input_digest TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_predictions_patient_id ON predictions(patient_id);
	CREATE INDEX IF NOT EXISTS idx_predictions_input_digest ON predictions(input_digest);
	CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPrediction scans a row into a Prediction struct.
func scanPrediction(s scanner) (*Prediction, error) {
	p := &Prediction{}
	var features, recommendations string

	err := s.Scan(
		&p.ID, &p.PatientID, &p.RiskLevel, &p.Probability,
		&features, &recommendations, &p.InputDigest, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(features), &p.TopFeatures); err != nil {
		return nil, fmt.Errorf("failed to decode top features: %w", err)
	}
	if err := json.Unmarshal([]byte(recommendations), &p.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to decode recommendations: %w", err)
	}
	return p, nil
}

// encodeList marshals a string list to its TEXT column form.
func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// SavePrediction appends a prediction to the log and assigns its ID.
func (s *SQLiteStore) SavePrediction(ctx context.Context, p *Prediction) error {
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

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO predictions (
			patient_id, risk_level, probability,
			top_features, recommendations, input_digest, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		p.PatientID,
		string(p.RiskLevel),
		p.Probability,
		features,
		recommendations,
		p.InputDigest,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	p.ID = id

	return nil
}

// ListPredictions returns predictions, newest first, with pagination.
func (s *SQLiteStore) ListPredictions(ctx context.Context, patientID string, limit, offset int) ([]*Prediction, error) {
	query := `
		SELECT id, patient_id, risk_level, probability,
			top_features, recommendations, input_digest, created_at
		FROM predictions`
	args := []interface{}{}
	if patientID != "" {
		query += " WHERE patient_id = ?"
		args = append(args, patientID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM predictions").Scan(&count)
	return count, err
}

// Delete removes a prediction by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM predictions WHERE id = ?", id)
	return err
}

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000

// ExportJSON exports the whole log to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
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
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, p := range export.Predictions {
		if p.InputDigest != "" {
			var existing int64
			err := s.db.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM predictions WHERE input_digest = ?", p.InputDigest,
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
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
