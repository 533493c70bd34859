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

	"github.com/obiboss/ckd/internal/domain"
)

// PatientRepository handles patient data persistence
type PatientRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPatientRepository creates a new patient repository
func NewPatientRepository(db *pgxpool.Pool, logger *logrus.Logger) *PatientRepository {
	return &PatientRepository{
		db:  db,
		log: logger,
	}
}

// CreatePatient inserts a new patient. A missing ID is generated.
func (r *PatientRepository) CreatePatient(ctx context.Context, patient *domain.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now

	query := `
		INSERT INTO patients (id, name, age, gender, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		patient.ID,
		patient.Name,
		patient.Age,
		string(patient.Gender),
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"patient_id": patient.ID,
			"error":      err,
		}).Error("Failed to create patient")
		return fmt.Errorf("creating patient: %w", err)
	}

	r.log.WithField("patient_id", patient.ID).Debug("Patient created")
	return nil
}

// GetPatient retrieves a patient by ID. Returns nil when not found.
func (r *PatientRepository) GetPatient(ctx context.Context, id string) (*domain.Patient, error) {
	query := `
		SELECT id, name, age, gender, created_at, updated_at
		FROM patients
		WHERE id = $1`

	patient := &domain.Patient{}
	var gender string
	err := r.db.QueryRow(ctx, query, id).Scan(
		&patient.ID,
		&patient.Name,
		&patient.Age,
		&gender,
		&patient.CreatedAt,
		&patient.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	patient.Gender = domain.Gender(gender)
	return patient, nil
}

// ListPatients returns patients ordered by creation time, newest first.
func (r *PatientRepository) ListPatients(ctx context.Context, limit, offset int) ([]*domain.Patient, error) {
	query := `
		SELECT id, name, age, gender, created_at, updated_at
		FROM patients
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var patients []*domain.Patient
	for rows.Next() {
		patient := &domain.Patient{}
		var gender string
		if err := rows.Scan(
			&patient.ID,
			&patient.Name,
			&patient.Age,
			&gender,
			&patient.CreatedAt,
			&patient.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning patient: %w", err)
		}
		patient.Gender = domain.Gender(gender)
		patients = append(patients, patient)
	}
	return patients, rows.Err()
}
