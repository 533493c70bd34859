package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiboss/ckd/internal/domain"
)

func createTestStore(t *testing.T) *SQLiteStore {
	tmpDir, err := os.MkdirTemp("", "predictions-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	store, err := NewSQLiteStore(filepath.Join(tmpDir, "test.db"))
	require.NoError(t, err)
	return store
}

func samplePrediction() *Prediction {
	return &Prediction{
		PatientID:       "4f2f1c1a-8f2a-4b8a-9d1e-0a1b2c3d4e5f",
		RiskLevel:       domain.HIGH_RISK,
		Probability:     0.76,
		TopFeatures:     []string{"age", "creatinine", "diabetes_mellitus"},
		Recommendations: []string{"Monitor creatinine levels", "Schedule nephrology consultation"},
		InputDigest:     "abc123",
	}
}

func TestNewSQLiteStore(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "predictions-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)

	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteStore_SavePrediction(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	p := samplePrediction()

	err := store.SavePrediction(ctx, p)

	require.NoError(t, err)
	assert.NotZero(t, p.ID, "ID should be assigned")
	assert.False(t, p.CreatedAt.IsZero(), "CreatedAt should be set")
}

func TestSQLiteStore_ListPredictions(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	first := samplePrediction()
	require.NoError(t, store.SavePrediction(ctx, first))

	second := samplePrediction()
	second.RiskLevel = domain.LOW_RISK
	second.Probability = 0.22
	second.InputDigest = "def456"
	require.NoError(t, store.SavePrediction(ctx, second))

	all, err := store.ListPredictions(ctx, "", 10, 0)

	require.NoError(t, err)
	require.Len(t, all, 2)
	// Newest first; creation timestamps can collide, so the ID order
	// breaks the tie.
	assert.Equal(t, second.ID, all[0].ID)
	assert.Equal(t, domain.LOW_RISK, all[0].RiskLevel)
	assert.Equal(t, first.TopFeatures, all[1].TopFeatures)
}

func TestSQLiteStore_ListPredictions_ByPatient(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	mine := samplePrediction()
	require.NoError(t, store.SavePrediction(ctx, mine))

	other := samplePrediction()
	other.PatientID = "00000000-0000-0000-0000-000000000001"
	other.InputDigest = "zzz999"
	require.NoError(t, store.SavePrediction(ctx, other))

	got, err := store.ListPredictions(ctx, mine.PatientID, 10, 0)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, mine.ID, got[0].ID)
}

func TestSQLiteStore_Count(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, store.SavePrediction(ctx, samplePrediction()))

	count, err = store.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	ctx := context.Background()
	p := samplePrediction()
	require.NoError(t, store.SavePrediction(ctx, p))

	require.NoError(t, store.Delete(ctx, p.ID))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSQLiteStore_ExportImport(t *testing.T) {
	source := createTestStore(t)
	defer source.Close()

	ctx := context.Background()
	require.NoError(t, source.SavePrediction(ctx, samplePrediction()))

	var buf bytes.Buffer
	require.NoError(t, source.ExportJSON(ctx, &buf))

	target := createTestStore(t)
	defer target.Close()

	imported, skipped, err := target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 1, imported)
	assert.Zero(t, skipped)

	// Importing the same export again skips on the input digest.
	imported, skipped, err = target.ImportJSON(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Zero(t, imported)
	assert.Equal(t, 1, skipped)
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}
