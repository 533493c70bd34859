package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiboss/ckd/internal/auth"
	"github.com/obiboss/ckd/internal/cache"
	"github.com/obiboss/ckd/internal/domain"
	"github.com/obiboss/ckd/internal/risk"
	"github.com/obiboss/ckd/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubConfig satisfies domain.ConfigManager without touching files or env.
type stubConfig struct {
	cfg *domain.Config
}

func (s *stubConfig) GetConfig() *domain.Config                 { return s.cfg }
func (s *stubConfig) GetServerConfig() *domain.ServerConfig     { return &s.cfg.Server }
func (s *stubConfig) GetDatabaseConfig() *domain.DatabaseConfig { return &s.cfg.Database }
func (s *stubConfig) Validate() error                           { return nil }
func (s *stubConfig) DatabaseEnabled() bool                     { return s.cfg.Database.Host != "" }
func (s *stubConfig) GetDatabaseURL() string                    { return "" }

func testConfig() *stubConfig {
	return &stubConfig{cfg: &domain.Config{
		Server: domain.ServerConfig{
			Host: "127.0.0.1",
			Port: 0,
		},
		Auth: domain.AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
			Issuer:    "ckd-test",
		},
		CORS: domain.CORSConfig{
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Logging: domain.LoggingConfig{Level: "error"},
	}}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "predictions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	resultCache, err := cache.New(logger, domain.CacheConfig{MaxItems: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = resultCache.Close() })

	users := auth.NewMemoryUsers()
	require.NoError(t, users.SeedDemoUsers(context.Background()))

	cfg := testConfig()
	authSvc := auth.NewService(logger, cfg.cfg.Auth, users)

	return NewServer(cfg, logger, Dependencies{
		Scorer: risk.NewDefaultScorer(logger),
		Store:  st,
		Cache:  resultCache,
		Auth:   authSvc,
	})
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func login(t *testing.T, srv *Server) string {
	t.Helper()

	w := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "doctor",
		"password": "doctor123",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func predictPayload() map[string]interface{} {
	return map[string]interface{}{
		"demographics": map[string]interface{}{
			"age":    68,
			"gender": "Male",
		},
		"comorbidities": map[string]interface{}{
			"diabetes_mellitus": true,
			"hypertension":      true,
			"anemia":            false,
		},
		"lab_vitals": []map[string]interface{}{
			{
				"timestamp":   "2026-08-01T09:00:00Z",
				"creatinine":  1.4,
				"albumin":     3.2,
				"systolic_bp": 130.0,
				"heart_rate":  75.0,
			},
		},
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogin_BadCredentials(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "doctor",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPredict_RequiresAuth(t *testing.T) {
	srv := newTestServer(t)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/predict", "", predictPayload())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPredict_Success(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/predict", token, predictPayload())
	require.Equal(t, http.StatusOK, w.Code)

	var result domain.RiskResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, domain.HIGH_RISK, result.RiskLevel)
	assert.GreaterOrEqual(t, result.Probability, 0.70)
	assert.LessOrEqual(t, result.Probability, 0.85)
	assert.Contains(t, result.TopFeatures, "creatinine")
	assert.Contains(t, result.TopFeatures, "age")
	assert.NotEmpty(t, result.Recommendations)
}

func TestPredict_CachedResultIsStable(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	first := doJSON(t, srv, http.MethodPost, "/api/v1/predict", token, predictPayload())
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, srv, http.MethodPost, "/api/v1/predict", token, predictPayload())
	require.Equal(t, http.StatusOK, second.Code)

	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestPredict_ValidationError(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	payload := predictPayload()
	payload["demographics"] = map[string]interface{}{"age": 150, "gender": "Male"}

	w := doJSON(t, srv, http.MethodPost, "/api/v1/predict", token, payload)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrValidation)
}

func TestPredict_MalformedBody(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPredict_AppendsToAuditLog(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	for i := 0; i < 3; i++ {
		w := doJSON(t, srv, http.MethodPost, "/api/v1/predict", token, predictPayload())
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/v1/predictions", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Predictions []*store.Prediction `json:"predictions"`
		Total       int64               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.Total)
	require.Len(t, resp.Predictions, 3)
	assert.Equal(t, domain.HIGH_RISK, resp.Predictions[0].RiskLevel)
	assert.NotEmpty(t, resp.Predictions[0].InputDigest)
}

func TestListPredictions_Pagination(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	for i := 0; i < 5; i++ {
		payload := predictPayload()
		payload["demographics"] = map[string]interface{}{"age": 40 + i, "gender": "Female"}
		w := doJSON(t, srv, http.MethodPost, "/api/v1/predict", token, payload)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := doJSON(t, srv, http.MethodGet, "/api/v1/predictions?limit=2&offset=0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Predictions []*store.Prediction `json:"predictions"`
		Total       int64               `json:"total"`
		Limit       int                 `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Predictions, 2)
	assert.Equal(t, int64(5), resp.Total)
	assert.Equal(t, 2, resp.Limit)
}

func TestPatients_UnavailableWithoutDatabase(t *testing.T) {
	srv := newTestServer(t)
	token := login(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{
		"name": "Jane Doe", "age": 54, "gender": "Female",
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/patients", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestPatients_CRUDWithFakeRepository(t *testing.T) {
	srv := newTestServer(t)
	srv.deps.Patients = newFakePatients()
	token := login(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{
		"name": "Jane Doe", "age": 54, "gender": "Female",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var created domain.Patient
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/patients/"+created.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/patients/unknown-id", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, srv, http.MethodGet, "/api/v1/patients", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Jane Doe")
}

func TestCreatePatient_Validation(t *testing.T) {
	srv := newTestServer(t)
	srv.deps.Patients = newFakePatients()
	token := login(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{
		"name": "Bad Age", "age": 130, "gender": "Male",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, srv, http.MethodPost, "/api/v1/patients", token, map[string]interface{}{
		"name": "Bad Gender", "age": 30, "gender": "unknown",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// fakePatients is an in-memory PatientRepository for handler tests.
type fakePatients struct {
	patients map[string]*domain.Patient
	order    []string
}

func newFakePatients() *fakePatients {
	return &fakePatients{patients: make(map[string]*domain.Patient)}
}

func (f *fakePatients) CreatePatient(_ context.Context, patient *domain.Patient) error {
	if patient.ID == "" {
		patient.ID = fmt.Sprintf("patient-%d", len(f.order)+1)
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = patient.CreatedAt
	f.patients[patient.ID] = patient
	f.order = append(f.order, patient.ID)
	return nil
}

func (f *fakePatients) GetPatient(_ context.Context, id string) (*domain.Patient, error) {
	return f.patients[id], nil
}

func (f *fakePatients) ListPatients(_ context.Context, limit, offset int) ([]*domain.Patient, error) {
	var out []*domain.Patient
	for i := offset; i < len(f.order) && len(out) < limit; i++ {
		out = append(out, f.patients[f.order[i]])
	}
	return out, nil
}
