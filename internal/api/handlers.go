package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/obiboss/ckd/internal/auth"
	"github.com/obiboss/ckd/internal/cache"
	"github.com/obiboss/ckd/internal/domain"
	"github.com/obiboss/ckd/internal/metrics"
	"github.com/obiboss/ckd/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// handleHealth handles liveness checks, including store reachability.
func (s *Server) handleHealth(c *gin.Context) {
	storeStatus := "ok"
	status := http.StatusOK
	if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
		storeStatus = "unreachable"
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":    "healthy",
		"store":     storeStatus,
		"cache":     s.deps.Cache.Stats(),
		"timestamp": time.Now().UTC(),
	})
}

// loginRequest is the demo login payload.
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid login payload", err.Error())
		return
	}

	token, user, err := s.deps.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.respondError(c, http.StatusUnauthorized, domain.ErrAuthentication, "Invalid username or password", "")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Login failed")
		s.respondError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Login failed", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": user.Username,
		"role":     user.Role,
	})
}

func (s *Server) handlePredict(c *gin.Context) {
	var input domain.PatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Malformed request body", err.Error())
		return
	}

	if err := input.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":      domain.NewAPIError(domain.ErrValidation, "Input validation failed", verr.Error(), c.GetString("correlation_id")),
				"validation": verr,
			})
			return
		}
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, "Input validation failed", err.Error())
		return
	}

	key, err := cache.Key(&input)
	if err != nil {
		s.logger.WithError(err).Error("Could not derive cache key")
		s.respondError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Scoring failed", "")
		return
	}

	result := s.deps.Cache.Get(c.Request.Context(), key)
	if result != nil {
		metrics.RecordCacheLookup("hit")
	} else {
		metrics.RecordCacheLookup("miss")

		start := time.Now()
		result = s.deps.Scorer.Score(&input)
		metrics.RecordPrediction(string(result.RiskLevel), time.Since(start))

		s.deps.Cache.Put(c.Request.Context(), key, result)
	}

	s.recordPrediction(c, key, result)

	c.JSON(http.StatusOK, result)
}

// recordPrediction appends the result to the audit log. A storage
// failure is logged but does not fail the request, the result is
// still correct.
func (s *Server) recordPrediction(c *gin.Context, digest string, result *domain.RiskResult) {
	prediction := &store.Prediction{
		PatientID:       c.Query("patient_id"),
		RiskLevel:       result.RiskLevel,
		Probability:     result.Probability,
		TopFeatures:     result.TopFeatures,
		Recommendations: result.Recommendations,
		InputDigest:     digest,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.deps.Store.SavePrediction(c.Request.Context(), prediction); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"correlation_id": c.GetString("correlation_id"),
			"risk_level":     result.RiskLevel,
		}).Error("Could not persist prediction")
	}
}

func (s *Server) handleListPredictions(c *gin.Context) {
	limit, offset := pagination(c)

	predictions, err := s.deps.Store.ListPredictions(c.Request.Context(), c.Query("patient_id"), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Could not list predictions")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Could not list predictions", "")
		return
	}

	total, err := s.deps.Store.Count(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Could not count predictions")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Could not list predictions", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"predictions": predictions,
		"total":       total,
		"limit":       limit,
		"offset":      offset,
	})
}

// createPatientRequest is the patient registration payload.
type createPatientRequest struct {
	Name   string        `json:"name" binding:"required"`
	Age    int           `json:"age"`
	Gender domain.Gender `json:"gender"`
}

func (s *Server) handleCreatePatient(c *gin.Context) {
	if !s.requirePatients(c) {
		return
	}

	var req createPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Invalid patient payload", err.Error())
		return
	}
	if req.Age < 0 || req.Age > 120 {
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, "age must be between 0 and 120", "")
		return
	}
	if !req.Gender.IsValid() {
		s.respondError(c, http.StatusBadRequest, domain.ErrValidation, "gender must be Male, Female or Other", "")
		return
	}

	patient := &domain.Patient{
		Name:   req.Name,
		Age:    req.Age,
		Gender: req.Gender,
	}
	if err := s.deps.Patients.CreatePatient(c.Request.Context(), patient); err != nil {
		s.logger.WithError(err).Error("Could not create patient")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Could not create patient", "")
		return
	}

	c.JSON(http.StatusCreated, patient)
}

func (s *Server) handleGetPatient(c *gin.Context) {
	if !s.requirePatients(c) {
		return
	}

	patient, err := s.deps.Patients.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.logger.WithError(err).Error("Could not get patient")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Could not get patient", "")
		return
	}
	if patient == nil {
		s.respondError(c, http.StatusNotFound, domain.ErrNotFound, "Patient not found", "")
		return
	}

	c.JSON(http.StatusOK, patient)
}

func (s *Server) handleListPatients(c *gin.Context) {
	if !s.requirePatients(c) {
		return
	}

	limit, offset := pagination(c)

	patients, err := s.deps.Patients.ListPatients(c.Request.Context(), limit, offset)
	if err != nil {
		s.logger.WithError(err).Error("Could not list patients")
		s.respondError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Could not list patients", "")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"patients": patients,
		"limit":    limit,
		"offset":   offset,
	})
}

// requirePatients answers 503 when the service runs without Postgres.
func (s *Server) requirePatients(c *gin.Context) bool {
	if s.deps.Patients == nil {
		s.respondError(c, http.StatusServiceUnavailable, domain.ErrDatabaseError,
			"Patient registry requires a database", "Start the service with database.host configured")
		return false
	}
	return true
}

func (s *Server) respondError(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, gin.H{
		"error": domain.NewAPIError(code, message, details, c.GetString("correlation_id")),
	})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit = defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
