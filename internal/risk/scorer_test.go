package risk

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obiboss/ckd/internal/domain"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func fptr(v float64) *float64 {
	return &v
}

func baseInput() *domain.PatientInput {
	return &domain.PatientInput{
		Demographics: domain.Demographics{Age: 55, Gender: domain.FEMALE},
	}
}

func TestScore_ProbabilityBounds(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	inputs := []*domain.PatientInput{
		{Demographics: domain.Demographics{Age: 0, Gender: domain.OTHER}},
		{Demographics: domain.Demographics{Age: 120, Gender: domain.MALE}},
		{
			Demographics:  domain.Demographics{Age: 90, Gender: domain.MALE},
			Comorbidities: domain.Comorbidities{DiabetesMellitus: true, Hypertension: true, Anemia: true},
			Readings: []domain.Reading{{
				Timestamp:        "2024-01-01T10:00:00Z",
				Creatinine:       fptr(9.5),
				Albumin:          fptr(1.8),
				SystolicBP:       fptr(210),
				DiastolicBP:      fptr(120),
				HeartRate:        fptr(130),
				UrineProteinPct:  fptr(80),
				UrineBacteriaPct: fptr(60),
				Urea:             fptr(180),
				Sodium:           fptr(128),
				Potassium:        fptr(6.2),
				Bicarbonate:      fptr(14),
			}},
		},
	}

	for _, input := range inputs {
		result := scorer.Score(input)
		assert.GreaterOrEqual(t, result.Probability, 0.0)
		assert.LessOrEqual(t, result.Probability, 1.0)
	}
}

func TestScore_WorkedExample(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	input := &domain.PatientInput{
		Demographics:  domain.Demographics{Age: 68, Gender: domain.MALE},
		Comorbidities: domain.Comorbidities{DiabetesMellitus: true, Hypertension: true},
		Readings: []domain.Reading{{
			Timestamp:  "2024-03-01T09:30:00Z",
			Creatinine: fptr(1.4),
			Albumin:    fptr(3.2),
			SystolicBP: fptr(130),
			HeartRate:  fptr(75),
		}},
	}

	result := scorer.Score(input)

	assert.Equal(t, domain.HIGH_RISK, result.RiskLevel)
	assert.GreaterOrEqual(t, result.Probability, 0.70)
	assert.LessOrEqual(t, result.Probability, 0.85)
	assert.Contains(t, result.TopFeatures, "creatinine")
	assert.Contains(t, result.TopFeatures, "age")
	assert.Contains(t, result.Recommendations, "Monitor creatinine levels")
	assert.Contains(t, result.Recommendations, "Schedule nephrology consultation")
}

func TestScore_ThresholdBoundaries(t *testing.T) {
	// Drive the probability directly through the baseline so the cut
	// points themselves are exercised.
	tests := []struct {
		baseline float64
		want     domain.RiskLevel
	}{
		{0.39, domain.LOW_RISK},
		{0.40, domain.MODERATE_RISK},
		{0.69, domain.MODERATE_RISK},
		{0.70, domain.HIGH_RISK},
	}

	for _, tt := range tests {
		params := DefaultParams()
		params.Baseline = tt.baseline
		scorer := NewScorer(testLogger(), params)

		input := &domain.PatientInput{
			Demographics: domain.Demographics{Age: 0, Gender: domain.OTHER},
		}
		result := scorer.Score(input)

		assert.Equal(t, tt.baseline, result.Probability)
		assert.Equal(t, tt.want, result.RiskLevel, "baseline %.2f", tt.baseline)
	}
}

func TestScore_Idempotent(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	input := &domain.PatientInput{
		Demographics:  domain.Demographics{Age: 61, Gender: domain.FEMALE},
		Comorbidities: domain.Comorbidities{Hypertension: true},
		Readings: []domain.Reading{{
			Timestamp:  "2024-02-10T08:00:00Z",
			Creatinine: fptr(1.6),
			SystolicBP: fptr(150),
		}},
	}

	first := scorer.Score(input)
	second := scorer.Score(input)

	require.Equal(t, first, second)
}

func TestScore_MonotoneInCreatinine(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	prev := -1.0
	for _, cr := range []float64{0.8, 1.0, 1.2, 1.4, 1.8, 2.5, 4.0, 8.0} {
		input := baseInput()
		input.Readings = []domain.Reading{{
			Timestamp:  "2024-01-01T00:00:00Z",
			Creatinine: fptr(cr),
		}}
		result := scorer.Score(input)
		assert.GreaterOrEqual(t, result.Probability, prev, "creatinine %.1f", cr)
		prev = result.Probability
	}
}

func TestScore_MonotoneInSystolicBP(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	prev := -1.0
	for _, sbp := range []float64{110, 135, 141, 155, 161, 190} {
		input := baseInput()
		input.Readings = []domain.Reading{{
			Timestamp:  "2024-01-01T00:00:00Z",
			SystolicBP: fptr(sbp),
		}}
		result := scorer.Score(input)
		assert.GreaterOrEqual(t, result.Probability, prev, "systolic %.0f", sbp)
		prev = result.Probability
	}
}

func TestScore_TopFeatures(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	input := &domain.PatientInput{
		Demographics:  domain.Demographics{Age: 75, Gender: domain.MALE},
		Comorbidities: domain.Comorbidities{DiabetesMellitus: true, Hypertension: true, Anemia: true},
		Readings: []domain.Reading{{
			Timestamp:  "2024-01-01T00:00:00Z",
			Creatinine: fptr(2.4),
			Albumin:    fptr(2.9),
		}},
	}

	result := scorer.Score(input)

	assert.LessOrEqual(t, len(result.TopFeatures), 3)
	seen := make(map[string]bool)
	for _, f := range result.TopFeatures {
		assert.False(t, seen[f], "duplicate feature %q", f)
		seen[f] = true
	}
	// Creatinine contribution is capped at 0.45 here, the largest single
	// contribution, so it must lead.
	assert.Equal(t, "creatinine", result.TopFeatures[0])
}

func TestScore_TieBrokenByCanonicalOrder(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	// Diabetes and hypertension carry equal weight; diabetes precedes
	// hypertension in the canonical ordering.
	input := &domain.PatientInput{
		Demographics:  domain.Demographics{Age: 0, Gender: domain.OTHER},
		Comorbidities: domain.Comorbidities{DiabetesMellitus: true, Hypertension: true},
	}

	result := scorer.Score(input)

	require.Len(t, result.TopFeatures, 2)
	assert.Equal(t, []string{"diabetes_mellitus", "hypertension"}, result.TopFeatures)
}

func TestScore_MissingEverything(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	input := &domain.PatientInput{
		Demographics: domain.Demographics{Age: 68, Gender: domain.MALE},
	}

	result := scorer.Score(input)

	assert.Equal(t, domain.LOW_RISK, result.RiskLevel)
	assert.InDelta(t, 0.27, result.Probability, 0.001)
	assert.Equal(t, []string{"age"}, result.TopFeatures)
	assert.NotEmpty(t, result.Recommendations)
}

func TestScore_NoContributionsFallback(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	input := &domain.PatientInput{
		Demographics: domain.Demographics{Age: 0, Gender: domain.OTHER},
	}

	result := scorer.Score(input)

	assert.Equal(t, DefaultParams().Baseline, result.Probability)
	assert.Equal(t, []string{"creatinine", "age", "diabetes_mellitus"}, result.TopFeatures)
	assert.Equal(t, genericRecommendations, result.Recommendations)
}

func TestScore_UsesMostRecentReading(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	// The most recent reading is first in the slice; the scorer must pick
	// it by timestamp, not by position.
	input := baseInput()
	input.Readings = []domain.Reading{
		{Timestamp: "2024-03-01T10:00:00Z", Creatinine: fptr(0.9)},
		{Timestamp: "2024-01-01T10:00:00Z", Creatinine: fptr(3.0)},
	}

	recent := scorer.Score(input)

	only := baseInput()
	only.Readings = []domain.Reading{
		{Timestamp: "2024-03-01T10:00:00Z", Creatinine: fptr(0.9)},
	}
	baseline := scorer.Score(only)

	assert.Equal(t, baseline.Probability, recent.Probability)
}

func TestScore_CreatinineTrendBonus(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	rising := baseInput()
	rising.Readings = []domain.Reading{
		{Timestamp: "2024-01-01T10:00:00Z", Creatinine: fptr(1.5)},
		{Timestamp: "2024-02-01T10:00:00Z", Creatinine: fptr(2.0)},
	}

	flat := baseInput()
	flat.Readings = []domain.Reading{
		{Timestamp: "2024-01-01T10:00:00Z", Creatinine: fptr(2.0)},
		{Timestamp: "2024-02-01T10:00:00Z", Creatinine: fptr(2.0)},
	}

	risingResult := scorer.Score(rising)
	flatResult := scorer.Score(flat)

	assert.InDelta(t, DefaultParams().CreatinineTrendBonus,
		risingResult.Probability-flatResult.Probability, 0.001)
}

func TestScore_AbsentFieldsAreNotZero(t *testing.T) {
	scorer := NewDefaultScorer(testLogger())

	// A missing heart rate must not be scored like a measured zero, which
	// would trip the bradycardia signal.
	absent := baseInput()
	absent.Readings = []domain.Reading{{Timestamp: "2024-01-01T00:00:00Z"}}

	zero := baseInput()
	zero.Readings = []domain.Reading{{Timestamp: "2024-01-01T00:00:00Z", HeartRate: fptr(0)}}

	assert.Less(t, scorer.Score(absent).Probability, scorer.Score(zero).Probability)
}

func TestParamsFromConfig_Overrides(t *testing.T) {
	params := ParamsFromConfig(domain.ModelConfig{LowCutoff: 0.3, HighCutoff: 0.8})

	assert.Equal(t, 0.3, params.LowCutoff)
	assert.Equal(t, 0.8, params.HighCutoff)
	assert.Equal(t, DefaultParams().Baseline, params.Baseline)
}
