package risk

import (
	"github.com/obiboss/ckd/internal/domain"
)

// ModelParams holds every weight, reference threshold and cut point used by
// the scorer. The values are heuristic tunables, not learned coefficients,
// and not clinical truth; they are kept in one place so deployments can
// adjust them through configuration without touching factor logic.
type ModelParams struct {
	// Baseline contribution every request starts from.
	Baseline float64

	// Probability cut points. p < LowCutoff is Low Risk, p >= HighCutoff
	// is High Risk, Moderate Risk otherwise.
	LowCutoff  float64
	HighCutoff float64

	// Probability ceiling after summation.
	ProbabilityCap float64

	// Demographics.
	AgeWeight  float64 // cap of the age contribution
	AgeDivisor float64 // years mapped onto the full weight

	// Comorbidity flag weights.
	DiabetesWeight     float64
	HypertensionWeight float64
	AnemiaWeight       float64

	// Serum creatinine (mg/dL).
	CreatinineRef   float64 // contributions start above this
	CreatinineSlope float64 // contribution per mg/dL above the reference
	CreatinineCap   float64

	// Rising creatinine across readings.
	CreatinineTrendBonus float64

	// Serum albumin (g/dL); low albumin raises risk.
	AlbuminLowThreshold float64
	AlbuminLowWeight    float64

	// Blood pressure (mmHg).
	SystolicHighRef   float64
	SystolicHighBonus float64 // above SystolicHighRef
	SystolicVeryHighRef   float64
	SystolicVeryHighBonus float64 // above SystolicVeryHighRef, replaces the high bonus
	DiastolicHighRef   float64
	DiastolicHighBonus float64

	// Heart rate (bpm); both tachycardia and bradycardia are minor signals.
	HeartRateHighRef float64
	HeartRateLowRef  float64
	HeartRateWeight  float64

	// Urinalysis percentages.
	UrineProteinRef     float64
	UrineProteinDivisor float64
	UrineProteinWeight  float64
	UrineBacteriaRef     float64
	UrineBacteriaDivisor float64
	UrineBacteriaWeight  float64

	// Blood chemistry.
	UreaRef     float64 // mg/dL
	UreaDivisor float64
	UreaWeight  float64
	SodiumLowRef    float64 // mmol/L
	SodiumHighRef   float64
	SodiumWeight    float64
	PotassiumHighRef    float64 // mmol/L
	PotassiumHighWeight float64
	PotassiumLowRef     float64
	PotassiumLowWeight  float64
	BicarbonateLowRef    float64 // mmol/L
	BicarbonateLowWeight float64

	// Factors contributing less than this are skipped when selecting
	// recommendations.
	RecommendationMinContribution float64

	// Number of features reported.
	TopFeatureCount int
}

// DefaultParams returns the stock heuristic parameters.
func DefaultParams() ModelParams {
	return ModelParams{
		Baseline:       0.10,
		LowCutoff:      0.40,
		HighCutoff:     0.70,
		ProbabilityCap: 0.99,

		AgeWeight:  0.25,
		AgeDivisor: 100,

		DiabetesWeight:     0.12,
		HypertensionWeight: 0.12,
		AnemiaWeight:       0.08,

		CreatinineRef:        1.2,
		CreatinineSlope:      0.75,
		CreatinineCap:        0.45,
		CreatinineTrendBonus: 0.05,

		AlbuminLowThreshold: 3.5,
		AlbuminLowWeight:    0.10,

		SystolicHighRef:       140,
		SystolicHighBonus:     0.10,
		SystolicVeryHighRef:   160,
		SystolicVeryHighBonus: 0.20,
		DiastolicHighRef:      100,
		DiastolicHighBonus:    0.08,

		HeartRateHighRef: 100,
		HeartRateLowRef:  55,
		HeartRateWeight:  0.05,

		UrineProteinRef:      10,
		UrineProteinDivisor:  40,
		UrineProteinWeight:   0.15,
		UrineBacteriaRef:     10,
		UrineBacteriaDivisor: 40,
		UrineBacteriaWeight:  0.08,

		UreaRef:              50,
		UreaDivisor:          50,
		UreaWeight:           0.15,
		SodiumLowRef:         135,
		SodiumHighRef:        145,
		SodiumWeight:         0.05,
		PotassiumHighRef:     5.5,
		PotassiumHighWeight:  0.10,
		PotassiumLowRef:      3.5,
		PotassiumLowWeight:   0.05,
		BicarbonateLowRef:    22,
		BicarbonateLowWeight: 0.10,

		RecommendationMinContribution: 0.05,
		TopFeatureCount:               3,
	}
}

// ParamsFromConfig returns the default parameters with any non-zero
// overrides from the model configuration applied.
func ParamsFromConfig(cfg domain.ModelConfig) ModelParams {
	p := DefaultParams()
	if cfg.LowCutoff > 0 {
		p.LowCutoff = cfg.LowCutoff
	}
	if cfg.HighCutoff > 0 {
		p.HighCutoff = cfg.HighCutoff
	}
	if cfg.Baseline > 0 {
		p.Baseline = cfg.Baseline
	}
	return p
}
