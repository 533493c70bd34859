package risk

import (
	"sort"
	"time"

	"github.com/obiboss/ckd/internal/domain"
)

// Factor codes. The order of the table below is the canonical feature
// ordering: it breaks ties when ranking contributions and heads the
// fallback feature list.
const (
	FactorCreatinine      = "creatinine"
	FactorAge             = "age"
	FactorDiabetes        = "diabetes_mellitus"
	FactorHypertension    = "hypertension"
	FactorAnemia          = "anemia"
	FactorAlbuminLow      = "albumin_low"
	FactorSystolicBP      = "systolic_bp"
	FactorDiastolicBP     = "diastolic_bp"
	FactorHeartRate       = "heart_rate"
	FactorUrineProtein    = "urine_protein_pct"
	FactorUrineBacteria   = "urine_bacteria_pct"
	FactorUrea            = "urea"
	FactorSodium          = "sodium"
	FactorPotassium       = "potassium"
	FactorBicarbonate     = "bicarbonate"
	FactorCreatinineTrend = "creatinine_trend"
)

// displayNames maps internal factor codes to the identifiers reported in
// top_features. Most codes pass through unchanged.
var displayNames = map[string]string{
	FactorAlbuminLow: "albumin",
}

// observation is the point-in-time view of a request the factor
// evaluators run against: the comorbidity flags, the most recent reading
// and the creatinine trend across all readings.
type observation struct {
	age              int
	comorbidities    domain.Comorbidities
	latest           *domain.Reading
	creatinineRising bool
}

// newObservation reduces a patient input to an observation. Readings are
// ordered chronologically first (stable for unparseable or tied
// timestamps, so later input entries win ties); the last reading of that
// order feeds the point-in-time factors and the whole creatinine series
// feeds the trend factor.
func newObservation(input *domain.PatientInput) *observation {
	obs := &observation{
		age:           input.Demographics.Age,
		comorbidities: input.Comorbidities,
	}

	if len(input.Readings) == 0 {
		return obs
	}

	ordered := chronological(input.Readings)
	obs.latest = ordered[len(ordered)-1]
	obs.creatinineRising = creatinineRising(ordered)
	return obs
}

// chronological returns the readings stably sorted by parseable
// timestamp; entries without a usable timestamp keep their relative
// input position.
func chronological(readings []domain.Reading) []*domain.Reading {
	ordered := make([]*domain.Reading, len(readings))
	for i := range readings {
		ordered[i] = &readings[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		ti, iok := parseTimestamp(ordered[i].Timestamp)
		tj, jok := parseTimestamp(ordered[j].Timestamp)
		if !iok || !jok {
			return false
		}
		return ti.Before(tj)
	})
	return ordered
}

// creatinineRising reports whether the chronological creatinine series
// ends strictly above its first measured value. At least two measured
// values are required.
func creatinineRising(ordered []*domain.Reading) bool {
	var first, last *float64
	for _, r := range ordered {
		if r.Creatinine == nil {
			continue
		}
		if first == nil {
			first = r.Creatinine
		}
		last = r.Creatinine
	}
	return first != nil && last != first && *last > *first
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Factor is one entry of the risk factor table: a canonical code plus an
// evaluator returning the weighted contribution in [0, weight cap].
// Missing measurements evaluate to zero, never to an error.
type Factor struct {
	Code     string
	Name     string
	Evaluate func(obs *observation, p *ModelParams) float64
}

// factorTable returns the full factor table in canonical order.
func factorTable() []Factor {
	return []Factor{
		{
			Code: FactorCreatinine,
			Name: "Elevated serum creatinine",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.Creatinine == nil {
					return 0
				}
				over := *obs.latest.Creatinine - p.CreatinineRef
				if over <= 0 {
					return 0
				}
				return min(p.CreatinineCap, over*p.CreatinineSlope)
			},
		},
		{
			Code: FactorAge,
			Name: "Patient age",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.age <= 0 {
					return 0
				}
				return clamp01(float64(obs.age)/p.AgeDivisor) * p.AgeWeight
			},
		},
		{
			Code: FactorDiabetes,
			Name: "Diabetes mellitus",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.comorbidities.DiabetesMellitus {
					return p.DiabetesWeight
				}
				return 0
			},
		},
		{
			Code: FactorHypertension,
			Name: "Hypertension",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.comorbidities.Hypertension {
					return p.HypertensionWeight
				}
				return 0
			},
		},
		{
			Code: FactorAnemia,
			Name: "Anemia",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.comorbidities.Anemia {
					return p.AnemiaWeight
				}
				return 0
			},
		},
		{
			Code: FactorAlbuminLow,
			Name: "Low serum albumin",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.Albumin == nil {
					return 0
				}
				if *obs.latest.Albumin < p.AlbuminLowThreshold {
					return p.AlbuminLowWeight
				}
				return 0
			},
		},
		{
			Code: FactorSystolicBP,
			Name: "Elevated systolic blood pressure",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.SystolicBP == nil {
					return 0
				}
				sbp := *obs.latest.SystolicBP
				switch {
				case sbp > p.SystolicVeryHighRef:
					return p.SystolicVeryHighBonus
				case sbp > p.SystolicHighRef:
					return p.SystolicHighBonus
				}
				return 0
			},
		},
		{
			Code: FactorDiastolicBP,
			Name: "Elevated diastolic blood pressure",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.DiastolicBP == nil {
					return 0
				}
				if *obs.latest.DiastolicBP > p.DiastolicHighRef {
					return p.DiastolicHighBonus
				}
				return 0
			},
		},
		{
			Code: FactorHeartRate,
			Name: "Abnormal heart rate",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.HeartRate == nil {
					return 0
				}
				hr := *obs.latest.HeartRate
				if hr > p.HeartRateHighRef || hr < p.HeartRateLowRef {
					return p.HeartRateWeight
				}
				return 0
			},
		},
		{
			Code: FactorUrineProtein,
			Name: "Proteinuria",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.UrineProteinPct == nil {
					return 0
				}
				return linearAbove(*obs.latest.UrineProteinPct, p.UrineProteinRef, p.UrineProteinDivisor, p.UrineProteinWeight)
			},
		},
		{
			Code: FactorUrineBacteria,
			Name: "Bacteriuria",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.UrineBacteriaPct == nil {
					return 0
				}
				return linearAbove(*obs.latest.UrineBacteriaPct, p.UrineBacteriaRef, p.UrineBacteriaDivisor, p.UrineBacteriaWeight)
			},
		},
		{
			Code: FactorUrea,
			Name: "Elevated blood urea",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.Urea == nil {
					return 0
				}
				return linearAbove(*obs.latest.Urea, p.UreaRef, p.UreaDivisor, p.UreaWeight)
			},
		},
		{
			Code: FactorSodium,
			Name: "Abnormal serum sodium",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.Sodium == nil {
					return 0
				}
				na := *obs.latest.Sodium
				if na < p.SodiumLowRef || na > p.SodiumHighRef {
					return p.SodiumWeight
				}
				return 0
			},
		},
		{
			Code: FactorPotassium,
			Name: "Abnormal serum potassium",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.Potassium == nil {
					return 0
				}
				k := *obs.latest.Potassium
				switch {
				case k > p.PotassiumHighRef:
					return p.PotassiumHighWeight
				case k < p.PotassiumLowRef:
					return p.PotassiumLowWeight
				}
				return 0
			},
		},
		{
			Code: FactorBicarbonate,
			Name: "Low serum bicarbonate",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.latest == nil || obs.latest.Bicarbonate == nil {
					return 0
				}
				if *obs.latest.Bicarbonate < p.BicarbonateLowRef {
					return p.BicarbonateLowWeight
				}
				return 0
			},
		},
		{
			Code: FactorCreatinineTrend,
			Name: "Rising creatinine across readings",
			Evaluate: func(obs *observation, p *ModelParams) float64 {
				if obs.creatinineRising {
					return p.CreatinineTrendBonus
				}
				return 0
			},
		},
	}
}

// displayName returns the top_features identifier for a factor code.
func displayName(code string) string {
	if name, ok := displayNames[code]; ok {
		return name
	}
	return code
}

// linearAbove scales the excess of value over ref linearly onto [0, weight].
func linearAbove(value, ref, divisor, weight float64) float64 {
	if divisor <= 0 {
		return 0
	}
	return clamp01((value-ref)/divisor) * weight
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
