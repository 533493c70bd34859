// Package risk implements the heuristic CKD risk scorer: a pure,
// deterministic mapping from patient demographics, comorbidity flags and
// lab/vital readings to a probability, a coarse risk level, the top
// contributing features and canned recommendations.
package risk

import (
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/obiboss/ckd/internal/domain"
)

// Scorer evaluates the fixed risk factor table against patient input.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	logger  *logrus.Logger
	params  ModelParams
	factors []Factor
}

// Contribution is one factor's weighted share of the summed score.
type Contribution struct {
	Code  string
	Value float64
}

// NewScorer creates a scorer with the given parameters.
func NewScorer(logger *logrus.Logger, params ModelParams) *Scorer {
	return &Scorer{
		logger:  logger,
		params:  params,
		factors: factorTable(),
	}
}

// NewDefaultScorer creates a scorer with the stock parameters.
func NewDefaultScorer(logger *logrus.Logger) *Scorer {
	return NewScorer(logger, DefaultParams())
}

// Score computes the risk result for a patient input. It is total over
// well-typed input: absent measurements contribute nothing and no input
// produces an error. Identical input always yields identical output.
func (s *Scorer) Score(input *domain.PatientInput) *domain.RiskResult {
	obs := newObservation(input)

	contributions := make([]Contribution, 0, len(s.factors))
	sum := s.params.Baseline
	for _, f := range s.factors {
		v := f.Evaluate(obs, &s.params)
		if v <= 0 {
			continue
		}
		contributions = append(contributions, Contribution{Code: f.Code, Value: v})
		sum += v
	}

	// Round before classifying so the reported probability and the risk
	// level never disagree at a cut point.
	probability := roundProbability(clampProbability(sum, s.params.ProbabilityCap))
	level := s.classify(probability)

	result := &domain.RiskResult{
		RiskLevel:       level,
		Probability:     probability,
		TopFeatures:     s.topFeatures(contributions),
		Recommendations: s.recommendations(contributions, level),
	}

	s.logger.WithFields(logrus.Fields{
		"risk_level":   result.RiskLevel,
		"probability":  result.Probability,
		"contributors": len(contributions),
	}).Debug("Scored patient input")

	return result
}

// classify maps a probability through the fixed cut points.
func (s *Scorer) classify(probability float64) domain.RiskLevel {
	switch {
	case probability >= s.params.HighCutoff:
		return domain.HIGH_RISK
	case probability >= s.params.LowCutoff:
		return domain.MODERATE_RISK
	}
	return domain.LOW_RISK
}

// topFeatures ranks positive contributions by magnitude, descending, with
// ties broken by the canonical factor ordering, and returns up to
// TopFeatureCount deduplicated display names. When nothing contributed at
// all the stock fallback triple is returned so the caller always has
// something to show.
func (s *Scorer) topFeatures(contributions []Contribution) []string {
	if len(contributions) == 0 {
		return []string{
			displayName(FactorCreatinine),
			displayName(FactorAge),
			displayName(FactorDiabetes),
		}
	}

	ranked := make([]Contribution, len(contributions))
	copy(ranked, contributions)
	// Contributions arrive in canonical table order; a stable sort by
	// value keeps that order among ties.
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Value > ranked[j].Value
	})

	features := make([]string, 0, s.params.TopFeatureCount)
	seen := make(map[string]bool)
	for _, c := range ranked {
		if len(features) == s.params.TopFeatureCount {
			break
		}
		name := displayName(c.Code)
		if seen[name] {
			continue
		}
		seen[name] = true
		features = append(features, name)
	}
	return features
}

// recommendationRules maps factor codes to canned recommendation strings,
// checked in this order.
var recommendationRules = []struct {
	codes []string
	text  string
}{
	{[]string{FactorCreatinine, FactorCreatinineTrend, FactorUrea}, "Monitor creatinine levels"},
	{[]string{FactorHypertension, FactorSystolicBP, FactorDiastolicBP}, "Check blood pressure daily"},
	{[]string{FactorDiabetes}, "Optimize glycemic control"},
	{[]string{FactorAlbuminLow}, "Assess nutrition and albumin levels"},
	{[]string{FactorUrineProtein}, "Repeat urinalysis to quantify proteinuria"},
	{[]string{FactorUrineBacteria}, "Evaluate for urinary tract infection"},
	{[]string{FactorPotassium, FactorSodium, FactorBicarbonate}, "Review electrolytes and acid-base status"},
	{[]string{FactorAnemia}, "Work up anemia and iron studies"},
	{[]string{FactorAge}, "Schedule periodic kidney function screening"},
}

const maxRecommendations = 4

// genericRecommendations is returned when no factor cleared the
// recommendation threshold.
var genericRecommendations = []string{
	"Maintain healthy lifestyle",
	"Follow up with primary care",
	"Repeat labs in 3 months",
}

// recommendations selects canned recommendations for every factor that
// contributed above the minimal threshold, plus a referral for high risk,
// deduplicated and capped. The list is never empty.
func (s *Scorer) recommendations(contributions []Contribution, level domain.RiskLevel) []string {
	contributed := make(map[string]bool, len(contributions))
	for _, c := range contributions {
		if c.Value > s.params.RecommendationMinContribution {
			contributed[c.Code] = true
		}
	}

	recs := make([]string, 0, maxRecommendations)
	add := func(text string) {
		if len(recs) == maxRecommendations {
			return
		}
		for _, r := range recs {
			if r == text {
				return
			}
		}
		recs = append(recs, text)
	}

	// Referral ranks ahead of the remaining factor advice so the cap
	// never drops it.
	for _, rule := range recommendationRules[:2] {
		for _, code := range rule.codes {
			if contributed[code] {
				add(rule.text)
				break
			}
		}
	}
	if level == domain.HIGH_RISK {
		add("Schedule nephrology consultation")
	}
	for _, rule := range recommendationRules[2:] {
		for _, code := range rule.codes {
			if contributed[code] {
				add(rule.text)
				break
			}
		}
	}

	if len(recs) == 0 {
		recs = append(recs, genericRecommendations...)
	}
	return recs
}

func clampProbability(v, limit float64) float64 {
	if v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}

// roundProbability rounds to two decimals for presentation.
func roundProbability(v float64) float64 {
	return math.Round(v*100) / 100
}
