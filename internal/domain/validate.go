package domain

import "fmt"

// Validation bounds for incoming prediction requests.
const (
	MinAge      = 0
	MaxAge      = 120
	MaxReadings = 3
)

// Validate checks a PatientInput before it is handed to the risk scorer.
// The scorer itself is total over well-typed input; all range checks
// happen here so callers get a field-level error they can surface.
func (p *PatientInput) Validate() error {
	if p.Demographics.Age < MinAge || p.Demographics.Age > MaxAge {
		return NewValidationError("demographics.age", "age must be between 0 and 120", p.Demographics.Age)
	}
	if !p.Demographics.Gender.IsValid() {
		return NewValidationError("demographics.gender", "gender must be Male, Female or Other", string(p.Demographics.Gender))
	}
	if len(p.Readings) > MaxReadings {
		return NewValidationError("lab_vitals", "at most 3 readings are accepted", len(p.Readings))
	}
	for i, r := range p.Readings {
		if err := r.validate(i); err != nil {
			return err
		}
	}
	return nil
}

// validate checks a single reading for physically impossible values.
// Absent fields are fine; they contribute nothing downstream.
func (r *Reading) validate(idx int) error {
	checks := []struct {
		name  string
		value *float64
	}{
		{"creatinine", r.Creatinine},
		{"albumin", r.Albumin},
		{"systolic_bp", r.SystolicBP},
		{"diastolic_bp", r.DiastolicBP},
		{"heart_rate", r.HeartRate},
		{"urine_protein_pct", r.UrineProteinPct},
		{"urine_bacteria_pct", r.UrineBacteriaPct},
		{"urea", r.Urea},
		{"sodium", r.Sodium},
		{"potassium", r.Potassium},
		{"bicarbonate", r.Bicarbonate},
	}
	for _, c := range checks {
		if c.value != nil && *c.value < 0 {
			return NewValidationError(
				fieldPath(idx, c.name),
				"measurement cannot be negative",
				*c.value,
			)
		}
	}
	return nil
}

// fieldPath builds lab_vitals[0].creatinine style paths for the frontend
func fieldPath(idx int, name string) string {
	return fmt.Sprintf("lab_vitals[%d].%s", idx, name)
}
