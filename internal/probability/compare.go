package probability

import "fmt"

// Agreement classifies the spread between a model estimate and an
// empirical estimate of the same quantity.
type Agreement string

const (
	// Agree means the two estimates fall within the tolerance.
	Agree Agreement = "agree"
	// ModelHigher means the model estimate exceeds the empirical one by
	// more than the divergence threshold.
	ModelHigher Agreement = "model_higher"
	// EmpiricalHigher means the empirical estimate exceeds the model one
	// by more than the divergence threshold.
	EmpiricalHigher Agreement = "empirical_higher"
	// Moderate covers differences between the tolerance and the
	// divergence threshold.
	Moderate Agreement = "moderate_divergence"
)

// DefaultTolerance is the agreement band: estimates closer than this
// are classified as agreeing.
const DefaultTolerance = 0.05 // 5 percentage points

const divergenceThreshold = 0.10 // 10 percentage points

// Comparison holds both estimates and their classification.
type Comparison struct {
	Model      float64
	Empirical  float64
	Difference float64 // model minus empirical
	Agreement  Agreement
}

// Compare classifies the difference between model and empirical PoP
// estimates, both in [0,1], using the default agreement tolerance.
func Compare(model, empirical float64) Comparison {
	return CompareWithTolerance(model, empirical, DefaultTolerance)
}

// CompareWithTolerance is Compare with a caller-chosen agreement band.
func CompareWithTolerance(model, empirical, tolerance float64) Comparison {
	diff := model - empirical
	c := Comparison{Model: model, Empirical: empirical, Difference: diff}
	switch {
	case diff > -tolerance && diff < tolerance:
		c.Agreement = Agree
	case diff > divergenceThreshold:
		c.Agreement = ModelHigher
	case diff < -divergenceThreshold:
		c.Agreement = EmpiricalHigher
	default:
		c.Agreement = Moderate
	}
	return c
}

// String renders the comparison in a log-friendly form.
func (c Comparison) String() string {
	return fmt.Sprintf("model=%.1f%% empirical=%.1f%% diff=%+.1fpp (%s)",
		c.Model*100, c.Empirical*100, c.Difference*100, c.Agreement)
}
