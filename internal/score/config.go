package score

import (
	"fmt"
	"math"
)

// Weights is the category weight table used to combine sub-scores into the
// overall score. It is passed into the engine explicitly so tests and
// alternate deployments can substitute their own allocation.
type Weights struct {
	CodeSecurity float64 `yaml:"code_security"`
	Market       float64 `yaml:"market"`
	Governance   float64 `yaml:"governance"`
	Fundamental  float64 `yaml:"fundamental"`
	Community    float64 `yaml:"community"`
	Operational  float64 `yaml:"operational"`
}

// WeightSumTolerance is the allowed drift of the weight sum from 1.0.
const WeightSumTolerance = 1e-9

// DefaultWeights returns the production category allocation.
func DefaultWeights() Weights {
	return Weights{
		CodeSecurity: 0.30,
		Market:       0.20,
		Governance:   0.15,
		Fundamental:  0.15,
		Community:    0.10,
		Operational:  0.10,
	}
}

// Sum returns the total of all six weights.
func (w Weights) Sum() float64 {
	return w.CodeSecurity + w.Market + w.Governance + w.Fundamental + w.Community + w.Operational
}

// Validate checks that the weights form a proper convex combination.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"code_security": w.CodeSecurity,
		"market":        w.Market,
		"governance":    w.Governance,
		"fundamental":   w.Fundamental,
		"community":     w.Community,
		"operational":   w.Operational,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("weight %s out of range [0,1]: %f", name, v)
		}
	}

	if diff := math.Abs(w.Sum() - 1.0); diff > WeightSumTolerance {
		return fmt.Errorf("weights sum to %f, expected 1.0", w.Sum())
	}

	return nil
}

// RatingBand maps an inclusive lower bound on the overall score to a letter
// rating. Bands are evaluated highest-first.
type RatingBand struct {
	Min    int    `yaml:"min"`
	Rating Rating `yaml:"rating"`
}

// DefaultRatingBands returns the production rating ladder, ordered from the
// highest band down. The terminal D band catches everything below 10.
func DefaultRatingBands() []RatingBand {
	return []RatingBand{
		{Min: 90, Rating: RatingAAA},
		{Min: 80, Rating: RatingAA},
		{Min: 70, Rating: RatingA},
		{Min: 60, Rating: RatingBBB},
		{Min: 50, Rating: RatingBB},
		{Min: 40, Rating: RatingB},
		{Min: 30, Rating: RatingCCC},
		{Min: 20, Rating: RatingCC},
		{Min: 10, Rating: RatingC},
		{Min: 0, Rating: RatingD},
	}
}

// SeverityWeights is the per-severity penalty applied to the vulnerability
// sub-score, scaled by finding confidence.
type SeverityWeights map[Severity]float64

// DefaultSeverityWeights returns the production penalty table.
func DefaultSeverityWeights() SeverityWeights {
	return SeverityWeights{
		SeverityCritical: 25,
		SeverityHigh:     15,
		SeverityMedium:   8,
		SeverityLow:      3,
	}
}

// Config bundles the tunable tables for the scoring engine.
type Config struct {
	Weights         Weights         `yaml:"weights"`
	RatingBands     []RatingBand    `yaml:"rating_bands"`
	SeverityWeights SeverityWeights `yaml:"severity_weights"`
}

// DefaultConfig returns the production scoring configuration.
func DefaultConfig() *Config {
	return &Config{
		Weights:         DefaultWeights(),
		RatingBands:     DefaultRatingBands(),
		SeverityWeights: DefaultSeverityWeights(),
	}
}

// Validate checks the full scoring configuration.
func (c *Config) Validate() error {
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if len(c.RatingBands) == 0 {
		return fmt.Errorf("rating bands must not be empty")
	}
	for i := 1; i < len(c.RatingBands); i++ {
		if c.RatingBands[i].Min >= c.RatingBands[i-1].Min {
			return fmt.Errorf("rating bands must be ordered highest-first")
		}
	}
	if c.RatingBands[len(c.RatingBands)-1].Min != 0 {
		return fmt.Errorf("lowest rating band must start at 0")
	}
	return nil
}
