package geo

import (
	"github.com/sells-group/mobility-cli/internal/model"
	"github.com/sells-group/mobility-cli/internal/rng"
)

// AreaClassifier labels a home locality urban or rural. Allowlisted localities are
// always urban; any other locality is urban with probability UrbanProbability.
type AreaClassifier struct {
	allow            map[string]struct{}
	urbanProbability float64
}

// NewAreaClassifier builds a classifier from the urban allowlist.
func NewAreaClassifier(allowlist []string, urbanProbability float64) *AreaClassifier {
	allow := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		allow[NormalizeName(name)] = struct{}{}
	}
	return &AreaClassifier{allow: allow, urbanProbability: urbanProbability}
}

// IsAllowlisted reports whether the locality is always urban.
func (c *AreaClassifier) IsAllowlisted(locality string) bool {
	_, ok := c.allow[NormalizeName(locality)]
	return ok
}

// Classify returns model.Urban or model.Rural. Draws from s only for localities
// outside the allowlist.
func (c *AreaClassifier) Classify(s *rng.Stream, locality string) string {
	if c.IsAllowlisted(locality) {
		return model.Urban
	}
	if s.Bernoulli(c.urbanProbability) {
		return model.Urban
	}
	return model.Rural
}
