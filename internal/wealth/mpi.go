package wealth

import (
	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/stats"
)

// cutoffEpsilon absorbs float error when summed weights land exactly on the cutoff.
const cutoffEpsilon = 1e-9

// Deprivation is the Alkire-Foster result for one population.
type Deprivation struct {
	Scores     []float64
	Poor       []bool
	Thresholds map[string]float64
	Rate       float64
	Intensity  float64
	Omitted    []string
}

// Multidimensional flags users deprived across weighted dimensions. A user is deprived
// in a dimension when the indicator is strictly below its threshold, which is either a
// fixed value or a percentile of the population. Weights of the usable dimensions are
// rescaled to sum to one; a user is poor when the weighted score reaches cutoff.
// Dimensions whose indicator is unavailable are omitted.
func Multidimensional(m *Matrix, dims []config.MPIDimension, cutoff float64) *Deprivation {
	d := &Deprivation{
		Scores:     make([]float64, m.Len()),
		Poor:       make([]bool, m.Len()),
		Thresholds: make(map[string]float64),
	}

	type usable struct {
		dim    config.MPIDimension
		values []float64
	}
	var (
		dimsUsed    []usable
		totalWeight float64
	)
	for _, dim := range dims {
		values := m.Raw(dim.Indicator)
		if values == nil || dim.Weight <= 0 {
			d.Omitted = append(d.Omitted, dim.Name)
			continue
		}
		dimsUsed = append(dimsUsed, usable{dim: dim, values: values})
		totalWeight += dim.Weight
	}
	if len(dimsUsed) == 0 || m.Len() == 0 {
		return d
	}

	for _, u := range dimsUsed {
		threshold := u.dim.Threshold
		if u.dim.Percentile > 0 {
			threshold = stats.Quantile(u.values, u.dim.Percentile/100)
		}
		d.Thresholds[u.dim.Name] = threshold

		w := u.dim.Weight / totalWeight
		for i, v := range u.values {
			if v < threshold {
				d.Scores[i] += w
			}
		}
	}

	var poorCount int
	var poorScore float64
	for i, s := range d.Scores {
		if s+cutoffEpsilon >= cutoff {
			d.Poor[i] = true
			poorCount++
			poorScore += s
		}
	}
	d.Rate = float64(poorCount) / float64(m.Len())
	if poorCount > 0 {
		d.Intensity = poorScore / float64(poorCount)
	}
	return d
}
