package wealth

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/mobility-cli/internal/stats"
)

// Scoring methods.
const (
	MethodSimple = "simple"
	MethodPCA    = "pca"
)

// neutral is the normalized value of a feature or score that does not vary.
const neutral = 0.5

// Model is a fitted scorer. It is immutable once returned by Fit and may be applied to
// any matrix with the same feature columns.
type Model struct {
	Method   string
	Features []string

	// Min-max bounds per feature, used by the simple method.
	Min []float64
	Max []float64

	// Standardization and first principal component, used by the pca method.
	Mean     []float64
	Std      []float64
	Loadings []float64

	// Range of the raw composite over the fitted population.
	ScoreMin float64
	ScoreMax float64

	ExplainedVariance float64
}

// Fit learns normalization parameters from m.
func Fit(m *Matrix, method string) (*Model, error) {
	if m.Len() == 0 {
		return nil, eris.New("wealth: no users to fit")
	}
	if len(m.Features) == 0 {
		return nil, eris.New("wealth: no features to fit")
	}

	model := &Model{Method: method, Features: append([]string(nil), m.Features...)}
	switch method {
	case MethodSimple:
		model.fitSimple(m)
	case MethodPCA:
		if err := model.fitPCA(m); err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("wealth: unknown method %q", method)
	}

	raw := model.composite(m)
	model.ScoreMin, model.ScoreMax = bounds(raw)
	return model, nil
}

func (md *Model) fitSimple(m *Matrix) {
	p := len(md.Features)
	md.Min = make([]float64, p)
	md.Max = make([]float64, p)
	for j := 0; j < p; j++ {
		md.Min[j], md.Max[j] = bounds(column(m, j))
	}
}

func (md *Model) fitPCA(m *Matrix) error {
	n, p := m.Len(), len(md.Features)
	md.Mean = make([]float64, p)
	md.Std = make([]float64, p)
	for j := 0; j < p; j++ {
		md.Mean[j], md.Std[j] = stat.PopMeanStdDev(column(m, j), nil)
		if math.IsNaN(md.Std[j]) {
			md.Std[j] = 0
		}
	}

	md.Loadings = make([]float64, p)
	if n < 2 {
		// A single user has no variance to project; every loading is equal.
		for j := range md.Loadings {
			md.Loadings[j] = 1 / math.Sqrt(float64(p))
		}
		return nil
	}

	z := mat.NewDense(n, p, nil)
	for i, row := range md.standardize(m) {
		z.SetRow(i, row)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(z, nil); !ok {
		return eris.New("wealth: principal component decomposition failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	var loadingSum float64
	for j := 0; j < p; j++ {
		md.Loadings[j] = vecs.At(j, 0)
		loadingSum += md.Loadings[j]
	}
	// Orient PC1 so that higher usage means a higher index.
	if loadingSum < 0 {
		for j := range md.Loadings {
			md.Loadings[j] = -md.Loadings[j]
		}
	}

	if total := stats.Sum(vars); total > 0 {
		md.ExplainedVariance = vars[0] / total
	}
	return nil
}

// Transform returns the normalized feature matrix: min-max scaled for the simple method
// (0.5 for constant features), standardized for the pca method (0 for constant
// features).
func (md *Model) Transform(m *Matrix) [][]float64 {
	if md.Method == MethodPCA {
		return md.standardize(m)
	}
	out := make([][]float64, m.Len())
	for i, row := range m.Rows {
		norm := make([]float64, len(md.Features))
		for j := range md.Features {
			norm[j] = minMax(row[j], md.Min[j], md.Max[j])
		}
		out[i] = norm
	}
	return out
}

// Score returns one wealth index in [0,1] per row of m.
func (md *Model) Score(m *Matrix) []float64 {
	raw := md.composite(m)
	out := make([]float64, len(raw))
	for i, v := range raw {
		out[i] = stats.Clamp(minMax(v, md.ScoreMin, md.ScoreMax), 0, 1)
	}
	return out
}

func (md *Model) composite(m *Matrix) []float64 {
	norm := md.Transform(m)
	out := make([]float64, len(norm))
	for i, row := range norm {
		if md.Method == MethodPCA {
			var proj float64
			for j, v := range row {
				proj += v * md.Loadings[j]
			}
			out[i] = proj
			continue
		}
		out[i] = stats.Mean(row)
	}
	return out
}

func (md *Model) standardize(m *Matrix) [][]float64 {
	out := make([][]float64, m.Len())
	for i, row := range m.Rows {
		z := make([]float64, len(md.Features))
		for j := range md.Features {
			if md.Std[j] > 0 {
				z[j] = (row[j] - md.Mean[j]) / md.Std[j]
			}
		}
		out[i] = z
	}
	return out
}

func column(m *Matrix, j int) []float64 {
	out := make([]float64, len(m.Rows))
	for i, row := range m.Rows {
		out[i] = row[j]
	}
	return out
}

func bounds(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func minMax(v, lo, hi float64) float64 {
	if hi-lo <= 0 {
		return neutral
	}
	return (v - lo) / (hi - lo)
}
