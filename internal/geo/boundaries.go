package geo

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/mobility-cli/internal/config"
)

// ErrNoWeights is returned when no locality ends up with a positive population weight.
var ErrNoWeights = eris.New("geo: no locality has a positive population weight")

// Boundaries is the immutable set of loaded localities with normalized population
// weights.
type Boundaries struct {
	localities []*Locality
	weights    []float64
	byName     map[string]int
}

// NewBoundaries assigns population weights to localities. Named localities receive
// their configured weight, the weight left over is spread evenly across the remaining
// localities, and everything is normalized to sum to 1.
func NewBoundaries(locs []*Locality, named []config.NamedWeight) (*Boundaries, error) {
	if len(locs) == 0 {
		return nil, eris.Wrap(ErrNoWeights, "geo: no localities loaded")
	}

	major := make(map[string]float64, len(named))
	var majorTotal float64
	for _, nw := range named {
		major[NormalizeName(nw.Name)] = nw.Weight
		majorTotal += nw.Weight
	}

	var others int
	for _, l := range locs {
		if _, ok := major[NormalizeName(l.Name)]; !ok {
			others++
		}
	}
	var otherWeight float64
	if others > 0 && majorTotal < 1 {
		otherWeight = (1 - majorTotal) / float64(others)
	}

	b := &Boundaries{
		localities: locs,
		weights:    make([]float64, len(locs)),
		byName:     make(map[string]int, len(locs)),
	}
	var total float64
	for i, l := range locs {
		key := NormalizeName(l.Name)
		w, ok := major[key]
		if !ok {
			w = otherWeight
		}
		if w < 0 {
			w = 0
		}
		b.weights[i] = w
		total += w
		if _, dup := b.byName[key]; !dup {
			b.byName[key] = i
		}
	}
	if total <= 0 {
		return nil, ErrNoWeights
	}
	for i, l := range locs {
		b.weights[i] /= total
		l.Weight = b.weights[i]
	}
	return b, nil
}

// Localities returns the loaded localities in load order.
func (b *Boundaries) Localities() []*Locality {
	return b.localities
}

// Weights returns the normalized population weights aligned with Localities.
func (b *Boundaries) Weights() []float64 {
	return b.weights
}

// Len returns the number of localities.
func (b *Boundaries) Len() int {
	return len(b.localities)
}

// Lookup finds a locality by name, ignoring case and diacritics.
func (b *Boundaries) Lookup(name string) (*Locality, bool) {
	i, ok := b.byName[NormalizeName(name)]
	if !ok {
		return nil, false
	}
	return b.localities[i], true
}
