package geo

import (
	"errors"
	"io/fs"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/mobility-cli/internal/config"
	"github.com/sells-group/mobility-cli/internal/rng"
)

// Sampler sources.
const (
	SourceBoundaries   = "boundaries"
	SourceUrbanCenters = "urban_centers"
)

// ElsewhereName is the urban center entry sampled uniformly over the elsewhere box.
const ElsewhereName = "Others"

const unknownArea = "Unknown"

// ErrNoDestination is returned when the origin is the only candidate destination.
var ErrNoDestination = eris.New("geo: no destination distinct from origin")

// Place is a sampled coordinate with its administrative hierarchy.
type Place struct {
	Locality   string
	Department string
	Region     string
	Lat        float64
	Lon        float64
}

// Sampler draws home and migration destination places. Callers do not depend on
// which tier produced a coordinate.
type Sampler interface {
	SampleHome(s *rng.Stream) Place
	SampleDestination(s *rng.Stream, origin string) (Place, error)
	Names() []string
	Source() string
}

// NewSampler returns a BoundarySampler when boundary data is configured and present,
// otherwise a CenterSampler over the configured urban centers.
func NewSampler(cfg *config.Config) (Sampler, error) {
	log := zap.L().With(zap.String("component", "geo.sampler"))

	if cfg.Boundaries.Path != "" {
		locs, err := Load(cfg.Boundaries.Path, Fields{
			Name:       cfg.Boundaries.NameField,
			Department: cfg.Boundaries.DepartmentField,
			Region:     cfg.Boundaries.RegionField,
		})
		switch {
		case err == nil && len(locs) > 0:
			b, bErr := NewBoundaries(locs, cfg.Boundaries.Weights)
			if bErr != nil {
				return nil, bErr
			}
			log.Info("boundaries loaded",
				zap.String("path", cfg.Boundaries.Path),
				zap.Int("localities", b.Len()),
			)
			return NewBoundarySampler(b, cfg.Boundaries.MaxAttempts, cfg.Boundaries.CentroidSigma), nil
		case err == nil:
			log.Warn("boundary file has no usable localities, using urban centers",
				zap.String("path", cfg.Boundaries.Path))
		case errors.Is(err, fs.ErrNotExist):
			log.Warn("boundary file not found, using urban centers",
				zap.String("path", cfg.Boundaries.Path))
		default:
			return nil, eris.Wrap(err, "geo: load boundaries")
		}
	}

	return NewCenterSampler(cfg.UrbanCenters, cfg.Elsewhere)
}

// BoundarySampler samples localities by population weight and points inside their
// polygons.
type BoundarySampler struct {
	b             *Boundaries
	maxAttempts   int
	centroidSigma float64
	names         []string
}

// NewBoundarySampler creates a sampler over loaded boundaries.
func NewBoundarySampler(b *Boundaries, maxAttempts int, centroidSigma float64) *BoundarySampler {
	if maxAttempts <= 0 {
		maxAttempts = 100
	}
	names := make([]string, 0, b.Len())
	for _, l := range b.Localities() {
		names = append(names, l.Name)
	}
	return &BoundarySampler{b: b, maxAttempts: maxAttempts, centroidSigma: centroidSigma, names: names}
}

// SampleLocality draws a locality with probability proportional to its weight.
func (bs *BoundarySampler) SampleLocality(s *rng.Stream) *Locality {
	return bs.b.localities[s.Choice(bs.b.weights)]
}

// SamplePointIn draws uniform points in the locality's bounding box until one falls
// inside the polygon. After maxAttempts misses it returns the centroid perturbed by
// Gaussian noise.
func (bs *BoundarySampler) SamplePointIn(s *rng.Stream, l *Locality) (float64, float64) {
	minLon, maxLon := l.Bounds.Min(0), l.Bounds.Max(0)
	minLat, maxLat := l.Bounds.Min(1), l.Bounds.Max(1)
	for i := 0; i < bs.maxAttempts; i++ {
		lon := s.Uniform(minLon, maxLon)
		lat := s.Uniform(minLat, maxLat)
		if l.Contains(lat, lon) {
			return lat, lon
		}
	}
	lat, lon := l.CentroidLatLon()
	return lat + s.Normal(0, bs.centroidSigma), lon + s.Normal(0, bs.centroidSigma)
}

// SampleHome implements Sampler.
func (bs *BoundarySampler) SampleHome(s *rng.Stream) Place {
	return bs.place(s, bs.SampleLocality(s))
}

// SampleDestination draws a locality other than origin, weights renormalized over
// the remaining localities.
func (bs *BoundarySampler) SampleDestination(s *rng.Stream, origin string) (Place, error) {
	key := NormalizeName(origin)
	weights := make([]float64, len(bs.b.weights))
	for i, l := range bs.b.localities {
		if NormalizeName(l.Name) != key {
			weights[i] = bs.b.weights[i]
		}
	}
	idx := s.Choice(weights)
	if idx < 0 {
		return Place{}, ErrNoDestination
	}
	return bs.place(s, bs.b.localities[idx]), nil
}

func (bs *BoundarySampler) place(s *rng.Stream, l *Locality) Place {
	lat, lon := bs.SamplePointIn(s, l)
	return Place{
		Locality:   l.Name,
		Department: orUnknown(l.Department),
		Region:     orUnknown(l.Region),
		Lat:        lat,
		Lon:        lon,
	}
}

// Names implements Sampler.
func (bs *BoundarySampler) Names() []string { return bs.names }

// Source implements Sampler.
func (bs *BoundarySampler) Source() string { return SourceBoundaries }

// Boundaries returns the underlying boundaries.
func (bs *BoundarySampler) Boundaries() *Boundaries { return bs.b }

// CenterSampler is the fallback used without boundary data: weighted urban centers
// with Gaussian scatter plus a uniform elsewhere bucket.
type CenterSampler struct {
	centers   []config.UrbanCenter
	weights   []float64
	elsewhere config.BoundsConfig
	names     []string
}

const defaultCenterSigma = 0.05

// NewCenterSampler creates a fallback sampler. Returns ErrNoWeights if no center has
// a positive weight.
func NewCenterSampler(centers []config.UrbanCenter, elsewhere config.BoundsConfig) (*CenterSampler, error) {
	cs := &CenterSampler{
		centers:   centers,
		weights:   make([]float64, len(centers)),
		elsewhere: elsewhere,
	}
	var total float64
	for i, c := range centers {
		if c.Weight > 0 {
			cs.weights[i] = c.Weight
			total += c.Weight
		}
		if c.Name != ElsewhereName {
			cs.names = append(cs.names, c.Name)
		}
	}
	if total <= 0 {
		return nil, ErrNoWeights
	}
	return cs, nil
}

// SampleHome implements Sampler.
func (cs *CenterSampler) SampleHome(s *rng.Stream) Place {
	c := cs.centers[s.Choice(cs.weights)]
	if c.Name == ElsewhereName {
		return Place{
			Locality:   ElsewhereName,
			Department: unknownArea,
			Region:     unknownArea,
			Lat:        s.Uniform(cs.elsewhere.MinLat, cs.elsewhere.MaxLat),
			Lon:        s.Uniform(cs.elsewhere.MinLon, cs.elsewhere.MaxLon),
		}
	}
	return cs.scatter(s, c)
}

// SampleDestination draws a named center other than origin. The elsewhere bucket is
// never a destination.
func (cs *CenterSampler) SampleDestination(s *rng.Stream, origin string) (Place, error) {
	key := NormalizeName(origin)
	weights := make([]float64, len(cs.weights))
	for i, c := range cs.centers {
		if c.Name != ElsewhereName && NormalizeName(c.Name) != key {
			weights[i] = cs.weights[i]
		}
	}
	idx := s.Choice(weights)
	if idx < 0 {
		return Place{}, ErrNoDestination
	}
	return cs.scatter(s, cs.centers[idx]), nil
}

func (cs *CenterSampler) scatter(s *rng.Stream, c config.UrbanCenter) Place {
	sigma := c.Sigma
	if sigma <= 0 {
		sigma = defaultCenterSigma
	}
	return Place{
		Locality:   c.Name,
		Department: orUnknown(c.Department),
		Region:     orUnknown(c.Region),
		Lat:        c.Lat + s.Normal(0, sigma),
		Lon:        c.Lon + s.Normal(0, sigma),
	}
}

// Names implements Sampler.
func (cs *CenterSampler) Names() []string { return cs.names }

// Source implements Sampler.
func (cs *CenterSampler) Source() string { return SourceUrbanCenters }

func orUnknown(s string) string {
	if s == "" {
		return unknownArea
	}
	return s
}
