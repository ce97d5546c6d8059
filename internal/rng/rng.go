// Package rng derives independent, reproducible random streams from a single seed.
//
// Every entity (a user, a locality, a selection step) draws from its own stream,
// keyed by a name. Streams do not share state, so the values one entity sees do not
// depend on how many draws other entities made or in which order they ran.
package rng

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/zeebo/blake3"
	"gonum.org/v1/gonum/stat/distuv"
)

const keyContext = "mobility-cli 2024 rng stream key"

// Source is a seeded factory of named streams.
type Source struct {
	seed int64
	key  [32]byte
}

// New creates a Source for the given seed.
func New(seed int64) *Source {
	var material [8]byte
	binary.LittleEndian.PutUint64(material[:], uint64(seed))

	s := &Source{seed: seed}
	blake3.DeriveKey(keyContext, material[:], s.key[:])
	return s
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Stream returns the stream named by parts. The same seed and parts always
// produce the same sequence.
func (s *Source) Stream(parts ...string) *Stream {
	// NewKeyed only fails on a key that is not 32 bytes.
	h, err := blake3.NewKeyed(s.key[:])
	if err != nil {
		panic("rng: blake3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = h.WriteString(strings.Join(parts, "/"))
	sum := h.Sum(nil)

	pcg := rand.NewPCG(binary.LittleEndian.Uint64(sum[0:8]), binary.LittleEndian.Uint64(sum[8:16]))
	return &Stream{Rand: rand.New(pcg), src: pcg}
}

// Stream is a single deterministic random sequence.
type Stream struct {
	*rand.Rand
	src rand.Source
}

// Src exposes the underlying source for gonum distributions.
func (s *Stream) Src() rand.Source {
	return s.src
}

// Uniform draws from U[a, b).
func (s *Stream) Uniform(a, b float64) float64 {
	return a + (b-a)*s.Float64()
}

// Normal draws from N(mu, sigma).
func (s *Stream) Normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// Poisson draws a count with mean lambda.
func (s *Stream) Poisson(lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	return int(distuv.Poisson{Lambda: lambda, Src: s.src}.Rand())
}

// Gamma draws from a Gamma distribution parameterized by shape and scale.
func (s *Stream) Gamma(shape, scale float64) float64 {
	return distuv.Gamma{Alpha: shape, Beta: 1 / scale, Src: s.src}.Rand()
}

// Exponential draws from an Exponential distribution with the given mean.
func (s *Stream) Exponential(mean float64) float64 {
	if mean <= 0 {
		return 0
	}
	return distuv.Exponential{Rate: 1 / mean, Src: s.src}.Rand()
}

// Bernoulli returns true with probability p.
func (s *Stream) Bernoulli(p float64) bool {
	return s.Float64() < p
}

// Choice draws an index with probability proportional to weights using a
// cumulative-distribution scan. It returns -1 when no weight is positive.
func (s *Stream) Choice(weights []float64) int {
	var total float64
	for _, w := range weights {
		if w > 0 {
			total += w
		}
	}
	if total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
		return -1
	}

	u := s.Float64() * total
	var cum float64
	last := -1
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		cum += w
		last = i
		if u < cum {
			return i
		}
	}
	return last
}

// Categorical draws an index using gonum's categorical sampler.
func (s *Stream) Categorical(weights []float64) int {
	return int(distuv.NewCategorical(weights, s.src).Rand())
}

// IntBetween draws an integer uniformly from [lo, hi).
func (s *Stream) IntBetween(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.IntN(hi-lo)
}
