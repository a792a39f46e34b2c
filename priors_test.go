package bayesopt

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriorSupports(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	cases := []struct {
		name  string
		prior Prior
	}{
		{"normal", NormalPrior{Mu: 1, Sigma: 2}},
		{"lognormal", LogNormalPrior{Mu: 0, Sigma: 1}},
		{"uniform", UniformPrior{LowerBound: -3, UpperBound: 3}},
		{"halfnormal", HalfNormalPrior{Sigma: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				v := tc.prior.Sample(rng)
				assert.GreaterOrEqual(t, v, tc.prior.Min())
				assert.LessOrEqual(t, v, tc.prior.Max())
				assert.False(t, math.IsNaN(tc.prior.LogPDF(v)))
			}
		})
	}
}

func TestHalfNormalLogPDF(t *testing.T) {
	p := HalfNormalPrior{Sigma: 1}
	assert.True(t, math.IsInf(p.LogPDF(-0.5), -1), "negative values have zero density")

	// Density at zero is twice the standard normal's.
	want := math.Log(2) + math.Log(1/math.Sqrt(2*math.Pi))
	assert.InDelta(t, want, p.LogPDF(0), 1e-12)
}

func TestSampleAndLogPDFVector(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	priors := []Prior{UniformPrior{0, 1}, UniformPrior{2, 3}}

	v := SampleVector(priors, rng)
	assert.Len(t, v, 2)
	assert.GreaterOrEqual(t, v[0], 0.0)
	assert.LessOrEqual(t, v[1], 3.0)

	// Uniform log-densities sum to -log(width) each, 0 here.
	assert.InDelta(t, 0.0, LogPDFVector(priors, v), 1e-12)
}

func TestBoxFromPriors(t *testing.T) {
	priors := []Prior{
		NormalPrior{Mu: 0, Sigma: 1},
		UniformPrior{LowerBound: -2, UpperBound: 5},
		LogNormalPrior{Mu: 0, Sigma: 1},
	}
	lb, ub := boxFromPriors(priors, 100)
	assert.Equal(t, []float64{-100, -2, 0}, lb)
	assert.Equal(t, []float64{100, 5, 100}, ub)
}

func TestSamplingIsSeedDeterministic(t *testing.T) {
	p := NormalPrior{Mu: 0, Sigma: 1}
	a := p.Sample(rand.New(rand.NewSource(11)))
	b := p.Sample(rand.New(rand.NewSource(11)))
	assert.Equal(t, a, b)
}
