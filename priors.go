package bayesopt

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Prior is a univariate distribution supporting sampling and log-density
// evaluation, plus the bounds of its support (used to derive box
// constraints for MLE). Multivariate priors over a vector (length-scales,
// per-output noise) are represented as a slice of Priors applied
// element-wise. Sampling draws from the caller's explicit *rand.Rand;
// log-densities come from gonum's distuv, which needs no random source for
// evaluation.
type Prior interface {
	Sample(rng *rand.Rand) float64
	LogPDF(v float64) float64
	Min() float64
	Max() float64
}

// NormalPrior is a Normal(mu, sigma) prior, unbounded support.
type NormalPrior struct {
	Mu, Sigma float64
}

func (p NormalPrior) Sample(rng *rand.Rand) float64 {
	return p.Mu + p.Sigma*rng.NormFloat64()
}

func (p NormalPrior) LogPDF(v float64) float64 {
	return distuv.Normal{Mu: p.Mu, Sigma: p.Sigma}.LogProb(v)
}
func (p NormalPrior) Min() float64 { return math.Inf(-1) }
func (p NormalPrior) Max() float64 { return math.Inf(1) }

// LogNormalPrior is a prior over strictly positive values (noise
// variances, length scales) whose log is Normal(mu, sigma).
type LogNormalPrior struct {
	Mu, Sigma float64
}

func (p LogNormalPrior) Sample(rng *rand.Rand) float64 {
	return math.Exp(p.Mu + p.Sigma*rng.NormFloat64())
}

func (p LogNormalPrior) LogPDF(v float64) float64 {
	return distuv.LogNormal{Mu: p.Mu, Sigma: p.Sigma}.LogProb(v)
}
func (p LogNormalPrior) Min() float64 { return 0 }
func (p LogNormalPrior) Max() float64 { return math.Inf(1) }

// UniformPrior is a Uniform(min, max) prior, used chiefly to derive box
// constraints directly (Min/Max already are the box).
type UniformPrior struct {
	LowerBound, UpperBound float64
}

func (p UniformPrior) Sample(rng *rand.Rand) float64 {
	return p.LowerBound + rng.Float64()*(p.UpperBound-p.LowerBound)
}

func (p UniformPrior) LogPDF(v float64) float64 {
	return distuv.Uniform{Min: p.LowerBound, Max: p.UpperBound}.LogProb(v)
}
func (p UniformPrior) Min() float64 { return p.LowerBound }
func (p UniformPrior) Max() float64 { return p.UpperBound }

// HalfNormalPrior is a prior over non-negative values, the positive half of
// Normal(0, sigma); a common default noise-variance prior when only scale
// matters.
type HalfNormalPrior struct {
	Sigma float64
}

func (p HalfNormalPrior) Sample(rng *rand.Rand) float64 {
	return math.Abs(p.Sigma * rng.NormFloat64())
}

func (p HalfNormalPrior) LogPDF(v float64) float64 {
	if v < 0 {
		return math.Inf(-1)
	}
	return math.Log(2) + distuv.Normal{Mu: 0, Sigma: p.Sigma}.LogProb(v)
}
func (p HalfNormalPrior) Min() float64 { return 0 }
func (p HalfNormalPrior) Max() float64 { return math.Inf(1) }

// SampleVector draws one sample per prior, in order.
func SampleVector(priors []Prior, rng *rand.Rand) []float64 {
	out := make([]float64, len(priors))
	for i, p := range priors {
		out[i] = p.Sample(rng)
	}
	return out
}

// LogPDFVector sums the element-wise log-density of v under priors.
func LogPDFVector(priors []Prior, v []float64) float64 {
	var sum float64
	for i, p := range priors {
		sum += p.LogPDF(v[i])
	}
	return sum
}

// boxFromPriors derives [lb, ub] box constraints for MLE from a slice of
// priors' supports. Unbounded components are clamped to a wide finite
// range so downstream optimizers that require finite bounds stay usable.
func boxFromPriors(priors []Prior, wideFallback float64) (lb, ub []float64) {
	lb = make([]float64, len(priors))
	ub = make([]float64, len(priors))
	for i, p := range priors {
		lo, hi := p.Min(), p.Max()
		if math.IsInf(lo, -1) {
			lo = -wideFallback
		}
		if math.IsInf(hi, 1) {
			hi = wideFallback
		}
		lb[i], ub[i] = lo, hi
	}
	return lb, ub
}
