package bayesopt

import (
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/stat/distuv"
)

// lockedRand guards a shared *rand.Rand so the acquisition closure stays
// safe when multistart evaluates it from several workers at once.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func (l *lockedRand) NormFloat64() float64 {
	l.mu.Lock()
	v := l.rng.NormFloat64()
	l.mu.Unlock()
	return v
}

// ModelParams is one posterior draw (or the single MLE point estimate) of a
// Model's parameters, in the model's own theta/lambda/sigma2 shape.
type ModelParams struct {
	Theta  []float64
	Lambda [][]float64
	Sigma2 []float64
}

// AcquisitionFunc scores a candidate point; BO always maximizes it.
type AcquisitionFunc func(x []float64) (float64, error)

// BuildEI constructs the Expected Improvement acquisition function.
// When fitness is linear and unconstrained, the predictive posterior over
// f(y) is itself Gaussian (a weighted sum of independently modeled
// outputs) and EI has a closed form.
// Otherwise, with a nonlinear fitness or an output constraint, EI is estimated
// by Monte Carlo, drawing epsSamples joint output samples per evaluation.
// With more than one entry in params (Bayesian Inference mode), the
// acquisition value marginalizes: the returned value is the average EI
// across every posterior sample, consistent with a BI posterior predictive
// mixture. Points outside domain are gated to zero rather than evaluated.
func BuildEI(model Model, data *Dataset, fitness Fitness, constraint OutputConstraint, domain *Domain, params []ModelParams, epsSamples int, rng *rand.Rand) AcquisitionFunc {
	best := BestObserved(data, fitness, constraint)
	if math.IsInf(best, -1) {
		// Nothing observed is admissible yet. Fall back to the worst
		// observed fitness so every candidate still scores a finite,
		// comparable improvement.
		best = WorstObserved(data, fitness)
	}
	analytic := fitness.IsLinear() && constraint.Unconstrained
	lr := &lockedRand{rng: rng}

	return func(x []float64) (float64, error) {
		if domain != nil && !domain.InDomain(x) {
			return 0, nil
		}

		var total float64
		for _, p := range params {
			mean, variance, err := model.Predict(x, data, p.Theta, p.Lambda, p.Sigma2)
			if err != nil {
				return 0, err
			}
			var ei float64
			if analytic {
				ei = analyticEI(mean, variance, fitness.LinearWeights(), best)
			} else {
				ei = monteCarloEI(mean, variance, fitness, constraint, best, epsSamples, lr)
			}
			total += ei
		}
		return total / float64(len(params)), nil
	}
}

// analyticEI computes EI in closed form for a linear combination of
// independent Gaussian outputs: w.y ~ N(w.mean, sum_j w_j^2 * variance_j).
func analyticEI(mean, variance, weights []float64, best float64) float64 {
	var muY, varY float64
	for j, w := range weights {
		muY += w * mean[j]
		varY += w * w * variance[j]
	}
	return expectedImprovementGaussian(muY, varY, best)
}

func expectedImprovementGaussian(mu, variance, best float64) float64 {
	// A degenerate (zero-variance) predictive has no improvement to
	// expect, regardless of where its mean sits.
	if variance <= 0 {
		return 0
	}
	sigma := math.Sqrt(variance)
	z := (mu - best) / sigma
	n := distuv.UnitNormal
	return (mu-best)*n.CDF(z) + sigma*n.Prob(z)
}

// monteCarloEI draws epsSamples independent joint output samples from the
// per-output Gaussian posterior (outputs are fit independently, so no
// cross-output covariance to sample), applies fitness and the output
// constraint to each, and averages max(0, f(y)-best) over all draws.
// An inadmissible draw contributes zero improvement, matching the Y_max
// admissibility gate.
func monteCarloEI(mean, variance []float64, fitness Fitness, constraint OutputConstraint, best float64, epsSamples int, rng *lockedRand) float64 {
	if epsSamples <= 0 {
		epsSamples = 1
	}
	var total float64
	y := make([]float64, len(mean))
	for s := 0; s < epsSamples; s++ {
		for j := range mean {
			sigma := math.Sqrt(variance[j])
			y[j] = mean[j] + sigma*rng.NormFloat64()
		}
		if !constraint.Admissible(y) {
			continue
		}
		if v := fitness.Evaluate(y) - best; v > 0 {
			total += v
		}
	}
	return total / float64(epsSamples)
}
