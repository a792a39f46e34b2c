package bayesopt

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// MLEOptions configures maximum-likelihood parameter inference.
type MLEOptions struct {
	Backend     OptimizerBackend // defaults to GradientBoxBackend if nil
	BoxFallback float64          // finite bound substituted for unbounded priors; default 1e3
	Optimize    OptimizeOptions  // Starts<=0 derives from dimension
	RNG         *rand.Rand
	Logger      *zap.Logger
}

// FitMLE finds theta-hat = argmax_p JointLogLikelihood(m, data, p) by
// multistart local optimization of the negated objective over a box
// derived from the priors' supports, so the point estimate stays inside
// every prior's support and is regularized by the prior terms. Any
// OptimizerBackend can serve as the local method.
func FitMLE(m Model, data *Dataset, opts MLEOptions) (theta []float64, lambda [][]float64, sigma2 []float64, err error) {
	const op = "FitMLE"
	layout := m.Layout()
	priors := m.Priors()

	flatPriors := make([]Prior, 0, layout.FlatDim())
	flatPriors = append(flatPriors, priors.Theta...)
	for _, lp := range priors.Lambda {
		flatPriors = append(flatPriors, lp...)
	}
	flatPriors = append(flatPriors, priors.Sigma2...)

	if len(flatPriors) != layout.FlatDim() {
		return nil, nil, nil, newError(KindInvalidModel, op, fmt.Errorf("flattened prior count %d does not match layout dimension %d", len(flatPriors), layout.FlatDim()))
	}

	boxFallback := opts.BoxFallback
	if boxFallback == 0 {
		boxFallback = 1e3
	}
	lb, ub := boxFromPriors(flatPriors, boxFallback)
	box := Constraints{LB: lb, UB: ub}

	backend := opts.Backend
	if backend == nil {
		backend = GradientBoxBackend{}
	}
	rng := opts.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	optOpts := opts.Optimize.withDefaults(len(lb))
	if optOpts.RNG == nil {
		optOpts.RNG = rng
	}

	starts := generateStarts(box, optOpts.Starts, rng)

	negLL := func(p []float64) float64 {
		ll, llErr := FlatLogPosterior(m, data, p)
		if llErr != nil || math.IsInf(ll, -1) || math.IsNaN(ll) {
			return math.Inf(1)
		}
		return -ll
	}

	pHat, fHat, mErr := multistart(backend, negLL, box, starts, optOpts)
	if mErr != nil {
		return nil, nil, nil, newError(KindOptimizationFailed, op, mErr)
	}

	if logger := opts.Logger; logger != nil {
		logger.Debug("mle fit complete", zap.Float64("neg_log_likelihood", fHat), zap.Int("starts", len(starts)))
	}

	theta, lambda, sigma2 = layout.Unflatten(pHat)
	return theta, lambda, sigma2, nil
}
