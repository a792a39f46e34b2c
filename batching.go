package bayesopt

import (
	"fmt"
	"math/rand"
	"sync"
)

// AcqMaximizer finds argmax_{x in domain} acq(x) via multistart local
// optimization of the negated acquisition function, reusing the same
// OptimizerBackend facade and start-generation machinery as model fitting.
type AcqMaximizer struct {
	Backend  OptimizerBackend
	Optimize OptimizeOptions
	RNG      *rand.Rand
}

// Maximize runs multistart over domain's box, rejecting (via the
// acquisition function's own domain gate) anything outside a general
// Predicate, and returns the best point and its acquisition value.
func (m AcqMaximizer) Maximize(acq AcquisitionFunc, domain *Domain) ([]float64, float64, error) {
	const op = "AcqMaximizer.Maximize"
	box := Constraints{LB: domain.LB, UB: domain.UB}

	backend := m.Backend
	if backend == nil {
		backend = NelderMeadBackend{}
	}
	rng := m.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	optOpts := m.Optimize.withDefaults(domain.Dim())
	if optOpts.RNG == nil {
		optOpts.RNG = rng
	}

	starts := generateStarts(box, optOpts.Starts, rng)
	for i, s := range starts {
		starts[i] = domain.ProjectDiscrete(s)
	}

	var errMu sync.Mutex
	var evalErr error
	negAcq := func(x []float64) float64 {
		if domain.Discrete != nil {
			x = domain.ProjectDiscrete(x)
		}
		v, err := acq(x)
		if err != nil {
			errMu.Lock()
			if evalErr == nil {
				evalErr = err
			}
			errMu.Unlock()
			return 0
		}
		return -v
	}

	xmin, fmin, err := multistart(backend, negAcq, box, starts, optOpts)
	if err != nil {
		return nil, 0, newError(KindOptimizationFailed, op, err)
	}
	if evalErr != nil {
		return nil, 0, newError(KindEvaluationFailed, op, evalErr)
	}
	return domain.ProjectDiscrete(xmin), -fmin, nil
}

// BatchingMaximizer picks B points per BO iteration via sequential
// (kriging-believer) batching: after each pick, the point is appended to a
// private fantasy copy of the dataset with its predictive mean standing in
// for the unobserved outcome, the acquisition function is rebuilt against
// the fantasized data, and the next point is chosen. The caller's visible
// Dataset is never touched; only Clone's private copy accumulates fantasy
// observations.
type BatchingMaximizer struct {
	Inner      AcqMaximizer
	Model      Model
	Fitness    Fitness
	Constraint OutputConstraint
	Params     []ModelParams
	EpsSamples int
	RNG        *rand.Rand
}

// Batch returns B picks and their acquisition values at the time each was
// selected.
func (b BatchingMaximizer) Batch(data *Dataset, domain *Domain, size int) ([][]float64, []float64, error) {
	const op = "BatchingMaximizer.Batch"
	if size <= 0 {
		return nil, nil, newError(KindInvalidDomain, op, fmt.Errorf("batch size must be positive, got %d", size))
	}

	fantasy := data.Clone()
	picks := make([][]float64, 0, size)
	values := make([]float64, 0, size)

	for i := 0; i < size; i++ {
		acq := BuildEI(b.Model, fantasy, b.Fitness, b.Constraint, domain, b.Params, b.EpsSamples, b.RNG)
		x, v, err := b.Inner.Maximize(acq, domain)
		if err != nil {
			return nil, nil, err
		}

		yFantasy, err := b.predictFantasy(x, fantasy)
		if err != nil {
			return nil, nil, err
		}
		if err := fantasy.Append(x, yFantasy); err != nil {
			return nil, nil, newError(KindEvaluationFailed, op, err)
		}

		picks = append(picks, x)
		values = append(values, v)
	}
	return picks, values, nil
}

// predictFantasy averages the predictive mean across every posterior
// sample in Params (a single entry under MLE), the believer's stand-in
// observation for x.
func (b BatchingMaximizer) predictFantasy(x []float64, fantasy *Dataset) ([]float64, error) {
	outputs := b.Model.NumOutputs()
	mean := make([]float64, outputs)
	for _, p := range b.Params {
		m, _, err := b.Model.Predict(x, fantasy, p.Theta, p.Lambda, p.Sigma2)
		if err != nil {
			return nil, err
		}
		for j := range mean {
			mean[j] += m[j] / float64(len(b.Params))
		}
	}
	return mean, nil
}
