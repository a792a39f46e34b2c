package bayesopt

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// BIOptions configures Bayesian (fully probabilistic) parameter inference
// via parallel NUTS chains.
type BIOptions struct {
	Chains       int  // number of independent chains; default 4
	Warmup       int  // adaptation iterations discarded; default 500
	Samples      int  // post-warmup samples kept per chain; default 500
	Thin         int  // keep every Thin-th post-warmup sample; default 1
	Parallel     bool // run chains concurrently; sample matrices are identical either way
	StepSize0    float64
	TargetAccept float64 // dual-averaging target; default 0.8
	BoxFallback  float64 // finite bound substituted for unbounded priors; default 1e3
	Seed         int64
	Logger       *zap.Logger
}

// PosteriorSamples holds the chain-major flattened posterior draws produced
// by FitBI: Samples[c][i] is the i-th kept (thinned) post-warmup draw of
// chain c, in the
// model's layout.Flatten order.
type PosteriorSamples struct {
	Layout  ParamLayout
	Samples [][][]float64 // [chain][draw][flat param]
}

// Flat returns every draw across every chain concatenated, chain-major.
func (s PosteriorSamples) Flat() [][]float64 {
	out := make([][]float64, 0, len(s.Samples)*len(s.Samples[0]))
	for _, chain := range s.Samples {
		out = append(out, chain...)
	}
	return out
}

// FitBI draws posterior samples over (theta, lambda, sigma2) via
// No-U-Turn Sampler chains, each started from an independent prior draw
// with its own RNG stream, following the Hoffman & Gelman dual-averaging
// NUTS algorithm on gonum primitives (floats, diff/fd). Parallelism is
// isolated to the chain level via errgroup, mirroring multistart's
// per-unit isolation so one diverging chain cannot abort the others.
func FitBI(m Model, data *Dataset, opts BIOptions) (*PosteriorSamples, error) {
	const op = "FitBI"
	chains := opts.Chains
	if chains <= 0 {
		chains = 4
	}
	warmup := opts.Warmup
	if warmup <= 0 {
		warmup = 500
	}
	samples := opts.Samples
	if samples <= 0 {
		samples = 500
	}
	thin := opts.Thin
	if thin <= 0 {
		thin = 1
	}
	targetAccept := opts.TargetAccept
	if targetAccept <= 0 {
		targetAccept = 0.8
	}
	boxFallback := opts.BoxFallback
	if boxFallback == 0 {
		boxFallback = 1e3
	}
	stepSize0 := opts.StepSize0
	if stepSize0 <= 0 {
		stepSize0 = 0.1
	}

	layout := m.Layout()
	priors := m.Priors()
	flatPriors := make([]Prior, 0, layout.FlatDim())
	flatPriors = append(flatPriors, priors.Theta...)
	for _, lp := range priors.Lambda {
		flatPriors = append(flatPriors, lp...)
	}
	flatPriors = append(flatPriors, priors.Sigma2...)
	if len(flatPriors) != layout.FlatDim() {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("flattened prior count %d does not match layout dimension %d", len(flatPriors), layout.FlatDim()))
	}
	lb, ub := boxFromPriors(flatPriors, boxFallback)
	box := Constraints{LB: lb, UB: ub}

	// The density is evaluated on the box-clamped point so the sampler's
	// finite-difference gradients stay finite when a probe point steps
	// marginally past a boundary.
	logDensity := func(p []float64) float64 {
		ll, err := FlatLogPosterior(m, data, box.clamp(p))
		if err != nil {
			return math.Inf(-1)
		}
		return ll
	}

	// Per-chain failures are contained: each worker records its outcome in
	// its own slot, and only the aggregate (every chain failing) surfaces
	// as SamplingFailed, mirroring multistart's isolation contract.
	results := make([][][]float64, chains)
	chainErrs := make([]error, chains)
	var failures atomic.Int64

	g := new(errgroup.Group)
	if !opts.Parallel {
		g.SetLimit(1)
	}
	for c := 0; c < chains; c++ {
		c := c
		g.Go(func() error {
			rng := rand.New(rand.NewSource(opts.Seed + int64(c)*7919 + 1))
			init := box.clamp(SampleVector(flatPriors, rng))
			sampler := nutsSampler{
				logDensity:   logDensity,
				box:          box,
				targetAccept: targetAccept,
				maxTreeDepth: 10,
			}
			draws, err := sampler.run(init, warmup, samples, thin, stepSize0, rng)
			if err != nil {
				failures.Add(1)
				chainErrs[c] = fmt.Errorf("chain %d: %w", c, err)
				return nil
			}
			results[c] = draws
			return nil
		})
	}
	_ = g.Wait()

	if failures.Load() == int64(chains) {
		return nil, newError(KindSamplingFailed, op, errors.Join(chainErrs...))
	}

	kept := make([][][]float64, 0, chains)
	for c := 0; c < chains; c++ {
		if chainErrs[c] == nil {
			kept = append(kept, results[c])
		}
	}

	if logger := opts.Logger; logger != nil {
		logger.Debug("bi fit complete",
			zap.Int("chains", chains),
			zap.Int("failed_chains", int(failures.Load())),
			zap.Int("samples_per_chain", len(kept[0])))
	}

	return &PosteriorSamples{Layout: layout, Samples: kept}, nil
}

// nutsSampler implements a single No-U-Turn Sampler chain with dual-averaging
// step-size adaptation during warmup, over a box-constrained parameter space
// via momentum reflection at the boundary (the standard treatment of bounds
// in HMC/NUTS, since the underlying algorithm assumes an unconstrained R^n).
type nutsSampler struct {
	logDensity   func(p []float64) float64
	box          Constraints
	targetAccept float64
	maxTreeDepth int
}

func (s *nutsSampler) gradLogDensity(p []float64) []float64 {
	grad := make([]float64, len(p))
	fd.Gradient(grad, s.logDensity, p, nil)
	return grad
}

// reflect clamps q into the box, flipping the corresponding momentum
// component each time a boundary is crossed, so leapfrog trajectories stay
// feasible without distorting the target density away from the boundary.
// A diverged (non-finite) coordinate is pinned to the nearest bound with
// its momentum zeroed; the divergence check in buildTree then terminates
// the trajectory.
func (s *nutsSampler) reflect(q, p []float64) {
	for i := range q {
		if math.IsNaN(q[i]) || math.IsInf(q[i], 0) {
			if q[i] > 0 {
				q[i] = s.box.UB[i]
			} else {
				q[i] = s.box.LB[i]
			}
			p[i] = 0
			continue
		}
		for q[i] < s.box.LB[i] || q[i] > s.box.UB[i] {
			if q[i] < s.box.LB[i] {
				q[i] = 2*s.box.LB[i] - q[i]
				p[i] = -p[i]
			}
			if q[i] > s.box.UB[i] {
				q[i] = 2*s.box.UB[i] - q[i]
				p[i] = -p[i]
			}
		}
	}
}

func (s *nutsSampler) leapfrog(q, p []float64, eps float64) ([]float64, []float64) {
	n := len(q)
	grad := s.gradLogDensity(q)
	pHalf := make([]float64, n)
	for i := range p {
		pHalf[i] = p[i] + 0.5*eps*grad[i]
	}
	qNew := make([]float64, n)
	for i := range q {
		qNew[i] = q[i] + eps*pHalf[i]
	}
	s.reflect(qNew, pHalf)
	gradNew := s.gradLogDensity(qNew)
	pNew := make([]float64, n)
	for i := range pHalf {
		pNew[i] = pHalf[i] + 0.5*eps*gradNew[i]
	}
	return qNew, pNew
}

func jointEnergy(logDensity float64, p []float64) float64 {
	return logDensity - 0.5*floats.Dot(p, p)
}

// run draws warmup+samples*thin total leapfrog-chain states, adapting eps
// via dual averaging over the warmup phase, and returns every thin-th
// post-warmup draw.
func (s *nutsSampler) run(init []float64, warmup, nSamples, thin int, eps0 float64, rng *rand.Rand) ([][]float64, error) {
	q := append([]float64(nil), init...)
	eps := eps0

	// Dual-averaging state (Hoffman & Gelman, Algorithm 6).
	mu := math.Log(10 * eps0)
	logEpsBar := 0.0
	hBar := 0.0
	gamma, t0, kappa := 0.05, 10.0, 0.75

	draws := make([][]float64, 0, nSamples)
	total := warmup + nSamples*thin

	for it := 1; it <= total; it++ {
		p0 := make([]float64, len(q))
		for i := range p0 {
			p0[i] = rng.NormFloat64()
		}
		logDensity0 := s.logDensity(q)
		if math.IsInf(logDensity0, -1) {
			return nil, fmt.Errorf("initial state has -Inf log density")
		}

		qNew, accept, err := s.nutsTransition(q, p0, logDensity0, eps, rng)
		if err != nil {
			return nil, err
		}
		q = qNew

		if it <= warmup {
			eta := 1.0 / (float64(it) + t0)
			hBar = (1-eta)*hBar + eta*(s.targetAccept-accept)
			logEps := mu - math.Sqrt(float64(it))/gamma*hBar
			x := float64(it)
			logEpsBarNew := math.Pow(x, -kappa)*logEps + (1-math.Pow(x, -kappa))*logEpsBar
			logEpsBar = logEpsBarNew
			eps = math.Exp(logEps)
			if it == warmup {
				eps = math.Exp(logEpsBar)
			}
		} else if (it-warmup)%thin == 0 {
			draws = append(draws, append([]float64(nil), q...))
		}
	}
	return draws, nil
}

// nutsTransition runs one simplified NUTS doubling trajectory from (q0, p0)
// using slice sampling over the joint energy, returning the new state and
// the trajectory's mean Metropolis acceptance probability (used by dual
// averaging).
func (s *nutsSampler) nutsTransition(q0, p0 []float64, logDensity0 float64, eps float64, rng *rand.Rand) ([]float64, float64, error) {
	logU := jointEnergy(logDensity0, p0) - rng.ExpFloat64()

	qMinus := append([]float64(nil), q0...)
	qPlus := append([]float64(nil), q0...)
	pMinus := append([]float64(nil), p0...)
	pPlus := append([]float64(nil), p0...)

	qSample := append([]float64(nil), q0...)
	n := 1
	sContinue := true
	var sumAccept float64
	var nAccept int

	for depth := 0; depth < s.maxTreeDepth && sContinue; depth++ {
		direction := 1.0
		if rng.Float64() < 0.5 {
			direction = -1.0
		}

		var qPrime []float64
		var nPrime int
		var sPrime bool
		var alpha float64
		var nAlpha int

		if direction < 0 {
			qMinus, pMinus, _, _, qPrime, nPrime, sPrime, alpha, nAlpha = s.buildTree(qMinus, pMinus, logU, -1, depth, eps, rng)
		} else {
			_, _, qPlus, pPlus, qPrime, nPrime, sPrime, alpha, nAlpha = s.buildTree(qPlus, pPlus, logU, 1, depth, eps, rng)
		}

		if sPrime && rng.Float64() < math.Min(1, float64(nPrime)/float64(n)) {
			qSample = qPrime
		}
		n += nPrime
		sumAccept += alpha
		nAccept += nAlpha

		sContinue = sPrime && noUTurn(qMinus, qPlus, pMinus, pPlus)
	}

	meanAccept := 0.0
	if nAccept > 0 {
		meanAccept = sumAccept / float64(nAccept)
	}
	return qSample, meanAccept, nil
}

func noUTurn(qMinus, qPlus, pMinus, pPlus []float64) bool {
	delta := make([]float64, len(qMinus))
	for i := range delta {
		delta[i] = qPlus[i] - qMinus[i]
	}
	return floats.Dot(delta, pMinus) >= 0 && floats.Dot(delta, pPlus) >= 0
}

// buildTree recursively builds a balanced binary trajectory tree of the
// given depth (the recursive formulation of Hoffman & Gelman, Algorithm 3),
// returning the tree's boundary states, a candidate sample, its size, the
// continuation criterion, and the accumulated Metropolis statistics used by
// dual averaging.
func (s *nutsSampler) buildTree(q, p []float64, logU float64, direction float64, depth int, eps float64, rng *rand.Rand) (qMinus, pMinus, qPlus, pPlus, qPrime []float64, nPrime int, sPrime bool, alpha float64, nAlpha int) {
	const deltaMax = 1000.0

	if depth == 0 {
		qNew, pNew := s.leapfrog(q, p, direction*eps)
		logDensityNew := s.logDensity(qNew)
		energyNew := jointEnergy(logDensityNew, pNew)
		nPrime = 0
		if logU <= energyNew {
			nPrime = 1
		}
		sPrime = logU < deltaMax+energyNew
		a := math.Exp(math.Min(0, energyNew-logU)) // acceptance relative to the slice threshold's originating energy
		if math.IsNaN(a) {
			a = 0
		}
		return qNew, pNew, qNew, pNew, qNew, nPrime, sPrime, math.Min(1, a), 1
	}

	qMinus, pMinus, qPlus, pPlus, qPrime, nPrime, sPrime, alpha, nAlpha = s.buildTree(q, p, logU, direction, depth-1, eps, rng)
	if sPrime {
		var qMinus2, pMinus2, qPlus2, pPlus2, qPrime2 []float64
		var nPrime2 int
		var sPrime2 bool
		var alpha2 float64
		var nAlpha2 int

		if direction < 0 {
			qMinus2, pMinus2, qPlus2, pPlus2, qPrime2, nPrime2, sPrime2, alpha2, nAlpha2 = s.buildTree(qMinus, pMinus, logU, direction, depth-1, eps, rng)
			qMinus, pMinus = qMinus2, pMinus2
		} else {
			qMinus2, pMinus2, qPlus2, pPlus2, qPrime2, nPrime2, sPrime2, alpha2, nAlpha2 = s.buildTree(qPlus, pPlus, logU, direction, depth-1, eps, rng)
			qPlus, pPlus = qPlus2, pPlus2
		}

		total := nPrime + nPrime2
		if total > 0 && rng.Float64() < float64(nPrime2)/float64(total) {
			qPrime = qPrime2
		}
		alpha += alpha2
		nAlpha += nAlpha2
		sPrime = sPrime2 && noUTurn(qMinus, qPlus, pMinus, pPlus)
		nPrime = total
	}
	return qMinus, pMinus, qPlus, pPlus, qPrime, nPrime, sPrime, alpha, nAlpha
}
