package bayesopt

import (
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ObjectiveFunc is a scalar function to minimize over a box [LB, UB]. Every
// optimizer backend receives the same signature, regardless of whether it
// is a model-fitting objective (negative joint log-likelihood) or a
// negated acquisition function.
type ObjectiveFunc func(x []float64) float64

// Constraints bounds a multistart optimization run to a box. Both slices
// must have the same length, the problem dimension.
type Constraints struct {
	LB []float64
	UB []float64
}

func (c Constraints) clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(c.LB[i], math.Min(v, c.UB[i]))
	}
	return out
}

// OptimizeOptions configures a single multistart run.
type OptimizeOptions struct {
	Starts      int // number of restarts; if <= 0, derived from dimension
	MaxIter     int
	AbsTol      float64
	RelTol      float64
	Parallelism int
	RNG         *rand.Rand
}

// DefaultOptimizeOptions scales the restart count as 5 + 5*sqrt(n), caps
// each run at 500 iterations and sets 1e-8 absolute and relative function
// tolerances.
func DefaultOptimizeOptions(dim int) OptimizeOptions {
	return OptimizeOptions{
		Starts:      5 + int(5*math.Sqrt(float64(dim))),
		MaxIter:     500,
		AbsTol:      1e-8,
		RelTol:      1e-8,
		Parallelism: 1,
	}
}

// withDefaults fills every unset field from DefaultOptimizeOptions(dim),
// leaving caller-set fields alone.
func (o OptimizeOptions) withDefaults(dim int) OptimizeOptions {
	d := DefaultOptimizeOptions(dim)
	if o.Starts <= 0 {
		o.Starts = d.Starts
	}
	if o.MaxIter <= 0 {
		o.MaxIter = d.MaxIter
	}
	if o.AbsTol == 0 {
		o.AbsTol = d.AbsTol
	}
	if o.RelTol == 0 {
		o.RelTol = d.RelTol
	}
	if o.Parallelism <= 0 {
		o.Parallelism = d.Parallelism
	}
	return o
}

// OptimizerBackend is the facade every local-search method implements:
// gradient-based, interior-point, derivative-free, or evolutionary. All of
// them minimize obj over box, starting from x0, and report their own
// failure without panicking so multistart can isolate it.
type OptimizerBackend interface {
	Name() string
	Minimize(obj ObjectiveFunc, box Constraints, x0 []float64, opts OptimizeOptions) (xmin []float64, fmin float64, err error)
}

// multistartResult is one restart's outcome.
type multistartResult struct {
	x   []float64
	f   float64
	err error
}

// multistart runs backend.Minimize from several starting points in
// parallel (bounded by opts.Parallelism), isolating per-start failures
// behind an atomic counter: if every start fails, the whole call fails; if
// at least one succeeds, the best of the survivors wins, ties broken by
// the lowest start index.
func multistart(backend OptimizerBackend, obj ObjectiveFunc, box Constraints, starts [][]float64, opts OptimizeOptions) ([]float64, float64, error) {
	const op = "multistart"
	if len(starts) == 0 {
		return nil, 0, newError(KindOptimizationFailed, op, fmt.Errorf("no starting points supplied"))
	}

	results := make([]multistartResult, len(starts))
	var failures atomic.Int64

	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(parallelism)
	for i, start := range starts {
		i, start := i, start
		g.Go(func() error {
			x0 := box.clamp(start)
			xmin, fmin, err := backend.Minimize(obj, box, x0, opts)
			if err != nil {
				failures.Add(1)
				results[i] = multistartResult{err: err}
				return nil
			}
			results[i] = multistartResult{x: xmin, f: fmin}
			return nil
		})
	}
	_ = g.Wait() // backend.Minimize never returns a non-nil error from Go itself; failures are recorded per-result

	if failures.Load() == int64(len(starts)) {
		return nil, 0, newError(KindOptimizationFailed, op, fmt.Errorf("all %d restarts failed", len(starts)))
	}

	bestIdx := -1
	for i, r := range results {
		if r.err != nil {
			continue
		}
		if bestIdx == -1 || r.f < results[bestIdx].f {
			bestIdx = i
		}
	}
	return results[bestIdx].x, results[bestIdx].f, nil
}

// LatinHypercubeSample draws n stratified samples in box using rng:
// per dimension, one point per stratum, strata order shuffled.
func LatinHypercubeSample(box Constraints, n int, rng *rand.Rand) [][]float64 {
	dim := len(box.LB)
	samples := make([][]float64, n)
	for j := 0; j < n; j++ {
		samples[j] = make([]float64, dim)
	}
	for i := 0; i < dim; i++ {
		strata := make([]float64, n)
		for j := 0; j < n; j++ {
			strata[j] = (float64(j) + rng.Float64()) / float64(n)
		}
		rng.Shuffle(n, func(a, b int) { strata[a], strata[b] = strata[b], strata[a] })
		lo, hi := box.LB[i], box.UB[i]
		for j := 0; j < n; j++ {
			samples[j][i] = lo + strata[j]*(hi-lo)
		}
	}
	return samples
}

// generateStarts produces n starting points in box: Latin Hypercube
// stratification when there are enough points for strata to mean anything,
// a plain uniform draw for a single start.
func generateStarts(box Constraints, n int, rng *rand.Rand) [][]float64 {
	if n >= 2 {
		return LatinHypercubeSample(box, n, rng)
	}
	return uniformStarts(box, n, rng)
}

// uniformStarts draws n uniform random points in box, used by
// generateStarts when fewer than two starts are requested.
func uniformStarts(box Constraints, n int, rng *rand.Rand) [][]float64 {
	dim := len(box.LB)
	out := make([][]float64, n)
	for i := 0; i < n; i++ {
		x := make([]float64, dim)
		for j := 0; j < dim; j++ {
			x[j] = box.LB[j] + rng.Float64()*(box.UB[j]-box.LB[j])
		}
		out[i] = x
	}
	return out
}

// gonumSettings builds an optimize.Settings from OptimizeOptions, shared by
// the gradient and Nelder-Mead backends.
func gonumSettings(opts OptimizeOptions) *optimize.Settings {
	return &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   opts.AbsTol,
			Relative:   opts.RelTol,
			Iterations: opts.MaxIter,
		},
		MajorIterations: opts.MaxIter,
	}
}

// boxedProblem wraps obj so gonum's unconstrained methods stay inside box:
// every probe point is clamped before evaluation.
func boxedProblem(obj ObjectiveFunc, box Constraints) optimize.Problem {
	return optimize.Problem{
		Func: func(x []float64) float64 {
			return obj(box.clamp(x))
		},
	}
}

// GradientBoxBackend is the L-BFGS backend, for models whose objective is
// smooth enough for quasi-Newton descent (MLE over a log-likelihood with
// informative priors). The gradient is a central finite-difference
// approximation of the box-clamped objective.
type GradientBoxBackend struct{}

func (GradientBoxBackend) Name() string { return "lbfgs" }

func (GradientBoxBackend) Minimize(obj ObjectiveFunc, box Constraints, x0 []float64, opts OptimizeOptions) ([]float64, float64, error) {
	const op = "GradientBoxBackend.Minimize"
	problem := boxedProblem(obj, box)
	problem.Grad = func(grad, x []float64) {
		fd.Gradient(grad, problem.Func, x, nil)
	}
	result, err := optimize.Minimize(problem, x0, gonumSettings(opts), &optimize.LBFGS{})
	if err != nil {
		return nil, 0, newError(KindOptimizationFailed, op, err)
	}
	return box.clamp(result.X), result.F, nil
}

// NelderMeadBackend is the derivative-free backend for non-smooth or noisy
// objectives (gonum's optimize.NelderMead with default coefficients).
type NelderMeadBackend struct{}

func (NelderMeadBackend) Name() string { return "nelder-mead" }

func (NelderMeadBackend) Minimize(obj ObjectiveFunc, box Constraints, x0 []float64, opts OptimizeOptions) ([]float64, float64, error) {
	const op = "NelderMeadBackend.Minimize"
	problem := boxedProblem(obj, box)
	result, err := optimize.Minimize(problem, x0, gonumSettings(opts), &optimize.NelderMead{})
	if err != nil {
		return nil, 0, newError(KindOptimizationFailed, op, err)
	}
	return box.clamp(result.X), result.F, nil
}

// InteriorPointNewtonBackend minimizes obj subject to box constraints via
// gonum's Newton method applied to a log-barrier-penalized objective,
// requiring strictly interior starting points (see domain.go's
// Interiorize). Gradient and Hessian are finite-difference approximations
// of the penalized objective. The barrier weight stays at BarrierWeight for
// the whole run; it is not decreased between iterations.
type InteriorPointNewtonBackend struct {
	BarrierWeight float64 // initial mu; defaults to 1.0 if zero
}

func (InteriorPointNewtonBackend) Name() string { return "interior-point-newton" }

func (b InteriorPointNewtonBackend) Minimize(obj ObjectiveFunc, box Constraints, x0 []float64, opts OptimizeOptions) ([]float64, float64, error) {
	const op = "InteriorPointNewtonBackend.Minimize"
	mu := b.BarrierWeight
	if mu == 0 {
		mu = 1.0
	}
	barrier := func(x []float64) float64 {
		var penalty float64
		for i, v := range x {
			lo, hi := box.LB[i], box.UB[i]
			if v <= lo || v >= hi {
				return math.Inf(1)
			}
			penalty -= math.Log(v-lo) + math.Log(hi-v)
		}
		return obj(x) + mu*penalty
	}
	problem := optimize.Problem{
		Func: barrier,
		Grad: func(grad, x []float64) { fd.Gradient(grad, barrier, x, nil) },
		Hess: func(hess *mat.SymDense, x []float64) { fd.Hessian(hess, barrier, x, nil) },
	}
	result, err := optimize.Minimize(problem, x0, gonumSettings(opts), &optimize.Newton{})
	if err != nil {
		return nil, 0, newError(KindOptimizationFailed, op, err)
	}
	xmin := box.clamp(result.X)
	return xmin, obj(xmin), nil
}

// CMAESBackend is a covariance-matrix-adaptation evolution strategy for
// objectives where even Nelder-Mead's simplex struggles (highly multimodal
// acquisition surfaces), following the (mu/mu_w, lambda)-CMA-ES update
// equations with a diagonal covariance.
type CMAESBackend struct {
	PopulationSize int // if 0, derived as 4 + floor(3*ln(n))
	Sigma0         float64
	RNG            *rand.Rand
}

func (CMAESBackend) Name() string { return "cma-es" }

func (b CMAESBackend) Minimize(obj ObjectiveFunc, box Constraints, x0 []float64, opts OptimizeOptions) ([]float64, float64, error) {
	const op = "CMAESBackend.Minimize"
	n := len(x0)
	lambda := b.PopulationSize
	if lambda <= 0 {
		lambda = 4 + int(3*math.Log(float64(n)))
	}
	mu := lambda / 2
	if mu < 1 {
		mu = 1
	}
	sigma := b.Sigma0
	if sigma <= 0 {
		sigma = 0.3
	}
	rng := b.RNG
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	weights := make([]float64, mu)
	var wsum, wsumSq float64
	for i := range weights {
		weights[i] = math.Log(float64(mu)+0.5) - math.Log(float64(i+1))
		wsum += weights[i]
	}
	for i := range weights {
		weights[i] /= wsum
		wsumSq += weights[i] * weights[i]
	}
	muEff := 1.0 / wsumSq

	mean := append([]float64(nil), x0...)
	diag := make([]float64, n) // diagonal covariance, adapted each generation
	for i := range diag {
		diag[i] = 1.0
	}

	maxIter := opts.MaxIter
	if maxIter <= 0 {
		maxIter = 200
	}

	type candidate struct {
		z, x []float64
		f    float64
	}
	best := candidate{f: math.Inf(1)}

	for gen := 0; gen < maxIter; gen++ {
		cands := make([]candidate, lambda)
		for k := 0; k < lambda; k++ {
			z := make([]float64, n)
			x := make([]float64, n)
			for i := 0; i < n; i++ {
				z[i] = rng.NormFloat64()
				x[i] = mean[i] + sigma*math.Sqrt(diag[i])*z[i]
			}
			x = box.clamp(x)
			cands[k] = candidate{z: z, x: x, f: obj(x)}
		}
		// selection: sort ascending by fitness (partial selection sort, mu << lambda)
		for i := 0; i < mu; i++ {
			minIdx := i
			for j := i + 1; j < lambda; j++ {
				if cands[j].f < cands[minIdx].f {
					minIdx = j
				}
			}
			cands[i], cands[minIdx] = cands[minIdx], cands[i]
		}
		if cands[0].f < best.f {
			best = cands[0]
		}

		newMean := make([]float64, n)
		for i := 0; i < n; i++ {
			var sum float64
			for k := 0; k < mu; k++ {
				sum += weights[k] * cands[k].x[i]
			}
			newMean[i] = sum
		}
		mean = newMean

		newDiag := make([]float64, n)
		for i := 0; i < n; i++ {
			var sum float64
			for k := 0; k < mu; k++ {
				sum += weights[k] * cands[k].z[i] * cands[k].z[i]
			}
			newDiag[i] = (1-1.0/muEff)*diag[i] + (1.0/muEff)*sum
			if newDiag[i] < 1e-12 {
				newDiag[i] = 1e-12
			}
		}
		diag = newDiag
	}

	if math.IsInf(best.f, 1) {
		return nil, 0, newError(KindOptimizationFailed, op, fmt.Errorf("cma-es produced no finite candidate"))
	}
	return best.x, best.f, nil
}
