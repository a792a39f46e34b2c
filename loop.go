package bayesopt

import (
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
)

// EvaluationFunc is the expensive black-box objective under optimization:
// given a feasible point, it returns the (possibly multi-output)
// observation, or an error if evaluation itself failed (not to be confused
// with an inadmissible output, which the Fitness/OutputConstraint pair
// handles).
type EvaluationFunc func(x []float64) ([]float64, error)

// InferenceMode selects how Problem.Solve fits Model parameters each
// iteration: a single point estimate (MLE) or a posterior sample ensemble
// (BI), the latter feeding BuildEI's marginalization.
type InferenceMode int

const (
	InferenceMLE InferenceMode = iota
	InferenceBI
)

// Problem bundles everything one Bayesian optimization run needs: the
// search space, the surrogate model, how to turn a (possibly
// multi-output) observation into a scalar to maximize, the objective
// itself, and the evolving dataset. YMax carries per-output admissibility
// bounds: an observation is only eligible as "best observed" if y_j <=
// YMax[j] for every output. A math.Inf(1) entry disables the bound for
// that output; a nil YMax disables it everywhere. Constraint, when set,
// overrides the gate YMax would derive.
type Problem struct {
	Domain     *Domain
	Model      Model
	Fitness    Fitness
	Constraint OutputConstraint
	F          EvaluationFunc
	YMax       []float64
	Data       *Dataset

	Mode       InferenceMode
	MLE        MLEOptions
	BI         BIOptions
	AcqBackend OptimizerBackend
	AcqOptions OptimizeOptions
	BatchSize  int // points evaluated per iteration; defaults to 1

	Term TermCond
}

// NewProblem builds a Problem over domain, model and data, leaving every
// optional field at its zero value (identity fitness, unconstrained
// outputs, MLE inference, batch size 1).
func NewProblem(domain *Domain, model Model, f EvaluationFunc, data *Dataset, term TermCond) *Problem {
	return &Problem{
		Domain: domain,
		Model:  model,
		F:      f,
		Data:   data,
		Term:   term,
	}
}

// SolveResult is Solve's return value: the final dataset and the best
// admissible point and fitness observed.
type SolveResult struct {
	Data    *Dataset
	BestX   []float64
	BestY   float64
	History []ProgressUpdate
}

// Solve runs the sequential BO loop: infer parameters, maximize
// acquisition (possibly as a sequential fantasy batch), evaluate the real
// objective at every pick, append to Data, and repeat until Term.Done
// reports true. Progress updates go to Options.ProgressChan (non-blocking)
// and are also collected into the returned History.
func (p *Problem) Solve(opts Options) (*SolveResult, error) {
	const op = "Problem.Solve"
	if p.F == nil {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("problem has no objective F; use Recommend for objective-free recommendation"))
	}
	fitness, constraint, err := p.initialize(op)
	if err != nil {
		return nil, err
	}

	logger := opts.logger()
	rng := rand.New(rand.NewSource(opts.Seed))

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	var history []ProgressUpdate
	iteration := 0

	for !p.Term.Done(iteration, p.Data) {
		iteration++

		params, err := p.infer(opts, rng)
		if err != nil {
			return nil, err
		}

		batcher := BatchingMaximizer{
			Inner:      p.acqMaximizer(opts, rng),
			Model:      p.Model,
			Fitness:    fitness,
			Constraint: constraint,
			Params:     params,
			EpsSamples: opts.epsSamples(),
			RNG:        rng,
		}
		picks, acqValues, err := batcher.Batch(p.Data, p.Domain, batchSize)
		if err != nil {
			return nil, err
		}

		for i, x := range picks {
			acquired := ProgressUpdate{Phase: "acquire", Iteration: iteration, CurrentX: x, LastAcquisitionValue: acqValues[i]}
			history = append(history, acquired)
			opts.sendProgress(acquired)

			y, err := p.F(x)
			if err != nil {
				return nil, newError(KindEvaluationFailed, op, err)
			}
			if err := p.Data.Append(x, y); err != nil {
				return nil, newError(KindInvalidDomain, op, err)
			}

			best := BestObserved(p.Data, fitness, constraint)
			evaluated := ProgressUpdate{Phase: "evaluate", Iteration: iteration, CurrentX: x, BestY: best}
			history = append(history, evaluated)
			opts.sendProgress(evaluated)

			if logger != nil && opts.Info {
				logger.Info("evaluated candidate",
					zap.Int("iteration", iteration),
					zap.Float64s("x", x),
					zap.Float64s("y", y),
					zap.Float64("best_y", best))
			}
		}

		if hook := opts.PlotHook; hook != nil {
			hook(p)
		}
	}

	best := BestObserved(p.Data, fitness, constraint)
	bestX, err := p.bestX(fitness, constraint)
	if err != nil {
		return nil, err
	}

	return &SolveResult{Data: p.Data, BestX: bestX, BestY: best, History: history}, nil
}

// initialize validates the problem's structural fields, prunes exterior
// data, and resolves the fitness and admissibility gate. Structural errors
// surface here, before any inference or acquisition work starts.
func (p *Problem) initialize(op string) (Fitness, OutputConstraint, error) {
	if p.Domain == nil || p.Model == nil || p.Data == nil || p.Term == nil {
		return nil, OutputConstraint{}, newError(KindInvalidModel, op, fmt.Errorf("problem is missing a required field (Domain, Model, Data, or Term)"))
	}
	if p.YMax != nil && len(p.YMax) != p.Model.NumOutputs() {
		return nil, OutputConstraint{}, newError(KindInvalidModel, op, fmt.Errorf("YMax has %d entries, model has %d outputs", len(p.YMax), p.Model.NumOutputs()))
	}

	pruned, err := p.Data.PruneExterior(p.Domain)
	if err != nil {
		return nil, OutputConstraint{}, newError(KindInvalidDomain, op, err)
	}
	p.Data = pruned

	fitness := p.Fitness
	if fitness == nil {
		fitness = NoFitness{}
	}
	constraint := p.Constraint
	if constraint.Admissible == nil {
		if p.YMax != nil {
			constraint = YMaxConstraint(p.YMax)
		} else {
			constraint = NoConstraint()
		}
	}
	return fitness, constraint, nil
}

// infer fits Model against p.Data under p.Mode, returning the ModelParams
// slice BuildEI marginalizes over (length 1 for MLE, one per posterior
// draw for BI).
func (p *Problem) infer(opts Options, rng *rand.Rand) ([]ModelParams, error) {
	switch p.Mode {
	case InferenceBI:
		bi := p.BI
		if bi.Seed == 0 {
			bi.Seed = opts.Seed
		}
		if bi.Logger == nil {
			bi.Logger = opts.logger()
		}
		samples, err := FitBI(p.Model, p.Data, bi)
		if err != nil {
			return nil, err
		}
		flat := samples.Flat()
		out := make([]ModelParams, len(flat))
		for i, f := range flat {
			theta, lambda, sigma2 := samples.Layout.Unflatten(f)
			out[i] = ModelParams{Theta: theta, Lambda: lambda, Sigma2: sigma2}
		}
		return out, nil
	default:
		mle := p.MLE
		if mle.RNG == nil {
			mle.RNG = rng
		}
		if mle.Logger == nil {
			mle.Logger = opts.logger()
		}
		if mle.Optimize.Parallelism <= 0 {
			mle.Optimize.Parallelism = opts.parallelism()
		}
		theta, lambda, sigma2, err := FitMLE(p.Model, p.Data, mle)
		if err != nil {
			return nil, err
		}
		return []ModelParams{{Theta: theta, Lambda: lambda, Sigma2: sigma2}}, nil
	}
}

// bestX returns the input point achieving the best admissible fitness
// observed in p.Data.
func (p *Problem) bestX(fitness Fitness, constraint OutputConstraint) ([]float64, error) {
	const op = "Problem.bestX"
	best := math.Inf(-1)
	var bestX []float64
	k := p.Data.Len()
	for i := 0; i < k; i++ {
		y := p.Data.Y(i)
		if !constraint.Admissible(y) {
			continue
		}
		if v := fitness.Evaluate(y); v > best {
			best = v
			bestX = p.Data.X(i)
		}
	}
	if bestX == nil {
		return nil, newError(KindInvalidDomain, op, fmt.Errorf("no admissible observation in dataset"))
	}
	return bestX, nil
}

// acqMaximizer builds the acquisition maximizer for one iteration, filling
// unset parallelism from opts.
func (p *Problem) acqMaximizer(opts Options, rng *rand.Rand) AcqMaximizer {
	acqOpts := p.AcqOptions
	if acqOpts.Parallelism <= 0 {
		acqOpts.Parallelism = opts.parallelism()
	}
	return AcqMaximizer{Backend: p.AcqBackend, Optimize: acqOpts, RNG: rng}
}

// Recommend is the objective-free variant of Solve: it runs exactly one
// infer-then-acquire pass against the current Data, without evaluating any
// objective or mutating the dataset, and returns the proposed next
// evaluation points (BatchSize of them; one by default) with their
// acquisition values. The caller decides whether, and how, to evaluate
// them.
func (p *Problem) Recommend(opts Options) ([][]float64, []float64, error) {
	const op = "Problem.Recommend"
	fitness, constraint, err := p.initialize(op)
	if err != nil {
		return nil, nil, err
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	params, err := p.infer(opts, rng)
	if err != nil {
		return nil, nil, err
	}

	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	batcher := BatchingMaximizer{
		Inner:      p.acqMaximizer(opts, rng),
		Model:      p.Model,
		Fitness:    fitness,
		Constraint: constraint,
		Params:     params,
		EpsSamples: opts.epsSamples(),
		RNG:        rng,
	}
	return batcher.Batch(p.Data, p.Domain, batchSize)
}
