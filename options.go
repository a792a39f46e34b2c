package bayesopt

import (
	"runtime"

	"go.uber.org/zap"
)

// ProgressUpdate reports the current state of a Solve call. Recommend
// emits no updates.
type ProgressUpdate struct {
	// Phase names the stage emitting this update: "acquire" or "evaluate".
	Phase string

	// Iteration is the current BO loop iteration (1-based).
	Iteration int

	// CurrentX is the point most recently chosen or evaluated.
	CurrentX []float64

	// BestY is the fitness-projected value of the best admissible point
	// observed so far.
	BestY float64

	// LastAcquisitionValue is the acquisition value attained at CurrentX.
	LastAcquisitionValue float64
}

// Options bundles every optional setting of the engine. There is no global
// mutable configuration; every optional knob lives here with a default
// returned by DefaultOptions.
type Options struct {
	// Info enables an Info-level log line from Solve for every evaluated
	// candidate. Debug output from FitMLE and FitBI is not gated by this
	// flag; the logger's own level decides it. The engine emits no
	// warning-level logs.
	Info bool

	// EpsSamples is the number of Monte Carlo draws used to estimate
	// Expected Improvement when the fitness is nonlinear or the output is
	// constrained.
	EpsSamples int

	// Seed initializes every random source the engine creates internally.
	// Reproducibility of a run with a fixed seed is a contractual
	// invariant of Bayesian inference (see FitBI).
	Seed int64

	// ProgressChan, when non-nil, receives a ProgressUpdate after every
	// acquisition and evaluation step. Sends are non-blocking: a full
	// channel drops the update rather than stalling the loop.
	ProgressChan chan<- ProgressUpdate

	// Parallelism bounds the number of concurrent optimizer starts in MLE
	// fitting and acquisition maximization. Defaults to runtime.NumCPU().
	// MCMC chain concurrency is set by BIOptions.Parallel instead.
	Parallelism int

	// Logger receives structured diagnostics. Defaults to a development
	// logger named "bayesopt" when nil.
	Logger *zap.Logger

	// PlotHook is invoked, if non-nil, with the current Problem after
	// every iteration. Plotting is out of core scope; the engine only
	// carries the hook, it never implements one.
	PlotHook func(*Problem)
}

// DefaultOptions returns the engine's default configuration.
func DefaultOptions() Options {
	logger, _ := zap.NewDevelopment()
	return Options{
		Info:        false,
		EpsSamples:  512,
		Seed:        1,
		Parallelism: runtime.NumCPU(),
		Logger:      logger.Named("bayesopt"),
		PlotHook:    nil,
	}
}

// logger returns a usable logger even if the caller left Options.Logger nil.
func (o Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	l, _ := zap.NewDevelopment()
	return l.Named("bayesopt")
}

func (o Options) parallelism() int {
	if o.Parallelism > 0 {
		return o.Parallelism
	}
	return runtime.NumCPU()
}

func (o Options) epsSamples() int {
	if o.EpsSamples > 0 {
		return o.EpsSamples
	}
	return 512
}

// sendProgress delivers update without ever blocking the loop.
func (o Options) sendProgress(update ProgressUpdate) {
	if o.ProgressChan == nil {
		return
	}
	select {
	case o.ProgressChan <- update:
	default:
	}
}
