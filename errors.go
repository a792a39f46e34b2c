package bayesopt

import (
	"errors"
	"fmt"
)

// Kind classifies the structural and numerical failure modes of the
// engine. Structural kinds (InvalidDomain, InvalidModel) are raised eagerly
// at Initialize. OptimizationFailed and SamplingFailed surface only after an
// aggregate failure in a parallel section (every multistart replicate
// failed, every MCMC chain failed). IllConditioned is returned by any GP
// prediction whose covariance cannot be factorized; inside likelihood
// evaluations for MLE and BI it is scored as a -Inf log-likelihood instead.
type Kind int

const (
	// KindInvalidDomain covers an empty domain after exterior exclusion,
	// ub-lb < 2*alpha for Interiorize, or inconsistent discreteness flags.
	KindInvalidDomain Kind = iota
	// KindInvalidModel covers a semiparametric model with a non-nil GP
	// mean, or a prior/model arity mismatch.
	KindInvalidModel
	// KindIllConditioned covers a GP covariance that remains non-positive-
	// definite after the maximum jitter escalation.
	KindIllConditioned
	// KindOptimizationFailed covers every multistart replicate raising, or
	// the acquisition maximizer yielding no valid point.
	KindOptimizationFailed
	// KindSamplingFailed covers every MCMC chain failing. A chain fails
	// when its current state has a -Inf log density; divergent transitions
	// and acceptance rates are not checked against any threshold.
	KindSamplingFailed
	// KindEvaluationFailed covers the user objective returning an error.
	KindEvaluationFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidDomain:
		return "InvalidDomain"
	case KindInvalidModel:
		return "InvalidModel"
	case KindIllConditioned:
		return "IllConditioned"
	case KindOptimizationFailed:
		return "OptimizationFailed"
	case KindSamplingFailed:
		return "SamplingFailed"
	case KindEvaluationFailed:
		return "EvaluationFailed"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every exported entry point that can
// fail in a structured way. Op names the operation that failed ("GPSurrogate.Predict",
// "multistart", ...), matching the failing method's identity so a reader
// can locate the call site from the message alone.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("bayesopt: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("bayesopt: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an *Error, wrapping err (which may be nil).
func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf reports the Kind carried by err, if err (or something it wraps) is
// an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
