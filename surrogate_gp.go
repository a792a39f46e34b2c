package bayesopt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// MeanFunc is an optional GP mean function mu(x) for a single output.
type MeanFunc func(x []float64) float64

// GPSurrogate is the nonparametric (Gaussian Process) model. Each output
// is fit independently (no cross-output covariance), with its own length
// scales lambda_j, noise sigma2_j and optional mean mu_j.
type GPSurrogate struct {
	Kernel       Kernel
	Mean         []MeanFunc // length Outputs; nil entry means zero mean
	Outputs      int
	inputDim     int
	LambdaPriors [][]Prior // per output, length InputDim
	NoisePriors  []Prior   // per output
}

// NewGPSurrogate constructs a GPSurrogate, validating prior arity.
func NewGPSurrogate(kernel Kernel, inputDim, outputs int, mean []MeanFunc, lambdaPriors [][]Prior, noisePriors []Prior) (*GPSurrogate, error) {
	const op = "NewGPSurrogate"
	if mean == nil {
		mean = make([]MeanFunc, outputs)
	}
	if len(mean) != outputs {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("mean has %d entries, want %d", len(mean), outputs))
	}
	if len(lambdaPriors) != outputs {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("lambdaPriors has %d entries, want %d", len(lambdaPriors), outputs))
	}
	for j, lp := range lambdaPriors {
		if len(lp) != inputDim {
			return nil, newError(KindInvalidModel, op, fmt.Errorf("lambdaPriors[%d] has %d entries, want %d", j, len(lp), inputDim))
		}
	}
	if len(noisePriors) != outputs {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("noisePriors has %d entries, want %d", len(noisePriors), outputs))
	}
	return &GPSurrogate{
		Kernel:       kernel,
		Mean:         mean,
		Outputs:      outputs,
		inputDim:     inputDim,
		LambdaPriors: lambdaPriors,
		NoisePriors:  noisePriors,
	}, nil
}

func (gp *GPSurrogate) NumOutputs() int { return gp.Outputs }
func (gp *GPSurrogate) InputDim() int   { return gp.inputDim }

func (gp *GPSurrogate) Layout() ParamLayout {
	return ParamLayout{
		HasTheta:   false,
		HasLambda:  true,
		LambdaDim:  gp.inputDim,
		HasSigma2:  true,
		NumOutputs: gp.Outputs,
	}
}

func (gp *GPSurrogate) Priors() ParamPriors {
	return ParamPriors{Lambda: gp.LambdaPriors, Sigma2: gp.NoisePriors}
}

func (gp *GPSurrogate) meanAt(j int, x []float64) float64 {
	if gp.Mean[j] == nil {
		return 0
	}
	return gp.Mean[j](x)
}

// gramMatrix builds K = k_lambda(X,X) + sigma2*I as a SymDense.
func gramMatrix(kernel Kernel, X *mat.Dense, lambda []float64, sigma2 float64) *mat.SymDense {
	k, _ := X.Dims()
	K := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		xi := mat.Row(nil, i, X)
		for j := i; j < k; j++ {
			var v float64
			if i == j {
				v = kernel.Eval(xi, xi, lambda) + sigma2
			} else {
				xj := mat.Row(nil, j, X)
				v = kernel.Eval(xi, xj, lambda)
			}
			K.SetSym(i, j, v)
		}
	}
	return K
}

// choleskyWithJitter factorizes K, escalating additive diagonal jitter
// from 1e-10 doubling up to 1e-4 until the factorization succeeds.
// Returns KindIllConditioned if K is still not positive-definite at the
// maximum jitter.
func choleskyWithJitter(K *mat.SymDense, op string) (*mat.Cholesky, error) {
	n := K.SymmetricDim()
	const maxJitter = 1e-4
	for jitter := 1e-10; jitter <= maxJitter; jitter *= 2 {
		candidate := mat.NewSymDense(n, nil)
		candidate.CopySym(K)
		if jitter > 0 {
			for i := 0; i < n; i++ {
				candidate.SetSym(i, i, candidate.At(i, i)+jitter)
			}
		}
		var chol mat.Cholesky
		if chol.Factorize(candidate) {
			return &chol, nil
		}
	}
	return nil, newError(KindIllConditioned, op, fmt.Errorf("covariance not positive-definite after jitter escalation to %v", maxJitter))
}

// DataLogLikelihood computes sum_j log N(Y_j.; mu0_j(X), K_j), one Cholesky
// per output.
func (gp *GPSurrogate) DataLogLikelihood(data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) (float64, error) {
	const op = "GPSurrogate.DataLogLikelihood"
	if err := validateParamLen(op, "lambda", len(lambda), gp.Outputs); err != nil {
		return 0, err
	}
	if err := validateParamLen(op, "sigma2", len(sigma2), gp.Outputs); err != nil {
		return 0, err
	}
	return gpDataLogLikelihood(op, gp.Kernel, gp.meanAt, gp.Outputs, data, lambda, sigma2)
}

// Predict returns, per output, the posterior predictive mean and variance
// at x: mu(x) = mu0(x) + k(x,X) K^-1 (Y - mu0(X)), v(x) = k(x,x) -
// k(x,X) K^-1 k(X,x), clamped at zero.
func (gp *GPSurrogate) Predict(x []float64, data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) ([]float64, []float64, error) {
	const op = "GPSurrogate.Predict"
	if err := validateParamLen(op, "lambda", len(lambda), gp.Outputs); err != nil {
		return nil, nil, err
	}
	if err := validateParamLen(op, "sigma2", len(sigma2), gp.Outputs); err != nil {
		return nil, nil, err
	}
	return gpPredict(op, gp.Kernel, gp.meanAt, gp.Outputs, x, data, lambda, sigma2)
}

// gpDataLogLikelihood and gpPredict are the shared GP-posterior machinery
// used both by GPSurrogate (zero or user-supplied mean) and by
// SemiparametricSurrogate (parametric mean), parameterized over a
// per-output mean evaluator so neither caller duplicates the Cholesky
// bookkeeping.
func gpDataLogLikelihood(op string, kernel Kernel, meanAt func(j int, x []float64) float64, outputs int, data *Dataset, lambda [][]float64, sigma2 []float64) (float64, error) {
	X := data.XMatrix()
	k, _ := X.Dims()

	var total float64
	for j := 0; j < outputs; j++ {
		if sigma2[j] <= 0 {
			return math.Inf(-1), nil
		}
		K := gramMatrix(kernel, X, lambda[j], sigma2[j])
		chol, err := choleskyWithJitter(K, op)
		if err != nil {
			return 0, err
		}

		yj := data.OutputColumn(j)
		resid := mat.NewVecDense(k, nil)
		for i := 0; i < k; i++ {
			resid.SetVec(i, yj[i]-meanAt(j, data.X(i)))
		}

		alpha := mat.NewVecDense(k, nil)
		if err := chol.SolveVecTo(alpha, resid); err != nil {
			return math.Inf(-1), nil
		}
		quad := mat.Dot(resid, alpha)
		logDet := chol.LogDet()
		ll := -0.5*quad - 0.5*logDet - float64(k)/2*math.Log(2*math.Pi)
		if math.IsNaN(ll) || math.IsInf(ll, 0) {
			return math.Inf(-1), nil
		}
		total += ll
	}
	return total, nil
}

func gpPredict(op string, kernel Kernel, meanAt func(j int, x []float64) float64, outputs int, x []float64, data *Dataset, lambda [][]float64, sigma2 []float64) ([]float64, []float64, error) {
	X := data.XMatrix()
	k, _ := X.Dims()

	mean := make([]float64, outputs)
	variance := make([]float64, outputs)

	for j := 0; j < outputs; j++ {
		K := gramMatrix(kernel, X, lambda[j], sigma2[j])
		chol, err := choleskyWithJitter(K, op)
		if err != nil {
			return nil, nil, err
		}

		yj := data.OutputColumn(j)
		resid := mat.NewVecDense(k, nil)
		kstar := mat.NewVecDense(k, nil)
		for i := 0; i < k; i++ {
			xi := data.X(i)
			resid.SetVec(i, yj[i]-meanAt(j, xi))
			kstar.SetVec(i, kernel.Eval(x, xi, lambda[j]))
		}

		alpha := mat.NewVecDense(k, nil)
		if err := chol.SolveVecTo(alpha, resid); err != nil {
			return nil, nil, newError(KindIllConditioned, op, err)
		}
		mean[j] = meanAt(j, x) + mat.Dot(kstar, alpha)

		v := mat.NewVecDense(k, nil)
		if err := chol.SolveVecTo(v, kstar); err != nil {
			return nil, nil, newError(KindIllConditioned, op, err)
		}
		kss := kernel.Eval(x, x, lambda[j])
		variance[j] = math.Max(0, kss-mat.Dot(kstar, v))
	}

	return mean, variance, nil
}
