package bayesopt

import (
	"fmt"
)

// SemiparametricSurrogate is the hybrid model: a parametric predictor
// g(x, theta) supplies the GP mean mu0(x) = g(x, theta), and the residual is
// modeled nonparametrically with the same per-output kernel/length-scale/
// noise contract as GPSurrogate. The invariant that "the GP part has no
// independent mean" holds by construction: this type has no field through
// which a caller could attach a second mean function, so there is nothing
// to check beyond validating that the parametric and GP halves agree on
// input dimension and output count.
type SemiparametricSurrogate struct {
	Mean         *ParametricModel
	Kernel       Kernel
	Outputs      int
	inputDim     int
	LambdaPriors [][]Prior // per output, length InputDim
	NoisePriors  []Prior   // per output
}

// NewSemiparametricSurrogate builds a SemiparametricSurrogate from a
// parametric mean and a kernel over the residual. mean.NumOutputs() and
// mean.InputDim() must agree with outputs and inputDim.
func NewSemiparametricSurrogate(mean *ParametricModel, kernel Kernel, inputDim, outputs int, lambdaPriors [][]Prior, noisePriors []Prior) (*SemiparametricSurrogate, error) {
	const op = "NewSemiparametricSurrogate"
	if mean == nil {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("mean must not be nil"))
	}
	if mean.NumOutputs() != outputs {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("mean has %d outputs, want %d", mean.NumOutputs(), outputs))
	}
	if mean.InputDim() != inputDim {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("mean has input dim %d, want %d", mean.InputDim(), inputDim))
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
	return &SemiparametricSurrogate{
		Mean:         mean,
		Kernel:       kernel,
		Outputs:      outputs,
		inputDim:     inputDim,
		LambdaPriors: lambdaPriors,
		NoisePriors:  noisePriors,
	}, nil
}

func (s *SemiparametricSurrogate) NumOutputs() int { return s.Outputs }
func (s *SemiparametricSurrogate) InputDim() int   { return s.inputDim }

// Layout combines theta from the parametric mean with lambda/sigma2 from
// the GP residual.
func (s *SemiparametricSurrogate) Layout() ParamLayout {
	return ParamLayout{
		HasTheta:   true,
		ThetaDim:   s.Mean.ThetaDim,
		HasLambda:  true,
		LambdaDim:  s.inputDim,
		HasSigma2:  true,
		NumOutputs: s.Outputs,
	}
}

func (s *SemiparametricSurrogate) Priors() ParamPriors {
	return ParamPriors{
		Theta:  s.Mean.ThetaPriors,
		Lambda: s.LambdaPriors,
		Sigma2: s.NoisePriors,
	}
}

// meanAt evaluates the parametric mean g(x,theta)_j, recomputing g(x,theta)
// for every j is wasteful only if Outputs is large relative to the cost of
// g; left unmemoized to mirror ParametricModel.DataLogLikelihood's simplicity.
func (s *SemiparametricSurrogate) meanAt(theta []float64) func(j int, x []float64) float64 {
	return func(j int, x []float64) float64 {
		return s.Mean.G(x, theta)[j]
	}
}

// DataLogLikelihood delegates to the shared GP machinery with mu0 = g(.,theta).
func (s *SemiparametricSurrogate) DataLogLikelihood(data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) (float64, error) {
	const op = "SemiparametricSurrogate.DataLogLikelihood"
	if err := validateParamLen(op, "theta", len(theta), s.Mean.ThetaDim); err != nil {
		return 0, err
	}
	if err := validateParamLen(op, "lambda", len(lambda), s.Outputs); err != nil {
		return 0, err
	}
	if err := validateParamLen(op, "sigma2", len(sigma2), s.Outputs); err != nil {
		return 0, err
	}
	return gpDataLogLikelihood(op, s.Kernel, s.meanAt(theta), s.Outputs, data, lambda, sigma2)
}

// Predict delegates to the shared GP machinery with mu0 = g(.,theta).
func (s *SemiparametricSurrogate) Predict(x []float64, data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) ([]float64, []float64, error) {
	const op = "SemiparametricSurrogate.Predict"
	if err := validateParamLen(op, "theta", len(theta), s.Mean.ThetaDim); err != nil {
		return nil, nil, err
	}
	if err := validateParamLen(op, "lambda", len(lambda), s.Outputs); err != nil {
		return nil, nil, err
	}
	if err := validateParamLen(op, "sigma2", len(sigma2), s.Outputs); err != nil {
		return nil, nil, err
	}
	return gpPredict(op, s.Kernel, s.meanAt(theta), s.Outputs, x, data, lambda, sigma2)
}
