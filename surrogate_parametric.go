package bayesopt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// PredictorFunc is the user-supplied parametric predictor g(x, theta) -> R^m.
type PredictorFunc func(x, theta []float64) []float64

// ParametricModel is the parametric surrogate: a predictor g(x, theta)
// with per-parameter priors pi_theta, feeding a Gaussian observation
// model with per-output noise.
type ParametricModel struct {
	G            PredictorFunc
	ThetaDim     int
	ThetaPriors  []Prior
	Outputs      int
	NoisePriors  []Prior // per-output sigma^2 prior
	inputDim     int
}

// NewParametricModel constructs a ParametricModel, validating prior arity
// against the declared parameter and output counts.
func NewParametricModel(g PredictorFunc, thetaDim, inputDim, outputs int, thetaPriors, noisePriors []Prior) (*ParametricModel, error) {
	const op = "NewParametricModel"
	if len(thetaPriors) != thetaDim {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("thetaPriors has %d entries, want %d", len(thetaPriors), thetaDim))
	}
	if len(noisePriors) != outputs {
		return nil, newError(KindInvalidModel, op, fmt.Errorf("noisePriors has %d entries, want %d", len(noisePriors), outputs))
	}
	return &ParametricModel{
		G:           g,
		ThetaDim:    thetaDim,
		ThetaPriors: thetaPriors,
		Outputs:     outputs,
		NoisePriors: noisePriors,
		inputDim:    inputDim,
	}, nil
}

func (m *ParametricModel) NumOutputs() int { return m.Outputs }
func (m *ParametricModel) InputDim() int   { return m.inputDim }

func (m *ParametricModel) Layout() ParamLayout {
	return ParamLayout{
		HasTheta:   true,
		ThetaDim:   m.ThetaDim,
		HasLambda:  false,
		HasSigma2:  true,
		NumOutputs: m.Outputs,
	}
}

func (m *ParametricModel) Priors() ParamPriors {
	return ParamPriors{Theta: m.ThetaPriors, Sigma2: m.NoisePriors}
}

// DataLogLikelihood computes sum_i log N(y_i; g(x_i,theta), diag(sigma2)).
func (m *ParametricModel) DataLogLikelihood(data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) (float64, error) {
	const op = "ParametricModel.DataLogLikelihood"
	if err := validateParamLen(op, "theta", len(theta), m.ThetaDim); err != nil {
		return 0, err
	}
	if err := validateParamLen(op, "sigma2", len(sigma2), m.Outputs); err != nil {
		return 0, err
	}
	var ll float64
	k := data.Len()
	for i := 0; i < k; i++ {
		x := data.X(i)
		y := data.Y(i)
		pred := m.G(x, theta)
		for j := 0; j < m.Outputs; j++ {
			if sigma2[j] <= 0 {
				return math.Inf(-1), nil
			}
			n := distuv.Normal{Mu: pred[j], Sigma: math.Sqrt(sigma2[j])}
			ll += n.LogProb(y[j])
		}
	}
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return math.Inf(-1), nil
	}
	return ll, nil
}

// Predict returns (g(x,theta), sigma2): mean and per-output variance, with
// no cross-output correlation.
func (m *ParametricModel) Predict(x []float64, data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) ([]float64, []float64, error) {
	const op = "ParametricModel.Predict"
	if err := validateParamLen(op, "theta", len(theta), m.ThetaDim); err != nil {
		return nil, nil, err
	}
	mean := m.G(x, theta)
	variance := append([]float64(nil), sigma2...)
	return mean, variance, nil
}
