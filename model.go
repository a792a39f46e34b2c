package bayesopt

import "fmt"

// ParamLayout describes which parameter blocks a Model uses and their
// sizes, so MLE (inference_mle.go) can flatten/unflatten a single vector
// p = [theta ; vec(lambda) ; sigma2] without each Model reimplementing the
// bookkeeping.
type ParamLayout struct {
	HasTheta   bool
	ThetaDim   int
	HasLambda  bool
	LambdaDim  int // per output, length n (input dimension)
	HasSigma2  bool
	NumOutputs int
}

// FlatDim is the total length of the flattened parameter vector.
func (l ParamLayout) FlatDim() int {
	d := 0
	if l.HasTheta {
		d += l.ThetaDim
	}
	if l.HasLambda {
		d += l.LambdaDim * l.NumOutputs
	}
	if l.HasSigma2 {
		d += l.NumOutputs
	}
	return d
}

// Flatten concatenates theta, lambda (row-major over outputs) and sigma2
// into a single vector, omitting blocks the layout does not use.
func (l ParamLayout) Flatten(theta []float64, lambda [][]float64, sigma2 []float64) []float64 {
	out := make([]float64, 0, l.FlatDim())
	if l.HasTheta {
		out = append(out, theta...)
	}
	if l.HasLambda {
		for j := 0; j < l.NumOutputs; j++ {
			out = append(out, lambda[j]...)
		}
	}
	if l.HasSigma2 {
		out = append(out, sigma2...)
	}
	return out
}

// Unflatten is Flatten's inverse.
func (l ParamLayout) Unflatten(p []float64) (theta []float64, lambda [][]float64, sigma2 []float64) {
	i := 0
	if l.HasTheta {
		theta = append([]float64(nil), p[i:i+l.ThetaDim]...)
		i += l.ThetaDim
	}
	if l.HasLambda {
		lambda = make([][]float64, l.NumOutputs)
		for j := 0; j < l.NumOutputs; j++ {
			lambda[j] = append([]float64(nil), p[i:i+l.LambdaDim]...)
			i += l.LambdaDim
		}
	}
	if l.HasSigma2 {
		sigma2 = append([]float64(nil), p[i:i+l.NumOutputs]...)
		i += l.NumOutputs
	}
	return theta, lambda, sigma2
}

// ParamPriors bundles the priors over every parameter block a Model uses.
// Lambda and Sigma2 are per-output; each entry applies element-wise over
// that output's vector.
type ParamPriors struct {
	Theta  []Prior   // length ThetaDim
	Lambda [][]Prior // per output, length n (input dim) each
	Sigma2 []Prior   // per output
}

// Model is the capability interface every surrogate variant (parametric,
// GP, semiparametric) implements. Callers needing a custom model only need
// to satisfy this interface, no class hierarchy required.
type Model interface {
	NumOutputs() int
	InputDim() int
	Layout() ParamLayout
	Priors() ParamPriors

	// DataLogLikelihood returns sum_i log p(y_i | x_i; theta, lambda,
	// sigma2), the data term of the joint log-likelihood (C4). Infinite or
	// NaN values must already have been turned into -Inf by the caller.
	DataLogLikelihood(data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) (float64, error)

	// Predict returns the posterior predictive mean and per-output
	// variance at x given fitted parameters and the training data.
	Predict(x []float64, data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) (mean, variance []float64, err error)
}

// PredictSamples evaluates the posterior predictive at x under every
// parameter draw, one (mean, variance) pair per draw. Under MLE params has
// a single entry; under BI one entry per posterior sample, so the result
// is the sampled posterior predictive mixture.
func PredictSamples(m Model, x []float64, data *Dataset, params []ModelParams) (means, variances [][]float64, err error) {
	means = make([][]float64, len(params))
	variances = make([][]float64, len(params))
	for i, p := range params {
		mean, variance, err := m.Predict(x, data, p.Theta, p.Lambda, p.Sigma2)
		if err != nil {
			return nil, nil, err
		}
		means[i] = mean
		variances[i] = variance
	}
	return means, variances, nil
}

func validateParamLen(op, name string, got, want int) error {
	if got != want {
		return newError(KindInvalidModel, op, fmt.Errorf("%s has length %d, want %d", name, got, want))
	}
	return nil
}
