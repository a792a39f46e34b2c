package bayesopt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformVecPriors(n int, lo, hi float64) []Prior {
	out := make([]Prior, n)
	for i := range out {
		out[i] = UniformPrior{LowerBound: lo, UpperBound: hi}
	}
	return out
}

func testGP(t *testing.T, outputs int) *GPSurrogate {
	t.Helper()
	lambdaPriors := make([][]Prior, outputs)
	for j := range lambdaPriors {
		lambdaPriors[j] = uniformVecPriors(1, 0.1, 10)
	}
	gp, err := NewGPSurrogate(RBFKernel{}, 1, outputs, nil, lambdaPriors, uniformVecPriors(outputs, 1e-8, 1))
	require.NoError(t, err)
	return gp
}

func TestGPConstructionValidation(t *testing.T) {
	_, err := NewGPSurrogate(RBFKernel{}, 1, 2, nil, [][]Prior{uniformVecPriors(1, 0.1, 10)}, uniformVecPriors(2, 0, 1))
	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindInvalidModel, kind)

	_, err = NewGPSurrogate(RBFKernel{}, 2, 1, nil, [][]Prior{uniformVecPriors(1, 0.1, 10)}, uniformVecPriors(1, 0, 1))
	assert.Error(t, err, "lambda arity must match input dimension")
}

func TestGPInterpolation(t *testing.T) {
	gp := testGP(t, 1)
	data, err := NewDataset(
		[][]float64{{0}, {1}, {2}},
		[][]float64{{0}, {1}, {4}},
	)
	require.NoError(t, err)

	lambda := [][]float64{{1}}
	sigma2 := []float64{1e-6}

	for i := 0; i < data.Len(); i++ {
		x := data.X(i)
		mean, variance, err := gp.Predict(x, data, nil, lambda, sigma2)
		require.NoError(t, err)
		assert.InDelta(t, data.Y(i)[0], mean[0], 1e-2, "near-noiseless GP interpolates training targets")
		assert.GreaterOrEqual(t, variance[0], 0.0)
		assert.LessOrEqual(t, variance[0], sigma2[0]+1e-9, "training-point variance bounded by noise")
	}

	// Far from the data the posterior reverts to the prior.
	mean, variance, err := gp.Predict([]float64{100}, data, nil, lambda, sigma2)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, mean[0], 1e-6)
	assert.InDelta(t, 1.0, variance[0], 1e-6)
}

func TestGPWithMeanFunction(t *testing.T) {
	lambdaPriors := [][]Prior{uniformVecPriors(1, 0.1, 10)}
	mean := []MeanFunc{func(x []float64) float64 { return 5 }}
	gp, err := NewGPSurrogate(RBFKernel{}, 1, 1, mean, lambdaPriors, uniformVecPriors(1, 1e-8, 1))
	require.NoError(t, err)

	data, err := NewDataset([][]float64{{0}, {1}}, [][]float64{{5}, {5}})
	require.NoError(t, err)

	// Residuals are identically zero, so the posterior mean is the prior
	// mean everywhere, including far from the data.
	m, _, err := gp.Predict([]float64{50}, data, nil, [][]float64{{1}}, []float64{1e-6})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, m[0], 1e-9)
}

func TestGPJitterRescuesDuplicatePoints(t *testing.T) {
	gp := testGP(t, 1)
	data, err := NewDataset([][]float64{{1}, {1}}, [][]float64{{2}, {2}})
	require.NoError(t, err)

	// With zero noise the Gram matrix is singular; the escalating jitter
	// must still produce a usable factorization.
	mean, variance, err := gp.Predict([]float64{1}, data, nil, [][]float64{{1}}, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, mean[0], 1e-2)
	assert.GreaterOrEqual(t, variance[0], 0.0)
}

func TestGPDataLogLikelihood(t *testing.T) {
	gp := testGP(t, 1)
	data, err := NewDataset([][]float64{{0}}, [][]float64{{0.7}})
	require.NoError(t, err)

	sigma2 := 0.5
	ll, err := gp.DataLogLikelihood(data, nil, [][]float64{{1}}, []float64{sigma2})
	require.NoError(t, err)

	// Single observation: K = [1 + sigma2], a plain Gaussian likelihood.
	v := 1 + sigma2
	want := -0.5*0.7*0.7/v - 0.5*math.Log(v) - 0.5*math.Log(2*math.Pi)
	assert.InDelta(t, want, ll, 1e-6)

	ll, err = gp.DataLogLikelihood(data, nil, [][]float64{{1}}, []float64{-1})
	require.NoError(t, err)
	assert.True(t, math.IsInf(ll, -1), "non-positive noise is rejected as -Inf")
}

func TestParametricModel(t *testing.T) {
	g := func(x, theta []float64) []float64 {
		return []float64{theta[0] + theta[1]*x[0]}
	}
	m, err := NewParametricModel(g, 2, 1, 1,
		[]Prior{NormalPrior{0, 10}, NormalPrior{0, 10}},
		uniformVecPriors(1, 1e-8, 1))
	require.NoError(t, err)

	data, err := NewDataset([][]float64{{1}}, [][]float64{{3}})
	require.NoError(t, err)

	theta := []float64{1, 2}
	mean, variance, err := m.Predict([]float64{1}, data, theta, nil, []float64{0.25})
	require.NoError(t, err)
	assert.Equal(t, []float64{3}, mean)
	assert.Equal(t, []float64{0.25}, variance)

	// Exact fit: the data term is the Gaussian density at its own mean.
	ll, err := m.DataLogLikelihood(data, theta, nil, []float64{0.25})
	require.NoError(t, err)
	want := -0.5*math.Log(2*math.Pi*0.25) - 0
	assert.InDelta(t, want, ll, 1e-9)

	ll, err = m.DataLogLikelihood(data, theta, nil, []float64{0})
	require.NoError(t, err)
	assert.True(t, math.IsInf(ll, -1))
}

func TestParametricModelValidation(t *testing.T) {
	g := func(x, theta []float64) []float64 { return []float64{0} }
	_, err := NewParametricModel(g, 2, 1, 1, []Prior{NormalPrior{0, 1}}, uniformVecPriors(1, 0, 1))
	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindInvalidModel, kind)
}

func TestLinearParametricModel(t *testing.T) {
	blocks := []LinearBlock{
		{Lift: func(x []float64) []float64 { return []float64{1, x[0]} }, Dim: 2},
		{Lift: func(x []float64) []float64 { return []float64{x[0] * x[0]} }, Dim: 1},
	}
	m, err := NewLinearParametricModel(blocks, 1,
		[]Prior{NormalPrior{0, 10}, NormalPrior{0, 10}, NormalPrior{0, 10}},
		uniformVecPriors(2, 1e-8, 1))
	require.NoError(t, err)
	assert.Equal(t, 3, m.ThetaDim, "theta concatenates every block's coefficients")
	assert.Equal(t, 2, m.NumOutputs())

	data, err := NewDataset([][]float64{{2}}, [][]float64{{7, 8}})
	require.NoError(t, err)

	// theta = [1, 3 | 2]: first output 1 + 3*2 = 7, second 2*2^2 = 8.
	theta := []float64{1, 3, 2}
	mean, variance, err := m.Predict([]float64{2}, data, theta, nil, []float64{0.1, 0.2})
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, mean)
	assert.Equal(t, []float64{0.1, 0.2}, variance)

	// The generic parametric likelihood path serves linear models too:
	// exact fit, so only the normalization terms remain.
	ll, err := m.DataLogLikelihood(data, theta, nil, []float64{0.25, 0.25})
	require.NoError(t, err)
	want := -math.Log(2 * math.Pi * 0.25)
	assert.InDelta(t, want, ll, 1e-9)
}

func TestSemiparametricValidation(t *testing.T) {
	g := func(x, theta []float64) []float64 { return []float64{theta[0]} }
	mean, err := NewParametricModel(g, 1, 1, 1, []Prior{NormalPrior{0, 10}}, uniformVecPriors(1, 1e-8, 1))
	require.NoError(t, err)

	_, err = NewSemiparametricSurrogate(nil, RBFKernel{}, 1, 1, [][]Prior{uniformVecPriors(1, 0.1, 10)}, uniformVecPriors(1, 1e-8, 1))
	assert.Error(t, err, "nil mean rejected")

	_, err = NewSemiparametricSurrogate(mean, RBFKernel{}, 1, 2,
		[][]Prior{uniformVecPriors(1, 0.1, 10), uniformVecPriors(1, 0.1, 10)},
		uniformVecPriors(2, 1e-8, 1))
	assert.Error(t, err, "output count mismatch rejected")
}

func TestSemiparametricPredict(t *testing.T) {
	g := func(x, theta []float64) []float64 { return []float64{theta[0]} }
	mean, err := NewParametricModel(g, 1, 1, 1, []Prior{NormalPrior{0, 10}}, uniformVecPriors(1, 1e-8, 1))
	require.NoError(t, err)

	s, err := NewSemiparametricSurrogate(mean, RBFKernel{}, 1, 1,
		[][]Prior{uniformVecPriors(1, 0.1, 10)}, uniformVecPriors(1, 1e-8, 1))
	require.NoError(t, err)

	layout := s.Layout()
	assert.True(t, layout.HasTheta)
	assert.True(t, layout.HasLambda)
	assert.True(t, layout.HasSigma2)
	assert.Equal(t, 3, layout.FlatDim())

	// Data exactly matches the parametric trend theta0 = 3, so the GP
	// residual is zero and prediction reverts to the trend everywhere.
	data, err := NewDataset([][]float64{{0}, {1}}, [][]float64{{3}, {3}})
	require.NoError(t, err)

	m, v, err := s.Predict([]float64{40}, data, []float64{3}, [][]float64{{1}}, []float64{1e-6})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, m[0], 1e-9)
	assert.Greater(t, v[0], 0.5, "far from data the residual GP is uncertain")
}

func TestKernels(t *testing.T) {
	x := []float64{1, 2}
	lambda := []float64{1, 1}

	for _, k := range []Kernel{RBFKernel{}, Matern52Kernel{}} {
		t.Run(k.Name(), func(t *testing.T) {
			assert.InDelta(t, 1.0, k.Eval(x, x, lambda), 1e-12, "unit variance at zero distance")
			far := k.Eval(x, []float64{100, 200}, lambda)
			assert.Less(t, far, 1e-6, "covariance decays with distance")
			near := k.Eval(x, []float64{1.1, 2}, lambda)
			assert.Greater(t, near, far)
			assert.Equal(t, k.Eval(x, []float64{3, 4}, lambda), k.Eval([]float64{3, 4}, x, lambda), "symmetry")
		})
	}
}
