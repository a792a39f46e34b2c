package bayesopt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitnessVariants(t *testing.T) {
	y := []float64{2, -3}

	assert.Equal(t, 2.0, NoFitness{}.Evaluate(y))
	assert.True(t, NoFitness{}.IsLinear())

	lin := LinearFitness{Weights: []float64{1, 2}}
	assert.Equal(t, -4.0, lin.Evaluate(y))
	assert.True(t, lin.IsLinear())
	assert.Equal(t, []float64{1, 2}, lin.LinearWeights())

	nl := NonlinearFitness{F: func(y []float64) float64 { return y[0] * y[1] }}
	assert.Equal(t, -6.0, nl.Evaluate(y))
	assert.False(t, nl.IsLinear())
}

func TestYMaxConstraint(t *testing.T) {
	c := YMaxConstraint([]float64{math.Inf(1), 0})
	assert.False(t, c.Unconstrained)
	assert.True(t, c.Admissible([]float64{100, -0.5}))
	assert.True(t, c.Admissible([]float64{100, 0}))
	assert.False(t, c.Admissible([]float64{100, 0.5}))

	all := YMaxConstraint([]float64{math.Inf(1), math.Inf(1)})
	assert.True(t, all.Unconstrained, "all +Inf bounds are no constraint at all")
	assert.True(t, all.Admissible([]float64{1e300, -1e300}))
}

func TestBestObserved(t *testing.T) {
	d, err := NewDataset(
		[][]float64{{0}, {1}, {2}},
		[][]float64{{1, 5}, {3, -1}, {9, 7}},
	)
	require.NoError(t, err)

	// Unconstrained: best fitness is the largest first output.
	best := BestObserved(d, NoFitness{}, NoConstraint())
	assert.Equal(t, 9.0, best)

	// Second output bounded at zero excludes rows 0 and 2.
	best = BestObserved(d, NoFitness{}, YMaxConstraint([]float64{math.Inf(1), 0}))
	assert.Equal(t, 3.0, best)

	// Nothing admissible: -Inf, not an error.
	best = BestObserved(d, NoFitness{}, YMaxConstraint([]float64{math.Inf(1), -10}))
	assert.True(t, math.IsInf(best, -1))

	assert.Equal(t, 1.0, WorstObserved(d, NoFitness{}), "worst ignores the admissibility gate")
}
