package bayesopt

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += (v - 2) * (v - 2)
	}
	return sum
}

func TestLatinHypercubeStratification(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	box := Constraints{LB: []float64{0, -10}, UB: []float64{1, 10}}
	n := 8

	samples := LatinHypercubeSample(box, n, rng)
	require.Len(t, samples, n)

	// Per dimension, exactly one sample falls in each of the n strata.
	for dim := 0; dim < 2; dim++ {
		vals := make([]float64, n)
		for i, s := range samples {
			vals[i] = s[dim]
		}
		sort.Float64s(vals)
		width := (box.UB[dim] - box.LB[dim]) / float64(n)
		for i, v := range vals {
			lo := box.LB[dim] + float64(i)*width
			assert.GreaterOrEqual(t, v, lo)
			assert.Less(t, v, lo+width)
		}
	}
}

func TestMultistartFindsMinimum(t *testing.T) {
	box := Constraints{LB: []float64{-10, -10}, UB: []float64{10, 10}}
	rng := rand.New(rand.NewSource(9))
	starts := LatinHypercubeSample(box, 6, rng)

	x, f, err := multistart(NelderMeadBackend{}, sphere, box, starts, DefaultOptimizeOptions(2))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 1e-3)
	assert.InDelta(t, 2.0, x[1], 1e-3)
	assert.InDelta(t, 0.0, f, 1e-6)
}

// flakyBackend fails from every start whose first coordinate is negative,
// and otherwise returns the start unchanged with a fixed value.
type flakyBackend struct{ value float64 }

func (flakyBackend) Name() string { return "flaky" }

func (b flakyBackend) Minimize(obj ObjectiveFunc, box Constraints, x0 []float64, opts OptimizeOptions) ([]float64, float64, error) {
	if x0[0] < 0 {
		return nil, 0, fmt.Errorf("synthetic failure at %v", x0)
	}
	return x0, b.value, nil
}

func TestMultistartIsolatesFailures(t *testing.T) {
	box := Constraints{LB: []float64{-1}, UB: []float64{1}}
	starts := [][]float64{{-0.5}, {0.5}, {-0.9}}

	x, _, err := multistart(flakyBackend{value: 1}, sphere, box, starts, DefaultOptimizeOptions(1))
	require.NoError(t, err, "one surviving start is enough")
	assert.Equal(t, []float64{0.5}, x)
}

func TestMultistartAggregateFailure(t *testing.T) {
	box := Constraints{LB: []float64{-1}, UB: []float64{-0.1}}
	starts := [][]float64{{-0.5}, {-0.9}}

	_, _, err := multistart(flakyBackend{value: 1}, sphere, box, starts, DefaultOptimizeOptions(1))
	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindOptimizationFailed, kind)

	_, _, err = multistart(flakyBackend{value: 1}, sphere, box, nil, DefaultOptimizeOptions(1))
	assert.Error(t, err, "no starts at all is an aggregate failure")
}

func TestMultistartTieBreaksByLowestIndex(t *testing.T) {
	box := Constraints{LB: []float64{0}, UB: []float64{1}}
	starts := [][]float64{{0.2}, {0.4}, {0.6}}

	// Every start reports the same value; the first must win.
	x, _, err := multistart(flakyBackend{value: 7}, sphere, box, starts, DefaultOptimizeOptions(1))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2}, x)
}

func TestMultistartParallelMatchesSerial(t *testing.T) {
	box := Constraints{LB: []float64{-10, -10}, UB: []float64{10, 10}}
	starts := LatinHypercubeSample(box, 8, rand.New(rand.NewSource(2)))

	serial := DefaultOptimizeOptions(2)
	serial.Parallelism = 1
	xs, fs, err := multistart(NelderMeadBackend{}, sphere, box, starts, serial)
	require.NoError(t, err)

	parallel := DefaultOptimizeOptions(2)
	parallel.Parallelism = 4
	xp, fp, err := multistart(NelderMeadBackend{}, sphere, box, starts, parallel)
	require.NoError(t, err)

	assert.Equal(t, xs, xp, "result collection is start-index ordered, so parallelism cannot change the winner")
	assert.Equal(t, fs, fp)
}

func TestGradientBoxBackend(t *testing.T) {
	box := Constraints{LB: []float64{-5}, UB: []float64{5}}
	x, f, err := GradientBoxBackend{}.Minimize(sphere, box, []float64{-4}, DefaultOptimizeOptions(1))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 1e-4)
	assert.InDelta(t, 0.0, f, 1e-6)
}

func TestBackendRespectsBounds(t *testing.T) {
	// Unconstrained minimum at 2 sits outside the box; the clamped
	// objective pins the solution to the nearest face.
	box := Constraints{LB: []float64{-5}, UB: []float64{1}}
	x, _, err := NelderMeadBackend{}.Minimize(sphere, box, []float64{0}, DefaultOptimizeOptions(1))
	require.NoError(t, err)
	assert.LessOrEqual(t, x[0], 1.0)
	assert.InDelta(t, 1.0, x[0], 1e-3)
}

func TestInteriorPointNewtonBackend(t *testing.T) {
	box := Constraints{LB: []float64{-5}, UB: []float64{5}}
	start, err := Interiorize([]float64{-5}, box.LB, box.UB, 0.5)
	require.NoError(t, err)

	x, _, err := InteriorPointNewtonBackend{BarrierWeight: 1e-6}.Minimize(sphere, box, start, DefaultOptimizeOptions(1))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 0.1)
}

func TestCMAESBackend(t *testing.T) {
	box := Constraints{LB: []float64{-10, -10}, UB: []float64{10, 10}}
	opts := DefaultOptimizeOptions(2)
	opts.MaxIter = 300

	b := CMAESBackend{RNG: rand.New(rand.NewSource(4))}
	x, f, err := b.Minimize(sphere, box, []float64{8, -8}, opts)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 0.2)
	assert.InDelta(t, 2.0, x[1], 0.2)
	assert.Less(t, f, 0.1)
}

func TestOptimizeOptionsWithDefaults(t *testing.T) {
	o := OptimizeOptions{MaxIter: 42}.withDefaults(4)
	assert.Equal(t, 42, o.MaxIter, "caller-set fields survive")
	assert.Equal(t, DefaultOptimizeOptions(4).Starts, o.Starts)
	assert.Equal(t, 1e-8, o.AbsTol)
	assert.Equal(t, 1, o.Parallelism)
}

func TestConstraintsClamp(t *testing.T) {
	c := Constraints{LB: []float64{0, 0}, UB: []float64{1, 1}}
	got := c.clamp([]float64{-3, 0.5})
	assert.Equal(t, []float64{0, 0.5}, got)
	assert.False(t, math.IsNaN(got[0]))
}
