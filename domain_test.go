package bayesopt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainValidation(t *testing.T) {
	_, err := NewDomain([]float64{0, 0}, []float64{1}, nil, nil)
	assert.Error(t, err)

	_, err = NewDomain([]float64{2}, []float64{1}, nil, nil)
	assert.Error(t, err)

	_, err = NewDomain([]float64{0}, []float64{1}, []bool{true, false}, nil)
	assert.Error(t, err)

	d, err := NewDomain([]float64{0, -1}, []float64{1, 1}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Dim())
}

func TestInDomain(t *testing.T) {
	pred := func(x []float64) bool { return x[0]+x[1] <= 1.5 }
	d, err := NewDomain([]float64{0, 0}, []float64{1, 2}, []bool{false, true}, pred)
	require.NoError(t, err)

	assert.True(t, d.InDomain([]float64{0.5, 1}))
	assert.False(t, d.InDomain([]float64{0.5, 1.5}), "discrete coordinate must be integer")
	assert.False(t, d.InDomain([]float64{-0.1, 1}), "below lower bound")
	assert.False(t, d.InDomain([]float64{0.6, 1}), "predicate violated")
	assert.False(t, d.InDomain([]float64{0.5}), "wrong dimension")
}

func TestProjectDiscrete(t *testing.T) {
	d, err := NewDomain([]float64{0, 0.2}, []float64{10, 4.8}, []bool{false, true}, nil)
	require.NoError(t, err)

	got := d.ProjectDiscrete([]float64{3.7, 2.4})
	assert.Equal(t, []float64{3.7, 2}, got)

	// Rounding outside the box clamps to the nearest in-bounds integer.
	got = d.ProjectDiscrete([]float64{3.7, 0.1})
	assert.Equal(t, []float64{3.7, 1}, got)
	got = d.ProjectDiscrete([]float64{3.7, 4.9})
	assert.Equal(t, []float64{3.7, 4}, got)
}

func TestExcludeExterior(t *testing.T) {
	d, err := NewDomain([]float64{0}, []float64{1}, nil, nil)
	require.NoError(t, err)

	X := [][]float64{{0.5}, {1.5}, {0.25}}
	Y := [][]float64{{1}, {2}, {3}}
	fx, fy, err := ExcludeExterior(d, X, Y)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{0.5}, {0.25}}, fx, "survivor order preserved")
	assert.Equal(t, [][]float64{{1}, {3}}, fy)

	_, _, err = ExcludeExterior(d, [][]float64{{5}}, [][]float64{{1}})
	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindInvalidDomain, kind)
}

func TestInteriorize(t *testing.T) {
	lb := []float64{0, 0}
	ub := []float64{1, 1}

	got, err := Interiorize([]float64{0, 0.5}, lb, ub, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.5}, got)

	got, err = Interiorize([]float64{1, 0.95}, lb, ub, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.9}, got)

	_, err = Interiorize([]float64{0.5, 0.5}, lb, ub, 0.6)
	require.Error(t, err)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindInvalidDomain, kind)
}

func TestDomainFromRanges(t *testing.T) {
	intDom, err := DomainFromRanges(Range[int]{Min: 0, Max: 10}, Range[int]{Min: 1, Max: 5})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true}, intDom.Discrete)
	assert.Equal(t, []float64{0, 1}, intDom.LB)

	floatDom, err := DomainFromRanges(Range[float64]{Min: -1, Max: 1})
	require.NoError(t, err)
	assert.Equal(t, []bool{false}, floatDom.Discrete)
}
