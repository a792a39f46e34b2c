package bayesopt

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Dataset is the evolving D = (X, Y) pair. Rows are points, the idiomatic
// gonum convention. Safe for concurrent reads; Append takes the write
// lock, Clone the read lock.
type Dataset struct {
	mu sync.RWMutex
	x  *mat.Dense // k x n
	y  *mat.Dense // k x m
}

// NewDataset builds a Dataset from k rows of n-dimensional inputs and
// m-dimensional outputs. Requires at least one point.
func NewDataset(X, Y [][]float64) (*Dataset, error) {
	const op = "NewDataset"
	if len(X) == 0 {
		return nil, newError(KindInvalidDomain, op, fmt.Errorf("dataset must have at least one point"))
	}
	if len(X) != len(Y) {
		return nil, newError(KindInvalidDomain, op, fmt.Errorf("X has %d rows, Y has %d", len(X), len(Y)))
	}
	n := len(X[0])
	m := len(Y[0])
	xd := mat.NewDense(len(X), n, nil)
	yd := mat.NewDense(len(Y), m, nil)
	for i := range X {
		if len(X[i]) != n {
			return nil, newError(KindInvalidDomain, op, fmt.Errorf("row %d: input has %d components, want %d", i, len(X[i]), n))
		}
		if len(Y[i]) != m {
			return nil, newError(KindInvalidDomain, op, fmt.Errorf("row %d: output has %d components, want %d", i, len(Y[i]), m))
		}
		xd.SetRow(i, X[i])
		yd.SetRow(i, Y[i])
	}
	return &Dataset{x: xd, y: yd}, nil
}

// Len returns the number of points k.
func (d *Dataset) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, _ := d.x.Dims()
	return r
}

// InputDim returns n.
func (d *Dataset) InputDim() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, c := d.x.Dims()
	return c
}

// NumOutputs returns m.
func (d *Dataset) NumOutputs() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, c := d.y.Dims()
	return c
}

// X returns the i-th input point.
func (d *Dataset) X(i int) []float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]float64(nil), mat.Row(nil, i, d.x)...)
}

// Y returns the i-th output point.
func (d *Dataset) Y(i int) []float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]float64(nil), mat.Row(nil, i, d.y)...)
}

// OutputColumn returns output dimension j across all points.
func (d *Dataset) OutputColumn(j int) []float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	k, _ := d.y.Dims()
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		out[i] = d.y.At(i, j)
	}
	return out
}

// XMatrix returns the underlying k x n input matrix. Callers must not
// mutate it.
func (d *Dataset) XMatrix() *mat.Dense {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.x
}

// YMatrix returns the underlying k x m output matrix. Callers must not
// mutate it.
func (d *Dataset) YMatrix() *mat.Dense {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.y
}

// Append adds a new observation (x, y), growing the dataset by one point.
// This is the only form of mutation a running BO loop performs on the
// user-visible dataset.
func (d *Dataset) Append(x, y []float64) error {
	const op = "Dataset.Append"
	d.mu.Lock()
	defer d.mu.Unlock()

	_, n := d.x.Dims()
	_, m := d.y.Dims()
	if len(x) != n {
		return newError(KindInvalidDomain, op, fmt.Errorf("x has %d components, want %d", len(x), n))
	}
	if len(y) != m {
		return newError(KindInvalidDomain, op, fmt.Errorf("y has %d components, want %d", len(y), m))
	}

	k, _ := d.x.Dims()
	newX := mat.NewDense(k+1, n, nil)
	newX.Copy(d.x)
	newX.SetRow(k, x)

	newY := mat.NewDense(k+1, m, nil)
	newY.Copy(d.y)
	newY.SetRow(k, y)

	d.x, d.y = newX, newY
	return nil
}

// Clone deep-copies the dataset. Used by sequential batching to keep
// fantasized observations out of the user-visible dataset.
func (d *Dataset) Clone() *Dataset {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return &Dataset{x: mat.DenseCopyOf(d.x), y: mat.DenseCopyOf(d.y)}
}

// Rows returns the dataset as row slices, convenient for domain filtering.
func (d *Dataset) Rows() (X, Y [][]float64) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	k, _ := d.x.Dims()
	X = make([][]float64, k)
	Y = make([][]float64, k)
	for i := 0; i < k; i++ {
		X[i] = append([]float64(nil), mat.Row(nil, i, d.x)...)
		Y[i] = append([]float64(nil), mat.Row(nil, i, d.y)...)
	}
	return X, Y
}

// PruneExterior rebuilds the dataset keeping only points feasible under dom,
// preserving relative order. Used once during Initialize.
func (d *Dataset) PruneExterior(dom *Domain) (*Dataset, error) {
	X, Y := d.Rows()
	fx, fy, err := ExcludeExterior(dom, X, Y)
	if err != nil {
		return nil, err
	}
	return NewDataset(fx, fy)
}
