package bayesopt

import (
	"fmt"
	"math"

	"golang.org/x/exp/constraints"
)

// Domain is the input space Omega: a box [LB, UB] in R^n, a per-coordinate
// discreteness mask, and an optional general feasibility predicate.
type Domain struct {
	LB        []float64
	UB        []float64
	Discrete  []bool
	Predicate func(x []float64) bool
}

// NewDomain validates and constructs a Domain. Discrete may be nil, meaning
// no coordinate is discrete. Predicate may be nil, meaning no additional
// feasibility constraint beyond the box and discreteness.
func NewDomain(lb, ub []float64, discrete []bool, predicate func([]float64) bool) (*Domain, error) {
	const op = "NewDomain"
	if len(lb) != len(ub) {
		return nil, newError(KindInvalidDomain, op, fmt.Errorf("lb has %d components, ub has %d", len(lb), len(ub)))
	}
	if len(lb) == 0 {
		return nil, newError(KindInvalidDomain, op, fmt.Errorf("domain must have at least one dimension"))
	}
	for i := range lb {
		if lb[i] > ub[i] {
			return nil, newError(KindInvalidDomain, op, fmt.Errorf("component %d: lb %v > ub %v", i, lb[i], ub[i]))
		}
	}
	if discrete == nil {
		discrete = make([]bool, len(lb))
	}
	if len(discrete) != len(lb) {
		return nil, newError(KindInvalidDomain, op, fmt.Errorf("discrete mask has %d components, want %d", len(discrete), len(lb)))
	}
	return &Domain{
		LB:        append([]float64(nil), lb...),
		UB:        append([]float64(nil), ub...),
		Discrete:  append([]bool(nil), discrete...),
		Predicate: predicate,
	}, nil
}

// Dim returns the number of input dimensions.
func (d *Domain) Dim() int { return len(d.LB) }

// Range defines the valid interval for one input coordinate, inclusive of
// both ends. Integer-typed ranges produce discrete coordinates when passed
// to DomainFromRanges.
type Range[T constraints.Integer | constraints.Float] struct {
	Min T
	Max T
}

// DomainFromRanges builds a Domain from per-coordinate typed ranges. When T
// is an integer type every coordinate is flagged discrete, so a domain
// declared over int ranges only ever stores integer points.
func DomainFromRanges[T constraints.Integer | constraints.Float](ranges ...Range[T]) (*Domain, error) {
	lb := make([]float64, len(ranges))
	ub := make([]float64, len(ranges))
	discrete := make([]bool, len(ranges))
	isInt := T(1)/T(2) == T(0) // integer division reveals an integer type
	for i, r := range ranges {
		lb[i] = float64(r.Min)
		ub[i] = float64(r.Max)
		discrete[i] = isInt
	}
	return NewDomain(lb, ub, discrete, nil)
}

// InDomain reports whether x satisfies the box bounds, the discreteness
// mask (each flagged coordinate must be integer-valued), and the general
// predicate, if any.
func (d *Domain) InDomain(x []float64) bool {
	if len(x) != d.Dim() {
		return false
	}
	for i, v := range x {
		if v < d.LB[i] || v > d.UB[i] {
			return false
		}
		if d.Discrete[i] && v != math.Trunc(v) {
			return false
		}
	}
	if d.Predicate != nil && !d.Predicate(x) {
		return false
	}
	return true
}

// ProjectDiscrete rounds every flagged coordinate of x to the nearest
// integer, clamped into [lb_i, ub_i]. Non-discrete coordinates pass
// through unchanged.
func (d *Domain) ProjectDiscrete(x []float64) []float64 {
	out := append([]float64(nil), x...)
	for i, v := range out {
		if !d.Discrete[i] {
			continue
		}
		r := math.Round(v)
		if r < d.LB[i] {
			r = math.Ceil(d.LB[i])
		}
		if r > d.UB[i] {
			r = math.Floor(d.UB[i])
		}
		out[i] = r
	}
	return out
}

// ExcludeExterior drops every dataset column infeasible under d, preserving
// the relative order of survivors.
func ExcludeExterior(d *Domain, X, Y [][]float64) ([][]float64, [][]float64, error) {
	const op = "ExcludeExterior"
	if len(X) != len(Y) {
		return nil, nil, newError(KindInvalidDomain, op, fmt.Errorf("X has %d columns, Y has %d", len(X), len(Y)))
	}
	outX := make([][]float64, 0, len(X))
	outY := make([][]float64, 0, len(Y))
	for i, x := range X {
		if d.InDomain(x) {
			outX = append(outX, x)
			outY = append(outY, Y[i])
		}
	}
	if len(outX) == 0 {
		return nil, nil, newError(KindInvalidDomain, op, fmt.Errorf("no feasible points remain after exterior exclusion"))
	}
	return outX, outY, nil
}

// Interiorize moves x strictly inside [lb, ub] by at least alpha on every
// component, as required by interior-point optimizers that reject start
// points sitting on the boundary.
func Interiorize(x, lb, ub []float64, alpha float64) ([]float64, error) {
	const op = "Interiorize"
	for i := range lb {
		if ub[i]-lb[i] < 2*alpha {
			return nil, newError(KindInvalidDomain, op, fmt.Errorf("component %d: ub-lb = %v < 2*alpha = %v", i, ub[i]-lb[i], 2*alpha))
		}
	}
	out := make([]float64, len(x))
	for i, v := range x {
		lo := lb[i] + alpha
		hi := ub[i] - alpha
		switch {
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out, nil
}
