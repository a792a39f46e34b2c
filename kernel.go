package bayesopt

import "math"

// Kernel is a positive-definite covariance function with anisotropic
// (ARD) length scales: lambda is a per-dimension vector, not a scalar.
type Kernel interface {
	// Eval computes k(x1, x2; lambda).
	Eval(x1, x2, lambda []float64) float64
	// Name identifies the kernel for logging.
	Name() string
}

// RBFKernel is the squared-exponential kernel
// k(x1,x2) = exp(-sum_i (x1_i-x2_i)^2 / (2*lambda_i^2)).
type RBFKernel struct{}

func (RBFKernel) Name() string { return "rbf" }

func (RBFKernel) Eval(x1, x2, lambda []float64) float64 {
	var sum float64
	for i := range x1 {
		d := (x1[i] - x2[i]) / lambda[i]
		sum += d * d
	}
	return math.Exp(-0.5 * sum)
}

// Matern52Kernel is the Matern-5/2 kernel with per-dimension length scales,
// k(x1,x2) = (1 + sqrt(5)*r + 5/3*r^2) * exp(-sqrt(5)*r),
// r = sqrt(sum_i ((x1_i-x2_i)/lambda_i)^2).
type Matern52Kernel struct{}

func (Matern52Kernel) Name() string { return "matern52" }

func (Matern52Kernel) Eval(x1, x2, lambda []float64) float64 {
	var sumSq float64
	for i := range x1 {
		d := (x1[i] - x2[i]) / lambda[i]
		sumSq += d * d
	}
	r := math.Sqrt(sumSq)
	poly := 1 + math.Sqrt(5)*r + (5.0/3.0)*r*r
	return poly * math.Exp(-math.Sqrt(5)*r)
}
