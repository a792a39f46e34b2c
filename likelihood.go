package bayesopt

import "math"

// JointLogLikelihood computes log p(D|theta,lambda,sigma2) + log pi(theta) +
// log pi(lambda) + log pi(sigma2), the quantity MLE maximizes and BI's NUTS
// sampler treats as an unnormalized log-posterior density. Any NaN or
// infinite component collapses the whole sum to -Inf rather than
// propagating NaN, so downstream optimizers and samplers see a well-formed
// (if unbounded-below) objective everywhere.
func JointLogLikelihood(m Model, data *Dataset, theta []float64, lambda [][]float64, sigma2 []float64) (float64, error) {
	dataLL, err := m.DataLogLikelihood(data, theta, lambda, sigma2)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(dataLL) || math.IsInf(dataLL, 0) {
		return math.Inf(-1), nil
	}

	priors := m.Priors()
	total := dataLL

	if len(priors.Theta) > 0 {
		total += LogPDFVector(priors.Theta, theta)
	}
	for j, lp := range priors.Lambda {
		total += LogPDFVector(lp, lambda[j])
	}
	if len(priors.Sigma2) > 0 {
		total += LogPDFVector(priors.Sigma2, sigma2)
	}

	if math.IsNaN(total) || math.IsInf(total, 1) {
		return math.Inf(-1), nil
	}
	return total, nil
}

// FlatLogPosterior adapts JointLogLikelihood to the flattened parameter
// vector p = layout.Flatten(theta, lambda, sigma2), the form both the
// multistart optimizer (inference_mle.go) and NUTS (inference_bi.go)
// operate on.
func FlatLogPosterior(m Model, data *Dataset, p []float64) (float64, error) {
	layout := m.Layout()
	theta, lambda, sigma2 := layout.Unflatten(p)
	return JointLogLikelihood(m, data, theta, lambda, sigma2)
}
