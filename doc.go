// Package bayesopt implements Bayesian optimization over expensive,
// possibly noisy, possibly constrained black-box objectives
// f: X subset of R^n -> R^m. It iteratively fits a probabilistic surrogate
// model to the data collected so far and maximizes an acquisition function
// derived from the surrogate's posterior predictive distribution to pick
// the next evaluation point.
//
// # Features
//
//   - Three surrogate model families: parametric, nonparametric (Gaussian
//     Process) and semiparametric (parametric mean plus GP residual).
//   - Two parameter-inference modes: maximum-likelihood estimation via
//     constrained multistart optimization, and Bayesian inference via
//     parallel NUTS sampling.
//   - Expected Improvement acquisition, analytic for linear fitness over a
//     Gaussian predictive and Monte Carlo otherwise, marginalized across
//     posterior samples when running in Bayesian-inference mode.
//   - A pluggable optimizer facade unifying gradient, interior-point,
//     derivative-free and global backends behind one multistart contract.
//   - Sequential batching via fantasized observations, and termination
//     conditions behind the TermCond interface (IterLimit, TermAny).
//
// # Thread safety
//
// The outer optimization loop is strictly sequential: each round depends on
// the dataset produced by the previous one. Parallelism appears only in two
// places, both isolated per-task: multistart optimization (independent
// starting points) and MCMC chains (independent chains). A Dataset is safe
// for concurrent reads; callers must not mutate it concurrently with Solve
// or Recommend.
//
// # Configuration
//
// Options carries every optional setting with an explicit default returned
// by DefaultOptions; there is no global mutable configuration and no
// process-wide random source. Every entry point that needs randomness takes
// an explicit *rand.Rand or an explicit seed (Options.Seed, BIOptions.Seed).
package bayesopt
