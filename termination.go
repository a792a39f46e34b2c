package bayesopt

// TermCond decides, at the head of every loop pass, whether the BO loop
// should stop. The loop calls Done from a single goroutine, matching its
// own strictly sequential contract.
type TermCond interface {
	// Done reports whether the loop should stop. iteration is the number
	// of completed loop iterations: 0 before the first one.
	Done(iteration int, data *Dataset) bool
}

// IterLimit stops after MaxIter completed iterations. The check is
// continue-then-increment: Done compares the iteration number the loop
// just finished against MaxIter directly, rather than pre-incrementing an
// internal counter, so a MaxIter of zero stops before the first iteration
// runs and a MaxIter of N runs exactly N iterations.
type IterLimit struct {
	MaxIter int
}

func (t IterLimit) Done(iteration int, data *Dataset) bool {
	return iteration >= t.MaxIter
}

// TermAny stops as soon as any of its conditions stops.
type TermAny []TermCond

func (t TermAny) Done(iteration int, data *Dataset) bool {
	for _, c := range t {
		if c.Done(iteration, data) {
			return true
		}
	}
	return false
}
