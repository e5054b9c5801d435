package tuner

import "math"

// Direction is the state of the coarse-steps line search within one level count
type Direction string

const (
	// Expanding doubles the coarse solve steps after every improving trial
	Expanding Direction = "expanding"
	// Contracting halves the coarse solve steps until a trial stops improving
	Contracting Direction = "contracting"
)

const (
	expandFactor   = 2.0
	contractFactor = 0.5
)

// lineSearch brackets a local minimum in the coarse solve step count:
// expand while times improve, reverse once, contract until no improvement.
type lineSearch struct {
	prevTime  float64
	direction Direction
}

func newLineSearch() *lineSearch {
	return &lineSearch{prevTime: math.Inf(1), direction: Expanding}
}

// advance consumes a measured time and returns the factor to apply to the
// coarse solve steps for the next trial. done means the inner loop ends here.
// Equal times count as no improvement.
func (ls *lineSearch) advance(time float64) (factor float64, done bool) {
	improved := time < ls.prevTime
	switch ls.direction {
	case Expanding:
		if improved {
			ls.prevTime = time
			return expandFactor, false
		}
		ls.direction = Contracting
		return contractFactor, false
	default:
		if improved {
			ls.prevTime = time
			return contractFactor, false
		}
		return 1, true
	}
}
