package ensemble

import "math"

// EarlyStopping tracks a validation loss and reports when it has not
// improved for Rounds consecutive iterations.
type EarlyStopping struct {
	Rounds          int     // Number of rounds without improvement to stop
	BestScore       float64 // Best validation loss so far
	BestIteration   int     // Iteration with best loss
	RoundsNoImprove int     // Current rounds without improvement
	Tolerance       float64 // Minimum decrease that counts as improvement
	Enabled         bool
}

// NewEarlyStopping creates a tracker. rounds <= 0 disables it.
func NewEarlyStopping(rounds int, tolerance float64) *EarlyStopping {
	if rounds <= 0 {
		return &EarlyStopping{BestIteration: -1}
	}
	return &EarlyStopping{
		Rounds:    rounds,
		BestScore: math.Inf(1),
		Tolerance: tolerance,
		Enabled:   true,
	}
}

// Update records the loss of iteration and returns true when training should stop.
func (es *EarlyStopping) Update(iteration int, loss float64) bool {
	if !es.Enabled {
		return false
	}

	if loss < es.BestScore-es.Tolerance {
		es.BestScore = loss
		es.BestIteration = iteration
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}

	return es.RoundsNoImprove >= es.Rounds
}

// ShouldStop returns whether training should stop
func (es *EarlyStopping) ShouldStop() bool {
	return es.Enabled && es.RoundsNoImprove >= es.Rounds
}
