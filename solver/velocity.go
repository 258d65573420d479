package solver

import (
	"sync/atomic"

	"upbd/device"
)

// updateVelocity reconstructs velocity from how far each particle moved
// over the substep (§4.6): velocity is never integrated directly, only
// derived from the position delta constraint projection produced. Each
// lane writes only its own entry, so this is a safe in-place pass.
func (s *Solver) updateVelocity(dt float32) {
	b := s.Buffers
	invDt := 1 / dt
	device.ParallelEach(b.N, func(i int) {
		b.Velocity[i] = b.PredictedPosition[i].Sub(b.Position[i]).Mul(invDt)
	})
}

// commitPositions copies the predicted position into the committed
// position, except for a non-fluid particle whose motion this substep
// fell below the sleep threshold: its position is left untouched so it
// stops accumulating numerical drift while at rest (§4.6). Fluid
// particles always commit, since sleeping is a rigid/granular-only
// concept. Returns how many non-fluid particles stayed below the sleep
// threshold this substep, for SubstepDiagnostics.
func (s *Solver) commitPositions() int {
	b := s.Buffers
	epsSq := s.Config.SleepThreshold * s.Config.SleepThreshold
	var sleeping atomic.Int64
	device.ParallelEach(b.N, func(i int) {
		if b.Phase[i] < 0 {
			b.Position[i] = b.PredictedPosition[i]
			return
		}
		delta := b.PredictedPosition[i].Sub(b.Position[i])
		if delta.LenSqr() >= epsSq {
			b.Position[i] = b.PredictedPosition[i]
		} else {
			sleeping.Add(1)
		}
	})
	return int(sleeping.Load())
}
