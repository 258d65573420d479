package solver

import (
	"math"

	"upbd/device"
)

// applyGravity is an in-place, disjoint-write pass: each lane only ever
// touches its own velocity entry (§5, "in-place writes are permitted only
// where each lane writes a disjoint index").
func (s *Solver) applyGravity(dt float32) {
	b := s.Buffers
	g := s.Config.Gravity
	device.ParallelEach(b.N, func(i int) {
		b.Velocity[i] = b.Velocity[i].Add(g.Mul(dt))
	})
}

// predict derives the scratch predicted position from the committed
// position and velocity; transient, re-derived every substep.
func (s *Solver) predict(dt float32) {
	b := s.Buffers
	device.ParallelEach(b.N, func(i int) {
		b.PredictedPosition[i] = b.Position[i].Add(b.Velocity[i].Mul(dt))
	})
}

// computeShockMasses inflates the effective mass of lower particles so
// projection stabilizes tall stacks (§4.4.3): lower height -> heavier
// invScaledMass denominator -> smaller invScaledMass -> less displaced by
// constraint corrections.
func (s *Solver) computeShockMasses() {
	b := s.Buffers
	k := s.Config.MassScalingK
	device.ParallelEach(b.N, func(i int) {
		height := b.Position[i].Y()
		scale := float32(math.Exp(float64(-k * height)))
		b.InvScaledMass[i] = 1 / (scale * b.Mass[i])
	})
}

// stabilize removes pre-existing plane interpenetration before
// projection begins, shifting both committed position and predicted
// position together so no velocity is generated (§4.4.4, §9).
func (s *Solver) stabilize() {
	b := s.Buffers
	r := particleRadiusFromConfig(s)
	for iter := 0; iter < s.Config.StabilizeIters; iter++ {
		for _, pl := range s.Planes {
			device.ParallelEach(b.N, func(i int) {
				d := pl.Origin.Sub(b.Position[i]).Dot(pl.Normal) + r
				if d > 0 {
					shift := pl.Normal.Mul(d)
					b.Position[i] = b.Position[i].Add(shift)
					b.PredictedPosition[i] = b.PredictedPosition[i].Add(shift)
				}
			})
		}
	}
}

// particleRadiusFromConfig recovers the particle radius from the
// configured kernel radius (h = factor * r), since Solver doesn't store
// the radius separately; both stabilize and planeConstraint need it as
// the plane-offset margin.
func particleRadiusFromConfig(s *Solver) float32 {
	return s.Config.KernelRadius / DefaultKernelRadiusFactor
}
