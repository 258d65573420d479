package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"upbd/device"
)

// planeConstraint projects each particle out of plane interpenetration
// (§4.5a) and applies the small position nudge that emulates
// friction-like damping. Each lane only ever touches its own particle's
// predicted/committed position, so this is a safe in-place pass.
func (s *Solver) planeConstraint() {
	b := s.Buffers
	r := particleRadiusFromConfig(s)
	for _, pl := range s.Planes {
		device.ParallelEach(b.N, func(i int) {
			d := pl.Origin.Sub(b.PredictedPosition[i]).Dot(pl.Normal) + r
			if d <= 0 {
				return
			}
			b.PredictedPosition[i] = b.PredictedPosition[i].Add(pl.Normal.Mul(d))
			delta := b.PredictedPosition[i].Sub(b.Position[i]).Dot(pl.Normal)
			b.Position[i] = b.Position[i].Add(pl.Normal.Mul((2*delta + d) / 10))
		})
	}
}

// particleCollision is the optional particle-particle solid collision
// pass the spec documents as an open question (§9): a grid-driven
// distance constraint between non-fluid particles of different phases,
// included here rather than omitted. It is a gather pass: every lane
// reads neighbors' current predicted positions and writes its own
// correction into the scratch buffer, which is swapped in afterward.
func (s *Solver) particleCollision() {
	b := s.Buffers
	r := particleRadiusFromConfig(s)
	minDist := 2 * r
	n := b.N

	device.ParallelEach(n, func(i int) {
		b.TempPosition[i] = b.PredictedPosition[i]
	})

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] < 0 {
			return // fluid particles don't solid-collide
		}
		pi := b.PredictedPosition[i]
		var correction mgl32.Vec3
		s.Grid.ForEachNeighbor(i, b.PredictedPosition, n, 1, func(j int) {
			if j == i || b.Phase[j] < 0 || b.Phase[j] == b.Phase[i] {
				return
			}
			pj := b.PredictedPosition[j]
			rij := pi.Sub(pj)
			dist := rij.Len()
			if dist <= 0 || dist >= minDist {
				return
			}
			wSum := b.InvScaledMass[i] + b.InvScaledMass[j]
			if wSum <= 0 {
				return
			}
			nrm := rij.Mul(1 / dist)
			push := (minDist - dist) * (b.InvScaledMass[i] / wSum)
			correction = correction.Add(nrm.Mul(push))
		})
		b.TempPosition[i] = b.TempPosition[i].Add(correction)
	})

	b.PredictedPosition, b.TempPosition = b.TempPosition, b.PredictedPosition
}
