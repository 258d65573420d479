package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"upbd/device"
	"upbd/kernels"
)

// fluidLambda computes, for every fluid particle, its SPH density
// (including solid-particle contributions, one-way coupled, and
// including the particle's own self-term) and the PBF Lagrange
// multiplier λ that will drive the position correction pass (§4.5b).
// Each lane only writes its own FluidDensity/FluidLambda entry, so this
// is a safe in-place gather.
func (s *Solver) fluidLambda() {
	b := s.Buffers
	h := s.Config.KernelRadius
	rho0 := s.RestDensity
	eps := s.Config.PBFEpsilon
	n := b.N

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] >= 0 {
			return // solids don't carry a density/lambda
		}
		pi := b.PredictedPosition[i]
		var density float32
		var gradSelf mgl32.Vec3
		var denomSum float32

		s.Grid.ForEachNeighbor(i, b.PredictedPosition, n, 1, func(j int) {
			pj := b.PredictedPosition[j]
			rij := pi.Sub(pj)
			r := rij.Len()
			if r >= h {
				return
			}
			density += b.Mass[j] * kernels.Poly6(r, h)
			if j == i {
				return
			}
			grad := kernels.SpikyGradient(rij, h)
			gradSelf = gradSelf.Add(grad)
			gradJ := grad.Mul(-1 / rho0)
			denomSum += gradJ.Dot(gradJ)
		})

		b.FluidDensity[i] = density
		gradSelfScaled := gradSelf.Mul(1 / rho0)
		denomSum += gradSelfScaled.Dot(gradSelfScaled)

		c := density/rho0 - 1
		b.FluidLambda[i] = -c / (denomSum + eps)
	})
}

// fluidPositionCorrection applies the PBF position update, including the
// sCorr anti-clustering tensile term (§4.5b). This is a gather pass: the
// correction for particle i depends on neighbors' current predicted
// positions and lambdas, so every lane writes into the scratch buffer
// and the buffers are swapped once every lane has finished.
func (s *Solver) fluidPositionCorrection() {
	b := s.Buffers
	h := s.Config.KernelRadius
	rho0 := s.RestDensity
	k := s.Config.SCorrK
	nExp := float64(s.Config.SCorrN)
	deltaQ := s.Config.SCorrDeltaQ
	if deltaQ <= 0 {
		deltaQ = DefaultSCorrDeltaQFactor * h
	}
	n := b.N

	wPoly6DeltaQ := kernels.Poly6(deltaQ, h)

	device.ParallelEach(n, func(i int) {
		b.TempPosition[i] = b.PredictedPosition[i]
	})

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] >= 0 {
			return
		}
		pi := b.PredictedPosition[i]
		var correction mgl32.Vec3

		s.Grid.ForEachNeighbor(i, b.PredictedPosition, n, 1, func(j int) {
			if j == i || b.Phase[j] >= 0 {
				return // only fluid-fluid pairs contribute a correction term
			}
			pj := b.PredictedPosition[j]
			rij := pi.Sub(pj)
			r := rij.Len()
			if r <= 0 || r >= h {
				return
			}
			grad := kernels.SpikyGradient(rij, h)
			var sCorr float32
			if wPoly6DeltaQ > 0 {
				ratio := float64(kernels.Poly6(r, h) / wPoly6DeltaQ)
				sCorr = -k * float32(math.Pow(ratio, nExp))
			}
			scalar := (b.FluidLambda[i] + b.FluidLambda[j] + sCorr) / rho0
			correction = correction.Add(grad.Mul(scalar))
		})

		b.TempPosition[i] = b.TempPosition[i].Add(correction)
	})

	b.PredictedPosition, b.TempPosition = b.TempPosition, b.PredictedPosition
}
