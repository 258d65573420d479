package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"upbd/device"
	"upbd/kernels"
)

// vorticity estimates each fluid particle's local angular velocity from
// its fluid neighbors' relative velocities (§4.7.1). Solid particles
// carry no vorticity. Every lane writes only its own Omega entry and
// reads only Velocity/Position, neither of which this pass
// mutates, so it's a safe in-place gather.
func (s *Solver) vorticity() {
	b := s.Buffers
	h := s.Config.KernelRadius
	n := b.N

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] >= 0 {
			b.Omega[i] = mgl32.Vec3{}
			return
		}
		pi := b.Position[i]
		var omega mgl32.Vec3
		s.Grid.ForEachNeighbor(i, b.Position, n, 1, func(j int) {
			if j == i || b.Phase[j] >= 0 {
				return
			}
			rij := pi.Sub(b.Position[j])
			grad := kernels.SpikyGradient(rij, h)
			dv := b.Velocity[j].Sub(b.Velocity[i])
			omega = omega.Add(dv.Cross(grad))
		})
		b.Omega[i] = omega
	})
}

// vorticityForce estimates the vorticity gradient direction and applies
// the confining force along it (§4.7.1), fighting the numerical damping
// substep constraint projection otherwise introduces. It only reads
// Omega (untouched by this pass) and writes each particle's own
// velocity, so no scratch buffer is needed despite touching Velocity.
func (s *Solver) vorticityForce(dt float32) {
	b := s.Buffers
	h := s.Config.KernelRadius
	epsVort := s.Config.VorticityEpsilon
	n := b.N

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] >= 0 {
			return
		}
		pi := b.Position[i]
		var eta mgl32.Vec3
		s.Grid.ForEachNeighbor(i, b.Position, n, 1, func(j int) {
			if j == i || b.Phase[j] >= 0 {
				return
			}
			rij := pi.Sub(b.Position[j])
			grad := kernels.SpikyGradient(rij, h)
			eta = eta.Add(grad.Mul(b.Omega[j].Len()))
		})
		etaLen := eta.Len()
		if etaLen < 1e-6 {
			return
		}
		etaHat := eta.Mul(1 / etaLen)
		force := etaHat.Cross(b.Omega[i]).Mul(epsVort)
		b.Velocity[i] = b.Velocity[i].Add(force.Mul(dt))
	})
}

// computeFluidNormals estimates each fluid particle's inward surface
// normal from the poly6 density gradient (§4.7.3), the input the Akinci
// curvature term needs. Each lane writes only its own FluidNormal entry.
func (s *Solver) computeFluidNormals() {
	b := s.Buffers
	h := s.Config.KernelRadius
	n := b.N

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] >= 0 {
			return
		}
		pi := b.Position[i]
		var normal mgl32.Vec3
		s.Grid.ForEachNeighbor(i, b.Position, n, 1, func(j int) {
			if j == i || b.Phase[j] >= 0 || b.FluidDensity[j] <= 0 {
				return
			}
			rij := pi.Sub(b.Position[j])
			grad := kernels.Poly6Gradient(rij, h)
			normal = normal.Add(grad.Mul(b.Mass[j] / b.FluidDensity[j]))
		})
		b.FluidNormal[i] = normal.Mul(h)
	})
}

// akinciCohesion applies the Akinci et al. surface-tension model: a
// pairwise attraction along the particle separation plus a curvature
// term pulling neighboring surface normals together, both scaled by the
// symmetric 2*rho0/(rho_i+rho_j) correction so unequal-density pairs
// still conserve momentum on average (§4.7.3). Cohesion integrates over
// the whole frame's dt, not the substep's, since it's evaluated once per
// substep loop but is meant to act at the frame's time scale. Every lane
// only ever reads Position/FluidDensity/FluidNormal — none of which this
// pass mutates — so it writes straight into Velocity without a scratch
// swap, same as vorticityForce.
func (s *Solver) akinciCohesion(frameDt float32) {
	b := s.Buffers
	h := s.Config.KernelRadius
	rho0 := s.RestDensity
	sigma := s.Config.CohesionStrength
	n := b.N

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] >= 0 || b.Mass[i] <= 0 {
			return
		}
		pi := b.Position[i]
		invMass := b.InvMass[i]
		var accel mgl32.Vec3
		s.Grid.ForEachNeighbor(i, b.Position, n, 1, func(j int) {
			if j == i || b.Phase[j] >= 0 {
				return
			}
			rij := pi.Sub(b.Position[j])
			r := rij.Len()
			if r <= 0 {
				return
			}
			dir := rij.Mul(-1 / r) // points from i toward j

			cohesion := dir.Mul(sigma * b.Mass[i] * b.Mass[j] * kernels.Cohesion(r, h))
			curvature := b.FluidNormal[i].Sub(b.FluidNormal[j]).Mul(-sigma * b.Mass[i])

			denom := b.FluidDensity[i] + b.FluidDensity[j]
			if denom <= 0 {
				return
			}
			k := 2 * rho0 / denom
			accel = accel.Add(cohesion.Add(curvature).Mul(k * invMass))
		})
		b.Velocity[i] = b.Velocity[i].Add(accel.Mul(frameDt))
	})
}

// xsphViscosity damps relative fluid velocities toward the local
// neighborhood average (§4.7.2), giving fluids a coherent, less noisy
// motion without adding numerical dissipation to the rest of the
// simulation. The neighbor sum reads Velocity while every lane writes
// only its own scratch entry, so the pass commits through scratchVelocity
// rather than mutating Velocity mid-pass.
func (s *Solver) xsphViscosity() {
	b := s.Buffers
	h := s.Config.KernelRadius
	c := s.Config.XSPHC
	n := b.N

	sv := s.scratchVelocity[:n]
	copy(sv, b.Velocity[:n])

	device.ParallelEach(n, func(i int) {
		if b.Phase[i] >= 0 {
			return
		}
		pi := b.Position[i]
		var sum mgl32.Vec3
		s.Grid.ForEachNeighbor(i, b.Position, n, 1, func(j int) {
			if j == i || b.Phase[j] >= 0 || b.FluidDensity[j] <= 0 {
				return
			}
			rij := pi.Sub(b.Position[j])
			w := kernels.Poly6(rij.Len(), h)
			dv := b.Velocity[j].Sub(b.Velocity[i])
			sum = sum.Add(dv.Mul(w * b.Mass[j] / b.FluidDensity[j]))
		})
		sv[i] = b.Velocity[i].Add(sum.Mul(c))
	})

	copy(b.Velocity[:n], sv)
}
