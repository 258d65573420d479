// Package solver implements the per-substep ordering of §4.8: gravity,
// prediction, shock-propagation mass scaling, stabilization, grid-driven
// constraint projection (plane, fluid density/PBF, rigid shape matching),
// velocity reconstruction with sleeping, and fluid post-processing
// (vorticity confinement, Akinci cohesion, XSPH viscosity).
//
// A Solver owns every buffer it touches; two Solvers never share state,
// and Update is a synchronous, blocking call — a pure function of its
// current arrays and the caller-supplied dt, matching §5's "no host
// thread reads device memory during a substep" and §4.8's "pure function"
// requirement. See SPEC_FULL.md §5/§9 for why this repo does not adopt
// the teacher's async double-buffered physics-loop pattern.
package solver

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"upbd/device"
	"upbd/grid"
	"upbd/logging"
	"upbd/scene"
)

// Solver is one simulation instance: its buffers, grid, static scene
// geometry, and tunables.
type Solver struct {
	Buffers     *device.Buffers
	Grid        *grid.Grid
	Planes      []scene.Plane
	Config      Config
	RestDensity float32

	logger logging.Logger

	// scratchVelocity is the output buffer of the XSPH viscosity gather
	// pass: every lane reads a stable Buffers.Velocity while writing a
	// disjoint scratch entry, and the result is copied back afterward, per
	// §9's "cyclic/shared state -> explicit double-buffering". Vorticity
	// confinement and cohesion write Velocity directly.
	scratchVelocity []mgl32.Vec3
}

// New constructs a Solver from a scene description, appending every
// rigid body, granular group, and fluid group in order. Capacity and
// off-center-reference violations are returned as errors (never panics);
// logger may be nil, in which case a no-op logger is used.
func New(desc scene.Description, logger logging.Logger) (*Solver, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	buffers := device.NewBuffers(desc.MaxParticles, desc.MaxRigidBodies)

	for _, rb := range desc.RigidBodies {
		if _, err := buffers.AddRigidBody(rb.WorldPositions, rb.ReferencePositions, rb.MassPerParticle); err != nil {
			logger.ConstructionError(err)
			return nil, err
		}
	}
	for _, gg := range desc.Granulars {
		if err := buffers.AddGranulars(gg.Positions, gg.MassPerParticle); err != nil {
			logger.ConstructionError(err)
			return nil, err
		}
	}
	for _, fg := range desc.Fluids {
		if err := buffers.AddFluids(fg.Positions, fg.MassPerParticle); err != nil {
			logger.ConstructionError(err)
			return nil, err
		}
	}

	cfg := DefaultConfig(desc.ParticleRadius)
	cellSize := cfg.KernelRadius

	dims := gridDims(desc.WorldMin, desc.WorldMax, cellSize)
	g := grid.NewGrid(desc.WorldMin, cellSize, dims)

	s := &Solver{
		Buffers:         buffers,
		Grid:            g,
		Planes:          append([]scene.Plane(nil), desc.Planes...),
		Config:          cfg,
		RestDensity:     desc.RestDensity,
		logger:          logger,
		scratchVelocity: make([]mgl32.Vec3, desc.MaxParticles),
	}

	logger.Debugf("solver: constructed with %d particles, %d rigid bodies", buffers.N, buffers.R)
	return s, nil
}

func gridDims(worldMin, worldMax mgl32.Vec3, cellSize float32) [3]int32 {
	extent := worldMax.Sub(worldMin)
	dim := func(e float32) int32 {
		d := int32(math.Ceil(float64(e / cellSize)))
		if d < 1 {
			d = 1
		}
		return d
	}
	return [3]int32{dim(extent.X()), dim(extent.Y()), dim(extent.Z())}
}

// Update advances the simulation by one frame of duration dt, split into
// Config.Substeps equal sub-steps, following the pipeline of spec §4.8
// exactly.
func (s *Solver) Update(dt float32) {
	if s.Buffers.N == 0 {
		return
	}
	substeps := s.Config.Substeps
	if substeps < 1 {
		substeps = 1
	}
	subDt := dt / float32(substeps)

	for step := 0; step < substeps; step++ {
		s.applyGravity(subDt)
		s.predict(subDt)
		s.computeShockMasses()
		s.stabilize()

		for outer := 0; outer < s.Config.GridIters; outer++ {
			s.Grid.Build(s.Buffers.PredictedPosition, s.Buffers.N)
			for inner := 0; inner < s.Config.ConstraintIters; inner++ {
				s.planeConstraint()
				if s.Config.EnableParticleCollision {
					s.particleCollision()
				}
				s.fluidLambda()
				s.fluidPositionCorrection()
				if s.Buffers.R > 0 {
					s.shapeMatching()
				}
			}
		}

		s.updateVelocity(subDt)
		sleeping := s.commitPositions()

		s.vorticity()
		s.vorticityForce(subDt)
		if s.Config.EnableCohesion {
			s.computeFluidNormals()
			s.akinciCohesion(dt)
		}
		s.xsphViscosity()

		s.logger.SubstepDiagnostics(step, s.Buffers.N, s.Buffers.R, s.Grid.OccupiedCells(), sleeping)
	}
}
