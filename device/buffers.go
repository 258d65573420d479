// Package device owns the fixed-capacity, bump-appended particle and
// rigid-body arrays the solver operates on, plus the worker-pool based
// "kernel launch" helper (Parallel) that stands in for a compute-device
// dispatch: SoA slices, pre-sized, never reallocated after construction.
package device

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// FluidPhase is the phase value reserved for fluid particles.
const FluidPhase int32 = -1

// RigidBody is one entry in the rigid-body table: a half-open particle
// range plus the reference shape and current orientation needed by shape
// matching.
type RigidBody struct {
	ID                 uuid.UUID
	ParticleLo         int
	ParticleHi         int // half-open [ParticleLo, ParticleHi)
	InitialPositionsCM []mgl32.Vec3 // reference shape, centroid at origin
	Rotation           mgl32.Quat
	CenterOfMass       mgl32.Vec3
}

// Buffers owns every per-particle array of the data model plus the
// rigid-body table. All slices are allocated to their declared capacity
// at construction and grown only by append, never reallocated.
type Buffers struct {
	// capacities
	Capacity  int
	MaxBodies int

	// live counts
	N int // active particles, 0 <= N <= Capacity
	R int // active rigid bodies, 0 <= R <= MaxBodies

	Position          []mgl32.Vec3
	PredictedPosition []mgl32.Vec3
	TempPosition      []mgl32.Vec3
	Velocity          []mgl32.Vec3

	Mass          []float32
	InvMass       []float32
	InvScaledMass []float32

	Phase []int32

	Omega        []mgl32.Vec3
	FluidLambda  []float32
	FluidDensity []float32
	FluidNormal  []mgl32.Vec3

	Bodies []RigidBody

	nextPhase int32 // monotonically increasing granular/rigid phase counter
}

// NewBuffers allocates every array to its declared capacity.
func NewBuffers(capacity, maxBodies int) *Buffers {
	if capacity < 0 || maxBodies < 0 {
		panic("device: negative capacity")
	}
	return &Buffers{
		Capacity:          capacity,
		MaxBodies:         maxBodies,
		Position:          make([]mgl32.Vec3, 0, capacity),
		PredictedPosition: make([]mgl32.Vec3, 0, capacity),
		TempPosition:      make([]mgl32.Vec3, 0, capacity),
		Velocity:          make([]mgl32.Vec3, 0, capacity),
		Mass:              make([]float32, 0, capacity),
		InvMass:           make([]float32, 0, capacity),
		InvScaledMass:     make([]float32, 0, capacity),
		Phase:             make([]int32, 0, capacity),
		Omega:             make([]mgl32.Vec3, 0, capacity),
		FluidLambda:       make([]float32, 0, capacity),
		FluidDensity:      make([]float32, 0, capacity),
		FluidNormal:       make([]mgl32.Vec3, 0, capacity),
		Bodies:            make([]RigidBody, 0, maxBodies),
		nextPhase:         1,
	}
}

// appendParticle is the single append path every AddX helper funnels
// through, keeping every parallel array in lock-step.
func (b *Buffers) appendParticle(pos mgl32.Vec3, mass float32, phase int32) {
	b.Position = append(b.Position, pos)
	b.PredictedPosition = append(b.PredictedPosition, pos)
	b.TempPosition = append(b.TempPosition, pos)
	b.Velocity = append(b.Velocity, mgl32.Vec3{})
	b.Mass = append(b.Mass, mass)
	b.InvMass = append(b.InvMass, 1/mass)
	b.InvScaledMass = append(b.InvScaledMass, 1/mass)
	b.Phase = append(b.Phase, phase)
	b.Omega = append(b.Omega, mgl32.Vec3{})
	b.FluidLambda = append(b.FluidLambda, 0)
	b.FluidDensity = append(b.FluidDensity, 0)
	b.FluidNormal = append(b.FluidNormal, mgl32.Vec3{})
	b.N++
}

// AddRigidBody appends a new rigid body's particles and reference shape.
// referencePositions must be centered at the origin (precondition of
// shape matching); worldPositions gives the particles' initial world-space
// placement. Every particle in the body shares one freshly minted
// positive phase id.
func (b *Buffers) AddRigidBody(worldPositions, referencePositions []mgl32.Vec3, massPerParticle float32) (uuid.UUID, error) {
	k := len(worldPositions)
	if k != len(referencePositions) {
		panic("device: AddRigidBody: worldPositions and referencePositions length mismatch")
	}
	if b.N+k > b.Capacity {
		return uuid.Nil, NewCapacityExceededError("particles", b.N+k, b.Capacity)
	}
	if b.R+1 > b.MaxBodies {
		return uuid.Nil, NewCapacityExceededError("rigid bodies", b.R+1, b.MaxBodies)
	}

	var centroid mgl32.Vec3
	for _, p := range referencePositions {
		centroid = centroid.Add(p)
	}
	if k > 0 {
		centroid = centroid.Mul(1 / float32(k))
	}
	if centroid.Len() >= 1e-5 {
		return uuid.Nil, NewOffCenterReferenceError(centroid.Len())
	}

	phase := b.nextPositivePhase()
	lo := b.N
	for i := 0; i < k; i++ {
		b.appendParticle(worldPositions[i], massPerParticle, phase)
	}
	hi := b.N

	ref := make([]mgl32.Vec3, k)
	copy(ref, referencePositions)

	var com mgl32.Vec3
	for _, p := range worldPositions {
		com = com.Add(p)
	}
	if k > 0 {
		com = com.Mul(1 / float32(k))
	}

	id := uuid.New()
	b.Bodies = append(b.Bodies, RigidBody{
		ID:                 id,
		ParticleLo:         lo,
		ParticleHi:         hi,
		InitialPositionsCM: ref,
		Rotation:           mgl32.Quat{W: 1, V: mgl32.Vec3{}},
		CenterOfMass:       com,
	})
	b.R++
	return id, nil
}

// AddGranulars appends free (non-rigid) solid particles, each receiving
// its own unique positive phase so no two granular particles are ever
// treated as one body by phase-equality tests; they collide with each
// other like solids of different bodies.
func (b *Buffers) AddGranulars(positions []mgl32.Vec3, massPerParticle float32) error {
	k := len(positions)
	if b.N+k > b.Capacity {
		return NewCapacityExceededError("particles", b.N+k, b.Capacity)
	}
	for _, p := range positions {
		b.appendParticle(p, massPerParticle, b.nextPositivePhase())
	}
	return nil
}

// AddFluids appends fluid particles, all tagged with FluidPhase.
func (b *Buffers) AddFluids(positions []mgl32.Vec3, massPerParticle float32) error {
	k := len(positions)
	if b.N+k > b.Capacity {
		return NewCapacityExceededError("particles", b.N+k, b.Capacity)
	}
	for _, p := range positions {
		b.appendParticle(p, massPerParticle, FluidPhase)
	}
	return nil
}

func (b *Buffers) nextPositivePhase() int32 {
	p := b.nextPhase
	b.nextPhase++
	return p
}
