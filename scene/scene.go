// Package scene holds the plain data description consumed once, at
// solver construction: capacities, planes, and the initial rigid,
// granular, and fluid content. It carries no behavior of its own.
package scene

import "github.com/go-gl/mathgl/mgl32"

// Plane is a static half-space collider: points on the particle side of
// the plane satisfy (origin - p)*normal <= 0.
type Plane struct {
	Origin mgl32.Vec3
	Normal mgl32.Vec3 // must be unit length
}

// RigidBody describes one rigid body to append at construction.
// ReferencePositions must have their centroid at the origin.
type RigidBody struct {
	WorldPositions     []mgl32.Vec3
	ReferencePositions []mgl32.Vec3
	MassPerParticle    float32
}

// GranularGroup describes a set of free solid particles, each of which
// will receive its own unique phase.
type GranularGroup struct {
	Positions       []mgl32.Vec3
	MassPerParticle float32
}

// FluidGroup describes a set of fluid particles (phase -1).
type FluidGroup struct {
	Positions       []mgl32.Vec3
	MassPerParticle float32
}

// Description is the full scene the solver is constructed from.
type Description struct {
	MaxParticles   int
	MaxRigidBodies int
	ParticleRadius float32

	Planes      []Plane
	RigidBodies []RigidBody
	Granulars   []GranularGroup
	Fluids      []FluidGroup

	RestDensity float32

	// WorldMin/WorldMax bound the fixed-origin uniform grid (§4.3). The
	// spec's scene input doesn't name this explicitly, but a
	// fixed-origin grid needs known static extents from somewhere; this
	// is the solver's chosen home for it. Should comfortably contain
	// every position particles are expected to reach — positions
	// outside are clamped into the boundary cell, not rejected.
	WorldMin mgl32.Vec3
	WorldMax mgl32.Vec3
}
