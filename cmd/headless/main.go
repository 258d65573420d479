// Command headless runs a fixed scene through the solver for a fixed
// number of frames with no rendering, printing the particle bounding box
// every frame so the simulation's behavior can be eyeballed from a
// terminal, wiring scene construction and a fixed update loop behind
// flag.Parse rather than a windowing/GPU surface.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl32"

	"upbd/logging"
	"upbd/scene"
	"upbd/solver"
)

func main() {
	frames := flag.Int("frames", 120, "number of frames to simulate")
	frameDt := flag.Float64("dt", 1.0/60.0, "frame duration in seconds")
	particleRadius := flag.Float64("radius", 0.1, "particle radius")
	fluidSide := flag.Int("fluid-side", 8, "fluid block particles per axis (0 disables)")
	boxSide := flag.Int("box-side", 4, "rigid box particles per axis (0 disables)")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	logger := logging.NewDefaultLogger("headless", *debug)

	r := float32(*particleRadius)
	spacing := 1.9 * r

	desc := scene.Description{
		ParticleRadius: r,
		WorldMin:       mgl32.Vec3{-10, 0, -10},
		WorldMax:       mgl32.Vec3{10, 20, 10},
		RestDensity:    1000,
		Planes: []scene.Plane{
			{Origin: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}},
			{Origin: mgl32.Vec3{-10, 0, 0}, Normal: mgl32.Vec3{1, 0, 0}},
			{Origin: mgl32.Vec3{10, 0, 0}, Normal: mgl32.Vec3{-1, 0, 0}},
			{Origin: mgl32.Vec3{0, 0, -10}, Normal: mgl32.Vec3{0, 0, 1}},
			{Origin: mgl32.Vec3{0, 0, 10}, Normal: mgl32.Vec3{0, 0, -1}},
		},
	}

	if *fluidSide > 0 {
		fluid := cubeOfPositions(*fluidSide, spacing, mgl32.Vec3{-2, 8, -2})
		desc.Fluids = append(desc.Fluids, scene.FluidGroup{
			Positions:       fluid,
			MassPerParticle: 1,
		})
	}
	if *boxSide > 0 {
		box := cubeOfPositions(*boxSide, spacing, mgl32.Vec3{2, 4, 2})
		desc.RigidBodies = append(desc.RigidBodies, scene.RigidBody{
			WorldPositions:     box,
			ReferencePositions: centeredAtOrigin(box),
			MassPerParticle:    2,
		})
	}

	totalParticles := len(desc.Fluids)*pow3(*fluidSide) + len(desc.RigidBodies)*pow3(*boxSide)
	desc.MaxParticles = totalParticles
	desc.MaxRigidBodies = len(desc.RigidBodies)

	s, err := solver.New(desc, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to construct solver:", err)
		os.Exit(1)
	}

	dt := float32(*frameDt)
	for frame := 0; frame < *frames; frame++ {
		s.Update(dt)
		lo, hi := boundingBox(s.Buffers.Position[:s.Buffers.N])
		logger.Infof("frame %d: bbox lo=%v hi=%v", frame, lo, hi)
	}
}

func pow3(side int) int { return side * side * side }

func cubeOfPositions(side int, spacing float32, origin mgl32.Vec3) []mgl32.Vec3 {
	positions := make([]mgl32.Vec3, 0, pow3(side))
	for x := 0; x < side; x++ {
		for y := 0; y < side; y++ {
			for z := 0; z < side; z++ {
				offset := mgl32.Vec3{float32(x) * spacing, float32(y) * spacing, float32(z) * spacing}
				positions = append(positions, origin.Add(offset))
			}
		}
	}
	return positions
}

func centeredAtOrigin(positions []mgl32.Vec3) []mgl32.Vec3 {
	var centroid mgl32.Vec3
	for _, p := range positions {
		centroid = centroid.Add(p)
	}
	centroid = centroid.Mul(1 / float32(len(positions)))

	centered := make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		centered[i] = p.Sub(centroid)
	}
	return centered
}

func boundingBox(positions []mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	if len(positions) == 0 {
		return mgl32.Vec3{}, mgl32.Vec3{}
	}
	lo := positions[0]
	hi := positions[0]
	for _, p := range positions[1:] {
		for axis := 0; axis < 3; axis++ {
			lo[axis] = float32(math.Min(float64(lo[axis]), float64(p[axis])))
			hi[axis] = float32(math.Max(float64(hi[axis]), float64(p[axis])))
		}
	}
	return lo, hi
}
