package solver

import (
	"github.com/go-gl/mathgl/mgl32"

	"upbd/device"
	"upbd/kernels"
)

// shapeMatching snaps every rigid body to the best-fit rotation of its
// reference shape, once per inner constraint iteration (§4.5c). Bodies
// are independent of each other, so they're dispatched across the body
// index range the same way a per-particle pass is dispatched across the
// particle index range — each "lane" here is one rigid body's reduction.
func (s *Solver) shapeMatching() {
	b := s.Buffers
	device.Parallel(len(b.Bodies), func(lo, hi int) {
		for bi := lo; bi < hi; bi++ {
			s.matchOneBody(bi)
		}
	})
}

func (s *Solver) matchOneBody(bodyIndex int) {
	b := s.Buffers
	body := &b.Bodies[bodyIndex]
	lo, hi := body.ParticleLo, body.ParticleHi
	count := hi - lo
	if count == 0 {
		return
	}

	var centroid mgl32.Vec3
	for i := lo; i < hi; i++ {
		centroid = centroid.Add(b.PredictedPosition[i])
	}
	centroid = centroid.Mul(1 / float32(count))

	var a [9]float32 // column-major 3x3: a[col*3+row]
	for i := lo; i < hi; i++ {
		u := b.PredictedPosition[i].Sub(centroid)
		v := body.InitialPositionsCM[i-lo]
		for row := 0; row < 3; row++ {
			for col := 0; col < 3; col++ {
				a[col*3+row] += u[row] * v[col]
			}
		}
	}
	aMat := mgl32.Mat3{a[0], a[1], a[2], a[3], a[4], a[5], a[6], a[7], a[8]}

	rotation := kernels.ExtractRotation(aMat, body.Rotation, 1)

	for i := lo; i < hi; i++ {
		b.PredictedPosition[i] = centroid.Add(rotation.Rotate(body.InitialPositionsCM[i-lo]))
	}

	body.Rotation = rotation
	body.CenterOfMass = centroid
}
