// Package kernels implements the pure SPH smoothing kernels and small
// math helpers the solver builds on: poly6 density, the spiky pressure
// gradient, the Akinci cohesion kernel, and the iterative polar
// decomposition used by rigid-body shape matching. Every function here is
// side-effect free and deterministic for a given input.
package kernels

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Poly6 evaluates the poly6 density kernel at distance r for smoothing
// radius h. Zero outside the support radius.
func Poly6(r, h float32) float32 {
	if r < 0 || r >= h {
		return 0
	}
	hh := h * h
	rr := r * r
	diff := hh - rr
	coeff := float32(315.0 / (64.0 * math.Pi * float64(h*h*h*h*h*h*h*h*h)))
	return coeff * diff * diff * diff
}

// Poly6Gradient evaluates the gradient of the poly6 kernel for the
// displacement rij = pi - pj, used by the cohesion surface-normal
// estimate. Zero outside the support radius.
func Poly6Gradient(rij mgl32.Vec3, h float32) mgl32.Vec3 {
	r := rij.Len()
	if r <= 0 || r >= h {
		return mgl32.Vec3{}
	}
	hh := h * h
	rr := r * r
	diff := hh - rr
	coeff := float32(-945.0 / (32.0 * math.Pi * float64(h*h*h*h*h*h*h*h*h)))
	return rij.Mul(coeff * diff * diff)
}

// SpikyGradient evaluates the gradient of the spiky kernel for the
// displacement rij = pi - pj. Returns the zero vector when |rij| is zero
// or outside the support radius, guarding the r=0 singularity.
func SpikyGradient(rij mgl32.Vec3, h float32) mgl32.Vec3 {
	r := rij.Len()
	if r <= 0 || r >= h {
		return mgl32.Vec3{}
	}
	coeff := float32(-45.0 / (math.Pi * float64(h*h*h*h*h*h)))
	m := coeff * (h - r) * (h - r)
	return rij.Mul(m / r)
}

// Cohesion evaluates the Akinci surface-tension kernel (piecewise cubic,
// compact support h). See "Versatile Surface Tension and Adhesion for SPH
// Fluids" (Akinci et al. 2013).
func Cohesion(r, h float32) float32 {
	if r <= 0 || r > h {
		return 0
	}
	coeff := float32(32.0 / (math.Pi * float64(h*h*h*h*h*h*h*h*h)))
	half := h / 2
	switch {
	case r > half:
		t := (h - r)
		return coeff * t * t * t * r * r * r
	default:
		t := (h - r)
		term := 2*t*t*t*r*r*r - float32(math.Pow(float64(h), 6))/64
		return coeff * term
	}
}

// ExtractRotation refines an initial-guess quaternion q toward the
// rotational part of the 3x3 matrix A via one (or more) steps of
// Muller's iterative polar decomposition. Shape matching calls this with
// iterations=1 per substep; it is exposed as a parameter so tests can
// converge it further when checking against a closed-form SVD reference.
func ExtractRotation(a mgl32.Mat3, q mgl32.Quat, iterations int) mgl32.Quat {
	for iter := 0; iter < iterations; iter++ {
		r := quatToMat3(q)
		rCol0, rCol1, rCol2 := r.Col(0), r.Col(1), r.Col(2)
		aCol0, aCol1, aCol2 := a.Col(0), a.Col(1), a.Col(2)

		numerator := rCol0.Cross(aCol0).Add(rCol1.Cross(aCol1)).Add(rCol2.Cross(aCol2))
		denom := float32(math.Abs(float64(rCol0.Dot(aCol0)+rCol1.Dot(aCol1)+rCol2.Dot(aCol2)))) + 1e-9

		omega := numerator.Mul(1 / denom)
		angle := omega.Len()
		if angle < 1e-9 {
			break
		}
		axis := omega.Mul(1 / angle)
		delta := mgl32.QuatRotate(angle, axis)
		q = delta.Mul(q).Normalize()
	}
	return q
}

// quatToMat3 converts a rotation quaternion to its 3x3 matrix form,
// dropping the translation row/column a Mat4 would carry.
func quatToMat3(q mgl32.Quat) mgl32.Mat3 {
	m4 := q.Mat4()
	return mgl32.Mat3{
		m4[0], m4[1], m4[2],
		m4[4], m4[5], m4[6],
		m4[8], m4[9], m4[10],
	}
}
