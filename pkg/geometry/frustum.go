package geometry

import (
	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Frustum is a view frustum given by six inward-facing planes
type Frustum struct {
	Planes [6]core.Plane
}

// NewFrustum builds the frustum of a perspective camera. fovy is the vertical
// field of view in radians.
func NewFrustum(eye, target, up core.Vec3, fovy, aspect, near, far float64) Frustum {
	projection := mgl64.Perspective(fovy, aspect, near, far)
	view := mgl64.LookAtV(eye.Mgl(), target.Mgl(), up.Mgl())
	return FrustumFromMatrix(projection.Mul4(view))
}

// FrustumFromMatrix extracts the planes of a view-projection matrix
// (Gribb-Hartmann)
func FrustumFromMatrix(m mgl64.Mat4) Frustum {
	r0, r1, r2, r3 := m.Row(0), m.Row(1), m.Row(2), m.Row(3)
	rows := [6]mgl64.Vec4{
		r3.Add(r0), // left
		r3.Sub(r0), // right
		r3.Add(r1), // bottom
		r3.Sub(r1), // top
		r3.Add(r2), // near
		r3.Sub(r2), // far
	}

	var f Frustum
	for i, r := range rows {
		normal := core.NewVec3(r[0], r[1], r[2])
		length := normal.Length()
		if length == 0 {
			continue
		}
		f.Planes[i] = core.Plane{Normal: normal.Multiply(1 / length), D: r[3] / length}
	}
	return f
}

// Intersects reports whether any part of the volume may be inside the frustum
func (f Frustum) Intersects(v core.Volume) bool {
	for _, p := range f.Planes {
		// Wholly behind the plane
		if v.MinSignedDistance(p.Flip()) > 0 {
			return false
		}
	}
	return true
}
