package core

// Plane is the set of points p with Normal·p + D == 0.
// Points with a positive signed distance lie on the front side.
type Plane struct {
	Normal Vec3
	D      float64
}

// NewPlane creates a plane with the given normal through point.
// The normal is normalized.
func NewPlane(normal, point Vec3) Plane {
	n := normal.Normalize()
	return Plane{Normal: n, D: -n.Dot(point)}
}

// NewPlaneFromPoints creates the plane through a, b and c, with the normal
// following the right-hand rule for the winding a→b→c.
// ok is false when the points are collinear.
func NewPlaneFromPoints(a, b, c Vec3) (Plane, bool) {
	n := b.Subtract(a).Cross(c.Subtract(a))
	if n.LengthSquared() < 1e-18 {
		return Plane{}, false
	}
	return NewPlane(n, a), true
}

// SignedDistance returns the signed distance from p to the plane
func (p Plane) SignedDistance(point Vec3) float64 {
	return p.Normal.Dot(point) + p.D
}

// Flip returns the plane with the opposite orientation
func (p Plane) Flip() Plane {
	return Plane{Normal: p.Normal.Negate(), D: -p.D}
}

// OrientToward returns the plane oriented so that point is on its front side
func (p Plane) OrientToward(point Vec3) Plane {
	if p.SignedDistance(point) < 0 {
		return p.Flip()
	}
	return p
}
