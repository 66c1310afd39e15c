package core

import "math"

// Volume is a candidate bounding volume that can be tested against half-spaces.
type Volume interface {
	// MinSignedDistance returns the smallest signed distance of any point
	// of the volume to the plane. A positive value means the whole volume
	// lies strictly in front of the plane.
	MinSignedDistance(p Plane) float64
	Center() Vec3
	BoundingBox() AABB
}

// Sphere is a bounding sphere
type Sphere struct {
	Origin Vec3
	Radius float64
}

// NewSphere creates a bounding sphere
func NewSphere(center Vec3, radius float64) Sphere {
	return Sphere{Origin: center, Radius: radius}
}

func (s Sphere) MinSignedDistance(p Plane) float64 {
	return p.SignedDistance(s.Origin) - s.Radius
}

func (s Sphere) Center() Vec3 { return s.Origin }

func (s Sphere) BoundingBox() AABB {
	return NewAABBFromCenter(s.Origin, NewVec3(s.Radius, s.Radius, s.Radius))
}

// MinSignedDistance uses the support point of the box in the direction
// opposite the plane normal.
func (aabb AABB) MinSignedDistance(p Plane) float64 {
	half := aabb.Size().Multiply(0.5)
	extent := math.Abs(p.Normal.X)*half.X + math.Abs(p.Normal.Y)*half.Y + math.Abs(p.Normal.Z)*half.Z
	return p.SignedDistance(aabb.Center()) - extent
}

// BoundingBox returns the box itself so AABB satisfies Volume
func (aabb AABB) BoundingBox() AABB { return aabb }

// OrientedBox is a box given by its 8 world-space corners.
// Corners 0..3 form the top face and 4..7 the bottom face, both wound the same way.
type OrientedBox struct {
	Corners [8]Vec3
}

// NewOrientedBox builds an oriented box from a center, half extents and a yaw
// angle (radians) around the Z axis.
func NewOrientedBox(center, halfExtents Vec3, yaw float64) OrientedBox {
	sin, cos := math.Sincos(yaw)
	local := [8]Vec3{
		{halfExtents.X, halfExtents.Y, halfExtents.Z},
		{-halfExtents.X, halfExtents.Y, halfExtents.Z},
		{-halfExtents.X, -halfExtents.Y, halfExtents.Z},
		{halfExtents.X, -halfExtents.Y, halfExtents.Z},
		{halfExtents.X, halfExtents.Y, -halfExtents.Z},
		{-halfExtents.X, halfExtents.Y, -halfExtents.Z},
		{-halfExtents.X, -halfExtents.Y, -halfExtents.Z},
		{halfExtents.X, -halfExtents.Y, -halfExtents.Z},
	}
	var box OrientedBox
	for i, v := range local {
		box.Corners[i] = Vec3{
			X: center.X + v.X*cos - v.Y*sin,
			Y: center.Y + v.X*sin + v.Y*cos,
			Z: center.Z + v.Z,
		}
	}
	return box
}

func (b OrientedBox) MinSignedDistance(p Plane) float64 {
	min := math.Inf(1)
	for _, c := range b.Corners {
		min = math.Min(min, p.SignedDistance(c))
	}
	return min
}

func (b OrientedBox) Center() Vec3 {
	return Centroid(b.Corners[:])
}

func (b OrientedBox) BoundingBox() AABB {
	return NewAABBFromPoints(b.Corners[:]...)
}

// Polytope is a volume with a finite vertex set
type Polytope interface {
	Volume
	Vertices() []Vec3
}

// Vertices returns the 8 corners of the box
func (aabb AABB) Vertices() []Vec3 {
	corners := aabb.Corners()
	return corners[:]
}

// Vertices returns the 8 corners of the box
func (b OrientedBox) Vertices() []Vec3 {
	return b.Corners[:]
}
