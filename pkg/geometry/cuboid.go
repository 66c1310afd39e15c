package geometry

import (
	"github.com/df07/go-corner-culling/pkg/core"
)

// CuboidFaces lists the faces of a cuboid in terms of its 8 corners.
// Corners 0..3 are the top face and 4..7 the bottom face, with corner i+4
// directly below corner i.
var CuboidFaces = [6][4]int{
	{0, 1, 2, 3},
	{2, 6, 7, 3},
	{0, 3, 7, 4},
	{0, 4, 5, 1},
	{1, 5, 6, 2},
	{4, 7, 6, 5},
}

func cuboidFaceLists() [][]int {
	faces := make([][]int, len(CuboidFaces))
	for i, f := range CuboidFaces {
		faces[i] = f[:]
	}
	return faces
}

// NewCuboid builds a convex cuboid from 8 corners in CuboidFaces order.
// The corners need not form a rectangular box.
func NewCuboid(corners [8]core.Vec3) (*ConvexPolyhedron, error) {
	p, err := NewConvexPolyhedron(corners[:], cuboidFaceLists())
	if err != nil {
		return nil, err
	}
	p.kind = KindCuboid
	return p, nil
}

// NewBox builds an upright box around center with the given half extents,
// rotated by yaw radians around the Z axis
func NewBox(center, halfExtents core.Vec3, yaw float64) (*ConvexPolyhedron, error) {
	return NewCuboid(core.NewOrientedBox(center, halfExtents, yaw).Corners)
}

// BoxCorners returns the local corners of an axis-aligned box in CuboidFaces order
func BoxCorners(halfExtents core.Vec3) []core.Vec3 {
	corners := core.NewOrientedBox(core.Vec3{}, halfExtents, 0).Corners
	return corners[:]
}
