package geometry

import (
	"fmt"

	"github.com/df07/go-corner-culling/pkg/core"
)

// Descriptor is the local-space description of an occluder shape
type Descriptor struct {
	Kind    Kind        `json:"kind"`
	Corners []core.Vec3 `json:"corners,omitempty"`
	Faces   [][]int     `json:"faces,omitempty"` // polyhedron only
	Radius  float64     `json:"radius,omitempty"` // sphere only
}

// BoxDescriptor describes an axis-aligned box centered on the local origin
func BoxDescriptor(halfExtents core.Vec3) Descriptor {
	return Descriptor{Kind: KindCuboid, Corners: BoxCorners(halfExtents)}
}

// WallDescriptor describes an upright panel in the local XZ plane,
// centered on the local origin
func WallDescriptor(width, height float64) Descriptor {
	w, h := width/2, height/2
	return Descriptor{
		Kind: KindPolygon,
		Corners: []core.Vec3{
			{X: -w, Z: -h},
			{X: w, Z: -h},
			{X: w, Z: h},
			{X: -w, Z: h},
		},
	}
}

// SphereDescriptor describes a sphere centered on the local origin
func SphereDescriptor(radius float64) Descriptor {
	return Descriptor{Kind: KindSphere, Radius: radius}
}

// Build transforms the descriptor into a validated world-space shape
func (d Descriptor) Build(t Transform) (Shape, error) {
	switch d.Kind {
	case KindCuboid:
		if len(d.Corners) != 8 {
			return nil, fmt.Errorf("%w: cuboid needs 8, got %d", ErrTooFewCorners, len(d.Corners))
		}
		var corners [8]core.Vec3
		copy(corners[:], t.ApplyAll(d.Corners))
		return NewCuboid(corners)
	case KindPolyhedron:
		return NewConvexPolyhedron(t.ApplyAll(d.Corners), d.Faces)
	case KindPolygon:
		return NewConvexPolygon(t.ApplyAll(d.Corners))
	case KindSphere:
		center := core.Vec3{}
		if len(d.Corners) > 0 {
			center = d.Corners[0]
		}
		// A squashed sphere is an ellipsoid; only its inscribed sphere is
		// guaranteed to block
		return NewSphere(t.Apply(center), d.Radius*t.MinScale())
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(d.Kind))
	}
}
