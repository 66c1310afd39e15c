package geometry

import (
	"fmt"
	"math"

	"github.com/df07/go-corner-culling/pkg/core"
)

// Kind identifies the occluder shape family
type Kind int

const (
	KindCuboid Kind = iota
	KindPolyhedron
	KindPolygon
	KindSphere
)

var kindNames = [...]string{"cuboid", "polyhedron", "polygon", "sphere"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind converts a kind name back to a Kind
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if name == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Shape is a validated convex occluder in world space
type Shape interface {
	Kind() Kind
	BoundingBox() core.AABB
	Centroid() core.Vec3
	// Contains reports whether p is inside the shape or within eps of its surface
	Contains(p core.Vec3, eps float64) bool
	// IntersectSegment returns the entry parameter of the segment into the shape
	IntersectSegment(seg core.Segment) (float64, bool)
}

// tolerance scales the geometric validation tolerance with the shape size
func tolerance(bbox core.AABB) float64 {
	return 1e-9 * math.Max(1, bbox.Size().Length())
}

func checkFinite(points []core.Vec3) error {
	for i, p := range points {
		if !p.IsFinite() {
			return fmt.Errorf("%w: corner %d is not finite", ErrDegenerate, i)
		}
	}
	return nil
}

// newellNormal computes the normal of a polygon that may be slightly non-planar
func newellNormal(points []core.Vec3) core.Vec3 {
	var n core.Vec3
	for i := range points {
		cur := points[i]
		next := points[(i+1)%len(points)]
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
	}
	return n
}
