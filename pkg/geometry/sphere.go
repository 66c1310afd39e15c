package geometry

import (
	"fmt"
	"math"

	"github.com/df07/go-corner-culling/pkg/core"
)

// Sphere is a spherical occluder
type Sphere struct {
	Center core.Vec3
	Radius float64
}

// NewSphere creates a sphere occluder; the radius must be positive and finite
func NewSphere(center core.Vec3, radius float64) (*Sphere, error) {
	if !center.IsFinite() {
		return nil, fmt.Errorf("%w: center is not finite", ErrDegenerate)
	}
	if !(radius > 0) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("%w: radius %v", ErrDegenerate, radius)
	}
	return &Sphere{Center: center, Radius: radius}, nil
}

func (s *Sphere) Kind() Kind { return KindSphere }

func (s *Sphere) BoundingBox() core.AABB {
	return core.NewAABBFromCenter(s.Center, core.NewVec3(s.Radius, s.Radius, s.Radius))
}

func (s *Sphere) Centroid() core.Vec3 { return s.Center }

func (s *Sphere) Contains(p core.Vec3, eps float64) bool {
	return p.Distance(s.Center) <= s.Radius+eps
}

// IntersectSegment solves the ray-sphere quadratic restricted to [0, 1]
func (s *Sphere) IntersectSegment(seg core.Segment) (float64, bool) {
	oc := seg.Start.Subtract(s.Center)
	a := seg.Delta.LengthSquared()
	halfB := oc.Dot(seg.Delta)
	c := oc.LengthSquared() - s.Radius*s.Radius

	if c <= 0 {
		return 0, true // starts inside
	}
	if a == 0 {
		return 0, false
	}
	discriminant := halfB*halfB - a*c
	if discriminant < 0 {
		return 0, false
	}
	t := (-halfB - math.Sqrt(discriminant)) / a
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, true
}
