package geometry

import (
	"fmt"
	"math"
	"slices"

	"github.com/df07/go-corner-culling/pkg/core"
)

// ConvexPolygon is a flat convex occluder such as a wall panel.
// Vertices wind counter-clockwise around Plane.Normal.
type ConvexPolygon struct {
	Vertices []core.Vec3
	Plane    core.Plane
	centroid core.Vec3
	bbox     core.AABB
}

// NewConvexPolygon validates that the corners are planar, convex and not collinear
func NewConvexPolygon(vertices []core.Vec3) (*ConvexPolygon, error) {
	if len(vertices) < 3 {
		return nil, fmt.Errorf("%w: polygon needs at least 3, got %d", ErrTooFewCorners, len(vertices))
	}
	if err := checkFinite(vertices); err != nil {
		return nil, err
	}

	bbox := core.NewAABBFromPoints(vertices...)
	tol := tolerance(bbox)
	normal := newellNormal(vertices)
	if normal.LengthSquared() < tol*tol {
		return nil, fmt.Errorf("%w: corners are collinear", ErrDegenerate)
	}
	centroid := core.Centroid(vertices)
	plane := core.NewPlane(normal, centroid)

	for i, v := range vertices {
		if math.Abs(plane.SignedDistance(v)) > tol {
			return nil, fmt.Errorf("%w: corner %d", ErrNonPlanar, i)
		}
	}

	// Each turn must bend the same way as the Newell normal
	n := len(vertices)
	for i := range vertices {
		a := vertices[i]
		b := vertices[(i+1)%n]
		c := vertices[(i+2)%n]
		turn := b.Subtract(a).Cross(c.Subtract(b)).Dot(plane.Normal)
		if turn < -tol {
			return nil, fmt.Errorf("%w: reflex corner %d", ErrNonConvex, (i+1)%n)
		}
	}

	// A star winds more than once with every turn the same way; its corners
	// then fall outside some edge
	for i := range vertices {
		a := vertices[i]
		edge := vertices[(i+1)%n].Subtract(a)
		for j, v := range vertices {
			if edge.Cross(v.Subtract(a)).Dot(plane.Normal) < -tol {
				return nil, fmt.Errorf("%w: corner %d outside edge %d", ErrNonConvex, j, i)
			}
		}
	}

	return &ConvexPolygon{
		Vertices: slices.Clone(vertices),
		Plane:    plane,
		centroid: centroid,
		bbox:     bbox,
	}, nil
}

func (p *ConvexPolygon) Kind() Kind { return KindPolygon }

func (p *ConvexPolygon) BoundingBox() core.AABB { return p.bbox }

func (p *ConvexPolygon) Centroid() core.Vec3 { return p.centroid }

// Contains reports whether point lies on the panel within eps
func (p *ConvexPolygon) Contains(point core.Vec3, eps float64) bool {
	if math.Abs(p.Plane.SignedDistance(point)) > eps {
		return false
	}
	return p.insideEdges(point, eps)
}

func (p *ConvexPolygon) insideEdges(point core.Vec3, eps float64) bool {
	n := len(p.Vertices)
	for i, a := range p.Vertices {
		b := p.Vertices[(i+1)%n]
		inward := p.Plane.Normal.Cross(b.Subtract(a)).Normalize()
		if inward.Dot(point.Subtract(a)) < -eps {
			return false
		}
	}
	return true
}

// IntersectSegment returns where the segment crosses the panel
func (p *ConvexPolygon) IntersectSegment(seg core.Segment) (float64, bool) {
	denom := p.Plane.Normal.Dot(seg.Delta)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	t := -p.Plane.SignedDistance(seg.Start) / denom
	if t < 0 || t > 1 {
		return 0, false
	}
	return t, p.insideEdges(seg.At(t), 0)
}
