// Package silhouette extracts the silhouette corners of convex occluders as
// seen from a viewer position.
package silhouette

import (
	"errors"
	"fmt"
	"iter"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
)

var (
	// ErrDegenerateView means the viewer is inside the occluder, on one of
	// its face planes or on a corner. Such an occluder must not cull.
	ErrDegenerateView = errors.New("degenerate view")
	// ErrNoCorners means the shape has a smooth silhouette
	ErrNoCorners = errors.New("shape has no corners")
)

// CornerPair is a silhouette edge between two occluder corners
type CornerPair struct {
	A, B core.Vec3
}

// Silhouette is the view-dependent outline of one occluder
type Silhouette struct {
	Viewer   core.Vec3
	Centroid core.Vec3
	// Caps are the outward planes of the faces turned toward the viewer
	Caps  []core.Plane
	pairs func(yield func(CornerPair) bool)
}

// Pairs lazily yields the silhouette corner pairs
func (s *Silhouette) Pairs() iter.Seq[CornerPair] {
	return s.pairs
}

// Extract computes the silhouette of shape as seen from viewer.
// eps is the distance under which the viewer counts as touching a face plane.
func Extract(shape geometry.Shape, viewer core.Vec3, eps float64) (*Silhouette, error) {
	if !viewer.IsFinite() {
		return nil, fmt.Errorf("%w: viewer position %v", ErrDegenerateView, viewer)
	}
	switch s := shape.(type) {
	case *geometry.ConvexPolyhedron:
		return extractPolyhedron(s, viewer, eps)
	case *geometry.ConvexPolygon:
		return extractPolygon(s, viewer, eps)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoCorners, shape.Kind())
	}
}

func extractPolyhedron(p *geometry.ConvexPolyhedron, viewer core.Vec3, eps float64) (*Silhouette, error) {
	front := make([]bool, len(p.Faces))
	var caps []core.Plane
	for i, face := range p.Faces {
		d := face.Plane.SignedDistance(viewer)
		if d >= -eps && d <= eps {
			return nil, fmt.Errorf("%w: viewer on face plane %d", ErrDegenerateView, i)
		}
		if d > 0 {
			front[i] = true
			caps = append(caps, face.Plane)
		}
	}
	// No face turned toward the viewer means the viewer is inside
	if len(caps) == 0 {
		return nil, fmt.Errorf("%w: viewer inside occluder", ErrDegenerateView)
	}

	return &Silhouette{
		Viewer:   viewer,
		Centroid: p.Centroid(),
		Caps:     caps,
		pairs: func(yield func(CornerPair) bool) {
			for _, e := range p.Edges {
				if front[e.Faces[0]] == front[e.Faces[1]] {
					continue
				}
				if !yield(CornerPair{A: p.Vertices[e.A], B: p.Vertices[e.B]}) {
					return
				}
			}
		},
	}, nil
}

func extractPolygon(p *geometry.ConvexPolygon, viewer core.Vec3, eps float64) (*Silhouette, error) {
	d := p.Plane.SignedDistance(viewer)
	if d >= -eps && d <= eps {
		return nil, fmt.Errorf("%w: viewer in the plane of the panel", ErrDegenerateView)
	}
	facing := p.Plane
	if d < 0 {
		facing = facing.Flip()
	}

	return &Silhouette{
		Viewer:   viewer,
		Centroid: p.Centroid(),
		Caps:     []core.Plane{facing},
		pairs: func(yield func(CornerPair) bool) {
			n := len(p.Vertices)
			for i, a := range p.Vertices {
				if !yield(CornerPair{A: a, B: p.Vertices[(i+1)%n]}) {
					return
				}
			}
		},
	}, nil
}
