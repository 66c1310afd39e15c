package geometry

import (
	"fmt"
	"math"
	"slices"

	"github.com/df07/go-corner-culling/pkg/core"
)

// Face is a planar face of a polyhedron. Plane faces outward.
type Face struct {
	Indices []int
	Plane   core.Plane
}

// Edge connects vertices A and B and is shared by exactly two faces
type Edge struct {
	A, B  int
	Faces [2]int
}

// ConvexPolyhedron is a closed convex volume occluder
type ConvexPolyhedron struct {
	Vertices []core.Vec3
	Faces    []Face
	Edges    []Edge
	centroid core.Vec3
	bbox     core.AABB
	kind     Kind
}

// NewConvexPolyhedron validates the vertices and face index lists and builds
// the face planes and edge adjacency. Face winding may be either direction;
// each face is oriented away from the centroid.
func NewConvexPolyhedron(vertices []core.Vec3, faces [][]int) (*ConvexPolyhedron, error) {
	if len(vertices) < 4 {
		return nil, fmt.Errorf("%w: polyhedron needs at least 4, got %d", ErrTooFewCorners, len(vertices))
	}
	if len(faces) < 4 {
		return nil, fmt.Errorf("%w: polyhedron needs at least 4 faces, got %d", ErrDegenerate, len(faces))
	}
	if err := checkFinite(vertices); err != nil {
		return nil, err
	}

	p := &ConvexPolyhedron{
		Vertices: slices.Clone(vertices),
		bbox:     core.NewAABBFromPoints(vertices...),
		centroid: core.Centroid(vertices),
		kind:     KindPolyhedron,
	}
	tol := tolerance(p.bbox)

	for fi, indices := range faces {
		face, err := p.buildFace(fi, indices, tol)
		if err != nil {
			return nil, err
		}
		p.Faces = append(p.Faces, face)
	}

	// Every vertex must be on or behind every face plane
	for fi, face := range p.Faces {
		for vi, v := range p.Vertices {
			if face.Plane.SignedDistance(v) > tol {
				return nil, fmt.Errorf("%w: corner %d in front of face %d", ErrNonConvex, vi, fi)
			}
		}
	}

	if err := p.buildEdges(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *ConvexPolyhedron) buildFace(fi int, indices []int, tol float64) (Face, error) {
	if len(indices) < 3 {
		return Face{}, fmt.Errorf("%w: face %d has %d corners", ErrDegenerate, fi, len(indices))
	}
	points := make([]core.Vec3, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(p.Vertices) {
			return Face{}, fmt.Errorf("%w: face %d references corner %d", ErrDegenerate, fi, idx)
		}
		points[i] = p.Vertices[idx]
	}

	normal := newellNormal(points)
	if normal.LengthSquared() < tol*tol {
		return Face{}, fmt.Errorf("%w: face %d has no area", ErrDegenerate, fi)
	}
	plane := core.NewPlane(normal, core.Centroid(points))
	for i, pt := range points {
		if math.Abs(plane.SignedDistance(pt)) > tol {
			return Face{}, fmt.Errorf("%w: face %d corner %d", ErrNonPlanar, fi, indices[i])
		}
	}

	order := slices.Clone(indices)
	switch d := plane.SignedDistance(p.centroid); {
	case math.Abs(d) <= tol:
		return Face{}, fmt.Errorf("%w: face %d passes through the centroid", ErrDegenerate, fi)
	case d > 0:
		plane = plane.Flip()
		slices.Reverse(order)
	}
	return Face{Indices: order, Plane: plane}, nil
}

// buildEdges collects the undirected edges and checks the surface is closed
func (p *ConvexPolyhedron) buildEdges() error {
	type key struct{ a, b int }
	owners := make(map[key][]int)
	var order []key

	for fi, face := range p.Faces {
		for i, a := range face.Indices {
			b := face.Indices[(i+1)%len(face.Indices)]
			k := key{min(a, b), max(a, b)}
			if _, ok := owners[k]; !ok {
				order = append(order, k)
			}
			owners[k] = append(owners[k], fi)
		}
	}

	for _, k := range order {
		faces := owners[k]
		if len(faces) != 2 {
			return fmt.Errorf("%w: edge %d-%d shared by %d faces", ErrDegenerate, k.a, k.b, len(faces))
		}
		p.Edges = append(p.Edges, Edge{A: k.a, B: k.b, Faces: [2]int{faces[0], faces[1]}})
	}
	return nil
}

func (p *ConvexPolyhedron) Kind() Kind { return p.kind }
func (p *ConvexPolyhedron) BoundingBox() core.AABB { return p.bbox }
func (p *ConvexPolyhedron) Centroid() core.Vec3 { return p.centroid }

func (p *ConvexPolyhedron) Contains(point core.Vec3, eps float64) bool {
	for _, face := range p.Faces {
		if face.Plane.SignedDistance(point) > eps {
			return false
		}
	}
	return true
}

// IntersectSegment clips the segment against every face plane (Cyrus-Beck)
func (p *ConvexPolyhedron) IntersectSegment(seg core.Segment) (float64, bool) {
	tEnter, tExit := 0.0, 1.0
	for _, face := range p.Faces {
		dist := face.Plane.SignedDistance(seg.Start)
		denom := face.Plane.Normal.Dot(seg.Delta)
		if math.Abs(denom) < 1e-12 {
			if dist > 0 {
				return 0, false
			}
			continue
		}
		t := -dist / denom
		if denom < 0 {
			tEnter = math.Max(tEnter, t)
		} else {
			tExit = math.Min(tExit, t)
		}
		if tEnter > tExit {
			return 0, false
		}
	}
	return tEnter, true
}
