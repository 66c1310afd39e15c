package visibility

import (
	"fmt"
	"math"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/silhouette"
)

// Cone is the shadow of a sphere: the tangent cone from the viewer, cut by
// the plane of the tangent circle
type Cone struct {
	Apex     core.Vec3
	Axis     core.Vec3 // unit
	sin, cos float64   // of the half angle
	Cap      core.Plane
}

// NewCone builds the shadow cone of sphere seen from viewer
func NewCone(sphere *geometry.Sphere, viewer core.Vec3, eps float64) (*Cone, error) {
	toCenter := sphere.Center.Subtract(viewer)
	d := toCenter.Length()
	if d <= sphere.Radius+eps {
		return nil, fmt.Errorf("%w: viewer inside sphere", silhouette.ErrDegenerateView)
	}

	axis := toCenter.Multiply(1 / d)
	sin := sphere.Radius / d
	// Distance along the axis to the tangent circle
	tangent := (d*d - sphere.Radius*sphere.Radius) / d

	return &Cone{
		Apex: viewer,
		Axis: axis,
		sin:  sin,
		cos:  math.Sqrt(1 - sin*sin),
		Cap:  core.NewPlane(axis, viewer.Add(axis.Multiply(tangent))),
	}, nil
}

// insideDistance returns how far p is inside the cone surface
func (c *Cone) insideDistance(p core.Vec3) float64 {
	q := p.Subtract(c.Apex)
	along := q.Dot(c.Axis)
	perp := q.Subtract(c.Axis.Multiply(along)).Length()
	return along*c.sin - perp*c.cos
}

func (c *Cone) Occludes(v core.Volume, eps float64) bool {
	if !(v.MinSignedDistance(c.Cap) > eps) {
		return false
	}

	switch vol := v.(type) {
	case core.Sphere:
		return c.insideDistance(vol.Origin) > vol.Radius+eps
	case core.Polytope:
		// The cone is convex, so a polytope is inside when all its corners are
		for _, p := range vol.Vertices() {
			if !(c.insideDistance(p) > eps) {
				return false
			}
		}
		return true
	default:
		bounds := v.BoundingBox()
		radius := bounds.Size().Length() / 2
		return c.insideDistance(bounds.Center()) > radius+eps
	}
}
