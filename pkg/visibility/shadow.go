package visibility

import (
	"fmt"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/silhouette"
)

// Occlusion is a prepared test for one occluder seen from one viewpoint
type Occlusion interface {
	// Occludes reports whether every point of v is hidden with a margin of eps
	Occludes(v core.Volume, eps float64) bool
}

// Shadow is the region hidden behind a cornered occluder: the points in
// front of every plane
type Shadow struct {
	Planes []core.Plane
}

// NewShadow builds the shadow volume of a silhouette: one wedge plane through
// the viewer and each corner pair, oriented toward the occluder, plus each
// cap plane flipped to face away from the viewer
func NewShadow(s *silhouette.Silhouette, eps float64) (*Shadow, error) {
	shadow := &Shadow{Planes: make([]core.Plane, 0, len(s.Caps)+8)}

	for pair := range s.Pairs() {
		wedge, ok := core.NewPlaneFromPoints(s.Viewer, pair.A, pair.B)
		if !ok {
			return nil, fmt.Errorf("%w: viewer in line with corners %v and %v", silhouette.ErrDegenerateView, pair.A, pair.B)
		}
		wedge = wedge.OrientToward(s.Centroid)
		if wedge.SignedDistance(s.Centroid) <= eps {
			return nil, fmt.Errorf("%w: wedge through %v and %v grazes the occluder", silhouette.ErrDegenerateView, pair.A, pair.B)
		}
		shadow.Planes = append(shadow.Planes, wedge)
	}

	for _, c := range s.Caps {
		shadow.Planes = append(shadow.Planes, c.Flip())
	}
	for _, p := range shadow.Planes {
		if !p.Normal.IsFinite() {
			return nil, fmt.Errorf("%w: non-finite shadow plane", silhouette.ErrDegenerateView)
		}
	}
	return shadow, nil
}

func (s *Shadow) Occludes(v core.Volume, eps float64) bool {
	for _, p := range s.Planes {
		if !(v.MinSignedDistance(p) > eps) {
			return false
		}
	}
	return true
}
