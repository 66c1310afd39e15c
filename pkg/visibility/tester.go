// Package visibility decides whether a bounding volume is hidden behind an
// occluder from a set of viewpoints.
package visibility

import (
	"errors"
	"fmt"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/silhouette"
)

// DefaultEpsilon is the occlusion margin in world units. Volumes closer than
// this to a shadow boundary count as visible.
const DefaultEpsilon = 1e-3

// ErrInvalidVolume is returned for candidate volumes with non-finite values
var ErrInvalidVolume = errors.New("invalid bounding volume")

// Outcome is the result of testing one candidate against one occluder
type Outcome int

const (
	NotOccluded Outcome = iota
	Occluded
	// Degenerate means the occluder could not be used from this viewpoint
	Degenerate
)

func (o Outcome) String() string {
	switch o {
	case NotOccluded:
		return "not-occluded"
	case Occluded:
		return "occluded"
	case Degenerate:
		return "degenerate"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Tester prepares occlusion tests with a fixed epsilon
type Tester struct {
	Epsilon float64
}

// NewTester creates a tester; a non-positive epsilon uses DefaultEpsilon
func NewTester(eps float64) *Tester {
	if eps <= 0 {
		eps = DefaultEpsilon
	}
	return &Tester{Epsilon: eps}
}

// Prepare builds the occlusion test of shape from viewer. Errors wrapping
// silhouette.ErrDegenerateView mean the occluder cannot cull from here;
// any other error means the occluder itself is unusable.
func (t *Tester) Prepare(shape geometry.Shape, viewer core.Vec3) (Occlusion, error) {
	switch s := shape.(type) {
	case *geometry.Sphere:
		return NewCone(s, viewer, t.Epsilon)
	case *geometry.ConvexPolyhedron, *geometry.ConvexPolygon:
		sil, err := silhouette.Extract(shape, viewer, t.Epsilon)
		if err != nil {
			return nil, err
		}
		return NewShadow(sil, t.Epsilon)
	default:
		return nil, fmt.Errorf("%w: %T", geometry.ErrUnknownKind, shape)
	}
}

// Test reports whether volume is hidden behind shape from every viewpoint.
// A single visible or degenerate viewpoint keeps the volume visible.
func (t *Tester) Test(shape geometry.Shape, viewpoints []core.Vec3, volume core.Volume) (Outcome, error) {
	if err := CheckVolume(volume); err != nil {
		return NotOccluded, err
	}
	for _, vp := range viewpoints {
		occlusion, err := t.Prepare(shape, vp)
		if errors.Is(err, silhouette.ErrDegenerateView) {
			return Degenerate, nil
		}
		if err != nil {
			return NotOccluded, err
		}
		if !occlusion.Occludes(volume, t.Epsilon) {
			return NotOccluded, nil
		}
	}
	if len(viewpoints) == 0 {
		return NotOccluded, nil
	}
	return Occluded, nil
}

// CheckVolume rejects volumes with non-finite bounds
func CheckVolume(v core.Volume) error {
	if v == nil {
		return fmt.Errorf("%w: nil", ErrInvalidVolume)
	}
	b := v.BoundingBox()
	if !b.Min.IsFinite() || !b.Max.IsFinite() || !b.IsValid() {
		return fmt.Errorf("%w: bounds %v", ErrInvalidVolume, b)
	}
	return nil
}
