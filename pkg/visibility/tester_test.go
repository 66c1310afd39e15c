package visibility

import (
	"errors"
	"math"
	"testing"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
)

// blocker is a 2x2x2 box centered at (5, 0, 0)
func blocker(t *testing.T) geometry.Shape {
	t.Helper()
	box, err := geometry.NewBox(core.NewVec3(5, 0, 0), core.NewVec3(1, 1, 1), 0)
	if err != nil {
		t.Fatalf("Failed to build box: %v", err)
	}
	return box
}

var origin = []core.Vec3{core.NewVec3(0, 0, 0)}

func TestTester_BoxScenarios(t *testing.T) {
	tester := NewTester(DefaultEpsilon)

	tests := []struct {
		name     string
		volume   core.Volume
		expected Outcome
	}{
		{"Sphere directly behind", core.NewSphere(core.NewVec3(20, 0, 0), 1), Occluded},
		{"Box directly behind", core.NewAABBFromCenter(core.NewVec3(20, 0, 0), core.NewVec3(1, 1, 1)), Occluded},
		{"Character box behind", core.NewOrientedBox(core.NewVec3(40, 0, 0), core.NewVec3(1.5, 0.75, 1.5), 0.3), Occluded},
		{"Offset sideways", core.NewSphere(core.NewVec3(20, 10, 0), 1), NotOccluded},
		{"Partially behind", core.NewSphere(core.NewVec3(20, 4, 0), 1.5), NotOccluded},
		{"In front of the occluder", core.NewSphere(core.NewVec3(2, 0, 0), 0.1), NotOccluded},
		{"Behind the viewer", core.NewSphere(core.NewVec3(-20, 0, 0), 1), NotOccluded},
		{"Too large to hide", core.NewSphere(core.NewVec3(20, 0, 0), 10), NotOccluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tester.Test(blocker(t), origin, tt.volume)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTester_EpsilonBoundary(t *testing.T) {
	tester := NewTester(DefaultEpsilon)

	// The wedge through the viewer and the x=4, y=1 edge is the plane y = x/4.
	// A sphere at (20, 0, 0) touches it at this radius.
	touching := 5 / math.Sqrt(1+1.0/16)

	tests := []struct {
		name     string
		radius   float64
		expected Outcome
	}{
		{"Clearly inside", touching - 0.01, Occluded},
		{"Exactly on the boundary", touching, NotOccluded},
		{"Within epsilon of the boundary", touching - DefaultEpsilon/2, NotOccluded},
		{"Crossing the boundary", touching + 0.01, NotOccluded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tester.Test(blocker(t), origin, core.NewSphere(core.NewVec3(20, 0, 0), tt.radius))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTester_Degenerate(t *testing.T) {
	tester := NewTester(DefaultEpsilon)
	target := core.NewSphere(core.NewVec3(20, 0, 0), 1)

	tests := []struct {
		name   string
		viewer core.Vec3
	}{
		{"Viewer inside occluder", core.NewVec3(5, 0, 0)},
		{"Viewer on a corner", core.NewVec3(4, 1, 1)},
		{"Viewer on a face plane", core.NewVec3(4, 5, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tester.Test(blocker(t), []core.Vec3{tt.viewer}, target)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != Degenerate {
				t.Errorf("Expected degenerate, got %v", got)
			}
		})
	}
}

func TestTester_Wall(t *testing.T) {
	tester := NewTester(DefaultEpsilon)
	wall, err := geometry.WallDescriptor(4, 4).Build(geometry.Transform{
		Translation: core.NewVec3(5, 0, 0),
		Rotation:    core.NewVec3(0, 0, math.Pi/2),
	})
	if err != nil {
		t.Fatalf("Failed to build wall: %v", err)
	}

	behind, _ := tester.Test(wall, origin, core.NewSphere(core.NewVec3(15, 0, 0), 1))
	if behind != Occluded {
		t.Errorf("Expected sphere behind the wall to be occluded, got %v", behind)
	}
	beside, _ := tester.Test(wall, origin, core.NewSphere(core.NewVec3(15, 12, 0), 1))
	if beside != NotOccluded {
		t.Errorf("Expected sphere beside the wall to be visible, got %v", beside)
	}
	// Seen from the other side the same wall still hides the origin region
	reverse, _ := tester.Test(wall, []core.Vec3{core.NewVec3(15, 0, 0)}, core.NewSphere(core.NewVec3(-5, 0, 0), 1))
	if reverse != Occluded {
		t.Errorf("Expected occlusion from the far side, got %v", reverse)
	}
}

func TestTester_SphereOccluder(t *testing.T) {
	tester := NewTester(DefaultEpsilon)
	sphere, _ := geometry.NewSphere(core.NewVec3(10, 0, 0), 2)

	tests := []struct {
		name     string
		viewer   core.Vec3
		volume   core.Volume
		expected Outcome
	}{
		{"Sphere behind", core.Vec3{}, core.NewSphere(core.NewVec3(30, 0, 0), 1), Occluded},
		{"Box behind", core.Vec3{}, core.NewAABBFromCenter(core.NewVec3(30, 0, 0), core.NewVec3(1, 1, 1)), Occluded},
		{"Sphere beside", core.Vec3{}, core.NewSphere(core.NewVec3(30, 8, 0), 1), NotOccluded},
		{"Between viewer and occluder", core.Vec3{}, core.NewSphere(core.NewVec3(5, 0, 0), 0.5), NotOccluded},
		{"Viewer inside", core.NewVec3(10, 0, 0), core.NewSphere(core.NewVec3(30, 0, 0), 1), Degenerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tester.Test(sphere, []core.Vec3{tt.viewer}, tt.volume)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTester_SquashedSphereOccluder(t *testing.T) {
	tester := NewTester(DefaultEpsilon)
	squashed, err := geometry.SphereDescriptor(5).Build(geometry.Transform{
		Translation: core.NewVec3(10, 0, 0),
		Scale:       core.NewVec3(1, 1, 0.1),
	})
	if err != nil {
		t.Fatalf("Failed to build sphere: %v", err)
	}

	tests := []struct {
		name     string
		target   core.Volume
		expected Outcome
	}{
		// The sight line passes x=10 at z=2.67, above the 0.5 half height
		{"AboveThinAxis", core.NewSphere(core.NewVec3(30, 0, 8), 0.5), NotOccluded},
		{"DirectlyBehind", core.NewSphere(core.NewVec3(30, 0, 0), 0.1), Occluded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tester.Test(squashed, origin, tt.target)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestTester_PeeksMustAllBeOccluded(t *testing.T) {
	tester := NewTester(DefaultEpsilon)
	target := core.NewSphere(core.NewVec3(20, 0, 0), 1)

	still := Peeks(core.Vec3{}, target.Center(), PeekExtents{})
	if got, _ := tester.Test(blocker(t), still, target); got != Occluded {
		t.Errorf("Expected occluded without peeking, got %v", got)
	}

	peeking := Peeks(core.Vec3{}, target.Center(), PeekExtents{Horizontal: 3, Vertical: 0.5})
	if got, _ := tester.Test(blocker(t), peeking, target); got != NotOccluded {
		t.Errorf("Expected a peek around the corner to reveal the target, got %v", got)
	}
}

func TestPeeks(t *testing.T) {
	sideways := []core.Vec3{
		core.NewVec3(0, 3, 1),
		core.NewVec3(0, 3, -1),
		core.NewVec3(0, -3, 1),
		core.NewVec3(0, -3, -1),
	}
	tests := []struct {
		name     string
		target   core.Vec3
		expected []core.Vec3
	}{
		{"Ahead", core.NewVec3(10, 0, 0), sideways},
		{"Above", core.NewVec3(0, 0, 10), sideways},
		{"Below", core.NewVec3(0, 0, -10), sideways},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			peeks := Peeks(core.Vec3{}, tt.target, PeekExtents{Horizontal: 3, Vertical: 1})
			if len(peeks) != len(tt.expected) {
				t.Fatalf("Expected %d peeks, got %d", len(tt.expected), len(peeks))
			}
			for i := range tt.expected {
				if peeks[i].Subtract(tt.expected[i]).Length() > 1e-12 {
					t.Errorf("Peek %d: expected %v, got %v", i, tt.expected[i], peeks[i])
				}
			}
		})
	}
}

// unknownShape is a shape the tester has no shadow for
type unknownShape struct{}

func (unknownShape) Kind() geometry.Kind { return geometry.Kind(99) }
func (unknownShape) BoundingBox() core.AABB { return core.AABB{} }
func (unknownShape) Centroid() core.Vec3 { return core.Vec3{} }
func (unknownShape) Contains(core.Vec3, float64) bool { return false }
func (unknownShape) IntersectSegment(core.Segment) (float64, bool) { return 0, false }

func TestTester_Errors(t *testing.T) {
	tester := NewTester(0)
	if tester.Epsilon != DefaultEpsilon {
		t.Errorf("Expected default epsilon, got %g", tester.Epsilon)
	}

	if _, err := tester.Test(unknownShape{}, origin, core.NewSphere(core.NewVec3(20, 0, 0), 1)); !errors.Is(err, geometry.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
	if _, err := tester.Test(blocker(t), origin, core.NewSphere(core.NewVec3(math.NaN(), 0, 0), 1)); !errors.Is(err, ErrInvalidVolume) {
		t.Errorf("Expected ErrInvalidVolume, got %v", err)
	}
}

func TestTester_Idempotent(t *testing.T) {
	tester := NewTester(DefaultEpsilon)
	volume := core.NewSphere(core.NewVec3(20, 0.5, 0.2), 1)
	first, _ := tester.Test(blocker(t), origin, volume)
	for i := 0; i < 10; i++ {
		if got, _ := tester.Test(blocker(t), origin, volume); got != first {
			t.Fatalf("Run %d: expected %v, got %v", i, first, got)
		}
	}
}
