package scene

import (
	"fmt"
	"slices"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/session"
	"github.com/df07/go-corner-culling/pkg/visibility"
)

// eye height of a standing character above the ground
const eyeHeight = 170

var builtins = map[string]func() *Scene{
	"corridor": NewCorridorScene,
	"pillars":  NewPillarsScene,
	"city":     NewCityScene,
	"arena":    NewArenaScene,
}

// BuiltinNames returns the ids of the built-in scenes in order
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Builtin creates the built-in scene called name
func Builtin(name string) (*Scene, error) {
	create, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScene, name)
	}
	return create(), nil
}

func characterBox() core.Vec3 {
	return session.CharacterHalfExtents
}

// NewCorridorScene creates a walled corridor along X with a low crossing
// block. The viewer stands at the open end.
func NewCorridorScene() *Scene {
	target := core.NewVec3(4000, 0, eyeHeight)
	s := &Scene{
		Name:        "corridor",
		Description: "Walled corridor with a crossing block",
		Viewer:      ViewerSpec{ID: 1000, Position: core.NewVec3(0, 0, eyeHeight), Target: &target, FOV: 100},
	}

	s.Box(core.NewVec3(2100, 300, 150), core.NewVec3(2000, 25, 150), 0)
	s.Box(core.NewVec3(2100, -300, 150), core.NewVec3(2000, 25, 150), 0)
	s.Box(core.NewVec3(1500, 0, 150), core.NewVec3(25, 150, 150), 0)

	s.Candidate(core.NewVec3(1000, 200, 100), characterBox())  // in front of the block
	s.Candidate(core.NewVec3(2500, 0, 100), characterBox())    // behind the block
	s.Candidate(core.NewVec3(2000, 800, 100), characterBox())  // outside the left wall
	s.Candidate(core.NewVec3(2000, -800, 100), characterBox()) // outside the right wall
	s.Candidate(core.NewVec3(3500, 250, 100), characterBox())  // far end, near the left wall
	s.Candidate(core.NewVec3(-500, 0, 100), characterBox())    // behind the viewer
	return s
}

// NewPillarsScene creates a 5x5 grid of pillars with candidates between them
func NewPillarsScene() *Scene {
	s := &Scene{
		Name:        "pillars",
		Description: "Grid of square pillars",
		Viewer:      ViewerSpec{ID: 1000, Position: core.NewVec3(0, 0, eyeHeight)},
	}
	for i := range 5 {
		for j := range 5 {
			s.Box(core.NewVec3(600+float64(i)*400, -800+float64(j)*400, 200), core.NewVec3(40, 40, 200), 0)
		}
	}
	for i := range 6 {
		for j := range 6 {
			s.Candidate(core.NewVec3(800+float64(i)*400, -1000+float64(j)*400, 100), characterBox())
		}
	}
	return s
}

// NewCityScene creates a 6x6 block grid of buildings of mixed height, some
// turned, with candidates at the street intersections and the viewer in
// the middle of town
func NewCityScene() *Scene {
	s := &Scene{
		Name:        "city",
		Description: "Buildings on a street grid",
		Viewer: ViewerSpec{
			ID:       1000,
			Position: core.NewVec3(0, 0, eyeHeight),
			Peek:     visibility.PeekExtents{Horizontal: 30, Vertical: 15},
		},
	}
	for i := range 6 {
		for j := range 6 {
			height := 600 + float64((i*j)%3)*300
			yaw := 0.0
			if (i+j)%4 == 0 {
				yaw = 0.3
			}
			center := core.NewVec3(-3000+float64(i)*1200, -3000+float64(j)*1200, height)
			s.Box(center, core.NewVec3(400, 400, height), yaw)
		}
	}
	for i := range 5 {
		for j := range 5 {
			if i == 2 && j == 2 {
				continue
			}
			s.Candidate(core.NewVec3(-2400+float64(i)*1200, -2400+float64(j)*1200, 100), characterBox())
		}
	}
	return s
}

// NewArenaScene creates a square arena with cover of every occluder kind and
// two teams of characters
func NewArenaScene() *Scene {
	s := &Scene{
		Name:        "arena",
		Description: "Arena with mixed cover and two teams",
		Viewer:      ViewerSpec{ID: 1, Position: core.NewVec3(-1500, -1500, eyeHeight)},
	}

	// Outer walls
	s.Box(core.NewVec3(0, 2025, 250), core.NewVec3(2050, 25, 250), 0)
	s.Box(core.NewVec3(0, -2025, 250), core.NewVec3(2050, 25, 250), 0)
	s.Box(core.NewVec3(2025, 0, 250), core.NewVec3(25, 2000, 250), 0)
	s.Box(core.NewVec3(-2025, 0, 250), core.NewVec3(25, 2000, 250), 0)

	// Cover
	s.Box(core.NewVec3(0, 0, 200), core.NewVec3(300, 300, 200), 0.785)
	s.Box(core.NewVec3(-900, 900, 150), core.NewVec3(200, 50, 150), 0)
	s.Box(core.NewVec3(900, -900, 150), core.NewVec3(200, 50, 150), 0)
	s.Wall(core.NewVec3(-900, -600, 150), 600, 300, 0)
	s.Wall(core.NewVec3(900, 600, 150), 600, 300, 0)
	s.Sphere(core.NewVec3(-1200, 0, 150), 150)
	s.Sphere(core.NewVec3(1200, 0, 150), 150)

	spawns := []struct {
		team   int
		center core.Vec3
	}{
		{0, core.NewVec3(-1500, -1500, 100)},
		{0, core.NewVec3(-1500, 1500, 100)},
		{1, core.NewVec3(1500, 1500, 100)},
		{1, core.NewVec3(1500, -1500, 100)},
	}
	for i, spawn := range spawns {
		s.Characters = append(s.Characters, session.Character{
			ID:     uint64(i + 1),
			Team:   spawn.team,
			Alive:  true,
			Center: spawn.center,
			Camera: spawn.center.Add(core.NewVec3(0, 0, eyeHeight-100)),
		})
		s.Candidates = append(s.Candidates, CandidateSpec{
			ID:          uint64(i + 1),
			Center:      spawn.center,
			HalfExtents: characterBox(),
		})
	}
	return s
}
