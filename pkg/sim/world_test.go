package sim

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/session"
)

type testLogger struct{}

func (l *testLogger) Printf(format string, args ...interface{}) {}

type blockAll struct{}

func (blockAll) Blocked(core.Segment) bool { return true }

func ground(x, y float64) core.Vec3 {
	return core.NewVec3(x, y, session.CharacterHalfExtents.Z)
}

func only(t *testing.T, w *World) session.Character {
	t.Helper()
	chars := w.Characters()
	if len(chars) != 1 {
		t.Fatalf("Expected 1 character, got %d", len(chars))
	}
	return chars[0]
}

func TestWorld_Populate(t *testing.T) {
	config := DefaultConfig()
	config.Characters = 7
	config.Teams = 3
	w := NewWorld(config, nil)
	w.Populate()

	if w.Len() != 7 {
		t.Fatalf("Expected 7 characters, got %d", w.Len())
	}
	teams := make(map[int]int)
	limit := w.walkableHalfExtent()
	for i, c := range w.Characters() {
		if c.ID != uint64(i+1) {
			t.Errorf("Expected id %d, got %d", i+1, c.ID)
		}
		if !c.Alive {
			t.Errorf("Expected character %d alive", c.ID)
		}
		if math.Abs(c.Center.X) > limit || math.Abs(c.Center.Y) > limit {
			t.Errorf("Character %d spawned outside the arena at %v", c.ID, c.Center)
		}
		if c.Camera.Z-c.Center.Z != config.CameraHeight {
			t.Errorf("Expected camera %v above center, got %v", config.CameraHeight, c.Camera.Z-c.Center.Z)
		}
		teams[c.Team]++
	}
	if teams[0] != 3 || teams[1] != 2 || teams[2] != 2 {
		t.Errorf("Expected round-robin teams 3/2/2, got %v", teams)
	}
}

func TestWorld_PopulateIsSeeded(t *testing.T) {
	a := NewWorld(DefaultConfig(), nil)
	b := NewWorld(DefaultConfig(), nil)
	a.Populate()
	b.Populate()

	ca, cb := a.Characters(), b.Characters()
	for i := range ca {
		if ca[i].Center != cb[i].Center {
			t.Errorf("Expected equal seeds to spawn identically, got %v and %v", ca[i].Center, cb[i].Center)
		}
	}
}

func TestWorld_Step(t *testing.T) {
	config := DefaultConfig()
	config.ArenaHalfExtent = 200 // walkable to 170

	tests := []struct {
		name      string
		start     core.Vec3
		velocity  core.Vec3
		blocker   Blocker
		steps     int
		expectedX float64
		expectedY float64
	}{
		{"Straight", ground(0, 0), core.NewVec3(100, 0, 0), nil, 1, 100, 0},
		{"Diagonal", ground(0, 0), core.NewVec3(50, -50, 0), nil, 2, 100, -100},
		{"BounceX", ground(160, 0), core.NewVec3(100, 0, 0), nil, 2, 60, 0},
		{"BounceY", ground(0, -160), core.NewVec3(0, -100, 0), nil, 2, 0, -60},
		{"Blocked", ground(0, 0), core.NewVec3(100, 0, 0), blockAll{}, 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWorld(config, tt.blocker)
			w.Spawn(0, tt.start, tt.velocity)
			for range tt.steps {
				w.Step(time.Second)
			}

			c := only(t, w)
			if math.Abs(c.Center.X-tt.expectedX) > 1e-9 || math.Abs(c.Center.Y-tt.expectedY) > 1e-9 {
				t.Errorf("Expected (%v, %v), got (%v, %v)", tt.expectedX, tt.expectedY, c.Center.X, c.Center.Y)
			}
		})
	}
}

func TestWorld_BlockedReversesHeading(t *testing.T) {
	w := NewWorld(DefaultConfig(), blockAll{})
	w.Spawn(0, ground(0, 0), core.NewVec3(100, 0, 0))
	if yaw := only(t, w).Yaw; yaw != 0 {
		t.Errorf("Expected yaw 0 along +X, got %v", yaw)
	}

	w.Step(time.Second)
	if yaw := only(t, w).Yaw; math.Abs(yaw-math.Pi) > 1e-9 {
		t.Errorf("Expected yaw pi after reversing, got %v", yaw)
	}
}

func TestHeading(t *testing.T) {
	tests := []struct {
		name     string
		v        core.Vec3
		expected float64
	}{
		{"East", core.NewVec3(1, 0, 0), 0},
		{"North", core.NewVec3(0, 1, 0), math.Pi / 2},
		{"South", core.NewVec3(0, -1, 0), -math.Pi / 2},
		{"West", core.NewVec3(-1, 0, 0), math.Pi},
		{"WestNegativeZero", core.NewVec3(1, 0, 0).Negate(), math.Pi},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := heading(tt.v); math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestWorld_KillAndRemove(t *testing.T) {
	w := NewWorld(DefaultConfig(), nil)
	id := w.Spawn(1, ground(0, 0), core.NewVec3(100, 0, 0))
	other := w.Spawn(0, ground(500, 0), core.NewVec3(0, 100, 0))

	if err := w.Kill(id); err != nil {
		t.Fatalf("Expected kill to succeed, got %v", err)
	}
	w.Step(time.Second)

	chars := w.Characters()
	if chars[0].Alive {
		t.Error("Expected killed character to be dead")
	}
	if chars[0].Center.X != 0 {
		t.Errorf("Expected dead character to stay put, got X=%v", chars[0].Center.X)
	}
	if chars[1].Center.Y != 100 {
		t.Errorf("Expected living character to move, got Y=%v", chars[1].Center.Y)
	}

	if err := w.Remove(other); err != nil {
		t.Fatalf("Expected remove to succeed, got %v", err)
	}
	if w.Len() != 1 {
		t.Errorf("Expected 1 character after remove, got %d", w.Len())
	}
	if err := w.Remove(other); !errors.Is(err, ErrUnknownCharacter) {
		t.Errorf("Expected ErrUnknownCharacter, got %v", err)
	}
	if err := w.Kill(99); !errors.Is(err, ErrUnknownCharacter) {
		t.Errorf("Expected ErrUnknownCharacter, got %v", err)
	}
}

func TestWorld_Sync(t *testing.T) {
	reg := registry.New(&testLogger{})
	culler := culling.NewCuller(reg, culling.DefaultConfig(), &testLogger{})
	defer culler.Close()
	s := session.New(culler, reg, nil, session.DefaultConfig(), &testLogger{})

	config := DefaultConfig()
	config.Characters = 4
	w := NewWorld(config, nil)
	w.Populate()
	w.Sync(s)
	if got := len(s.Characters()); got != 4 {
		t.Fatalf("Expected 4 session characters, got %d", got)
	}

	w.Remove(2)
	w.Step(time.Second)
	w.Sync(s)
	chars := s.Characters()
	if len(chars) != 3 {
		t.Fatalf("Expected 3 session characters after remove, got %d", len(chars))
	}
	for _, c := range chars {
		if c.ID == 2 {
			t.Error("Expected removed character to leave the session")
		}
	}
	if chars[0].Center != w.Characters()[0].Center {
		t.Errorf("Expected session to hold the stepped position %v, got %v", w.Characters()[0].Center, chars[0].Center)
	}
}

func TestSnapshotBlocker(t *testing.T) {
	reg := registry.New(&testLogger{})
	if _, err := reg.Register(geometry.BoxDescriptor(core.NewVec3(50, 50, 100)), geometry.Translate(ground(0, 0)), false); err != nil {
		t.Fatalf("Expected register to succeed, got %v", err)
	}
	reg.Commit()
	b := SnapshotBlocker{Source: reg}

	tests := []struct {
		name     string
		seg      core.Segment
		expected bool
	}{
		{"Through", core.NewSegment(ground(-200, 0), ground(200, 0)), true},
		{"Beside", core.NewSegment(ground(-200, 100), ground(200, 100)), false},
		{"Short", core.NewSegment(ground(-200, 0), ground(-100, 0)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.Blocked(tt.seg); got != tt.expected {
				t.Errorf("Expected blocked=%v, got %v", tt.expected, got)
			}
		})
	}
}
