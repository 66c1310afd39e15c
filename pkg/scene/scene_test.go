package scene

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/registry"
)

type testLogger struct{}

func (l *testLogger) Printf(format string, args ...interface{}) {}

func TestBuiltins_Populate(t *testing.T) {
	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			s, err := Builtin(name)
			if err != nil {
				t.Fatalf("Expected built-in scene, got %v", err)
			}
			reg := registry.New(&testLogger{})
			ids, err := s.Populate(reg)
			if err != nil {
				t.Fatalf("Expected every occluder to register, got %v", err)
			}
			if len(ids) != len(s.Occluders) {
				t.Errorf("Expected %d ids, got %d", len(s.Occluders), len(ids))
			}
			if got := reg.Snapshot().Len(); got != len(s.Occluders) {
				t.Errorf("Expected %d committed occluders, got %d", len(s.Occluders), got)
			}
			if len(s.Candidates) == 0 {
				t.Errorf("Expected candidates in scene %s", name)
			}
		})
	}
}

func TestBuiltin_Unknown(t *testing.T) {
	if _, err := Builtin("cornell-box"); !errors.Is(err, ErrUnknownScene) {
		t.Errorf("Expected ErrUnknownScene, got %v", err)
	}
}

func TestCorridor_Culling(t *testing.T) {
	s := NewCorridorScene()
	reg := registry.New(&testLogger{})
	if _, err := s.Populate(reg); err != nil {
		t.Fatal(err)
	}

	config := culling.DefaultConfig()
	config.FrameBudget = 0
	culler := culling.NewCuller(reg, config, &testLogger{})
	defer culler.Close()

	result, err := culler.Cull(context.Background(), s.Frame(1))
	if err != nil {
		t.Fatalf("Expected cull to succeed, got %v", err)
	}

	expected := map[uint64]bool{
		1: true,  // in front of the block
		2: false, // behind the block
		3: false, // outside the left wall
		4: false, // outside the right wall
		6: false, // behind the viewer
	}
	for id, visible := range expected {
		if result.IsVisible(id) != visible {
			t.Errorf("Candidate %d: expected visible=%v, got %v", id, visible, result.IsVisible(id))
		}
	}
	if result.Stats.FrustumCulled != 1 {
		t.Errorf("Expected 1 frustum-culled candidate, got %d", result.Stats.FrustumCulled)
	}
}

func TestCandidateSpec_Volume(t *testing.T) {
	tests := []struct {
		name     string
		spec     CandidateSpec
		expected string
	}{
		{"Sphere", CandidateSpec{Center: core.NewVec3(1, 2, 3), Radius: 2}, "sphere"},
		{"Oriented", CandidateSpec{Center: core.NewVec3(1, 2, 3), HalfExtents: core.NewVec3(1, 1, 1), Yaw: 0.5}, "oriented"},
		{"Axis aligned", CandidateSpec{Center: core.NewVec3(1, 2, 3), HalfExtents: core.NewVec3(1, 1, 1)}, "aabb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := tt.spec.Volume()
			var got string
			switch v.(type) {
			case core.Sphere:
				got = "sphere"
			case core.OrientedBox:
				got = "oriented"
			case core.AABB:
				got = "aabb"
			}
			if got != tt.expected {
				t.Errorf("Expected %s volume, got %T", tt.expected, v)
			}
			if c := v.Center(); c.Distance(tt.spec.Center) > 1e-9 {
				t.Errorf("Expected center %v, got %v", tt.spec.Center, c)
			}
		})
	}
}

func TestSceneFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arena-copy.json")

	want := NewArenaScene()
	if err := want.SaveFile(path); err != nil {
		t.Fatalf("Expected save to succeed, got %v", err)
	}
	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Expected load to succeed, got %v", err)
	}

	if got.Name != want.Name || len(got.Occluders) != len(want.Occluders) || len(got.Characters) != len(want.Characters) {
		t.Fatalf("Expected %s with %d occluders, got %s with %d", want.Name, len(want.Occluders), got.Name, len(got.Occluders))
	}
	for i, o := range got.Occluders {
		if o.Descriptor.Kind != want.Occluders[i].Descriptor.Kind || o.Transform != want.Occluders[i].Transform {
			t.Errorf("Occluder %d: expected %+v, got %+v", i, want.Occluders[i], o)
		}
	}

	// Loaded occluders still build
	reg := registry.New(&testLogger{})
	if _, err := got.Populate(reg); err != nil {
		t.Errorf("Expected loaded scene to populate, got %v", err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadFile(filepath.Join(dir, "missing.json")); err == nil {
		t.Errorf("Expected error for a missing file")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte(`{"occluders": [{"descriptor": {"kind": "torus"}}]}`), 0644)
	if _, err := LoadFile(bad); !errors.Is(err, geometry.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestPopulate_RejectsBadOccluder(t *testing.T) {
	s := &Scene{Name: "broken"}
	s.Box(core.Vec3{}, core.NewVec3(1, 1, 1), 0)
	s.Occluders = append(s.Occluders, OccluderSpec{Descriptor: geometry.Descriptor{Kind: geometry.KindPolygon}})

	reg := registry.New(&testLogger{})
	ids, err := s.Populate(reg)
	if !errors.Is(err, geometry.ErrTooFewCorners) {
		t.Errorf("Expected ErrTooFewCorners, got %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("Expected the valid occluder to be registered, got %d ids", len(ids))
	}
}
