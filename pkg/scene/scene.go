package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/session"
	"github.com/df07/go-corner-culling/pkg/visibility"
)

// ErrUnknownScene is returned for scene ids that are neither built in nor on disk
var ErrUnknownScene = errors.New("unknown scene")

// Scene is an occluder map plus whatever looks at it
type Scene struct {
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Group       string              `json:"group,omitempty"`
	Occluders   []OccluderSpec      `json:"occluders"`
	Viewer      ViewerSpec          `json:"viewer"`
	Candidates  []CandidateSpec     `json:"candidates,omitempty"`
	Characters  []session.Character `json:"characters,omitempty"`
}

// OccluderSpec is one occluder of a scene file
type OccluderSpec struct {
	Descriptor geometry.Descriptor `json:"descriptor"`
	Transform  geometry.Transform  `json:"transform"`
	Dynamic    bool                `json:"dynamic,omitempty"`
}

// ViewerSpec is the point of view used by Frame
type ViewerSpec struct {
	ID       uint64                 `json:"id"`
	Position core.Vec3              `json:"position"`
	Target   *core.Vec3             `json:"target,omitempty"` // enables frustum rejection
	FOV      float64                `json:"fov,omitempty"`    // vertical, degrees
	Peek     visibility.PeekExtents `json:"peek,omitempty"`
}

// CandidateSpec is an object whose visibility is tested. A positive radius
// makes it a sphere, otherwise it is a box turned by yaw.
type CandidateSpec struct {
	ID          uint64    `json:"id"`
	Center      core.Vec3 `json:"center"`
	HalfExtents core.Vec3 `json:"half_extents,omitempty"`
	Yaw         float64   `json:"yaw,omitempty"`
	Radius      float64   `json:"radius,omitempty"`
}

// Volume returns the bounding volume of the candidate
func (c CandidateSpec) Volume() core.Volume {
	switch {
	case c.Radius > 0:
		return core.NewSphere(c.Center, c.Radius)
	case c.Yaw != 0:
		return core.NewOrientedBox(c.Center, c.HalfExtents, c.Yaw)
	default:
		return core.NewAABBFromCenter(c.Center, c.HalfExtents)
	}
}

// Box adds a box occluder
func (s *Scene) Box(center, halfExtents core.Vec3, yaw float64) {
	s.Occluders = append(s.Occluders, OccluderSpec{
		Descriptor: geometry.BoxDescriptor(halfExtents),
		Transform:  geometry.Transform{Translation: center, Rotation: core.NewVec3(0, 0, yaw)},
	})
}

// Wall adds an upright panel facing along the Y axis before the yaw is applied
func (s *Scene) Wall(center core.Vec3, width, height, yaw float64) {
	s.Occluders = append(s.Occluders, OccluderSpec{
		Descriptor: geometry.WallDescriptor(width, height),
		Transform:  geometry.Transform{Translation: center, Rotation: core.NewVec3(0, 0, yaw)},
	})
}

// Sphere adds a sphere occluder
func (s *Scene) Sphere(center core.Vec3, radius float64) {
	s.Occluders = append(s.Occluders, OccluderSpec{
		Descriptor: geometry.SphereDescriptor(radius),
		Transform:  geometry.Translate(center),
	})
}

// Candidate adds a box candidate with the next free id
func (s *Scene) Candidate(center, halfExtents core.Vec3) uint64 {
	id := uint64(len(s.Candidates) + 1)
	s.Candidates = append(s.Candidates, CandidateSpec{ID: id, Center: center, HalfExtents: halfExtents})
	return id
}

// Populate registers every occluder and commits
func (s *Scene) Populate(reg *registry.Registry) ([]registry.ID, error) {
	ids := make([]registry.ID, 0, len(s.Occluders))
	for i, o := range s.Occluders {
		id, err := reg.Register(o.Descriptor, o.Transform, o.Dynamic)
		if err != nil {
			return ids, fmt.Errorf("scene %s occluder %d: %w", s.Name, i, err)
		}
		ids = append(ids, id)
	}
	reg.Commit()
	return ids, nil
}

// Frame builds the culling input for the scene viewer and candidates
func (s *Scene) Frame(number uint64) culling.Frame {
	viewer := culling.Viewer{
		ID:       s.Viewer.ID,
		Position: s.Viewer.Position,
		Peek:     s.Viewer.Peek,
	}
	if s.Viewer.Target != nil {
		fov := s.Viewer.FOV
		if fov == 0 {
			fov = 90
		}
		frustum := geometry.NewFrustum(s.Viewer.Position, *s.Viewer.Target, core.NewVec3(0, 0, 1),
			fov*math.Pi/180, 16.0/9.0, 1, 100000)
		viewer.Frustum = &frustum
	}

	candidates := make([]culling.Candidate, len(s.Candidates))
	for i, c := range s.Candidates {
		candidates[i] = culling.Candidate{ID: c.ID, Bounds: c.Volume()}
	}
	return culling.Frame{Number: number, Viewer: viewer, Candidates: candidates}
}

// LoadFile reads a JSON scene file
func LoadFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scene %s: %w", path, err)
	}
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scene %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = sceneID(path)
	}
	return &s, nil
}

// SaveFile writes the scene as indented JSON
func (s *Scene) SaveFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
