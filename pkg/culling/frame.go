package culling

import (
	"slices"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
	"github.com/df07/go-corner-culling/pkg/visibility"
)

// Viewer is the per-frame state of one point of view
type Viewer struct {
	ID       uint64
	Position core.Vec3
	Frustum  *geometry.Frustum       // optional; nil disables frustum rejection
	Peek     visibility.PeekExtents // optional; zero tests the position only
}

// Candidate is an object that may be drawn (or revealed) this frame
type Candidate struct {
	ID     uint64
	Bounds core.Volume
	Owner  any // host object, never touched by the culler
}

// Frame is the input of one culling pass
type Frame struct {
	Number     uint64
	Viewer     Viewer
	Candidates []Candidate
}

// Result holds the visibility flags of one frame. It is only meaningful for
// the frame it was computed for.
type Result struct {
	Frame    uint64
	ViewerID uint64
	Visible  map[uint64]bool
	Stats    FrameStats
}

func newResult(frame Frame) *Result {
	r := &Result{
		Frame:    frame.Number,
		ViewerID: frame.Viewer.ID,
		Visible:  make(map[uint64]bool, len(frame.Candidates)),
	}
	// Everything starts visible; only completed tests may hide a candidate
	for _, c := range frame.Candidates {
		r.Visible[c.ID] = true
	}
	return r
}

// IsVisible reports the flag of a candidate; unknown ids are visible
func (r *Result) IsVisible(id uint64) bool {
	visible, ok := r.Visible[id]
	return !ok || visible
}

// VisibleIDs returns the visible candidate ids in ascending order
func (r *Result) VisibleIDs() []uint64 {
	return r.ids(true)
}

// HiddenIDs returns the hidden candidate ids in ascending order
func (r *Result) HiddenIDs() []uint64 {
	return r.ids(false)
}

func (r *Result) ids(visible bool) []uint64 {
	var ids []uint64
	for id, v := range r.Visible {
		if v == visible {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
