package visibility

import "github.com/df07/go-corner-culling/pkg/core"

// PeekExtents bounds how far a viewer may move before the next cull,
// typically latency times movement speed
type PeekExtents struct {
	Horizontal float64 `json:"horizontal"`
	Vertical   float64 `json:"vertical"`
}

// IsZero reports whether the viewer cannot peek
func (e PeekExtents) IsZero() bool {
	return e.Horizontal == 0 && e.Vertical == 0
}

// Peeks returns the positions the viewer could reach while looking at target:
// camera ± a horizontal offset perpendicular to the line of sight ± a vertical
// offset. With zero extents only the camera itself is returned.
func Peeks(camera, target core.Vec3, extents PeekExtents) []core.Vec3 {
	if extents.IsZero() {
		return []core.Vec3{camera}
	}

	dir := target.Subtract(camera)
	side := core.NewVec3(-dir.Y, dir.X, 0)
	if side.LengthSquared() < 1e-18 {
		// Looking straight up or down
		side = core.NewVec3(0, 1, 0)
	}
	horizontal := side.Normalize().Multiply(extents.Horizontal)
	vertical := core.NewVec3(0, 0, extents.Vertical)

	return []core.Vec3{
		camera.Add(horizontal).Add(vertical),
		camera.Add(horizontal).Subtract(vertical),
		camera.Subtract(horizontal).Add(vertical),
		camera.Subtract(horizontal).Subtract(vertical),
	}
}
