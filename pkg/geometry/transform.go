package geometry

import (
	"math"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/go-gl/mathgl/mgl64"
)

// Transform places local occluder corners in the world.
// Rotation holds the angles in radians around each axis; Z (yaw) is applied
// after Y (pitch) and X (roll).
// A zero Scale is treated as unit scale.
type Transform struct {
	Translation core.Vec3 `json:"translation"`
	Rotation    core.Vec3 `json:"rotation"`
	Scale       core.Vec3 `json:"scale"`
}

// Identity returns the identity transform
func Identity() Transform {
	return Transform{Scale: core.NewVec3(1, 1, 1)}
}

// Translate returns a transform that only translates
func Translate(offset core.Vec3) Transform {
	return Transform{Translation: offset, Scale: core.NewVec3(1, 1, 1)}
}

func (t Transform) scale() core.Vec3 {
	if t.Scale == (core.Vec3{}) {
		return core.NewVec3(1, 1, 1)
	}
	return t.Scale
}

// Matrix compiles the transform to translate * rotate * scale
func (t Transform) Matrix() mgl64.Mat4 {
	s := t.scale()
	rotation := mgl64.AnglesToQuat(t.Rotation.Z, t.Rotation.Y, t.Rotation.X, mgl64.ZYX).Mat4()
	return mgl64.Translate3D(t.Translation.X, t.Translation.Y, t.Translation.Z).
		Mul4(rotation).
		Mul4(mgl64.Scale3D(s.X, s.Y, s.Z))
}

// Apply transforms a single point
func (t Transform) Apply(p core.Vec3) core.Vec3 {
	return core.FromMgl(mgl64.TransformCoordinate(p.Mgl(), t.Matrix()))
}

// ApplyAll transforms every point
func (t Transform) ApplyAll(points []core.Vec3) []core.Vec3 {
	m := t.Matrix()
	out := make([]core.Vec3, len(points))
	for i, p := range points {
		out[i] = core.FromMgl(mgl64.TransformCoordinate(p.Mgl(), m))
	}
	return out
}

// MinScale returns the smallest absolute scale factor
func (t Transform) MinScale() float64 {
	s := t.scale()
	return min(math.Abs(s.X), math.Abs(s.Y), math.Abs(s.Z))
}
