package registry

import (
	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
)

// ID identifies an occluder for its whole lifetime
type ID uint64

// Occluder is a registered, validated occluder. Published occluders are
// never mutated; Move replaces the value.
type Occluder struct {
	ID         ID
	Descriptor geometry.Descriptor
	Transform  geometry.Transform
	Dynamic    bool
	Shape      geometry.Shape
}

// BoundingBox returns the world-space bounds of the occluder
func (o *Occluder) BoundingBox() core.AABB {
	return o.Shape.BoundingBox()
}

// Record is the persistent form of an occluder
type Record struct {
	ID         ID                  `json:"id"`
	Descriptor geometry.Descriptor `json:"descriptor"`
	Transform  geometry.Transform  `json:"transform"`
	Dynamic    bool                `json:"dynamic"`
}

// Record returns the persistent form of the occluder
func (o *Occluder) Record() Record {
	return Record{ID: o.ID, Descriptor: o.Descriptor, Transform: o.Transform, Dynamic: o.Dynamic}
}
