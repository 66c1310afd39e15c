package session

import (
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
)

// CharacterHalfExtents is the half size of a character's bounding box
var CharacterHalfExtents = core.NewVec3(30, 15, 100)

// Character is a player or bot tracked by the session
type Character struct {
	ID      uint64        `json:"id"`
	Team    int           `json:"team"`
	Alive   bool          `json:"alive"`
	Center  core.Vec3     `json:"center"` // actor location, center of the bounds
	Camera  core.Vec3     `json:"camera"` // eye position
	Yaw     float64       `json:"yaw"`    // radians around Z
	Latency time.Duration `json:"latency"`
}

// Bounds returns the oriented bounding box of the character
func (c Character) Bounds() core.OrientedBox {
	return core.NewOrientedBox(c.Center, CharacterHalfExtents, c.Yaw)
}

// Revealer receives the positions the server may send to a client
type Revealer interface {
	Reveal(viewer, target uint64)
}

// RevealFunc adapts a function to the Revealer interface
type RevealFunc func(viewer, target uint64)

func (f RevealFunc) Reveal(viewer, target uint64) { f(viewer, target) }

// Pair is a viewer and a target character
type Pair struct {
	Viewer uint64 `json:"viewer"`
	Target uint64 `json:"target"`
}
