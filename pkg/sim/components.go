package sim

import (
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
)

// Identity is the stable character id handed to the session
type Identity struct {
	ID uint64
}

// Position is the center of a character's bounds
type Position struct {
	core.Vec3
}

// Velocity is in units per second
type Velocity struct {
	core.Vec3
}

// Team membership; dead characters neither move nor see
type Team struct {
	ID    int
	Alive bool
}

// Camera is the eye of a character relative to its center
type Camera struct {
	Height  float64
	Yaw     float64
	Latency time.Duration
}
