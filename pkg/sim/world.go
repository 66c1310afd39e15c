// Package sim drives a small population of characters through an arena so the
// culling session has something to look at.
package sim

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/session"
	"github.com/mlange-42/ark/ecs"
)

// ErrUnknownCharacter is returned for ids the world does not hold
var ErrUnknownCharacter = errors.New("unknown character")

// Config contains the simulation settings
type Config struct {
	Characters      int           `json:"characters"`        // Spawned by Populate
	Teams           int           `json:"teams"`             // Characters are dealt round-robin
	Speed           float64       `json:"speed"`             // Units per second
	ArenaHalfExtent float64       `json:"arena_half_extent"` // Arena is a square centered on the origin
	CameraHeight    float64       `json:"camera_height"`     // Eye height above the center
	Latency         core.Duration `json:"latency"`           // Reported for every character
	Seed            uint64        `json:"seed"`
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		Characters:      8,
		Teams:           2,
		Speed:           250,
		ArenaHalfExtent: 2000,
		CameraHeight:    64,
		Seed:            1,
	}
}

// Blocker reports whether a character may not move along a segment
type Blocker interface {
	Blocked(seg core.Segment) bool
}

// SnapshotBlocker blocks movement through the occluders of the current snapshot
type SnapshotBlocker struct {
	Source culling.OccluderSource
}

func (b SnapshotBlocker) Blocked(seg core.Segment) bool {
	blocked := false
	b.Source.Snapshot().QuerySegment(seg, func(o *registry.Occluder) bool {
		if _, hit := o.Shape.IntersectSegment(seg); hit {
			blocked = true
			return false
		}
		return true
	})
	return blocked
}

// World is an ECS world of characters. It is not safe for concurrent use.
type World struct {
	config     Config
	world      *ecs.World
	spawner    *ecs.Map5[Identity, Position, Velocity, Team, Camera]
	movers     *ecs.Filter4[Position, Velocity, Team, Camera]
	characters *ecs.Filter4[Identity, Position, Team, Camera]
	blocker    Blocker
	rng        *rand.Rand
	entities   map[uint64]ecs.Entity
	nextID     uint64
}

// NewWorld creates an empty world. blocker may be nil.
func NewWorld(config Config, blocker Blocker) *World {
	world := ecs.NewWorld()
	return &World{
		config:     config,
		world:      world,
		spawner:    ecs.NewMap5[Identity, Position, Velocity, Team, Camera](world),
		movers:     ecs.NewFilter4[Position, Velocity, Team, Camera](world),
		characters: ecs.NewFilter4[Identity, Position, Team, Camera](world),
		blocker:    blocker,
		rng:        rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15)),
		entities:   make(map[uint64]ecs.Entity),
		nextID:     1,
	}
}

// Populate spawns the configured number of characters at random positions
// with random headings, standing on the ground
func (w *World) Populate() {
	teams := max(w.config.Teams, 1)
	limit := w.walkableHalfExtent()
	for i := range w.config.Characters {
		center := core.NewVec3(
			(w.rng.Float64()*2-1)*limit,
			(w.rng.Float64()*2-1)*limit,
			session.CharacterHalfExtents.Z,
		)
		heading := w.rng.Float64() * 2 * math.Pi
		velocity := core.NewVec3(math.Cos(heading), math.Sin(heading), 0).Multiply(w.config.Speed)
		w.Spawn(i%teams, center, velocity)
	}
}

// Spawn adds a living character and returns its id
func (w *World) Spawn(team int, center, velocity core.Vec3) uint64 {
	id := w.nextID
	w.nextID++
	camera := Camera{Height: w.config.CameraHeight, Latency: w.config.Latency.Std()}
	if velocity.LengthSquared() > 0 {
		camera.Yaw = heading(velocity)
	}
	w.entities[id] = w.spawner.NewEntity(
		&Identity{ID: id},
		&Position{center},
		&Velocity{velocity},
		&Team{ID: team, Alive: true},
		&camera,
	)
	return id
}

// Kill marks a character dead. It stays in the world but stops moving.
func (w *World) Kill(id uint64) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("kill %d: %w", id, ErrUnknownCharacter)
	}
	_, _, _, team, _ := w.spawner.Get(e)
	team.Alive = false
	return nil
}

// Remove deletes a character from the world
func (w *World) Remove(id uint64) error {
	e, ok := w.entities[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrUnknownCharacter)
	}
	w.world.RemoveEntity(e)
	delete(w.entities, id)
	return nil
}

// Len returns the number of characters, dead or alive
func (w *World) Len() int {
	return len(w.entities)
}

// heading returns the yaw of v in (-pi, pi]. Negated velocities carry -0
// components, which would otherwise flip a reversed heading to -pi.
func heading(v core.Vec3) float64 {
	yaw := math.Atan2(v.Y, v.X)
	if yaw <= -math.Pi {
		yaw = math.Pi
	}
	return yaw
}

func (w *World) walkableHalfExtent() float64 {
	return max(w.config.ArenaHalfExtent-session.CharacterHalfExtents.X, 0)
}

// Step advances every living character by dt. Characters bounce off the
// arena walls and reverse when the blocker refuses their move.
func (w *World) Step(dt time.Duration) {
	seconds := dt.Seconds()
	limit := w.walkableHalfExtent()

	query := w.movers.Query()
	for query.Next() {
		pos, vel, team, cam := query.Get()
		if !team.Alive {
			continue
		}

		next := pos.Add(vel.Multiply(seconds))
		if math.Abs(next.X) > limit {
			vel.X = -vel.X
			next.X = pos.X
		}
		if math.Abs(next.Y) > limit {
			vel.Y = -vel.Y
			next.Y = pos.Y
		}
		if w.blocker != nil && w.blocker.Blocked(core.NewSegment(pos.Vec3, next)) {
			vel.Vec3 = vel.Negate()
			next = pos.Vec3
		}

		pos.Vec3 = next
		if vel.LengthSquared() > 0 {
			cam.Yaw = heading(vel.Vec3)
		}
	}
}

// Characters returns the session view of every character, ordered by id
func (w *World) Characters() []session.Character {
	out := make([]session.Character, 0, len(w.entities))
	query := w.characters.Query()
	for query.Next() {
		id, pos, team, cam := query.Get()
		out = append(out, session.Character{
			ID:      id.ID,
			Team:    team.ID,
			Alive:   team.Alive,
			Center:  pos.Vec3,
			Camera:  pos.Add(core.NewVec3(0, 0, cam.Height)),
			Yaw:     cam.Yaw,
			Latency: cam.Latency,
		})
	}
	slices.SortFunc(out, func(a, b session.Character) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Sync upserts every character into the session and drops the ones the
// world no longer holds
func (w *World) Sync(s *session.Session) {
	for _, c := range s.Characters() {
		if _, ok := w.entities[c.ID]; !ok {
			s.Remove(c.ID)
		}
	}
	for _, c := range w.Characters() {
		s.Upsert(c)
	}
}
