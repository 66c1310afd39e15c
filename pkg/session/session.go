// Package session drives the culler for a multiplayer server: every few ticks
// it culls each living character's enemies, and it keeps revealed enemies
// revealed for a while so that they do not pop in and out.
package session

import (
	"cmp"
	"context"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/culling"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/visibility"
)

// Committer publishes queued occluder changes at the frame boundary
type Committer interface {
	Commit() *registry.Snapshot
}

// TickReport describes what one tick did
type TickReport struct {
	Tick     uint64
	Culled   bool
	Results  []*culling.Result // one per living viewer, on cull ticks
	Revealed int
}

// Session tracks characters and their reveal timers
type Session struct {
	mu         sync.Mutex
	culler     *culling.Culler
	committer  Committer
	revealer   Revealer
	config     Config
	logger     core.Logger
	characters map[uint64]Character
	timers     map[Pair]int
	tick       uint64
	increment  int
}

// New creates a session. committer may be nil when occluders never change.
func New(culler *culling.Culler, committer Committer, revealer Revealer, config Config, logger core.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	if config.CullingPeriod <= 0 {
		config.CullingPeriod = 1
	}
	return &Session{
		culler:     culler,
		committer:  committer,
		revealer:   revealer,
		config:     config,
		logger:     logger,
		characters: make(map[uint64]Character),
		timers:     make(map[Pair]int),
		increment:  config.MinTimerIncrement,
	}
}

// Upsert adds a character or replaces its state
func (s *Session) Upsert(c Character) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[c.ID] = c
}

// Remove forgets a character and every timer involving it
func (s *Session) Remove(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.characters, id)
	for p := range s.timers {
		if p.Viewer == id || p.Target == id {
			delete(s.timers, p)
		}
	}
}

// Characters returns the tracked characters ordered by id
func (s *Session) Characters() []Character {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Session) sortedLocked() []Character {
	out := make([]Character, 0, len(s.characters))
	for _, c := range s.characters {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Character) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Revealed reports whether target is currently revealed to viewer
func (s *Session) Revealed(viewer, target uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timers[Pair{viewer, target}] > 0
}

// TimerIncrement returns the current hold, in culls
func (s *Session) TimerIncrement() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment
}

// latency returns the estimated latency of a client
func (s *Session) latency(c Character) time.Duration {
	if c.Latency > 0 {
		return c.Latency
	}
	if s.config.TickRate <= 0 {
		return 0
	}
	return time.Duration(s.config.SimulatedLatency) * time.Second / time.Duration(s.config.TickRate)
}

// Tick advances the session by one server tick
func (s *Session) Tick(ctx context.Context) (TickReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	report := TickReport{Tick: s.tick}

	if s.tick%uint64(s.config.CullingPeriod) == 0 {
		results, err := s.cullLocked(ctx)
		if err != nil {
			return report, err
		}
		report.Culled = true
		report.Results = results
	}

	report.Revealed = s.revealLocked()
	return report, nil
}

// cullLocked culls every living viewer's hidden enemies in parallel
func (s *Session) cullLocked(ctx context.Context) ([]*culling.Result, error) {
	if s.committer != nil {
		s.committer.Commit()
	}

	characters := s.sortedLocked()
	var frames []culling.Frame
	for _, viewer := range characters {
		if !viewer.Alive {
			continue
		}
		latency := s.latency(viewer).Seconds()
		frame := culling.Frame{
			Number: s.tick,
			Viewer: culling.Viewer{
				ID:       viewer.ID,
				Position: viewer.Camera,
				Peek: visibility.PeekExtents{
					Horizontal: latency * s.config.PeekSpeedHorizontal,
					Vertical:   latency * s.config.PeekSpeedVertical,
				},
			},
		}
		for _, target := range characters {
			if !target.Alive || target.Team == viewer.Team || s.timers[Pair{viewer.ID, target.ID}] > 0 {
				continue
			}
			frame.Candidates = append(frame.Candidates, culling.Candidate{
				ID:     target.ID,
				Bounds: target.Bounds(),
				Owner:  target,
			})
		}
		frames = append(frames, frame)
	}

	results := make([]*culling.Result, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	for i, frame := range frames {
		g.Go(func() error {
			result, err := s.culler.Cull(gctx, frame)
			if err != nil {
				return fmt.Errorf("cull viewer %d: %w", frame.Viewer.ID, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	hold := s.increment * s.config.CullingPeriod
	for _, result := range results {
		for _, id := range result.VisibleIDs() {
			s.timers[Pair{result.ViewerID, id}] = hold
		}
	}

	s.adaptIncrementLocked()
	return results, nil
}

// adaptIncrementLocked lengthens reveals while culling is slow so that fewer
// pairs need testing
func (s *Session) adaptIncrementLocked() {
	maxUS := s.culler.Profiler().RollingMax()
	next := s.config.MinTimerIncrement
	if maxUS > float64(s.config.LoadThreshold)/float64(time.Microsecond) {
		next = s.config.MaxTimerIncrement
	}
	if next != s.increment {
		s.logger.Printf("[Session] tick %d: rolling max cull %.0fus, reveal hold now %d culls\n", s.tick, maxUS, next)
		s.increment = next
	}
}

// revealLocked sends every revealed pair and counts its timer down
func (s *Session) revealLocked() int {
	pairs := slices.SortedFunc(maps.Keys(s.timers), func(a, b Pair) int {
		return cmp.Or(cmp.Compare(a.Viewer, b.Viewer), cmp.Compare(a.Target, b.Target))
	})

	revealed := 0
	for _, p := range pairs {
		remaining := s.timers[p]
		if remaining <= 0 {
			delete(s.timers, p)
			continue
		}
		viewer, vok := s.characters[p.Viewer]
		target, tok := s.characters[p.Target]
		if !vok || !tok || !viewer.Alive || !target.Alive {
			continue
		}
		if s.revealer != nil {
			s.revealer.Reveal(p.Viewer, p.Target)
		}
		revealed++
		s.timers[p] = remaining - 1
	}
	return revealed
}
