// Package culling runs the per-frame occlusion pass over a candidate list.
package culling

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/silhouette"
	"github.com/df07/go-corner-culling/pkg/visibility"
)

// ErrClosed is returned by Cull after Close
var ErrClosed = errors.New("culler closed")

// cachePruneInterval is how often, in frames, stale cache pairs are dropped
const cachePruneInterval = 256

// OccluderSource provides the occluder snapshot for a pass
type OccluderSource interface {
	Snapshot() *registry.Snapshot
}

// Culler is the culling executor. It is safe for concurrent use; each Cull
// call tests one viewer's candidates on the shared worker pool.
type Culler struct {
	source   OccluderSource
	config   Config
	tester   *visibility.Tester
	pool     *WorkerPool
	cache    *occluderCache
	profiler *Profiler
	logger   core.Logger

	mu     sync.RWMutex
	closed bool
	frames atomic.Uint64
}

// NewCuller creates a culler and starts its worker pool
func NewCuller(source OccluderSource, config Config, logger core.Logger) *Culler {
	if logger == nil {
		logger = NewDefaultLogger()
	}
	c := &Culler{
		source:   source,
		config:   config,
		tester:   visibility.NewTester(config.Epsilon),
		pool:     NewWorkerPool(config.Workers),
		cache:    newOccluderCache(config.CacheSize),
		profiler: NewProfiler(config.ProfileWindow),
		logger:   logger,
	}
	c.pool.Start()
	return c
}

// Close stops the worker pool. Passes in flight finish first.
func (c *Culler) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.pool.Stop()
}

// Profiler returns the timing profiler
func (c *Culler) Profiler() *Profiler {
	return c.profiler
}

// Cull decides which candidates of the frame are hidden. Candidates whose
// test has not finished when the frame budget or ctx runs out stay visible.
func (c *Culler) Cull(ctx context.Context, frame Frame) (*Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	if c.config.FrameBudget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.FrameBudget.Std())
		defer cancel()
	}

	result := newResult(frame)
	result.Stats.Candidates = len(frame.Candidates)

	if !frame.Viewer.Position.IsFinite() {
		c.logger.Printf("[Culling] frame %d: viewer %d has a non-finite position, nothing culled\n",
			frame.Number, frame.Viewer.ID)
		result.Stats.Visible = len(frame.Candidates)
		return result, nil
	}

	p := newPass(ctx, c, frame)

	submitted := 0
submit:
	for i := range frame.Candidates {
		select {
		case c.pool.taskQueue <- candidateTask{pass: p, index: i}:
			submitted++
		case <-ctx.Done():
			break submit
		}
	}

	received := make([]bool, len(frame.Candidates))
collect:
	for n := 0; n < submitted; n++ {
		select {
		case out := <-p.results:
			received[out.index] = true
			c.apply(result, frame, out)
		case <-ctx.Done():
			break collect
		}
	}

	for i, ok := range received {
		if !ok {
			result.Stats.TimedOut++
			result.Visible[frame.Candidates[i].ID] = true
		}
	}

	for _, visible := range result.Visible {
		if visible {
			result.Stats.Visible++
		} else {
			result.Stats.Hidden++
		}
	}
	result.Stats.SkippedOccluders = p.skippedCount()
	result.Stats.Duration = time.Since(start)
	c.profiler.Record(result.Stats.Duration)

	if n := c.frames.Add(1); n%cachePruneInterval == 0 && frame.Number > cachePruneInterval {
		c.cache.prune(frame.Number - cachePruneInterval)
	}
	return result, nil
}

func (c *Culler) apply(result *Result, frame Frame, out candidateOutcome) {
	cand := frame.Candidates[out.index]
	if out.timedOut {
		result.Stats.TimedOut++
	}
	if out.frustumCulled {
		result.Stats.FrustumCulled++
	}
	if out.cacheHit {
		result.Stats.CacheHits++
	}
	result.Stats.OccluderTests += out.tests
	if out.hidden {
		result.Visible[cand.ID] = false
	}
}

type shadowKey struct {
	occluder  registry.ID
	viewpoint core.Vec3
}

type shadowEntry struct {
	once      sync.Once
	occlusion visibility.Occlusion
	err       error
}

// pass is the state of one Cull call shared by the workers testing its candidates
type pass struct {
	ctx      context.Context
	culler   *Culler
	frame    Frame
	snapshot *registry.Snapshot
	results  chan candidateOutcome

	mu      sync.Mutex
	shadows map[shadowKey]*shadowEntry
	skipped map[registry.ID]bool
}

func newPass(ctx context.Context, c *Culler, frame Frame) *pass {
	return &pass{
		ctx:      ctx,
		culler:   c,
		frame:    frame,
		snapshot: c.source.Snapshot(),
		results:  make(chan candidateOutcome, len(frame.Candidates)),
		shadows:  make(map[shadowKey]*shadowEntry),
		skipped:  make(map[registry.ID]bool),
	}
}

func (p *pass) skippedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.skipped)
}

// occlusion returns the prepared test of an occluder from a viewpoint,
// building it at most once per pass
func (p *pass) occlusion(o *registry.Occluder, viewpoint core.Vec3) (visibility.Occlusion, error) {
	key := shadowKey{occluder: o.ID, viewpoint: viewpoint}

	p.mu.Lock()
	if p.skipped[o.ID] {
		p.mu.Unlock()
		return nil, errSkipped
	}
	entry, ok := p.shadows[key]
	if !ok {
		entry = &shadowEntry{}
		p.shadows[key] = entry
	}
	p.mu.Unlock()

	entry.once.Do(func() {
		entry.occlusion, entry.err = p.culler.tester.Prepare(o.Shape, viewpoint)
	})
	return entry.occlusion, entry.err
}

var errSkipped = errors.New("occluder skipped")

// skip excludes a failing occluder for the rest of the pass
func (p *pass) skip(o *registry.Occluder, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.skipped[o.ID] {
		return
	}
	p.skipped[o.ID] = true
	p.culler.logger.Printf("[Culling] frame %d: skipping occluder %d: %v\n", p.frame.Number, o.ID, err)
}

// occludes reports whether o hides the volume from every viewpoint
func (p *pass) occludes(o *registry.Occluder, viewpoints []core.Vec3, volume core.Volume) bool {
	eps := p.culler.tester.Epsilon
	for _, vp := range viewpoints {
		occlusion, err := p.occlusion(o, vp)
		switch {
		case err == nil:
		case errors.Is(err, silhouette.ErrDegenerateView), errors.Is(err, errSkipped):
			return false
		default:
			p.skip(o, err)
			return false
		}
		if !occlusion.Occludes(volume, eps) {
			return false
		}
	}
	return true
}

// test runs on a worker and decides one candidate
func (p *pass) test(index int) candidateOutcome {
	out := candidateOutcome{index: index}
	if p.ctx.Err() != nil {
		out.timedOut = true
		return out
	}

	cand := p.frame.Candidates[index]
	viewer := p.frame.Viewer
	if err := visibility.CheckVolume(cand.Bounds); err != nil {
		p.culler.logger.Printf("[Culling] frame %d: candidate %d: %v\n", p.frame.Number, cand.ID, err)
		return out
	}

	if viewer.Frustum != nil && !viewer.Frustum.Intersects(cand.Bounds) {
		out.hidden = true
		out.frustumCulled = true
		return out
	}

	viewpoints := visibility.Peeks(viewer.Position, cand.Bounds.Center(), viewer.Peek)

	for _, id := range p.culler.cache.get(viewer.ID, cand.ID) {
		o, ok := p.snapshot.Get(id)
		if ok && p.occludes(o, viewpoints, cand.Bounds) {
			p.culler.cache.hit(viewer.ID, cand.ID, id, p.frame.Number)
			out.hidden = true
			out.cacheHit = true
			return out
		}
	}

	// An occluder hiding the whole volume from the first viewpoint must
	// cross the segment to the volume's center
	seg := core.NewSegment(viewpoints[0], cand.Bounds.Center())
	p.snapshot.QuerySegment(seg, func(o *registry.Occluder) bool {
		if p.ctx.Err() != nil {
			out.timedOut = true
			return false
		}
		out.tests++
		if p.occludes(o, viewpoints, cand.Bounds) {
			p.culler.cache.hit(viewer.ID, cand.ID, o.ID, p.frame.Number)
			out.hidden = true
			return false
		}
		return true
	})
	return out
}
