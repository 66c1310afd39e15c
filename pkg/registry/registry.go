package registry

import (
	"cmp"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/geometry"
)

type opKind int

const (
	opInsert opKind = iota
	opRemove
	opMove
)

// op is a queued mutation applied at the next Commit
type op struct {
	kind    opKind
	id      ID
	dynamic bool
}

// Registry stores occluders and indexes them for spatial queries.
// Mutations are queued and become visible to readers only after Commit;
// readers work on immutable snapshots and never block on writers.
type Registry struct {
	mu      sync.Mutex
	logger  core.Logger
	nextID  ID
	staged  map[ID]*Occluder // state after all pending ops
	pending []op

	current atomic.Pointer[Snapshot]
}

// New creates an empty registry. A nil logger writes to the standard logger.
func New(logger core.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	r := &Registry{
		logger: logger,
		nextID: 1,
		staged: make(map[ID]*Occluder),
	}
	r.current.Store(emptySnapshot())
	return r
}

// Register validates the occluder geometry and queues its insertion.
// Malformed geometry is logged and rejected.
func (r *Registry) Register(desc geometry.Descriptor, transform geometry.Transform, dynamic bool) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	if err := r.insertLocked(id, desc, transform, dynamic); err != nil {
		return 0, err
	}
	r.nextID++
	return id, nil
}

func (r *Registry) insertLocked(id ID, desc geometry.Descriptor, transform geometry.Transform, dynamic bool) error {
	shape, err := desc.Build(transform)
	if err != nil {
		r.logger.Printf("[Registry] rejected %s occluder: %v", desc.Kind, err)
		return fmt.Errorf("register %s: %w", desc.Kind, err)
	}
	if _, exists := r.staged[id]; exists {
		return fmt.Errorf("register %d: %w", id, ErrDuplicateID)
	}

	r.staged[id] = &Occluder{
		ID:         id,
		Descriptor: desc,
		Transform:  transform,
		Dynamic:    dynamic,
		Shape:      shape,
	}
	r.pending = append(r.pending, op{kind: opInsert, id: id, dynamic: dynamic})
	return nil
}

// Unregister queues the removal of an occluder
func (r *Registry) Unregister(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.staged[id]
	if !ok {
		return fmt.Errorf("unregister %d: %w", id, ErrUnknownOccluder)
	}
	delete(r.staged, id)
	r.pending = append(r.pending, op{kind: opRemove, id: id, dynamic: o.Dynamic})
	return nil
}

// Move queues a new transform for a dynamic occluder
func (r *Registry) Move(id ID, transform geometry.Transform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.staged[id]
	if !ok {
		return fmt.Errorf("move %d: %w", id, ErrUnknownOccluder)
	}
	if !o.Dynamic {
		return fmt.Errorf("move %d: %w", id, ErrStaticOccluder)
	}
	shape, err := o.Descriptor.Build(transform)
	if err != nil {
		r.logger.Printf("[Registry] rejected move of occluder %d: %v", id, err)
		return fmt.Errorf("move %d: %w", id, err)
	}

	moved := *o
	moved.Transform = transform
	moved.Shape = shape
	r.staged[id] = &moved
	r.pending = append(r.pending, op{kind: opMove, id: id, dynamic: true})
	return nil
}

// Restore queues the replacement of every occluder with the given records,
// keeping their ids. Records with malformed geometry are logged and skipped.
func (r *Registry) Restore(records []Record) (skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, o := range r.staged {
		r.pending = append(r.pending, op{kind: opRemove, id: id, dynamic: o.Dynamic})
	}
	clear(r.staged)

	for _, rec := range records {
		if err := r.insertLocked(rec.ID, rec.Descriptor, rec.Transform, rec.Dynamic); err != nil {
			skipped++
			continue
		}
		if rec.ID >= r.nextID {
			r.nextID = rec.ID + 1
		}
	}
	return skipped
}

// Pending returns the number of queued mutations
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Commit applies the queued mutations and publishes a new snapshot.
// Only the index (static or dynamic) touched by the mutations is rebuilt.
func (r *Registry) Commit() *Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.current.Load()
	if len(r.pending) == 0 {
		return prev
	}

	staticDirty, dynamicDirty := false, false
	for _, p := range r.pending {
		if p.dynamic {
			dynamicDirty = true
		} else {
			staticDirty = true
		}
	}

	next := &Snapshot{
		Version:   prev.Version + 1,
		occluders: maps.Clone(r.staged),
		static:    prev.static,
		dynamic:   prev.dynamic,
	}
	next.ordered = slices.SortedFunc(maps.Values(next.occluders), func(a, b *Occluder) int {
		return cmp.Compare(a.ID, b.ID)
	})

	var staticOccluders, dynamicOccluders []*Occluder
	for _, o := range next.ordered {
		if o.Dynamic {
			dynamicOccluders = append(dynamicOccluders, o)
		} else {
			staticOccluders = append(staticOccluders, o)
		}
	}
	if staticDirty {
		next.static = NewBVH(staticOccluders)
	}
	if dynamicDirty {
		next.dynamic = NewBVH(dynamicOccluders)
	}

	checkSnapshot(next)

	r.pending = r.pending[:0]
	r.current.Store(next)
	return next
}

// Snapshot returns the last committed snapshot; it is never nil
func (r *Registry) Snapshot() *Snapshot {
	return r.current.Load()
}
