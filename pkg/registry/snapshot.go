package registry

import (
	"math"
	"sort"

	"github.com/df07/go-corner-culling/pkg/core"
)

// Snapshot is an immutable view of the registry at one commit
type Snapshot struct {
	Version   uint64
	occluders map[ID]*Occluder
	ordered   []*Occluder // by ID
	static    *BVH
	dynamic   *BVH
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		occluders: map[ID]*Occluder{},
		static:    NewBVH(nil),
		dynamic:   NewBVH(nil),
	}
}

// NewSnapshot indexes a fixed set of occluders without a registry.
// Occluder ids must be unique.
func NewSnapshot(occluders []*Occluder) *Snapshot {
	s := &Snapshot{occluders: make(map[ID]*Occluder, len(occluders))}
	var static, dynamic []*Occluder
	for _, o := range occluders {
		s.occluders[o.ID] = o
		if o.Dynamic {
			dynamic = append(dynamic, o)
		} else {
			static = append(static, o)
		}
	}
	s.ordered = make([]*Occluder, 0, len(s.occluders))
	for _, o := range s.occluders {
		s.ordered = append(s.ordered, o)
	}
	sort.Slice(s.ordered, func(i, j int) bool { return s.ordered[i].ID < s.ordered[j].ID })
	s.static = NewBVH(static)
	s.dynamic = NewBVH(dynamic)
	checkSnapshot(s)
	return s
}

// Get returns the occluder with the given id
func (s *Snapshot) Get(id ID) (*Occluder, bool) {
	o, ok := s.occluders[id]
	return o, ok
}

// Len returns the number of occluders
func (s *Snapshot) Len() int {
	return len(s.ordered)
}

// All returns every occluder ordered by id. The slice must not be modified.
func (s *Snapshot) All() []*Occluder {
	return s.ordered
}

// Records returns the persistent form of every occluder
func (s *Snapshot) Records() []Record {
	records := make([]Record, len(s.ordered))
	for i, o := range s.ordered {
		records[i] = o.Record()
	}
	return records
}

// Query returns the occluders whose bounds come within radius of position,
// ordered by id. A radius <= 0 returns every occluder.
func (s *Snapshot) Query(position core.Vec3, radius float64) []*Occluder {
	if radius <= 0 || math.IsInf(radius, 1) {
		return s.All()
	}
	var found []*Occluder
	collect := func(o *Occluder) { found = append(found, o) }
	s.static.VisitRadius(position, radius, collect)
	s.dynamic.VisitRadius(position, radius, collect)
	sort.Slice(found, func(i, j int) bool { return found[i].ID < found[j].ID })
	return found
}

// QuerySegment visits the occluders whose bounds the segment crosses,
// nearest entry point first, until visit returns false
func (s *Snapshot) QuerySegment(seg core.Segment, visit func(*Occluder) bool) {
	var hits []SegmentHit
	collect := func(h SegmentHit) bool {
		hits = append(hits, h)
		return true
	}
	s.static.VisitSegment(seg, collect)
	s.dynamic.VisitSegment(seg, collect)

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].T == hits[j].T {
			return hits[i].Occluder.ID < hits[j].Occluder.ID
		}
		return hits[i].T < hits[j].T
	})
	for _, h := range hits {
		if !visit(h.Occluder) {
			return
		}
	}
}
