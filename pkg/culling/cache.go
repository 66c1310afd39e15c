package culling

import (
	"sync"

	"github.com/df07/go-corner-culling/pkg/registry"
)

type pairKey struct {
	viewer, candidate uint64
}

type cacheSlot struct {
	occluder registry.ID
	lastHit  uint64 // frame number
}

// occluderCache remembers, per viewer/candidate pair, the occluders that hid
// the candidate most recently. Occluders tend to keep hiding the same
// candidate from one frame to the next, so they are tried before the index.
type occluderCache struct {
	mu    sync.Mutex
	size  int
	slots map[pairKey][]cacheSlot
}

func newOccluderCache(size int) *occluderCache {
	return &occluderCache{size: size, slots: make(map[pairKey][]cacheSlot)}
}

// get returns the cached occluder ids for a pair, most recent first
func (c *occluderCache) get(viewer, candidate uint64) []registry.ID {
	if c.size <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	slots := c.slots[pairKey{viewer, candidate}]
	ids := make([]registry.ID, len(slots))
	for i, s := range slots {
		ids[i] = s.occluder
	}
	return ids
}

// hit records that occluder hid the candidate in frame. A new occluder
// replaces the slot that has gone longest without a hit.
func (c *occluderCache) hit(viewer, candidate uint64, occluder registry.ID, frame uint64) {
	if c.size <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := pairKey{viewer, candidate}
	slots := c.slots[key]
	for i := range slots {
		if slots[i].occluder == occluder {
			slots[i].lastHit = frame
			c.sortSlots(slots)
			return
		}
	}

	if len(slots) < c.size {
		slots = append(slots, cacheSlot{occluder: occluder, lastHit: frame})
	} else {
		oldest := 0
		for i := range slots {
			if slots[i].lastHit < slots[oldest].lastHit {
				oldest = i
			}
		}
		slots[oldest] = cacheSlot{occluder: occluder, lastHit: frame}
	}
	c.sortSlots(slots)
	c.slots[key] = slots
}

// sortSlots keeps the most recent hit first (insertion sort, at most a few slots)
func (c *occluderCache) sortSlots(slots []cacheSlot) {
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0 && slots[j].lastHit > slots[j-1].lastHit; j-- {
			slots[j], slots[j-1] = slots[j-1], slots[j]
		}
	}
}

// prune drops the pairs that have not had a hit since minFrame
func (c *occluderCache) prune(minFrame uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, slots := range c.slots {
		if len(slots) == 0 || slots[0].lastHit < minFrame {
			delete(c.slots, key)
		}
	}
}

// len returns the number of cached pairs
func (c *occluderCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}
