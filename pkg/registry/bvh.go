package registry

import (
	"sort"

	"github.com/df07/go-corner-culling/pkg/core"
)

// BVHNode represents a node in the Bounding Volume Hierarchy
type BVHNode struct {
	BoundingBox core.AABB
	Left        *BVHNode
	Right       *BVHNode
	Occluders   []*Occluder // Multiple occluders for leaf nodes (nil for internal nodes)
}

// BVH indexes occluders by their world bounds
type BVH struct {
	Root  *BVHNode
	count int
}

// Leaf threshold: if we have this many or fewer occluders, store them in a leaf node
const leafThreshold = 4

// NewBVH constructs a BVH from a slice of occluders
func NewBVH(occluders []*Occluder) *BVH {
	if len(occluders) == 0 {
		return &BVH{Root: nil}
	}

	// The build sorts in place, so work on a copy
	occludersCopy := make([]*Occluder, len(occluders))
	copy(occludersCopy, occluders)

	return &BVH{
		Root:  buildBVH(occludersCopy, 0),
		count: len(occluders),
	}
}

// Len returns the number of indexed occluders
func (bvh *BVH) Len() int {
	return bvh.count
}

// buildBVH recursively builds the BVH using median splits along the longest axis
func buildBVH(occluders []*Occluder, depth int) *BVHNode {
	boundingBox := occluders[0].BoundingBox()
	for i := 1; i < len(occluders); i++ {
		boundingBox = boundingBox.Union(occluders[i].BoundingBox())
	}

	if len(occluders) <= leafThreshold {
		return &BVHNode{
			BoundingBox: boundingBox,
			Occluders:   occluders,
		}
	}

	axis := boundingBox.LongestAxis()
	sortOccludersByAxis(occluders, axis)

	mid := len(occluders) / 2
	return &BVHNode{
		BoundingBox: boundingBox,
		Left:        buildBVH(occluders[:mid], depth+1),
		Right:       buildBVH(occluders[mid:], depth+1),
	}
}

// sortOccludersByAxis sorts occluders by their bounding box center along the specified axis
func sortOccludersByAxis(occluders []*Occluder, axis int) {
	sort.Slice(occluders, func(i, j int) bool {
		centerI := occluders[i].BoundingBox().Center().Axis(axis)
		centerJ := occluders[j].BoundingBox().Center().Axis(axis)
		if centerI == centerJ {
			return occluders[i].ID < occluders[j].ID
		}
		return centerI < centerJ
	})
}

// SegmentHit is an occluder whose bounds the query segment enters at T
type SegmentHit struct {
	Occluder *Occluder
	T        float64
}

// VisitSegment calls visit for every occluder whose bounds the segment
// crosses, descending into the nearer child first. Traversal stops as soon
// as visit returns false; the return value reports whether it ran to completion.
func (bvh *BVH) VisitSegment(seg core.Segment, visit func(SegmentHit) bool) bool {
	if bvh.Root == nil {
		return true
	}
	if _, _, hit := bvh.Root.BoundingBox.IntersectSegment(seg); !hit {
		return true
	}
	return visitNode(bvh.Root, seg, visit)
}

func visitNode(node *BVHNode, seg core.Segment, visit func(SegmentHit) bool) bool {
	if node.Occluders != nil {
		for _, o := range node.Occluders {
			if t, _, hit := o.BoundingBox().IntersectSegment(seg); hit {
				if !visit(SegmentHit{Occluder: o, T: t}) {
					return false
				}
			}
		}
		return true
	}

	first, second := node.Left, node.Right
	tFirst, _, hitFirst := first.BoundingBox.IntersectSegment(seg)
	tSecond, _, hitSecond := second.BoundingBox.IntersectSegment(seg)
	if hitSecond && (!hitFirst || tSecond < tFirst) {
		first, second = second, first
		hitFirst, hitSecond = hitSecond, hitFirst
	}

	if hitFirst && !visitNode(first, seg, visit) {
		return false
	}
	if hitSecond && !visitNode(second, seg, visit) {
		return false
	}
	return true
}

// VisitRadius calls visit for every occluder whose bounds come within radius of center
func (bvh *BVH) VisitRadius(center core.Vec3, radius float64, visit func(*Occluder)) {
	if bvh.Root == nil {
		return
	}
	r2 := radius * radius
	var walk func(node *BVHNode)
	walk = func(node *BVHNode) {
		if node.BoundingBox.DistanceSquared(center) > r2 {
			return
		}
		if node.Occluders != nil {
			for _, o := range node.Occluders {
				if o.BoundingBox().DistanceSquared(center) <= r2 {
					visit(o)
				}
			}
			return
		}
		walk(node.Left)
		walk(node.Right)
	}
	walk(bvh.Root)
}

// Walk calls visit for every indexed occluder
func (bvh *BVH) Walk(visit func(*Occluder)) {
	var walk func(node *BVHNode)
	walk = func(node *BVHNode) {
		if node == nil {
			return
		}
		for _, o := range node.Occluders {
			visit(o)
		}
		walk(node.Left)
		walk(node.Right)
	}
	walk(bvh.Root)
}

// bvhStats holds statistics about BVH structure
type bvhStats struct {
	totalNodes    int
	leafNodes     int
	maxDepth      int
	maxLeafSize   int
	totalOccluder int
}

// getStats returns statistics about the BVH structure (for testing)
func (bvh *BVH) getStats() bvhStats {
	if bvh.Root == nil {
		return bvhStats{}
	}
	stats := bvhStats{}
	bvh.collectStats(bvh.Root, 0, &stats)
	return stats
}

// collectStats recursively collects statistics about the BVH
func (bvh *BVH) collectStats(node *BVHNode, depth int, stats *bvhStats) {
	stats.totalNodes++
	if depth > stats.maxDepth {
		stats.maxDepth = depth
	}

	if node.Occluders != nil {
		stats.leafNodes++
		stats.totalOccluder += len(node.Occluders)
		if len(node.Occluders) > stats.maxLeafSize {
			stats.maxLeafSize = len(node.Occluders)
		}
		return
	}

	if node.Left != nil {
		bvh.collectStats(node.Left, depth+1, stats)
	}
	if node.Right != nil {
		bvh.collectStats(node.Right, depth+1, stats)
	}
}
