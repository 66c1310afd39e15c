package core

import (
	"math"
	"testing"
)

func TestAABB_IntersectSegment(t *testing.T) {
	box := NewAABB(NewVec3(-1, -1, -1), NewVec3(1, 1, 1))

	tests := []struct {
		name      string
		segment   Segment
		shouldHit bool
		tNear     float64
	}{
		{
			name:      "Through center",
			segment:   NewSegment(NewVec3(-3, 0, 0), NewVec3(3, 0, 0)),
			shouldHit: true,
			tNear:     1.0 / 3.0,
		},
		{
			name:      "Stops short",
			segment:   NewSegment(NewVec3(-3, 0, 0), NewVec3(-2, 0, 0)),
			shouldHit: false,
		},
		{
			name:      "Misses to the side",
			segment:   NewSegment(NewVec3(-3, 2, 0), NewVec3(3, 2, 0)),
			shouldHit: false,
		},
		{
			name:      "Starts inside",
			segment:   NewSegment(NewVec3(0, 0, 0), NewVec3(5, 5, 5)),
			shouldHit: true,
			tNear:     0,
		},
		{
			name:      "Parallel inside slab",
			segment:   NewSegment(NewVec3(0.5, -5, 0.5), NewVec3(0.5, 5, 0.5)),
			shouldHit: true,
			tNear:     0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tNear, _, hit := box.IntersectSegment(tt.segment)
			if hit != tt.shouldHit {
				t.Fatalf("Expected hit=%v, got %v", tt.shouldHit, hit)
			}
			if hit && math.Abs(tNear-tt.tNear) > 1e-9 {
				t.Errorf("Expected tNear %f, got %f", tt.tNear, tNear)
			}
		})
	}
}

func TestAABB_DistanceSquared(t *testing.T) {
	box := NewAABB(NewVec3(0, 0, 0), NewVec3(1, 1, 1))

	if d := box.DistanceSquared(NewVec3(0.5, 0.5, 0.5)); d != 0 {
		t.Errorf("Expected 0 for inside point, got %f", d)
	}
	if d := box.DistanceSquared(NewVec3(3, 0.5, 0.5)); math.Abs(d-4) > 1e-12 {
		t.Errorf("Expected 4, got %f", d)
	}
	if d := box.DistanceSquared(NewVec3(2, 2, 0.5)); math.Abs(d-2) > 1e-12 {
		t.Errorf("Expected 2, got %f", d)
	}
}

func TestAABB_UnionAndContains(t *testing.T) {
	a := NewAABB(NewVec3(0, 0, 0), NewVec3(1, 1, 1))
	b := NewAABB(NewVec3(2, -1, 0), NewVec3(3, 0, 4))
	u := a.Union(b)

	if u.Min != NewVec3(0, -1, 0) || u.Max != NewVec3(3, 1, 4) {
		t.Errorf("Unexpected union %v", u)
	}
	if !u.Contains(NewVec3(2.5, 0.5, 3)) {
		t.Errorf("Expected union to contain point")
	}
	if a.Contains(NewVec3(1.5, 0, 0)) {
		t.Errorf("Expected point outside box")
	}
	if u.LongestAxis() != 2 {
		t.Errorf("Expected longest axis Z, got %d", u.LongestAxis())
	}
}
