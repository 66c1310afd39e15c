package main

import (
	"cmp"
	"image/color"
	"math"
	"slices"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/registry"
	"github.com/df07/go-corner-culling/pkg/session"
)

var (
	occluderColor = color.RGBA{0x9a, 0x9a, 0xa8, 0xff}
	dynamicColor  = color.RGBA{0xe0, 0xa0, 0x40, 0xff}
	hiddenColor   = color.RGBA{0x50, 0x50, 0x50, 0xff}
	deadColor     = color.RGBA{0x30, 0x30, 0x30, 0xff}
	sightColor    = color.RGBA{0xf0, 0xf0, 0x60, 0x80}
	teamColors    = []color.RGBA{
		{0x40, 0x90, 0xf0, 0xff},
		{0xf0, 0x50, 0x40, 0xff},
		{0x50, 0xd0, 0x60, 0xff},
		{0xd0, 0x60, 0xd0, 0xff},
	}
)

func teamColor(team int) color.RGBA {
	return teamColors[((team%len(teamColors))+len(teamColors))%len(teamColors)]
}

// view maps the XY plane of the world onto the screen, +Y up
type view struct {
	width, height int
	halfExtent    float64 // world units from the center to the nearest screen edge
}

func (v view) scale() float64 {
	return float64(min(v.width, v.height)) / (2 * v.halfExtent)
}

func (v view) toScreen(p core.Vec3) (float32, float32) {
	s := v.scale()
	x := float64(v.width)/2 + p.X*s
	y := float64(v.height)/2 - p.Y*s
	return float32(x), float32(y)
}

func (v view) length(d float64) float32 {
	return float32(d * v.scale())
}

// worldExtent returns the half size of the square that holds every occluder
// and character, plus a margin
func worldExtent(snap *registry.Snapshot, characters []session.Character) float64 {
	extent := 100.0
	grow := func(p core.Vec3) {
		extent = max(extent, math.Abs(p.X), math.Abs(p.Y))
	}
	for _, o := range snap.All() {
		bbox := o.BoundingBox()
		grow(bbox.Min)
		grow(bbox.Max)
	}
	for _, c := range characters {
		grow(c.Center)
	}
	return extent * 1.05
}

// outline returns the top-down silhouette of an occluder as a convex
// polygon. Spheres have no corners and return nil.
func outline(o *registry.Occluder) []core.Vec3 {
	if len(o.Descriptor.Corners) == 0 {
		return nil
	}
	corners := o.Transform.ApplyAll(o.Descriptor.Corners)
	for i := range corners {
		corners[i].Z = 0
	}
	return convexHull(corners)
}

// convexHull returns the XY hull of points in counter-clockwise order
// (monotone chain)
func convexHull(points []core.Vec3) []core.Vec3 {
	pts := slices.Clone(points)
	slices.SortFunc(pts, func(a, b core.Vec3) int {
		return cmp.Or(cmp.Compare(a.X, b.X), cmp.Compare(a.Y, b.Y))
	})
	pts = slices.CompactFunc(pts, func(a, b core.Vec3) bool {
		return a.X == b.X && a.Y == b.Y
	})
	if len(pts) < 3 {
		return pts
	}

	cross := func(o, a, b core.Vec3) float64 {
		return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
	}
	hull := make([]core.Vec3, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}
