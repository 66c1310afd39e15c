package core

// Segment is a line segment between Start and Start + Delta.
// Parameter t runs from 0 at Start to 1 at the end point.
type Segment struct {
	Start Vec3
	Delta Vec3
}

// NewSegment creates a segment from start to end
func NewSegment(start, end Vec3) Segment {
	return Segment{Start: start, Delta: end.Subtract(start)}
}

// End returns the end point of the segment
func (s Segment) End() Vec3 {
	return s.Start.Add(s.Delta)
}

// At returns the point at parameter t along the segment
func (s Segment) At(t float64) Vec3 {
	return s.Start.Add(s.Delta.Multiply(t))
}

// Length returns the length of the segment
func (s Segment) Length() float64 {
	return s.Delta.Length()
}
