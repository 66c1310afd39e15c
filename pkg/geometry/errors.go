package geometry

import "errors"

// Errors returned when occluder geometry is rejected.
var (
	ErrTooFewCorners = errors.New("too few corners")
	ErrDegenerate    = errors.New("degenerate geometry")
	ErrNonPlanar     = errors.New("non-planar face")
	ErrNonConvex     = errors.New("non-convex shape")
	ErrUnknownKind   = errors.New("unknown shape kind")
)
