package registry

import "errors"

var (
	ErrUnknownOccluder = errors.New("unknown occluder")
	ErrStaticOccluder  = errors.New("occluder is static")
	ErrDuplicateID     = errors.New("duplicate occluder id")
)
