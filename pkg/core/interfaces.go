package core

// Logger interface for culling logging
type Logger interface {
	Printf(format string, args ...interface{})
}
