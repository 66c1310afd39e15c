package culling

import (
	"log"
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
	"github.com/df07/go-corner-culling/pkg/visibility"
)

// DefaultLogger implements core.Logger through the standard logger
type DefaultLogger struct{}

func (dl *DefaultLogger) Printf(format string, args ...interface{}) {
	log.Printf(format, args...)
}

// NewDefaultLogger creates a new default logger
func NewDefaultLogger() core.Logger {
	return &DefaultLogger{}
}

// Config contains configuration for the culling executor
type Config struct {
	Workers       int           `json:"workers"`        // Number of parallel workers (0 = use CPU count)
	FrameBudget   core.Duration `json:"frame_budget"`   // Deadline per pass (0 = none); late candidates stay visible
	Epsilon       float64       `json:"epsilon"`        // Occlusion margin in world units
	CacheSize     int           `json:"cache_size"`     // Cached occluders per viewer/candidate pair (0 = disabled)
	ProfileWindow int           `json:"profile_window"` // Frames in the rolling timing window
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		Workers:       0,
		FrameBudget:   core.Duration(4 * time.Millisecond),
		Epsilon:       visibility.DefaultEpsilon,
		CacheSize:     3,  // Slots per pair, least recently useful replaced
		ProfileWindow: 80, // 20 culling periods of 4 ticks
	}
}
