package session

import (
	"time"

	"github.com/df07/go-corner-culling/pkg/core"
)

// Config contains configuration for a culling session
type Config struct {
	CullingPeriod       int           `json:"culling_period"`        // Ticks between culls
	MinTimerIncrement   int           `json:"min_timer_increment"`   // Culls a revealed enemy stays revealed
	MaxTimerIncrement   int           `json:"max_timer_increment"`   // Same, while the server is under load
	LoadThreshold       core.Duration `json:"load_threshold"`        // Rolling max cull time that counts as load
	TickRate            int           `json:"tick_rate"`             // Server ticks per second
	SimulatedLatency    int           `json:"simulated_latency"`     // Ticks of latency assumed for every client
	PeekSpeedHorizontal float64       `json:"peek_speed_horizontal"` // Units per second
	PeekSpeedVertical   float64       `json:"peek_speed_vertical"`   // Units per second
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		CullingPeriod:       4,
		MinTimerIncrement:   10,
		MaxTimerIncrement:   18,
		LoadThreshold:       core.Duration(time.Millisecond),
		TickRate:            64,
		SimulatedLatency:    0,
		PeekSpeedHorizontal: 300,
		PeekSpeedVertical:   150,
	}
}
