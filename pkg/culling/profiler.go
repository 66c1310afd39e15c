package culling

import (
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Profile summarizes culling times in microseconds
type Profile struct {
	Frames         int     `json:"frames"`
	TotalAverage   float64 `json:"total_average_us"`
	RollingAverage float64 `json:"rolling_average_us"`
	RollingMax     float64 `json:"rolling_max_us"`
	RollingP95     float64 `json:"rolling_p95_us"`
}

// Profiler keeps a rolling window of culling times
type Profiler struct {
	mu     sync.Mutex
	window []float64 // ring buffer, microseconds
	next   int
	frames int
	total  float64
}

// NewProfiler creates a profiler with the given rolling window size
func NewProfiler(window int) *Profiler {
	if window <= 0 {
		window = 1
	}
	return &Profiler{window: make([]float64, 0, window)}
}

// Record adds the duration of one pass
func (p *Profiler) Record(d time.Duration) {
	us := float64(d) / float64(time.Microsecond)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.frames++
	p.total += us
	if len(p.window) < cap(p.window) {
		p.window = append(p.window, us)
		return
	}
	p.window[p.next] = us
	p.next = (p.next + 1) % len(p.window)
}

// RollingMax returns the slowest pass in the window, in microseconds
func (p *Profiler) RollingMax() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.window) == 0 {
		return 0
	}
	return floats.Max(p.window)
}

// Profile returns the current summary
func (p *Profiler) Profile() Profile {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.frames == 0 {
		return Profile{}
	}
	sorted := slices.Clone(p.window)
	slices.Sort(sorted)

	return Profile{
		Frames:         p.frames,
		TotalAverage:   p.total / float64(p.frames),
		RollingAverage: stat.Mean(p.window, nil),
		RollingMax:     floats.Max(p.window),
		RollingP95:     stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}
