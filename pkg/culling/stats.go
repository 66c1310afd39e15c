package culling

import "time"

// FrameStats contains statistics about one culling pass
type FrameStats struct {
	Candidates       int           // Number of candidates submitted
	Visible          int           // Candidates left visible
	Hidden           int           // Candidates hidden by an occluder or the frustum
	FrustumCulled    int           // Hidden because they are outside the view frustum
	TimedOut         int           // Left visible because the frame budget ran out
	CacheHits        int           // Hidden by an occluder from the per-pair cache
	OccluderTests    int           // Occluder tests run after the cache missed
	SkippedOccluders int           // Occluders skipped this frame because they failed
	Duration         time.Duration // Wall time of the pass
}

// Add accumulates other into s
func (s *FrameStats) Add(other FrameStats) {
	s.Candidates += other.Candidates
	s.Visible += other.Visible
	s.Hidden += other.Hidden
	s.FrustumCulled += other.FrustumCulled
	s.TimedOut += other.TimedOut
	s.CacheHits += other.CacheHits
	s.OccluderTests += other.OccluderTests
	s.SkippedOccluders += other.SkippedOccluders
	s.Duration += other.Duration
}

// candidateOutcome is what a worker reports for one candidate
type candidateOutcome struct {
	index         int
	hidden        bool
	frustumCulled bool
	timedOut      bool
	cacheHit      bool
	tests         int
}
