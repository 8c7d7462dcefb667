package telemetry

// RunStats tracks aggregate statistics over the lifetime of a run.
type RunStats struct {
	Steps     int64
	RewardSum float64

	Episodes int
	Falls    int
	Timeouts int
	Goals    int

	// Best episode so far
	BestReturn  float64
	BestEpisode int

	returnSum float64
}

// RunTracker accumulates run-lifetime statistics across episodes.
type RunTracker struct {
	stats RunStats
}

// NewRunTracker creates a new run tracker.
func NewRunTracker() *RunTracker {
	return &RunTracker{}
}

// RecordStep counts one environment step and its reward.
func (rt *RunTracker) RecordStep(reward float64) {
	rt.stats.Steps++
	rt.stats.RewardSum += reward
}

// RecordEpisode folds a finished episode into the run totals.
func (rt *RunTracker) RecordEpisode(rec EpisodeRecord) {
	rt.stats.Goals += rec.Goals
	rt.stats.returnSum += rec.Return

	switch rec.Outcome {
	case "falling":
		rt.stats.Falls++
	case "timeout":
		rt.stats.Timeouts++
	}

	if rt.stats.Episodes == 0 || rec.Return > rt.stats.BestReturn {
		rt.stats.BestReturn = rec.Return
		rt.stats.BestEpisode = rec.Episode
	}
	rt.stats.Episodes++
}

// Stats returns a copy of the accumulated totals.
func (rt *RunTracker) Stats() RunStats {
	return rt.stats
}

// MeanReturn returns the mean episode return, or 0 before any episode finished.
func (rt *RunTracker) MeanReturn() float64 {
	if rt.stats.Episodes == 0 {
		return 0
	}
	return rt.stats.returnSum / float64(rt.stats.Episodes)
}

// FillRunInfo copies final counters into a run info record.
func (rt *RunTracker) FillRunInfo(info *RunInfo) {
	if info == nil {
		return
	}
	info.Episodes = int64(rt.stats.Episodes)
	info.Steps = rt.stats.Steps
	info.BestReturn = rt.stats.BestReturn
	info.MeanReturn = rt.MeanReturn()
}
