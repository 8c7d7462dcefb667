package telemetry

// Collector accumulates step and episode events within time windows and
// produces WindowStats.
type Collector struct {
	windowDurationSec   float64
	windowDurationTicks int64
	dt                  float64

	// Current window tracking
	windowStartTick int64

	// Event counters for current window
	steps     int
	rewardSum float64
	episodes  int
	falls     int
	timeouts  int
	goals     int
	returns   []float64
	lengths   []float64
}

// NewCollector creates a new stats collector.
// windowDurationSec: how long each stats window lasts in simulation seconds
// dt: seconds per tick (used for tick-to-time conversion)
func NewCollector(windowDurationSec, dt float64) *Collector {
	ticksPerWindow := int64(windowDurationSec / dt)
	if ticksPerWindow < 1 {
		ticksPerWindow = 1
	}

	return &Collector{
		windowDurationSec:   windowDurationSec,
		windowDurationTicks: ticksPerWindow,
		dt:                  dt,
		windowStartTick:     0,
	}
}

// RecordStep records one environment tick and its reward.
func (c *Collector) RecordStep(reward float64) {
	c.steps++
	c.rewardSum += reward
}

// RecordEpisode records a finished episode.
func (c *Collector) RecordEpisode(rec EpisodeRecord) {
	c.episodes++
	c.goals += rec.Goals
	c.returns = append(c.returns, rec.Return)
	c.lengths = append(c.lengths, rec.DurationSec)
	switch rec.Outcome {
	case "falling":
		c.falls++
	case "timeout":
		c.timeouts++
	}
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int64) bool {
	return currentTick-c.windowStartTick >= c.windowDurationTicks
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(currentTick int64) WindowStats {
	mean, p10, p50, p90 := ComputeReturnStats(c.returns)

	var lengthMean float64
	for _, l := range c.lengths {
		lengthMean += l
	}
	if len(c.lengths) > 0 {
		lengthMean /= float64(len(c.lengths))
	}

	var rewardPerSec float64
	if c.steps > 0 {
		rewardPerSec = c.rewardSum / (float64(c.steps) * c.dt)
	}

	var goalsPerEpisode, fallRate float64
	if c.episodes > 0 {
		goalsPerEpisode = float64(c.goals) / float64(c.episodes)
		fallRate = float64(c.falls) / float64(c.episodes)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		SimTimeSec:      float64(currentTick) * c.dt,

		Steps:    c.steps,
		Episodes: c.episodes,
		Falls:    c.falls,
		Timeouts: c.timeouts,
		Goals:    c.goals,

		RewardPerSec: rewardPerSec,

		ReturnMean: mean,
		ReturnP10:  p10,
		ReturnP50:  p50,
		ReturnP90:  p90,

		LengthMeanSec:   lengthMean,
		GoalsPerEpisode: goalsPerEpisode,
		FallRate:        fallRate,
	}

	// Reset for next window
	c.windowStartTick = currentTick
	c.steps = 0
	c.rewardSum = 0
	c.episodes = 0
	c.falls = 0
	c.timeouts = 0
	c.goals = 0
	c.returns = c.returns[:0]
	c.lengths = c.lengths[:0]

	return stats
}

// WindowDurationTicks returns the number of ticks per window.
func (c *Collector) WindowDurationTicks() int64 {
	return c.windowDurationTicks
}
