package telemetry

import (
	"log/slog"
	"sort"
)

// EpisodeRecord holds one finished episode for episodes.csv.
type EpisodeRecord struct {
	Episode     int     `csv:"episode" json:"episode"`
	EndTick     int64   `csv:"end_tick" json:"end_tick"`
	SimTimeSec  float64 `csv:"sim_time" json:"sim_time"`
	Outcome     string  `csv:"outcome" json:"outcome"` // "falling" or "timeout"
	Return      float64 `csv:"return" json:"return"`
	Ticks       int     `csv:"ticks" json:"ticks"`
	DurationSec float64 `csv:"duration" json:"duration"`
	Goals       int     `csv:"goals" json:"goals"`
}

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int64   `csv:"-" json:"-"`
	WindowEndTick   int64   `csv:"window_end" json:"window_end"`
	SimTimeSec      float64 `csv:"sim_time" json:"sim_time"`

	// Activity during the window
	Steps    int `csv:"steps" json:"steps"`
	Episodes int `csv:"episodes" json:"episodes"`
	Falls    int `csv:"falls" json:"falls"`
	Timeouts int `csv:"timeouts" json:"timeouts"`
	Goals    int `csv:"goals" json:"goals"`

	// Reward flow
	RewardPerSec float64 `csv:"reward_per_sec" json:"reward_per_sec"`

	// Return distribution over episodes finished in the window
	ReturnMean float64 `csv:"return_mean" json:"return_mean"`
	ReturnP10  float64 `csv:"return_p10" json:"return_p10"`
	ReturnP50  float64 `csv:"return_p50" json:"return_p50"`
	ReturnP90  float64 `csv:"return_p90" json:"return_p90"`

	// Episode shape
	LengthMeanSec   float64 `csv:"episode_len_mean" json:"episode_len_mean"`
	GoalsPerEpisode float64 `csv:"goals_per_episode" json:"goals_per_episode"`
	FallRate        float64 `csv:"fall_rate" json:"fall_rate"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeReturnStats calculates mean and percentiles from episode returns.
func ComputeReturnStats(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, p10, p50, p90
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("window_start", s.WindowStartTick),
		slog.Int64("window_end", s.WindowEndTick),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("steps", s.Steps),
		slog.Int("episodes", s.Episodes),
		slog.Int("falls", s.Falls),
		slog.Int("timeouts", s.Timeouts),
		slog.Int("goals", s.Goals),
		slog.Float64("reward_per_sec", s.RewardPerSec),
		slog.Float64("return_mean", s.ReturnMean),
		slog.Float64("return_p10", s.ReturnP10),
		slog.Float64("return_p50", s.ReturnP50),
		slog.Float64("return_p90", s.ReturnP90),
		slog.Float64("episode_len_mean", s.LengthMeanSec),
		slog.Float64("goals_per_episode", s.GoalsPerEpisode),
		slog.Float64("fall_rate", s.FallRate),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"steps", s.Steps,
		"episodes", s.Episodes,
		"falls", s.Falls,
		"timeouts", s.Timeouts,
		"goals", s.Goals,
		"reward_per_sec", s.RewardPerSec,
		"return_mean", s.ReturnMean,
		"return_p50", s.ReturnP50,
		"episode_len_mean", s.LengthMeanSec,
		"goals_per_episode", s.GoalsPerEpisode,
		"fall_rate", s.FallRate,
	)
}
