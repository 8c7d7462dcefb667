package sim

import (
	"context"
	"io"
	"log/slog"

	"github.com/pthm-cable/hopper/config"
)

// EvaluateReturn rolls out the named policy once per seed and returns the
// mean episode return across every finished episode. File output and logging
// are disabled, so it is cheap enough to sit inside an optimizer loop.
//
// maxTicks bounds each rollout; zero defaults to three timeout-lengths so
// the call always terminates. With the episode timer on, any rollout at
// least one episode long finishes at least one episode. Returns 0 when no
// episode finishes.
func EvaluateReturn(cfg *config.Config, policyName string, seeds []int64, maxTicks int64) (float64, error) {
	quiet := *cfg
	quiet.Telemetry.OutputDir = ""
	if maxTicks <= 0 {
		maxTicks = 3 * int64(quiet.Derived.MaxEpisodeTicks)
	}
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))

	var totalReturn float64
	var totalEpisodes int
	for _, seed := range seeds {
		r, err := New(Options{
			Config:   &quiet,
			Seed:     seed,
			Policy:   policyName,
			MaxTicks: maxTicks,
			Log:      discard,
		})
		if err != nil {
			return 0, err
		}
		res, err := r.Run(context.Background())
		if err != nil {
			return 0, err
		}
		totalReturn += res.MeanReturn * float64(res.Episodes)
		totalEpisodes += res.Episodes
	}

	if totalEpisodes == 0 {
		return 0, nil
	}
	return totalReturn / float64(totalEpisodes), nil
}
