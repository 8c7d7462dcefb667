package env

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/pthm-cable/hopper/config"
)

// ObservationSize is the length of the encoded observation vector.
const ObservationSize = 14

// Observation holds one tick's sensory snapshot before encoding.
// Ray distances are normalized by the configured ray length, so 1.0 means
// nothing was hit within range.
type Observation struct {
	VelX     float64 // horizontal velocity, world units/s
	VelY     float64 // vertical velocity, world units/s
	Grounded bool    // support surface within probe length below the feet

	Rays [NumRays]float64 // normalized clear distance per direction [0,1]

	GoalRelX   float64 // goal x minus agent x, zero when no active goal
	GoalRelY   float64 // goal y minus agent y, zero when no active goal
	GoalActive bool    // false when the goal is absent or deactivated
}

// AsSlice encodes the observation in its fixed contract order.
//
// Index mapping:
//
//	[0]     velocity x
//	[1]     velocity y
//	[2]     grounded (0 or 1)
//	[3]     ray right [0,1]
//	[4]     ray left [0,1]
//	[5]     ray down [0,1]
//	[6]     ray up [0,1]
//	[7]     ray up-right [0,1]
//	[8]     ray down-right [0,1]
//	[9]     ray up-left [0,1]
//	[10]    ray down-left [0,1]
//	[11]    goal-relative x
//	[12]    goal-relative y
//	[13]    goal active (0 or 1)
func (o *Observation) AsSlice() []float64 {
	out := make([]float64, ObservationSize)
	out[0] = o.VelX
	out[1] = o.VelY
	out[2] = boolToFloat(o.Grounded)
	for i, d := range o.Rays {
		out[3+i] = clampf(d, 0, 1)
	}
	out[11] = o.GoalRelX
	out[12] = o.GoalRelY
	out[13] = boolToFloat(o.GoalActive)
	return out
}

// AsVec encodes the observation as a dense column vector.
func (o *Observation) AsVec() *mat.VecDense {
	return mat.NewVecDense(ObservationSize, o.AsSlice())
}

// ObservationBounds reports the per-index value range of the encoded vector.
// Vertical velocity is unbounded under gravity and is reported as such.
func ObservationBounds(cfg *config.Config) []r1.Interval {
	inf := infInterval()
	bounds := make([]r1.Interval, ObservationSize)
	bounds[0] = r1.Interval{Min: -cfg.Agent.MoveSpeed, Max: cfg.Agent.MoveSpeed}
	bounds[1] = inf
	bounds[2] = r1.Interval{Min: 0, Max: 1}
	for i := 0; i < NumRays; i++ {
		bounds[3+i] = r1.Interval{Min: 0, Max: 1}
	}
	span := cfg.Level.Width
	rise := cfg.Level.MaxHeight - cfg.Episode.FallOffset
	bounds[11] = r1.Interval{Min: -span, Max: span}
	bounds[12] = r1.Interval{Min: -rise, Max: rise}
	bounds[13] = r1.Interval{Min: 0, Max: 1}
	return bounds
}

func infInterval() r1.Interval {
	return r1.Interval{Min: math.Inf(-1), Max: math.Inf(1)}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}

func clampf(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
