package main

import (
	"fmt"

	"github.com/pthm-cable/hopper/config"
)

// ParamSpec bounds a single tunable coefficient. The optimizer searches a
// normalized [0,1] space; Denormalize maps samples back into [Min, Max].
type ParamSpec struct {
	Name    string
	Path    string
	Min     float64
	Max     float64
	Default float64
}

// tunable lists the shaping coefficients worth searching over. The terminal
// penalties (fall, timeout) and the goal decay rate stay fixed so the search
// cannot trade them away against the dense terms.
var tunable = []ParamSpec{
	{Name: "progress_reward", Path: "rewards.progress_reward", Min: 0.2, Max: 3.0, Default: 1.0},
	{Name: "progress_penalty", Path: "rewards.progress_penalty", Min: 0.0, Max: 1.5, Default: 0.5},
	{Name: "directional_reward", Path: "rewards.directional_reward", Min: 0.0, Max: 0.1, Default: 0.02},
	{Name: "time_penalty_rate", Path: "rewards.time_penalty_rate", Min: -0.2, Max: 0.0, Default: -0.05},
	{Name: "survival_rate", Path: "rewards.survival_rate", Min: 0.0, Max: 0.15, Default: 0.03},
	{Name: "idle_penalty_rate", Path: "rewards.idle_penalty_rate", Min: -0.4, Max: 0.0, Default: -0.1},
	{Name: "goal_base", Path: "rewards.goal_base", Min: 1.0, Max: 10.0, Default: 5.0},
	{Name: "goal_sequential_bonus", Path: "rewards.goal_sequential_bonus", Min: 0.0, Max: 3.0, Default: 1.0},
	{Name: "landing_reward", Path: "rewards.landing_reward", Min: 0.0, Max: 1.0, Default: 0.2},
}

// ParamVector maps between optimizer vectors and config fields.
type ParamVector struct {
	Specs []ParamSpec
}

func NewParamVector() *ParamVector {
	return &ParamVector{Specs: tunable}
}

func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the per-parameter defaults in denormalized space.
func (pv *ParamVector) DefaultVector() []float64 {
	out := make([]float64, len(pv.Specs))
	for i, s := range pv.Specs {
		out[i] = s.Default
	}
	return out
}

// Normalize maps denormalized values into [0,1] per the parameter bounds.
func (pv *ParamVector) Normalize(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, s := range pv.Specs {
		out[i] = (x[i] - s.Min) / (s.Max - s.Min)
	}
	return out
}

// Denormalize maps [0,1] samples back into the parameter bounds.
func (pv *ParamVector) Denormalize(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, s := range pv.Specs {
		out[i] = s.Min + x[i]*(s.Max-s.Min)
	}
	return out
}

// Clamp bounds a denormalized vector to the parameter ranges. CMA-ES samples
// an unbounded gaussian, so steps past the edges are expected.
func (pv *ParamVector) Clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, s := range pv.Specs {
		out[i] = min(max(x[i], s.Min), s.Max)
	}
	return out
}

// ApplyToConfig writes a denormalized vector into the config.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, x []float64) error {
	if len(x) != len(pv.Specs) {
		return fmt.Errorf("param vector has %d values, want %d", len(x), len(pv.Specs))
	}
	for i, s := range pv.Specs {
		v := x[i]
		switch s.Path {
		case "rewards.progress_reward":
			cfg.Rewards.ProgressReward = v
		case "rewards.progress_penalty":
			cfg.Rewards.ProgressPenalty = v
		case "rewards.directional_reward":
			cfg.Rewards.DirectionalReward = v
		case "rewards.time_penalty_rate":
			cfg.Rewards.TimePenaltyRate = v
		case "rewards.survival_rate":
			cfg.Rewards.SurvivalRate = v
		case "rewards.idle_penalty_rate":
			cfg.Rewards.IdlePenaltyRate = v
		case "rewards.goal_base":
			cfg.Rewards.GoalBase = v
		case "rewards.goal_sequential_bonus":
			cfg.Rewards.GoalSequentialBonus = v
		case "rewards.landing_reward":
			cfg.Rewards.LandingReward = v
		default:
			return fmt.Errorf("unknown param path %q", s.Path)
		}
	}
	return nil
}
