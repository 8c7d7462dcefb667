package env

import (
	"math"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/physics"
)

// progressTerm scores the change in goal distance over one tick. Closing
// distance earns the reward coefficient, regressing pays the (smaller)
// penalty coefficient.
func progressTerm(before, after float64, rw config.RewardsConfig) float64 {
	delta := before - after
	if delta >= 0 {
		return delta * rw.ProgressReward
	}
	return delta * rw.ProgressPenalty
}

// directionalTerm scores velocity alignment with the unit direction toward
// the goal, integrated over the tick. A degenerate direction scores zero.
func directionalTerm(vel, toGoal physics.Vec2, dt float64, rw config.RewardsConfig) float64 {
	unit, ok := toGoal.Normalized()
	if !ok {
		return 0
	}
	dot := vel.Dot(unit)
	if dot >= 0 {
		return dot * dt * rw.DirectionalReward
	}
	return dot * dt * rw.DirectionalPenalty
}

// captureReward values a goal capture: a base amount plus a per-goal
// sequence bonus, discounted exponentially by episode time.
func captureReward(collected int, elapsed float64, rw config.RewardsConfig) float64 {
	return (rw.GoalBase + float64(collected)*rw.GoalSequentialBonus) *
		math.Exp(-rw.GoalDecayRate*elapsed)
}
