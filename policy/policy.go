// Package policy provides built-in action sources for driving the
// environment without an external learner: a goal-chasing heuristic, a
// uniform random explorer and a scripted sequence for reproducing exact
// action traces.
package policy

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/hopper/env"
)

// Policy maps an observation vector to an action vector. Reset is called at
// every episode boundary.
type Policy interface {
	SelectAction(obs *mat.VecDense) *mat.VecDense
	Reset()
}

// New returns the named built-in policy.
func New(name string, seed uint64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chaser":
		return NewChaser(), nil
	case "random":
		return NewRandom(seed), nil
	case "idle":
		return NewScripted(nil), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// Observation indices the heuristics read; the layout is documented on
// env.Observation.AsSlice.
const (
	idxGrounded   = 2
	idxRayRight   = 3
	idxRayLeft    = 4
	idxGoalRelX   = 11
	idxGoalRelY   = 12
	idxGoalActive = 13
)

// Chaser runs toward the active goal and jumps over obstacles or up toward
// an elevated goal. Stateless between ticks.
type Chaser struct {
	// Deadzone is the horizontal goal offset below which the chaser stops
	// steering, so it does not oscillate over the pickup point.
	Deadzone float64
	// JumpAt is the normalized forward clearance below which a grounded
	// chaser jumps.
	JumpAt float64
	// ClimbAt is the goal height offset above which a grounded chaser jumps.
	ClimbAt float64
}

// NewChaser returns a chaser with workable default thresholds.
func NewChaser() *Chaser {
	return &Chaser{Deadzone: 0.25, JumpAt: 0.12, ClimbAt: 1.0}
}

func (c *Chaser) SelectAction(obs *mat.VecDense) *mat.VecDense {
	if obs == nil || obs.Len() < env.ObservationSize {
		return env.Action{}.AsVec()
	}

	var move float64
	if obs.AtVec(idxGoalActive) > 0.5 {
		relX := obs.AtVec(idxGoalRelX)
		switch {
		case relX > c.Deadzone:
			move = 1
		case relX < -c.Deadzone:
			move = -1
		}
	}

	var jump float64
	if obs.AtVec(idxGrounded) > 0.5 {
		ahead := obs.AtVec(idxRayRight)
		if move < 0 {
			ahead = obs.AtVec(idxRayLeft)
		}
		blocked := move != 0 && ahead < c.JumpAt
		climbing := obs.AtVec(idxGoalActive) > 0.5 && obs.AtVec(idxGoalRelY) > c.ClimbAt
		if blocked || climbing {
			jump = 1
		}
	}

	return env.Action{Move: move, Jump: jump}.AsVec()
}

func (c *Chaser) Reset() {}

// Random draws both action channels uniformly from [-1, 1].
type Random struct {
	uni distuv.Uniform
}

// NewRandom returns a seeded random policy.
func NewRandom(seed uint64) *Random {
	return &Random{uni: distuv.Uniform{Min: -1, Max: 1, Src: rand.NewSource(seed)}}
}

func (r *Random) SelectAction(obs *mat.VecDense) *mat.VecDense {
	return env.Action{Move: r.uni.Rand(), Jump: r.uni.Rand()}.AsVec()
}

func (r *Random) Reset() {}

// Scripted replays a fixed action sequence, then holds the zero action once
// the script runs out. Reset rewinds to the start.
type Scripted struct {
	script []env.Action
	at     int
}

// NewScripted returns a policy replaying the given actions in order.
func NewScripted(script []env.Action) *Scripted {
	return &Scripted{script: script}
}

func (s *Scripted) SelectAction(obs *mat.VecDense) *mat.VecDense {
	if s.at >= len(s.script) {
		return env.Action{}.AsVec()
	}
	a := s.script[s.at]
	s.at++
	return a.AsVec()
}

func (s *Scripted) Reset() { s.at = 0 }
