package env

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/physics"
)

// Goal is the single reusable goal target the environment drives. It is
// never destroyed; capture deactivates, relocates and reactivates it.
type Goal interface {
	Position() physics.Vec2
	SetPosition(physics.Vec2)
	Active() bool
	SetActive(bool)
}

// anchorID names one of the two authored reference positions.
type anchorID uint8

const (
	anchorAgentOriginal anchorID = iota
	anchorGoalOriginal
)

// Placement decides where the agent and goal start each episode and where
// the goal relocates after a capture. The alternation state is an explicit
// anchor choice rather than a boolean, so side bookkeeping reads directly.
type Placement struct {
	cfg  *config.Config
	src  rand.Source
	coin distuv.Bernoulli
	body physics.Body
	goal Goal

	agentAnchor physics.Vec2
	goalAnchor  physics.Vec2

	// nextGoalAnchor is where the next capture-triggered relocation targets.
	nextGoalAnchor anchorID
	// startOnGoalSide is the stored flip state for alternate-sides mode.
	startOnGoalSide bool
}

// NewPlacement builds a placement policy around the two authored anchors.
// goal may be nil; relocation then only maintains the alternation state.
func NewPlacement(cfg *config.Config, src rand.Source, body physics.Body, goal Goal, agentAnchor, goalAnchor physics.Vec2) *Placement {
	return &Placement{
		cfg:            cfg,
		src:            src,
		coin:           distuv.Bernoulli{P: 0.5, Src: src},
		body:           body,
		goal:           goal,
		agentAnchor:    agentAnchor,
		goalAnchor:     goalAnchor,
		nextGoalAnchor: anchorGoalOriginal,
	}
}

// NextStartSide picks which anchor the agent spawns near for the coming
// episode. Testing mode always uses the authored sides; alternate-sides mode
// flips a stored boolean; otherwise the side is a fair coin toss.
func (p *Placement) NextStartSide() bool {
	switch {
	case p.cfg.Episode.TestingMode:
		return false
	case p.cfg.Episode.AlternateSides:
		p.startOnGoalSide = !p.startOnGoalSide
		return p.startOnGoalSide
	default:
		return p.coin.Rand() > 0.5
	}
}

// PlaceOpposite positions the agent and goal on opposite anchors with
// bounded jitter and returns the episode death height. The next relocation
// anchor is set to whichever anchor the agent did not spawn near.
func (p *Placement) PlaceOpposite(startOnGoalSide bool) float64 {
	if p.cfg.Episode.TestingMode {
		p.body.SetPosition(p.agentAnchor)
		if p.goal == nil {
			p.nextGoalAnchor = anchorGoalOriginal
		} else {
			p.goal.SetPosition(p.goalAnchor)
			p.goal.SetActive(true)
			p.nextGoalAnchor = anchorGoalOriginal
		}
		return p.agentAnchor.Y + p.cfg.Episode.FallOffset
	}

	agentSide, goalSide := p.agentAnchor, p.goalAnchor
	if startOnGoalSide {
		agentSide, goalSide = goalSide, agentSide
	}

	pl := p.cfg.Placement
	spawn := physics.Vec2{
		X: agentSide.X + p.jitter(pl.AgentJitterX),
		Y: agentSide.Y + p.jitter(pl.AgentJitterY),
	}
	p.body.SetPosition(spawn)

	if p.goal == nil {
		p.nextGoalAnchor = anchorGoalOriginal
	} else {
		p.goal.SetPosition(physics.Vec2{
			X: goalSide.X + p.jitter(pl.GoalJitterX),
			Y: goalSide.Y + p.jitter(pl.GoalJitterY),
		})
		p.goal.SetActive(true)
		if startOnGoalSide {
			p.nextGoalAnchor = anchorAgentOriginal
		} else {
			p.nextGoalAnchor = anchorGoalOriginal
		}
	}
	return spawn.Y + p.cfg.Episode.FallOffset
}

// MoveGoalToAlternateSide relocates the goal after a capture: testing mode
// snaps it back to the authored position, otherwise it jitters around the
// current alternation anchor and the anchor flips for the next capture.
func (p *Placement) MoveGoalToAlternateSide() {
	if p.goal == nil {
		p.nextGoalAnchor = anchorGoalOriginal
		return
	}
	if p.cfg.Episode.TestingMode {
		p.goal.SetPosition(p.goalAnchor)
		p.goal.SetActive(true)
		return
	}

	target := p.goalAnchor
	if p.nextGoalAnchor == anchorAgentOriginal {
		target = p.agentAnchor
	}
	pl := p.cfg.Placement
	p.goal.SetPosition(physics.Vec2{
		X: target.X + p.jitter(pl.GoalJitterX),
		Y: target.Y + p.jitter(pl.GoalJitterY),
	})
	p.goal.SetActive(true)
	if p.nextGoalAnchor == anchorAgentOriginal {
		p.nextGoalAnchor = anchorGoalOriginal
	} else {
		p.nextGoalAnchor = anchorAgentOriginal
	}
}

// jitter draws a uniform offset in [-r, r]. A zero range is a fixed spawn.
func (p *Placement) jitter(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return distuv.Uniform{Min: -r, Max: r, Src: p.src}.Rand()
}
