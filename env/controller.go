package env

import (
	"log/slog"
	"math"
	"time"

	"golang.org/x/exp/rand"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/physics"
)

// Randomizer re-rolls the platform layout between episodes.
type Randomizer interface {
	Randomize()
}

// Painter receives the cosmetic goal-collected signal. Fire-and-forget.
type Painter interface {
	PaintCollected()
}

// Deps are the collaborator handles the controller works through. Body,
// Rays and Stepper are required; the rest are optional.
type Deps struct {
	Body    physics.Body
	Rays    physics.RayCaster
	Stepper physics.Stepper
	Goal    Goal
	Level   Randomizer
	Paint   Painter
	Source  rand.Source
	Log     *slog.Logger

	AgentAnchor physics.Vec2
	GoalAnchor  physics.Vec2
}

// Controller composes perception, placement and reward shaping into the
// tick-level environment contract: one observation, action and reward per
// physics step.
type Controller struct {
	cfg        *config.Config
	body       physics.Body
	stepper    physics.Stepper
	goal       Goal
	level      Randomizer
	paint      Painter
	log        *slog.Logger
	perception *Perception
	placement  *Placement

	ep episode
}

// NewController wires the environment core around the given collaborators.
func NewController(cfg *config.Config, deps Deps) *Controller {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	src := deps.Source
	if src == nil {
		src = rand.NewSource(uint64(time.Now().UnixNano()))
	}
	return &Controller{
		cfg:        cfg,
		body:       deps.Body,
		stepper:    deps.Stepper,
		goal:       deps.Goal,
		level:      deps.Level,
		paint:      deps.Paint,
		log:        log,
		perception: NewPerception(cfg, deps.Rays),
		placement:  NewPlacement(cfg, src, deps.Body, deps.Goal, deps.AgentAnchor, deps.GoalAnchor),
	}
}

// Begin starts a fresh episode: re-rolls the layout, zeroes motion and
// episode counters, places agent and goal on opposite sides and records the
// initial grounded state and goal distance. Safe to call at any time,
// including immediately after a terminal tick.
func (c *Controller) Begin() {
	if c.level != nil && !c.cfg.Episode.TestingMode {
		c.level.Randomize()
	}
	c.body.SetVelocity(physics.Vec2{})
	side := c.placement.NextStartSide()
	deathY := c.placement.PlaceOpposite(side)
	c.ep = episode{
		deathY:       deathY,
		prevGrounded: c.perception.IsGrounded(c.body),
		lastGoalDist: c.goalDistance(),
		phase:        PhaseActive,
	}
	c.log.Debug("episode begin",
		"start_on_goal_side", side,
		"death_y", deathY,
		"goal_dist", c.ep.lastGoalDist)
}

// Step advances the environment by one tick. When no episode is active a
// fresh one is begun first, so the controller is always safe to step.
//
// Tick order is load-bearing: grounded is sampled before the jump so
// eligibility reflects pre-tick contact, the timer is advanced before any
// reward term, and a timeout or fall suppresses every term after it.
func (c *Controller) Step(action Action) Step {
	if c.ep.phase != PhaseActive {
		c.Begin()
	}
	cfg := c.cfg
	dt := cfg.Physics.DT
	rw := cfg.Rewards

	action = action.Clamped()
	grounded := c.perception.IsGrounded(c.body)

	c.ep.elapsed += dt
	if c.ep.elapsed >= cfg.Episode.MaxTime {
		c.ep.phase = PhaseTimeout
		c.log.Debug("episode timeout", "collected", c.ep.collected)
		return Step{
			Obs:     c.observe(grounded),
			Reward:  rw.TimeoutPenalty,
			Done:    true,
			Outcome: PhaseTimeout,
		}
	}

	vel := c.body.Velocity()
	c.body.SetVelocity(physics.Vec2{X: action.Move * cfg.Agent.MoveSpeed, Y: vel.Y})
	if action.Jump > cfg.Agent.JumpThreshold && grounded {
		c.body.ApplyImpulse(physics.Vec2{Y: cfg.Agent.JumpImpulse})
	}
	c.stepper.Step(dt)

	reward := 0.0
	goalActive := c.goal != nil && c.goal.Active()
	distBefore := c.ep.lastGoalDist
	distAfter := distBefore
	if goalActive {
		distAfter = physics.Dist(c.body.Position(), c.goal.Position())
		reward += progressTerm(distBefore, distAfter, rw)
		toGoal := c.goal.Position().Sub(c.body.Position())
		reward += directionalTerm(c.body.Velocity(), toGoal, dt, rw)
	}
	reward += rw.TimePenaltyRate * dt
	reward += rw.SurvivalRate * dt
	if c.ep.collected == 0 {
		reward += rw.NoGoalPenaltyRate * dt
	}
	if grounded && math.Abs(c.body.Velocity().X) < cfg.Agent.IdleSpeedThreshold {
		reward += rw.IdlePenaltyRate * dt
	}

	if c.body.Position().Y < c.ep.deathY {
		reward += rw.FallPenalty
		c.ep.phase = PhaseFalling
		c.log.Debug("episode fell",
			"y", c.body.Position().Y,
			"death_y", c.ep.deathY,
			"collected", c.ep.collected)
		return Step{
			Obs:     c.observe(grounded),
			Reward:  reward,
			Done:    true,
			Outcome: PhaseFalling,
		}
	}

	if goalActive && distAfter <= cfg.Episode.PickupRadius {
		reward += captureReward(c.ep.collected, c.ep.elapsed, rw)
		c.ep.collected++
		c.goal.SetActive(false)
		if c.paint != nil {
			c.paint.PaintCollected()
		}
		c.placement.MoveGoalToAlternateSide()
		// The goal just moved; never carry the stale distance into next tick.
		distAfter = c.goalDistance()
	}

	if grounded && !c.ep.prevGrounded && c.body.Position().Y > c.ep.deathY {
		reward += rw.LandingReward
	}

	c.ep.prevGrounded = grounded
	c.ep.lastGoalDist = distAfter

	return Step{
		Obs:     c.observe(grounded),
		Reward:  reward,
		Done:    false,
		Outcome: PhaseActive,
	}
}

// Observe reports the current observation without advancing the tick.
func (c *Controller) Observe() Observation {
	return c.observe(c.perception.IsGrounded(c.body))
}

// Phase reports the current episode phase.
func (c *Controller) Phase() Phase { return c.ep.phase }

// Elapsed reports seconds since the current episode began.
func (c *Controller) Elapsed() float64 { return c.ep.elapsed }

// Collected reports goals captured in the current episode.
func (c *Controller) Collected() int { return c.ep.collected }

// DeathHeight reports the current episode's fall threshold.
func (c *Controller) DeathHeight() float64 { return c.ep.deathY }

func (c *Controller) goalDistance() float64 {
	if c.goal == nil || !c.goal.Active() {
		return 0
	}
	return physics.Dist(c.body.Position(), c.goal.Position())
}

func (c *Controller) observe(grounded bool) Observation {
	pos := c.body.Position()
	vel := c.body.Velocity()
	obs := Observation{VelX: vel.X, VelY: vel.Y, Grounded: grounded}
	for i, dir := range RayDirections {
		obs.Rays[i] = c.perception.CastDistance(pos, dir)
	}
	if c.goal != nil && c.goal.Active() {
		gp := c.goal.Position()
		obs.GoalRelX = gp.X - pos.X
		obs.GoalRelY = gp.Y - pos.Y
		obs.GoalActive = true
	}
	return obs
}
