package env

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/physics"
)

// fakeBody is a scriptable physics body.
type fakeBody struct {
	pos, vel physics.Vec2
	half     physics.Vec2
	impulses []physics.Vec2
}

func (b *fakeBody) Position() physics.Vec2     { return b.pos }
func (b *fakeBody) Velocity() physics.Vec2     { return b.vel }
func (b *fakeBody) SetVelocity(v physics.Vec2) { b.vel = v }
func (b *fakeBody) SetPosition(p physics.Vec2) { b.pos = p }
func (b *fakeBody) ApplyImpulse(i physics.Vec2) {
	b.impulses = append(b.impulses, i)
}
func (b *fakeBody) HalfExtents() physics.Vec2 { return b.half }

// fakeRays scripts ray results: casts at the ground-probe length report the
// grounded flag, longer casts report rayHitDist (negative for a miss). Every
// call records its arguments for filter assertions.
type fakeRays struct {
	probeLen   float64
	grounded   bool
	rayHitDist float64

	lastOrigin physics.Vec2
	lastDir    physics.Vec2
	lastLen    float64
	lastMask   uint16
}

func (r *fakeRays) Cast(origin, dir physics.Vec2, maxLen float64, mask uint16) (bool, float64) {
	r.lastOrigin, r.lastDir, r.lastLen, r.lastMask = origin, dir, maxLen, mask
	if maxLen == r.probeLen {
		return r.grounded, 0
	}
	if r.rayHitDist < 0 {
		return false, 0
	}
	return true, r.rayHitDist
}

// fakeStepper advances the fake body via an optional script.
type fakeStepper struct {
	body   *fakeBody
	onStep func(*fakeBody, float64)
	steps  int
}

func (s *fakeStepper) Step(dt float64) {
	s.steps++
	if s.onStep != nil {
		s.onStep(s.body, dt)
	}
}

type fakeGoal struct {
	pos    physics.Vec2
	active bool
}

func (g *fakeGoal) Position() physics.Vec2     { return g.pos }
func (g *fakeGoal) SetPosition(p physics.Vec2) { g.pos = p }
func (g *fakeGoal) Active() bool               { return g.active }
func (g *fakeGoal) SetActive(a bool)           { g.active = a }

type fakePaint struct{ n int }

func (p *fakePaint) PaintCollected() { p.n++ }

type fakeLayout struct{ n int }

func (l *fakeLayout) Randomize() { l.n++ }

func testCfg(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if mutate != nil {
		mutate(cfg)
	}
	return cfg
}

// zeroShaping clears every reward coefficient so tests can enable terms one
// at a time.
func zeroShaping(cfg *config.Config) {
	cfg.Rewards = config.RewardsConfig{}
}

type harness struct {
	cfg    *config.Config
	body   *fakeBody
	rays   *fakeRays
	step   *fakeStepper
	goal   *fakeGoal
	paint  *fakePaint
	layout *fakeLayout
	ctrl   *Controller
}

func newHarness(cfg *config.Config, agentAnchor, goalAnchor physics.Vec2) *harness {
	body := &fakeBody{half: physics.Vec2{X: cfg.Physics.AgentHalfWidth, Y: cfg.Physics.AgentHalfHeight}}
	rays := &fakeRays{probeLen: cfg.Derived.GroundProbeLen, rayHitDist: -1}
	goal := &fakeGoal{}
	paint := &fakePaint{}
	layout := &fakeLayout{}
	st := &fakeStepper{body: body}
	ctrl := NewController(cfg, Deps{
		Body:        body,
		Rays:        rays,
		Stepper:     st,
		Goal:        goal,
		Level:       layout,
		Paint:       paint,
		Source:      rand.NewSource(7),
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		AgentAnchor: agentAnchor,
		GoalAnchor:  goalAnchor,
	})
	return &harness{cfg: cfg, body: body, rays: rays, step: st, goal: goal, paint: paint, layout: layout, ctrl: ctrl}
}

func approx(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestObservationLayout(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})
	h.rays.grounded = true
	h.rays.rayHitDist = 6 // half the default ray length

	h.ctrl.Begin()
	h.body.vel = physics.Vec2{X: 2, Y: -3}

	obs := h.ctrl.Observe()
	vec := obs.AsSlice()
	if len(vec) != ObservationSize {
		t.Fatalf("observation length = %d, want %d", len(vec), ObservationSize)
	}
	approx(t, "vel.x", vec[0], 2)
	approx(t, "vel.y", vec[1], -3)
	approx(t, "grounded", vec[2], 1)
	for i := 3; i <= 10; i++ {
		approx(t, "ray", vec[i], 0.5)
	}
	approx(t, "goal rel x", vec[11], 34)
	approx(t, "goal rel y", vec[12], 0.2)
	approx(t, "goal active", vec[13], 1)

	if v := obs.AsVec(); v.Len() != ObservationSize {
		t.Errorf("AsVec length = %d, want %d", v.Len(), ObservationSize)
	}
}

func TestObservationRayClamp(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})
	h.rays.rayHitDist = 40 // beyond ray length

	h.ctrl.Begin()
	obs := h.ctrl.Observe()
	vec := obs.AsSlice()
	for i := 3; i <= 10; i++ {
		if vec[i] < 0 || vec[i] > 1 {
			t.Fatalf("ray %d = %v, want within [0,1]", i-3, vec[i])
		}
		approx(t, "clamped ray", vec[i], 1)
	}
}

func TestActionClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Action
		want Action
	}{
		{"in range", Action{Move: 0.5, Jump: -0.25}, Action{Move: 0.5, Jump: -0.25}},
		{"over", Action{Move: 5, Jump: 3}, Action{Move: 1, Jump: 1}},
		{"under", Action{Move: -2, Jump: -9}, Action{Move: -1, Jump: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clamped()
			approx(t, "move", got.Move, tt.want.Move)
			approx(t, "jump", got.Jump, tt.want.Jump)
		})
	}
}

func TestActionFromAxes(t *testing.T) {
	a := ActionFromAxes(-3, true)
	approx(t, "move", a.Move, -1)
	approx(t, "jump", a.Jump, 1)
	a = ActionFromAxes(0.25, false)
	approx(t, "move", a.Move, 0.25)
	approx(t, "jump", a.Jump, 0)
}

func TestActionVecRoundTrip(t *testing.T) {
	a := Action{Move: 0.3, Jump: -0.7}
	got := ActionFromVec(a.AsVec())
	approx(t, "move", got.Move, a.Move)
	approx(t, "jump", got.Jump, a.Jump)

	zero := ActionFromVec(nil)
	approx(t, "nil move", zero.Move, 0)
	approx(t, "nil jump", zero.Jump, 0)
}

func TestStepClampsMovement(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

	h.ctrl.Begin()
	h.ctrl.Step(Action{Move: 5})
	approx(t, "vel.x", h.body.vel.X, cfg.Agent.MoveSpeed)
}

func TestJumpNeedsPreTickContact(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })

	tests := []struct {
		name     string
		grounded bool
		jump     float64
		want     int
	}{
		{"grounded full jump", true, 1, 1},
		{"airborne full jump", false, 1, 0},
		{"grounded below threshold", true, 0.4, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})
			h.rays.grounded = tt.grounded
			h.ctrl.Begin()
			h.ctrl.Step(Action{Jump: tt.jump})
			if len(h.body.impulses) != tt.want {
				t.Fatalf("impulses = %d, want %d", len(h.body.impulses), tt.want)
			}
			if tt.want == 1 {
				approx(t, "impulse y", h.body.impulses[0].Y, cfg.Agent.JumpImpulse)
			}
		})
	}
}

func TestBeginIdempotent(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

	h.ctrl.Begin()
	h.ctrl.Step(Action{Move: 1})
	h.ctrl.Begin()
	h.ctrl.Begin()

	approx(t, "elapsed", h.ctrl.Elapsed(), 0)
	if h.ctrl.Collected() != 0 {
		t.Errorf("collected = %d, want 0", h.ctrl.Collected())
	}
	if h.ctrl.Phase() != PhaseActive {
		t.Errorf("phase = %v, want %v", h.ctrl.Phase(), PhaseActive)
	}
	approx(t, "velocity zeroed", h.body.vel.Len(), 0)
}

func TestFirstStepAutoBegins(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

	s := h.ctrl.Step(Action{})
	if s.Done {
		t.Fatal("first step reported done")
	}
	if s.Outcome != PhaseActive {
		t.Fatalf("outcome = %v, want %v", s.Outcome, PhaseActive)
	}
	approx(t, "elapsed", h.ctrl.Elapsed(), cfg.Physics.DT)
}

func TestProgressTerm(t *testing.T) {
	rw := config.RewardsConfig{ProgressReward: 2, ProgressPenalty: 1}
	tests := []struct {
		name           string
		before, after  float64
		want           float64
		wantStrictSign int
	}{
		{"closing", 5, 4, 2, 1},
		{"regressing", 4, 5, -1, -1},
		{"holding", 3, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := progressTerm(tt.before, tt.after, rw)
			approx(t, "term", got, tt.want)
			switch tt.wantStrictSign {
			case 1:
				if got <= 0 {
					t.Errorf("term = %v, want strictly positive", got)
				}
			case -1:
				if got >= 0 {
					t.Errorf("term = %v, want strictly negative", got)
				}
			}
		})
	}
}

func TestDirectionalTerm(t *testing.T) {
	rw := config.RewardsConfig{DirectionalReward: 0.5, DirectionalPenalty: 0.25}
	dt := 0.02

	toward := directionalTerm(physics.Vec2{X: 2}, physics.Vec2{X: 10}, dt, rw)
	approx(t, "toward", toward, 2*dt*0.5)

	away := directionalTerm(physics.Vec2{X: -2}, physics.Vec2{X: 10}, dt, rw)
	approx(t, "away", away, -2*dt*0.25)

	degenerate := directionalTerm(physics.Vec2{X: 2}, physics.Vec2{}, dt, rw)
	approx(t, "degenerate", degenerate, 0)
}

func TestCaptureRewardDecays(t *testing.T) {
	rw := config.RewardsConfig{GoalBase: 5, GoalSequentialBonus: 1, GoalDecayRate: 0.05}

	approx(t, "fresh", captureReward(0, 0, rw), 5)
	approx(t, "third goal", captureReward(2, 0, rw), 7)

	early := captureReward(1, 2, rw)
	late := captureReward(1, 10, rw)
	if early <= late {
		t.Errorf("capture reward did not decay: %v then %v", early, late)
	}
	approx(t, "decayed", late, 6*math.Exp(-0.5))
}

func TestFallEndsEpisode(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) {
		c.Episode.TestingMode = true
		zeroShaping(c)
		c.Rewards.FallPenalty = -5
	})
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

	deathY := 1 + cfg.Episode.FallOffset
	falling := true
	h.step.onStep = func(b *fakeBody, dt float64) {
		if falling {
			b.pos.Y = deathY - 1
		}
	}

	h.ctrl.Begin()
	approx(t, "death height", h.ctrl.DeathHeight(), deathY)

	s := h.ctrl.Step(Action{})
	if !s.Done || s.Outcome != PhaseFalling {
		t.Fatalf("step = done=%v outcome=%v, want done falling", s.Done, s.Outcome)
	}
	approx(t, "fall reward", s.Reward, -5)

	// The next call starts a fresh episode.
	falling = false
	s = h.ctrl.Step(Action{})
	if s.Done || s.Outcome != PhaseActive {
		t.Fatalf("post-fall step = done=%v outcome=%v, want active", s.Done, s.Outcome)
	}
	approx(t, "fresh elapsed", h.ctrl.Elapsed(), cfg.Physics.DT)
	if h.ctrl.Collected() != 0 {
		t.Errorf("collected = %d, want 0", h.ctrl.Collected())
	}
}

func TestTimeoutSuppressesShaping(t *testing.T) {
	t.Run("fires at exactly the limit", func(t *testing.T) {
		cfg := testCfg(t, func(c *config.Config) {
			c.Episode.TestingMode = true
			c.Episode.MaxTime = c.Physics.DT
		})
		h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

		s := h.ctrl.Step(Action{Move: 1})
		if !s.Done || s.Outcome != PhaseTimeout {
			t.Fatalf("step = done=%v outcome=%v, want done timeout", s.Done, s.Outcome)
		}
		approx(t, "timeout reward", s.Reward, cfg.Rewards.TimeoutPenalty)
		if h.step.steps != 0 {
			t.Errorf("physics stepped %d times after timeout, want 0", h.step.steps)
		}
	})

	t.Run("runs full ticks before the limit", func(t *testing.T) {
		cfg := testCfg(t, func(c *config.Config) {
			c.Episode.TestingMode = true
			c.Episode.MaxTime = 2.5 * c.Physics.DT
		})
		h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

		h.ctrl.Begin()
		for i := 0; i < 2; i++ {
			if s := h.ctrl.Step(Action{}); s.Done {
				t.Fatalf("tick %d ended early", i)
			}
		}
		s := h.ctrl.Step(Action{})
		if !s.Done || s.Outcome != PhaseTimeout {
			t.Fatalf("step = done=%v outcome=%v, want done timeout", s.Done, s.Outcome)
		}
		if h.step.steps != 2 {
			t.Errorf("physics stepped %d times, want 2", h.step.steps)
		}

		// A new episode begins on the next call.
		if s := h.ctrl.Step(Action{}); s.Done || s.Outcome != PhaseActive {
			t.Fatalf("post-timeout step = done=%v outcome=%v, want active", s.Done, s.Outcome)
		}
	})
}

func TestGoalCaptureSequence(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) {
		c.Episode.TestingMode = false
		c.Episode.AlternateSides = true
		c.Episode.PickupRadius = 1
		c.Placement = config.PlacementConfig{}
		zeroShaping(c)
		c.Rewards.GoalBase = 5
		c.Rewards.GoalSequentialBonus = 1
	})
	agentAnchor := physics.Vec2{X: 0, Y: 1}
	goalAnchor := physics.Vec2{X: 0.9, Y: 1}
	h := newHarness(cfg, agentAnchor, goalAnchor)

	// Alternate-sides flips its stored state on the first Begin, so the
	// agent spawns at the goal anchor and the goal at the agent anchor,
	// 0.9 apart with zero jitter.
	h.ctrl.Begin()
	approx(t, "agent x", h.body.pos.X, goalAnchor.X)
	approx(t, "goal x", h.goal.pos.X, agentAnchor.X)

	s1 := h.ctrl.Step(Action{})
	approx(t, "first capture reward", s1.Reward, 5)
	if h.ctrl.Collected() != 1 {
		t.Fatalf("collected = %d, want 1", h.ctrl.Collected())
	}
	if !h.goal.active {
		t.Fatal("goal inactive after relocation")
	}
	// First relocation re-rolls around the anchor the agent did not use,
	// which is where the goal already sits.
	approx(t, "goal x after first capture", h.goal.pos.X, agentAnchor.X)

	s2 := h.ctrl.Step(Action{})
	approx(t, "second capture reward", s2.Reward, 6)
	if h.ctrl.Collected() != 2 {
		t.Fatalf("collected = %d, want 2", h.ctrl.Collected())
	}
	// Second relocation alternates to the goal anchor, which is where the
	// agent stands: the stored distance must be the fresh post-move value.
	approx(t, "goal x after second capture", h.goal.pos.X, goalAnchor.X)
	approx(t, "stored goal distance", h.ctrl.ep.lastGoalDist, 0)

	if h.paint.n != 2 {
		t.Errorf("paint signals = %d, want 2", h.paint.n)
	}
}

func TestTestingModePlacementFixed(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })
	agentAnchor := physics.Vec2{X: 3, Y: 1}
	goalAnchor := physics.Vec2{X: 37, Y: 1.2}
	h := newHarness(cfg, agentAnchor, goalAnchor)

	for i := 0; i < 2; i++ {
		h.ctrl.Begin()
		approx(t, "agent x", h.body.pos.X, agentAnchor.X)
		approx(t, "agent y", h.body.pos.Y, agentAnchor.Y)
		approx(t, "goal x", h.goal.pos.X, goalAnchor.X)
		approx(t, "goal y", h.goal.pos.Y, goalAnchor.Y)
	}
	if h.layout.n != 0 {
		t.Errorf("layout randomized %d times in testing mode, want 0", h.layout.n)
	}
}

func TestBeginRandomizesLayout(t *testing.T) {
	cfg := testCfg(t, nil)
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

	h.ctrl.Begin()
	h.ctrl.Begin()
	if h.layout.n != 2 {
		t.Errorf("layout randomized %d times, want 2", h.layout.n)
	}
}

func TestLandingRewardOnce(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) {
		c.Episode.TestingMode = true
		zeroShaping(c)
		c.Rewards.LandingReward = 0.2
	})
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})
	h.rays.grounded = false

	h.ctrl.Begin()

	s := h.ctrl.Step(Action{})
	approx(t, "airborne reward", s.Reward, 0)

	h.rays.grounded = true
	s = h.ctrl.Step(Action{})
	approx(t, "landing reward", s.Reward, 0.2)

	s = h.ctrl.Step(Action{})
	approx(t, "still grounded reward", s.Reward, 0)
}

func TestIdlePenaltyNeedsGroundContact(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) {
		c.Episode.TestingMode = true
		zeroShaping(c)
		c.Rewards.IdlePenaltyRate = -1
	})
	h := newHarness(cfg, physics.Vec2{X: 3, Y: 1}, physics.Vec2{X: 37, Y: 1.2})

	h.ctrl.Begin()

	s := h.ctrl.Step(Action{})
	approx(t, "airborne idle", s.Reward, 0)

	h.rays.grounded = true
	s = h.ctrl.Step(Action{})
	approx(t, "grounded idle", s.Reward, -1*cfg.Physics.DT)

	s = h.ctrl.Step(Action{Move: 1})
	approx(t, "grounded moving", s.Reward, 0)
}

func TestMissingGoalIsInactive(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) { c.Episode.TestingMode = true })
	body := &fakeBody{half: physics.Vec2{X: 0.35, Y: 0.45}}
	rays := &fakeRays{probeLen: cfg.Derived.GroundProbeLen, rayHitDist: -1}
	ctrl := NewController(cfg, Deps{
		Body:        body,
		Rays:        rays,
		Stepper:     &fakeStepper{body: body},
		Source:      rand.NewSource(7),
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		AgentAnchor: physics.Vec2{X: 3, Y: 1},
		GoalAnchor:  physics.Vec2{X: 37, Y: 1.2},
	})

	s := ctrl.Step(Action{})
	if s.Done {
		t.Fatal("step reported done")
	}

	vec := s.Obs.AsSlice()
	approx(t, "goal rel x", vec[11], 0)
	approx(t, "goal rel y", vec[12], 0)
	approx(t, "goal active", vec[13], 0)

	// Only the unconditional rates apply: time, survival, no-goal-yet.
	dt := cfg.Physics.DT
	rw := cfg.Rewards
	want := (rw.TimePenaltyRate + rw.SurvivalRate + rw.NoGoalPenaltyRate) * dt
	approx(t, "reward", s.Reward, want)
}

func TestProgressUsesStoredDistance(t *testing.T) {
	cfg := testCfg(t, func(c *config.Config) {
		c.Episode.TestingMode = true
		c.Episode.PickupRadius = 0.5
		zeroShaping(c)
		c.Rewards.ProgressReward = 2
		c.Rewards.ProgressPenalty = 1
	})
	h := newHarness(cfg, physics.Vec2{X: 0, Y: 1}, physics.Vec2{X: 5, Y: 1})
	h.step.onStep = func(b *fakeBody, dt float64) { b.pos.X++ }

	h.ctrl.Begin()

	s := h.ctrl.Step(Action{})
	approx(t, "first tick progress", s.Reward, 2) // distance 5 -> 4

	s = h.ctrl.Step(Action{})
	approx(t, "second tick progress", s.Reward, 2) // distance 4 -> 3

	h.step.onStep = func(b *fakeBody, dt float64) { b.pos.X-- }
	s = h.ctrl.Step(Action{})
	approx(t, "regression", s.Reward, -1) // distance 3 -> 4
}

func TestObservationBoundsShape(t *testing.T) {
	cfg := testCfg(t, nil)
	bounds := ObservationBounds(cfg)
	if len(bounds) != ObservationSize {
		t.Fatalf("bounds length = %d, want %d", len(bounds), ObservationSize)
	}
	for i := 3; i <= 10; i++ {
		if bounds[i].Min != 0 || bounds[i].Max != 1 {
			t.Errorf("ray bound %d = %+v, want [0,1]", i-3, bounds[i])
		}
	}
	if ab := ActionBounds(); len(ab) != ActionSize {
		t.Fatalf("action bounds length = %d, want %d", len(ab), ActionSize)
	}
}
