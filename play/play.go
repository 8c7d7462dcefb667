// Package play is the interactive terminal client: arrow keys drive the
// agent through the same controller the headless runner uses, a ticker
// drives the environment at the physics rate.
package play

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/exp/rand"

	"github.com/pthm-cable/hopper/camera"
	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/env"
	"github.com/pthm-cable/hopper/level"
	"github.com/pthm-cable/hopper/physics"
	"github.com/pthm-cable/hopper/policy"
	"github.com/pthm-cable/hopper/telemetry"
)

const (
	// How long a direction key press keeps pushing. Terminal key repeat
	// refreshes the deadline while the key is held.
	keyHold = 180 * time.Millisecond

	hudRows          = 3
	eventRows        = 3
	eventLogCapacity = 32
)

// Options configures an interactive session.
type Options struct {
	Config    *config.Config // nil uses the process-wide config
	Seed      int64          // 0 derives from the wall clock
	Autopilot bool           // start with the chaser driving
}

// Session owns the environment and the terminal screen for one sitting.
type Session struct {
	cfg    *config.Config
	lvl    *level.Level
	body   *physics.AgentBody
	ctrl   *env.Controller
	chaser policy.Policy
	events *telemetry.EventLog
	perf   *telemetry.PerfCollector

	screen        tcell.Screen
	width, height int
	cam           *camera.Camera

	autopilot bool

	moveAxis     float64
	moveDeadline time.Time
	jumpQueued   bool

	tick          int64
	episode       int
	episodeReturn float64
	lastReward    float64
	returnSum     float64
	episodesDone  int
	airborne      bool
	prevCollected int
}

// New builds the environment exactly like the headless runner, minus the
// telemetry output.
func New(opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	chaser, err := policy.New("chaser", uint64(seed))
	if err != nil {
		return nil, err
	}

	layoutSeed := cfg.Level.Seed
	if layoutSeed == 0 {
		layoutSeed = seed
	}
	lvl := level.Generate(cfg, layoutSeed)

	world := physics.NewWorld(cfg.Physics.Gravity,
		cfg.Physics.VelocityIterations, cfg.Physics.PositionIterations)
	world.SetStatics(lvl.Statics())
	body := world.CreateAgent(lvl.AgentAnchor(),
		physics.Vec2{X: cfg.Physics.AgentHalfWidth, Y: cfg.Physics.AgentHalfHeight})

	rng := rand.New(rand.NewSource(uint64(seed)))

	ctrl := env.NewController(cfg, env.Deps{
		Body:        body,
		Rays:        world,
		Stepper:     world,
		Goal:        lvl.Goal(),
		Level:       level.NewRefresher(lvl, world, rng),
		Paint:       lvl,
		Source:      rng,
		AgentAnchor: lvl.AgentAnchor(),
		GoalAnchor:  lvl.GoalAnchor(),
	})

	return &Session{
		cfg:       cfg,
		lvl:       lvl,
		body:      body,
		ctrl:      ctrl,
		chaser:    chaser,
		events:    telemetry.NewEventLog(eventLogCapacity),
		perf:      telemetry.NewPerfCollector(60),
		autopilot: opts.Autopilot,
	}, nil
}

// Run owns the terminal until the player quits.
func (s *Session) Run() error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("opening terminal: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initializing terminal: %w", err)
	}
	defer screen.Fini()
	screen.HideCursor()

	s.screen = screen
	s.width, s.height = screen.Size()

	// View bounds pad above the tallest surface and below the ground so
	// falls stay on screen for a moment.
	s.cam = camera.New(s.width, s.worldRows(),
		0, s.lvl.Width(), -2.0, s.lvl.MaxHeight()+3)

	s.ctrl.Begin()
	s.events.Append(telemetry.NewEpisodeBeginEvent(s.tick, s.episode))

	eventChan := make(chan tcell.Event, 64)
	go func() {
		for {
			eventChan <- screen.PollEvent()
		}
	}()

	ticker := time.NewTicker(time.Duration(s.cfg.Physics.DT * float64(time.Second)))
	defer ticker.Stop()

	for {
		select {
		case ev := <-eventChan:
			if !s.handleEvent(ev) {
				return nil
			}
		case <-ticker.C:
			step := s.ctrl.Step(s.nextAction())
			s.afterStep(step)
			s.draw()
		}
	}
}

// nextAction maps held keys (or the chaser) to the action contract.
func (s *Session) nextAction() env.Action {
	if s.autopilot {
		obs := s.ctrl.Observe()
		return env.ActionFromVec(s.chaser.SelectAction(obs.AsVec()))
	}

	axis := s.moveAxis
	if time.Now().After(s.moveDeadline) {
		axis = 0
	}
	jump := s.jumpQueued
	s.jumpQueued = false
	return env.ActionFromAxes(axis, jump)
}

func (s *Session) handleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyLeft:
			s.push(-1)
		case tcell.KeyRight:
			s.push(1)
		case tcell.KeyUp:
			s.jumpQueued = true
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'a':
				s.push(-1)
			case 'd':
				s.push(1)
			case ' ', 'w':
				s.jumpQueued = true
			case 'p':
				s.autopilot = !s.autopilot
			case '+', '=':
				s.cam.ZoomBy(1.25)
			case '-':
				s.cam.ZoomBy(0.8)
			case 'r':
				s.resetEpisode()
			}
		}
	case *tcell.EventResize:
		s.width, s.height = s.screen.Size()
		s.cam.Resize(s.width, s.worldRows())
		s.screen.Sync()
	}
	return true
}

// worldRows is the cell band between the HUD and the event feed.
func (s *Session) worldRows() int {
	return s.height - eventRows - hudRows - 1
}

func (s *Session) push(axis float64) {
	s.moveAxis = axis
	s.moveDeadline = time.Now().Add(keyHold)
}

// resetEpisode abandons the current episode without scoring it.
func (s *Session) resetEpisode() {
	s.ctrl.Begin()
	s.episode++
	s.episodeReturn = 0
	s.prevCollected = 0
	s.airborne = false
	s.chaser.Reset()
	s.events.Append(telemetry.NewEpisodeBeginEvent(s.tick, s.episode))
}

// afterStep folds one tick into the HUD counters and the event feed.
func (s *Session) afterStep(step env.Step) {
	s.tick++
	s.lvl.TickTints()
	s.lastReward = step.Reward
	s.episodeReturn += step.Reward

	if collected := s.ctrl.Collected(); collected > s.prevCollected {
		s.events.Append(telemetry.NewGoalCaptureEvent(s.tick, s.episode, collected, step.Reward))
		s.prevCollected = collected
	}

	if !step.Obs.Grounded {
		s.airborne = true
	} else if s.airborne {
		s.events.Append(telemetry.NewLandingEvent(s.tick, s.episode))
		s.airborne = false
	}

	if !step.Done {
		return
	}

	switch step.Outcome {
	case env.PhaseFalling:
		s.events.Append(telemetry.NewFallEvent(s.tick, s.episode, s.episodeReturn))
	case env.PhaseTimeout:
		s.events.Append(telemetry.NewTimeoutEvent(s.tick, s.episode, s.episodeReturn))
	}

	s.episodesDone++
	s.returnSum += s.episodeReturn
	s.episode++
	s.episodeReturn = 0
	s.prevCollected = 0
	s.airborne = false
	s.chaser.Reset()
	s.events.Append(telemetry.NewEpisodeBeginEvent(s.tick, s.episode))
}

var (
	styleHUD      = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleDim      = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleGround   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	stylePlatform = tcell.StyleDefault.Foreground(tcell.ColorSilver)
	styleFlash    = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleGoal     = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	styleGoalDim  = tcell.StyleDefault.Foreground(tcell.ColorDarkGoldenrod)
	styleAgent    = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleAgentAir = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
)

func (s *Session) draw() {
	s.perf.RecordFrame()
	s.screen.Clear()

	if s.width < 24 || s.height < hudRows+eventRows+6 {
		s.drawText(0, 0, "terminal too small", styleHUD)
		s.screen.Show()
		return
	}

	mode := "manual"
	if s.autopilot {
		mode = "chaser"
	}
	meanReturn := 0.0
	if s.episodesDone > 0 {
		meanReturn = s.returnSum / float64(s.episodesDone)
	}
	s.drawText(0, 0, fmt.Sprintf("ep %d  %s  t %.1fs  goals %d  return %+.2f  last %+.3f",
		s.episode, s.ctrl.Phase(), s.ctrl.Elapsed(), s.ctrl.Collected(),
		s.episodeReturn, s.lastReward), styleHUD)
	s.drawText(0, 1, fmt.Sprintf("done %d  mean return %+.2f  mode %s  fps %.0f",
		s.episodesDone, meanReturn, mode, s.perf.Stats().FPS), styleHUD)
	s.drawText(0, 2, "arrows/a,d move   space/w jump   p autopilot   +/- zoom   r reset   q quit", styleDim)

	s.drawWorld()
	s.drawEvents()

	s.screen.Show()
}

// drawWorld projects the level through the camera onto the cell band
// between HUD and event feed. A zoomed-in camera follows the agent.
func (s *Session) drawWorld() {
	worldTop := hudRows + 1
	pos := s.body.Position()

	if !s.cam.Fitted() {
		s.cam.Follow(pos.X, pos.Y)
	}
	cam := s.cam

	set := func(cx, cy int, ch rune, style tcell.Style) {
		if cam.Contains(cx, cy) {
			s.screen.SetContent(cx, worldTop+cy, ch, nil, style)
		}
	}

	s.lvl.Surfaces(func(p level.Position, e level.Extent, surf level.Surface, tint level.Tint) {
		ch := '█'
		style := styleGround
		switch surf.Kind {
		case level.SurfacePlatform:
			ch = '═'
			style = stylePlatform
		case level.SurfaceWall:
			ch = '║'
		}
		if tint.Flash > 0 {
			style = styleFlash
		}
		cx0, cy0 := cam.ToCell(p.X-e.HalfW, p.Y+e.HalfH)
		cx1, cy1 := cam.ToCell(p.X+e.HalfW, p.Y-e.HalfH)
		for cy := max(cy0, 0); cy <= min(cy1, cam.Rows-1); cy++ {
			for cx := max(cx0, 0); cx <= min(cx1, cam.Cols-1); cx++ {
				s.screen.SetContent(cx, worldTop+cy, ch, nil, style)
			}
		}
	})

	goalPos, active, _ := s.lvl.GoalState()
	gx, gy := cam.ToCell(goalPos.X, goalPos.Y)
	if active {
		set(gx, gy, '◆', styleGoal)
	} else {
		set(gx, gy, '◇', styleGoalDim)
	}

	ax, ay := cam.ToCell(pos.X, pos.Y)
	style := styleAgentAir
	if !s.airborne {
		style = styleAgent
	}
	set(ax, ay, '@', style)
}

func (s *Session) drawEvents() {
	recent := s.events.Recent(eventRows)
	row := s.height - eventRows
	for _, ev := range recent {
		s.drawText(0, row, ev.String(), styleDim)
		row++
	}
}

func (s *Session) drawText(x, y int, text string, style tcell.Style) {
	col := x
	for _, r := range text {
		if col >= s.width {
			break
		}
		s.screen.SetContent(col, y, r, nil, style)
		col++
	}
}
