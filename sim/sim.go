// Package sim runs headless rollouts: a policy driving the environment
// controller tick by tick, with windowed telemetry and structured run output.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/exp/rand"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/env"
	"github.com/pthm-cable/hopper/level"
	"github.com/pthm-cable/hopper/physics"
	"github.com/pthm-cable/hopper/policy"
	"github.com/pthm-cable/hopper/telemetry"
)

const (
	// Rolling perf window, a few seconds of ticks.
	perfWindowTicks = 300

	hallCapacity    = 10
	bookmarkHistory = 10
)

// Options configures a rollout run.
type Options struct {
	Config *config.Config // nil uses the process-wide config
	Seed   int64          // 0 derives from the wall clock
	Policy string         // chaser, random or idle; empty means chaser

	MaxTicks    int64 // stop after this many ticks; <= 0 means unbounded
	MaxEpisodes int   // stop after this many finished episodes; <= 0 means unbounded

	LogStats    bool   // log window and perf stats to slog
	SnapshotDir string // save a state snapshot whenever a bookmark fires; empty disables

	Log *slog.Logger // nil uses slog.Default()

	// StatsFunc is called after every flushed window. Optional.
	StatsFunc func(telemetry.WindowStats)
	// StepFunc is called after every tick. Optional.
	StepFunc func(tick int64, step env.Step)
}

// Result summarizes a finished run.
type Result struct {
	Steps      int64
	Episodes   int
	Falls      int
	Timeouts   int
	Goals      int
	BestReturn float64
	MeanReturn float64
	RunDir     string
}

// Runner owns the environment, the policy and the telemetry pipeline for one
// run.
type Runner struct {
	cfg        *config.Config
	dt         float64
	seed       int64
	runID      string
	policyName string
	log        *slog.Logger

	lvl   *level.Level
	world *physics.World
	body  *physics.AgentBody
	ctrl  *env.Controller
	pol   policy.Policy

	collector *telemetry.Collector
	tracker   *telemetry.RunTracker
	perf      *telemetry.PerfCollector
	bookmarks *telemetry.BookmarkDetector
	hall      *telemetry.HallOfFame
	output    *telemetry.OutputManager

	maxTicks    int64
	maxEpisodes int
	logStats    bool
	snapshotDir string
	statsFunc   func(telemetry.WindowStats)
	stepFunc    func(int64, env.Step)

	tick          int64
	episodeIndex  int
	episodeStart  int64
	episodeReturn float64
}

// New builds a runner: level, physics world, agent body, controller, policy
// and the telemetry pipeline, all seeded from opts.
func New(opts Options) (*Runner, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	policyName := opts.Policy
	if policyName == "" {
		policyName = "chaser"
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	pol, err := policy.New(policyName, uint64(seed))
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
		Log:         log,
		AgentAnchor: lvl.AgentAnchor(),
		GoalAnchor:  lvl.GoalAnchor(),
	})

	runID := telemetry.NewRunID(time.Now())
	output, err := telemetry.NewOutputManager(cfg.Telemetry.OutputDir, runID)
	if err != nil {
		return nil, fmt.Errorf("opening run output: %w", err)
	}
	if err := output.WriteConfig(cfg); err != nil {
		output.Close()
		return nil, fmt.Errorf("writing run config: %w", err)
	}

	return &Runner{
		cfg:        cfg,
		dt:         cfg.Physics.DT,
		seed:       seed,
		runID:      runID,
		policyName: policyName,
		log:        log,

		lvl:   lvl,
		world: world,
		body:  body,
		ctrl:  ctrl,
		pol:   pol,

		collector: telemetry.NewCollector(cfg.Telemetry.WindowSeconds, cfg.Physics.DT),
		tracker:   telemetry.NewRunTracker(),
		perf:      telemetry.NewPerfCollector(perfWindowTicks),
		bookmarks: telemetry.NewBookmarkDetector(bookmarkHistory),
		hall:      telemetry.NewHallOfFame(hallCapacity),
		output:    output,

		maxTicks:    opts.MaxTicks,
		maxEpisodes: opts.MaxEpisodes,
		logStats:    opts.LogStats,
		snapshotDir: opts.SnapshotDir,
		statsFunc:   opts.StatsFunc,
		stepFunc:    opts.StepFunc,
	}, nil
}

// Run steps the environment until a limit is reached or ctx is canceled.
// Cancellation is a normal stop: the partial run is finalized and reported.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	r.log.Info("run start",
		"seed", r.seed,
		"policy", r.policyName,
		"run_dir", r.output.Dir(),
		"max_ticks", r.maxTicks,
		"max_episodes", r.maxEpisodes)

	r.ctrl.Begin()
	r.episodeStart = r.tick

	for !r.done() {
		select {
		case <-ctx.Done():
			r.log.Info("run canceled", "tick", r.tick, "episodes", r.episodeIndex)
			return r.finish(start)
		default:
		}

		r.perf.StartTick()

		r.perf.StartPhase(telemetry.PhasePolicy)
		obs := r.ctrl.Observe()
		act := env.ActionFromVec(r.pol.SelectAction(obs.AsVec()))

		r.perf.StartPhase(telemetry.PhaseStep)
		step := r.ctrl.Step(act)
		r.tick++
		r.lvl.TickTints()

		r.perf.StartPhase(telemetry.PhaseTelemetry)
		r.recordStep(step)
		r.flushTelemetry()
		if r.stepFunc != nil {
			r.stepFunc(r.tick, step)
		}

		r.perf.EndTick()
	}

	return r.finish(start)
}

func (r *Runner) done() bool {
	if r.maxTicks > 0 && r.tick >= r.maxTicks {
		return true
	}
	return r.maxEpisodes > 0 && r.episodeIndex >= r.maxEpisodes
}

// recordStep folds one tick into the telemetry pipeline and, on a terminal
// tick, closes out the episode.
func (r *Runner) recordStep(step env.Step) {
	r.collector.RecordStep(step.Reward)
	r.tracker.RecordStep(step.Reward)
	r.episodeReturn += step.Reward

	if !step.Done {
		return
	}

	rec := telemetry.EpisodeRecord{
		Episode:     r.episodeIndex,
		EndTick:     r.tick,
		SimTimeSec:  float64(r.tick) * r.dt,
		Outcome:     step.Outcome.String(),
		Return:      r.episodeReturn,
		Ticks:       int(r.tick - r.episodeStart),
		DurationSec: r.ctrl.Elapsed(),
		Goals:       r.ctrl.Collected(),
	}

	r.collector.RecordEpisode(rec)
	r.tracker.RecordEpisode(rec)
	r.hall.Consider(rec)
	if err := r.output.WriteEpisode(rec); err != nil {
		r.log.Error("failed to write episode", "error", err)
	}

	r.episodeIndex++
	r.episodeReturn = 0
	r.episodeStart = r.tick
	r.pol.Reset()
}

// flushTelemetry closes the stats window when due and handles bookmarks.
func (r *Runner) flushTelemetry() {
	if !r.collector.ShouldFlush(r.tick) {
		return
	}

	stats := r.collector.Flush(r.tick)
	perfStats := r.perf.Stats()

	if r.statsFunc != nil {
		r.statsFunc(stats)
	}
	if r.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := r.output.WriteWindow(stats); err != nil {
		r.log.Error("failed to write window", "error", err)
	}
	if err := r.output.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		r.log.Error("failed to write perf", "error", err)
	}

	for _, bm := range r.bookmarks.Check(stats) {
		if r.logStats {
			bm.LogBookmark()
		}
		if err := r.output.WriteBookmark(bm); err != nil {
			r.log.Error("failed to write bookmark", "error", err)
		}
		if r.snapshotDir != "" {
			r.saveSnapshot()
		}
	}
}

// finish flushes the trailing partial window, writes the run summary and
// closes the output.
func (r *Runner) finish(start time.Time) (Result, error) {
	if stats := r.collector.Flush(r.tick); stats.Steps > 0 {
		if r.statsFunc != nil {
			r.statsFunc(stats)
		}
		if r.logStats {
			stats.LogStats()
		}
		if err := r.output.WriteWindow(stats); err != nil {
			r.log.Error("failed to write window", "error", err)
		}
	}

	info := telemetry.RunInfo{
		ID:         r.runID,
		Seed:       r.seed,
		Policy:     r.policyName,
		StartedAt:  start.UTC(),
		FinishedAt: time.Now().UTC(),
	}
	r.tracker.FillRunInfo(&info)

	var firstErr error
	if err := r.output.WriteRunInfo(info); err != nil {
		firstErr = err
	}
	if err := r.output.WriteHallOfFame(r.hall); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := r.output.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	stats := r.tracker.Stats()
	res := Result{
		Steps:      stats.Steps,
		Episodes:   stats.Episodes,
		Falls:      stats.Falls,
		Timeouts:   stats.Timeouts,
		Goals:      stats.Goals,
		BestReturn: stats.BestReturn,
		MeanReturn: r.tracker.MeanReturn(),
		RunDir:     r.output.Dir(),
	}

	r.log.Info("run finished",
		"ticks", res.Steps,
		"episodes", res.Episodes,
		"goals", res.Goals,
		"falls", res.Falls,
		"timeouts", res.Timeouts,
		"best_return", res.BestReturn,
		"mean_return", res.MeanReturn)

	return res, firstErr
}

// BuildSnapshot captures the current environment state.
func (r *Runner) BuildSnapshot() *telemetry.Snapshot {
	obs := r.ctrl.Observe()
	pos := r.body.Position()
	vel := r.body.Velocity()
	half := r.body.HalfExtents()
	goalPos, goalActive, _ := r.lvl.GoalState()

	snap := &telemetry.Snapshot{
		Version:     telemetry.SnapshotVersion,
		Seed:        r.seed,
		Tick:        r.tick,
		SimTimeSec:  float64(r.tick) * r.dt,
		Phase:       r.ctrl.Phase().String(),
		Elapsed:     r.ctrl.Elapsed(),
		Goals:       r.ctrl.Collected(),
		DeathHeight: r.ctrl.DeathHeight(),
		Agent: telemetry.AgentState{
			X: pos.X, Y: pos.Y,
			VelX: vel.X, VelY: vel.Y,
			HalfW: half.X, HalfH: half.Y,
			Grounded: obs.Grounded,
		},
		Goal: telemetry.GoalState{X: goalPos.X, Y: goalPos.Y, Active: goalActive},
	}

	r.lvl.Surfaces(func(p level.Position, e level.Extent, s level.Surface, t level.Tint) {
		snap.Surfaces = append(snap.Surfaces, telemetry.SurfaceState{
			X: p.X, Y: p.Y,
			HalfW: e.HalfW, HalfH: e.HalfH,
			Kind:  s.Kind.String(),
			Flash: t.Flash,
		})
	})

	return snap
}

func (r *Runner) saveSnapshot() {
	path, err := telemetry.SaveSnapshot(r.BuildSnapshot(), r.snapshotDir)
	if err != nil {
		r.log.Error("failed to save snapshot", "error", err)
		return
	}
	r.log.Info("snapshot saved", "path", path, "tick", r.tick)
}

// Tick returns the number of ticks stepped so far.
func (r *Runner) Tick() int64 {
	return r.tick
}

// Body returns the agent's physics body.
func (r *Runner) Body() physics.Body {
	return r.body
}

// Level returns the generated level.
func (r *Runner) Level() *level.Level {
	return r.lvl
}

// RunDir returns the output directory, or empty when output is disabled.
func (r *Runner) RunDir() string {
	return r.output.Dir()
}
