// Package level owns the platform layout: an entity store of static geometry
// plus the single goal point, with noise-driven generation and per-episode
// re-randomization. The agent controller sees it only through small handles.
package level

import (
	"github.com/mlange-42/ark/ecs"
	"golang.org/x/exp/rand"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/physics"
)

// Celebration flash duration in ticks.
const flashTicks = 12

// Per-episode platform re-roll half-ranges, clamped to the level bounds.
const (
	rerollX = 0.5
	rerollY = 0.3
)

// Level is the generated layout: ground segments, walls, floating platforms
// and the goal, all stored as entities.
type Level struct {
	cfg   *config.Config
	world *ecs.World

	surfaceMapper *ecs.Map4[Position, Extent, Surface, Tint]
	surfaceFilter *ecs.Filter4[Position, Extent, Surface, Tint]
	goalMapper    *ecs.Map3[Position, GoalPoint, Tint]

	goal ecs.Entity

	agentAnchor physics.Vec2
	goalAnchor  physics.Vec2
}

func newLevel(cfg *config.Config) *Level {
	world := ecs.NewWorld()
	return &Level{
		cfg:           cfg,
		world:         world,
		surfaceMapper: ecs.NewMap4[Position, Extent, Surface, Tint](world),
		surfaceFilter: ecs.NewFilter4[Position, Extent, Surface, Tint](world),
		goalMapper:    ecs.NewMap3[Position, GoalPoint, Tint](world),
	}
}

func (l *Level) addSurface(x, y, halfW, halfH float64, kind SurfaceKind) {
	pos := Position{X: x, Y: y}
	ext := Extent{HalfW: halfW, HalfH: halfH}
	surf := Surface{Kind: kind}
	tint := Tint{}
	l.surfaceMapper.NewEntity(&pos, &ext, &surf, &tint)
}

// Statics returns the current static geometry as physics rects.
func (l *Level) Statics() []physics.Rect {
	var rects []physics.Rect
	query := l.surfaceFilter.Query()
	for query.Next() {
		pos, ext, surf, _ := query.Get()
		rects = append(rects, physics.Rect{
			Center:   physics.Vec2{X: pos.X, Y: pos.Y},
			Half:     physics.Vec2{X: ext.HalfW, Y: ext.HalfH},
			Category: surf.Kind.Category(),
		})
	}
	return rects
}

// Surfaces calls fn for every static surface. Used by terminal and PNG
// rendering.
func (l *Level) Surfaces(fn func(Position, Extent, Surface, Tint)) {
	query := l.surfaceFilter.Query()
	for query.Next() {
		pos, ext, surf, tint := query.Get()
		fn(*pos, *ext, *surf, *tint)
	}
}

// Randomize re-rolls the floating platforms around their current positions.
// Ground, walls and anchors stay fixed so spawn footing is stable. Invoked
// once per episode begin; the caller rebuilds physics statics afterwards.
func (l *Level) Randomize(rng *rand.Rand) {
	maxH := l.cfg.Level.MaxHeight
	width := l.cfg.Level.Width

	query := l.surfaceFilter.Query()
	for query.Next() {
		pos, ext, surf, _ := query.Get()
		if surf.Kind != SurfacePlatform {
			continue
		}
		pos.X = clamp(pos.X+(rng.Float64()*2-1)*rerollX, ext.HalfW, width-ext.HalfW)
		pos.Y = clamp(pos.Y+(rng.Float64()*2-1)*rerollY, 1.0, maxH)
	}
}

// Refresher couples a layout re-roll to a statics rebuild so the physics
// world always matches what the rays see.
type Refresher struct {
	lvl   *Level
	world *physics.World
	rng   *rand.Rand
}

func NewRefresher(lvl *Level, world *physics.World, rng *rand.Rand) *Refresher {
	return &Refresher{lvl: lvl, world: world, rng: rng}
}

func (r *Refresher) Randomize() {
	r.lvl.Randomize(r.rng)
	r.world.SetStatics(r.lvl.Statics())
}

// PaintCollected starts the celebration flash on every surface and the goal.
// Cosmetic only; fire-and-forget.
func (l *Level) PaintCollected() {
	query := l.surfaceFilter.Query()
	for query.Next() {
		_, _, _, tint := query.Get()
		tint.Flash = flashTicks
	}
	if _, _, tint := l.goalMapper.Get(l.goal); tint != nil {
		tint.Flash = flashTicks
	}
}

// TickTints advances flash countdowns by one tick.
func (l *Level) TickTints() {
	query := l.surfaceFilter.Query()
	for query.Next() {
		_, _, _, tint := query.Get()
		if tint.Flash > 0 {
			tint.Flash--
		}
	}
	if _, _, tint := l.goalMapper.Get(l.goal); tint != nil && tint.Flash > 0 {
		tint.Flash--
	}
}

// AgentAnchor returns the agent's originally-authored spawn position.
func (l *Level) AgentAnchor() physics.Vec2 {
	return l.agentAnchor
}

// GoalAnchor returns the goal's originally-authored position.
func (l *Level) GoalAnchor() physics.Vec2 {
	return l.goalAnchor
}

// Width returns the level width in world units.
func (l *Level) Width() float64 {
	return l.cfg.Level.Width
}

// MaxHeight returns the platform placement ceiling.
func (l *Level) MaxHeight() float64 {
	return l.cfg.Level.MaxHeight
}

// Goal returns the handle the agent controller reads and moves the goal
// through.
func (l *Level) Goal() *GoalHandle {
	return &GoalHandle{level: l}
}

// GoalState reports the goal's position, visibility and flash for rendering.
func (l *Level) GoalState() (physics.Vec2, bool, int) {
	pos, point, tint := l.goalMapper.Get(l.goal)
	if pos == nil {
		return physics.Vec2{}, false, 0
	}
	return physics.Vec2{X: pos.X, Y: pos.Y}, point.Active, tint.Flash
}

// GoalHandle exposes the goal to the agent controller.
type GoalHandle struct {
	level *Level
}

// Position returns the goal's current position.
func (g *GoalHandle) Position() physics.Vec2 {
	pos, _, _ := g.level.goalMapper.Get(g.level.goal)
	return physics.Vec2{X: pos.X, Y: pos.Y}
}

// SetPosition moves the goal.
func (g *GoalHandle) SetPosition(p physics.Vec2) {
	pos, _, _ := g.level.goalMapper.Get(g.level.goal)
	pos.X = p.X
	pos.Y = p.Y
}

// Active reports whether the goal is visible and collectable.
func (g *GoalHandle) Active() bool {
	_, point, _ := g.level.goalMapper.Get(g.level.goal)
	return point.Active
}

// SetActive shows or hides the goal.
func (g *GoalHandle) SetActive(active bool) {
	_, point, _ := g.level.goalMapper.Get(g.level.goal)
	point.Active = active
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
