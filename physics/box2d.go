package physics

import (
	"github.com/ByteArena/box2d"
)

// Agent fixture material. Friction is zero because horizontal motion is driven
// by setting velocity directly, not by surface forces.
const (
	agentDensity    = 1.6
	agentFriction   = 0.0
	staticFriction  = 0.4
	staticDensity   = 0.0
	baseRestitution = 0.0
)

// World wraps a Box2D world holding the level's static geometry and the agent
// body. It implements RayCaster and Stepper.
type World struct {
	world    box2d.B2World
	velIters int
	posIters int
	statics  []*box2d.B2Body
}

// NewWorld creates an empty world with the given (negative, y-up) gravity.
func NewWorld(gravity float64, velIters, posIters int) *World {
	return &World{
		world:    box2d.MakeB2World(box2d.MakeB2Vec2(0, gravity)),
		velIters: velIters,
		posIters: posIters,
	}
}

// Step advances the simulation by dt seconds.
func (w *World) Step(dt float64) {
	w.world.Step(dt, w.velIters, w.posIters)
}

// SetStatics replaces all static geometry with the given rects. Called once at
// startup and again whenever the level layout is re-randomized.
func (w *World) SetStatics(rects []Rect) {
	for _, b := range w.statics {
		w.world.DestroyBody(b)
	}
	w.statics = w.statics[:0]

	for _, r := range rects {
		def := box2d.NewB2BodyDef()
		def.Position.Set(r.Center.X, r.Center.Y)
		body := w.world.CreateBody(def)

		shape := box2d.NewB2PolygonShape()
		shape.SetAsBox(r.Half.X, r.Half.Y)

		fix := box2d.MakeB2FixtureDef()
		fix.Shape = shape
		fix.Density = staticDensity
		fix.Friction = staticFriction
		fix.Restitution = baseRestitution
		filter := box2d.MakeB2Filter()
		filter.CategoryBits = r.Category
		filter.MaskBits = MaskAll
		fix.Filter = filter
		body.CreateFixtureFromDef(&fix)

		w.statics = append(w.statics, body)
	}
}

// CreateAgent adds the dynamic agent box at pos with the given half extents.
// Rotation is locked so the box stays upright.
func (w *World) CreateAgent(pos, half Vec2) *AgentBody {
	def := box2d.NewB2BodyDef()
	def.Type = box2d.B2BodyType.B2_dynamicBody
	def.Position.Set(pos.X, pos.Y)
	def.FixedRotation = true
	def.AllowSleep = false
	body := w.world.CreateBody(def)

	shape := box2d.NewB2PolygonShape()
	shape.SetAsBox(half.X, half.Y)

	fix := box2d.MakeB2FixtureDef()
	fix.Shape = shape
	fix.Density = agentDensity
	fix.Friction = agentFriction
	fix.Restitution = baseRestitution
	filter := box2d.MakeB2Filter()
	filter.CategoryBits = CategoryAgent
	filter.MaskBits = MaskAll &^ CategoryAgent
	fix.Filter = filter
	body.CreateFixtureFromDef(&fix)

	return &AgentBody{body: body, half: half}
}

// Cast implements RayCaster with a closest-hit scan over fixtures matching
// mask. A degenerate direction reports no hit.
func (w *World) Cast(origin, dir Vec2, maxLen float64, mask uint16) (bool, float64) {
	if maxLen <= 0 || (dir.X == 0 && dir.Y == 0) {
		return false, 0
	}
	end := origin.Add(dir.Scale(maxLen))

	hit := false
	closest := 1.0
	w.world.RayCast(func(fixture *box2d.B2Fixture, point, normal box2d.B2Vec2, fraction float64) float64 {
		if fixture.GetFilterData().CategoryBits&mask == 0 {
			return -1
		}
		hit = true
		if fraction < closest {
			closest = fraction
		}
		// Clip the ray so later reports can only be nearer.
		return fraction
	}, box2d.MakeB2Vec2(origin.X, origin.Y), box2d.MakeB2Vec2(end.X, end.Y))

	if !hit {
		return false, 0
	}
	return true, closest * maxLen
}

// AgentBody is the Body handle for the agent's dynamic box.
type AgentBody struct {
	body *box2d.B2Body
	half Vec2
}

// Position returns the body's center in world units.
func (b *AgentBody) Position() Vec2 {
	p := b.body.GetPosition()
	return Vec2{p.X, p.Y}
}

// Velocity returns the body's linear velocity.
func (b *AgentBody) Velocity() Vec2 {
	v := b.body.GetLinearVelocity()
	return Vec2{v.X, v.Y}
}

// SetVelocity overwrites the body's linear velocity.
func (b *AgentBody) SetVelocity(v Vec2) {
	b.body.SetLinearVelocity(box2d.MakeB2Vec2(v.X, v.Y))
}

// SetPosition teleports the body, keeping it upright and awake.
func (b *AgentBody) SetPosition(p Vec2) {
	b.body.SetTransform(box2d.MakeB2Vec2(p.X, p.Y), 0)
	b.body.SetAwake(true)
}

// ApplyImpulse applies a linear impulse at the body's center of mass.
func (b *AgentBody) ApplyImpulse(i Vec2) {
	b.body.ApplyLinearImpulse(box2d.MakeB2Vec2(i.X, i.Y), b.body.GetWorldCenter(), true)
}

// HalfExtents returns the half width/height of the agent's collision box.
func (b *AgentBody) HalfExtents() Vec2 {
	return b.half
}
