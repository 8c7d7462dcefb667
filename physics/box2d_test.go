package physics

import (
	"math"
	"testing"
)

// testWorld builds a world with one ground slab spanning x in [-10, 10] with
// its top surface at y=0, and a wall at x=5.
func testWorld() *World {
	w := NewWorld(-25, 8, 3)
	w.SetStatics([]Rect{
		{Center: Vec2{0, -0.5}, Half: Vec2{10, 0.5}, Category: CategoryGround},
		{Center: Vec2{5.25, 2}, Half: Vec2{0.25, 2}, Category: CategoryWall},
	})
	return w
}

func TestCastDownHitsGround(t *testing.T) {
	w := testWorld()

	hit, dist := w.Cast(Vec2{0, 3}, Vec2{0, -1}, 10, CategoryGround)
	if !hit {
		t.Fatal("expected downward ray to hit ground")
	}
	if math.Abs(dist-3) > 0.01 {
		t.Errorf("dist = %v, want 3", dist)
	}
}

func TestCastRespectsMask(t *testing.T) {
	w := testWorld()

	// The wall is at x=5 but the mask only admits ground.
	hit, _ := w.Cast(Vec2{0, 2}, Vec2{1, 0}, 10, CategoryGround)
	if hit {
		t.Error("rightward ray should pass through wall when mask excludes it")
	}

	hit, dist := w.Cast(Vec2{0, 2}, Vec2{1, 0}, 10, CategoryWall)
	if !hit {
		t.Fatal("expected rightward ray to hit wall")
	}
	if math.Abs(dist-5) > 0.01 {
		t.Errorf("dist = %v, want 5", dist)
	}
}

func TestCastMisses(t *testing.T) {
	w := testWorld()

	hit, _ := w.Cast(Vec2{0, 3}, Vec2{0, 1}, 10, MaskAll)
	if hit {
		t.Error("upward ray should miss everything")
	}

	// Out of range: ground is 3 below but the ray is capped at 2.
	hit, _ = w.Cast(Vec2{0, 3}, Vec2{0, -1}, 2, CategoryGround)
	if hit {
		t.Error("short ray should not reach ground")
	}
}

func TestCastDegenerateDirection(t *testing.T) {
	w := testWorld()

	hit, dist := w.Cast(Vec2{0, 3}, Vec2{}, 10, MaskAll)
	if hit || dist != 0 {
		t.Errorf("zero direction: hit=%v dist=%v, want miss", hit, dist)
	}
}

func TestAgentFallsAndRests(t *testing.T) {
	w := testWorld()
	agent := w.CreateAgent(Vec2{0, 2}, Vec2{0.35, 0.45})

	for i := 0; i < 200; i++ {
		w.Step(0.02)
	}

	pos := agent.Position()
	// Resting center = half height above the ground surface.
	if math.Abs(pos.Y-0.45) > 0.05 {
		t.Errorf("rest y = %v, want ~0.45", pos.Y)
	}
	if math.Abs(agent.Velocity().Y) > 0.1 {
		t.Errorf("rest vy = %v, want ~0", agent.Velocity().Y)
	}
}

func TestAgentVelocityAndImpulse(t *testing.T) {
	w := testWorld()
	agent := w.CreateAgent(Vec2{0, 0.45}, Vec2{0.35, 0.45})

	agent.SetVelocity(Vec2{3, 0})
	w.Step(0.02)
	if agent.Position().X <= 0 {
		t.Error("agent should move right after SetVelocity")
	}

	before := agent.Velocity().Y
	agent.ApplyImpulse(Vec2{0, 10})
	if agent.Velocity().Y <= before {
		t.Error("upward impulse should raise vertical velocity")
	}
}

func TestSetStaticsRebuild(t *testing.T) {
	w := testWorld()

	// Replace the level: ground moves down to y=-2.
	w.SetStatics([]Rect{
		{Center: Vec2{0, -2.5}, Half: Vec2{10, 0.5}, Category: CategoryGround},
	})

	hit, dist := w.Cast(Vec2{0, 0}, Vec2{0, -1}, 10, CategoryGround)
	if !hit {
		t.Fatal("expected ray to hit rebuilt ground")
	}
	if math.Abs(dist-2) > 0.01 {
		t.Errorf("dist = %v, want 2", dist)
	}

	// The old wall must be gone.
	hit, _ = w.Cast(Vec2{0, 2}, Vec2{1, 0}, 10, CategoryWall)
	if hit {
		t.Error("old wall should have been destroyed")
	}
}
