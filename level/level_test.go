package level

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/physics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := testConfig(t)

	a := Generate(cfg, 7)
	b := Generate(cfg, 7)

	ra, rb := a.Statics(), b.Statics()
	if len(ra) == 0 {
		t.Fatal("no statics generated")
	}
	if len(ra) != len(rb) {
		t.Fatalf("statics count differs: %d vs %d", len(ra), len(rb))
	}
	for i := range ra {
		if ra[i] != rb[i] {
			t.Errorf("static %d differs: %+v vs %+v", i, ra[i], rb[i])
		}
	}
	if a.AgentAnchor() != b.AgentAnchor() || a.GoalAnchor() != b.GoalAnchor() {
		t.Error("anchors differ between identical seeds")
	}
}

func TestGenerateSeedsDiffer(t *testing.T) {
	cfg := testConfig(t)

	a := Generate(cfg, 1)
	b := Generate(cfg, 2)

	ra, rb := a.Statics(), b.Statics()
	if len(ra) == len(rb) {
		same := true
		for i := range ra {
			if ra[i] != rb[i] {
				same = false
				break
			}
		}
		if same {
			t.Error("different seeds produced identical layouts")
		}
	}
}

func TestGenerateAnchors(t *testing.T) {
	cfg := testConfig(t)
	l := Generate(cfg, 3)

	agent, goal := l.AgentAnchor(), l.GoalAnchor()
	if agent.X != cfg.Level.AnchorMargin {
		t.Errorf("agent anchor x = %v, want %v", agent.X, cfg.Level.AnchorMargin)
	}
	if goal.X != cfg.Level.Width-cfg.Level.AnchorMargin {
		t.Errorf("goal anchor x = %v, want %v", goal.X, cfg.Level.Width-cfg.Level.AnchorMargin)
	}
	if goal.X-agent.X < cfg.Level.Width/2 {
		t.Error("anchors should sit at opposite ends")
	}
}

func TestGenerateGroundUnderAnchors(t *testing.T) {
	cfg := testConfig(t)

	// Several seeds: the keepout must hold for all of them.
	for seed := int64(1); seed <= 20; seed++ {
		l := Generate(cfg, seed)
		for _, anchor := range []physics.Vec2{l.AgentAnchor(), l.GoalAnchor()} {
			found := false
			for _, r := range l.Statics() {
				if r.Category != physics.CategoryGround {
					continue
				}
				if anchor.X >= r.Center.X-r.Half.X && anchor.X <= r.Center.X+r.Half.X {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("seed %d: no ground under anchor x=%v", seed, anchor.X)
			}
		}
	}
}

func TestGenerateCategories(t *testing.T) {
	cfg := testConfig(t)
	l := Generate(cfg, 5)

	counts := map[uint16]int{}
	for _, r := range l.Statics() {
		counts[r.Category]++
	}
	if counts[physics.CategoryGround] == 0 {
		t.Error("no ground segments")
	}
	if counts[physics.CategoryWall] != 2 {
		t.Errorf("wall count = %d, want 2", counts[physics.CategoryWall])
	}
	if counts[physics.CategoryPlatform] != cfg.Level.PlatformCount {
		t.Errorf("platform count = %d, want %d", counts[physics.CategoryPlatform], cfg.Level.PlatformCount)
	}
}

func TestGoalHandle(t *testing.T) {
	cfg := testConfig(t)
	l := Generate(cfg, 5)
	goal := l.Goal()

	if !goal.Active() {
		t.Error("goal should start active")
	}
	if goal.Position() != l.GoalAnchor() {
		t.Errorf("goal starts at %v, want anchor %v", goal.Position(), l.GoalAnchor())
	}

	goal.SetPosition(physics.Vec2{X: 4, Y: 2})
	if goal.Position() != (physics.Vec2{X: 4, Y: 2}) {
		t.Errorf("goal position = %v after SetPosition", goal.Position())
	}

	goal.SetActive(false)
	if goal.Active() {
		t.Error("goal should be inactive after SetActive(false)")
	}
}

func TestRandomizeMovesOnlyPlatforms(t *testing.T) {
	cfg := testConfig(t)
	l := Generate(cfg, 5)

	var beforeGround, beforePlatforms []physics.Rect
	for _, r := range l.Statics() {
		if r.Category == physics.CategoryPlatform {
			beforePlatforms = append(beforePlatforms, r)
		} else {
			beforeGround = append(beforeGround, r)
		}
	}

	l.Randomize(rand.New(rand.NewSource(99)))

	var afterGround, afterPlatforms []physics.Rect
	for _, r := range l.Statics() {
		if r.Category == physics.CategoryPlatform {
			afterPlatforms = append(afterPlatforms, r)
		} else {
			afterGround = append(afterGround, r)
		}
	}

	if len(beforeGround) != len(afterGround) {
		t.Fatal("ground/wall count changed")
	}
	for i := range beforeGround {
		if beforeGround[i] != afterGround[i] {
			t.Error("ground or wall moved during Randomize")
		}
	}

	moved := false
	for i := range beforePlatforms {
		if beforePlatforms[i] != afterPlatforms[i] {
			moved = true
		}
		if afterPlatforms[i].Center.Y > cfg.Level.MaxHeight || afterPlatforms[i].Center.Y < 1.0 {
			t.Errorf("platform %d y = %v out of bounds", i, afterPlatforms[i].Center.Y)
		}
		if afterPlatforms[i].Center.X < 0 || afterPlatforms[i].Center.X > cfg.Level.Width {
			t.Errorf("platform %d x = %v out of bounds", i, afterPlatforms[i].Center.X)
		}
		if math.Abs(afterPlatforms[i].Center.X-beforePlatforms[i].Center.X) > rerollX+1e-9 {
			t.Errorf("platform %d moved too far in x", i)
		}
	}
	if !moved {
		t.Error("Randomize left every platform in place")
	}
}

func TestPaintCollectedAndTick(t *testing.T) {
	cfg := testConfig(t)
	l := Generate(cfg, 5)

	l.PaintCollected()

	flashed := 0
	l.Surfaces(func(_ Position, _ Extent, _ Surface, tint Tint) {
		if tint.Flash == flashTicks {
			flashed++
		}
	})
	if flashed == 0 {
		t.Fatal("no surface flashed after PaintCollected")
	}
	if _, _, flash := l.GoalState(); flash != flashTicks {
		t.Errorf("goal flash = %d, want %d", flash, flashTicks)
	}

	l.TickTints()
	l.Surfaces(func(_ Position, _ Extent, _ Surface, tint Tint) {
		if tint.Flash != flashTicks-1 {
			t.Errorf("surface flash = %d after tick, want %d", tint.Flash, flashTicks-1)
		}
	})
}
