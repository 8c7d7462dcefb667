package policy

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/pthm-cable/hopper/env"
)

// obsWith builds an observation vector with the given indices set; rays
// default to fully clear.
func obsWith(values map[int]float64) *mat.VecDense {
	obs := env.Observation{}
	for i := range obs.Rays {
		obs.Rays[i] = 1
	}
	v := obs.AsVec()
	for i, val := range values {
		v.SetVec(i, val)
	}
	return v
}

func TestChaserSteersTowardGoal(t *testing.T) {
	tests := []struct {
		name     string
		obs      map[int]float64
		wantMove float64
		wantJump float64
	}{
		{"goal to the right", map[int]float64{idxGoalActive: 1, idxGoalRelX: 5}, 1, 0},
		{"goal to the left", map[int]float64{idxGoalActive: 1, idxGoalRelX: -5}, -1, 0},
		{"inside deadzone", map[int]float64{idxGoalActive: 1, idxGoalRelX: 0.1}, 0, 0},
		{"goal inactive", map[int]float64{idxGoalActive: 0, idxGoalRelX: 5}, 0, 0},
		{
			"blocked and grounded jumps",
			map[int]float64{idxGoalActive: 1, idxGoalRelX: 5, idxGrounded: 1, idxRayRight: 0.05},
			1, 1,
		},
		{
			"blocked but airborne holds",
			map[int]float64{idxGoalActive: 1, idxGoalRelX: 5, idxGrounded: 0, idxRayRight: 0.05},
			1, 0,
		},
		{
			"goal overhead climbs",
			map[int]float64{idxGoalActive: 1, idxGoalRelX: 5, idxGoalRelY: 3, idxGrounded: 1},
			1, 1,
		},
		{
			"blocked leftward checks left ray",
			map[int]float64{idxGoalActive: 1, idxGoalRelX: -5, idxGrounded: 1, idxRayLeft: 0.05},
			-1, 1,
		},
	}
	c := NewChaser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := env.ActionFromVec(c.SelectAction(obsWith(tt.obs)))
			if a.Move != tt.wantMove {
				t.Errorf("move = %v, want %v", a.Move, tt.wantMove)
			}
			if a.Jump != tt.wantJump {
				t.Errorf("jump = %v, want %v", a.Jump, tt.wantJump)
			}
		})
	}
}

func TestChaserHandlesShortVector(t *testing.T) {
	c := NewChaser()
	a := env.ActionFromVec(c.SelectAction(mat.NewVecDense(3, nil)))
	if a.Move != 0 || a.Jump != 0 {
		t.Errorf("short vector action = %+v, want zero", a)
	}
	a = env.ActionFromVec(c.SelectAction(nil))
	if a.Move != 0 || a.Jump != 0 {
		t.Errorf("nil vector action = %+v, want zero", a)
	}
}

func TestRandomBoundedAndSeeded(t *testing.T) {
	p1 := NewRandom(42)
	p2 := NewRandom(42)
	for i := 0; i < 100; i++ {
		a1 := env.ActionFromVec(p1.SelectAction(nil))
		a2 := env.ActionFromVec(p2.SelectAction(nil))
		if a1.Move < -1 || a1.Move > 1 || a1.Jump < -1 || a1.Jump > 1 {
			t.Fatalf("draw %d out of bounds: %+v", i, a1)
		}
		if math.Abs(a1.Move-a2.Move) > 1e-15 || math.Abs(a1.Jump-a2.Jump) > 1e-15 {
			t.Fatalf("same seed diverged at draw %d", i)
		}
	}
}

func TestScriptedReplaysAndRewinds(t *testing.T) {
	script := []env.Action{{Move: 1}, {Move: -1, Jump: 1}}
	p := NewScripted(script)

	for i, want := range script {
		got := env.ActionFromVec(p.SelectAction(nil))
		if got != want {
			t.Fatalf("step %d = %+v, want %+v", i, got, want)
		}
	}
	if got := env.ActionFromVec(p.SelectAction(nil)); got != (env.Action{}) {
		t.Errorf("exhausted script = %+v, want zero action", got)
	}

	p.Reset()
	if got := env.ActionFromVec(p.SelectAction(nil)); got != script[0] {
		t.Errorf("after reset = %+v, want %+v", got, script[0])
	}
}

func TestNewByName(t *testing.T) {
	for _, name := range []string{"chaser", "random", "idle", " Chaser "} {
		if _, err := New(name, 1); err != nil {
			t.Errorf("New(%q) failed: %v", name, err)
		}
	}
	if _, err := New("ppo", 1); err == nil {
		t.Error("unknown policy name did not fail")
	}
}
