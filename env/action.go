package env

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// ActionSize is the length of the action vector.
const ActionSize = 2

// Action is the continuous control input for one tick. Both channels are
// clamped to [-1, 1] before use.
type Action struct {
	Move float64 // horizontal intent: -1 full left, +1 full right
	Jump float64 // jump intent: fires when above the configured threshold
}

// Clamped returns the action with both channels limited to [-1, 1].
func (a Action) Clamped() Action {
	return Action{
		Move: clampf(a.Move, -1, 1),
		Jump: clampf(a.Jump, -1, 1),
	}
}

// ActionFromVec decodes the first two elements of v as [move, jump].
// Short vectors decode to the zero action.
func ActionFromVec(v *mat.VecDense) Action {
	if v == nil || v.Len() < ActionSize {
		return Action{}
	}
	return Action{Move: v.AtVec(0), Jump: v.AtVec(1)}
}

// AsVec encodes the action as a dense column vector [move, jump].
func (a Action) AsVec() *mat.VecDense {
	return mat.NewVecDense(ActionSize, []float64{a.Move, a.Jump})
}

// ActionFromAxes maps manual control input, a horizontal axis value and a
// discrete jump trigger, onto the action contract.
func ActionFromAxes(axis float64, jump bool) Action {
	a := Action{Move: axis}
	if jump {
		a.Jump = 1
	}
	return a.Clamped()
}

// ActionBounds reports the valid range of each action channel.
func ActionBounds() []r1.Interval {
	return []r1.Interval{
		{Min: -1, Max: 1},
		{Min: -1, Max: 1},
	}
}
