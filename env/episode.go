package env

// Phase is the episode lifecycle state.
type Phase uint8

const (
	PhaseBegin Phase = iota
	PhaseActive
	// PhaseSuccess is never entered: goal capture is a repeatable in-episode
	// event and episodes end only by falling or timing out.
	PhaseSuccess
	PhaseFalling
	PhaseTimeout
)

// String names the phase for logs and telemetry rows.
func (p Phase) String() string {
	switch p {
	case PhaseBegin:
		return "begin"
	case PhaseActive:
		return "active"
	case PhaseSuccess:
		return "success"
	case PhaseFalling:
		return "falling"
	case PhaseTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Terminal reports whether the phase ends an episode.
func (p Phase) Terminal() bool {
	return p == PhaseFalling || p == PhaseTimeout
}

// episode is the per-episode mutable state. A fresh value is installed on
// every Begin.
type episode struct {
	elapsed      float64 // seconds since Begin
	collected    int     // goals captured this episode
	lastGoalDist float64 // goal distance stored at the end of the last tick
	prevGrounded bool    // grounded flag stored at the end of the last tick
	deathY       float64 // falling below this height ends the episode
	phase        Phase
}

// Step is the outcome of one controller tick.
type Step struct {
	Obs    Observation
	Reward float64
	Done   bool
	// Outcome is PhaseActive while the episode runs and the terminal phase
	// on the tick it ends.
	Outcome Phase
}
