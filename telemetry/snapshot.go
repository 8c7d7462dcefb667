package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds one moment of the environment for offline inspection and
// rendering.
type Snapshot struct {
	Version int   `json:"version"`
	Seed    int64 `json:"seed"`

	Tick       int64   `json:"tick"`
	SimTimeSec float64 `json:"sim_time"`

	// Episode state
	Phase       string  `json:"phase"`
	Elapsed     float64 `json:"elapsed"`
	Goals       int     `json:"goals"`
	DeathHeight float64 `json:"death_height"`

	Agent AgentState `json:"agent"`
	Goal  GoalState  `json:"goal"`

	Surfaces []SurfaceState `json:"surfaces"`
}

// AgentState holds the agent body's pose.
type AgentState struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VelX     float64 `json:"vel_x"`
	VelY     float64 `json:"vel_y"`
	HalfW    float64 `json:"half_w"`
	HalfH    float64 `json:"half_h"`
	Grounded bool    `json:"grounded"`
}

// GoalState holds the goal target's state.
type GoalState struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active bool    `json:"active"`
}

// SurfaceState holds one static surface rectangle.
type SurfaceState struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	HalfW float64 `json:"half_w"`
	HalfH float64 `json:"half_h"`
	Kind  string  `json:"kind"`
	Flash int     `json:"flash,omitempty"`
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	name := fmt.Sprintf("snapshot_%d.json", snapshot.Tick)
	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}
