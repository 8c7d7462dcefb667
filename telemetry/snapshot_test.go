package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:     SnapshotVersion,
		Seed:        42,
		Tick:        1000,
		SimTimeSec:  16.6,
		Phase:       "active",
		Elapsed:     3.2,
		Goals:       2,
		DeathHeight: -1.5,
		Agent: AgentState{
			X:        4.5,
			Y:        1.2,
			VelX:     0.5,
			VelY:     -0.3,
			HalfW:    0.35,
			HalfH:    0.45,
			Grounded: true,
		},
		Goal: GoalState{
			X:      37.0,
			Y:      2.1,
			Active: true,
		},
		Surfaces: []SurfaceState{
			{X: 20, Y: 0.25, HalfW: 20, HalfH: 0.25, Kind: "ground"},
			{X: 12, Y: 2.0, HalfW: 1.5, HalfH: 0.2, Kind: "platform", Flash: 3},
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.Version != snapshot.Version {
		t.Errorf("Version mismatch: got %d, want %d", loaded.Version, snapshot.Version)
	}
	if loaded.Seed != snapshot.Seed {
		t.Errorf("Seed mismatch: got %d, want %d", loaded.Seed, snapshot.Seed)
	}
	if loaded.Tick != snapshot.Tick {
		t.Errorf("Tick mismatch: got %d, want %d", loaded.Tick, snapshot.Tick)
	}
	if loaded.Phase != snapshot.Phase {
		t.Errorf("Phase mismatch: got %s, want %s", loaded.Phase, snapshot.Phase)
	}
	if loaded.Agent != snapshot.Agent {
		t.Errorf("Agent mismatch: got %+v, want %+v", loaded.Agent, snapshot.Agent)
	}
	if loaded.Goal != snapshot.Goal {
		t.Errorf("Goal mismatch: got %+v, want %+v", loaded.Goal, snapshot.Goal)
	}
	if len(loaded.Surfaces) != len(snapshot.Surfaces) {
		t.Fatalf("Surfaces count mismatch: got %d, want %d", len(loaded.Surfaces), len(snapshot.Surfaces))
	}
	if loaded.Surfaces[1] != snapshot.Surfaces[1] {
		t.Errorf("Surface mismatch: got %+v, want %+v", loaded.Surfaces[1], snapshot.Surfaces[1])
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		Tick:    5000,
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	expected := filepath.Join(tmpDir, "snapshot_5000.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}
}
