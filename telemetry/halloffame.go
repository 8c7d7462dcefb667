package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// HallEntry records one of the best episodes of a run.
type HallEntry struct {
	Episode     int     `json:"episode"`
	Return      float64 `json:"return"`
	Goals       int     `json:"goals"`
	Ticks       int     `json:"ticks"`
	DurationSec float64 `json:"duration_sec"`
	Outcome     string  `json:"outcome"`
	EndTick     int64   `json:"end_tick"`
}

// HallOfFame stores the highest-return episodes of a run, sorted descending.
type HallOfFame struct {
	entries []HallEntry
	maxSize int
}

// NewHallOfFame creates a hall with the given capacity.
func NewHallOfFame(maxSize int) *HallOfFame {
	if maxSize < 1 {
		maxSize = 1
	}
	return &HallOfFame{
		entries: make([]HallEntry, 0, maxSize),
		maxSize: maxSize,
	}
}

// Consider evaluates a finished episode for hall entry.
// Returns true if the episode was added.
func (hof *HallOfFame) Consider(rec EpisodeRecord) bool {
	if !hof.meetsEntryCriteria(rec) {
		return false
	}

	entry := HallEntry{
		Episode:     rec.Episode,
		Return:      rec.Return,
		Goals:       rec.Goals,
		Ticks:       rec.Ticks,
		DurationSec: rec.DurationSec,
		Outcome:     rec.Outcome,
		EndTick:     rec.EndTick,
	}

	if len(hof.entries) >= hof.maxSize && entry.Return <= hof.entries[len(hof.entries)-1].Return {
		return false
	}

	hof.entries = hof.insertEntry(hof.entries, entry)
	return true
}

// meetsEntryCriteria checks if an episode qualifies for the hall.
// Episodes must have achieved something: a capture or a positive return.
func (hof *HallOfFame) meetsEntryCriteria(rec EpisodeRecord) bool {
	return rec.Goals > 0 || rec.Return > 0
}

// insertEntry adds an entry, maintaining sorted order by return.
// If the hall is full, the lowest-return entry is removed.
func (hof *HallOfFame) insertEntry(hall []HallEntry, entry HallEntry) []HallEntry {
	// Find insertion point (sorted descending by return)
	idx := sort.Search(len(hall), func(i int) bool {
		return hall[i].Return < entry.Return
	})

	// If hall is full and entry would be last (lowest), skip it
	if len(hall) >= hof.maxSize && idx >= hof.maxSize {
		return hall
	}

	// Insert at position
	hall = append(hall, HallEntry{})
	copy(hall[idx+1:], hall[idx:])
	hall[idx] = entry

	// Trim if over capacity
	if len(hall) > hof.maxSize {
		hall = hall[:hof.maxSize]
	}

	return hall
}

// Size returns the number of entries in the hall.
func (hof *HallOfFame) Size() int {
	return len(hof.entries)
}

// Best returns the top entry, or false when the hall is empty.
func (hof *HallOfFame) Best() (HallEntry, bool) {
	if len(hof.entries) == 0 {
		return HallEntry{}, false
	}
	return hof.entries[0], true
}

// TopReturn returns the highest return in the hall, or 0 when empty.
func (hof *HallOfFame) TopReturn() float64 {
	if len(hof.entries) == 0 {
		return 0
	}
	return hof.entries[0].Return
}

// Entries returns a copy of the hall, best first.
func (hof *HallOfFame) Entries() []HallEntry {
	out := make([]HallEntry, len(hof.entries))
	copy(out, hof.entries)
	return out
}

// MarshalJSON serializes the hall to indented JSON.
func (hof *HallOfFame) MarshalJSON() ([]byte, error) {
	return json.MarshalIndent(hof.entries, "", "  ")
}

// LoadHallOfFame reads a hall of fame JSON file written by OutputManager.
func LoadHallOfFame(path string, maxSize int) (*HallOfFame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading hall of fame: %w", err)
	}

	var entries []HallEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing hall of fame JSON: %w", err)
	}

	if maxSize < len(entries) {
		maxSize = len(entries)
	}
	hof := NewHallOfFame(maxSize)
	for _, e := range entries {
		hof.entries = hof.insertEntry(hof.entries, e)
	}
	return hof, nil
}
