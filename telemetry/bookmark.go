package telemetry

import (
	"fmt"
	"log/slog"
	"math"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstCapture         BookmarkType = "first_capture"
	BookmarkCaptureBreakthrough  BookmarkType = "capture_breakthrough"
	BookmarkSurvivalBreakthrough BookmarkType = "survival_breakthrough"
	BookmarkFallRegression       BookmarkType = "fall_regression"
	BookmarkStableProgress       BookmarkType = "stable_progress"
)

// Bookmark represents an automatically detected notable moment in a run.
type Bookmark struct {
	Type        BookmarkType `csv:"type"`
	Tick        int64        `csv:"tick"`
	Description string       `csv:"description"`
}

// LogBookmark logs the bookmark using slog.
func (b Bookmark) LogBookmark() {
	slog.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments in a run from window stats.
type BookmarkDetector struct {
	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	// State tracking
	seenCapture        bool
	stableWindowsCount int
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int) *BookmarkDetector {
	if historySize < 5 {
		historySize = 5 // minimum for stable progress detection
	}
	return &BookmarkDetector{
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if b := bd.checkFirstCapture(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	if bd.historyFull || bd.historyIdx > 0 {
		// Capture breakthrough: goals per episode > 2x rolling average
		if b := bd.checkCaptureBreakthrough(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Survival breakthrough: mean episode length > 2x rolling average
		if b := bd.checkSurvivalBreakthrough(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Fall regression: almost every episode falls after a calmer stretch
		if b := bd.checkFallRegression(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}

		// Stable progress: returns hold steady over 5+ windows
		if b := bd.checkStableProgress(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}

	bd.addToHistory(stats)

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

func (bd *BookmarkDetector) checkFirstCapture(stats WindowStats) *Bookmark {
	if bd.seenCapture || stats.Goals == 0 {
		return nil
	}
	bd.seenCapture = true
	return &Bookmark{
		Type:        BookmarkFirstCapture,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("First goal captured (%d in window)", stats.Goals),
	}
}

func (bd *BookmarkDetector) checkCaptureBreakthrough(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var totalGoals, totalEpisodes int
	for _, h := range history {
		totalGoals += h.Goals
		totalEpisodes += h.Episodes
	}
	if totalEpisodes == 0 || totalGoals == 0 || stats.Episodes == 0 {
		return nil
	}

	avgGoalsPerEpisode := float64(totalGoals) / float64(totalEpisodes)
	if stats.GoalsPerEpisode > avgGoalsPerEpisode*2.0 && stats.Goals >= 3 {
		return &Bookmark{
			Type: BookmarkCaptureBreakthrough,
			Tick: stats.WindowEndTick,
			Description: fmt.Sprintf("Goals/episode %.2f is %.1fx average (%.2f)",
				stats.GoalsPerEpisode, stats.GoalsPerEpisode/avgGoalsPerEpisode, avgGoalsPerEpisode),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkSurvivalBreakthrough(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var totalLen float64
	var n int
	for _, h := range history {
		if h.Episodes > 0 {
			totalLen += h.LengthMeanSec
			n++
		}
	}
	if n == 0 || stats.Episodes == 0 {
		return nil
	}

	avgLen := totalLen / float64(n)
	if avgLen == 0 {
		return nil
	}

	if stats.LengthMeanSec > avgLen*2.0 {
		return &Bookmark{
			Type: BookmarkSurvivalBreakthrough,
			Tick: stats.WindowEndTick,
			Description: fmt.Sprintf("Mean episode length %.1fs is %.1fx average (%.1fs)",
				stats.LengthMeanSec, stats.LengthMeanSec/avgLen, avgLen),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkFallRegression(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 || stats.Episodes < 3 {
		return nil
	}

	var totalFalls, totalEpisodes int
	for _, h := range history {
		totalFalls += h.Falls
		totalEpisodes += h.Episodes
	}
	if totalEpisodes == 0 {
		return nil
	}

	avgFallRate := float64(totalFalls) / float64(totalEpisodes)
	if stats.FallRate > 0.9 && avgFallRate < 0.5 {
		return &Bookmark{
			Type: BookmarkFallRegression,
			Tick: stats.WindowEndTick,
			Description: fmt.Sprintf("Fall rate %.2f after rolling average %.2f",
				stats.FallRate, avgFallRate),
		}
	}

	return nil
}

func (bd *BookmarkDetector) checkStableProgress(stats WindowStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < bd.historySize {
		bd.stableWindowsCount = 0
		return nil
	}

	var mean float64
	for _, h := range history {
		mean += h.ReturnMean
	}
	mean /= float64(len(history))

	var variance float64
	for _, h := range history {
		d := h.ReturnMean - mean
		variance += d * d
	}
	variance /= float64(len(history))

	// Stable when the spread stays within 10% of the mean's magnitude.
	stable := stats.Episodes > 0 && math.Sqrt(variance) < math.Abs(mean)*0.1
	if !stable {
		bd.stableWindowsCount = 0
		return nil
	}

	bd.stableWindowsCount++
	if bd.stableWindowsCount == bd.historySize {
		return &Bookmark{
			Type: BookmarkStableProgress,
			Tick: stats.WindowEndTick,
			Description: fmt.Sprintf("Return mean %.2f stable over %d windows",
				mean, bd.stableWindowsCount),
		}
	}

	return nil
}
