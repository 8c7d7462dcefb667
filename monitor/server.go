// Package monitor serves recorded run telemetry over HTTP: a run listing,
// a per-run metrics tail and a small dashboard page.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/telemetry"
)

// Server serves run telemetry from a results directory.
type Server struct {
	ResultsDir string
	Host       string
	Port       int
	StaticDir  string
	LimitCap   int

	log   *slog.Logger
	cache *csvCache
}

// New builds a server from the monitor and telemetry sections of cfg.
func New(cfg *config.Config, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	limitCap := cfg.Monitor.MetricsLimitCap
	if limitCap < 1 {
		limitCap = 2000
	}
	return &Server{
		ResultsDir: cfg.Telemetry.OutputDir,
		Host:       cfg.Monitor.Host,
		Port:       cfg.Monitor.Port,
		StaticDir:  cfg.Monitor.StaticDir,
		LimitCap:   limitCap,
		log:        log,
		cache:      newCSVCache(),
	}
}

// Handler returns the route table. Split out so tests can drive it through
// httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/health", s.handleHealth)
	if s.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.StaticDir)))
	} else {
		mux.HandleFunc("/", s.handleIndex)
	}
	return mux
}

// ListenAndServe blocks until ctx is canceled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("dashboard listening", "addr", addr, "results_dir", s.ResultsDir)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.discoverRuns()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]any{"runs": runs})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run is required")
		return
	}
	if runID != filepath.Base(runID) || runID == "." || runID == ".." {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil {
			limit = n
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > s.LimitCap {
		limit = s.LimitCap
	}

	dir := filepath.Join(s.ResultsDir, runID)
	episodesPath := filepath.Join(dir, "episodes.csv")
	fi, err := os.Stat(episodesPath)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no run %q", runID))
		return
	}

	episodes, err := s.episodeRows(episodesPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(episodes) > limit {
		episodes = episodes[len(episodes)-limit:]
	}
	if episodes == nil {
		episodes = []telemetry.EpisodeRecord{}
	}

	windows, err := s.windowRows(filepath.Join(dir, "windows.csv"))
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(windows) > limit {
		windows = windows[len(windows)-limit:]
	}
	if windows == nil {
		windows = []telemetry.WindowStats{}
	}

	// Runs that ended before any episode qualified have no hall file.
	hall := []telemetry.HallEntry{}
	if hof, err := telemetry.LoadHallOfFame(filepath.Join(dir, "hall_of_fame.json"), 0); err == nil {
		hall = hof.Entries()
	} else if !errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, map[string]any{
		"run":          runID,
		"updated_at":   fi.ModTime().UTC(),
		"episodes":     episodes,
		"windows":      windows,
		"hall_of_fame": hall,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

const indexHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>hopper runs</title></head>
<body>
<h1>hopper runs</h1>
<table id="runs" border="1" cellpadding="4">
<tr><th>run</th><th>episodes</th><th>updated</th></tr>
</table>
<script>
fetch("/api/runs").then(function (r) { return r.json(); }).then(function (body) {
  var table = document.getElementById("runs");
  body.runs.forEach(function (run) {
    var row = table.insertRow();
    var link = document.createElement("a");
    link.href = "/api/metrics?run=" + encodeURIComponent(run.id);
    link.textContent = run.id;
    row.insertCell().appendChild(link);
    row.insertCell().textContent = run.episodes;
    row.insertCell().textContent = run.updated_at;
  });
});
</script>
</body>
</html>
`

// handleIndex is the fallback page when no static dir is configured.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
