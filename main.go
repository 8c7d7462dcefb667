// Command hopper runs, replays and inspects platformer rollouts.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/hopper/config"
	"github.com/pthm-cable/hopper/env"
	"github.com/pthm-cable/hopper/monitor"
	"github.com/pthm-cable/hopper/physics"
	"github.com/pthm-cable/hopper/play"
	"github.com/pthm-cable/hopper/sim"
	"github.com/pthm-cable/hopper/vis"
)

func main() {
	var (
		configPath string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:   "hopper",
		Short: "hopper is a 2D platforming environment for goal-chasing agents",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Init(configPath); err != nil {
				return err
			}
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: level,
			})))
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"path to config.yaml (empty = embedded defaults)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false,
		"log per-episode debug events")

	rootCmd.AddCommand(runCmd(), playCmd(), dashboardCmd(), snapshotCmd(), configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var (
		seed        int64
		policyName  string
		maxTicks    int64
		maxEpisodes int
		logStats    bool
		snapshotDir string
		outputDir   string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run headless rollouts and record telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Cfg()
			if outputDir != "" {
				cfg.Telemetry.OutputDir = outputDir
			}

			r, err := sim.New(sim.Options{
				Config:      cfg,
				Seed:        seed,
				Policy:      policyName,
				MaxTicks:    maxTicks,
				MaxEpisodes: maxEpisodes,
				LogStats:    logStats,
				SnapshotDir: snapshotDir,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			_, err = r.Run(ctx)
			return err
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "rng seed (0 = time-based)")
	cmd.Flags().StringVar(&policyName, "policy", "chaser", "policy driving the agent (chaser, random, idle)")
	cmd.Flags().Int64Var(&maxTicks, "max-ticks", 0, "stop after N ticks (0 = unlimited)")
	cmd.Flags().IntVar(&maxEpisodes, "max-episodes", 0, "stop after N episodes (0 = unlimited)")
	cmd.Flags().BoolVar(&logStats, "log-stats", false, "log window and perf stats")
	cmd.Flags().StringVar(&snapshotDir, "snapshot-dir", "", "save state snapshots when bookmarks fire")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "override telemetry output dir")
	return cmd
}

func playCmd() *cobra.Command {
	var (
		seed      int64
		autopilot bool
	)

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Drive the agent interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The UI owns the terminal; keep logs off it.
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))

			s, err := play.New(play.Options{Seed: seed, Autopilot: autopilot})
			if err != nil {
				return err
			}
			return s.Run()
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "rng seed (0 = time-based)")
	cmd.Flags().BoolVar(&autopilot, "autopilot", false, "start with the chaser driving")
	return cmd
}

func dashboardCmd() *cobra.Command {
	var (
		host       string
		port       int
		staticDir  string
		resultsDir string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Serve recorded runs over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Cfg()
			if host != "" {
				cfg.Monitor.Host = host
			}
			if port != 0 {
				cfg.Monitor.Port = port
			}
			if staticDir != "" {
				cfg.Monitor.StaticDir = staticDir
			}
			if resultsDir != "" {
				cfg.Telemetry.OutputDir = resultsDir
			}

			srv := monitor.New(cfg, slog.Default())
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "bind host (empty = config value)")
	cmd.Flags().IntVar(&port, "port", 0, "bind port (0 = config value)")
	cmd.Flags().StringVar(&staticDir, "static-dir", "", "dashboard assets dir (empty = config value)")
	cmd.Flags().StringVar(&resultsDir, "results-dir", "", "results dir to serve (empty = config value)")
	return cmd
}

func snapshotCmd() *cobra.Command {
	var (
		seed       int64
		policyName string
		ticks      int64
		out        string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Roll out a policy and render the end state to PNG",
		RunE: func(cmd *cobra.Command, args []string) error {
			// One-off frame, no run directory.
			cfg := *config.Cfg()
			cfg.Telemetry.OutputDir = ""

			var trail []physics.Vec2
			var r *sim.Runner
			r, err := sim.New(sim.Options{
				Config:   &cfg,
				Seed:     seed,
				Policy:   policyName,
				MaxTicks: ticks,
				StepFunc: func(tick int64, step env.Step) {
					trail = append(trail, r.Body().Position())
				},
			})
			if err != nil {
				return err
			}
			if _, err := r.Run(cmd.Context()); err != nil {
				return err
			}

			scene := vis.Scene{
				Snapshot:    r.BuildSnapshot(),
				Trail:       trail,
				AgentAnchor: r.Level().AgentAnchor(),
				GoalAnchor:  r.Level().GoalAnchor(),
			}
			if err := vis.Render(scene, out); err != nil {
				return err
			}
			slog.Info("snapshot rendered", "path", out, "ticks", r.Tick())
			return nil
		},
	}

	cmd.Flags().Int64Var(&seed, "seed", 0, "rng seed (0 = time-based)")
	cmd.Flags().StringVar(&policyName, "policy", "chaser", "policy driving the rollout")
	cmd.Flags().Int64Var(&ticks, "ticks", 600, "ticks to roll out before capturing")
	cmd.Flags().StringVar(&out, "out", "snapshot.png", "output PNG path")
	return cmd
}

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the merged configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(config.Cfg())
			if err != nil {
				return err
			}
			fmt.Print(string(data))
			return nil
		},
	}
}
