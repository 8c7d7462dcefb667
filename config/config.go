// Package config provides configuration loading and access for the environment.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/hopper/physics"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all environment configuration parameters.
type Config struct {
	Physics    PhysicsConfig    `yaml:"physics"`
	Agent      AgentConfig      `yaml:"agent"`
	Rewards    RewardsConfig    `yaml:"rewards"`
	Episode    EpisodeConfig    `yaml:"episode"`
	Placement  PlacementConfig  `yaml:"placement"`
	Perception PerceptionConfig `yaml:"perception"`
	Level      LevelConfig      `yaml:"level"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Monitor    MonitorConfig    `yaml:"monitor"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// PhysicsConfig holds simulation physics parameters.
type PhysicsConfig struct {
	DT                 float64 `yaml:"dt"`                  // seconds per tick
	Gravity            float64 `yaml:"gravity"`             // y acceleration, negative pulls down
	VelocityIterations int     `yaml:"velocity_iterations"` // solver iterations per step
	PositionIterations int     `yaml:"position_iterations"`
	AgentHalfWidth     float64 `yaml:"agent_half_width"`
	AgentHalfHeight    float64 `yaml:"agent_half_height"`
}

// AgentConfig holds movement and contact-probe parameters.
type AgentConfig struct {
	MoveSpeed          float64 `yaml:"move_speed"`           // horizontal speed at full action
	JumpImpulse        float64 `yaml:"jump_impulse"`         // upward impulse applied on jump
	JumpThreshold      float64 `yaml:"jump_threshold"`       // jump action above this triggers a jump
	GroundProbeExtra   float64 `yaml:"ground_probe_extra"`   // probe length below the agent's base
	GroundProbeEpsilon float64 `yaml:"ground_probe_epsilon"` // slack added to the probe
	IdleSpeedThreshold float64 `yaml:"idle_speed_threshold"` // |vel.x| below this counts as idle
}

// RewardsConfig holds every shaping coefficient. Rates are per second and
// carry their sign (penalties negative); fixed rewards are applied as-is.
type RewardsConfig struct {
	ProgressReward      float64 `yaml:"progress_reward"`      // scales positive distance progress
	ProgressPenalty     float64 `yaml:"progress_penalty"`     // scales regression, smaller magnitude
	DirectionalReward   float64 `yaml:"directional_reward"`   // scales positive velocity-toward-goal
	DirectionalPenalty  float64 `yaml:"directional_penalty"`  // scales velocity away from goal
	TimePenaltyRate     float64 `yaml:"time_penalty_rate"`    // negative, applied every tick
	SurvivalRate        float64 `yaml:"survival_rate"`        // positive, applied every tick
	NoGoalPenaltyRate   float64 `yaml:"no_goal_penalty_rate"` // negative, while no goal collected yet
	IdlePenaltyRate     float64 `yaml:"idle_penalty_rate"`    // negative, while grounded and slow
	FallPenalty         float64 `yaml:"fall_penalty"`         // fixed, on dropping below the death height
	TimeoutPenalty      float64 `yaml:"timeout_penalty"`      // fixed, on exceeding the episode time limit
	GoalBase            float64 `yaml:"goal_base"`            // base goal capture reward
	GoalSequentialBonus float64 `yaml:"goal_sequential_bonus"` // added per goal already collected
	GoalDecayRate       float64 `yaml:"goal_decay_rate"`      // exponential decay of capture reward over time
	LandingReward       float64 `yaml:"landing_reward"`       // fixed, on an airborne-to-grounded transition
}

// EpisodeConfig holds episode lifecycle parameters.
type EpisodeConfig struct {
	MaxTime        float64 `yaml:"max_time"`        // seconds before timeout
	FallOffset     float64 `yaml:"fall_offset"`     // added to spawn height for the death threshold, negative
	PickupRadius   float64 `yaml:"pickup_radius"`   // goal capture distance
	TestingMode    bool    `yaml:"testing_mode"`    // fixed authored positions, no jitter or alternation
	AlternateSides bool    `yaml:"alternate_sides"` // flip start side every episode instead of random choice
}

// PlacementConfig holds spawn jitter half-ranges. Jitter is uniform in
// [-range, +range] around the chosen anchor, independently per axis.
type PlacementConfig struct {
	AgentJitterX float64 `yaml:"agent_jitter_x"`
	AgentJitterY float64 `yaml:"agent_jitter_y"`
	GoalJitterX  float64 `yaml:"goal_jitter_x"`
	GoalJitterY  float64 `yaml:"goal_jitter_y"`
}

// PerceptionConfig holds ray sensor parameters.
type PerceptionConfig struct {
	RayLength      float64  `yaml:"ray_length"`      // max range of the eight direction rays
	ObstacleLayers []string `yaml:"obstacle_layers"` // layer names the direction rays collide with
	GroundLayers   []string `yaml:"ground_layers"`   // layer names the ground probe collides with
}

// LevelConfig holds platform layout generation parameters.
type LevelConfig struct {
	Width             float64 `yaml:"width"`               // world width in units
	MaxHeight         float64 `yaml:"max_height"`          // ceiling for platform placement
	PlatformCount     int     `yaml:"platform_count"`      // floating platforms above the ground
	PlatformMinWidth  float64 `yaml:"platform_min_width"`
	PlatformMaxWidth  float64 `yaml:"platform_max_width"`
	PlatformThickness float64 `yaml:"platform_thickness"`
	NoiseScale        float64 `yaml:"noise_scale"`   // base frequency of the layout noise
	NoiseOctaves      int     `yaml:"noise_octaves"` // FBM octaves
	PitThreshold      float64 `yaml:"pit_threshold"` // noise above this carves a pit in the ground
	AnchorMargin      float64 `yaml:"anchor_margin"` // distance from the level edge to the anchors
	Seed              int64   `yaml:"seed"`          // layout seed; 0 derives from the run seed
}

// TelemetryConfig holds rollout output parameters.
type TelemetryConfig struct {
	WindowSeconds float64 `yaml:"window_seconds"` // aggregation window for windows.csv
	OutputDir     string  `yaml:"output_dir"`     // run directories are created under this; empty disables output
}

// MonitorConfig holds results dashboard server parameters.
type MonitorConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	StaticDir       string `yaml:"static_dir"`        // optional directory of dashboard assets
	MetricsLimitCap int    `yaml:"metrics_limit_cap"` // hard cap on rows returned by the metrics endpoint
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ObstacleMask    uint16  // resolved Perception.ObstacleLayers
	GroundMask      uint16  // resolved Perception.GroundLayers
	MaxEpisodeTicks int     // Episode.MaxTime / Physics.DT, rounded up
	GroundProbeLen  float64 // Agent.GroundProbeExtra + Agent.GroundProbeEpsilon
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if
// path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used. The result is validated;
// a nonsensical value is an error here, never a per-tick concern.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.computeDerived(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() error {
	obstacle, err := physics.MaskFromNames(c.Perception.ObstacleLayers)
	if err != nil {
		return fmt.Errorf("perception.obstacle_layers: %w", err)
	}
	ground, err := physics.MaskFromNames(c.Perception.GroundLayers)
	if err != nil {
		return fmt.Errorf("perception.ground_layers: %w", err)
	}
	c.Derived.ObstacleMask = obstacle
	c.Derived.GroundMask = ground

	if c.Physics.DT > 0 {
		c.Derived.MaxEpisodeTicks = int(c.Episode.MaxTime/c.Physics.DT + 0.5)
	}
	c.Derived.GroundProbeLen = c.Agent.GroundProbeExtra + c.Agent.GroundProbeEpsilon
	return nil
}

// Validate rejects configuration that would produce a nonsensical physical
// situation.
func (c *Config) Validate() error {
	checks := []struct {
		ok  bool
		msg string
	}{
		{c.Physics.DT > 0, "physics.dt must be positive"},
		{c.Physics.Gravity < 0, "physics.gravity must be negative"},
		{c.Physics.VelocityIterations >= 1, "physics.velocity_iterations must be at least 1"},
		{c.Physics.PositionIterations >= 1, "physics.position_iterations must be at least 1"},
		{c.Physics.AgentHalfWidth > 0, "physics.agent_half_width must be positive"},
		{c.Physics.AgentHalfHeight > 0, "physics.agent_half_height must be positive"},
		{c.Agent.MoveSpeed > 0, "agent.move_speed must be positive"},
		{c.Agent.JumpImpulse >= 0, "agent.jump_impulse must not be negative"},
		{c.Agent.GroundProbeExtra >= 0, "agent.ground_probe_extra must not be negative"},
		{c.Agent.GroundProbeEpsilon > 0, "agent.ground_probe_epsilon must be positive"},
		{c.Agent.IdleSpeedThreshold >= 0, "agent.idle_speed_threshold must not be negative"},
		{c.Rewards.GoalDecayRate >= 0, "rewards.goal_decay_rate must not be negative"},
		{c.Episode.MaxTime > 0, "episode.max_time must be positive"},
		{c.Episode.PickupRadius > 0, "episode.pickup_radius must be positive"},
		{c.Placement.AgentJitterX >= 0, "placement.agent_jitter_x must not be negative"},
		{c.Placement.AgentJitterY >= 0, "placement.agent_jitter_y must not be negative"},
		{c.Placement.GoalJitterX >= 0, "placement.goal_jitter_x must not be negative"},
		{c.Placement.GoalJitterY >= 0, "placement.goal_jitter_y must not be negative"},
		{c.Perception.RayLength > 0, "perception.ray_length must be positive"},
		{c.Level.Width > 0, "level.width must be positive"},
		{c.Level.PlatformCount >= 0, "level.platform_count must not be negative"},
		{c.Level.PlatformMinWidth > 0, "level.platform_min_width must be positive"},
		{c.Level.PlatformMaxWidth >= c.Level.PlatformMinWidth, "level.platform_max_width must be at least platform_min_width"},
		{c.Level.PlatformThickness > 0, "level.platform_thickness must be positive"},
		{c.Level.NoiseScale > 0, "level.noise_scale must be positive"},
		{c.Level.NoiseOctaves >= 1, "level.noise_octaves must be at least 1"},
		{c.Level.AnchorMargin > 0, "level.anchor_margin must be positive"},
		{c.Level.AnchorMargin*2 < c.Level.Width, "level.anchor_margin must leave room between the anchors"},
		{c.Telemetry.WindowSeconds > 0, "telemetry.window_seconds must be positive"},
		{c.Monitor.MetricsLimitCap >= 1, "monitor.metrics_limit_cap must be at least 1"},
	}
	for _, check := range checks {
		if !check.ok {
			return fmt.Errorf("config: %s", check.msg)
		}
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
