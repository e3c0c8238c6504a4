package config

import (
	"fmt"
	"time"

	"github.com/cartridge/forager/internal/grid"
	"github.com/cartridge/forager/internal/policy"
	"github.com/cartridge/forager/internal/reward"
)

// Config holds all forager configuration
type Config struct {
	Environment EnvironmentConfig `mapstructure:"environment"`
	Learning    LearningConfig    `mapstructure:"learning"`
	Runner      RunnerConfig      `mapstructure:"runner"`
	Server      ServerConfig      `mapstructure:"server"`
	Events      EventsConfig      `mapstructure:"events"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// EnvironmentConfig describes the grid layout
type EnvironmentConfig struct {
	Width     int          `mapstructure:"width"`
	Height    int          `mapstructure:"height"`
	Obstacles []grid.Rect  `mapstructure:"obstacles"`
	Food      []grid.Point `mapstructure:"food"`
	Start     grid.Point   `mapstructure:"start"`
}

// LearningConfig holds the agent hyperparameters and reward values
type LearningConfig struct {
	LearningRate    float64 `mapstructure:"learning_rate"`
	DiscountFactor  float64 `mapstructure:"discount_factor"`
	ExplorationRate float64 `mapstructure:"exploration_rate"`
	BaseReward      float64 `mapstructure:"base_reward"`
	FoodReward      float64 `mapstructure:"food_reward"`
	MinQ            float64 `mapstructure:"min_q"`
	MaxQ            float64 `mapstructure:"max_q"`
	FoodRewardOn    string  `mapstructure:"food_reward_on"`
	Policy          string  `mapstructure:"policy"`
}

// RunnerConfig controls the driving loop
type RunnerConfig struct {
	RunID         string        `mapstructure:"run_id"`
	Seed          int64         `mapstructure:"seed"`
	MaxTicks      int           `mapstructure:"max_ticks"`
	TickInterval  time.Duration `mapstructure:"tick_interval"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	HistorySize   uint64        `mapstructure:"history_size"`
}

// ServerConfig holds HTTP and gRPC health settings
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	GRPCAddr        string        `mapstructure:"grpc_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	StallAfter      time.Duration `mapstructure:"stall_after"`
}

// EventsConfig holds NATS settings. An empty URL disables publishing.
type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// Default returns a config with the classic 20x20 foraging layout
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			Width:  20,
			Height: 20,
			Obstacles: []grid.Rect{
				// border
				{X: 0, Y: 0, Width: 20, Height: 1},
				{X: 0, Y: 0, Width: 1, Height: 20},
				{X: 19, Y: 0, Width: 1, Height: 20},
				{X: 0, Y: 19, Width: 20, Height: 1},
				// interior blocks, clipped to the border
				{X: 2, Y: 5, Width: 5, Height: 5},
				{X: 8, Y: 2, Width: 5, Height: 5},
				{X: 6, Y: 8, Width: 5, Height: 2},
				{X: 6, Y: 11, Width: 2, Height: 7},
				{X: 15, Y: 2, Width: 4, Height: 2},
				{X: 17, Y: 12, Width: 2, Height: 5},
			},
			Food:  []grid.Point{{X: 3, Y: 12}, {X: 16, Y: 8}},
			Start: grid.Point{X: 1, Y: 1},
		},
		Learning: LearningConfig{
			LearningRate:    0.8,
			DiscountFactor:  0.8,
			ExplorationRate: 0.3,
			BaseReward:      -1,
			FoodReward:      2,
			MinQ:            -10,
			MaxQ:            10,
			FoodRewardOn:    string(reward.AttachDestination),
			Policy:          policy.NameEpsilonGreedy,
		},
		Runner: RunnerConfig{
			RunID:         "",
			Seed:          1,
			MaxTicks:      -1, // unlimited
			TickInterval:  500 * time.Millisecond,
			BatchSize:     32,
			FlushInterval: 5 * time.Second,
			HistorySize:   10000,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			GRPCAddr:        "",
			ShutdownTimeout: 30 * time.Second,
			HealthInterval:  15 * time.Second,
			StallAfter:      time.Minute,
		},
		Events: EventsConfig{
			NATSURL: "",
			Subject: "forager",
		},
		LogLevel: "info",
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	l := c.Learning
	if l.LearningRate <= 0 || l.LearningRate > 1 {
		return fmt.Errorf("learning_rate must be in (0, 1] (got %.3f)", l.LearningRate)
	}
	if l.DiscountFactor < 0 || l.DiscountFactor > 1 {
		return fmt.Errorf("discount_factor must be in [0, 1] (got %.3f)", l.DiscountFactor)
	}
	if l.ExplorationRate < 0 || l.ExplorationRate > 1 {
		return fmt.Errorf("exploration_rate must be in [0, 1] (got %.3f)", l.ExplorationRate)
	}
	if l.MinQ >= l.MaxQ {
		return fmt.Errorf("min_q %.3f must be below max_q %.3f", l.MinQ, l.MaxQ)
	}
	if l.MinQ > 0 || l.MaxQ < 0 {
		return fmt.Errorf("q range [%.3f, %.3f] must contain zero", l.MinQ, l.MaxQ)
	}
	if _, err := reward.ParseAttachment(l.FoodRewardOn); err != nil {
		return err
	}
	if _, err := policy.New(l.Policy, l.ExplorationRate); err != nil {
		return err
	}
	if _, err := c.Environment.Build(); err != nil {
		return err
	}
	if c.Runner.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if c.Runner.TickInterval < 0 {
		return fmt.Errorf("tick_interval must not be negative")
	}
	if c.Runner.FlushInterval <= 0 {
		return fmt.Errorf("flush_interval must be positive")
	}
	if c.Runner.HistorySize == 0 {
		return fmt.Errorf("history_size must be positive")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}
	if c.Server.HealthInterval <= 0 {
		return fmt.Errorf("health_interval must be positive")
	}
	// A zero stall_after disables stall detection.
	if c.Server.StallAfter < 0 {
		return fmt.Errorf("stall_after must not be negative")
	}
	if c.Server.StallAfter > 0 && c.Server.StallAfter <= c.Runner.TickInterval {
		return fmt.Errorf("stall_after %s must exceed tick_interval %s", c.Server.StallAfter, c.Runner.TickInterval)
	}
	return nil
}

// Build constructs the grid described by the environment and checks
// that the start cell is usable.
func (e EnvironmentConfig) Build() (*grid.Map, error) {
	g, err := grid.New(e.Width, e.Height, e.Obstacles, e.Food)
	if err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	start, ok := g.StateAt(e.Start.X, e.Start.Y)
	if !ok {
		return nil, fmt.Errorf("environment: start (%d,%d): %w", e.Start.X, e.Start.Y, grid.ErrOutOfBounds)
	}
	if g.IsBlocked(start) {
		return nil, fmt.Errorf("environment: start (%d,%d) is blocked", e.Start.X, e.Start.Y)
	}
	return g, nil
}

// RewardParams converts the learning section into reward table params.
func (l LearningConfig) RewardParams() reward.Params {
	on, err := reward.ParseAttachment(l.FoodRewardOn)
	if err != nil {
		on = reward.AttachDestination
	}
	return reward.Params{Base: l.BaseReward, Food: l.FoodReward, On: on}
}
