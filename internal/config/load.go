package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variable overrides,
// e.g. FORAGER_LEARNING_EXPLORATION_RATE.
const EnvPrefix = "FORAGER"

// Load resolves the configuration from, in increasing priority: the
// defaults, the optional YAML file at path, a .env file and FORAGER_*
// environment variables, and whatever flags were bound on v.
func Load(v *viper.Viper, path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	// Decode into a zero value: mapstructure merges slices element-wise
	// into a non-nil destination instead of replacing them.
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can resolve it.
// The layout slices are only settable from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("environment.width", cfg.Environment.Width)
	v.SetDefault("environment.height", cfg.Environment.Height)
	v.SetDefault("environment.obstacles", cfg.Environment.Obstacles)
	v.SetDefault("environment.food", cfg.Environment.Food)
	v.SetDefault("environment.start.x", cfg.Environment.Start.X)
	v.SetDefault("environment.start.y", cfg.Environment.Start.Y)

	v.SetDefault("learning.learning_rate", cfg.Learning.LearningRate)
	v.SetDefault("learning.discount_factor", cfg.Learning.DiscountFactor)
	v.SetDefault("learning.exploration_rate", cfg.Learning.ExplorationRate)
	v.SetDefault("learning.base_reward", cfg.Learning.BaseReward)
	v.SetDefault("learning.food_reward", cfg.Learning.FoodReward)
	v.SetDefault("learning.min_q", cfg.Learning.MinQ)
	v.SetDefault("learning.max_q", cfg.Learning.MaxQ)
	v.SetDefault("learning.food_reward_on", cfg.Learning.FoodRewardOn)
	v.SetDefault("learning.policy", cfg.Learning.Policy)

	v.SetDefault("runner.run_id", cfg.Runner.RunID)
	v.SetDefault("runner.seed", cfg.Runner.Seed)
	v.SetDefault("runner.max_ticks", cfg.Runner.MaxTicks)
	v.SetDefault("runner.tick_interval", cfg.Runner.TickInterval)
	v.SetDefault("runner.batch_size", cfg.Runner.BatchSize)
	v.SetDefault("runner.flush_interval", cfg.Runner.FlushInterval)
	v.SetDefault("runner.history_size", cfg.Runner.HistorySize)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.grpc_addr", cfg.Server.GRPCAddr)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.health_interval", cfg.Server.HealthInterval)
	v.SetDefault("server.stall_after", cfg.Server.StallAfter)

	v.SetDefault("events.nats_url", cfg.Events.NATSURL)
	v.SetDefault("events.subject", cfg.Events.Subject)

	v.SetDefault("log_level", cfg.LogLevel)
}
