package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/forager/internal/grid"
	"github.com/cartridge/forager/internal/reward"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	g, err := cfg.Environment.Build()
	require.NoError(t, err)
	assert.Len(t, g.FoodStates(), 2)

	start, ok := g.StateAt(1, 1)
	require.True(t, ok)
	assert.False(t, g.IsBlocked(start))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero learning rate", func(c *Config) { c.Learning.LearningRate = 0 }},
		{"discount above one", func(c *Config) { c.Learning.DiscountFactor = 1.5 }},
		{"negative exploration", func(c *Config) { c.Learning.ExplorationRate = -0.1 }},
		{"inverted q bounds", func(c *Config) { c.Learning.MinQ, c.Learning.MaxQ = 5, -5 }},
		{"q bounds exclude zero", func(c *Config) { c.Learning.MinQ = 1 }},
		{"unknown attachment", func(c *Config) { c.Learning.FoodRewardOn = "nowhere" }},
		{"obstacle outside grid", func(c *Config) {
			c.Environment.Obstacles = append(c.Environment.Obstacles, grid.Rect{X: 18, Y: 18, Width: 5, Height: 5})
		}},
		{"start on wall", func(c *Config) { c.Environment.Start = grid.Point{X: 0, Y: 0} }},
		{"start outside grid", func(c *Config) { c.Environment.Start = grid.Point{X: 40, Y: 1} }},
		{"food on wall", func(c *Config) { c.Environment.Food = []grid.Point{{X: 0, Y: 5}} }},
		{"zero batch", func(c *Config) { c.Runner.BatchSize = 0 }},
		{"zero history", func(c *Config) { c.Runner.HistorySize = 0 }},
		{"zero health interval", func(c *Config) { c.Server.HealthInterval = 0 }},
		{"negative health interval", func(c *Config) { c.Server.HealthInterval = -time.Second }},
		{"zero shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = 0 }},
		{"negative stall", func(c *Config) { c.Server.StallAfter = -time.Second }},
		{"stall shorter than tick", func(c *Config) {
			c.Runner.TickInterval = time.Minute
			c.Server.StallAfter = 30 * time.Second
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forager.yaml")
	yaml := `
environment:
  width: 5
  height: 5
  obstacles:
    - {x: 1, y: 1, width: 1, height: 2}
  food:
    - {x: 2, y: 2}
  start: {x: 0, y: 0}
learning:
  learning_rate: 0.5
  discount_factor: 0.9
  exploration_rate: 0
runner:
  tick_interval: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("FORAGER_LEARNING_FOOD_REWARD", "5")
	t.Setenv("FORAGER_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Environment.Width)
	assert.Equal(t, []grid.Rect{{X: 1, Y: 1, Width: 1, Height: 2}}, cfg.Environment.Obstacles)
	assert.Equal(t, []grid.Point{{X: 2, Y: 2}}, cfg.Environment.Food)
	assert.Equal(t, grid.Point{}, cfg.Environment.Start)
	assert.Equal(t, 0.5, cfg.Learning.LearningRate)
	assert.Equal(t, 0.0, cfg.Learning.ExplorationRate)
	assert.Equal(t, 5.0, cfg.Learning.FoodReward)
	assert.Equal(t, -1.0, cfg.Learning.BaseReward, "untouched keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Runner.TickInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, Default().Learning, cfg.Learning)
	assert.Equal(t, 20, cfg.Environment.Width)
}

func TestRewardParams(t *testing.T) {
	l := Default().Learning
	l.FoodRewardOn = "origin"
	p := l.RewardParams()
	assert.Equal(t, reward.Params{Base: -1, Food: 2, On: reward.AttachOrigin}, p)
}
