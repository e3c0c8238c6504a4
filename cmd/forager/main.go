package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cartridge/forager/internal/config"
)

var (
	v          = viper.New()
	cfg        *config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "forager",
	Short: "Tabular Q-learning grid-world forager",
	Long: `Forager runs a single Q-learning agent in a grid world with walls
and food. The agent learns, one tick at a time, to walk to food; eaten
food is moved to a random free cell.

Configuration comes from defaults, an optional YAML file (--config),
a .env file, FORAGER_* environment variables and flags, in increasing
order of priority.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	defaults := config.Default()
	flags := rootCmd.PersistentFlags()

	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.String("log-level", defaults.LogLevel, "Log level (debug, info, warn, error)")
	flags.Int64("seed", defaults.Runner.Seed, "Random seed (0 seeds from the clock)")

	// Learning overrides
	flags.Float64("learning-rate", defaults.Learning.LearningRate, "Learning rate alpha in (0, 1]")
	flags.Float64("discount", defaults.Learning.DiscountFactor, "Discount factor gamma in [0, 1]")
	flags.Float64("exploration", defaults.Learning.ExplorationRate, "Exploration rate epsilon in [0, 1]")
	flags.String("policy", defaults.Learning.Policy, "Action selection policy (epsilon-greedy, random)")
	flags.String("food-reward-on", defaults.Learning.FoodRewardOn, "Pay the food reward on the move into food (destination) or out of it (origin)")

	// Bind flags to viper so they override file and environment values
	for key, name := range map[string]string{
		"log_level":                 "log-level",
		"runner.seed":               "seed",
		"learning.learning_rate":    "learning-rate",
		"learning.discount_factor":  "discount",
		"learning.exploration_rate": "exploration",
		"learning.policy":           "policy",
		"learning.food_reward_on":   "food-reward-on",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(newRunCmd(), newServeCmd(), newChartCmd(), newLayoutCmd())
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, configPath)
	if err != nil {
		return err
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = loaded
	return nil
}

// newLogger builds the process logger at the configured level.
func newLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
