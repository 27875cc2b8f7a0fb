package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rustyeddy/pulse/config"
	"github.com/rustyeddy/pulse/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "A paper-trading execution desk for one symbol at a time",
	Long: `Pulse is a paper-trading execution engine.

It provides:
  - Risk-based position sizing from a stop and a dollar risk
  - Simulated fills with slippage, stops, targets and partial exits
  - A two-step arming latch and a kill switch
  - UT Bot trend signals with optional auto-execution
  - A persisted paper account and a trade journal
  - An HTTP and websocket API for a trading terminal`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var (
	cfgPath string
	envPath string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file (YAML or JSON); defaults when empty")
	rootCmd.PersistentFlags().StringVar(&envPath, "env", ".env", "dotenv file with PULSE_* overrides")
}

// loadConfig reads the config file (or defaults), applies the environment
// and validates the result.
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		if cfg, err = config.LoadFromFile(cfgPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := cfg.ApplyEnv(envPath); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	log, err := logging.New(cfg.Log.Level, cfg.Log.Encoding)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return log, nil
}
