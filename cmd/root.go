package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocrbot/internal/config"
	"ocrbot/internal/logger"
)

var version = "1.0.0"

var (
	cfg        *config.Config
	cfgErr     error
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ocrbot",
	Short: "ocrbot - a Telegram bot that extracts text from images",
	Long: `ocrbot reads text from images sent to a Telegram bot.

Each image is recognized locally with Google Cloud OCR. The user can accept
the result or escalate it once to a multimodal AI model, within a per-user
quota. Pending results expire after a configurable TTL.

Use "ocrbot serve" to run the bot; the other commands inspect and maintain
its flat-file stores.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("config") {
			return nil
		}
		cfg, cfgErr = config.Load(configPath)
		if cfgErr != nil {
			return nil
		}
		return logger.Setup(cfg.GetLoggerConfig())
	},
	SilenceUsage: true,
}

// Execute runs the CLI with the configuration loaded by main. A non-nil
// loadErr is reported by the commands that need a configuration.
func Execute(loaded *config.Config, loadErr error) {
	log := logger.WithComponent("cmd")
	cfg, cfgErr = loaded, loadErr

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

// requireConfig returns the active configuration or the reason it is missing.
func requireConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", cfgErr)
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv(config.EnvConfigPath),
		"YAML config file (env vars override it)")
}
