package main

import (
	"fmt"
	"os"

	"github.com/ai-content-optimizer-go/internal/config"
	"github.com/ai-content-optimizer-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configPath string
	envFile    string

	cfg *config.Config
	log *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:           "optimizer",
	Short:         "AI content optimizer: SEO, readability and engagement suggestions for content",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// It's okay if .env doesn't exist
		_ = godotenv.Load(envFile)

		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err = logger.NewLogger(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "path to .env file")

	rootCmd.AddCommand(serveCmd, analyzeCmd, usageCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
