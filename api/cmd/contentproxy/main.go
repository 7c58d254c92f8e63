package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"content-proxy/api/internal/config"
	"content-proxy/api/internal/logging"
)

var (
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "contentproxy",
	Short: "AI content, auth and payment functions",
	Long: `contentproxy runs the site's backend functions: AI text, image and video
generation through several providers, user accounts, YooKassa subscriptions and
the contact form.

Each function can run alone under AWS Lambda or all together behind one HTTP server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		if logger, err = logging.New(level, cfg.LogDevelopment); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(serveCmd, lambdaCmd, migrateCmd, sweepCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
