package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/chimeradata/chimera/pkg/engine"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Chimera engine service",
	Long: `Runs every component: the task worker, the cron scheduler, the REST
API, and the metrics and health endpoints.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	config, err := loadConfig(cfgFile)
	if err != nil {
		return err
	}

	log, err := newLogger(config.Logging)
	if err != nil {
		return err
	}

	log.Info("Configuration loaded")

	app, err := engine.NewService(log, config)
	if err != nil {
		return err
	}

	if err := app.Start(); err != nil {
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	return app.Stop()
}
