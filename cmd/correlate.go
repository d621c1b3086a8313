package cmd

import (
	"context"

	"github.com/chimeradata/chimera/pkg/engine"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Run one correlation pass and exit",
	Long: `Loads the latest aligned dataset, searches instantaneous and lagged
correlations and persists the report.`,
	RunE: runCorrelate,
}

func init() {
	rootCmd.AddCommand(correlateCmd)
}

func runCorrelate(cmd *cobra.Command, _ []string) error {
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

	app, err := engine.NewService(log, config)
	if err != nil {
		return err
	}
	defer func() { _ = app.Stop() }()

	result, err := app.Pipeline().RunCorrelation(context.Background())
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"snapshot_key": result.SnapshotKey,
		"found":        result.Found,
	}).Info("Correlation complete")

	return nil
}
