package cmd

import (
	"context"

	"github.com/chimeradata/chimera/pkg/engine"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var alignCmd = &cobra.Command{
	Use:   "align",
	Short: "Run one alignment pass and exit",
	Long: `Loads the latest raw payload of every registered entity, aligns them
onto the master grid and persists the aligned dataset.`,
	RunE: runAlign,
}

func init() {
	rootCmd.AddCommand(alignCmd)
}

func runAlign(cmd *cobra.Command, _ []string) error {
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

	result, err := app.Pipeline().RunAlignment(context.Background())
	if err != nil {
		return err
	}

	log.WithField("snapshot_key", result.SnapshotKey).Info("Alignment complete")

	return nil
}
