package cmd

import (
	"context"

	"github.com/chimeradata/chimera/pkg/engine"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var ingestCmd = &cobra.Command{
	Use:   "ingest [category]",
	Short: "Fetch raw datasets and exit",
	Long: `Fetches every configured upstream endpoint, stores payloads in the
object store and records registry metadata. With a category argument only
that source category is fetched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	category := ""
	if len(args) == 1 {
		category = args[0]
	}

	summary, err := app.Ingestor().Run(context.Background(), category)
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"fetched": summary.Fetched,
		"failed":  summary.Failed,
	}).Info("Ingestion complete")

	return nil
}
