package cmd

import (
	"fmt"

	"github.com/ledgersync/backend/internal/models"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync across all configured sources and exit",
	Long: `Runs the full pipeline once. The exit code is zero when at least one
source succeeded; a completely failed run exits non-zero.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, orchestrator, err := setup()
		if err != nil {
			return err
		}

		run, err := orchestrator.Run(cmd.Context())
		if err != nil {
			return err
		}

		if run.Status == models.RunFailed {
			return fmt.Errorf("sync run %s failed for all sources", run.ID)
		}

		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)
}
