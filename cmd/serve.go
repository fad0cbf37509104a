package cmd

import (
	"github.com/ledgersync/backend/internal/router"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, orchestrator, err := setup()
		if err != nil {
			return err
		}

		r, err := router.Router(orchestrator)
		if err != nil {
			return err
		}

		return r.Run(cfg.Server.Address)
	},
}

func init() {
	RootCmd.AddCommand(serveCmd)
}
