package cmd

import (
	"io"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/ledgersync/backend/internal/config"
	"github.com/ledgersync/backend/internal/etl"
	"github.com/ledgersync/backend/internal/models"
	"github.com/ledgersync/backend/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "ledgersync",
	Short: "Financial data sync backend",
	Long: `ledgersync ingests invoices, payments and bank transactions from
configured sources (CSV exports or vendor APIs), reconciles them against
the canonical store and loads them idempotently.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		setupLogging()
	},
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		log.Fatal().Msg(err.Error())
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing ledgersync.yaml")
}

// setupLogging configures the global logger.
//
// Log format can be explicitly set. If it is not set, it defaults to human
// readable for development and JSON for release.
func setupLogging() {
	ginMode, ok := os.LookupEnv("GIN_MODE")
	if !ok {
		gin.SetMode("release")
	} else {
		gin.SetMode(ginMode)
	}

	logFormat, ok := os.LookupEnv("LOG_FORMAT")
	output := io.Writer(os.Stdout)
	if (!ok && gin.IsDebugging()) || (ok && logFormat == "human") {
		output = zerolog.ConsoleWriter{Out: os.Stdout}
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if gin.IsDebugging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(output).With().Timestamp().Logger()
}

// setup loads the configuration, connects the database and builds the
// orchestrator.
func setup() (*config.Config, *etl.Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, os.ModePerm); err != nil {
			return nil, nil, err
		}
	}

	if err := models.Connect(cfg.Database.Path); err != nil {
		return nil, nil, err
	}

	orchestrator := etl.New(store.New(models.DB), cfg.Sources, cfg.Sync)
	return cfg, orchestrator, nil
}
