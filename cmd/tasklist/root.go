package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tasklist/internal/config"
	"github.com/JakeFAU/tasklist/internal/logging"
	"github.com/JakeFAU/tasklist/internal/telemetry"
)

// runtime holds what every subcommand needs once configuration is loaded.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	tracing *telemetry.Handle
}

// newRootCmd creates the root command. Running it without a subcommand serves HTTP.
func newRootCmd() *cobra.Command {
	var cfgFile string
	rt := &runtime{}

	cmd := &cobra.Command{
		Use:   "tasklist",
		Short: "A minimal task list web front end backed by Firestore.",
		Long: `tasklist serves an HTML task list with create and delete forms.
Tasks are stored in Firestore by default; requests are logged in the Cloud
Logging JSON format and traced to Cloud Trace.`,
		SilenceUsage: true,

		// Configuration, logging and tracing start before any subcommand builds clients.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return rt.init(cmd.Context(), cfgFile)
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	serve := newServeCmd(rt)
	cmd.RunE = serve.RunE
	cmd.AddCommand(serve, newExportCmd(rt))
	return cmd
}

func (rt *runtime) init(ctx context.Context, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	rt.cfg = cfg
	rt.logger = logger
	rt.tracing = telemetry.Start(ctx, cfg, logger)
	return nil
}
