package main

import (
	"github.com/spf13/cobra"

	"github.com/JakeFAU/tasklist/internal/server"
)

func newServeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the task list over HTTP until SIGINT or SIGTERM.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := server.Build(cmd.Context(), rt.cfg, rt.logger, rt.tracing)
			if err != nil {
				_ = rt.tracing.Shutdown(cmd.Context())
				return err
			}
			return app.Run(cmd.Context())
		},
	}
}
