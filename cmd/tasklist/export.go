package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/tasklist/internal/clock/system"
	"github.com/JakeFAU/tasklist/internal/export"
	"github.com/JakeFAU/tasklist/internal/server"
)

func newExportCmd(rt *runtime) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of every task to GCS or a local directory.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("prefix") {
				rt.cfg.Export.Prefix = prefix
			}
			uri, err := runExport(cmd.Context(), rt)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), uri)
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "object prefix (overrides export.prefix)")
	return cmd
}

func runExport(ctx context.Context, rt *runtime) (string, error) {
	defer func() {
		_ = rt.tracing.Shutdown(context.WithoutCancel(ctx))
		_ = rt.logger.Sync()
	}()

	store, err := server.OpenStore(ctx, rt.cfg, rt.logger, rt.tracing.GRPCClientOptions())
	if err != nil {
		return "", err
	}
	defer func() {
		if err := store.Close(); err != nil {
			rt.logger.Warn("task store close failed", zap.Error(err))
		}
	}()

	blobs, closeBlobs, err := server.OpenBlobStore(ctx, rt.cfg, rt.logger, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := closeBlobs(); err != nil {
			rt.logger.Warn("blob store close failed", zap.Error(err))
		}
	}()

	exp, err := export.New(store, blobs, system.New(), rt.cfg.Export.Prefix, rt.logger)
	if err != nil {
		return "", err
	}
	uri, err := exp.Run(ctx)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	return uri, nil
}
