package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/config"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:   "run [config-files-or-directories...]",
	Short: "Run an HCL configuration",
	Long: `Load HCL configuration files or directories, connect the servers they
declare, start their subscriptions and scheduled calls, and run until
interrupted.

Directories are searched recursively for *` + config.FileSuffix + ` files.

Examples:
  ddpc run tasks.hcl
  ddpc run ./configs/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConfig,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Loading configuration", zap.Strings("config-paths", args))

	builder := config.NewConfig().
		WithLogger(logger).
		WithSources(stringSliceToAnySlice(args)...)
	if provider := otelProvider(); provider != nil {
		builder.WithMetricsProvider(provider).WithTracingProvider(provider)
	}

	cfg, diags := builder.Build()
	if diags.HasErrors() {
		logger.Error("Failed to build config", zap.Error(diags))
		return diags
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startErr := cfg.Start(ctx)
	if startErr == nil {
		logger.Info("Running (Press Ctrl+C to exit)")
		<-ctx.Done()
		logger.Debug("Signal received, stopping")
	}

	if err := cfg.Stop(); err != nil {
		logger.Warn("Error during shutdown", zap.Error(err))
	}
	return startErr
}

// Helper to convert []string to []any
func stringSliceToAnySlice(strs []string) []any {
	anys := make([]any, len(strs))
	for i, s := range strs {
		anys[i] = s
	}
	return anys
}
