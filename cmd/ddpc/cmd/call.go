package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"go.uber.org/zap"
)

var callCmd = &cobra.Command{
	Use:   "call <host> <method> [json-params...]",
	Short: "Call a method and print the result",
	Long: `Call a method on a DDP server and print its result as JSON.

Each parameter is parsed as JSON. Parameters that are not valid JSON are
sent as strings.

Examples:
  ddpc call localhost:3000 tasks.count
  ddpc call localhost:3000 tasks.add '{"title": "write docs"}' 3
  ddpc call wss://example.com/websocket status --jq .version`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	out, err := newPrinter(cmd.OutOrStdout(), jqQuery)
	if err != nil {
		return err
	}

	target, method := args[0], args[1]
	params := parseParams(args[2:])

	c, err := newClientBuilder(target, logger).Build()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return c.Run(ctx, func(ctx context.Context, c *client.Client) error {
		logger.Debug("Calling method", zap.String("method", method), zap.Int("params", len(params)))

		result, err := c.Call(ctx, method, params...)
		if err != nil {
			return err
		}
		return out.Print("", result)
	})
}
