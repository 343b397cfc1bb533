package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/codec"
	"go.uber.org/zap"
)

var subscribeCmd = &cobra.Command{
	Use:   "subscribe <host> <name> [json-params...]",
	Short: "Subscribe and print document changes",
	Long: `Subscribe to a publication and print each document change as a line of
"collection/id" followed by the message as JSON.

--collection limits output to topics matching an MQTT-style pattern.
The subscription runs until interrupted or the connection closes.

Examples:
  ddpc subscribe localhost:3000 tasks
  ddpc subscribe localhost:3000 tasks.byOwner '"ada"' --collection 'tasks/#'
  ddpc subscribe localhost:3000 tasks --jq '.fields.title'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSubscribe,
}

var collectionPattern string

func init() {
	rootCmd.AddCommand(subscribeCmd)

	subscribeCmd.Flags().StringVarP(&collectionPattern, "collection", "c", "#", "collection/id pattern to print")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	out, err := newPrinter(cmd.OutOrStdout(), jqQuery)
	if err != nil {
		return err
	}

	target, name := args[0], args[1]
	params := parseParams(args[2:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// a dropped connection ends the command
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	c, err := newClientBuilder(target, logger).
		WithMonitor(&cancelOnDisconnect{cancel: cancel}).
		Build()
	if err != nil {
		return err
	}

	return c.Run(ctx, func(ctx context.Context, c *client.Client) error {
		unregister := c.OnData(collectionPattern, func(ctx context.Context, event client.DataEvent) error {
			p, err := codec.Server().Encode(event.Message)
			if err != nil {
				return err
			}
			return out.Print(client.Topic(event.Collection, event.ID), p.Map())
		})
		defer unregister()

		id, err := c.Subscribe(ctx, name, params...)
		if err != nil {
			return err
		}
		logger.Info("Subscribed", zap.String("name", name), zap.String("id", id))

		<-ctx.Done()

		if cause := context.Cause(ctx); cause != nil && cause != ctx.Err() {
			return cause
		}

		logger.Debug("Interrupted, unsubscribing")
		if err := c.Unsubscribe(context.Background(), id); err != nil {
			logger.Warn("Unsubscribe failed", zap.Error(err))
		}
		return nil
	})
}

type cancelOnDisconnect struct {
	cancel context.CancelCauseFunc
}

func (m *cancelOnDisconnect) OnConnect(ctx context.Context, c *client.Client) {}

func (m *cancelOnDisconnect) OnDisconnect(ctx context.Context, c *client.Client, err error) {
	if err == nil {
		err = client.ErrNotConnected
	}
	m.cancel(err)
}

func (m *cancelOnDisconnect) OnFailed(ctx context.Context, c *client.Client, err error) {
	m.cancel(err)
}
