package cmd

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/otel"
	"go.uber.org/zap"
)

// Version is reported to OpenTelemetry as the instrumentation version.
var Version = "dev"

var (
	verbose     bool
	debug       bool
	logLevel    string
	secure      bool
	dialTimeout time.Duration
	callTimeout time.Duration
	jqQuery     string
	withOtel    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ddpc",
	Short: "DDP client",
	Long: `ddpc talks to servers that speak DDP, the Distributed Data Protocol
used by Meteor.

It can call a method, follow a subscription, or run an HCL configuration
that declares servers, subscriptions and scheduled calls.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&debug, "debug", "d", false, "debug output")
	flags.StringVarP(&logLevel, "log-level", "l", "warn", "log level (debug, info, warn, error)")
	flags.BoolVar(&secure, "secure", false, "connect with wss://")
	flags.DurationVar(&dialTimeout, "dial-timeout", 10*time.Second, "connection and handshake timeout")
	flags.DurationVar(&callTimeout, "timeout", 30*time.Second, "method call and subscription timeout, 0 for none")
	flags.StringVar(&jqQuery, "jq", "", "jq query applied to printed JSON")
	flags.BoolVar(&withOtel, "otel", false, "record metrics and spans with the global OpenTelemetry providers")
}

func setupLogger() (*zap.Logger, error) {
	level := logLevel

	if debug {
		level = "debug"
	} else if verbose {
		level = "info"
	}

	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn", "warning":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.Development = debug

	return config.Build()
}

func otelProvider() *otel.Provider {
	if !withOtel {
		return nil
	}
	return otel.NewProvider("ddpc", Version)
}

// newClientBuilder accepts either a host ("localhost:3000") or a full
// WebSocket URL.
func newClientBuilder(target string, logger *zap.Logger) *client.ClientBuilder {
	b := client.NewClient().
		WithLogger(logger).
		WithDialTimeout(dialTimeout).
		WithCallTimeout(callTimeout)

	if strings.Contains(target, "://") {
		b.WithURL(target)
	} else {
		b.WithHost(target).WithSecure(secure)
	}

	if provider := otelProvider(); provider != nil {
		b.WithMetricsProvider(provider).WithTracingProvider(provider)
	}

	return b
}
