// Package config builds DDP clients, subscriptions and scheduled calls from
// HCL configuration files.
package config

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/hashicorp/hcl/v2"
	"github.com/robfig/cron/v3"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/config/functions"
	"github.com/tsarna/ddp/pkg/ddp/o11y"
	"github.com/tsarna/ddp/pkg/ddp/transport"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
)

// TransportFactory supplies the transport for a server block. It is used
// instead of dialing a WebSocket when set.
type TransportFactory func(server string) transport.Transport

type ConfigBuilder struct {
	logger           *zap.Logger
	sources          []any
	blockHandlers    map[string]BlockHandler
	metricsProvider  o11y.MetricsProvider
	tracingProvider  o11y.TracingProvider
	transportFactory TransportFactory
}

// Startable is a component started by Config.Start, in block order.
type Startable interface {
	Start(ctx context.Context) error
}

// Stoppable is a component stopped by Config.Stop, in reverse block order.
type Stoppable interface {
	Stop() error
}

type Config struct {
	Logger    *zap.Logger
	Functions map[string]function.Function
	Constants map[string]cty.Value
	evalCtx   *hcl.EvalContext

	Clients       map[string]*client.Client
	CtyServerMap  map[string]cty.Value
	Subscriptions map[string]*Subscription
	Crons         map[string]*cron.Cron
	SigActions    *SignalActionHandler

	Startables []Startable
	Stoppables []Stoppable

	metricsProvider  o11y.MetricsProvider
	tracingProvider  o11y.TracingProvider
	transportFactory TransportFactory
}

func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{
		logger:        zap.NewNop(),
		sources:       make([]any, 0),
		blockHandlers: GetBlockHandlers(),
	}
}

func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	if logger != nil {
		cb.logger = logger
	}
	return cb
}

// WithSources adds configuration sources: file or directory paths, HCL
// source as []byte, or an fs.FS.
func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

// WithMetricsProvider is passed to every client the configuration builds.
func (cb *ConfigBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *ConfigBuilder {
	cb.metricsProvider = provider
	return cb
}

// WithTracingProvider is passed to every client the configuration builds.
func (cb *ConfigBuilder) WithTracingProvider(provider o11y.TracingProvider) *ConfigBuilder {
	cb.tracingProvider = provider
	return cb
}

// WithTransportFactory replaces the WebSocket transport of every server.
func (cb *ConfigBuilder) WithTransportFactory(factory TransportFactory) *ConfigBuilder {
	cb.transportFactory = factory
	return cb
}

func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	config := &Config{
		Logger:           cb.logger,
		Constants:        make(map[string]cty.Value),
		Clients:          make(map[string]*client.Client),
		CtyServerMap:     make(map[string]cty.Value),
		Subscriptions:    make(map[string]*Subscription),
		Crons:            make(map[string]*cron.Cron),
		metricsProvider:  cb.metricsProvider,
		tracingProvider:  cb.tracingProvider,
		transportFactory: cb.transportFactory,
	}
	config.evalCtx = &hcl.EvalContext{Variables: config.Constants}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	userFuncs, bodies, addDiags := functions.ExtractUserFunctions(bodies, func() *hcl.EvalContext {
		return config.evalCtx
	})
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	config.Functions, addDiags = config.GetFunctions(userFuncs)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}
	config.evalCtx.Functions = config.Functions

	blocks, addDiags := cb.GetBlocks(bodies)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	config.Constants["env"] = GetEnvObject()
	config.Constants["server"] = cty.EmptyObjectVal

	for _, block := range blocks {
		if handler, ok := cb.blockHandlers[block.Type]; ok {
			diags = diags.Extend(handler.Preprocess(block))
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	for _, handler := range cb.blockHandlers {
		diags = diags.Extend(handler.FinishPreprocessing(config))
	}
	if diags.HasErrors() {
		return nil, diags
	}

	blocks, addDiags = cb.SortBlocksByDependencies(blocks)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return nil, diags
	}

	for _, block := range blocks {
		if handler, ok := cb.blockHandlers[block.Type]; ok {
			diags = diags.Extend(handler.Process(config, block))
		}
	}
	if diags.HasErrors() {
		return nil, diags
	}

	config.Logger.Info("Config built successfully",
		zap.Int("servers", len(config.Clients)),
		zap.Int("subscriptions", len(config.Subscriptions)),
		zap.Int("crons", len(config.Crons)))

	return config, diags
}

// GetFunctions returns the standard functions plus call and the log
// functions, with user functions added. User functions may not replace
// built-in ones.
func (c *Config) GetFunctions(userFuncs map[string]function.Function) (map[string]function.Function, hcl.Diagnostics) {
	funcs := functions.GetStandardLibraryFunctions()
	maps.Copy(funcs, functions.GetLogFunctions(c.Logger))
	funcs["call"] = CallFunction(c)

	var diags hcl.Diagnostics
	for name, fn := range userFuncs {
		if _, exists := funcs[name]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate function",
				Detail:   fmt.Sprintf("Function %s is reserved and can't be overridden", name),
			})
			continue
		}
		funcs[name] = fn
	}

	return funcs, diags
}

// Start starts every component in block order: servers connect before the
// subscriptions and crons that use them. It stops at the first failure.
func (c *Config) Start(ctx context.Context) error {
	for _, startable := range c.Startables {
		if err := startable.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops every component in reverse block order.
func (c *Config) Stop() error {
	var errs []error
	for i := len(c.Stoppables) - 1; i >= 0; i-- {
		if err := c.Stoppables[i].Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Config) addLifecycle(component any) {
	if startable, ok := component.(Startable); ok {
		c.Startables = append(c.Startables, startable)
	}
	if stoppable, ok := component.(Stoppable); ok {
		c.Stoppables = append(c.Stoppables, stoppable)
	}
}
