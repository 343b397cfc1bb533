package config

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/tsarna/ddp/pkg/ddp/config/platform"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

type SignalsDefinition struct {
	SigHup   hcl.Expression `hcl:"SIGHUP,optional"`
	SigInfo  hcl.Expression `hcl:"SIGINFO,optional"`
	SigUsr1  hcl.Expression `hcl:"SIGUSR1,optional"`
	SigUsr2  hcl.Expression `hcl:"SIGUSR2,optional"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type SignalsBlockHandler struct {
	BlockHandlerBase
}

func NewSignalsBlockHandler() *SignalsBlockHandler {
	return &SignalsBlockHandler{}
}

func (h *SignalsBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	signalsDef := SignalsDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &signalsDef)
	if diags.HasErrors() {
		return diags
	}

	diags = diags.Extend(config.SetSignalAction("SIGHUP", signalsDef.SigHup))
	diags = diags.Extend(config.SetSignalAction("SIGINFO", signalsDef.SigInfo))
	diags = diags.Extend(config.SetSignalAction("SIGUSR1", signalsDef.SigUsr1))
	diags = diags.Extend(config.SetSignalAction("SIGUSR2", signalsDef.SigUsr2))

	return diags
}

// SetSignalAction evaluates action whenever the process receives the named
// signal, once the configuration is started.
func (config *Config) SetSignalAction(sigName string, action hcl.Expression) hcl.Diagnostics {
	if !IsExpressionProvided(action) {
		return nil
	}

	signalNum := platform.SignalNum(sigName)
	if signalNum == 0 {
		return hcl.Diagnostics{&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid signal name",
			Detail:   fmt.Sprintf("Signal %s is not supported on this platform", sigName),
			Subject:  action.Range().Ptr(),
		}}
	}

	if config.SigActions == nil {
		config.SigActions = NewSignalActionHandler(config.Logger)
		config.addLifecycle(config.SigActions)
	}

	if _, ok := config.SigActions.actions[signalNum]; ok {
		return hcl.Diagnostics{&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Signal already defined",
			Detail:   fmt.Sprintf("Signal %s already defined", sigName),
			Subject:  action.Range().Ptr(),
		}}
	}

	config.SigActions.actions[signalNum] = action
	config.SigActions.evalCtxs[signalNum] = NewContext().
		WithStringAttribute("signal", sigName).
		WithAttribute("signal_num", cty.NumberIntVal(int64(signalNum))).
		BuildEvalContext(config.evalCtx)

	return nil
}

// SignalActionHandler runs signal actions between Start and Stop.
type SignalActionHandler struct {
	logger   *zap.Logger
	actions  map[platform.Signal]hcl.Expression
	evalCtxs map[platform.Signal]*hcl.EvalContext
	sigChan  chan os.Signal
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewSignalActionHandler(logger *zap.Logger) *SignalActionHandler {
	return &SignalActionHandler{
		logger:   logger,
		actions:  make(map[platform.Signal]hcl.Expression),
		evalCtxs: make(map[platform.Signal]*hcl.EvalContext),
		sigChan:  make(chan os.Signal, 16),
		stop:     make(chan struct{}),
	}
}

func (sa *SignalActionHandler) Start(ctx context.Context) error {
	for sig := range sa.actions {
		signal.Notify(sa.sigChan, sig)
	}

	sa.wg.Add(1)
	go func() {
		defer sa.wg.Done()
		sa.logger.Debug("Signal notification goroutine started")

		for {
			select {
			case sig := <-sa.sigChan:
				num, ok := platform.FromOsSignal(sig)
				if !ok {
					sa.logger.Warn("Ignoring unknown signal", zap.Stringer("signal", sig))
					continue
				}
				sa.wg.Add(1)
				go func() {
					defer sa.wg.Done()
					sa.run(num)
				}()
			case <-sa.stop:
				return
			}
		}
	}()

	return nil
}

// Stop stops listening and waits for running actions.
func (sa *SignalActionHandler) Stop() error {
	signal.Stop(sa.sigChan)
	close(sa.stop)
	sa.wg.Wait()
	return nil
}

func (sa *SignalActionHandler) run(sig platform.Signal) {
	logger := sa.logger.With(zap.String("signal", platform.SignalName(sig)))

	sigExpr, ok := sa.actions[sig]
	if !ok {
		logger.Error("Signal action not found")
		return
	}

	logger.Debug("Signal received")

	result, diags := sigExpr.Value(sa.evalCtxs[sig])
	if diags.HasErrors() {
		logger.Error("Error executing signal action", zap.Error(diags))
		return
	}

	logger.Debug("Signal action executed", zap.Any("result", result))
}
