package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type CronDefinition struct {
	Name     string             `hcl:",label"`
	Timezone string             `hcl:"timezone,optional"`
	At       []CronAtDefinition `hcl:"at,block"`
	Disabled bool               `hcl:"disabled,optional"`
}

type CronAtDefinition struct {
	Schedule string         `hcl:"schedule,label"`
	Name     string         `hcl:"name,label"`
	Action   hcl.Expression `hcl:"action"`
	DefRange hcl.Range      `hcl:",def_range"`
}

type CronBlockHandler struct {
	BlockHandlerBase
}

func NewCronBlockHandler() *CronBlockHandler {
	return &CronBlockHandler{}
}

func (h *CronBlockHandler) GetBlockDependencyId(block *hcl.Block) (string, hcl.Diagnostics) {
	return "cron." + block.Labels[0], nil
}

func (h *CronBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	cronDef := CronDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &cronDef)
	if diags.HasErrors() {
		return diags
	}
	cronDef.Name = block.Labels[0]

	if cronDef.Disabled {
		return nil
	}

	cronObj, addDiags := h.BuildCron(config, block, &cronDef)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return diags
	}

	config.Crons[cronDef.Name] = cronObj
	config.addLifecycle(&cronLifecycle{name: cronDef.Name, cron: cronObj, logger: config.Logger})

	return diags
}

func (h *CronBlockHandler) BuildCron(config *Config, block *hcl.Block, cronDef *CronDefinition) (*cron.Cron, hcl.Diagnostics) {
	cronParser := cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)

	if cronDef.Timezone == "" {
		cronDef.Timezone = "Local"
	}

	var diags hcl.Diagnostics

	location, err := time.LoadLocation(cronDef.Timezone)
	if err != nil {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid timezone",
			Detail:   fmt.Sprintf("Invalid timezone: %s", cronDef.Timezone),
			Subject:  &block.DefRange,
		})
	}

	cronObj := cron.New(
		cron.WithLogger(NewZapCronLogger(config.Logger)),
		cron.WithParser(cronParser),
		cron.WithLocation(location),
	)

	for _, atBlock := range cronDef.At {
		atAction := &AtAction{
			config:   config,
			action:   atBlock.Action,
			cronName: cronDef.Name,
			atName:   atBlock.Name,
		}

		if _, err := cronObj.AddJob(atBlock.Schedule, atAction); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid schedule",
				Detail:   fmt.Sprintf("Invalid schedule %q: %s", atBlock.Schedule, err),
				Subject:  &atBlock.DefRange,
			})
		}
	}

	return cronObj, diags
}

type cronLifecycle struct {
	name   string
	cron   *cron.Cron
	logger *zap.Logger
}

func (c *cronLifecycle) Start(_ context.Context) error {
	c.logger.Debug("Starting cron", zap.String("cron", c.name))
	c.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (c *cronLifecycle) Stop() error {
	<-c.cron.Stop().Done()
	return nil
}

type AtAction struct {
	config   *Config
	action   hcl.Expression
	cronName string
	atName   string
}

func (a *AtAction) Run() {
	a.config.Logger.Debug("Executing action", zap.String("cron", a.cronName), zap.String("at", a.atName))

	evalCtx := NewContext().
		WithStringAttribute("cron_name", a.cronName).
		WithStringAttribute("at_name", a.atName).
		BuildEvalContext(a.config.evalCtx)

	value, diags := a.action.Value(evalCtx)
	if diags.HasErrors() {
		a.config.Logger.Error("Error executing action",
			zap.String("cron", a.cronName),
			zap.String("at", a.atName),
			zap.Error(diags))
		return
	}

	a.config.Logger.Debug("Action executed", zap.String("cron", a.cronName), zap.String("at", a.atName), zap.Any("result", value))
}

// ZapCronLogger adapts a zap.Logger to implement the cron.Logger interface
type ZapCronLogger struct {
	logger *zap.Logger
}

func NewZapCronLogger(logger *zap.Logger) *ZapCronLogger {
	return &ZapCronLogger{logger: logger}
}

// Info logs cron's routine activity at debug level.
func (z *ZapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	z.logger.Debug(msg, keyValueFields(keysAndValues)...)
}

func (z *ZapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := append([]zap.Field{zap.Error(err)}, keyValueFields(keysAndValues)...)
	z.logger.Error(msg, fields...)
}

func keyValueFields(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i < len(keysAndValues)-1; i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		}
	}
	return fields
}
