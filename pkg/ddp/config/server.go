package config

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
)

type ServerDefinition struct {
	Name          string            `hcl:",label"`
	Host          *string           `hcl:"host,optional"`
	URL           *string           `hcl:"url,optional"`
	Secure        bool              `hcl:"secure,optional"`
	Version       *string           `hcl:"version,optional"`
	Support       []string          `hcl:"support,optional"`
	ResumeSession *string           `hcl:"resume_session,optional"`
	DialTimeout   hcl.Expression    `hcl:"dial_timeout,optional"`
	CallTimeout   hcl.Expression    `hcl:"call_timeout,optional"`
	RateLimit     *float64          `hcl:"rate_limit,optional"`
	Burst         *int              `hcl:"burst,optional"`
	Headers       map[string]string `hcl:"headers,optional"`
	Disabled      bool              `hcl:"disabled,optional"`
	DefRange      hcl.Range         `hcl:",def_range"`
}

type ServerBlockHandler struct {
	BlockHandlerBase
}

func NewServerBlockHandler() *ServerBlockHandler {
	return &ServerBlockHandler{}
}

func (h *ServerBlockHandler) GetBlockDependencyId(block *hcl.Block) (string, hcl.Diagnostics) {
	return "server." + block.Labels[0], nil
}

func (h *ServerBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	serverDef := ServerDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &serverDef)
	if diags.HasErrors() {
		return diags
	}
	serverDef.Name = block.Labels[0]

	if serverDef.Disabled {
		return nil
	}

	c, addDiags := h.BuildClient(config, &serverDef)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return diags
	}

	config.Clients[serverDef.Name] = c
	config.CtyServerMap[serverDef.Name] = NewServerCapsule(c)

	// Objects are immutable, so the server object is rebuilt for each server
	config.Constants["server"] = cty.ObjectVal(config.CtyServerMap)

	config.addLifecycle(&serverLifecycle{name: serverDef.Name, client: c, logger: config.Logger})

	return diags
}

func (h *ServerBlockHandler) BuildClient(config *Config, serverDef *ServerDefinition) (*client.Client, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	builder := client.NewClient().
		WithLogger(config.Logger.With(zap.String("server", serverDef.Name))).
		WithSecure(serverDef.Secure).
		WithMetricsProvider(config.metricsProvider).
		WithTracingProvider(config.tracingProvider)

	if serverDef.Host != nil {
		builder.WithHost(*serverDef.Host)
	}
	if serverDef.URL != nil {
		builder.WithURL(*serverDef.URL)
	}
	if serverDef.Version != nil {
		builder.WithVersion(*serverDef.Version)
	}
	if len(serverDef.Support) > 0 {
		builder.WithSupport(serverDef.Support...)
	}
	if serverDef.ResumeSession != nil {
		builder.WithResumeSession(*serverDef.ResumeSession)
	}
	if serverDef.RateLimit != nil {
		burst := 1
		if serverDef.Burst != nil {
			burst = *serverDef.Burst
		}
		builder.WithRateLimit(*serverDef.RateLimit, burst)
	}
	if len(serverDef.Headers) > 0 {
		headers := make(map[string][]string, len(serverDef.Headers))
		for key, value := range serverDef.Headers {
			headers[key] = []string{value}
		}
		builder.WithHeaders(headers)
	}

	if IsExpressionProvided(serverDef.DialTimeout) {
		timeout, addDiags := config.ParseDuration(serverDef.DialTimeout)
		diags = diags.Extend(addDiags)
		builder.WithDialTimeout(timeout)
	}
	if IsExpressionProvided(serverDef.CallTimeout) {
		timeout, addDiags := config.ParseDuration(serverDef.CallTimeout)
		diags = diags.Extend(addDiags)
		builder.WithCallTimeout(timeout)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	if config.transportFactory != nil {
		builder.WithTransport(config.transportFactory(serverDef.Name))
	}

	c, err := builder.Build()
	if err != nil {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Failed to build DDP client",
			Detail:   err.Error(),
			Subject:  &serverDef.DefRange,
		})
	}

	return c, diags
}

type serverLifecycle struct {
	name   string
	client *client.Client
	logger *zap.Logger
}

func (s *serverLifecycle) Start(ctx context.Context) error {
	if err := s.client.Connect(ctx); err != nil {
		return fmt.Errorf("server %s: %w", s.name, err)
	}
	return nil
}

func (s *serverLifecycle) Stop() error {
	s.logger.Debug("Closing server connection", zap.String("server", s.name))
	return s.client.Close()
}

// ServerCapsuleType is a cty capsule type for wrapping Client instances
var ServerCapsuleType = cty.CapsuleWithOps("server", reflect.TypeOf((*client.Client)(nil)).Elem(), &cty.CapsuleOps{
	GoString: func(val interface{}) string {
		return fmt.Sprintf("server(%p)", val)
	},
	TypeGoString: func(_ reflect.Type) string {
		return "server"
	},
})

// NewServerCapsule creates a new cty capsule value wrapping a Client
func NewServerCapsule(c *client.Client) cty.Value {
	return cty.CapsuleVal(ServerCapsuleType, c)
}

// GetClientFromCapsule extracts a Client from a cty capsule value
func GetClientFromCapsule(val cty.Value) (*client.Client, error) {
	if val.Type() != ServerCapsuleType {
		return nil, fmt.Errorf("expected server, got %s", val.Type().FriendlyName())
	}
	return val.EncapsulatedValue().(*client.Client), nil
}

func GetClientFromExpression(config *Config, expr hcl.Expression) (*client.Client, hcl.Diagnostics) {
	val, diags := expr.Value(config.evalCtx)
	if diags.HasErrors() {
		return nil, diags
	}

	c, err := GetClientFromCapsule(val)
	if err != nil {
		return nil, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid server reference",
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		})
	}
	return c, diags
}

// ParamsFromValue converts an HCL list or tuple into method or subscription
// params.
func ParamsFromValue(val cty.Value) ([]any, error) {
	if val.IsNull() {
		return []any{}, nil
	}
	if !val.CanIterateElements() || !(val.Type().IsListType() || val.Type().IsTupleType()) {
		return nil, fmt.Errorf("params must be a list, got %s", val.Type().FriendlyName())
	}

	params := make([]any, 0, val.LengthInt())
	for it := val.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		param, err := go2cty2go.CtyToAny(elem)
		if err != nil {
			return nil, err
		}
		params = append(params, param)
	}
	return params, nil
}

// resultToCty converts a method result for use in expressions.
func resultToCty(result any) (cty.Value, error) {
	if result == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	return go2cty2go.AnyToCty(result)
}

// CallFunction returns the call(server, method, params...) function. It
// invokes a method and returns its result, or fails the expression with
// the method error.
func CallFunction(config *Config) function.Function {
	return function.New(&function.Spec{
		Description: "Calls a method on a DDP server and returns the result",
		Params: []function.Parameter{
			{Name: "server", Type: cty.DynamicPseudoType},
			{Name: "method", Type: cty.String},
		},
		VarParam: &function.Parameter{
			Name:      "params",
			Type:      cty.DynamicPseudoType,
			AllowNull: true,
		},
		Type: function.StaticReturnType(cty.DynamicPseudoType),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			c, err := GetClientFromCapsule(args[0])
			if err != nil {
				return cty.DynamicVal, err
			}
			method := args[1].AsString()

			params := make([]any, 0, len(args)-2)
			for _, arg := range args[2:] {
				if arg.IsNull() {
					params = append(params, nil)
					continue
				}
				param, err := go2cty2go.CtyToAny(arg)
				if err != nil {
					return cty.DynamicVal, fmt.Errorf("param %d: %w", len(params)+1, err)
				}
				params = append(params, param)
			}

			start := time.Now()
			result, err := c.Call(context.Background(), method, params...)
			if err != nil {
				return cty.DynamicVal, err
			}
			config.Logger.Debug("Method called",
				zap.String("method", method),
				zap.Duration("elapsed", time.Since(start)))

			return resultToCty(result)
		},
	})
}
