package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/tsarna/ddp/pkg/ddp/client"
	"github.com/tsarna/ddp/pkg/ddp/codec"
	"github.com/tsarna/ddp/pkg/ddp/handlers"
	"github.com/tsarna/ddp/pkg/ddp/message"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

type SubscriptionDefinition struct {
	Name        string         `hcl:",label"`
	ServerExpr  hcl.Expression `hcl:"server"`
	Publication *string        `hcl:"name,optional"`
	Params      hcl.Expression `hcl:"params,optional"`
	Collection  *string        `hcl:"collection,optional"`
	ActionExpr  hcl.Expression `hcl:"action,optional"`
	QueueSize   *int           `hcl:"queue_size,optional"`
	Disabled    bool           `hcl:"disabled,optional"`
	DefRange    hcl.Range      `hcl:",def_range"`
}

type SubscriptionBlockHandler struct {
	BlockHandlerBase
}

func NewSubscriptionBlockHandler() *SubscriptionBlockHandler {
	return &SubscriptionBlockHandler{}
}

func (h *SubscriptionBlockHandler) GetBlockDependencyId(block *hcl.Block) (string, hcl.Diagnostics) {
	return "subscription." + block.Labels[0], nil
}

func (h *SubscriptionBlockHandler) Process(config *Config, block *hcl.Block) hcl.Diagnostics {
	subscriptionDef := SubscriptionDefinition{}
	diags := gohcl.DecodeBody(block.Body, config.evalCtx, &subscriptionDef)
	if diags.HasErrors() {
		return diags
	}
	subscriptionDef.Name = block.Labels[0]

	if subscriptionDef.Disabled {
		return nil
	}

	c, addDiags := GetClientFromExpression(config, subscriptionDef.ServerExpr)
	diags = diags.Extend(addDiags)
	if diags.HasErrors() {
		return diags
	}

	sub := &Subscription{
		Name:        subscriptionDef.Name,
		Publication: subscriptionDef.Name,
		Pattern:     "#",
		Params:      []any{},
		client:      c,
		config:      config,
		logger:      config.Logger.With(zap.String("subscription", subscriptionDef.Name)),
	}
	if subscriptionDef.Publication != nil {
		sub.Publication = *subscriptionDef.Publication
	}
	if subscriptionDef.Collection != nil {
		sub.Pattern = *subscriptionDef.Collection
	}

	if IsExpressionProvided(subscriptionDef.Params) {
		val, addDiags := subscriptionDef.Params.Value(config.evalCtx)
		diags = diags.Extend(addDiags)
		if diags.HasErrors() {
			return diags
		}
		params, err := ParamsFromValue(val)
		if err != nil {
			return diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid subscription params",
				Detail:   err.Error(),
				Subject:  subscriptionDef.Params.Range().Ptr(),
			})
		}
		sub.Params = params
	}

	// Actions run off the session goroutine so that they may call methods.
	if IsExpressionProvided(subscriptionDef.ActionExpr) {
		queueSize := 0
		if subscriptionDef.QueueSize != nil {
			queueSize = *subscriptionDef.QueueSize
		}
		sub.action = subscriptionDef.ActionExpr
		sub.async = handlers.NewAsyncDataHandler(sub.runAction, queueSize).WithLogger(sub.logger)
	} else if subscriptionDef.QueueSize != nil {
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagWarning,
			Summary:  "queue_size has no effect without an action",
			Subject:  &subscriptionDef.DefRange,
		})
	}

	config.Subscriptions[sub.Name] = sub
	config.addLifecycle(sub)

	return diags
}

// Subscription is a subscription declared in configuration. Document changes
// matching Pattern are passed to its action expression.
type Subscription struct {
	Name        string
	Publication string
	Params      []any
	Pattern     string

	client     *client.Client
	config     *Config
	logger     *zap.Logger
	action     hcl.Expression
	async      *handlers.AsyncHandler
	unregister func()
	id         string
}

// ID returns the subscription id assigned by Start, or "" before Start.
func (s *Subscription) ID() string {
	return s.id
}

// Start registers the action and subscribes. The action is registered first
// so that it sees the initial documents.
func (s *Subscription) Start(ctx context.Context) error {
	if s.async != nil {
		s.async.Start()
		s.unregister = s.client.OnData(s.Pattern, s.async.OnData)
	}

	id, err := s.client.Subscribe(ctx, s.Publication, s.Params...)
	if err != nil {
		return err
	}
	s.id = id

	s.logger.Info("Subscribed", zap.String("publication", s.Publication), zap.String("id", id))
	return nil
}

// Stop unsubscribes and waits for queued actions to finish.
func (s *Subscription) Stop() error {
	var err error
	if s.id != "" {
		unsubErr := s.client.Unsubscribe(context.Background(), s.id)
		if unsubErr != nil && !errors.Is(unsubErr, client.ErrNotConnected) {
			err = fmt.Errorf("subscription %s: %w", s.Name, unsubErr)
		}
		s.id = ""
	}

	if s.unregister != nil {
		s.unregister()
		s.unregister = nil
	}
	if s.async != nil {
		s.async.Close()
	}

	return err
}

func (s *Subscription) runAction(ctx context.Context, event client.DataEvent) error {
	msg, err := MessageToCty(event.Message)
	if err != nil {
		return err
	}

	evalCtx := NewContext().
		WithStringAttribute("subscription", s.Name).
		WithStringAttribute("collection", event.Collection).
		WithStringAttribute("id", event.ID).
		WithStringAttribute("kind", string(event.Message.Kind())).
		WithAttribute("msg", msg).
		WithStringMapAttribute("fields", event.Fields).
		BuildEvalContext(s.config.evalCtx)

	_, diags := s.action.Value(evalCtx)
	if diags.HasErrors() {
		return diags
	}
	return nil
}

// MessageToCty converts a server message to an object with its wire
// fields, such as {msg = "added", collection = "tasks", id = "t1", fields = {...}}.
func MessageToCty(msg message.ServerMessage) (cty.Value, error) {
	p, err := codec.Server().Encode(msg)
	if err != nil {
		return cty.NilVal, err
	}
	return go2cty2go.AnyToCty(p.Map())
}
