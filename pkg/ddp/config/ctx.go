package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// ContextObjectBuilder builds the "ctx" object that action expressions see.
type ContextObjectBuilder struct {
	attributes map[string]cty.Value
}

func NewContext() *ContextObjectBuilder {
	return &ContextObjectBuilder{
		attributes: make(map[string]cty.Value),
	}
}

func (b *ContextObjectBuilder) WithAttribute(name string, value cty.Value) *ContextObjectBuilder {
	b.attributes[name] = value
	return b
}

func (b *ContextObjectBuilder) WithStringAttribute(name string, value string) *ContextObjectBuilder {
	b.attributes[name] = cty.StringVal(value)
	return b
}

// WithStringMapAttribute adds m as an object of strings. Empty maps are
// skipped.
func (b *ContextObjectBuilder) WithStringMapAttribute(name string, m map[string]string) *ContextObjectBuilder {
	if len(m) == 0 {
		return b
	}
	values := make(map[string]cty.Value, len(m))
	for key, value := range m {
		values[key] = cty.StringVal(value)
	}
	b.attributes[name] = cty.ObjectVal(values)
	return b
}

func (b *ContextObjectBuilder) Build() cty.Value {
	return cty.ObjectVal(b.attributes)
}

// BuildEvalContext returns a child of parent with the object bound to "ctx".
func (b *ContextObjectBuilder) BuildEvalContext(parent *hcl.EvalContext) *hcl.EvalContext {
	evalCtx := parent.NewChild()
	evalCtx.Variables = map[string]cty.Value{
		"ctx": b.Build(),
	}
	return evalCtx
}
