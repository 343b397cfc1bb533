package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// ConstBlockHandler collects attributes of "const" blocks and defines them
// as variables, in dependency order, before any other block is processed.
type ConstBlockHandler struct {
	BlockHandlerBase

	consts hcl.Attributes
}

func NewConstBlockHandler() *ConstBlockHandler {
	return &ConstBlockHandler{
		consts: make(hcl.Attributes),
	}
}

func (b *ConstBlockHandler) Preprocess(block *hcl.Block) hcl.Diagnostics {
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}

	for name, attr := range attrs {
		if prev, exists := b.consts[name]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate constant",
				Detail:   fmt.Sprintf("Constant %s is already defined at %v", name, prev.NameRange),
				Subject:  &attr.NameRange,
			})
			continue
		}
		if _, reserved := reservedNames[name]; reserved {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Reserved name",
				Detail:   fmt.Sprintf("%s can't be used as a constant name", name),
				Subject:  &attr.NameRange,
			})
			continue
		}
		b.consts[name] = attr
	}

	return diags
}

func (b *ConstBlockHandler) FinishPreprocessing(config *Config) hcl.Diagnostics {
	attrs, diags := SortAttributesByDependencies(b.consts)
	if diags.HasErrors() {
		return diags
	}

	for _, attribute := range attrs {
		value, evalDiags := attribute.Expr.Value(config.evalCtx)
		diags = diags.Extend(evalDiags)
		config.Constants[attribute.Name] = value
	}

	return diags
}

var reservedNames = map[string]struct{}{
	"ctx":    {},
	"env":    {},
	"server": {},
}
