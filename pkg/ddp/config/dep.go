package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/heimdalr/dag"
)

// ExtractReferencesFromExpression returns the variables expr refers to as
// dotted names, such as "server.local".
func ExtractReferencesFromExpression(expr hcl.Expression) []string {
	var refs []string

	for _, traversal := range expr.Variables() {
		ref := traversal.RootName()
		for _, step := range traversal[1:] {
			attr, ok := step.(hcl.TraverseAttr)
			if !ok {
				break
			}
			ref += "." + attr.Name
		}
		refs = append(refs, ref)
	}

	return refs
}

// ExtractReferencesFromBody returns the references made anywhere in body,
// including nested blocks.
func ExtractReferencesFromBody(body hcl.Body) []string {
	var refs []string

	syntaxBody, ok := body.(*hclsyntax.Body)
	if !ok {
		attrs, _ := body.JustAttributes()
		for _, attr := range attrs {
			refs = append(refs, ExtractReferencesFromExpression(attr.Expr)...)
		}
		return refs
	}

	for _, attr := range syntaxBody.Attributes {
		refs = append(refs, ExtractReferencesFromExpression(attr.Expr)...)
	}
	for _, block := range syntaxBody.Blocks {
		refs = append(refs, ExtractReferencesFromBody(block.Body)...)
	}

	return refs
}

// SortAttributesByDependencies returns attributes ordered so that each comes
// after the attributes it refers to.
func SortAttributesByDependencies(attrs hcl.Attributes) ([]*hcl.Attribute, hcl.Diagnostics) {
	var diags hcl.Diagnostics

	graph := dag.NewDAG()
	for name, attr := range attrs {
		if err := graph.AddVertexByID(name, attr); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Failed to add attribute to dependency graph",
				Detail:   fmt.Sprintf("Error adding attribute %s: %s", name, err),
				Subject:  &attr.NameRange,
			})
		}
	}

	for name, attr := range attrs {
		for _, ref := range dedupe(rootNames(ExtractReferencesFromExpression(attr.Expr))) {
			if _, exists := attrs[ref]; !exists || ref == name {
				continue
			}
			if err := graph.AddEdge(ref, name); err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Circular dependency detected",
					Detail:   fmt.Sprintf("Cannot add dependency from %s to %s: %s", ref, name, err),
					Subject:  &attr.Range,
				})
			}
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}

	var sorted []*hcl.Attribute
	graph.OrderedWalk(visitorFunc(func(value any) {
		sorted = append(sorted, value.(*hcl.Attribute))
	}))

	return sorted, diags
}

// SortBlocksByDependencies orders blocks so that a block comes after every
// block it refers to. Blocks without a dependency id keep their position at
// the end.
func (cb *ConfigBuilder) SortBlocksByDependencies(blocks hcl.Blocks) (hcl.Blocks, hcl.Diagnostics) {
	var (
		diags hcl.Diagnostics
		ids   = make(map[string]*hcl.Block)
		order []string
		rest  hcl.Blocks
	)

	graph := dag.NewDAG()

	for _, block := range blocks {
		handler, ok := cb.blockHandlers[block.Type]
		if !ok {
			continue
		}

		id, idDiags := handler.GetBlockDependencyId(block)
		diags = diags.Extend(idDiags)
		if id == "" {
			rest = append(rest, block)
			continue
		}

		if err := graph.AddVertexByID(id, block); err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate block",
				Detail:   fmt.Sprintf("Error adding %s to dependency graph: %s", id, err),
				Subject:  &block.DefRange,
			})
			continue
		}
		ids[id] = block
		order = append(order, id)
	}

	if diags.HasErrors() {
		return nil, diags
	}

	for _, id := range order {
		block := ids[id]
		for _, ref := range dedupe(ExtractReferencesFromBody(block.Body)) {
			if _, exists := ids[ref]; !exists || ref == id {
				continue
			}
			if err := graph.AddEdge(ref, id); err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Circular dependency detected",
					Detail:   fmt.Sprintf("Cannot add dependency from %s to %s: %s", ref, id, err),
					Subject:  &block.DefRange,
				})
			}
		}
	}

	if diags.HasErrors() {
		return nil, diags
	}

	sorted := make(hcl.Blocks, 0, len(blocks))
	graph.OrderedWalk(visitorFunc(func(value any) {
		sorted = append(sorted, value.(*hcl.Block))
	}))

	return append(sorted, rest...), diags
}

type visitorFunc func(value any)

func (f visitorFunc) Visit(vertex dag.Vertexer) {
	_, value := vertex.Vertex()
	f(value)
}

// rootNames strips attribute steps, so "limits.max" becomes "limits".
func rootNames(refs []string) []string {
	for i, ref := range refs {
		refs[i], _, _ = strings.Cut(ref, ".")
	}
	return refs
}

func dedupe(refs []string) []string {
	slices.Sort(refs)
	return slices.Compact(refs)
}
