package functions

import (
	"fmt"

	"github.com/tsarna/go-structdiff"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// DiffFunc returns the patch that turns a into b. A document's fields before
// and after a change make a natural pair.
var DiffFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "a", Type: cty.DynamicPseudoType},
		{Name: "b", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		a, err := go2cty2go.CtyToAny(args[0])
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("unable to convert first argument: %w", err)
		}
		b, err := go2cty2go.CtyToAny(args[1])
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("unable to convert second argument: %w", err)
		}

		diff, err := structdiff.Diff(a, b)
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("unable to diff values: %w", err)
		}

		return go2cty2go.AnyToCty(diff)
	},
})

// PatchFunc applies a patch produced by DiffFunc to an object.
var PatchFunc = function.New(&function.Spec{
	Params: []function.Parameter{
		{Name: "target", Type: cty.DynamicPseudoType},
		{Name: "patch", Type: cty.DynamicPseudoType},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		target, err := go2cty2go.CtyToAny(args[0])
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("unable to convert target argument: %w", err)
		}
		patch, err := go2cty2go.CtyToAny(args[1])
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("unable to convert patch argument: %w", err)
		}

		targetMap, ok := target.(map[string]any)
		if !ok {
			return cty.DynamicVal, fmt.Errorf("target must be an object")
		}
		patchMap, ok := patch.(map[string]any)
		if !ok {
			return cty.DynamicVal, fmt.Errorf("patch must be an object")
		}

		if err := structdiff.Apply(&targetMap, patchMap); err != nil {
			return cty.DynamicVal, fmt.Errorf("unable to apply patch: %w", err)
		}

		return go2cty2go.AnyToCty(targetMap)
	},
})
