package functions

import (
	"context"
	"fmt"
	"math"

	"github.com/itchyny/gojq"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// JqFunc applies a jq query to a value. A single result is returned as is,
// several results as a list and no result as null.
var JqFunc = function.New(&function.Spec{
	Description: "Applies a jq query to a value",
	Params: []function.Parameter{
		{Name: "query", Type: cty.String},
		{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
		query, err := gojq.Parse(args[0].AsString())
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("failed to parse jq query: %w", err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("failed to compile jq query: %w", err)
		}

		input, err := go2cty2go.CtyToAny(args[1])
		if err != nil {
			return cty.DynamicVal, fmt.Errorf("unable to convert value: %w", err)
		}

		var results []any
		iter := code.RunWithContext(context.Background(), jqNormalize(input))
		for {
			result, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := result.(error); isErr {
				return cty.DynamicVal, fmt.Errorf("jq: %w", err)
			}
			results = append(results, result)
		}

		switch len(results) {
		case 0:
			return cty.NullVal(cty.DynamicPseudoType), nil
		case 1:
			if results[0] == nil {
				return cty.NullVal(cty.DynamicPseudoType), nil
			}
			return go2cty2go.AnyToCty(results[0])
		default:
			return go2cty2go.AnyToCty(results)
		}
	},
})

// jqNormalize converts integers to the types gojq accepts.
func jqNormalize(v any) any {
	switch val := v.(type) {
	case int64:
		if val >= math.MinInt && val <= math.MaxInt {
			return int(val)
		}
		return float64(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for key, elem := range val {
			out[key] = jqNormalize(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = jqNormalize(elem)
		}
		return out
	}
	return v
}
