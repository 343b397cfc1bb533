package functions

import (
	"errors"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// TypeOfFunc is typeof(value). It names the type of a value, which helps
// when inspecting method results whose shape is decided by the server.
// Null values report their declared type.
var TypeOfFunc = function.New(&function.Spec{
	Description: "Returns the type name of a value",
	Params: []function.Parameter{
		{Name: "value", Type: cty.DynamicPseudoType, AllowNull: true, AllowUnknown: true},
	},
	Type: function.StaticReturnType(cty.String),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.StringVal(args[0].Type().FriendlyName()), nil
	},
})

// ErrorFunc is error(message). Evaluating it fails the enclosing
// expression, so an assert condition or action can abort with a reason.
var ErrorFunc = function.New(&function.Spec{
	Description: "Fails with the given message",
	Params: []function.Parameter{
		{Name: "message", Type: cty.String},
	},
	Type: function.StaticReturnType(cty.DynamicPseudoType),
	Impl: func(args []cty.Value, _ cty.Type) (cty.Value, error) {
		return cty.DynamicVal, errors.New(args[0].AsString())
	},
})
