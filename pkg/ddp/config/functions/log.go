package functions

import (
	"fmt"

	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GetLogFunctions returns log_debug, log_info, log_warn, log_error and
// log_msg bound to logger. A nil logger discards everything.
func GetLogFunctions(logger *zap.Logger) map[string]function.Function {
	if logger == nil {
		logger = zap.NewNop()
	}

	return map[string]function.Function{
		"log_debug": makeLogFunc(logger, zapcore.DebugLevel),
		"log_info":  makeLogFunc(logger, zapcore.InfoLevel),
		"log_warn":  makeLogFunc(logger, zapcore.WarnLevel),
		"log_error": makeLogFunc(logger, zapcore.ErrorLevel),
		"log_msg":   makeLogLevelFunc(logger),
	}
}

func makeLogFunc(logger *zap.Logger, level zapcore.Level) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "message", Type: cty.String},
		},
		VarParam: &function.Parameter{
			Name:      "fields",
			Type:      cty.DynamicPseudoType,
			AllowNull: true,
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			logger.Log(level, args[0].AsString(), toZapFields(args[1:])...)
			return cty.True, nil
		},
	})
}

func makeLogLevelFunc(logger *zap.Logger) function.Function {
	return function.New(&function.Spec{
		Params: []function.Parameter{
			{Name: "level", Type: cty.String},
			{Name: "message", Type: cty.String},
		},
		VarParam: &function.Parameter{
			Name:      "fields",
			Type:      cty.DynamicPseudoType,
			AllowNull: true,
		},
		Type: function.StaticReturnType(cty.Bool),
		Impl: func(args []cty.Value, retType cty.Type) (cty.Value, error) {
			level, err := zapcore.ParseLevel(args[0].AsString())
			if err != nil {
				level = zapcore.InfoLevel
			}
			logger.Log(level, args[1].AsString(), toZapFields(args[2:])...)
			return cty.True, nil
		},
	})
}

// toZapFields names fields after the keys of a single object argument, and
// positionally ($1, $2, ...) otherwise.
func toZapFields(args []cty.Value) []zap.Field {
	if len(args) == 1 && !args[0].IsNull() && args[0].IsKnown() &&
		(args[0].Type().IsObjectType() || args[0].Type().IsMapType()) && args[0].LengthInt() > 0 {
		fields := make([]zap.Field, 0, args[0].LengthInt())
		for it := args[0].ElementIterator(); it.Next(); {
			key, val := it.Element()
			fields = append(fields, toZapField(key.AsString(), val))
		}
		return fields
	}

	fields := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		fields = append(fields, toZapField(fmt.Sprintf("$%d", i+1), arg))
	}
	return fields
}

func toZapField(key string, val cty.Value) zap.Field {
	if val.IsNull() {
		return zap.String(key, "<null>")
	}
	if !val.IsWhollyKnown() {
		return zap.String(key, "<unknown>")
	}

	switch val.Type() {
	case cty.String:
		return zap.String(key, val.AsString())
	case cty.Bool:
		return zap.Bool(key, val.True())
	case cty.Number:
		bf := val.AsBigFloat()
		if bf.IsInt() {
			if i, accuracy := bf.Int64(); accuracy == 0 {
				return zap.Int64(key, i)
			}
		}
		f, _ := bf.Float64()
		return zap.Float64(key, f)
	}

	if v, err := go2cty2go.CtyToAny(val); err == nil {
		return zap.Any(key, v)
	}
	return zap.String(key, val.GoString())
}
