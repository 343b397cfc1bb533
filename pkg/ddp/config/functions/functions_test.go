package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/go2cty2go"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGetStandardLibraryFunctions(t *testing.T) {
	funcs := GetStandardLibraryFunctions()

	for _, name := range []string{"upper", "jsonencode", "uuidv4", "base64encode", "typeof", "error", "diff", "patch", "jq"} {
		assert.Contains(t, funcs, name)
	}
	assert.NotContains(t, funcs, "file")
}

func TestLogFunctions(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	funcs := GetLogFunctions(zap.New(core))

	_, err := funcs["log_info"].Call([]cty.Value{
		cty.StringVal("document added"),
		cty.ObjectVal(map[string]cty.Value{
			"id":    cty.StringVal("t1"),
			"count": cty.NumberIntVal(3),
			"ok":    cty.True,
		}),
	})
	require.NoError(t, err)

	_, err = funcs["log_warn"].Call([]cty.Value{
		cty.StringVal("positional"),
		cty.StringVal("a"),
		cty.NumberFloatVal(1.5),
		cty.NullVal(cty.String),
	})
	require.NoError(t, err)

	_, err = funcs["log_msg"].Call([]cty.Value{cty.StringVal("error"), cty.StringVal("by level")})
	require.NoError(t, err)

	_, err = funcs["log_msg"].Call([]cty.Value{cty.StringVal("loud"), cty.StringVal("unknown level")})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 4)

	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, map[string]any{"id": "t1", "count": int64(3), "ok": true}, entries[0].ContextMap())

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, map[string]any{"$1": "a", "$2": 1.5, "$3": "<null>"}, entries[1].ContextMap())

	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, zapcore.InfoLevel, entries[3].Level)
}

func TestLogFunctionsNilLogger(t *testing.T) {
	funcs := GetLogFunctions(nil)
	result, err := funcs["log_debug"].Call([]cty.Value{cty.StringVal("dropped")})
	require.NoError(t, err)
	assert.Equal(t, cty.True, result)
}

func TestTypeOfFunc(t *testing.T) {
	result, err := TypeOfFunc.Call([]cty.Value{cty.StringVal("x")})
	require.NoError(t, err)
	assert.Equal(t, "string", result.AsString())

	result, err = TypeOfFunc.Call([]cty.Value{cty.NumberIntVal(1)})
	require.NoError(t, err)
	assert.Equal(t, "number", result.AsString())

	result, err = TypeOfFunc.Call([]cty.Value{cty.NullVal(cty.Bool)})
	require.NoError(t, err)
	assert.Equal(t, "bool", result.AsString())
}

func TestErrorFunc(t *testing.T) {
	_, err := ErrorFunc.Call([]cty.Value{cty.StringVal("subscription refused")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subscription refused")
}

func TestDiffPatch(t *testing.T) {
	before := cty.ObjectVal(map[string]cty.Value{
		"title": cty.StringVal("write tests"),
		"done":  cty.False,
		"owner": cty.StringVal("ada"),
	})
	after := cty.ObjectVal(map[string]cty.Value{
		"title": cty.StringVal("write tests"),
		"done":  cty.True,
		"tags":  cty.TupleVal([]cty.Value{cty.StringVal("ddp")}),
	})

	patch, err := DiffFunc.Call([]cty.Value{before, after})
	require.NoError(t, err)
	require.True(t, patch.Type().IsObjectType() || patch.Type().IsMapType())

	patched, err := PatchFunc.Call([]cty.Value{before, patch})
	require.NoError(t, err)

	got, err := go2cty2go.CtyToAny(patched)
	require.NoError(t, err)
	want, err := go2cty2go.CtyToAny(after)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPatchRequiresObjects(t *testing.T) {
	_, err := PatchFunc.Call([]cty.Value{cty.StringVal("x"), cty.EmptyObjectVal})
	assert.Error(t, err)
}

func TestJqFunc(t *testing.T) {
	doc := cty.ObjectVal(map[string]cty.Value{
		"title": cty.StringVal("write docs"),
		"tags":  cty.ListVal([]cty.Value{cty.StringVal("a"), cty.StringVal("b")}),
		"count": cty.NumberIntVal(2),
	})

	t.Run("single result", func(t *testing.T) {
		result, err := JqFunc.Call([]cty.Value{cty.StringVal(".title"), doc})
		require.NoError(t, err)
		assert.Equal(t, cty.StringVal("write docs"), result)
	})

	t.Run("integer arithmetic", func(t *testing.T) {
		result, err := JqFunc.Call([]cty.Value{cty.StringVal(".count + 1"), doc})
		require.NoError(t, err)
		n, _ := result.AsBigFloat().Int64()
		assert.Equal(t, int64(3), n)
	})

	t.Run("several results", func(t *testing.T) {
		result, err := JqFunc.Call([]cty.Value{cty.StringVal(".tags[]"), doc})
		require.NoError(t, err)
		require.Equal(t, 2, result.LengthInt())
	})

	t.Run("no result", func(t *testing.T) {
		result, err := JqFunc.Call([]cty.Value{cty.StringVal("empty"), doc})
		require.NoError(t, err)
		assert.True(t, result.IsNull())
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := JqFunc.Call([]cty.Value{cty.StringVal(".["), doc})
		assert.Error(t, err)
	})

	t.Run("runtime error", func(t *testing.T) {
		_, err := JqFunc.Call([]cty.Value{cty.StringVal(".title + 1"), doc})
		assert.Error(t, err)
	})
}
