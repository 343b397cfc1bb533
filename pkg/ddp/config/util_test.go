package config

import (
	"testing"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

func TestConfigParseDuration(t *testing.T) {
	config := &Config{
		Logger:  zap.NewNop(),
		evalCtx: &hcl.EvalContext{},
	}

	tests := []struct {
		name        string
		input       string
		expected    time.Duration
		expectError bool
	}{
		{name: "integer seconds", input: "30", expected: 30 * time.Second},
		{name: "fractional seconds", input: "1.5", expected: 1500 * time.Millisecond},
		{name: "zero", input: "0", expected: 0},
		{name: "negative seconds", input: "-5", expectError: true},
		{name: "ISO 8601 minutes", input: `"PT5M"`, expected: 5 * time.Minute},
		{name: "ISO 8601 mixed", input: `"PT1H30M"`, expected: 90 * time.Minute},
		{name: "ISO 8601 days", input: `"P2D"`, expected: 48 * time.Hour},
		{name: "invalid ISO 8601", input: `"PXX"`, expectError: true},
		{name: "Go duration", input: `"1h30m45s"`, expected: time.Hour + 30*time.Minute + 45*time.Second},
		{name: "Go milliseconds", input: `"500ms"`, expected: 500 * time.Millisecond},
		{name: "invalid Go duration", input: `"5x"`, expectError: true},
		{name: "negative Go duration", input: `"-5m"`, expectError: true},
		{name: "surrounding whitespace", input: `"  5m  "`, expected: 5 * time.Minute},
		{name: "boolean", input: "true", expectError: true},
		{name: "null", input: "null", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, diags := hclsyntax.ParseExpression([]byte(tt.input), "test.hcl", hcl.Pos{Line: 1, Column: 1})
			require.False(t, diags.HasErrors(), "Failed to parse HCL expression: %v", diags)

			duration, parseDiags := config.ParseDuration(expr)

			if tt.expectError {
				assert.True(t, parseDiags.HasErrors(), "Expected error but got none")
			} else {
				assert.False(t, parseDiags.HasErrors(), "Unexpected error: %v", parseDiags)
				assert.Equal(t, tt.expected, duration)
			}
		})
	}
}

func TestIsExpressionProvided(t *testing.T) {
	expr, diags := hclsyntax.ParseExpression([]byte(`"x"`), "test.hcl", hcl.Pos{Line: 1, Column: 1})
	require.False(t, diags.HasErrors())

	assert.True(t, IsExpressionProvided(expr))
	assert.False(t, IsExpressionProvided(nil))
	assert.False(t, IsExpressionProvided(hcl.StaticExpr(cty.NilVal, hcl.Range{})))
}
