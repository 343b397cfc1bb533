package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/sosodev/duration"
	"github.com/zclconf/go-cty/cty"
)

// IsExpressionProvided checks if an HCL expression was actually provided in
// the configuration. Optional fields that are absent decode to an empty
// expression with a zero-length range.
func IsExpressionProvided(expr hcl.Expression) bool {
	return expr != nil && expr.Range().End.Byte > expr.Range().Start.Byte
}

var errNegativeDuration = errors.New("duration must not be negative")

// ParseDuration evaluates a duration expression. Numbers are seconds,
// strings starting with "P" are ISO 8601 durations ("PT30S") and other
// strings use Go syntax ("1m30s").
func (c *Config) ParseDuration(expr hcl.Expression) (time.Duration, hcl.Diagnostics) {
	val, diags := expr.Value(c.evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}

	d, err := durationFromValue(val)
	if err != nil {
		return 0, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid duration",
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		})
	}

	return d, diags
}

func durationFromValue(val cty.Value) (time.Duration, error) {
	if val.IsNull() || !val.IsKnown() {
		return 0, fmt.Errorf("duration must be set")
	}

	var d time.Duration

	switch val.Type() {
	case cty.Number:
		nanos := val.AsBigFloat()
		nanos.Mul(nanos, big.NewFloat(float64(time.Second)))
		f, _ := nanos.Float64()
		d = time.Duration(f)

	case cty.String:
		str := strings.TrimSpace(val.AsString())
		if strings.HasPrefix(str, "P") {
			iso, err := duration.Parse(str)
			if err != nil {
				return 0, fmt.Errorf("invalid ISO 8601 duration %q: %w", str, err)
			}
			d = iso.ToTimeDuration()
		} else {
			var err error
			d, err = time.ParseDuration(str)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: expected seconds, an ISO 8601 duration (PT5M) or a Go duration (5m)", str)
			}
		}

	default:
		return 0, fmt.Errorf("duration must be a number of seconds or a string, got %s", val.Type().FriendlyName())
	}

	if d < 0 {
		return 0, errNegativeDuration
	}
	return d, nil
}
