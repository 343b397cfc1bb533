package config

import (
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// GetEnvObject returns the environment as a cty object, for use as the
// "env" variable. Names are sanitized into valid HCL identifiers.
func GetEnvObject() cty.Value {
	envMap := make(map[string]cty.Value)

	for _, envVar := range os.Environ() {
		key, value, ok := strings.Cut(envVar, "=")
		if !ok {
			continue
		}
		envMap[sanitizeEnvVarName(key)] = cty.StringVal(value)
	}

	return cty.ObjectVal(envMap)
}

// sanitizeEnvVarName replaces characters not allowed in an HCL identifier
// with underscores.
func sanitizeEnvVarName(name string) string {
	if name == "" {
		return "_"
	}

	var result strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			result.WriteRune(r)
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
			result.WriteRune(r)
		default:
			result.WriteRune('_')
		}
	}

	return result.String()
}
