package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	params := parseParams([]string{`3`, `"quoted"`, `{"title":"x"}`, `[1,2]`, `bare`, `true`, `null`})

	assert.Equal(t, []any{
		float64(3),
		"quoted",
		map[string]any{"title": "x"},
		[]any{float64(1), float64(2)},
		"bare",
		true,
		nil,
	}, params)

	assert.Empty(t, parseParams(nil))
}

func TestPrinter(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, "")
		require.NoError(t, err)

		require.NoError(t, p.Print("", map[string]any{"n": float64(1)}))
		require.NoError(t, p.Print("tasks/t1", "x"))

		assert.Equal(t, "{\"n\":1}\ntasks/t1\t\"x\"\n", buf.String())
	})

	t.Run("jq", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, `.fields.title, $topic`)
		require.NoError(t, err)

		msg := map[string]any{
			"msg":        "added",
			"collection": "tasks",
			"id":         "t1",
			"fields":     map[string]any{"title": "write docs"},
		}
		require.NoError(t, p.Print("tasks/t1", msg))

		assert.Equal(t, "tasks/t1\t\"write docs\"\ntasks/t1\t\"tasks/t1\"\n", buf.String())
	})

	t.Run("jq runtime error", func(t *testing.T) {
		var buf bytes.Buffer
		p, err := newPrinter(&buf, `.[0]`)
		require.NoError(t, err)

		assert.Error(t, p.Print("", map[string]any{"a": "b"}))
	})

	t.Run("invalid query", func(t *testing.T) {
		_, err := newPrinter(&bytes.Buffer{}, `.[`)
		assert.Error(t, err)
	})
}
