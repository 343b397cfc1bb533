//go:build unix

package config

import (
	"context"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalActions(t *testing.T) {
	servers := newFakeServers()
	config, logs := buildTestConfig(t, servers, `
signals {
  SIGUSR1 = log_info("signal action", { signal = ctx.signal })
}
`)
	require.NotNil(t, config.SigActions)
	require.Len(t, config.Startables, 1)

	require.NoError(t, config.Start(context.Background()))
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool {
		return logs.FilterMessage("signal action").Len() == 1
	}, timeout, interval)
	assert.Equal(t, "SIGUSR1", logs.FilterMessage("signal action").All()[0].ContextMap()["signal"])

	require.NoError(t, config.Stop())
}

func TestSignalActionsDuplicate(t *testing.T) {
	_, diags := NewConfig().WithSources([]byte(`
signals {
  SIGHUP = true
}

signals {
  SIGHUP = false
}
`)).Build()
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "Signal already defined")
}
