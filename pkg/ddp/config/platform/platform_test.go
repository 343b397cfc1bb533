//go:build unix

package platform

import (
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignalNames(t *testing.T) {
	for _, name := range []string{"SIGHUP", "SIGUSR1", "SIGUSR2"} {
		t.Run(name, func(t *testing.T) {
			sig := SignalNum(name)
			assert.NotZero(t, sig)
			assert.Equal(t, name, SignalName(sig))
		})
	}

	assert.Zero(t, SignalNum("SIGNOPE"))
}

func TestFromOsSignal(t *testing.T) {
	sig, ok := FromOsSignal(syscall.SIGUSR1)
	assert.True(t, ok)
	assert.Equal(t, SignalNum("SIGUSR1"), sig)

	_, ok = FromOsSignal(os.Interrupt)
	assert.True(t, ok)

	_, ok = FromOsSignal(fakeSignal{})
	assert.False(t, ok)
}

type fakeSignal struct{}

func (fakeSignal) String() string { return "fake" }
func (fakeSignal) Signal()        {}
