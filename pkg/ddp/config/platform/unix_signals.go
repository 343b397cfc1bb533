//go:build unix

// Package platform resolves the signal names accepted by signals blocks.
package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// Signal is a process signal number.
type Signal = unix.Signal

// SignalNum returns the signal called name, such as "SIGUSR1", or 0 if this
// platform has no such signal.
func SignalNum(name string) Signal {
	return unix.SignalNum(name)
}

// SignalName is the inverse of SignalNum, returning "" for unknown signals.
func SignalName(sig Signal) string {
	return unix.SignalName(sig)
}

// FromOsSignal narrows a signal delivered through os/signal.
func FromOsSignal(sig os.Signal) (Signal, bool) {
	s, ok := sig.(Signal)
	return s, ok
}
