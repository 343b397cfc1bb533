//go:build !unix

package platform

import (
	"os"
	"syscall"
)

type Signal = syscall.Signal

// SignalNum always returns 0: signals blocks are only supported on unix.
func SignalNum(name string) Signal {
	return 0
}

func SignalName(sig Signal) string {
	return ""
}

func FromOsSignal(sig os.Signal) (Signal, bool) {
	s, ok := sig.(Signal)
	return s, ok
}
