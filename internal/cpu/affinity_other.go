//go:build !linux

package cpu

import (
	"runtime"
)

// LockWorker locks the calling goroutine to an OS thread.
// CPU pinning is only implemented on linux; pin is ignored here and the
// reported CPU is always -1.
func LockWorker(workerID int, pin bool) (cpu int, unlock func()) {
	runtime.LockOSThread()
	return -1, runtime.UnlockOSThread
}
