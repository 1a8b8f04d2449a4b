//go:build linux

package cpu

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore pins the current OS thread to a specific CPU core.
// Must be called after runtime.LockOSThread().
//
// cpuID is wrapped into [0, runtime.NumCPU()-1].
func pinToCore(cpuID int) (int, error) {
	numCPU := runtime.NumCPU()
	if cpuID < 0 || cpuID >= numCPU {
		cpuID = cpuID % numCPU
		if cpuID < 0 {
			cpuID += numCPU
		}
	}

	var mask unix.CPUSet
	mask.Zero()
	mask.Set(cpuID)

	if err := unix.SchedSetaffinity(0, &mask); err != nil { // 0 = current thread
		return -1, err
	}

	return cpuID, nil
}

// LockWorker locks the calling goroutine to its own OS thread and, when pin
// is set, restricts that thread to CPU workerID mod NumCPU. The returned
// function must run on the same goroutine. It undoes the lock, except for
// a pinned thread, which stays locked so the runtime discards it when the
// goroutine exits instead of reusing it with a narrowed affinity mask.
//
// It reports the CPU the thread was pinned to, or -1 when pinning was not
// requested or failed.
func LockWorker(workerID int, pin bool) (cpu int, unlock func()) {
	runtime.LockOSThread()

	cpu = -1
	if pin {
		if c, err := pinToCore(workerID); err == nil {
			return c, func() {}
		}
	}

	return cpu, runtime.UnlockOSThread
}
