package cpu

import (
	"runtime"
	"testing"
)

func TestLockWorker_Unpinned(t *testing.T) {
	done := make(chan int)
	go func() {
		c, unlock := LockWorker(3, false)
		defer unlock()
		done <- c
	}()

	if c := <-done; c != -1 {
		t.Errorf("expected -1 without pinning, got %d", c)
	}
}

func TestLockWorker_PinnedCPUInRange(t *testing.T) {
	done := make(chan int)
	go func() {
		c, unlock := LockWorker(runtime.NumCPU()+1, true)
		defer unlock()
		done <- c
	}()

	c := <-done
	if c < -1 || c >= runtime.NumCPU() {
		t.Errorf("pinned cpu %d out of range [-1, %d)", c, runtime.NumCPU())
	}
}
