package pool

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrZeroSize is returned by New when asked for a pool without workers.
	ErrZeroSize = errors.New("pool size must be greater than zero")

	// ErrPoolClosed is returned by Execute once shutdown has begun. The job
	// was not queued and will never run.
	ErrPoolClosed = errors.New("cannot submit work to a shutting-down pool")

	// ErrNilJob is returned by Execute when given a nil job.
	ErrNilJob = errors.New("nil job")

	// ErrWorkerExited reports a worker that left its loop because the queue
	// failed, rather than because it was told to terminate.
	ErrWorkerExited = errors.New("worker exited without a terminate message")
)

// stackBufferSize bounds the stack trace captured for a panicking job.
const stackBufferSize = 4096

// PanicError is a job panic recovered by a worker.
type PanicError struct {
	WorkerID int
	Value    any
	Stack    []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker %d: job panic: %v\nstack trace:\n%s", e.WorkerID, e.Value, e.Stack)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// runWithRecovery invokes job once. A panic is converted to a *PanicError so
// that one faulty job cannot crash the worker, or the process.
func runWithRecovery(workerID int, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, stackBufferSize)
			n := runtime.Stack(buf, false)
			err = &PanicError{WorkerID: workerID, Value: r, Stack: buf[:n]}
		}
	}()

	job.Run()
	return nil
}
