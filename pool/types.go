package pool

// Job is a single unit of work. The pool calls Run at most once, on one
// worker, and drops its reference to the job afterwards. A job must own the
// state it touches; it should not rely on caller-local data that may change
// after submission.
type Job interface {
	Run()
}

// JobFunc adapts an ordinary function to the Job interface.
type JobFunc func()

// Run calls f.
func (f JobFunc) Run() {
	f()
}

// messageKind discriminates the two messages a worker can receive.
type messageKind uint8

const (
	msgNewJob messageKind = iota
	msgTerminate
)

// message is the envelope carried by the shared queue: either a job for
// whichever worker receives it, or an instruction to exit the worker loop.
type message struct {
	kind messageKind
	job  Job
}

func newJobMessage(job Job) message {
	return message{kind: msgNewJob, job: job}
}

var terminateMessage = message{kind: msgTerminate}
