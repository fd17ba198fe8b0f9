package receiver

import "sync"

// Executor runs a task on some execution context.
type Executor interface {
	Execute(task func())
}

// GoExecutor runs each task on its own goroutine.
type GoExecutor struct{}

// Execute implements Executor.
func (GoExecutor) Execute(task func()) {
	go task()
}

// CooperativeExecutor queues tasks until the owner runs them with
// RunPending on its own goroutine. Tests use it to step a receiver
// deterministically.
type CooperativeExecutor struct {
	mu    sync.Mutex
	queue []func()
}

// NewCooperativeExecutor creates an empty executor.
func NewCooperativeExecutor() *CooperativeExecutor {
	return &CooperativeExecutor{}
}

// Execute implements Executor.
func (e *CooperativeExecutor) Execute(task func()) {
	e.mu.Lock()
	e.queue = append(e.queue, task)
	e.mu.Unlock()
}

// RunPending runs queued tasks in order on the calling goroutine, including
// tasks queued while it runs, and returns how many ran.
func (e *CooperativeExecutor) RunPending() int {
	ran := 0
	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.mu.Unlock()
			return ran
		}
		task := e.queue[0]
		e.queue = e.queue[1:]
		e.mu.Unlock()

		task()
		ran++
	}
}

// Pending returns the number of queued tasks.
func (e *CooperativeExecutor) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.queue)
}
