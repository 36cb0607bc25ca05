package pipeline

import (
	"context"
	"sync"
)

// TaskState is the lifecycle state of an indexing task.
type TaskState string

const (
	TaskScheduled TaskState = "scheduled"
	TaskRunning   TaskState = "running"
	TaskTerminal  TaskState = "terminal"
)

// Task is the handle for one fire-and-forget indexing run. The server
// discards it after logging; the queue worker blocks on Wait so the
// message is acked only after the pipeline reaches a terminal state.
type Task struct {
	DocumentID string

	mu     sync.Mutex
	state  TaskState
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

func newTask(documentID string, cancel context.CancelFunc) *Task {
	return &Task{
		DocumentID: documentID,
		state:      TaskScheduled,
		done:       make(chan struct{}),
		cancel:     cancel,
	}
}

// Status returns the current task state without blocking.
func (t *Task) Status() TaskState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Err returns the terminal error of the task, nil while running or on
// success.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Wait blocks until the task reaches a terminal state or the context is
// done. It returns the task's terminal error.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Task) markRunning() {
	t.mu.Lock()
	if t.state == TaskScheduled {
		t.state = TaskRunning
	}
	t.mu.Unlock()
}

func (t *Task) finish(err error) {
	t.mu.Lock()
	if t.state == TaskTerminal {
		t.mu.Unlock()
		return
	}
	t.state = TaskTerminal
	t.err = err
	t.mu.Unlock()
	close(t.done)
}
