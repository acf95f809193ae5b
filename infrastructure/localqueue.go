package infrastructure

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"backend-eval/evaluator"
)

// ErrQueueFull is returned when the local task buffer has no room. The job
// stays queued; the caller may trigger evaluation again later.
var ErrQueueFull = errors.New("evaluation queue is full")

// LocalQueue is a bounded in-process worker pool. It keeps the non-blocking
// contract of evaluate: Enqueue hands off to a buffered channel and returns,
// and a fixed number of workers drain it.
type LocalQueue struct {
	tasks chan evaluator.Task
	wg    sync.WaitGroup
	log   *logrus.Logger
}

func NewLocalQueue(buffer int, log *logrus.Logger) *LocalQueue {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LocalQueue{
		tasks: make(chan evaluator.Task, buffer),
		log:   log,
	}
}

// Start launches the worker goroutines. Call once, after the task handler's
// dependencies are wired.
func (q *LocalQueue) Start(workers int, handler func(evaluator.Task)) {
	for i := 1; i <= workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			for task := range q.tasks {
				q.log.WithFields(logrus.Fields{"worker": id, "job_id": task.JobID}).
					Info("📥 worker picked up task")
				handler(task)
			}
		}(i)
	}
}

// Enqueue submits a task without blocking.
func (q *LocalQueue) Enqueue(task evaluator.Task) error {
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for in-flight tasks to finish.
func (q *LocalQueue) Stop() {
	close(q.tasks)
	q.wg.Wait()
}
