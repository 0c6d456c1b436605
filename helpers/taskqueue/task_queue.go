// Package taskqueue provides an unbounded serial task queue. Tasks posted to
// a queue are executed one at a time, in posting order, by the single
// goroutine running Serve. Closing the queue cancels further posting; tasks
// already accepted are still drained before Serve returns, so in-flight
// posted work either runs to completion or (if posted after Close) becomes a
// no-op.
package taskqueue

import (
	"context"

	"github.com/xaionaro-go/avhwdecoder/helpers/closuresignaler"
	"github.com/xaionaro-go/avhwdecoder/helpers/condsignal"
	"github.com/xaionaro-go/avhwdecoder/logger"
	"github.com/xaionaro-go/xsync"
)

type Task func(ctx context.Context)

type TaskQueue struct {
	*closuresignaler.ClosureSignaler

	locker xsync.Mutex
	tasks  []Task
	added  *condsignal.CondSignal
	doneCh chan struct{}
}

func New() *TaskQueue {
	return &TaskQueue{
		ClosureSignaler: closuresignaler.New(),
		added:           condsignal.New(),
		doneCh:          make(chan struct{}),
	}
}

// Post enqueues a task. It never blocks. It returns false (and the task is
// dropped) if the queue is already closed.
func (q *TaskQueue) Post(ctx context.Context, task Task) bool {
	posted := false
	q.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		if q.IsClosed() {
			return
		}
		q.tasks = append(q.tasks, task)
		posted = true
	})
	if posted {
		q.added.Broadcast()
	} else {
		logger.Debugf(ctx, "the task queue is closed, dropping the task")
	}
	return posted
}

// Serve runs tasks until the queue is closed and fully drained, or until the
// context is cancelled. It is supposed to be running in exactly one
// goroutine.
func (q *TaskQueue) Serve(ctx context.Context) {
	logger.Debugf(ctx, "Serve")
	defer func() { logger.Debugf(ctx, "/Serve") }()
	defer close(q.doneCh)

	for {
		var task Task
		var waitCh <-chan struct{}
		drained := false
		q.locker.Do(xsync.WithNoLogging(ctx, true), func() {
			if len(q.tasks) > 0 {
				task = q.tasks[0]
				q.tasks = q.tasks[1:]
				return
			}
			if q.IsClosed() {
				drained = true
				return
			}
			waitCh = q.added.WaitChan()
		})

		if task != nil {
			task(ctx)
			continue
		}

		if drained {
			return
		}

		select {
		case <-waitCh:
		case <-q.CloseChan():
		case <-ctx.Done():
			return
		}
	}
}

// Done is closed when Serve has returned.
func (q *TaskQueue) Done() <-chan struct{} {
	return q.doneCh
}

// Wait blocks until Serve has returned or the context is cancelled.
func (q *TaskQueue) Wait(ctx context.Context) error {
	select {
	case <-q.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
