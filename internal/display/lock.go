package display

import (
	"context"
	"time"
)

// The display lock is a one-slot semaphore: it is not reentrant and it
// supports a timed TryLock, which sync.Mutex does not.

func (c *Coordinator) Lock() { c.sem <- struct{}{} }

func (c *Coordinator) Unlock() {
	select {
	case <-c.sem:
	default:
		panic("display: unlock of unlocked coordinator")
	}
}

// TryLock waits up to timeout for the lock.
func (c *Coordinator) TryLock(timeout time.Duration) bool {
	select {
	case c.sem <- struct{}{}:
		return true
	default:
	}
	if timeout <= 0 {
		return false
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case c.sem <- struct{}{}:
		return true
	case <-t.C:
		return false
	}
}

type renderTaskKey struct{}

// renderTask marks one RunOnce iteration. It is live only while that
// iteration holds the lock.
type renderTask struct{ c *Coordinator }

// beginRenderTask must be called with the lock held. The returned context
// stops counting as the render loop once endRenderTask runs, so a copy that
// outlives the iteration takes the lock like any other caller.
func (c *Coordinator) beginRenderTask(ctx context.Context) context.Context {
	task := &renderTask{c: c}
	c.task.Store(task)
	return context.WithValue(ctx, renderTaskKey{}, task)
}

func (c *Coordinator) endRenderTask() { c.task.Store(nil) }

// InRenderTask reports whether ctx belongs to the render loop iteration that
// is running right now. The context must stay on the render goroutine:
// tickers must not hand it to goroutines they start.
func (c *Coordinator) InRenderTask(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	task, _ := ctx.Value(renderTaskKey{}).(*renderTask)
	return task != nil && task.c == c && c.task.Load() == task
}

// LockIfNeeded takes the lock unless ctx comes from the render loop.
// Pass the result to UnlockIfNeeded.
func (c *Coordinator) LockIfNeeded(ctx context.Context) bool {
	if c.InRenderTask(ctx) {
		return false
	}
	c.Lock()
	return true
}

func (c *Coordinator) UnlockIfNeeded(locked bool) {
	if locked {
		c.Unlock()
	}
}
