package display

import (
	"context"
	"image"
	"time"

	"github.com/rook-computer/panelcore/internal/driver"
)

// Start runs the render loop on its own goroutine until ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) {
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		c.Run(ctx)
	}()
}

// Wait blocks until the loop started by Start has returned.
func (c *Coordinator) Wait() {
	if c.done != nil {
		<-c.done
	}
}

// Run is the render loop. It returns when ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) {
	c.running.Store(true)
	defer c.running.Store(false)
	c.logger.Infof("display", "render loop started")

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C
	for {
		delay := c.RunOnce(ctx)
		timer.Reset(delay)
		select {
		case <-ctx.Done():
			c.logger.Infof("display", "render loop stopped")
			return
		case <-timer.C:
		}
	}
}

// RunOnce performs one loop iteration and returns the clamped delay before
// the next one.
func (c *Coordinator) RunOnce(ctx context.Context) time.Duration {
	c.Lock()
	ctx = c.beginRenderTask(ctx)

	if c.returnRequested.Swap(false) {
		c.returnToPreviousLocked()
	}
	if target := c.pending.Swap(nil); target != nil {
		c.switchLocked(target)
	}

	for _, t := range c.tickers {
		t(ctx)
	}

	suggested := c.opts.MaxDelay
	if c.engine != nil {
		start := time.Now()
		suggested = time.Duration(c.engine.TimerHandler()) * time.Millisecond
		c.recordEngine(time.Since(start))
	}

	if c.current != nil {
		c.current.screen.Update()
	}

	if c.flushPending {
		if c.drv.RenderMode() == driver.Buffered {
			start := time.Now()
			c.drv.Present()
			c.recordPresent(time.Since(start))
		}
		c.flushPending = false
		c.recordFrame()
	}

	c.endRenderTask()
	c.Unlock()
	return c.clampDelay(suggested)
}

func (c *Coordinator) switchLocked(target *entry) {
	if c.current != nil && c.current != target {
		c.current.screen.Hide()
	}
	// Direct screens manage history explicitly in ShowDirectImage and
	// ReturnToPrevious, and are never returned to.
	if !target.direct && c.current != target && (c.current == nil || !c.current.direct) {
		c.previous = c.current
	}
	c.setCurrent(target)
	target.screen.Show()
	c.directImageActive.Store(target.direct)
	c.recordSwitch()
	c.logger.Infof("display", "switched to %s", displayID(target))
}

func (c *Coordinator) clampDelay(d time.Duration) time.Duration {
	if d < c.opts.MinDelay {
		return c.opts.MinDelay
	}
	if d > c.opts.MaxDelay {
		return c.opts.MaxDelay
	}
	return d
}

// flush is the engine's flush callback. It always acknowledges the band,
// even when a direct screen owns the panel and the pixels are dropped.
func (c *Coordinator) flush(area image.Rectangle, px []uint16) {
	if c.directImageActive.Load() || (c.current != nil && c.current.direct) {
		c.engine.FlushReady()
		return
	}
	c.drv.BeginWrite()
	c.drv.SetWindow(area.Min.X, area.Min.Y, area.Dx(), area.Dy())
	c.drv.PushPixels(px, true)
	c.drv.EndWrite()
	c.flushPending = true
	c.engine.FlushReady()
}
