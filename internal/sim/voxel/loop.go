package voxel

import (
	"context"
	"time"
)

type request struct {
	fn   func()
	done chan struct{}
}

// Run steps the world on a ticker until ctx is done. While it runs, joins go
// through the loop's inbox and waiting primitives sleep in wall time instead
// of stepping the world themselves.
func (w *World) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errAlreadyRunning
	}
	defer w.running.Store(false)

	ticker := time.NewTicker(w.cfg.TickDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req := <-w.inbox:
			w.mu.Lock()
			req.fn()
			w.mu.Unlock()
			close(req.done)
		case <-ticker.C:
			w.StepOnce()
		}
	}
}

// do runs fn on the loop goroutine with the world locked.
func (w *World) do(fn func()) {
	req := request{fn: fn, done: make(chan struct{})}
	w.inbox <- req
	<-req.done
}

// waitTicks lets n ticks pass. Without a running loop the caller steps the
// world itself, which keeps tests deterministic.
func (w *World) waitTicks(ctx context.Context, n int) error {
	if n <= 0 {
		return ctx.Err()
	}
	if w.running.Load() {
		t := time.NewTimer(time.Duration(n) * w.cfg.TickDuration)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		w.StepOnce()
	}
	return nil
}

// Clock reports simulated time and sleeps in ticks.
type Clock struct{ w *World }

func (w *World) Clock() Clock { return Clock{w: w} }

func (c Clock) Now() time.Time {
	return c.w.timeAt(c.w.Tick())
}

func (c Clock) Sleep(ctx context.Context, d time.Duration) error {
	n := int((d + c.w.cfg.TickDuration - 1) / c.w.cfg.TickDuration)
	if n < 1 {
		n = 1
	}
	return c.w.waitTicks(ctx, n)
}
