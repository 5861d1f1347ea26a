package clock

import (
	"context"
	"sync"
	"time"
)

// DelayStep is the sleep between two background calls
const DelayStep = time.Millisecond

var (
	loopMu    sync.RWMutex
	delayLoop func()
)

// SetDelayLoop installs the background function that runs while Delay waits
func SetDelayLoop(fn func()) {
	loopMu.Lock()
	defer loopMu.Unlock()
	delayLoop = fn
}

func currentDelayLoop() func() {
	loopMu.RLock()
	defer loopMu.RUnlock()
	return delayLoop
}

// Delay waits d on the default clock and keeps the installed delay loop running
func Delay(ctx context.Context, d time.Duration) error {
	return DelayWith(ctx, Default(), d, currentDelayLoop())
}

// DelayWith waits until d passed on c. background is called once per step,
// it may be nil. The wait ends early with ctx.Err() if ctx is done.
func DelayWith(ctx context.Context, c Clock, d time.Duration, background func()) error {
	start := c.Millis()
	wait := d.Milliseconds()

	timer := time.NewTimer(DelayStep)
	defer timer.Stop()

	for c.Millis()-start < wait {
		if background != nil {
			background()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			timer.Reset(DelayStep)
		}
	}

	return nil
}
