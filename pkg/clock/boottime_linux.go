//go:build linux

package clock

import (
	"time"

	"golang.org/x/sys/unix"
)

func sincePowerOn() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return time.Since(processStart)
	}

	return time.Duration(ts.Nano())
}
