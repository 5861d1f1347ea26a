//go:build !linux

package clock

import "time"

// Without a boot time clock the process start is the best we have
func sincePowerOn() time.Duration {
	return time.Since(processStart)
}
