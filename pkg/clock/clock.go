// Package clock provides the power-on clock of the device and the timing
// helpers built on it.
package clock

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic clock counting from power-on
type Clock interface {
	// SecondsSincePowerOn returns the seconds since power up, not since the last sleep
	SecondsSincePowerOn() int64
	// Millis returns the milliseconds since power up
	Millis() int64
}

// BootClock reads the kernel boot time clock, which keeps counting while the
// system is suspended.
type BootClock struct{}

func (BootClock) SecondsSincePowerOn() int64 {
	return int64(sincePowerOn() / time.Second)
}

func (BootClock) Millis() int64 {
	return sincePowerOn().Milliseconds()
}

var processStart = time.Now()

var defaultClock atomic.Value

func init() {
	defaultClock.Store(clockHolder{BootClock{}})
}

// clockHolder keeps atomic.Value happy with differing concrete types
type clockHolder struct {
	Clock
}

// Default returns the clock used by the package level helpers
func Default() Clock {
	return defaultClock.Load().(clockHolder).Clock
}

// SetDefault replaces the clock used by the package level helpers
func SetDefault(c Clock) {
	if c == nil {
		c = BootClock{}
	}
	defaultClock.Store(clockHolder{c})
}

// Manual is a clock that only moves when told to
type Manual struct {
	millis atomic.Int64
}

func NewManual(start time.Duration) *Manual {
	m := &Manual{}
	m.millis.Store(start.Milliseconds())
	return m
}

func (m *Manual) SecondsSincePowerOn() int64 {
	return m.millis.Load() / 1000
}

func (m *Manual) Millis() int64 {
	return m.millis.Load()
}

// Advance moves the clock forward by d
func (m *Manual) Advance(d time.Duration) {
	m.millis.Add(d.Milliseconds())
}

// Set moves the clock to d since power-on
func (m *Manual) Set(d time.Duration) {
	m.millis.Store(d.Milliseconds())
}
