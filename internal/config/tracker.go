package config

import (
	"errors"
)

// If you want to modify any field at run-time here, make sure to lock it using a mutex
type TrackerConfig struct {
	Name  string `toml:"name" comment:"device name shown on the status page"`
	Debug bool   `toml:"debug" comment:"enable debug logging"`
	// SerialConsole mirrors the log to a serial port, e.g. /dev/ttyS0
	SerialConsole  string `toml:"serial_console,omitempty" comment:"mirror the log output to this serial port"`
	SerialBaudrate int    `toml:"serial_baudrate,omitempty" comment:"baud rate of the serial console"`
}

type TrackerConfigManager struct {
	BaseConfigManager[TrackerConfig]
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *TrackerConfigManager) Verify() error {
	if a.conf.Name == "" {
		return errors.New("tracker name must not be empty")
	}

	if a.conf.SerialBaudrate < 0 {
		return errors.New("negative serial baudrate")
	}

	return nil
}

func NewTrackerConfigManager(config *TrackerConfig, mgr *Manager) *TrackerConfigManager {
	j := TrackerConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
