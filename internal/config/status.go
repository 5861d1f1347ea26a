package config

import (
	"errors"

	"github.com/LeoCommon/tracker/pkg/interval"
)

type StatusConfig struct {
	Interval      interval.Interval `toml:"interval" comment:"status report interval, [days ]HH:MM:SS"`
	WifiInterface string            `toml:"wifi_interface" comment:"wireless interface the signal quality is read from"`
	Listen        string            `toml:"listen" comment:"address of the status web server"`
	DebugLines    int               `toml:"debug_lines" comment:"number of debug lines kept for the web page"`
}

type StatusConfigManager struct {
	BaseConfigManager[StatusConfig]
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *StatusConfigManager) Verify() error {
	if a.conf.Interval <= 0 {
		return errors.New("status interval must be positive")
	}

	if a.conf.Listen == "" {
		return errors.New("status listen address must not be empty")
	}

	if a.conf.DebugLines <= 0 {
		return errors.New("debug_lines must be positive")
	}

	return nil
}

func NewStatusConfigManager(config *StatusConfig, mgr *Manager) *StatusConfigManager {
	j := StatusConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
