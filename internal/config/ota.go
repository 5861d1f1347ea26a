package config

import (
	"fmt"
	"strings"
)

type OTAConfig struct {
	Hostname string `toml:"hostname" comment:"name the update endpoint is announced with"`
	Port     int    `toml:"port" comment:"port of the update endpoint"`
	// Password for uploads, empty disables authentication
	Password  string `toml:"password,omitempty" comment:"basic auth password for uploads, empty disables authentication"`
	Announce  bool   `toml:"announce" comment:"announce the update endpoint with DNS-SD"`
	BundleDir string `toml:"bundle_dir" comment:"directory received bundles are stored in until installed"`
	Reboot    bool   `toml:"reboot" comment:"reboot into the new slot after a successful update"`
}

type OTAConfigManager struct {
	BaseConfigManager[OTAConfig]
}

func validHostname(h string) bool {
	if h == "" || len(h) > 63 || strings.HasPrefix(h, "-") || strings.HasSuffix(h, "-") {
		return false
	}

	for _, c := range h {
		if !(c == '-' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}

	return true
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *OTAConfigManager) Verify() error {
	if !validHostname(a.conf.Hostname) {
		return fmt.Errorf("invalid ota hostname %q", a.conf.Hostname)
	}

	if a.conf.Port <= 0 || a.conf.Port > 65535 {
		return fmt.Errorf("ota port %d out of range", a.conf.Port)
	}

	return nil
}

func NewOTAConfigManager(config *OTAConfig, mgr *Manager) *OTAConfigManager {
	j := OTAConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
