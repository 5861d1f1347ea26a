// Package config loads and stores the tracker configuration file
package config

import (
	"errors"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/file"
	"github.com/LeoCommon/tracker/pkg/interval"
	"github.com/LeoCommon/tracker/pkg/log"
	"github.com/LeoCommon/tracker/pkg/ota"
)

const (
	ProductName             = "tracker"
	UserdataDirectoryPrefix = "/data/"
	ConfigFolder            = "config/"

	ConfigPathPrefix = ConfigFolder + ProductName + "/"
	ConfigFile       = "config.toml"

	DefaultConfigPath = UserdataDirectoryPrefix + ConfigPathPrefix + ConfigFile
	DefaultBundleDir  = UserdataDirectoryPrefix + "ota/"

	DefaultStatusInterval = 5 * time.Minute
	DefaultListen         = ":8080"
	DefaultDebugLines     = 200

	DefaultDebugModeValue = false
)

type CLIFlags struct {
	ConfigPath string
	Debug      bool
	// Serial overrides the serial console of the configuration
	Serial string
}

type MainConfig struct {
	Tracker TrackerConfig `toml:"tracker"`
	OTA     OTAConfig     `toml:"ota"`
	Status  StatusConfig  `toml:"status"`
}

type ConfigManager interface {
	rlock()
	runlock()
	Verify() error
}

type ConfigManagerKey string

const (
	CMTracker ConfigManagerKey = "tracker"
	CMOTA     ConfigManagerKey = "ota"
	CMStatus  ConfigManagerKey = "status"
)

type ConfigManagerStore map[ConfigManagerKey]ConfigManager

type Manager struct {
	mu sync.RWMutex

	// The actual config, never share this with other code
	config *MainConfig

	// The config manager store (pointers)
	store ConfigManagerStore

	// The config path
	path string
}

func (m *Manager) Tracker() *TrackerConfigManager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cm, ok := m.store[CMTracker].(*TrackerConfigManager)
	if !ok {
		log.Panic("implementation mistake, no CMTracker found")
		return nil
	}
	return cm
}

func (m *Manager) OTA() *OTAConfigManager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cm, ok := m.store[CMOTA].(*OTAConfigManager)
	if !ok {
		log.Panic("implementation mistake, no CMOTA found")
		return nil
	}
	return cm
}

func (m *Manager) Status() *StatusConfigManager {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cm, ok := m.store[CMStatus].(*StatusConfigManager)
	if !ok {
		log.Panic("implementation mistake, no CMStatus found")
		return nil
	}
	return cm
}

// Path returns the file the configuration was loaded from
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// Load reads path over the defaults. A missing file is accepted when
// acceptMissing is set, a malformed one never is.
func (m *Manager) Load(path string, acceptMissing bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, m.config); err != nil {
			log.Error("failed to unmarshal config file", zap.String("path", path), zap.Error(err))
			return err
		}
	case errors.Is(err, fs.ErrNotExist) && acceptMissing:
		log.Warn("config file not found, using defaults", zap.String("path", path))
	default:
		return err
	}

	// Store the load path
	m.path = path

	// Each config section manager gets his own locking primitive
	m.store = ConfigManagerStore{
		CMTracker: NewTrackerConfigManager(&m.config.Tracker, m),
		CMOTA:     NewOTAConfigManager(&m.config.OTA, m),
		CMStatus:  NewStatusConfigManager(&m.config.Status, m),
	}

	// Verify all configs contain the mandatory values
	for _, value := range m.store {
		if err := value.Verify(); err != nil {
			return err
		}
	}

	log.Debug("active config", zap.Any("config", m.config), zap.String("path", m.path))

	return nil
}

// Save read-locks all sections and writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, value := range m.store {
		value.rlock()
	}

	defer func() {
		for _, value := range m.store {
			value.runlock()
		}
	}()

	configData, err := toml.Marshal(m.config)
	if err != nil {
		return err
	}

	if err := file.WriteAtomic(m.path, configData, 0644); err != nil {
		log.Error("Failed to write config file", zap.Error(err))
		return err
	}

	return nil
}

// Default returns the configuration used for every key missing in the file
func Default() *MainConfig {
	return &MainConfig{
		Tracker: TrackerConfig{
			Name:           ota.DefaultHostname,
			Debug:          DefaultDebugModeValue,
			SerialBaudrate: log.DefaultSerialBaudrate,
		},
		OTA: OTAConfig{
			Hostname:  ota.DefaultHostname,
			Port:      ota.DefaultPort,
			Announce:  true,
			BundleDir: DefaultBundleDir,
			Reboot:    true,
		},
		Status: StatusConfig{
			Interval:      interval.FromDuration(DefaultStatusInterval),
			WifiInterface: "wlan0",
			Listen:        DefaultListen,
			DebugLines:    DefaultDebugLines,
		},
	}
}

func NewManager() *Manager {
	return &Manager{
		store:  make(ConfigManagerStore),
		config: Default(),
	}
}

// ParseCLIFlags parses args, usually os.Args[1:]
func ParseCLIFlags(args []string) (CLIFlags, error) {
	flags := CLIFlags{}

	set := pflag.NewFlagSet(ProductName, pflag.ContinueOnError)
	set.StringVarP(&flags.ConfigPath, "config", "c", DefaultConfigPath, "relative or absolute path to the config file")
	set.BoolVarP(&flags.Debug, "debug", "d", DefaultDebugModeValue, "true if the debug logging should be enabled")
	set.StringVar(&flags.Serial, "serial", "", "mirror the log to this serial port")

	err := set.Parse(args)
	return flags, err
}
