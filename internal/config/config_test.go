package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeoCommon/tracker/pkg/interval"
)

const sampleConfig = `
[tracker]
name = "snork-7"
debug = true

[ota]
hostname = "snork-7"
port = 3232
password = "hunter2"
announce = false

[status]
interval = "1 00:00:30"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(writeConfig(t, sampleConfig), false))

	tracker := m.Tracker().C()
	assert.Equal(t, "snork-7", tracker.Name)
	assert.True(t, tracker.Debug)

	o := m.OTA().C()
	assert.Equal(t, 3232, o.Port)
	assert.Equal(t, "hunter2", o.Password)
	assert.False(t, o.Announce)
	// untouched keys keep their defaults
	assert.Equal(t, DefaultBundleDir, o.BundleDir)

	s := m.Status().C()
	assert.Equal(t, interval.Interval(86430), s.Interval)
	assert.Equal(t, 24*time.Hour+30*time.Second, s.Interval.Duration())
	assert.Equal(t, DefaultListen, s.Listen)
}

func TestLoadMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.toml")

	assert.Error(t, NewManager().Load(path, false))

	m := NewManager()
	require.NoError(t, m.Load(path, true))
	assert.Equal(t, Default().Status, m.Status().C())
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":   "[tracker\nname=",
		"interval": "[status]\ninterval = \"25:00:00\"",
		"port":     "[ota]\nport = 70000",
		"hostname": "[ota]\nhostname = \"snork tracker\"",
		"name":     "[tracker]\nname = \"\"",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, NewManager().Load(writeConfig(t, content), false))
		})
	}
}

func TestSetAndSave(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	m := NewManager()
	require.NoError(t, m.Load(path, false))

	m.Status().Set(func(c *StatusConfig) {
		c.Interval = interval.FromDuration(90 * time.Second)
	})
	require.NoError(t, m.Status().Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "00:01:30")

	reloaded := NewManager()
	require.NoError(t, reloaded.Load(path, false))
	assert.Equal(t, interval.Interval(90), reloaded.Status().C().Interval)
	assert.Equal(t, "hunter2", reloaded.OTA().C().Password)
}

func TestParseCLIFlags(t *testing.T) {
	flags, err := ParseCLIFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigPath, flags.ConfigPath)
	assert.False(t, flags.Debug)

	flags, err = ParseCLIFlags([]string{"-c", "/tmp/t.toml", "--debug", "--serial", "/dev/ttyS1"})
	require.NoError(t, err)
	assert.Equal(t, CLIFlags{ConfigPath: "/tmp/t.toml", Debug: true, Serial: "/dev/ttyS1"}, flags)

	_, err = ParseCLIFlags([]string{"--unknown"})
	assert.Error(t, err)
}

func TestEveryKeyCommented(t *testing.T) {
	sections := reflect.TypeOf(MainConfig{})
	for i := 0; i < sections.NumField(); i++ {
		section := sections.Field(i).Type
		for j := 0; j < section.NumField(); j++ {
			f := section.Field(j)
			assert.NotEmpty(t, f.Tag.Get("comment"), "%s.%s has no comment", section.Name(), f.Name)
		}
	}
}
