package net

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const procWireless = `Inter-| sta-|   Quality        |   Discarded packets               | Missed | WE
 face | tus | link level noise |  nwid  crypt   frag  retry   misc | beacon | 22
 wlan0: 0000   70.  -62.  -256        0      0      0      0      0        0
 wlan1: 0000   10.  -101.  -256       0      0      0      0      0        0
`

func TestRSSIQuality(t *testing.T) {
	tests := []struct {
		rssi    int
		quality int
	}{
		{-120, 0},
		{-100, 0},
		{-99, 2},
		{-75, 50},
		{-51, 98},
		{-50, 100},
		{-20, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.quality, RSSIQuality(tt.rssi), "RSSIQuality(%d)", tt.rssi)
	}

	assert.Equal(t, "50", RSSIQualityString(-75))
}

func TestParseProcWireless(t *testing.T) {
	levels, err := ParseProcWireless(strings.NewReader(procWireless))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"wlan0": -62, "wlan1": -101}, levels)
}

func TestParseProcWirelessMalformed(t *testing.T) {
	_, err := ParseProcWireless(strings.NewReader("h1\nh2\n wlan0: 0000 70.\n"))
	assert.Error(t, err)

	_, err = ParseProcWireless(strings.NewReader("h1\nh2\n wlan0: 0000 70. abc. -256\n"))
	assert.Error(t, err)
}

func TestReadSignalLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wireless")
	require.NoError(t, os.WriteFile(path, []byte(procWireless), 0644))

	level, err := readSignalLevel(path, "wlan0")
	require.NoError(t, err)
	assert.Equal(t, -62, level)

	_, err = readSignalLevel(path, "wlan9")
	assert.ErrorIs(t, err, &ConnectionNotAvailable{})
}
