package net

import "strconv"

const (
	rssiFloor   = -100
	rssiCeiling = -50
)

// RSSIQuality converts a signal level in dBm to a 0..100 quality value
func RSSIQuality(rssi int) int {
	switch {
	case rssi <= rssiFloor:
		return 0
	case rssi >= rssiCeiling:
		return 100
	default:
		return 2 * (rssi - rssiFloor)
	}
}

// RSSIQualityString is RSSIQuality in its decimal text form
func RSSIQualityString(rssi int) string {
	return strconv.Itoa(RSSIQuality(rssi))
}
