// Package sensors reads the board temperatures from hwmon
package sensors

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
)

const HwmonRoot = "/sys/class/hwmon"

// Temperature in milli degree celsius
type Temperature int

func (t Temperature) String() string {
	return fmt.Sprintf("%.1fC", float32(t)/1000)
}

type Reading struct {
	Sensor string
	Label  string
	Temp   Temperature
	// Crit is the critical set point, nil if the sensor has none
	Crit *Temperature
}

// Critical reports whether the reading reached its critical set point
func (r Reading) Critical() bool {
	return r.Crit != nil && r.Temp >= *r.Crit
}

func (r Reading) String() string {
	name := r.Sensor
	if r.Label != "" {
		name += "/" + r.Label
	}

	if r.Crit != nil {
		return fmt.Sprintf("%s: %s (crit %s)", name, r.Temp, *r.Crit)
	}
	return fmt.Sprintf("%s: %s", name, r.Temp)
}

// cpu_thermal covers the ARM boards, the others x86 test machines
var knownSensors = []string{"cpu_thermal", "soc_thermal", "coretemp", "k10temp"}

// ReadTemperatures returns the readings of the known hwmon sensors below root
func ReadTemperatures(root string) []Reading {
	var readings []Reading

	dirs, _ := filepath.Glob(filepath.Join(root, "hwmon*"))
	sort.Strings(dirs)

	for _, dir := range dirs {
		name, err := readString(filepath.Join(dir, "name"))
		if err != nil || !slices.Contains(knownSensors, name) {
			continue
		}

		inputs, _ := filepath.Glob(filepath.Join(dir, "temp*_input"))
		sort.Strings(inputs)

		for _, input := range inputs {
			temp, ok := readTemperature(input)
			if !ok {
				continue
			}

			base := strings.TrimSuffix(input, "_input")
			r := Reading{Sensor: name, Temp: temp}
			if crit, ok := readTemperature(base + "_crit"); ok {
				r.Crit = &crit
			}
			r.Label, _ = readString(base + "_label")

			readings = append(readings, r)
		}
	}

	return readings
}

func readString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(data)), nil
}

func readTemperature(path string) (Temperature, bool) {
	str, err := readString(path)
	if err != nil {
		return 0, false
	}

	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, false
	}

	return Temperature(num), true
}
