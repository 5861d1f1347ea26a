package net

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseProcWireless reads the signal levels (dBm) per interface from the
// /proc/net/wireless format. The first two lines are headers.
func ParseProcWireless(r io.Reader) (map[string]int, error) {
	levels := make(map[string]int)

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		if line <= 2 {
			continue
		}

		iface, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}

		// status link level noise ...
		fields := strings.Fields(rest)
		if len(fields) < 3 {
			return nil, fmt.Errorf("malformed wireless line %d: %q", line, scanner.Text())
		}

		level, err := strconv.ParseFloat(strings.TrimSuffix(fields[2], "."), 64)
		if err != nil {
			return nil, fmt.Errorf("bad signal level on line %d: %w", line, err)
		}

		levels[strings.TrimSpace(iface)] = int(level)
	}

	return levels, scanner.Err()
}

// readSignalLevel returns the signal level of iface from the proc file at path
func readSignalLevel(path string, iface string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	levels, err := ParseProcWireless(f)
	if err != nil {
		return 0, err
	}

	level, ok := levels[iface]
	if !ok {
		return 0, &ConnectionNotAvailable{WiFi}
	}

	return level, nil
}
