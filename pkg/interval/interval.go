// Package interval formats and parses intervals in the "[days ]HH:MM:SS"
// notation shown on the device web page and used in the configuration.
package interval

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LeoCommon/tracker/pkg/textutil"
)

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour

	// MaxDays is the largest day count for which every "D HH:MM:SS" fits into int64 seconds
	MaxDays = (1<<63 - 1 - (secondsPerDay - 1)) / secondsPerDay
)

var ErrInvalidInterval = errors.New("invalid interval")

// Format renders secs as "HH:MM:SS", or "D HH:MM:SS" once it spans a day.
// Negative values get a leading '-'.
func Format(secs int64) string {
	if secs < 0 {
		// -(secs+1)+1 also holds for the smallest int64
		return "-" + formatAbs(uint64(-(secs+1))+1)
	}

	return formatAbs(uint64(secs))
}

func formatAbs(secs uint64) string {
	days := secs / secondsPerDay
	hours := (secs / secondsPerHour) % 24
	minutes := (secs / secondsPerMinute) % 60
	seconds := secs % 60

	if days <= 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}

	return fmt.Sprintf("%d %02d:%02d:%02d", days, hours, minutes, seconds)
}

// Scan parses "[days ]hours:minutes:seconds" into seconds. Hours, minutes
// and seconds have to be in their clock ranges, days must not be negative.
func Scan(interval string) (int64, error) {
	interval = textutil.Trim(interval, " ")

	first := strings.IndexByte(interval, ':')
	if first == -1 {
		return 0, fmt.Errorf("%w: %q has no ':'", ErrInvalidInterval, interval)
	}

	second := strings.IndexByte(interval[first+1:], ':')
	if second == -1 {
		return 0, fmt.Errorf("%w: %q has only one ':'", ErrInvalidInterval, interval)
	}
	second += first + 1

	var daysStr, hoursStr string
	if space := strings.IndexByte(interval, ' '); space != -1 && space < first {
		daysStr = interval[:space]
		hoursStr = interval[space+1 : first]
	} else {
		hoursStr = interval[:first]
	}

	var days int64
	var err error
	if daysStr != "" {
		if days, err = parseField(daysStr, "days", 0, MaxDays); err != nil {
			return 0, err
		}
	}

	hours, err := parseField(hoursStr, "hours", 0, 23)
	if err != nil {
		return 0, err
	}

	minutes, err := parseField(interval[first+1:second], "minutes", 0, 59)
	if err != nil {
		return 0, err
	}

	seconds, err := parseField(interval[second+1:], "seconds", 0, 59)
	if err != nil {
		return 0, err
	}

	return days*secondsPerDay + hours*secondsPerHour + minutes*secondsPerMinute + seconds, nil
}

// parseField accepts plain decimal digits only, no sign and no spaces
func parseField(field string, name string, min int64, max int64) (int64, error) {
	if field == "" {
		return 0, fmt.Errorf("%w: empty %s", ErrInvalidInterval, name)
	}

	for i := 0; i < len(field); i++ {
		if field[i] < '0' || field[i] > '9' {
			return 0, fmt.Errorf("%w: bad %s %q", ErrInvalidInterval, name, field)
		}
	}

	v, err := strconv.ParseInt(field, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s %q", ErrInvalidInterval, name, field)
	}

	if v < min || v > max {
		return 0, fmt.Errorf("%w: %s %d out of range [%d, %d]", ErrInvalidInterval, name, v, min, max)
	}

	return v, nil
}

// Interval is a number of seconds that marshals to the "[days ]HH:MM:SS" form
type Interval int64

func FromDuration(d time.Duration) Interval {
	return Interval(d / time.Second)
}

func (i Interval) Seconds() int64 {
	return int64(i)
}

func (i Interval) Duration() time.Duration {
	return time.Duration(i) * time.Second
}

func (i Interval) String() string {
	return Format(int64(i))
}

func (i Interval) MarshalText() ([]byte, error) {
	if i < 0 {
		return nil, fmt.Errorf("%w: negative interval %d", ErrInvalidInterval, int64(i))
	}
	return []byte(Format(int64(i))), nil
}

func (i *Interval) UnmarshalText(b []byte) error {
	secs, err := Scan(string(b))
	if err != nil {
		return err
	}

	*i = Interval(secs)
	return nil
}
