// Package systemd covers the service manager side of the tracker daemon:
// readiness and watchdog notifications and unit jobs over D-Bus.
package systemd

import (
	"errors"
	"net"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
)

var ErrNoNotifySocket = errors.New("systemd-notify socket was not available")

// Notify sends msg to the socket named by $NOTIFY_SOCKET
func Notify(msg string) error {
	name := os.Getenv(NotifySocketEnvVar)
	if name == "" {
		return ErrNoNotifySocket
	}

	// abstract namespace
	if name[0] == '@' {
		name = "\x00" + name[1:]
	}

	conn, err := net.DialUnix("unixgram", nil, &net.UnixAddr{Net: "unixgram", Name: name})
	if err != nil {
		return err
	}
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	return err
}

func Ready() error {
	return Notify(NotifyReady)
}

func Stopping() error {
	return Notify(NotifyStopping)
}

// Status publishes a one line status shown by systemctl status
func Status(status string) error {
	return Notify(notifyStatusPrefix + status)
}

// EntertainWatchdog sends a notification to the systemd watchdog
func EntertainWatchdog() error {
	return Notify(NotifyWatchdog)
}

// WatchdogInterval returns the watchdog timeout configured for the unit,
// zero if there is none
func WatchdogInterval() time.Duration {
	usec := os.Getenv(WatchdogUsecEnvVar)
	if usec == "" {
		return 0
	}

	v, err := strconv.ParseInt(usec, 10, 64)
	if err != nil || v <= 0 {
		log.Warn("bad watchdog interval", zap.String("value", usec))
		return 0
	}

	return time.Duration(v) * time.Microsecond
}
