package tracker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/clock"
	"github.com/LeoCommon/tracker/pkg/interval"
	"github.com/LeoCommon/tracker/pkg/log"
	"github.com/LeoCommon/tracker/pkg/system/sensors"
	"github.com/LeoCommon/tracker/pkg/system/services/net"
	"github.com/LeoCommon/tracker/pkg/textutil"
)

// Status is one status report of the tracker
type Status struct {
	Name    string
	Version string
	// Uptime in seconds since power on
	Uptime   int64
	Interval interval.Interval

	// Wifi is nil when the link state is unknown
	Wifi         *net.WifiStatus
	Temperatures []sensors.Reading

	BootSlot   string
	OTAHost    string
	OTAPort    int
	OTABusy    bool
	OTABackend string
}

// Summary is the one line form used for the log and the service manager
func (s Status) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s up %s", s.Name, interval.Format(s.Uptime))

	if s.Wifi != nil {
		fmt.Fprintf(&b, " wifi %s%%", strconv.Itoa(s.Wifi.Quality))
	} else {
		b.WriteString(" wifi n/a")
	}

	for _, t := range s.Temperatures {
		fmt.Fprintf(&b, " %s", t)
	}

	if s.OTABusy {
		b.WriteString(" updating")
	}

	return b.String()
}

func attr(b *strings.Builder, name string, value string) {
	b.WriteString(" " + name + "=\"" + textutil.ToXML(value) + "\"")
}

// XML renders the status page
func (s Status) XML() string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")

	b.WriteString("<tracker")
	attr(&b, "name", s.Name)
	attr(&b, "version", s.Version)
	b.WriteString(">\n")

	b.WriteString("  <uptime")
	attr(&b, "secs", strconv.FormatInt(s.Uptime, 10))
	b.WriteString(">" + textutil.ToXML(interval.Format(s.Uptime)) + "</uptime>\n")

	b.WriteString("  <interval>" + textutil.ToXML(s.Interval.String()) + "</interval>\n")

	if s.Wifi != nil {
		b.WriteString("  <wifi")
		attr(&b, "interface", s.Wifi.Interface)
		attr(&b, "ssid", s.Wifi.SSID)
		attr(&b, "rssi", strconv.Itoa(s.Wifi.RSSI))
		attr(&b, "quality", strconv.Itoa(s.Wifi.Quality))
		attr(&b, "strength", strconv.Itoa(int(s.Wifi.Strength)))
		attr(&b, "state", s.Wifi.State)
		b.WriteString("/>\n")
	}

	for _, t := range s.Temperatures {
		b.WriteString("  <temperature")
		attr(&b, "sensor", t.Sensor)
		attr(&b, "label", t.Label)
		attr(&b, "critical", strconv.FormatBool(t.Critical()))
		b.WriteString(">" + textutil.ToXML(t.Temp.String()) + "</temperature>\n")
	}

	b.WriteString("  <ota")
	attr(&b, "hostname", s.OTAHost)
	attr(&b, "port", strconv.Itoa(s.OTAPort))
	attr(&b, "busy", strconv.FormatBool(s.OTABusy))
	attr(&b, "slot", s.BootSlot)
	attr(&b, "backend", s.OTABackend)
	b.WriteString("/>\n")

	b.WriteString("</tracker>\n")
	return b.String()
}

// collectStatus gathers the current state, unavailable parts are left empty
func (a *App) collectStatus() Status {
	s := Status{
		Name:         a.Conf.Tracker().C().Name,
		Version:      Version,
		Uptime:       a.clock.SecondsSincePowerOn(),
		Interval:     a.Conf.Status().C().Interval,
		Temperatures: sensors.ReadTemperatures(a.hwmonRoot),
	}

	if a.Wifi != nil {
		if w, err := a.Wifi.WifiStatus(); err == nil {
			s.Wifi = &w
		} else {
			log.Debug("wifi status unavailable", zap.Error(err))
		}
	}

	if a.Rauc != nil {
		if slot, err := a.Rauc.GetBootSlot(); err == nil {
			s.BootSlot = slot
		}
	}

	if a.Updater != nil {
		s.OTAHost = a.Updater.Hostname()
		s.OTAPort = a.Updater.Port()
		s.OTABusy = a.Updater.Busy()
	}

	if a.Systemd != nil {
		ctx, cancel := context.WithTimeout(context.Background(), busTimeout)
		defer cancel()

		if state, err := a.Systemd.UnitState(ctx, raucUnit); err == nil {
			s.OTABackend = state
		}
	}

	return s
}

// reportStatus publishes a status report if the configured interval passed
func (a *App) reportStatus() bool {
	every := a.Conf.Status().C().Interval.Seconds()
	if !clock.ElapsedAndUpdate(a.clock, &a.lastStatus, every) {
		return false
	}

	s := a.collectStatus()
	summary := s.Summary()

	log.Dbg(summary)
	log.Info("status", zap.String("summary", summary), zap.Int64("uptime", s.Uptime))
	a.notifyStatus(summary)
	return true
}
