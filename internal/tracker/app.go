// Package tracker wires the tracker daemon: configuration, system services,
// the update endpoint, status reports and the status web server.
package tracker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/internal/config"
	"github.com/LeoCommon/tracker/pkg/clock"
	"github.com/LeoCommon/tracker/pkg/log"
	"github.com/LeoCommon/tracker/pkg/misc"
	"github.com/LeoCommon/tracker/pkg/ota"
	"github.com/LeoCommon/tracker/pkg/system/dbuscon"
	"github.com/LeoCommon/tracker/pkg/system/sensors"
	"github.com/LeoCommon/tracker/pkg/system/services/mdns"
	"github.com/LeoCommon/tracker/pkg/system/services/net"
	"github.com/LeoCommon/tracker/pkg/system/services/rauc"
	"github.com/LeoCommon/tracker/pkg/systemd"
)

const (
	raucUnit        = "rauc.service"
	busTimeout      = 5 * time.Second
	loopStep        = time.Second
	shutdownTimeout = 5 * time.Second
	rebootDelay     = 2 * time.Second
	networkTimeout  = 60 * time.Second
)

// Version is set at build time with -ldflags "-X github.com/LeoCommon/tracker/internal/tracker.Version=..."
var Version = "dev"

type wifiSource interface {
	WifiStatus() (net.WifiStatus, error)
}

type connectivitySource interface {
	HasConnectivity() bool
}

// App global app struct that contains all services
type App struct {
	Conf  *config.Manager
	Debug *DebugBuffer

	Bus     *dbuscon.Client
	Systemd *systemd.Connector
	Rauc    rauc.Service
	Network net.NetworkService

	// narrowed views of Network
	Wifi         wifiSource
	Connectivity connectivitySource

	Updater   *ota.Updater
	Announcer *mdns.Announcer

	clock          clock.Clock
	hwmonRoot      string
	networkTimeout time.Duration
	lastStatus     int64

	watchdog      bool
	watchdogEvery int64
	lastWatchdog  int64

	servers []*http.Server
}

func newApp(conf *config.Manager, c clock.Clock) *App {
	a := &App{
		Conf:           conf,
		Debug:          NewDebugBuffer(conf.Status().C().DebugLines),
		clock:          c,
		hwmonRoot:      sensors.HwmonRoot,
		networkTimeout: networkTimeout,
	}

	if wd := systemd.WatchdogInterval(); wd > 0 {
		a.watchdog = true
		a.watchdogEvery = int64(wd / 2 / time.Second)
	}

	log.SetDebugSink(a.Debug.Sink)
	return a
}

func initLogging(flags config.CLIFlags, tc config.TrackerConfig) {
	debug := flags.Debug || tc.Debug

	port := flags.Serial
	if port == "" {
		port = tc.SerialConsole
	}

	if port != "" {
		err := log.InitWithSerial(debug, port, tc.SerialBaudrate)
		if err == nil {
			return
		}

		log.Init(debug)
		log.Warn("serial console unavailable", zap.String("port", port), zap.Error(err))
		return
	}

	if debug != flags.Debug {
		log.Init(debug)
	}
}

// Setup loads the configuration and connects all services. Services that
// are unavailable are logged and left nil.
func Setup(flags config.CLIFlags) (*App, error) {
	log.Init(flags.Debug)
	log.Info("tracker starting", zap.String("version", Version))

	conf := config.NewManager()
	if err := conf.Load(flags.ConfigPath, true); err != nil {
		log.Error("could not load the configuration", zap.String("path", flags.ConfigPath), zap.Error(err))
		return nil, err
	}

	initLogging(flags, conf.Tracker().C())

	a := newApp(conf, clock.Default())
	a.connectBus()
	a.setupOTA()

	return a, nil
}

func (a *App) connectBus() {
	a.Bus = dbuscon.NewClient()
	if err := a.Bus.Connect(); err != nil {
		log.Warn("running without system bus services", zap.Error(err))
		return
	}

	if c, err := systemd.NewConnector(a.Bus); err != nil {
		log.Error("systemd connector could not be started", zap.Error(err))
	} else {
		a.Systemd = c
	}

	if r, err := rauc.NewService(a.Bus); err != nil {
		log.Error("OTA backend could not be initialized", zap.Error(err))
	} else {
		a.Rauc = r
	}

	if n, err := net.NewService(a.Bus, a.Conf.Status().C().WifiInterface); err != nil {
		log.Error("Network service could not be started", zap.Error(err))
	} else {
		a.Network = n
		a.Wifi = n
		a.Connectivity = n
	}
}

func (a *App) setupOTA() {
	oc := a.Conf.OTA().C()

	var installer ota.Installer
	if a.Rauc != nil {
		ri := &raucInstaller{rauc: a.Rauc}
		if a.Systemd != nil {
			ri.units = a.Systemd
		}
		installer = ri
	}

	a.Updater = ota.NewUpdater(installer, ota.Config{BundleDir: oc.BundleDir, Password: oc.Password})
	ota.Setup(a.Updater, ota.Options{Hostname: oc.Hostname, Port: oc.Port})
}

// background runs while the main loop waits
func (a *App) background() {
	if a.watchdog && clock.ElapsedAndUpdate(a.clock, &a.lastWatchdog, a.watchdogEvery) {
		if err := systemd.EntertainWatchdog(); err != nil {
			log.Debug("watchdog notification failed", zap.Error(err))
		}
	}
}

func (a *App) notifyStatus(summary string) {
	if err := systemd.Status(summary); err != nil && !errors.Is(err, systemd.ErrNoNotifySocket) {
		log.Debug("status notification failed", zap.Error(err))
	}
}

// waitForNetwork blocks until the network has connectivity or the timeout passed
func (a *App) waitForNetwork(ctx context.Context) error {
	if a.Connectivity == nil {
		return nil
	}

	start := a.clock.Millis()
	for !a.Connectivity.HasConnectivity() {
		if time.Duration(a.clock.Millis()-start)*time.Millisecond >= a.networkTimeout {
			return misc.NewTimedOutError("network connectivity", a.networkTimeout)
		}

		if err := clock.DelayWith(ctx, a.clock, loopStep, a.background); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) markBooted() {
	if a.Rauc == nil {
		return
	}

	slot, err := a.Rauc.MarkBooted(rauc.SlotStatusGood)
	if err != nil {
		log.Error("OTA HealthCheck marking failed, continuing operation", zap.String("slot", slot), zap.Error(err))
		return
	}

	log.Info("marked slot as good", zap.String("slot", slot))
}

func (a *App) announce(ctx context.Context) {
	if !a.Conf.OTA().C().Announce {
		return
	}

	ann, err := mdns.Announce(ctx, mdns.Options{
		Name:       a.Updater.Hostname(),
		Port:       a.Updater.Port(),
		Path:       updatePath,
		AuthUpload: a.Updater.PasswordProtected(),
		Version:    Version,
	})
	if err != nil {
		log.Warn("update endpoint is not announced", zap.Error(err))
		return
	}

	a.Announcer = ann
}

// Run serves the web endpoints and reports the status until ctx is done
func (a *App) Run(ctx context.Context) error {
	defer log.Trace("run")()

	if err := a.startServers(); err != nil {
		return err
	}

	clock.SetDelayLoop(a.background)

	if err := systemd.Ready(); err != nil {
		log.Debug("not notifying the service manager", zap.Error(err))
	}

	if err := a.waitForNetwork(ctx); err != nil {
		if errors.Is(err, &misc.TimedOutError{}) {
			log.Warn("continuing without network", zap.Error(err))
		} else {
			return nil
		}
	}

	a.announce(ctx)
	a.markBooted()

	for {
		a.reportStatus()

		if err := clock.Delay(ctx, loopStep); err != nil {
			log.Info("main loop stopped", zap.Error(err))
			return nil
		}
	}
}

// requestReboot reboots into the freshly installed slot if configured
func (a *App) requestReboot() {
	if !a.Conf.OTA().C().Reboot {
		return
	}

	if a.Systemd == nil {
		log.Warn("update installed, reboot required")
		return
	}

	log.Dbg("rebooting into the new slot")
	time.AfterFunc(rebootDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), busTimeout)
		defer cancel()

		if err := a.Systemd.Reboot(ctx); err != nil {
			log.Error("Could not reboot, thats problematic ...", zap.Error(err))
		}
	})
}

func (a *App) Shutdown() {
	clock.SetDelayLoop(nil)

	if err := systemd.Stopping(); err != nil {
		log.Debug("not notifying the service manager", zap.Error(err))
	}

	a.Announcer.Stop()
	a.stopServers()

	if a.Network != nil {
		a.Network.Shutdown()
	}

	if a.Rauc != nil {
		a.Rauc.Shutdown()
	}

	if a.Systemd != nil {
		_ = a.Systemd.Shutdown()
	}

	if err := a.Bus.Close(); err != nil {
		log.Debug("closing the system bus failed", zap.Error(err))
	}

	log.SetDebugSink(nil)
	log.CloseSerial()
	_ = log.Sync()
}
