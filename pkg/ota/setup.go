package ota

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
)

const (
	DefaultHostname = "SnorkTracker"
	DefaultPort     = 8266
)

// Platform is the update backend Setup configures
type Platform interface {
	SetHostname(hostname string)
	SetPort(port int)
	OnStart(fn func())
	OnEnd(fn func())
	OnProgress(fn func(p Progress))
	OnError(fn func(err *Error))
}

type Options struct {
	// Hostname defaults to DefaultHostname
	Hostname string
	// Port defaults to DefaultPort
	Port int
}

// Setup configures p and registers hooks printing the update state
func Setup(p Platform, opts Options) {
	log.Dbg("StartOTA")

	if opts.Hostname == "" {
		opts.Hostname = DefaultHostname
	}
	if opts.Port <= 0 {
		opts.Port = DefaultPort
	}

	p.SetHostname(opts.Hostname)
	p.SetPort(opts.Port)

	p.OnStart(func() {
		log.Dbg("OTA Start")
	})
	p.OnEnd(func() {
		log.Dbg("OTA End")
	})
	p.OnProgress(func(pr Progress) {
		log.Dbg("OTA Progress: " + strconv.Itoa(pr.Percent()))
	})
	p.OnError(func(err *Error) {
		log.Dbg("OTA Error["+strconv.Itoa(int(err.Kind))+"]: ", log.NoNewline())
		log.Dbg(err.Kind.Message())
		log.Warn("update failed", zap.Error(err))
	})

	log.Info("ota configured", zap.String("hostname", opts.Hostname), zap.Int("port", opts.Port))
}
