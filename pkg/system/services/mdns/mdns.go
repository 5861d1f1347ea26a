// Package mdns announces the update endpoint of the tracker with DNS-SD
package mdns

import (
	"context"

	"github.com/brutella/dnssd"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
)

const (
	ServiceType = "_snork-ota._tcp"

	TxtAuthUpload = "auth_upload"
	TxtPath       = "path"
	TxtVersion    = "version"
)

type Options struct {
	Name string
	Port int
	// Path of the upload handler
	Path string
	// AuthUpload is announced when uploads need a password
	AuthUpload bool
	Version    string
}

func txtBool(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func serviceConfig(opts Options) dnssd.Config {
	text := map[string]string{
		TxtAuthUpload: txtBool(opts.AuthUpload),
		TxtPath:       opts.Path,
	}
	if opts.Version != "" {
		text[TxtVersion] = opts.Version
	}

	return dnssd.Config{
		Name: opts.Name,
		Type: ServiceType,
		Port: opts.Port,
		Text: text,
	}
}

// Announcer answers DNS-SD queries until it is stopped
type Announcer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Announce registers the service and starts responding in the background
func Announce(ctx context.Context, opts Options) (*Announcer, error) {
	sv, err := dnssd.NewService(serviceConfig(opts))
	if err != nil {
		log.Error("dns-sd: failed to create service", zap.Error(err))
		return nil, err
	}

	rp, err := dnssd.NewResponder()
	if err != nil {
		log.Error("dns-sd: failed to create responder", zap.Error(err))
		return nil, err
	}

	if _, err := rp.Add(sv); err != nil {
		log.Error("dns-sd: failed to add service", zap.Error(err))
		return nil, err
	}

	log.Info("dns-sd: announcing update endpoint",
		zap.String("name", opts.Name),
		zap.String("type", ServiceType),
		zap.Int("port", opts.Port))

	ctx, cancel := context.WithCancel(ctx)
	a := &Announcer{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(a.done)
		if err := rp.Respond(ctx); err != nil && ctx.Err() == nil {
			log.Error("dns-sd: responder error", zap.Error(err))
		}
	}()

	return a, nil
}

// Stop withdraws the announcement and waits for the responder
func (a *Announcer) Stop() {
	if a == nil {
		return
	}

	a.cancel()
	<-a.done
}
