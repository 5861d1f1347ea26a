// Package rauc talks to the RAUC update service, the OTA backend of the device.
package rauc

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/LeoCommon/tracker/pkg/system/dbuscon"
)

const (
	DbusServiceDomain  = "de.pengutronix.rauc"
	DbusObjectPath     = "/"
	DbusInstallerIface = DbusServiceDomain + ".Installer"
)

type SlotStatusType string

const (
	SlotStatusGood       SlotStatusType = "good"
	SlotStatusBad        SlotStatusType = "bad"
	MarkedSlotIdentifier string         = "booted"
)

func (c SlotStatusType) String() string {
	return string(c)
}

type Service interface {
	// MarkBooted marks the currently booted slot
	MarkBooted(status SlotStatusType) (slotName string, err error)
	// GetBootSlot returns the booted slot in A/B format, not in rootfs.0!
	GetBootSlot() (string, error)
	GetPrimary() (string, error)
	// Install installs bundle and blocks until RAUC reports completion.
	// started is called once the installation was accepted, progress for
	// every progress update RAUC emits. Both may be nil.
	Install(ctx context.Context, bundle string, started func(), progress func(percent int32, message string)) error
	Shutdown()
}

// InstallError is returned when RAUC completed an installation with a non-zero result
type InstallError struct {
	Result    int32
	LastError string
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("rauc installation failed with result %d: %s", e.Result, e.LastError)
}

func (e *InstallError) Is(target error) bool {
	_, ok := target.(*InstallError)
	return ok
}

// busConn is the part of *dbus.Conn the service needs
type busConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
}

func NewService(client *dbuscon.Client) (Service, error) {
	if client == nil {
		return nil, &dbuscon.NotConnectedError{}
	}

	conn, ok := client.Connected()
	if !ok {
		return nil, &dbuscon.NotConnectedError{}
	}

	return newDbusService(conn), nil
}

func newDbusService(conn busConn) *raucDbusService {
	s := &raucDbusService{conn: conn}
	s.initialize()
	return s
}
