package rauc

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
)

const (
	dbusPropertiesIface   = "org.freedesktop.DBus.Properties"
	memberPropsChanged    = "PropertiesChanged"
	memberCompleted       = "Completed"
	signalPropsChanged    = dbusPropertiesIface + "." + memberPropsChanged
	signalCompleted       = DbusInstallerIface + "." + memberCompleted
	methodInstallBundle   = DbusInstallerIface + ".InstallBundle"
	methodMark            = DbusInstallerIface + ".Mark"
	methodGetPrimary      = DbusInstallerIface + ".GetPrimary"
	propertyBootSlot      = DbusInstallerIface + ".BootSlot"
	propertyLastError     = DbusInstallerIface + ".LastError"
	progressPropertyName  = "Progress"
	installSignalCapacity = 10
)

type raucDbusService struct {
	conn   busConn
	object dbus.BusObject
}

// MarkBooted marks the currently booted slot
func (s *raucDbusService) MarkBooted(status SlotStatusType) (slotName string, err error) {
	slot, _, err := s.Mark(MarkedSlotIdentifier, status)
	if err != nil {
		log.Error("Could not mark slot with rauc", zap.Error(err))
		return slot, err
	}

	log.Debug("Marked slot", zap.String("slot", slot), zap.String("status", status.String()))
	return slot, err
}

func (s *raucDbusService) Mark(slotIdentifier string, status SlotStatusType) (slotName string, message string, err error) {
	err = s.object.CallWithContext(context.Background(), methodMark, 0, status.String(), slotIdentifier).Store(&slotName, &message)
	return
}

// GetBootSlot returns the booted slot in A/B format, not in rootfs.0!
func (s *raucDbusService) GetBootSlot() (string, error) {
	return s.stringProperty(propertyBootSlot)
}

// GetPrimary returns the primary slot
func (s *raucDbusService) GetPrimary() (primary string, err error) {
	err = s.object.CallWithContext(context.Background(), methodGetPrimary, 0).Store(&primary)
	return
}

func (s *raucDbusService) stringProperty(name string) (string, error) {
	v, err := s.object.GetProperty(name)
	if err != nil {
		return "", err
	}

	str, ok := v.Value().(string)
	if !ok {
		return "", errors.New("property " + name + " is not a string")
	}

	return str, nil
}

func (s *raucDbusService) matchers() [][]dbus.MatchOption {
	return [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(DbusObjectPath),
			dbus.WithMatchInterface(DbusInstallerIface),
			dbus.WithMatchMember(memberCompleted),
		},
		{
			dbus.WithMatchObjectPath(DbusObjectPath),
			dbus.WithMatchInterface(dbusPropertiesIface),
			dbus.WithMatchMember(memberPropsChanged),
			dbus.WithMatchArg(0, DbusInstallerIface),
		},
	}
}

// Install subscribes to the installer signals before the installation is
// requested so no progress or completion can be missed.
func (s *raucDbusService) Install(ctx context.Context, bundle string, started func(), progress func(percent int32, message string)) error {
	signals := make(chan *dbus.Signal, installSignalCapacity)
	s.conn.Signal(signals)
	defer s.conn.RemoveSignal(signals)

	for _, m := range s.matchers() {
		if err := s.conn.AddMatchSignal(m...); err != nil {
			return err
		}
		defer func(m []dbus.MatchOption) {
			_ = s.conn.RemoveMatchSignal(m...)
		}(m)
	}

	call := s.object.CallWithContext(ctx, methodInstallBundle, 0, bundle, map[string]dbus.Variant{})
	if call.Err != nil {
		log.Error("rauc refused the bundle", zap.String("bundle", bundle), zap.Error(call.Err))
		return call.Err
	}

	log.Info("rauc installation started", zap.String("bundle", bundle))
	if started != nil {
		started()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case signal, ok := <-signals:
			if !ok {
				return errors.New("signal channel closed during installation")
			}

			if signal.Path != DbusObjectPath {
				continue
			}

			switch signal.Name {
			case signalPropsChanged:
				percent, message, ok := parseProgress(signal.Body)
				if ok && progress != nil {
					progress(percent, message)
				}

			case signalCompleted:
				var result int32
				if err := dbus.Store(signal.Body, &result); err != nil {
					return err
				}

				if result == 0 {
					log.Info("rauc installation completed", zap.String("bundle", bundle))
					return nil
				}

				lastError, err := s.stringProperty(propertyLastError)
				if err != nil {
					log.Warn("could not read rauc last error", zap.Error(err))
				}

				return &InstallError{Result: result, LastError: lastError}
			}
		}
	}
}

// parseProgress extracts the Progress (percentage, message, depth) tuple from
// a PropertiesChanged body
func parseProgress(body []interface{}) (int32, string, bool) {
	if len(body) < 2 {
		return 0, "", false
	}

	iface, ok := body[0].(string)
	if !ok || iface != DbusInstallerIface {
		return 0, "", false
	}

	changed, ok := body[1].(map[string]dbus.Variant)
	if !ok {
		return 0, "", false
	}

	v, ok := changed[progressPropertyName]
	if !ok {
		return 0, "", false
	}

	tuple, ok := v.Value().([]interface{})
	if !ok || len(tuple) < 2 {
		return 0, "", false
	}

	percent, ok := tuple[0].(int32)
	if !ok {
		return 0, "", false
	}

	message, _ := tuple[1].(string)
	return percent, message, true
}

func (s *raucDbusService) Shutdown() {
	// the connection belongs to the dbus client
}

func (s *raucDbusService) initialize() {
	s.object = s.conn.Object(DbusServiceDomain, DbusObjectPath)
}
