package rauc

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

type fakeObject struct {
	dbus.BusObject

	conn       *fakeConn
	calls      []string
	installErr error
	result     int32
	progress   []int32
	props      map[string]dbus.Variant
}

func (o *fakeObject) CallWithContext(_ context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	o.calls = append(o.calls, method)

	switch method {
	case methodMark:
		return &dbus.Call{Body: []interface{}{"rootfs.0", "marked slot rootfs.0 as " + args[0].(string)}}
	case methodGetPrimary:
		return &dbus.Call{Body: []interface{}{"rootfs.1"}}
	case methodInstallBundle:
		if o.installErr != nil {
			return &dbus.Call{Err: o.installErr}
		}

		for _, p := range o.progress {
			o.conn.emit(signalPropsChanged, DbusInstallerIface, map[string]dbus.Variant{
				progressPropertyName: dbus.MakeVariant([]interface{}{p, "Installing", int32(1)}),
			}, []string{})
		}
		o.conn.emit(signalCompleted, o.result)
		return &dbus.Call{}
	}

	return &dbus.Call{Err: errors.New("unknown method " + method)}
}

func (o *fakeObject) GetProperty(p string) (dbus.Variant, error) {
	v, ok := o.props[p]
	if !ok {
		return dbus.Variant{}, errors.New("no such property")
	}
	return v, nil
}

type fakeConn struct {
	object   *fakeObject
	signals  chan<- *dbus.Signal
	matches  int
	removed  bool
	matchErr error
}

func (c *fakeConn) emit(name string, body ...interface{}) {
	c.signals <- &dbus.Signal{Path: DbusObjectPath, Name: name, Body: body}
}

func (c *fakeConn) Object(string, dbus.ObjectPath) dbus.BusObject { return c.object }
func (c *fakeConn) Signal(ch chan<- *dbus.Signal) { c.signals = ch }
func (c *fakeConn) RemoveSignal(chan<- *dbus.Signal) { c.removed = true }

func (c *fakeConn) AddMatchSignal(...dbus.MatchOption) error {
	if c.matchErr != nil {
		return c.matchErr
	}
	c.matches++
	return nil
}

func (c *fakeConn) RemoveMatchSignal(...dbus.MatchOption) error {
	c.matches--
	return nil
}

func newFake() (*fakeConn, *raucDbusService) {
	conn := &fakeConn{}
	conn.object = &fakeObject{conn: conn, props: map[string]dbus.Variant{
		propertyBootSlot:  dbus.MakeVariant("A"),
		propertyLastError: dbus.MakeVariant("signature verification failed"),
	}}
	return conn, newDbusService(conn)
}

func TestMarkBootedAndSlots(t *testing.T) {
	_, s := newFake()

	slot, err := s.MarkBooted(SlotStatusGood)
	assert.NoError(t, err)
	assert.Equal(t, "rootfs.0", slot)

	boot, err := s.GetBootSlot()
	assert.NoError(t, err)
	assert.Equal(t, "A", boot)

	primary, err := s.GetPrimary()
	assert.NoError(t, err)
	assert.Equal(t, "rootfs.1", primary)
}

func TestInstallSuccess(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn, s := newFake()
	conn.object.progress = []int32{0, 40, 100}

	started := 0
	var seen []int32
	err := s.Install(context.Background(), "/tmp/update.raucb", func() { started++ }, func(p int32, msg string) {
		assert.Equal(t, "Installing", msg)
		seen = append(seen, p)
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, []int32{0, 40, 100}, seen)
	assert.Equal(t, 0, conn.matches)
	assert.True(t, conn.removed)
}

func TestInstallRejected(t *testing.T) {
	conn, s := newFake()
	conn.object.installErr = errors.New("bundle not found")

	started := false
	err := s.Install(context.Background(), "/missing.raucb", func() { started = true }, nil)
	assert.EqualError(t, err, "bundle not found")
	assert.False(t, started)
	assert.Equal(t, 0, conn.matches)
}

func TestInstallFailedResult(t *testing.T) {
	conn, s := newFake()
	conn.object.result = 1

	err := s.Install(context.Background(), "/tmp/bad.raucb", nil, nil)
	assert.ErrorIs(t, err, &InstallError{})

	var ie *InstallError
	assert.True(t, errors.As(err, &ie))
	assert.Equal(t, int32(1), ie.Result)
	assert.Equal(t, "signature verification failed", ie.LastError)
}

func TestInstallMatchFailure(t *testing.T) {
	conn, s := newFake()
	conn.matchErr = errors.New("bus gone")

	err := s.Install(context.Background(), "/tmp/update.raucb", nil, nil)
	assert.Error(t, err)
	assert.Empty(t, conn.object.calls)
}

type silentObject struct {
	fakeObject
}

func (o *silentObject) CallWithContext(context.Context, string, dbus.Flags, ...interface{}) *dbus.Call {
	return &dbus.Call{}
}

func TestInstallCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	conn := &fakeConn{}
	s := &raucDbusService{conn: conn, object: &silentObject{}}

	ctx, cancel := context.WithCancel(context.Background())
	err := s.Install(ctx, "/tmp/update.raucb", cancel, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseProgress(t *testing.T) {
	body := []interface{}{DbusInstallerIface, map[string]dbus.Variant{
		progressPropertyName: dbus.MakeVariant([]interface{}{int32(25), "Copying", int32(2)}),
	}, []string{}}

	p, msg, ok := parseProgress(body)
	assert.True(t, ok)
	assert.Equal(t, int32(25), p)
	assert.Equal(t, "Copying", msg)

	_, _, ok = parseProgress([]interface{}{"org.other.Iface", map[string]dbus.Variant{}})
	assert.False(t, ok)

	_, _, ok = parseProgress([]interface{}{DbusInstallerIface, map[string]dbus.Variant{
		"Operation": dbus.MakeVariant("installing"),
	}})
	assert.False(t, ok)

	_, _, ok = parseProgress(nil)
	assert.False(t, ok)
}
