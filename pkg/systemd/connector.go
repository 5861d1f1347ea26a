package systemd

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
	"github.com/LeoCommon/tracker/pkg/system/dbuscon"
)

// busConn is the part of *dbus.Conn the connector needs
type busConn interface {
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
	Signal(ch chan<- *dbus.Signal)
	RemoveSignal(ch chan<- *dbus.Signal)
	AddMatchSignal(options ...dbus.MatchOption) error
	RemoveMatchSignal(options ...dbus.MatchOption) error
}

// Connector starts units through the systemd manager and waits for their jobs
type Connector struct {
	conn    busConn
	matcher []dbus.MatchOption
	signals chan *dbus.Signal
	done    chan struct{}

	// guards jobs, held while a job is queued so its result cannot overtake the registration
	mu   sync.Mutex
	jobs map[dbus.ObjectPath]chan<- string
}

func NewConnector(client *dbuscon.Client) (*Connector, error) {
	conn, err := client.Conn()
	if err != nil {
		return nil, err
	}

	return newConnector(conn)
}

func newConnector(conn busConn) (*Connector, error) {
	c := &Connector{
		conn: conn,
		matcher: []dbus.MatchOption{
			dbus.WithMatchInterface(busManagerIface),
			dbus.WithMatchMember(memberJobRemoved),
		},
		signals: make(chan *dbus.Signal, signalChannelBacklog),
		done:    make(chan struct{}),
		jobs:    make(map[dbus.ObjectPath]chan<- string),
	}

	if err := conn.AddMatchSignal(c.matcher...); err != nil {
		return nil, err
	}

	conn.Signal(c.signals)
	go c.listenForSignals()

	log.Debug("systemd connector ready")
	return c, nil
}

func (c *Connector) listenForSignals() {
	defer close(c.done)

	for signal := range c.signals {
		if signal.Name != signalJobRemoved {
			continue
		}

		var id uint32
		var job dbus.ObjectPath
		var unit, result string
		if err := dbus.Store(signal.Body, &id, &job, &unit, &result); err != nil {
			log.Warn("malformed JobRemoved signal", zap.Error(err))
			continue
		}

		c.mu.Lock()
		if out, ok := c.jobs[job]; ok {
			out <- result
			delete(c.jobs, job)
		}
		c.mu.Unlock()
	}
}

// queue requests method for unit, the job result is sent to out if it is not nil
func (c *Connector) queue(ctx context.Context, method, unit string, out chan<- string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	manager := c.conn.Object(busDest, busPath)
	call := manager.CallWithContext(ctx, method, 0, unit, JobModeReplace)
	if call.Err != nil {
		return call.Err
	}

	if out == nil {
		return nil
	}

	var job dbus.ObjectPath
	if err := call.Store(&job); err != nil {
		return err
	}

	c.jobs[job] = out
	return nil
}

func (c *Connector) runJob(ctx context.Context, method, unit string) (bool, error) {
	// buffered, the listener must never block on an abandoned job
	ch := make(chan string, 1)
	if err := c.queue(ctx, method, unit, ch); err != nil {
		return false, err
	}

	select {
	case result := <-ch:
		log.Debug("systemd job finished", zap.String("unit", unit), zap.String("result", result))
		return result == JobResultDone, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// StartUnit starts unit and reports whether the job finished with "done"
func (c *Connector) StartUnit(ctx context.Context, unit string) (bool, error) {
	return c.runJob(ctx, methodStartUnit, unit)
}

// RestartUnit restarts unit and reports whether the job finished with "done"
func (c *Connector) RestartUnit(ctx context.Context, unit string) (bool, error) {
	return c.runJob(ctx, methodRestartUnit, unit)
}

// Reboot queues the reboot target without waiting for it
func (c *Connector) Reboot(ctx context.Context) error {
	log.Info("requesting reboot")
	return c.queue(ctx, methodStartUnit, RebootTarget, nil)
}

func unitObjectPath(unit string) dbus.ObjectPath {
	return dbus.ObjectPath(busPath + "/unit/" + EscapeObjectPath(unit))
}

// UnitState returns the ActiveState of unit
func (c *Connector) UnitState(ctx context.Context, unit string) (string, error) {
	var state dbus.Variant
	err := c.conn.Object(busDest, unitObjectPath(unit)).
		CallWithContext(ctx, methodPropertiesGet, 0, busUnitIface, propertyActiveState).
		Store(&state)
	if err != nil {
		return "", err
	}

	s, _ := state.Value().(string)
	return s, nil
}

func (c *Connector) Shutdown() error {
	err := c.conn.RemoveMatchSignal(c.matcher...)
	c.conn.RemoveSignal(c.signals)
	close(c.signals)
	<-c.done
	return err
}
