package log

import (
	"strconv"
	"sync"

	"github.com/LeoCommon/tracker/pkg/clock"
	"go.uber.org/zap"
)

// DebugSink receives every debug line emitted through Dbg.
// fromWebServer is set when the line originates from the web server itself,
// sinks feeding the web page must not echo those lines back.
type DebugSink func(info string, fromWebServer bool, newline bool)

var (
	sinkMu    sync.RWMutex
	debugSink DebugSink
)

// SetDebugSink installs the application debug handler, nil restores the default
func SetDebugSink(sink DebugSink) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	debugSink = sink
}

type dbgOptions struct {
	fromWebServer bool
	newline       bool
}

type DbgOption func(o *dbgOptions)

// FromWebServer marks the line as emitted by the web server
func FromWebServer() DbgOption {
	return func(o *dbgOptions) {
		o.fromWebServer = true
	}
}

// NoNewline asks the sink not to terminate the line
func NoNewline() DbgOption {
	return func(o *dbgOptions) {
		o.newline = false
	}
}

// Dbg forwards info to the installed debug sink or to the debug log
func Dbg(info string, opts ...DbgOption) {
	o := dbgOptions{newline: true}
	for _, opt := range opts {
		opt(&o)
	}

	sinkMu.RLock()
	sink := debugSink
	sinkMu.RUnlock()

	if sink != nil {
		sink(info, o.fromWebServer, o.newline)
		return
	}

	zapLog.Debug(info, zap.Bool("web", o.fromWebServer))
}

// millis is swapped out by tests
var millis = func() int64 {
	return clock.Default().Millis()
}

// Trace prints ":<millis>[msg" now and "msg:<millis>]" when the returned
// function is called, use it as defer log.Trace("name")()
func Trace(msg string) func() {
	Dbg(":" + strconv.FormatInt(millis(), 10) + "[" + msg)
	return func() {
		Dbg(msg + ":" + strconv.FormatInt(millis(), 10) + "]")
	}
}
