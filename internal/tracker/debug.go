package tracker

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
)

// DebugBuffer keeps the last debug lines for the web page
type DebugBuffer struct {
	mu      sync.Mutex
	lines   []string
	next    int
	full    bool
	partial strings.Builder
}

func NewDebugBuffer(size int) *DebugBuffer {
	if size <= 0 {
		size = 1
	}
	return &DebugBuffer{lines: make([]string, size)}
}

// Sink is installed with log.SetDebugSink. Every line goes to the log, lines
// emitted by the web server are not kept so serving the page cannot feed itself.
func (b *DebugBuffer) Sink(info string, fromWebServer bool, newline bool) {
	if fromWebServer {
		log.Debug(info, zap.Bool("web", true))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.partial.WriteString(info)
	if !newline {
		return
	}

	line := b.partial.String()
	b.partial.Reset()
	log.Debug(line)

	b.lines[b.next] = line
	b.next = (b.next + 1) % len(b.lines)
	if b.next == 0 {
		b.full = true
	}
}

// Lines returns the kept lines, oldest first
func (b *DebugBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.full {
		return append([]string(nil), b.lines[:b.next]...)
	}

	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.next:]...)
	return append(out, b.lines[:b.next]...)
}
