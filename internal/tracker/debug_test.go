package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugBufferRing(t *testing.T) {
	b := NewDebugBuffer(3)
	assert.Empty(t, b.Lines())

	for _, l := range []string{"1", "2", "3", "4", "5"} {
		b.Sink(l, false, true)
	}

	assert.Equal(t, []string{"3", "4", "5"}, b.Lines())
}

func TestDebugBufferPartialAndWeb(t *testing.T) {
	b := NewDebugBuffer(4)

	b.Sink("OTA Error[2]: ", false, false)
	b.Sink("web: GET /debug", true, true)
	b.Sink("OTA Connect Failed", false, true)

	assert.Equal(t, []string{"OTA Error[2]: OTA Connect Failed"}, b.Lines())
}
