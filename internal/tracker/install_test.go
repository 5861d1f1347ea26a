package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/LeoCommon/tracker/pkg/systemd"
)

type fakeUnits struct {
	state    string
	stateErr error
	calls    []string
}

func (f *fakeUnits) UnitState(_ context.Context, unit string) (string, error) {
	f.calls = append(f.calls, "state "+unit)
	return f.state, f.stateErr
}

func (f *fakeUnits) StartUnit(_ context.Context, unit string) (bool, error) {
	f.calls = append(f.calls, "start "+unit)
	return true, nil
}

func (f *fakeUnits) RestartUnit(_ context.Context, unit string) (bool, error) {
	f.calls = append(f.calls, "restart "+unit)
	return true, nil
}

func TestRaucInstallerBringsUpBackend(t *testing.T) {
	tests := []struct {
		name     string
		state    string
		stateErr error
		calls    []string
	}{
		{"active", systemd.ServiceStateActive, nil, []string{"state " + raucUnit}},
		{"failed", systemd.ServiceStateFailed, nil, []string{"state " + raucUnit, "restart " + raucUnit}},
		{"inactive", systemd.ServiceStateInactive, nil, []string{"state " + raucUnit, "start " + raucUnit}},
		{"unknown", "", errors.New("no unit"), []string{"state " + raucUnit}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units := &fakeUnits{state: tt.state, stateErr: tt.stateErr}
			fr := &fakeRauc{}
			ri := &raucInstaller{rauc: fr, units: units}

			started := false
			err := ri.Install(context.Background(), "/tmp/b.raucb", func() { started = true }, func(int32, string) {})

			assert.NoError(t, err)
			assert.True(t, started)
			assert.Equal(t, []string{"/tmp/b.raucb"}, fr.installed)
			assert.Equal(t, tt.calls, units.calls)
		})
	}
}

func TestRaucInstallerWithoutSystemd(t *testing.T) {
	fr := &fakeRauc{}
	ri := &raucInstaller{rauc: fr}

	assert.NoError(t, ri.Install(context.Background(), "/tmp/b.raucb", func() {}, func(int32, string) {}))
	assert.Len(t, fr.installed, 1)
}
