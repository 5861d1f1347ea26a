package tracker

import (
	"context"

	"go.uber.org/zap"

	"github.com/LeoCommon/tracker/pkg/log"
	"github.com/LeoCommon/tracker/pkg/system/services/rauc"
	"github.com/LeoCommon/tracker/pkg/systemd"
)

type unitController interface {
	UnitState(ctx context.Context, unit string) (string, error)
	StartUnit(ctx context.Context, unit string) (bool, error)
	RestartUnit(ctx context.Context, unit string) (bool, error)
}

// raucInstaller brings the RAUC service up before handing it a bundle
type raucInstaller struct {
	rauc  rauc.Service
	units unitController
}

func (r *raucInstaller) ensureBackend(ctx context.Context) {
	if r.units == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, busTimeout)
	defer cancel()

	state, err := r.units.UnitState(ctx, raucUnit)
	if err != nil {
		log.Warn("could not read the OTA backend state", zap.Error(err))
		return
	}

	var ok bool
	switch state {
	case systemd.ServiceStateFailed:
		log.Warn("OTA backend failed, restarting it", zap.String("unit", raucUnit))
		ok, err = r.units.RestartUnit(ctx, raucUnit)
	case systemd.ServiceStateInactive:
		ok, err = r.units.StartUnit(ctx, raucUnit)
	default:
		return
	}

	if err != nil || !ok {
		log.Error("OTA backend could not be brought up", zap.String("state", state), zap.Bool("done", ok), zap.Error(err))
	}
}

func (r *raucInstaller) Install(ctx context.Context, bundle string, started func(), progress func(int32, string)) error {
	r.ensureBackend(ctx)
	return r.rauc.Install(ctx, bundle, started, progress)
}
