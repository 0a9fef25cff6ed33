// Package risk implements the pre-trade veto. The checker is pure: it reads
// a snapshot of account and position state and either passes or returns a
// validation error naming the violated limit. It never touches the wire and
// never mutates anything, so the order path can call it inline before the
// insert request goes out.
package risk

import (
	"sync"

	"terminal-core/internal/errs"
	"terminal-core/internal/order"
	"terminal-core/pkg/config"
	"terminal-core/pkg/i18n"
)

// Snapshot is the state the checker evaluates against. Producers fill it
// from the account service and position manager.
type Snapshot struct {
	// RiskRatio is margin over balance; zero when balance is unknown.
	RiskRatio float64
	// DailyLoss is the session's realized plus floating loss, positive when
	// losing.
	DailyLoss float64
	// PositionVolume maps instrument to total open volume across directions.
	PositionVolume map[string]int
}

// SnapshotFunc supplies the current snapshot at evaluation time.
type SnapshotFunc func() Snapshot

// Checker evaluates orders against configured limits.
type Checker struct {
	mu        sync.RWMutex
	cfg       *config.Config
	snap      SnapshotFunc
	forbidden map[string]bool
}

// NewChecker builds a checker over the configured limits. snap may be nil,
// in which case only the request-local limits apply.
func NewChecker(cfg *config.Config, snap SnapshotFunc) *Checker {
	forbidden := make(map[string]bool, len(cfg.ForbiddenInstruments))
	for _, id := range cfg.ForbiddenInstruments {
		forbidden[id] = true
	}
	return &Checker{cfg: cfg, snap: snap, forbidden: forbidden}
}

// Check vets one order request. A nil return means the order may go out.
func (c *Checker) Check(req order.Request) error {
	c.mu.RLock()
	cfg := c.cfg
	snapFn := c.snap
	forbidden := c.forbidden[req.InstrumentID]
	c.mu.RUnlock()

	if forbidden {
		return errs.New(errs.KindValidation, "%s", i18n.T("risk.forbidden", req.InstrumentID))
	}
	if cfg.MaxOrderVolume > 0 && req.Volume > cfg.MaxOrderVolume {
		return errs.New(errs.KindValidation, "%s", i18n.T("risk.order_volume", req.Volume, cfg.MaxOrderVolume))
	}

	if snapFn == nil {
		return nil
	}
	snap := snapFn()

	// Position ceiling only binds opening orders; closing reduces exposure.
	if cfg.MaxPositionVolume > 0 && req.Offset == order.Open {
		held := snap.PositionVolume[req.InstrumentID]
		if held+req.Volume > cfg.MaxPositionVolume {
			return errs.New(errs.KindValidation, "%s",
				i18n.T("risk.position_limit", held+req.Volume, cfg.MaxPositionVolume))
		}
	}
	if cfg.MaxDailyLoss > 0 && snap.DailyLoss >= cfg.MaxDailyLoss {
		return errs.New(errs.KindValidation, "%s",
			i18n.T("risk.daily_loss", snap.DailyLoss, cfg.MaxDailyLoss))
	}
	if cfg.RiskForceCloseLevel > 0 && req.Offset == order.Open && snap.RiskRatio >= cfg.RiskForceCloseLevel {
		return errs.New(errs.KindValidation, "%s",
			i18n.T("risk.ratio", snap.RiskRatio, cfg.RiskForceCloseLevel))
	}
	return nil
}
