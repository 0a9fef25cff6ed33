package risk

import (
	"testing"

	"terminal-core/internal/errs"
	"terminal-core/internal/order"
	"terminal-core/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MdFrontAddr = "tcp://md:1"
	cfg.TraderFrontAddr = "tcp://td:1"
	cfg.BrokerID = "9999"
	cfg.MaxOrderVolume = 10
	cfg.MaxPositionVolume = 50
	cfg.MaxDailyLoss = 10000
	cfg.ForbiddenInstruments = []string{"banned01"}
	return cfg
}

func openOrder(id string, volume int) order.Request {
	return order.Request{InstrumentID: id, Direction: order.Buy, Offset: order.Open, Price: 3500, Volume: volume}
}

func TestCheck(t *testing.T) {
	snap := Snapshot{
		RiskRatio:      0.5,
		DailyLoss:      0,
		PositionVolume: map[string]int{"rb2610": 45},
	}
	tests := []struct {
		name    string
		req     order.Request
		snap    Snapshot
		wantErr bool
	}{
		{"within limits", openOrder("rb2610", 5), snap, false},
		{"forbidden instrument", openOrder("banned01", 1), snap, true},
		{"order volume over limit", openOrder("rb2610", 11), snap, true},
		{"position would exceed limit", openOrder("rb2610", 6), snap, true},
		{
			"closing ignores position ceiling",
			order.Request{InstrumentID: "rb2610", Direction: order.Sell, Offset: order.Close, Price: 3500, Volume: 10},
			snap,
			false,
		},
		{
			"daily loss breached",
			openOrder("rb2610", 1),
			Snapshot{DailyLoss: 10000, PositionVolume: map[string]int{}},
			true,
		},
		{
			"risk ratio at force close blocks opens",
			openOrder("rb2610", 1),
			Snapshot{RiskRatio: 0.9, PositionVolume: map[string]int{}},
			true,
		},
		{
			"risk ratio at force close still allows closes",
			order.Request{InstrumentID: "rb2610", Direction: order.Sell, Offset: order.Close, Price: 3500, Volume: 1},
			Snapshot{RiskRatio: 0.95, PositionVolume: map[string]int{}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.snap
			c := NewChecker(testConfig(), func() Snapshot { return s })
			err := c.Check(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errs.Is(err, errs.KindValidation) {
				t.Fatalf("Check() error kind = %v, want validation", err)
			}
		})
	}
}

func TestCheckWithoutSnapshot(t *testing.T) {
	c := NewChecker(testConfig(), nil)
	if err := c.Check(openOrder("rb2610", 5)); err != nil {
		t.Fatalf("Check() error = %v, want nil with request-local limits only", err)
	}
	if err := c.Check(openOrder("rb2610", 11)); err == nil {
		t.Fatalf("order volume limit should apply without a snapshot")
	}
}

func TestZeroLimitsDisableChecks(t *testing.T) {
	cfg := testConfig()
	cfg.MaxOrderVolume = 0
	cfg.MaxPositionVolume = 0
	cfg.MaxDailyLoss = 0
	c := NewChecker(cfg, func() Snapshot {
		return Snapshot{DailyLoss: 1e9, PositionVolume: map[string]int{"rb2610": 1e6}}
	})
	if err := c.Check(openOrder("rb2610", 1000)); err != nil {
		t.Fatalf("Check() error = %v, want limits disabled at zero", err)
	}
}
