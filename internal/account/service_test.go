package account

import (
	"math"
	"testing"
	"time"

	"terminal-core/internal/events"
	"terminal-core/pkg/config"
	"terminal-core/pkg/ctp"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.MdFrontAddr = "tcp://md:1"
	cfg.TraderFrontAddr = "tcp://td:1"
	cfg.BrokerID = "9999"
	return cfg
}

func field(balance, margin, frozen float64) *ctp.TradingAccountField {
	return &ctp.TradingAccountField{
		AccountID:    "100001",
		PreBalance:   1_000_000,
		Balance:      balance,
		Available:    -1, // wire value must be ignored
		CurrMargin:   margin,
		FrozenMargin: frozen,
	}
}

func TestAvailableRecomputed(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	s := NewService(testConfig(), bus)

	s.Apply(field(1_000_000, 200_000, 50_000))
	acct := s.Snapshot()
	want := 1_000_000.0 - 200_000 - 50_000
	if acct.Available != want {
		t.Fatalf("Available = %v, want recomputed %v", acct.Available, want)
	}
	if math.Abs(acct.RiskRatio-0.2) > 1e-9 {
		t.Fatalf("RiskRatio = %v, want 0.2", acct.RiskRatio)
	}
	if acct.RiskLevel != RiskNormal {
		t.Fatalf("RiskLevel = %v, want normal", acct.RiskLevel)
	}
}

func TestZeroBalance(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	s := NewService(testConfig(), bus)

	s.Apply(field(0, 0, 0))
	if r := s.RiskRatio(); r != 0 {
		t.Fatalf("RiskRatio = %v, want 0 for zero balance", r)
	}
}

func TestRiskLevelTransitions(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	levels, unsub := bus.Subscribe(8, events.TypeRiskLevel)
	defer unsub()
	s := NewService(testConfig(), bus)

	expectLevel := func(want string) {
		t.Helper()
		select {
		case e := <-levels:
			payload := e.Payload.(events.RiskLevelPayload)
			if payload.Level != want {
				t.Fatalf("risk level event = %s, want %s", payload.Level, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no risk level event, want %s", want)
		}
	}
	expectNoEvent := func() {
		t.Helper()
		select {
		case e := <-levels:
			t.Fatalf("unexpected risk level event %+v", e.Payload)
		default:
		}
	}

	// 0.5: stays normal, no transition event.
	s.Apply(field(1_000_000, 500_000, 0))
	expectNoEvent()

	// 0.85: warning.
	s.Apply(field(1_000_000, 850_000, 0))
	expectLevel("warning")

	// 0.92: force close.
	s.Apply(field(1_000_000, 920_000, 0))
	expectLevel("force_close")

	// Same level again: no new event.
	s.Apply(field(1_000_000, 950_000, 0))
	expectNoEvent()

	// Back under the warning level: normal again.
	s.Apply(field(1_000_000, 100_000, 0))
	expectLevel("normal")
}

func TestFundStats(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	s := NewService(testConfig(), bus)

	s.Apply(field(1_000_000, 0, 0))
	s.Apply(field(1_100_000, 0, 0))
	s.Apply(field(900_000, 0, 0))
	s.Apply(field(950_000, 0, 0))

	st := s.Stats()
	if st.InitialBalance != 1_000_000 {
		t.Fatalf("InitialBalance = %v", st.InitialBalance)
	}
	if st.PeakBalance != 1_100_000 || st.LowestBalance != 900_000 {
		t.Fatalf("peak/lowest = %v/%v", st.PeakBalance, st.LowestBalance)
	}
	if st.MaxDrawdown != 200_000 {
		t.Fatalf("MaxDrawdown = %v, want 200000", st.MaxDrawdown)
	}
	if st.SessionProfit != -50_000 {
		t.Fatalf("SessionProfit = %v, want -50000", st.SessionProfit)
	}
}

func TestDailyLoss(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()
	s := NewService(testConfig(), bus)

	s.Apply(field(980_000, 0, 0)) // pre-balance is 1,000,000
	if got := s.DailyLoss(); got != 20_000 {
		t.Fatalf("DailyLoss = %v, want 20000", got)
	}
	s.Apply(field(1_020_000, 0, 0))
	if got := s.DailyLoss(); got != 0 {
		t.Fatalf("DailyLoss = %v, want 0 when profitable", got)
	}
}
