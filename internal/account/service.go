// Package account maintains the funds snapshot: balance, margin, the derived
// available figure and risk ratio, and the risk-level transitions that fire
// when the ratio crosses the configured thresholds.
package account

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/events"
	"terminal-core/pkg/config"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/log"
)

// RiskLevel classifies the account's risk ratio.
type RiskLevel string

const (
	RiskNormal     RiskLevel = "normal"
	RiskWarning    RiskLevel = "warning"
	RiskForceClose RiskLevel = "force_close"
)

// Account is the funds snapshot. Available is always recomputed from
// balance, margin and frozen margin, never taken from the wire.
type Account struct {
	AccountID      string    `json:"account_id"`
	PreBalance     float64   `json:"pre_balance"`
	Balance        float64   `json:"balance"`
	Available      float64   `json:"available"`
	Margin         float64   `json:"margin"`
	FrozenMargin   float64   `json:"frozen_margin"`
	FrozenCommiss  float64   `json:"frozen_commission"`
	Commission     float64   `json:"commission"`
	CloseProfit    float64   `json:"close_profit"`
	PositionProfit float64   `json:"position_profit"`
	RiskRatio      float64   `json:"risk_ratio"`
	RiskLevel      RiskLevel `json:"risk_level"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FundStats tracks the session's balance trajectory.
type FundStats struct {
	InitialBalance float64 `json:"initial_balance"`
	PeakBalance    float64 `json:"peak_balance"`
	LowestBalance  float64 `json:"lowest_balance"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	SessionProfit  float64 `json:"session_profit"`
}

// Service holds the account state and publishes updates and risk-level
// transitions on the bus.
type Service struct {
	mu    sync.RWMutex
	cfg   *config.Config
	bus   *events.Bus
	acct  Account
	stats FundStats
	seen  bool
}

// NewService builds an empty account service. The account starts at
// RiskNormal until the first query lands.
func NewService(cfg *config.Config, bus *events.Bus) *Service {
	return &Service{cfg: cfg, bus: bus, acct: Account{RiskLevel: RiskNormal}}
}

// Apply ingests an account query response, recomputes the derived fields and
// publishes AccountUpdate plus any risk-level transition.
func (s *Service) Apply(field *ctp.TradingAccountField) {
	if field == nil {
		return
	}
	s.mu.Lock()
	prevLevel := s.acct.RiskLevel

	s.acct.AccountID = field.AccountID
	s.acct.PreBalance = field.PreBalance
	s.acct.Balance = field.Balance
	s.acct.Margin = field.CurrMargin
	s.acct.FrozenMargin = field.FrozenMargin
	s.acct.FrozenCommiss = field.FrozenCommission
	s.acct.Commission = field.Commission
	s.acct.CloseProfit = field.CloseProfit
	s.acct.PositionProfit = field.PositionProfit
	s.acct.Available = field.Balance - field.CurrMargin - field.FrozenMargin
	if field.Balance > 0 {
		s.acct.RiskRatio = field.CurrMargin / field.Balance
	} else {
		s.acct.RiskRatio = 0
	}
	s.acct.RiskLevel = s.classify(s.acct.RiskRatio)
	s.acct.UpdatedAt = time.Now()

	if !s.seen {
		s.seen = true
		s.stats.InitialBalance = field.Balance
		s.stats.PeakBalance = field.Balance
		s.stats.LowestBalance = field.Balance
	}
	if field.Balance > s.stats.PeakBalance {
		s.stats.PeakBalance = field.Balance
	}
	if field.Balance < s.stats.LowestBalance {
		s.stats.LowestBalance = field.Balance
	}
	if dd := s.stats.PeakBalance - field.Balance; dd > s.stats.MaxDrawdown {
		s.stats.MaxDrawdown = dd
	}
	s.stats.SessionProfit = field.Balance - s.stats.InitialBalance

	snap := s.acct
	s.mu.Unlock()

	s.bus.Publish(events.New(events.TypeAccountUpdate, snap))
	if snap.RiskLevel != prevLevel {
		log.Warn("risk level changed",
			zap.String("from", string(prevLevel)),
			zap.String("to", string(snap.RiskLevel)),
			zap.Float64("risk_ratio", snap.RiskRatio))
		s.bus.Publish(events.New(events.TypeRiskLevel, events.RiskLevelPayload{
			Level:     string(snap.RiskLevel),
			RiskRatio: snap.RiskRatio,
		}))
	}
}

func (s *Service) classify(ratio float64) RiskLevel {
	switch {
	case ratio >= s.cfg.RiskForceCloseLevel:
		return RiskForceClose
	case ratio >= s.cfg.RiskWarningLevel:
		return RiskWarning
	}
	return RiskNormal
}

// Snapshot returns the current account state.
func (s *Service) Snapshot() Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acct
}

// RiskRatio returns the current margin-over-balance ratio.
func (s *Service) RiskRatio() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.acct.RiskRatio
}

// DailyLoss returns today's loss as a positive number, zero when profitable.
func (s *Service) DailyLoss() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	loss := s.acct.PreBalance - s.acct.Balance
	if loss < 0 || s.acct.PreBalance == 0 {
		return 0
	}
	return loss
}

// Stats returns the session fund statistics.
func (s *Service) Stats() FundStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}
