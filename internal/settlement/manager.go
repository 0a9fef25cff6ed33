// Package settlement tracks the daily settlement document: retrieval,
// confirmation, the archive of confirmed days, and summary statistics parsed
// from the statement text.
package settlement

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/errs"
	"terminal-core/internal/events"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/log"
)

// Document is one trading day's settlement statement.
type Document struct {
	TradingDay  string    `json:"trading_day"`
	Content     string    `json:"content"`
	Summary     Summary   `json:"summary"`
	Confirmed   bool      `json:"confirmed"`
	ConfirmedAt time.Time `json:"confirmed_at,omitempty"`
}

// Summary holds the key figures parsed from the statement text. Fields stay
// zero when the statement does not carry the label.
type Summary struct {
	Balance     float64 `json:"balance"`
	CloseProfit float64 `json:"close_profit"`
	Commission  float64 `json:"commission"`
	Deposit     float64 `json:"deposit"`
	Withdrawal  float64 `json:"withdrawal"`
}

// Report aggregates the archive of confirmed days.
type Report struct {
	Days           int     `json:"days"`
	WinningDays    int     `json:"winning_days"`
	WinRate        float64 `json:"win_rate"`
	TotalProfit    float64 `json:"total_profit"`
	MaxDailyProfit float64 `json:"max_daily_profit"`
	MaxDailyLoss   float64 `json:"max_daily_loss"`
}

// Manager accumulates settlement chunks into a pending document and drives
// the confirm flow.
type Manager struct {
	mu      sync.Mutex
	td      ctp.TraderAPI
	bus     *events.Bus
	buf     strings.Builder
	bufDay  string
	pending *Document
	archive []Document
}

// NewManager builds a settlement manager over the trader API.
func NewManager(td ctp.TraderAPI, bus *events.Bus) *Manager {
	return &Manager{td: td, bus: bus}
}

// Query requests the settlement statement for a trading day (empty means the
// current day).
func (m *Manager) Query(tradingDay string) error {
	if rc := m.td.ReqQrySettlementInfo(tradingDay); rc != 0 {
		return errs.New(errs.KindNetwork, "%s", i18n.T("session.request_rejected", rc))
	}
	return nil
}

// HandleInfo appends one statement chunk. On the last chunk the pending
// document is assembled and SettlementReady is published. A nil field with
// isLast set means the engine has no statement for the day.
func (m *Manager) HandleInfo(field *ctp.SettlementInfoField, isLast bool) {
	m.mu.Lock()
	if field != nil {
		if m.bufDay == "" {
			m.bufDay = field.TradingDay
		}
		m.buf.Write(field.Content)
	}
	if !isLast {
		m.mu.Unlock()
		return
	}
	content := ctp.DecodeText([]byte(m.buf.String()))
	day := m.bufDay
	m.buf.Reset()
	m.bufDay = ""
	if content == "" {
		m.mu.Unlock()
		log.Info("no settlement statement for the day")
		return
	}
	doc := Document{
		TradingDay: day,
		Content:    content,
		Summary:    parseSummary(content),
	}
	m.pending = &doc
	m.mu.Unlock()

	log.Info("settlement statement ready", zap.String("trading_day", day))
	m.bus.Publish(events.New(events.TypeSettlementReady, doc))
}

// Pending returns the unconfirmed document, if any.
func (m *Manager) Pending() (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pending == nil {
		return Document{}, false
	}
	return *m.pending, true
}

// Confirm acknowledges the pending settlement with the engine. It fails when
// nothing is pending.
func (m *Manager) Confirm() error {
	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return errs.New(errs.KindState, "%s", i18n.T("settlement.none"))
	}
	if m.pending.Confirmed {
		m.mu.Unlock()
		return errs.New(errs.KindState, "%s", i18n.T("settlement.confirmed"))
	}
	m.mu.Unlock()

	if rc := m.td.ReqSettlementInfoConfirm(); rc != 0 {
		return errs.New(errs.KindNetwork, "%s", i18n.T("session.request_rejected", rc))
	}
	return nil
}

// HandleConfirm archives the pending document once the engine acknowledges
// the confirmation.
func (m *Manager) HandleConfirm(confirm *ctp.SettlementInfoConfirmField, info *ctp.RspInfo) {
	if info.Failed() {
		err := errs.FromAPICode(info.ErrorID, ctp.DecodeText(info.ErrorMsg))
		log.Error("settlement confirm rejected", zap.Error(err))
		m.bus.Publish(events.New(events.TypeError, events.ErrorPayload{
			Code:    "API_ERROR",
			Message: err.Error(),
		}))
		return
	}

	m.mu.Lock()
	if m.pending == nil {
		m.mu.Unlock()
		return
	}
	m.pending.Confirmed = true
	m.pending.ConfirmedAt = time.Now()
	doc := *m.pending
	m.archive = append(m.archive, doc)
	m.pending = nil
	m.mu.Unlock()

	log.Info("settlement confirmed", zap.String("trading_day", doc.TradingDay))
	m.bus.Publish(events.New(events.TypeSettlementConfirmed, doc))
}

// Archive returns the confirmed documents in confirmation order.
func (m *Manager) Archive() []Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Document(nil), m.archive...)
}

// Report aggregates win rate and daily extremes over the archive.
func (m *Manager) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r Report
	for _, doc := range m.archive {
		p := doc.Summary.CloseProfit - doc.Summary.Commission
		r.Days++
		r.TotalProfit += p
		if p > 0 {
			r.WinningDays++
		}
		if p > r.MaxDailyProfit {
			r.MaxDailyProfit = p
		}
		if p < r.MaxDailyLoss {
			r.MaxDailyLoss = p
		}
	}
	if r.Days > 0 {
		r.WinRate = float64(r.WinningDays) / float64(r.Days)
	}
	return r
}

// summaryLabels maps statement labels (bilingual) to summary fields.
var summaryLabels = map[string]func(*Summary, float64){
	"客户权益":     func(s *Summary, v float64) { s.Balance = v },
	"client equity": func(s *Summary, v float64) { s.Balance = v },
	"平仓盈亏":     func(s *Summary, v float64) { s.CloseProfit = v },
	"close profit":  func(s *Summary, v float64) { s.CloseProfit = v },
	"手 续 费":     func(s *Summary, v float64) { s.Commission = v },
	"手续费":       func(s *Summary, v float64) { s.Commission = v },
	"commission":    func(s *Summary, v float64) { s.Commission = v },
	"入 金":        func(s *Summary, v float64) { s.Deposit = v },
	"deposit":       func(s *Summary, v float64) { s.Deposit = v },
	"出 金":        func(s *Summary, v float64) { s.Withdrawal = v },
	"withdrawal":    func(s *Summary, v float64) { s.Withdrawal = v },
}

// parseSummary scans the statement text for "label: value" lines. The format
// varies between brokers, so unknown lines are simply skipped.
func parseSummary(content string) Summary {
	var s Summary
	for _, line := range strings.Split(content, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			label, value, ok = strings.Cut(line, "：")
			if !ok {
				continue
			}
		}
		set, ok := summaryLabels[strings.ToLower(strings.TrimSpace(label))]
		if !ok {
			continue
		}
		raw := strings.ReplaceAll(strings.TrimSpace(value), ",", "")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		set(&s, v)
	}
	return s
}
