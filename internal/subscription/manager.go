// Package subscription tracks market-data subscription intent per instrument
// and reconciles it against the market front, including replay after a
// reconnect and bounded retries on rejection.
package subscription

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/errs"
	"terminal-core/internal/events"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/log"
)

// Status of one instrument's subscription.
type Status int

const (
	StatusPending Status = iota
	StatusActive
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// maxRetries bounds how many rejections an instrument tolerates before it is
// parked in Failed.
const maxRetries = 3

type entry struct {
	status      Status
	retries     int
	dataCount   int64
	lastRequest time.Time
	lastCode    int
	lastMsg     string
}

// Stats summarizes the book for diagnostics.
type Stats struct {
	Total   int
	Active  int
	Pending int
	Failed  int
}

// Info is the per-instrument view of the book.
type Info struct {
	Status      Status
	Retries     int
	DataCount   int64
	LastRequest time.Time
	LastCode    int
	LastMsg     string
}

// Manager is the subscription book. Wire calls go through the market API;
// responses arrive via the Handle methods from the dispatcher.
type Manager struct {
	mu  sync.Mutex
	md  ctp.MarketAPI
	bus *events.Bus
	sub map[string]*entry
}

// NewManager builds an empty subscription book.
func NewManager(md ctp.MarketAPI, bus *events.Bus) *Manager {
	return &Manager{md: md, bus: bus, sub: make(map[string]*entry)}
}

// Subscribe requests market data for the given instruments. Instruments that
// are already pending or active are skipped, so repeated calls produce at
// most one wire request per instrument. A previously failed instrument gets a
// fresh retry budget.
func (m *Manager) Subscribe(instrumentIDs []string) error {
	now := time.Now()
	m.mu.Lock()
	var wire []string
	for _, id := range instrumentIDs {
		if id == "" {
			continue
		}
		e, ok := m.sub[id]
		if ok && (e.status == StatusPending || e.status == StatusActive) {
			continue
		}
		if !ok {
			e = &entry{}
			m.sub[id] = e
		}
		e.status = StatusPending
		e.retries = 0
		e.lastRequest = now
		wire = append(wire, id)
	}
	m.mu.Unlock()

	if len(wire) == 0 {
		return nil
	}
	if rc := m.md.SubscribeMarketData(wire); rc != 0 {
		m.mu.Lock()
		for _, id := range wire {
			delete(m.sub, id)
		}
		m.mu.Unlock()
		return errs.New(errs.KindNetwork, "%s", i18n.T("session.request_rejected", rc))
	}
	log.Debug("subscribe requested", zap.Strings("instruments", wire))
	return nil
}

// Unsubscribe drops the given instruments from the book and tells the front.
// Unknown instruments are ignored.
func (m *Manager) Unsubscribe(instrumentIDs []string) error {
	m.mu.Lock()
	var wire []string
	for _, id := range instrumentIDs {
		if _, ok := m.sub[id]; ok {
			delete(m.sub, id)
			wire = append(wire, id)
		}
	}
	m.mu.Unlock()

	if len(wire) == 0 {
		return nil
	}
	if rc := m.md.UnSubscribeMarketData(wire); rc != 0 {
		return errs.New(errs.KindNetwork, "%s", i18n.T("session.request_rejected", rc))
	}
	return nil
}

// HandleSubResponse applies the front's answer for one instrument. Rejections
// are retried up to the budget, then the instrument is parked in Failed and a
// SubscriptionFailed event is published.
func (m *Manager) HandleSubResponse(instrumentID string, info *ctp.RspInfo) {
	m.mu.Lock()
	e, ok := m.sub[instrumentID]
	if !ok {
		m.mu.Unlock()
		return
	}
	if !info.Failed() {
		e.status = StatusActive
		e.retries = 0
		m.mu.Unlock()
		return
	}

	e.retries++
	e.lastCode = info.ErrorID
	e.lastMsg = ctp.DecodeText(info.ErrorMsg)
	retry := e.retries <= maxRetries
	if retry {
		e.status = StatusPending
		e.lastRequest = time.Now()
	} else {
		e.status = StatusFailed
	}
	code, msg, attempts := e.lastCode, e.lastMsg, e.retries
	m.mu.Unlock()

	if retry {
		log.Warn("subscription rejected, retrying",
			zap.String("instrument", instrumentID),
			zap.Int("code", code),
			zap.Int("attempt", attempts))
		if rc := m.md.SubscribeMarketData([]string{instrumentID}); rc != 0 {
			log.Error("subscription retry request rejected",
				zap.String("instrument", instrumentID), zap.Int("code", rc))
		}
		return
	}

	log.Error("subscription failed permanently",
		zap.String("instrument", instrumentID),
		zap.Int("code", code),
		zap.String("message", msg))
	m.bus.Publish(events.New(events.TypeSubscriptionFailed, events.SubscriptionFailedPayload{
		InstrumentID: instrumentID,
		Code:         code,
		Message:      i18n.T("subscription.max_retries", instrumentID, attempts) + ": " + msg,
	}))
}

// HandleUnsubResponse is informational: the book entry was already removed
// when Unsubscribe was called.
func (m *Manager) HandleUnsubResponse(instrumentID string, info *ctp.RspInfo) {
	if info.Failed() {
		log.Warn("unsubscribe rejected",
			zap.String("instrument", instrumentID),
			zap.Int("code", info.ErrorID))
	}
}

// Invalidate marks every active subscription pending. Called when a front
// drops so the book reflects that the engine forgot the subscriptions.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	for _, e := range m.sub {
		if e.status == StatusActive {
			e.status = StatusPending
		}
	}
	m.mu.Unlock()
}

// ReplayAll re-requests every non-failed instrument after a re-login. Failed
// instruments get a fresh retry budget too: a reconnect is a new world.
func (m *Manager) ReplayAll() {
	now := time.Now()
	m.mu.Lock()
	var wire []string
	for id, e := range m.sub {
		e.status = StatusPending
		e.retries = 0
		e.lastRequest = now
		wire = append(wire, id)
	}
	m.mu.Unlock()

	if len(wire) == 0 {
		return
	}
	log.Info("replaying subscriptions", zap.Int("count", len(wire)))
	if rc := m.md.SubscribeMarketData(wire); rc != 0 {
		log.Error("subscription replay request rejected", zap.Int("code", rc))
	}
}

// RecordTick counts one received tick against the instrument's subscription.
// Ticks for instruments no longer in the book are ignored.
func (m *Manager) RecordTick(instrumentID string) {
	m.mu.Lock()
	if e, ok := m.sub[instrumentID]; ok {
		e.dataCount++
	}
	m.mu.Unlock()
}

// Info reports the instrument's full book entry.
func (m *Manager) Info(instrumentID string) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sub[instrumentID]
	if !ok {
		return Info{}, false
	}
	return Info{
		Status:      e.status,
		Retries:     e.retries,
		DataCount:   e.dataCount,
		LastRequest: e.lastRequest,
		LastCode:    e.lastCode,
		LastMsg:     e.lastMsg,
	}, true
}

// Status reports the instrument's current status.
func (m *Manager) Status(instrumentID string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sub[instrumentID]
	if !ok {
		return 0, false
	}
	return e.status, true
}

// Active lists the instruments with confirmed subscriptions.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, e := range m.sub {
		if e.status == StatusActive {
			out = append(out, id)
		}
	}
	return out
}

// Stats summarizes the book.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{Total: len(m.sub)}
	for _, e := range m.sub {
		switch e.status {
		case StatusActive:
			st.Active++
		case StatusPending:
			st.Pending++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}
