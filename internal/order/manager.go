package order

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"terminal-core/internal/errs"
	"terminal-core/internal/events"
	"terminal-core/pkg/config"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/i18n"
	"terminal-core/pkg/log"
)

// RiskCheck is a pure pre-submission veto: it inspects the request against
// current risk state and returns a non-nil error to block the order. It must
// not mutate anything.
type RiskCheck func(req Request) error

// PositionHooks connect close-order submissions to the position book so
// closeable volume stays reserved while a close order is in flight. Freeze
// returns false when the closeable volume is insufficient.
type PositionHooks struct {
	Freeze   func(instrumentID string, d Direction, volume int) bool
	Unfreeze func(instrumentID string, d Direction, volume int)
}

// Manager is the order book. Submissions flow out through the trader API;
// status and trade pushes flow back in through the Handle methods. Terminal
// orders are kept for the life of the session.
type Manager struct {
	mu      sync.RWMutex
	cfg     *config.Config
	td      ctp.TraderAPI
	bus     *events.Bus
	limiter *rate.Limiter

	riskCheck RiskCheck
	hooks     PositionHooks
	loggedIn  func() bool
	identity  func() (frontID, sessionID int)

	nextRef int64
	orders  map[string]*Order
	trades  []Trade
}

// NewManager builds an order manager. The ref counter is seeded from the
// clock so refs stay unique across restarts within a trading day.
func NewManager(cfg *config.Config, td ctp.TraderAPI, bus *events.Bus) *Manager {
	m := &Manager{
		cfg:     cfg,
		td:      td,
		bus:     bus,
		nextRef: time.Now().Unix() % 100_000_000 * 1000,
		orders:  make(map[string]*Order),
	}
	if cfg.MaxOrdersPerMinute > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(float64(cfg.MaxOrdersPerMinute)/60.0), cfg.MaxOrdersPerMinute)
	}
	return m
}

// SetRiskCheck installs the pre-submission veto.
func (m *Manager) SetRiskCheck(fn RiskCheck) {
	m.mu.Lock()
	m.riskCheck = fn
	m.mu.Unlock()
}

// SetPositionHooks installs the closeable-volume reservation hooks.
func (m *Manager) SetPositionHooks(h PositionHooks) {
	m.mu.Lock()
	m.hooks = h
	m.mu.Unlock()
}

// SetSession installs the session lookups used at submission time.
func (m *Manager) SetSession(loggedIn func() bool, identity func() (int, int)) {
	m.mu.Lock()
	m.loggedIn = loggedIn
	m.identity = identity
	m.mu.Unlock()
}

// Submit validates, risk-checks, rate-limits and sends one order. It returns
// the order ref assigned to the submission.
func (m *Manager) Submit(req Request) (string, error) {
	m.mu.RLock()
	loggedIn := m.loggedIn
	check := m.riskCheck
	hooks := m.hooks
	m.mu.RUnlock()

	if loggedIn != nil && !loggedIn() {
		return "", errs.New(errs.KindState, "%s", i18n.T("session.not_logged_in"))
	}
	if req.InstrumentID == "" {
		return "", errs.New(errs.KindValidation, "%s", i18n.T("order.invalid_instrument"))
	}
	if !req.Direction.Valid() {
		return "", errs.New(errs.KindValidation, "%s", i18n.T("order.invalid_direction", string(req.Direction)))
	}
	if !req.Offset.Valid() {
		return "", errs.New(errs.KindValidation, "%s", i18n.T("order.invalid_offset", string(req.Offset)))
	}
	if req.Volume <= 0 {
		return "", errs.New(errs.KindValidation, "%s", i18n.T("order.invalid_volume", req.Volume))
	}
	if req.Price <= 0 {
		return "", errs.New(errs.KindValidation, "%s", i18n.T("order.invalid_price", req.Price))
	}
	if check != nil {
		if err := check(req); err != nil {
			return "", err
		}
	}
	if m.limiter != nil && !m.limiter.Allow() {
		return "", errs.New(errs.KindState, "%s", i18n.T("order.rate_limited"))
	}

	// Close orders reserve their volume in the position book up front so
	// concurrent closes cannot oversell the holding.
	var frozen int
	if req.Offset.Closing() && hooks.Freeze != nil {
		if !hooks.Freeze(req.InstrumentID, req.Direction, req.Volume) {
			return "", errs.New(errs.KindState, "%s", i18n.T("order.insufficient_close", req.InstrumentID, req.Volume))
		}
		frozen = req.Volume
	}

	ref := m.allocRef()
	var frontID, sessionID int
	m.mu.Lock()
	if m.identity != nil {
		frontID, sessionID = m.identity()
	}
	ord := &Order{
		OrderRef:     ref,
		FrontID:      frontID,
		SessionID:    sessionID,
		InstrumentID: req.InstrumentID,
		ExchangeID:   req.ExchangeID,
		Direction:    req.Direction,
		Offset:       req.Offset,
		Price:        req.Price,
		Volume:       req.Volume,
		Remaining:    req.Volume,
		Status:       StatusCreated,
		CreatedAt:    time.Now(),
		frozen:       frozen,
	}
	m.orders[ref] = ord
	m.mu.Unlock()

	input := &ctp.InputOrder{
		BrokerID:            m.cfg.BrokerID,
		InvestorID:          m.cfg.InvestorID,
		InstrumentID:        req.InstrumentID,
		OrderRef:            ref,
		ExchangeID:          req.ExchangeID,
		Direction:           directionToEngine(req.Direction),
		OffsetFlag:          offsetToEngine(req.Offset),
		PriceType:           ctp.PriceTypeLimit,
		TimeCondition:       ctp.TimeConditionGFD,
		VolumeCondition:     ctp.VolumeConditionAny,
		ContingentCondition: ctp.ContingentImmediately,
		LimitPrice:          req.Price,
		Volume:              req.Volume,
		MinVolume:           1,
	}
	if rc := m.td.ReqOrderInsert(input); rc != 0 {
		m.mu.Lock()
		ord.Status = StatusRejected
		ord.StatusMsg = i18n.T("session.request_rejected", rc)
		ord.frozen = 0
		snap := *ord
		m.mu.Unlock()
		if frozen > 0 && hooks.Unfreeze != nil {
			hooks.Unfreeze(req.InstrumentID, req.Direction, frozen)
		}
		m.bus.Publish(events.New(events.TypeOrderUpdate, snap))
		err := errs.New(errs.KindAPI, "%s", i18n.T("session.request_rejected", rc))
		err.APICode = rc
		return "", err
	}

	m.mu.Lock()
	if ord.Status == StatusCreated {
		ord.Status = StatusSubmitted
	}
	snap := *ord
	m.mu.Unlock()

	log.Info("order submitted",
		zap.String("order_ref", ref),
		zap.String("instrument", req.InstrumentID),
		zap.String("direction", string(req.Direction)),
		zap.String("offset", string(req.Offset)),
		zap.Float64("price", req.Price),
		zap.Int("volume", req.Volume))
	m.bus.Publish(events.New(events.TypeOrderUpdate, snap))
	return ref, nil
}

// Cancel requests cancellation of an order by ref. Orders that never received
// their exchange identifiers cannot be canceled yet.
func (m *Manager) Cancel(orderRef string) error {
	m.mu.RLock()
	ord, ok := m.orders[orderRef]
	var snap Order
	if ok {
		snap = *ord
	}
	m.mu.RUnlock()

	if !ok {
		return errs.New(errs.KindNotFound, "%s", i18n.T("order.not_found", orderRef))
	}
	if snap.Status.Terminal() {
		return errs.New(errs.KindState, "%s", i18n.T("order.terminal", orderRef, string(snap.Status)))
	}
	if snap.OrderSysID == "" || snap.ExchangeID == "" {
		return errs.New(errs.KindState, "%s", i18n.T("order.no_exchange_ids", orderRef))
	}

	action := &ctp.InputOrderAction{
		BrokerID:     m.cfg.BrokerID,
		InvestorID:   m.cfg.InvestorID,
		InstrumentID: snap.InstrumentID,
		OrderRef:     snap.OrderRef,
		ExchangeID:   snap.ExchangeID,
		OrderSysID:   snap.OrderSysID,
		FrontID:      snap.FrontID,
		SessionID:    snap.SessionID,
		ActionFlag:   ctp.ActionDelete,
	}
	if rc := m.td.ReqOrderAction(action); rc != 0 {
		err := errs.New(errs.KindAPI, "%s", i18n.T("session.request_rejected", rc))
		err.APICode = rc
		return err
	}
	log.Info("cancel requested", zap.String("order_ref", orderRef))
	return nil
}

// HandleOrderReturn applies an order status push. Pushes for refs this
// session never submitted are logged and dropped.
func (m *Manager) HandleOrderReturn(field *ctp.OrderField) {
	if field == nil {
		return
	}
	m.mu.Lock()
	ord, ok := m.orders[field.OrderRef]
	if !ok {
		m.mu.Unlock()
		log.Warn("order push for unknown ref dropped", zap.String("order_ref", field.OrderRef))
		return
	}
	m.applyField(ord, field)
	var release int
	if ord.Status.Terminal() && ord.frozen > 0 {
		release = ord.frozen
		ord.frozen = 0
	}
	hooks := m.hooks
	snap := *ord
	m.mu.Unlock()

	if release > 0 && hooks.Unfreeze != nil {
		hooks.Unfreeze(snap.InstrumentID, snap.Direction, release)
	}
	log.Debug("order updated",
		zap.String("order_ref", snap.OrderRef),
		zap.String("status", string(snap.Status)),
		zap.Int("traded", snap.Traded))
	m.bus.Publish(events.New(events.TypeOrderUpdate, snap))
}

// HandleInsertError applies a rejection answered on OnRspOrderInsert.
func (m *Manager) HandleInsertError(input *ctp.InputOrder, info *ctp.RspInfo) {
	if input == nil {
		return
	}
	err := errs.FromAPICode(info.ErrorID, ctp.DecodeText(info.ErrorMsg))
	m.mu.Lock()
	ord, ok := m.orders[input.OrderRef]
	if !ok {
		m.mu.Unlock()
		log.Warn("insert rejection for unknown ref dropped", zap.String("order_ref", input.OrderRef))
		return
	}
	ord.Status = StatusRejected
	ord.RejectCode = info.ErrorID
	ord.StatusMsg = err.Error()
	release := ord.frozen
	ord.frozen = 0
	hooks := m.hooks
	snap := *ord
	m.mu.Unlock()

	if release > 0 && hooks.Unfreeze != nil {
		hooks.Unfreeze(snap.InstrumentID, snap.Direction, release)
	}
	log.Error("order rejected", zap.String("order_ref", snap.OrderRef), zap.Error(err))
	m.bus.Publish(events.New(events.TypeOrderUpdate, snap))
	kind, _ := errs.KindOf(err)
	m.bus.Publish(events.New(events.TypeError, events.ErrorPayload{
		Code:    kind.String(),
		Message: err.Error(),
	}))
}

// HandleActionError surfaces a cancel rejection.
func (m *Manager) HandleActionError(action *ctp.InputOrderAction, info *ctp.RspInfo) {
	if action == nil {
		return
	}
	err := errs.FromAPICode(info.ErrorID, ctp.DecodeText(info.ErrorMsg))
	log.Warn("cancel rejected", zap.String("order_ref", action.OrderRef), zap.Error(err))
	kind, _ := errs.KindOf(err)
	m.bus.Publish(events.New(events.TypeError, events.ErrorPayload{
		Code:    kind.String(),
		Message: err.Error(),
	}))
}

// HandleTradeReturn applies one execution report and returns the domain
// trade so callers can feed downstream state. Trades for unknown refs are
// logged and dropped.
func (m *Manager) HandleTradeReturn(field *ctp.TradeField) (Trade, bool) {
	if field == nil {
		return Trade{}, false
	}
	trade := Trade{
		TradeID:      field.TradeID,
		OrderRef:     field.OrderRef,
		OrderSysID:   field.OrderSysID,
		InstrumentID: field.InstrumentID,
		ExchangeID:   field.ExchangeID,
		Direction:    directionFromEngine(field.Direction),
		Offset:       offsetFromEngine(field.OffsetFlag),
		Price:        field.Price,
		Volume:       field.Volume,
		TradeDate:    field.TradeDate,
		TradeTime:    field.TradeTime,
	}

	m.mu.Lock()
	ord, ok := m.orders[field.OrderRef]
	if !ok {
		m.mu.Unlock()
		log.Warn("trade push for unknown ref dropped",
			zap.String("order_ref", field.OrderRef),
			zap.String("trade_id", field.TradeID))
		return Trade{}, false
	}
	m.trades = append(m.trades, trade)
	if ord.OrderSysID == "" {
		ord.OrderSysID = field.OrderSysID
	}
	if ord.ExchangeID == "" {
		ord.ExchangeID = field.ExchangeID
	}
	// Apply the fill here as well: the paired status push carries the same
	// totals absolutely, so the book stays right even if it never arrives.
	ord.Traded += field.Volume
	if ord.Traded > ord.Volume {
		ord.Traded = ord.Volume
	}
	ord.Remaining = ord.Volume - ord.Traded
	if !ord.Status.Terminal() {
		if ord.Remaining == 0 {
			ord.Status = StatusAllTraded
		} else {
			ord.Status = StatusPartTradedQueueing
		}
	}
	// Filled close volume leaves the position book through ApplyTrade, so
	// the reservation burns down with it.
	ord.frozen -= min(field.Volume, ord.frozen)
	m.mu.Unlock()

	log.Info("trade filled",
		zap.String("order_ref", trade.OrderRef),
		zap.String("trade_id", trade.TradeID),
		zap.Float64("price", trade.Price),
		zap.Int("volume", trade.Volume))
	m.bus.Publish(events.New(events.TypeTradeUpdate, trade))
	return trade, true
}

// RestoreTrade records an execution from a query snapshot. Foreign refs are
// accepted and duplicate trade IDs ignored, so a re-query is harmless.
func (m *Manager) RestoreTrade(field *ctp.TradeField) {
	if field == nil || field.TradeID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.trades {
		if t.TradeID == field.TradeID {
			return
		}
	}
	m.trades = append(m.trades, Trade{
		TradeID:      field.TradeID,
		OrderRef:     field.OrderRef,
		OrderSysID:   field.OrderSysID,
		InstrumentID: field.InstrumentID,
		ExchangeID:   field.ExchangeID,
		Direction:    directionFromEngine(field.Direction),
		Offset:       offsetFromEngine(field.OffsetFlag),
		Price:        field.Price,
		Volume:       field.Volume,
		TradeDate:    field.TradeDate,
		TradeTime:    field.TradeTime,
	})
}

// Restore upserts an order from a query snapshot. Unlike HandleOrderReturn it
// accepts refs the session never submitted, so the book can be rebuilt after
// a restart.
func (m *Manager) Restore(field *ctp.OrderField) {
	if field == nil || field.OrderRef == "" {
		return
	}
	m.mu.Lock()
	ord, ok := m.orders[field.OrderRef]
	if !ok {
		ord = &Order{
			OrderRef:  field.OrderRef,
			CreatedAt: time.Now(),
		}
		m.orders[field.OrderRef] = ord
	}
	m.applyField(ord, field)
	m.mu.Unlock()
}

// applyField merges an engine push into the book entry. Caller holds the lock.
func (m *Manager) applyField(ord *Order, field *ctp.OrderField) {
	if field.OrderSysID != "" {
		ord.OrderSysID = field.OrderSysID
	}
	if field.ExchangeID != "" {
		ord.ExchangeID = field.ExchangeID
	}
	if field.InstrumentID != "" {
		ord.InstrumentID = field.InstrumentID
	}
	if field.FrontID != 0 {
		ord.FrontID = field.FrontID
	}
	if field.SessionID != 0 {
		ord.SessionID = field.SessionID
	}
	ord.Direction = directionFromEngine(field.Direction)
	ord.Offset = offsetFromEngine(field.OffsetFlag)
	if field.LimitPrice > 0 {
		ord.Price = field.LimitPrice
	}
	if field.VolumeTotalOriginal > 0 {
		ord.Volume = field.VolumeTotalOriginal
	}
	ord.Traded = field.VolumeTraded
	ord.Remaining = ord.Volume - ord.Traded
	ord.Status = statusFromEngine(field.OrderStatus)
	if msg := ctp.DecodeText(field.StatusMsg); msg != "" {
		ord.StatusMsg = msg
	}
	if field.InsertTime != "" {
		ord.InsertTime = field.InsertTime
	}
	if field.UpdateTime != "" {
		ord.UpdateTime = field.UpdateTime
	}
}

// allocRef hands out the next order ref as a zero-padded 12-digit string.
func (m *Manager) allocRef() string {
	m.mu.Lock()
	m.nextRef++
	ref := m.nextRef
	m.mu.Unlock()
	return fmt.Sprintf("%012d", ref)
}

// Get returns a copy of one order.
func (m *Manager) Get(orderRef string) (Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ord, ok := m.orders[orderRef]
	if !ok {
		return Order{}, false
	}
	return *ord, true
}

// List returns every order sorted by creation time.
func (m *Manager) List() []Order {
	m.mu.RLock()
	out := make([]Order, 0, len(m.orders))
	for _, ord := range m.orders {
		out = append(out, *ord)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Active returns the orders still working at the exchange.
func (m *Manager) Active() []Order {
	var out []Order
	for _, ord := range m.List() {
		if !ord.Status.Terminal() {
			out = append(out, ord)
		}
	}
	return out
}

// Trades returns every execution received this session, in arrival order.
func (m *Manager) Trades() []Trade {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Trade(nil), m.trades...)
}

// Stats summarizes the book.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{Total: len(m.orders)}
	for _, ord := range m.orders {
		switch ord.Status {
		case StatusAllTraded:
			st.Filled++
		case StatusCanceled:
			st.Canceled++
		case StatusRejected:
			st.Rejected++
		default:
			st.Active++
		}
		st.TradedVolume += ord.Traded
	}
	if st.Total > 0 {
		st.SuccessRate = float64(st.Filled) / float64(st.Total)
	}
	return st
}
