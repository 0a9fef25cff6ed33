package ctp

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Fill modes control what the simulated exchange does with accepted orders.
type FillMode int

const (
	// FillNone leaves orders resting in the queue.
	FillNone FillMode = iota
	// FillFull executes the whole order in one trade.
	FillFull
	// FillPartial executes half the order (at least one lot) and leaves the
	// rest queueing.
	FillPartial
)

// Simulator is an in-process stand-in for the vendor engine. It implements
// both front APIs, delivers callbacks asynchronously on a single goroutine in
// submission order (matching the vendor's callback-thread guarantee), and
// records request traffic so tests can assert on what reached the wire.
//
// All exported mutator fields and methods are safe for concurrent use.
type Simulator struct {
	mu sync.Mutex

	Md *SimMarket
	Td *SimTrader

	queue   chan func()
	done    chan struct{}
	once    sync.Once
	running bool

	// Scripted behavior. Zero values mean the happy path.
	failLoginCode   int            // nonzero: login answered with this engine code
	rejectSubscribe map[string]int // instrument -> engine code for OnRspSubMarketData
	rejectInsert    int            // nonzero: OnRspOrderInsert answered with this code
	insertRetCode   int            // nonzero: ReqOrderInsert returns it synchronously
	fillMode        FillMode

	frontID    int
	sessionID  int
	tradingDay string
	nextSysID  int

	account    TradingAccountField
	positions  []InvestorPositionField
	settlement []byte
	orders     map[string]*simOrder
	trades     []TradeField

	insertCalls    int
	actionCalls    int
	subscribeCalls int
	subscribed     map[string]int // instrument -> wire subscribe count
}

type simOrder struct {
	field OrderField
}

// NewSimulator builds a simulator with a default funded account.
func NewSimulator() *Simulator {
	s := &Simulator{
		queue:           make(chan func(), 256),
		done:            make(chan struct{}),
		rejectSubscribe: map[string]int{},
		fillMode:        FillFull,
		frontID:         1,
		sessionID:       1,
		tradingDay:      "20260829",
		orders:          map[string]*simOrder{},
		subscribed:      map[string]int{},
		account: TradingAccountField{
			AccountID:  "sim",
			PreBalance: 1_000_000,
			Balance:    1_000_000,
			Available:  1_000_000,
		},
	}
	s.Md = &SimMarket{sim: s}
	s.Td = &SimTrader{sim: s}
	return s
}

// Close stops callback delivery. Pending callbacks are dropped.
func (s *Simulator) Close() {
	s.once.Do(func() { close(s.done) })
}

// emit schedules a callback for in-order async delivery.
func (s *Simulator) emit(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.done:
	}
}

func (s *Simulator) run() {
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.done:
			return
		}
	}
}

// startDispatch is idempotent; the first Init of either front starts the
// callback goroutine.
func (s *Simulator) startDispatch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.running = true
		go s.run()
	}
}

// --- scripting and inspection -----------------------------------------------

// SetFailLogin makes both fronts answer login with the given engine code.
// Zero restores the happy path.
func (s *Simulator) SetFailLogin(code int) {
	s.mu.Lock()
	s.failLoginCode = code
	s.mu.Unlock()
}

// SetRejectSubscribe makes subscription of the given instrument answer with
// the given engine code.
func (s *Simulator) SetRejectSubscribe(instrumentID string, code int) {
	s.mu.Lock()
	s.rejectSubscribe[instrumentID] = code
	s.mu.Unlock()
}

// SetRejectInsert makes every order insert answered with OnRspOrderInsert
// carrying the given engine code.
func (s *Simulator) SetRejectInsert(code int) {
	s.mu.Lock()
	s.rejectInsert = code
	s.mu.Unlock()
}

// SetInsertReturnCode makes ReqOrderInsert itself return the given code.
func (s *Simulator) SetInsertReturnCode(code int) {
	s.mu.Lock()
	s.insertRetCode = code
	s.mu.Unlock()
}

// SetFillMode selects how accepted orders execute.
func (s *Simulator) SetFillMode(m FillMode) {
	s.mu.Lock()
	s.fillMode = m
	s.mu.Unlock()
}

// SetAccount replaces the account snapshot returned by account queries.
func (s *Simulator) SetAccount(a TradingAccountField) {
	s.mu.Lock()
	s.account = a
	s.mu.Unlock()
}

// SetPositions replaces the rows returned by position queries.
func (s *Simulator) SetPositions(rows []InvestorPositionField) {
	s.mu.Lock()
	s.positions = append([]InvestorPositionField(nil), rows...)
	s.mu.Unlock()
}

// SetSettlement installs a settlement document (UTF-8; stored GB18030 as the
// engine would deliver it).
func (s *Simulator) SetSettlement(content string) {
	s.mu.Lock()
	s.settlement = EncodeText(content)
	s.mu.Unlock()
}

// InsertCalls reports how many order inserts reached the wire.
func (s *Simulator) InsertCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertCalls
}

// ActionCalls reports how many cancel requests reached the wire.
func (s *Simulator) ActionCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.actionCalls
}

// SubscribeCalls reports how many subscribe requests reached the wire.
func (s *Simulator) SubscribeCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeCalls
}

// WireSubscribes reports how many times the instrument appeared in a wire
// subscribe request.
func (s *Simulator) WireSubscribes(instrumentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed[instrumentID]
}

// PushTick delivers a market tick to the market SPI.
func (s *Simulator) PushTick(md DepthMarketData) {
	if md.TradingDay == "" {
		md.TradingDay = s.tradingDay
	}
	s.emit(func() {
		if spi := s.Md.spi(); spi != nil {
			tick := md
			spi.OnRtnDepthMarketData(&tick)
		}
	})
}

// DropFronts simulates a network loss on both fronts.
func (s *Simulator) DropFronts(reason int) {
	s.emit(func() {
		if spi := s.Md.spi(); spi != nil {
			spi.OnFrontDisconnected(reason)
		}
		if spi := s.Td.spi(); spi != nil {
			spi.OnFrontDisconnected(reason)
		}
	})
}

// RestoreFronts simulates the network coming back.
func (s *Simulator) RestoreFronts() {
	s.emit(func() {
		if spi := s.Md.spi(); spi != nil {
			spi.OnFrontConnected()
		}
		if spi := s.Td.spi(); spi != nil {
			spi.OnFrontConnected()
		}
	})
}

func (s *Simulator) loginRsp(userID string) (*RspUserLogin, *RspInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLoginCode != 0 {
		return nil, &RspInfo{ErrorID: s.failLoginCode, ErrorMsg: EncodeText("登录失败")}
	}
	return &RspUserLogin{
		TradingDay:  s.tradingDay,
		LoginTime:   "09:00:00",
		UserID:      userID,
		SystemName:  EncodeText("仿真交易系统"),
		FrontID:     s.frontID,
		SessionID:   s.sessionID,
		MaxOrderRef: "1",
	}, &RspInfo{}
}

// --- market front ------------------------------------------------------------

// SimMarket is the simulator's market-data front.
type SimMarket struct {
	sim *Simulator
	mu  sync.Mutex
	s   MarketSPI
}

func (m *SimMarket) spi() MarketSPI {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.s
}

func (m *SimMarket) RegisterSPI(spi MarketSPI) {
	m.mu.Lock()
	m.s = spi
	m.mu.Unlock()
}

func (m *SimMarket) RegisterFront(addr string) {}

func (m *SimMarket) Init() {
	m.sim.startDispatch()
	m.sim.emit(func() {
		if spi := m.spi(); spi != nil {
			spi.OnFrontConnected()
		}
	})
}

func (m *SimMarket) Release() {}

func (m *SimMarket) ReqUserLogin(req *ReqUserLogin) int {
	userID := req.UserID
	m.sim.emit(func() {
		spi := m.spi()
		if spi == nil {
			return
		}
		rsp, info := m.sim.loginRsp(userID)
		spi.OnRspUserLogin(rsp, info)
	})
	return 0
}

func (m *SimMarket) SubscribeMarketData(instrumentIDs []string) int {
	ids := append([]string(nil), instrumentIDs...)
	m.sim.mu.Lock()
	m.sim.subscribeCalls++
	for _, id := range ids {
		m.sim.subscribed[id]++
	}
	m.sim.mu.Unlock()
	m.sim.emit(func() {
		spi := m.spi()
		if spi == nil {
			return
		}
		for _, id := range ids {
			m.sim.mu.Lock()
			code := m.sim.rejectSubscribe[id]
			m.sim.mu.Unlock()
			if code != 0 {
				spi.OnRspSubMarketData(id, &RspInfo{ErrorID: code, ErrorMsg: EncodeText("订阅失败")})
			} else {
				spi.OnRspSubMarketData(id, &RspInfo{})
			}
		}
	})
	return 0
}

func (m *SimMarket) UnSubscribeMarketData(instrumentIDs []string) int {
	ids := append([]string(nil), instrumentIDs...)
	m.sim.emit(func() {
		spi := m.spi()
		if spi == nil {
			return
		}
		for _, id := range ids {
			spi.OnRspUnSubMarketData(id, &RspInfo{})
		}
	})
	return 0
}

// --- trader front ------------------------------------------------------------

// SimTrader is the simulator's trader front.
type SimTrader struct {
	sim *Simulator
	mu  sync.Mutex
	s   TraderSPI
}

func (t *SimTrader) spi() TraderSPI {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.s
}

func (t *SimTrader) RegisterSPI(spi TraderSPI) {
	t.mu.Lock()
	t.s = spi
	t.mu.Unlock()
}

func (t *SimTrader) RegisterFront(addr string) {}

func (t *SimTrader) Init() {
	t.sim.startDispatch()
	t.sim.emit(func() {
		if spi := t.spi(); spi != nil {
			spi.OnFrontConnected()
		}
	})
}

func (t *SimTrader) Release() {}

func (t *SimTrader) ReqUserLogin(req *ReqUserLogin) int {
	userID := req.UserID
	t.sim.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		rsp, info := t.sim.loginRsp(userID)
		spi.OnRspUserLogin(rsp, info)
	})
	return 0
}

func (t *SimTrader) ReqOrderInsert(order *InputOrder) int {
	s := t.sim
	s.mu.Lock()
	s.insertCalls++
	retCode := s.insertRetCode
	rejectCode := s.rejectInsert
	mode := s.fillMode
	s.nextSysID++
	sysID := fmt.Sprintf("%8d", s.nextSysID)
	s.mu.Unlock()
	if retCode != 0 {
		return retCode
	}
	in := *order
	s.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		if rejectCode != 0 {
			req := in
			spi.OnRspOrderInsert(&req, &RspInfo{ErrorID: rejectCode, ErrorMsg: EncodeText("报单被拒绝")})
			return
		}
		acc := OrderField{
			BrokerID:            in.BrokerID,
			InvestorID:          in.InvestorID,
			InstrumentID:        in.InstrumentID,
			OrderRef:            in.OrderRef,
			ExchangeID:          "SIMEX",
			OrderSysID:          sysID,
			FrontID:             s.frontID,
			SessionID:           s.sessionID,
			Direction:           in.Direction,
			OffsetFlag:          in.OffsetFlag,
			PriceType:           in.PriceType,
			LimitPrice:          in.LimitPrice,
			VolumeTotalOriginal: in.Volume,
			VolumeTotal:         in.Volume,
			OrderStatus:         StatusNoTradeQueueing,
			StatusMsg:           EncodeText("未成交还在队列中"),
			InsertDate:          s.tradingDay,
			InsertTime:          "09:30:00",
		}
		s.mu.Lock()
		s.orders[in.OrderRef] = &simOrder{field: acc}
		s.mu.Unlock()
		accepted := acc
		spi.OnRtnOrder(&accepted)

		if mode == FillNone {
			return
		}
		fillVol := in.Volume
		if mode == FillPartial {
			fillVol = in.Volume / 2
			if fillVol == 0 {
				fillVol = 1
			}
		}
		trade := TradeField{
			BrokerID:     in.BrokerID,
			InvestorID:   in.InvestorID,
			InstrumentID: in.InstrumentID,
			OrderRef:     in.OrderRef,
			ExchangeID:   "SIMEX",
			OrderSysID:   sysID,
			TradeID:      uuid.NewString(),
			Direction:    in.Direction,
			OffsetFlag:   in.OffsetFlag,
			Price:        in.LimitPrice,
			Volume:       fillVol,
			TradeDate:    s.tradingDay,
			TradeTime:    "09:30:01",
		}
		s.mu.Lock()
		s.trades = append(s.trades, trade)
		s.mu.Unlock()
		spi.OnRtnTrade(&trade)

		upd := acc
		upd.VolumeTraded = fillVol
		upd.VolumeTotal = in.Volume - fillVol
		if fillVol == in.Volume {
			upd.OrderStatus = StatusAllTraded
			upd.StatusMsg = EncodeText("全部成交")
		} else {
			upd.OrderStatus = StatusPartTradedQueueing
			upd.StatusMsg = EncodeText("部分成交还在队列中")
		}
		upd.UpdateTime = "09:30:01"
		s.mu.Lock()
		s.orders[in.OrderRef].field = upd
		s.mu.Unlock()
		final := upd
		spi.OnRtnOrder(&final)
	})
	return 0
}

func (t *SimTrader) ReqOrderAction(action *InputOrderAction) int {
	s := t.sim
	s.mu.Lock()
	s.actionCalls++
	s.mu.Unlock()
	act := *action
	s.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		s.mu.Lock()
		ord, ok := s.orders[act.OrderRef]
		var canceled OrderField
		if ok {
			switch ord.field.OrderStatus {
			case StatusAllTraded, StatusCanceled:
				ok = false
			default:
				ord.field.OrderStatus = StatusCanceled
				ord.field.StatusMsg = EncodeText("已撤单")
				ord.field.UpdateTime = "09:31:00"
				canceled = ord.field
			}
		}
		s.mu.Unlock()
		if !ok {
			req := act
			spi.OnRspOrderAction(&req, &RspInfo{ErrorID: 26, ErrorMsg: EncodeText("报单不可撤")})
			return
		}
		spi.OnRtnOrder(&canceled)
	})
	return 0
}

func (t *SimTrader) ReqQryTradingAccount() int {
	s := t.sim
	s.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		s.mu.Lock()
		acc := s.account
		s.mu.Unlock()
		spi.OnRspQryTradingAccount(&acc, true)
	})
	return 0
}

func (t *SimTrader) ReqQryInvestorPosition(instrumentID string) int {
	s := t.sim
	s.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		s.mu.Lock()
		rows := make([]InvestorPositionField, 0, len(s.positions))
		for _, p := range s.positions {
			if instrumentID == "" || p.InstrumentID == instrumentID {
				rows = append(rows, p)
			}
		}
		s.mu.Unlock()
		if len(rows) == 0 {
			spi.OnRspQryInvestorPosition(nil, true)
			return
		}
		for i := range rows {
			row := rows[i]
			spi.OnRspQryInvestorPosition(&row, i == len(rows)-1)
		}
	})
	return 0
}

func (t *SimTrader) ReqQryOrder(instrumentID string) int {
	s := t.sim
	s.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		s.mu.Lock()
		rows := make([]OrderField, 0, len(s.orders))
		for _, o := range s.orders {
			if instrumentID == "" || o.field.InstrumentID == instrumentID {
				rows = append(rows, o.field)
			}
		}
		s.mu.Unlock()
		if len(rows) == 0 {
			spi.OnRspQryOrder(nil, true)
			return
		}
		for i := range rows {
			row := rows[i]
			spi.OnRspQryOrder(&row, i == len(rows)-1)
		}
	})
	return 0
}

func (t *SimTrader) ReqQryTrade(instrumentID string) int {
	s := t.sim
	s.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		s.mu.Lock()
		rows := make([]TradeField, 0, len(s.trades))
		for _, tr := range s.trades {
			if instrumentID == "" || tr.InstrumentID == instrumentID {
				rows = append(rows, tr)
			}
		}
		s.mu.Unlock()
		if len(rows) == 0 {
			spi.OnRspQryTrade(nil, true)
			return
		}
		for i := range rows {
			row := rows[i]
			spi.OnRspQryTrade(&row, i == len(rows)-1)
		}
	})
	return 0
}

func (t *SimTrader) ReqQrySettlementInfo(tradingDay string) int {
	s := t.sim
	day := tradingDay
	s.emit(func() {
		spi := t.spi()
		if spi == nil {
			return
		}
		s.mu.Lock()
		content := append([]byte(nil), s.settlement...)
		if day == "" {
			day = s.tradingDay
		}
		s.mu.Unlock()
		if len(content) == 0 {
			spi.OnRspQrySettlementInfo(nil, true)
			return
		}
		spi.OnRspQrySettlementInfo(&SettlementInfoField{TradingDay: day, Content: content}, true)
	})
	return 0
}

func (t *SimTrader) ReqSettlementInfoConfirm() int {
	s := t.sim
	s.emit(func() {
		if spi := t.spi(); spi != nil {
			spi.OnRspSettlementInfoConfirm(&SettlementInfoConfirmField{
				ConfirmDate: s.tradingDay,
				ConfirmTime: "09:05:00",
			}, &RspInfo{})
		}
	})
	return 0
}
