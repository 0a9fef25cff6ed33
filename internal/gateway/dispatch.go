package gateway

import (
	"sync"

	"terminal-core/internal/events"
	"terminal-core/pkg/ctp"
)

// mdSPI routes market-front callbacks to the owning components. Callbacks
// arrive on the engine thread in order; handlers must not block.
type mdSPI struct {
	f *Facade
}

func (s *mdSPI) OnFrontConnected() {
	s.f.session.HandleFrontConnected(events.FrontMarket)
}

func (s *mdSPI) OnFrontDisconnected(reason int) {
	s.f.subs.Invalidate()
	s.f.session.HandleFrontDisconnected(events.FrontMarket, reason)
}

func (s *mdSPI) OnRspUserLogin(rsp *ctp.RspUserLogin, info *ctp.RspInfo) {
	s.f.session.HandleLoginResponse(events.FrontMarket, rsp, info)
}

func (s *mdSPI) OnRspSubMarketData(instrumentID string, info *ctp.RspInfo) {
	s.f.subs.HandleSubResponse(instrumentID, info)
}

func (s *mdSPI) OnRspUnSubMarketData(instrumentID string, info *ctp.RspInfo) {
	s.f.subs.HandleUnsubResponse(instrumentID, info)
}

func (s *mdSPI) OnRtnDepthMarketData(md *ctp.DepthMarketData) {
	tick, ok := s.f.cache.Apply(md)
	if !ok {
		return
	}
	s.f.subs.RecordTick(tick.InstrumentID)
	s.f.positions.UpdateLastPrice(tick.InstrumentID, tick.LastPrice)
	s.f.bus.Publish(events.New(events.TypeMarketData, tick))
}

// traderSPI routes trader-front callbacks. Query responses that arrive in
// chunks are accumulated here until the last chunk lands.
type traderSPI struct {
	f *Facade

	mu      sync.Mutex
	posRows []*ctp.InvestorPositionField
}

func (s *traderSPI) OnFrontConnected() {
	s.f.session.HandleFrontConnected(events.FrontTrader)
}

func (s *traderSPI) OnFrontDisconnected(reason int) {
	s.f.session.HandleFrontDisconnected(events.FrontTrader, reason)
}

func (s *traderSPI) OnRspUserLogin(rsp *ctp.RspUserLogin, info *ctp.RspInfo) {
	s.f.session.HandleLoginResponse(events.FrontTrader, rsp, info)
}

func (s *traderSPI) OnRspOrderInsert(order *ctp.InputOrder, info *ctp.RspInfo) {
	if info.Failed() {
		s.f.orders.HandleInsertError(order, info)
	}
}

func (s *traderSPI) OnRspOrderAction(action *ctp.InputOrderAction, info *ctp.RspInfo) {
	if info.Failed() {
		s.f.orders.HandleActionError(action, info)
	}
}

func (s *traderSPI) OnRtnOrder(order *ctp.OrderField) {
	s.f.orders.HandleOrderReturn(order)
}

func (s *traderSPI) OnRtnTrade(trade *ctp.TradeField) {
	if t, ok := s.f.orders.HandleTradeReturn(trade); ok {
		s.f.positions.ApplyTrade(t)
	}
}

func (s *traderSPI) OnRspQryTradingAccount(account *ctp.TradingAccountField, isLast bool) {
	s.f.account.Apply(account)
	if isLast {
		s.f.waiters.fire(queryAccount)
	}
}

func (s *traderSPI) OnRspQryInvestorPosition(position *ctp.InvestorPositionField, isLast bool) {
	s.mu.Lock()
	if position != nil {
		s.posRows = append(s.posRows, position)
	}
	var rows []*ctp.InvestorPositionField
	if isLast {
		rows = s.posRows
		s.posRows = nil
	}
	s.mu.Unlock()

	if isLast {
		s.f.positions.Replace(rows)
		s.f.waiters.fire(queryPosition)
	}
}

func (s *traderSPI) OnRspQryOrder(order *ctp.OrderField, isLast bool) {
	s.f.orders.Restore(order)
	if isLast {
		s.f.waiters.fire(queryOrder)
	}
}

func (s *traderSPI) OnRspQryTrade(trade *ctp.TradeField, isLast bool) {
	s.f.orders.RestoreTrade(trade)
	if isLast {
		s.f.waiters.fire(queryTrade)
	}
}

func (s *traderSPI) OnRspQrySettlementInfo(info *ctp.SettlementInfoField, isLast bool) {
	s.f.settlement.HandleInfo(info, isLast)
	if isLast {
		s.f.waiters.fire(querySettlement)
	}
}

func (s *traderSPI) OnRspSettlementInfoConfirm(confirm *ctp.SettlementInfoConfirmField, info *ctp.RspInfo) {
	s.f.settlement.HandleConfirm(confirm, info)
	s.f.waiters.fire(confirmSettlement)
}
