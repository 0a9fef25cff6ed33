// Package gateway assembles the trading terminal core: it owns the engine
// APIs, routes their callbacks into the domain components, and exposes the
// client surface the UI layer calls.
package gateway

import (
	"context"
	"time"

	"terminal-core/internal/account"
	"terminal-core/internal/errs"
	"terminal-core/internal/events"
	"terminal-core/internal/marketdata"
	"terminal-core/internal/order"
	"terminal-core/internal/position"
	"terminal-core/internal/risk"
	"terminal-core/internal/session"
	"terminal-core/internal/settlement"
	"terminal-core/internal/subscription"
	"terminal-core/pkg/config"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/db"
	"terminal-core/pkg/i18n"
)

// Facade is the single entry point for terminal consumers. All state flows
// through the event bus; the getters below return point-in-time copies.
type Facade struct {
	cfg *config.Config
	md  ctp.MarketAPI
	td  ctp.TraderAPI

	bus        *events.Bus
	session    *session.Manager
	subs       *subscription.Manager
	cache      *marketdata.Cache
	orders     *order.Manager
	positions  *position.Manager
	account    *account.Service
	settlement *settlement.Manager
	checker    *risk.Checker
	waiters    *waiters
	journal    *Journal
}

// New wires the full component graph over the given engine APIs and
// registers the callback dispatchers. The journal is only opened when a
// database path is configured.
func New(cfg *config.Config, md ctp.MarketAPI, td ctp.TraderAPI) (*Facade, error) {
	f := &Facade{
		cfg:     cfg,
		md:      md,
		td:      td,
		bus:     events.NewBus(),
		waiters: newWaiters(),
	}
	f.cache = marketdata.NewCache()
	f.session = session.NewManager(cfg, md, td, f.bus)
	f.subs = subscription.NewManager(md, f.bus)
	f.orders = order.NewManager(cfg, td, f.bus)
	f.positions = position.NewManager(cfg, f.bus)
	f.account = account.NewService(cfg, f.bus)
	f.settlement = settlement.NewManager(td, f.bus)

	f.checker = risk.NewChecker(cfg, func() risk.Snapshot {
		return risk.Snapshot{
			RiskRatio:      f.account.RiskRatio(),
			DailyLoss:      f.account.DailyLoss() + f.positions.FloatingLoss(),
			PositionVolume: f.positions.VolumeByInstrument(),
		}
	})
	f.orders.SetRiskCheck(func(req order.Request) error {
		return f.checker.Check(req)
	})
	f.orders.SetSession(f.session.IsLoggedIn, f.session.Identity)
	f.orders.SetPositionHooks(order.PositionHooks{
		Freeze: func(id string, d order.Direction, v int) bool {
			return f.positions.Freeze(id, closeSide(d), v)
		},
		Unfreeze: func(id string, d order.Direction, v int) {
			f.positions.Unfreeze(id, closeSide(d), v)
		},
	})
	f.session.SetReloginHook(f.subs.ReplayAll)

	md.RegisterSPI(&mdSPI{f: f})
	td.RegisterSPI(&traderSPI{f: f})

	if cfg.DBPath != "" {
		database, err := db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		f.journal = newJournal(database, f.bus, f.session.TradingDay)
		f.journal.Start()
	}
	return f, nil
}

// closeSide maps a closing order's direction to the position side it
// consumes: selling closes a long, buying closes a short.
func closeSide(d order.Direction) position.Direction {
	if d == order.Sell {
		return position.Long
	}
	return position.Short
}

// Connect brings both fronts up, blocking until connected or ctx expires.
func (f *Facade) Connect(ctx context.Context) error {
	return f.session.Connect(ctx)
}

// ConnectWithRetry is Connect with capped exponential backoff between
// attempts.
func (f *Facade) ConnectWithRetry(ctx context.Context, onRetry func(attempt int, wait time.Duration)) error {
	return f.session.ConnectWithRetry(ctx, onRetry)
}

// Login authenticates both fronts with the configured credentials.
func (f *Facade) Login(ctx context.Context) error {
	return f.session.Login(ctx, ctp.ReqUserLogin{
		BrokerID: f.cfg.BrokerID,
		UserID:   f.cfg.InvestorID,
		Password: f.cfg.Password,
		AppID:    f.cfg.AppID,
		AuthCode: f.cfg.AuthCode,
	})
}

// Disconnect releases the fronts. Credentials and books are kept.
func (f *Facade) Disconnect() { f.session.Disconnect() }

// Reset disconnects and forgets credentials and session identity.
func (f *Facade) Reset() { f.session.Reset() }

// State exposes the session lifecycle state.
func (f *Facade) State() session.State { return f.session.State() }

// TradingDay returns the trading day captured at login.
func (f *Facade) TradingDay() string { return f.session.TradingDay() }

// Subscribe requests market data for the given instruments, once each.
func (f *Facade) Subscribe(instrumentIDs ...string) error {
	return f.subs.Subscribe(instrumentIDs)
}

// Unsubscribe stops market data for the given instruments.
func (f *Facade) Unsubscribe(instrumentIDs ...string) error {
	return f.subs.Unsubscribe(instrumentIDs)
}

// Subscriptions summarizes the subscription book.
func (f *Facade) Subscriptions() subscription.Stats { return f.subs.Stats() }

// SubscriptionInfo returns one instrument's subscription entry.
func (f *Facade) SubscriptionInfo(instrumentID string) (subscription.Info, bool) {
	return f.subs.Info(instrumentID)
}

// LastTick returns the newest cached tick for an instrument.
func (f *Facade) LastTick(instrumentID string) (marketdata.Tick, bool) {
	return f.cache.Latest(instrumentID)
}

// MarketSnapshot returns every cached tick.
func (f *Facade) MarketSnapshot() map[string]marketdata.Tick { return f.cache.Snapshot() }

// SubmitOrder validates, risk-checks and submits one order, returning its
// order ref.
func (f *Facade) SubmitOrder(req order.Request) (string, error) {
	return f.orders.Submit(req)
}

// CancelOrder requests cancellation by order ref.
func (f *Facade) CancelOrder(orderRef string) error {
	return f.orders.Cancel(orderRef)
}

// Order returns one order by ref.
func (f *Facade) Order(orderRef string) (order.Order, bool) { return f.orders.Get(orderRef) }

// Orders returns the session's order book in submission order.
func (f *Facade) Orders() []order.Order { return f.orders.List() }

// ActiveOrders returns the orders still working.
func (f *Facade) ActiveOrders() []order.Order { return f.orders.Active() }

// Trades returns the session's executions in arrival order.
func (f *Facade) Trades() []order.Trade { return f.orders.Trades() }

// OrderStats summarizes the order book.
func (f *Facade) OrderStats() order.Stats { return f.orders.Stats() }

// Account returns the latest funds snapshot without touching the wire.
func (f *Facade) Account() account.Account { return f.account.Snapshot() }

// FundStats returns the session's balance trajectory.
func (f *Facade) FundStats() account.FundStats { return f.account.Stats() }

// Positions returns the position book without touching the wire.
func (f *Facade) Positions() []position.Position { return f.positions.All() }

// PositionStats aggregates the position book.
func (f *Facade) PositionStats() position.Stats { return f.positions.Stats() }

// NetPosition returns long minus short volume for an instrument.
func (f *Facade) NetPosition(instrumentID string) int { return f.positions.Net(instrumentID) }

// QueryAccount refreshes the funds snapshot from the engine.
func (f *Facade) QueryAccount(ctx context.Context) (account.Account, error) {
	if err := f.awaitQuery(ctx, queryAccount, f.td.ReqQryTradingAccount); err != nil {
		return account.Account{}, err
	}
	return f.account.Snapshot(), nil
}

// QueryPositions refreshes the position book from the engine. The book is
// replaced wholesale by the response.
func (f *Facade) QueryPositions(ctx context.Context) ([]position.Position, error) {
	err := f.awaitQuery(ctx, queryPosition, func() int {
		return f.td.ReqQryInvestorPosition("")
	})
	if err != nil {
		return nil, err
	}
	return f.positions.All(), nil
}

// QueryOrders merges the engine's order snapshot into the book.
func (f *Facade) QueryOrders(ctx context.Context) ([]order.Order, error) {
	err := f.awaitQuery(ctx, queryOrder, func() int {
		return f.td.ReqQryOrder("")
	})
	if err != nil {
		return nil, err
	}
	return f.orders.List(), nil
}

// QueryTrades asks the engine for the day's executions.
func (f *Facade) QueryTrades(ctx context.Context) ([]order.Trade, error) {
	err := f.awaitQuery(ctx, queryTrade, func() int {
		return f.td.ReqQryTrade("")
	})
	if err != nil {
		return nil, err
	}
	return f.orders.Trades(), nil
}

// QuerySettlement retrieves the settlement statement for tradingDay and
// returns the assembled document. An empty day means the current one.
func (f *Facade) QuerySettlement(ctx context.Context, tradingDay string) (settlement.Document, error) {
	if !f.session.IsLoggedIn() {
		return settlement.Document{}, errs.New(errs.KindState, "%s", i18n.T("session.not_logged_in"))
	}
	done := f.waiters.arm(querySettlement)
	if err := f.settlement.Query(tradingDay); err != nil {
		f.waiters.fire(querySettlement)
		return settlement.Document{}, err
	}
	select {
	case <-done:
	case <-ctx.Done():
		return settlement.Document{}, errs.Wrap(errs.KindTimeout, ctx.Err(), "%s", i18n.T("query.timeout", querySettlement))
	}
	doc, ok := f.settlement.Pending()
	if !ok {
		return settlement.Document{}, nil
	}
	return doc, nil
}

// ConfirmSettlement acknowledges the pending settlement and waits for the
// engine's answer.
func (f *Facade) ConfirmSettlement(ctx context.Context) error {
	if !f.session.IsLoggedIn() {
		return errs.New(errs.KindState, "%s", i18n.T("session.not_logged_in"))
	}
	done := f.waiters.arm(confirmSettlement)
	if err := f.settlement.Confirm(); err != nil {
		f.waiters.fire(confirmSettlement)
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindTimeout, ctx.Err(), "%s", i18n.T("query.timeout", confirmSettlement))
	}
}

// SettlementReport aggregates the archive of confirmed settlement days.
func (f *Facade) SettlementReport() settlement.Report { return f.settlement.Report() }

// Events subscribes to the bus; see events.Bus.Subscribe.
func (f *Facade) Events(buffer int, types ...events.Type) (<-chan events.Event, func()) {
	return f.bus.Subscribe(buffer, types...)
}

// Bus exposes the event bus to in-process consumers like the push server.
func (f *Facade) Bus() *events.Bus { return f.bus }

// Close tears the terminal down: fronts released, journal flushed, bus
// closed.
func (f *Facade) Close() error {
	f.session.Disconnect()
	var err error
	if f.journal != nil {
		err = f.journal.Close()
	}
	f.bus.Close()
	return err
}
