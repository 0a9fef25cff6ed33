package gateway

import (
	"context"
	"time"

	"go.uber.org/zap"

	"terminal-core/internal/events"
	"terminal-core/internal/order"
	"terminal-core/internal/settlement"
	"terminal-core/pkg/db"
	"terminal-core/pkg/log"
)

// Journal tails the event bus and persists orders, trades and confirmed
// settlements. A slow disk never touches the hot path: writes happen on the
// journal goroutine, and a full bus buffer drops journal events before it
// blocks a publisher.
type Journal struct {
	db         *db.Database
	bus        *events.Bus
	tradingDay func() string
	unsub      func()
	done       chan struct{}
}

const journalWriteTimeout = 5 * time.Second

func newJournal(database *db.Database, bus *events.Bus, tradingDay func() string) *Journal {
	return &Journal{
		db:         database,
		bus:        bus,
		tradingDay: tradingDay,
		done:       make(chan struct{}),
	}
}

// Start begins tailing the bus.
func (j *Journal) Start() {
	ch, unsub := j.bus.Subscribe(512,
		events.TypeOrderUpdate,
		events.TypeTradeUpdate,
		events.TypeSettlementConfirmed,
	)
	j.unsub = unsub
	go func() {
		defer close(j.done)
		for e := range ch {
			j.write(e)
		}
	}()
}

func (j *Journal) write(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	var err error
	switch payload := e.Payload.(type) {
	case order.Order:
		err = j.db.UpsertOrder(ctx, db.OrderRow{
			OrderRef:     payload.OrderRef,
			InstrumentID: payload.InstrumentID,
			ExchangeID:   payload.ExchangeID,
			OrderSysID:   payload.OrderSysID,
			Direction:    string(payload.Direction),
			Offset:       string(payload.Offset),
			Price:        payload.Price,
			Volume:       payload.Volume,
			Traded:       payload.Traded,
			Status:       string(payload.Status),
			StatusMsg:    payload.StatusMsg,
			TradingDay:   j.tradingDay(),
		})
	case order.Trade:
		err = j.db.InsertTrade(ctx, db.TradeRow{
			TradeID:      payload.TradeID,
			OrderRef:     payload.OrderRef,
			InstrumentID: payload.InstrumentID,
			ExchangeID:   payload.ExchangeID,
			Direction:    string(payload.Direction),
			Offset:       string(payload.Offset),
			Price:        payload.Price,
			Volume:       payload.Volume,
			TradeDate:    payload.TradeDate,
			TradeTime:    payload.TradeTime,
		})
	case settlement.Document:
		err = j.db.InsertSettlement(ctx, db.SettlementRow{
			TradingDay:  payload.TradingDay,
			Content:     payload.Content,
			CloseProfit: payload.Summary.CloseProfit,
			Commission:  payload.Summary.Commission,
		})
	}
	if err != nil {
		log.Error("journal write failed", zap.String("event", string(e.Type)), zap.Error(err))
	}
}

// Close stops tailing and closes the database after the last queued write.
func (j *Journal) Close() error {
	if j.unsub != nil {
		j.unsub()
		<-j.done
	}
	return j.db.Close()
}
