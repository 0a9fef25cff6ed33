package db

import "time"

// OrderRow is one journaled order.
type OrderRow struct {
	OrderRef     string
	InstrumentID string
	ExchangeID   string
	OrderSysID   string
	Direction    string
	Offset       string
	Price        float64
	Volume       int
	Traded       int
	Status       string
	StatusMsg    string
	TradingDay   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TradeRow is one journaled execution.
type TradeRow struct {
	TradeID      string
	OrderRef     string
	InstrumentID string
	ExchangeID   string
	Direction    string
	Offset       string
	Price        float64
	Volume       int
	TradeDate    string
	TradeTime    string
	CreatedAt    time.Time
}

// SettlementRow is one confirmed settlement day.
type SettlementRow struct {
	TradingDay  string
	Content     string
	CloseProfit float64
	Commission  float64
	ConfirmedAt time.Time
}
