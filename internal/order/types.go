// Package order owns the order book of the current session: submission,
// cancellation, status pushes, trade pushes, and statistics.
package order

import (
	"time"

	"terminal-core/pkg/ctp"
)

// Direction of an order.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Valid reports whether d is one of the enumerated directions.
func (d Direction) Valid() bool { return d == Buy || d == Sell }

// Offset distinguishes opening new positions from closing existing ones.
type Offset string

const (
	Open           Offset = "open"
	Close          Offset = "close"
	CloseToday     Offset = "close_today"
	CloseYesterday Offset = "close_yesterday"
)

// Valid reports whether o is one of the enumerated offsets.
func (o Offset) Valid() bool {
	switch o {
	case Open, Close, CloseToday, CloseYesterday:
		return true
	}
	return false
}

// Closing reports whether o reduces an existing position.
func (o Offset) Closing() bool { return o.Valid() && o != Open }

// Status is the order lifecycle state.
type Status string

const (
	StatusCreated            Status = "created"
	StatusSubmitted          Status = "submitted"
	StatusNoTradeQueueing    Status = "no_trade_queueing"
	StatusPartTradedQueueing Status = "part_traded_queueing"
	StatusAllTraded          Status = "all_traded"
	StatusCanceled           Status = "canceled"
	StatusRejected           Status = "rejected"
)

// Terminal reports whether the order can no longer change.
func (s Status) Terminal() bool {
	switch s {
	case StatusAllTraded, StatusCanceled, StatusRejected:
		return true
	}
	return false
}

// Request is a client order submission.
type Request struct {
	InstrumentID string    `json:"instrument_id"`
	ExchangeID   string    `json:"exchange_id,omitempty"`
	Direction    Direction `json:"direction"`
	Offset       Offset    `json:"offset"`
	Price        float64   `json:"price"`
	Volume       int       `json:"volume"`
}

// Order is the book's view of one order.
type Order struct {
	OrderRef     string    `json:"order_ref"`
	FrontID      int       `json:"front_id"`
	SessionID    int       `json:"session_id"`
	OrderSysID   string    `json:"order_sys_id,omitempty"`
	ExchangeID   string    `json:"exchange_id,omitempty"`
	InstrumentID string    `json:"instrument_id"`
	Direction    Direction `json:"direction"`
	Offset       Offset    `json:"offset"`
	Price        float64   `json:"price"`
	Volume       int       `json:"volume"`
	Traded       int       `json:"traded"`
	Remaining    int       `json:"remaining"`
	Status       Status    `json:"status"`
	StatusMsg    string    `json:"status_msg,omitempty"`
	RejectCode   int       `json:"reject_code,omitempty"`
	InsertTime   string    `json:"insert_time,omitempty"`
	UpdateTime   string    `json:"update_time,omitempty"`
	CreatedAt    time.Time `json:"created_at"`

	// frozen is the close volume still reserved in the position book for
	// this order. Released on fills and on terminal transitions.
	frozen int
}

// Trade is one immutable execution report.
type Trade struct {
	TradeID      string    `json:"trade_id"`
	OrderRef     string    `json:"order_ref"`
	OrderSysID   string    `json:"order_sys_id"`
	InstrumentID string    `json:"instrument_id"`
	ExchangeID   string    `json:"exchange_id"`
	Direction    Direction `json:"direction"`
	Offset       Offset    `json:"offset"`
	Price        float64   `json:"price"`
	Volume       int       `json:"volume"`
	TradeDate    string    `json:"trade_date"`
	TradeTime    string    `json:"trade_time"`
}

// Stats summarizes the book.
type Stats struct {
	Total        int `json:"total"`
	Active       int `json:"active"`
	Filled       int `json:"filled"`
	Canceled     int `json:"canceled"`
	Rejected     int `json:"rejected"`
	TradedVolume int `json:"traded_volume"`

	// SuccessRate is Filled over Total, 0 for an empty book.
	SuccessRate float64 `json:"success_rate"`
}

func directionToEngine(d Direction) byte {
	if d == Sell {
		return ctp.DirectionSell
	}
	return ctp.DirectionBuy
}

func directionFromEngine(b byte) Direction {
	if b == ctp.DirectionSell {
		return Sell
	}
	return Buy
}

func offsetToEngine(o Offset) byte {
	switch o {
	case Close:
		return ctp.OffsetClose
	case CloseToday:
		return ctp.OffsetCloseToday
	case CloseYesterday:
		return ctp.OffsetCloseYesterday
	}
	return ctp.OffsetOpen
}

func offsetFromEngine(b byte) Offset {
	switch b {
	case ctp.OffsetClose:
		return Close
	case ctp.OffsetCloseToday:
		return CloseToday
	case ctp.OffsetCloseYesterday:
		return CloseYesterday
	}
	return Open
}

func statusFromEngine(b byte) Status {
	switch b {
	case ctp.StatusAllTraded:
		return StatusAllTraded
	case ctp.StatusPartTradedQueueing, ctp.StatusPartTradedNotQueueing:
		return StatusPartTradedQueueing
	case ctp.StatusNoTradeQueueing, ctp.StatusNoTradeNotQueueing, ctp.StatusUnknown, ctp.StatusTouched:
		return StatusNoTradeQueueing
	case ctp.StatusCanceled:
		return StatusCanceled
	}
	return StatusNoTradeQueueing
}
