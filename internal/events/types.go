// Package events carries the typed notifications the gateway publishes to
// its consumers: connection lifecycle, market ticks, order and trade pushes,
// account and position refreshes, settlement state, and surfaced errors.
package events

import "time"

// Type identifies an event topic.
type Type string

const (
	TypeConnected           Type = "connected"
	TypeDisconnected        Type = "disconnected"
	TypeLoginSuccess        Type = "login_success"
	TypeLoginFailed         Type = "login_failed"
	TypeMarketData          Type = "market_data"
	TypeOrderUpdate         Type = "order_update"
	TypeTradeUpdate         Type = "trade_update"
	TypeAccountUpdate       Type = "account_update"
	TypePositionUpdate      Type = "position_update"
	TypeSettlementReady     Type = "settlement_ready"
	TypeSettlementConfirmed Type = "settlement_confirmed"
	TypeRiskLevel           Type = "risk_level"
	TypeSubscriptionFailed  Type = "subscription_failed"
	TypeError               Type = "error"
)

// Front names which engine connection an event refers to.
type Front string

const (
	FrontMarket Front = "market"
	FrontTrader Front = "trader"
)

// Event is the envelope published on the bus. Payload holds one of the
// typed payload structs below, keyed by Type.
type Event struct {
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// New stamps an event with the current time.
func New(t Type, payload any) Event {
	return Event{Type: t, Timestamp: time.Now(), Payload: payload}
}

// ConnectionPayload reports a front connecting or dropping.
type ConnectionPayload struct {
	Front  Front `json:"front"`
	Reason int   `json:"reason,omitempty"`
}

// LoginPayload reports the outcome of a login attempt.
type LoginPayload struct {
	Front      Front  `json:"front"`
	TradingDay string `json:"trading_day,omitempty"`
	FrontID    int    `json:"front_id,omitempty"`
	SessionID  int    `json:"session_id,omitempty"`
	Code       int    `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SubscriptionFailedPayload reports an instrument that exhausted its
// subscription retries.
type SubscriptionFailedPayload struct {
	InstrumentID string `json:"instrument_id"`
	Code         int    `json:"code"`
	Message      string `json:"message"`
}

// RiskLevelPayload reports a risk-ratio threshold crossing.
type RiskLevelPayload struct {
	Level     string  `json:"level"`
	RiskRatio float64 `json:"risk_ratio"`
}

// ErrorPayload surfaces an asynchronous failure.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
