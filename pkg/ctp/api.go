// Package ctp models the native engine surface consumed by the gateway: the
// request APIs, the SPI callback interfaces, and the wire field structs. The
// vendor binary is loaded elsewhere; everything above this package depends
// only on these interfaces, and the Simulator in this package stands in for
// the vendor implementation in tests and the demo binary.
//
// Chinese text fields arrive GB18030-encoded; they are kept as raw bytes
// here and decoded at the gateway boundary.
package ctp

// Direction of an order or trade.
const (
	DirectionBuy  byte = '0'
	DirectionSell byte = '1'
)

// Offset flag: open a new position or close/reduce an existing one.
const (
	OffsetOpen           byte = '0'
	OffsetClose          byte = '1'
	OffsetCloseToday     byte = '3'
	OffsetCloseYesterday byte = '4'
)

// Order price types.
const (
	PriceTypeAny   byte = '1'
	PriceTypeLimit byte = '2'
	PriceTypeBest  byte = '3'
)

// Time conditions.
const (
	TimeConditionIOC byte = '1'
	TimeConditionGFS byte = '2'
	TimeConditionGFD byte = '3'
	TimeConditionGTD byte = '4'
	TimeConditionGTC byte = '5'
	TimeConditionGFA byte = '6'
)

// Volume conditions.
const (
	VolumeConditionAny byte = '1'
	VolumeConditionMin byte = '2'
	VolumeConditionAll byte = '3'
)

// Contingent conditions.
const (
	ContingentImmediately byte = '1'
	ContingentTouch       byte = '2'
	ContingentTouchProfit byte = '3'
)

// Order status codes pushed in OrderField.OrderStatus.
const (
	StatusAllTraded             byte = '0'
	StatusPartTradedQueueing    byte = '1'
	StatusPartTradedNotQueueing byte = '2'
	StatusNoTradeQueueing       byte = '3'
	StatusNoTradeNotQueueing    byte = '4'
	StatusCanceled              byte = '5'
	StatusUnknown               byte = 'a'
	StatusTouched               byte = 'b'
)

// Position directions in InvestorPositionField.PosiDirection.
const (
	PosiDirectionLong  byte = '2'
	PosiDirectionShort byte = '3'
)

// Cancel flag.
const ActionDelete byte = '0'

// RspInfo carries the engine's result for a request-scoped callback.
// ErrorID 0 means success.
type RspInfo struct {
	ErrorID  int
	ErrorMsg []byte
}

// Failed reports whether the response carries an error.
func (r *RspInfo) Failed() bool { return r != nil && r.ErrorID != 0 }

// ReqUserLogin is the login request for both fronts.
type ReqUserLogin struct {
	BrokerID string
	UserID   string
	Password string
	AppID    string
	AuthCode string
}

// RspUserLogin is the login response.
type RspUserLogin struct {
	TradingDay  string
	LoginTime   string
	BrokerID    string
	UserID      string
	SystemName  []byte
	FrontID     int
	SessionID   int
	MaxOrderRef string
}

// DepthMarketData is one market tick.
type DepthMarketData struct {
	TradingDay         string
	InstrumentID       string
	ExchangeID         string
	LastPrice          float64
	PreSettlementPrice float64
	PreClosePrice      float64
	OpenPrice          float64
	HighestPrice       float64
	LowestPrice        float64
	Volume             int64
	Turnover           float64
	OpenInterest       int64
	UpperLimitPrice    float64
	LowerLimitPrice    float64
	BidPrice1          float64
	BidVolume1         int
	AskPrice1          float64
	AskVolume1         int
	AveragePrice       float64
	UpdateTime         string
	UpdateMillisec     int
}

// InputOrder is the insert-order request.
type InputOrder struct {
	BrokerID            string
	InvestorID          string
	InstrumentID        string
	OrderRef            string
	ExchangeID          string
	Direction           byte
	OffsetFlag          byte
	PriceType           byte
	TimeCondition       byte
	VolumeCondition     byte
	ContingentCondition byte
	LimitPrice          float64
	Volume              int
	MinVolume           int
	StopPrice           float64
}

// OrderField is the order status push.
type OrderField struct {
	BrokerID            string
	InvestorID          string
	InstrumentID        string
	OrderRef            string
	ExchangeID          string
	OrderSysID          string
	FrontID             int
	SessionID           int
	Direction           byte
	OffsetFlag          byte
	PriceType           byte
	LimitPrice          float64
	VolumeTotalOriginal int
	VolumeTraded        int
	VolumeTotal         int
	OrderStatus         byte
	StatusMsg           []byte
	InsertDate          string
	InsertTime          string
	UpdateTime          string
}

// TradeField is one execution report.
type TradeField struct {
	BrokerID     string
	InvestorID   string
	InstrumentID string
	OrderRef     string
	ExchangeID   string
	OrderSysID   string
	TradeID      string
	Direction    byte
	OffsetFlag   byte
	Price        float64
	Volume       int
	TradeDate    string
	TradeTime    string
}

// InputOrderAction is the cancel request. The exchange identifiers must have
// been captured from a prior order push.
type InputOrderAction struct {
	BrokerID     string
	InvestorID   string
	InstrumentID string
	OrderRef     string
	ExchangeID   string
	OrderSysID   string
	FrontID      int
	SessionID    int
	ActionFlag   byte
}

// TradingAccountField is the account query response.
type TradingAccountField struct {
	AccountID        string
	PreBalance       float64
	Balance          float64
	Available        float64
	CurrMargin       float64
	FrozenMargin     float64
	FrozenCommission float64
	Commission       float64
	CloseProfit      float64
	PositionProfit   float64
}

// InvestorPositionField is one position row from the position query.
type InvestorPositionField struct {
	InstrumentID   string
	PosiDirection  byte
	Position       int
	TodayPosition  int
	YdPosition     int
	PositionCost   float64
	OpenCost       float64
	UseMargin      float64
	PositionProfit float64
	CloseProfit    float64
}

// SettlementInfoField is a settlement document chunk.
type SettlementInfoField struct {
	TradingDay string
	Content    []byte
}

// SettlementInfoConfirmField acknowledges a settlement confirmation.
type SettlementInfoConfirmField struct {
	ConfirmDate string
	ConfirmTime string
}

// MarketSPI receives market-front callbacks. Implementations must not block:
// the engine delivers callbacks on its own thread.
type MarketSPI interface {
	OnFrontConnected()
	OnFrontDisconnected(reason int)
	OnRspUserLogin(rsp *RspUserLogin, info *RspInfo)
	OnRspSubMarketData(instrumentID string, info *RspInfo)
	OnRspUnSubMarketData(instrumentID string, info *RspInfo)
	OnRtnDepthMarketData(md *DepthMarketData)
}

// TraderSPI receives trader-front callbacks.
type TraderSPI interface {
	OnFrontConnected()
	OnFrontDisconnected(reason int)
	OnRspUserLogin(rsp *RspUserLogin, info *RspInfo)
	OnRspOrderInsert(order *InputOrder, info *RspInfo)
	OnRspOrderAction(action *InputOrderAction, info *RspInfo)
	OnRtnOrder(order *OrderField)
	OnRtnTrade(trade *TradeField)
	OnRspQryTradingAccount(account *TradingAccountField, isLast bool)
	OnRspQryInvestorPosition(position *InvestorPositionField, isLast bool)
	OnRspQryOrder(order *OrderField, isLast bool)
	OnRspQryTrade(trade *TradeField, isLast bool)
	OnRspQrySettlementInfo(info *SettlementInfoField, isLast bool)
	OnRspSettlementInfoConfirm(confirm *SettlementInfoConfirmField, info *RspInfo)
}

// MarketAPI is the request surface of the market-data front. Request methods
// return the vendor return code: 0 means the request was accepted for
// transmission, anything else is a local rejection.
type MarketAPI interface {
	RegisterSPI(spi MarketSPI)
	RegisterFront(addr string)
	Init()
	Release()
	ReqUserLogin(req *ReqUserLogin) int
	SubscribeMarketData(instrumentIDs []string) int
	UnSubscribeMarketData(instrumentIDs []string) int
}

// TraderAPI is the request surface of the trader front.
type TraderAPI interface {
	RegisterSPI(spi TraderSPI)
	RegisterFront(addr string)
	Init()
	Release()
	ReqUserLogin(req *ReqUserLogin) int
	ReqOrderInsert(order *InputOrder) int
	ReqOrderAction(action *InputOrderAction) int
	ReqQryTradingAccount() int
	ReqQryInvestorPosition(instrumentID string) int
	ReqQryOrder(instrumentID string) int
	ReqQryTrade(instrumentID string) int
	ReqQrySettlementInfo(tradingDay string) int
	ReqSettlementInfoConfirm() int
}
