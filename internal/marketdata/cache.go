// Package marketdata converts engine ticks into the domain form and keeps
// the latest tick per instrument.
package marketdata

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"terminal-core/pkg/ctp"
	"terminal-core/pkg/log"
)

// Tick is one market snapshot in domain form.
type Tick struct {
	InstrumentID string    `json:"instrument_id"`
	ExchangeID   string    `json:"exchange_id,omitempty"`
	TradingDay   string    `json:"trading_day"`
	LastPrice    float64   `json:"last_price"`
	PreSettle    float64   `json:"pre_settlement_price"`
	Open         float64   `json:"open_price"`
	High         float64   `json:"highest_price"`
	Low          float64   `json:"lowest_price"`
	UpperLimit   float64   `json:"upper_limit_price"`
	LowerLimit   float64   `json:"lower_limit_price"`
	Volume       int64     `json:"volume"`
	Turnover     float64   `json:"turnover"`
	OpenInterest int64     `json:"open_interest"`
	BidPrice     float64   `json:"bid_price"`
	BidVolume    int       `json:"bid_volume"`
	AskPrice     float64   `json:"ask_price"`
	AskVolume    int       `json:"ask_volume"`
	UpdateTime   string    `json:"update_time"`
	ReceivedAt   time.Time `json:"received_at"`
}

// FromDepth converts an engine tick. ok is false for ticks that fail basic
// sanity checks and must be dropped.
func FromDepth(md *ctp.DepthMarketData) (Tick, bool) {
	if md == nil || md.InstrumentID == "" || md.LastPrice <= 0 {
		return Tick{}, false
	}
	return Tick{
		InstrumentID: md.InstrumentID,
		ExchangeID:   md.ExchangeID,
		TradingDay:   md.TradingDay,
		LastPrice:    md.LastPrice,
		PreSettle:    md.PreSettlementPrice,
		Open:         md.OpenPrice,
		High:         md.HighestPrice,
		Low:          md.LowestPrice,
		UpperLimit:   md.UpperLimitPrice,
		LowerLimit:   md.LowerLimitPrice,
		Volume:       md.Volume,
		Turnover:     md.Turnover,
		OpenInterest: md.OpenInterest,
		BidPrice:     md.BidPrice1,
		BidVolume:    md.BidVolume1,
		AskPrice:     md.AskPrice1,
		AskVolume:    md.AskVolume1,
		UpdateTime:   md.UpdateTime,
		ReceivedAt:   time.Now(),
	}, true
}

// Cache holds the latest tick per instrument. Writes always win: there is no
// ordering check beyond arrival order, which the dispatcher guarantees.
type Cache struct {
	mu    sync.RWMutex
	ticks map[string]Tick
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{ticks: make(map[string]Tick)}
}

// Apply converts and stores an engine tick. Invalid ticks are logged and
// dropped; ok reports whether the tick was stored.
func (c *Cache) Apply(md *ctp.DepthMarketData) (Tick, bool) {
	tick, ok := FromDepth(md)
	if !ok {
		id := ""
		if md != nil {
			id = md.InstrumentID
		}
		log.Debug("dropping invalid tick", zap.String("instrument", id))
		return Tick{}, false
	}
	c.mu.Lock()
	c.ticks[tick.InstrumentID] = tick
	c.mu.Unlock()
	return tick, true
}

// Latest returns the newest tick for an instrument.
func (c *Cache) Latest(instrumentID string) (Tick, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.ticks[instrumentID]
	return t, ok
}

// Snapshot returns a copy of every cached tick keyed by instrument.
func (c *Cache) Snapshot() map[string]Tick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Tick, len(c.ticks))
	for k, v := range c.ticks {
		out[k] = v
	}
	return out
}

// Len reports how many instruments have a cached tick.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ticks)
}
