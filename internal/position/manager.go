// Package position keeps the in-memory position book, keyed by instrument
// and direction. Query responses replace the book wholesale; trade pushes
// adjust it incrementally; ticks drive floating P&L.
package position

import (
	"sync"

	"go.uber.org/zap"

	"terminal-core/internal/events"
	"terminal-core/internal/order"
	"terminal-core/pkg/config"
	"terminal-core/pkg/ctp"
	"terminal-core/pkg/log"
)

// Direction of a position.
type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
)

// Key identifies one position book entry.
type Key struct {
	InstrumentID string
	Direction    Direction
}

// Position is one side of an instrument's exposure.
//
// Total always equals Today+Yesterday, Frozen never exceeds Total, and
// Closeable is derived as Total-Frozen.
type Position struct {
	InstrumentID   string    `json:"instrument_id"`
	Direction      Direction `json:"direction"`
	Total          int       `json:"total"`
	Today          int       `json:"today"`
	Yesterday      int       `json:"yesterday"`
	Frozen         int       `json:"frozen"`
	AvgCost        float64   `json:"avg_cost"`
	Margin         float64   `json:"margin"`
	PositionProfit float64   `json:"position_profit"`
	CloseProfit    float64   `json:"close_profit"`
	LastPrice      float64   `json:"last_price"`
}

// Closeable is the volume available for new close orders.
func (p Position) Closeable() int { return p.Total - p.Frozen }

// Stats aggregates the book.
type Stats struct {
	LongVolume  int     `json:"long_volume"`
	ShortVolume int     `json:"short_volume"`
	TotalMargin float64 `json:"total_margin"`
	FloatingPnL float64 `json:"floating_pnl"`
	RealizedPnL float64 `json:"realized_pnl"`
}

// Manager is the position book.
type Manager struct {
	mu        sync.RWMutex
	cfg       *config.Config
	bus       *events.Bus
	positions map[Key]*Position
}

// NewManager builds an empty book.
func NewManager(cfg *config.Config, bus *events.Bus) *Manager {
	return &Manager{cfg: cfg, bus: bus, positions: make(map[Key]*Position)}
}

// Replace swaps the whole book for the rows of one query response. Rows with
// zero total are dropped.
func (m *Manager) Replace(rows []*ctp.InvestorPositionField) {
	book := make(map[Key]*Position, len(rows))
	cost := make(map[Key]float64, len(rows))
	for _, row := range rows {
		if row == nil || row.Position == 0 {
			continue
		}
		dir := Long
		if row.PosiDirection == ctp.PosiDirectionShort {
			dir = Short
		}
		key := Key{InstrumentID: row.InstrumentID, Direction: dir}
		p, ok := book[key]
		if !ok {
			p = &Position{InstrumentID: row.InstrumentID, Direction: dir}
			book[key] = p
		}
		p.Total += row.Position
		p.Today += row.TodayPosition
		p.Yesterday += row.YdPosition
		p.Margin += row.UseMargin
		p.PositionProfit += row.PositionProfit
		p.CloseProfit += row.CloseProfit
		cost[key] += row.OpenCost
	}
	// OpenCost arrives as total cost; derive the per-unit average.
	for key, p := range book {
		mult := m.cfg.Multiplier(key.InstrumentID)
		if p.Total > 0 && mult > 0 {
			p.AvgCost = cost[key] / float64(p.Total) / mult
		}
	}

	m.mu.Lock()
	m.positions = book
	snap := m.snapshotLocked()
	m.mu.Unlock()

	log.Debug("position book replaced", zap.Int("rows", len(snap)))
	m.bus.Publish(events.New(events.TypePositionUpdate, snap))
}

// ApplyTrade adjusts the book for one execution. Opens add to today's
// volume; closes consume yesterday's volume first unless the offset pins a
// bucket.
func (m *Manager) ApplyTrade(t order.Trade) {
	dir := Long
	if (t.Direction == order.Buy) == (t.Offset != order.Open) {
		dir = Short
	}
	key := Key{InstrumentID: t.InstrumentID, Direction: dir}
	mult := m.cfg.Multiplier(t.InstrumentID)

	m.mu.Lock()
	p, ok := m.positions[key]
	if !ok {
		p = &Position{InstrumentID: t.InstrumentID, Direction: dir}
		m.positions[key] = p
	}

	if t.Offset == order.Open {
		newTotal := p.Total + t.Volume
		if newTotal > 0 {
			p.AvgCost = (p.AvgCost*float64(p.Total) + t.Price*float64(t.Volume)) / float64(newTotal)
		}
		p.Total = newTotal
		p.Today += t.Volume
	} else {
		vol := t.Volume
		if vol > p.Total {
			log.Warn("close trade exceeds position, clamping",
				zap.String("instrument", t.InstrumentID),
				zap.Int("volume", vol),
				zap.Int("held", p.Total))
			vol = p.Total
		}
		switch t.Offset {
		case order.CloseToday:
			p.Today -= min(vol, p.Today)
		case order.CloseYesterday:
			p.Yesterday -= min(vol, p.Yesterday)
		default:
			fromYd := min(vol, p.Yesterday)
			p.Yesterday -= fromYd
			p.Today -= min(vol-fromYd, p.Today)
		}
		p.Total -= vol
		// The fill consumes its reservation along with the volume.
		p.Frozen -= min(vol, p.Frozen)
		realized := (t.Price - p.AvgCost) * float64(vol) * mult
		if dir == Short {
			realized = -realized
		}
		p.CloseProfit += realized
		if p.Total == 0 {
			p.AvgCost = 0
			p.PositionProfit = 0
		}
	}
	m.recomputeProfitLocked(p, mult)
	snap := *p
	if p.Total == 0 && p.Frozen == 0 {
		delete(m.positions, key)
	}
	m.mu.Unlock()

	m.bus.Publish(events.New(events.TypePositionUpdate, []Position{snap}))
}

// Freeze reserves closeable volume for a pending close order. It fails when
// the remaining closeable volume is insufficient.
func (m *Manager) Freeze(instrumentID string, dir Direction, volume int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[Key{InstrumentID: instrumentID, Direction: dir}]
	if !ok || p.Closeable() < volume {
		return false
	}
	p.Frozen += volume
	return true
}

// Unfreeze releases previously frozen volume, clamped at zero.
func (m *Manager) Unfreeze(instrumentID string, dir Direction, volume int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[Key{InstrumentID: instrumentID, Direction: dir}]
	if !ok {
		return
	}
	p.Frozen -= volume
	if p.Frozen < 0 {
		p.Frozen = 0
	}
}

// UpdateLastPrice recomputes floating P&L for both sides of an instrument
// from a fresh tick.
func (m *Manager) UpdateLastPrice(instrumentID string, lastPrice float64) {
	if lastPrice <= 0 {
		return
	}
	mult := m.cfg.Multiplier(instrumentID)
	m.mu.Lock()
	for _, dir := range []Direction{Long, Short} {
		p, ok := m.positions[Key{InstrumentID: instrumentID, Direction: dir}]
		if !ok {
			continue
		}
		p.LastPrice = lastPrice
		m.recomputeProfitLocked(p, mult)
	}
	m.mu.Unlock()
}

// recomputeProfitLocked refreshes floating P&L. Caller holds the lock.
func (m *Manager) recomputeProfitLocked(p *Position, mult float64) {
	if p.Total == 0 || p.LastPrice <= 0 {
		return
	}
	profit := (p.LastPrice - p.AvgCost) * float64(p.Total) * mult
	if p.Direction == Short {
		profit = -profit
	}
	p.PositionProfit = profit
}

// Get returns one book entry.
func (m *Manager) Get(instrumentID string, dir Direction) (Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[Key{InstrumentID: instrumentID, Direction: dir}]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// All returns a copy of the book.
func (m *Manager) All() []Position {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() []Position {
	out := make([]Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, *p)
	}
	return out
}

// VolumeByInstrument sums open volume across directions, for risk checks.
func (m *Manager) VolumeByInstrument() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int)
	for key, p := range m.positions {
		out[key.InstrumentID] += p.Total
	}
	return out
}

// Net returns long minus short volume for an instrument.
func (m *Manager) Net(instrumentID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var net int
	if p, ok := m.positions[Key{InstrumentID: instrumentID, Direction: Long}]; ok {
		net += p.Total
	}
	if p, ok := m.positions[Key{InstrumentID: instrumentID, Direction: Short}]; ok {
		net -= p.Total
	}
	return net
}

// Stats aggregates the whole book.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st Stats
	for key, p := range m.positions {
		if key.Direction == Long {
			st.LongVolume += p.Total
		} else {
			st.ShortVolume += p.Total
		}
		st.TotalMargin += p.Margin
		st.FloatingPnL += p.PositionProfit
		st.RealizedPnL += p.CloseProfit
	}
	return st
}

// FloatingLoss sums negative floating P&L across the book as a positive
// number.
func (m *Manager) FloatingLoss() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var loss float64
	for _, p := range m.positions {
		if p.PositionProfit < 0 {
			loss -= p.PositionProfit
		}
	}
	return loss
}
