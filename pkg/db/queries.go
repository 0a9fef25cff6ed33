package db

import (
	"context"
	"fmt"
)

// UpsertOrder writes the order's latest state, keyed by order ref.
func (d *Database) UpsertOrder(ctx context.Context, row OrderRow) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO orders (order_ref, instrument_id, exchange_id, order_sys_id,
                    direction, offset, price, volume, traded, status,
                    status_msg, trading_day)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(order_ref) DO UPDATE SET
    exchange_id  = excluded.exchange_id,
    order_sys_id = excluded.order_sys_id,
    traded       = excluded.traded,
    status       = excluded.status,
    status_msg   = excluded.status_msg,
    updated_at   = CURRENT_TIMESTAMP`,
		row.OrderRef, row.InstrumentID, row.ExchangeID, row.OrderSysID,
		row.Direction, row.Offset, row.Price, row.Volume,
		row.Traded, row.Status, row.StatusMsg, row.TradingDay)
	if err != nil {
		return fmt.Errorf("upsert order %s: %w", row.OrderRef, err)
	}
	return nil
}

// InsertTrade journals one execution. Duplicate trade IDs are ignored so a
// replayed push is harmless.
func (d *Database) InsertTrade(ctx context.Context, row TradeRow) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT OR IGNORE INTO trades (trade_id, order_ref, instrument_id, exchange_id,
                              direction, offset, price, volume, trade_date, trade_time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.TradeID, row.OrderRef, row.InstrumentID, row.ExchangeID,
		row.Direction, row.Offset, row.Price, row.Volume,
		row.TradeDate, row.TradeTime)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", row.TradeID, err)
	}
	return nil
}

// InsertSettlement journals a confirmed settlement day.
func (d *Database) InsertSettlement(ctx context.Context, row SettlementRow) error {
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO settlements (trading_day, content, close_profit, commission)
VALUES (?, ?, ?, ?)
ON CONFLICT(trading_day) DO UPDATE SET
    content      = excluded.content,
    close_profit = excluded.close_profit,
    commission   = excluded.commission,
    confirmed_at = CURRENT_TIMESTAMP`,
		row.TradingDay, row.Content, row.CloseProfit, row.Commission)
	if err != nil {
		return fmt.Errorf("insert settlement %s: %w", row.TradingDay, err)
	}
	return nil
}

// ListOrders returns journaled orders for a trading day (all days when
// empty), newest first.
func (d *Database) ListOrders(ctx context.Context, tradingDay string) ([]OrderRow, error) {
	query := `
SELECT order_ref, instrument_id, exchange_id, order_sys_id, direction, offset,
       price, volume, traded, status, status_msg, trading_day, created_at, updated_at
FROM orders`
	var args []any
	if tradingDay != "" {
		query += ` WHERE trading_day = ?`
		args = append(args, tradingDay)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []OrderRow
	for rows.Next() {
		var r OrderRow
		if err := rows.Scan(&r.OrderRef, &r.InstrumentID, &r.ExchangeID, &r.OrderSysID,
			&r.Direction, &r.Offset, &r.Price, &r.Volume, &r.Traded, &r.Status,
			&r.StatusMsg, &r.TradingDay, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTrades returns journaled trades for an order ref (all when empty), in
// insertion order.
func (d *Database) ListTrades(ctx context.Context, orderRef string) ([]TradeRow, error) {
	query := `
SELECT trade_id, order_ref, instrument_id, exchange_id, direction, offset,
       price, volume, trade_date, trade_time, created_at
FROM trades`
	var args []any
	if orderRef != "" {
		query += ` WHERE order_ref = ?`
		args = append(args, orderRef)
	}
	query += ` ORDER BY created_at`

	rows, err := d.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRow
	for rows.Next() {
		var r TradeRow
		if err := rows.Scan(&r.TradeID, &r.OrderRef, &r.InstrumentID, &r.ExchangeID,
			&r.Direction, &r.Offset, &r.Price, &r.Volume, &r.TradeDate,
			&r.TradeTime, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListSettlements returns confirmed settlement days, oldest first.
func (d *Database) ListSettlements(ctx context.Context) ([]SettlementRow, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT trading_day, content, close_profit, commission, confirmed_at
FROM settlements ORDER BY trading_day`)
	if err != nil {
		return nil, fmt.Errorf("list settlements: %w", err)
	}
	defer rows.Close()

	var out []SettlementRow
	for rows.Next() {
		var r SettlementRow
		if err := rows.Scan(&r.TradingDay, &r.Content, &r.CloseProfit,
			&r.Commission, &r.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
