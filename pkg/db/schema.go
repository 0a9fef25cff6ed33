package db

const schema = `
CREATE TABLE IF NOT EXISTS orders (
    order_ref     TEXT PRIMARY KEY,
    instrument_id TEXT NOT NULL,
    exchange_id   TEXT NOT NULL DEFAULT '',
    order_sys_id  TEXT NOT NULL DEFAULT '',
    direction     TEXT NOT NULL,
    offset        TEXT NOT NULL,
    price         REAL NOT NULL,
    volume        INTEGER NOT NULL,
    traded        INTEGER NOT NULL DEFAULT 0,
    status        TEXT NOT NULL,
    status_msg    TEXT NOT NULL DEFAULT '',
    trading_day   TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS trades (
    trade_id      TEXT PRIMARY KEY,
    order_ref     TEXT NOT NULL,
    instrument_id TEXT NOT NULL,
    exchange_id   TEXT NOT NULL DEFAULT '',
    direction     TEXT NOT NULL,
    offset        TEXT NOT NULL,
    price         REAL NOT NULL,
    volume        INTEGER NOT NULL,
    trade_date    TEXT NOT NULL DEFAULT '',
    trade_time    TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_trades_order_ref ON trades(order_ref);

CREATE TABLE IF NOT EXISTS settlements (
    trading_day  TEXT PRIMARY KEY,
    content      TEXT NOT NULL,
    close_profit REAL NOT NULL DEFAULT 0,
    commission   REAL NOT NULL DEFAULT 0,
    confirmed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
