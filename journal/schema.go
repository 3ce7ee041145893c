package journal

const Schema = `
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts DATETIME NOT NULL,
	kind TEXT NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	volume REAL,
	entry_price REAL,
	sl_price REAL,
	tp_price REAL,
	close_price REAL,
	profit REAL,
	daily_pnl REAL,
	conditions TEXT NOT NULL,
	comment TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);
`
