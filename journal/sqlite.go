package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores events in an append-only events table.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func (j *SQLite) Record(e Event) error {
	cond, err := json.Marshal(e.Conditions)
	if err != nil {
		return fmt.Errorf("encode conditions: %w", err)
	}

	_, err = j.db.Exec(`
		INSERT INTO events
		(ts, kind, symbol, side, volume, entry_price, sl_price, tp_price, close_price, profit, daily_pnl, conditions, comment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Time.UTC(), string(e.Kind), e.Symbol, e.Side,
		e.Volume, e.Entry, e.SL, e.TP, e.ClosePrice, e.Profit, e.DailyPnL,
		string(cond), e.Comment,
	)
	return err
}

const eventColumns = `ts, kind, symbol, side, volume, entry_price, sl_price, tp_price, close_price, profit, daily_pnl, conditions, comment`

// ListBetween returns events with a timestamp in [start, end), oldest first.
func (j *SQLite) ListBetween(start, end time.Time) ([]Event, error) {
	rows, err := j.db.Query(`SELECT `+eventColumns+` FROM events
		WHERE ts >= ? AND ts < ?
		ORDER BY ts ASC, id ASC`, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// Tail returns the last n events, oldest first.
func (j *SQLite) Tail(n int) ([]Event, error) {
	rows, err := j.db.Query(`SELECT `+eventColumns+` FROM (
		SELECT * FROM events ORDER BY id DESC LIMIT ?
	) ORDER BY id ASC`, n)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e    Event
			kind string
			cond string
			nums [7]sql.NullFloat64
		)
		dest := []any{&e.Time, &kind, &e.Symbol, &e.Side}
		for i := range nums {
			dest = append(dest, &nums[i])
		}
		dest = append(dest, &cond, &e.Comment)

		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		e.Kind = Kind(kind)
		ptrs := []**float64{&e.Volume, &e.Entry, &e.SL, &e.TP, &e.ClosePrice, &e.Profit, &e.DailyPnL}
		for i, n := range nums {
			if n.Valid {
				*ptrs[i] = Float(n.Float64)
			}
		}
		if err := json.Unmarshal([]byte(cond), &e.Conditions); err != nil {
			return nil, fmt.Errorf("decode conditions: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
