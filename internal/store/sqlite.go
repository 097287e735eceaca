package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"inditrade-paper/internal/errors"
	"inditrade-paper/internal/models"
)

// SQLiteStore implements JournalStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the journal database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		target REAL,
		stop REAL,
		placed_at DATETIME NOT NULL,
		status TEXT NOT NULL,
		closed_at DATETIME,
		exit_price REAL,
		close_reason TEXT,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_placed_at ON orders(placed_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveOrder implements JournalStore. A later snapshot of the same order
// replaces the earlier one.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order models.Order) error {
	query := `
	INSERT INTO orders (id, symbol, side, quantity, entry_price, target, stop,
		placed_at, status, closed_at, exit_price, close_reason, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	ON CONFLICT(id) DO UPDATE SET
		status = excluded.status,
		closed_at = excluded.closed_at,
		exit_price = excluded.exit_price,
		close_reason = excluded.close_reason,
		updated_at = CURRENT_TIMESTAMP
	`

	var closedAt, exitPrice, reason interface{}
	if order.ClosedAt != nil {
		closedAt = order.ClosedAt.UTC()
		exitPrice = order.ExitPrice
		reason = string(order.CloseReason)
	}

	_, err := s.db.ExecContext(ctx, query,
		order.ID,
		order.Symbol,
		string(order.Side),
		order.Quantity,
		order.EntryPrice,
		nullableFloat(order.Target),
		nullableFloat(order.Stop),
		order.PlacedAt.UTC(),
		string(order.Status),
		closedAt,
		exitPrice,
		reason,
	)
	if err != nil {
		return errors.Wrapf(errors.ErrDatabaseError, "save order %s: %v", order.ID, err)
	}
	return nil
}

// ListOrders implements JournalStore.
func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	query := `SELECT id, symbol, side, quantity, entry_price, target, stop,
		placed_at, status, closed_at, exit_price, close_reason FROM orders`

	var where []string
	var args []interface{}
	if filter.Symbol != "" {
		where = append(where, "symbol = ?")
		args = append(args, filter.Symbol)
	}
	if filter.Side != "" {
		where = append(where, "side = ?")
		args = append(args, string(filter.Side))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		where = append(where, "placed_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY placed_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabaseError, "list orders: %v", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var (
			o                  models.Order
			side, status       string
			target, stop, exit sql.NullFloat64
			closedAt           sql.NullTime
			reason             sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &o.Quantity, &o.EntryPrice,
			&target, &stop, &o.PlacedAt, &status, &closedAt, &exit, &reason); err != nil {
			return nil, errors.Wrapf(errors.ErrDatabaseError, "scan order: %v", err)
		}

		o.Side = models.OrderSide(side)
		o.Status = models.OrderStatus(status)
		if target.Valid {
			o.Target = models.Float(target.Float64)
		}
		if stop.Valid {
			o.Stop = models.Float(stop.Float64)
		}
		if closedAt.Valid {
			t := closedAt.Time
			o.ClosedAt = &t
		}
		if exit.Valid {
			o.ExitPrice = exit.Float64
		}
		if reason.Valid {
			o.CloseReason = models.CloseReason(reason.String)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrapf(errors.ErrDatabaseError, "iterate orders: %v", err)
	}
	return orders, nil
}

// Close implements JournalStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
