package storage

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/wallet-portfolio/internal/config"
	apperrors "github.com/wallet-portfolio/internal/errors"
)

const historyStoreName = "clickhouse"

// ClickHouseDB is the optional append-only sink for portfolio snapshots.
// Writes are small batches after each recompute, so the pool stays tiny.
type ClickHouseDB struct {
	conn driver.Conn
}

// NewClickHouseDB opens the history sink and pings it. An unreachable server
// is reported as unavailable so callers can run without history.
func NewClickHouseDB(ctx context.Context, cfg *config.ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{net.JoinHostPort(cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 30,
		},
		Compression:     &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
		DialTimeout:     5 * time.Second,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid ClickHouse options: %w", err)
	}

	db := &ClickHouseDB{conn: conn}
	if err := db.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// Ping checks the history sink within a short deadline
func (db *ClickHouseDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.conn.Ping(ctx); err != nil {
		return apperrors.NewUnavailableError(historyStoreName, err)
	}
	return nil
}

// Close closes the ClickHouse connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Conn returns the underlying ClickHouse connection
func (db *ClickHouseDB) Conn() driver.Conn {
	return db.conn
}

// Exec runs a statement without rows, used by the schema migrations
func (db *ClickHouseDB) Exec(ctx context.Context, query string, args ...any) error {
	return db.conn.Exec(ctx, query, args...)
}
