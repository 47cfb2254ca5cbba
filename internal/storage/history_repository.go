package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wallet-portfolio/internal/models"
)

// HistoryRepository appends rollup snapshots to ClickHouse. It replaces
// per-table history triggers: the relational store keeps only current state.
type HistoryRepository struct {
	db *ClickHouseDB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *ClickHouseDB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AppendSnapshot writes every entry of the snapshot in one batch.
// An empty snapshot writes nothing.
func (r *HistoryRepository) AppendSnapshot(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	if len(snapshot.Entries) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO portfolio_history (
			snapshot_id, user_id, taken_at, token_id, wallet_address,
			chain, name, total_token_amount, total_usd_value
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range snapshot.Entries {
		if err := batch.Append(
			snapshot.SnapshotID,
			snapshot.UserID,
			snapshot.TakenAt,
			e.TokenID,
			e.WalletAddress,
			deref(e.Chain),
			deref(e.Name),
			nullDecimalString(e.TotalTokenAmount),
			nullDecimalString(e.TotalUSDValue),
		); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send history batch: %w", err)
	}
	return nil
}

// SnapshotTotal is the usd total of one historical snapshot
type SnapshotTotal struct {
	SnapshotID    string          `json:"snapshotId"`
	TakenAt       time.Time       `json:"takenAt"`
	TotalUSDValue decimal.Decimal `json:"totalUsdValue"`
	Entries       uint64          `json:"entries"`
}

// ListSnapshotTotals returns the most recent snapshot totals of a user, newest first
func (r *HistoryRepository) ListSnapshotTotals(ctx context.Context, userID string, limit int) ([]SnapshotTotal, error) {
	if limit <= 0 {
		limit = 30
	}

	rows, err := r.db.Conn().Query(ctx, `
		SELECT snapshot_id, max(taken_at), toString(sum(toDecimal128OrZero(total_usd_value, 18))), count()
		FROM portfolio_history
		WHERE user_id = ?
		GROUP BY snapshot_id
		ORDER BY max(taken_at) DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var totals []SnapshotTotal
	for rows.Next() {
		var (
			t     SnapshotTotal
			total string
		)
		if err := rows.Scan(&t.SnapshotID, &t.TakenAt, &total, &t.Entries); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		t.TotalUSDValue, err = decimal.NewFromString(total)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history total %q: %w", total, err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullDecimalString(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}
