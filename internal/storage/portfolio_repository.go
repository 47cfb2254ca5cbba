package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/types"
)

// PortfolioRepository maintains the per-user rollup and serves the read-only
// reporting queries built on it.
type PortfolioRepository struct {
	db *PostgresDB
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *PostgresDB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// RecomputeResult reports how many rollup rows a recompute touched
type RecomputeResult struct {
	Removed  int64 `json:"removed"`
	Upserted int64 `json:"upserted"`
}

const deleteStaleRollupSQL = `
	DELETE FROM user_portfolio up
	WHERE up.user_id = $1
	  AND NOT EXISTS (
		SELECT 1
		FROM user_wallets uw
		JOIN wallet_token_balances wtb ON wtb.wallet_address = uw.wallet_address
		WHERE uw.user_id = up.user_id
		  AND uw.wallet_address = up.wallet_address
		  AND wtb.token_id = up.token_id
	  )
`

// Rows whose values did not change are skipped so updated_at stays put.
const rebuildRollupSQL = `
	INSERT INTO user_portfolio (
		user_id, token_id, wallet_address, chain, name, total_token_amount, total_usd_value
	)
	SELECT
		uw.user_id,
		wtb.token_id,
		uw.wallet_address,
		t.chain,
		t.name,
		SUM(wtb.amount),
		SUM(wtb.amount * t.price)
	FROM user_wallets uw
	JOIN wallet_token_balances wtb ON wtb.wallet_address = uw.wallet_address
	JOIN tokens t ON t.id = wtb.token_id
	WHERE uw.user_id = $1
	GROUP BY uw.user_id, wtb.token_id, uw.wallet_address, t.chain, t.name
	ON CONFLICT (user_id, token_id, wallet_address) DO UPDATE SET
		chain = EXCLUDED.chain,
		name = EXCLUDED.name,
		total_token_amount = EXCLUDED.total_token_amount,
		total_usd_value = EXCLUDED.total_usd_value
	WHERE user_portfolio.chain IS DISTINCT FROM EXCLUDED.chain
	   OR user_portfolio.name IS DISTINCT FROM EXCLUDED.name
	   OR user_portfolio.total_token_amount IS DISTINCT FROM EXCLUDED.total_token_amount
	   OR user_portfolio.total_usd_value IS DISTINCT FROM EXCLUDED.total_usd_value
`

// Recompute rebuilds the user's rollup from user_wallets, wallet_token_balances
// and tokens in a single transaction, so readers never see a half-built rollup.
// Rows without a backing (link, balance) pair are removed first; the rest are
// upserted. A user without wallets ends up with zero rows.
func (r *PortfolioRepository) Recompute(ctx context.Context, userID string) (*RecomputeResult, error) {
	result := &RecomputeResult{}
	err := r.db.WithTx(ctx, "recompute portfolio", func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, deleteStaleRollupSQL, userID)
		if err != nil {
			return classifyError("remove stale rollup rows", err)
		}
		result.Removed = tag.RowsAffected()

		tag, err = tx.Exec(ctx, rebuildRollupSQL, userID)
		if err != nil {
			return classifyError("rebuild rollup", err)
		}
		result.Upserted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListEntries returns the user's rollup rows ordered by wallet and token
func (r *PortfolioRepository) ListEntries(ctx context.Context, userID string) ([]models.PortfolioEntry, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT user_id, token_id, wallet_address, chain, name,
			total_token_amount, total_usd_value, updated_at
		FROM user_portfolio
		WHERE user_id = $1
		ORDER BY wallet_address, token_id
	`, userID)
	if err != nil {
		return nil, classifyError("list portfolio", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PortfolioEntry, error) {
		var e models.PortfolioEntry
		err := row.Scan(
			&e.UserID,
			&e.TokenID,
			&e.WalletAddress,
			&e.Chain,
			&e.Name,
			&e.TotalTokenAmount,
			&e.TotalUSDValue,
			&e.UpdatedAt,
		)
		return e, err
	})
	if err != nil {
		return nil, classifyError("list portfolio", err)
	}
	return entries, nil
}

// ChainBreakdown joins the chain rows of the user's linked wallets with the
// per-chain sum of the user's rollup.
func (r *PortfolioRepository) ChainBreakdown(ctx context.Context, userID string) ([]models.ChainBreakdownRow, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT c.wallet_address, c.id, c.name, c.usd_value, COALESCE(p.computed, 0)
		FROM chains c
		JOIN user_wallets uw ON uw.wallet_address = c.wallet_address AND uw.user_id = $1
		LEFT JOIN (
			SELECT wallet_address, chain, SUM(total_usd_value) AS computed
			FROM user_portfolio
			WHERE user_id = $1
			GROUP BY wallet_address, chain
		) p ON p.wallet_address = c.wallet_address AND p.chain = c.id
		ORDER BY c.wallet_address, c.id
	`, userID)
	if err != nil {
		return nil, classifyError("chain breakdown", err)
	}

	breakdown, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ChainBreakdownRow, error) {
		var b models.ChainBreakdownRow
		if err := row.Scan(&b.WalletAddress, &b.ChainID, &b.ChainName, &b.ReportedUSDValue, &b.ComputedUSDValue); err != nil {
			return b, err
		}
		reported := decimal.Zero
		if b.ReportedUSDValue.Valid {
			reported = b.ReportedUSDValue.Decimal
		}
		b.Difference = reported.Sub(b.ComputedUSDValue)
		return b, nil
	})
	if err != nil {
		return nil, classifyError("chain breakdown", err)
	}
	return breakdown, nil
}

// TokenBreakdown returns every rollup row of the user with the token's
// verification flags, spam included.
func (r *PortfolioRepository) TokenBreakdown(ctx context.Context, userID string) ([]models.TokenBreakdownRow, error) {
	return r.FilteredTokenBreakdown(ctx, userID, models.TokenFilter{})
}

// FilteredTokenBreakdown is TokenBreakdown narrowed by filter. With
// ExcludeSpam, rows whose token name is in the user's spam set are dropped.
func (r *PortfolioRepository) FilteredTokenBreakdown(ctx context.Context, userID string, filter models.TokenFilter) ([]models.TokenBreakdownRow, error) {
	var (
		conds = []string{"up.user_id = $1"}
		args  = []any{userID}
	)
	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Chain != "" {
		conds = append(conds, "up.chain = "+addArg(filter.Chain))
	}
	if filter.Wallet != "" {
		conds = append(conds, "up.wallet_address = "+addArg(filter.Wallet))
	}
	if filter.MinUSD.Valid {
		conds = append(conds, "COALESCE(up.total_usd_value, 0) >= "+addArg(filter.MinUSD.Decimal))
	}
	if filter.ExcludeSpam {
		conds = append(conds, `NOT EXISTS (
			SELECT 1 FROM user_spam_filters sf
			WHERE sf.user_id = up.user_id AND up.name = ANY(sf.spam_tokens)
		)`)
	}

	query := `
		SELECT up.user_id, up.token_id, up.wallet_address, up.chain, up.name,
			up.total_token_amount, up.total_usd_value, up.updated_at,
			t.is_verified, t.is_core, t.is_wallet
		FROM user_portfolio up
		JOIN tokens t ON t.id = up.token_id
		WHERE ` + strings.Join(conds, " AND ") + `
		ORDER BY up.total_usd_value DESC NULLS LAST, up.token_id, up.wallet_address`

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError("token breakdown", err)
	}

	breakdown, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.TokenBreakdownRow, error) {
		var b models.TokenBreakdownRow
		err := row.Scan(
			&b.UserID,
			&b.TokenID,
			&b.WalletAddress,
			&b.Chain,
			&b.Name,
			&b.TotalTokenAmount,
			&b.TotalUSDValue,
			&b.UpdatedAt,
			&b.IsVerified,
			&b.IsCore,
			&b.IsWallet,
		)
		b.LikelySpam = models.IsLikelySpam(b.IsVerified, b.IsCore, b.IsWallet)
		b.ExplorerURL = types.ExplorerURL(b.Chain, b.TokenID)
		return b, err
	})
	if err != nil {
		return nil, classifyError("token breakdown", err)
	}
	return breakdown, nil
}

// TokenNames returns the distinct token names in the user's rollup
func (r *PortfolioRepository) TokenNames(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT DISTINCT name FROM user_portfolio
		WHERE user_id = $1 AND name IS NOT NULL
		ORDER BY name
	`, userID)
	if err != nil {
		return nil, classifyError("list token names", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classifyError("list token names", err)
	}
	return names, nil
}

// WalletChainTotals sums one wallet's rollup rows per chain for the user
func (r *PortfolioRepository) WalletChainTotals(ctx context.Context, userID, walletAddress string) ([]models.WalletChainTotal, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT COALESCE(chain, ''), COALESCE(SUM(total_usd_value), 0), COUNT(*)
		FROM user_portfolio
		WHERE user_id = $1 AND wallet_address = $2
		GROUP BY chain
		ORDER BY 2 DESC, 1
	`, userID, walletAddress)
	if err != nil {
		return nil, classifyError("wallet chain totals", err)
	}

	totals, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WalletChainTotal, error) {
		var t models.WalletChainTotal
		err := row.Scan(&t.Chain, &t.TotalUSDValue, &t.TokenCount)
		return t, err
	})
	if err != nil {
		return nil, classifyError("wallet chain totals", err)
	}
	return totals, nil
}
