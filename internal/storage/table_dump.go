package storage

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/types"
)

// DefaultDumpLimit caps a table dump when the caller passes no limit
const DefaultDumpLimit = 1000

// dumpQueries is the only way a table name reaches SQL. Each query is a
// constant; callers select one through types.Table.
var dumpQueries = map[types.Table]string{
	types.TableUsers:                `SELECT * FROM users ORDER BY user_id LIMIT $1`,
	types.TableWallets:              `SELECT * FROM wallets ORDER BY address LIMIT $1`,
	types.TableUserWallets:          `SELECT * FROM user_wallets ORDER BY user_id, wallet_address LIMIT $1`,
	types.TableChains:               `SELECT * FROM chains ORDER BY wallet_address, id LIMIT $1`,
	types.TableWalletChainBalances:  `SELECT * FROM wallet_chain_balances ORDER BY wallet_address, chain_id LIMIT $1`,
	types.TableTokens:               `SELECT * FROM tokens ORDER BY id LIMIT $1`,
	types.TableWalletTokenBalances:  `SELECT * FROM wallet_token_balances ORDER BY wallet_address, token_id LIMIT $1`,
	types.TableNFTs:                 `SELECT * FROM nfts ORDER BY wallet_address, id LIMIT $1`,
	types.TableNFTAttributes:        `SELECT * FROM nft_attributes ORDER BY wallet_address, nft_id, attr_key LIMIT $1`,
	types.TableSolanaNativeBalances: `SELECT * FROM solana_native_balances ORDER BY wallet_address LIMIT $1`,
	types.TableSolanaTokens:         `SELECT * FROM solana_tokens ORDER BY wallet_address, associated_token_address LIMIT $1`,
	types.TableSolanaNFTs:           `SELECT * FROM solana_nfts ORDER BY wallet_address, associated_token_address LIMIT $1`,
	types.TableBitcoinAddresses:     `SELECT * FROM bitcoin_addresses ORDER BY wallet_address LIMIT $1`,
	types.TableUserPortfolio:        `SELECT * FROM user_portfolio ORDER BY user_id, wallet_address, token_id LIMIT $1`,
	types.TableUserSpamFilters:      `SELECT * FROM user_spam_filters ORDER BY user_id LIMIT $1`,
}

// DumpTable returns the raw rows of a known table for admin inspection
func (r *PortfolioRepository) DumpTable(ctx context.Context, table types.Table, limit int) (*models.TableDump, error) {
	query, ok := dumpQueries[table]
	if !ok {
		return nil, apperrors.NewInvalidParameterError("table", fmt.Sprintf("unknown table %q", table))
	}
	if limit <= 0 {
		limit = DefaultDumpLimit
	}

	rows, err := r.db.Pool().Query(ctx, query, limit)
	if err != nil {
		return nil, classifyError("dump table", err)
	}
	defer rows.Close()

	dump := &models.TableDump{Table: string(table), Rows: []map[string]any{}}
	for _, fd := range rows.FieldDescriptions() {
		dump.Columns = append(dump.Columns, fd.Name)
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, classifyError("dump table", err)
		}
		row := make(map[string]any, len(values))
		for i, v := range values {
			row[dump.Columns[i]] = dumpValue(v)
		}
		dump.Rows = append(dump.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("dump table", err)
	}

	return dump, nil
}

// dumpValue converts driver values into JSON-friendly ones
func dumpValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		s, err := x.Value()
		if err != nil {
			return nil
		}
		return s
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = dumpValue(x[i])
		}
		return out
	case driver.Valuer:
		val, err := x.Value()
		if err != nil {
			return nil
		}
		return val
	default:
		return v
	}
}
