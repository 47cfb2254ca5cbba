package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/models"
)

// WalletRepository writes per-wallet state: wallets, chains, tokens and the
// two balance tables. Every write is an upsert that overwrites all non-key
// columns with the incoming values (last write wins, no merge).
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// UpsertWallet inserts or updates a wallet's total usd value
func (r *WalletRepository) UpsertWallet(ctx context.Context, address string, totalUSD decimal.NullDecimal) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO wallets (address, total_usd_value)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET
			total_usd_value = EXCLUDED.total_usd_value
	`, address, totalUSD)
	return classifyError("upsert wallet", err)
}

// EnsureWallet creates the wallet row if missing and leaves an existing one untouched
func (r *WalletRepository) EnsureWallet(ctx context.Context, address string) error {
	return ensureWallet(ctx, r.db.Pool(), address)
}

func ensureWallet(ctx context.Context, q DBTX, address string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO wallets (address) VALUES ($1)
		ON CONFLICT (address) DO NOTHING
	`, address)
	return classifyError("ensure wallet", err)
}

// UpsertChain inserts or updates a wallet's chain summary (key id + wallet_address)
func (r *WalletRepository) UpsertChain(ctx context.Context, chain *models.Chain) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO chains (
			id, wallet_address, community_id, name, native_token_id,
			logo_url, wrapped_token_id, is_support_pre_exec, usd_value
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id, wallet_address) DO UPDATE SET
			community_id = EXCLUDED.community_id,
			name = EXCLUDED.name,
			native_token_id = EXCLUDED.native_token_id,
			logo_url = EXCLUDED.logo_url,
			wrapped_token_id = EXCLUDED.wrapped_token_id,
			is_support_pre_exec = EXCLUDED.is_support_pre_exec,
			usd_value = EXCLUDED.usd_value
	`,
		chain.ID,
		chain.WalletAddress,
		chain.CommunityID,
		chain.Name,
		chain.NativeTokenID,
		chain.LogoURL,
		chain.WrappedTokenID,
		chain.IsSupportPreExec,
		chain.USDValue,
	)
	return classifyError("upsert chain", err)
}

// UpsertWalletChainBalance inserts or updates the usd value of a wallet on one chain
func (r *WalletRepository) UpsertWalletChainBalance(ctx context.Context, walletAddress, chainID string, usdValue decimal.NullDecimal) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO wallet_chain_balances (wallet_address, chain_id, usd_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address, chain_id) DO UPDATE SET
			usd_value = EXCLUDED.usd_value
	`, walletAddress, chainID, usdValue)
	return classifyError("upsert wallet chain balance", err)
}

// UpsertToken inserts or updates token metadata (global key id)
func (r *WalletRepository) UpsertToken(ctx context.Context, token *models.Token) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO tokens (
			id, wallet_address, chain, name, symbol, display_symbol, optimized_symbol,
			decimals, logo_url, protocol_id, price, price_24h_change,
			is_verified, is_core, is_wallet, time_at, amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			wallet_address = EXCLUDED.wallet_address,
			chain = EXCLUDED.chain,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			display_symbol = EXCLUDED.display_symbol,
			optimized_symbol = EXCLUDED.optimized_symbol,
			decimals = EXCLUDED.decimals,
			logo_url = EXCLUDED.logo_url,
			protocol_id = EXCLUDED.protocol_id,
			price = EXCLUDED.price,
			price_24h_change = EXCLUDED.price_24h_change,
			is_verified = EXCLUDED.is_verified,
			is_core = EXCLUDED.is_core,
			is_wallet = EXCLUDED.is_wallet,
			time_at = EXCLUDED.time_at,
			amount = EXCLUDED.amount
	`,
		token.ID,
		token.WalletAddress,
		token.Chain,
		token.Name,
		token.Symbol,
		token.DisplaySymbol,
		token.OptimizedSymbol,
		token.Decimals,
		token.LogoURL,
		token.ProtocolID,
		token.Price,
		token.Price24hChange,
		token.IsVerified,
		token.IsCore,
		token.IsWallet,
		token.TimeAt,
		token.Amount,
	)
	return classifyError("upsert token", err)
}

// UpsertWalletTokenBalance inserts or updates the amount of one token held by a wallet
func (r *WalletRepository) UpsertWalletTokenBalance(ctx context.Context, walletAddress, tokenID string, amount decimal.NullDecimal) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO wallet_token_balances (wallet_address, token_id, amount)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address, token_id) DO UPDATE SET
			amount = EXCLUDED.amount
	`, walletAddress, tokenID, amount)
	return classifyError("upsert wallet token balance", err)
}

// GetWallet retrieves a wallet by address
func (r *WalletRepository) GetWallet(ctx context.Context, address string) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.Pool().QueryRow(ctx, `
		SELECT address, total_usd_value, updated_at
		FROM wallets
		WHERE address = $1
	`, address).Scan(&w.Address, &w.TotalUSDValue, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("wallet", address)
		}
		return nil, classifyError("get wallet", err)
	}
	return &w, nil
}

// GetToken retrieves token metadata by id
func (r *WalletRepository) GetToken(ctx context.Context, id string) (*models.Token, error) {
	var t models.Token
	err := r.db.Pool().QueryRow(ctx, `
		SELECT id, COALESCE(wallet_address, ''), chain, name, symbol, display_symbol, optimized_symbol,
			decimals, logo_url, protocol_id, price, price_24h_change,
			is_verified, is_core, is_wallet, time_at, amount
		FROM tokens
		WHERE id = $1
	`, id).Scan(
		&t.ID,
		&t.WalletAddress,
		&t.Chain,
		&t.Name,
		&t.Symbol,
		&t.DisplaySymbol,
		&t.OptimizedSymbol,
		&t.Decimals,
		&t.LogoURL,
		&t.ProtocolID,
		&t.Price,
		&t.Price24hChange,
		&t.IsVerified,
		&t.IsCore,
		&t.IsWallet,
		&t.TimeAt,
		&t.Amount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("token", id)
		}
		return nil, classifyError("get token", err)
	}
	return &t, nil
}

// ListTokenBalances returns every token balance of a wallet
func (r *WalletRepository) ListTokenBalances(ctx context.Context, walletAddress string) ([]models.WalletTokenBalance, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT wallet_address, token_id, amount
		FROM wallet_token_balances
		WHERE wallet_address = $1
		ORDER BY token_id
	`, walletAddress)
	if err != nil {
		return nil, classifyError("list token balances", err)
	}

	balances, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WalletTokenBalance, error) {
		var b models.WalletTokenBalance
		err := row.Scan(&b.WalletAddress, &b.TokenID, &b.Amount)
		return b, err
	})
	if err != nil {
		return nil, classifyError("list token balances", err)
	}
	return balances, nil
}
