package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PortfolioEntry is one row of the per-user rollup (key user_id + token_id + wallet_address).
// It is derived by Recompute and never written directly.
type PortfolioEntry struct {
	UserID           string              `json:"userId" db:"user_id"`
	TokenID          string              `json:"tokenId" db:"token_id"`
	WalletAddress    string              `json:"walletAddress" db:"wallet_address"`
	Chain            *string             `json:"chain,omitempty" db:"chain"`
	Name             *string             `json:"name,omitempty" db:"name"`
	TotalTokenAmount decimal.NullDecimal `json:"totalTokenAmount" db:"total_token_amount"`
	TotalUSDValue    decimal.NullDecimal `json:"totalUsdValue" db:"total_usd_value"`
	UpdatedAt        time.Time           `json:"updatedAt" db:"updated_at"`
}

// ChainBreakdownRow compares a chain's provider-reported usd value with the
// sum of the user's itemized token values on that chain.
type ChainBreakdownRow struct {
	WalletAddress    string              `json:"walletAddress"`
	ChainID          string              `json:"chainId"`
	ChainName        *string             `json:"chainName,omitempty"`
	ReportedUSDValue decimal.NullDecimal `json:"reportedUsdValue"`
	ComputedUSDValue decimal.Decimal     `json:"computedUsdValue"`
	Difference       decimal.Decimal     `json:"difference"`
}

// TokenBreakdownRow is a rollup row enriched with the token's verification flags
type TokenBreakdownRow struct {
	PortfolioEntry
	IsVerified *bool `json:"isVerified,omitempty"`
	IsCore     *bool `json:"isCore,omitempty"`
	IsWallet   *bool `json:"isWallet,omitempty"`
	// LikelySpam is advisory; only UserSpamFilter decides what is hidden
	LikelySpam bool `json:"likelySpam"`
	// ExplorerURL links the token on its chain's block explorer, when known
	ExplorerURL *string `json:"explorerUrl,omitempty"`
}

// IsLikelySpam reports whether a token is unverified, not core and not
// wallet-native. Missing flags count as false.
func IsLikelySpam(isVerified, isCore, isWallet *bool) bool {
	return !flag(isVerified) && !flag(isCore) && !flag(isWallet)
}

func flag(b *bool) bool {
	return b != nil && *b
}

// TokenFilter narrows a token breakdown. Zero values mean "no filter".
type TokenFilter struct {
	ExcludeSpam bool
	// MinUSD drops rows whose usd value is below the threshold (dust)
	MinUSD decimal.NullDecimal
	Chain  string
	Wallet string
}

// WalletChainTotal is the usd sum of one wallet's rollup rows on one chain
type WalletChainTotal struct {
	Chain         string          `json:"chain"`
	TotalUSDValue decimal.Decimal `json:"totalUsdValue"`
	TokenCount    int             `json:"tokenCount"`
}

// TableDump is the raw content of one table for admin inspection
type TableDump struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// PortfolioSnapshot is an append-only copy of a user's rollup taken after a recompute
type PortfolioSnapshot struct {
	SnapshotID string           `json:"snapshotId"`
	UserID     string           `json:"userId"`
	TakenAt    time.Time        `json:"takenAt"`
	Entries    []PortfolioEntry `json:"entries"`
}
