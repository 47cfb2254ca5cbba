package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a chain-agnostic address shared by any number of users
type Wallet struct {
	Address       string              `json:"address" db:"address"`
	TotalUSDValue decimal.NullDecimal `json:"totalUsdValue" db:"total_usd_value"`
	UpdatedAt     time.Time           `json:"updatedAt" db:"updated_at"`
}

// Chain is one wallet's holdings summary on one chain (key id + wallet_address)
type Chain struct {
	ID               string              `json:"id" db:"id"`
	WalletAddress    string              `json:"walletAddress" db:"wallet_address"`
	CommunityID      decimal.NullDecimal `json:"communityId" db:"community_id"`
	Name             *string             `json:"name,omitempty" db:"name"`
	NativeTokenID    *string             `json:"nativeTokenId,omitempty" db:"native_token_id"`
	LogoURL          *string             `json:"logoUrl,omitempty" db:"logo_url"`
	WrappedTokenID   *string             `json:"wrappedTokenId,omitempty" db:"wrapped_token_id"`
	IsSupportPreExec *bool               `json:"isSupportPreExec,omitempty" db:"is_support_pre_exec"`
	USDValue         decimal.NullDecimal `json:"usdValue" db:"usd_value"`
}

// WalletChainBalance is the denormalized usd value of a wallet on one chain
type WalletChainBalance struct {
	WalletAddress string              `json:"walletAddress" db:"wallet_address"`
	ChainID       string              `json:"chainId" db:"chain_id"`
	USDValue      decimal.NullDecimal `json:"usdValue" db:"usd_value"`
}

// Token holds token metadata. The id is globally unique (chain + contract).
type Token struct {
	ID              string              `json:"id" db:"id"`
	WalletAddress   string              `json:"walletAddress" db:"wallet_address"`
	Chain           *string             `json:"chain,omitempty" db:"chain"`
	Name            *string             `json:"name,omitempty" db:"name"`
	Symbol          *string             `json:"symbol,omitempty" db:"symbol"`
	DisplaySymbol   *string             `json:"displaySymbol,omitempty" db:"display_symbol"`
	OptimizedSymbol *string             `json:"optimizedSymbol,omitempty" db:"optimized_symbol"`
	Decimals        decimal.NullDecimal `json:"decimals" db:"decimals"`
	LogoURL         *string             `json:"logoUrl,omitempty" db:"logo_url"`
	ProtocolID      *string             `json:"protocolId,omitempty" db:"protocol_id"`
	Price           decimal.NullDecimal `json:"price" db:"price"`
	Price24hChange  decimal.NullDecimal `json:"price24hChange" db:"price_24h_change"`
	IsVerified      *bool               `json:"isVerified,omitempty" db:"is_verified"`
	IsCore          *bool               `json:"isCore,omitempty" db:"is_core"`
	IsWallet        *bool               `json:"isWallet,omitempty" db:"is_wallet"`
	TimeAt          *time.Time          `json:"timeAt,omitempty" db:"time_at"`
	Amount          decimal.NullDecimal `json:"amount" db:"amount"`
}

// WalletTokenBalance is the amount of one token held by one wallet
type WalletTokenBalance struct {
	WalletAddress string              `json:"walletAddress" db:"wallet_address"`
	TokenID       string              `json:"tokenId" db:"token_id"`
	Amount        decimal.NullDecimal `json:"amount" db:"amount"`
}
