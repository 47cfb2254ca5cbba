// Package types provides common type definitions for the wallet portfolio aggregator.
package types

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mr-tron/base58"
)

// ChainFamily groups chains that share an account/balance model
type ChainFamily string

const (
	// FamilyEVM represents EVM chains (contract balances, 0x addresses)
	FamilyEVM ChainFamily = "evm"
	// FamilySolana represents Solana (associated token accounts)
	FamilySolana ChainFamily = "solana"
	// FamilyBitcoin represents Bitcoin (UTXO counters)
	FamilyBitcoin ChainFamily = "bitcoin"
	// FamilyUnknown is returned when an address matches no known format
	FamilyUnknown ChainFamily = ""
)

var (
	base58Pattern      = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
	bitcoinBech32      = regexp.MustCompile(`^(bc1|tb1)[02-9ac-hj-np-z]{11,71}$`)
	bitcoinLegacyStart = "13mn2"
)

// Decoded sizes of base58 addresses: a Solana public key, and a Bitcoin
// version byte + hash160 + checksum.
const (
	solanaKeySize     = 32
	bitcoinLegacySize = 25
)

// DetectChainFamily infers the chain family from the address format
func DetectChainFamily(address string) ChainFamily {
	address = strings.TrimSpace(address)
	switch {
	case address == "":
		return FamilyUnknown
	case common.IsHexAddress(address) && strings.HasPrefix(strings.ToLower(address), "0x"):
		return FamilyEVM
	case bitcoinBech32.MatchString(strings.ToLower(address)):
		return FamilyBitcoin
	case base58Pattern.MatchString(address):
		return detectBase58Family(address)
	default:
		return FamilyUnknown
	}
}

// detectBase58Family tells legacy Bitcoin from Solana by decoded size.
// Both alphabets overlap, so "1111...1" (32 chars) is the all-zero Solana key.
func detectBase58Family(address string) ChainFamily {
	decoded, err := base58.Decode(address)
	if err != nil {
		return FamilyUnknown
	}
	switch {
	case len(decoded) == solanaKeySize && len(address) >= 32 && len(address) <= 44:
		return FamilySolana
	case len(decoded) == bitcoinLegacySize && len(address) >= 26 && len(address) <= 35 &&
		strings.ContainsRune(bitcoinLegacyStart, rune(address[0])):
		return FamilyBitcoin
	default:
		return FamilyUnknown
	}
}

// NormalizeAddress returns the canonical storage form of an address.
// EVM and bech32 addresses are case-insensitive and stored lower-case;
// base58 addresses are case-sensitive and kept verbatim.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	switch DetectChainFamily(address) {
	case FamilyEVM:
		return strings.ToLower(address)
	case FamilyBitcoin:
		if bitcoinBech32.MatchString(strings.ToLower(address)) {
			return strings.ToLower(address)
		}
	}
	return address
}

// Table identifies one of the relational store tables exposed for admin inspection
type Table string

const (
	TableUsers                Table = "users"
	TableWallets              Table = "wallets"
	TableUserWallets          Table = "user_wallets"
	TableChains               Table = "chains"
	TableWalletChainBalances  Table = "wallet_chain_balances"
	TableTokens               Table = "tokens"
	TableWalletTokenBalances  Table = "wallet_token_balances"
	TableNFTs                 Table = "nfts"
	TableNFTAttributes        Table = "nft_attributes"
	TableSolanaNativeBalances Table = "solana_native_balances"
	TableSolanaTokens         Table = "solana_tokens"
	TableSolanaNFTs           Table = "solana_nfts"
	TableBitcoinAddresses     Table = "bitcoin_addresses"
	TableUserPortfolio        Table = "user_portfolio"
	TableUserSpamFilters      Table = "user_spam_filters"
)

// AllTables lists every table that can be dumped, in schema order
var AllTables = []Table{
	TableUsers,
	TableWallets,
	TableUserWallets,
	TableChains,
	TableWalletChainBalances,
	TableTokens,
	TableWalletTokenBalances,
	TableNFTs,
	TableNFTAttributes,
	TableSolanaNativeBalances,
	TableSolanaTokens,
	TableSolanaNFTs,
	TableBitcoinAddresses,
	TableUserPortfolio,
	TableUserSpamFilters,
}

// ParseTable resolves a caller-supplied name against the closed set of tables.
// Matching is case-insensitive; ok is false for anything else.
func ParseTable(name string) (Table, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range AllTables {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
