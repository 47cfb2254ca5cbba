package models

import (
	"github.com/shopspring/decimal"
)

// NFT is one EVM NFT owned by a wallet (key id + wallet_address)
type NFT struct {
	ID            string              `json:"id" db:"id"`
	WalletAddress string              `json:"walletAddress" db:"wallet_address"`
	ContractID    *string             `json:"contractId,omitempty" db:"contract_id"`
	InnerID       *string             `json:"innerId,omitempty" db:"inner_id"`
	Chain         *string             `json:"chain,omitempty" db:"chain"`
	Name          *string             `json:"name,omitempty" db:"name"`
	Description   *string             `json:"description,omitempty" db:"description"`
	ContentType   *string             `json:"contentType,omitempty" db:"content_type"`
	Content       *string             `json:"content,omitempty" db:"content"`
	ThumbnailURL  *string             `json:"thumbnailUrl,omitempty" db:"thumbnail_url"`
	TotalSupply   decimal.NullDecimal `json:"totalSupply" db:"total_supply"`
	DetailURL     *string             `json:"detailUrl,omitempty" db:"detail_url"`
	CollectionID  *string             `json:"collectionId,omitempty" db:"collection_id"`
	ContractName  *string             `json:"contractName,omitempty" db:"contract_name"`
	IsERC721      *bool               `json:"isErc721,omitempty" db:"is_erc721"`
	IsERC1155     *bool               `json:"isErc1155,omitempty" db:"is_erc1155"`
	Amount        decimal.NullDecimal `json:"amount" db:"amount"`
	USDPrice      decimal.NullDecimal `json:"usdPrice" db:"usd_price"`
	Attributes    []NFTAttribute      `json:"attributes,omitempty" db:"-"`
}

// NFTAttribute is one trait of an NFT (key wallet_address + nft_id + attr_key)
type NFTAttribute struct {
	WalletAddress string  `json:"walletAddress" db:"wallet_address"`
	NFTID         string  `json:"nftId" db:"nft_id"`
	Key           string  `json:"key" db:"attr_key"`
	TraitType     *string `json:"traitType,omitempty" db:"trait_type"`
	Value         *string `json:"value,omitempty" db:"value"`
}

// SolanaNativeBalance is the SOL balance of a wallet
type SolanaNativeBalance struct {
	WalletAddress string              `json:"walletAddress" db:"wallet_address"`
	Lamports      *string             `json:"lamports,omitempty" db:"lamports"`
	Solana        decimal.NullDecimal `json:"solana" db:"solana"`
}

// SolanaAsset is an SPL token or NFT held in an associated token account
// (key wallet_address + associated_token_address). Tokens and NFTs share
// the shape but live in separate tables.
type SolanaAsset struct {
	WalletAddress          string              `json:"walletAddress" db:"wallet_address"`
	AssociatedTokenAddress string              `json:"associatedTokenAddress" db:"associated_token_address"`
	Mint                   *string             `json:"mint,omitempty" db:"mint"`
	AmountRaw              *string             `json:"amountRaw,omitempty" db:"amount_raw"`
	Amount                 decimal.NullDecimal `json:"amount" db:"amount"`
	Decimals               *int64              `json:"decimals,omitempty" db:"decimals"`
	Name                   *string             `json:"name,omitempty" db:"name"`
	Symbol                 *string             `json:"symbol,omitempty" db:"symbol"`
}

// BitcoinAddress holds chain-reported aggregate counters for a bitcoin address.
// Amounts are in satoshi.
type BitcoinAddress struct {
	WalletAddress       string  `json:"walletAddress" db:"wallet_address"`
	Received            *int64  `json:"received,omitempty" db:"received"`
	Sent                *int64  `json:"sent,omitempty" db:"sent"`
	Balance             *int64  `json:"balance,omitempty" db:"balance"`
	TxCount             *int64  `json:"txCount,omitempty" db:"tx_count"`
	UnconfirmedTxCount  *int64  `json:"unconfirmedTxCount,omitempty" db:"unconfirmed_tx_count"`
	UnconfirmedReceived *int64  `json:"unconfirmedReceived,omitempty" db:"unconfirmed_received"`
	UnconfirmedSent     *int64  `json:"unconfirmedSent,omitempty" db:"unconfirmed_sent"`
	UnspentTxCount      *int64  `json:"unspentTxCount,omitempty" db:"unspent_tx_count"`
	FirstTx             *string `json:"firstTx,omitempty" db:"first_tx"`
	LastTx              *string `json:"lastTx,omitempty" db:"last_tx"`
}
