package provider

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/numeric"
)

// requireKey reads a mandatory identifier. Items without one cannot be
// upserted because the identifier is part of the conflict target.
func requireKey(item Item, kind, field string, keys ...string) (string, error) {
	s := numeric.ToString(item.Get(keys...))
	if s == nil {
		return "", apperrors.NewMalformedPayloadError(kind, fmt.Errorf("missing %s", field))
	}
	return *s, nil
}

// TotalUSD returns the wallet's overall usd value
func (t *TotalBalance) TotalUSD() decimal.NullDecimal {
	return numeric.ToDecimal(t.TotalUSDValue)
}

// ToChain converts one chain_list entry
func ToChain(wallet string, item Item) (*models.Chain, error) {
	id, err := requireKey(item, "chain", "id", "id")
	if err != nil {
		return nil, err
	}
	return &models.Chain{
		ID:               id,
		WalletAddress:    wallet,
		CommunityID:      numeric.ToDecimal(item.Get("community_id")),
		Name:             numeric.ToString(item.Get("name")),
		NativeTokenID:    numeric.ToString(item.Get("native_token_id")),
		LogoURL:          numeric.ToString(item.Get("logo_url")),
		WrappedTokenID:   numeric.ToString(item.Get("wrapped_token_id")),
		IsSupportPreExec: numeric.ToBool(item.Get("is_support_pre_exec")),
		USDValue:         numeric.ToDecimal(item.Get("usd_value")),
	}, nil
}

// ToToken converts one token list entry. A malformed time_at becomes NULL.
func ToToken(wallet string, item Item) (*models.Token, error) {
	id, err := requireKey(item, "token", "id", "id")
	if err != nil {
		return nil, err
	}
	return &models.Token{
		ID:              id,
		WalletAddress:   wallet,
		Chain:           numeric.ToString(item.Get("chain")),
		Name:            numeric.ToString(item.Get("name")),
		Symbol:          numeric.ToString(item.Get("symbol")),
		DisplaySymbol:   numeric.ToString(item.Get("display_symbol")),
		OptimizedSymbol: numeric.ToString(item.Get("optimized_symbol")),
		Decimals:        numeric.ToDecimal(item.Get("decimals")),
		LogoURL:         numeric.ToString(item.Get("logo_url")),
		ProtocolID:      numeric.ToString(item.Get("protocol_id")),
		Price:           numeric.ToDecimal(item.Get("price")),
		Price24hChange:  numeric.ToDecimal(item.Get("price_24h_change")),
		IsVerified:      numeric.ToBool(item.Get("is_verified")),
		IsCore:          numeric.ToBool(item.Get("is_core")),
		IsWallet:        numeric.ToBool(item.Get("is_wallet")),
		TimeAt:          numeric.EpochToTime(item.Get("time_at")),
		Amount:          numeric.ToDecimal(item.Get("amount")),
	}, nil
}

// ToNFT converts one NFT list entry together with its attributes. The second
// return value counts attributes dropped because they had neither a key nor
// a trait type to identify them.
func ToNFT(wallet string, item Item) (*models.NFT, int, error) {
	id, err := requireKey(item, "nft", "id", "id")
	if err != nil {
		return nil, 0, err
	}

	nft := &models.NFT{
		ID:            id,
		WalletAddress: wallet,
		ContractID:    numeric.ToString(item.Get("contract_id")),
		InnerID:       numeric.ToString(item.Get("inner_id")),
		Chain:         numeric.ToString(item.Get("chain")),
		Name:          numeric.ToString(item.Get("name")),
		Description:   numeric.ToString(item.Get("description")),
		ContentType:   numeric.ToString(item.Get("content_type")),
		Content:       numeric.ToString(item.Get("content")),
		ThumbnailURL:  numeric.ToString(item.Get("thumbnail_url")),
		TotalSupply:   numeric.ToDecimal(item.Get("total_supply")),
		DetailURL:     numeric.ToString(item.Get("detail_url")),
		CollectionID:  numeric.ToString(item.Get("collection_id")),
		ContractName:  numeric.ToString(item.Get("contract_name")),
		IsERC721:      numeric.ToBool(item.Get("is_erc721")),
		IsERC1155:     numeric.ToBool(item.Get("is_erc1155")),
		Amount:        numeric.ToDecimal(item.Get("amount")),
		USDPrice:      numeric.ToDecimal(item.Get("usd_price")),
	}

	attrs, skipped := splitItems(item.Get("attributes"))
	for _, a := range attrs {
		traitType := numeric.ToString(a.Get("trait_type"))
		key := numeric.ToString(a.Get("key"))
		if key == nil {
			key = traitType
		}
		if key == nil {
			skipped++
			continue
		}
		nft.Attributes = append(nft.Attributes, models.NFTAttribute{
			WalletAddress: wallet,
			NFTID:         id,
			Key:           *key,
			TraitType:     traitType,
			Value:         numeric.ToString(a.Get("value")),
		})
	}
	return nft, skipped, nil
}

// ToSolanaNativeBalance converts the native_balance object. It returns nil
// when the payload carries no native balance.
func ToSolanaNativeBalance(wallet string, item Item) *models.SolanaNativeBalance {
	if item == nil {
		return nil
	}
	return &models.SolanaNativeBalance{
		WalletAddress: wallet,
		Lamports:      numeric.ToString(item.Get("lamports")),
		Solana:        numeric.ToDecimal(item.Get("solana")),
	}
}

// ToSolanaAsset converts one entry of the Solana tokens or nfts list
func ToSolanaAsset(wallet string, item Item) (*models.SolanaAsset, error) {
	ata, err := requireKey(item, "solana asset", "associated_token_address",
		"associated_token_address", "associatedTokenAddress")
	if err != nil {
		return nil, err
	}
	return &models.SolanaAsset{
		WalletAddress:          wallet,
		AssociatedTokenAddress: ata,
		Mint:                   numeric.ToString(item.Get("mint")),
		AmountRaw:              numeric.ToString(item.Get("amount_raw", "amountRaw")),
		Amount:                 numeric.ToDecimal(item.Get("amount")),
		Decimals:               numeric.ToInt64(item.Get("decimals")),
		Name:                   numeric.ToString(item.Get("name")),
		Symbol:                 numeric.ToString(item.Get("symbol")),
	}, nil
}

// ToBitcoinAddress converts the address-info object. Counters are in satoshi.
func ToBitcoinAddress(wallet string, item Item) *models.BitcoinAddress {
	if item == nil {
		return nil
	}
	return &models.BitcoinAddress{
		WalletAddress:       wallet,
		Received:            numeric.ToInt64(item.Get("received")),
		Sent:                numeric.ToInt64(item.Get("sent")),
		Balance:             numeric.ToInt64(item.Get("balance")),
		TxCount:             numeric.ToInt64(item.Get("tx_count")),
		UnconfirmedTxCount:  numeric.ToInt64(item.Get("unconfirmed_tx_count")),
		UnconfirmedReceived: numeric.ToInt64(item.Get("unconfirmed_received")),
		UnconfirmedSent:     numeric.ToInt64(item.Get("unconfirmed_sent")),
		UnspentTxCount:      numeric.ToInt64(item.Get("unspent_tx_count")),
		FirstTx:             numeric.ToString(item.Get("first_tx")),
		LastTx:              numeric.ToString(item.Get("last_tx")),
	}
}
