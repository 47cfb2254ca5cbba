// Package provider decodes the raw payloads produced by the external
// balance-data fetcher and converts them into storage models.
//
// The payloads are not schema-guaranteed. Decoding only fails when the top
// level shape is wrong; individual list items that are not objects are
// skipped and counted, and individual fields that cannot be read become
// NULL through the numeric package.
package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	apperrors "github.com/wallet-portfolio/internal/errors"
)

// Payload kinds, also used as file names by FileSource
const (
	KindTotalBalance    = "total_balance"
	KindTokenList       = "token_list"
	KindNFTList         = "nft_list"
	KindSolanaPortfolio = "solana_portfolio"
	KindBitcoinAddress  = "bitcoin_address"
)

// Item is one loosely typed JSON object. Numbers are json.Number.
type Item map[string]any

// Get returns the first non-null value among keys. Providers disagree on
// snake_case vs camelCase, so callers may pass both spellings.
func (i Item) Get(keys ...string) any {
	for _, k := range keys {
		if v, ok := i[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// TotalBalance is the wallet-total payload: overall usd value plus one entry per chain
type TotalBalance struct {
	TotalUSDValue any
	Chains        []Item
	Skipped       int
}

// ItemList is a token or NFT list payload
type ItemList struct {
	Items   []Item
	Skipped int
}

// SolanaPortfolio is the Solana account payload
type SolanaPortfolio struct {
	NativeBalance Item
	Tokens        []Item
	NFTs          []Item
	Skipped       int
}

// Payloads groups every payload known for one address. A nil field means
// the provider had nothing of that kind.
type Payloads struct {
	TotalBalance *TotalBalance
	Tokens       *ItemList
	NFTs         *ItemList
	Solana       *SolanaPortfolio
	Bitcoin      Item
}

// Empty reports whether no payload of any kind is present
func (p *Payloads) Empty() bool {
	return p == nil || (p.TotalBalance == nil && p.Tokens == nil && p.NFTs == nil && p.Solana == nil && p.Bitcoin == nil)
}

func decodeValue(r io.Reader, kind string) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, apperrors.NewMalformedPayloadError(kind, err)
	}
	return v, nil
}

// splitItems keeps the object elements of a JSON array and counts the rest
func splitItems(v any) ([]Item, int) {
	arr, _ := v.([]any)
	items := make([]Item, 0, len(arr))
	skipped := 0
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		items = append(items, Item(obj))
	}
	return items, skipped
}

func asObject(v any, kind string) (Item, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, apperrors.NewMalformedPayloadError(kind, fmt.Errorf("expected a JSON object, got %T", v))
	}
	return Item(obj), nil
}

// DecodeTotalBalance decodes {total_usd_value, chain_list: [...]}
func DecodeTotalBalance(r io.Reader) (*TotalBalance, error) {
	v, err := decodeValue(r, KindTotalBalance)
	if err != nil {
		return nil, err
	}
	obj, err := asObject(v, KindTotalBalance)
	if err != nil {
		return nil, err
	}

	chains, skipped := splitItems(obj.Get("chain_list", "chainList"))
	return &TotalBalance{
		TotalUSDValue: obj.Get("total_usd_value", "totalUsdValue"),
		Chains:        chains,
		Skipped:       skipped,
	}, nil
}

// DecodeTokenList decodes a bare JSON array of token objects
func DecodeTokenList(r io.Reader) (*ItemList, error) {
	return decodeList(r, KindTokenList)
}

// DecodeNFTList decodes a bare JSON array of NFT objects with nested attributes
func DecodeNFTList(r io.Reader) (*ItemList, error) {
	return decodeList(r, KindNFTList)
}

func decodeList(r io.Reader, kind string) (*ItemList, error) {
	v, err := decodeValue(r, kind)
	if err != nil {
		return nil, err
	}
	if _, ok := v.([]any); !ok {
		return nil, apperrors.NewMalformedPayloadError(kind, fmt.Errorf("expected a JSON array, got %T", v))
	}
	items, skipped := splitItems(v)
	return &ItemList{Items: items, Skipped: skipped}, nil
}

// DecodeSolanaPortfolio decodes {native_balance: {lamports, solana}, tokens: [...], nfts: [...]}
func DecodeSolanaPortfolio(r io.Reader) (*SolanaPortfolio, error) {
	v, err := decodeValue(r, KindSolanaPortfolio)
	if err != nil {
		return nil, err
	}
	obj, err := asObject(v, KindSolanaPortfolio)
	if err != nil {
		return nil, err
	}

	p := &SolanaPortfolio{}
	if native, ok := obj.Get("native_balance", "nativeBalance").(map[string]any); ok {
		p.NativeBalance = Item(native)
	}
	var skipped int
	p.Tokens, skipped = splitItems(obj.Get("tokens"))
	p.Skipped += skipped
	p.NFTs, skipped = splitItems(obj.Get("nfts"))
	p.Skipped += skipped
	return p, nil
}

// DecodeBitcoinAddress decodes the address-info object, bare or wrapped
// in {"data": {...}} as the block explorer returns it.
func DecodeBitcoinAddress(r io.Reader) (Item, error) {
	v, err := decodeValue(r, KindBitcoinAddress)
	if err != nil {
		return nil, err
	}
	obj, err := asObject(v, KindBitcoinAddress)
	if err != nil {
		return nil, err
	}
	if data, ok := obj["data"].(map[string]any); ok {
		return Item(data), nil
	}
	if _, wrapped := obj["data"]; wrapped {
		// {"data": null} is how the explorer reports an unknown address
		return nil, apperrors.NewMalformedPayloadError(KindBitcoinAddress, fmt.Errorf("empty data envelope"))
	}
	return obj, nil
}

// DecodePayloads decodes a pushed refresh body
// {totalBalance, tokens, nfts, solana, bitcoin}; absent members stay nil.
func DecodePayloads(r io.Reader) (*Payloads, error) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, apperrors.NewMalformedPayloadError("refresh", err)
	}

	present := func(key string) ([]byte, bool) {
		msg, ok := raw[key]
		if !ok || len(msg) == 0 || string(msg) == "null" {
			return nil, false
		}
		return msg, true
	}

	p := &Payloads{}
	var err error
	if msg, ok := present("totalBalance"); ok {
		if p.TotalBalance, err = DecodeTotalBalance(bytes.NewReader(msg)); err != nil {
			return nil, err
		}
	}
	if msg, ok := present("tokens"); ok {
		if p.Tokens, err = DecodeTokenList(bytes.NewReader(msg)); err != nil {
			return nil, err
		}
	}
	if msg, ok := present("nfts"); ok {
		if p.NFTs, err = DecodeNFTList(bytes.NewReader(msg)); err != nil {
			return nil, err
		}
	}
	if msg, ok := present("solana"); ok {
		if p.Solana, err = DecodeSolanaPortfolio(bytes.NewReader(msg)); err != nil {
			return nil, err
		}
	}
	if msg, ok := present("bitcoin"); ok {
		if p.Bitcoin, err = DecodeBitcoinAddress(bytes.NewReader(msg)); err != nil {
			return nil, err
		}
	}
	return p, nil
}
