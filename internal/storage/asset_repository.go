package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/models"
)

// AssetRepository writes NFTs and the Solana and Bitcoin specific tables.
// Same conflict policy as WalletRepository.
type AssetRepository struct {
	db *PostgresDB
}

// NewAssetRepository creates a new asset repository
func NewAssetRepository(db *PostgresDB) *AssetRepository {
	return &AssetRepository{db: db}
}

// UpsertNFT inserts or updates an NFT row (key id + wallet_address).
// Attributes are written separately with UpsertNFTAttribute.
func (r *AssetRepository) UpsertNFT(ctx context.Context, nft *models.NFT) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO nfts (
			id, wallet_address, contract_id, inner_id, chain,
			name, description, content_type, content, thumbnail_url,
			total_supply, detail_url, collection_id, contract_name,
			is_erc721, is_erc1155, amount, usd_price
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id, wallet_address) DO UPDATE SET
			contract_id = EXCLUDED.contract_id,
			inner_id = EXCLUDED.inner_id,
			chain = EXCLUDED.chain,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			content_type = EXCLUDED.content_type,
			content = EXCLUDED.content,
			thumbnail_url = EXCLUDED.thumbnail_url,
			total_supply = EXCLUDED.total_supply,
			detail_url = EXCLUDED.detail_url,
			collection_id = EXCLUDED.collection_id,
			contract_name = EXCLUDED.contract_name,
			is_erc721 = EXCLUDED.is_erc721,
			is_erc1155 = EXCLUDED.is_erc1155,
			amount = EXCLUDED.amount,
			usd_price = EXCLUDED.usd_price
	`,
		nft.ID,
		nft.WalletAddress,
		nft.ContractID,
		nft.InnerID,
		nft.Chain,
		nft.Name,
		nft.Description,
		nft.ContentType,
		nft.Content,
		nft.ThumbnailURL,
		nft.TotalSupply,
		nft.DetailURL,
		nft.CollectionID,
		nft.ContractName,
		nft.IsERC721,
		nft.IsERC1155,
		nft.Amount,
		nft.USDPrice,
	)
	return classifyError("upsert nft", err)
}

// UpsertNFTAttribute inserts or updates one trait (key wallet_address + nft_id + attr_key)
func (r *AssetRepository) UpsertNFTAttribute(ctx context.Context, attr *models.NFTAttribute) error {
	if attr.Key == "" {
		return apperrors.NewInvalidParameterError("attr_key", "must not be empty")
	}
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO nft_attributes (wallet_address, nft_id, attr_key, trait_type, value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (wallet_address, nft_id, attr_key) DO UPDATE SET
			trait_type = EXCLUDED.trait_type,
			value = EXCLUDED.value
	`, attr.WalletAddress, attr.NFTID, attr.Key, attr.TraitType, attr.Value)
	return classifyError("upsert nft attribute", err)
}

// ListNFTAttributes returns the attributes of one NFT ordered by key
func (r *AssetRepository) ListNFTAttributes(ctx context.Context, walletAddress, nftID string) ([]models.NFTAttribute, error) {
	rows, err := r.db.Pool().Query(ctx, `
		SELECT wallet_address, nft_id, attr_key, trait_type, value
		FROM nft_attributes
		WHERE wallet_address = $1 AND nft_id = $2
		ORDER BY attr_key
	`, walletAddress, nftID)
	if err != nil {
		return nil, classifyError("list nft attributes", err)
	}

	attrs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.NFTAttribute, error) {
		var a models.NFTAttribute
		err := row.Scan(&a.WalletAddress, &a.NFTID, &a.Key, &a.TraitType, &a.Value)
		return a, err
	})
	if err != nil {
		return nil, classifyError("list nft attributes", err)
	}
	return attrs, nil
}

// UpsertSolanaNativeBalance inserts or updates a wallet's SOL balance
func (r *AssetRepository) UpsertSolanaNativeBalance(ctx context.Context, bal *models.SolanaNativeBalance) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO solana_native_balances (wallet_address, lamports, solana)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE SET
			lamports = EXCLUDED.lamports,
			solana = EXCLUDED.solana
	`, bal.WalletAddress, bal.Lamports, bal.Solana)
	return classifyError("upsert solana native balance", err)
}

// solanaAssetTables restricts the asset upsert to the two known tables
var solanaAssetTables = map[string]string{
	"token": "solana_tokens",
	"nft":   "solana_nfts",
}

// UpsertSolanaToken inserts or updates an SPL token account
func (r *AssetRepository) UpsertSolanaToken(ctx context.Context, asset *models.SolanaAsset) error {
	return r.upsertSolanaAsset(ctx, "token", asset)
}

// UpsertSolanaNFT inserts or updates a Solana NFT account
func (r *AssetRepository) UpsertSolanaNFT(ctx context.Context, asset *models.SolanaAsset) error {
	return r.upsertSolanaAsset(ctx, "nft", asset)
}

func (r *AssetRepository) upsertSolanaAsset(ctx context.Context, kind string, asset *models.SolanaAsset) error {
	table := solanaAssetTables[kind]
	query := fmt.Sprintf(`
		INSERT INTO %s (
			wallet_address, associated_token_address, mint, amount_raw,
			amount, decimals, name, symbol
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (wallet_address, associated_token_address) DO UPDATE SET
			mint = EXCLUDED.mint,
			amount_raw = EXCLUDED.amount_raw,
			amount = EXCLUDED.amount,
			decimals = EXCLUDED.decimals,
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol
	`, table)

	_, err := r.db.Pool().Exec(ctx, query,
		asset.WalletAddress,
		asset.AssociatedTokenAddress,
		asset.Mint,
		asset.AmountRaw,
		asset.Amount,
		asset.Decimals,
		asset.Name,
		asset.Symbol,
	)
	return classifyError("upsert solana "+kind, err)
}

// UpsertBitcoinAddress inserts or updates the aggregate counters of a bitcoin address
func (r *AssetRepository) UpsertBitcoinAddress(ctx context.Context, btc *models.BitcoinAddress) error {
	_, err := r.db.Pool().Exec(ctx, `
		INSERT INTO bitcoin_addresses (
			wallet_address, received, sent, balance, tx_count,
			unconfirmed_tx_count, unconfirmed_received, unconfirmed_sent,
			unspent_tx_count, first_tx, last_tx
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (wallet_address) DO UPDATE SET
			received = EXCLUDED.received,
			sent = EXCLUDED.sent,
			balance = EXCLUDED.balance,
			tx_count = EXCLUDED.tx_count,
			unconfirmed_tx_count = EXCLUDED.unconfirmed_tx_count,
			unconfirmed_received = EXCLUDED.unconfirmed_received,
			unconfirmed_sent = EXCLUDED.unconfirmed_sent,
			unspent_tx_count = EXCLUDED.unspent_tx_count,
			first_tx = EXCLUDED.first_tx,
			last_tx = EXCLUDED.last_tx
	`,
		btc.WalletAddress,
		btc.Received,
		btc.Sent,
		btc.Balance,
		btc.TxCount,
		btc.UnconfirmedTxCount,
		btc.UnconfirmedReceived,
		btc.UnconfirmedSent,
		btc.UnspentTxCount,
		btc.FirstTx,
		btc.LastTx,
	)
	return classifyError("upsert bitcoin address", err)
}

// GetBitcoinAddress retrieves the counters of a bitcoin address
func (r *AssetRepository) GetBitcoinAddress(ctx context.Context, walletAddress string) (*models.BitcoinAddress, error) {
	var b models.BitcoinAddress
	err := r.db.Pool().QueryRow(ctx, `
		SELECT wallet_address, received, sent, balance, tx_count,
			unconfirmed_tx_count, unconfirmed_received, unconfirmed_sent,
			unspent_tx_count, first_tx, last_tx
		FROM bitcoin_addresses
		WHERE wallet_address = $1
	`, walletAddress).Scan(
		&b.WalletAddress,
		&b.Received,
		&b.Sent,
		&b.Balance,
		&b.TxCount,
		&b.UnconfirmedTxCount,
		&b.UnconfirmedReceived,
		&b.UnconfirmedSent,
		&b.UnspentTxCount,
		&b.FirstTx,
		&b.LastTx,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("bitcoin address", walletAddress)
		}
		return nil, classifyError("get bitcoin address", err)
	}
	return &b, nil
}
