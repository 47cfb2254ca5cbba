package service

import (
	"context"

	"github.com/shopspring/decimal"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/metrics"
	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/provider"
	"github.com/wallet-portfolio/internal/types"
)

// WalletStore interface for wallet, chain and token upserts
type WalletStore interface {
	UpsertWallet(ctx context.Context, address string, totalUSD decimal.NullDecimal) error
	EnsureWallet(ctx context.Context, address string) error
	UpsertChain(ctx context.Context, chain *models.Chain) error
	UpsertWalletChainBalance(ctx context.Context, walletAddress, chainID string, usdValue decimal.NullDecimal) error
	UpsertToken(ctx context.Context, token *models.Token) error
	UpsertWalletTokenBalance(ctx context.Context, walletAddress, tokenID string, amount decimal.NullDecimal) error
}

// AssetStore interface for NFT, Solana and Bitcoin upserts
type AssetStore interface {
	UpsertNFT(ctx context.Context, nft *models.NFT) error
	UpsertNFTAttribute(ctx context.Context, attr *models.NFTAttribute) error
	UpsertSolanaNativeBalance(ctx context.Context, bal *models.SolanaNativeBalance) error
	UpsertSolanaToken(ctx context.Context, asset *models.SolanaAsset) error
	UpsertSolanaNFT(ctx context.Context, asset *models.SolanaAsset) error
	UpsertBitcoinAddress(ctx context.Context, btc *models.BitcoinAddress) error
}

// WalletUsers looks up the users a wallet is linked to
type WalletUsers interface {
	ListUsersForWallet(ctx context.Context, address string) ([]string, error)
}

// Entity names used in refresh results, logs and metrics
const (
	EntityWallet             = "wallet"
	EntityChain              = "chain"
	EntityWalletChainBalance = "wallet_chain_balance"
	EntityToken              = "token"
	EntityWalletTokenBalance = "wallet_token_balance"
	EntityNFT                = "nft"
	EntityNFTAttribute       = "nft_attribute"
	EntitySolanaNative       = "solana_native_balance"
	EntitySolanaToken        = "solana_token"
	EntitySolanaNFT          = "solana_nft"
	EntityBitcoin            = "bitcoin_address"
)

// EntityCount counts the items of one entity written or skipped during a refresh
type EntityCount struct {
	Written int `json:"written"`
	Failed  int `json:"failed"`
}

// RefreshResult reports what one wallet refresh wrote
type RefreshResult struct {
	Address  string                  `json:"address"`
	Family   types.ChainFamily       `json:"family"`
	Entities map[string]*EntityCount `json:"entities"`
}

func newRefreshResult(address string, family types.ChainFamily) *RefreshResult {
	return &RefreshResult{Address: address, Family: family, Entities: make(map[string]*EntityCount)}
}

func (r *RefreshResult) entity(name string) *EntityCount {
	c, ok := r.Entities[name]
	if !ok {
		c = &EntityCount{}
		r.Entities[name] = c
	}
	return c
}

func (r *RefreshResult) addFailed(name string, n int) {
	if n <= 0 {
		return
	}
	r.entity(name).Failed += n
	metrics.RefreshItemsFailed.WithLabelValues(name).Add(float64(n))
}

// Written returns the number of rows written across all entities
func (r *RefreshResult) Written() int {
	total := 0
	for _, c := range r.Entities {
		total += c.Written
	}
	return total
}

// Failed returns the number of items skipped across all entities
func (r *RefreshResult) Failed() int {
	total := 0
	for _, c := range r.Entities {
		total += c.Failed
	}
	return total
}

// RefreshService writes provider payloads for one wallet at a time.
//
// Every item is upserted on its own, parent before child, without a
// transaction around the batch: a malformed or rejected item is logged,
// counted and skipped, and the rest of the batch continues. Only a failed
// wallet row or an unreachable store stops the refresh, since every
// following write would fail the same way.
type RefreshService struct {
	wallets WalletStore
	assets  AssetStore
	users   WalletUsers
	cache   ReportCache
}

// RefreshOption configures optional collaborators
type RefreshOption func(*RefreshService)

// WithCacheInvalidation drops the cached reports of every user linked to a
// wallet once a refresh has written to it. Chain and token breakdowns read
// the refreshed rows directly.
func WithCacheInvalidation(users WalletUsers, cache ReportCache) RefreshOption {
	return func(s *RefreshService) {
		s.users = users
		s.cache = cache
	}
}

// NewRefreshService creates a new refresh service
func NewRefreshService(wallets WalletStore, assets AssetStore, opts ...RefreshOption) *RefreshService {
	s := &RefreshService{wallets: wallets, assets: assets}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// refreshRun carries the per-wallet state of one refresh
type refreshRun struct {
	ctx    context.Context
	result *RefreshResult
	logger *logging.Logger
}

func (s *RefreshService) begin(ctx context.Context, address string, want types.ChainFamily) (*refreshRun, error) {
	addr := types.NormalizeAddress(address)
	family := types.DetectChainFamily(addr)
	if family == types.FamilyUnknown || (want != types.FamilyUnknown && family != want) {
		return nil, apperrors.NewInvalidAddressError(address)
	}
	return &refreshRun{
		ctx:    ctx,
		result: newRefreshResult(addr, family),
		logger: logging.FromContext(ctx).WithComponent("refresh").WithField("wallet", addr),
	}, nil
}

// record counts the outcome of one upsert. It returns a non-nil error only
// when the refresh must stop.
func (r *refreshRun) record(entity, key string, err error) error {
	if err == nil {
		r.result.entity(entity).Written++
		metrics.RefreshItemsWritten.WithLabelValues(entity).Inc()
		return nil
	}

	r.result.addFailed(entity, 1)
	r.logger.WithFields(map[string]interface{}{
		"entity": entity,
		"key":    key,
	}).WithError(err).Warn("Skipping item")

	if apperrors.IsUnavailable(err) || r.ctx.Err() != nil {
		return err
	}
	return nil
}

// skip counts items dropped before reaching the store (undecodable or missing their key)
func (r *refreshRun) skip(entity string, n int, err error) {
	if n <= 0 {
		return
	}
	r.result.addFailed(entity, n)
	l := r.logger.WithFields(map[string]interface{}{"entity": entity, "count": n})
	if err != nil {
		l = l.WithError(err)
	}
	l.Warn("Skipping malformed payload items")
}

// writeWallet writes the parent row. A failure here aborts the refresh.
func (r *refreshRun) writeWallet(write func() error) error {
	if err := write(); err != nil {
		r.result.addFailed(EntityWallet, 1)
		r.logger.WithError(err).Error("Failed to write wallet row")
		return err
	}
	r.result.entity(EntityWallet).Written++
	metrics.RefreshItemsWritten.WithLabelValues(EntityWallet).Inc()
	return nil
}

// RefreshEVMWallet writes the wallet total, each chain with its wallet-chain
// balance, then each token with its wallet-token balance. Either payload may
// be nil.
func (s *RefreshService) RefreshEVMWallet(ctx context.Context, address string, total *provider.TotalBalance, tokens *provider.ItemList) (*RefreshResult, error) {
	run, err := s.begin(ctx, address, types.FamilyEVM)
	if err != nil {
		return nil, err
	}
	err = s.refreshEVM(run, total, tokens)
	s.invalidate(run)
	return run.result, err
}

func (s *RefreshService) refreshEVM(run *refreshRun, total *provider.TotalBalance, tokens *provider.ItemList) error {
	ctx, addr := run.ctx, run.result.Address

	err := run.writeWallet(func() error {
		if total == nil {
			return s.wallets.EnsureWallet(ctx, addr)
		}
		return s.wallets.UpsertWallet(ctx, addr, total.TotalUSD())
	})
	if err != nil {
		return err
	}

	if total != nil {
		run.skip(EntityChain, total.Skipped, nil)
		for _, item := range total.Chains {
			chain, err := provider.ToChain(addr, item)
			if err != nil {
				run.skip(EntityChain, 1, err)
				continue
			}
			chainErr := s.wallets.UpsertChain(ctx, chain)
			if err := run.record(EntityChain, chain.ID, chainErr); err != nil {
				return err
			}
			if chainErr != nil {
				// the balance row references the chain row
				run.skip(EntityWalletChainBalance, 1, nil)
				continue
			}
			err = s.wallets.UpsertWalletChainBalance(ctx, addr, chain.ID, chain.USDValue)
			if err := run.record(EntityWalletChainBalance, chain.ID, err); err != nil {
				return err
			}
		}
	}

	if tokens != nil {
		run.skip(EntityToken, tokens.Skipped, nil)
		for _, item := range tokens.Items {
			token, err := provider.ToToken(addr, item)
			if err != nil {
				run.skip(EntityToken, 1, err)
				continue
			}
			tokenErr := s.wallets.UpsertToken(ctx, token)
			if err := run.record(EntityToken, token.ID, tokenErr); err != nil {
				return err
			}
			if tokenErr != nil {
				run.skip(EntityWalletTokenBalance, 1, nil)
				continue
			}
			err = s.wallets.UpsertWalletTokenBalance(ctx, addr, token.ID, token.Amount)
			if err := run.record(EntityWalletTokenBalance, token.ID, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// RefreshNFTs writes each NFT of an EVM wallet followed by its attributes
func (s *RefreshService) RefreshNFTs(ctx context.Context, address string, nfts *provider.ItemList) (*RefreshResult, error) {
	run, err := s.begin(ctx, address, types.FamilyEVM)
	if err != nil {
		return nil, err
	}
	if err := run.writeWallet(func() error { return s.wallets.EnsureWallet(ctx, run.result.Address) }); err != nil {
		return run.result, err
	}
	err = s.refreshNFTs(run, nfts)
	s.invalidate(run)
	return run.result, err
}

func (s *RefreshService) refreshNFTs(run *refreshRun, nfts *provider.ItemList) error {
	if nfts == nil {
		return nil
	}
	ctx, addr := run.ctx, run.result.Address

	run.skip(EntityNFT, nfts.Skipped, nil)
	for _, item := range nfts.Items {
		nft, skippedAttrs, err := provider.ToNFT(addr, item)
		if err != nil {
			run.skip(EntityNFT, 1, err)
			continue
		}
		run.skip(EntityNFTAttribute, skippedAttrs, nil)

		nftErr := s.assets.UpsertNFT(ctx, nft)
		if err := run.record(EntityNFT, nft.ID, nftErr); err != nil {
			return err
		}
		if nftErr != nil {
			run.skip(EntityNFTAttribute, len(nft.Attributes), nil)
			continue
		}
		for i := range nft.Attributes {
			attr := &nft.Attributes[i]
			err := s.assets.UpsertNFTAttribute(ctx, attr)
			if err := run.record(EntityNFTAttribute, nft.ID+"/"+attr.Key, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// RefreshSolanaWallet writes the native balance, then SPL tokens, then Solana NFTs
func (s *RefreshService) RefreshSolanaWallet(ctx context.Context, address string, portfolio *provider.SolanaPortfolio) (*RefreshResult, error) {
	run, err := s.begin(ctx, address, types.FamilySolana)
	if err != nil {
		return nil, err
	}
	err = s.refreshSolana(run, portfolio)
	s.invalidate(run)
	return run.result, err
}

func (s *RefreshService) refreshSolana(run *refreshRun, portfolio *provider.SolanaPortfolio) error {
	ctx, addr := run.ctx, run.result.Address

	if err := run.writeWallet(func() error { return s.wallets.EnsureWallet(ctx, addr) }); err != nil {
		return err
	}
	if portfolio == nil {
		return nil
	}

	if native := provider.ToSolanaNativeBalance(addr, portfolio.NativeBalance); native != nil {
		err := s.assets.UpsertSolanaNativeBalance(ctx, native)
		if err := run.record(EntitySolanaNative, addr, err); err != nil {
			return err
		}
	}

	run.skip(EntitySolanaToken, portfolio.Skipped, nil)
	lists := []struct {
		entity string
		items  []provider.Item
		upsert func(context.Context, *models.SolanaAsset) error
	}{
		{EntitySolanaToken, portfolio.Tokens, s.assets.UpsertSolanaToken},
		{EntitySolanaNFT, portfolio.NFTs, s.assets.UpsertSolanaNFT},
	}
	for _, list := range lists {
		for _, item := range list.items {
			asset, err := provider.ToSolanaAsset(addr, item)
			if err != nil {
				run.skip(list.entity, 1, err)
				continue
			}
			err = list.upsert(ctx, asset)
			if err := run.record(list.entity, asset.AssociatedTokenAddress, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// RefreshBitcoinWallet writes the aggregate counters of a bitcoin address
func (s *RefreshService) RefreshBitcoinWallet(ctx context.Context, address string, info provider.Item) (*RefreshResult, error) {
	run, err := s.begin(ctx, address, types.FamilyBitcoin)
	if err != nil {
		return nil, err
	}
	err = s.refreshBitcoin(run, info)
	s.invalidate(run)
	return run.result, err
}

func (s *RefreshService) refreshBitcoin(run *refreshRun, info provider.Item) error {
	ctx, addr := run.ctx, run.result.Address

	if err := run.writeWallet(func() error { return s.wallets.EnsureWallet(ctx, addr) }); err != nil {
		return err
	}
	btc := provider.ToBitcoinAddress(addr, info)
	if btc == nil {
		return nil
	}
	return run.record(EntityBitcoin, addr, s.assets.UpsertBitcoinAddress(ctx, btc))
}

// RefreshWallet dispatches the payloads of one address by its chain family.
// Payload kinds that do not belong to the family are ignored.
func (s *RefreshService) RefreshWallet(ctx context.Context, address string, payloads *provider.Payloads) (*RefreshResult, error) {
	run, err := s.begin(ctx, address, types.FamilyUnknown)
	if err != nil {
		return nil, err
	}
	if payloads == nil {
		payloads = &provider.Payloads{}
	}

	switch run.result.Family {
	case types.FamilyEVM:
		err = s.refreshEVM(run, payloads.TotalBalance, payloads.Tokens)
		if err == nil {
			err = s.refreshNFTs(run, payloads.NFTs)
		}
	case types.FamilySolana:
		err = s.refreshSolana(run, payloads.Solana)
	case types.FamilyBitcoin:
		err = s.refreshBitcoin(run, payloads.Bitcoin)
	}

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case run.result.Failed() > 0:
		outcome = "partial"
	}
	metrics.RefreshWallets.WithLabelValues(string(run.result.Family), outcome).Inc()
	s.invalidate(run)

	run.logger.WithFields(map[string]interface{}{
		"family":  run.result.Family,
		"written": run.result.Written(),
		"failed":  run.result.Failed(),
	}).Info("Wallet refreshed")

	return run.result, err
}

// invalidate drops the cached reports of the wallet's users. It runs even
// after a failed refresh, since rows written before the failure stay.
func (s *RefreshService) invalidate(run *refreshRun) {
	if s.cache == nil || s.users == nil || run.result.Written() == 0 {
		return
	}
	ctx := context.WithoutCancel(run.ctx)
	users, err := s.users.ListUsersForWallet(ctx, run.result.Address)
	if err != nil {
		run.logger.WithError(err).Warn("Failed to look up users for cache invalidation")
		return
	}
	for _, userID := range users {
		if err := s.cache.InvalidateUser(ctx, userID); err != nil {
			run.logger.WithField("user", userID).WithError(err).Warn("Failed to invalidate report cache")
		}
	}
}
