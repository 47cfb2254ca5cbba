package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/storage"
	"github.com/wallet-portfolio/internal/types"
)

const (
	evmAddr     = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	evmAddrNorm = "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	solAddr     = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	btcAddr     = "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq"
)

var errRejected = errors.New("rejected by store")

// mockStore implements WalletStore and AssetStore in memory. Keys listed
// in failOn make the matching upsert fail.
type mockStore struct {
	mu     sync.Mutex
	calls  []string
	failOn map[string]error

	wallets       map[string]decimal.NullDecimal
	chains        map[string]*models.Chain
	chainBalances map[string]decimal.NullDecimal
	tokens        map[string]*models.Token
	tokenBalances map[string]decimal.NullDecimal
	nfts          map[string]*models.NFT
	attributes    map[string]*models.NFTAttribute
	solNative     map[string]*models.SolanaNativeBalance
	solTokens     map[string]*models.SolanaAsset
	solNFTs       map[string]*models.SolanaAsset
	bitcoin       map[string]*models.BitcoinAddress
}

func newMockStore() *mockStore {
	return &mockStore{
		failOn:        make(map[string]error),
		wallets:       make(map[string]decimal.NullDecimal),
		chains:        make(map[string]*models.Chain),
		chainBalances: make(map[string]decimal.NullDecimal),
		tokens:        make(map[string]*models.Token),
		tokenBalances: make(map[string]decimal.NullDecimal),
		nfts:          make(map[string]*models.NFT),
		attributes:    make(map[string]*models.NFTAttribute),
		solNative:     make(map[string]*models.SolanaNativeBalance),
		solTokens:     make(map[string]*models.SolanaAsset),
		solNFTs:       make(map[string]*models.SolanaAsset),
		bitcoin:       make(map[string]*models.BitcoinAddress),
	}
}

func (m *mockStore) call(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	return m.failOn[name]
}

func (m *mockStore) UpsertWallet(ctx context.Context, address string, totalUSD decimal.NullDecimal) error {
	if err := m.call("wallet:" + address); err != nil {
		return err
	}
	m.wallets[address] = totalUSD
	return nil
}

func (m *mockStore) EnsureWallet(ctx context.Context, address string) error {
	if err := m.call("wallet:" + address); err != nil {
		return err
	}
	if _, ok := m.wallets[address]; !ok {
		m.wallets[address] = decimal.NullDecimal{}
	}
	return nil
}

func (m *mockStore) UpsertChain(ctx context.Context, chain *models.Chain) error {
	if err := m.call("chain:" + chain.ID); err != nil {
		return err
	}
	m.chains[chain.WalletAddress+"/"+chain.ID] = chain
	return nil
}

func (m *mockStore) UpsertWalletChainBalance(ctx context.Context, walletAddress, chainID string, usdValue decimal.NullDecimal) error {
	if err := m.call("chain_balance:" + chainID); err != nil {
		return err
	}
	m.chainBalances[walletAddress+"/"+chainID] = usdValue
	return nil
}

func (m *mockStore) UpsertToken(ctx context.Context, token *models.Token) error {
	if err := m.call("token:" + token.ID); err != nil {
		return err
	}
	m.tokens[token.ID] = token
	return nil
}

func (m *mockStore) UpsertWalletTokenBalance(ctx context.Context, walletAddress, tokenID string, amount decimal.NullDecimal) error {
	if err := m.call("token_balance:" + tokenID); err != nil {
		return err
	}
	m.tokenBalances[walletAddress+"/"+tokenID] = amount
	return nil
}

func (m *mockStore) UpsertNFT(ctx context.Context, nft *models.NFT) error {
	if err := m.call("nft:" + nft.ID); err != nil {
		return err
	}
	m.nfts[nft.WalletAddress+"/"+nft.ID] = nft
	return nil
}

func (m *mockStore) UpsertNFTAttribute(ctx context.Context, attr *models.NFTAttribute) error {
	if err := m.call("attr:" + attr.NFTID + "/" + attr.Key); err != nil {
		return err
	}
	m.attributes[attr.WalletAddress+"/"+attr.NFTID+"/"+attr.Key] = attr
	return nil
}

func (m *mockStore) UpsertSolanaNativeBalance(ctx context.Context, bal *models.SolanaNativeBalance) error {
	if err := m.call("sol_native:" + bal.WalletAddress); err != nil {
		return err
	}
	m.solNative[bal.WalletAddress] = bal
	return nil
}

func (m *mockStore) UpsertSolanaToken(ctx context.Context, asset *models.SolanaAsset) error {
	if err := m.call("sol_token:" + asset.AssociatedTokenAddress); err != nil {
		return err
	}
	m.solTokens[asset.WalletAddress+"/"+asset.AssociatedTokenAddress] = asset
	return nil
}

func (m *mockStore) UpsertSolanaNFT(ctx context.Context, asset *models.SolanaAsset) error {
	if err := m.call("sol_nft:" + asset.AssociatedTokenAddress); err != nil {
		return err
	}
	m.solNFTs[asset.WalletAddress+"/"+asset.AssociatedTokenAddress] = asset
	return nil
}

func (m *mockStore) UpsertBitcoinAddress(ctx context.Context, btc *models.BitcoinAddress) error {
	if err := m.call("btc:" + btc.WalletAddress); err != nil {
		return err
	}
	m.bitcoin[btc.WalletAddress] = btc
	return nil
}

// mockUserStore implements UserStore
type mockUserStore struct {
	users map[string]map[string]bool
	err   error
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[string]map[string]bool)}
}

func (m *mockUserStore) RegisterUser(ctx context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.users[userID]; !ok {
		m.users[userID] = make(map[string]bool)
	}
	return nil
}

func (m *mockUserStore) UserExists(ctx context.Context, userID string) (bool, error) {
	_, ok := m.users[userID]
	return ok, m.err
}

func (m *mockUserStore) LinkAddress(ctx context.Context, userID, address string) error {
	if err := m.RegisterUser(ctx, userID); err != nil {
		return err
	}
	m.users[userID][address] = true
	return nil
}

func (m *mockUserStore) UnlinkAddress(ctx context.Context, userID, address string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.users[userID], address)
	return nil
}

func (m *mockUserStore) DeleteUser(ctx context.Context, userID string) error {
	if m.err != nil {
		return m.err
	}
	delete(m.users, userID)
	return nil
}

func (m *mockUserStore) ListAddresses(ctx context.Context, userID string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for a := range m.users[userID] {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockUserStore) ListUsers(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for u := range m.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

// ListLinkedWallets lets the mock serve the refresh job as well
func (m *mockUserStore) ListLinkedWallets(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, addrs := range m.users {
		for a := range addrs {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *mockUserStore) ListUsersForWallet(ctx context.Context, address string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for u, addrs := range m.users {
		if addrs[address] {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return out, nil
}

// mockPortfolioStore implements PortfolioStore and SpamStore
type mockPortfolioStore struct {
	recomputeCalls  int
	breakdownCalls  int
	tokenCalls      int
	recomputeErr    error
	entries         []models.PortfolioEntry
	chains          []models.ChainBreakdownRow
	tokens          []models.TokenBreakdownRow
	names           []string
	spam            map[string][]string
	knownTokenNames map[string]bool
	lastFilter      models.TokenFilter
}

func newMockPortfolioStore() *mockPortfolioStore {
	return &mockPortfolioStore{spam: make(map[string][]string), knownTokenNames: make(map[string]bool)}
}

func (m *mockPortfolioStore) Recompute(ctx context.Context, userID string) (*storage.RecomputeResult, error) {
	m.recomputeCalls++
	if m.recomputeErr != nil {
		return nil, m.recomputeErr
	}
	return &storage.RecomputeResult{Upserted: int64(len(m.entries))}, nil
}

func (m *mockPortfolioStore) ListEntries(ctx context.Context, userID string) ([]models.PortfolioEntry, error) {
	return m.entries, nil
}

func (m *mockPortfolioStore) ChainBreakdown(ctx context.Context, userID string) ([]models.ChainBreakdownRow, error) {
	m.breakdownCalls++
	return m.chains, nil
}

func (m *mockPortfolioStore) FilteredTokenBreakdown(ctx context.Context, userID string, filter models.TokenFilter) ([]models.TokenBreakdownRow, error) {
	m.tokenCalls++
	m.lastFilter = filter
	return m.tokens, nil
}

func (m *mockPortfolioStore) TokenNames(ctx context.Context, userID string) ([]string, error) {
	return m.names, nil
}

func (m *mockPortfolioStore) WalletChainTotals(ctx context.Context, userID, walletAddress string) ([]models.WalletChainTotal, error) {
	return []models.WalletChainTotal{{Chain: "eth", TokenCount: 1}}, nil
}

func (m *mockPortfolioStore) DumpTable(ctx context.Context, table types.Table, limit int) (*models.TableDump, error) {
	return &models.TableDump{Table: string(table)}, nil
}

func (m *mockPortfolioStore) SpamTokens(ctx context.Context, userID string) ([]string, error) {
	return m.spam[userID], nil
}

func (m *mockPortfolioStore) SetSpamTokens(ctx context.Context, userID string, names []string) error {
	for _, n := range names {
		if !m.knownTokenNames[n] {
			return apperrors.NewValidationFailedError("set spam tokens", errors.New("unknown token "+n))
		}
	}
	m.spam[userID] = names
	return nil
}

// mockHistory implements HistoryStore
type mockHistory struct {
	snapshots []*models.PortfolioSnapshot
	err       error
}

func (m *mockHistory) AppendSnapshot(ctx context.Context, snapshot *models.PortfolioSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.snapshots = append(m.snapshots, snapshot)
	return nil
}

func (m *mockHistory) ListSnapshotTotals(ctx context.Context, userID string, limit int) ([]storage.SnapshotTotal, error) {
	var out []storage.SnapshotTotal
	for _, s := range m.snapshots {
		if s.UserID == userID {
			out = append(out, storage.SnapshotTotal{SnapshotID: s.SnapshotID, TakenAt: s.TakenAt, Entries: uint64(len(s.Entries))})
		}
	}
	return out, nil
}
