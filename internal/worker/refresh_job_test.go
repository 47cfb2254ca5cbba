package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/provider"
	"github.com/wallet-portfolio/internal/service"
	"github.com/wallet-portfolio/internal/storage"
	"github.com/wallet-portfolio/internal/types"
)

type fakeDirectory struct {
	links map[string][]string // user -> wallets
	err   error
}

func (d *fakeDirectory) ListLinkedWallets(ctx context.Context) ([]string, error) {
	if d.err != nil {
		return nil, d.err
	}
	seen := map[string]bool{}
	var out []string
	for _, ws := range d.links {
		for _, w := range ws {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

func (d *fakeDirectory) ListUsers(ctx context.Context) ([]string, error) {
	var out []string
	for u := range d.links {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (d *fakeDirectory) ListUsersForWallet(ctx context.Context, address string) ([]string, error) {
	var out []string
	for u, ws := range d.links {
		for _, w := range ws {
			if w == address {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

type fakeSource struct {
	payloads map[string]*provider.Payloads
	errs     map[string]error
}

func (s *fakeSource) Fetch(ctx context.Context, address string) (*provider.Payloads, error) {
	return s.payloads[address], s.errs[address]
}

type fakeRefresher struct {
	mu        sync.Mutex
	refreshed []string
	errs      map[string]error
}

func (r *fakeRefresher) RefreshWallet(ctx context.Context, address string, payloads *provider.Payloads) (*service.RefreshResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshed = append(r.refreshed, address)
	res := &service.RefreshResult{
		Address:  address,
		Family:   types.DetectChainFamily(address),
		Entities: map[string]*service.EntityCount{service.EntityWallet: {Written: 1}},
	}
	return res, r.errs[address]
}

type fakeRecomputer struct {
	mu    sync.Mutex
	users []string
	err   error
}

func (r *fakeRecomputer) Recompute(ctx context.Context, userID string) (*storage.RecomputeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
	return &storage.RecomputeResult{}, r.err
}

func newJob(t *testing.T, dir *fakeDirectory, src provider.Source, ref *fakeRefresher, rec *fakeRecomputer, all bool) *RefreshJob {
	t.Helper()
	job, err := NewRefreshJob(&RefreshJobConfig{
		Directory:    dir,
		Source:       src,
		Refresher:    ref,
		Recomputer:   rec,
		RecomputeAll: all,
	})
	require.NoError(t, err)
	return job
}

func TestNewRefreshJob_RequiresCollaborators(t *testing.T) {
	_, err := NewRefreshJob(&RefreshJobConfig{})
	assert.Error(t, err)
}

func TestRefreshJob_Run(t *testing.T) {
	dir := &fakeDirectory{links: map[string][]string{
		"alice": {"0xaaa", "0xbbb"},
		"bob":   {"0xbbb"},
		"carol": {"0xccc"},
	}}
	src := &fakeSource{
		payloads: map[string]*provider.Payloads{
			"0xaaa": {Tokens: &provider.ItemList{}},
			"0xbbb": {Tokens: &provider.ItemList{}},
		},
		errs: map[string]error{"0xccc": errors.New("no such directory")},
	}
	ref := &fakeRefresher{}
	rec := &fakeRecomputer{}

	res, err := newJob(t, dir, src, ref, rec, false).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 3, res.Wallets)
	assert.Equal(t, 2, res.Refreshed)
	assert.Equal(t, 1, res.FetchFailed)
	assert.Equal(t, 2, res.ItemsWritten)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, ref.refreshed)
	// carol's only wallet failed to fetch, so she is not recomputed
	assert.Equal(t, []string{"alice", "bob"}, rec.users)
	assert.Equal(t, 2, res.Recomputed)
}

func TestRefreshJob_RecomputeAll(t *testing.T) {
	dir := &fakeDirectory{links: map[string][]string{"alice": {"0xaaa"}, "dave": nil}}
	src := &fakeSource{payloads: map[string]*provider.Payloads{}}
	rec := &fakeRecomputer{}

	res, err := newJob(t, dir, src, &fakeRefresher{}, rec, true).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "dave"}, rec.users)
	assert.Equal(t, 2, res.Recomputed)
}

func TestRefreshJob_PartialPayloadsAreWritten(t *testing.T) {
	dir := &fakeDirectory{links: map[string][]string{"alice": {"0xaaa"}}}
	src := &fakeSource{
		payloads: map[string]*provider.Payloads{"0xaaa": {Tokens: &provider.ItemList{}}},
		errs:     map[string]error{"0xaaa": errors.New("total_balance.json: malformed")},
	}
	ref := &fakeRefresher{}

	res, err := newJob(t, dir, src, ref, &fakeRecomputer{}, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refreshed)
	assert.Equal(t, 0, res.FetchFailed)
}

func TestRefreshJob_WalletFailureContinues(t *testing.T) {
	dir := &fakeDirectory{links: map[string][]string{"alice": {"0xaaa", "0xbbb"}}}
	ref := &fakeRefresher{errs: map[string]error{
		"0xaaa": apperrors.NewDatabaseError("upsert wallet", errors.New("boom")),
	}}

	res, err := newJob(t, dir, &fakeSource{}, ref, &fakeRecomputer{}, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RefreshFailed)
	assert.Equal(t, 1, res.Refreshed)
	assert.Equal(t, []string{"0xaaa", "0xbbb"}, ref.refreshed)
}

func TestRefreshJob_StopsWhenStoreUnavailable(t *testing.T) {
	dir := &fakeDirectory{links: map[string][]string{"alice": {"0xaaa", "0xbbb"}}}
	ref := &fakeRefresher{errs: map[string]error{
		"0xaaa": apperrors.NewUnavailableError("postgres", errors.New("connection refused")),
	}}
	rec := &fakeRecomputer{}

	res, err := newJob(t, dir, &fakeSource{}, ref, rec, false).Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsUnavailable(err))
	assert.Equal(t, []string{"0xaaa"}, ref.refreshed)
	assert.Empty(t, rec.users)
	assert.NotEmpty(t, res.RunID)
}

func TestRefreshJob_RecomputeFailureIsCounted(t *testing.T) {
	dir := &fakeDirectory{links: map[string][]string{"alice": {"0xaaa"}}}
	rec := &fakeRecomputer{err: apperrors.NewDatabaseError("recompute", errors.New("deadlock"))}

	res, err := newJob(t, dir, &fakeSource{}, &fakeRefresher{}, rec, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecomputeFailed)
}

func TestRefreshJob_Cancelled(t *testing.T) {
	dir := &fakeDirectory{links: map[string][]string{"alice": {"0xaaa"}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newJob(t, dir, &fakeSource{}, &fakeRefresher{}, &fakeRecomputer{}, false).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshJob_ListFailure(t *testing.T) {
	dir := &fakeDirectory{err: apperrors.NewUnavailableError("postgres", errors.New("connection refused"))}

	_, err := newJob(t, dir, &fakeSource{}, &fakeRefresher{}, &fakeRecomputer{}, false).Run(context.Background())
	assert.True(t, apperrors.IsUnavailable(err))
}

func TestRefreshJob_WithFileSource(t *testing.T) {
	root := t.TempDir()
	wallet := "0x742d35cc6634c0532925a3b844bc454e4438f44e"
	require.NoError(t, os.MkdirAll(filepath.Join(root, wallet), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, wallet, provider.KindTokenList+".json"),
		[]byte(`[{"id": "eth", "chain": "eth", "amount": "1"}]`), 0o600))

	dir := &fakeDirectory{links: map[string][]string{"alice": {wallet}}}
	ref := &fakeRefresher{}

	res, err := newJob(t, dir, provider.NewFileSource(root), ref, &fakeRecomputer{}, false).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Refreshed)
}

type countingRunner struct {
	mu   sync.Mutex
	runs int
}

func (r *countingRunner) Run(ctx context.Context) (*RunResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	return &RunResult{RunID: "test"}, nil
}

func (r *countingRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	runner := &countingRunner{}
	s, err := NewScheduler(runner, time.Hour)
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start is rejected")

	assert.Eventually(t, func() bool { return runner.count() >= 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return s.GetStatus().Runs >= 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.GetStatus().Running)
	assert.Error(t, s.Stop())
}

func TestNewScheduler_Validation(t *testing.T) {
	_, err := NewScheduler(nil, time.Minute)
	assert.Error(t, err)
	_, err = NewScheduler(&countingRunner{}, 0)
	assert.Error(t, err)
}
