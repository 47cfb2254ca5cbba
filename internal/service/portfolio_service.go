package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/metrics"
	"github.com/wallet-portfolio/internal/models"
	"github.com/wallet-portfolio/internal/storage"
	"github.com/wallet-portfolio/internal/types"
)

// Repository interfaces for dependency injection

// PortfolioStore interface for rollup and reporting queries
type PortfolioStore interface {
	Recompute(ctx context.Context, userID string) (*storage.RecomputeResult, error)
	ListEntries(ctx context.Context, userID string) ([]models.PortfolioEntry, error)
	ChainBreakdown(ctx context.Context, userID string) ([]models.ChainBreakdownRow, error)
	FilteredTokenBreakdown(ctx context.Context, userID string, filter models.TokenFilter) ([]models.TokenBreakdownRow, error)
	TokenNames(ctx context.Context, userID string) ([]string, error)
	WalletChainTotals(ctx context.Context, userID, walletAddress string) ([]models.WalletChainTotal, error)
	DumpTable(ctx context.Context, table types.Table, limit int) (*models.TableDump, error)
}

// SpamStore interface for the per-user spam filter
type SpamStore interface {
	SpamTokens(ctx context.Context, userID string) ([]string, error)
	SetSpamTokens(ctx context.Context, userID string, names []string) error
}

// ReportCache interface for the optional report cache
type ReportCache interface {
	GenerateCacheKey(userID string, kind storage.ReportKind, variant ...string) string
	Set(ctx context.Context, userID, key string, value any) error
	Get(ctx context.Context, key string, dest any) (bool, error)
	InvalidateUser(ctx context.Context, userID string) error
}

// HistoryStore interface for the optional snapshot history
type HistoryStore interface {
	AppendSnapshot(ctx context.Context, snapshot *models.PortfolioSnapshot) error
	ListSnapshotTotals(ctx context.Context, userID string, limit int) ([]storage.SnapshotTotal, error)
}

// PortfolioService recomputes rollups and serves the reporting views
type PortfolioService struct {
	store   PortfolioStore
	spam    SpamStore
	cache   ReportCache
	history HistoryStore
	now     func() time.Time
}

// PortfolioOption configures optional collaborators
type PortfolioOption func(*PortfolioService)

// WithReportCache caches chain and token reports until the next change
func WithReportCache(cache ReportCache) PortfolioOption {
	return func(s *PortfolioService) { s.cache = cache }
}

// WithHistory appends a snapshot of the rollup after every recompute
func WithHistory(history HistoryStore) PortfolioOption {
	return func(s *PortfolioService) { s.history = history }
}

// NewPortfolioService creates a new portfolio service
func NewPortfolioService(store PortfolioStore, spam SpamStore, opts ...PortfolioOption) *PortfolioService {
	s := &PortfolioService{store: store, spam: spam, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recompute rebuilds the user's rollup, then drops cached reports and
// records a history snapshot. Cache and history failures are logged only:
// the rollup itself is already committed.
func (s *PortfolioService) Recompute(ctx context.Context, userID string) (*storage.RecomputeResult, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx).WithComponent("portfolio").WithField("user", id)

	start := time.Now()
	result, err := s.store.Recompute(ctx, id)
	metrics.RecomputeLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecomputeTotal.WithLabelValues("error").Inc()
		logger.WithError(err).Error("Recompute failed")
		return nil, err
	}
	metrics.RecomputeTotal.WithLabelValues("ok").Inc()

	s.invalidate(ctx, id)
	s.recordHistory(ctx, id)

	logger.WithFields(map[string]interface{}{
		"removed":  result.Removed,
		"upserted": result.Upserted,
	}).Info("Portfolio recomputed")
	return result, nil
}

func (s *PortfolioService) recordHistory(ctx context.Context, userID string) {
	if s.history == nil {
		return
	}
	logger := logging.FromContext(ctx).WithComponent("portfolio").WithField("user", userID)

	entries, err := s.store.ListEntries(ctx, userID)
	if err == nil {
		err = s.history.AppendSnapshot(ctx, &models.PortfolioSnapshot{
			SnapshotID: uuid.NewString(),
			UserID:     userID,
			TakenAt:    s.now().UTC(),
			Entries:    entries,
		})
	}
	if err != nil {
		metrics.HistoryWriteErrors.Inc()
		logger.WithError(err).Warn("Failed to record portfolio history")
	}
}

// Entries returns the user's raw rollup rows
func (s *PortfolioService) Entries(ctx context.Context, userID string) ([]models.PortfolioEntry, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.store.ListEntries(ctx, id)
}

// ChainBreakdown compares each chain's reported usd value with the sum of
// the user's token values on it
func (s *PortfolioService) ChainBreakdown(ctx context.Context, userID string) ([]models.ChainBreakdownRow, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}

	var rows []models.ChainBreakdownRow
	err = s.cached(ctx, id, storage.ReportChains, nil, &rows, func() error {
		var err error
		rows, err = s.store.ChainBreakdown(ctx, id)
		return err
	})
	return rows, err
}

// TokenBreakdown returns the user's rollup rows with verification flags,
// narrowed by filter. With ExcludeSpam, tokens named in the user's spam
// filter are left out; LikelySpam stays advisory either way.
func (s *PortfolioService) TokenBreakdown(ctx context.Context, userID string, filter models.TokenFilter) ([]models.TokenBreakdownRow, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}
	if filter.Wallet != "" {
		if filter.Wallet, err = ValidateAddress(filter.Wallet); err != nil {
			return nil, err
		}
	}
	if filter.MinUSD.Valid && filter.MinUSD.Decimal.IsNegative() {
		return nil, apperrors.NewInvalidParameterError("minUsd", "must not be negative")
	}

	var rows []models.TokenBreakdownRow
	err = s.cached(ctx, id, storage.ReportTokens, filterVariant(filter), &rows, func() error {
		var err error
		rows, err = s.store.FilteredTokenBreakdown(ctx, id, filter)
		return err
	})
	return rows, err
}

func filterVariant(f models.TokenFilter) []string {
	v := []string{"spam=include"}
	if f.ExcludeSpam {
		v[0] = "spam=exclude"
	}
	if f.MinUSD.Valid {
		v = append(v, "min="+f.MinUSD.Decimal.String())
	}
	if f.Chain != "" {
		v = append(v, "chain="+f.Chain)
	}
	if f.Wallet != "" {
		v = append(v, "wallet="+f.Wallet)
	}
	return v
}

// TokenNames returns the distinct token names in the user's rollup. With
// excludeSpam the user's spam filter is subtracted.
func (s *PortfolioService) TokenNames(ctx context.Context, userID string, excludeSpam bool) ([]string, error) {
	if excludeSpam {
		return s.NonSpamTokenNames(ctx, userID)
	}
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}

	var names []string
	err = s.cached(ctx, id, storage.ReportTokenNames, []string{"spam=include"}, &names, func() error {
		var err error
		names, err = s.store.TokenNames(ctx, id)
		return err
	})
	return names, err
}

// NonSpamTokenNames returns the user's token names minus the spam filter
func (s *PortfolioService) NonSpamTokenNames(ctx context.Context, userID string) ([]string, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}

	var names []string
	err = s.cached(ctx, id, storage.ReportTokenNames, []string{"spam=exclude"}, &names, func() error {
		all, err := s.store.TokenNames(ctx, id)
		if err != nil {
			return err
		}
		spam, err := s.spam.SpamTokens(ctx, id)
		if err != nil {
			return err
		}
		names = SubtractNames(all, spam)
		return nil
	})
	return names, err
}

// SubtractNames returns the sorted distinct names of all that are not in remove
func SubtractNames(all, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, n := range remove {
		drop[n] = struct{}{}
	}

	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, n := range all {
		if _, ok := drop[n]; ok {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// SpamTokens returns the user's spam filter
func (s *PortfolioService) SpamTokens(ctx context.Context, userID string) ([]string, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}
	return s.spam.SpamTokens(ctx, id)
}

// SetSpamTokens replaces the user's spam filter. Names are trimmed and
// de-duplicated; the store rejects names that are not known tokens with
// a VALIDATION_FAILED error and keeps the previous filter.
func (s *PortfolioService) SetSpamTokens(ctx context.Context, userID string, names []string) ([]string, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}

	cleaned := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			cleaned = append(cleaned, n)
		}
	}
	cleaned = SubtractNames(cleaned, nil)

	if err := s.spam.SetSpamTokens(ctx, id, cleaned); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return cleaned, nil
}

// WalletChainTotals returns per-chain usd sums of one of the user's addresses
func (s *PortfolioService) WalletChainTotals(ctx context.Context, userID, address string) ([]models.WalletChainTotal, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}
	addr, err := ValidateAddress(address)
	if err != nil {
		return nil, err
	}
	return s.store.WalletChainTotals(ctx, id, addr)
}

// DumpTable returns raw rows of a known table. Unknown names are rejected
// before any query is built.
func (s *PortfolioService) DumpTable(ctx context.Context, table string, limit int) (*models.TableDump, error) {
	t, ok := types.ParseTable(table)
	if !ok {
		return nil, apperrors.NewInvalidParameterError("table", "unknown table "+table)
	}
	return s.store.DumpTable(ctx, t, limit)
}

// History returns the most recent snapshot totals of the user
func (s *PortfolioService) History(ctx context.Context, userID string, limit int) ([]storage.SnapshotTotal, error) {
	id, err := ValidateUserID(userID)
	if err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, apperrors.NewUnavailableError("history", errors.New("history store is not enabled"))
	}
	return s.history.ListSnapshotTotals(ctx, id, limit)
}

// cached serves dest from the report cache, or runs load and stores the
// result. Cache failures fall back to the store.
func (s *PortfolioService) cached(ctx context.Context, userID string, kind storage.ReportKind, variant []string, dest any, load func() error) error {
	if s.cache == nil {
		return load()
	}
	logger := logging.FromContext(ctx).WithComponent("portfolio").WithField("user", userID)

	key := s.cache.GenerateCacheKey(userID, kind, variant...)
	hit, err := s.cache.Get(ctx, key, dest)
	switch {
	case err != nil:
		metrics.ReportCacheLookups.WithLabelValues("error").Inc()
		logger.WithError(err).Warn("Report cache read failed")
	case hit:
		metrics.ReportCacheLookups.WithLabelValues("hit").Inc()
		return nil
	default:
		metrics.ReportCacheLookups.WithLabelValues("miss").Inc()
	}

	if err := load(); err != nil {
		return err
	}
	if err := s.cache.Set(ctx, userID, key, dest); err != nil {
		logger.WithError(err).Warn("Report cache write failed")
	}
	return nil
}

func (s *PortfolioService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		logging.FromContext(ctx).WithComponent("portfolio").
			WithField("user", userID).WithError(err).Warn("Failed to invalidate report cache")
	}
}
