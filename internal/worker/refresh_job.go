// Package worker runs the batch refresh: every linked wallet is fetched from
// the payload source, written through the refresh service, and the affected
// users' portfolios are recomputed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/metrics"
	"github.com/wallet-portfolio/internal/provider"
	"github.com/wallet-portfolio/internal/service"
	"github.com/wallet-portfolio/internal/storage"
)

// WalletDirectory lists the wallets to refresh and the users behind them
type WalletDirectory interface {
	ListLinkedWallets(ctx context.Context) ([]string, error)
	ListUsers(ctx context.Context) ([]string, error)
	ListUsersForWallet(ctx context.Context, address string) ([]string, error)
}

// WalletRefresher writes one wallet's payloads
type WalletRefresher interface {
	RefreshWallet(ctx context.Context, address string, payloads *provider.Payloads) (*service.RefreshResult, error)
}

// Recomputer rebuilds a user's rollup
type Recomputer interface {
	Recompute(ctx context.Context, userID string) (*storage.RecomputeResult, error)
}

// RefreshJobConfig holds the collaborators of a refresh job
type RefreshJobConfig struct {
	Directory  WalletDirectory
	Source     provider.Source
	Refresher  WalletRefresher
	Recomputer Recomputer
	// RecomputeAll recomputes every registered user after the batch.
	// Otherwise only users linked to a refreshed wallet are recomputed.
	RecomputeAll bool
}

// RefreshJob refreshes every linked wallet, one at a time
type RefreshJob struct {
	directory    WalletDirectory
	source       provider.Source
	refresher    WalletRefresher
	recomputer   Recomputer
	recomputeAll bool
}

// RunResult summarizes one refresh run
type RunResult struct {
	RunID           string        `json:"runId"`
	Wallets         int           `json:"wallets"`
	Refreshed       int           `json:"refreshed"`
	FetchFailed     int           `json:"fetchFailed"`
	RefreshFailed   int           `json:"refreshFailed"`
	ItemsWritten    int           `json:"itemsWritten"`
	ItemsFailed     int           `json:"itemsFailed"`
	Recomputed      int           `json:"recomputed"`
	RecomputeFailed int           `json:"recomputeFailed"`
	Duration        time.Duration `json:"duration"`
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(cfg *RefreshJobConfig) (*RefreshJob, error) {
	if cfg.Directory == nil {
		return nil, fmt.Errorf("wallet directory cannot be nil")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("payload source cannot be nil")
	}
	if cfg.Refresher == nil {
		return nil, fmt.Errorf("refresher cannot be nil")
	}
	if cfg.Recomputer == nil {
		return nil, fmt.Errorf("recomputer cannot be nil")
	}

	return &RefreshJob{
		directory:    cfg.Directory,
		source:       cfg.Source,
		refresher:    cfg.Refresher,
		recomputer:   cfg.Recomputer,
		recomputeAll: cfg.RecomputeAll,
	}, nil
}

// Run performs one refresh pass. Per-wallet failures are counted and the
// batch moves on; an unavailable store or a cancelled context ends the run
// with an error and the partial result.
func (j *RefreshJob) Run(ctx context.Context) (*RunResult, error) {
	start := time.Now()
	result := &RunResult{RunID: uuid.NewString()}
	logger := logging.FromContext(ctx).WithComponent("refresh_job").WithField("run_id", result.RunID)
	ctx = logging.WithLogger(ctx, logger)

	defer func() {
		result.Duration = time.Since(start)
		metrics.RefreshRunDuration.Observe(result.Duration.Seconds())
	}()

	wallets, err := j.directory.ListLinkedWallets(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list linked wallets: %w", err)
	}
	result.Wallets = len(wallets)
	logger.Infof("Refreshing %d linked wallets", len(wallets))

	refreshed := make([]string, 0, len(wallets))
	for _, address := range wallets {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		wlog := logger.WithField("wallet", address)
		payloads, err := j.source.Fetch(ctx, address)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			if payloads == nil || payloads.Empty() {
				result.FetchFailed++
				wlog.WithError(err).Warn("Failed to fetch payloads")
				continue
			}
			// some payload files were unreadable; write the rest
			wlog.WithError(err).Warn("Partial payloads fetched")
		}

		res, err := j.refresher.RefreshWallet(ctx, address, payloads)
		if res != nil {
			result.ItemsWritten += res.Written()
			result.ItemsFailed += res.Failed()
		}
		if err != nil {
			if apperrors.IsUnavailable(err) || ctx.Err() != nil {
				return result, err
			}
			result.RefreshFailed++
			wlog.WithError(err).Warn("Wallet refresh failed")
			continue
		}
		result.Refreshed++
		refreshed = append(refreshed, address)
	}

	users, err := j.usersToRecompute(ctx, refreshed)
	if err != nil {
		return result, err
	}
	for _, userID := range users {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if _, err := j.recomputer.Recompute(ctx, userID); err != nil {
			if apperrors.IsUnavailable(err) {
				return result, err
			}
			result.RecomputeFailed++
			logger.WithField("user", userID).WithError(err).Warn("Recompute failed")
			continue
		}
		result.Recomputed++
	}

	logger.WithFields(map[string]interface{}{
		"wallets":          result.Wallets,
		"refreshed":        result.Refreshed,
		"fetch_failed":     result.FetchFailed,
		"refresh_failed":   result.RefreshFailed,
		"items_written":    result.ItemsWritten,
		"items_failed":     result.ItemsFailed,
		"recomputed":       result.Recomputed,
		"recompute_failed": result.RecomputeFailed,
	}).Info("Refresh run finished")
	return result, nil
}

func (j *RefreshJob) usersToRecompute(ctx context.Context, refreshed []string) ([]string, error) {
	if j.recomputeAll {
		users, err := j.directory.ListUsers(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		return users, nil
	}

	seen := make(map[string]struct{})
	var errs []error
	for _, address := range refreshed {
		users, err := j.directory.ListUsersForWallet(ctx, address)
		if err != nil {
			if apperrors.IsUnavailable(err) {
				return nil, err
			}
			errs = append(errs, err)
			continue
		}
		for _, u := range users {
			seen[u] = struct{}{}
		}
	}
	if len(errs) > 0 {
		logging.FromContext(ctx).WithError(errors.Join(errs...)).Warn("Some wallet owners could not be resolved")
	}

	out := make([]string, 0, len(seen))
	for u := range seen {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}
