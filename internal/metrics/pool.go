package metrics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wallet-portfolio/internal/logging"
)

// PoolStatter is satisfied by *pgxpool.Pool
type PoolStatter interface {
	Stat() *pgxpool.Stat
}

// CollectPoolStats copies one sample of the pool statistics into the gauges
func CollectPoolStats(pool PoolStatter) {
	if pool == nil {
		return
	}
	stat := pool.Stat()
	DBPoolTotalConns.Set(float64(stat.TotalConns()))
	DBPoolAcquiredConns.Set(float64(stat.AcquiredConns()))
	DBPoolIdleConns.Set(float64(stat.IdleConns()))
	DBPoolAcquireWaitSeconds.Set(stat.AcquireDuration().Seconds())
}

// StartPoolStatsPump samples the pool every interval until ctx is done
func StartPoolStatsPump(ctx context.Context, pool PoolStatter, interval time.Duration) {
	if pool == nil || interval <= 0 {
		return
	}

	logger := logging.FromContext(ctx).WithComponent("metrics")
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		CollectPoolStats(pool)
		for {
			select {
			case <-ctx.Done():
				logger.Debug("db pool stats sampler stopped")
				return
			case <-ticker.C:
				CollectPoolStats(pool)
			}
		}
	}()
}
