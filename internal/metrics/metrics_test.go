package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRefreshCounters(t *testing.T) {
	before := testutil.ToFloat64(RefreshItemsWritten.WithLabelValues("token"))
	RefreshItemsWritten.WithLabelValues("token").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RefreshItemsWritten.WithLabelValues("token")))

	before = testutil.ToFloat64(RefreshItemsFailed.WithLabelValues("nft"))
	RefreshItemsFailed.WithLabelValues("nft").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(RefreshItemsFailed.WithLabelValues("nft")))
}

func TestCollectPoolStats_NilPool(t *testing.T) {
	assert.NotPanics(t, func() { CollectPoolStats(nil) })
}
