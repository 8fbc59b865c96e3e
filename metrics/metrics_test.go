package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sqlalchemy/collectd-pool/metrics"
)

func TestPacketsSentCountIncrements(t *testing.T) {
	before := testutil.ToFloat64(metrics.PacketsSentCount.WithLabelValues("sqlalchemy_pool"))
	metrics.PacketsSentCount.WithLabelValues("sqlalchemy_pool").Inc()
	after := testutil.ToFloat64(metrics.PacketsSentCount.WithLabelValues("sqlalchemy_pool"))
	if after != before+1 {
		t.Errorf("PacketsSentCount did not increment: before=%v after=%v", before, after)
	}
}

func TestDecodeErrorCountIncrements(t *testing.T) {
	before := testutil.ToFloat64(metrics.DecodeErrorCount.WithLabelValues("truncated"))
	metrics.DecodeErrorCount.WithLabelValues("truncated").Inc()
	after := testutil.ToFloat64(metrics.DecodeErrorCount.WithLabelValues("truncated"))
	if after != before+1 {
		t.Errorf("DecodeErrorCount did not increment: before=%v after=%v", before, after)
	}
}

func TestBucketSizeHistogramObserves(t *testing.T) {
	// Observing should never panic, even for a bucket label seen for the
	// first time.
	metrics.BucketSizeHistogram.WithLabelValues("byprogram").Observe(3)
}
