package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	// Helper to check if a metric is registered
	checkMetric := func(name string, collector prometheus.Collector) {
		// We can't easily check registration directly with the global registry without
		// potentially interfering with other tests or global state,
		// but we can check if the collector itself is valid and has the expected name.
		// A common pattern is to try collecting from it.

		ch := make(chan prometheus.Metric, 10)
		collector.Collect(ch)
		close(ch)

		var found bool
		for m := range ch {
			desc := m.Desc().String()
			if strings.Contains(desc, name) {
				found = true
				break
			}
		}

		if !found {
			// This is a loose check because Desc().String() format isn't strictly guaranteed,
			// but it's usually enough for a sanity check during development.
			// Better is to use testutil.CollectAndCount if we can register it to a custom registry,
			// but these are promauto registered to the global default registry.
			//
			// Instead, let's verify we can increment/observe them without panic
			// which implies they are initialized correctly.
		}
	}

	t.Run("RedisOperationsTotal", func(t *testing.T) {
		RedisOperationsTotal.WithLabelValues("get", "success").Inc()
		// If we got here without panic, good.
		// We can also use testutil to check value if we strictly need to.
		val := testutil.ToFloat64(RedisOperationsTotal.WithLabelValues("get", "success"))
		if val < 1 {
			t.Errorf("Expected RedisOperationsTotal to be at least 1, got %v", val)
		}
	})

	t.Run("RedisOperationDuration", func(t *testing.T) {
		RedisOperationDuration.WithLabelValues("get").Observe(0.1)
		// verifying histogram is complex, but no-panic is the main goal here for registration
	})

	t.Run("RoomMembers", func(t *testing.T) {
		RoomMembers.WithLabelValues("ABC123", "group").Set(3)
		val := testutil.ToFloat64(RoomMembers.WithLabelValues("ABC123", "group"))
		if val != 3 {
			t.Errorf("expected RoomMembers to be 3, got %v", val)
		}
	})

	t.Run("SignalingForwarded", func(t *testing.T) {
		SignalingForwarded.WithLabelValues("ok").Inc()
		val := testutil.ToFloat64(SignalingForwarded.WithLabelValues("ok"))
		if val < 1 {
			t.Errorf("expected SignalingForwarded to be at least 1, got %v", val)
		}
	})
}
