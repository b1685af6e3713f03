package tps

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics("test", reg)
	clock := newFakeClock()

	m := NewManager(WithClock(clock.Now), WithMetrics(metrics))
	m.NewPoint("publish")
	if err := m.ApplyRule("publish", NewControlRule().
		SetPointRule(MustRule(1, time.Second, "SUM", "intercept")).
		SetMonitorKeyRule("content:*", MustRule(0, time.Second, "EACH", "monitor"))); err != nil {
		t.Fatalf("ApplyRule() error = %v", err)
	}

	keys := contentKeys("k")
	m.ApplyTps("publish", "c", keys)
	m.ApplyTps("publish", "c", keys)
	m.ApplyTps("missing", "c", nil)

	t.Run("checks", func(t *testing.T) {
		if v := testutil.ToFloat64(metrics.checks.WithLabelValues("publish", "admitted")); v != 1 {
			t.Errorf("admitted = %v, want 1", v)
		}
		if v := testutil.ToFloat64(metrics.checks.WithLabelValues("publish", "rejected")); v != 1 {
			t.Errorf("rejected = %v, want 1", v)
		}
	})

	t.Run("exceeded", func(t *testing.T) {
		if v := testutil.ToFloat64(metrics.exceeded.WithLabelValues("publish", "point", "intercept")); v != 1 {
			t.Errorf("point exceeded = %v, want 1", v)
		}
		if v := testutil.ToFloat64(metrics.exceeded.WithLabelValues("publish", "content:*", "monitor")); v != 2 {
			t.Errorf("content exceeded = %v, want 2", v)
		}
	})

	t.Run("unknown point", func(t *testing.T) {
		if v := testutil.ToFloat64(metrics.unknownPoints.WithLabelValues(string(FailOpen))); v != 1 {
			t.Errorf("unknown = %v, want 1", v)
		}
	})

	t.Run("rule swaps and counters", func(t *testing.T) {
		if v := testutil.ToFloat64(metrics.ruleSwaps.WithLabelValues("publish")); v != 1 {
			t.Errorf("swaps = %v, want 1", v)
		}
		if v := testutil.ToFloat64(metrics.counters.WithLabelValues("publish")); v != 2 {
			t.Errorf("counters = %v, want 2", v)
		}

		clock.Advance(time.Hour)
		m.Sweep(clock.Now())
		if v := testutil.ToFloat64(metrics.evictions.WithLabelValues("publish")); v != 2 {
			t.Errorf("evictions = %v, want 2", v)
		}
		if v := testutil.ToFloat64(metrics.counters.WithLabelValues("publish")); v != 0 {
			t.Errorf("counters after sweep = %v, want 0", v)
		}
	})
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.recordCheck("p", true)
	m.recordExceeded("p", "", ActionIntercept)
	m.recordUnknownPoint(FailOpen)
	m.recordRuleSwap("p")
	m.recordEvictions("p", 1)
	m.setCounters("p", 1)
}
