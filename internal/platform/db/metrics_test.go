package db

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPoolStatsCollector(t *testing.T) {
	c := NewPoolStatsCollector(fixedStats(PoolStats{TotalConns: 4, IdleConns: 1, AcquiredConns: 3, MaxConns: 20, AcquireCount: 42}), "triage")

	if n := testutil.CollectAndCount(c); n != 5 {
		t.Errorf("expected 5 metrics, got %d", n)
	}

	expected := `
# HELP triage_db_pool_acquired_conns Number of connections currently acquired from the pool
# TYPE triage_db_pool_acquired_conns gauge
triage_db_pool_acquired_conns 3
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "triage_db_pool_acquired_conns"); err != nil {
		t.Error(err)
	}
}

func TestPoolStatsCollector_NilSource(t *testing.T) {
	if n := testutil.CollectAndCount(NewPoolStatsCollector(nil, "triage")); n != 0 {
		t.Errorf("expected no metrics, got %d", n)
	}
}

func TestRegisterPoolStatsCollector_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	stats := fixedStats(PoolStats{})
	if _, err := RegisterPoolStatsCollector(reg, stats, "triage"); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := RegisterPoolStatsCollector(reg, stats, "triage"); err != nil {
		t.Errorf("second register should be tolerated, got %v", err)
	}
}
