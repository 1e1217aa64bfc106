package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsRunsAndFailures(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("ledger:reconcile").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("ledger:reconcile").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:reconcile", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("ledger:reconcile", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("ledger:reconcile")))
}

func TestSetVariance(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.SetVariance("inventory", "1140", 2.5, true)
	m.SetVariance("cash", "1110", 0, false)
	m.MarkChecked("inventory", time.Unix(1700000000, 0))

	require.Equal(t, 2.5, testutil.ToFloat64(m.variance.WithLabelValues("inventory", "1140")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.drifts.WithLabelValues("inventory")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.drifts.WithLabelValues("cash")))
	require.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastCheck.WithLabelValues("inventory")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.SetVariance("cash", "1110", 1, true)
	m.MarkChecked("cash", time.Now())
	require.NoError(t, m.Track("noop").End(nil))
}
