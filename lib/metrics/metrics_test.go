package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RegistrySet(true)
		m.PropertyUpdate("user-box", "changed")
		m.SessionOpened()
		m.SessionClosed()
		m.ScanFinished(time.Now())
		m.FileScanned(false)
	})
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("test"))

	m.RegistrySet(true)
	m.RegistrySet(false)
	m.RegistrySet(false)
	m.PropertyUpdate("user-box", "changed")
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()
	m.FileScanned(true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.registrySets.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.registrySets.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.propertyUpdates.WithLabelValues("user-box", "changed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeSessions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scannedFiles.WithLabelValues("hit")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_registry_sets_total")
	assert.Contains(t, names, "test_sessions_active")
}
