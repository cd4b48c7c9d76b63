package pamixer

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jfreymuth/pamixer/proto"
)

func TestMetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := NewMetrics(registry)
	require.NoError(t, err)
	require.NotNil(t, m)

	_, err = NewMetrics(registry)
	assert.Error(t, err, "registering twice must fail")
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.setObjects(KindSink, 1)
		m.event("sink", "new")
		m.fetchFailed(KindCard)
		m.meterCreated()
		m.meterFailed()
		m.meterReleased()
		m.peakSample()
		m.fragmentDropped("hole")
		m.setState(StateReady)
	})
}

func TestMetricsFollowCache(t *testing.T) {
	c, conn, _, _ := newTestCache(t)
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	c.metrics = m

	c.UpsertSink(sinkInfo(3, 3))
	c.UpsertSource(sourceInfo(5))
	c.UpsertSource(sourceInfo(6))
	conn.flush()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.objects.WithLabelValues("sink")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.objects.WithLabelValues("source")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.metersCreated))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.metersActive))

	s, _ := meterOf(c, KindSource, 5)
	c.meterData(&proto.DataPacket{StreamIndex: s.stream, Offset: 4, Data: samples(0.5)})
	assert.Equal(t, float64(1), testutil.ToFloat64(m.peakSamples))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dropped.WithLabelValues("hole")))

	c.Remove(KindSource, 5)
	killed, _ := meterOf(c, KindSource, 6)
	c.meterKilled(killed.stream)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metersRelease))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metersFailed))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.metersActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.objects.WithLabelValues("source")))
}
